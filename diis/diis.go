// diis.go --  This file is part of goHF project.
// Mirzaeva Irina, 2023
//
//	goHF is distributed in the hope that it will be useful,
//	but WITHOUT ANY WARRANTY; without even the implied warranty
//	of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
//	See the GNU General Public License for more details.
//
//	You should have received a copy of the GNU General Public License
//	along with this program.  If not, see http://www.gnu.org/licenses/
//
// ------------------------------------------------

// Package diis implements DIIS (direct inversion in the iterative subspace)
// extrapolation for SCF iterations.
//
// An Extrapolator holds nExtrap slots of error metrics, nMat buffers of
// oSize elements per slot, and finds weights c with sum(c) = 1 minimizing
// |sum_j c_j e_j| by solving the bordered system
//
//	| B  -1 | |c|   | 0|
//	|-1ᵀ  0 | |λ| = |-1|
//
// where B[k][j] = sum over tracked matrices of <e_k, e_j>.
package diis

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// Settings controls an Extrapolator. The zero value is usable.
type Settings struct {
	// CondTol is the largest condition number accepted for the Gram block
	// of B, scaled to unit diagonal, before the history is declared
	// linearly dependent. Zero selects mat.ConditionTolerance, a negative
	// value disables the check. A single slot is never checked.
	CondTol float64

	// Workers is the number of goroutines assembling the Gram block.
	// Values below 2 assemble it on the calling goroutine.
	Workers int

	// Logger receives the outcome of each extrapolation.
	Logger logrus.FieldLogger
}

// Extrapolator computes DIIS extrapolation coefficients for a fixed history
// of error metrics.
//
// The history is borrowed: errorMetric[slot][matrix] must stay valid and
// unchanged while Extrapolate or BuildB run. The Extrapolator never writes
// to it. An Extrapolator must be created with New and must not be copied.
type Extrapolator[F Field[T], T Scalar] struct {
	noCopy noCopy

	nExtrap int // size of extrapolation space
	nMat    int // matrices traced for each element of B
	oSize   int // elements in each error metric

	errorMetric [][][]T

	solver  Solver[T]
	condTol float64
	workers int
	logger  logrus.FieldLogger

	coeffs []T
	err    error
}

// New returns an Extrapolator over errorMetric, which must hold nExtrap
// slots of nMat buffers with at least oSize elements each. New panics with
// ErrZeroLength or ErrShape if it does not. A nil settings selects the
// defaults.
func New[F Field[T], T Scalar](nExtrap, nMat, oSize int, errorMetric [][][]T, settings *Settings) *Extrapolator[F, T] {
	if nExtrap <= 0 || nMat <= 0 || oSize <= 0 {
		panic(ErrZeroLength)
	}
	if len(errorMetric) != nExtrap {
		panic(ErrShape)
	}
	for _, slot := range errorMetric {
		if len(slot) != nMat {
			panic(ErrShape)
		}
		for _, e := range slot {
			if len(e) < oSize {
				panic(ErrShape)
			}
		}
	}

	var f F
	e := &Extrapolator[F, T]{
		nExtrap:     nExtrap,
		nMat:        nMat,
		oSize:       oSize,
		errorMetric: errorMetric,
		solver:      f.Solver(),
		condTol:     mat.ConditionTolerance,
		logger:      discardLogger,
	}
	if settings != nil {
		if settings.CondTol != 0 {
			e.condTol = settings.CondTol
		}
		e.workers = settings.Workers
		if settings.Logger != nil {
			e.logger = settings.Logger
		}
	}
	return e
}

// NewReal is New for real error metrics.
func NewReal(nExtrap, nMat, oSize int, errorMetric [][][]float64, settings *Settings) *Extrapolator[Real, float64] {
	return New[Real](nExtrap, nMat, oSize, errorMetric, settings)
}

// NewComplex is New for complex error metrics.
func NewComplex(nExtrap, nMat, oSize int, errorMetric [][][]complex128, settings *Settings) *Extrapolator[Complex, complex128] {
	return New[Complex](nExtrap, nMat, oSize, errorMetric, settings)
}

// UseSolver replaces the dense solver of e.
func (e *Extrapolator[F, T]) UseSolver(s Solver[T]) {
	e.check()
	if s == nil {
		panic("diis: nil solver")
	}
	e.solver = s
}

// Dims returns the dimensions e was built with.
func (e *Extrapolator[F, T]) Dims() (nExtrap, nMat, oSize int) {
	e.check()
	return e.nExtrap, e.nMat, e.oSize
}

// BuildB assembles the bordered matrix B of order nExtrap+1 from the
// current history and returns it row-major. Only the upper triangle of the
// Gram block is computed; the lower triangle is a plain copy of it, without
// conjugation.
func (e *Extrapolator[F, T]) BuildB() []T {
	e.check()
	n := e.nExtrap + 1
	b := make([]T, n*n)

	if e.workers > 1 {
		e.gramParallel(b, n)
	} else {
		for i := 0; i < e.nMat; i++ {
			for j := 0; j < e.nExtrap; j++ {
				for k := 0; k <= j; k++ {
					b[k*n+j] += Inner[F](e.oSize, e.errorMetric[k][i], 1, e.errorMetric[j][i], 1)
				}
			}
		}
	}

	for j := 0; j < e.nExtrap; j++ {
		for k := 0; k < j; k++ {
			b[j*n+k] = b[k*n+j]
		}
	}
	for l := 0; l < e.nExtrap; l++ {
		b[e.nExtrap*n+l] = -1
		b[l*n+e.nExtrap] = -1
	}
	b[e.nExtrap*n+e.nExtrap] = 0
	return b
}

// gramParallel fills the upper triangle of the Gram block one cell per
// task. Every cell sums over the tracked matrices in the same order as the
// serial loop, so both give identical bits.
func (e *Extrapolator[F, T]) gramParallel(b []T, n int) {
	var g errgroup.Group
	g.SetLimit(e.workers)
	for j := 0; j < e.nExtrap; j++ {
		for k := 0; k <= j; k++ {
			j, k := j, k
			g.Go(func() error {
				var sum T
				for i := 0; i < e.nMat; i++ {
					sum += Inner[F](e.oSize, e.errorMetric[k][i], 1, e.errorMetric[j][i], 1)
				}
				b[k*n+j] = sum
				return nil
			})
		}
	}
	// The tasks never fail; the group only bounds the goroutines.
	_ = g.Wait()
}

// Extrapolate computes the extrapolation coefficients from the current
// history and reports whether it succeeded. On failure Err describes the
// reason and Coeffs returns nil.
func (e *Extrapolator[F, T]) Extrapolate() bool {
	e.check()
	n := e.nExtrap + 1
	b := e.BuildB()

	e.coeffs = make([]T, n)
	e.coeffs[e.nExtrap] = -1
	e.err = nil

	log := e.logger.WithFields(logrus.Fields{
		"nExtrap": e.nExtrap,
		"nMat":    e.nMat,
		"oSize":   e.oSize,
	})

	if e.condTol > 0 && e.nExtrap > 1 {
		// NaN compares false, so it fails here too.
		if cond := e.gramCond(b, n); !(cond <= e.condTol) {
			e.err = fmt.Errorf("%w: error metrics are linearly dependent: %v", ErrSingular, mat.Condition(cond))
			log.WithError(e.err).Warn("DIIS extrapolation failed")
			return false
		}
	}

	if err := e.solver.Solve(n, b, e.coeffs); err != nil {
		if !errors.Is(err, ErrSingular) {
			err = fmt.Errorf("%w: %v", ErrSingular, err)
		}
		e.err = err
		log.WithError(e.err).Warn("DIIS extrapolation failed")
		return false
	}

	log.WithField("coeffs", e.coeffs[:e.nExtrap]).Debug("DIIS extrapolation done")
	return true
}

// gramCond returns the condition number of the Gram block of b scaled to
// unit diagonal, D^-1/2 G D^-1/2 with D = diag(G). It depends on the angles
// between the error metrics only, not on their norms. A zero metric gives
// +Inf.
func (e *Extrapolator[F, T]) gramCond(b []T, n int) float64 {
	var f F
	m := e.nExtrap
	norm := make([]float64, m)
	for k := range norm {
		d := f.Abs(b[k*n+k])
		if d == 0 {
			return math.Inf(1)
		}
		norm[k] = math.Sqrt(d)
	}
	gram := make([]T, m*m)
	for k := 0; k < m; k++ {
		for j := 0; j < m; j++ {
			gram[k*m+j] = f.Scale(f.Scale(b[k*n+j], 1/norm[k]), 1/norm[j])
		}
	}
	return e.solver.Cond(m, gram)
}

// Coeffs returns a copy of the nExtrap extrapolation weights found by the
// last successful Extrapolate, or nil.
func (e *Extrapolator[F, T]) Coeffs() []T {
	e.check()
	if e.coeffs == nil || e.err != nil {
		return nil
	}
	c := make([]T, e.nExtrap)
	copy(c, e.coeffs)
	return c
}

// Multiplier returns the Lagrange multiplier of the unit-sum constraint
// from the last successful Extrapolate.
func (e *Extrapolator[F, T]) Multiplier() T {
	e.check()
	var lambda T
	if e.coeffs != nil && e.err == nil {
		lambda = e.coeffs[e.nExtrap]
	}
	return lambda
}

// Err returns the reason the last Extrapolate failed, or nil.
func (e *Extrapolator[F, T]) Err() error {
	e.check()
	return e.err
}

func (e *Extrapolator[F, T]) check() {
	if e == nil || e.solver == nil {
		panic(ErrNotInitialized)
	}
}

var discardLogger = func() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}()

// noCopy makes go vet's copylocks check report copies of an Extrapolator.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}
