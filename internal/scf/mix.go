// mix.go --  This file is part of goHF project.
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
package scf

import (
	"errors"
	"io"

	"github.com/sirupsen/logrus"

	"example.com/godiis/diis"
)

// ErrEmptyWindow is returned by Accelerate when there is nothing to mix.
var ErrEmptyWindow = errors.New("scf: empty DIIS window")

// Mix returns sum_j coeffs[j] * states[j][m] for every tracked matrix m.
func Mix[T diis.Scalar](coeffs []T, states [][][]T) [][]T {
	if len(coeffs) != len(states) {
		panic(diis.ErrShape)
	}
	if len(states) == 0 || len(states[0]) == 0 {
		return nil
	}
	res := make([][]T, len(states[0]))
	for m := range res {
		res[m] = make([]T, len(states[0][m]))
	}
	for j, c := range coeffs {
		for m, s := range states[j] {
			dst := res[m]
			if len(s) != len(dst) {
				panic(diis.ErrShape)
			}
			for k, v := range s {
				dst[k] += c * v
			}
		}
	}
	return res
}

// Result is the outcome of Accelerate.
type Result[T diis.Scalar] struct {
	Coeffs []T   // weights of the entries used, oldest first
	Lambda T     // Lagrange multiplier
	B      []T   // bordered matrix of the last attempt, row-major
	Used   int   // window entries used
	Mixed  [][]T // extrapolated states, nil without states
	Err    error // last extrapolation error
}

// Accelerate runs DIIS over the window. When the extrapolation fails the
// oldest entry is dropped from w and the attempt repeated while at least
// minWindow entries remain. If no attempt succeeds Mixed holds a copy of
// the newest states and ok is false.
func Accelerate[F diis.Field[T], T diis.Scalar](w *Window[T], minWindow int, settings *diis.Settings) (res Result[T], ok bool) {
	if w.Len() == 0 {
		res.Err = ErrEmptyWindow
		return res, false
	}
	if minWindow < 1 {
		minWindow = 1
	}
	logger := quiet
	if settings != nil && settings.Logger != nil {
		logger = settings.Logger
	}
	latest := clone2(w.Latest())

	for w.Len() >= minWindow {
		metrics := w.Metrics()
		nMat, oSize := len(metrics[0]), len(metrics[0][0])
		e := diis.New[F](len(metrics), nMat, oSize, metrics, settings)
		res.B = e.BuildB()
		if e.Extrapolate() {
			res.Coeffs = e.Coeffs()
			res.Lambda = e.Multiplier()
			res.Used = len(metrics)
			res.Err = nil
			if w.Latest() != nil {
				res.Mixed = Mix(res.Coeffs, w.States())
			}
			return res, true
		}
		res.Err = e.Err()
		logger.WithError(res.Err).WithField("window", w.Len()).Info("DIIS failed, dropping oldest entry")
		w.Drop()
	}

	res.Coeffs = nil
	res.Used = 0
	res.Mixed = latest
	return res, false
}

var quiet = func() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}()
