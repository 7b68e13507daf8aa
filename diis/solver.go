// solver.go --  This file is part of goHF project.
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
package diis

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/blas/cblas128"
	"gonum.org/v1/gonum/mat"
)

// Solver solves dense square linear systems.
//
// Matrices are passed row-major as n*n slices. Solve overwrites b with the
// solution of a*x = b and may overwrite a. It returns an error wrapping
// ErrSingular when the factorization meets an exactly zero pivot or the
// solution is not finite; b is then unspecified. Ill-conditioned but
// regular systems are solved.
//
// Cond returns the 1-norm condition number of a without modifying it,
// +Inf for a singular matrix.
type Solver[T Scalar] interface {
	Solve(n int, a, b []T) error
	Cond(n int, a []T) float64
}

// LU is the float64 Solver backed by gonum's LU factorization with partial
// pivoting.
type LU struct{}

func (LU) Solve(n int, a, b []float64) error {
	var lu mat.LU
	lu.Factorize(mat.NewDense(n, n, a))
	x := mat.NewVecDense(n, b)
	if err := lu.SolveVecTo(x, false, x); err != nil {
		// A finite Condition still comes with a solution.
		var cond mat.Condition
		if !errors.As(err, &cond) || math.IsInf(float64(cond), 1) {
			return fmt.Errorf("%w: %v", ErrSingular, err)
		}
	}
	for i, v := range b {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite solution at %d", ErrSingular, i)
		}
	}
	return nil
}

func (LU) Cond(n int, a []float64) float64 {
	var lu mat.LU
	lu.Factorize(mat.NewDense(n, n, a))
	return lu.Cond()
}

// CLU is the complex128 Solver. gonum has no complex LU, so the
// factorization is done here on top of cblas128 the way zgetf2 does it.
type CLU struct{}

func (CLU) Solve(n int, a, b []complex128) error {
	if len(a) != n*n || len(b) != n {
		panic(ErrShape)
	}
	ipiv := make([]int, n)
	if k := zgetrf(n, a, ipiv); k >= 0 {
		return fmt.Errorf("%w: zero pivot in column %d: %v", ErrSingular, k, mat.Condition(math.Inf(1)))
	}
	zgetrs(n, a, ipiv, b)
	for i, v := range b {
		if cmplx.IsNaN(v) || cmplx.IsInf(v) {
			return fmt.Errorf("%w: non-finite solution at %d", ErrSingular, i)
		}
	}
	return nil
}

func (CLU) Cond(n int, a []complex128) float64 {
	if len(a) != n*n {
		panic(ErrShape)
	}
	lu := make([]complex128, len(a))
	copy(lu, a)
	ipiv := make([]int, n)
	if zgetrf(n, lu, ipiv) >= 0 {
		return math.Inf(1)
	}
	return znorm1(n, a) * zinvnorm1(n, lu, ipiv)
}

// zgetrf factorizes the row-major matrix a in place as P*A = L*U, L unit
// lower triangular. Row k was exchanged with row ipiv[k]. It returns the
// first column with an exactly zero pivot, or -1.
func zgetrf(n int, a []complex128, ipiv []int) int {
	info := -1
	for k := 0; k < n; k++ {
		p := k + cblas128.Iamax(cblas128.Vector{N: n - k, Inc: n, Data: a[k*n+k:]})
		ipiv[k] = p
		if a[p*n+k] == 0 {
			if info < 0 {
				info = k
			}
			continue
		}
		if p != k {
			cblas128.Swap(
				cblas128.Vector{N: n, Inc: 1, Data: a[k*n : k*n+n]},
				cblas128.Vector{N: n, Inc: 1, Data: a[p*n : p*n+n]},
			)
		}
		m := n - k - 1
		if m == 0 {
			continue
		}
		pivot := a[k*n+k]
		row := cblas128.Vector{N: m, Inc: 1, Data: a[k*n+k+1 : k*n+n]}
		for i := k + 1; i < n; i++ {
			l := a[i*n+k] / pivot
			a[i*n+k] = l
			if l != 0 {
				cblas128.Axpy(-l, row, cblas128.Vector{N: m, Inc: 1, Data: a[i*n+k+1 : i*n+n]})
			}
		}
	}
	return info
}

// zgetrs overwrites b with the solution of A*x = b for A factorized by
// zgetrf.
func zgetrs(n int, lu []complex128, ipiv []int, b []complex128) {
	for k, p := range ipiv {
		if p != k {
			b[k], b[p] = b[p], b[k]
		}
	}
	for i := 1; i < n; i++ {
		b[i] -= cblas128.Dotu(
			cblas128.Vector{N: i, Inc: 1, Data: lu[i*n : i*n+i]},
			cblas128.Vector{N: i, Inc: 1, Data: b[:i]},
		)
	}
	for i := n - 1; i >= 0; i-- {
		if m := n - i - 1; m > 0 {
			b[i] -= cblas128.Dotu(
				cblas128.Vector{N: m, Inc: 1, Data: lu[i*n+i+1 : i*n+n]},
				cblas128.Vector{N: m, Inc: 1, Data: b[i+1:]},
			)
		}
		b[i] /= lu[i*n+i]
	}
}

// znorm1 is the maximum absolute column sum of the row-major matrix a.
func znorm1(n int, a []complex128) float64 {
	var norm float64
	for j := 0; j < n; j++ {
		var sum float64
		for i := 0; i < n; i++ {
			sum += Complex{}.Abs(a[i*n+j])
		}
		if sum > norm || math.IsNaN(sum) {
			norm = sum
		}
	}
	return norm
}

// zinvnorm1 is the exact 1-norm of A^-1, built column by column from the
// factorization.
func zinvnorm1(n int, lu []complex128, ipiv []int) float64 {
	var norm float64
	col := make([]complex128, n)
	for j := 0; j < n; j++ {
		for i := range col {
			col[i] = 0
		}
		col[j] = 1
		zgetrs(n, lu, ipiv, col)
		var sum float64
		for _, v := range col {
			sum += Complex{}.Abs(v)
		}
		if sum > norm || math.IsNaN(sum) {
			norm = sum
		}
	}
	return norm
}
