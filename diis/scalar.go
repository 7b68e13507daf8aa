// scalar.go --  This file is part of goHF project.
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
	"math"
	"math/cmplx"

	"golang.org/x/exp/constraints"
)

// Scalar is the element type of error-metric buffers.
type Scalar interface {
	constraints.Float | constraints.Complex
}

// Field supplies the arithmetic of T that Go operators do not cover,
// together with the dense solver used for T.
type Field[T Scalar] interface {
	Conj(x T) T
	Abs(x T) float64
	Scale(x T, s float64) T
	Solver() Solver[T]
}

// Real is the Field of float64.
type Real struct{}

func (Real) Conj(x float64) float64 { return x }

func (Real) Abs(x float64) float64 { return math.Abs(x) }

func (Real) Scale(x, s float64) float64 { return x * s }

func (Real) Solver() Solver[float64] { return LU{} }

// Complex is the Field of complex128.
type Complex struct{}

func (Complex) Conj(x complex128) complex128 { return cmplx.Conj(x) }

func (Complex) Abs(x complex128) float64 { return cmplx.Abs(x) }

func (Complex) Scale(x complex128, s float64) complex128 { return x * complex(s, 0) }

func (Complex) Solver() Solver[complex128] { return CLU{} }
