// inner.go --  This file is part of goHF project.
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

// Inner returns sum_k conj(x[k]) * y[k] for k = 0..n-1, where x[k] and y[k]
// are picked with BLAS increments incX and incY. A negative increment walks
// the buffer backwards from its (n-1)*|inc| element, as in BLAS.
//
// The sum is accumulated strictly in order of k, so the result is
// reproducible bit for bit.
//
// Inner panics if an increment is zero or a buffer is too short for n
// elements at its increment.
func Inner[F Field[T], T Scalar](n int, x []T, incX int, y []T, incY int) T {
	var f F
	var sum T
	if n <= 0 {
		return sum
	}
	if incX == 0 || incY == 0 {
		panic(ErrZeroInc)
	}
	if len(x) <= (n-1)*abs(incX) || len(y) <= (n-1)*abs(incY) {
		panic(ErrShape)
	}

	if incX == 1 && incY == 1 {
		y = y[:n]
		for k, v := range x[:n] {
			sum += f.Conj(v) * y[k]
		}
		return sum
	}

	var ix, iy int
	if incX < 0 {
		ix = (1 - n) * incX
	}
	if incY < 0 {
		iy = (1 - n) * incY
	}
	for k := 0; k < n; k++ {
		sum += f.Conj(x[ix]) * y[iy]
		ix += incX
		iy += incY
	}
	return sum
}

func abs(i int) int {
	if i < 0 {
		return -i
	}
	return i
}
