// residual.go --  This file is part of goHF project.
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
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Residual returns the DIIS error metric of an iterate,
//
//	X (F D S - S D F) X,
//
// with F the Fock matrix, D the density, S the overlap and X = S^-1/2.
// It vanishes at self-consistency.
func Residual(F, D, S, X mat.Matrix) *mat.Dense {
	var fds, sdf, r mat.Dense
	fds.Mul(F, D)
	fds.Mul(&fds, S)
	sdf.Mul(S, D)
	sdf.Mul(&sdf, F)
	fds.Sub(&fds, &sdf)
	r.Mul(X, &fds)
	r.Mul(&r, X)
	return &r
}

// RMS is the root mean square of the elements of r.
func RMS(r *mat.Dense) float64 {
	sq := mat.DenseCopyOf(r)
	sq.MulElem(sq, sq)
	return math.Sqrt(stat.Mean(sq.RawMatrix().Data, nil))
}

// SqrtInverse returns S^-1/2 for the symmetric positive definite S. It
// returns false if the eigendecomposition fails.
func SqrtInverse(S mat.Symmetric) (*mat.Dense, bool) {
	n := S.SymmetricDim()
	var eigsym mat.EigenSym
	if ok := eigsym.Factorize(S, true); !ok {
		return nil, false
	}
	var ev mat.Dense
	eigsym.VectorsTo(&ev)
	vals := eigsym.Values(nil)
	for i := range vals {
		vals[i] = 1 / math.Sqrt(vals[i])
	}
	var res mat.Dense
	res.Mul(&ev, mat.NewDiagDense(n, vals))
	res.Mul(&res, ev.T())
	return &res, true
}
