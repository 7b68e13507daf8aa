// errors.go --  This file is part of goHF project.
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

import "errors"

var (
	// ErrSingular is reported by Extrapolate when the bordered B matrix or
	// its Gram block cannot be solved to the configured tolerance. Linearly
	// dependent error metrics in the history are the usual cause.
	ErrSingular = errors.New("diis: extrapolation matrix is singular")

	// ErrShape is the panic value for inconsistent history dimensions and
	// short buffers.
	ErrShape = errors.New("diis: dimension mismatch")

	// ErrZeroLength is the panic value for a zero nExtrap, nMat or oSize.
	ErrZeroLength = errors.New("diis: zero length in dimension")

	// ErrZeroInc is the panic value for a zero stride.
	ErrZeroInc = errors.New("diis: zero increment")

	// ErrNotInitialized is the panic value for an Extrapolator that was not
	// built by New.
	ErrNotInitialized = errors.New("diis: extrapolator not initialized")
)
