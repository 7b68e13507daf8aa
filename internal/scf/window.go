// window.go --  This file is part of goHF project.
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

// Package scf holds the driver-side pieces around DIIS: the iterate
// history, the commutator error metric and the mixing of stored states.
package scf

import (
	"golang.org/x/exp/slices"

	"example.com/godiis/diis"
)

// Window is the DIIS history of an SCF run. Each entry is the set of
// states of one iteration (e.g. one Fock matrix per spin) together with
// their error metrics. At most nKeep entries are kept, the oldest go first.
type Window[T diis.Scalar] struct {
	nKeep   int
	states  [][][]T
	metrics [][][]T
}

func NewWindow[T diis.Scalar](nKeep int) *Window[T] {
	if nKeep < 1 {
		panic("scf: window must keep at least one entry")
	}
	return &Window[T]{nKeep: nKeep}
}

// Push copies states and metrics into the window, evicting the oldest
// entry when full. states may be nil when only the coefficients are
// wanted. All metrics of an entry must have the same length, and every
// entry the shape of the previous one; Push panics with diis.ErrShape
// otherwise.
func (w *Window[T]) Push(states, metrics [][]T) {
	if len(metrics) == 0 {
		panic("scf: no error metrics")
	}
	for _, m := range metrics {
		if len(m) != len(metrics[0]) {
			panic(diis.ErrShape)
		}
	}
	if len(w.metrics) > 0 {
		if !sameShape(w.metrics[len(w.metrics)-1], metrics) || !sameShape(w.Latest(), states) {
			panic(diis.ErrShape)
		}
	}
	if len(w.metrics) == w.nKeep {
		w.Drop()
	}
	w.states = append(w.states, clone2(states))
	w.metrics = append(w.metrics, clone2(metrics))
}

func sameShape[T any](a, b [][]T) bool {
	return slices.EqualFunc(a, b, func(x, y []T) bool { return len(x) == len(y) })
}

// Drop discards the oldest entry.
func (w *Window[T]) Drop() {
	if len(w.metrics) == 0 {
		return
	}
	w.states = slices.Delete(w.states, 0, 1)
	w.metrics = slices.Delete(w.metrics, 0, 1)
}

func (w *Window[T]) Reset() {
	w.states = w.states[:0]
	w.metrics = w.metrics[:0]
}

func (w *Window[T]) Len() int { return len(w.metrics) }

func (w *Window[T]) Cap() int { return w.nKeep }

// Metrics returns the error metrics indexed [entry][matrix], oldest first.
// The result aliases the window and is valid until the next Push or Drop.
func (w *Window[T]) Metrics() [][][]T { return w.metrics }

// States is Metrics for the stored states.
func (w *Window[T]) States() [][][]T { return w.states }

// Latest returns the newest states, or nil.
func (w *Window[T]) Latest() [][]T {
	if len(w.states) == 0 {
		return nil
	}
	return w.states[len(w.states)-1]
}

func clone2[T any](m [][]T) [][]T {
	if m == nil {
		return nil
	}
	res := make([][]T, len(m))
	for i := range m {
		res[i] = slices.Clone(m[i])
	}
	return res
}
