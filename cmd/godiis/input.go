// input.go --  This file is part of goHF project.
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
package main

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/mat"

	"example.com/godiis/diis"
	"example.com/godiis/internal/scf"
)

// Input is the content of an input file.
//
//	type real|complex
//	nprocs 4
//	overlap 2
//	  1   0.4
//	  0.4 1
//	end
//	slot
//	  metric  1 0 0 1
//	  state   0.3 0.1 0.1 0.2
//	end
//	slot
//	  fock    -1 0.2 0.2 0.5
//	  density  1 0   0   0
//	end
//
// Every slot is one iteration of the history, oldest first. A fock/density
// pair (real input only, needs overlap) stands for the commutator metric
// of the pair with the fock matrix as its state.
type Input struct {
	Complex bool
	NProcs  int
	Overlap *mat.SymDense
	Slots   []Slot
}

// Slot holds the raw number fields of one iteration.
type Slot struct {
	Line      int
	Metrics   [][]string
	States    [][]string
	Focks     [][]string
	Densities [][]string
}

func ReadFileLines(fname string) ([]string, error) {
	var result []string

	file, err := os.Open(fname)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		result = append(result, scanner.Text())
	}
	return result, scanner.Err()
}

func processInput(data []string) (*Input, error) {
	inp := &Input{}
	for i := 0; i < len(data); i++ {
		words := strings.Fields(data[i])
		if len(words) == 0 || strings.HasPrefix(words[0], "#") {
			continue
		}
		switch strings.ToLower(words[0]) {
		case "type":
			if len(words) < 2 {
				return nil, fmt.Errorf("line %d: type needs a value", i+1)
			}
			switch strings.ToLower(words[1]) {
			case "real":
				inp.Complex = false
			case "complex":
				inp.Complex = true
			default:
				return nil, fmt.Errorf("line %d: unknown type %q", i+1, words[1])
			}
		case "nprocs":
			if len(words) < 2 {
				return nil, fmt.Errorf("line %d: nprocs needs a value", i+1)
			}
			n, err := strconv.Atoi(words[1])
			if err != nil || n < 1 {
				return nil, fmt.Errorf("line %d: bad nprocs %q", i+1, words[1])
			}
			inp.NProcs = n
		case "overlap":
			end, err := findBlockEnd(i, data, "overlap")
			if err != nil {
				return nil, err
			}
			S, err := parseOverlap(words, data[i+1:end], i+1)
			if err != nil {
				return nil, err
			}
			inp.Overlap = S
			i = end
		case "slot":
			end, err := findBlockEnd(i, data, "slot")
			if err != nil {
				return nil, err
			}
			slot, err := parseSlot(data[i+1:end], i+1)
			if err != nil {
				return nil, err
			}
			inp.Slots = append(inp.Slots, slot)
			i = end
		default:
			return nil, fmt.Errorf("line %d: unknown keyword %q", i+1, words[0])
		}
	}
	if len(inp.Slots) == 0 {
		return nil, fmt.Errorf("no slot blocks found")
	}
	return inp, nil
}

func findBlockEnd(n int, data []string, bname string) (int, error) {
	for i := n + 1; i < len(data); i++ {
		words := strings.Fields(data[i])
		if len(words) > 0 && strings.ToLower(words[0]) == "end" {
			return i, nil
		}
	}
	return 0, fmt.Errorf("line %d: no end of block %s", n+1, bname)
}

func parseSlot(lines []string, start int) (Slot, error) {
	slot := Slot{Line: start}
	for _, line := range lines {
		words := strings.Fields(line)
		if len(words) == 0 || strings.HasPrefix(words[0], "#") {
			continue
		}
		if len(words) < 2 {
			return slot, fmt.Errorf("slot at line %d: %q has no numbers", start, words[0])
		}
		switch strings.ToLower(words[0]) {
		case "metric":
			slot.Metrics = append(slot.Metrics, words[1:])
		case "state":
			slot.States = append(slot.States, words[1:])
		case "fock":
			slot.Focks = append(slot.Focks, words[1:])
		case "density":
			slot.Densities = append(slot.Densities, words[1:])
		default:
			return slot, fmt.Errorf("slot at line %d: unknown entry %q", start, words[0])
		}
	}
	if len(slot.Focks) != len(slot.Densities) {
		return slot, fmt.Errorf("slot at line %d: %d fock but %d density entries", start, len(slot.Focks), len(slot.Densities))
	}
	if len(slot.Metrics)+len(slot.Focks) == 0 {
		return slot, fmt.Errorf("slot at line %d: no error metrics", start)
	}
	return slot, nil
}

func parseOverlap(header []string, rows []string, start int) (*mat.SymDense, error) {
	if len(header) < 2 {
		return nil, fmt.Errorf("line %d: overlap needs a dimension", start)
	}
	n, err := strconv.Atoi(header[1])
	if err != nil || n < 1 {
		return nil, fmt.Errorf("line %d: bad overlap dimension %q", start, header[1])
	}
	var data []float64
	for _, row := range rows {
		vals, err := parseReals(strings.Fields(row))
		if err != nil {
			return nil, fmt.Errorf("overlap at line %d: %w", start, err)
		}
		data = append(data, vals...)
	}
	if len(data) != n*n {
		return nil, fmt.Errorf("overlap at line %d: want %d numbers, have %d", start, n*n, len(data))
	}
	S := mat.NewSymDense(n, data)
	for i := 0; i < n; i++ {
		for j := 0; j < i; j++ {
			if math.Abs(data[i*n+j]-data[j*n+i]) > 1e-12 {
				return nil, fmt.Errorf("overlap at line %d: not symmetric", start)
			}
		}
	}
	return S, nil
}

func parseReals(words []string) ([]float64, error) {
	res := make([]float64, len(words))
	for i, w := range words {
		v, err := strconv.ParseFloat(w, 64)
		if err != nil {
			return nil, err
		}
		res[i] = v
	}
	return res, nil
}

func parseComplexes(words []string) ([]complex128, error) {
	res := make([]complex128, len(words))
	for i, w := range words {
		v, err := strconv.ParseComplex(w, 128)
		if err != nil {
			return nil, err
		}
		res[i] = v
	}
	return res, nil
}

func (inp *Input) realWindow() (*scf.Window[float64], error) {
	var X *mat.Dense
	if inp.Overlap != nil {
		var ok bool
		if X, ok = scf.SqrtInverse(inp.Overlap); !ok {
			return nil, fmt.Errorf("overlap eigendecomposition failed")
		}
	}

	w := scf.NewWindow[float64](len(inp.Slots))
	for _, slot := range inp.Slots {
		metrics, err := parseAll(slot.Metrics, parseReals)
		if err != nil {
			return nil, fmt.Errorf("slot at line %d: %w", slot.Line, err)
		}
		states, err := parseAll(slot.States, parseReals)
		if err != nil {
			return nil, fmt.Errorf("slot at line %d: %w", slot.Line, err)
		}
		for k := range slot.Focks {
			if X == nil {
				return nil, fmt.Errorf("slot at line %d: fock/density entries need an overlap block", slot.Line)
			}
			n := inp.Overlap.SymmetricDim()
			F, err := parseSquare(slot.Focks[k], n)
			if err != nil {
				return nil, fmt.Errorf("slot at line %d: fock: %w", slot.Line, err)
			}
			D, err := parseSquare(slot.Densities[k], n)
			if err != nil {
				return nil, fmt.Errorf("slot at line %d: density: %w", slot.Line, err)
			}
			metrics = append(metrics, scf.Residual(F, D, inp.Overlap, X).RawMatrix().Data)
			states = append(states, F.RawMatrix().Data)
		}
		if err := pushChecked(w, states, metrics); err != nil {
			return nil, fmt.Errorf("slot at line %d: %w", slot.Line, err)
		}
	}
	return w, nil
}

func (inp *Input) complexWindow() (*scf.Window[complex128], error) {
	w := scf.NewWindow[complex128](len(inp.Slots))
	for _, slot := range inp.Slots {
		if len(slot.Focks) > 0 {
			return nil, fmt.Errorf("slot at line %d: fock/density entries are real only", slot.Line)
		}
		metrics, err := parseAll(slot.Metrics, parseComplexes)
		if err != nil {
			return nil, fmt.Errorf("slot at line %d: %w", slot.Line, err)
		}
		states, err := parseAll(slot.States, parseComplexes)
		if err != nil {
			return nil, fmt.Errorf("slot at line %d: %w", slot.Line, err)
		}
		if err := pushChecked(w, states, metrics); err != nil {
			return nil, fmt.Errorf("slot at line %d: %w", slot.Line, err)
		}
	}
	return w, nil
}

func parseSquare(words []string, n int) (*mat.Dense, error) {
	vals, err := parseReals(words)
	if err != nil {
		return nil, err
	}
	if len(vals) != n*n {
		return nil, fmt.Errorf("want %d numbers, have %d", n*n, len(vals))
	}
	return mat.NewDense(n, n, vals), nil
}

func parseAll[T diis.Scalar](rows [][]string, parse func([]string) ([]T, error)) ([][]T, error) {
	var res [][]T
	for _, row := range rows {
		v, err := parse(row)
		if err != nil {
			return nil, err
		}
		res = append(res, v)
	}
	return res, nil
}

// pushChecked turns the shape rules of the input into errors before the
// window would panic on them.
func pushChecked[T diis.Scalar](w *scf.Window[T], states, metrics [][]T) error {
	for _, m := range metrics[1:] {
		if len(m) != len(metrics[0]) {
			return fmt.Errorf("metrics of different length")
		}
	}
	if w.Len() > 0 {
		prev := w.Metrics()[w.Len()-1]
		if len(prev) != len(metrics) || len(prev[0]) != len(metrics[0]) {
			return fmt.Errorf("metric shape differs from the previous slot")
		}
		prevStates := w.Latest()
		if len(prevStates) != len(states) || !slices.EqualFunc(prevStates, states, func(a, b []T) bool { return len(a) == len(b) }) {
			return fmt.Errorf("state shape differs from the previous slot")
		}
	}
	w.Push(states, metrics)
	return nil
}
