// report.go --  This file is part of goHF project.
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
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"

	"example.com/godiis/diis"
	"example.com/godiis/internal/scf"
)

func run(inp *Input, cfg config, out io.Writer, logger logrus.FieldLogger) (bool, error) {
	settings := &diis.Settings{
		CondTol: cfg.CondTol,
		Workers: cfg.NProcs,
		Logger:  logger,
	}
	if inp.Complex {
		w, err := inp.complexWindow()
		if err != nil {
			return false, err
		}
		res, ok := scf.Accelerate[diis.Complex](w, cfg.MinWindow, settings)
		report(out, res, ok, printCB)
		return ok, nil
	}
	w, err := inp.realWindow()
	if err != nil {
		return false, err
	}
	res, ok := scf.Accelerate[diis.Real](w, cfg.MinWindow, settings)
	report(out, res, ok, printB)
	return ok, nil
}

func printOutputDelimiter(out io.Writer) {
	fmt.Fprintln(out, strings.Repeat("-", 70))
}

func report[T diis.Scalar](out io.Writer, res scf.Result[T], ok bool, printB func(io.Writer, []T)) {
	fmt.Fprintln(out, "DIIS extrapolation")
	printOutputDelimiter(out)
	if res.B != nil {
		fmt.Fprintln(out, "B matrix:")
		printB(out, res.B)
	}
	switch {
	case !ok && res.Err == nil:
		fmt.Fprintln(out, "History shorter than the minimum window, no extrapolation.")
	case !ok:
		fmt.Fprintln(out, "Extrapolation failed:", res.Err)
	default:
		fmt.Fprintf(out, "Slots used: %d\n", res.Used)
		fmt.Fprintln(out, "Coefficients:")
		var sum T
		for i, c := range res.Coeffs {
			fmt.Fprintf(out, "    c[%d] = %.10g\n", i, c)
			sum += c
		}
		fmt.Fprintf(out, "Sum of coefficients = %.10g\n", sum)
		fmt.Fprintf(out, "Lagrange multiplier = %.10g\n", res.Lambda)
	}
	for m, s := range res.Mixed {
		fmt.Fprintf(out, "State %d:\n", m+1)
		for _, v := range s {
			fmt.Fprintf(out, "    %.10g\n", v)
		}
	}
	printOutputDelimiter(out)
}

func printB(out io.Writer, b []float64) {
	n := sqrtInt(len(b))
	fa := mat.Formatted(mat.NewDense(n, n, b), mat.Prefix("    "), mat.Squeeze())
	fmt.Fprintf(out, "    %.8f\n", fa)
}

func printCB(out io.Writer, b []complex128) {
	n := sqrtInt(len(b))
	for i := 0; i < n; i++ {
		fmt.Fprint(out, "   ")
		for _, v := range b[i*n : (i+1)*n] {
			fmt.Fprintf(out, " %.8f", v)
		}
		fmt.Fprintln(out)
	}
}

func sqrtInt(l int) int {
	n := 0
	for n*n < l {
		n++
	}
	return n
}
