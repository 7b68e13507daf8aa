package scf

import (
	"math"
	"testing"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"example.com/godiis/diis"
)

func TestWindowEvictsOldest(t *testing.T) {
	w := NewWindow[float64](2)
	for i := 1; i <= 3; i++ {
		v := float64(i)
		w.Push([][]float64{{v, v}}, [][]float64{{v}})
	}
	require.Equal(t, 2, w.Len())
	assert.Equal(t, 2, w.Cap())
	assert.Equal(t, [][][]float64{{{2}}, {{3}}}, w.Metrics())
	assert.Equal(t, [][]float64{{3, 3}}, w.Latest())

	w.Drop()
	assert.Equal(t, [][][]float64{{{3}}}, w.Metrics())
	w.Reset()
	assert.Zero(t, w.Len())
	assert.Nil(t, w.Latest())
	w.Drop()
	assert.Zero(t, w.Len())
}

func TestWindowCopiesInput(t *testing.T) {
	w := NewWindow[float64](3)
	metric := [][]float64{{1, 2}}
	w.Push(nil, metric)
	metric[0][0] = 100
	assert.Equal(t, 1.0, w.Metrics()[0][0][0])
	assert.Nil(t, w.Latest())
}

func TestWindowRejectsShapeChange(t *testing.T) {
	w := NewWindow[complex128](3)
	w.Push(nil, [][]complex128{{1, 2}})
	assert.PanicsWithValue(t, diis.ErrShape, func() { w.Push(nil, [][]complex128{{1, 2, 3}}) })
	assert.PanicsWithValue(t, diis.ErrShape, func() { w.Push(nil, [][]complex128{{1, 2}, {3, 4}}) })
	assert.Panics(t, func() { NewWindow[float64](0) })
}

func TestWindowRejectsUnevenEntries(t *testing.T) {
	w := NewWindow[float64](3)
	assert.PanicsWithValue(t, diis.ErrShape, func() { w.Push(nil, [][]float64{{1, 0}, {0, 0, 5}}) })
	assert.Zero(t, w.Len())

	w.Push([][]float64{{1}, {2, 3}}, [][]float64{{1, 0}, {0, 0}})
	assert.PanicsWithValue(t, diis.ErrShape, func() {
		w.Push([][]float64{{1}, {2, 3}}, [][]float64{{0, 1}, {0, 0, 5}})
	})
	assert.PanicsWithValue(t, diis.ErrShape, func() {
		w.Push([][]float64{{1}, {2}}, [][]float64{{0, 1}, {0, 0}})
	})
	assert.PanicsWithValue(t, diis.ErrShape, func() {
		w.Push(nil, [][]float64{{0, 1}, {0, 0}})
	})
	assert.Equal(t, 1, w.Len())

	w.Push([][]float64{{4}, {5, 6}}, [][]float64{{0, 1}, {0, 0}})
	res, ok := Accelerate[diis.Real](w, 2, nil)
	require.True(t, ok)
	assert.Equal(t, 2, res.Used)
}

func TestMix(t *testing.T) {
	states := [][][]float64{
		{{1, 2}, {0}},
		{{3, 4}, {1}},
	}
	got := Mix([]float64{0.25, 0.75}, states)
	assert.Equal(t, [][]float64{{2.5, 3.5}, {0.75}}, got)
	assert.Panics(t, func() { Mix([]float64{1}, states) })
	assert.Nil(t, Mix[float64](nil, nil))
}

func TestResidualVanishesForCommutingMatrices(t *testing.T) {
	F := mat.NewDense(2, 2, []float64{-1, 0, 0, 0.5})
	D := mat.NewDense(2, 2, []float64{1, 0, 0, 0})
	I := mat.NewDiagDense(2, []float64{1, 1})
	r := Residual(F, D, I, I)
	assert.Equal(t, 0.0, RMS(r))
}

func TestResidualIsAntisymmetric(t *testing.T) {
	F := mat.NewDense(2, 2, []float64{-1, 0.3, 0.3, 0.5})
	D := mat.NewDense(2, 2, []float64{1, 0, 0, 0})
	I := mat.NewDiagDense(2, []float64{1, 1})
	r := Residual(F, D, I, I)
	// FD - DF = [[0, -0.3], [0.3, 0]]
	assert.InDelta(t, -0.3, r.At(0, 1), 1e-15)
	assert.InDelta(t, 0.3, r.At(1, 0), 1e-15)
	var sum mat.Dense
	sum.Add(r, r.T())
	assert.Equal(t, 0.0, mat.Norm(&sum, 1))
	assert.InDelta(t, math.Sqrt(0.09/2), RMS(r), 1e-15)
}

func TestSqrtInverse(t *testing.T) {
	S := mat.NewSymDense(2, []float64{1, 0.4, 0.4, 1})
	X, ok := SqrtInverse(S)
	require.True(t, ok)
	// X S X = I
	var xsx mat.Dense
	xsx.Mul(X, S)
	xsx.Mul(&xsx, X)
	assert.True(t, mat.EqualApprox(&xsx, mat.NewDiagDense(2, []float64{1, 1}), 1e-12))

	// No density, no commutator.
	F := mat.NewDense(2, 2, []float64{-1, 0.2, 0.2, 0.5})
	r := Residual(F, mat.NewDense(2, 2, nil), S, X)
	assert.Zero(t, RMS(r))
}

func TestAccelerateEmptyWindow(t *testing.T) {
	_, ok := Accelerate[diis.Real](NewWindow[float64](3), 2, nil)
	assert.False(t, ok)
}

func TestAccelerateDropsDependentEntries(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	w := NewWindow[float64](4)
	w.Push([][]float64{{10}}, [][]float64{{1, 0}})
	w.Push([][]float64{{20}}, [][]float64{{1, 0}})
	w.Push([][]float64{{30}}, [][]float64{{0, 1}})

	res, ok := Accelerate[diis.Real](w, 2, &diis.Settings{Logger: logger})
	require.True(t, ok)
	assert.Equal(t, 2, res.Used)
	assert.Equal(t, 2, w.Len())
	require.Len(t, res.Coeffs, 2)
	assert.InDelta(t, 0.5, res.Coeffs[0], 1e-14)
	assert.InDelta(t, 25, res.Mixed[0][0], 1e-12)
	assert.InDelta(t, 0.5, res.Lambda, 1e-14)
	// One warning from the extrapolator, one note from the retry.
	assert.Len(t, hook.AllEntries(), 2)
}

func TestAccelerateKeepsSmallIndependentResiduals(t *testing.T) {
	w := NewWindow[float64](3)
	w.Push([][]float64{{1}}, [][]float64{{1e-1, 0}})
	w.Push([][]float64{{2}}, [][]float64{{0, 1e-10}})

	res, ok := Accelerate[diis.Real](w, 2, nil)
	require.True(t, ok)
	assert.Equal(t, 2, res.Used)
	assert.Equal(t, 2, w.Len())
	assert.InDelta(t, 1, res.Coeffs[1], 1e-15)
	assert.InDelta(t, 2, res.Mixed[0][0], 1e-15)
}

func TestAccelerateFallsBackToLatest(t *testing.T) {
	w := NewWindow[complex128](3)
	w.Push([][]complex128{{1}}, [][]complex128{{1i, 0}})
	w.Push([][]complex128{{2}}, [][]complex128{{1i, 0}})

	res, ok := Accelerate[diis.Complex](w, 2, nil)
	assert.False(t, ok)
	assert.ErrorIs(t, res.Err, diis.ErrSingular)
	assert.Equal(t, [][]complex128{{2}}, res.Mixed)
	assert.Nil(t, res.Coeffs)
	assert.Equal(t, 1, w.Len())
}

// A linear fixed-point problem x = Gx + c whose plain iteration contracts
// by 0.95 per step. Pulay mixing of the iterates solves it in a handful of
// steps.
func TestAccelerateConvergesLinearFixedPoint(t *testing.T) {
	G := mat.NewDense(4, 4, []float64{
		0.95, 0, 0, 0,
		0, 0.5, 0.1, 0,
		0, 0.1, -0.6, 0,
		0, 0, 0, 0.3,
	})
	c := mat.NewVecDense(4, []float64{1, -2, 0.5, 3})
	g := func(x []float64) []float64 {
		var y mat.VecDense
		y.MulVec(G, mat.NewVecDense(4, x))
		y.AddVec(&y, c)
		return y.RawVector().Data
	}

	run := func(accelerate bool) int {
		w := NewWindow[float64](6)
		x := make([]float64, 4)
		for it := 1; it <= 500; it++ {
			gx := g(x)
			r := make([]float64, 4)
			floats.SubTo(r, gx, x)
			if floats.Norm(r, 2) < 1e-10 {
				return it
			}
			if !accelerate {
				x = gx
				continue
			}
			w.Push([][]float64{gx}, [][]float64{r})
			res, _ := Accelerate[diis.Real](w, 2, nil)
			x = res.Mixed[0]
		}
		return math.MaxInt
	}

	plain := run(false)
	pulay := run(true)
	assert.Greater(t, plain, 200)
	assert.Less(t, pulay, 40)
}
