package optimizations

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestSGDUpdateInPlace(t *testing.T) {
	p := mat.NewDense(2, 2, []float64{1, 2, 3, 4})
	g := mat.NewDense(2, 2, []float64{0.5, -0.5, 1, 0})
	SGDUpdateInPlace(p, g, 0.1)
	want := mat.NewDense(2, 2, []float64{0.95, 2.05, 2.9, 4})
	if !mat.EqualApprox(p, want, 1e-12) {
		t.Fatalf("p = %v, want %v", mat.Formatted(p), mat.Formatted(want))
	}
}

func TestSGDUpdateVecInPlace(t *testing.T) {
	p := []float64{1, 1}
	SGDUpdateVecInPlace(p, []float64{0.25, -0.25}, 0.2)
	if math.Abs(p[0]-0.95) > 1e-12 || math.Abs(p[1]-1.05) > 1e-12 {
		t.Fatalf("p = %v, want [0.95 1.05]", p)
	}
}

func TestSGDShapeMismatchPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	SGDUpdateInPlace(mat.NewDense(2, 2, nil), mat.NewDense(2, 3, nil), 0.1)
}
