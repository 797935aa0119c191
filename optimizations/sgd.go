package optimizations

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// SGDUpdateInPlace applies p -= lr * g. g is scaled in place and must not be
// reused afterwards.
func SGDUpdateInPlace(p, g *mat.Dense, lr float64) {
	pr, pc := p.Dims()
	if gr, gc := g.Dims(); gr != pr || gc != pc {
		panic("SGDUpdateInPlace: grad shape mismatch")
	}
	g.Scale(lr, g)
	p.Sub(p, g)
}

// SGDUpdateVecInPlace applies p -= lr * g for bias vectors.
func SGDUpdateVecInPlace(p, g []float64, lr float64) {
	if len(p) != len(g) {
		panic("SGDUpdateVecInPlace: grad length mismatch")
	}
	floats.AddScaled(p, -lr, g)
}
