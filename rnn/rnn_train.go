package rnn

import (
	"fmt"
	"math"

	"github.com/manningwu07/CharRNN/optimizations"
	"github.com/manningwu07/CharRNN/utils"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// GradClip bounds every gradient element before the update.
const GradClip = 0.25

// Gradients has one accumulator per parameter, same shapes as the model.
type Gradients struct {
	E, Whh, Why *mat.Dense
	Bh, By      []float64
}

func (m *Model) newGradients() *Gradients {
	return &Gradients{
		E:   utils.ZerosMatrix(m.VocabSize, m.Hidden),
		Whh: utils.ZerosMatrix(m.Hidden, m.Hidden),
		Why: utils.ZerosMatrix(m.Hidden, m.VocabSize),
		Bh:  utils.ZerosVector(m.Hidden),
		By:  utils.ZerosVector(m.VocabSize),
	}
}

// Clip clamps every tensor independently to [-th, th].
func (g *Gradients) Clip(th float64) {
	utils.ClipMatrix(g.E, th)
	utils.ClipMatrix(g.Whh, th)
	utils.ClipMatrix(g.Why, th)
	utils.ClipVector(g.Bh, th)
	utils.ClipVector(g.By, th)
}

// MaxAbs is the largest absolute element over all tensors.
func (g *Gradients) MaxAbs() float64 {
	mx := max(maxAbs(g.Bh), maxAbs(g.By))
	for _, d := range []*mat.Dense{g.E, g.Whh, g.Why} {
		r, _ := d.Dims()
		for i := 0; i < r; i++ {
			mx = max(mx, maxAbs(d.RawRowView(i)))
		}
	}
	return mx
}

func maxAbs(v []float64) float64 {
	mx := 0.0
	for _, x := range v {
		mx = max(mx, math.Abs(x))
	}
	return mx
}

func (m *Model) checkSlice(inputs, targets []int) {
	if len(inputs) == 0 || len(inputs) != len(targets) {
		panic(fmt.Sprintf("rnn: TrainStep needs equal non-empty slices, got %d inputs and %d targets", len(inputs), len(targets)))
	}
	for i := range inputs {
		m.checkID(inputs[i])
		m.checkID(targets[i])
	}
}

// backprop runs the forward pass and BPTT over one slice. It returns the raw
// (unclipped) gradients of the summed cross-entropy and that summed loss.
func (m *Model) backprop(inputs, targets []int) (*Gradients, float64) {
	hs, ps := m.Forward(inputs, nil)

	loss := 0.0
	for t, p := range ps {
		loss += utils.CrossEntropy(p, targets[t])
	}

	g := m.newGradients()
	dhNext := utils.ZerosVector(m.Hidden)
	h0 := utils.ZerosVector(m.Hidden)

	for t := len(inputs) - 1; t >= 0; t-- {
		h := hs[t]

		// softmax + cross-entropy: dL/dlogits = p - onehot(target)
		dlogits := append([]float64(nil), ps[t]...)
		dlogits[targets[t]] -= 1.0

		utils.Outer(g.Why, h, dlogits)
		floats.Add(g.By, dlogits)

		// dh = Why · dlogits + dh_next
		dh := utils.MatVec(m.Why, dlogits)
		floats.Add(dh, dhNext)

		// back through tanh, using the activated h
		dpre := utils.DTanh(h)
		floats.Mul(dpre, dh)

		floats.Add(g.Bh, dpre)
		hPrev := h0
		if t > 0 {
			hPrev = hs[t-1]
		}
		utils.Outer(g.Whh, hPrev, dpre)
		floats.Add(g.E.RawRowView(inputs[t]), dpre)

		// dh_prev = Whh · dpre
		dhNext = utils.MatVec(m.Whh, dpre)
	}
	return g, loss
}

func (m *Model) apply(g *Gradients, lr float64) {
	optimizations.SGDUpdateInPlace(m.Why, g.Why, lr)
	optimizations.SGDUpdateInPlace(m.Whh, g.Whh, lr)
	optimizations.SGDUpdateInPlace(m.E, g.E, lr)
	optimizations.SGDUpdateVecInPlace(m.Bh, g.Bh, lr)
	optimizations.SGDUpdateVecInPlace(m.By, g.By, lr)
}

// TrainStep does one teacher-forced update on (inputs, targets): forward,
// BPTT, per-element clipping to ±GradClip and plain SGD with rate lr. It
// returns the mean per-token loss measured before the update.
func (m *Model) TrainStep(inputs, targets []int, lr float64) float64 {
	m.checkSlice(inputs, targets)
	g, loss := m.backprop(inputs, targets)
	g.Clip(GradClip)
	m.apply(g, lr)
	m.LR = lr
	assertFinite(m)
	return loss / float64(len(inputs))
}
