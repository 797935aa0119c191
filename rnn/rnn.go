package rnn

import (
	"fmt"
	"math/rand/v2"
	"slices"

	"github.com/manningwu07/CharRNN/utils"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// One-layer Elman RNN over symbol ids:
//
//	h_t = tanh( E[x_t] + h_{t-1}ᵗ·Whh + bh )
//	p_t = softmax( h_tᵗ·Why + by )
//
// Forward, BPTT and the SGD update are written out by hand in rnn_train.go.

const (
	DefaultSeed = 42
	InitScale   = 0.08
	// PrimeLimit bounds how many trailing seed ids warm up the hidden state.
	PrimeLimit = 64
)

// Tokenizer is what generation needs from a tokenizer.
type Tokenizer interface {
	Encode(text string) []int
	Decode(ids []int) string
}

type Model struct {
	VocabSize int
	Hidden    int

	E   *mat.Dense // (VocabSize x Hidden), row i embeds symbol i
	Whh *mat.Dense // (Hidden x Hidden)
	Why *mat.Dense // (Hidden x VocabSize)
	Bh  []float64  // (Hidden)
	By  []float64  // (VocabSize)

	// LR is the last learning rate applied by TrainStep. It is persisted with
	// the weights so a resumed run knows where the schedule was.
	LR float64

	rng *rand.Rand
}

func newRNG(seed int64) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(seed), 0x9e3779b97f4a7c15))
}

// New builds a freshly initialised model. The same seed always yields the
// same parameters.
func New(vocabSize, hidden int, lr float64, seed int64) *Model {
	if vocabSize <= 0 || hidden <= 0 {
		panic(fmt.Sprintf("rnn.New: vocabSize=%d hidden=%d must be > 0", vocabSize, hidden))
	}
	rng := newRNG(seed)
	return &Model{
		VocabSize: vocabSize,
		Hidden:    hidden,
		E:         utils.RandomMatrix(rng, vocabSize, hidden, InitScale),
		Whh:       utils.RandomMatrix(rng, hidden, hidden, InitScale),
		Why:       utils.RandomMatrix(rng, hidden, vocabSize, InitScale),
		Bh:        utils.ZerosVector(hidden),
		By:        utils.ZerosVector(vocabSize),
		LR:        lr,
		rng:       rng,
	}
}

// Reseed resets the sampling RNG used by Generate.
func (m *Model) Reseed(seed int64) {
	m.rng = newRNG(seed)
}

func (m *Model) Dims() (vocabSize, hidden int) {
	return m.VocabSize, m.Hidden
}

// Clone returns a deep copy of the parameters with its own sampling RNG.
func (m *Model) Clone() *Model {
	return &Model{
		VocabSize: m.VocabSize,
		Hidden:    m.Hidden,
		E:         mat.DenseCopyOf(m.E),
		Whh:       mat.DenseCopyOf(m.Whh),
		Why:       mat.DenseCopyOf(m.Why),
		Bh:        slices.Clone(m.Bh),
		By:        slices.Clone(m.By),
		LR:        m.LR,
		rng:       newRNG(DefaultSeed),
	}
}

// Equal reports whether both models hold bit-identical parameters.
func (m *Model) Equal(o *Model) bool {
	return m.VocabSize == o.VocabSize && m.Hidden == o.Hidden && m.LR == o.LR &&
		mat.Equal(m.E, o.E) && mat.Equal(m.Whh, o.Whh) && mat.Equal(m.Why, o.Why) &&
		slices.Equal(m.Bh, o.Bh) && slices.Equal(m.By, o.By)
}

func (m *Model) IsFinite() bool {
	return utils.IsFiniteMatrix(m.E) && utils.IsFiniteMatrix(m.Whh) && utils.IsFiniteMatrix(m.Why) &&
		utils.IsFiniteVector(m.Bh) && utils.IsFiniteVector(m.By)
}

func (m *Model) checkID(x int) {
	if x < 0 || x >= m.VocabSize {
		panic(fmt.Sprintf("rnn: symbol id %d out of range [0, %d)", x, m.VocabSize))
	}
}

// Step advances one token: returns the new hidden state and the next-symbol
// distribution. hPrev is not modified.
func (m *Model) Step(x int, hPrev []float64) (h, probs []float64) {
	m.checkID(x)
	pre := slices.Clone(m.E.RawRowView(x))
	floats.Add(pre, utils.VecTransposeMat(hPrev, m.Whh))
	floats.Add(pre, m.Bh)
	h = utils.Tanh(pre)

	logits := utils.VecTransposeMat(h, m.Why)
	floats.Add(logits, m.By)
	return h, utils.Softmax(logits)
}

// Forward runs Step over ids starting from h0 (zeros when nil) and keeps
// every hidden state and distribution for BPTT.
func (m *Model) Forward(ids []int, h0 []float64) (hs, ps [][]float64) {
	h := utils.ZerosVector(m.Hidden)
	if h0 != nil {
		copy(h, h0)
	}
	hs = make([][]float64, 0, len(ids))
	ps = make([][]float64, 0, len(ids))
	for _, x := range ids {
		var p []float64
		h, p = m.Step(x, h)
		hs = append(hs, h)
		ps = append(ps, p)
	}
	return hs, ps
}

// Generate continues seed by maxNew sampled symbols and returns the decoded
// seed plus continuation. Parameters are only read.
func (m *Model) Generate(tok Tokenizer, seed string, maxNew int, temperature float64, topK int) string {
	if m.rng == nil {
		m.rng = newRNG(DefaultSeed)
	}
	out := tok.Encode(seed)

	// prime hidden with the tail of the seed
	h := utils.ZerosVector(m.Hidden)
	for _, x := range out[max(0, len(out)-PrimeLimit):] {
		h, _ = m.Step(x, h)
	}

	x := 0
	if len(out) > 0 {
		x = out[len(out)-1]
	}
	var probs []float64
	for i := 0; i < maxNew; i++ {
		h, probs = m.Step(x, h)
		x = utils.Pick(m.rng, probs, temperature, topK)
		out = append(out, x)
	}
	return tok.Decode(out)
}
