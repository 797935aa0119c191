package params

import "math"

type TrainingConfig struct {
	// Model shape
	Hidden   int // recurrent state width
	BlockLen int // tokens per training slice (truncated BPTT length)

	// Optimization
	TotalSteps int     // optimizer steps for the whole run
	BaseLR     float64 // SGD learning rate before decay
	DecayEvery int     // lr halves every N steps
	Seed       int64   // model init and slice sampling

	// Warmup measures steps/sec on a throwaway copy of the model
	WarmupSteps int

	// Preview sampling
	PreviewEvery       int
	PreviewTemperature float64
	PreviewTopK        int // <=0 samples from the full distribution
	PreviewSeed        string
	PreviewMaxNew      int

	// Checkpointing
	WeightsDir string
	SaveEvery  int
	KeepLast   int // numbered snapshots to keep (0 = all)

	// Generation (-cli / -generate)
	MaxNew      int
	Temperature float64
	TopK        int
}

// Small enough to train on a laptop CPU overnight.
// GOMAXPROCS=1 go run . -corpus data/tiny_shakespeare.txt
var Config = TrainingConfig{
	Hidden:   128,
	BlockLen: 128,

	TotalSteps: 20_000,
	BaseLR:     0.03,
	DecayEvery: 10_000,
	Seed:       42,

	WarmupSteps: 300,

	PreviewEvery:       1000,
	PreviewTemperature: 0.8,
	PreviewTopK:        50,
	PreviewSeed:        "ROMEO:\n",
	PreviewMaxNew:      200,

	WeightsDir: "weights",
	SaveEvery:  1000,
	KeepLast:   0,

	MaxNew:      400,
	Temperature: 0.8,
	TopK:        50,
}

// LR returns the learning rate for a 1-based step: BaseLR halved every
// DecayEvery steps.
func (c TrainingConfig) LR(step int) float64 {
	if c.DecayEvery <= 0 {
		return c.BaseLR
	}
	return c.BaseLR * math.Pow(0.5, float64(step/c.DecayEvery))
}
