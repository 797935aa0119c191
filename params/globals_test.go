package params

import "testing"

func TestLRHalvesEveryDecay(t *testing.T) {
	c := TrainingConfig{BaseLR: 0.04, DecayEvery: 100}
	cases := map[int]float64{1: 0.04, 99: 0.04, 100: 0.02, 250: 0.01, 300: 0.005}
	for step, want := range cases {
		if got := c.LR(step); got != want {
			t.Errorf("LR(%d) = %v, want %v", step, got, want)
		}
	}
}

func TestLRNoDecay(t *testing.T) {
	c := TrainingConfig{BaseLR: 0.03}
	if got := c.LR(1_000_000); got != 0.03 {
		t.Fatalf("LR = %v, want 0.03", got)
	}
}
