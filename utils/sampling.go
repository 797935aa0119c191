package utils

import (
	"math"
	"math/rand/v2"
	"slices"

	"gonum.org/v1/gonum/floats"
)

// Pick returns an index drawn from probs after temperature scaling and an
// optional top-k cut.
//   - temperature <= 0: greedy (argmax, first index on ties)
//   - 0 < temperature < 1: sharper, temperature > 1: flatter
//   - 0 < topK < len(probs): sample among the topK most likely entries only
func Pick(rng *rand.Rand, probs []float64, temperature float64, topK int) int {
	if temperature <= 0 {
		return floats.MaxIdx(probs)
	}

	// temperature scaling directly on probabilities
	T := math.Max(temperature, 1e-8)
	scaled := make([]float64, len(probs))
	for i, p := range probs {
		scaled[i] = math.Pow(p, 1.0/T)
	}
	s := floats.Sum(scaled)
	if s == 0 || math.IsNaN(s) || math.IsInf(s, 0) {
		// every entry underflowed; the sharpest distribution is the argmax
		return floats.MaxIdx(probs)
	}
	floats.Scale(1.0/s, scaled)

	if topK > 0 && topK < len(scaled) {
		idxs := make([]int, len(scaled))
		for i := range idxs {
			idxs[i] = i
		}
		slices.SortStableFunc(idxs, func(a, b int) int {
			switch {
			case scaled[a] > scaled[b]:
				return -1
			case scaled[a] < scaled[b]:
				return 1
			}
			return 0
		})
		idxs = idxs[:topK]

		s2 := 0.0
		for _, i := range idxs {
			s2 += scaled[i]
		}
		r := rng.Float64()
		acc := 0.0
		for _, i := range idxs {
			acc += scaled[i] / s2
			if r < acc {
				return i
			}
		}
		return idxs[len(idxs)-1]
	}

	// full categorical
	r := rng.Float64()
	acc := 0.0
	for i, p := range scaled {
		acc += p
		if r < acc {
			return i
		}
	}
	return len(scaled) - 1
}
