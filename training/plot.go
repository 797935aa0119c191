package training

import (
	"strings"

	"gonum.org/v1/gonum/floats"
)

// LossPlot draws values as a vertical bar chart height rows tall, scaled to
// the largest value. More than width values are averaged into width buckets.
func LossPlot(values []float64, height, width int) string {
	if len(values) == 0 {
		return "no data to plot\n"
	}
	if width > 0 && len(values) > width {
		values = bucketMeans(values, width)
	}
	top := floats.Max(values)
	if top <= 0 {
		top = 1
	}

	var sb strings.Builder
	for row := height; row >= 1; row-- {
		threshold := float64(row) / float64(height)
		for _, v := range values {
			if v/top >= threshold {
				sb.WriteString("█")
			} else {
				sb.WriteByte(' ')
			}
		}
		sb.WriteByte('\n')
	}
	sb.WriteString(strings.Repeat("─", len(values)))
	sb.WriteByte('\n')
	return sb.String()
}

func bucketMeans(values []float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		lo := i * len(values) / n
		hi := (i + 1) * len(values) / n
		out[i] = floats.Sum(values[lo:hi]) / float64(hi-lo)
	}
	return out
}
