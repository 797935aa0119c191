package utils

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Numeric kernel for the char RNN. Matrices are *mat.Dense so the shape
// always travels with the data; vectors are plain []float64.

// r = rows of matrix
// c = columns of matrix
// v = vector input
// M = matrix input

// CrossEntropyEps keeps -ln(p) finite when a target has zero probability.
const CrossEntropyEps = 1e-9

// RandomMatrix fills an (r x c) matrix with uniform values in [-scale, scale].
func RandomMatrix(rng *rand.Rand, r, c int, scale float64) *mat.Dense {
	data := make([]float64, r*c)
	for i := range data {
		data[i] = (rng.Float64()*2 - 1) * scale
	}
	return mat.NewDense(r, c, data)
}

func ZerosMatrix(r, c int) *mat.Dense {
	return mat.NewDense(r, c, nil)
}

func ZerosVector(n int) []float64 {
	return make([]float64, n)
}

// VecTransposeMat returns vᵗ·M, a vector of length cols(M).
func VecTransposeMat(v []float64, M *mat.Dense) []float64 {
	r, c := M.Dims()
	if len(v) != r {
		panic(fmt.Sprintf("VecTransposeMat: len(v)=%d, rows(M)=%d", len(v), r))
	}
	out := make([]float64, c)
	dst := mat.NewVecDense(c, out)
	dst.MulVec(M.T(), mat.NewVecDense(r, v))
	return out
}

// MatVec returns M·v, a vector of length rows(M).
func MatVec(M *mat.Dense, v []float64) []float64 {
	r, c := M.Dims()
	if len(v) != c {
		panic(fmt.Sprintf("MatVec: len(v)=%d, cols(M)=%d", len(v), c))
	}
	out := make([]float64, r)
	dst := mat.NewVecDense(r, out)
	dst.MulVec(M, mat.NewVecDense(c, v))
	return out
}

// Outer accumulates dst += x ⊗ y.
func Outer(dst *mat.Dense, x, y []float64) {
	r, c := dst.Dims()
	if len(x) != r || len(y) != c {
		panic(fmt.Sprintf("Outer: dst is %dx%d, got %d and %d", r, c, len(x), len(y)))
	}
	dst.RankOne(dst, 1, mat.NewVecDense(r, x), mat.NewVecDense(c, y))
}

func Tanh(v []float64) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = math.Tanh(x)
	}
	return out
}

// DTanh takes the already activated h and returns 1 - h².
func DTanh(h []float64) []float64 {
	out := make([]float64, len(h))
	for i, x := range h {
		out[i] = 1.0 - x*x
	}
	return out
}

// Softmax is the max-subtracted softmax of a logit vector.
func Softmax(logits []float64) []float64 {
	mx := floats.Max(logits)
	out := make([]float64, len(logits))
	sum := 0.0
	for i, x := range logits {
		e := math.Exp(x - mx)
		out[i] = e
		sum += e
	}
	floats.Scale(1.0/sum, out)
	return out
}

func CrossEntropy(probs []float64, target int) float64 {
	return -math.Log(probs[target] + CrossEntropyEps)
}

// ClipVector clamps every element of v to [-th, th] in place.
func ClipVector(v []float64, th float64) {
	for i, x := range v {
		if x > th {
			v[i] = th
		} else if x < -th {
			v[i] = -th
		}
	}
}

// ClipMatrix clamps every element of M to [-th, th] in place.
func ClipMatrix(M *mat.Dense, th float64) {
	r, _ := M.Dims()
	for i := 0; i < r; i++ {
		ClipVector(M.RawRowView(i), th)
	}
}

// MatrixNorm is the Frobenius norm, handy for watching weights drift.
func MatrixNorm(m mat.Matrix) float64 {
	return mat.Norm(m, 2)
}

func IsFiniteVector(v []float64) bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

func IsFiniteMatrix(M *mat.Dense) bool {
	r, _ := M.Dims()
	for i := 0; i < r; i++ {
		if !IsFiniteVector(M.RawRowView(i)) {
			return false
		}
	}
	return true
}
