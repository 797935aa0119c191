package rnn

import (
	"bufio"
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/manningwu07/CharRNN/utils"
	"gonum.org/v1/gonum/mat"
)

// modelData is the on-disk snapshot: both dims, the learning rate and the
// five parameter tensors as flat row-major slices.
type modelData struct {
	VocabSize int
	Hidden    int
	LR        float64

	E   []float64
	Whh []float64
	Why []float64
	Bh  []float64
	By  []float64
}

func flat(m *mat.Dense) []float64 {
	return append([]float64(nil), mat.DenseCopyOf(m).RawMatrix().Data...)
}

// Encode writes the model as a gob snapshot.
func (m *Model) Encode(w io.Writer) error {
	data := modelData{
		VocabSize: m.VocabSize,
		Hidden:    m.Hidden,
		LR:        m.LR,
		E:         flat(m.E),
		Whh:       flat(m.Whh),
		Why:       flat(m.Why),
		Bh:        slices.Clone(m.Bh),
		By:        slices.Clone(m.By),
	}
	return gob.NewEncoder(w).Encode(data)
}

// Decode reads a snapshot written by Encode. The model takes the dims stored
// in the snapshot; a snapshot whose tensors disagree with its own dims is
// rejected.
func Decode(r io.Reader) (*Model, error) {
	var data modelData
	if err := gob.NewDecoder(r).Decode(&data); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	V, H := data.VocabSize, data.Hidden
	if V <= 0 || H <= 0 {
		return nil, fmt.Errorf("decode snapshot: bad dims vocab=%d hidden=%d", V, H)
	}
	for _, c := range []struct {
		name      string
		got, want int
	}{
		{"E", len(data.E), V * H},
		{"Whh", len(data.Whh), H * H},
		{"Why", len(data.Why), H * V},
		{"bh", len(data.Bh), H},
		{"by", len(data.By), V},
	} {
		if c.got != c.want {
			return nil, fmt.Errorf("decode snapshot: %s has %d values, want %d", c.name, c.got, c.want)
		}
	}
	return &Model{
		VocabSize: V,
		Hidden:    H,
		E:         mat.NewDense(V, H, data.E),
		Whh:       mat.NewDense(H, H, data.Whh),
		Why:       mat.NewDense(H, V, data.Why),
		Bh:        data.Bh,
		By:        data.By,
		LR:        data.LR,
		rng:       newRNG(DefaultSeed),
	}, nil
}

// SaveFile persists the model atomically (temp file + rename).
func (m *Model) SaveFile(path string) error {
	return utils.WriteFileAtomic(path, m.Encode)
}

// LoadFile loads a snapshot written by SaveFile.
func LoadFile(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	m, err := Decode(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}
