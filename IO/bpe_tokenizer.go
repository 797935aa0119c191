package IO

import (
	"fmt"

	tk "github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
)

// BPETokenizer adapts a HuggingFace tokenizer.json (loaded through
// sugarme/tokenizer) to the Tokenizer interface.
type BPETokenizer struct {
	t *tk.Tokenizer
}

// LoadBPE loads tokPath, e.g. a tokenizer.json exported by the Python side.
func LoadBPE(tokPath string) (*BPETokenizer, error) {
	t, err := pretrained.FromFile(tokPath)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer %s: %w", tokPath, err)
	}
	return &BPETokenizer{t: t}, nil
}

func (b *BPETokenizer) VocabSize() int {
	return b.t.GetVocabSize(true)
}

// Encode returns ids without BOS/EOS. Text the tokenizer rejects encodes to
// nothing, matching CharTokenizer dropping unknown runes.
func (b *BPETokenizer) Encode(text string) []int {
	enc, err := b.t.EncodeSingle(text, false)
	if err != nil {
		return nil
	}
	out := make([]int, len(enc.Ids))
	for i, v := range enc.Ids {
		out[i] = int(v)
	}
	return out
}

func (b *BPETokenizer) Decode(ids []int) string {
	return b.t.Decode(ids, false)
}
