package IO

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/manningwu07/CharRNN/utils"
)

// Tokenizer maps text to symbol ids and back. VocabSize is stable for the
// lifetime of the tokenizer and sizes the model.
type Tokenizer interface {
	Encode(text string) []int
	Decode(ids []int) string
	VocabSize() int
}

type Vocabulary struct {
	TokenToID map[string]int
	IDToToken []string
}

// CharTokenizer is one symbol per distinct rune of the training corpus,
// ids assigned in sorted rune order.
type CharTokenizer struct {
	vocab Vocabulary
}

// NewCharTokenizer builds the vocabulary from every rune in text.
func NewCharTokenizer(text string) *CharTokenizer {
	seen := map[rune]bool{}
	var runes []rune
	for _, r := range text {
		if !seen[r] {
			seen[r] = true
			runes = append(runes, r)
		}
	}
	slices.Sort(runes)
	toks := make([]string, len(runes))
	for i, r := range runes {
		toks[i] = string(r)
	}
	return newCharTokenizer(toks)
}

func newCharTokenizer(idToToken []string) *CharTokenizer {
	tok2id := make(map[string]int, len(idToToken))
	for i, t := range idToToken {
		tok2id[t] = i
	}
	return &CharTokenizer{vocab: Vocabulary{TokenToID: tok2id, IDToToken: idToToken}}
}

func (t *CharTokenizer) VocabSize() int { return len(t.vocab.IDToToken) }

// Encode maps each rune to its id. Runes outside the vocabulary are dropped.
func (t *CharTokenizer) Encode(text string) []int {
	ids := make([]int, 0, len(text))
	for _, r := range text {
		if id, ok := t.vocab.TokenToID[string(r)]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}

func (t *CharTokenizer) Decode(ids []int) string {
	var sb strings.Builder
	for _, id := range ids {
		if id >= 0 && id < len(t.vocab.IDToToken) {
			sb.WriteString(t.vocab.IDToToken[id])
		}
	}
	return sb.String()
}

// ExportVocabJSON writes the vocabulary so generation can run without the
// corpus.
func (t *CharTokenizer) ExportVocabJSON(path string) error {
	data := map[string]any{
		"TokenToID": t.vocab.TokenToID,
		"IDToToken": t.vocab.IDToToken,
	}
	return utils.WriteFileAtomic(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	})
}

// ImportVocabJSON loads a vocabulary written by ExportVocabJSON.
func ImportVocabJSON(path string) (*CharTokenizer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var data struct {
		TokenToID map[string]int `json:"TokenToID"`
		IDToToken []string       `json:"IDToToken"`
	}
	if err := json.NewDecoder(f).Decode(&data); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(data.IDToToken) == 0 {
		return nil, fmt.Errorf("%s: empty vocabulary", path)
	}
	return newCharTokenizer(data.IDToToken), nil
}
