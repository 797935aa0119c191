package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/manningwu07/CharRNN/IO"
	"github.com/manningwu07/CharRNN/checkpoint"
	"github.com/manningwu07/CharRNN/params"
	"github.com/manningwu07/CharRNN/rnn"
)

func TestChatCLI(t *testing.T) {
	tok := IO.NewCharTokenizer("ROMEO: but soft")
	m := rnn.New(tok.VocabSize(), 8, 0.03, 1)
	cfg := params.Config
	cfg.MaxNew = 5

	var out bytes.Buffer
	ChatCLI(strings.NewReader("but\n\nexit\nsoft\n"), &out, m, tok, cfg)

	lines := strings.Split(out.String(), "\n")
	var gens []string
	for _, l := range lines {
		if g, ok := strings.CutPrefix(l, "Seed: "); ok && g != "" {
			gens = append(gens, g)
		}
	}
	// "exit" stops the loop before "soft" is read.
	if len(gens) != 2 {
		t.Fatalf("got %d generations:\n%s", len(gens), out.String())
	}
	if !strings.HasPrefix(gens[0], "but") || len([]rune(gens[0])) != 3+5 {
		t.Fatalf("first generation = %q", gens[0])
	}
	if !strings.HasPrefix(gens[1], "ROMEO:") {
		t.Fatalf("empty line did not use the preview seed: %q", gens[1])
	}
}

func TestChatCLIEOF(t *testing.T) {
	tok := IO.NewCharTokenizer("abc")
	m := rnn.New(tok.VocabSize(), 4, 0.03, 1)
	var out bytes.Buffer
	ChatCLI(strings.NewReader("ab"), &out, m, tok, params.Config)
	if !strings.Contains(out.String(), "Seed: ab") {
		t.Fatalf("unterminated last line not generated:\n%s", out.String())
	}
}

func TestLoadForInferenceFallsBackToRandom(t *testing.T) {
	c := checkpoint.New(t.TempDir(), 0)
	cfg := params.Config
	cfg.Hidden = 6
	m, err := loadForInference(c, 9, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if v, h := m.Dims(); v != 9 || h != 6 {
		t.Fatalf("dims = %d,%d", v, h)
	}

	if err := rnn.New(4, 6, 0.03, 1).SaveFile(c.LatestPath()); err != nil {
		t.Fatal(err)
	}
	if _, err := loadForInference(c, 9, cfg); err == nil {
		t.Fatalf("vocab mismatch accepted")
	}
}
