package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/manningwu07/CharRNN/params"
	"github.com/manningwu07/CharRNN/rnn"
)

// ChatCLI reads seed lines from r and writes a continuation of each to w.
// An empty line reuses the preview seed; "exit" or EOF quits.
func ChatCLI(r io.Reader, w io.Writer, m *rnn.Model, tok rnn.Tokenizer, cfg params.TrainingConfig) {
	reader := bufio.NewReader(r)
	fmt.Fprintln(w, "CharRNN CLI. Type 'exit' to quit.")
	for {
		fmt.Fprint(w, "Seed: ")
		line, err := reader.ReadString('\n')
		input := strings.TrimRight(line, "\r\n")
		if input == "exit" || (err != nil && input == "") {
			fmt.Fprintln(w)
			return
		}
		if strings.TrimSpace(input) == "" {
			input = cfg.PreviewSeed
		}
		fmt.Fprintln(w, m.Generate(tok, input, cfg.MaxNew, cfg.Temperature, cfg.TopK))
		if err != nil {
			return
		}
	}
}
