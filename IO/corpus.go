package IO

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/manningwu07/CharRNN/utils"
)

var trainCandidates = []string{
	"data/tiny_shakespeare.txt",
	"../data/tiny_shakespeare.txt",
}

// FindTrainFile returns the first existing default corpus, falling back to
// the first *.txt under data/.
func FindTrainFile() string {
	for _, p := range trainCandidates {
		if utils.FileExists(p) {
			return p
		}
	}
	return fallbackFile("data")
}

func fallbackFile(root string) string {
	var first string
	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err == nil && !d.IsDir() && strings.HasSuffix(d.Name(), ".txt") && first == "" {
			first = path
		}
		return nil
	})
	return first
}

// LoadCorpus reads the whole training text.
func LoadCorpus(path string) (string, error) {
	if path == "" {
		path = FindTrainFile()
	}
	if path == "" {
		return "", fmt.Errorf("could not find training file")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
