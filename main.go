package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/manningwu07/CharRNN/IO"
	"github.com/manningwu07/CharRNN/checkpoint"
	"github.com/manningwu07/CharRNN/params"
	"github.com/manningwu07/CharRNN/rnn"
	"github.com/manningwu07/CharRNN/training"
	"k8s.io/klog/v2"
)

var (
	corpusPath    string
	tokenizerPath string
	historyDB     string
	cliFlag       bool
	generateText  string
)

func init() {
	c := &params.Config
	flag.StringVar(&corpusPath, "corpus", "", "Training text (default: data/tiny_shakespeare.txt or the first .txt under data/)")
	flag.StringVar(&c.WeightsDir, "weights", c.WeightsDir, "Directory for snapshots, pointer, vocab and preview history")
	flag.IntVar(&c.BlockLen, "block", c.BlockLen, "Tokens per training slice")
	flag.IntVar(&c.TotalSteps, "steps", c.TotalSteps, "Total optimizer steps")
	flag.IntVar(&c.Hidden, "hidden", c.Hidden, "Hidden state width")
	flag.Float64Var(&c.BaseLR, "lr", c.BaseLR, "Base learning rate")
	flag.IntVar(&c.DecayEvery, "decay-every", c.DecayEvery, "Halve the learning rate every N steps (0 = never)")
	flag.IntVar(&c.PreviewEvery, "sample-every", c.PreviewEvery, "Preview a sample every N steps")
	flag.IntVar(&c.SaveEvery, "save-every", c.SaveEvery, "Checkpoint every N steps")
	flag.IntVar(&c.KeepLast, "keep", c.KeepLast, "Numbered snapshots to keep (0 = all)")
	flag.Float64Var(&c.PreviewTemperature, "preview-temp", c.PreviewTemperature, "Preview sampling temperature")
	flag.IntVar(&c.PreviewTopK, "preview-topk", c.PreviewTopK, "Preview top-k (0 = full distribution)")
	flag.StringVar(&c.PreviewSeed, "preview-seed", c.PreviewSeed, "Preview seed text")
	flag.IntVar(&c.PreviewMaxNew, "preview-len", c.PreviewMaxNew, "Tokens generated per preview")
	flag.IntVar(&c.WarmupSteps, "warmup", c.WarmupSteps, "Timing warmup steps on a throwaway copy (0 = skip)")
	flag.Int64Var(&c.Seed, "seed", c.Seed, "Random seed")
	flag.StringVar(&tokenizerPath, "tokenizer", "", "HuggingFace tokenizer.json to use instead of the char tokenizer")
	flag.StringVar(&historyDB, "history-db", "", "Also record previews in this SQLite database")
	flag.BoolVar(&cliFlag, "cli", false, "Interactive generation from the latest weights")
	flag.StringVar(&generateText, "generate", "", "Generate once from this seed text and exit")
	flag.IntVar(&c.MaxNew, "max-new", c.MaxNew, "Tokens to generate in -cli / -generate")
	flag.Float64Var(&c.Temperature, "temp", c.Temperature, "Sampling temperature in -cli / -generate")
	flag.IntVar(&c.TopK, "topk", c.TopK, "Top-k in -cli / -generate (0 = full distribution)")
}

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	os.Exit(run())
}

func run() int {
	defer klog.Flush()
	cfg := params.Config
	ckpt := checkpoint.New(cfg.WeightsDir, cfg.KeepLast)

	if cliFlag || generateText != "" {
		tok, err := inferenceTokenizer(ckpt)
		if err != nil {
			klog.Errorf("tokenizer: %v", err)
			return 1
		}
		m, err := loadForInference(ckpt, tok.VocabSize(), cfg)
		if err != nil {
			klog.Errorf("load model: %v", err)
			return 1
		}
		if generateText != "" {
			fmt.Println(m.Generate(tok, generateText, cfg.MaxNew, cfg.Temperature, cfg.TopK))
			return 0
		}
		ChatCLI(os.Stdin, os.Stdout, m, tok, cfg)
		return 0
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		// A second Ctrl+C kills the process outright.
		<-ctx.Done()
		stop()
	}()

	if err := train(ctx, cfg, ckpt); err != nil {
		if errors.Is(err, training.ErrInterrupted) {
			klog.Infof("%v", err)
			return 130
		}
		klog.Errorf("%v", err)
		return 1
	}
	return 0
}

func train(ctx context.Context, cfg params.TrainingConfig, ckpt *checkpoint.Manager) error {
	text, err := IO.LoadCorpus(corpusPath)
	if err != nil {
		return fmt.Errorf("load corpus: %w", err)
	}
	tok, err := trainingTokenizer(text, ckpt)
	if err != nil {
		return fmt.Errorf("tokenizer: %w", err)
	}
	ids := tok.Encode(text)
	klog.Infof("corpus: %d chars, %d tokens, vocab %d", len(text), len(ids), tok.VocabSize())

	res, err := ckpt.Resume(tok.VocabSize(), cfg.Hidden, func() *rnn.Model {
		return rnn.New(tok.VocabSize(), cfg.Hidden, cfg.BaseLR, cfg.Seed)
	})
	if err != nil {
		return fmt.Errorf("resume from %s: %w", ckpt.Dir, err)
	}

	history, closeHistory, err := openHistory(cfg)
	if err != nil {
		return err
	}
	defer closeHistory()

	d := training.NewDriver(cfg, res.Model, ids, tok, ckpt, history, res.NextStep)
	return d.Run(ctx)
}

func trainingTokenizer(text string, ckpt *checkpoint.Manager) (IO.Tokenizer, error) {
	if tokenizerPath != "" {
		return loadBPE()
	}
	tok := IO.NewCharTokenizer(text)
	if err := tok.ExportVocabJSON(ckpt.VocabPath()); err != nil {
		return nil, err
	}
	return tok, nil
}

// inferenceTokenizer prefers the exported vocabulary so generation works
// without the corpus.
func inferenceTokenizer(ckpt *checkpoint.Manager) (IO.Tokenizer, error) {
	if tokenizerPath != "" {
		return loadBPE()
	}
	tok, err := IO.ImportVocabJSON(ckpt.VocabPath())
	if err == nil {
		return tok, nil
	}
	klog.Warningf("vocab: %v; rebuilding from corpus", err)
	text, err := IO.LoadCorpus(corpusPath)
	if err != nil {
		return nil, err
	}
	return IO.NewCharTokenizer(text), nil
}

// loadForInference loads model.gob, falling back to a randomly initialised
// model when no weights exist yet.
func loadForInference(ckpt *checkpoint.Manager, vocabSize int, cfg params.TrainingConfig) (*rnn.Model, error) {
	m, err := rnn.LoadFile(ckpt.LatestPath())
	if err != nil {
		klog.Warningf("no trained weights (%v); using a random model", err)
		m = rnn.New(vocabSize, cfg.Hidden, cfg.BaseLR, cfg.Seed)
	}
	if v, _ := m.Dims(); v != vocabSize {
		return nil, fmt.Errorf("%s has vocab %d, tokenizer has %d: %w",
			ckpt.LatestPath(), v, vocabSize, checkpoint.ErrShapeMismatch)
	}
	m.Reseed(cfg.Seed)
	return m, nil
}

func loadBPE() (IO.Tokenizer, error) {
	tok, err := IO.LoadBPE(tokenizerPath)
	if err != nil {
		return nil, err
	}
	return tok, nil
}

func openHistory(cfg params.TrainingConfig) (IO.Recorder, func(), error) {
	recs := IO.Recorders{IO.NewTextHistory(cfg.WeightsDir)}
	if historyDB == "" {
		return recs, func() {}, nil
	}
	db, err := IO.OpenSQLiteHistory(historyDB)
	if err != nil {
		return nil, nil, err
	}
	return append(recs, db), func() {
		if err := db.Close(); err != nil {
			klog.Errorf("close history db: %v", err)
		}
	}, nil
}
