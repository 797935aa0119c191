package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/manningwu07/CharRNN/rnn"
	"github.com/manningwu07/CharRNN/utils"
	"k8s.io/klog/v2"
)

var (
	// ErrShapeMismatch means a readable snapshot was built for different
	// dims than requested. Resuming from it would be wrong, so it is fatal.
	ErrShapeMismatch = errors.New("checkpoint shape mismatch")
	ErrNoCheckpoint  = errors.New("no checkpoint")
)

const (
	snapPrefix = "model_step_"
	snapSuffix = ".gob"
)

type Stage string

const (
	StagePointer Stage = "pointer"
	StageScan    Stage = "scan"
	StageFresh   Stage = "fresh"
)

// Pointer is the content of ckpt.json. Path is relative to the weights dir
// unless absolute.
type Pointer struct {
	Path string `json:"path"`
	Step int    `json:"step"`
}

type Result struct {
	Model    *rnn.Model
	NextStep int
	Stage    Stage
}

// Manager owns the weights directory layout:
//
//	model_step_<N>.gob   numbered snapshots
//	model.gob            copy of the newest snapshot
//	ckpt.json            pointer to the newest numbered snapshot
//	model_best.gob       lowest preview loss so far (best.json holds step/loss)
//	vocab.json           tokenizer vocabulary
type Manager struct {
	Dir      string
	KeepLast int // 0 keeps every numbered snapshot

	best *BestRecord
}

func New(dir string, keepLast int) *Manager {
	return &Manager{Dir: dir, KeepLast: keepLast}
}

func (c *Manager) SnapshotPath(step int) string {
	return filepath.Join(c.Dir, fmt.Sprintf("%s%d%s", snapPrefix, step, snapSuffix))
}

func (c *Manager) LatestPath() string   { return filepath.Join(c.Dir, "model.gob") }
func (c *Manager) PointerPath() string  { return filepath.Join(c.Dir, "ckpt.json") }
func (c *Manager) BestPath() string     { return filepath.Join(c.Dir, "model_best.gob") }
func (c *Manager) BestMetaPath() string { return filepath.Join(c.Dir, "best.json") }
func (c *Manager) VocabPath() string    { return filepath.Join(c.Dir, "vocab.json") }

// Save writes the numbered snapshot, then the pointer, then model.gob. A
// crash between writes leaves the previous pointer aimed at a complete file.
func (c *Manager) Save(m *rnn.Model, step int) error {
	snap := c.SnapshotPath(step)
	if err := m.SaveFile(snap); err != nil {
		return fmt.Errorf("save step %d: %w", step, err)
	}
	if err := writeJSON(c.PointerPath(), Pointer{Path: filepath.Base(snap), Step: step}); err != nil {
		return fmt.Errorf("save pointer for step %d: %w", step, err)
	}
	if err := m.SaveFile(c.LatestPath()); err != nil {
		return fmt.Errorf("save latest: %w", err)
	}
	if c.KeepLast > 0 {
		if err := c.prune(step); err != nil {
			klog.Errorf("prune snapshots: %v", err)
		}
	}
	return nil
}

// prune removes numbered snapshots at or below current beyond the newest
// KeepLast. current (the pointer target) always survives.
func (c *Manager) prune(current int) error {
	steps, err := c.snapshotSteps()
	if err != nil {
		return err
	}
	kept := 0
	var errs []error
	for _, s := range steps {
		if s > current {
			continue
		}
		if s == current || kept < c.KeepLast {
			kept++
			continue
		}
		if err := os.Remove(c.SnapshotPath(s)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// snapshotSteps lists the steps of numbered snapshots, newest first.
func (c *Manager) snapshotSteps() ([]int, error) {
	entries, err := os.ReadDir(c.Dir)
	if err != nil {
		return nil, err
	}
	var steps []int
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, snapPrefix) || !strings.HasSuffix(name, snapSuffix) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, snapPrefix), snapSuffix))
		if err != nil || n <= 0 {
			continue
		}
		steps = append(steps, n)
	}
	slices.Sort(steps)
	slices.Reverse(steps)
	return steps, nil
}

// Resume picks the starting model: the pointer's snapshot, else the newest
// numbered snapshot that loads, else fresh(). Only ErrShapeMismatch and
// fresh-stage failures are returned.
func (c *Manager) Resume(vocabSize, hidden int, fresh func() *rnn.Model) (Result, error) {
	m, step, err := c.fromPointer(vocabSize, hidden)
	if err == nil {
		klog.Infof("resumed from pointer %s at step %d", c.PointerPath(), step)
		return Result{Model: m, NextStep: step + 1, Stage: StagePointer}, nil
	}
	if errors.Is(err, ErrShapeMismatch) {
		return Result{}, err
	}
	if !errors.Is(err, ErrNoCheckpoint) {
		klog.Warningf("pointer resume failed, scanning %s: %v", c.Dir, err)
	}

	m, step, err = c.fromScan(vocabSize, hidden)
	if err == nil {
		klog.Infof("resumed from scan of %s at step %d", c.Dir, step)
		return Result{Model: m, NextStep: step + 1, Stage: StageScan}, nil
	}
	if errors.Is(err, ErrShapeMismatch) {
		return Result{}, err
	}
	if !errors.Is(err, ErrNoCheckpoint) {
		klog.Warningf("scan resume failed, starting fresh: %v", err)
	}

	m = fresh()
	if v, h := m.Dims(); v != vocabSize || h != hidden {
		return Result{}, fmt.Errorf("fresh model is %dx%d, want %dx%d: %w", v, h, vocabSize, hidden, ErrShapeMismatch)
	}
	klog.Infof("no usable checkpoint in %s, starting fresh", c.Dir)
	return Result{Model: m, NextStep: 1, Stage: StageFresh}, nil
}

func (c *Manager) fromPointer(vocabSize, hidden int) (*rnn.Model, int, error) {
	var p Pointer
	if err := readJSON(c.PointerPath(), &p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, 0, ErrNoCheckpoint
		}
		return nil, 0, err
	}
	if p.Path == "" || p.Step <= 0 {
		return nil, 0, fmt.Errorf("%s: bad pointer %+v", c.PointerPath(), p)
	}
	path := p.Path
	if !filepath.IsAbs(path) {
		path = filepath.Join(c.Dir, path)
	}
	m, err := rnn.LoadFile(path)
	if err != nil {
		return nil, 0, err
	}
	if err := checkDims(m, vocabSize, hidden, path); err != nil {
		return nil, 0, err
	}
	return m, p.Step, nil
}

func (c *Manager) fromScan(vocabSize, hidden int) (*rnn.Model, int, error) {
	steps, err := c.snapshotSteps()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, 0, ErrNoCheckpoint
		}
		return nil, 0, err
	}
	for _, s := range steps {
		path := c.SnapshotPath(s)
		m, err := rnn.LoadFile(path)
		if err != nil {
			klog.Warningf("skipping unreadable snapshot: %v", err)
			continue
		}
		if err := checkDims(m, vocabSize, hidden, path); err != nil {
			return nil, 0, err
		}
		return m, s, nil
	}
	return nil, 0, ErrNoCheckpoint
}

func checkDims(m *rnn.Model, vocabSize, hidden int, path string) error {
	if v, h := m.Dims(); v != vocabSize || h != hidden {
		return fmt.Errorf("%s is vocab=%d hidden=%d, want vocab=%d hidden=%d: %w",
			path, v, h, vocabSize, hidden, ErrShapeMismatch)
	}
	return nil
}

func writeJSON(path string, v any) error {
	return utils.WriteFileAtomic(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	})
}

func readJSON(path string, v any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}
