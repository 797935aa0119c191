package checkpoint

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/manningwu07/CharRNN/rnn"
)

const (
	testVocab  = 5
	testHidden = 4
)

func newModel(seed int64) *rnn.Model {
	return rnn.New(testVocab, testHidden, 0.05, seed)
}

func freshFn(t *testing.T) (func() *rnn.Model, *bool) {
	called := new(bool)
	return func() *rnn.Model {
		*called = true
		return newModel(99)
	}, called
}

func TestResumeFromPointer(t *testing.T) {
	c := New(t.TempDir(), 0)
	m := newModel(1)
	if err := c.Save(m, 100); err != nil {
		t.Fatal(err)
	}
	fresh, called := freshFn(t)
	res, err := c.Resume(testVocab, testHidden, fresh)
	if err != nil {
		t.Fatal(err)
	}
	if res.Stage != StagePointer || res.NextStep != 101 || *called {
		t.Fatalf("got stage=%s next=%d fresh=%v", res.Stage, res.NextStep, *called)
	}
	if !res.Model.Equal(m) {
		t.Fatalf("resumed model differs from saved model")
	}
	for _, p := range []string{c.SnapshotPath(100), c.LatestPath(), c.PointerPath()} {
		if _, err := os.Stat(p); err != nil {
			t.Fatalf("missing %s: %v", p, err)
		}
	}
}

func TestResumeStalePointerFallsBackToScan(t *testing.T) {
	c := New(t.TempDir(), 0)
	m1, m2 := newModel(1), newModel(2)
	if err := c.Save(m1, 100); err != nil {
		t.Fatal(err)
	}
	if err := c.Save(m2, 200); err != nil {
		t.Fatal(err)
	}
	if err := writeJSON(c.PointerPath(), Pointer{Path: "gone.gob", Step: 300}); err != nil {
		t.Fatal(err)
	}
	fresh, _ := freshFn(t)
	res, err := c.Resume(testVocab, testHidden, fresh)
	if err != nil {
		t.Fatal(err)
	}
	if res.Stage != StageScan || res.NextStep != 201 || !res.Model.Equal(m2) {
		t.Fatalf("got stage=%s next=%d", res.Stage, res.NextStep)
	}
}

func TestResumeCorruptPointerTarget(t *testing.T) {
	c := New(t.TempDir(), 0)
	m1 := newModel(1)
	if err := c.Save(m1, 100); err != nil {
		t.Fatal(err)
	}
	if err := c.Save(newModel(2), 200); err != nil {
		t.Fatal(err)
	}
	// Pointer aims at 200; corrupt it so only the older snapshot loads.
	if err := os.WriteFile(c.SnapshotPath(200), []byte("not a snapshot"), 0o644); err != nil {
		t.Fatal(err)
	}
	fresh, _ := freshFn(t)
	res, err := c.Resume(testVocab, testHidden, fresh)
	if err != nil {
		t.Fatal(err)
	}
	if res.Stage != StageScan || res.NextStep != 101 || !res.Model.Equal(m1) {
		t.Fatalf("got stage=%s next=%d", res.Stage, res.NextStep)
	}
}

func TestResumeGarbagePointer(t *testing.T) {
	c := New(t.TempDir(), 0)
	if err := c.Save(newModel(1), 7); err != nil {
		t.Fatal(err)
	}
	os.WriteFile(c.PointerPath(), []byte("{oops"), 0o644)
	fresh, _ := freshFn(t)
	res, err := c.Resume(testVocab, testHidden, fresh)
	if err != nil || res.Stage != StageScan || res.NextStep != 8 {
		t.Fatalf("got %+v, %v", res, err)
	}
}

func TestResumeFresh(t *testing.T) {
	for name, dir := range map[string]string{
		"empty":   t.TempDir(),
		"missing": filepath.Join(t.TempDir(), "nope"),
	} {
		t.Run(name, func(t *testing.T) {
			c := New(dir, 0)
			fresh, called := freshFn(t)
			res, err := c.Resume(testVocab, testHidden, fresh)
			if err != nil {
				t.Fatal(err)
			}
			if res.Stage != StageFresh || res.NextStep != 1 || !*called {
				t.Fatalf("got stage=%s next=%d fresh=%v", res.Stage, res.NextStep, *called)
			}
		})
	}
}

func TestResumeShapeMismatchIsFatal(t *testing.T) {
	c := New(t.TempDir(), 0)
	if err := c.Save(newModel(1), 100); err != nil {
		t.Fatal(err)
	}
	fresh, called := freshFn(t)
	_, err := c.Resume(testVocab, testHidden+1, fresh)
	if !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("err = %v, want ErrShapeMismatch", err)
	}
	if *called {
		t.Fatalf("fresh model built despite mismatch")
	}

	// Same through the scan stage.
	os.Remove(c.PointerPath())
	if _, err := c.Resume(testVocab+1, testHidden, fresh); !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("scan err = %v, want ErrShapeMismatch", err)
	}
}

func TestResumeIsIdempotent(t *testing.T) {
	c := New(t.TempDir(), 0)
	if err := c.Save(newModel(3), 42); err != nil {
		t.Fatal(err)
	}
	fresh, _ := freshFn(t)
	a, err := c.Resume(testVocab, testHidden, fresh)
	if err != nil {
		t.Fatal(err)
	}
	b, err := c.Resume(testVocab, testHidden, fresh)
	if err != nil {
		t.Fatal(err)
	}
	if a.NextStep != b.NextStep || a.Stage != b.Stage || !a.Model.Equal(b.Model) {
		t.Fatalf("two resumes disagree")
	}
}

func TestPruneKeepsNewest(t *testing.T) {
	c := New(t.TempDir(), 2)
	m := newModel(1)
	for _, s := range []int{10, 20, 30, 40} {
		if err := c.Save(m, s); err != nil {
			t.Fatal(err)
		}
	}
	steps, err := c.snapshotSteps()
	if err != nil {
		t.Fatal(err)
	}
	if len(steps) != 2 || steps[0] != 40 || steps[1] != 30 {
		t.Fatalf("steps = %v, want [40 30]", steps)
	}
}

func TestPruneNeverDeletesPointerTarget(t *testing.T) {
	c := New(t.TempDir(), 1)
	m := newModel(1)
	// A stale higher snapshot from an older run must not push out the new one.
	if err := m.SaveFile(c.SnapshotPath(500)); err != nil {
		t.Fatal(err)
	}
	if err := c.Save(m, 100); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(c.SnapshotPath(100)); err != nil {
		t.Fatalf("pointer target pruned: %v", err)
	}
}

func TestSaveBest(t *testing.T) {
	dir := t.TempDir()
	c := New(dir, 0)
	m := newModel(1)
	for _, tc := range []struct {
		step  int
		loss  float64
		saved bool
	}{
		{1, 3.0, true},
		{2, 3.5, false},
		{3, 2.0, true},
		{4, 2.0, false},
	} {
		saved, err := c.SaveBest(m, tc.step, tc.loss)
		if err != nil {
			t.Fatal(err)
		}
		if saved != tc.saved {
			t.Fatalf("step %d: saved = %v, want %v", tc.step, saved, tc.saved)
		}
	}

	// A new manager picks the record up from best.json.
	c2 := New(dir, 0)
	rec, ok := c2.Best()
	if !ok || rec.Step != 3 || rec.Loss != 2.0 {
		t.Fatalf("Best() = %+v, %v", rec, ok)
	}
	if saved, _ := c2.SaveBest(m, 5, 2.5); saved {
		t.Fatalf("worse loss replaced persisted best")
	}
	if _, err := rnn.LoadFile(c2.BestPath()); err != nil {
		t.Fatal(err)
	}
}
