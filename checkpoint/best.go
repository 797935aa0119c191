package checkpoint

import (
	"errors"
	"fmt"
	"io/fs"
	"math"

	"github.com/manningwu07/CharRNN/rnn"
	"k8s.io/klog/v2"
)

// BestRecord is the content of best.json.
type BestRecord struct {
	Step int     `json:"step"`
	Loss float64 `json:"loss"`
}

// Best returns the recorded best snapshot, loading best.json on first use.
// ok is false when no best snapshot exists yet.
func (c *Manager) Best() (rec BestRecord, ok bool) {
	if c.best == nil {
		var r BestRecord
		if err := readJSON(c.BestMetaPath(), &r); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				klog.Warningf("ignoring best record: %v", err)
			}
			return BestRecord{}, false
		}
		c.best = &r
	}
	return *c.best, true
}

// SaveBest writes model_best.gob when loss beats the best recorded so far.
// It reports whether a new best was written.
func (c *Manager) SaveBest(m *rnn.Model, step int, loss float64) (bool, error) {
	if math.IsNaN(loss) {
		return false, nil
	}
	if prev, ok := c.Best(); ok && loss >= prev.Loss {
		return false, nil
	}
	if err := m.SaveFile(c.BestPath()); err != nil {
		return false, fmt.Errorf("save best at step %d: %w", step, err)
	}
	rec := BestRecord{Step: step, Loss: loss}
	if err := writeJSON(c.BestMetaPath(), rec); err != nil {
		return false, fmt.Errorf("save best record: %w", err)
	}
	c.best = &rec
	return true, nil
}
