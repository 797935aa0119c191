package IO

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/manningwu07/CharRNN/utils"
)

// Record is one training preview.
type Record struct {
	Time   time.Time
	Step   int
	Loss   float64
	Sample string
}

func (r Record) String() string {
	return fmt.Sprintf("[%s] [step %d] loss=%.3f\n--- sample ---\n%s\n-------------\n",
		r.Time.Format(time.DateTime), r.Step, r.Loss, r.Sample)
}

// Recorder persists preview records.
type Recorder interface {
	Record(rec Record) error
}

// Recorders fans a record out to every recorder and joins their errors.
type Recorders []Recorder

func (rs Recorders) Record(rec Record) error {
	var errs []error
	for _, r := range rs {
		if err := r.Record(rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// TextHistory keeps progress_latest.txt (replaced atomically) and
// progress_history.txt (one append per record).
type TextHistory struct {
	LatestPath  string
	HistoryPath string
}

func NewTextHistory(dir string) *TextHistory {
	return &TextHistory{
		LatestPath:  filepath.Join(dir, "progress_latest.txt"),
		HistoryPath: filepath.Join(dir, "progress_history.txt"),
	}
}

func (h *TextHistory) Record(rec Record) error {
	text := rec.String()
	if err := utils.WriteTextAtomic(h.LatestPath, text); err != nil {
		return err
	}
	return utils.AppendText(h.HistoryPath, text)
}
