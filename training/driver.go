package training

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/manningwu07/CharRNN/IO"
	"github.com/manningwu07/CharRNN/checkpoint"
	"github.com/manningwu07/CharRNN/params"
	"github.com/manningwu07/CharRNN/rnn"
	"github.com/manningwu07/CharRNN/utils"
	"k8s.io/klog/v2"
)

var (
	ErrCorpusTooShort = errors.New("corpus too short for one training slice")
	ErrInterrupted    = errors.New("training interrupted")
)

// emaKeep weights the running step-time average against the newest sample.
const emaKeep = 0.98

type Driver struct {
	Config    params.TrainingConfig
	Model     *rnn.Model
	IDs       []int
	Tok       rnn.Tokenizer
	Ckpt      *checkpoint.Manager
	History   IO.Recorder // nil disables preview history
	StartStep int

	// OnStep runs after every completed optimizer step.
	OnStep func(step int, loss float64)

	src    *rand.PCG
	rng    *rand.Rand
	losses []float64 // loss at each preview, for the final plot
}

func NewDriver(cfg params.TrainingConfig, m *rnn.Model, ids []int, tok rnn.Tokenizer,
	ckpt *checkpoint.Manager, history IO.Recorder, startStep int) *Driver {
	src := rand.NewPCG(uint64(cfg.Seed), 0)
	return &Driver{
		Config:    cfg,
		Model:     m,
		IDs:       ids,
		Tok:       tok,
		Ckpt:      ckpt,
		History:   history,
		StartStep: max(startStep, 1),
		src:       src,
		rng:       rand.New(src),
	}
}

// slice returns the inputs and next-symbol targets for step. The slice start
// depends only on (Seed, step) so a resumed run sees the same data as an
// uninterrupted one.
func (d *Driver) slice(step int) (inputs, targets []int) {
	L := d.Config.BlockLen
	d.src.Seed(uint64(d.Config.Seed), uint64(step))
	i := d.rng.IntN(len(d.IDs) - L)
	return d.IDs[i : i+L], d.IDs[i+1 : i+L+1]
}

// Run trains from StartStep through TotalSteps. Cancelling ctx stops between
// steps; the last completed step is checkpointed and ErrInterrupted returned.
func (d *Driver) Run(ctx context.Context) error {
	cfg := d.Config
	if cfg.BlockLen <= 0 {
		return fmt.Errorf("block length %d must be > 0", cfg.BlockLen)
	}
	if len(d.IDs) < cfg.BlockLen+1 {
		return fmt.Errorf("%d ids, need at least %d: %w", len(d.IDs), cfg.BlockLen+1, ErrCorpusTooShort)
	}
	if d.StartStep > cfg.TotalSteps {
		klog.Infof("step %d already past total %d, nothing to train", d.StartStep-1, cfg.TotalSteps)
		return nil
	}

	ema, err := d.warmup(ctx)
	if err != nil {
		return err
	}

	start := time.Now()
	last := d.StartStep - 1
	for step := d.StartStep; step <= cfg.TotalSteps; step++ {
		if ctx.Err() != nil {
			return d.interrupt(last)
		}
		lr := cfg.LR(step)
		x, y := d.slice(step)

		t0 := time.Now()
		loss := d.Model.TrainStep(x, y, lr)
		dt := time.Since(t0).Seconds()
		if ema == 0 {
			ema = dt
		} else {
			ema = emaKeep*ema + (1-emaKeep)*dt
		}
		last = step
		if d.OnStep != nil {
			d.OnStep(step, loss)
		}

		if step == d.StartStep || (cfg.PreviewEvery > 0 && step%cfg.PreviewEvery == 0) {
			eta := time.Duration(ema * float64(cfg.TotalSteps-step) * float64(time.Second))
			d.preview(step, loss, lr, time.Since(start), eta)
		}
		if step == cfg.TotalSteps || (cfg.SaveEvery > 0 && step%cfg.SaveEvery == 0) {
			if err := d.Ckpt.Save(d.Model, step); err != nil {
				return err
			}
			klog.V(1).Infof("checkpoint at step %d", step)
		}
	}

	klog.Infof("done: steps %d..%d in %s", d.StartStep, cfg.TotalSteps, time.Since(start).Round(time.Millisecond))
	if len(d.losses) > 1 {
		klog.Infof("preview loss:\n%s", LossPlot(d.losses, 10, 80))
	}
	return nil
}

// warmup times WarmupSteps steps on a copy of the model with its own data
// stream and returns seconds per step (0 when skipped). The live model and
// the step schedule are untouched.
func (d *Driver) warmup(ctx context.Context) (float64, error) {
	n := d.Config.WarmupSteps
	if n <= 0 {
		return 0, nil
	}
	clone := d.Model.Clone()
	rng := rand.New(rand.NewPCG(uint64(d.Config.Seed), ^uint64(0)))
	L := d.Config.BlockLen
	lr := d.Config.LR(d.StartStep)

	t0 := time.Now()
	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			return 0, ErrInterrupted
		}
		j := rng.IntN(len(d.IDs) - L)
		clone.TrainStep(d.IDs[j:j+L], d.IDs[j+1:j+L+1], lr)
	}
	perStep := time.Since(t0).Seconds() / float64(n)
	remaining := d.Config.TotalSteps - d.StartStep + 1
	klog.Infof("warmup: %.1f steps/sec, estimated %s for %d steps",
		1/perStep, time.Duration(perStep*float64(remaining)*float64(time.Second)).Round(time.Second), remaining)
	return perStep, nil
}

func (d *Driver) preview(step int, loss, lr float64, elapsed, eta time.Duration) {
	cfg := d.Config
	d.Model.Reseed(cfg.Seed + int64(step))
	sample := d.Model.Generate(d.Tok, cfg.PreviewSeed, cfg.PreviewMaxNew, cfg.PreviewTemperature, cfg.PreviewTopK)
	d.losses = append(d.losses, loss)

	klog.Infof("step %d/%d loss=%.4f lr=%.5f |Whh|=%.3f elapsed=%s eta=%s",
		step, cfg.TotalSteps, loss, lr, utils.MatrixNorm(d.Model.Whh),
		elapsed.Round(time.Second), eta.Round(time.Second))
	klog.V(1).Infof("sample:\n%s", sample)

	if d.History != nil {
		rec := IO.Record{Time: time.Now(), Step: step, Loss: loss, Sample: sample}
		if err := d.History.Record(rec); err != nil {
			klog.Errorf("preview history at step %d: %v", step, err)
		}
	}
	if saved, err := d.Ckpt.SaveBest(d.Model, step, loss); err != nil {
		klog.Errorf("%v", err)
	} else if saved {
		klog.V(1).Infof("new best loss %.4f at step %d", loss, step)
	}
}

func (d *Driver) interrupt(last int) error {
	if last < d.StartStep {
		klog.Infof("interrupted before any step completed")
		return ErrInterrupted
	}
	if err := d.Ckpt.Save(d.Model, last); err != nil {
		return fmt.Errorf("save on interrupt at step %d: %w", last, errors.Join(ErrInterrupted, err))
	}
	klog.Infof("interrupted: saved step %d to %s", last, d.Ckpt.Dir)
	return ErrInterrupted
}
