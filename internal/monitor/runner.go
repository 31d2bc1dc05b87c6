// Package monitor runs the capture-analyze loop: fetch the newest frame, run
// every detector on it and hand the records to a sink.
package monitor

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/zsiec/screenwatch/internal/capture/frame"
	"github.com/zsiec/screenwatch/internal/config"
	apperrors "github.com/zsiec/screenwatch/internal/errors"
	"github.com/zsiec/screenwatch/internal/gamestate"
	"github.com/zsiec/screenwatch/internal/logger"
	"github.com/zsiec/screenwatch/internal/sink"
)

// FrameSource yields normalized frames. *capture.Session implements it.
type FrameSource interface {
	GetFrame(ctx context.Context) (*frame.Frame, error)
}

// Runner drives the detectors at a bounded rate.
type Runner struct {
	frames    FrameSource
	detectors []gamestate.Detector
	store     *Store
	sink      sink.Sink
	limiter   *rate.Limiter
	logger    *logger.SampledLogger

	lastSeq uint64
}

// NewRunner wires a runner. sink may be nil.
func NewRunner(frames FrameSource, detectors []gamestate.Detector, store *Store, out sink.Sink,
	cfg *config.MonitorConfig, log logger.Logger) (*Runner, error) {
	if frames == nil {
		return nil, fmt.Errorf("monitor: nil frame source")
	}
	if len(detectors) == 0 {
		return nil, fmt.Errorf("monitor: no detectors")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("monitor config: %w", err)
	}
	if store == nil {
		store = NewStore()
	}

	return &Runner{
		frames:    frames,
		detectors: detectors,
		store:     store,
		sink:      out,
		limiter:   rate.NewLimiter(rate.Limit(cfg.Rate), cfg.Burst),
		logger:    logger.NewCaptureLogger(logger.WithComponent(logger.OrNull(log), "monitor")),
	}, nil
}

// Store returns the runner's record store.
func (r *Runner) Store() *Store { return r.store }

// Run loops until ctx is done, returning nil, or until no frame can be
// obtained, returning that error. Detector and sink failures are logged
// and do not stop the loop.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.WithField("detectors", len(r.detectors)).Info("Monitor started")
	defer r.logger.Info("Monitor stopped")

	for {
		// Wait fails only when ctx ends or its deadline comes before the
		// next token.
		if err := r.limiter.Wait(ctx); err != nil {
			return nil
		}

		if err := r.Step(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

// Step analyzes the current frame once. It only fails when no frame could
// be obtained.
func (r *Runner) Step(ctx context.Context) error {
	f, err := r.frames.GetFrame(ctx)
	if err != nil {
		if apperrors.IsType(err, apperrors.ErrorTypeFrameUnavailable) {
			return err
		}
		return apperrors.WrapInternalError(err, "failed to get frame")
	}

	if f.Seq != 0 && f.Seq == r.lastSeq {
		r.logger.DebugWithCategory(logger.CategoryFrameProcessing, "Analyzing a frame seen before",
			map[string]interface{}{"seq": f.Seq})
	}
	r.lastSeq = f.Seq

	for _, d := range r.detectors {
		rec, err := d.Analyze(f)
		if err != nil {
			r.store.PutError(d.Name(), err)
			r.logger.WarnWithCategory(logger.CategoryDetection, "Detector failed",
				map[string]interface{}{
					"detector": d.Name(),
					"error":    err.Error(),
					"seq":      f.Seq,
				})
			continue
		}

		r.store.Put(d.Name(), rec)

		if r.sink == nil {
			continue
		}
		if err := r.sink.Publish(ctx, rec); err != nil {
			r.logger.WithError(err).WithField("sink", r.sink.Name()).Warn("Failed to publish state")
		}
	}
	return nil
}
