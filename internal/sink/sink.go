// Package sink hands state records to their consumers.
package sink

import (
	"context"
	"errors"
	"fmt"

	"github.com/zsiec/screenwatch/internal/gamestate"
	"github.com/zsiec/screenwatch/internal/logger"
	"github.com/zsiec/screenwatch/internal/metrics"
)

// Sink receives every state record the monitor produces.
type Sink interface {
	Name() string
	Publish(ctx context.Context, rec gamestate.StateRecord) error
	Close() error
}

// LogSink writes records to the log.
type LogSink struct {
	logger logger.Logger
}

// NewLogSink returns a sink that logs each record at info level.
func NewLogSink(log logger.Logger) *LogSink {
	return &LogSink{logger: logger.WithComponent(logger.OrNull(log), "sink")}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Publish(ctx context.Context, rec gamestate.StateRecord) error {
	fields := map[string]interface{}{
		"kind":      rec.Kind(),
		"timestamp": rec.Timestamp(),
	}
	if str, ok := rec.(fmt.Stringer); ok {
		fields["state"] = str.String()
	}
	s.logger.WithFields(fields).Info("State updated")
	metrics.RecordSinkPublish(s.Name(), nil)
	return nil
}

func (s *LogSink) Close() error { return nil }

// Multi publishes to every sink in order and joins their errors.
type Multi []Sink

func (m Multi) Name() string { return "multi" }

func (m Multi) Publish(ctx context.Context, rec gamestate.StateRecord) error {
	var errs []error
	for _, s := range m {
		if err := s.Publish(ctx, rec); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}
