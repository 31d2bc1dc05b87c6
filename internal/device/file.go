package device

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/zsiec/screenwatch/internal/logger"
)

// FileSource replays a recorded stream from disk. It lets calibration and
// tests run without a device.
type FileSource struct {
	path   string
	logger logger.Logger

	mu   sync.Mutex
	file *os.File
}

// NewFileSource returns a source that reads path.
func NewFileSource(path string, log logger.Logger) *FileSource {
	return &FileSource{
		path:   path,
		logger: logger.WithComponent(logger.OrNull(log), "replay"),
	}
}

// Start opens the recording. targetID is ignored.
func (s *FileSource) Start(ctx context.Context, targetID string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file != nil {
		s.file.Close()
		s.file = nil
	}

	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open recording: %w", err)
	}
	s.file = f

	s.logger.WithField("path", s.path).Info("Replaying recorded stream")
	return f, nil
}

// Stop closes the recording. It is idempotent.
func (s *FileSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	if err != nil && !errors.Is(err, os.ErrClosed) {
		return err
	}
	return nil
}
