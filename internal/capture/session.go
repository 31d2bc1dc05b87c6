// Package capture ties a collaborator byte stream, the background stream
// decoder and frame normalization into a capture session.
package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/google/uuid"

	// Registered codecs.
	_ "github.com/zsiec/screenwatch/internal/capture/codec/h264"
	_ "github.com/zsiec/screenwatch/internal/capture/codec/mjpeg"

	"github.com/zsiec/screenwatch/internal/capture/codec"
	"github.com/zsiec/screenwatch/internal/capture/decoder"
	"github.com/zsiec/screenwatch/internal/capture/frame"
	"github.com/zsiec/screenwatch/internal/capture/normalize"
	"github.com/zsiec/screenwatch/internal/config"
	apperrors "github.com/zsiec/screenwatch/internal/errors"
	"github.com/zsiec/screenwatch/internal/logger"
	"github.com/zsiec/screenwatch/internal/metrics"
)

// Source is the collaborator that produces the encoded byte stream, for
// example a screen recording process on a device. It owns whatever process
// backs the stream; the session only reads from and closes the stream.
type Source interface {
	// Start begins producing a stream for targetID, or a default target when
	// targetID is empty.
	Start(ctx context.Context, targetID string) (io.ReadCloser, error)
	// Stop releases the collaborator's resources. It must be idempotent.
	Stop() error
}

// Session is one capture lifecycle: Start, any number of GetFrame calls,
// Stop. A stopped session can be started again.
type Session struct {
	cfg        config.CaptureConfig
	source     Source
	normalizer *normalize.Normalizer
	logger     logger.Logger

	mu       sync.Mutex
	id       string
	targetID string
	decoder  *decoder.Decoder
}

// NewSession validates cfg and prepares a session around source.
func NewSession(source Source, cfg *config.CaptureConfig, log logger.Logger) (*Session, error) {
	if source == nil {
		return nil, fmt.Errorf("capture: nil source")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("capture config: %w", err)
	}
	if _, err := codec.Lookup(cfg.Codec); err != nil {
		return nil, err
	}

	log = logger.WithComponent(logger.OrNull(log), "capture")

	n, err := normalize.New(cfg.Width, cfg.Height, log)
	if err != nil {
		return nil, err
	}

	return &Session{
		cfg:        *cfg,
		source:     source,
		normalizer: n,
		logger:     log,
	}, nil
}

// Start asks the source for a byte stream and builds a decoder over it. The
// decoder worker itself starts with the first GetFrame.
func (s *Session) Start(ctx context.Context, targetID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.decoder != nil {
		return apperrors.New(apperrors.ErrorTypeValidation,
			fmt.Sprintf("capture session %s already running", s.id), http.StatusConflict)
	}

	stream, err := s.source.Start(ctx, targetID)
	if err == nil && stream == nil {
		err = errors.New("source returned no stream")
	}
	if err != nil {
		metrics.RecordCaptureStart(err)
		return apperrors.NewCaptureStartError(err).WithDetails(map[string]interface{}{"target": targetID})
	}

	id := uuid.NewString()
	log := logger.WithSession(s.logger, id)

	dec, err := decoder.New(stream, s.cfg.Codec, decoder.Config{
		ChunkSize:   s.cfg.ChunkSize,
		StopTimeout: s.cfg.StopTimeout,
		Codec:       codec.Options{FFmpegPath: s.cfg.FFmpegPath},
	}, log)
	if err != nil {
		stream.Close()
		if serr := s.source.Stop(); serr != nil {
			log.WithError(serr).Warn("Failed to stop source after decoder setup failed")
		}
		metrics.RecordCaptureStart(err)
		return apperrors.NewCaptureStartError(err)
	}

	s.id = id
	s.targetID = targetID
	s.decoder = dec
	metrics.RecordCaptureStart(nil)
	metrics.SetSessionActive(true)

	log.WithFields(map[string]interface{}{
		"target": targetID,
		"codec":  s.cfg.Codec,
		"width":  s.cfg.Width,
		"height": s.cfg.Height,
	}).Info("Capture session started")
	return nil
}

// GetFrame returns the newest decoded frame normalized to the capture size.
// The first call waits for the decoder's first frame, bounded by the
// configured frame timeout when it is non-zero and always by ctx.
func (s *Session) GetFrame(ctx context.Context) (*frame.Frame, error) {
	s.mu.Lock()
	dec := s.decoder
	s.mu.Unlock()

	if dec == nil {
		return nil, apperrors.NewFrameUnavailableError("capture session not started")
	}

	if s.cfg.FrameTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.FrameTimeout)
		defer cancel()
	}

	d, err := dec.CurrentFrame(ctx)
	if err != nil {
		return nil, err
	}
	return s.normalizer.Normalize(d)
}

// Stop ends the session: the decoder closes the stream and joins its worker
// within the stop timeout, then the source is stopped. Calling Stop on a
// session that is not running is a no-op.
func (s *Session) Stop() error {
	s.mu.Lock()
	dec := s.decoder
	id := s.id
	s.decoder = nil
	s.mu.Unlock()

	if dec == nil {
		return nil
	}

	log := logger.WithSession(s.logger, id)

	if err := dec.Stop(); err != nil {
		// The worker is left to exit on its own; nothing reads its output.
		log.WithError(err).Warn("Decoder worker abandoned")
	}

	published, dropped := dec.Stats()
	metrics.SetSessionActive(false)

	var err error
	if serr := s.source.Stop(); serr != nil {
		err = fmt.Errorf("stop source: %w", serr)
		log.WithError(serr).Warn("Failed to stop capture source")
	}

	log.WithFields(map[string]interface{}{
		"frames_published": published,
		"frames_skipped":   dropped,
	}).Info("Capture session stopped")
	return err
}

// ID returns the identifier of the running session, or "".
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.decoder == nil {
		return ""
	}
	return s.id
}

// Running reports whether Start succeeded and Stop has not been called.
func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.decoder != nil
}

// Status is a point-in-time view of the session for the status API.
type Status struct {
	Running         bool   `json:"running"`
	SessionID       string `json:"session_id,omitempty"`
	Target          string `json:"target,omitempty"`
	Codec           string `json:"codec"`
	Width           int    `json:"width"`
	Height          int    `json:"height"`
	FramesPublished uint64 `json:"frames_published"`
	FramesSkipped   uint64 `json:"frames_skipped"`
}

// Status reports the session state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		Running: s.decoder != nil,
		Codec:   s.cfg.Codec,
		Width:   s.cfg.Width,
		Height:  s.cfg.Height,
	}
	if s.decoder != nil {
		st.SessionID = s.id
		st.Target = s.targetID
		st.FramesPublished, st.FramesSkipped = s.decoder.Stats()
	}
	return st
}
