package capture

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsiec/screenwatch/internal/config"
	apperrors "github.com/zsiec/screenwatch/internal/errors"
	"github.com/zsiec/screenwatch/internal/metrics"
)

// pipeSource hands out one end of an io.Pipe per Start; the test writes the
// encoded stream into the other end.
type pipeSource struct {
	mu       sync.Mutex
	startErr error
	writer   *io.PipeWriter
	target   string
	starts   int
	stops    int
}

func (p *pipeSource) Start(ctx context.Context, targetID string) (io.ReadCloser, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.starts++
	if p.startErr != nil {
		return nil, p.startErr
	}
	r, w := io.Pipe()
	p.writer = w
	p.target = targetID
	return r, nil
}

func (p *pipeSource) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stops++
	if p.writer != nil {
		p.writer.Close()
		p.writer = nil
	}
	return nil
}

func (p *pipeSource) write(t *testing.T, data []byte) {
	t.Helper()
	p.mu.Lock()
	w := p.writer
	p.mu.Unlock()
	require.NotNil(t, w)

	go func() {
		_, _ = w.Write(data)
	}()
}

func testCaptureConfig() *config.CaptureConfig {
	return &config.CaptureConfig{
		Codec:        "mjpeg",
		Width:        432,
		Height:       768,
		ChunkSize:    4096,
		FrameTimeout: 2 * time.Second,
		StopTimeout:  500 * time.Millisecond,
	}
}

func encodeJPEG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)

	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}))
	return buf.Bytes()
}

func newTestSession(t *testing.T, src Source, cfg *config.CaptureConfig) *Session {
	t.Helper()
	s, err := NewSession(src, cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Stop() })
	return s
}

func TestNewSessionValidation(t *testing.T) {
	_, err := NewSession(nil, testCaptureConfig(), nil)
	assert.Error(t, err)

	cfg := testCaptureConfig()
	cfg.Codec = "vp9"
	_, err = NewSession(&pipeSource{}, cfg, nil)
	assert.Error(t, err)

	cfg = testCaptureConfig()
	cfg.Width = 0
	_, err = NewSession(&pipeSource{}, cfg, nil)
	assert.Error(t, err)
}

func TestSessionStartFailure(t *testing.T) {
	src := &pipeSource{startErr: errors.New("device offline")}
	s := newTestSession(t, src, testCaptureConfig())

	err := s.Start(context.Background(), "emulator-5554")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeCaptureStart))
	assert.ErrorContains(t, err, "device offline")
	assert.False(t, s.Running())
	assert.Empty(t, s.ID())
}

func TestSessionGetFrameBeforeStart(t *testing.T) {
	s := newTestSession(t, &pipeSource{}, testCaptureConfig())

	_, err := s.GetFrame(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeFrameUnavailable))
}

func TestSessionGetFrameNormalizes(t *testing.T) {
	src := &pipeSource{}
	s := newTestSession(t, src, testCaptureConfig())

	require.NoError(t, s.Start(context.Background(), "emulator-5554"))
	assert.True(t, s.Running())
	assert.NotEmpty(t, s.ID())
	assert.Equal(t, "emulator-5554", src.target)

	// Same aspect as the capture size, half the resolution.
	src.write(t, encodeJPEG(t, 216, 384, color.RGBA{R: 200, G: 40, B: 220, A: 255}))

	f, err := s.GetFrame(context.Background())
	require.NoError(t, err)
	assert.Equal(t, image.Pt(432, 768), f.Size())
	assert.Equal(t, image.Pt(216, 384), f.SourceSize)
	assert.Equal(t, metrics.PathCropResize, f.Path)

	px, err := f.Sample(216, 384)
	require.NoError(t, err)
	assert.InDelta(t, 200, int(px[0]), 8)
	assert.InDelta(t, 40, int(px[1]), 8)
	assert.InDelta(t, 220, int(px[2]), 8)
}

func TestSessionGetFrameDirectPath(t *testing.T) {
	src := &pipeSource{}
	s := newTestSession(t, src, testCaptureConfig())
	require.NoError(t, s.Start(context.Background(), ""))

	src.write(t, encodeJPEG(t, 432, 768, color.RGBA{R: 10, G: 10, B: 10, A: 255}))

	f, err := s.GetFrame(context.Background())
	require.NoError(t, err)
	assert.Equal(t, image.Pt(432, 768), f.Size())
	assert.Equal(t, metrics.PathDirect, f.Path)
}

func TestSessionStartTwice(t *testing.T) {
	s := newTestSession(t, &pipeSource{}, testCaptureConfig())

	require.NoError(t, s.Start(context.Background(), ""))
	err := s.Start(context.Background(), "")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
}

func TestSessionFrameTimeout(t *testing.T) {
	cfg := testCaptureConfig()
	cfg.FrameTimeout = 50 * time.Millisecond
	s := newTestSession(t, &pipeSource{}, cfg)
	require.NoError(t, s.Start(context.Background(), ""))

	start := time.Now()
	_, err := s.GetFrame(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeFrameUnavailable))
	assert.Less(t, time.Since(start), time.Second)
}

func TestSessionStopIdempotent(t *testing.T) {
	src := &pipeSource{}
	s := newTestSession(t, src, testCaptureConfig())

	// Never started.
	assert.NoError(t, s.Stop())
	assert.Equal(t, 0, src.stops)

	require.NoError(t, s.Start(context.Background(), ""))
	assert.NoError(t, s.Stop())
	assert.NoError(t, s.Stop())
	assert.Equal(t, 1, src.stops)
	assert.False(t, s.Running())

	_, err := s.GetFrame(context.Background())
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeFrameUnavailable))
}

func TestSessionStopWithoutFramesIsBounded(t *testing.T) {
	cfg := testCaptureConfig()
	cfg.FrameTimeout = 0
	s := newTestSession(t, &pipeSource{}, cfg)
	require.NoError(t, s.Start(context.Background(), ""))

	errCh := make(chan error, 1)
	go func() {
		_, err := s.GetFrame(context.Background())
		errCh <- err
	}()

	// Let GetFrame start the worker and block on the first frame.
	time.Sleep(50 * time.Millisecond)

	start := time.Now()
	require.NoError(t, s.Stop())
	assert.Less(t, time.Since(start), cfg.StopTimeout+200*time.Millisecond)

	select {
	case err := <-errCh:
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeFrameUnavailable))
	case <-time.After(2 * time.Second):
		t.Fatal("GetFrame did not return after Stop")
	}
}

func TestSessionRestart(t *testing.T) {
	src := &pipeSource{}
	s := newTestSession(t, src, testCaptureConfig())

	require.NoError(t, s.Start(context.Background(), ""))
	first := s.ID()
	require.NoError(t, s.Stop())

	require.NoError(t, s.Start(context.Background(), ""))
	assert.NotEqual(t, first, s.ID())
	assert.Equal(t, 2, src.starts)

	st := s.Status()
	assert.True(t, st.Running)
	assert.Equal(t, "mjpeg", st.Codec)
	assert.Equal(t, 432, st.Width)
}
