// Package decoder runs the background worker that turns an encoded byte
// stream into decoded frames and keeps the newest one in a frame.Cell.
package decoder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zsiec/screenwatch/internal/capture/codec"
	"github.com/zsiec/screenwatch/internal/capture/frame"
	apperrors "github.com/zsiec/screenwatch/internal/errors"
	"github.com/zsiec/screenwatch/internal/logger"
	"github.com/zsiec/screenwatch/internal/metrics"
)

const (
	DefaultChunkSize   = 64 * 1024
	DefaultStopTimeout = time.Second
)

// Config holds the decoder settings.
type Config struct {
	ChunkSize   int
	StopTimeout time.Duration
	Codec       codec.Options
}

// Decoder owns a codec parser/decoder pair and the worker that feeds it.
// The worker is started lazily by the first CurrentFrame call (or Start) and
// runs until the source reaches end of stream or is closed by Stop.
type Decoder struct {
	source    io.ReadCloser
	codecName string
	parser    codec.Parser
	frames    codec.FrameDecoder
	cell      *frame.Cell

	chunkSize   int
	stopTimeout time.Duration

	logger *logger.SampledLogger

	// lifeMu orders Start against Stop: once Stop has run, Start launches
	// nothing, and Stop knows whether a worker owns the frame decoder.
	lifeMu   sync.Mutex
	started  bool
	stopping atomic.Bool // read by the worker without lifeMu
	stopOnce sync.Once
	stopErr  error
	done     chan struct{}
}

// New builds a decoder for codecName reading from source. Parser and frame
// decoder state is created once, here.
func New(source io.ReadCloser, codecName string, cfg Config, log logger.Logger) (*Decoder, error) {
	if source == nil {
		return nil, fmt.Errorf("decoder: nil source")
	}

	c, err := codec.Lookup(codecName)
	if err != nil {
		return nil, err
	}

	log = logger.WithComponent(logger.OrNull(log), "decoder")
	if cfg.Codec.Logger == nil {
		cfg.Codec.Logger = log
	}

	frames, err := c.NewDecoder(cfg.Codec)
	if err != nil {
		return nil, fmt.Errorf("create %s decoder: %w", codecName, err)
	}

	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = DefaultStopTimeout
	}

	return &Decoder{
		source:      source,
		codecName:   codecName,
		parser:      c.NewParser(),
		frames:      frames,
		cell:        frame.NewCell(),
		chunkSize:   cfg.ChunkSize,
		stopTimeout: cfg.StopTimeout,
		logger:      logger.NewCaptureLogger(log),
		done:        make(chan struct{}),
	}, nil
}

// Start launches the worker. Only the first call has an effect, and none
// after Stop.
func (d *Decoder) Start() {
	d.lifeMu.Lock()
	defer d.lifeMu.Unlock()

	if d.started || d.stopping.Load() {
		return
	}
	d.started = true
	go d.run()
}

func (d *Decoder) isStarted() bool {
	d.lifeMu.Lock()
	defer d.lifeMu.Unlock()
	return d.started
}

// Done is closed when the worker has exited.
func (d *Decoder) Done() <-chan struct{} {
	return d.done
}

// Latest returns the newest decoded frame without starting or waiting.
func (d *Decoder) Latest() (*frame.Decoded, bool) {
	return d.cell.Read()
}

// CurrentFrame returns the newest decoded frame. If none has been published
// yet it starts the worker and waits for the first one until ctx is done. A
// context without deadline waits for as long as the stream stays open.
func (d *Decoder) CurrentFrame(ctx context.Context) (*frame.Decoded, error) {
	if f, ok := d.cell.Read(); ok {
		return f, nil
	}

	d.Start()
	if !d.isStarted() {
		return nil, apperrors.NewFrameUnavailableError("decoder stopped before a frame was decoded")
	}

	start := time.Now()
	f, err := d.cell.Wait(ctx, d.done)
	metrics.ObserveFrameWait(time.Since(start).Seconds())
	return f, err
}

// Stop closes the source, which ends the worker's blocking read, and waits
// up to the stop timeout for it to exit. A worker still running after that
// is abandoned: it holds no lock and its output is never read again. Stop is
// safe to call more than once and before Start.
func (d *Decoder) Stop() error {
	d.stopOnce.Do(func() {
		d.lifeMu.Lock()
		d.stopping.Store(true)
		started := d.started
		d.lifeMu.Unlock()

		if err := d.source.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			d.logger.WithError(err).Debug("Error closing stream source")
		}

		// Without a worker nobody else will close the frame decoder.
		if !started {
			d.frames.Close()
			return
		}

		select {
		case <-d.done:
		case <-time.After(d.stopTimeout):
			d.logger.WithField("timeout", d.stopTimeout).Warn("Decoder worker did not exit in time, abandoning it")
			d.stopErr = apperrors.NewTimeoutError(fmt.Sprintf("decoder worker still running after %s", d.stopTimeout))
		}
	})
	return d.stopErr
}

// Stats reports published and unread-replaced frame counts.
func (d *Decoder) Stats() (published, dropped uint64) {
	return d.cell.Stats()
}

func (d *Decoder) run() {
	defer close(d.done)
	defer d.frames.Close()

	d.logger.WithField("codec", d.codecName).Debug("Decoder worker started")

	buf := make([]byte, d.chunkSize)
	for {
		n, err := d.source.Read(buf)
		if n > 0 {
			d.handleChunk(buf[:n])
		}
		if err == nil {
			continue
		}

		if d.stopping.Load() {
			d.logger.Debug("Decoder worker stopped")
			return
		}
		if errors.Is(err, io.EOF) {
			d.flush()
			d.logger.Info("Stream ended")
			return
		}
		d.logger.WithError(err).Warn("Stream read failed, decoder worker exiting")
		return
	}
}

// handleChunk parses one chunk and decodes only the last packet it
// completed; earlier packets in the same chunk are dropped in favor of
// latency. Failures are logged and the chunk skipped.
func (d *Decoder) handleChunk(chunk []byte) {
	defer func() {
		if r := recover(); r != nil {
			metrics.IncrementDecodeError(d.codecName, "panic")
			d.logger.WarnWithCategory(logger.CategoryPacketProcessing, "Recovered from panic while decoding chunk",
				map[string]interface{}{"panic": fmt.Sprint(r), "bytes": len(chunk)})
		}
	}()

	metrics.RecordChunk(len(chunk))

	pkts, err := d.parser.Parse(chunk)
	if err != nil {
		metrics.IncrementDecodeError(d.codecName, "parse")
		d.logger.WarnWithCategory(logger.CategoryPacketProcessing, "Failed to parse stream chunk",
			map[string]interface{}{"error": err.Error(), "bytes": len(chunk)})
	}
	if len(pkts) == 0 {
		return
	}
	metrics.RecordPackets(d.codecName, len(pkts), len(pkts)-1)

	d.decode(pkts[len(pkts)-1])
}

// flush decodes whatever the parser still buffers at end of stream.
func (d *Decoder) flush() {
	pkts := d.parser.Flush()
	if len(pkts) == 0 {
		return
	}
	metrics.RecordPackets(d.codecName, len(pkts), len(pkts)-1)
	d.decode(pkts[len(pkts)-1])
}

func (d *Decoder) decode(pkt codec.Packet) {
	imgs, err := d.frames.Decode(pkt)
	if err != nil {
		metrics.IncrementDecodeError(d.codecName, "decode")
		d.logger.WarnWithCategory(logger.CategoryFrameProcessing, "Failed to decode packet",
			map[string]interface{}{
				"error":    apperrors.NewStreamDecodeError(err).Error(),
				"bytes":    len(pkt.Data),
				"keyframe": pkt.KeyFrame,
			})
		return
	}
	if len(imgs) == 0 {
		return
	}

	d.cell.Publish(frame.NewDecoded(imgs[len(imgs)-1], time.Now()))
	metrics.IncrementFramesDecoded(d.codecName)
}
