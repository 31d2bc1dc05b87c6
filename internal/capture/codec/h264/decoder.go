package h264

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os/exec"
	"sync"
	"time"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/zsiec/screenwatch/internal/capture/codec"
	"github.com/zsiec/screenwatch/internal/capture/frame"
	"github.com/zsiec/screenwatch/internal/logger"
)

const (
	defaultDecodeWait = 100 * time.Millisecond
	frameQueueSize    = 4
)

// Written after every access unit so ffmpeg's own parser closes the picture
// immediately instead of waiting for the next one.
var accessUnitDelimiter = []byte{0x00, 0x00, 0x00, 0x01, 0x09, 0xf0}

// ErrNoParameterSets is returned for packets that arrive before the first SPS.
var ErrNoParameterSets = errors.New("no SPS received yet")

// FFmpegDecoder decodes access units by streaming them into an ffmpeg
// process and reading back rgb24 raw video. The process is started on the
// first packet with a known picture size and restarted when the size changes.
type FFmpegDecoder struct {
	opts   codec.Options
	logger logger.Logger

	mu   sync.Mutex
	proc *ffmpegProcess
}

// NewFFmpegDecoder creates a decoder. No process is started until Decode.
func NewFFmpegDecoder(opts codec.Options) *FFmpegDecoder {
	if opts.DecodeWait <= 0 {
		opts.DecodeWait = defaultDecodeWait
	}
	return &FFmpegDecoder{
		opts:   opts,
		logger: logger.OrNull(opts.Logger),
	}
}

// Decode implements codec.FrameDecoder.
func (d *FFmpegDecoder) Decode(pkt codec.Packet) ([]image.Image, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.proc != nil && (pkt.Width != 0 && (pkt.Width != d.proc.width || pkt.Height != d.proc.height)) {
		d.logger.WithFields(map[string]interface{}{
			"old_width":  d.proc.width,
			"old_height": d.proc.height,
			"width":      pkt.Width,
			"height":     pkt.Height,
		}).Info("Picture size changed, restarting ffmpeg")
		d.proc.close()
		d.proc = nil
	}

	if d.proc == nil {
		if pkt.Width <= 0 || pkt.Height <= 0 {
			return nil, ErrNoParameterSets
		}
		proc, err := startFFmpeg(d.opts, pkt.Width, pkt.Height)
		if err != nil {
			return nil, err
		}
		d.proc = proc
		d.logger.WithFields(map[string]interface{}{
			"width":  pkt.Width,
			"height": pkt.Height,
		}).Debug("Started ffmpeg decoder")
	}

	err := d.proc.writeParamSets(pkt.ParamSets)
	if err == nil {
		err = d.proc.write(pkt.Data)
	}
	if err != nil {
		perr := d.proc.exitErr()
		d.proc.close()
		d.proc = nil
		if perr != nil {
			return nil, fmt.Errorf("ffmpeg exited: %w", perr)
		}
		return nil, fmt.Errorf("write to ffmpeg: %w", err)
	}

	return d.proc.collect(d.opts.DecodeWait), nil
}

// Close implements codec.FrameDecoder.
func (d *FFmpegDecoder) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.proc == nil {
		return nil
	}
	d.proc.close()
	d.proc = nil
	return nil
}

type ffmpegProcess struct {
	width  int
	height int

	paramSets []byte // last parameter sets written to stdin

	cancel context.CancelFunc
	stdin  *io.PipeWriter
	frames chan image.Image
	done   chan struct{}

	errMu sync.Mutex
	err   error
}

func startFFmpeg(opts codec.Options, width, height int) (*ffmpegProcess, error) {
	ctx, cancel := context.WithCancel(context.Background())

	inR, inW := io.Pipe()
	outR, outW := io.Pipe()

	stream := ffmpeg.Input("pipe:", ffmpeg.KwArgs{
		"f":               "h264",
		"fflags":          "nobuffer",
		"flags":           "low_delay",
		"threads":         1,
		"probesize":       32,
		"analyzeduration": 0,
	}).Output("pipe:", ffmpeg.KwArgs{
		"f":       "rawvideo",
		"pix_fmt": "rgb24",
	}).GlobalArgs("-hide_banner", "-loglevel", "error")
	stream.Context = ctx

	cmd := stream.WithInput(inR).WithOutput(outW).Compile()
	if opts.FFmpegPath != "" {
		cmd.Path = opts.FFmpegPath
		cmd.Args[0] = opts.FFmpegPath
		cmd.Err = nil
	}

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}

	p := &ffmpegProcess{
		width:  width,
		height: height,
		cancel: cancel,
		stdin:  inW,
		frames: make(chan image.Image, frameQueueSize),
		done:   make(chan struct{}),
	}

	go p.wait(cmd, inR, outW)
	go p.readFrames(outR)

	return p, nil
}

func (p *ffmpegProcess) wait(cmd *exec.Cmd, inR *io.PipeReader, outW *io.PipeWriter) {
	err := cmd.Wait()
	if err == nil {
		err = io.EOF
	}
	p.errMu.Lock()
	p.err = err
	p.errMu.Unlock()

	// Unblock any pending write and the frame reader.
	inR.CloseWithError(err)
	outW.CloseWithError(err)
}

func (p *ffmpegProcess) readFrames(r io.Reader) {
	defer close(p.done)

	size := p.width * p.height * frame.Channels
	for {
		buf := make([]byte, size)
		if _, err := io.ReadFull(r, buf); err != nil {
			return
		}
		img := frame.FromRawRGB24(buf, p.width, p.height)

		// Latest wins: drop the oldest queued frame if nobody collected it.
		select {
		case p.frames <- img:
		default:
			select {
			case <-p.frames:
			default:
			}
			select {
			case p.frames <- img:
			default:
			}
		}
	}
}

// writeParamSets writes ps unless this process has already received it, so
// every process sees the sets before its first picture even when the access
// unit that carried them was never decoded.
func (p *ffmpegProcess) writeParamSets(ps []byte) error {
	if len(ps) == 0 || bytes.Equal(ps, p.paramSets) {
		return nil
	}
	if _, err := p.stdin.Write(ps); err != nil {
		return err
	}
	p.paramSets = ps
	return nil
}

func (p *ffmpegProcess) write(data []byte) error {
	if _, err := p.stdin.Write(data); err != nil {
		return err
	}
	_, err := p.stdin.Write(accessUnitDelimiter)
	return err
}

// collect waits up to wait for the first frame, then drains whatever else is
// queued without blocking.
func (p *ffmpegProcess) collect(wait time.Duration) []image.Image {
	var out []image.Image

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case img := <-p.frames:
		out = append(out, img)
	case <-timer.C:
		return nil
	case <-p.done:
	}

	for {
		select {
		case img := <-p.frames:
			out = append(out, img)
		default:
			return out
		}
	}
}

func (p *ffmpegProcess) exitErr() error {
	p.errMu.Lock()
	defer p.errMu.Unlock()
	return p.err
}

func (p *ffmpegProcess) close() {
	p.stdin.Close()
	p.cancel()
	<-p.done
}

func init() {
	codec.Register(codec.Codec{
		Name:      CodecName,
		NewParser: func() codec.Parser { return NewParser() },
		NewDecoder: func(opts codec.Options) (codec.FrameDecoder, error) {
			return NewFFmpegDecoder(opts), nil
		},
	})
}
