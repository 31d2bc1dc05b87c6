package h264

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsiec/screenwatch/internal/capture/codec"
	"github.com/zsiec/screenwatch/internal/capture/frame"
)

func TestFFmpegDecoderNeedsSPS(t *testing.T) {
	d := NewFFmpegDecoder(codec.Options{})
	defer d.Close()

	_, err := d.Decode(codec.Packet{Data: annexB(testP1)})
	assert.ErrorIs(t, err, ErrNoParameterSets)
}

func TestFFmpegDecoderCloseWithoutProcess(t *testing.T) {
	d := NewFFmpegDecoder(codec.Options{})
	assert.NoError(t, d.Close())
	assert.NoError(t, d.Close())
}

// fakeFFmpeg writes a stand-in ffmpeg that emits one 2x2 rgb24 frame and
// records everything written to its stdin. It lets the ffmpeg-go pipeline be
// exercised where no real ffmpeg is installed.
func fakeFFmpeg(t *testing.T) (bin, stdinLog string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake ffmpeg is a shell script")
	}
	dir := t.TempDir()
	stdinLog = filepath.Join(dir, "stdin.bin")

	script := `#!/bin/sh
printf '\377\000\000\000\377\000\000\000\377\377\377\377'
exec cat > "` + stdinLog + `"
`
	bin = filepath.Join(dir, "ffmpeg")
	require.NoError(t, os.WriteFile(bin, []byte(script), 0o755))
	return bin, stdinLog
}

func TestFFmpegDecoderPipeline(t *testing.T) {
	bin, stdinLog := fakeFFmpeg(t)

	d := NewFFmpegDecoder(codec.Options{FFmpegPath: bin, DecodeWait: time.Second})
	defer d.Close()

	ps := annexB(testSPS, testPPS)

	imgs, err := d.Decode(codec.Packet{Data: annexB(testP1), Width: 2, Height: 2, ParamSets: ps})
	require.NoError(t, err)
	require.Len(t, imgs, 1)

	rgb, ok := imgs[0].(*frame.RGB)
	require.True(t, ok)
	assert.Equal(t, 2, rgb.Bounds().Dx())

	tests := []struct {
		x, y int
		want [3]uint8
	}{
		{0, 0, [3]uint8{255, 0, 0}},
		{1, 0, [3]uint8{0, 255, 0}},
		{0, 1, [3]uint8{0, 0, 255}},
		{1, 1, [3]uint8{255, 255, 255}},
	}
	for _, tt := range tests {
		px, err := rgb.Sample(tt.x, tt.y)
		require.NoError(t, err)
		assert.Equal(t, tt.want, px, "pixel (%d,%d)", tt.x, tt.y)
	}

	// Same parameter sets again: not rewritten.
	imgs, err = d.Decode(codec.Packet{Data: annexB(testP2), Width: 2, Height: 2, ParamSets: ps})
	require.NoError(t, err)
	assert.Empty(t, imgs)

	var want []byte
	want = append(want, ps...)
	want = append(want, annexB(testP1)...)
	want = append(want, accessUnitDelimiter...)
	want = append(want, annexB(testP2)...)
	want = append(want, accessUnitDelimiter...)

	require.Eventually(t, func() bool {
		got, err := os.ReadFile(stdinLog)
		return err == nil && bytes.Equal(want, got)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestFFmpegDecoderParamSetsReachNewProcess(t *testing.T) {
	bin, stdinLog := fakeFFmpeg(t)

	d := NewFFmpegDecoder(codec.Options{FFmpegPath: bin, DecodeWait: 200 * time.Millisecond})
	defer d.Close()

	// The access unit holding SPS/PPS was superseded and never decoded; the
	// first packet this decoder sees is a plain P picture.
	_, err := d.Decode(codec.Packet{Data: annexB(testP1), Width: 2, Height: 2, ParamSets: annexB(testSPS, testPPS)})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got, err := os.ReadFile(stdinLog)
		return err == nil && bytes.HasPrefix(got, annexB(testSPS, testPPS, testP1))
	}, 2*time.Second, 10*time.Millisecond)
}

// TestFFmpegDecoderDecodesStream needs a real ffmpeg with libx264; it is
// skipped otherwise.
func TestFFmpegDecoderDecodesStream(t *testing.T) {
	ffmpegPath, err := exec.LookPath("ffmpeg")
	if err != nil {
		t.Skip("ffmpeg not installed")
	}

	// Encode a short clip the way screenrecord would send it: raw Annex-B,
	// no B-frames.
	var stream bytes.Buffer
	cmd := exec.Command(ffmpegPath, "-hide_banner", "-loglevel", "error",
		"-f", "lavfi", "-i", "testsrc=size=64x48:rate=10",
		"-frames:v", "5", "-c:v", "libx264", "-bf", "0", "-pix_fmt", "yuv420p",
		"-f", "h264", "-")
	cmd.Stdout = &stream
	if err := cmd.Run(); err != nil {
		t.Skipf("ffmpeg cannot encode h264: %v", err)
	}

	p := NewParser()
	pkts, err := p.Parse(stream.Bytes())
	require.NoError(t, err)
	pkts = append(pkts, p.Flush()...)
	require.NotEmpty(t, pkts)
	assert.True(t, pkts[0].KeyFrame)

	d := NewFFmpegDecoder(codec.Options{FFmpegPath: ffmpegPath, DecodeWait: 2 * time.Second})
	defer d.Close()

	var frames int
	for _, pkt := range pkts {
		imgs, err := d.Decode(pkt)
		require.NoError(t, err)
		for _, img := range imgs {
			rgb, ok := img.(*frame.RGB)
			require.True(t, ok)
			assert.Equal(t, 64, rgb.Bounds().Dx())
			assert.Equal(t, 48, rgb.Bounds().Dy())
			frames++
		}
	}
	assert.Greater(t, frames, 0)
}
