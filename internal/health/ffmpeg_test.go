package health

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const decodersOutput = `Decoders:
 V..... = Video
 A..... = Audio
 ------
 V....D h264                 H.264 / AVC / MPEG-4 AVC / MPEG-4 part 10
 VFS..D hevc                 HEVC (High Efficiency Video Coding)
 V....D mjpeg                MJPEG (Motion JPEG)
 A....D aac                  AAC (Advanced Audio Coding)
`

func TestParseDecoders(t *testing.T) {
	got := parseDecoders(decodersOutput)

	assert.True(t, got["h264"])
	assert.True(t, got["mjpeg"])
	assert.True(t, got["aac"])
	assert.False(t, got["Video"])
	assert.False(t, got["av1"])
}

func TestParseDecodersLegendOnly(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   map[string]bool
	}{
		{
			name:   "no separator",
			output: "Decoders:\n V..... = Video\n V....D h264 H.264\n",
			want:   map[string]bool{},
		},
		{
			name:   "separator then blank line",
			output: "Decoders:\n ------\n\n V....D h264 H.264\n",
			want:   map[string]bool{"h264": true},
		},
		{
			name:   "empty",
			output: "",
			want:   map[string]bool{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseDecoders(tt.output))
		})
	}
}

func TestFFmpegCheckerDefaults(t *testing.T) {
	checker := NewFFmpegChecker("/usr/bin/ffmpeg")
	assert.Equal(t, "ffmpeg", checker.Name())
	assert.Equal(t, "/usr/bin/ffmpeg", checker.binaryPath)
	assert.Equal(t, []string{"h264"}, checker.decoders)
}

func TestFFmpegCheckerMissingBinary(t *testing.T) {
	tests := []struct {
		name       string
		binaryPath string
	}{
		{"non-existent binary", "/nonexistent/ffmpeg"},
		{"empty binary path", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := &FFmpegChecker{binaryPath: tt.binaryPath, decoders: []string{"h264"}}
			assert.Error(t, checker.Check(context.Background()))
		})
	}
}

func fakeFFmpeg(t *testing.T, decoders string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake ffmpeg is a shell script")
	}
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "decoders.txt"), []byte(decoders), 0o644))

	script := `#!/bin/sh
case "$*" in
  *-version*) echo "ffmpeg version 6.1.1 Copyright (c) 2000-2023 the FFmpeg developers" ;;
  *-decoders*) cat "$(dirname "$0")/decoders.txt" ;;
esac
`
	path := filepath.Join(dir, "ffmpeg")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func TestFFmpegCheckerFakeBinary(t *testing.T) {
	checker := NewFFmpegChecker(fakeFFmpeg(t, decodersOutput), "h264", "mjpeg")
	require.NoError(t, checker.Check(context.Background()))

	details := checker.Details()
	assert.Equal(t, "ffmpeg version 6.1.1 Copyright (c) 2000-2023 the FFmpeg developers", details["version"])
}

func TestFFmpegCheckerMissingDecoder(t *testing.T) {
	checker := NewFFmpegChecker(fakeFFmpeg(t, decodersOutput), "h264", "av1")
	err := checker.Check(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "av1")
}

func TestFFmpegCheckerRealBinary(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not installed")
	}

	checker := NewFFmpegChecker("")
	assert.NoError(t, checker.Check(context.Background()))
}
