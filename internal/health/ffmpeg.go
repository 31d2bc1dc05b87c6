package health

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
)

// FFmpegChecker checks that ffmpeg runs and ships the decoders the capture
// pipeline needs.
type FFmpegChecker struct {
	binaryPath string
	decoders   []string

	mu      sync.Mutex
	version string
}

// NewFFmpegChecker creates a checker for binaryPath, or ffmpeg on PATH when
// it is empty.
func NewFFmpegChecker(binaryPath string, decoders ...string) *FFmpegChecker {
	if binaryPath == "" {
		if path, err := exec.LookPath("ffmpeg"); err == nil {
			binaryPath = path
		}
	}
	if len(decoders) == 0 {
		decoders = []string{"h264"}
	}

	return &FFmpegChecker{
		binaryPath: binaryPath,
		decoders:   decoders,
	}
}

// Name returns the name of the checker.
func (f *FFmpegChecker) Name() string {
	return "ffmpeg"
}

// Check performs the FFmpeg health check.
func (f *FFmpegChecker) Check(ctx context.Context) error {
	if f.binaryPath == "" {
		return fmt.Errorf("ffmpeg binary not found in PATH")
	}

	output, err := exec.CommandContext(ctx, f.binaryPath, "-hide_banner", "-version").Output()
	if err != nil {
		return fmt.Errorf("ffmpeg version check failed: %w", err)
	}
	first, _, _ := strings.Cut(string(output), "\n")
	if !strings.HasPrefix(first, "ffmpeg version") {
		return fmt.Errorf("unexpected ffmpeg version output: %q", first)
	}
	f.mu.Lock()
	f.version = strings.TrimSpace(first)
	f.mu.Unlock()

	output, err = exec.CommandContext(ctx, f.binaryPath, "-hide_banner", "-decoders").Output()
	if err != nil {
		return fmt.Errorf("failed to get decoder list: %w", err)
	}

	available := parseDecoders(string(output))
	var missing []string
	for _, d := range f.decoders {
		if !available[d] {
			missing = append(missing, d)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing decoders: %v", missing)
	}
	return nil
}

// Details implements DetailsProvider.
func (f *FFmpegChecker) Details() map[string]interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return map[string]interface{}{
		"binary_path": f.binaryPath,
		"version":     f.version,
		"decoders":    f.decoders,
	}
}

// parseDecoders reads `ffmpeg -decoders` output, whose entries look like
// " V....D h264                 H.264 / AVC / MPEG-4 AVC / MPEG-4 part 10".
func parseDecoders(output string) map[string]bool {
	decoders := make(map[string]bool)
	inList := false
	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		if !inList {
			// The legend ends with a lone " ------" line.
			inList = len(fields) > 0 && strings.HasPrefix(fields[0], "---")
			continue
		}
		if len(fields) < 2 {
			continue
		}
		decoders[fields[1]] = true
	}
	return decoders
}
