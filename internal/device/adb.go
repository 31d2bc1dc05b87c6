// Package device drives the Android device that produces the screen stream.
// It implements capture.Source on top of adb and on top of recorded files.
package device

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/zsiec/screenwatch/internal/config"
	"github.com/zsiec/screenwatch/internal/logger"
)

// ErrADBNotFound is returned when no adb binary can be located.
var ErrADBNotFound = errors.New("adb binary not found")

const (
	commandTimeout = 10 * time.Second
	killGrace      = 2 * time.Second
)

// DeviceMetrics is the physical screen size reported by the device.
type DeviceMetrics struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// ADB wraps the adb binary. It owns at most one screenrecord process at a
// time; nothing else may terminate it.
type ADB struct {
	binary string
	serial string
	format string
	logger logger.Logger

	mu     sync.Mutex
	record *recording
}

type recording struct {
	cmd    *exec.Cmd
	stdout *os.File
	stderr *bytes.Buffer
	done   chan struct{}
	err    error
}

// FindADB resolves the adb binary: the configured path if any, then
// ./bin/adb.exe and ./bin/adb, then adb on PATH.
func FindADB(configured string) (string, error) {
	if configured != "" {
		path, err := exec.LookPath(configured)
		if err != nil {
			return "", fmt.Errorf("%w: configured path %q: %v", ErrADBNotFound, configured, err)
		}
		return path, nil
	}

	candidates := []string{filepath.Join("bin", "adb.exe"), filepath.Join("bin", "adb")}
	if wd, err := os.Getwd(); err == nil {
		for i, c := range candidates {
			candidates[i] = filepath.Join(wd, c)
		}
	}
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return c, nil
		}
	}

	path, err := exec.LookPath("adb")
	if err != nil {
		return "", fmt.Errorf("%w in %s or PATH", ErrADBNotFound, strings.Join(candidates, ", "))
	}
	return path, nil
}

// NewADB locates the adb binary and binds the configured default serial.
func NewADB(cfg *config.DeviceConfig, log logger.Logger) (*ADB, error) {
	binary, err := FindADB(cfg.ADBPath)
	if err != nil {
		return nil, err
	}

	format := cfg.OutputFormat
	if format == "" {
		format = "h264"
	}

	return &ADB{
		binary: binary,
		serial: cfg.Serial,
		format: format,
		logger: logger.WithComponent(logger.OrNull(log), "adb"),
	}, nil
}

// Binary returns the resolved adb path.
func (a *ADB) Binary() string { return a.binary }

// Start implements capture.Source. An empty targetID uses the configured
// serial, or lets adb pick the only attached device.
func (a *ADB) Start(ctx context.Context, targetID string) (io.ReadCloser, error) {
	if targetID == "" {
		targetID = a.serial
	}
	return a.StartScreenRecord(ctx, targetID)
}

// StartScreenRecord starts screenrecord on the device and returns its raw
// stdout. A recording that is already running is stopped first. ctx bounds
// only the start; the process runs until Stop or until it exits.
func (a *ADB) StartScreenRecord(ctx context.Context, serial string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.record != nil {
		a.logger.Info("Stopping previous screen recording")
		a.stopLocked()
	}

	args := a.deviceArgs(serial, "exec-out", "screenrecord", "--output-format="+a.format, "-")

	// The parent keeps only the read end so the stream reaches EOF when the
	// process exits, independently of Wait.
	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}

	rec := &recording{
		cmd:    exec.Command(a.binary, args...),
		stdout: r,
		stderr: &bytes.Buffer{},
		done:   make(chan struct{}),
	}
	rec.cmd.Stdout = w
	rec.cmd.Stderr = rec.stderr

	if err := rec.cmd.Start(); err != nil {
		r.Close()
		w.Close()
		return nil, fmt.Errorf("start screenrecord: %w", err)
	}
	w.Close()

	log := a.logger.WithFields(map[string]interface{}{
		"serial": serial,
		"pid":    rec.cmd.Process.Pid,
	})

	go func() {
		rec.err = rec.cmd.Wait()
		if rec.err != nil {
			log.WithError(rec.err).WithField("stderr", strings.TrimSpace(rec.stderr.String())).
				Debug("Screen recording process exited")
		} else {
			log.Debug("Screen recording process exited")
		}
		close(rec.done)
	}()

	a.record = rec
	log.Info("Screen recording started")
	return r, nil
}

// Stop terminates the screen recording process if one is running. It is
// idempotent.
func (a *ADB) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stopLocked()
}

func (a *ADB) stopLocked() error {
	rec := a.record
	if rec == nil {
		return nil
	}
	a.record = nil

	if err := rec.cmd.Process.Signal(os.Interrupt); err != nil && !errors.Is(err, os.ErrProcessDone) {
		// Interrupt is not supported everywhere.
		rec.cmd.Process.Kill()
	}

	select {
	case <-rec.done:
	case <-time.After(killGrace):
		a.logger.Warn("Screen recording did not exit on interrupt, killing it")
		rec.cmd.Process.Kill()
		<-rec.done
	}

	if err := rec.stdout.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		return fmt.Errorf("close screenrecord stream: %w", err)
	}
	return nil
}

// Tap sends a tap at (x, y) in device pixels.
func (a *ADB) Tap(ctx context.Context, x, y int) error {
	_, err := a.run(ctx, a.deviceArgs(a.serial, "shell", "input", "tap", strconv.Itoa(x), strconv.Itoa(y))...)
	return err
}

var sizePattern = regexp.MustCompile(`(\d+)x(\d+)`)

// ScreenSize returns the physical screen size reported by `wm size`. An
// empty serial uses the configured one.
func (a *ADB) ScreenSize(ctx context.Context, serial string) (DeviceMetrics, error) {
	if serial == "" {
		serial = a.serial
	}
	out, err := a.run(ctx, a.deviceArgs(serial, "shell", "wm", "size")...)
	if err != nil {
		return DeviceMetrics{}, err
	}
	return ParseScreenSize(out)
}

// ParseScreenSize extracts WxH from `wm size` output, for example
// "Physical size: 1080x2400".
func ParseScreenSize(out string) (DeviceMetrics, error) {
	m := sizePattern.FindStringSubmatch(out)
	if m == nil {
		return DeviceMetrics{}, fmt.Errorf("could not parse device size from %q", strings.TrimSpace(out))
	}
	w, _ := strconv.Atoi(m[1])
	h, _ := strconv.Atoi(m[2])
	if w == 0 || h == 0 {
		return DeviceMetrics{}, fmt.Errorf("device reported empty size %dx%d", w, h)
	}
	return DeviceMetrics{Width: w, Height: h}, nil
}

// Version returns the first line of `adb version`.
func (a *ADB) Version(ctx context.Context) (string, error) {
	out, err := a.run(ctx, "version")
	if err != nil {
		return "", err
	}
	line, _, _ := strings.Cut(strings.TrimSpace(out), "\n")
	return strings.TrimSpace(line), nil
}

func (a *ADB) deviceArgs(serial string, args ...string) []string {
	if serial == "" {
		return args
	}
	return append([]string{"-s", serial}, args...)
}

func (a *ADB) run(ctx context.Context, args ...string) (string, error) {
	cmdCtx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(cmdCtx, a.binary, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("adb %s failed: %w (stderr: %q)",
			strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}
