package health

import (
	"context"
	"fmt"
	"sync"
)

// ADBVersioner is the part of the device wrapper the checker needs.
type ADBVersioner interface {
	Version(ctx context.Context) (string, error)
}

// ADBChecker checks that the adb binary runs.
type ADBChecker struct {
	adb ADBVersioner

	mu      sync.Mutex
	version string
}

// NewADBChecker creates a checker around adb.
func NewADBChecker(adb ADBVersioner) *ADBChecker {
	return &ADBChecker{adb: adb}
}

// Name returns the name of the checker.
func (a *ADBChecker) Name() string {
	return "adb"
}

// Check runs `adb version`.
func (a *ADBChecker) Check(ctx context.Context) error {
	v, err := a.adb.Version(ctx)
	if err != nil {
		return fmt.Errorf("adb version check failed: %w", err)
	}
	a.mu.Lock()
	a.version = v
	a.mu.Unlock()
	return nil
}

// Details implements DetailsProvider.
func (a *ADBChecker) Details() map[string]interface{} {
	a.mu.Lock()
	defer a.mu.Unlock()
	return map[string]interface{}{"version": a.version}
}

// CaptureStatus reports whether a capture session is running.
type CaptureStatus interface {
	Running() bool
}

// CaptureChecker reports a stopped capture session as degraded: the service
// still answers but produces no new state.
type CaptureChecker struct {
	session CaptureStatus
}

// NewCaptureChecker creates a checker for session.
func NewCaptureChecker(session CaptureStatus) *CaptureChecker {
	return &CaptureChecker{session: session}
}

// Name returns the name of the checker.
func (c *CaptureChecker) Name() string {
	return "capture"
}

// Check reports the session state.
func (c *CaptureChecker) Check(ctx context.Context) error {
	if !c.session.Running() {
		return Degraded(fmt.Errorf("capture session not running"))
	}
	return nil
}
