package health

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeVersioner struct {
	version string
	err     error
}

func (f fakeVersioner) Version(ctx context.Context) (string, error) {
	return f.version, f.err
}

type fakeSession bool

func (f fakeSession) Running() bool { return bool(f) }

func TestADBChecker(t *testing.T) {
	ok := NewADBChecker(fakeVersioner{version: "Android Debug Bridge version 1.0.41"})
	assert.Equal(t, "adb", ok.Name())
	require.NoError(t, ok.Check(context.Background()))
	assert.Equal(t, "Android Debug Bridge version 1.0.41", ok.Details()["version"])

	broken := NewADBChecker(fakeVersioner{err: errors.New("exec: \"adb\": executable file not found")})
	err := broken.Check(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "adb version check failed")
}

func TestCaptureChecker(t *testing.T) {
	assert.NoError(t, NewCaptureChecker(fakeSession(true)).Check(context.Background()))

	err := NewCaptureChecker(fakeSession(false)).Check(context.Background())
	require.Error(t, err)
	assert.True(t, IsDegraded(err))
}
