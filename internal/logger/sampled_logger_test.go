package logger

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func newBufferedLogger() (Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	base := logrus.New()
	base.SetOutput(&buf)
	base.SetLevel(logrus.DebugLevel)
	base.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	return NewLogrusAdapter(logrus.NewEntry(base)), &buf
}

func TestSampledLoggerBurstThenDrop(t *testing.T) {
	base, buf := newBufferedLogger()
	sl := NewSampledLogger(base).WithSampler("corrupt", time.Hour, 2, 0)

	for i := 0; i < 10; i++ {
		sl.WarnWithCategory("corrupt", "decode failed", nil)
	}

	// The burst allowance counts the first message; the rest is dropped.
	assert.Equal(t, 2, strings.Count(buf.String(), "decode failed"))

	stats := sl.GetSamplerStats()["corrupt"]
	assert.Equal(t, int64(10), stats.TotalMessages)
	assert.Equal(t, int64(2), stats.SampledMessages)
	assert.Equal(t, int64(8), stats.DroppedMessages)
}

func TestSampledLoggerUnknownCategoryAlwaysLogs(t *testing.T) {
	base, buf := newBufferedLogger()
	sl := NewSampledLogger(base)

	for i := 0; i < 5; i++ {
		sl.DebugWithCategory("unsampled", "tick", nil)
	}

	assert.Equal(t, 5, strings.Count(buf.String(), "tick"))
}

func TestSampledLoggerAddsCategoryField(t *testing.T) {
	base, buf := newBufferedLogger()
	sl := NewCaptureLogger(base)

	sl.WarnWithCategory(CategoryNormalization, "fallback used", map[string]interface{}{"width": 10})

	out := buf.String()
	assert.Contains(t, out, "category=normalization")
	assert.Contains(t, out, "width=10")
}

func TestNewCaptureLoggerCategories(t *testing.T) {
	base, _ := newBufferedLogger()
	sl := NewCaptureLogger(base)

	sl.WarnWithCategory(CategoryPacketProcessing, "x", nil)
	sl.WarnWithCategory(CategoryFrameProcessing, "x", nil)
	sl.WarnWithCategory(CategoryNormalization, "x", nil)
	sl.WarnWithCategory(CategoryDetection, "x", nil)

	stats := sl.GetSamplerStats()
	assert.Len(t, stats, 4)
	for name, s := range stats {
		assert.Equal(t, int64(1), s.TotalMessages, name)
	}
}
