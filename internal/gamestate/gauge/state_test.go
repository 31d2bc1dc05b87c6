package gauge

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/zsiec/screenwatch/internal/errors"
)

func TestNewStateInvariants(t *testing.T) {
	at := time.Now()
	for _, max := range []int{1, 3, 10} {
		for level := 0; level <= max; level++ {
			st, err := NewState(level, max, at)
			require.NoError(t, err)
			assert.Equal(t, float64(level)/float64(max), st.Percentage())
			assert.Equal(t, level == max, st.IsFull())
			assert.Equal(t, at, st.Timestamp())
		}
	}
}

func TestNewStateRejectsInvalid(t *testing.T) {
	tests := []struct {
		name       string
		level, max int
	}{
		{"negative level", -1, 10},
		{"level above max", 11, 10},
		{"zero max", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewState(tt.level, tt.max, time.Now())
			require.Error(t, err)
			assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInvalidState))
		})
	}
}

func TestStateJSON(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	st, err := NewState(7, 10, at)
	require.NoError(t, err)

	data, err := json.Marshal(st)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"kind": "gauge",
		"timestamp": "2024-05-01T12:00:00Z",
		"level": 7,
		"max": 10,
		"percentage": 0.7,
		"is_full": false
	}`, string(data))

	var decoded State
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, 7, decoded.Level())
	assert.Equal(t, "gauge 7/10 (70%)", decoded.String())

	err = json.Unmarshal([]byte(`{"level": 12, "max": 10}`), &decoded)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInvalidState))
}
