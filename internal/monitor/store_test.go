package monitor

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsiec/screenwatch/internal/gamestate/gauge"
)

func TestStorePutError(t *testing.T) {
	s := NewStore()

	st, err := gauge.NewState(6, 10, time.Now())
	require.NoError(t, err)
	s.Put("gauge", st)
	s.PutError("gauge", errors.New("bad frame"))

	e, ok := s.Get("gauge")
	require.True(t, ok)
	assert.Equal(t, st, e.Record)
	assert.Equal(t, "bad frame", e.Error)

	s.Put("gauge", st)
	e, _ = s.Get("gauge")
	assert.Empty(t, e.Error)

	_, ok = s.Get("missing")
	assert.False(t, ok)
}

func TestStoreConcurrentAccess(t *testing.T) {
	s := NewStore()
	st, err := gauge.NewState(1, 10, time.Now())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				s.Put("gauge", st)
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				_ = s.Snapshot()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, s.Snapshot(), 1)
}
