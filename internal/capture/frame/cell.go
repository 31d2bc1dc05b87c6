package frame

import (
	"context"
	"net/http"
	"sync"

	apperrors "github.com/zsiec/screenwatch/internal/errors"
)

// Cell holds the most recently published frame. Publish replaces the held
// frame in a single pointer swap under the lock, so readers observe either the
// previous frame or the new one, never a partially written one. There is no
// backlog: a slow reader sees a newer frame on its next Read.
type Cell struct {
	mu      sync.RWMutex
	current *Decoded
	seq     uint64
	drops   uint64 // frames replaced before anyone read them

	read  bool
	ready chan struct{} // closed on first publish
}

// NewCell creates an empty cell.
func NewCell() *Cell {
	return &Cell{ready: make(chan struct{})}
}

// Publish makes f the frame returned by subsequent reads. f must not be
// modified afterwards.
func (c *Cell) Publish(f *Decoded) {
	if f == nil {
		return
	}

	c.mu.Lock()
	if c.current != nil && !c.read {
		c.drops++
	}
	c.seq++
	f.Seq = c.seq
	first := c.current == nil
	c.current = f
	c.read = false
	c.mu.Unlock()

	if first {
		close(c.ready)
	}
}

// Read returns the latest frame, or false if nothing has been published yet.
func (c *Cell) Read() (*Decoded, bool) {
	c.mu.RLock()
	f := c.current
	seen := c.read
	c.mu.RUnlock()

	if f == nil {
		return nil, false
	}
	if !seen {
		c.mu.Lock()
		if c.current == f {
			c.read = true
		}
		c.mu.Unlock()
	}
	return f, true
}

// Ready is closed once the first frame has been published.
func (c *Cell) Ready() <-chan struct{} {
	return c.ready
}

// Wait blocks until a frame is available, ctx is done, or done is closed.
// done is the producer's exit signal; a producer that exits without ever
// publishing yields a FrameUnavailable error instead of blocking forever.
func (c *Cell) Wait(ctx context.Context, done <-chan struct{}) (*Decoded, error) {
	if f, ok := c.Read(); ok {
		return f, nil
	}

	select {
	case <-c.ready:
	case <-done:
		// The producer may have published right before exiting.
		if f, ok := c.Read(); ok {
			return f, nil
		}
		return nil, apperrors.NewFrameUnavailableError("stream ended before a frame was decoded")
	case <-ctx.Done():
		return nil, apperrors.Wrap(ctx.Err(), apperrors.ErrorTypeFrameUnavailable,
			"no frame decoded before deadline", http.StatusServiceUnavailable)
	}

	f, _ := c.Read()
	return f, nil
}

// Stats reports how many frames were published and how many were replaced
// without being read.
func (c *Cell) Stats() (published, dropped uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.seq, c.drops
}
