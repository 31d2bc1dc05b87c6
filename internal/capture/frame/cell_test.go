package frame

import (
	"context"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/zsiec/screenwatch/internal/errors"
)

func solidFrame(w, h int, v uint8) *Decoded {
	img := NewRGB(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return NewDecoded(img, time.Now())
}

func TestCellEmptyRead(t *testing.T) {
	c := NewCell()
	f, ok := c.Read()
	assert.False(t, ok)
	assert.Nil(t, f)
}

func TestCellLatestWins(t *testing.T) {
	c := NewCell()
	first := solidFrame(2, 2, 1)
	second := solidFrame(2, 2, 2)

	c.Publish(first)
	c.Publish(second)

	f, ok := c.Read()
	require.True(t, ok)
	assert.Same(t, second, f)
	assert.Equal(t, uint64(2), f.Seq)

	published, dropped := c.Stats()
	assert.Equal(t, uint64(2), published)
	assert.Equal(t, uint64(1), dropped)
}

func TestCellWaitWakesOnPublish(t *testing.T) {
	c := NewCell()
	want := solidFrame(2, 2, 7)

	go func() {
		time.Sleep(20 * time.Millisecond)
		c.Publish(want)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	got, err := c.Wait(ctx, nil)
	require.NoError(t, err)
	assert.Same(t, want, got)
}

func TestCellWaitDeadline(t *testing.T) {
	c := NewCell()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Wait(ctx, nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeFrameUnavailable))
}

func TestCellWaitProducerExited(t *testing.T) {
	c := NewCell()
	done := make(chan struct{})
	close(done)

	_, err := c.Wait(context.Background(), done)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeFrameUnavailable))
}

func TestCellNoTornReads(t *testing.T) {
	c := NewCell()
	const frames = 1000

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < frames; i++ {
			// Alternate sizes so a torn read would show mismatched dimensions.
			w, h := 4, 3
			if i%2 == 1 {
				w, h = 6, 5
			}
			c.Publish(solidFrame(w, h, uint8(i)))
		}
	}()

	stop := make(chan struct{})
	errs := make(chan string, 1)
	var readers sync.WaitGroup
	for r := 0; r < 4; r++ {
		readers.Add(1)
		go func() {
			defer readers.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				f, ok := c.Read()
				if !ok {
					continue
				}
				img := f.Image.(*RGB)
				b := img.Bounds()
				if b.Dx() != f.Width || b.Dy() != f.Height || len(img.Pix) != f.Width*f.Height*Channels {
					select {
					case errs <- "torn frame observed":
					default:
					}
					return
				}
				v := img.Pix[0]
				for _, p := range img.Pix {
					if p != v {
						select {
						case errs <- "mixed pixel data observed":
						default:
						}
						return
					}
				}
			}
		}()
	}

	wg.Wait()
	close(stop)
	readers.Wait()

	select {
	case msg := <-errs:
		t.Fatal(msg)
	default:
	}

	published, _ := c.Stats()
	assert.Equal(t, uint64(frames), published)
}
