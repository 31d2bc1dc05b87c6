package codec

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopParser struct{}

func (nopParser) Parse(chunk []byte) ([]Packet, error) { return []Packet{{Data: chunk}}, nil }
func (nopParser) Flush() []Packet                      { return nil }

type nopDecoder struct{}

func (nopDecoder) Decode(Packet) ([]image.Image, error) { return nil, nil }
func (nopDecoder) Close() error                         { return nil }

func TestRegisterAndLookup(t *testing.T) {
	Register(Codec{
		Name:       "test-nop",
		NewParser:  func() Parser { return nopParser{} },
		NewDecoder: func(Options) (FrameDecoder, error) { return nopDecoder{}, nil },
	})

	c, err := Lookup("test-nop")
	require.NoError(t, err)
	assert.Equal(t, "test-nop", c.Name)

	pkts, err := c.NewParser().Parse([]byte{1, 2})
	require.NoError(t, err)
	assert.Len(t, pkts, 1)

	assert.Contains(t, Names(), "test-nop")
}

func TestLookupUnknown(t *testing.T) {
	_, err := Lookup("vp9-nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown codec")
}
