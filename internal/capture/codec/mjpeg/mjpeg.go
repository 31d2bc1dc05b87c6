// Package mjpeg handles streams of concatenated JPEG images.
package mjpeg

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/zsiec/screenwatch/internal/capture/codec"
	apperrors "github.com/zsiec/screenwatch/internal/errors"
)

// CodecName is the registry identifier of this codec.
const CodecName = "mjpeg"

// maxImageSize bounds how much unterminated data the parser keeps.
const maxImageSize = 16 * 1024 * 1024

var (
	soi = []byte{0xff, 0xd8}
	eoi = []byte{0xff, 0xd9}
)

// Parser splits a byte stream on JPEG start/end-of-image markers.
type Parser struct {
	buf []byte
}

func NewParser() *Parser {
	return &Parser{}
}

// Parse implements codec.Parser.
func (p *Parser) Parse(chunk []byte) ([]codec.Packet, error) {
	p.buf = append(p.buf, chunk...)

	var packets []codec.Packet
	for {
		start := bytes.Index(p.buf, soi)
		if start < 0 {
			// Keep a trailing 0xff that may begin a marker.
			if n := len(p.buf); n > 0 && p.buf[n-1] == 0xff {
				p.buf = append(p.buf[:0], 0xff)
			} else {
				p.buf = p.buf[:0]
			}
			break
		}
		end := bytes.Index(p.buf[start+len(soi):], eoi)
		if end < 0 {
			if start > 0 {
				n := copy(p.buf, p.buf[start:])
				p.buf = p.buf[:n]
			}
			break
		}
		end += start + len(soi) + len(eoi)

		packets = append(packets, codec.Packet{
			Data:     append([]byte(nil), p.buf[start:end]...),
			KeyFrame: true,
		})
		n := copy(p.buf, p.buf[end:])
		p.buf = p.buf[:n]
	}

	if len(p.buf) > maxImageSize {
		p.buf = p.buf[:0]
		return packets, apperrors.NewStreamDecodeError(fmt.Errorf("JPEG image exceeds %d bytes, buffer discarded", maxImageSize))
	}
	return packets, nil
}

// Flush implements codec.Parser. An image without its EOI marker is dropped.
func (p *Parser) Flush() []codec.Packet {
	p.buf = p.buf[:0]
	return nil
}

// Decoder decodes each packet as a standalone JPEG image.
type Decoder struct{}

// Decode implements codec.FrameDecoder.
func (Decoder) Decode(pkt codec.Packet) ([]image.Image, error) {
	img, err := jpeg.Decode(bytes.NewReader(pkt.Data))
	if err != nil {
		return nil, fmt.Errorf("decode jpeg: %w", err)
	}
	return []image.Image{img}, nil
}

// Close implements codec.FrameDecoder.
func (Decoder) Close() error { return nil }

func init() {
	codec.Register(codec.Codec{
		Name:      CodecName,
		NewParser: func() codec.Parser { return NewParser() },
		NewDecoder: func(codec.Options) (codec.FrameDecoder, error) {
			return Decoder{}, nil
		},
	})
}
