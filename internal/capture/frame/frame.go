package frame

import (
	"image"
	"time"
)

// PixelFormat tags the memory layout of a decoded frame.
type PixelFormat uint8

const (
	PixelFormatUnknown PixelFormat = iota
	PixelFormatRGB24               // packed R,G,B
	PixelFormatRGBA                // image.RGBA / image.NRGBA
	PixelFormatYCbCr               // planar, as produced by image/jpeg
	PixelFormatGray
)

// String returns the string representation of PixelFormat
func (p PixelFormat) String() string {
	switch p {
	case PixelFormatRGB24:
		return "rgb24"
	case PixelFormatRGBA:
		return "rgba"
	case PixelFormatYCbCr:
		return "ycbcr"
	case PixelFormatGray:
		return "gray"
	default:
		return "unknown"
	}
}

// FormatOf reports the pixel format of a decoded image.
func FormatOf(img image.Image) PixelFormat {
	switch img.(type) {
	case *RGB:
		return PixelFormatRGB24
	case *image.RGBA, *image.NRGBA:
		return PixelFormatRGBA
	case *image.YCbCr:
		return PixelFormatYCbCr
	case *image.Gray:
		return PixelFormatGray
	default:
		return PixelFormatUnknown
	}
}

// Decoded is one frame produced by the stream decoder. It must not be
// modified once published to a Cell.
type Decoded struct {
	Image     image.Image
	Width     int
	Height    int
	Format    PixelFormat
	Seq       uint64    // publish order, starting at 1
	DecodedAt time.Time // when the decoder produced the frame
}

// NewDecoded wraps img, taking dimensions and format from the image itself.
func NewDecoded(img image.Image, decodedAt time.Time) *Decoded {
	b := img.Bounds()
	return &Decoded{
		Image:     img,
		Width:     b.Dx(),
		Height:    b.Dy(),
		Format:    FormatOf(img),
		DecodedAt: decodedAt,
	}
}

// Frame is a normalized frame: exactly the configured capture size, packed RGB.
// A new Frame is built for every GetFrame call.
type Frame struct {
	*RGB
	Seq        uint64
	CapturedAt time.Time
	SourceSize image.Point // dimensions of the decoded frame before normalization
	Path       string      // normalization path that produced it
}

// Size returns the frame dimensions.
func (f *Frame) Size() image.Point {
	return f.Rect.Size()
}
