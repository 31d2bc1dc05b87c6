package frame

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"

	apperrors "github.com/zsiec/screenwatch/internal/errors"
)

// Channels is the number of samples per pixel in an RGB image.
const Channels = 3

// RGB is an in-memory image whose pixels are packed 8-bit R, G, B triples.
// It is the fixed color format handed to detectors.
type RGB struct {
	// Pix holds the pixels in R, G, B order. The pixel at (x, y) starts at
	// Pix[(y-Rect.Min.Y)*Stride + (x-Rect.Min.X)*3].
	Pix    []uint8
	Stride int
	Rect   image.Rectangle
}

// NewRGB returns a new RGB image with the given bounds.
func NewRGB(r image.Rectangle) *RGB {
	return &RGB{
		Pix:    make([]uint8, Channels*r.Dx()*r.Dy()),
		Stride: Channels * r.Dx(),
		Rect:   r,
	}
}

func (p *RGB) ColorModel() color.Model { return color.RGBAModel }

func (p *RGB) Bounds() image.Rectangle { return p.Rect }

func (p *RGB) At(x, y int) color.Color {
	return p.RGBAt(x, y)
}

// RGBAt returns the pixel at (x, y) as an opaque color.RGBA. Out of range or
// truncated pixels read as transparent black.
func (p *RGB) RGBAt(x, y int) color.RGBA {
	if !(image.Point{x, y}.In(p.Rect)) {
		return color.RGBA{}
	}
	i := p.PixOffset(x, y)
	if i < 0 || i+Channels > len(p.Pix) {
		return color.RGBA{}
	}
	s := p.Pix[i : i+Channels : i+Channels]
	return color.RGBA{s[0], s[1], s[2], 0xff}
}

// PixOffset returns the index of the first element of Pix that corresponds to
// the pixel at (x, y).
func (p *RGB) PixOffset(x, y int) int {
	return (y-p.Rect.Min.Y)*p.Stride + (x-p.Rect.Min.X)*Channels
}

func (p *RGB) Set(x, y int, c color.Color) {
	if !(image.Point{x, y}.In(p.Rect)) {
		return
	}
	i := p.PixOffset(x, y)
	if i < 0 || i+Channels > len(p.Pix) {
		return
	}
	c1 := color.RGBAModel.Convert(c).(color.RGBA)
	s := p.Pix[i : i+Channels : i+Channels]
	s[0], s[1], s[2] = c1.R, c1.G, c1.B
}

// Sample returns the three channel values of the pixel at (x, y). A point
// outside the image or a pixel with fewer than three backing samples fails
// with an InvalidPixel error.
func (p *RGB) Sample(x, y int) ([Channels]uint8, error) {
	var out [Channels]uint8
	if !(image.Point{x, y}.In(p.Rect)) {
		return out, apperrors.NewInvalidPixelError(x, y, 0)
	}
	i := p.PixOffset(x, y)
	if i < 0 || i >= len(p.Pix) {
		return out, apperrors.NewInvalidPixelError(x, y, 0)
	}
	if n := len(p.Pix) - i; n < Channels {
		return out, apperrors.NewInvalidPixelError(x, y, n)
	}
	copy(out[:], p.Pix[i:i+Channels])
	return out, nil
}

// SubImage returns an image representing the portion of p visible through r.
// The returned value shares pixels with the original image.
func (p *RGB) SubImage(r image.Rectangle) image.Image {
	r = r.Intersect(p.Rect)
	if r.Empty() {
		return &RGB{}
	}
	i := p.PixOffset(r.Min.X, r.Min.Y)
	if i > len(p.Pix) {
		i = len(p.Pix)
	}
	return &RGB{
		Pix:    p.Pix[i:],
		Stride: p.Stride,
		Rect:   r,
	}
}

// FromRawRGB24 wraps a tightly packed rgb24 buffer of w*h*3 bytes, as written
// by ffmpeg's rawvideo muxer.
func FromRawRGB24(buf []byte, w, h int) *RGB {
	return &RGB{Pix: buf, Stride: Channels * w, Rect: image.Rect(0, 0, w, h)}
}

// Clone returns a copy of p anchored at the origin with its own pixel
// buffer. A truncated Pix stays truncated in the copy.
func (p *RGB) Clone() *RGB {
	w, h := p.Rect.Dx(), p.Rect.Dy()
	dst := NewRGB(image.Rect(0, 0, w, h))
	row := Channels * w

	n := 0
	for y := 0; y < h; y++ {
		start := y * p.Stride
		if start >= len(p.Pix) {
			break
		}
		end := start + row
		if end > len(p.Pix) {
			end = len(p.Pix)
		}
		n = y*dst.Stride + copy(dst.Pix[y*dst.Stride:], p.Pix[start:end])
	}
	dst.Pix = dst.Pix[:n]
	return dst
}

// ToRGB converts img to a packed RGB image anchored at the origin. An *RGB
// already anchored at the origin is returned as-is.
func ToRGB(img image.Image) *RGB {
	if rgb, ok := img.(*RGB); ok && rgb.Rect.Min == (image.Point{}) {
		return rgb
	}
	b := img.Bounds()
	dst := NewRGB(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Rect, img, b.Min, draw.Src)
	return dst
}
