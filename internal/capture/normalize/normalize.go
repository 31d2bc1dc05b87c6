// Package normalize forces decoded frames to the fixed capture size and RGB
// layout that detectors are calibrated against.
package normalize

import (
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"

	"github.com/zsiec/screenwatch/internal/capture/frame"
	apperrors "github.com/zsiec/screenwatch/internal/errors"
	"github.com/zsiec/screenwatch/internal/logger"
	"github.com/zsiec/screenwatch/internal/metrics"
)

// Normalizer reformats frames to Width x Height.
type Normalizer struct {
	width  int
	height int
	logger *logger.SampledLogger
}

// New creates a normalizer for the given capture size.
func New(width, height int, log logger.Logger) (*Normalizer, error) {
	if width <= 0 || height <= 0 {
		return nil, apperrors.NewValidationError(fmt.Sprintf("invalid capture size %dx%d", width, height))
	}
	return &Normalizer{
		width:  width,
		height: height,
		logger: logger.NewCaptureLogger(logger.WithComponent(logger.OrNull(log), "normalize")),
	}, nil
}

// Size returns the target size.
func (n *Normalizer) Size() image.Point {
	return image.Pt(n.width, n.height)
}

// CropBox returns the centered crop of a srcW x srcH image that has the
// aspect ratio of dstW x dstH. A source wider than the target keeps its full
// height; otherwise it keeps its full width.
func CropBox(srcW, srcH, dstW, dstH int) (image.Rectangle, error) {
	if srcW <= 0 || srcH <= 0 || dstW <= 0 || dstH <= 0 {
		return image.Rectangle{}, apperrors.NewNormalizationError(
			fmt.Sprintf("cannot crop %dx%d to aspect of %dx%d", srcW, srcH, dstW, dstH))
	}

	targetAspect := float64(dstW) / float64(dstH)
	sourceAspect := float64(srcW) / float64(srcH)

	cropW, cropH := srcW, srcH
	if sourceAspect > targetAspect {
		cropW = int(math.Round(targetAspect * float64(srcH)))
	} else {
		cropH = int(math.Round(float64(srcW) / targetAspect))
	}

	if cropW < 1 || cropH < 1 || cropW > srcW || cropH > srcH {
		return image.Rectangle{}, apperrors.NewNormalizationError(
			fmt.Sprintf("crop %dx%d does not fit source %dx%d", cropW, cropH, srcW, srcH))
	}

	x0 := (srcW - cropW) / 2
	y0 := (srcH - cropH) / 2
	return image.Rect(x0, y0, x0+cropW, y0+cropH), nil
}

// Normalize returns a new frame of exactly the target size. A frame that
// already has the target size is only converted to RGB, into a fresh buffer.
// Anything else goes through an aspect-preserving center crop and Lanczos
// resize; if that path fails the frame is scaled straight to the target size instead, accepting
// distortion. Normalize only fails for a nil frame.
func (n *Normalizer) Normalize(d *frame.Decoded) (*frame.Frame, error) {
	if d == nil || d.Image == nil {
		return nil, apperrors.NewNormalizationError("no frame to normalize")
	}

	src := d.Image
	size := src.Bounds().Size()

	out := &frame.Frame{
		Seq:        d.Seq,
		CapturedAt: d.DecodedAt,
		SourceSize: size,
	}

	if size.X == n.width && size.Y == n.height {
		// The decoded frame stays published in the cell; callers get their own pixels.
		if rgb, ok := src.(*frame.RGB); ok {
			out.RGB = rgb.Clone()
		} else {
			out.RGB = frame.ToRGB(src)
		}
		out.Path = metrics.PathDirect
		metrics.RecordFrameServed(out.Path)
		return out, nil
	}

	rgb, err := n.cropResize(src)
	if err != nil {
		n.logger.WarnWithCategory(logger.CategoryNormalization, "Crop and resize failed, scaling directly to capture size",
			map[string]interface{}{
				"error":         err.Error(),
				"source_width":  size.X,
				"source_height": size.Y,
				"width":         n.width,
				"height":        n.height,
			})
		rgb = n.scale(src)
		out.Path = metrics.PathFallback
	} else {
		out.Path = metrics.PathCropResize
	}

	out.RGB = rgb
	metrics.RecordFrameServed(out.Path)
	return out, nil
}

func (n *Normalizer) cropResize(src image.Image) (rgb *frame.RGB, err error) {
	defer func() {
		if r := recover(); r != nil {
			rgb = nil
			err = apperrors.NewNormalizationError(fmt.Sprintf("resize panicked: %v", r))
		}
	}()

	b := src.Bounds()
	box, err := CropBox(b.Dx(), b.Dy(), n.width, n.height)
	if err != nil {
		return nil, err
	}

	cropped := imaging.Crop(src, box.Add(b.Min))
	resized := imaging.Resize(cropped, n.width, n.height, imaging.Lanczos)
	if got := resized.Bounds().Size(); got.X != n.width || got.Y != n.height {
		return nil, apperrors.NewNormalizationError(
			fmt.Sprintf("resize produced %dx%d, want %dx%d", got.X, got.Y, n.width, n.height))
	}

	return frame.ToRGB(resized), nil
}

func (n *Normalizer) scale(src image.Image) *frame.RGB {
	dst := frame.NewRGB(image.Rect(0, 0, n.width, n.height))
	draw.BiLinear.Scale(dst, dst.Rect, src, src.Bounds(), draw.Src, nil)
	return dst
}
