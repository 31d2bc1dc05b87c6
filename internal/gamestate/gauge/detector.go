// Package gauge reads a segmented, color-filled horizontal gauge from a
// capture frame.
package gauge

import (
	"image"
	"time"

	"github.com/disintegration/imaging"

	"github.com/zsiec/screenwatch/internal/capture/frame"
	apperrors "github.com/zsiec/screenwatch/internal/errors"
	"github.com/zsiec/screenwatch/internal/gamestate"
	"github.com/zsiec/screenwatch/internal/logger"
	"github.com/zsiec/screenwatch/internal/metrics"
)

// Detector implements gamestate.Detector for the gauge.
type Detector struct {
	cal    Calibration
	scan   []image.Point
	logger *logger.SampledLogger
	now    func() time.Time
}

var _ gamestate.Detector = (*Detector)(nil)

// NewDetector validates cal and returns a detector bound to it.
func NewDetector(cal Calibration, log logger.Logger) (*Detector, error) {
	if err := cal.Validate(); err != nil {
		return nil, err
	}
	return &Detector{
		cal:    cal,
		scan:   cal.ScanOrder(),
		logger: logger.NewCaptureLogger(logger.WithComponent(logger.OrNull(log), "gauge")),
		now:    time.Now,
	}, nil
}

// Name returns the detector name.
func (d *Detector) Name() string { return Kind }

// Calibration returns the detector's calibration.
func (d *Detector) Calibration() Calibration { return d.cal }

// Analyze implements gamestate.Detector.
func (d *Detector) Analyze(img image.Image) (gamestate.StateRecord, error) {
	st, err := d.Read(img)
	if err != nil {
		return nil, err
	}
	return st, nil
}

// Read classifies img, which is either the cropped gauge region or a full
// capture frame, and returns the typed reading.
//
// Cells are scanned from the highest one down, starting at the maximum
// level. Each sample outside the filled color range lowers the level by
// one; the first sample inside the range ends the scan.
func (d *Detector) Read(img image.Image) (*State, error) {
	start := time.Now()
	st, err := d.read(img)
	metrics.RecordAnalysis(Kind, time.Since(start).Seconds(), err)
	if err != nil {
		return nil, err
	}
	metrics.SetGaugeLevel(st.Level())
	return st, nil
}

func (d *Detector) read(img image.Image) (*State, error) {
	rgb, err := d.region(img)
	if err != nil {
		return nil, err
	}

	origin := rgb.Rect.Min
	level := d.cal.CellCount
	for _, p := range d.scan {
		px, err := rgb.Sample(origin.X+p.X, origin.Y+p.Y)
		if err != nil {
			d.logger.WithError(err).WithField("point", p).Error("Malformed pixel in gauge region")
			return nil, err
		}
		if d.cal.Filled.Contains(gamestate.ColorFromPixel(px)) {
			break
		}
		level--
	}

	return NewState(level, d.cal.CellCount, d.now())
}

// region returns the gauge region of img as packed RGB. A full capture frame
// is cropped to the calibrated region; any other size is rejected.
func (d *Detector) region(img image.Image) (*frame.RGB, error) {
	if img == nil {
		return nil, apperrors.NewInvalidFrameSizeError(0, 0)
	}
	if f, ok := img.(*frame.Frame); ok {
		if f.RGB == nil {
			return nil, apperrors.NewInvalidFrameSizeError(0, 0)
		}
		img = f.RGB
	}

	b := img.Bounds()
	size := b.Size()

	switch size {
	case d.cal.Region.Size():
	case d.cal.CaptureSize:
		d.logger.DebugWithCategory(logger.CategoryDetection, "Cropping capture frame to gauge region",
			map[string]interface{}{"region": d.cal.Region.String()})
		img = crop(img, d.cal.Region.Add(b.Min))
	default:
		d.logger.WarnWithCategory(logger.CategoryDetection, "Frame size matches neither gauge region nor capture size",
			map[string]interface{}{
				"width":          size.X,
				"height":         size.Y,
				"region_width":   d.cal.Region.Dx(),
				"region_height":  d.cal.Region.Dy(),
				"capture_width":  d.cal.CaptureSize.X,
				"capture_height": d.cal.CaptureSize.Y,
			})
		return nil, apperrors.NewInvalidFrameSizeError(size.X, size.Y)
	}

	if rgb, ok := img.(*frame.RGB); ok {
		return rgb, nil
	}
	return frame.ToRGB(img), nil
}

type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

// crop shares pixels with img when it can; the input is never written to.
func crop(img image.Image, r image.Rectangle) image.Image {
	if s, ok := img.(subImager); ok {
		return s.SubImage(r)
	}
	return imaging.Crop(img, r)
}
