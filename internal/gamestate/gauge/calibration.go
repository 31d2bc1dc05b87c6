package gauge

import (
	"fmt"
	"image"

	"github.com/zsiec/screenwatch/internal/config"
	"github.com/zsiec/screenwatch/internal/gamestate"
)

// Calibration locates the gauge on a capture-sized frame and describes how
// its cells are sampled. All coordinates are in capture pixels.
type Calibration struct {
	CaptureSize     image.Point
	Region          image.Rectangle // gauge crop within the capture frame
	CellCount       int             // the gauge maximum
	CellWidth       int
	CellHeight      int
	AnalysisOffsetY int
	InitialOffsetX  int // added to the first cell's sample only
	Filled          gamestate.RGBRange
}

// DefaultCalibration matches a 432x768 capture of the standard layout.
func DefaultCalibration() Calibration {
	return Calibration{
		CaptureSize:     image.Pt(432, 768),
		Region:          image.Rect(72, 625, 72+288, 625+20),
		CellCount:       10,
		CellWidth:       28,
		CellHeight:      20,
		AnalysisOffsetY: 3,
		InitialOffsetX:  13,
		Filled: gamestate.RGBRange{
			Lower: gamestate.RGBColor{R: 190, G: 10, B: 190},
			Upper: gamestate.RGBColor{R: 255, G: 120, B: 255},
		},
	}
}

// CalibrationFromConfig builds a calibration from the capture and gauge
// configuration sections.
func CalibrationFromConfig(capture *config.CaptureConfig, g *config.GaugeConfig) (Calibration, error) {
	filled, err := gamestate.NewRGBRange(
		gamestate.ColorFromPixel(g.ColorLower),
		gamestate.ColorFromPixel(g.ColorUpper),
	)
	if err != nil {
		return Calibration{}, err
	}

	c := Calibration{
		CaptureSize:     image.Pt(capture.Width, capture.Height),
		Region:          image.Rect(g.StartX, g.StartY, g.StartX+g.Width, g.StartY+g.Height),
		CellCount:       g.CellCount,
		CellWidth:       g.CellWidth,
		CellHeight:      g.CellHeight,
		AnalysisOffsetY: g.AnalysisOffsetY,
		InitialOffsetX:  g.InitialOffsetX,
		Filled:          filled,
	}
	if err := c.Validate(); err != nil {
		return Calibration{}, err
	}
	return c, nil
}

// Validate checks that the region fits the capture frame and every sample
// point falls inside the region.
func (c Calibration) Validate() error {
	if c.CaptureSize.X <= 0 || c.CaptureSize.Y <= 0 {
		return fmt.Errorf("capture size must be positive, got %v", c.CaptureSize)
	}
	if c.Region.Empty() {
		return fmt.Errorf("gauge region %v is empty", c.Region)
	}
	if !c.Region.In(image.Rectangle{Max: c.CaptureSize}) {
		return fmt.Errorf("gauge region %v exceeds capture size %v", c.Region, c.CaptureSize)
	}
	if c.CellCount <= 0 || c.CellWidth <= 0 || c.CellHeight <= 0 {
		return fmt.Errorf("cell geometry must be positive")
	}

	bounds := image.Rectangle{Max: c.Region.Size()}
	for i, p := range c.SamplePoints() {
		if !p.In(bounds) {
			return fmt.Errorf("sample point %d at %v falls outside gauge region %v", i, p, bounds)
		}
	}
	return nil
}

// SamplePoints returns one point per cell, left to right, relative to the
// region origin.
func (c Calibration) SamplePoints() []image.Point {
	points := make([]image.Point, c.CellCount)
	y := c.CellHeight/2 + c.AnalysisOffsetY
	for i := range points {
		x := i*c.CellWidth + c.CellWidth/2
		if i == 0 {
			x += c.InitialOffsetX
		}
		points[i] = image.Pt(x, y)
	}
	return points
}

// ScanOrder returns the sample points highest cell first.
func (c Calibration) ScanOrder() []image.Point {
	points := c.SamplePoints()
	for i, j := 0, len(points)-1; i < j; i, j = i+1, j-1 {
		points[i], points[j] = points[j], points[i]
	}
	return points
}
