// Package gamestate defines the detector contract: a detector reads one
// normalized frame and produces one immutable, timestamped state record.
package gamestate

import (
	"fmt"
	"image"
	"time"
)

// StateRecord is the result of one analysis. Implementations are immutable
// values built through validating constructors.
type StateRecord interface {
	// Kind names the detector variant that produced the record.
	Kind() string
	// Timestamp is when the analyzed frame was analyzed.
	Timestamp() time.Time
}

// Detector classifies a frame into a state record. A detector holds only
// calibration fixed at construction and never modifies the frame.
type Detector interface {
	Name() string
	Analyze(img image.Image) (StateRecord, error)
}

// BaseState carries the fields shared by every state record. Embed it in
// detector-specific records.
type BaseState struct {
	at time.Time
}

// NewBaseState stamps a record with at.
func NewBaseState(at time.Time) BaseState {
	return BaseState{at: at}
}

// Timestamp returns the analysis time.
func (b BaseState) Timestamp() time.Time {
	return b.at
}

// RGBColor is an 8-bit per channel color.
type RGBColor struct {
	R uint8 `json:"r" mapstructure:"r"`
	G uint8 `json:"g" mapstructure:"g"`
	B uint8 `json:"b" mapstructure:"b"`
}

// ColorFromPixel builds a color from an R, G, B sample.
func ColorFromPixel(px [3]uint8) RGBColor {
	return RGBColor{R: px[0], G: px[1], B: px[2]}
}

func (c RGBColor) String() string {
	return fmt.Sprintf("rgb(%d,%d,%d)", c.R, c.G, c.B)
}

// RGBRange is an inclusive per-channel color box.
type RGBRange struct {
	Lower RGBColor `json:"lower"`
	Upper RGBColor `json:"upper"`
}

// NewRGBRange validates that lower does not exceed upper on any channel.
func NewRGBRange(lower, upper RGBColor) (RGBRange, error) {
	if lower.R > upper.R || lower.G > upper.G || lower.B > upper.B {
		return RGBRange{}, fmt.Errorf("invalid color range: lower %s exceeds upper %s", lower, upper)
	}
	return RGBRange{Lower: lower, Upper: upper}, nil
}

// Contains reports whether every channel of c lies within [Lower, Upper].
func (r RGBRange) Contains(c RGBColor) bool {
	return r.Lower.R <= c.R && c.R <= r.Upper.R &&
		r.Lower.G <= c.G && c.G <= r.Upper.G &&
		r.Lower.B <= c.B && c.B <= r.Upper.B
}
