package gauge

import (
	"encoding/json"
	"fmt"
	"time"

	apperrors "github.com/zsiec/screenwatch/internal/errors"
	"github.com/zsiec/screenwatch/internal/gamestate"
)

// Kind identifies gauge records.
const Kind = "gauge"

// State is one gauge reading.
type State struct {
	gamestate.BaseState
	level      int
	max        int
	percentage float64
	full       bool
}

var _ gamestate.StateRecord = (*State)(nil)

// NewState builds a reading of level out of max cells.
func NewState(level, max int, at time.Time) (*State, error) {
	if max <= 0 {
		return nil, apperrors.NewInvalidStateError(fmt.Sprintf("gauge max must be positive, got %d", max))
	}
	if level < 0 || level > max {
		return nil, apperrors.NewInvalidStateError(fmt.Sprintf("gauge level %d outside [0, %d]", level, max))
	}
	return &State{
		BaseState:  gamestate.NewBaseState(at),
		level:      level,
		max:        max,
		percentage: float64(level) / float64(max),
		full:       level == max,
	}, nil
}

func (s *State) Kind() string        { return Kind }
func (s *State) Level() int          { return s.level }
func (s *State) Max() int            { return s.max }
func (s *State) Percentage() float64 { return s.percentage }
func (s *State) IsFull() bool        { return s.full }

func (s *State) String() string {
	return fmt.Sprintf("gauge %d/%d (%.0f%%)", s.level, s.max, s.percentage*100)
}

type stateJSON struct {
	Kind       string    `json:"kind"`
	Timestamp  time.Time `json:"timestamp"`
	Level      int       `json:"level"`
	Max        int       `json:"max"`
	Percentage float64   `json:"percentage"`
	IsFull     bool      `json:"is_full"`
}

// MarshalJSON implements json.Marshaler.
func (s *State) MarshalJSON() ([]byte, error) {
	return json.Marshal(stateJSON{
		Kind:       Kind,
		Timestamp:  s.Timestamp(),
		Level:      s.level,
		Max:        s.max,
		Percentage: s.percentage,
		IsFull:     s.full,
	})
}

// UnmarshalJSON rebuilds a state through NewState, so decoded records obey
// the same invariants as constructed ones.
func (s *State) UnmarshalJSON(data []byte) error {
	var raw stateJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	st, err := NewState(raw.Level, raw.Max, raw.Timestamp)
	if err != nil {
		return err
	}
	*s = *st
	return nil
}
