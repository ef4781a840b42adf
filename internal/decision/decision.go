// Package decision turns a stream of per-frame LED classifications into a
// debounced terminal verdict. It is pure logic: no camera, no clock, no I/O.
package decision

import (
	"errors"
	"fmt"

	"github.com/ayusman/ledwatch/internal/ledstate"
)

// Verdict is the state of the debounce machine.
type Verdict int

const (
	// Running means no terminal condition has been reached yet.
	Running Verdict = iota
	// EndingDetected means the ending state was seen on enough consecutive ticks.
	EndingDetected
	// NoLedDetected means no LED was lit on enough consecutive ticks.
	NoLedDetected
)

// String returns the wire name of the verdict.
func (v Verdict) String() string {
	switch v {
	case Running:
		return "running"
	case EndingDetected:
		return "ending_detected"
	case NoLedDetected:
		return "no_led_detected"
	default:
		return fmt.Sprintf("verdict(%d)", int(v))
	}
}

// Terminal reports whether the verdict ends the watch loop.
func (v Verdict) Terminal() bool {
	return v == EndingDetected || v == NoLedDetected
}

// ParseVerdict is the inverse of Verdict.String.
func ParseVerdict(s string) (Verdict, error) {
	switch s {
	case "running":
		return Running, nil
	case "ending_detected":
		return EndingDetected, nil
	case "no_led_detected":
		return NoLedDetected, nil
	}
	return Running, fmt.Errorf("unknown verdict %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (v Verdict) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *Verdict) UnmarshalText(text []byte) error {
	parsed, err := ParseVerdict(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// Default consecutive-tick requirements.
const (
	DefaultRequiredNoLed  = 5
	DefaultRequiredEnding = 5
)

// ErrInvalidThresholds is returned by Thresholds.Validate.
var ErrInvalidThresholds = errors.New("invalid debounce thresholds")

// Thresholds are the consecutive-tick counts needed for each terminal verdict.
type Thresholds struct {
	NoLed  int
	Ending int
}

// DefaultThresholds returns the default requirements (5 and 5).
func DefaultThresholds() Thresholds {
	return Thresholds{NoLed: DefaultRequiredNoLed, Ending: DefaultRequiredEnding}
}

// Validate checks that both counts are positive.
func (t Thresholds) Validate() error {
	if t.NoLed <= 0 {
		return fmt.Errorf("%w: required no-led count must be > 0, got %d", ErrInvalidThresholds, t.NoLed)
	}
	if t.Ending <= 0 {
		return fmt.Errorf("%w: required ending count must be > 0, got %d", ErrInvalidThresholds, t.Ending)
	}
	return nil
}

// State holds the debounce counters. The zero value is the initial state.
type State struct {
	ConsecutiveNoLed  int `json:"consecutive_no_led"`
	ConsecutiveEnding int `json:"consecutive_ending"`
	TotalTicks        int `json:"total_ticks"`
}

// Step applies one tick's classification and returns the new state and verdict.
// endingIndex is a gap-derived state index, not a physical LED index.
func Step(s State, c ledstate.Classification, endingIndex int, th Thresholds) (State, Verdict) {
	s.TotalTicks++

	switch {
	case c.Kind == ledstate.NoLed:
		s.ConsecutiveNoLed++
		s.ConsecutiveEnding = 0
	case c.Kind == ledstate.SingleLed && c.State == endingIndex:
		s.ConsecutiveEnding++
		s.ConsecutiveNoLed = 0
	default:
		s.ConsecutiveNoLed = 0
		s.ConsecutiveEnding = 0
	}

	return s, s.Verdict(th)
}

// Verdict evaluates the terminal predicate for the current counters.
func (s State) Verdict(th Thresholds) Verdict {
	if s.ConsecutiveNoLed >= th.NoLed {
		return NoLedDetected
	}
	if s.ConsecutiveEnding >= th.Ending {
		return EndingDetected
	}
	return Running
}
