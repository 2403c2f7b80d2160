package alert

import (
	"fmt"
	"time"
)

// Hue color model constants of the attention pattern.
const (
	// HueRed is the bridge hue value for red.
	HueRed uint16 = 65280
	// HueBlue is the bridge hue value for blue.
	HueBlue uint16 = 46920
)

// WhitePoint is the CIE xy chromaticity of the steady near-white phase.
//
//nolint:gochecknoglobals // Protocol constant; arrays cannot be const.
var WhitePoint = ColorPoint{X: 0.2, Y: 0.2}

// ColorPoint is a CIE 1931 xy chromaticity coordinate.
type ColorPoint struct {
	X float64
	Y float64
}

// Snapshot is the result of one incident fetch.
type Snapshot struct {
	// Count is the number of triggered incidents matching the filter.
	Count int
	// FetchedAt is when the fetch completed.
	FetchedAt time.Time
}

// HasIncidents reports whether any triggered incident matched.
func (s Snapshot) HasIncidents() bool {
	return s.Count != 0
}

// Phase is the stage of an alert sequence on a light.
type Phase int

// Sequence phases, in the order a run visits them.
const (
	PhaseIdle Phase = iota
	PhasePoweringOn
	PhaseBlinking
	PhaseSteadyWhite
	PhasePoweringOff
)

// String implements fmt.Stringer.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhasePoweringOn:
		return "powering_on"
	case PhaseBlinking:
		return "blinking"
	case PhaseSteadyWhite:
		return "steady_white"
	case PhasePoweringOff:
		return "powering_off"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// SequenceState is the observable state of a light during an alert sequence.
type SequenceState struct {
	// Phase is the current stage.
	Phase Phase
	// BlinksLeft counts the red/blue pairs still to show; only set while blinking.
	BlinksLeft int
}

// String implements fmt.Stringer.
func (s SequenceState) String() string {
	if s.Phase == PhaseBlinking {
		return fmt.Sprintf("%s(%d)", s.Phase, s.BlinksLeft)
	}

	return s.Phase.String()
}

// Idle is the state of a light no sequence is running on.
//
//nolint:gochecknoglobals // Immutable value.
var Idle = SequenceState{Phase: PhaseIdle}
