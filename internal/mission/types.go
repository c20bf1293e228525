// Package mission defines the mission parameter model for the virtual slope
// controller: ordered depth phases with their ramp/hold/transition subphases,
// loading from the VS params YAML files, load-time validation, and
// line-start detection against live navigation.
package mission

import "fmt"

// Direction says which way a phase moves the vehicle through the water
// column. Depth grows downward, so a DOWN phase increases commanded depth.
type Direction string

const (
	DirectionDown Direction = "DOWN"
	DirectionUp   Direction = "UP"
)

// SubphaseKind identifies the trajectory behavior of a subphase.
type SubphaseKind string

const (
	// SubphaseRamp drives commanded depth linearly toward the phase target.
	SubphaseRamp SubphaseKind = "RAMP"
	// SubphaseHold pins commanded depth at the phase target until the next
	// line start is confirmed or the hold times out.
	SubphaseHold SubphaseKind = "HOLD"
	// SubphaseTransition blends the outgoing slope rate into the next
	// phase's rate over the blend window.
	SubphaseTransition SubphaseKind = "TRANSITION"
)

// Subphase is one step of a phase. It is owned exclusively by its Phase.
type Subphase struct {
	ID   string
	Kind SubphaseKind
}

// Waypoint is a geographic position with an optional depth.
type Waypoint struct {
	Latitude  float64
	Longitude float64
	Depth     float64
}

// Phase is one mission depth segment, immutable once loaded.
//
// SlopeRate is the commanded depth rate in m/s, always positive; Direction
// carries the sign convention. LineStart, when present, is the position that
// must be confirmed before the phase's trajectory begins.
type Phase struct {
	ID          string
	Direction   Direction
	StartDepth  float64
	TargetDepth float64
	SlopeRate   float64
	Subphases   []Subphase

	// Survey-line geometry.
	LineStart *Waypoint
	End       Waypoint
	// HeadingDegrees is the course from line start to end, used by the
	// line-start check.
	HeadingDegrees float64
	// SpeedMps is the planned along-track speed the slope rate was derived
	// from.
	SpeedMps float64
	// DistanceMeters is the along-track length of the line.
	DistanceMeters float64
}

// Mission is an ordered, validated sequence of phases.
type Mission struct {
	Name   string
	Phases []Phase
}

// Subphase returns the subphase at index i of phase p, or an error when out
// of range. Indexes come from the phase state machine.
func (m *Mission) Subphase(p, i int) (Subphase, error) {
	if p < 0 || p >= len(m.Phases) {
		return Subphase{}, fmt.Errorf("phase index %d out of range (have %d phases)", p, len(m.Phases))
	}
	phase := m.Phases[p]
	if i < 0 || i >= len(phase.Subphases) {
		return Subphase{}, fmt.Errorf("subphase index %d out of range for phase %s", i, phase.ID)
	}
	return phase.Subphases[i], nil
}
