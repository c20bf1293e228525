// Package control implements the closed-loop virtual slope depth controller:
// altitude safety monitoring, commanded-vs-achieved error compensation, the
// slope trajectory generator, the mission phase state machine, and the
// orchestrating depth controller that ties them together once per cycle.
package control

import "time"

// SafetyState is the altitude safety assessment for one control cycle.
type SafetyState string

const (
	// SafetyNormal means the altitude is comfortably above both thresholds.
	SafetyNormal SafetyState = "NORMAL"
	// SafetyWarning means the altitude is inside the warning band; downward
	// progress is held.
	SafetyWarning SafetyState = "WARNING"
	// SafetyEmergency means the altitude is at or below the emergency
	// threshold, or the altitude reading is missing or stale. The emitted
	// command becomes a climb regardless of mission state.
	SafetyEmergency SafetyState = "EMERGENCY"
)

// SafetyConfig holds the altitude monitor thresholds. EmergencyAltitude must
// be below WarningAltitude; config validation enforces this before a mission
// may start.
type SafetyConfig struct {
	WarningAltitude   float64
	EmergencyAltitude float64
	// Margin is how far above the emergency threshold the altitude must
	// climb before an emergency is allowed to clear.
	Margin float64
	// StalenessWindow is the maximum age of an altitude reading before it
	// counts as missing.
	StalenessWindow time.Duration
	// HysteresisDuration is how long clearance conditions must hold before
	// an emergency downgrades.
	HysteresisDuration time.Duration
}

// Monitor evaluates altitude readings into a SafetyState with downgrade
// hysteresis. It has no side effects beyond its own hysteresis bookkeeping.
type Monitor struct {
	cfg SafetyConfig

	state SafetyState
	// clearSince is when the altitude first satisfied the clearance
	// condition during an emergency; zero when not tracking.
	clearSince    time.Time
	trackingClear bool
}

// NewMonitor creates a Monitor in the NORMAL state.
func NewMonitor(cfg SafetyConfig) *Monitor {
	return &Monitor{cfg: cfg, state: SafetyNormal}
}

// State returns the current safety state without re-evaluating.
func (m *Monitor) State() SafetyState {
	return m.state
}

// Evaluate assesses one altitude reading taken at measuredAt against the
// thresholds and returns the resulting state.
//
// A nil altitude, or one older than the staleness window, is a sensor fault
// and resolves to EMERGENCY: the monitor fails safe, never open. Entering
// EMERGENCY is immediate; leaving it requires altitude at or above
// emergency+margin sustained for the hysteresis duration.
func (m *Monitor) Evaluate(altitude *float64, measuredAt, now time.Time) SafetyState {
	fault := altitude == nil || measuredAt.IsZero() || now.Sub(measuredAt) > m.cfg.StalenessWindow

	var assessed SafetyState
	switch {
	case fault:
		assessed = SafetyEmergency
	case *altitude <= m.cfg.EmergencyAltitude:
		assessed = SafetyEmergency
	case *altitude <= m.cfg.WarningAltitude:
		assessed = SafetyWarning
	default:
		assessed = SafetyNormal
	}

	if m.state != SafetyEmergency {
		m.state = assessed
		if assessed == SafetyEmergency {
			m.trackingClear = false
		}
		return m.state
	}

	// In EMERGENCY: downgrade only after sustained clearance.
	if assessed == SafetyEmergency {
		m.trackingClear = false
		return m.state
	}
	if fault || *altitude < m.cfg.EmergencyAltitude+m.cfg.Margin {
		m.trackingClear = false
		return m.state
	}
	if !m.trackingClear {
		m.trackingClear = true
		m.clearSince = now
	}
	if now.Sub(m.clearSince) >= m.cfg.HysteresisDuration {
		m.state = assessed
		m.trackingClear = false
	}
	return m.state
}
