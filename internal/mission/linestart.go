package mission

import (
	"github.com/fs19062005-design/VIrtual-Slope/internal/geo"
	"github.com/fs19062005-design/VIrtual-Slope/internal/monitoring"
	"github.com/fs19062005-design/VIrtual-Slope/internal/nav"
)

// CheckerConfig holds the tolerances for line-start and waypoint detection.
type CheckerConfig struct {
	// LineStartToleranceMeters is the horizontal radius for line-start
	// confirmation.
	LineStartToleranceMeters float64
	// LineStartToleranceDepth is the allowed depth error at the line start.
	LineStartToleranceDepth float64
	// LineStartToleranceHeading is the allowed course error in degrees.
	// Heading is only checked when the fix carries one.
	LineStartToleranceHeading float64
	// WaypointToleranceMeters is the radius for plain waypoint checks.
	WaypointToleranceMeters float64
}

// Checker answers position questions for the phase state machine from live
// navigation fixes.
type Checker struct {
	cfg CheckerConfig
}

// NewChecker creates a Checker with the given tolerances.
func NewChecker(cfg CheckerConfig) *Checker {
	return &Checker{cfg: cfg}
}

// AtLineStart reports whether the vehicle is positioned to begin the given
// phase: within horizontal tolerance of the line start, at its depth, and
// on course toward the line end.
//
// An incomplete fix never confirms; the caller falls back to its timeout.
func (c *Checker) AtLineStart(phase *Phase, fix nav.NavigationData) bool {
	if phase == nil || phase.LineStart == nil {
		return false
	}
	if fix.Latitude == nil || fix.Longitude == nil || fix.Depth == nil {
		return false
	}

	distance := geo.DistanceMeters(*fix.Latitude, *fix.Longitude,
		phase.LineStart.Latitude, phase.LineStart.Longitude)
	if distance > c.cfg.LineStartToleranceMeters {
		return false
	}

	depthDiff := *fix.Depth - phase.LineStart.Depth
	if depthDiff < 0 {
		depthDiff = -depthDiff
	}
	if depthDiff > c.cfg.LineStartToleranceDepth {
		return false
	}

	if fix.Heading != nil {
		headingDiff := geo.HeadingDifference(*fix.Heading, phase.HeadingDegrees)
		if headingDiff > c.cfg.LineStartToleranceHeading {
			return false
		}
	}

	monitoring.Logf("line start confirmed for phase %s: pos_diff=%.1fm depth_diff=%.1fm",
		phase.ID, distance, depthDiff)
	return true
}

// ReachedPoint reports whether the vehicle is within the waypoint tolerance
// of the given point. Depth is not considered.
func (c *Checker) ReachedPoint(point Waypoint, fix nav.NavigationData) bool {
	if fix.Latitude == nil || fix.Longitude == nil {
		return false
	}
	distance := geo.DistanceMeters(*fix.Latitude, *fix.Longitude, point.Latitude, point.Longitude)
	return distance <= c.cfg.WaypointToleranceMeters
}
