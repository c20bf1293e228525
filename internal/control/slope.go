package control

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/fs19062005-design/VIrtual-Slope/internal/mission"
)

// SignedRate returns the phase's slope rate with sign applied: positive for
// descent (depth increasing), negative for ascent.
func SignedRate(p *mission.Phase) float64 {
	if p.Direction == mission.DirectionUp {
		return -p.SlopeRate
	}
	return p.SlopeRate
}

// SampleRamp returns the virtual slope depth for a ramp subphase at the given
// elapsed time since the subphase started. The value advances from the
// phase's start depth at the signed slope rate and is clipped at the target
// so the ramp never overshoots it.
func SampleRamp(p *mission.Phase, elapsed float64) float64 {
	depth := p.StartDepth + SignedRate(p)*elapsed
	if p.Direction == mission.DirectionUp {
		return math.Max(depth, p.TargetDepth)
	}
	return math.Min(depth, p.TargetDepth)
}

// SampleHold returns the hold depth for a phase, which is pinned at the
// phase's target.
func SampleHold(p *mission.Phase) float64 {
	return p.TargetDepth
}

// BlendRate returns the blended slope rate at time t within a transition
// window of width w, easing from outgoing rate r0 to incoming rate r1 with a
// raised-cosine profile so the rate is continuous at both edges.
func BlendRate(r0, r1, t, w float64) float64 {
	if w <= 0 || t >= w {
		return r1
	}
	if t <= 0 {
		return r0
	}
	return r0 + (r1-r0)*(1-math.Cos(math.Pi*t/w))/2
}

// BlendRates samples the raised-cosine rate profile at n evenly spaced points
// across [0, w], endpoints included.
func BlendRates(r0, r1, w float64, n int) []float64 {
	if n < 2 {
		n = 2
	}
	ts := floats.Span(make([]float64, n), 0, w)
	for i, t := range ts {
		ts[i] = BlendRate(r0, r1, t, w)
	}
	return ts
}

// SampleTransition returns the depth t seconds into a transition window of
// width w that starts at depth d0 and eases the slope rate from r0 to r1.
// The value is the closed-form integral of BlendRate, so sampled depths are
// exact rather than accumulated.
func SampleTransition(d0, r0, r1, t, w float64) float64 {
	if w <= 0 {
		return d0
	}
	if t >= w {
		return d0 + w*(r0+r1)/2 + (t-w)*r1
	}
	if t <= 0 {
		return d0
	}
	return d0 + r0*t + (r1-r0)/2*(t-w/math.Pi*math.Sin(math.Pi*t/w))
}

// Trajectory generates the commanded depth profile for the active subphase.
// Sample returns the pre-compensation base depth; the caller adds the
// compensator's term afterwards so compensation never shifts phase targets.
type Trajectory struct {
	blendWindow float64
}

// NewTrajectory creates a generator with the given transition blend window in
// seconds.
func NewTrajectory(blendWindowSeconds float64) *Trajectory {
	return &Trajectory{blendWindow: blendWindowSeconds}
}

// BlendWindow returns the transition window width in seconds.
func (g *Trajectory) BlendWindow() float64 {
	return g.blendWindow
}

// Sample returns the base depth for subphase sub of phase p at elapsed
// seconds since the subphase started. next is the following phase, used for
// the incoming rate of a transition; nil means the transition eases to a
// zero rate.
func (g *Trajectory) Sample(p *mission.Phase, sub mission.Subphase, next *mission.Phase, elapsed float64) float64 {
	switch sub.Kind {
	case mission.SubphaseRamp:
		return SampleRamp(p, elapsed)
	case mission.SubphaseHold:
		return SampleHold(p)
	case mission.SubphaseTransition:
		rIn := 0.0
		if next != nil {
			rIn = SignedRate(next)
		}
		return SampleTransition(p.TargetDepth, SignedRate(p), rIn, elapsed, g.blendWindow)
	}
	return p.TargetDepth
}
