package control

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fs19062005-design/VIrtual-Slope/internal/mission"
)

func descentPhase() *mission.Phase {
	return &mission.Phase{
		ID:          "1-1",
		Direction:   mission.DirectionDown,
		StartDepth:  10,
		TargetDepth: 30,
		SlopeRate:   0.5,
		SpeedMps:    2,
	}
}

func ascentPhase() *mission.Phase {
	return &mission.Phase{
		ID:          "1-2",
		Direction:   mission.DirectionUp,
		StartDepth:  30,
		TargetDepth: 10,
		SlopeRate:   0.5,
		SpeedMps:    2,
	}
}

func TestSampleRampDescent(t *testing.T) {
	t.Parallel()

	p := descentPhase()
	assert.InDelta(t, 10.0, SampleRamp(p, 0), 1e-12)
	assert.InDelta(t, 20.0, SampleRamp(p, 20), 1e-12)
	assert.InDelta(t, 30.0, SampleRamp(p, 40), 1e-12)
	// Clipped at the target, never past it.
	assert.InDelta(t, 30.0, SampleRamp(p, 1000), 1e-12)
}

func TestSampleRampAscent(t *testing.T) {
	t.Parallel()

	p := ascentPhase()
	assert.InDelta(t, 30.0, SampleRamp(p, 0), 1e-12)
	assert.InDelta(t, 20.0, SampleRamp(p, 20), 1e-12)
	assert.InDelta(t, 10.0, SampleRamp(p, 1000), 1e-12)
}

func TestSampleRampMonotonicTowardTarget(t *testing.T) {
	t.Parallel()

	p := descentPhase()
	prev := SampleRamp(p, 0)
	for e := 1.0; e <= 100; e++ {
		cur := SampleRamp(p, e)
		assert.GreaterOrEqual(t, cur, prev)
		assert.LessOrEqual(t, cur, p.TargetDepth)
		prev = cur
	}
}

func TestSampleRampCollapsedPhase(t *testing.T) {
	t.Parallel()

	// start == target: the ramp is already at its hold depth.
	p := &mission.Phase{Direction: mission.DirectionDown, StartDepth: 25, TargetDepth: 25, SlopeRate: 0.5}
	assert.InDelta(t, 25.0, SampleRamp(p, 0), 1e-12)
	assert.InDelta(t, 25.0, SampleRamp(p, 60), 1e-12)
}

func TestBlendRateContinuity(t *testing.T) {
	t.Parallel()

	const r0, r1, w = -0.5, -0.2, 5.0

	// Continuous at both window edges.
	assert.InDelta(t, r0, BlendRate(r0, r1, 0, w), 1e-12)
	assert.InDelta(t, r1, BlendRate(r0, r1, w, w), 1e-12)

	// Strictly between the endpoints at the midpoint.
	mid := BlendRate(r0, r1, 2.5, w)
	assert.InDelta(t, -0.35, mid, 1e-12)
	assert.Greater(t, mid, r0)
	assert.Less(t, mid, r1)
}

func TestBlendRatesProfile(t *testing.T) {
	t.Parallel()

	const r0, r1, w = -0.5, -0.2, 5.0
	profile := BlendRates(r0, r1, w, 11)
	require.Len(t, profile, 11)
	assert.InDelta(t, r0, profile[0], 1e-12)
	assert.InDelta(t, r1, profile[10], 1e-12)
	for i := 1; i < len(profile); i++ {
		assert.GreaterOrEqual(t, profile[i], profile[i-1])
	}
}

func TestSampleTransition(t *testing.T) {
	t.Parallel()

	const d0, r0, r1, w = 30.0, -0.5, -0.2, 5.0

	assert.InDelta(t, d0, SampleTransition(d0, r0, r1, 0, w), 1e-12)

	// Over the full window depth moves by the average of the two rates.
	end := SampleTransition(d0, r0, r1, w, w)
	assert.InDelta(t, d0+w*(r0+r1)/2, end, 1e-12)

	// Past the window the incoming rate takes over.
	assert.InDelta(t, end+2*r1, SampleTransition(d0, r0, r1, w+2, w), 1e-12)

	// Sampled depths are monotonic for same-sign rates.
	prev := SampleTransition(d0, r0, r1, 0, w)
	for tt := 0.1; tt <= w; tt += 0.1 {
		cur := SampleTransition(d0, r0, r1, tt, w)
		assert.Less(t, cur, prev)
		prev = cur
	}
}

func TestTrajectorySampleDispatch(t *testing.T) {
	t.Parallel()

	g := NewTrajectory(5.0)
	p := descentPhase()
	next := ascentPhase()

	assert.InDelta(t, 20.0, g.Sample(p, mission.Subphase{Kind: mission.SubphaseRamp}, next, 20), 1e-12)
	assert.InDelta(t, 30.0, g.Sample(p, mission.Subphase{Kind: mission.SubphaseHold}, next, 123), 1e-12)

	// Transition starts at the phase target and blends +0.5 into -0.5.
	start := g.Sample(p, mission.Subphase{Kind: mission.SubphaseTransition}, next, 0)
	assert.InDelta(t, 30.0, start, 1e-12)
	end := g.Sample(p, mission.Subphase{Kind: mission.SubphaseTransition}, next, 5)
	assert.InDelta(t, 30.0, end, 1e-12)

	// With no next phase the blend eases out to level.
	lastEnd := g.Sample(p, mission.Subphase{Kind: mission.SubphaseTransition}, nil, 5)
	assert.InDelta(t, 30.0+5*0.25, lastEnd, 1e-12)
}
