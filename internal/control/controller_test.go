package control

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fs19062005-design/VIrtual-Slope/internal/mission"
	"github.com/fs19062005-design/VIrtual-Slope/internal/nav"
)

type stubChecker struct {
	atLine  bool
	reached bool
}

func (s *stubChecker) AtLineStart(*mission.Phase, nav.NavigationData) bool {
	return s.atLine
}

func (s *stubChecker) ReachedPoint(mission.Waypoint, nav.NavigationData) bool {
	return s.reached
}

func testControllerConfig() ControllerConfig {
	return ControllerConfig{
		Safety: SafetyConfig{
			WarningAltitude:    5.0,
			EmergencyAltitude:  1.0,
			Margin:             0.5,
			StalenessWindow:    3 * time.Second,
			HysteresisDuration: 10 * time.Second,
		},
		Compensator: CompensatorConfig{
			GainP:       0.4,
			GainI:       0.05,
			MaxComp:     1.0,
			HistorySize: 50,
		},
		Manager:         testManagerConfig(),
		ControlPeriod:   time.Second,
		MaxAngleDegrees: 15,
		MinDepth:        1.0,
		MaxDepth:        95.0,
	}
}

// climbStep is the per-cycle depth change at the maximum pitch for the test
// mission's 2 m/s planned speed.
func climbStep() float64 {
	return 2 * math.Sin(15*math.Pi/180)
}

func snapAt(depth, altitude float64, at time.Time) nav.Snapshot {
	return nav.Snapshot{
		Data: nav.NavigationData{
			Depth:    nav.Float(depth),
			Altitude: nav.Float(altitude),
		},
		At: at,
	}
}

func newTestController(t *testing.T) *Controller {
	t.Helper()
	c, err := NewController(testControllerConfig(), testMission(), &stubChecker{}, phaseBase, nil)
	require.NoError(t, err)
	return c
}

func TestControllerFollowsRamp(t *testing.T) {
	t.Parallel()

	c := newTestController(t)
	now := phaseBase

	cmd := c.Cycle(snapAt(10, 20, now), true, now)
	assert.InDelta(t, 10.0, cmd.TargetDepth, 1e-9)
	assert.False(t, cmd.SafetyFlag)
	assert.Nil(t, cmd.RateLimit)

	// Ten seconds on: the slope has descended 5m. The vehicle tracked the
	// last command exactly, so no compensation applies.
	now = now.Add(10 * time.Second)
	cmd = c.Cycle(snapAt(10, 20, now), true, now)
	assert.InDelta(t, 15.0, cmd.TargetDepth, 1e-9)
	assert.False(t, cmd.SafetyFlag)

	st := c.Trajectory()
	assert.Equal(t, cmd.TargetDepth, st.CommandedDepth)
	assert.Equal(t, now, st.LastSampleTime)
}

func TestControllerCompensatesTrackingError(t *testing.T) {
	t.Parallel()

	c := newTestController(t)
	now := phaseBase
	c.Cycle(snapAt(10, 20, now), true, now)

	// The vehicle sits 2m shallower than commanded: the compensator pushes
	// the next setpoint beyond the raw slope sample.
	now = now.Add(time.Second)
	cmd := c.Cycle(snapAt(8, 20, now), true, now)
	slope := 10.5
	assert.Greater(t, cmd.TargetDepth, slope)
}

func TestControllerEmergencyClimb(t *testing.T) {
	t.Parallel()

	c := newTestController(t)
	now := phaseBase
	first := c.Cycle(snapAt(10, 5.5, now), true, now)
	require.False(t, first.SafetyFlag)

	// Altitude collapses to half a meter with the emergency threshold at
	// one: the next command is a climb no matter what the mission wants.
	now = now.Add(time.Second)
	cmd := c.Cycle(snapAt(10.5, 0.5, now), true, now)
	assert.True(t, cmd.SafetyFlag)
	require.NotNil(t, cmd.RateLimit)
	assert.InDelta(t, first.TargetDepth-climbStep(), cmd.TargetDepth, 1e-9)
	assert.Equal(t, StateHoldingSafety, c.Manager().State().Kind)
}

func TestControllerEmergencyClampsAtMinDepth(t *testing.T) {
	t.Parallel()

	c := newTestController(t)
	now := phaseBase
	c.Cycle(snapAt(10, 20, now), true, now)

	var cmd DepthCommand
	for i := 0; i < 40; i++ {
		now = now.Add(time.Second)
		cmd = c.Cycle(snapAt(5, 0.4, now), true, now)
		assert.True(t, cmd.SafetyFlag)
		assert.GreaterOrEqual(t, cmd.TargetDepth, 1.0)
	}
	assert.InDelta(t, 1.0, cmd.TargetDepth, 1e-9)
}

func TestControllerMissingFixFailsSafe(t *testing.T) {
	t.Parallel()

	c := newTestController(t)
	cmd := c.Cycle(nav.Snapshot{}, false, phaseBase)
	assert.True(t, cmd.SafetyFlag)
	assert.Equal(t, SafetyEmergency, c.SafetyState())
}

func TestControllerWarningHoldsDescent(t *testing.T) {
	t.Parallel()

	c := newTestController(t)
	now := phaseBase
	first := c.Cycle(snapAt(10, 20, now), true, now)

	// Warning band: stop descending, keep station, flag the command.
	now = now.Add(time.Second)
	cmd := c.Cycle(snapAt(10, 3.0, now), true, now)
	assert.True(t, cmd.SafetyFlag)
	assert.InDelta(t, first.TargetDepth, cmd.TargetDepth, 1e-9)
	// A warning suspends nothing.
	assert.Equal(t, StateActive, c.Manager().State().Kind)
}

func TestControllerReturnsToSlopeAfterEmergency(t *testing.T) {
	t.Parallel()

	c := newTestController(t)
	now := phaseBase
	step := climbStep()

	prev := c.Cycle(snapAt(10, 20, now), true, now)
	depth := prev.TargetDepth

	altitude := func(cycle int) float64 {
		if cycle < 5 {
			return 0.5 // emergency episode
		}
		return 20.0 // bottom falls away again
	}

	rejoined := false
	for i := 0; i < 60 && !rejoined; i++ {
		now = now.Add(time.Second)
		cmd := c.Cycle(snapAt(depth, altitude(i), now), true, now)

		// The setpoint never moves faster than the max-angle rate allows.
		assert.LessOrEqual(t, math.Abs(cmd.TargetDepth-prev.TargetDepth), step+1e-9)

		// The vehicle tracks each command perfectly for this test.
		depth = cmd.TargetDepth
		prev = cmd
		rejoined = !cmd.SafetyFlag && cmd.RateLimit == nil
	}
	require.True(t, rejoined, "controller never rejoined the slope")
	assert.Equal(t, StateActive, c.Manager().State().Kind)
}

func TestControllerResetMission(t *testing.T) {
	t.Parallel()

	c := newTestController(t)
	now := phaseBase
	c.Cycle(snapAt(10, 20, now), true, now)
	now = now.Add(30 * time.Second)
	c.Cycle(snapAt(20, 20, now), true, now)

	require.NoError(t, c.ResetMission(testMission(), now))
	assert.Equal(t, State{Kind: StateActive, Phase: 0, Sub: 0}, c.Manager().State())

	// The new mission's slope starts back at 10m; the setpoint walks there
	// at the max-angle rate instead of jumping.
	now = now.Add(time.Second)
	cmd := c.Cycle(snapAt(20, 20, now), true, now)
	assert.False(t, cmd.SafetyFlag)
	require.NotNil(t, cmd.RateLimit)
	assert.InDelta(t, 20.0-climbStep(), cmd.TargetDepth, 1e-9)
}

func TestControllerHoldConfirmsNextLineStart(t *testing.T) {
	t.Parallel()

	checker := &stubChecker{}
	c, err := NewController(testControllerConfig(), testMission(), checker, phaseBase, nil)
	require.NoError(t, err)

	// Ride the ramp to the target so the hold begins.
	now := phaseBase
	depth := 10.0
	for i := 0; i < 45; i++ {
		now = now.Add(time.Second)
		cmd := c.Cycle(snapAt(depth, 20, now), true, now)
		depth = cmd.TargetDepth
	}
	require.Equal(t, State{Kind: StateActive, Phase: 0, Sub: 1}, c.Manager().State())

	// The checker confirms the next line start: the transition begins.
	checker.atLine = true
	now = now.Add(time.Second)
	c.Cycle(snapAt(depth, 20, now), true, now)
	assert.Equal(t, State{Kind: StateActive, Phase: 0, Sub: 2}, c.Manager().State())
}
