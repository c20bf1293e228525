package control

import (
	"math"
	"time"

	"github.com/fs19062005-design/VIrtual-Slope/internal/mission"
	"github.com/fs19062005-design/VIrtual-Slope/internal/monitoring"
	"github.com/fs19062005-design/VIrtual-Slope/internal/nav"
)

// DepthCommand is the sole output of a control cycle.
type DepthCommand struct {
	// TargetDepth is the depth setpoint in meters.
	TargetDepth float64
	// RateLimit, when non-nil, caps the commanded depth rate in m/s.
	RateLimit *float64
	// SafetyFlag marks commands substituted or pinned by the safety override.
	SafetyFlag bool
}

// TrajectoryState is the per-cycle trajectory bookkeeping, reset whenever a
// new subphase starts.
type TrajectoryState struct {
	CommandedDepth   float64
	ElapsedInSegment time.Duration
	LastSampleTime   time.Time
}

// PositionChecker answers the phase machine's position questions. Satisfied
// by mission.Checker.
type PositionChecker interface {
	AtLineStart(phase *mission.Phase, fix nav.NavigationData) bool
	ReachedPoint(point mission.Waypoint, fix nav.NavigationData) bool
}

// ControllerConfig gathers every tuning parameter of the closed loop so
// independently tuned controller instances can coexist in tests.
type ControllerConfig struct {
	Safety      SafetyConfig
	Compensator CompensatorConfig
	Manager     ManagerConfig

	// ControlPeriod is the nominal cycle period.
	ControlPeriod time.Duration
	// MaxAngleDegrees bounds the pitch implied by an emergency climb or a
	// return to the trajectory after safety clears.
	MaxAngleDegrees float64
	// MinDepth and MaxDepth clamp every emitted setpoint.
	MinDepth float64
	MaxDepth float64
}

// Controller runs the closed loop. One Cycle call per control period:
// safety evaluation, error compensation, trajectory sample, phase step, then
// a single emitted DepthCommand with the safety override applied last.
//
// All mutable state is owned here and mutated only by Cycle; callers drive
// it from a single goroutine.
type Controller struct {
	cfg ControllerConfig

	monitor *Monitor
	comp    *Compensator
	traj    *Trajectory
	mgr     *Manager
	checker PositionChecker

	traState  TrajectoryState
	hasEmit   bool
	lastEmit  float64
	lastCycle time.Time
	// converging is set while the emitted command walks back to the virtual
	// slope after a safety episode.
	converging bool
}

// NewController builds a controller for the given mission. onChange receives
// phase-change events and may be nil.
func NewController(cfg ControllerConfig, m *mission.Mission, checker PositionChecker, now time.Time, onChange func(PhaseChange)) (*Controller, error) {
	mgr, err := NewManager(cfg.Manager, m, now, onChange)
	if err != nil {
		return nil, err
	}
	return &Controller{
		cfg:     cfg,
		monitor: NewMonitor(cfg.Safety),
		comp:    NewCompensator(cfg.Compensator),
		traj:    NewTrajectory(cfg.Manager.BlendWindow.Seconds()),
		mgr:     mgr,
		checker: checker,
	}, nil
}

// Manager exposes the phase machine, read-only use intended.
func (c *Controller) Manager() *Manager {
	return c.mgr
}

// SafetyState returns the latest evaluated safety state.
func (c *Controller) SafetyState() SafetyState {
	return c.monitor.State()
}

// Trajectory returns the last cycle's trajectory bookkeeping.
func (c *Controller) Trajectory() TrajectoryState {
	return c.traState
}

// ResetMission repositions the controller at the start of a new mission.
// Compensation history is dropped. The emitted-command history is kept and
// the converging walk engaged, so the new mission's slope is approached at
// the max-angle rate from the current setpoint rather than jumped to.
func (c *Controller) ResetMission(m *mission.Mission, now time.Time) error {
	if err := c.mgr.Reset(m, now); err != nil {
		return err
	}
	c.comp.Reset()
	c.converging = c.hasEmit
	return nil
}

// Cycle runs one control period. snap is the latest sensor snapshot; ok is
// false when no fix is available, which resolves to the fail-safe emergency
// path rather than an error.
func (c *Controller) Cycle(snap nav.Snapshot, ok bool, now time.Time) DepthCommand {
	var altitude *float64
	var measuredAt time.Time
	if ok {
		altitude = snap.Data.Altitude
		measuredAt = snap.At
	}
	safety := c.monitor.Evaluate(altitude, measuredAt, now)

	dt := c.cfg.ControlPeriod.Seconds()
	if !c.lastCycle.IsZero() {
		if d := now.Sub(c.lastCycle).Seconds(); d > 0 {
			dt = d
		}
	}
	c.lastCycle = now

	compTerm := c.comp.LastCompensation()
	if c.hasEmit && ok && snap.Data.Depth != nil {
		compTerm = c.comp.Update(c.lastEmit, *snap.Data.Depth, dt)
	}

	base := c.sample(now)
	confirmed := ok && c.positionConfirmed(snap.Data)
	c.mgr.Step(StepInput{
		Now:               now,
		CommandedDepth:    base,
		Safety:            safety,
		PositionConfirmed: confirmed,
	})
	// Resample after any transition so the emitted command follows the new
	// subphase from its start.
	base = c.sample(now)
	desired := base + compTerm

	cmd := c.applySafety(desired, safety, snap, ok, time.Duration(dt*float64(time.Second)))
	cmd.TargetDepth = clamp(cmd.TargetDepth, c.cfg.MinDepth, c.cfg.MaxDepth)

	c.lastEmit = cmd.TargetDepth
	c.hasEmit = true
	c.traState = TrajectoryState{
		CommandedDepth:   cmd.TargetDepth,
		ElapsedInSegment: c.mgr.SubphaseElapsed(now),
		LastSampleTime:   now,
	}
	return cmd
}

// sample returns the pre-compensation trajectory depth for the current state.
func (c *Controller) sample(now time.Time) float64 {
	phase := c.mgr.CurrentPhase()
	sub, active := c.mgr.ActiveSubphase()
	if !active {
		// Suspended or complete: the trajectory holds the phase target.
		return phase.TargetDepth
	}
	elapsed := c.mgr.SubphaseElapsed(now).Seconds()
	return c.traj.Sample(phase, sub, c.mgr.NextPhase(), elapsed)
}

// positionConfirmed asks the checker the question relevant to the active
// hold: the next phase's line start, or the current line's end for the final
// hold.
func (c *Controller) positionConfirmed(fix nav.NavigationData) bool {
	sub, active := c.mgr.ActiveSubphase()
	if !active || sub.Kind != mission.SubphaseHold || c.checker == nil {
		return false
	}
	if next := c.mgr.NextPhase(); next != nil && next.LineStart != nil {
		return c.checker.AtLineStart(next, fix)
	}
	return c.checker.ReachedPoint(c.mgr.CurrentPhase().End, fix)
}

// applySafety is the single point where "safety always wins": it intercepts
// the trajectory's proposed setpoint and substitutes the override command
// when the safety state demands one. While the override or the walk back to
// the slope is in effect the subphase clock is shifted by dt, so the
// trajectory waits for the vehicle instead of running away from it.
func (c *Controller) applySafety(desired float64, safety SafetyState, snap nav.Snapshot, ok bool, dt time.Duration) DepthCommand {
	step := c.maxAngleStep()
	rate := c.maxAngleRate()

	switch safety {
	case SafetyEmergency:
		c.converging = true
		from := c.emittedOr(desired, snap, ok)
		target := math.Max(from-step, c.cfg.MinDepth)
		return DepthCommand{TargetDepth: target, RateLimit: &rate, SafetyFlag: true}
	case SafetyWarning:
		c.converging = true
		phase := c.mgr.CurrentPhase()
		if phase.Direction == mission.DirectionDown {
			// Stop descending but keep station; the emergency ladder handles
			// actual climbs.
			c.mgr.ShiftClock(dt)
			return DepthCommand{TargetDepth: c.emittedOr(desired, snap, ok), SafetyFlag: true}
		}
		return DepthCommand{TargetDepth: desired, SafetyFlag: true}
	}

	// Safety has cleared but the phase machine is still waiting out its
	// resume window: keep station until progress resumes.
	if c.mgr.State().Kind == StateHoldingSafety {
		return DepthCommand{TargetDepth: c.emittedOr(desired, snap, ok), SafetyFlag: true}
	}

	if c.converging && c.hasEmit {
		diff := desired - c.lastEmit
		if math.Abs(diff) > step {
			target := c.lastEmit + math.Copysign(step, diff)
			c.mgr.ShiftClock(dt)
			return DepthCommand{TargetDepth: target, RateLimit: &rate}
		}
		c.converging = false
		monitoring.Logf("controller: rejoined virtual slope at %.2fm", desired)
	}
	return DepthCommand{TargetDepth: desired}
}

// emittedOr returns the last emitted setpoint, falling back to the measured
// depth and then to the proposed one.
func (c *Controller) emittedOr(desired float64, snap nav.Snapshot, ok bool) float64 {
	if c.hasEmit {
		return c.lastEmit
	}
	if ok && snap.Data.Depth != nil {
		return *snap.Data.Depth
	}
	return desired
}

// maxAngleRate is the depth rate implied by the maximum allowed pitch at the
// active phase's planned speed.
func (c *Controller) maxAngleRate() float64 {
	phase := c.mgr.CurrentPhase()
	speed := phase.SpeedMps
	if speed <= 0 {
		speed = 1
	}
	return speed * math.Sin(c.cfg.MaxAngleDegrees*math.Pi/180)
}

// maxAngleStep is the depth change the max-angle rate allows in one cycle.
func (c *Controller) maxAngleStep() float64 {
	return c.maxAngleRate() * c.cfg.ControlPeriod.Seconds()
}
