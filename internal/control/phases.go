package control

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fs19062005-design/VIrtual-Slope/internal/mission"
	"github.com/fs19062005-design/VIrtual-Slope/internal/monitoring"
)

// StateKind distinguishes the running states from the two special ones.
type StateKind string

const (
	// StateActive means a (phase, subphase) pair is executing.
	StateActive StateKind = "ACTIVE"
	// StateHoldingSafety means progress is suspended by an emergency and the
	// prior state is saved for resume.
	StateHoldingSafety StateKind = "HOLDING_SAFETY"
	// StateMissionComplete is terminal. The vehicle holds the last target.
	StateMissionComplete StateKind = "MISSION_COMPLETE"
)

// State identifies where the mission stands. Phase and Sub index into the
// mission's phase and subphase lists and are meaningful only when Kind is
// StateActive.
type State struct {
	Kind  StateKind
	Phase int
	Sub   int
}

func (s State) String() string {
	if s.Kind != StateActive {
		return string(s.Kind)
	}
	return fmt.Sprintf("phase[%d].sub[%d]", s.Phase, s.Sub)
}

// TransitionReason explains a phase-change event.
type TransitionReason string

const (
	ReasonPositionConfirmed TransitionReason = "POSITION_CONFIRMED"
	ReasonTimeout           TransitionReason = "TIMEOUT"
	ReasonSafety            TransitionReason = "SAFETY"
	ReasonComplete          TransitionReason = "COMPLETE"
)

// PhaseChange is emitted to the event callback on every state transition
// that carries one of the four reasons.
type PhaseChange struct {
	EventID  string
	OldState State
	NewState State
	Reason   TransitionReason
	At       time.Time
}

// ManagerConfig holds the phase machine's timing and tolerance parameters.
type ManagerConfig struct {
	// HoldTimeout is how long a hold waits for position confirmation before
	// falling back to a timeout advance.
	HoldTimeout time.Duration
	// BlendWindow is the transition subphase duration.
	BlendWindow time.Duration
	// DepthTolerance is how close the commanded depth must come to the phase
	// target for a ramp to complete.
	DepthTolerance float64
	// SafetyResumeDuration is how long the safety state must stay NORMAL
	// before a suspended mission resumes.
	SafetyResumeDuration time.Duration
}

// StepInput is one cycle's worth of facts for the phase machine. The
// commanded depth is the pre-compensation trajectory sample; the
// position-confirmation answer comes from the line-start checker.
type StepInput struct {
	Now               time.Time
	CommandedDepth    float64
	Safety            SafetyState
	PositionConfirmed bool
}

// Manager sequences the mission's phases and subphases with an explicit
// transition table. All guards are driven by StepInput and subphase entry
// times; calling Step twice with the same input advances nothing further.
type Manager struct {
	cfg     ManagerConfig
	mission *mission.Mission

	state         State
	subphaseStart time.Time

	// Suspension bookkeeping for HOLDING_SAFETY.
	saved        State
	savedElapsed time.Duration
	normalSince  time.Time
	sawNormal    bool

	onChange func(PhaseChange)
}

// NewManager creates a manager positioned at the first phase's first
// subphase. onChange may be nil; it receives every reasoned transition.
func NewManager(cfg ManagerConfig, m *mission.Mission, now time.Time, onChange func(PhaseChange)) (*Manager, error) {
	if m == nil || len(m.Phases) == 0 {
		return nil, fmt.Errorf("mission has no phases")
	}
	mgr := &Manager{
		cfg:           cfg,
		mission:       m,
		state:         State{Kind: StateActive, Phase: 0, Sub: 0},
		subphaseStart: now,
		onChange:      onChange,
	}
	return mgr, nil
}

// State returns the current machine state.
func (g *Manager) State() State {
	return g.state
}

// CurrentPhase returns the active phase, or the last phase when the mission
// is complete, or the suspended phase while holding for safety.
func (g *Manager) CurrentPhase() *mission.Phase {
	switch g.state.Kind {
	case StateActive:
		return &g.mission.Phases[g.state.Phase]
	case StateHoldingSafety:
		if g.saved.Kind == StateActive {
			return &g.mission.Phases[g.saved.Phase]
		}
		return &g.mission.Phases[len(g.mission.Phases)-1]
	default:
		return &g.mission.Phases[len(g.mission.Phases)-1]
	}
}

// NextPhase returns the phase after the current one, or nil at the last.
func (g *Manager) NextPhase() *mission.Phase {
	s := g.state
	if s.Kind == StateHoldingSafety {
		s = g.saved
	}
	if s.Kind != StateActive || s.Phase+1 >= len(g.mission.Phases) {
		return nil
	}
	return &g.mission.Phases[s.Phase+1]
}

// ActiveSubphase returns the executing subphase. ok is false in
// HOLDING_SAFETY and MISSION_COMPLETE.
func (g *Manager) ActiveSubphase() (mission.Subphase, bool) {
	if g.state.Kind != StateActive {
		return mission.Subphase{}, false
	}
	sub, err := g.mission.Subphase(g.state.Phase, g.state.Sub)
	if err != nil {
		return mission.Subphase{}, false
	}
	return sub, true
}

// ShiftClock moves the subphase entry time forward by d. The orchestrator
// uses it to exclude time the emitted command spent pinned away from the
// trajectory, so ramps and hold timeouts do not run while the vehicle cannot
// follow them.
func (g *Manager) ShiftClock(d time.Duration) {
	g.subphaseStart = g.subphaseStart.Add(d)
}

// SubphaseElapsed returns how long the active subphase has been running.
func (g *Manager) SubphaseElapsed(now time.Time) time.Duration {
	return now.Sub(g.subphaseStart)
}

// Reset repositions the manager at the start of a new mission.
func (g *Manager) Reset(m *mission.Mission, now time.Time) error {
	if m == nil || len(m.Phases) == 0 {
		return fmt.Errorf("mission has no phases")
	}
	g.mission = m
	g.state = State{Kind: StateActive, Phase: 0, Sub: 0}
	g.subphaseStart = now
	g.saved = State{}
	g.savedElapsed = 0
	g.sawNormal = false
	return nil
}

// Step applies the transition table once for this cycle. Chained guards that
// are already satisfied fire in the same call (a ramp that is at target
// enters its hold immediately), but every time-based guard is measured from
// the subphase entry time, so repeating a call with the same input is a
// no-op.
func (g *Manager) Step(in StepInput) State {
	// Safety suspension sits outside the subphase table.
	if in.Safety == SafetyEmergency && g.state.Kind == StateActive {
		g.suspend(in.Now)
		return g.state
	}
	if g.state.Kind == StateHoldingSafety {
		g.stepSuspended(in)
		return g.state
	}
	if g.state.Kind == StateMissionComplete {
		return g.state
	}

	// Bounded fixpoint over the subphase guards.
	for i := 0; i < g.totalSubphases()+1; i++ {
		if !g.stepActive(in) {
			break
		}
		if g.state.Kind != StateActive {
			break
		}
	}
	return g.state
}

func (g *Manager) suspend(now time.Time) {
	old := g.state
	g.saved = g.state
	g.savedElapsed = now.Sub(g.subphaseStart)
	g.state = State{Kind: StateHoldingSafety}
	g.sawNormal = false
	g.emit(old, g.state, ReasonSafety, now)
}

func (g *Manager) stepSuspended(in StepInput) {
	if in.Safety != SafetyNormal {
		g.sawNormal = false
		return
	}
	if !g.sawNormal {
		g.sawNormal = true
		g.normalSince = in.Now
		return
	}
	if in.Now.Sub(g.normalSince) < g.cfg.SafetyResumeDuration {
		return
	}
	old := g.state
	g.state = g.saved
	// Shift the subphase clock past the suspension so hold timeouts do not
	// count suspended time.
	g.subphaseStart = in.Now.Add(-g.savedElapsed)
	g.saved = State{}
	g.sawNormal = false
	g.emit(old, g.state, ReasonSafety, in.Now)
}

// stepActive applies at most one transition and reports whether one fired.
func (g *Manager) stepActive(in StepInput) bool {
	phase := &g.mission.Phases[g.state.Phase]
	sub, err := g.mission.Subphase(g.state.Phase, g.state.Sub)
	if err != nil {
		monitoring.Logf("phase manager: %v", err)
		return false
	}

	switch sub.Kind {
	case mission.SubphaseRamp:
		diff := in.CommandedDepth - phase.TargetDepth
		if diff < 0 {
			diff = -diff
		}
		if diff <= g.cfg.DepthTolerance {
			monitoring.Logf("phase %s: ramp complete at %.2fm, holding", phase.ID, in.CommandedDepth)
			return g.advance(in, "")
		}
	case mission.SubphaseHold:
		if in.PositionConfirmed {
			return g.advance(in, ReasonPositionConfirmed)
		}
		if in.Now.Sub(g.subphaseStart) >= g.cfg.HoldTimeout {
			monitoring.Logf("phase %s: hold timed out after %s without position confirmation",
				phase.ID, g.cfg.HoldTimeout)
			return g.advance(in, ReasonTimeout)
		}
	case mission.SubphaseTransition:
		if in.Now.Sub(g.subphaseStart) >= g.cfg.BlendWindow {
			monitoring.Logf("phase %s: blend window elapsed, next phase", phase.ID)
			return g.advance(in, "")
		}
	}
	return false
}

// advance moves to the next (phase, subphase) pair, or to MISSION_COMPLETE
// past the last one. reason is empty for the unlogged intra-phase moves.
func (g *Manager) advance(in StepInput, reason TransitionReason) bool {
	old := g.state
	next := g.state
	next.Sub++
	if next.Sub >= len(g.mission.Phases[next.Phase].Subphases) {
		next.Phase++
		next.Sub = 0
	}
	if next.Phase >= len(g.mission.Phases) {
		g.state = State{Kind: StateMissionComplete}
		g.subphaseStart = in.Now
		g.emit(old, g.state, ReasonComplete, in.Now)
		return true
	}
	g.state = next
	g.subphaseStart = in.Now
	if reason != "" {
		g.emit(old, g.state, reason, in.Now)
	}
	return true
}

func (g *Manager) totalSubphases() int {
	n := 0
	for _, p := range g.mission.Phases {
		n += len(p.Subphases)
	}
	return n
}

func (g *Manager) emit(old, next State, reason TransitionReason, at time.Time) {
	if g.onChange == nil {
		return
	}
	g.onChange(PhaseChange{
		EventID:  uuid.NewString(),
		OldState: old,
		NewState: next,
		Reason:   reason,
		At:       at,
	})
}
