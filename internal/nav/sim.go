package nav

import (
	"sync"
	"time"

	"github.com/fs19062005-design/VIrtual-Slope/internal/monitoring"
	"github.com/fs19062005-design/VIrtual-Slope/internal/timeutil"
)

// SimSource wraps another Source and replaces its altitude with a simulated
// value derived from an adjustable bottom depth:
//
//	altitude = bottom depth - vehicle depth
//
// It exists for bench testing the safety ladder against a moving seafloor
// without touching the rest of the pipeline.
type SimSource struct {
	inner Source
	clock timeutil.Clock

	mu          sync.Mutex
	bottomDepth float64
}

// NewSimSource creates a simulated-altitude source over inner with the given
// initial bottom depth in metres.
func NewSimSource(inner Source, bottomDepth float64, clock timeutil.Clock) *SimSource {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	monitoring.Logf("SIM MODE: simulated altitude source active, bottom depth %.2fm", bottomDepth)
	return &SimSource{inner: inner, clock: clock, bottomDepth: bottomDepth}
}

// SetBottomDepth adjusts the simulated seafloor depth.
func (s *SimSource) SetBottomDepth(d float64) {
	s.mu.Lock()
	s.bottomDepth = d
	s.mu.Unlock()
	monitoring.Logf("SIM MODE: bottom depth set to %.2fm", d)
}

// BottomDepth returns the current simulated seafloor depth.
func (s *SimSource) BottomDepth() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bottomDepth
}

// Snapshot returns the inner snapshot with Altitude replaced by the
// simulated value. When the vehicle depth is unknown the altitude is left
// nil, which the safety monitor treats as a sensor fault.
func (s *SimSource) Snapshot() (Snapshot, bool) {
	snap, ok := s.inner.Snapshot()
	if !ok {
		return snap, false
	}

	if snap.Data.Depth == nil {
		snap.Data.Altitude = nil
		return snap, true
	}

	s.mu.Lock()
	bottom := s.bottomDepth
	s.mu.Unlock()

	alt := bottom - *snap.Data.Depth
	snap.Data.Altitude = &alt
	return snap, true
}

// StaticSource is a Source returning a fixed snapshot, for tests.
type StaticSource struct {
	mu   sync.Mutex
	snap Snapshot
	ok   bool
}

// Set stores the snapshot returned by future calls to Snapshot.
func (s *StaticSource) Set(data NavigationData, at time.Time) {
	s.mu.Lock()
	s.snap = Snapshot{Data: data, At: at}
	s.ok = true
	s.mu.Unlock()
}

// Clear makes the source report no fix.
func (s *StaticSource) Clear() {
	s.mu.Lock()
	s.ok = false
	s.mu.Unlock()
}

// Snapshot returns the stored snapshot.
func (s *StaticSource) Snapshot() (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap, s.ok
}
