package mission

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/fs19062005-design/VIrtual-Slope/internal/geo"
	"github.com/fs19062005-design/VIrtual-Slope/internal/monitoring"
)

// depthContinuityTolerance is the largest allowed gap between one line's end
// depth and the next line's start depth within a phase group.
const depthContinuityTolerance = 0.01

// legParams mirrors one survey line entry in the VS params YAML file.
type legParams struct {
	StartLat float64 `yaml:"START_LAT"`
	StartLon float64 `yaml:"START_LON"`
	StartZ   float64 `yaml:"START_Z"`
	EndLat   float64 `yaml:"END_LAT"`
	EndLon   float64 `yaml:"END_LON"`
	EndZ     float64 `yaml:"END_Z"`
	Speed    float64 `yaml:"SPEED"`
}

// paramsFile mirrors the top level of the VS params YAML file.
type paramsFile struct {
	VSParams map[int]map[string]legParams `yaml:"VS_params"`
}

// FindParamsFile locates the single VS params file for the named mission in
// dir. Zero or multiple matches are errors.
func FindParamsFile(dir, missionName string) (string, error) {
	pattern := filepath.Join(dir, fmt.Sprintf("VS_params_*_%s.yaml", missionName))
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return "", fmt.Errorf("bad params pattern: %w", err)
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("no VS params file for mission %q (pattern %s)", missionName, pattern)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("multiple VS params files for mission %q: %v", missionName, matches)
	}
}

// LoadForMission finds and loads the params file for the named mission.
func LoadForMission(dir, missionName string) (*Mission, error) {
	path, err := FindParamsFile(dir, missionName)
	if err != nil {
		return nil, err
	}
	m, err := Load(path)
	if err != nil {
		return nil, err
	}
	m.Name = missionName
	return m, nil
}

// Load reads and validates a VS params file, deriving the ordered phase
// sequence. Any validation failure here is fatal to mission start; nothing
// malformed reaches the controller.
func Load(path string) (*Mission, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read params file: %w", err)
	}

	var file paramsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse params YAML: %w", err)
	}
	if len(file.VSParams) == 0 {
		return nil, fmt.Errorf("params file %s has no VS_params section", path)
	}

	groupIDs := make([]int, 0, len(file.VSParams))
	for id := range file.VSParams {
		groupIDs = append(groupIDs, id)
	}
	sort.Ints(groupIDs)

	m := &Mission{}
	for _, groupID := range groupIDs {
		group := file.VSParams[groupID]
		if len(group) == 0 {
			return nil, fmt.Errorf("phase %d has no subphases", groupID)
		}

		legIDs := make([]string, 0, len(group))
		for id := range group {
			legIDs = append(legIDs, id)
		}
		sort.Slice(legIDs, func(i, j int) bool {
			return legSortKeyLess(legIDs[i], legIDs[j])
		})

		var prev *legParams
		for _, legID := range legIDs {
			leg := group[legID]
			phase, err := buildPhase(legID, leg)
			if err != nil {
				return nil, fmt.Errorf("phase %d line %s: %w", groupID, legID, err)
			}
			if prev != nil && math.Abs(leg.StartZ-prev.EndZ) > depthContinuityTolerance {
				return nil, fmt.Errorf("phase %d line %s: depth profile discontinuous (previous line ends at %.2fm, this line starts at %.2fm)",
					groupID, legID, prev.EndZ, leg.StartZ)
			}
			m.Phases = append(m.Phases, phase)
			legCopy := leg
			prev = &legCopy
		}
	}

	// The terminal phase holds at its target; it has no transition out.
	for i := range m.Phases {
		last := i == len(m.Phases)-1
		m.Phases[i].Subphases = subphasesFor(m.Phases[i].ID, last)
	}

	monitoring.Logf("loaded %d phases from %s", len(m.Phases), path)
	return m, nil
}

// buildPhase derives one controller phase from a survey line definition.
func buildPhase(id string, leg legParams) (Phase, error) {
	if leg.Speed <= 0 {
		return Phase{}, fmt.Errorf("SPEED must be positive, got %v", leg.Speed)
	}
	if leg.StartZ < 0 || leg.EndZ < 0 {
		return Phase{}, fmt.Errorf("depths must be non-negative, got START_Z=%v END_Z=%v", leg.StartZ, leg.EndZ)
	}

	distance := geo.DistanceMeters(leg.StartLat, leg.StartLon, leg.EndLat, leg.EndLon)
	if distance <= 0 {
		return Phase{}, fmt.Errorf("line has zero length")
	}

	// Depth rate that reaches END_Z exactly at the end of the line when the
	// vehicle holds the planned speed.
	rate := math.Abs(leg.EndZ-leg.StartZ) * leg.Speed / distance

	direction := DirectionDown
	if leg.EndZ < leg.StartZ {
		direction = DirectionUp
	}
	if leg.EndZ != leg.StartZ && rate == 0 {
		return Phase{}, fmt.Errorf("derived slope rate is zero over %vm", distance)
	}

	return Phase{
		ID:          id,
		Direction:   direction,
		StartDepth:  leg.StartZ,
		TargetDepth: leg.EndZ,
		SlopeRate:   rate,
		LineStart: &Waypoint{
			Latitude:  leg.StartLat,
			Longitude: leg.StartLon,
			Depth:     leg.StartZ,
		},
		End: Waypoint{
			Latitude:  leg.EndLat,
			Longitude: leg.EndLon,
			Depth:     leg.EndZ,
		},
		HeadingDegrees: geo.HeadingDegrees(leg.StartLat, leg.StartLon, leg.EndLat, leg.EndLon),
		SpeedMps:       leg.Speed,
		DistanceMeters: distance,
	}, nil
}

// subphasesFor returns the subphase sequence for a phase. Every phase ramps
// then holds; all but the terminal phase end with a transition blend into
// the next phase.
func subphasesFor(phaseID string, terminal bool) []Subphase {
	subs := []Subphase{
		{ID: phaseID + "/ramp", Kind: SubphaseRamp},
		{ID: phaseID + "/hold", Kind: SubphaseHold},
	}
	if !terminal {
		subs = append(subs, Subphase{ID: phaseID + "/transition", Kind: SubphaseTransition})
	}
	return subs
}

// legSortKeyLess orders line IDs of the form "p-n" numerically.
func legSortKeyLess(a, b string) bool {
	pa, na := splitLegID(a)
	pb, nb := splitLegID(b)
	if pa != pb {
		return pa < pb
	}
	if na != nb {
		return na < nb
	}
	return a < b
}

func splitLegID(id string) (int, int) {
	parts := strings.SplitN(id, "-", 2)
	if len(parts) != 2 {
		monitoring.Logf("invalid line ID format: %s", id)
		return 0, 0
	}
	p, err1 := strconv.Atoi(parts[0])
	n, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		monitoring.Logf("invalid line ID format: %s", id)
		return 0, 0
	}
	return p, n
}
