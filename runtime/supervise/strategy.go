package supervise

import (
	"github.com/agentwarden/warden/runtime/tools"
)

type (
	// Phase is the coarse-grained stage of a run. Phases only ever advance:
	// planning, gathering, then acting. The lattice is monotone: its only
	// purpose is to bias later tool selection toward action once enough
	// investigation has occurred, so there is no path backwards.
	Phase string

	// Strategy tracks which phase a run is in and per-category operation
	// counts. Process-local; transitions are driven exclusively by the
	// supervisor's per-call classification.
	Strategy struct {
		phase           Phase
		toolUsageCounts map[string]int

		searchOperations   int
		readOperations     int
		analysisOperations int
		actionOperations   int

		hasStartedActions bool
		shouldForceAction bool
	}
)

const (
	// PhasePlanning is the initial stage before any substantial work.
	PhasePlanning Phase = "planning"
	// PhaseGathering is reached once enough investigative calls accumulate.
	PhaseGathering Phase = "gathering"
	// PhaseActing is pinned by the first action-class call and is terminal.
	PhaseActing Phase = "acting"
)

// gatheringThreshold is the combined search+read+analysis call count at which
// a planning run advances to gathering.
const gatheringThreshold = 3

// NewStrategy returns a strategy in the planning phase.
func NewStrategy() *Strategy {
	return &Strategy{
		phase:           PhasePlanning,
		toolUsageCounts: make(map[string]int),
	}
}

// RecordTool updates counters and the phase for one classified call.
// Uncategorized tools count toward usage but advance nothing.
func (s *Strategy) RecordTool(name tools.Ident, category tools.Category) {
	s.toolUsageCounts[string(name)]++

	switch category {
	case tools.CategorySearch:
		s.searchOperations++
	case tools.CategoryRead:
		s.readOperations++
	case tools.CategoryAnalysis:
		s.analysisOperations++
	case tools.CategoryAction:
		s.actionOperations++
		s.hasStartedActions = true
		// Irreversible for the remainder of the run.
		s.phase = PhaseActing
		return
	default:
		return
	}

	if s.phase == PhasePlanning && s.investigations() >= gatheringThreshold {
		s.phase = PhaseGathering
	}
}

// Phase returns the current phase.
func (s *Strategy) Phase() Phase {
	return s.phase
}

// UsageCount returns how many times the tool has been invoked.
func (s *Strategy) UsageCount(name tools.Ident) int {
	return s.toolUsageCounts[string(name)]
}

// Counts returns the per-category operation counters in the order search,
// read, analysis, action.
func (s *Strategy) Counts() (search, read, analysis, action int) {
	return s.searchOperations, s.readOperations, s.analysisOperations, s.actionOperations
}

// HasStartedActions reports whether an action-class tool has run.
func (s *Strategy) HasStartedActions() bool {
	return s.hasStartedActions
}

// ForceAction marks that later planning should stop investigating and act.
// Exposed to callers; the supervisor never sets it on its own.
func (s *Strategy) ForceAction() {
	s.shouldForceAction = true
}

// ShouldForceAction reports whether action has been externally mandated.
func (s *Strategy) ShouldForceAction() bool {
	return s.shouldForceAction
}

func (s *Strategy) investigations() int {
	return s.searchOperations + s.readOperations + s.analysisOperations
}
