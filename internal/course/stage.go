package course

import "fmt"

// Stage is how far generation has progressed. Stages only move forward.
type Stage int

const (
	StageDrafted Stage = iota
	StageObjectiveSet
	StageOutcomeSet
	StageIndexSet
	StageContentPopulated
	StageQuizzed
	StageCompleted
)

var stageNames = []string{
	"drafted",
	"objective_set",
	"outcome_set",
	"index_set",
	"content_populated",
	"quizzed",
	"completed",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "unknown"
	}
	return stageNames[s]
}

// MarshalText encodes the stage by name in JSON.
func (s Stage) MarshalText() ([]byte, error) {
	if s < 0 || int(s) >= len(stageNames) {
		return nil, fmt.Errorf("invalid stage %d", int(s))
	}
	return []byte(stageNames[s]), nil
}

func (s *Stage) UnmarshalText(b []byte) error {
	for i, name := range stageNames {
		if name == string(b) {
			*s = Stage(i)
			return nil
		}
	}
	return fmt.Errorf("unknown stage %q", string(b))
}
