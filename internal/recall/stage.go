package recall

import (
	"fmt"

	"github.com/unkarelian/openvault/internal/model"
)

// FallbackPolicy controls what an exclusion stage reverts to when it would
// leave no candidates.
type FallbackPolicy string

const (
	// FallbackPriorStage reverts an over-filtering stage to its own input.
	FallbackPriorStage FallbackPolicy = "stage"
	// FallbackRawMemories reverts over-filtering exclusion to every stored
	// memory, bypassing visibility.
	FallbackRawMemories FallbackPolicy = "raw"
)

// ParseFallbackPolicy validates a policy name. Empty selects FallbackPriorStage.
func ParseFallbackPolicy(s string) (FallbackPolicy, error) {
	switch FallbackPolicy(s) {
	case "", FallbackPriorStage:
		return FallbackPriorStage, nil
	case FallbackRawMemories:
		return FallbackRawMemories, nil
	}
	return "", fmt.Errorf("invalid fallback policy %q (valid: stage, raw)", s)
}

// Stage names.
const (
	StageVisibility = "visibility"
	StageRecency    = "recency"
	StageBatch      = "batch"
	StageExclusion  = "recency+batch"
)

// Stage is a named filter over candidate memories.
type Stage struct {
	Name  string
	Apply func([]model.Memory) []model.Memory
	// Fallback, when set, replaces the stage input as the revert target.
	Fallback func() []model.Memory
}

// StageReport records what a stage did.
type StageReport struct {
	Name     string `json:"name"`
	In       int    `json:"in"`
	Out      int    `json:"out"`
	Fired    bool   `json:"fired"`
	Reverted bool   `json:"reverted,omitempty"`
	Raw      bool   `json:"raw,omitempty"`
}

// RunStages applies stages in order. A stage that empties a non-empty input
// is reverted: its output becomes its input, or its Fallback when set.
func RunStages(input []model.Memory, stages ...Stage) ([]model.Memory, []StageReport) {
	current := input
	reports := make([]StageReport, 0, len(stages))
	for _, st := range stages {
		out := st.Apply(current)
		r := StageReport{Name: st.Name, In: len(current), Out: len(out), Fired: len(out) < len(current)}
		if len(out) == 0 && len(current) > 0 {
			r.Reverted = true
			out = current
			if st.Fallback != nil {
				out = st.Fallback()
				r.Raw = true
			}
			r.Out = len(out)
		}
		reports = append(reports, r)
		current = out
	}
	return current, reports
}

// VisibilityStage filters by POV access.
func VisibilityStage(pov []string, store *model.Store) Stage {
	return Stage{
		Name:  StageVisibility,
		Apply: func(ms []model.Memory) []model.Memory { return Accessible(ms, pov, store) },
	}
}

// RecencyStage drops memories fully covered by the recent window.
func RecencyStage(chat []model.Message, window int) Stage {
	recent := RecentMessageIDs(chat, window)
	return Stage{
		Name:  StageRecency,
		Apply: func(ms []model.Memory) []model.Memory { return ExcludeRecent(ms, recent) },
	}
}

// BatchStage drops memories from the last extraction batch.
func BatchStage(lastBatchID string) Stage {
	return Stage{
		Name:  StageBatch,
		Apply: func(ms []model.Memory) []model.Memory { return ExcludeBatch(ms, lastBatchID) },
	}
}

// ExclusionStages builds the update-path exclusion stages for a policy.
// Under FallbackRawMemories recency and batch run as one stage whose revert
// target is the full raw memory set.
func ExclusionStages(policy FallbackPolicy, chat []model.Message, window int, store *model.Store) []Stage {
	recency := RecencyStage(chat, window)
	batch := BatchStage(store.LastBatchID)
	if policy != FallbackRawMemories {
		return []Stage{recency, batch}
	}
	return []Stage{{
		Name:     StageExclusion,
		Apply:    func(ms []model.Memory) []model.Memory { return batch.Apply(recency.Apply(ms)) },
		Fallback: func() []model.Memory { return store.Memories },
	}}
}
