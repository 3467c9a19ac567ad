package recall

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unkarelian/openvault/internal/model"
)

var dropAll = Stage{Name: "drop", Apply: func([]model.Memory) []model.Memory { return nil }}

func TestRunStagesRevertsEmptyingStage(t *testing.T) {
	input := []model.Memory{{ID: "a"}, {ID: "b"}}
	keepA := Stage{Name: "keep-a", Apply: func(ms []model.Memory) []model.Memory { return ms[:1] }}

	out, reports := RunStages(input, keepA, dropAll)
	assert.Equal(t, []string{"a"}, model.IDs(out))
	require.Len(t, reports, 2)
	assert.Equal(t, StageReport{Name: "keep-a", In: 2, Out: 1, Fired: true}, reports[0])
	assert.Equal(t, StageReport{Name: "drop", In: 1, Out: 1, Fired: true, Reverted: true}, reports[1])
}

func TestRunStagesEmptyInputNotReverted(t *testing.T) {
	out, reports := RunStages(nil, dropAll)
	assert.Empty(t, out)
	assert.False(t, reports[0].Reverted)
}

func TestVisibilityFallbackKeepsAllMemories(t *testing.T) {
	memories := []model.Memory{
		{ID: "a", Witnesses: []string{"Bob"}},
		{ID: "b", IsSecret: true, CharactersInvolved: []string{"Alice"}},
	}
	store := storeWith(memories)

	out, reports := RunStages(memories, VisibilityStage([]string{"Alice"}, store))
	assert.Equal(t, model.IDs(memories), model.IDs(out))
	assert.True(t, reports[0].Reverted)
}

func TestExclusionStagesPolicies(t *testing.T) {
	chat := chatOf(12)
	hidden := model.Memory{ID: "hidden", Witnesses: []string{"Bob"}, MessageIDs: []int{0}}
	fresh := model.Memory{ID: "fresh", Witnesses: []string{"Alice"}, MessageIDs: []int{10, 11}}
	store := storeWith([]model.Memory{hidden, fresh})
	accessible := []model.Memory{fresh}

	t.Run("stage", func(t *testing.T) {
		out, reports := RunStages(accessible, ExclusionStages(FallbackPriorStage, chat, 10, store)...)
		assert.Equal(t, []string{"fresh"}, model.IDs(out))
		require.Len(t, reports, 2)
		assert.True(t, reports[0].Reverted)
		assert.False(t, reports[0].Raw)
	})

	t.Run("raw", func(t *testing.T) {
		out, reports := RunStages(accessible, ExclusionStages(FallbackRawMemories, chat, 10, store)...)
		assert.Equal(t, []string{"hidden", "fresh"}, model.IDs(out))
		require.Len(t, reports, 1)
		assert.Equal(t, StageExclusion, reports[0].Name)
		assert.True(t, reports[0].Raw)
	})
}

func TestParseFallbackPolicy(t *testing.T) {
	p, err := ParseFallbackPolicy("")
	require.NoError(t, err)
	assert.Equal(t, FallbackPriorStage, p)

	p, err = ParseFallbackPolicy("raw")
	require.NoError(t, err)
	assert.Equal(t, FallbackRawMemories, p)

	_, err = ParseFallbackPolicy("loose")
	assert.Error(t, err)
}
