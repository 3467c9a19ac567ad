package recall

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/unkarelian/openvault/internal/model"
)

func TestIsAccessible(t *testing.T) {
	known := map[string]struct{}{"k1": {}}
	pov := model.NewNameSet("Alice")

	tests := []struct {
		name string
		mem  model.Memory
		want bool
	}{
		{"witness", model.Memory{ID: "m", Witnesses: []string{"Alice"}}, true},
		{"witness case-insensitive", model.Memory{ID: "m", Witnesses: []string{"alice"}}, true},
		{"secret witness", model.Memory{ID: "m", Witnesses: []string{"ALICE"}, IsSecret: true}, true},
		{"involved", model.Memory{ID: "m", CharactersInvolved: []string{"Alice"}}, true},
		{"secret involved only", model.Memory{ID: "m", CharactersInvolved: []string{"Alice"}, IsSecret: true}, false},
		{"known event", model.Memory{ID: "k1"}, true},
		{"secret known event", model.Memory{ID: "k1", IsSecret: true, CharactersInvolved: []string{"Bob"}}, true},
		{"unrelated", model.Memory{ID: "m", Witnesses: []string{"Bob"}, CharactersInvolved: []string{"Carol"}}, false},
		{"empty containers", model.Memory{ID: "m"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsAccessible(tt.mem, pov, known))
		})
	}
}

func TestAccessibleUnionOfPOVKnowledge(t *testing.T) {
	store := storeWith(nil,
		model.CharacterState{Name: "Alice", KnownEvents: []string{"a"}},
		model.CharacterState{Name: "bob", KnownEvents: []string{"b"}},
	)
	memories := []model.Memory{
		{ID: "c", Witnesses: []string{"Carol"}},
		{ID: "b", IsSecret: true},
		{ID: "a", IsSecret: true},
	}

	got := Accessible(memories, []string{"Alice", "Bob"}, store)
	assert.Equal(t, []string{"b", "a"}, model.IDs(got), "order follows input")
}

func TestAccessibleNilStore(t *testing.T) {
	memories := []model.Memory{{ID: "x", Witnesses: []string{"Alice"}}}
	got := Accessible(memories, []string{"alice"}, nil)
	assert.Len(t, got, 1)
}
