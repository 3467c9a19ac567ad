package scene

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unkarelian/openvault/internal/model"
)

func TestResolveGroupChat(t *testing.T) {
	sess := &model.Session{
		PrimaryUser:  "User",
		GroupChat:    true,
		Participants: []string{"Alice", "user", "Bob", "alice"},
	}
	pov, err := Resolver{}.Resolve(context.Background(), sess, model.NewStore())
	require.NoError(t, err)
	assert.True(t, pov.GroupChat)
	assert.Equal(t, []string{"Alice", "Bob"}, pov.Characters)
	assert.Equal(t, "Alice", pov.Primary())
}

func TestResolveNarratorPresentCharacters(t *testing.T) {
	sess := &model.Session{
		PrimaryUser:          "User",
		SecondaryParticipant: "Narrator",
		Chat: []model.Message{
			{Index: 0, Speaker: "User", Text: "I enter the tavern"},
			{Index: 1, Speaker: "Narrator", Text: "Mira looks up"},
			{Index: 2, Speaker: "Mira", Text: "Welcome"},
		},
	}
	store := model.NewStore()
	store.Memories = []model.Memory{
		{ID: "a", Witnesses: []string{"Mira", "Tom"}, MessageIDs: []int{1}},
		{ID: "b", Witnesses: []string{"Old Sage"}, MessageIDs: []int{99}},
	}

	pov, err := Resolver{}.Resolve(context.Background(), sess, store)
	require.NoError(t, err)
	assert.False(t, pov.GroupChat)
	assert.Equal(t, []string{"Mira", "Tom"}, pov.Characters)
}

func TestResolveFallsBackToSecondary(t *testing.T) {
	sess := &model.Session{
		PrimaryUser:          "User",
		SecondaryParticipant: "Narrator",
		Chat:                 []model.Message{{Index: 0, Speaker: "User", Text: "hello"}},
	}
	pov, err := Resolver{}.Resolve(context.Background(), sess, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Narrator"}, pov.Characters)
}

func TestResolveNoPOV(t *testing.T) {
	_, err := Resolver{}.Resolve(context.Background(), &model.Session{GroupChat: true}, nil)
	assert.ErrorIs(t, err, ErrNoPOV)
}

func TestActive(t *testing.T) {
	sess := &model.Session{
		PrimaryUser:          "User",
		SecondaryParticipant: "Alice",
		Participants:         []string{"Alice", "Bob"},
		Chat: []model.Message{
			{Index: 0, Speaker: "Carol", Text: "hi"},
			{Index: 1, Speaker: "User", Text: "hey"},
			{Index: 2, Speaker: "System", Text: "saved", IsSystem: true},
		},
	}
	assert.Equal(t, []string{"Alice", "Bob", "Carol"}, Resolver{}.Active(context.Background(), sess))
}
