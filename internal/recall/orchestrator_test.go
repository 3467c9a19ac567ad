package recall

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unkarelian/openvault/internal/model"
)

const sid = "s1"

type harness struct {
	orch   *Orchestrator
	sink   *recordingSink
	format *recordingFormatter
	status *StatusTracker
	notes  *recordingNotifier
	logs   *levelRecorder
	ranked atomic.Int32
	last   SelectRequest
}

func newHarness(t *testing.T, sess *model.Session, store *model.Store, pov model.POVContext, scorer Scorer) *harness {
	t.Helper()
	h := &harness{
		sink:   &recordingSink{},
		format: &recordingFormatter{},
		status: NewStatusTracker(),
		notes:  &recordingNotifier{},
		logs:   &levelRecorder{},
	}
	if scorer == nil {
		scorer = passthrough
	}
	counting := ScorerFunc(func(ctx context.Context, req SelectRequest) ([]model.Memory, error) {
		h.ranked.Add(1)
		h.last = req
		return scorer.Rank(ctx, req)
	})
	logger := slog.New(h.logs)

	sessions := fakeSessions{}
	if sess != nil {
		sessions[sid] = sess
	}
	stores := fakeStores{}
	if store != nil {
		stores[sid] = store
	}

	orch, err := New(Deps{
		Sessions:  sessions,
		Stores:    stores,
		POV:       fixedPOV(pov),
		Selector:  NewBounded(counting, logger),
		Formatter: h.format,
		Sink:      h.sink,
		Status:    h.status,
		Notifier:  h.notes,
		Logger:    logger,
	})
	require.NoError(t, err)
	h.orch = orch
	return h
}

func groupScene() (*model.Session, *model.Store) {
	sess := &model.Session{ID: sid, PrimaryUser: "User", SecondaryParticipant: "Alice", GroupChat: true, Chat: chatOf(4)}
	store := storeWith([]model.Memory{
		{ID: "m1", Summary: "Alice saw the fire", Witnesses: []string{"Alice"}},
		{ID: "m2", Summary: "Bob hid the key", IsSecret: true, CharactersInvolved: []string{"Bob"}},
		{ID: "m3", Summary: "Carol told Alice a secret", IsSecret: true},
	}, model.CharacterState{Name: "Alice", KnownEvents: []string{"m3"}, CurrentEmotion: "wary"})
	return sess, store
}

func TestRetrieveGroupChat(t *testing.T) {
	sess, store := groupScene()
	h := newHarness(t, sess, store, model.POVContext{Characters: []string{"Alice"}, GroupChat: true}, nil)

	res := h.orch.Retrieve(context.Background(), sid, DefaultSettings())
	require.NotNil(t, res)
	assert.Equal(t, []string{"m1", "m3"}, model.IDs(res.Memories))
	assert.NotEmpty(t, res.Text)
	assert.Equal(t, "Alice", res.Header)
	assert.Equal(t, "Alice", res.Primary)
	assert.Equal(t, []string{res.Text}, h.sink.Calls())
	assert.Equal(t, []string{"Retrieved 2 memories for Alice"}, h.notes.msgs)
	assert.Equal(t, StatusReady, h.status.Status(sid))

	require.Len(t, h.format.reqs, 1)
	assert.Equal(t, "wary", h.format.reqs[0].Emotion.Label)
	assert.Equal(t, 1000, h.format.reqs[0].TokenBudget)
}

func TestRetrieveDisabled(t *testing.T) {
	sess, store := groupScene()
	h := newHarness(t, sess, store, model.POVContext{Characters: []string{"Alice"}, GroupChat: true}, nil)

	s := DefaultSettings()
	s.Enabled = false
	assert.Nil(t, h.orch.Retrieve(context.Background(), sid, s))
	assert.Empty(t, h.sink.Calls())
	assert.Zero(t, h.ranked.Load())
}

func TestUpdateRecencyFallback(t *testing.T) {
	chat := chatOf(12)
	sess := &model.Session{ID: sid, PrimaryUser: "User", SecondaryParticipant: "Alice", GroupChat: true, Chat: chat}
	store := storeWith([]model.Memory{
		{ID: "m1", Summary: "a", Witnesses: []string{"Alice"}, MessageIDs: []int{9, 10}},
		{ID: "m2", Summary: "b", Witnesses: []string{"Alice"}, MessageIDs: []int{11}},
		{ID: "m3", Summary: "c", Witnesses: []string{"Bob"}, IsSecret: true, MessageIDs: []int{11}},
	})
	h := newHarness(t, sess, store, model.POVContext{Characters: []string{"Alice"}, GroupChat: true}, nil)

	out := h.orch.Update(context.Background(), sid, DefaultSettings(), "")
	assert.True(t, out.Injected)
	assert.Equal(t, 2, out.Count)
	assert.Equal(t, []string{"m1", "m2"}, model.IDs(h.last.Candidates), "accessible set restored")
	assert.Contains(t, h.logs.messages(slog.LevelWarn), "stage removed every candidate, reverting to its input")
	assert.Empty(t, h.notes.msgs, "updates never notify")
}

func TestUpdateRawFallbackPolicy(t *testing.T) {
	sess := &model.Session{ID: sid, SecondaryParticipant: "Alice", GroupChat: true, Chat: chatOf(12)}
	store := storeWith([]model.Memory{
		{ID: "m1", Witnesses: []string{"Alice"}, MessageIDs: []int{11}},
		{ID: "m2", Witnesses: []string{"Bob"}, IsSecret: true},
	})
	h := newHarness(t, sess, store, model.POVContext{Characters: []string{"Alice"}, GroupChat: true}, nil)

	s := DefaultSettings()
	s.Fallback = FallbackRawMemories
	out := h.orch.Update(context.Background(), sid, s, "")
	assert.True(t, out.Injected)
	assert.Equal(t, []string{"m1", "m2"}, model.IDs(h.last.Candidates))
	assert.Contains(t, h.logs.messages(slog.LevelWarn), "raw-memory fallback: exclusion removed every candidate, using all memories")
}

func TestUpdateExcludesLastBatch(t *testing.T) {
	sess := &model.Session{ID: sid, SecondaryParticipant: "Alice", GroupChat: true, Chat: chatOf(3)}
	store := storeWith([]model.Memory{
		{ID: "old", Witnesses: []string{"Alice"}, BatchID: "b1"},
		{ID: "new", Witnesses: []string{"Alice"}, BatchID: "b2"},
	})
	store.LastBatchID = "b2"
	h := newHarness(t, sess, store, model.POVContext{Characters: []string{"Alice"}, GroupChat: true}, nil)

	h.orch.Update(context.Background(), sid, DefaultSettings(), "")
	assert.Equal(t, []string{"old"}, model.IDs(h.last.Candidates))

	h.orch.Retrieve(context.Background(), sid, DefaultSettings())
	assert.Equal(t, []string{"old", "new"}, model.IDs(h.last.Candidates), "on-demand path skips exclusion")
}

func TestEmptySelection(t *testing.T) {
	sess, store := groupScene()
	empty := ScorerFunc(func(context.Context, SelectRequest) ([]model.Memory, error) { return nil, nil })
	h := newHarness(t, sess, store, model.POVContext{Characters: []string{"Alice"}, GroupChat: true}, empty)

	out := h.orch.Update(context.Background(), sid, DefaultSettings(), "")
	assert.False(t, out.Injected)
	assert.Equal(t, ReasonNothingRelevant, out.Reason)
	assert.Equal(t, []string{""}, h.sink.Calls())

	assert.Nil(t, h.orch.Retrieve(context.Background(), sid, DefaultSettings()))
	assert.Equal(t, []string{""}, h.sink.Calls(), "on-demand path does not clear")
	assert.Zero(t, h.logs.count(slog.LevelError))
}

func TestUpdateShortCircuitsClearInjection(t *testing.T) {
	sess, store := groupScene()
	pov := model.POVContext{Characters: []string{"Alice"}, GroupChat: true}

	tests := []struct {
		name   string
		sess   *model.Session
		store  *model.Store
		mutate func(*Settings)
		reason string
	}{
		{"disabled", sess, store, func(s *Settings) { s.Enabled = false }, ReasonDisabled},
		{"automatic off", sess, store, func(s *Settings) { s.AutomaticMode = false }, ReasonAutomaticOff},
		{"no session", nil, store, nil, ReasonNoChat},
		{"empty chat", &model.Session{ID: sid}, store, nil, ReasonNoChat},
		{"no store", sess, nil, nil, ReasonNoStore},
		{"no memories", sess, model.NewStore(), nil, ReasonNoMemories},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.sess, tt.store, pov, nil)
			s := DefaultSettings()
			if tt.mutate != nil {
				tt.mutate(&s)
			}
			out := h.orch.Update(context.Background(), sid, s, "")
			assert.Equal(t, tt.reason, out.Reason)
			assert.Equal(t, []string{""}, h.sink.Calls())
			assert.Zero(t, h.logs.count(slog.LevelError))
		})
	}
}

func TestUpdateNoPOV(t *testing.T) {
	sess, store := groupScene()
	h := newHarness(t, sess, store, model.POVContext{}, nil)

	out := h.orch.Update(context.Background(), sid, DefaultSettings(), "")
	assert.Equal(t, ReasonNoPOV, out.Reason)
	assert.Equal(t, []string{""}, h.sink.Calls())
}

func TestNarratorModeUsesSceneHeader(t *testing.T) {
	sess, store := groupScene()
	sess.GroupChat = false
	sess.SecondaryParticipant = "Narrator"
	store.SetCharacter(model.CharacterState{Name: "Narrator", CurrentEmotion: "amused",
		EmotionFromMessages: &model.MessageRange{From: 1, To: 3}})
	h := newHarness(t, sess, store, model.POVContext{Characters: []string{"Alice"}}, nil)

	res := h.orch.Retrieve(context.Background(), sid, DefaultSettings())
	require.NotNil(t, res)
	assert.Equal(t, SceneHeader, res.Header)
	assert.Equal(t, "Narrator", res.Primary)
	assert.Equal(t, "Narrator", h.last.Primary)
	assert.Equal(t, "amused", h.format.reqs[0].Emotion.Label)
	assert.Equal(t, &model.MessageRange{From: 1, To: 3}, h.format.reqs[0].Emotion.FromMessages)
}

func TestFormatFailureResolvesNil(t *testing.T) {
	sess, store := groupScene()
	h := newHarness(t, sess, store, model.POVContext{Characters: []string{"Alice"}, GroupChat: true}, nil)
	h.format.err = errBoom

	assert.Nil(t, h.orch.Retrieve(context.Background(), sid, DefaultSettings()))
	assert.Equal(t, StatusError, h.status.Status(sid))
	assert.Empty(t, h.sink.Calls())
	assert.Empty(t, h.notes.msgs)
}

func TestInjectFailureResolvesNil(t *testing.T) {
	sess, store := groupScene()
	h := newHarness(t, sess, store, model.POVContext{Characters: []string{"Alice"}, GroupChat: true}, nil)
	h.sink.err = errBoom

	assert.Nil(t, h.orch.Retrieve(context.Background(), sid, DefaultSettings()))
	assert.Equal(t, StatusError, h.status.Status(sid))
}

type panickingFormatter struct{}

func (panickingFormatter) Format(context.Context, FormatRequest) (string, error) {
	panic("formatter exploded")
}

func TestFormatterPanicIsCaught(t *testing.T) {
	sess, store := groupScene()
	h := newHarness(t, sess, store, model.POVContext{Characters: []string{"Alice"}, GroupChat: true}, nil)
	h.orch.d.Formatter = panickingFormatter{}

	assert.NotPanics(t, func() {
		assert.Nil(t, h.orch.Retrieve(context.Background(), sid, DefaultSettings()))
	})
	assert.Equal(t, StatusError, h.status.Status(sid))
}

func TestUpdatePendingUtteranceInRecentText(t *testing.T) {
	sess, store := groupScene()
	h := newHarness(t, sess, store, model.POVContext{Characters: []string{"Alice"}, GroupChat: true}, nil)

	h.orch.Update(context.Background(), sid, DefaultSettings(), "where is the key?")
	assert.Contains(t, h.last.RecentText, "Alice: line")
	assert.Contains(t, h.last.RecentText, "User: where is the key?")
}

func TestMaxMemoriesPassedToSelector(t *testing.T) {
	sess, store := groupScene()
	h := newHarness(t, sess, store, model.POVContext{Characters: []string{"Alice"}, GroupChat: true}, nil)

	s := DefaultSettings()
	s.MaxMemoriesPerRetrieval = 1
	res := h.orch.Retrieve(context.Background(), sid, s)
	require.NotNil(t, res)
	assert.Len(t, res.Memories, 1)
}

func TestUpdateSingleFlight(t *testing.T) {
	sess, store := groupScene()
	release := make(chan struct{})
	blocking := ScorerFunc(func(_ context.Context, req SelectRequest) ([]model.Memory, error) {
		<-release
		return req.Candidates, nil
	})
	h := newHarness(t, sess, store, model.POVContext{Characters: []string{"Alice"}, GroupChat: true}, blocking)

	const callers = 5
	var wg sync.WaitGroup
	outcomes := make([]Outcome, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i] = h.orch.Update(context.Background(), sid, DefaultSettings(), "")
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Less(t, int(h.ranked.Load()), callers)
	for _, out := range outcomes {
		assert.True(t, out.Injected)
	}
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Deps{})
	assert.Error(t, err)
}

func TestRecentText(t *testing.T) {
	sess := &model.Session{PrimaryUser: "Ann", Chat: []model.Message{
		{Index: 0, Speaker: "Ann", Text: "hello"},
		{Index: 1, Speaker: "System", Text: "note", IsSystem: true},
		{Index: 2, Speaker: "Bo", Text: "hi"},
	}}
	assert.Equal(t, "Ann: hello\nBo: hi", RecentText(sess, 10, ""))
	assert.Equal(t, "Bo: hi\nAnn: again", RecentText(sess, 1, " again "))
}

func TestSelectedMemoriesKeepStoreOrder(t *testing.T) {
	sess, store := groupScene()
	reversed := ScorerFunc(func(_ context.Context, req SelectRequest) ([]model.Memory, error) {
		out := make([]model.Memory, 0, len(req.Candidates))
		for i := len(req.Candidates) - 1; i >= 0; i-- {
			out = append(out, req.Candidates[i])
		}
		return out, nil
	})
	h := newHarness(t, sess, store, model.POVContext{Characters: []string{"Alice"}, GroupChat: true}, reversed)

	res := h.orch.Retrieve(context.Background(), sid, DefaultSettings())
	require.NotNil(t, res)
	assert.Equal(t, []string{"m1", "m3"}, model.IDs(res.Memories))
	require.Len(t, h.format.reqs, 1)
	assert.Equal(t, []string{"m1", "m3"}, model.IDs(h.format.reqs[0].Memories))
}

func TestUpdateFailureClearsPriorInjection(t *testing.T) {
	sess, store := groupScene()
	h := newHarness(t, sess, store, model.POVContext{Characters: []string{"Alice"}, GroupChat: true}, nil)

	first := h.orch.Update(context.Background(), sid, DefaultSettings(), "")
	require.True(t, first.Injected)
	assert.Equal(t, "[Alice]\n- Alice saw the fire\n- Carol told Alice a secret", first.Text)

	h.format.err = errBoom
	second := h.orch.Update(context.Background(), sid, DefaultSettings(), "")
	assert.False(t, second.Injected)
	assert.Equal(t, ReasonFailed, second.Reason)
	assert.Empty(t, second.Text)

	calls := h.sink.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "", calls[1], "stale block cleared")
	assert.Equal(t, StatusError, h.status.Status(sid))
}

func TestUpdateInjectFailureAttemptsClear(t *testing.T) {
	sess, store := groupScene()
	h := newHarness(t, sess, store, model.POVContext{Characters: []string{"Alice"}, GroupChat: true}, nil)
	h.sink.err = errBoom

	out := h.orch.Update(context.Background(), sid, DefaultSettings(), "")
	assert.Equal(t, ReasonFailed, out.Reason)
	calls := h.sink.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "", calls[1])
}
