package recall

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/unkarelian/openvault/internal/model"
)

type fakeSessions map[string]*model.Session

func (f fakeSessions) Session(_ context.Context, id string) (*model.Session, error) {
	s, ok := f[id]
	if !ok {
		return nil, ErrNoSession
	}
	return s, nil
}

type fakeStores map[string]*model.Store

func (f fakeStores) LoadScene(_ context.Context, id string) (*model.Store, error) {
	s, ok := f[id]
	if !ok {
		return nil, ErrStoreUnavailable
	}
	return s, nil
}

type fixedPOV model.POVContext

func (p fixedPOV) Resolve(context.Context, *model.Session, *model.Store) (model.POVContext, error) {
	return model.POVContext(p), nil
}

// passthrough returns candidates unchanged.
var passthrough = ScorerFunc(func(_ context.Context, req SelectRequest) ([]model.Memory, error) {
	return req.Candidates, nil
})

type recordingFormatter struct {
	mu   sync.Mutex
	reqs []FormatRequest
	err  error
}

func (f *recordingFormatter) Format(_ context.Context, req FormatRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return "", f.err
	}
	if len(req.Memories) == 0 {
		return "", nil
	}
	text := "[" + req.Header + "]"
	for _, m := range req.Memories {
		text += "\n- " + m.Summary
	}
	return text, nil
}

type recordingSink struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (s *recordingSink) SetPrompt(_ context.Context, _ string, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, text)
	return s.err
}

func (s *recordingSink) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

type recordingNotifier struct {
	msgs []string
}

func (n *recordingNotifier) Notify(_ context.Context, _ string, msg string) {
	n.msgs = append(n.msgs, msg)
}

// levelRecorder is a slog handler that keeps the records it sees.
type levelRecorder struct {
	mu      sync.Mutex
	records []slog.Record
}

func (h *levelRecorder) Enabled(context.Context, slog.Level) bool { return true }

func (h *levelRecorder) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, r)
	return nil
}

func (h *levelRecorder) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *levelRecorder) WithGroup(string) slog.Handler      { return h }

func (h *levelRecorder) count(level slog.Level) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, r := range h.records {
		if r.Level == level {
			n++
		}
	}
	return n
}

func (h *levelRecorder) messages(level slog.Level) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []string
	for _, r := range h.records {
		if r.Level == level {
			out = append(out, r.Message)
		}
	}
	return out
}

var errBoom = errors.New("boom")

func chatOf(n int) []model.Message {
	chat := make([]model.Message, n)
	for i := range chat {
		speaker := "User"
		if i%2 == 1 {
			speaker = "Alice"
		}
		chat[i] = model.Message{Index: i, Speaker: speaker, Text: "line"}
	}
	return chat
}

func storeWith(memories []model.Memory, chars ...model.CharacterState) *model.Store {
	s := model.NewStore()
	s.Memories = memories
	for _, c := range chars {
		s.SetCharacter(c)
	}
	return s
}
