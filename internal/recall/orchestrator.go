package recall

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/unkarelian/openvault/internal/model"
)

// SceneHeader labels injected memories in narrator mode.
const SceneHeader = "Scene"

// Settings are the options consulted on every call.
type Settings struct {
	Enabled                 bool
	AutomaticMode           bool
	MaxMemoriesPerRetrieval int
	TokenBudget             int
	RecentWindow            int
	Fallback                FallbackPolicy
}

// DefaultSettings returns enabled settings with default caps.
func DefaultSettings() Settings {
	return Settings{
		Enabled:                 true,
		AutomaticMode:           true,
		MaxMemoriesPerRetrieval: 10,
		TokenBudget:             1000,
		RecentWindow:            DefaultRecentWindow,
		Fallback:                FallbackPriorStage,
	}
}

// Deps are the collaborators of an Orchestrator. Sessions, Stores, POV,
// Selector, Formatter and Sink are required.
type Deps struct {
	Sessions  SessionAccessor
	Stores    StoreAccessor
	POV       POVResolver
	Active    ActiveCharacters
	Selector  Selector
	Relations RelationshipSummarizer
	Formatter Formatter
	Sink      Sink
	Status    StatusObserver
	Notifier  Notifier
	Logger    *slog.Logger
}

// Result is a successful on-demand retrieval.
type Result struct {
	SessionID string           `json:"session_id"`
	Memories  []model.Memory   `json:"memories"`
	Text      string           `json:"text"`
	Header    string           `json:"header"`
	Primary   string           `json:"primary"`
	POV       model.POVContext `json:"pov"`
	Stages    []StageReport    `json:"stages"`

	store  *model.Store
	active []string
}

// Outcome describes what an automatic update did.
type Outcome struct {
	Injected bool   `json:"injected"`
	Count    int    `json:"count"`
	Text     string `json:"text,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// Orchestrator runs retrieval for sessions.
type Orchestrator struct {
	d      Deps
	log    *slog.Logger
	flight singleflight.Group
}

// New returns an Orchestrator. Optional dependencies default to no-ops.
func New(d Deps) (*Orchestrator, error) {
	switch {
	case d.Sessions == nil:
		return nil, errors.New("recall: session accessor is required")
	case d.Stores == nil:
		return nil, errors.New("recall: store accessor is required")
	case d.POV == nil:
		return nil, errors.New("recall: pov resolver is required")
	case d.Selector == nil:
		return nil, errors.New("recall: selector is required")
	case d.Formatter == nil:
		return nil, errors.New("recall: formatter is required")
	case d.Sink == nil:
		return nil, errors.New("recall: sink is required")
	}
	if d.Active == nil {
		d.Active = noActive{}
	}
	if d.Relations == nil {
		d.Relations = noRelations{}
	}
	if d.Status == nil {
		d.Status = nopStatus{}
	}
	if d.Notifier == nil {
		d.Notifier = nopNotifier{}
	}
	return &Orchestrator{d: d, log: orDiscard(d.Logger)}, nil
}

type mode int

const (
	onDemand mode = iota
	automatic
)

func (m mode) String() string {
	if m == automatic {
		return "update"
	}
	return "retrieve"
}

// Retrieve runs an on-demand retrieval. It returns nil when nothing was
// injected, including when formatting or injection failed.
func (o *Orchestrator) Retrieve(ctx context.Context, sessionID string, s Settings) *Result {
	if !s.Enabled {
		o.log.Debug("retrieval skipped", "session", sessionID, "reason", ReasonDisabled)
		return nil
	}
	o.d.Status.SetStatus(sessionID, StatusRetrieving)

	res, reason := o.collect(ctx, sessionID, s, onDemand, "")
	if res == nil {
		o.log.Debug("retrieval skipped", "session", sessionID, "reason", reason)
		o.d.Status.SetStatus(sessionID, StatusReady)
		return nil
	}

	ok, reason := o.deliver(ctx, res, s)
	if !ok {
		o.log.Debug("retrieval produced no injection", "session", sessionID, "reason", reason)
		return nil
	}
	o.d.Notifier.Notify(ctx, sessionID, fmt.Sprintf("Retrieved %d memories for %s", len(res.Memories), res.Header))
	return res
}

// Update refreshes the injected memories before a generation. Any
// short-circuit clears the prior injection. pending is an uncommitted user
// utterance considered during relevance scoring. Concurrent updates for the
// same session share one run.
func (o *Orchestrator) Update(ctx context.Context, sessionID string, s Settings, pending string) Outcome {
	v, _, _ := o.flight.Do(sessionID, func() (interface{}, error) {
		return o.update(ctx, sessionID, s, pending), nil
	})
	return v.(Outcome)
}

func (o *Orchestrator) update(ctx context.Context, sessionID string, s Settings, pending string) Outcome {
	switch {
	case !s.Enabled:
		return o.skip(ctx, sessionID, ReasonDisabled)
	case !s.AutomaticMode:
		return o.skip(ctx, sessionID, ReasonAutomaticOff)
	}
	o.d.Status.SetStatus(sessionID, StatusRetrieving)

	res, reason := o.collect(ctx, sessionID, s, automatic, pending)
	if res == nil {
		out := o.skip(ctx, sessionID, reason)
		o.d.Status.SetStatus(sessionID, StatusReady)
		return out
	}

	ok, reason := o.deliver(ctx, res, s)
	if !ok {
		o.clear(ctx, sessionID)
		return Outcome{Reason: reason}
	}
	return Outcome{Injected: true, Count: len(res.Memories), Text: res.Text}
}

func (o *Orchestrator) skip(ctx context.Context, sessionID, reason string) Outcome {
	o.log.Debug("update skipped", "session", sessionID, "reason", reason)
	o.clear(ctx, sessionID)
	return Outcome{Reason: reason}
}

func (o *Orchestrator) clear(ctx context.Context, sessionID string) {
	if err := o.d.Sink.SetPrompt(ctx, sessionID, ""); err != nil {
		o.log.Warn("clear injection failed", "session", sessionID, "error", err)
	}
}

// collect runs every step up to and including relevance selection. It
// returns nil and a reason on any short-circuit.
func (o *Orchestrator) collect(ctx context.Context, sessionID string, s Settings, m mode, pending string) (*Result, string) {
	sess, err := o.d.Sessions.Session(ctx, sessionID)
	if err != nil || sess == nil || len(sess.Chat) == 0 {
		if err != nil && !errors.Is(err, ErrNoSession) {
			o.log.Warn("load session failed", "session", sessionID, "error", err)
		}
		return nil, ReasonNoChat
	}

	store, err := o.d.Stores.LoadScene(ctx, sessionID)
	if err != nil || store == nil {
		if err != nil && !errors.Is(err, ErrStoreUnavailable) {
			o.log.Warn("load store failed", "session", sessionID, "error", err)
		}
		return nil, ReasonNoStore
	}
	if len(store.Memories) == 0 {
		return nil, ReasonNoMemories
	}

	pov, err := o.d.POV.Resolve(ctx, sess, store)
	if err != nil || len(pov.Characters) == 0 {
		o.log.Debug("pov unresolved", "session", sessionID, "error", err)
		return nil, ReasonNoPOV
	}

	window := s.RecentWindow
	if window <= 0 {
		window = DefaultRecentWindow
	}
	stages := []Stage{VisibilityStage(pov.Characters, store)}
	if m == automatic {
		stages = append(stages, ExclusionStages(s.Fallback, sess.Chat, window, store)...)
	}
	candidates, reports := RunStages(store.Memories, stages...)
	o.logReports(sessionID, m, reports)
	if len(candidates) == 0 {
		return nil, ReasonNoCandidates
	}

	primary, header := pov.Primary(), pov.Primary()
	if !pov.GroupChat {
		header = SceneHeader
		if sess.SecondaryParticipant != "" {
			primary = sess.SecondaryParticipant
		}
	}

	active := o.d.Active.Active(ctx, sess)
	selected := o.d.Selector.Select(ctx, SelectRequest{
		Candidates: candidates,
		RecentText: RecentText(sess, window, pending),
		Primary:    primary,
		Active:     active,
		MaxCount:   s.MaxMemoriesPerRetrieval,
	})
	if len(selected) == 0 {
		return nil, ReasonNothingRelevant
	}

	return &Result{
		SessionID: sessionID,
		Memories:  InStoreOrder(selected, store.Memories),
		Header:    header,
		Primary:   primary,
		POV:       pov,
		Stages:    reports,
		store:     store,
		active:    active,
	}, ""
}

func (o *Orchestrator) logReports(sessionID string, m mode, reports []StageReport) {
	for _, r := range reports {
		switch {
		case r.Raw:
			o.log.Warn("raw-memory fallback: exclusion removed every candidate, using all memories",
				"session", sessionID, "path", m.String(), "stage", r.Name, "in", r.In, "out", r.Out)
		case r.Reverted:
			o.log.Warn("stage removed every candidate, reverting to its input",
				"session", sessionID, "path", m.String(), "stage", r.Name, "in", r.In)
		case r.Fired:
			o.log.Debug("stage filtered candidates", "session", sessionID, "stage", r.Name, "in", r.In, "out", r.Out)
		}
	}
}

// deliver formats and injects a result. Failures, including panics, are
// logged and reported as StatusError.
func (o *Orchestrator) deliver(ctx context.Context, res *Result, s Settings) (ok bool, reason string) {
	defer func() {
		if r := recover(); r != nil {
			o.log.Error("format or inject panicked", "session", res.SessionID, "panic", fmt.Sprint(r))
			o.d.Status.SetStatus(res.SessionID, StatusError)
			ok, reason = false, ReasonFailed
		}
	}()

	store := res.store
	relations, err := o.d.Relations.Summarize(ctx, store, res.Primary, res.active)
	if err != nil {
		o.log.Warn("relationship summary failed", "session", res.SessionID, "error", err)
		relations = RelationshipContext{Primary: res.Primary}
	}
	var emotion Emotion
	if c, found := store.Character(res.Primary); found {
		emotion = Emotion{Label: c.Emotion(), FromMessages: c.EmotionFromMessages}
	} else {
		emotion = Emotion{Label: model.DefaultEmotion}
	}

	text, err := o.d.Formatter.Format(ctx, FormatRequest{
		Memories:    res.Memories,
		Relations:   relations,
		Emotion:     emotion,
		Header:      res.Header,
		TokenBudget: s.TokenBudget,
	})
	if err != nil {
		o.log.Error("format memories failed", "session", res.SessionID, "error", err)
		o.d.Status.SetStatus(res.SessionID, StatusError)
		return false, ReasonFailed
	}
	if text == "" {
		o.d.Status.SetStatus(res.SessionID, StatusReady)
		return false, ReasonNothingFormatted
	}

	if err := o.d.Sink.SetPrompt(ctx, res.SessionID, text); err != nil {
		o.log.Error("inject memories failed", "session", res.SessionID, "error", err)
		o.d.Status.SetStatus(res.SessionID, StatusError)
		return false, ReasonFailed
	}
	res.Text = text
	o.d.Status.SetStatus(res.SessionID, StatusReady)
	o.log.Info("memories injected", "session", res.SessionID, "count", len(res.Memories), "header", res.Header)
	return true, ""
}

// RecentText renders the last window visible messages as "Speaker: text"
// lines, followed by the pending utterance when present.
func RecentText(sess *model.Session, window int, pending string) string {
	var b strings.Builder
	for _, msg := range RecentMessages(sess.Chat, window) {
		writeLine(&b, msg.Speaker, msg.Text)
	}
	if p := strings.TrimSpace(pending); p != "" {
		writeLine(&b, sess.PrimaryUser, p)
	}
	return b.String()
}

func writeLine(b *strings.Builder, speaker, text string) {
	if b.Len() > 0 {
		b.WriteByte('\n')
	}
	if speaker != "" {
		b.WriteString(speaker)
		b.WriteString(": ")
	}
	b.WriteString(text)
}
