package recall

import (
	"context"

	"github.com/unkarelian/openvault/internal/model"
)

// SessionAccessor supplies the chat log and participants of a session.
// It returns ErrNoSession when the session does not exist.
type SessionAccessor interface {
	Session(ctx context.Context, id string) (*model.Session, error)
}

// StoreAccessor supplies the memory store of a session. It returns
// ErrStoreUnavailable when there is none.
type StoreAccessor interface {
	LoadScene(ctx context.Context, sessionID string) (*model.Store, error)
}

// POVResolver derives the viewpoint characters of the current scene.
type POVResolver interface {
	Resolve(ctx context.Context, sess *model.Session, store *model.Store) (model.POVContext, error)
}

// ActiveCharacters lists the characters currently in the scene.
type ActiveCharacters interface {
	Active(ctx context.Context, sess *model.Session) []string
}

// CharacterEmotion is the current emotion of one character.
type CharacterEmotion struct {
	Name    string `json:"name"`
	Emotion string `json:"emotion"`
}

// RelationshipContext is the relationship summary handed to the formatter.
type RelationshipContext struct {
	Primary   string               `json:"primary"`
	Relations []model.Relationship `json:"relations,omitempty"`
	Emotions  []CharacterEmotion   `json:"emotions,omitempty"`
}

// RelationshipSummarizer summarizes how the primary character relates to the
// active characters.
type RelationshipSummarizer interface {
	Summarize(ctx context.Context, store *model.Store, primary string, active []string) (RelationshipContext, error)
}

// Emotion is the primary character's current emotion and its provenance.
type Emotion struct {
	Label        string              `json:"label"`
	FromMessages *model.MessageRange `json:"from_messages,omitempty"`
}

// FormatRequest is the input to a Formatter.
type FormatRequest struct {
	Memories    []model.Memory
	Relations   RelationshipContext
	Emotion     Emotion
	Header      string
	TokenBudget int
}

// Formatter packs selected memories into a budgeted text block. Empty text
// means nothing fit.
type Formatter interface {
	Format(ctx context.Context, req FormatRequest) (string, error)
}

// Sink receives injected text. Empty text clears a prior injection.
type Sink interface {
	SetPrompt(ctx context.Context, sessionID, text string) error
}

// StatusObserver receives status transitions.
type StatusObserver interface {
	SetStatus(sessionID string, s Status)
}

// Notifier surfaces a user-visible message.
type Notifier interface {
	Notify(ctx context.Context, sessionID, msg string)
}

type nopStatus struct{}

func (nopStatus) SetStatus(string, Status) {}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, string, string) {}

type noActive struct{}

func (noActive) Active(context.Context, *model.Session) []string { return nil }

type noRelations struct{}

func (noRelations) Summarize(_ context.Context, _ *model.Store, primary string, _ []string) (RelationshipContext, error) {
	return RelationshipContext{Primary: primary}, nil
}
