// Package store provides SQLite persistence for sessions, chat logs,
// memories and character state.
package store

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// CreateSessionParams holds parameters for creating a session.
type CreateSessionParams struct {
	ID                   string // generated when empty
	PrimaryUser          string
	SecondaryParticipant string
	GroupChat            bool
	Participants         []string
}

// SessionSummary is a session listing entry.
type SessionSummary struct {
	ID                   string    `json:"id"`
	PrimaryUser          string    `json:"primary_user"`
	SecondaryParticipant string    `json:"secondary_participant"`
	GroupChat            bool      `json:"group_chat"`
	Messages             int       `json:"messages"`
	Memories             int       `json:"memories"`
	CreatedAt            time.Time `json:"created_at"`
}

// AppendParams holds parameters for appending a chat message.
type AppendParams struct {
	SessionID string
	Speaker   string
	Text      string
	IsSystem  bool
}

// PutParams holds parameters for storing a memory.
type PutParams struct {
	SessionID          string
	Summary            string
	Witnesses          []string
	CharactersInvolved []string
	IsSecret           bool
	MessageIDs         []int
	BatchID            string
	Importance         int
}

// ListParams holds parameters for listing memories.
type ListParams struct {
	SessionID string
	Witness   string
	BatchID   string
	Limit     int
}

// RmParams holds parameters for deleting a memory.
type RmParams struct {
	ID   string
	Hard bool
}

// EmotionParams holds parameters for recording a character's emotion.
type EmotionParams struct {
	SessionID string
	Character string
	Emotion   string
	From, To  int // message range; ignored when both are zero
}

// RelateParams holds parameters for creating or removing a relationship.
type RelateParams struct {
	SessionID string
	From      string
	To        string
	Attitude  string
	Closeness *int // nil keeps the current value, or the default for new relationships
	Remove    bool
}
