// Package model defines the core scene and memory data types.
package model

import "time"

const (
	// DefaultImportance is assigned to memories stored without an importance.
	DefaultImportance = 3
	MinImportance     = 1
	MaxImportance     = 5
)

// Memory is a fact extracted from the narrative.
//
// Container fields treat nil and empty the same way: a memory with no
// witnesses has no witnesses whether the slice is nil or zero-length.
type Memory struct {
	ID                 string    `json:"id" yaml:"id"`
	Summary            string    `json:"summary" yaml:"summary"`
	Witnesses          []string  `json:"witnesses,omitempty" yaml:"witnesses,omitempty"`
	CharactersInvolved []string  `json:"characters_involved,omitempty" yaml:"characters_involved,omitempty"`
	IsSecret           bool      `json:"is_secret,omitempty" yaml:"is_secret,omitempty"`
	MessageIDs         []int     `json:"message_ids,omitempty" yaml:"message_ids,omitempty"`
	BatchID            string    `json:"batch_id,omitempty" yaml:"batch_id,omitempty"`
	Importance         int       `json:"importance,omitempty" yaml:"importance,omitempty"`
	CreatedAt          time.Time `json:"created_at" yaml:"created_at"`
}

// HasMessages reports whether the memory records any source message.
func (m Memory) HasMessages() bool { return len(m.MessageIDs) > 0 }

// Weight returns the importance clamped to the valid range.
func (m Memory) Weight() int {
	switch {
	case m.Importance == 0:
		return DefaultImportance
	case m.Importance < MinImportance:
		return MinImportance
	case m.Importance > MaxImportance:
		return MaxImportance
	}
	return m.Importance
}

// IDs returns the ids of the given memories in order.
func IDs(memories []Memory) []string {
	out := make([]string, len(memories))
	for i, m := range memories {
		out[i] = m.ID
	}
	return out
}
