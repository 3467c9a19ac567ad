package model

// DefaultEmotion is the emotion of a character with no recorded state.
const DefaultEmotion = "neutral"

// DefaultCloseness is the closeness of a freshly recorded relationship.
const DefaultCloseness = 10

// MessageRange is an inclusive range of message indices.
type MessageRange struct {
	From int `json:"from" yaml:"from"`
	To   int `json:"to" yaml:"to"`
}

// Relationship describes how a character regards another.
type Relationship struct {
	Target    string `json:"target" yaml:"target"`
	Attitude  string `json:"attitude,omitempty" yaml:"attitude,omitempty"`
	Closeness int    `json:"closeness" yaml:"closeness"` // 0-100
}

// CharacterState is the per-character knowledge and emotion record.
type CharacterState struct {
	Name                string         `json:"name" yaml:"name"`
	KnownEvents         []string       `json:"known_events,omitempty" yaml:"known_events,omitempty"`
	CurrentEmotion      string         `json:"current_emotion,omitempty" yaml:"current_emotion,omitempty"`
	EmotionFromMessages *MessageRange  `json:"emotion_from_messages,omitempty" yaml:"emotion_from_messages,omitempty"`
	Relationships       []Relationship `json:"relationships,omitempty" yaml:"relationships,omitempty"`
}

// Emotion returns the current emotion label, defaulting to neutral.
func (c CharacterState) Emotion() string {
	if c.CurrentEmotion == "" {
		return DefaultEmotion
	}
	return c.CurrentEmotion
}

// Knows reports whether the memory id was disclosed to the character.
func (c CharacterState) Knows(id string) bool {
	for _, e := range c.KnownEvents {
		if e == id {
			return true
		}
	}
	return false
}
