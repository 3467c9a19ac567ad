package model

// Store is the aggregate of everything remembered about one session.
// Memories are kept in insertion order, which is chronological.
type Store struct {
	Memories    []Memory                   `json:"memories" yaml:"memories"`
	Characters  map[NameKey]CharacterState `json:"characters" yaml:"characters"`
	LastBatchID string                     `json:"last_batch_id,omitempty" yaml:"last_batch_id,omitempty"`
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{Characters: map[NameKey]CharacterState{}}
}

// Character looks up a character case-insensitively.
func (s *Store) Character(name string) (CharacterState, bool) {
	if s == nil {
		return CharacterState{}, false
	}
	c, ok := s.Characters[Key(name)]
	return c, ok
}

// SetCharacter inserts or replaces a character record.
func (s *Store) SetCharacter(c CharacterState) {
	if s.Characters == nil {
		s.Characters = map[NameKey]CharacterState{}
	}
	s.Characters[Key(c.Name)] = c
}

// KnownEventIDs returns the union of known events over the named characters.
func (s *Store) KnownEventIDs(names ...string) map[string]struct{} {
	known := map[string]struct{}{}
	for _, n := range names {
		c, ok := s.Character(n)
		if !ok {
			continue
		}
		for _, id := range c.KnownEvents {
			known[id] = struct{}{}
		}
	}
	return known
}

// Message is one entry of the chat log.
type Message struct {
	Index    int    `json:"index" yaml:"index"`
	Speaker  string `json:"speaker" yaml:"speaker"`
	Text     string `json:"text" yaml:"text"`
	IsSystem bool   `json:"is_system,omitempty" yaml:"is_system,omitempty"`
}

// Session is a conversation with its participants and chat log.
type Session struct {
	ID                   string    `json:"id" yaml:"id"`
	PrimaryUser          string    `json:"primary_user" yaml:"primary_user"`
	SecondaryParticipant string    `json:"secondary_participant" yaml:"secondary_participant"`
	GroupChat            bool      `json:"group_chat,omitempty" yaml:"group_chat,omitempty"`
	Participants         []string  `json:"participants,omitempty" yaml:"participants,omitempty"`
	Chat                 []Message `json:"chat,omitempty" yaml:"chat,omitempty"`
}

// POVContext is derived for each retrieval and never persisted.
// Characters is non-empty and its first entry is the primary character.
type POVContext struct {
	Characters []string `json:"characters"`
	GroupChat  bool     `json:"group_chat"`
}

// Primary returns the first POV character.
func (p POVContext) Primary() string {
	if len(p.Characters) == 0 {
		return ""
	}
	return p.Characters[0]
}
