package model

import "strings"

// NameKey is the canonical comparison form of a character name.
type NameKey string

// Key normalizes a character name.
func Key(name string) NameKey {
	return NameKey(strings.ToLower(strings.TrimSpace(name)))
}

// NameSet is a case-insensitive set of character names.
type NameSet map[NameKey]struct{}

// NewNameSet builds a set from raw names. Blank names are ignored.
func NewNameSet(names ...string) NameSet {
	s := make(NameSet, len(names))
	for _, n := range names {
		s.Add(n)
	}
	return s
}

// Add inserts a raw name.
func (s NameSet) Add(name string) {
	k := Key(name)
	if k == "" {
		return
	}
	s[k] = struct{}{}
}

// Has reports whether a raw name is in the set.
func (s NameSet) Has(name string) bool {
	_, ok := s[Key(name)]
	return ok
}

// Intersects reports whether any of names is in the set.
func (s NameSet) Intersects(names []string) bool {
	for _, n := range names {
		if s.Has(n) {
			return true
		}
	}
	return false
}
