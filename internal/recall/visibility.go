// Package recall selects the memories a scene's point-of-view characters may
// know, narrows them to what is relevant to the current turn, and hands the
// packed result to an injection sink.
package recall

import (
	"github.com/unkarelian/openvault/internal/model"
)

// Accessible returns the memories visible to the POV characters, in input
// order. A memory is visible when a POV character witnessed it, when it is
// not secret and involves a POV character, or when it was disclosed to a POV
// character through known events.
func Accessible(memories []model.Memory, pov []string, store *model.Store) []model.Memory {
	povSet := model.NewNameSet(pov...)
	known := store.KnownEventIDs(pov...)

	out := make([]model.Memory, 0, len(memories))
	for _, m := range memories {
		if IsAccessible(m, povSet, known) {
			out = append(out, m)
		}
	}
	return out
}

// IsAccessible is the visibility predicate for a single memory.
func IsAccessible(m model.Memory, pov model.NameSet, known map[string]struct{}) bool {
	if pov.Intersects(m.Witnesses) {
		return true
	}
	if !m.IsSecret && pov.Intersects(m.CharactersInvolved) {
		return true
	}
	_, ok := known[m.ID]
	return ok
}
