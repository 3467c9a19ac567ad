// Package relationship summarizes how the primary character relates to the
// characters currently in the scene.
package relationship

import (
	"context"
	"sort"

	"github.com/unkarelian/openvault/internal/model"
	"github.com/unkarelian/openvault/internal/recall"
)

// DefaultMaxRelations caps the relationships included in a summary.
const DefaultMaxRelations = 5

// Summarizer implements recall.RelationshipSummarizer.
type Summarizer struct {
	MaxRelations int
}

// Summarize returns the primary character's relationships toward the active
// characters, closest first, and the current emotion of each other active
// character. With no active characters every relationship is considered.
func (s Summarizer) Summarize(_ context.Context, store *model.Store, primary string, active []string) (recall.RelationshipContext, error) {
	out := recall.RelationshipContext{Primary: primary}
	self, ok := store.Character(primary)
	if !ok && len(active) == 0 {
		return out, nil
	}

	present := model.NewNameSet(active...)
	for _, r := range self.Relationships {
		if len(present) > 0 && !present.Has(r.Target) {
			continue
		}
		out.Relations = append(out.Relations, r)
	}
	sort.SliceStable(out.Relations, func(i, j int) bool {
		return out.Relations[i].Closeness > out.Relations[j].Closeness
	})
	max := s.MaxRelations
	if max <= 0 {
		max = DefaultMaxRelations
	}
	if len(out.Relations) > max {
		out.Relations = out.Relations[:max]
	}

	primaryKey := model.Key(primary)
	for _, name := range active {
		if model.Key(name) == primaryKey {
			continue
		}
		c, ok := store.Character(name)
		if !ok || c.Emotion() == model.DefaultEmotion {
			continue
		}
		out.Emotions = append(out.Emotions, recall.CharacterEmotion{Name: c.Name, Emotion: c.Emotion()})
	}
	return out, nil
}
