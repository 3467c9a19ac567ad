package relevance

import (
	"context"
	"sort"

	"github.com/unkarelian/openvault/internal/model"
	"github.com/unkarelian/openvault/internal/recall"
)

// Lexical ranks memories by word overlap with the recent conversation,
// boosted by the characters they concern and their importance.
type Lexical struct {
	// MinScore drops candidates scoring at or below it.
	MinScore float64
}

type scored struct {
	mem   model.Memory
	score float64
	pos   int
}

// Rank implements recall.Scorer.
func (l Lexical) Rank(_ context.Context, req recall.SelectRequest) ([]model.Memory, error) {
	recent := tokenSet(req.RecentText)
	primary := model.NewNameSet(req.Primary)
	active := model.NewNameSet(req.Active...)
	n := len(req.Candidates)

	out := make([]scored, 0, n)
	for i, m := range req.Candidates {
		jac, cont := overlap(recent, tokenSet(m.Summary))
		score := jac*0.6 + cont*0.3

		if primary.Intersects(m.Witnesses) || primary.Intersects(m.CharactersInvolved) {
			score += 0.1
		}
		for _, c := range m.CharactersInvolved {
			if active.Has(c) && !primary.Has(c) {
				score += 0.03
			}
		}
		if score <= l.MinScore {
			continue
		}
		score += float64(m.Weight()-model.DefaultImportance) * 0.02
		score += 0.05 * float64(i+1) / float64(n)
		out = append(out, scored{mem: m, score: score, pos: i})
	}

	return topN(out, req.MaxCount), nil
}

// topN sorts by score descending, later memories first on ties, and keeps
// at most max entries.
func topN(in []scored, max int) []model.Memory {
	sort.SliceStable(in, func(i, j int) bool {
		if in[i].score == in[j].score {
			return in[i].pos > in[j].pos
		}
		return in[i].score > in[j].score
	})
	if max > 0 && len(in) > max {
		in = in[:max]
	}
	out := make([]model.Memory, len(in))
	for i, s := range in {
		out[i] = s.mem
	}
	return out
}
