package relevance

import (
	"context"
	"errors"
	"fmt"

	"github.com/unkarelian/openvault/internal/chunker"
	"github.com/unkarelian/openvault/internal/embedding"
	"github.com/unkarelian/openvault/internal/model"
	"github.com/unkarelian/openvault/internal/recall"
)

// Semantic ranks memories by embedding similarity to windows of the recent
// conversation. A memory scores its best match over all windows.
type Semantic struct {
	embedder embedding.Embedder
	windows  chunker.Options
	// MinSimilarity drops candidates whose best cosine similarity is below it.
	MinSimilarity float64
}

// NewSemantic returns a Semantic scorer. Wrap the embedder with
// embedding.NewCached to avoid re-embedding unchanged summaries.
func NewSemantic(e embedding.Embedder, windows chunker.Options) (*Semantic, error) {
	if e == nil {
		return nil, errors.New("semantic scorer requires an embedder")
	}
	return &Semantic{embedder: e, windows: windows}, nil
}

// Rank implements recall.Scorer.
func (s *Semantic) Rank(ctx context.Context, req recall.SelectRequest) ([]model.Memory, error) {
	windows := chunker.Windows(req.RecentText, s.windows)
	if len(windows) == 0 {
		return nil, nil
	}

	queries := make([]embedding.Vector, 0, len(windows))
	for _, w := range windows {
		v, err := s.embedder.Embed(ctx, w.Text)
		if err != nil {
			return nil, fmt.Errorf("embed conversation window %d-%d: %w", w.StartLine, w.EndLine, err)
		}
		queries = append(queries, v)
	}

	out := make([]scored, 0, len(req.Candidates))
	for i, m := range req.Candidates {
		v, err := s.embedder.Embed(ctx, m.Summary)
		if err != nil {
			return nil, fmt.Errorf("embed memory %s: %w", m.ID, err)
		}
		best := -1.0
		for _, q := range queries {
			if sim := embedding.CosineSimilarity(q, v); sim > best {
				best = sim
			}
		}
		if best < s.MinSimilarity {
			continue
		}
		out = append(out, scored{mem: m, score: best, pos: i})
	}
	return topN(out, req.MaxCount), nil
}
