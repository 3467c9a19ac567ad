package recall

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/unkarelian/openvault/internal/model"
)

// SelectRequest is the input to relevance selection.
type SelectRequest struct {
	Candidates []model.Memory
	RecentText string
	Primary    string
	Active     []string
	MaxCount   int
}

// Scorer ranks candidates by relevance. Implementations may call external
// services, may fail, and are not trusted to honor the request bounds.
type Scorer interface {
	Rank(ctx context.Context, req SelectRequest) ([]model.Memory, error)
}

// ScorerFunc adapts a function to Scorer.
type ScorerFunc func(ctx context.Context, req SelectRequest) ([]model.Memory, error)

func (f ScorerFunc) Rank(ctx context.Context, req SelectRequest) ([]model.Memory, error) {
	return f(ctx, req)
}

// Selector returns a relevant subset of the candidates. It never fails: an
// empty result means nothing relevant.
type Selector interface {
	Select(ctx context.Context, req SelectRequest) []model.Memory
}

// Bounded wraps a Scorer so its output always satisfies the Selector
// contract: only candidate identities, no duplicates, at most MaxCount
// entries, and empty on error or panic.
type Bounded struct {
	scorer Scorer
	logger *slog.Logger
}

// NewBounded returns a Selector backed by scorer.
func NewBounded(scorer Scorer, logger *slog.Logger) *Bounded {
	return &Bounded{scorer: scorer, logger: orDiscard(logger)}
}

func (b *Bounded) Select(ctx context.Context, req SelectRequest) (out []model.Memory) {
	if req.MaxCount <= 0 || len(req.Candidates) == 0 {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			b.logger.Warn("relevance scorer panicked", "panic", fmt.Sprint(r))
			out = nil
		}
	}()

	ranked, err := b.scorer.Rank(ctx, req)
	if err != nil {
		b.logger.Warn("relevance scoring failed", "error", err, "candidates", len(req.Candidates))
		return nil
	}

	byID := make(map[string]model.Memory, len(req.Candidates))
	for _, m := range req.Candidates {
		byID[m.ID] = m
	}
	seen := make(map[string]bool, len(ranked))
	for _, m := range ranked {
		if len(out) == req.MaxCount {
			break
		}
		orig, ok := byID[m.ID]
		if !ok {
			b.logger.Debug("scorer returned unknown memory", "id", m.ID)
			continue
		}
		if seen[m.ID] {
			continue
		}
		seen[m.ID] = true
		out = append(out, orig)
	}
	return out
}

// InStoreOrder sorts selected by position in all, the store's chronological
// list. Memories absent from all go last in their selected order.
func InStoreOrder(selected, all []model.Memory) []model.Memory {
	pos := make(map[string]int, len(all))
	for i, m := range all {
		pos[m.ID] = i
	}
	out := append([]model.Memory(nil), selected...)
	sort.SliceStable(out, func(i, j int) bool {
		pi, iok := pos[out[i].ID]
		pj, jok := pos[out[j].ID]
		switch {
		case iok && jok:
			return pi < pj
		default:
			return iok && !jok
		}
	})
	return out
}
