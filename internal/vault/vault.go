// Package vault assembles the retrieval pipeline from configuration.
package vault

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/unkarelian/openvault/internal/config"
	"github.com/unkarelian/openvault/internal/embedding"
	"github.com/unkarelian/openvault/internal/format"
	"github.com/unkarelian/openvault/internal/inject"
	"github.com/unkarelian/openvault/internal/recall"
	"github.com/unkarelian/openvault/internal/relationship"
	"github.com/unkarelian/openvault/internal/relevance"
	"github.com/unkarelian/openvault/internal/scene"
	"github.com/unkarelian/openvault/internal/store"
)

// Vault is a configured orchestrator with the pieces callers inspect.
type Vault struct {
	Store    *store.SQLiteStore
	Orch     *recall.Orchestrator
	Settings recall.Settings
	Status   *recall.StatusTracker
	Sink     inject.Sink
}

// New wires the store into a retrieval orchestrator according to cfg.
func New(cfg *config.Config, st *store.SQLiteStore, logger *slog.Logger) (*Vault, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	emb, err := embedding.New(cfg.EmbeddingConfig())
	if err != nil {
		return nil, fmt.Errorf("embedding: %w", err)
	}
	scorer, err := relevance.New(cfg.Relevance(emb))
	if err != nil {
		return nil, fmt.Errorf("selector: %w", err)
	}
	sink, err := newSink(cfg.Inject)
	if err != nil {
		return nil, err
	}

	settings := cfg.Settings()
	resolver := scene.Resolver{Window: settings.RecentWindow}
	status := recall.NewStatusTracker()

	orch, err := recall.New(recall.Deps{
		Sessions:  st,
		Stores:    st,
		POV:       resolver,
		Active:    resolver,
		Selector:  recall.NewBounded(scorer, logger),
		Relations: relationship.Summarizer{},
		Formatter: format.Formatter{Logger: logger},
		Sink:      sink,
		Status:    status,
		Notifier:  inject.LogNotifier{Logger: logger},
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}

	return &Vault{Store: st, Orch: orch, Settings: settings, Status: status, Sink: sink}, nil
}

// Prompt returns the block currently injected for a session, or "" when
// nothing is injected.
func (v *Vault) Prompt(ctx context.Context, sessionID string) (string, error) {
	return v.Sink.Prompt(ctx, sessionID)
}

func newSink(c config.InjectConfig) (inject.Sink, error) {
	if c.Mode == config.InjectFile {
		s, err := inject.NewFileSink(c.Dir)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return inject.NewMemorySink(), nil
}
