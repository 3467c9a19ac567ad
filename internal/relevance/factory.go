package relevance

import (
	"fmt"

	"github.com/unkarelian/openvault/internal/chunker"
	"github.com/unkarelian/openvault/internal/embedding"
	"github.com/unkarelian/openvault/internal/recall"
)

// Provider names.
const (
	ProviderLexical  = "lexical"
	ProviderSemantic = "semantic"
	ProviderJudge    = "judge"
)

// Options selects and configures a scorer.
type Options struct {
	Provider      string
	MinScore      float64
	MinSimilarity float64
	Embedder      embedding.Embedder
	Judge         JudgeConfig
}

// New builds the scorer named by opts.Provider. Empty selects lexical.
func New(opts Options) (recall.Scorer, error) {
	switch opts.Provider {
	case "", ProviderLexical:
		return Lexical{MinScore: opts.MinScore}, nil
	case ProviderSemantic:
		s, err := NewSemantic(opts.Embedder, chunker.DefaultOptions())
		if err != nil {
			return nil, err
		}
		s.MinSimilarity = opts.MinSimilarity
		return s, nil
	case ProviderJudge:
		return NewJudge(opts.Judge), nil
	}
	return nil, fmt.Errorf("unknown selector provider %q (valid: lexical, semantic, judge)", opts.Provider)
}
