package relevance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"github.com/unkarelian/openvault/internal/model"
	"github.com/unkarelian/openvault/internal/recall"
)

// JudgeConfig configures the language-model relevance judge.
type JudgeConfig struct {
	// BaseURL of the Ollama API (default: http://localhost:11434).
	BaseURL string
	// Model used for judging (default: llama3.2).
	Model string
	// Timeout per request (default: 30s).
	Timeout time.Duration
	// RatePerSecond limits outgoing requests. Zero disables limiting.
	RatePerSecond float64
	// Burst is the limiter burst size (default: 1).
	Burst   int
	Breaker BreakerConfig
}

// Judge asks a language model which memories matter for the next reply.
// Calls go through a rate limiter and a circuit breaker.
type Judge struct {
	baseURL string
	model   string
	client  *http.Client
	limiter *rate.Limiter
	breaker *breaker
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
	Format string `json:"format,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// NewJudge returns a Judge with defaults applied.
func NewJudge(cfg JudgeConfig) *Judge {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "llama3.2"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	j := &Judge{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		client:  &http.Client{Timeout: cfg.Timeout},
		breaker: newBreaker("relevance-judge", cfg.Breaker),
	}
	if cfg.RatePerSecond > 0 {
		j.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst)
	}
	return j
}

// State returns the circuit breaker state.
func (j *Judge) State() string { return j.breaker.state() }

// Rank implements recall.Scorer.
func (j *Judge) Rank(ctx context.Context, req recall.SelectRequest) ([]model.Memory, error) {
	if len(req.Candidates) == 0 {
		return nil, nil
	}
	if j.limiter != nil {
		if err := j.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}

	res, err := j.breaker.execute(ctx, func() (interface{}, error) {
		return j.generate(ctx, buildPrompt(req))
	})
	if err != nil {
		return nil, err
	}

	picks, err := parseSelection(res.(string))
	if err != nil {
		return nil, err
	}
	out := make([]model.Memory, 0, len(picks))
	for _, n := range picks {
		if n < 1 || n > len(req.Candidates) {
			continue
		}
		out = append(out, req.Candidates[n-1])
	}
	return out, nil
}

func (j *Judge) generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{Model: j.model, Prompt: prompt, Stream: false, Format: "json"})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, j.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := j.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("judge request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("judge error %d: %s", resp.StatusCode, string(b))
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return out.Response, nil
}

func buildPrompt(req recall.SelectRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You decide which memories %s should recall for the next reply.\n", req.Primary)
	if len(req.Active) > 0 {
		fmt.Fprintf(&b, "Characters present: %s\n", strings.Join(req.Active, ", "))
	}
	b.WriteString("\nRecent conversation:\n")
	b.WriteString(req.RecentText)
	b.WriteString("\n\nMemories:\n")
	for i, m := range req.Candidates {
		fmt.Fprintf(&b, "%d. [%d] %s\n", i+1, m.Weight(), m.Summary)
	}
	fmt.Fprintf(&b, "\nPick at most %d memories, most relevant first. ", req.MaxCount)
	b.WriteString(`Respond with JSON only: {"selected": [numbers]}`)
	return b.String()
}

// parseSelection accepts {"selected": [..]} or a bare array, optionally
// surrounded by prose or code fences.
func parseSelection(raw string) ([]int, error) {
	raw = strings.TrimSpace(raw)
	var obj struct {
		Selected []int `json:"selected"`
	}
	if err := json.Unmarshal([]byte(raw), &obj); err == nil && obj.Selected != nil {
		return obj.Selected, nil
	}
	start, end := strings.Index(raw, "["), strings.LastIndex(raw, "]")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no selection in judge response %q", truncate(raw, 80))
	}
	var picks []int
	if err := json.Unmarshal([]byte(raw[start:end+1]), &picks); err != nil {
		return nil, fmt.Errorf("parse selection: %w", err)
	}
	return picks, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
