package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/unkarelian/openvault/internal/model"
	"github.com/unkarelian/openvault/internal/recall"
	"github.com/unkarelian/openvault/internal/store"
)

// Searcher finds stored memories by substring.
type Searcher interface {
	Search(ctx context.Context, p store.SearchParams) ([]model.Memory, error)
}

// PromptReader reads back the block injected for a session.
type PromptReader interface {
	Prompt(ctx context.Context, sessionID string) (string, error)
}

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	orch     *recall.Orchestrator
	settings recall.Settings
	status   *recall.StatusTracker
	search   Searcher
	prompts  PromptReader
	log      *slog.Logger
}

// NewHandlers creates handlers. status, search and prompts may be nil, in
// which case the corresponding tools report an error.
func NewHandlers(orch *recall.Orchestrator, settings recall.Settings, status *recall.StatusTracker, search Searcher, prompts PromptReader, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handlers{orch: orch, settings: settings, status: status, search: search, prompts: prompts, log: logger}
}

// RetrieveRequest is the argument set of memory_retrieve.
type RetrieveRequest struct {
	SessionID string `json:"session_id"`
}

// UpdateRequest is the argument set of memory_update.
type UpdateRequest struct {
	SessionID string `json:"session_id"`
	Pending   string `json:"pending,omitempty"`
}

// StatusRequest is the argument set of memory_status.
type StatusRequest struct {
	SessionID string `json:"session_id"`
}

// PromptRequest is the argument set of memory_prompt.
type PromptRequest struct {
	SessionID string `json:"session_id"`
}

// SearchRequest is the argument set of memory_search.
type SearchRequest struct {
	SessionID string `json:"session_id"`
	Query     string `json:"query"`
	Character string `json:"character,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

// RetrieveResponse is returned by memory_retrieve.
type RetrieveResponse struct {
	Injected bool           `json:"injected"`
	Result   *recall.Result `json:"result,omitempty"`
}

var errSessionRequired = errors.New("session_id is required")

// HandleRetrieve runs an on-demand retrieval.
func (h *Handlers) HandleRetrieve(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RetrieveRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	if strings.TrimSpace(input.SessionID) == "" {
		return errorResult(errSessionRequired), nil
	}

	res := h.orch.Retrieve(ctx, input.SessionID, h.settings)
	return successResult(RetrieveResponse{Injected: res != nil, Result: res})
}

// HandleUpdate runs an automatic pre-generation update.
func (h *Handlers) HandleUpdate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[UpdateRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	if strings.TrimSpace(input.SessionID) == "" {
		return errorResult(errSessionRequired), nil
	}

	return successResult(h.orch.Update(ctx, input.SessionID, h.settings, input.Pending))
}

// HandleStatus reports the last retrieval status of a session.
func (h *Handlers) HandleStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[StatusRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	if h.status == nil {
		return errorResult(errors.New("status tracking is disabled")), nil
	}
	st := h.status.Status(input.SessionID)
	if st == "" {
		st = recall.StatusReady
	}
	return successResult(map[string]any{"session_id": input.SessionID, "status": st})
}

// HandlePrompt returns the block currently injected for a session.
func (h *Handlers) HandlePrompt(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PromptRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	if strings.TrimSpace(input.SessionID) == "" {
		return errorResult(errSessionRequired), nil
	}
	if h.prompts == nil {
		return errorResult(errors.New("injected prompts are unavailable")), nil
	}

	text, err := h.prompts.Prompt(ctx, input.SessionID)
	if err != nil {
		h.log.Error("read injected prompt failed", "session", input.SessionID, "error", err)
		return errorResult(err), nil
	}
	return successResult(map[string]any{"session_id": input.SessionID, "injected": text != "", "text": text})
}

// HandleSearch searches stored memories without running the pipeline.
func (h *Handlers) HandleSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SearchRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	if strings.TrimSpace(input.SessionID) == "" {
		return errorResult(errSessionRequired), nil
	}
	if h.search == nil {
		return errorResult(errors.New("search is unavailable")), nil
	}

	memories, err := h.search.Search(ctx, store.SearchParams{
		SessionID: input.SessionID,
		Query:     input.Query,
		Character: input.Character,
		Limit:     input.Limit,
	})
	if err != nil {
		h.log.Error("memory search failed", "session", input.SessionID, "error", err)
		return errorResult(err), nil
	}
	if memories == nil {
		memories = []model.Memory{}
	}
	return successResult(map[string]any{"memories": memories, "count": len(memories)})
}

func errorResult(err error) *mcp.CallToolResult {
	content, _ := json.Marshal(map[string]any{"error": err.Error()})
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
