// Package mcp exposes memory retrieval as MCP tools over stdio.
package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

var (
	retrieveToolDef = mcp.NewTool("memory_retrieve",
		mcp.WithDescription("Select the memories relevant to the current scene and inject them. Returns the selected memories and injected text."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session to retrieve for")),
	)
	updateToolDef = mcp.NewTool("memory_update",
		mcp.WithDescription("Refresh injected memories before a generation. Clears the injection when nothing applies."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session to update")),
		mcp.WithString("pending", mcp.Description("User message not yet committed to the chat log")),
	)
	statusToolDef = mcp.NewTool("memory_status",
		mcp.WithDescription("Report the last retrieval status of a session: retrieving, ready or error."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session to inspect")),
	)
	promptToolDef = mcp.NewTool("memory_prompt",
		mcp.WithDescription("Return the memory block currently injected for a session, for the prompt builder."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session to read")),
	)
	searchToolDef = mcp.NewTool("memory_search",
		mcp.WithDescription("Search stored memories by substring, newest first."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session to search")),
		mcp.WithString("query", mcp.Required(), mcp.Description("Substring of the summary, a witness or an involved character")),
		mcp.WithString("character", mcp.Description("Only memories witnessed by or involving this character")),
		mcp.WithNumber("limit", mcp.Description("Maximum results (default 20)")),
	)
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

var toolRegistry = []toolEntry{
	{retrieveToolDef, func(h *Handlers) server.ToolHandlerFunc { return h.HandleRetrieve }},
	{updateToolDef, func(h *Handlers) server.ToolHandlerFunc { return h.HandleUpdate }},
	{statusToolDef, func(h *Handlers) server.ToolHandlerFunc { return h.HandleStatus }},
	{promptToolDef, func(h *Handlers) server.ToolHandlerFunc { return h.HandlePrompt }},
	{searchToolDef, func(h *Handlers) server.ToolHandlerFunc { return h.HandleSearch }},
}

// ToolNames lists the registered tools in registration order.
func ToolNames() []string {
	names := make([]string, len(toolRegistry))
	for i, e := range toolRegistry {
		names[i] = e.def.Name
	}
	return names
}

// NewServer creates an MCP server with the memory tools registered.
func NewServer(h *Handlers, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"openvault",
		version,
		server.WithToolCapabilities(true),
	)
	for _, entry := range toolRegistry {
		s.AddTool(entry.def, entry.handler(h))
	}
	return s
}

// Serve runs the server on stdin/stdout until the client disconnects.
func Serve(h *Handlers, version string) error {
	return server.ServeStdio(NewServer(h, version))
}
