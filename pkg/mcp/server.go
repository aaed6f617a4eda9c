// Package mcp exposes runlens to AI agents over the Model Context
// Protocol: listing cases, running the pipeline for a case, resolving
// pending approvals and exporting schemas.
package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ormasoftchile/runlens/pkg/approval"
	"github.com/ormasoftchile/runlens/pkg/cases"
	"github.com/ormasoftchile/runlens/pkg/launcher"
	"github.com/ormasoftchile/runlens/pkg/registry"
)

// Handlers binds the MCP tools to their collaborators.
type Handlers struct {
	Launcher *launcher.Launcher
	Cases    *cases.Client
	Queue    approval.Queue
	Registry *registry.Registry
}

// NewServer creates a new MCP server with runlens tools registered.
func NewServer(version string, h *Handlers) *server.MCPServer {
	s := server.NewMCPServer(
		"runlens",
		version,
		server.WithToolCapabilities(true),
	)

	s.AddTool(
		mcp.NewTool("runlens/cases",
			mcp.WithDescription("List the selectable pipeline cases"),
		),
		h.HandleCases,
	)

	s.AddTool(
		mcp.NewTool("runlens/case",
			mcp.WithDescription("Fetch the enriched detail for one case"),
			mcp.WithString("case_id", mcp.Required(), mcp.Description("Case identifier")),
		),
		h.HandleCase,
	)

	s.AddTool(
		mcp.NewTool("runlens/run",
			mcp.WithDescription("Run the decision pipeline for a case and return the final board as JSON"),
			mcp.WithString("case_id", mcp.Required(), mcp.Description("Case identifier")),
			mcp.WithBoolean("require_approval", mcp.Description("Use the human-approval variant instead of a streamed run")),
		),
		h.HandleRun,
	)

	s.AddTool(
		mcp.NewTool("runlens/approve",
			mcp.WithDescription("Resolve a pending approval request"),
			mcp.WithString("approval_request_id", mcp.Required(), mcp.Description("Pending approval id")),
			mcp.WithString("decision", mcp.Required(), mcp.Description("Either 'approve' or 'reject'")),
		),
		h.HandleApprove,
	)

	s.AddTool(
		mcp.NewTool("runlens/schema",
			mcp.WithDescription("Export runlens JSON Schema (registry or events)"),
			mcp.WithString("type", mcp.Required(), mcp.Description("Schema type: 'registry' or 'events'")),
		),
		h.HandleSchema,
	)

	return s
}
