package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ormasoftchile/runlens/pkg/approval"
	"github.com/ormasoftchile/runlens/pkg/events"
	"github.com/ormasoftchile/runlens/pkg/monitor"
	"github.com/ormasoftchile/runlens/pkg/projection"
	"github.com/ormasoftchile/runlens/pkg/registry"
)

// HandleCases implements the runlens/cases MCP tool.
func (h *Handlers) HandleCases(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list, err := h.Cases.List(ctx)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return jsonResult(list)
}

// HandleCase implements the runlens/case MCP tool.
func (h *Handlers) HandleCase(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	caseID, _ := args["case_id"].(string)
	if caseID == "" {
		return errorResult("case_id argument is required"), nil
	}

	detail, err := h.Cases.Get(ctx, caseID)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return jsonResult(detail)
}

// HandleRun implements the runlens/run MCP tool: it drives a run to its
// terminal state and returns the derived board, so agents get per-step
// results, phase rollups and gate outcomes in one document.
func (h *Handlers) HandleRun(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	caseID, _ := args["case_id"].(string)
	if caseID == "" {
		return errorResult("case_id argument is required"), nil
	}
	requireApproval, _ := args["require_approval"].(bool)

	mon := monitor.New(h.Launcher)
	var snap = mon.Snapshot()
	var err error
	if requireApproval {
		snap, err = mon.WatchApproval(ctx, caseID)
	} else {
		snap, err = mon.Watch(ctx, caseID)
	}
	if err != nil {
		// A failed run still carries its partial board; surface both.
		board := projection.BuildBoard(&snap, h.reg())
		payload, jerr := json.MarshalIndent(map[string]any{
			"error": err.Error(),
			"board": board,
		}, "", "  ")
		if jerr != nil {
			return errorResult(err.Error()), nil
		}
		return errorResult(string(payload)), nil
	}

	return jsonResult(projection.BuildBoard(&snap, h.reg()))
}

// HandleApprove implements the runlens/approve MCP tool.
func (h *Handlers) HandleApprove(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	id, _ := args["approval_request_id"].(string)
	if id == "" {
		return errorResult("approval_request_id argument is required"), nil
	}
	decision, _ := args["decision"].(string)
	if decision != string(approval.DecisionApprove) && decision != string(approval.DecisionReject) {
		return errorResult(fmt.Sprintf("unknown decision %q: use 'approve' or 'reject'", decision)), nil
	}

	outcome, err := h.Queue.Resolve(ctx, id, approval.Decision(decision))
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return jsonResult(outcome)
}

// HandleSchema implements the runlens/schema MCP tool.
func (h *Handlers) HandleSchema(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	schemaType, _ := args["type"].(string)

	var data []byte
	var err error

	switch schemaType {
	case "registry":
		data, err = registry.GenerateJSONSchema()
	case "events":
		data, err = events.GenerateJSONSchema()
	default:
		return errorResult(fmt.Sprintf("unknown schema type %q: use 'registry' or 'events'", schemaType)), nil
	}

	if err != nil {
		return errorResult(err.Error()), nil
	}
	return textResult(string(data)), nil
}

// --- helpers ---

func (h *Handlers) reg() *registry.Registry {
	if h.Registry != nil {
		return h.Registry
	}
	return registry.Default()
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult(fmt.Sprintf("marshal result: %v", err)), nil
	}
	return textResult(string(data)), nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(msg),
		},
		IsError: true,
	}
}
