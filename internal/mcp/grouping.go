package mcp

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/lmdevv/tabby-sub002/internal/errors"
	"github.com/lmdevv/tabby-sub002/internal/grouping"
	"github.com/lmdevv/tabby-sub002/internal/ops"
)

var (
	groupingContextToolDef = mcp.NewTool("grouping_context",
		mcp.WithDescription("Return the live groups and tabs of a workspace (default: the active one) as a grouping model sees them. The extension's own pages are left out."),
		mcp.WithNumber("workspace_id"),
		mcp.WithReadOnlyHintAnnotation(true),
	)
	groupingApplyToolDef = mcp.NewTool("grouping_apply",
		mcp.WithDescription(`Apply a grouping to a workspace. The response must be {"groups":[{"name","tabIds","color"?}],"ungroupedTabs":[...]} and cover every live tab exactly once, with each group inside one window; otherwise nothing is written and every violation is reported.`),
		mcp.WithNumber("workspace_id", mcp.Required()),
		mcp.WithObject("response", mcp.Required()),
		mcp.WithBoolean("dry_run", mcp.Description("Validate and plan without writing")),
	)
	groupingOrganizeToolDef = mcp.NewTool("grouping_organize",
		mcp.WithDescription("Ask the configured model to group a workspace's tabs (default: the active workspace), then validate and apply its answer."),
		mcp.WithNumber("workspace_id"),
		mcp.WithString("instruction", mcp.Description("Extra guidance for the model")),
		mcp.WithBoolean("dry_run"),
	)
)

// Request types

// GroupingContextRequest represents the arguments for grouping_context.
type GroupingContextRequest struct {
	WorkspaceID *int64 `json:"workspace_id,omitempty"`
}

// GroupingApplyRequest represents the arguments for grouping_apply.
// Response is kept raw so it goes through the same strict decoding as a
// model answer.
type GroupingApplyRequest struct {
	WorkspaceID int64           `json:"workspace_id"`
	Response    json.RawMessage `json:"response"`
	DryRun      bool            `json:"dry_run,omitempty"`
}

// GroupingOrganizeRequest represents the arguments for grouping_organize.
type GroupingOrganizeRequest struct {
	WorkspaceID *int64 `json:"workspace_id,omitempty"`
	Instruction string `json:"instruction,omitempty"`
	DryRun      bool   `json:"dry_run,omitempty"`
}

// Handler implementations

// HandleGroupingContext handles the grouping_context tool call.
func (h *Handlers) HandleGroupingContext(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[GroupingContextRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.GroupingContext(ctx, h.db, h.cfg, ops.GroupingContextInput{WorkspaceID: input.WorkspaceID})
	if err != nil {
		return h.fail(ctx, "grouping_context", err), nil
	}
	return successResult(result)
}

// HandleGroupingApply handles the grouping_apply tool call.
func (h *Handlers) HandleGroupingApply(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[GroupingApplyRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if err := requireID("workspace_id", input.WorkspaceID); err != nil {
		return errorResult(err), nil
	}
	if len(input.Response) == 0 {
		return errorResult(errors.NewInvalidRequest("response is required")), nil
	}
	resp, err := grouping.DecodeResponse(input.Response)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.ApplyGrouping(ctx, h.db, h.cfg, ops.ApplyGroupingInput{
		WorkspaceID: input.WorkspaceID,
		Response:    resp,
		DryRun:      input.DryRun,
	})
	if err != nil {
		return h.fail(ctx, "grouping_apply", err), nil
	}
	return successResult(result)
}

// HandleGroupingOrganize handles the grouping_organize tool call.
func (h *Handlers) HandleGroupingOrganize(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[GroupingOrganizeRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Organize(ctx, h.db, h.cfg, h.grouper, h.logger, ops.OrganizeInput{
		WorkspaceID: input.WorkspaceID,
		Instruction: input.Instruction,
		DryRun:      input.DryRun,
	})
	if err != nil {
		return h.fail(ctx, "grouping_organize", err), nil
	}
	return successResult(result)
}
