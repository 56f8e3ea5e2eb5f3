package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/lmdevv/tabby-sub002/internal/errors"
	"github.com/lmdevv/tabby-sub002/internal/identity"
	"github.com/lmdevv/tabby-sub002/internal/ops"
)

var (
	tabListToolDef = mcp.NewTool("tab_list",
		mcp.WithDescription("List tabs ordered by window and index. workspace_id -1 lists unassigned tabs."),
		mcp.WithNumber("workspace_id"),
		mcp.WithNumber("window_id"),
		mcp.WithNumber("group_id"),
		mcp.WithString("status", mcp.Enum("active", "archived")),
		mcp.WithReadOnlyHintAnnotation(true),
	)
	tabListGroupsToolDef = mcp.NewTool("tab_list_groups",
		mcp.WithDescription("List tab groups ordered by window."),
		mcp.WithNumber("workspace_id"),
		mcp.WithNumber("window_id"),
		mcp.WithString("status", mcp.Enum("active", "archived")),
		mcp.WithReadOnlyHintAnnotation(true),
	)
	tabMoveToolDef = mcp.NewTool("tab_move",
		mcp.WithDescription("Move tabs to another workspace. Moved tabs leave their group and become active only if the target workspace is active."),
		mcp.WithArray("tab_ids", mcp.Required(), mcp.Items(map[string]any{"type": "integer"})),
		mcp.WithNumber("workspace_id", mcp.Required(), mcp.Description("Target workspace")),
	)
	tabUpdateMetaToolDef = mcp.NewTool("tab_update_meta",
		mcp.WithDescription("Set the tags or description of a tab. Omitted fields are unchanged."),
		mcp.WithNumber("tab_id", mcp.Required()),
		mcp.WithArray("tags", mcp.Items(map[string]any{"type": "string"})),
		mcp.WithString("description", mcp.Description("Empty string clears it")),
	)

	identityObserveTabToolDef = mcp.NewTool("identity_observe_tab",
		mcp.WithDescription("Report a live browser tab. Resolves it to its durable row by stable id, then by browser id, creating a row on first sight."),
		mcp.WithNumber("browser_tab_id", mcp.Required()),
		mcp.WithString("stable_id", mcp.Description("Stable id the browser kept for this tab across restarts")),
		mcp.WithNumber("window_id", mcp.Required()),
		mcp.WithNumber("index", mcp.Required()),
		mcp.WithString("url", mcp.Required()),
		mcp.WithString("title"),
		mcp.WithNumber("browser_group_id"),
	)
	identityCloseTabToolDef = mcp.NewTool("identity_close_tab",
		mcp.WithDescription("Report that a browser tab was closed. The row is archived and kept."),
		mcp.WithNumber("browser_tab_id", mcp.Required()),
	)
	identityObserveGroupToolDef = mcp.NewTool("identity_observe_group",
		mcp.WithDescription("Report a live browser tab group."),
		mcp.WithNumber("browser_group_id", mcp.Required()),
		mcp.WithString("stable_id"),
		mcp.WithNumber("window_id", mcp.Required()),
		mcp.WithString("title"),
		mcp.WithString("color"),
		mcp.WithBoolean("collapsed"),
	)
	identityRemoveGroupToolDef = mcp.NewTool("identity_remove_group",
		mcp.WithDescription("Report that a browser tab group went away. Its tabs are ungrouped."),
		mcp.WithNumber("browser_group_id", mcp.Required()),
	)
	identityBeginSessionToolDef = mcp.NewTool("identity_begin_session",
		mcp.WithDescription("Start a browser session: drop every ephemeral browser id binding. Call on browser startup."),
	)
	identityReconcileToolDef = mcp.NewTool("identity_reconcile",
		mcp.WithDescription("Apply a full enumeration of live groups and tabs. Bound rows missing from it are archived."),
		mcp.WithArray("groups", mcp.Items(map[string]any{"type": "object"})),
		mcp.WithArray("tabs", mcp.Items(map[string]any{"type": "object"})),
	)
)

// Request types

// TabListRequest represents the arguments for tab_list.
type TabListRequest struct {
	WorkspaceID *int64 `json:"workspace_id,omitempty"`
	WindowID    *int64 `json:"window_id,omitempty"`
	GroupID     *int64 `json:"group_id,omitempty"`
	Status      string `json:"status,omitempty"`
}

// TabListGroupsRequest represents the arguments for tab_list_groups.
type TabListGroupsRequest struct {
	WorkspaceID *int64 `json:"workspace_id,omitempty"`
	WindowID    *int64 `json:"window_id,omitempty"`
	Status      string `json:"status,omitempty"`
}

// TabMoveRequest represents the arguments for tab_move.
type TabMoveRequest struct {
	TabIDs      []int64 `json:"tab_ids"`
	WorkspaceID int64   `json:"workspace_id"`
}

// TabUpdateMetaRequest represents the arguments for tab_update_meta.
type TabUpdateMetaRequest struct {
	TabID       int64     `json:"tab_id"`
	Tags        *[]string `json:"tags,omitempty"`
	Description *string   `json:"description,omitempty"`
}

// BrowserTabRequest addresses a tab by its browser id.
type BrowserTabRequest struct {
	BrowserTabID int64 `json:"browser_tab_id"`
}

// BrowserGroupRequest addresses a tab group by its browser id.
type BrowserGroupRequest struct {
	BrowserGroupID int64 `json:"browser_group_id"`
}

// tagsArg maps a present-but-empty tags list to a clearing update.
func tagsArg(tags *[]string) []string {
	if tags == nil {
		return nil
	}
	if *tags == nil {
		return []string{}
	}
	return *tags
}

// Handler implementations

// HandleTabList handles the tab_list tool call.
func (h *Handlers) HandleTabList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[TabListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.ListTabs(ctx, h.db, ops.ListTabsInput{
		WorkspaceID: input.WorkspaceID,
		WindowID:    input.WindowID,
		GroupID:     input.GroupID,
		Status:      input.Status,
	})
	if err != nil {
		return h.fail(ctx, "tab_list", err), nil
	}
	return successResult(result)
}

// HandleTabListGroups handles the tab_list_groups tool call.
func (h *Handlers) HandleTabListGroups(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[TabListGroupsRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.ListTabGroups(ctx, h.db, ops.ListTabGroupsInput{
		WorkspaceID: input.WorkspaceID,
		WindowID:    input.WindowID,
		Status:      input.Status,
	})
	if err != nil {
		return h.fail(ctx, "tab_list_groups", err), nil
	}
	return successResult(result)
}

// HandleTabMove handles the tab_move tool call.
func (h *Handlers) HandleTabMove(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[TabMoveRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if err := requireID("workspace_id", input.WorkspaceID); err != nil {
		return errorResult(err), nil
	}

	result, err := ops.MoveTabs(ctx, h.db, ops.MoveTabsInput{
		TabIDs:      input.TabIDs,
		WorkspaceID: input.WorkspaceID,
	})
	if err != nil {
		return h.fail(ctx, "tab_move", err), nil
	}
	return successResult(result)
}

// HandleTabUpdateMeta handles the tab_update_meta tool call.
func (h *Handlers) HandleTabUpdateMeta(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[TabUpdateMetaRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if err := requireID("tab_id", input.TabID); err != nil {
		return errorResult(err), nil
	}

	result, err := ops.UpdateTabMeta(ctx, h.db, ops.UpdateTabMetaInput{
		TabID:       input.TabID,
		Tags:        tagsArg(input.Tags),
		Description: input.Description,
	})
	if err != nil {
		return h.fail(ctx, "tab_update_meta", err), nil
	}
	return successResult(result)
}

// HandleIdentityObserveTab handles the identity_observe_tab tool call.
func (h *Handlers) HandleIdentityObserveTab(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[identity.TabObservation](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := identity.ObserveTab(ctx, h.db, input)
	if err != nil {
		return h.fail(ctx, "identity_observe_tab", err), nil
	}
	return successResult(result)
}

// HandleIdentityCloseTab handles the identity_close_tab tool call.
func (h *Handlers) HandleIdentityCloseTab(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[BrowserTabRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := identity.CloseTab(ctx, h.db, input.BrowserTabID)
	if err != nil {
		return h.fail(ctx, "identity_close_tab", err), nil
	}
	return successResult(result)
}

// HandleIdentityObserveGroup handles the identity_observe_group tool call.
func (h *Handlers) HandleIdentityObserveGroup(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[identity.GroupObservation](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := identity.ObserveGroup(ctx, h.db, input)
	if err != nil {
		return h.fail(ctx, "identity_observe_group", err), nil
	}
	return successResult(result)
}

// HandleIdentityRemoveGroup handles the identity_remove_group tool call.
func (h *Handlers) HandleIdentityRemoveGroup(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[BrowserGroupRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := identity.RemoveGroup(ctx, h.db, input.BrowserGroupID)
	if err != nil {
		return h.fail(ctx, "identity_remove_group", err), nil
	}
	return successResult(result)
}

// HandleIdentityBeginSession handles the identity_begin_session tool call.
func (h *Handlers) HandleIdentityBeginSession(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := identity.BeginSession(ctx, h.db)
	if err != nil {
		return h.fail(ctx, "identity_begin_session", err), nil
	}
	h.logger.Info("browser session started",
		zap.Int64("tabs_unbound", result.TabsUnbound),
		zap.Int64("groups_unbound", result.GroupsUnbound))
	return successResult(result)
}

// HandleIdentityReconcile handles the identity_reconcile tool call.
func (h *Handlers) HandleIdentityReconcile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[identity.ReconcileInput](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := identity.Reconcile(ctx, h.db, input)
	if err != nil {
		return h.fail(ctx, "identity_reconcile", err), nil
	}
	return successResult(result)
}
