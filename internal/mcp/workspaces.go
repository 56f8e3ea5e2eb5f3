package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/lmdevv/tabby-sub002/internal/errors"
	"github.com/lmdevv/tabby-sub002/internal/ops"
)

var (
	workspaceCreateToolDef = mcp.NewTool("workspace_create",
		mcp.WithDescription("Create a workspace, optionally inside a workspace group and optionally activating it."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Display name")),
		mcp.WithString("description", mcp.Description("Free-form notes")),
		mcp.WithNumber("group_id", mcp.Description("Workspace group to place it in")),
		mcp.WithBoolean("activate", mcp.Description("Make it the active workspace in the same transaction")),
	)
	workspaceUpdateToolDef = mcp.NewTool("workspace_update",
		mcp.WithDescription("Rename a workspace, edit its description or move it between workspace groups. Omitted fields are unchanged."),
		mcp.WithNumber("workspace_id", mcp.Required()),
		mcp.WithString("name"),
		mcp.WithString("description", mcp.Description("Empty string clears it")),
		mcp.WithNumber("group_id"),
		mcp.WithBoolean("ungroup", mcp.Description("Remove the workspace from its group")),
	)
	workspaceGetToolDef = mcp.NewTool("workspace_get",
		mcp.WithDescription("Get one workspace with its active and archived tab counts."),
		mcp.WithNumber("workspace_id", mcp.Required()),
		mcp.WithReadOnlyHintAnnotation(true),
	)
	workspaceListToolDef = mcp.NewTool("workspace_list",
		mcp.WithDescription("List workspaces, most recently opened first, with tab counts and the active workspace id."),
		mcp.WithReadOnlyHintAnnotation(true),
	)
	workspaceActivateToolDef = mcp.NewTool("workspace_activate",
		mcp.WithDescription("Make a workspace the single active one. Tabs and groups of other workspaces are archived; the target's are restored."),
		mcp.WithNumber("workspace_id", mcp.Required()),
	)
	workspaceDeactivateToolDef = mcp.NewTool("workspace_deactivate",
		mcp.WithDescription("Deactivate a workspace (default: the active one) and archive its live tabs and groups."),
		mcp.WithNumber("workspace_id"),
	)
	workspaceEnsureActiveToolDef = mcp.NewTool("workspace_ensure_active",
		mcp.WithDescription("If no workspace is active, activate the most recently opened one."),
	)
	workspaceDeleteToolDef = mcp.NewTool("workspace_delete",
		mcp.WithDescription("Delete a workspace and its snapshots. Its tabs and groups become unassigned. Deleting the active workspace activates the most recent remaining one."),
		mcp.WithNumber("workspace_id", mcp.Required()),
		mcp.WithDestructiveHintAnnotation(true),
	)
	workspaceSetResourceGroupsToolDef = mcp.NewTool("workspace_set_resource_groups",
		mcp.WithDescription("Replace the ordered list of resource groups attached to a workspace."),
		mcp.WithNumber("workspace_id", mcp.Required()),
		mcp.WithArray("resource_group_ids", mcp.Required(), mcp.Items(map[string]any{"type": "integer"})),
	)
	workspaceGroupCreateToolDef = mcp.NewTool("workspace_group_create",
		mcp.WithDescription("Create a folder for workspaces."),
		mcp.WithString("name", mcp.Required()),
		mcp.WithString("icon"),
		mcp.WithBoolean("collapsed"),
	)
	workspaceGroupUpdateToolDef = mcp.NewTool("workspace_group_update",
		mcp.WithDescription("Rename a workspace group, set its icon or toggle collapsed. Omitted fields are unchanged."),
		mcp.WithNumber("group_id", mcp.Required()),
		mcp.WithString("name"),
		mcp.WithString("icon", mcp.Description("Empty string clears it")),
		mcp.WithBoolean("collapsed"),
	)
	workspaceGroupDeleteToolDef = mcp.NewTool("workspace_group_delete",
		mcp.WithDescription("Delete a workspace group. Its workspaces become ungrouped."),
		mcp.WithNumber("group_id", mcp.Required()),
		mcp.WithDestructiveHintAnnotation(true),
	)
	workspaceGroupListToolDef = mcp.NewTool("workspace_group_list",
		mcp.WithDescription("List workspace groups by name."),
		mcp.WithReadOnlyHintAnnotation(true),
	)
)

// Request types

// WorkspaceCreateRequest represents the arguments for workspace_create.
type WorkspaceCreateRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	GroupID     *int64  `json:"group_id,omitempty"`
	Activate    bool    `json:"activate,omitempty"`
}

// WorkspaceUpdateRequest represents the arguments for workspace_update.
type WorkspaceUpdateRequest struct {
	WorkspaceID int64   `json:"workspace_id"`
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	GroupID     *int64  `json:"group_id,omitempty"`
	Ungroup     bool    `json:"ungroup,omitempty"`
}

// WorkspaceRequest addresses one workspace.
type WorkspaceRequest struct {
	WorkspaceID int64 `json:"workspace_id"`
}

// WorkspaceDeactivateRequest represents the arguments for workspace_deactivate.
type WorkspaceDeactivateRequest struct {
	WorkspaceID *int64 `json:"workspace_id,omitempty"`
}

// WorkspaceSetResourceGroupsRequest represents the arguments for workspace_set_resource_groups.
type WorkspaceSetResourceGroupsRequest struct {
	WorkspaceID      int64   `json:"workspace_id"`
	ResourceGroupIDs []int64 `json:"resource_group_ids"`
}

// WorkspaceGroupCreateRequest represents the arguments for workspace_group_create.
type WorkspaceGroupCreateRequest struct {
	Name      string  `json:"name"`
	Icon      *string `json:"icon,omitempty"`
	Collapsed bool    `json:"collapsed,omitempty"`
}

// WorkspaceGroupUpdateRequest represents the arguments for workspace_group_update.
type WorkspaceGroupUpdateRequest struct {
	GroupID   int64   `json:"group_id"`
	Name      *string `json:"name,omitempty"`
	Icon      *string `json:"icon,omitempty"`
	Collapsed *bool   `json:"collapsed,omitempty"`
}

// GroupRequest addresses one group by id.
type GroupRequest struct {
	GroupID int64 `json:"group_id"`
}

// Handler implementations

// HandleWorkspaceCreate handles the workspace_create tool call.
func (h *Handlers) HandleWorkspaceCreate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[WorkspaceCreateRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.CreateWorkspace(ctx, h.db, ops.CreateWorkspaceInput{
		Name:        input.Name,
		Description: input.Description,
		GroupID:     input.GroupID,
		Activate:    input.Activate,
	})
	if err != nil {
		return h.fail(ctx, "workspace_create", err), nil
	}
	return successResult(result)
}

// HandleWorkspaceUpdate handles the workspace_update tool call.
func (h *Handlers) HandleWorkspaceUpdate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[WorkspaceUpdateRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if err := requireID("workspace_id", input.WorkspaceID); err != nil {
		return errorResult(err), nil
	}

	result, err := ops.UpdateWorkspace(ctx, h.db, ops.UpdateWorkspaceInput{
		WorkspaceID: input.WorkspaceID,
		Name:        input.Name,
		Description: input.Description,
		GroupID:     input.GroupID,
		Ungroup:     input.Ungroup,
	})
	if err != nil {
		return h.fail(ctx, "workspace_update", err), nil
	}
	return successResult(result)
}

// HandleWorkspaceGet handles the workspace_get tool call.
func (h *Handlers) HandleWorkspaceGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[WorkspaceRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if err := requireID("workspace_id", input.WorkspaceID); err != nil {
		return errorResult(err), nil
	}

	result, err := ops.GetWorkspace(ctx, h.db, ops.GetWorkspaceInput{WorkspaceID: input.WorkspaceID})
	if err != nil {
		return h.fail(ctx, "workspace_get", err), nil
	}
	return successResult(result)
}

// HandleWorkspaceList handles the workspace_list tool call.
func (h *Handlers) HandleWorkspaceList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := ops.ListWorkspaces(ctx, h.db)
	if err != nil {
		return h.fail(ctx, "workspace_list", err), nil
	}
	return successResult(result)
}

// HandleWorkspaceActivate handles the workspace_activate tool call.
func (h *Handlers) HandleWorkspaceActivate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[WorkspaceRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if err := requireID("workspace_id", input.WorkspaceID); err != nil {
		return errorResult(err), nil
	}

	result, err := ops.Activate(ctx, h.db, ops.ActivateInput{WorkspaceID: input.WorkspaceID})
	if err != nil {
		return h.fail(ctx, "workspace_activate", err), nil
	}
	return successResult(result)
}

// HandleWorkspaceDeactivate handles the workspace_deactivate tool call.
func (h *Handlers) HandleWorkspaceDeactivate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[WorkspaceDeactivateRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Deactivate(ctx, h.db, ops.DeactivateInput{WorkspaceID: input.WorkspaceID})
	if err != nil {
		return h.fail(ctx, "workspace_deactivate", err), nil
	}
	return successResult(result)
}

// HandleWorkspaceEnsureActive handles the workspace_ensure_active tool call.
func (h *Handlers) HandleWorkspaceEnsureActive(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := ops.EnsureActive(ctx, h.db)
	if err != nil {
		return h.fail(ctx, "workspace_ensure_active", err), nil
	}
	return successResult(result)
}

// HandleWorkspaceDelete handles the workspace_delete tool call.
func (h *Handlers) HandleWorkspaceDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[WorkspaceRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if err := requireID("workspace_id", input.WorkspaceID); err != nil {
		return errorResult(err), nil
	}

	result, err := ops.DeleteWorkspace(ctx, h.db, ops.DeleteWorkspaceInput{WorkspaceID: input.WorkspaceID})
	if err != nil {
		return h.fail(ctx, "workspace_delete", err), nil
	}
	return successResult(result)
}

// HandleWorkspaceSetResourceGroups handles the workspace_set_resource_groups tool call.
func (h *Handlers) HandleWorkspaceSetResourceGroups(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[WorkspaceSetResourceGroupsRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if err := requireID("workspace_id", input.WorkspaceID); err != nil {
		return errorResult(err), nil
	}

	result, err := ops.SetWorkspaceResourceGroups(ctx, h.db, ops.SetWorkspaceResourceGroupsInput{
		WorkspaceID:      input.WorkspaceID,
		ResourceGroupIDs: input.ResourceGroupIDs,
	})
	if err != nil {
		return h.fail(ctx, "workspace_set_resource_groups", err), nil
	}
	return successResult(result)
}

// HandleWorkspaceGroupCreate handles the workspace_group_create tool call.
func (h *Handlers) HandleWorkspaceGroupCreate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[WorkspaceGroupCreateRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.CreateWorkspaceGroup(ctx, h.db, ops.CreateWorkspaceGroupInput{
		Name:      input.Name,
		Icon:      input.Icon,
		Collapsed: input.Collapsed,
	})
	if err != nil {
		return h.fail(ctx, "workspace_group_create", err), nil
	}
	return successResult(result)
}

// HandleWorkspaceGroupUpdate handles the workspace_group_update tool call.
func (h *Handlers) HandleWorkspaceGroupUpdate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[WorkspaceGroupUpdateRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if err := requireID("group_id", input.GroupID); err != nil {
		return errorResult(err), nil
	}

	result, err := ops.UpdateWorkspaceGroup(ctx, h.db, ops.UpdateWorkspaceGroupInput{
		ID:        input.GroupID,
		Name:      input.Name,
		Icon:      input.Icon,
		Collapsed: input.Collapsed,
	})
	if err != nil {
		return h.fail(ctx, "workspace_group_update", err), nil
	}
	return successResult(result)
}

// HandleWorkspaceGroupDelete handles the workspace_group_delete tool call.
func (h *Handlers) HandleWorkspaceGroupDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[GroupRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if err := requireID("group_id", input.GroupID); err != nil {
		return errorResult(err), nil
	}

	result, err := ops.DeleteWorkspaceGroup(ctx, h.db, ops.DeleteWorkspaceGroupInput{ID: input.GroupID})
	if err != nil {
		return h.fail(ctx, "workspace_group_delete", err), nil
	}
	return successResult(result)
}

// HandleWorkspaceGroupList handles the workspace_group_list tool call.
func (h *Handlers) HandleWorkspaceGroupList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	groups, err := ops.ListWorkspaceGroups(ctx, h.db)
	if err != nil {
		return h.fail(ctx, "workspace_group_list", err), nil
	}
	return listResult("groups", groups)
}
