package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/lmdevv/tabby-sub002/internal/errors"
	"github.com/lmdevv/tabby-sub002/internal/ops"
)

var (
	resourceCreateToolDef = mcp.NewTool("resource_create",
		mcp.WithDescription("Save a bookmark-like resource."),
		mcp.WithString("url", mcp.Required()),
		mcp.WithString("title", mcp.Description("Defaults to the url")),
		mcp.WithArray("tags", mcp.Items(map[string]any{"type": "string"})),
		mcp.WithString("description"),
	)
	resourceUpdateToolDef = mcp.NewTool("resource_update",
		mcp.WithDescription("Edit a resource. Omitted fields are unchanged."),
		mcp.WithNumber("resource_id", mcp.Required()),
		mcp.WithString("url"),
		mcp.WithString("title"),
		mcp.WithArray("tags", mcp.Items(map[string]any{"type": "string"})),
		mcp.WithString("description", mcp.Description("Empty string clears it")),
	)
	resourceDeleteToolDef = mcp.NewTool("resource_delete",
		mcp.WithDescription("Delete a resource and remove it from every resource group."),
		mcp.WithNumber("resource_id", mcp.Required()),
		mcp.WithDestructiveHintAnnotation(true),
	)
	resourceListToolDef = mcp.NewTool("resource_list",
		mcp.WithDescription("List resources, newest first."),
		mcp.WithReadOnlyHintAnnotation(true),
	)
	resourceGroupCreateToolDef = mcp.NewTool("resource_group_create",
		mcp.WithDescription("Create an ordered collection of resources."),
		mcp.WithString("name", mcp.Required()),
		mcp.WithArray("resource_ids", mcp.Items(map[string]any{"type": "integer"})),
	)
	resourceGroupUpdateToolDef = mcp.NewTool("resource_group_update",
		mcp.WithDescription("Rename a resource group or reorder it. A reorder must list exactly the current members."),
		mcp.WithNumber("group_id", mcp.Required()),
		mcp.WithString("name"),
		mcp.WithArray("resource_ids", mcp.Items(map[string]any{"type": "integer"})),
	)
	resourceGroupAddToolDef = mcp.NewTool("resource_group_add",
		mcp.WithDescription("Append a resource to a resource group."),
		mcp.WithNumber("group_id", mcp.Required()),
		mcp.WithNumber("resource_id", mcp.Required()),
	)
	resourceGroupRemoveToolDef = mcp.NewTool("resource_group_remove",
		mcp.WithDescription("Remove a resource from a resource group."),
		mcp.WithNumber("group_id", mcp.Required()),
		mcp.WithNumber("resource_id", mcp.Required()),
	)
	resourceGroupDeleteToolDef = mcp.NewTool("resource_group_delete",
		mcp.WithDescription("Delete a resource group and detach it from every workspace."),
		mcp.WithNumber("group_id", mcp.Required()),
		mcp.WithDestructiveHintAnnotation(true),
	)
	resourceGroupListToolDef = mcp.NewTool("resource_group_list",
		mcp.WithDescription("List resource groups by name."),
		mcp.WithReadOnlyHintAnnotation(true),
	)
)

// Request types

// ResourceCreateRequest represents the arguments for resource_create.
type ResourceCreateRequest struct {
	URL         string   `json:"url"`
	Title       string   `json:"title,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Description *string  `json:"description,omitempty"`
}

// ResourceUpdateRequest represents the arguments for resource_update.
type ResourceUpdateRequest struct {
	ResourceID  int64     `json:"resource_id"`
	URL         *string   `json:"url,omitempty"`
	Title       *string   `json:"title,omitempty"`
	Tags        *[]string `json:"tags,omitempty"`
	Description *string   `json:"description,omitempty"`
}

// ResourceRequest addresses one resource.
type ResourceRequest struct {
	ResourceID int64 `json:"resource_id"`
}

// ResourceGroupCreateRequest represents the arguments for resource_group_create.
type ResourceGroupCreateRequest struct {
	Name        string  `json:"name"`
	ResourceIDs []int64 `json:"resource_ids,omitempty"`
}

// ResourceGroupUpdateRequest represents the arguments for resource_group_update.
type ResourceGroupUpdateRequest struct {
	GroupID     int64   `json:"group_id"`
	Name        *string `json:"name,omitempty"`
	ResourceIDs []int64 `json:"resource_ids,omitempty"`
}

// ResourceMembershipRequest represents the arguments for resource_group_add and resource_group_remove.
type ResourceMembershipRequest struct {
	GroupID    int64 `json:"group_id"`
	ResourceID int64 `json:"resource_id"`
}

// Handler implementations

// HandleResourceCreate handles the resource_create tool call.
func (h *Handlers) HandleResourceCreate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ResourceCreateRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.CreateResource(ctx, h.db, ops.CreateResourceInput{
		URL:         input.URL,
		Title:       input.Title,
		Tags:        input.Tags,
		Description: input.Description,
	})
	if err != nil {
		return h.fail(ctx, "resource_create", err), nil
	}
	return successResult(result)
}

// HandleResourceUpdate handles the resource_update tool call.
func (h *Handlers) HandleResourceUpdate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ResourceUpdateRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if err := requireID("resource_id", input.ResourceID); err != nil {
		return errorResult(err), nil
	}

	result, err := ops.UpdateResource(ctx, h.db, ops.UpdateResourceInput{
		ID:          input.ResourceID,
		URL:         input.URL,
		Title:       input.Title,
		Tags:        tagsArg(input.Tags),
		Description: input.Description,
	})
	if err != nil {
		return h.fail(ctx, "resource_update", err), nil
	}
	return successResult(result)
}

// HandleResourceDelete handles the resource_delete tool call.
func (h *Handlers) HandleResourceDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ResourceRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if err := requireID("resource_id", input.ResourceID); err != nil {
		return errorResult(err), nil
	}

	result, err := ops.DeleteResource(ctx, h.db, ops.DeleteResourceInput{ID: input.ResourceID})
	if err != nil {
		return h.fail(ctx, "resource_delete", err), nil
	}
	return successResult(result)
}

// HandleResourceList handles the resource_list tool call.
func (h *Handlers) HandleResourceList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	resources, err := ops.ListResources(ctx, h.db)
	if err != nil {
		return h.fail(ctx, "resource_list", err), nil
	}
	return listResult("resources", resources)
}

// HandleResourceGroupCreate handles the resource_group_create tool call.
func (h *Handlers) HandleResourceGroupCreate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ResourceGroupCreateRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.CreateResourceGroup(ctx, h.db, ops.CreateResourceGroupInput{
		Name:        input.Name,
		ResourceIDs: input.ResourceIDs,
	})
	if err != nil {
		return h.fail(ctx, "resource_group_create", err), nil
	}
	return successResult(result)
}

// HandleResourceGroupUpdate handles the resource_group_update tool call.
func (h *Handlers) HandleResourceGroupUpdate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ResourceGroupUpdateRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if err := requireID("group_id", input.GroupID); err != nil {
		return errorResult(err), nil
	}

	result, err := ops.UpdateResourceGroup(ctx, h.db, ops.UpdateResourceGroupInput{
		GroupID:     input.GroupID,
		Name:        input.Name,
		ResourceIDs: input.ResourceIDs,
	})
	if err != nil {
		return h.fail(ctx, "resource_group_update", err), nil
	}
	return successResult(result)
}

// HandleResourceGroupAdd handles the resource_group_add tool call.
func (h *Handlers) HandleResourceGroupAdd(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ResourceMembershipRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.AddResourceToGroup(ctx, h.db, ops.ResourceMembershipInput{
		GroupID:    input.GroupID,
		ResourceID: input.ResourceID,
	})
	if err != nil {
		return h.fail(ctx, "resource_group_add", err), nil
	}
	return successResult(result)
}

// HandleResourceGroupRemove handles the resource_group_remove tool call.
func (h *Handlers) HandleResourceGroupRemove(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ResourceMembershipRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.RemoveResourceFromGroup(ctx, h.db, ops.ResourceMembershipInput{
		GroupID:    input.GroupID,
		ResourceID: input.ResourceID,
	})
	if err != nil {
		return h.fail(ctx, "resource_group_remove", err), nil
	}
	return successResult(result)
}

// HandleResourceGroupDelete handles the resource_group_delete tool call.
func (h *Handlers) HandleResourceGroupDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[GroupRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if err := requireID("group_id", input.GroupID); err != nil {
		return errorResult(err), nil
	}

	result, err := ops.DeleteResourceGroup(ctx, h.db, ops.DeleteResourceGroupInput{GroupID: input.GroupID})
	if err != nil {
		return h.fail(ctx, "resource_group_delete", err), nil
	}
	return successResult(result)
}

// HandleResourceGroupList handles the resource_group_list tool call.
func (h *Handlers) HandleResourceGroupList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	groups, err := ops.ListResourceGroups(ctx, h.db)
	if err != nil {
		return h.fail(ctx, "resource_group_list", err), nil
	}
	return listResult("groups", groups)
}
