package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/lmdevv/tabby-sub002/internal/errors"
	"github.com/lmdevv/tabby-sub002/internal/ops"
)

var (
	settingGetToolDef = mcp.NewTool("setting_get",
		mcp.WithDescription("Get a setting by key."),
		mcp.WithString("key", mcp.Required()),
		mcp.WithReadOnlyHintAnnotation(true),
	)
	settingSetToolDef = mcp.NewTool("setting_set",
		mcp.WithDescription("Create or replace a setting."),
		mcp.WithString("key", mcp.Required()),
		mcp.WithString("value", mcp.Required()),
	)
	settingListToolDef = mcp.NewTool("setting_list",
		mcp.WithDescription("List every setting ordered by key."),
		mcp.WithReadOnlyHintAnnotation(true),
	)
	settingDeleteToolDef = mcp.NewTool("setting_delete",
		mcp.WithDescription("Delete a setting."),
		mcp.WithString("key", mcp.Required()),
		mcp.WithDestructiveHintAnnotation(true),
	)
)

// SettingRequest represents the arguments for setting_get and setting_delete.
type SettingRequest struct {
	Key string `json:"key"`
}

// SettingSetRequest represents the arguments for setting_set.
type SettingSetRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// HandleSettingGet handles the setting_get tool call.
func (h *Handlers) HandleSettingGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SettingRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	result, err := ops.GetSetting(ctx, h.db, ops.SettingInput{Key: input.Key})
	if err != nil {
		return h.fail(ctx, "setting_get", err), nil
	}
	return successResult(result)
}

// HandleSettingSet handles the setting_set tool call.
func (h *Handlers) HandleSettingSet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SettingSetRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	result, err := ops.SetSetting(ctx, h.db, ops.SetSettingInput{Key: input.Key, Value: input.Value})
	if err != nil {
		return h.fail(ctx, "setting_set", err), nil
	}
	return successResult(result)
}

// HandleSettingList handles the setting_list tool call.
func (h *Handlers) HandleSettingList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	settings, err := ops.ListSettings(ctx, h.db)
	if err != nil {
		return h.fail(ctx, "setting_list", err), nil
	}
	return listResult("settings", settings)
}

// HandleSettingDelete handles the setting_delete tool call.
func (h *Handlers) HandleSettingDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SettingRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	result, err := ops.DeleteSetting(ctx, h.db, ops.SettingInput{Key: input.Key})
	if err != nil {
		return h.fail(ctx, "setting_delete", err), nil
	}
	return successResult(result)
}
