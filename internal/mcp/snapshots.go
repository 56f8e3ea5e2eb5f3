package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/lmdevv/tabby-sub002/internal/errors"
	"github.com/lmdevv/tabby-sub002/internal/ops"
)

var (
	snapshotCaptureToolDef = mcp.NewTool("snapshot_capture",
		mcp.WithDescription("Capture an immutable copy of a workspace's windows, tab groups and tabs."),
		mcp.WithNumber("workspace_id", mcp.Required()),
		mcp.WithString("label"),
	)
	snapshotFetchToolDef = mcp.NewTool("snapshot_fetch",
		mcp.WithDescription("Fetch a snapshot with its window/group/tab topology."),
		mcp.WithNumber("snapshot_id", mcp.Required()),
		mcp.WithReadOnlyHintAnnotation(true),
	)
	snapshotListToolDef = mcp.NewTool("snapshot_list",
		mcp.WithDescription("List the snapshots of a workspace, newest first."),
		mcp.WithNumber("workspace_id", mcp.Required()),
		mcp.WithReadOnlyHintAnnotation(true),
	)
	snapshotDeleteToolDef = mcp.NewTool("snapshot_delete",
		mcp.WithDescription("Delete a snapshot."),
		mcp.WithNumber("snapshot_id", mcp.Required()),
		mcp.WithDestructiveHintAnnotation(true),
	)
	snapshotPurgeToolDef = mcp.NewTool("snapshot_purge",
		mcp.WithDescription("Delete snapshots older than the retention window."),
		mcp.WithNumber("older_than_days", mcp.Description("Override the configured retention")),
		mcp.WithDestructiveHintAnnotation(true),
	)
	snapshotExportToolDef = mcp.NewTool("snapshot_export",
		mcp.WithDescription("Render a snapshot as json, yaml or markdown. With path, the export is written into the exports directory; otherwise it is returned inline."),
		mcp.WithNumber("snapshot_id", mcp.Required()),
		mcp.WithString("format", mcp.Enum("json", "yaml", "markdown")),
		mcp.WithString("path", mcp.Description("File name inside the exports directory")),
	)
)

// Request types

// SnapshotCaptureRequest represents the arguments for snapshot_capture.
type SnapshotCaptureRequest struct {
	WorkspaceID int64   `json:"workspace_id"`
	Label       *string `json:"label,omitempty"`
}

// SnapshotRequest addresses one snapshot.
type SnapshotRequest struct {
	SnapshotID int64 `json:"snapshot_id"`
}

// SnapshotPurgeRequest represents the arguments for snapshot_purge.
type SnapshotPurgeRequest struct {
	OlderThanDays *int `json:"older_than_days,omitempty"`
}

// SnapshotExportRequest represents the arguments for snapshot_export.
type SnapshotExportRequest struct {
	SnapshotID int64  `json:"snapshot_id"`
	Format     string `json:"format,omitempty"`
	Path       string `json:"path,omitempty"`
}

// Handler implementations

// HandleSnapshotCapture handles the snapshot_capture tool call.
func (h *Handlers) HandleSnapshotCapture(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SnapshotCaptureRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if err := requireID("workspace_id", input.WorkspaceID); err != nil {
		return errorResult(err), nil
	}

	result, err := ops.CaptureSnapshot(ctx, h.db, ops.CaptureSnapshotInput{
		WorkspaceID: input.WorkspaceID,
		Label:       input.Label,
	})
	if err != nil {
		return h.fail(ctx, "snapshot_capture", err), nil
	}
	return successResult(result)
}

// HandleSnapshotFetch handles the snapshot_fetch tool call.
func (h *Handlers) HandleSnapshotFetch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SnapshotRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if err := requireID("snapshot_id", input.SnapshotID); err != nil {
		return errorResult(err), nil
	}

	result, err := ops.FetchSnapshot(ctx, h.db, ops.FetchSnapshotInput{SnapshotID: input.SnapshotID})
	if err != nil {
		return h.fail(ctx, "snapshot_fetch", err), nil
	}
	return successResult(result)
}

// HandleSnapshotList handles the snapshot_list tool call.
func (h *Handlers) HandleSnapshotList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[WorkspaceRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if err := requireID("workspace_id", input.WorkspaceID); err != nil {
		return errorResult(err), nil
	}

	result, err := ops.ListSnapshots(ctx, h.db, ops.ListSnapshotsInput{WorkspaceID: input.WorkspaceID})
	if err != nil {
		return h.fail(ctx, "snapshot_list", err), nil
	}
	return successResult(result)
}

// HandleSnapshotDelete handles the snapshot_delete tool call.
func (h *Handlers) HandleSnapshotDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SnapshotRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if err := requireID("snapshot_id", input.SnapshotID); err != nil {
		return errorResult(err), nil
	}

	result, err := ops.DeleteSnapshot(ctx, h.db, ops.DeleteSnapshotInput{SnapshotID: input.SnapshotID})
	if err != nil {
		return h.fail(ctx, "snapshot_delete", err), nil
	}
	return successResult(result)
}

// HandleSnapshotPurge handles the snapshot_purge tool call.
func (h *Handlers) HandleSnapshotPurge(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SnapshotPurgeRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.PurgeSnapshots(ctx, h.db, h.cfg, ops.PurgeSnapshotsInput{OlderThanDays: input.OlderThanDays})
	if err != nil {
		return h.fail(ctx, "snapshot_purge", err), nil
	}
	return successResult(result)
}

// HandleSnapshotExport handles the snapshot_export tool call.
func (h *Handlers) HandleSnapshotExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SnapshotExportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if err := requireID("snapshot_id", input.SnapshotID); err != nil {
		return errorResult(err), nil
	}

	result, err := ops.ExportSnapshot(ctx, h.db, h.exportsDir, ops.ExportSnapshotInput{
		SnapshotID: input.SnapshotID,
		Format:     input.Format,
		Path:       input.Path,
	})
	if err != nil {
		return h.fail(ctx, "snapshot_export", err), nil
	}
	return successResult(result)
}
