package ops

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	"github.com/lmdevv/tabby-sub002/internal/config"
	"github.com/lmdevv/tabby-sub002/internal/db"
	"github.com/lmdevv/tabby-sub002/internal/errors"
	"github.com/lmdevv/tabby-sub002/internal/grouping"
)

// OrganizeInput contains parameters for the Organize operation.
type OrganizeInput struct {
	WorkspaceID *int64 // optional, default: the active workspace
	Instruction string // optional, default: grouping.DefaultInstruction
	DryRun      bool
}

// OrganizeOutput contains the result of the Organize operation.
type OrganizeOutput struct {
	Response *grouping.Response   `json:"response"`
	Applied  *ApplyGroupingOutput `json:"applied"`
}

// Organize asks the grouping model to organize a workspace's live tabs and
// applies the answer through ApplyGrouping. The model call happens outside
// any transaction; the response is re-validated against the state at commit
// time, so tabs that changed in the meantime cause a VALIDATION_FAILED.
func Organize(ctx context.Context, database *sql.DB, cfg *config.Config, grouper grouping.Grouper, logger *zap.Logger, input OrganizeInput) (*OrganizeOutput, error) {
	if grouper == nil {
		return nil, errors.NewInvalidRequest("no grouping model is configured")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	workspaceID, err := resolveWorkspaceID(ctx, database, input.WorkspaceID)
	if err != nil {
		return nil, err
	}
	filter, err := managementFilter(cfg)
	if err != nil {
		return nil, err
	}

	c, err := grouping.BuildContext(ctx, database, workspaceID, filter)
	if err != nil {
		return nil, err
	}
	if len(c.Tabs) == 0 {
		return nil, errors.NewInvalidRequest("workspace has no live tabs to organize")
	}

	raw, err := grouper.Group(ctx, c, input.Instruction)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.NewCancelled("organize")
		}
		logger.Warn("grouping model call failed",
			zap.Int64("workspace_id", workspaceID),
			zap.Int("tabs", len(c.Tabs)),
			zap.Error(err))
		return nil, errors.NewUpstreamFailed("grouping model", err)
	}

	resp, err := grouping.DecodeResponse(raw)
	if err != nil {
		logger.Warn("grouping model returned a malformed response",
			zap.Int64("workspace_id", workspaceID),
			zap.Int("bytes", len(raw)))
		return nil, err
	}

	// The caller may still walk away before anything is written.
	if ctx.Err() != nil {
		return nil, errors.NewCancelled("organize")
	}

	applied, err := ApplyGrouping(ctx, database, cfg, ApplyGroupingInput{
		WorkspaceID: workspaceID,
		Response:    resp,
		DryRun:      input.DryRun,
	})
	if err != nil {
		if errors.Is(err, errors.ErrValidationFailed) {
			logger.Info("grouping response rejected", zap.Int64("workspace_id", workspaceID), zap.Error(err))
		}
		return nil, err
	}

	logger.Info("workspace organized",
		zap.Int64("workspace_id", workspaceID),
		zap.Int("groups", len(applied.Groups)),
		zap.Int("ungrouped", len(applied.Ungrouped)),
		zap.Bool("dry_run", input.DryRun))
	return &OrganizeOutput{Response: resp, Applied: applied}, nil
}

// resolveWorkspaceID returns id, or the active workspace when id is nil.
func resolveWorkspaceID(ctx context.Context, database *sql.DB, id *int64) (int64, error) {
	if id != nil {
		return *id, nil
	}
	active, err := db.GetActiveWorkspace(ctx, database)
	if err != nil {
		return 0, err
	}
	if active == nil {
		return 0, errors.NewInvalidRequest("no workspace is active; pass a workspace id")
	}
	return active.ID, nil
}
