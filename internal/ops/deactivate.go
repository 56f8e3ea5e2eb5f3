package ops

import (
	"context"
	"database/sql"

	"github.com/lmdevv/tabby-sub002/internal/db"
	"github.com/lmdevv/tabby-sub002/internal/metrics"
	"github.com/lmdevv/tabby-sub002/internal/model"
)

// DeactivateInput contains parameters for the Deactivate operation.
type DeactivateInput struct {
	WorkspaceID *int64 // optional, default: the active workspace
}

// DeactivateOutput contains the result of the Deactivate operation.
type DeactivateOutput struct {
	WorkspaceID    int64 `json:"workspace_id,omitempty"`
	WasActive      bool  `json:"was_active"`
	TabsArchived   int64 `json:"tabs_archived"`
	GroupsArchived int64 `json:"groups_archived"`
}

// Deactivate closes a workspace: its live tabs and groups are archived and
// no replacement is activated. Closing when nothing is active is a no-op.
func Deactivate(ctx context.Context, database *sql.DB, input DeactivateInput) (*DeactivateOutput, error) {
	out := &DeactivateOutput{}
	err := db.WithTx(ctx, database, func(tx *sql.Tx) error {
		var target *model.Workspace
		var err error
		if input.WorkspaceID != nil {
			target, err = db.GetWorkspace(ctx, tx, *input.WorkspaceID)
		} else {
			target, err = db.GetActiveWorkspace(ctx, tx)
		}
		if err != nil || target == nil {
			return err
		}

		now := nowMillis()
		out.WorkspaceID = target.ID
		out.WasActive = target.Active
		if target.Active {
			if err := db.SetWorkspaceInactive(ctx, tx, target.ID); err != nil {
				return err
			}
		}
		if out.TabsArchived, err = db.SetWorkspaceTabStatus(ctx, tx, target.ID, model.StatusActive, model.StatusArchived, now); err != nil {
			return err
		}
		if out.GroupsArchived, err = db.SetWorkspaceGroupStatus(ctx, tx, target.ID, model.StatusActive, model.StatusArchived, now); err != nil {
			return err
		}
		return nil
	})
	metrics.ObserveTransition(opDeactivate, err)
	if err != nil {
		return nil, err
	}
	return out, nil
}
