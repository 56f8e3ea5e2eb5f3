package ops

import (
	"context"
	"database/sql"

	"github.com/lmdevv/tabby-sub002/internal/db"
	"github.com/lmdevv/tabby-sub002/internal/metrics"
	"github.com/lmdevv/tabby-sub002/internal/model"
)

// DeleteWorkspaceInput contains parameters for the DeleteWorkspace operation.
type DeleteWorkspaceInput struct {
	WorkspaceID int64
}

// DeleteWorkspaceOutput contains the result of the DeleteWorkspace operation.
type DeleteWorkspaceOutput struct {
	DeletedID        int64            `json:"deleted_id"`
	WasActive        bool             `json:"was_active"`
	TabsUnassigned   int64            `json:"tabs_unassigned"`
	GroupsUnassigned int64            `json:"groups_unassigned"`
	Activated        *model.Workspace `json:"activated,omitempty"`
}

// DeleteWorkspace removes a workspace and its snapshots. Its tabs and groups
// move to the unassigned sentinel as archived rows. If it was the active
// workspace, the most recently opened remaining one is activated; deleting
// the last workspace leaves the store with none.
func DeleteWorkspace(ctx context.Context, database *sql.DB, input DeleteWorkspaceInput) (*DeleteWorkspaceOutput, error) {
	out := &DeleteWorkspaceOutput{DeletedID: input.WorkspaceID}
	err := db.WithTx(ctx, database, func(tx *sql.Tx) error {
		target, err := db.GetWorkspace(ctx, tx, input.WorkspaceID)
		if err != nil {
			return err
		}
		out.WasActive = target.Active

		// Orphans are reassigned before the row goes so no tab ever points
		// at a missing workspace, even inside the transaction.
		now := nowMillis()
		if out.TabsUnassigned, err = db.UnassignWorkspaceTabs(ctx, tx, target.ID, now); err != nil {
			return err
		}
		if out.GroupsUnassigned, err = db.UnassignWorkspaceGroups(ctx, tx, target.ID, now); err != nil {
			return err
		}
		if err := db.DeleteWorkspaceRow(ctx, tx, target.ID); err != nil {
			return err
		}

		if !target.Active {
			return nil
		}
		next, err := db.MostRecentWorkspace(ctx, tx)
		if err != nil || next == nil {
			return err
		}
		res, err := activateTx(ctx, tx, next.ID, now)
		if err != nil {
			return err
		}
		out.Activated = res.Workspace
		return nil
	})
	metrics.ObserveTransition(opDelete, err)
	if err != nil {
		return nil, err
	}
	return out, nil
}
