package ops

import (
	"context"
	"database/sql"

	"github.com/lmdevv/tabby-sub002/internal/db"
	"github.com/lmdevv/tabby-sub002/internal/metrics"
	"github.com/lmdevv/tabby-sub002/internal/model"
)

// ActivateInput contains parameters for the Activate operation.
type ActivateInput struct {
	WorkspaceID int64
}

// ActivateOutput reports what the switch changed.
type ActivateOutput struct {
	Workspace       *model.Workspace `json:"workspace"`
	PreviousID      *int64           `json:"previous_id,omitempty"`
	TabsArchived    int64            `json:"tabs_archived"`
	GroupsArchived  int64            `json:"groups_archived"`
	TabsActivated   int64            `json:"tabs_activated"`
	GroupsActivated int64            `json:"groups_activated"`
}

// Activate makes one workspace the active one. Re-activating the active
// workspace only refreshes last_opened.
func Activate(ctx context.Context, database *sql.DB, input ActivateInput) (*ActivateOutput, error) {
	var out *ActivateOutput
	err := db.WithTx(ctx, database, func(tx *sql.Tx) error {
		var err error
		out, err = activateTx(ctx, tx, input.WorkspaceID, nowMillis())
		return err
	})
	metrics.ObserveTransition(opActivate, err)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// activateTx runs the four activation steps on q. Other workspaces' live
// tabs are archived before the target's archived tabs come back, so no
// point in the transaction has two workspaces with active tabs.
func activateTx(ctx context.Context, q db.Querier, workspaceID, now int64) (*ActivateOutput, error) {
	target, err := db.GetWorkspace(ctx, q, workspaceID)
	if err != nil {
		return nil, err
	}
	prev, err := db.GetActiveWorkspace(ctx, q)
	if err != nil {
		return nil, err
	}

	out := &ActivateOutput{}
	if prev != nil && prev.ID != workspaceID {
		out.PreviousID = &prev.ID
	}

	if err := db.DeactivateAllWorkspaces(ctx, q); err != nil {
		return nil, err
	}
	if err := db.SetWorkspaceActive(ctx, q, workspaceID, now); err != nil {
		return nil, err
	}

	if out.TabsArchived, err = db.ArchiveActiveTabsOutside(ctx, q, workspaceID, now); err != nil {
		return nil, err
	}
	if out.GroupsArchived, err = db.ArchiveActiveGroupsOutside(ctx, q, workspaceID, now); err != nil {
		return nil, err
	}

	if out.TabsActivated, err = db.SetWorkspaceTabStatus(ctx, q, workspaceID, model.StatusArchived, model.StatusActive, now); err != nil {
		return nil, err
	}
	if out.GroupsActivated, err = db.SetWorkspaceGroupStatus(ctx, q, workspaceID, model.StatusArchived, model.StatusActive, now); err != nil {
		return nil, err
	}

	target.Active = true
	target.LastOpened = now
	out.Workspace = target
	return out, nil
}

// EnsureActiveOutput contains the result of EnsureActive.
type EnsureActiveOutput struct {
	Workspace *model.Workspace `json:"workspace,omitempty"`
	Activated bool             `json:"activated"`
}

// EnsureActive activates the most recently opened workspace when none is
// active. With no workspaces at all it returns an empty result.
func EnsureActive(ctx context.Context, database *sql.DB) (*EnsureActiveOutput, error) {
	out := &EnsureActiveOutput{}
	err := db.WithTx(ctx, database, func(tx *sql.Tx) error {
		active, err := db.GetActiveWorkspace(ctx, tx)
		if err != nil {
			return err
		}
		if active != nil {
			out.Workspace = active
			return nil
		}

		recent, err := db.MostRecentWorkspace(ctx, tx)
		if err != nil || recent == nil {
			return err
		}
		res, err := activateTx(ctx, tx, recent.ID, nowMillis())
		if err != nil {
			return err
		}
		out.Workspace = res.Workspace
		out.Activated = true
		return nil
	})
	metrics.ObserveTransition(opEnsureActive, err)
	if err != nil {
		return nil, err
	}
	return out, nil
}
