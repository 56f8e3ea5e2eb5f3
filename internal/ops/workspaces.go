package ops

import (
	"context"
	"database/sql"

	"github.com/lmdevv/tabby-sub002/internal/db"
	"github.com/lmdevv/tabby-sub002/internal/metrics"
	"github.com/lmdevv/tabby-sub002/internal/model"
)

// CreateWorkspaceInput contains parameters for the CreateWorkspace operation.
type CreateWorkspaceInput struct {
	Name        string // required
	Description *string
	GroupID     *int64
	Activate    bool // activate in the same transaction
}

// CreateWorkspaceOutput contains the result of the CreateWorkspace operation.
type CreateWorkspaceOutput struct {
	Workspace  *model.Workspace `json:"workspace"`
	Activation *ActivateOutput  `json:"activation,omitempty"`
}

// CreateWorkspace inserts a new, inactive workspace and optionally activates it.
func CreateWorkspace(ctx context.Context, database *sql.DB, input CreateWorkspaceInput) (*CreateWorkspaceOutput, error) {
	name, err := requireName("workspace", input.Name)
	if err != nil {
		return nil, err
	}
	desc, err := optionalText("description", input.Description)
	if err != nil {
		return nil, err
	}

	out := &CreateWorkspaceOutput{}
	err = db.WithTx(ctx, database, func(tx *sql.Tx) error {
		now := nowMillis()
		w := &model.Workspace{
			GroupID:          input.GroupID,
			Name:             name,
			Description:      desc,
			CreatedAt:        now,
			LastOpened:       now,
			ResourceGroupIDs: []int64{},
		}
		if err := db.InsertWorkspace(ctx, tx, w); err != nil {
			return err
		}
		out.Workspace = w

		if input.Activate {
			res, err := activateTx(ctx, tx, w.ID, now)
			if err != nil {
				return err
			}
			out.Workspace = res.Workspace
			out.Activation = res
		}
		return nil
	})
	metrics.ObserveTransition(opCreate, err)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateWorkspaceInput contains parameters for the UpdateWorkspace operation.
// Nil fields are left unchanged.
type UpdateWorkspaceInput struct {
	WorkspaceID int64
	Name        *string
	Description *string // blank clears
	GroupID     *int64
	Ungroup     bool // remove from its workspace group
}

// UpdateWorkspace renames a workspace, edits its description or moves it
// between workspace groups. Activity is never touched here.
func UpdateWorkspace(ctx context.Context, database *sql.DB, input UpdateWorkspaceInput) (*model.Workspace, error) {
	var (
		name string
		err  error
	)
	if input.Name != nil {
		if name, err = requireName("workspace", *input.Name); err != nil {
			return nil, err
		}
	}
	desc, err := optionalText("description", input.Description)
	if err != nil {
		return nil, err
	}

	var w *model.Workspace
	err = db.WithTx(ctx, database, func(tx *sql.Tx) error {
		var err error
		if w, err = db.GetWorkspace(ctx, tx, input.WorkspaceID); err != nil {
			return err
		}
		if input.Name != nil {
			w.Name = name
		}
		if input.Description != nil {
			w.Description = desc
		}
		switch {
		case input.Ungroup:
			w.GroupID = nil
		case input.GroupID != nil:
			w.GroupID = input.GroupID
		}
		return db.UpdateWorkspace(ctx, tx, w)
	})
	if err != nil {
		return nil, err
	}
	return w, nil
}

// WorkspaceSummary is a workspace with its tab counts.
type WorkspaceSummary struct {
	model.Workspace
	ActiveTabs   int `json:"active_tabs"`
	ArchivedTabs int `json:"archived_tabs"`
}

// GetWorkspaceInput contains parameters for the GetWorkspace operation.
type GetWorkspaceInput struct {
	WorkspaceID int64
}

// GetWorkspace returns one workspace with its tab counts.
func GetWorkspace(ctx context.Context, database *sql.DB, input GetWorkspaceInput) (*WorkspaceSummary, error) {
	w, err := db.GetWorkspace(ctx, database, input.WorkspaceID)
	if err != nil {
		return nil, err
	}
	active, err := db.CountTabsByWorkspace(ctx, database, model.StatusActive)
	if err != nil {
		return nil, err
	}
	archived, err := db.CountTabsByWorkspace(ctx, database, model.StatusArchived)
	if err != nil {
		return nil, err
	}
	return &WorkspaceSummary{Workspace: *w, ActiveTabs: active[w.ID], ArchivedTabs: archived[w.ID]}, nil
}

// ListWorkspacesOutput contains the result of the ListWorkspaces operation.
type ListWorkspacesOutput struct {
	Workspaces []WorkspaceSummary `json:"workspaces"`
	ActiveID   *int64             `json:"active_id,omitempty"`

	// UnassignedTabs counts tabs parked on the unassigned sentinel.
	UnassignedTabs int `json:"unassigned_tabs"`
}

// ListWorkspaces returns every workspace, most recently opened first.
func ListWorkspaces(ctx context.Context, database *sql.DB) (*ListWorkspacesOutput, error) {
	workspaces, err := db.ListWorkspaces(ctx, database)
	if err != nil {
		return nil, err
	}
	active, err := db.CountTabsByWorkspace(ctx, database, model.StatusActive)
	if err != nil {
		return nil, err
	}
	all, err := db.CountTabsByWorkspace(ctx, database, "")
	if err != nil {
		return nil, err
	}

	out := &ListWorkspacesOutput{
		Workspaces:     make([]WorkspaceSummary, 0, len(workspaces)),
		UnassignedTabs: all[model.Unassigned],
	}
	for _, w := range workspaces {
		if w.Active {
			id := w.ID
			out.ActiveID = &id
		}
		out.Workspaces = append(out.Workspaces, WorkspaceSummary{
			Workspace:    w,
			ActiveTabs:   active[w.ID],
			ArchivedTabs: all[w.ID] - active[w.ID],
		})
	}
	return out, nil
}
