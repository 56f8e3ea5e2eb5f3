package ops

import (
	"context"
	"database/sql"

	"github.com/lmdevv/tabby-sub002/internal/db"
	"github.com/lmdevv/tabby-sub002/internal/model"
)

// CreateWorkspaceGroupInput contains parameters for the CreateWorkspaceGroup operation.
type CreateWorkspaceGroupInput struct {
	Name      string
	Icon      *string
	Collapsed bool
}

// CreateWorkspaceGroup creates a UI folder for workspaces.
func CreateWorkspaceGroup(ctx context.Context, database *sql.DB, input CreateWorkspaceGroupInput) (*model.WorkspaceGroup, error) {
	name, err := requireName("workspace group", input.Name)
	if err != nil {
		return nil, err
	}
	icon, err := optionalText("icon", input.Icon)
	if err != nil {
		return nil, err
	}

	g := &model.WorkspaceGroup{Name: name, Icon: icon, Collapsed: input.Collapsed}
	if err := db.InsertWorkspaceGroup(ctx, database, g); err != nil {
		return nil, err
	}
	return g, nil
}

// UpdateWorkspaceGroupInput contains parameters for the UpdateWorkspaceGroup operation.
type UpdateWorkspaceGroupInput struct {
	ID        int64
	Name      *string
	Icon      *string // blank clears
	Collapsed *bool
}

// UpdateWorkspaceGroup renames a group, sets its icon or toggles collapsed.
func UpdateWorkspaceGroup(ctx context.Context, database *sql.DB, input UpdateWorkspaceGroupInput) (*model.WorkspaceGroup, error) {
	var name string
	if input.Name != nil {
		var err error
		if name, err = requireName("workspace group", *input.Name); err != nil {
			return nil, err
		}
	}
	icon, err := optionalText("icon", input.Icon)
	if err != nil {
		return nil, err
	}

	var g *model.WorkspaceGroup
	err = db.WithTx(ctx, database, func(tx *sql.Tx) error {
		var err error
		if g, err = db.GetWorkspaceGroup(ctx, tx, input.ID); err != nil {
			return err
		}
		if input.Name != nil {
			g.Name = name
		}
		if input.Icon != nil {
			g.Icon = icon
		}
		if input.Collapsed != nil {
			g.Collapsed = *input.Collapsed
		}
		return db.UpdateWorkspaceGroup(ctx, tx, g)
	})
	if err != nil {
		return nil, err
	}
	return g, nil
}

// DeleteWorkspaceGroupInput contains parameters for the DeleteWorkspaceGroup operation.
type DeleteWorkspaceGroupInput struct {
	ID int64
}

// DeleteWorkspaceGroupOutput contains the result of the DeleteWorkspaceGroup operation.
type DeleteWorkspaceGroupOutput struct {
	DeletedID int64 `json:"deleted_id"`
}

// DeleteWorkspaceGroup removes a group. Its workspaces become ungrouped.
func DeleteWorkspaceGroup(ctx context.Context, database *sql.DB, input DeleteWorkspaceGroupInput) (*DeleteWorkspaceGroupOutput, error) {
	if err := db.DeleteWorkspaceGroup(ctx, database, input.ID); err != nil {
		return nil, err
	}
	return &DeleteWorkspaceGroupOutput{DeletedID: input.ID}, nil
}

// ListWorkspaceGroups returns every workspace group ordered by name.
func ListWorkspaceGroups(ctx context.Context, database *sql.DB) ([]model.WorkspaceGroup, error) {
	return db.ListWorkspaceGroups(ctx, database)
}
