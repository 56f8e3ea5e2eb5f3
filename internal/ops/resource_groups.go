package ops

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lmdevv/tabby-sub002/internal/db"
	"github.com/lmdevv/tabby-sub002/internal/errors"
	"github.com/lmdevv/tabby-sub002/internal/model"
)

// CreateResourceGroupInput contains parameters for the CreateResourceGroup operation.
type CreateResourceGroupInput struct {
	Name        string
	ResourceIDs []int64 // optional initial members, in display order
}

// CreateResourceGroup creates an ordered list of bookmarks.
func CreateResourceGroup(ctx context.Context, database *sql.DB, input CreateResourceGroupInput) (*model.ResourceGroup, error) {
	name, err := requireName("resource group", input.Name)
	if err != nil {
		return nil, err
	}
	if dup, ok := firstDuplicate(input.ResourceIDs); ok {
		return nil, errors.NewConflict(fmt.Sprintf("resource %d listed twice", dup))
	}

	var g *model.ResourceGroup
	err = db.WithTx(ctx, database, func(tx *sql.Tx) error {
		for _, id := range input.ResourceIDs {
			if _, err := db.GetResource(ctx, tx, id); err != nil {
				return err
			}
		}
		now := nowMillis()
		g = &model.ResourceGroup{
			Name:        name,
			ResourceIDs: append([]int64{}, input.ResourceIDs...),
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		return db.InsertResourceGroup(ctx, tx, g)
	})
	if err != nil {
		return nil, err
	}
	return g, nil
}

// ResourceMembershipInput names one resource within one group.
type ResourceMembershipInput struct {
	GroupID    int64
	ResourceID int64
}

// AddResourceToGroup appends a resource. A resource appears at most once per group.
func AddResourceToGroup(ctx context.Context, database *sql.DB, input ResourceMembershipInput) (*model.ResourceGroup, error) {
	return editResourceGroup(ctx, database, input.GroupID, func(ctx context.Context, tx *sql.Tx, g *model.ResourceGroup) error {
		if contains(g.ResourceIDs, input.ResourceID) {
			return errors.NewConflict(fmt.Sprintf("resource %d is already in group %d", input.ResourceID, g.ID))
		}
		if _, err := db.GetResource(ctx, tx, input.ResourceID); err != nil {
			return err
		}
		g.ResourceIDs = append(g.ResourceIDs, input.ResourceID)
		return nil
	})
}

// RemoveResourceFromGroup removes a resource from a group without deleting it.
func RemoveResourceFromGroup(ctx context.Context, database *sql.DB, input ResourceMembershipInput) (*model.ResourceGroup, error) {
	return editResourceGroup(ctx, database, input.GroupID, func(_ context.Context, _ *sql.Tx, g *model.ResourceGroup) error {
		kept, removed := without(g.ResourceIDs, input.ResourceID)
		if !removed {
			return errors.NewNotFound(fmt.Sprintf("resource in group %d", g.ID), input.ResourceID)
		}
		g.ResourceIDs = kept
		return nil
	})
}

// UpdateResourceGroupInput contains parameters for the UpdateResourceGroup operation.
type UpdateResourceGroupInput struct {
	GroupID int64
	Name    *string

	// ResourceIDs, when set, must be an exact reordering of the current members.
	ResourceIDs []int64
}

// UpdateResourceGroup renames and/or reorders a group.
func UpdateResourceGroup(ctx context.Context, database *sql.DB, input UpdateResourceGroupInput) (*model.ResourceGroup, error) {
	var name string
	if input.Name != nil {
		var err error
		if name, err = requireName("resource group", *input.Name); err != nil {
			return nil, err
		}
	}
	return editResourceGroup(ctx, database, input.GroupID, func(_ context.Context, _ *sql.Tx, g *model.ResourceGroup) error {
		if input.Name != nil {
			g.Name = name
		}
		if input.ResourceIDs != nil {
			if !samePermutation(g.ResourceIDs, input.ResourceIDs) {
				return errors.NewInvalidRequest(fmt.Sprintf("resource_ids must reorder the current members [%s]", describeIDs(g.ResourceIDs)))
			}
			g.ResourceIDs = append([]int64{}, input.ResourceIDs...)
		}
		return nil
	})
}

func editResourceGroup(ctx context.Context, database *sql.DB, groupID int64, edit func(context.Context, *sql.Tx, *model.ResourceGroup) error) (*model.ResourceGroup, error) {
	var g *model.ResourceGroup
	err := db.WithTx(ctx, database, func(tx *sql.Tx) error {
		var err error
		if g, err = db.GetResourceGroup(ctx, tx, groupID); err != nil {
			return err
		}
		if err := edit(ctx, tx, g); err != nil {
			return err
		}
		g.UpdatedAt = nowMillis()
		return db.UpdateResourceGroup(ctx, tx, g)
	})
	if err != nil {
		return nil, err
	}
	return g, nil
}

// DeleteResourceGroupInput contains parameters for the DeleteResourceGroup operation.
type DeleteResourceGroupInput struct {
	GroupID int64
}

// DeleteResourceGroupOutput contains the result of the DeleteResourceGroup operation.
type DeleteResourceGroupOutput struct {
	DeletedID         int64 `json:"deleted_id"`
	WorkspacesUpdated int   `json:"workspaces_updated"`
}

// DeleteResourceGroup removes a group and detaches it from every workspace.
// Its resources are kept.
func DeleteResourceGroup(ctx context.Context, database *sql.DB, input DeleteResourceGroupInput) (*DeleteResourceGroupOutput, error) {
	out := &DeleteResourceGroupOutput{DeletedID: input.GroupID}
	err := db.WithTx(ctx, database, func(tx *sql.Tx) error {
		if err := db.DeleteResourceGroup(ctx, tx, input.GroupID); err != nil {
			return err
		}
		workspaces, err := db.ListWorkspaces(ctx, tx)
		if err != nil {
			return err
		}
		for i := range workspaces {
			w := &workspaces[i]
			kept, removed := without(w.ResourceGroupIDs, input.GroupID)
			if !removed {
				continue
			}
			w.ResourceGroupIDs = kept
			if err := db.UpdateWorkspace(ctx, tx, w); err != nil {
				return err
			}
			out.WorkspacesUpdated++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListResourceGroups returns every resource group ordered by name.
func ListResourceGroups(ctx context.Context, database *sql.DB) ([]model.ResourceGroup, error) {
	return db.ListResourceGroups(ctx, database)
}

// SetWorkspaceResourceGroupsInput contains parameters for the SetWorkspaceResourceGroups operation.
type SetWorkspaceResourceGroupsInput struct {
	WorkspaceID      int64
	ResourceGroupIDs []int64 // display order; empty detaches all
}

// SetWorkspaceResourceGroups replaces the ordered resource groups of a workspace.
// Every id must reference an existing resource group.
func SetWorkspaceResourceGroups(ctx context.Context, database *sql.DB, input SetWorkspaceResourceGroupsInput) (*model.Workspace, error) {
	if dup, ok := firstDuplicate(input.ResourceGroupIDs); ok {
		return nil, errors.NewConflict(fmt.Sprintf("resource group %d listed twice", dup))
	}

	var w *model.Workspace
	err := db.WithTx(ctx, database, func(tx *sql.Tx) error {
		var err error
		if w, err = db.GetWorkspace(ctx, tx, input.WorkspaceID); err != nil {
			return err
		}
		for _, id := range input.ResourceGroupIDs {
			if _, err := db.GetResourceGroup(ctx, tx, id); err != nil {
				return err
			}
		}
		w.ResourceGroupIDs = append([]int64{}, input.ResourceGroupIDs...)
		return db.UpdateWorkspace(ctx, tx, w)
	})
	if err != nil {
		return nil, err
	}
	return w, nil
}
