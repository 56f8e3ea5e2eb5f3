package ops

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lmdevv/tabby-sub002/internal/db"
	"github.com/lmdevv/tabby-sub002/internal/errors"
	"github.com/lmdevv/tabby-sub002/internal/metrics"
	"github.com/lmdevv/tabby-sub002/internal/model"
)

// ListTabsInput contains parameters for the ListTabs operation.
type ListTabsInput struct {
	WorkspaceID *int64 // optional; model.Unassigned lists parked tabs
	WindowID    *int64
	GroupID     *int64
	Status      string // "", "active" or "archived"
}

// ListTabsOutput contains the result of the ListTabs operation.
type ListTabsOutput struct {
	Tabs  []model.Tab `json:"tabs"`
	Count int         `json:"count"`
}

// ListTabs returns tabs ordered by window and index.
func ListTabs(ctx context.Context, database *sql.DB, input ListTabsInput) (*ListTabsOutput, error) {
	status, err := parseStatus(input.Status)
	if err != nil {
		return nil, err
	}
	if input.WorkspaceID != nil && *input.WorkspaceID != model.Unassigned {
		if _, err := db.GetWorkspace(ctx, database, *input.WorkspaceID); err != nil {
			return nil, err
		}
	}
	tabs, err := db.ListTabs(ctx, database, db.TabFilter{
		WorkspaceID: input.WorkspaceID,
		WindowID:    input.WindowID,
		GroupID:     input.GroupID,
		Status:      status,
	})
	if err != nil {
		return nil, err
	}
	return &ListTabsOutput{Tabs: tabs, Count: len(tabs)}, nil
}

// ListTabGroupsInput contains parameters for the ListTabGroups operation.
type ListTabGroupsInput struct {
	WorkspaceID *int64
	WindowID    *int64
	Status      string
}

// ListTabGroupsOutput contains the result of the ListTabGroups operation.
type ListTabGroupsOutput struct {
	Groups []model.TabGroup `json:"groups"`
	Count  int              `json:"count"`
}

// ListTabGroups returns tab groups ordered by window.
func ListTabGroups(ctx context.Context, database *sql.DB, input ListTabGroupsInput) (*ListTabGroupsOutput, error) {
	status, err := parseStatus(input.Status)
	if err != nil {
		return nil, err
	}
	groups, err := db.ListTabGroups(ctx, database, db.TabGroupFilter{
		WorkspaceID: input.WorkspaceID,
		WindowID:    input.WindowID,
		Status:      status,
	})
	if err != nil {
		return nil, err
	}
	return &ListTabGroupsOutput{Groups: groups, Count: len(groups)}, nil
}

// MoveTabsInput contains parameters for the MoveTabs operation.
type MoveTabsInput struct {
	TabIDs      []int64
	WorkspaceID int64 // target
}

// MoveTabsOutput contains the result of the MoveTabs operation.
type MoveTabsOutput struct {
	Moved          int64        `json:"moved"`
	WorkspaceID    int64        `json:"workspace_id"`
	Status         model.Status `json:"tab_status"`
	GroupsArchived int64        `json:"groups_archived"`
}

// MoveTabs reassigns tabs to another workspace. Moved tabs leave their group
// and take the target's activity: active if the target is the active
// workspace, archived otherwise. Tabs the browser closed stay archived. Groups
// left empty in a source workspace are archived.
func MoveTabs(ctx context.Context, database *sql.DB, input MoveTabsInput) (*MoveTabsOutput, error) {
	if len(input.TabIDs) == 0 {
		return nil, errors.NewInvalidRequest("tab_ids must not be empty")
	}
	if len(input.TabIDs) > MaxMoveTabs {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("at most %d tabs can be moved at once", MaxMoveTabs))
	}
	if dup, ok := firstDuplicate(input.TabIDs); ok {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("tab %d listed twice", dup))
	}

	out := &MoveTabsOutput{WorkspaceID: input.WorkspaceID}
	err := db.WithTx(ctx, database, func(tx *sql.Tx) error {
		target, err := db.GetWorkspace(ctx, tx, input.WorkspaceID)
		if err != nil {
			return err
		}

		sources := make(map[int64]bool)
		for _, id := range input.TabIDs {
			t, err := db.GetTab(ctx, tx, id)
			if err != nil {
				return err
			}
			if t.WorkspaceID != target.ID {
				sources[t.WorkspaceID] = true
			}
		}

		out.Status = model.StatusArchived
		if target.Active {
			out.Status = model.StatusActive
		}
		now := nowMillis()
		if out.Moved, err = db.MoveTabsToWorkspace(ctx, tx, input.TabIDs, target.ID, out.Status, now); err != nil {
			return err
		}
		for src := range sources {
			n, err := db.ArchiveEmptyGroups(ctx, tx, src, now)
			if err != nil {
				return err
			}
			out.GroupsArchived += n
		}
		return nil
	})
	metrics.ObserveTransition(opMoveTabs, err)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateTabMetaInput contains parameters for the UpdateTabMeta operation.
// Nil fields are left unchanged; an empty non-nil Tags clears them.
type UpdateTabMetaInput struct {
	TabID       int64
	Tags        []string
	Description *string
}

// UpdateTabMeta edits the user annotations of a tab. Browser-observed fields
// and the stable id are not touched.
func UpdateTabMeta(ctx context.Context, database *sql.DB, input UpdateTabMetaInput) (*model.Tab, error) {
	desc, err := optionalText("description", input.Description)
	if err != nil {
		return nil, err
	}

	var t *model.Tab
	err = db.WithTx(ctx, database, func(tx *sql.Tx) error {
		var err error
		if t, err = db.GetTab(ctx, tx, input.TabID); err != nil {
			return err
		}
		if input.Tags != nil {
			t.Tags = model.CleanTags(input.Tags)
		}
		if input.Description != nil {
			t.Description = desc
		}
		t.UpdatedAt = nowMillis()
		return db.UpdateTab(ctx, tx, t)
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}
