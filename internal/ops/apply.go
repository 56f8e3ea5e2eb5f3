package ops

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lmdevv/tabby-sub002/internal/config"
	"github.com/lmdevv/tabby-sub002/internal/db"
	"github.com/lmdevv/tabby-sub002/internal/errors"
	"github.com/lmdevv/tabby-sub002/internal/grouping"
	"github.com/lmdevv/tabby-sub002/internal/identity"
	"github.com/lmdevv/tabby-sub002/internal/metrics"
	"github.com/lmdevv/tabby-sub002/internal/model"
)

// ApplyGroupingInput contains parameters for the ApplyGrouping operation.
type ApplyGroupingInput struct {
	WorkspaceID int64
	Response    *grouping.Response // required, already decoded
	DryRun      bool               // validate and plan without writing
}

// AppliedGroup is one group of an applied (or planned) grouping.
type AppliedGroup struct {
	GroupID  int64   `json:"group_id,omitempty"` // 0 for a planned new group
	StableID string  `json:"stable_id,omitempty"`
	Title    string  `json:"title"`
	Color    string  `json:"color"`
	WindowID int64   `json:"window_id"`
	TabIDs   []int64 `json:"tab_ids"`
	Created  bool    `json:"created"`
}

// ApplyGroupingOutput contains the result of the ApplyGrouping operation.
type ApplyGroupingOutput struct {
	WorkspaceID    int64          `json:"workspace_id"`
	Groups         []AppliedGroup `json:"groups"`
	Ungrouped      []int64        `json:"ungrouped"`
	GroupsCreated  int            `json:"groups_created"`
	GroupsReused   int            `json:"groups_reused"`
	GroupsArchived int64          `json:"groups_archived"`
	DryRun         bool           `json:"dry_run"`
}

// ApplyGrouping validates a grouping response against a freshly built
// context and, only if it has no violations at all, applies it in the same
// transaction. Active groups with the same title in the same window are
// reused; groups left without tabs are archived.
func ApplyGrouping(ctx context.Context, database *sql.DB, cfg *config.Config, input ApplyGroupingInput) (*ApplyGroupingOutput, error) {
	if input.Response == nil {
		return nil, errors.NewInvalidRequest("grouping response is required")
	}
	filter, err := managementFilter(cfg)
	if err != nil {
		return nil, err
	}

	out := &ApplyGroupingOutput{WorkspaceID: input.WorkspaceID, DryRun: input.DryRun}
	err = db.WithTx(ctx, database, func(tx *sql.Tx) error {
		c, err := grouping.BuildContext(ctx, tx, input.WorkspaceID, filter)
		if err != nil {
			return err
		}
		if err := grouping.Check(c, input.Response); err != nil {
			return err
		}
		return applyTx(ctx, tx, c, input.Response, input.DryRun, out)
	})
	if !input.DryRun {
		metrics.ObserveTransition(opApplyGrouping, err)
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func applyTx(ctx context.Context, tx *sql.Tx, c *grouping.Context, r *grouping.Response, dryRun bool, out *ApplyGroupingOutput) error {
	windowOf := make(map[int64]int64, len(c.Tabs))
	for _, t := range c.Tabs {
		windowOf[t.ID] = t.WindowID
	}

	existing, err := db.ListTabGroups(ctx, tx, db.TabGroupFilter{WorkspaceID: &c.WorkspaceID, Status: model.StatusActive})
	if err != nil {
		return err
	}
	reusable := make(map[string]*model.TabGroup, len(existing))
	for i := range existing {
		g := &existing[i]
		key := groupKey(g.Title, g.WindowID)
		if _, ok := reusable[key]; !ok {
			reusable[key] = g
		}
	}

	now := nowMillis()
	out.Groups = make([]AppliedGroup, 0, len(r.Groups))
	for _, rg := range r.Groups {
		if len(rg.TabIDs) == 0 {
			continue
		}
		window := windowOf[rg.TabIDs[0]]
		applied := AppliedGroup{Title: rg.Name, WindowID: window, TabIDs: rg.TabIDs}

		g, ok := reusable[groupKey(rg.Name, window)]
		switch {
		case ok:
			if rg.Color != "" && rg.Color != g.Color {
				g.Color = rg.Color
				g.UpdatedAt = now
				if !dryRun {
					if err := db.UpdateTabGroup(ctx, tx, g); err != nil {
						return err
					}
				}
			}
			out.GroupsReused++
		default:
			color := rg.Color
			if color == "" {
				color = model.DefaultGroupColor
			}
			g = &model.TabGroup{
				StableID:    identity.NewGroupStableID(),
				WorkspaceID: c.WorkspaceID,
				WindowID:    window,
				Title:       rg.Name,
				Color:       color,
				Status:      model.StatusActive,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			if !dryRun {
				if err := db.InsertTabGroup(ctx, tx, g); err != nil {
					return err
				}
			}
			reusable[groupKey(rg.Name, window)] = g
			applied.Created = true
			out.GroupsCreated++
		}

		applied.GroupID = g.ID
		applied.StableID = g.StableID
		applied.Color = g.Color
		applied.Title = g.Title
		out.Groups = append(out.Groups, applied)

		if !dryRun {
			id := g.ID
			if _, err := db.SetTabsGroup(ctx, tx, rg.TabIDs, &id, now); err != nil {
				return err
			}
		}
	}

	out.Ungrouped = append([]int64{}, r.UngroupedTabs...)
	if dryRun {
		return nil
	}
	if _, err := db.SetTabsGroup(ctx, tx, r.UngroupedTabs, nil, now); err != nil {
		return err
	}
	out.GroupsArchived, err = db.ArchiveEmptyGroups(ctx, tx, c.WorkspaceID, now)
	return err
}

// groupKey matches group titles case-insensitively within one window.
func groupKey(title string, windowID int64) string {
	return fmt.Sprintf("%d\x00%s", windowID, strings.ToLower(model.CleanName(title)))
}

func managementFilter(cfg *config.Config) (*grouping.URLFilter, error) {
	if cfg == nil {
		return nil, nil
	}
	f, err := grouping.NewURLFilter(cfg.ManagementURLPatterns)
	if err != nil {
		return nil, errors.NewInvalidRequest(err.Error())
	}
	return f, nil
}
