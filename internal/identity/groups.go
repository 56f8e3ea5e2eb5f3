package identity

import (
	"context"
	"database/sql"

	"github.com/lmdevv/tabby-sub002/internal/db"
	"github.com/lmdevv/tabby-sub002/internal/errors"
	"github.com/lmdevv/tabby-sub002/internal/metrics"
	"github.com/lmdevv/tabby-sub002/internal/model"
)

// GroupObservation is one browser report of a live tab group.
type GroupObservation struct {
	BrowserGroupID int64  `json:"browser_group_id"`
	StableID       string `json:"stable_id,omitempty"`
	WindowID       int64  `json:"window_id"`
	Title          string `json:"title"`
	Color          string `json:"color"`
	Collapsed      bool   `json:"collapsed"`
}

// ObserveGroupOutput is the durable row the observation resolved to.
type ObserveGroupOutput struct {
	Group   model.TabGroup `json:"group"`
	Outcome string         `json:"outcome"`
}

// ObserveGroup resolves a browser tab group to its durable row, creating one on first sight.
func ObserveGroup(ctx context.Context, database *sql.DB, obs GroupObservation) (*ObserveGroupOutput, error) {
	var out *ObserveGroupOutput
	err := db.WithTx(ctx, database, func(tx *sql.Tx) error {
		var err error
		out, err = observeGroup(ctx, tx, obs, nowMillis())
		return err
	})
	if err != nil {
		metrics.IdentityObservations.WithLabelValues("group", metrics.ResultError).Inc()
		return nil, err
	}
	metrics.IdentityObservations.WithLabelValues("group", out.Outcome).Inc()
	return out, nil
}

func observeGroup(ctx context.Context, tx *sql.Tx, obs GroupObservation, now int64) (*ObserveGroupOutput, error) {
	color := obs.Color
	if !model.ValidColor(color) {
		color = model.DefaultGroupColor
	}

	existing, outcome, err := findGroup(ctx, tx, obs)
	if err != nil {
		return nil, err
	}

	if existing == nil || existing.BrowserGroupID == nil || *existing.BrowserGroupID != obs.BrowserGroupID {
		if err := db.UnbindBrowserGroupID(ctx, tx, obs.BrowserGroupID); err != nil {
			return nil, err
		}
	}
	browserID := obs.BrowserGroupID

	if existing == nil {
		active, err := db.GetActiveWorkspace(ctx, tx)
		if err != nil {
			return nil, err
		}
		workspaceID := model.Unassigned
		if active != nil {
			workspaceID = active.ID
		}

		stableID := NewGroupStableID()
		if ValidStableID(GroupPrefix, obs.StableID) {
			taken, err := groupStableIDTaken(ctx, tx, obs.StableID)
			if err != nil {
				return nil, err
			}
			if !taken {
				stableID = obs.StableID
			}
		}

		g := &model.TabGroup{
			StableID:       stableID,
			WorkspaceID:    workspaceID,
			WindowID:       obs.WindowID,
			Title:          obs.Title,
			Color:          color,
			Collapsed:      obs.Collapsed,
			Status:         model.StatusActive,
			BrowserGroupID: &browserID,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := db.InsertTabGroup(ctx, tx, g); err != nil {
			return nil, err
		}
		return &ObserveGroupOutput{Group: *g, Outcome: OutcomeCreated}, nil
	}

	existing.BrowserGroupID = &browserID
	existing.WindowID = obs.WindowID
	existing.Title = obs.Title
	existing.Color = color
	existing.Collapsed = obs.Collapsed
	existing.UpdatedAt = now

	if existing.Status == model.StatusArchived {
		active, err := db.GetActiveWorkspace(ctx, tx)
		if err != nil {
			return nil, err
		}
		if active != nil && active.ID == existing.WorkspaceID {
			existing.Status = model.StatusActive
		}
	}

	if err := db.UpdateTabGroup(ctx, tx, existing); err != nil {
		return nil, err
	}
	return &ObserveGroupOutput{Group: *existing, Outcome: outcome}, nil
}

// findGroup mirrors findTab: a remembered stable id never takes a row bound
// to another live browser group.
func findGroup(ctx context.Context, q db.Querier, obs GroupObservation) (*model.TabGroup, string, error) {
	if obs.StableID != "" {
		g, err := db.GetTabGroupByStableID(ctx, q, obs.StableID)
		switch {
		case err == nil && g.BrowserGroupID == nil:
			return g, OutcomeRebound, nil
		case err == nil && *g.BrowserGroupID == obs.BrowserGroupID:
			return g, OutcomeResolved, nil
		case err != nil && !errors.Is(err, errors.ErrNotFound):
			return nil, "", err
		}
	}

	g, err := db.GetTabGroupByBrowserID(ctx, q, obs.BrowserGroupID)
	if err == nil {
		return g, OutcomeResolved, nil
	}
	if errors.Is(err, errors.ErrNotFound) {
		return nil, OutcomeCreated, nil
	}
	return nil, "", err
}

func groupStableIDTaken(ctx context.Context, q db.Querier, stableID string) (bool, error) {
	_, err := db.GetTabGroupByStableID(ctx, q, stableID)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, errors.ErrNotFound) {
		return false, nil
	}
	return false, err
}

// RemoveGroup records that a browser tab group went away. The group is
// archived and unbound; its active tabs are ungrouped.
func RemoveGroup(ctx context.Context, database *sql.DB, browserGroupID int64) (*model.TabGroup, error) {
	var removed *model.TabGroup
	err := db.WithTx(ctx, database, func(tx *sql.Tx) error {
		g, err := db.GetTabGroupByBrowserID(ctx, tx, browserGroupID)
		if err != nil {
			return err
		}
		now := nowMillis()

		members, err := db.ListTabs(ctx, tx, db.TabFilter{GroupID: &g.ID, Status: model.StatusActive})
		if err != nil {
			return err
		}
		ids := make([]int64, len(members))
		for i, t := range members {
			ids[i] = t.ID
		}
		if _, err := db.SetTabsGroup(ctx, tx, ids, nil, now); err != nil {
			return err
		}

		g.Status = model.StatusArchived
		g.BrowserGroupID = nil
		g.UpdatedAt = now
		if err := db.UpdateTabGroup(ctx, tx, g); err != nil {
			return err
		}
		removed = g
		return nil
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}
