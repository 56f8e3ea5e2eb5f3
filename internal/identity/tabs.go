package identity

import (
	"context"
	"database/sql"

	"github.com/lmdevv/tabby-sub002/internal/db"
	"github.com/lmdevv/tabby-sub002/internal/errors"
	"github.com/lmdevv/tabby-sub002/internal/metrics"
	"github.com/lmdevv/tabby-sub002/internal/model"
)

// Observation outcomes, also used as metric labels.
const (
	OutcomeCreated  = "created"
	OutcomeResolved = "resolved"
	OutcomeRebound  = "rebound"
)

// TabObservation is one browser report of a live tab.
type TabObservation struct {
	BrowserTabID int64 `json:"browser_tab_id"`

	// StableID is the value the browser persisted for this tab in a previous
	// session, if any. It lets a restarted browser re-bind to the same row.
	StableID string `json:"stable_id,omitempty"`

	WindowID int64  `json:"window_id"`
	Index    int    `json:"index"`
	URL      string `json:"url"`
	Title    string `json:"title"`

	// BrowserGroupID is the ephemeral id of the tab's group (nil when ungrouped).
	BrowserGroupID *int64 `json:"browser_group_id,omitempty"`
}

// ObserveTabOutput is the durable row the observation resolved to.
type ObserveTabOutput struct {
	Tab     model.Tab `json:"tab"`
	Outcome string    `json:"outcome"`
}

// ObserveTab resolves a browser tab to its durable row, creating one on first sight.
//
// Resolution order: the browser-persisted stable id, then the current session
// binding. Resolving updates url, title, index, window and group without
// touching stable_id or created_at. New tabs join the active workspace, or
// stay unassigned when none is active.
func ObserveTab(ctx context.Context, database *sql.DB, obs TabObservation) (*ObserveTabOutput, error) {
	if obs.URL == "" {
		return nil, errors.NewInvalidRequest("url is required")
	}

	var out *ObserveTabOutput
	err := db.WithTx(ctx, database, func(tx *sql.Tx) error {
		var err error
		out, err = observeTab(ctx, tx, obs, nowMillis())
		return err
	})
	if err != nil {
		metrics.IdentityObservations.WithLabelValues("tab", metrics.ResultError).Inc()
		return nil, err
	}
	metrics.IdentityObservations.WithLabelValues("tab", out.Outcome).Inc()
	return out, nil
}

func observeTab(ctx context.Context, tx *sql.Tx, obs TabObservation, now int64) (*ObserveTabOutput, error) {
	groupID, err := resolveBrowserGroup(ctx, tx, obs.BrowserGroupID)
	if err != nil {
		return nil, err
	}

	existing, outcome, err := findTab(ctx, tx, obs)
	if err != nil {
		return nil, err
	}

	if existing == nil {
		active, err := db.GetActiveWorkspace(ctx, tx)
		if err != nil {
			return nil, err
		}
		workspaceID := model.Unassigned
		if active != nil {
			workspaceID = active.ID
		}

		// The browser id may still be held by a row from a crashed session
		if err := db.UnbindBrowserTabID(ctx, tx, obs.BrowserTabID); err != nil {
			return nil, err
		}

		// Adopt a well-formed stable id the browser remembers but the store lost
		stableID := NewTabStableID()
		if ValidStableID(TabPrefix, obs.StableID) {
			taken, err := tabStableIDTaken(ctx, tx, obs.StableID)
			if err != nil {
				return nil, err
			}
			if !taken {
				stableID = obs.StableID
			}
		}

		browserID := obs.BrowserTabID
		tab := &model.Tab{
			StableID:     stableID,
			WorkspaceID:  workspaceID,
			WindowID:     obs.WindowID,
			Index:        obs.Index,
			URL:          obs.URL,
			Title:        obs.Title,
			GroupID:      groupID,
			Status:       model.StatusActive,
			BrowserTabID: &browserID,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := db.InsertTab(ctx, tx, tab); err != nil {
			return nil, err
		}
		return &ObserveTabOutput{Tab: *tab, Outcome: OutcomeCreated}, nil
	}

	if existing.BrowserTabID == nil || *existing.BrowserTabID != obs.BrowserTabID {
		if err := db.UnbindBrowserTabID(ctx, tx, obs.BrowserTabID); err != nil {
			return nil, err
		}
	}

	browserID := obs.BrowserTabID
	existing.BrowserTabID = &browserID
	existing.WindowID = obs.WindowID
	existing.Index = obs.Index
	existing.URL = obs.URL
	existing.Title = obs.Title
	existing.GroupID = groupID
	existing.ClosedAt = nil
	existing.UpdatedAt = now

	// A live tab of the active workspace is active even if it was closed earlier
	if existing.Status == model.StatusArchived {
		active, err := db.GetActiveWorkspace(ctx, tx)
		if err != nil {
			return nil, err
		}
		if active != nil && active.ID == existing.WorkspaceID {
			existing.Status = model.StatusActive
		}
	}

	if err := db.UpdateTab(ctx, tx, existing); err != nil {
		return nil, err
	}
	return &ObserveTabOutput{Tab: *existing, Outcome: outcome}, nil
}

// findTab returns the row an observation refers to, or nil for a new tab.
//
// A remembered stable id only claims a row that is unbound or already bound
// to this browser tab. A duplicated browser tab inherits its original's
// session value while the original is still live; it must not take that row.
func findTab(ctx context.Context, q db.Querier, obs TabObservation) (*model.Tab, string, error) {
	if obs.StableID != "" {
		tab, err := db.GetTabByStableID(ctx, q, obs.StableID)
		switch {
		case err == nil && tab.BrowserTabID == nil:
			return tab, OutcomeRebound, nil
		case err == nil && *tab.BrowserTabID == obs.BrowserTabID:
			return tab, OutcomeResolved, nil
		case err != nil && !errors.Is(err, errors.ErrNotFound):
			return nil, "", err
		}
	}

	tab, err := db.GetTabByBrowserID(ctx, q, obs.BrowserTabID)
	if err == nil {
		return tab, OutcomeResolved, nil
	}
	if errors.Is(err, errors.ErrNotFound) {
		return nil, OutcomeCreated, nil
	}
	return nil, "", err
}

func tabStableIDTaken(ctx context.Context, q db.Querier, stableID string) (bool, error) {
	_, err := db.GetTabByStableID(ctx, q, stableID)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, errors.ErrNotFound) {
		return false, nil
	}
	return false, err
}

func resolveBrowserGroup(ctx context.Context, q db.Querier, browserGroupID *int64) (*int64, error) {
	if browserGroupID == nil {
		return nil, nil
	}
	g, err := db.GetTabGroupByBrowserID(ctx, q, *browserGroupID)
	if errors.Is(err, errors.ErrNotFound) {
		// Group events may arrive after the tab's; the next observation fills it in
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &g.ID, nil
}

// CloseTab records that a browser tab was closed. The row is archived,
// unbound and marked closed, never deleted, so snapshots keep their history.
// A closed tab stays archived across workspace switches and moves until the
// browser reports it live again.
func CloseTab(ctx context.Context, database *sql.DB, browserTabID int64) (*model.Tab, error) {
	var closed *model.Tab
	err := db.WithTx(ctx, database, func(tx *sql.Tx) error {
		tab, err := db.GetTabByBrowserID(ctx, tx, browserTabID)
		if err != nil {
			return err
		}
		now := nowMillis()
		tab.Status = model.StatusArchived
		tab.BrowserTabID = nil
		tab.ClosedAt = &now
		tab.UpdatedAt = now
		if err := db.UpdateTab(ctx, tx, tab); err != nil {
			return err
		}
		closed = tab
		return nil
	})
	if err != nil {
		return nil, err
	}
	return closed, nil
}
