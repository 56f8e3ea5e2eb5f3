package identity

import (
	"context"
	"database/sql"
	"time"

	"github.com/lmdevv/tabby-sub002/internal/db"
)

// nowMillis is the clock for identity timestamps.
func nowMillis() int64 {
	return time.Now().UnixMilli()
}

// BeginSessionOutput reports how many stale bindings were dropped.
type BeginSessionOutput struct {
	TabsUnbound   int64 `json:"tabs_unbound"`
	GroupsUnbound int64 `json:"groups_unbound"`
}

// BeginSession drops every browser binding. Call it when the browser starts:
// the previous session's ids are meaningless and may be reused for other tabs.
func BeginSession(ctx context.Context, database *sql.DB) (*BeginSessionOutput, error) {
	out := &BeginSessionOutput{}
	err := db.WithTx(ctx, database, func(tx *sql.Tx) error {
		var err error
		if out.TabsUnbound, err = db.ClearTabBindings(ctx, tx); err != nil {
			return err
		}
		out.GroupsUnbound, err = db.ClearGroupBindings(ctx, tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ReconcileInput is a full enumeration of the browser's live groups and tabs.
type ReconcileInput struct {
	Groups []GroupObservation `json:"groups"`
	Tabs   []TabObservation   `json:"tabs"`
}

// ReconcileOutput summarizes a reconcile pass.
type ReconcileOutput struct {
	TabsCreated    int   `json:"tabs_created"`
	TabsResolved   int   `json:"tabs_resolved"`
	GroupsCreated  int   `json:"groups_created"`
	GroupsResolved int   `json:"groups_resolved"`
	TabsArchived   int64 `json:"tabs_archived"`
	GroupsArchived int64 `json:"groups_archived"`
}

// Reconcile applies a full live enumeration in one transaction. Groups are
// observed first so tabs can resolve their group binding. Bound rows whose
// browser id is absent from the enumeration are archived and unbound.
func Reconcile(ctx context.Context, database *sql.DB, in ReconcileInput) (*ReconcileOutput, error) {
	out := &ReconcileOutput{}
	err := db.WithTx(ctx, database, func(tx *sql.Tx) error {
		now := nowMillis()

		liveGroups := make([]int64, 0, len(in.Groups))
		for _, obs := range in.Groups {
			res, err := observeGroup(ctx, tx, obs, now)
			if err != nil {
				return err
			}
			if res.Outcome == OutcomeCreated {
				out.GroupsCreated++
			} else {
				out.GroupsResolved++
			}
			liveGroups = append(liveGroups, obs.BrowserGroupID)
		}

		liveTabs := make([]int64, 0, len(in.Tabs))
		for _, obs := range in.Tabs {
			if obs.URL == "" {
				continue
			}
			res, err := observeTab(ctx, tx, obs, now)
			if err != nil {
				return err
			}
			if res.Outcome == OutcomeCreated {
				out.TabsCreated++
			} else {
				out.TabsResolved++
			}
			liveTabs = append(liveTabs, obs.BrowserTabID)
		}

		var err error
		if out.TabsArchived, err = db.ArchiveTabsNotBound(ctx, tx, liveTabs, now); err != nil {
			return err
		}
		out.GroupsArchived, err = db.ArchiveGroupsNotBound(ctx, tx, liveGroups, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
