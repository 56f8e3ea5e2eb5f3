package ops

import (
	"context"
	"database/sql"
	"sort"

	"github.com/lmdevv/tabby-sub002/internal/db"
	"github.com/lmdevv/tabby-sub002/internal/metrics"
	"github.com/lmdevv/tabby-sub002/internal/model"
)

// CaptureSnapshotInput contains parameters for the CaptureSnapshot operation.
type CaptureSnapshotInput struct {
	WorkspaceID int64
	Label       *string
}

// CaptureSnapshot records the tab and group topology of a workspace. The
// active workspace is captured from its live tabs; any other workspace from
// its archived (saved) tabs. Tabs the browser closed are left out. Rows are
// write-once.
func CaptureSnapshot(ctx context.Context, database *sql.DB, input CaptureSnapshotInput) (*model.WorkspaceSnapshot, error) {
	label, err := optionalText("label", input.Label)
	if err != nil {
		return nil, err
	}

	var snap *model.WorkspaceSnapshot
	err = db.WithTx(ctx, database, func(tx *sql.Tx) error {
		w, err := db.GetWorkspace(ctx, tx, input.WorkspaceID)
		if err != nil {
			return err
		}
		status := model.StatusArchived
		if w.Active {
			status = model.StatusActive
		}

		tabs, err := db.ListTabs(ctx, tx, db.TabFilter{WorkspaceID: &w.ID, Status: status, OpenOnly: true})
		if err != nil {
			return err
		}
		groups, err := db.ListTabGroups(ctx, tx, db.TabGroupFilter{WorkspaceID: &w.ID, Status: status})
		if err != nil {
			return err
		}

		// A captured tab keeps its group reference even if the group row is
		// in the other status.
		byID := make(map[int64]model.TabGroup, len(groups))
		for _, g := range groups {
			byID[g.ID] = g
		}
		for _, t := range tabs {
			if t.GroupID == nil {
				continue
			}
			if _, ok := byID[*t.GroupID]; ok {
				continue
			}
			g, err := db.GetTabGroup(ctx, tx, *t.GroupID)
			if err != nil {
				return err
			}
			byID[g.ID] = *g
			groups = append(groups, *g)
		}

		windows := make(map[int64]bool)
		for _, t := range tabs {
			windows[t.WindowID] = true
		}
		for _, g := range groups {
			windows[g.WindowID] = true
		}

		snap = &model.WorkspaceSnapshot{
			WorkspaceID: w.ID,
			Label:       label,
			TabCount:    len(tabs),
			GroupCount:  len(groups),
			WindowCount: len(windows),
			CreatedAt:   nowMillis(),
		}
		if err := db.InsertSnapshot(ctx, tx, snap); err != nil {
			return err
		}

		for _, g := range groups {
			sg := &model.SnapshotTabGroup{
				SnapshotID: snap.ID,
				StableID:   g.StableID,
				WindowID:   g.WindowID,
				Title:      g.Title,
				Color:      g.Color,
				Collapsed:  g.Collapsed,
			}
			if err := db.InsertSnapshotTabGroup(ctx, tx, sg); err != nil {
				return err
			}
		}
		for _, t := range tabs {
			st := &model.SnapshotTab{
				SnapshotID: snap.ID,
				StableID:   t.StableID,
				WindowID:   t.WindowID,
				Index:      t.Index,
				URL:        t.URL,
				Title:      t.Title,
			}
			if t.GroupID != nil {
				sid := byID[*t.GroupID].StableID
				st.GroupStableID = &sid
			}
			if err := db.InsertSnapshotTab(ctx, tx, st); err != nil {
				return err
			}
		}
		return nil
	})
	metrics.ObserveTransition(opCapture, err)
	if err != nil {
		return nil, err
	}
	metrics.SnapshotsCaptured.Inc()
	return snap, nil
}

// SnapshotWindow is one browser window of a snapshot: its tabs in order and
// the groups they reference.
type SnapshotWindow struct {
	WindowID int64                    `json:"window_id"`
	Groups   []model.SnapshotTabGroup `json:"groups"`
	Tabs     []model.SnapshotTab      `json:"tabs"`
}

// SnapshotTopology is everything a restore collaborator needs to recreate
// the captured windows, tabs and groups.
type SnapshotTopology struct {
	Snapshot model.WorkspaceSnapshot `json:"snapshot"`
	Windows  []SnapshotWindow        `json:"windows"`
}

// FetchSnapshotInput contains parameters for the FetchSnapshot operation.
type FetchSnapshotInput struct {
	SnapshotID int64
}

// FetchSnapshot returns a snapshot's topology, windows ordered by id.
func FetchSnapshot(ctx context.Context, database *sql.DB, input FetchSnapshotInput) (*SnapshotTopology, error) {
	return fetchTopology(ctx, database, input.SnapshotID)
}

func fetchTopology(ctx context.Context, q db.Querier, snapshotID int64) (*SnapshotTopology, error) {
	snap, err := db.GetSnapshot(ctx, q, snapshotID)
	if err != nil {
		return nil, err
	}
	tabs, err := db.ListSnapshotTabs(ctx, q, snapshotID)
	if err != nil {
		return nil, err
	}
	groups, err := db.ListSnapshotTabGroups(ctx, q, snapshotID)
	if err != nil {
		return nil, err
	}

	byWindow := make(map[int64]*SnapshotWindow)
	window := func(id int64) *SnapshotWindow {
		w, ok := byWindow[id]
		if !ok {
			w = &SnapshotWindow{WindowID: id, Groups: []model.SnapshotTabGroup{}, Tabs: []model.SnapshotTab{}}
			byWindow[id] = w
		}
		return w
	}
	for _, g := range groups {
		w := window(g.WindowID)
		w.Groups = append(w.Groups, g)
	}
	for _, t := range tabs {
		w := window(t.WindowID)
		w.Tabs = append(w.Tabs, t)
	}

	out := &SnapshotTopology{Snapshot: *snap, Windows: make([]SnapshotWindow, 0, len(byWindow))}
	for _, w := range byWindow {
		out.Windows = append(out.Windows, *w)
	}
	sort.Slice(out.Windows, func(i, j int) bool { return out.Windows[i].WindowID < out.Windows[j].WindowID })
	return out, nil
}

// ListSnapshotsInput contains parameters for the ListSnapshots operation.
type ListSnapshotsInput struct {
	WorkspaceID int64
}

// ListSnapshotsOutput contains the result of the ListSnapshots operation.
type ListSnapshotsOutput struct {
	Snapshots []model.WorkspaceSnapshot `json:"snapshots"`
	Count     int                       `json:"count"`
}

// ListSnapshots returns the snapshots of a workspace, newest first.
func ListSnapshots(ctx context.Context, database *sql.DB, input ListSnapshotsInput) (*ListSnapshotsOutput, error) {
	if _, err := db.GetWorkspace(ctx, database, input.WorkspaceID); err != nil {
		return nil, err
	}
	snaps, err := db.ListSnapshots(ctx, database, input.WorkspaceID)
	if err != nil {
		return nil, err
	}
	return &ListSnapshotsOutput{Snapshots: snaps, Count: len(snaps)}, nil
}

// DeleteSnapshotInput contains parameters for the DeleteSnapshot operation.
type DeleteSnapshotInput struct {
	SnapshotID int64
}

// DeleteSnapshotOutput contains the result of the DeleteSnapshot operation.
type DeleteSnapshotOutput struct {
	DeletedID int64 `json:"deleted_id"`
}

// DeleteSnapshot removes a snapshot with its tabs and groups.
func DeleteSnapshot(ctx context.Context, database *sql.DB, input DeleteSnapshotInput) (*DeleteSnapshotOutput, error) {
	if err := db.DeleteSnapshot(ctx, database, input.SnapshotID); err != nil {
		return nil, err
	}
	return &DeleteSnapshotOutput{DeletedID: input.SnapshotID}, nil
}
