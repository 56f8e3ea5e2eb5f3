package ops

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/lmdevv/tabby-sub002/internal/db"
	"github.com/lmdevv/tabby-sub002/internal/identity"
	"github.com/lmdevv/tabby-sub002/internal/model"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	database, err := db.Init(t.TempDir())
	if err != nil {
		t.Fatalf("db.Init failed: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

func createWorkspace(t *testing.T, database *sql.DB, name string, activate bool) *model.Workspace {
	t.Helper()
	out, err := CreateWorkspace(context.Background(), database, CreateWorkspaceInput{Name: name, Activate: activate})
	if err != nil {
		t.Fatalf("CreateWorkspace(%s) failed: %v", name, err)
	}
	return out.Workspace
}

func addTab(t *testing.T, database *sql.DB, workspaceID, windowID int64, index int, status model.Status, groupID *int64) *model.Tab {
	t.Helper()
	tab := &model.Tab{
		StableID:    identity.NewTabStableID(),
		WorkspaceID: workspaceID,
		WindowID:    windowID,
		Index:       index,
		URL:         fmt.Sprintf("https://example.com/w%d/%d", windowID, index),
		Title:       fmt.Sprintf("Tab %d.%d", windowID, index),
		GroupID:     groupID,
		Status:      status,
		CreatedAt:   1,
		UpdatedAt:   1,
	}
	if err := db.InsertTab(context.Background(), database, tab); err != nil {
		t.Fatalf("InsertTab failed: %v", err)
	}
	return tab
}

func addGroup(t *testing.T, database *sql.DB, workspaceID, windowID int64, title string, status model.Status) *model.TabGroup {
	t.Helper()
	g := &model.TabGroup{
		StableID:    identity.NewGroupStableID(),
		WorkspaceID: workspaceID,
		WindowID:    windowID,
		Title:       title,
		Color:       "blue",
		Status:      status,
		CreatedAt:   1,
		UpdatedAt:   1,
	}
	if err := db.InsertTabGroup(context.Background(), database, g); err != nil {
		t.Fatalf("InsertTabGroup failed: %v", err)
	}
	return g
}

func getTab(t *testing.T, database *sql.DB, id int64) *model.Tab {
	t.Helper()
	tab, err := db.GetTab(context.Background(), database, id)
	if err != nil {
		t.Fatalf("GetTab(%d) failed: %v", id, err)
	}
	return tab
}

func getWorkspace(t *testing.T, database *sql.DB, id int64) *model.Workspace {
	t.Helper()
	w, err := db.GetWorkspace(context.Background(), database, id)
	if err != nil {
		t.Fatalf("GetWorkspace(%d) failed: %v", id, err)
	}
	return w
}

// assertLifecycleInvariants checks that at most one workspace is active and
// that every active tab or group belongs to it (or to no workspace).
func assertLifecycleInvariants(t *testing.T, database *sql.DB) {
	t.Helper()
	ctx := context.Background()

	n, err := db.CountActiveWorkspaces(ctx, database)
	if err != nil {
		t.Fatalf("CountActiveWorkspaces failed: %v", err)
	}
	if n > 1 {
		t.Fatalf("%d active workspaces", n)
	}

	active, err := db.GetActiveWorkspace(ctx, database)
	if err != nil {
		t.Fatalf("GetActiveWorkspace failed: %v", err)
	}
	activeID := model.Unassigned
	if active != nil {
		activeID = active.ID
	}

	tabs, err := db.ListTabs(ctx, database, db.TabFilter{Status: model.StatusActive})
	if err != nil {
		t.Fatalf("ListTabs failed: %v", err)
	}
	for _, tab := range tabs {
		if tab.WorkspaceID != activeID && tab.WorkspaceID != model.Unassigned {
			t.Fatalf("active tab %d belongs to workspace %d, active is %d", tab.ID, tab.WorkspaceID, activeID)
		}
	}
	groups, err := db.ListTabGroups(ctx, database, db.TabGroupFilter{Status: model.StatusActive})
	if err != nil {
		t.Fatalf("ListTabGroups failed: %v", err)
	}
	for _, g := range groups {
		if g.WorkspaceID != activeID && g.WorkspaceID != model.Unassigned {
			t.Fatalf("active group %d belongs to workspace %d, active is %d", g.ID, g.WorkspaceID, activeID)
		}
	}
}

func itoa(id int64) string {
	return fmt.Sprint(id)
}
