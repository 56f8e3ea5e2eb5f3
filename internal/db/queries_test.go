package db

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/lmdevv/tabby-sub002/internal/errors"
	"github.com/lmdevv/tabby-sub002/internal/model"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func insertWorkspace(t *testing.T, db *sql.DB, name string, lastOpened int64) *model.Workspace {
	t.Helper()
	w := &model.Workspace{Name: name, CreatedAt: lastOpened, LastOpened: lastOpened}
	if err := InsertWorkspace(context.Background(), db, w); err != nil {
		t.Fatalf("InsertWorkspace(%s) failed: %v", name, err)
	}
	return w
}

func insertTab(t *testing.T, db *sql.DB, workspaceID, windowID int64, index int, status model.Status) *model.Tab {
	t.Helper()
	tab := &model.Tab{
		StableID:    fmt.Sprintf("tab_%d_%d_%d", workspaceID, windowID, index),
		WorkspaceID: workspaceID,
		WindowID:    windowID,
		Index:       index,
		URL:         fmt.Sprintf("https://example.com/%d", index),
		Title:       fmt.Sprintf("Tab %d", index),
		Status:      status,
		CreatedAt:   1000,
		UpdatedAt:   1000,
	}
	if err := InsertTab(context.Background(), db, tab); err != nil {
		t.Fatalf("InsertTab failed: %v", err)
	}
	return tab
}

func TestWorkspace_InsertGetUpdate(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	desc := "daily reading"
	w := &model.Workspace{Name: "Research", Description: &desc, CreatedAt: 100, LastOpened: 100, ResourceGroupIDs: []int64{3, 1}}
	if err := InsertWorkspace(ctx, db, w); err != nil {
		t.Fatalf("InsertWorkspace failed: %v", err)
	}
	if w.ID == 0 {
		t.Fatal("ID not set")
	}

	got, err := GetWorkspace(ctx, db, w.ID)
	if err != nil {
		t.Fatalf("GetWorkspace failed: %v", err)
	}
	if got.Name != "Research" || got.Description == nil || *got.Description != desc {
		t.Errorf("got %+v", got)
	}
	if got.Active {
		t.Error("new workspace should be inactive")
	}
	if len(got.ResourceGroupIDs) != 2 || got.ResourceGroupIDs[0] != 3 || got.ResourceGroupIDs[1] != 1 {
		t.Errorf("ResourceGroupIDs = %v, want [3 1]", got.ResourceGroupIDs)
	}

	got.Name = "Reading"
	got.Description = nil
	if err := UpdateWorkspace(ctx, db, got); err != nil {
		t.Fatalf("UpdateWorkspace failed: %v", err)
	}
	again, _ := GetWorkspace(ctx, db, w.ID)
	if again.Name != "Reading" || again.Description != nil {
		t.Errorf("after update got %+v", again)
	}
}

func TestWorkspace_NotFound(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if _, err := GetWorkspace(ctx, db, 42); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("GetWorkspace error = %v, want NOT_FOUND", err)
	}
	if err := SetWorkspaceActive(ctx, db, 42, 1); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("SetWorkspaceActive error = %v, want NOT_FOUND", err)
	}
	if err := DeleteWorkspaceRow(ctx, db, 42); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("DeleteWorkspaceRow error = %v, want NOT_FOUND", err)
	}
}

func TestWorkspace_UnknownGroup(t *testing.T) {
	db := setupTestDB(t)
	groupID := int64(99)
	w := &model.Workspace{Name: "x", GroupID: &groupID, CreatedAt: 1, LastOpened: 1}
	if err := InsertWorkspace(context.Background(), db, w); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("InsertWorkspace error = %v, want NOT_FOUND", err)
	}
}

func TestWorkspace_ActiveAndMostRecent(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	a := insertWorkspace(t, db, "a", 100)
	b := insertWorkspace(t, db, "b", 300)
	insertWorkspace(t, db, "c", 200)

	active, err := GetActiveWorkspace(ctx, db)
	if err != nil || active != nil {
		t.Fatalf("GetActiveWorkspace = %v, %v; want nil, nil", active, err)
	}

	recent, err := MostRecentWorkspace(ctx, db)
	if err != nil {
		t.Fatalf("MostRecentWorkspace failed: %v", err)
	}
	if recent.ID != b.ID {
		t.Errorf("MostRecentWorkspace = %d, want %d", recent.ID, b.ID)
	}

	if err := SetWorkspaceActive(ctx, db, a.ID, 400); err != nil {
		t.Fatalf("SetWorkspaceActive failed: %v", err)
	}
	if err := SetWorkspaceActive(ctx, db, b.ID, 500); !errors.Is(err, errors.ErrConflict) {
		t.Fatalf("second SetWorkspaceActive error = %v, want CONFLICT", err)
	}

	active, _ = GetActiveWorkspace(ctx, db)
	if active == nil || active.ID != a.ID || active.LastOpened != 400 {
		t.Errorf("active = %+v, want a with last_opened 400", active)
	}

	list, err := ListWorkspaces(ctx, db)
	if err != nil {
		t.Fatalf("ListWorkspaces failed: %v", err)
	}
	if len(list) != 3 || list[0].ID != a.ID || list[1].ID != b.ID {
		t.Errorf("ListWorkspaces order = %v", list)
	}

	if err := DeactivateAllWorkspaces(ctx, db); err != nil {
		t.Fatalf("DeactivateAllWorkspaces failed: %v", err)
	}
	if n, _ := CountActiveWorkspaces(ctx, db); n != 0 {
		t.Errorf("CountActiveWorkspaces = %d, want 0", n)
	}
}

func TestMostRecentWorkspace_TieBreaksByID(t *testing.T) {
	db := setupTestDB(t)
	insertWorkspace(t, db, "first", 100)
	second := insertWorkspace(t, db, "second", 100)

	recent, err := MostRecentWorkspace(context.Background(), db)
	if err != nil {
		t.Fatalf("MostRecentWorkspace failed: %v", err)
	}
	if recent.ID != second.ID {
		t.Errorf("MostRecentWorkspace = %d, want %d", recent.ID, second.ID)
	}
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	err := WithTx(ctx, db, func(tx *sql.Tx) error {
		w := &model.Workspace{Name: "doomed", CreatedAt: 1, LastOpened: 1}
		if err := InsertWorkspace(ctx, tx, w); err != nil {
			return err
		}
		return errors.NewNotFound("workspace", 999)
	})
	if !errors.Is(err, errors.ErrNotFound) {
		t.Fatalf("WithTx error = %v, want NOT_FOUND passed through", err)
	}

	list, _ := ListWorkspaces(ctx, db)
	if len(list) != 0 {
		t.Errorf("workspaces after rollback = %d, want 0", len(list))
	}
}

func TestWithTx_WrapsPlainErrors(t *testing.T) {
	db := setupTestDB(t)
	err := WithTx(context.Background(), db, func(tx *sql.Tx) error {
		return fmt.Errorf("boom")
	})
	if !errors.Is(err, errors.ErrInternal) {
		t.Errorf("WithTx error = %v, want INTERNAL", err)
	}
}

func TestWithTx_Commits(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	err := WithTx(ctx, db, func(tx *sql.Tx) error {
		for _, name := range []string{"a", "b"} {
			if err := InsertWorkspace(ctx, tx, &model.Workspace{Name: name, CreatedAt: 1, LastOpened: 1}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithTx failed: %v", err)
	}
	list, _ := ListWorkspaces(ctx, db)
	if len(list) != 2 {
		t.Errorf("workspaces = %d, want 2", len(list))
	}
}

func TestTabs_FilterAndOrder(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	w := insertWorkspace(t, db, "w", 1)

	insertTab(t, db, w.ID, 20, 0, model.StatusActive)
	insertTab(t, db, w.ID, 10, 1, model.StatusActive)
	insertTab(t, db, w.ID, 10, 0, model.StatusActive)
	insertTab(t, db, w.ID, 10, 2, model.StatusArchived)

	tabs, err := ListTabs(ctx, db, TabFilter{WorkspaceID: &w.ID, Status: model.StatusActive})
	if err != nil {
		t.Fatalf("ListTabs failed: %v", err)
	}
	if len(tabs) != 3 {
		t.Fatalf("len = %d, want 3", len(tabs))
	}
	want := [][2]int64{{10, 0}, {10, 1}, {20, 0}}
	for i, tab := range tabs {
		if tab.WindowID != want[i][0] || int64(tab.Index) != want[i][1] {
			t.Errorf("tabs[%d] = window %d index %d, want %v", i, tab.WindowID, tab.Index, want[i])
		}
	}

	window := int64(10)
	all, _ := ListTabs(ctx, db, TabFilter{WindowID: &window})
	if len(all) != 3 {
		t.Errorf("window 10 tabs = %d, want 3", len(all))
	}
}

func TestTabs_StableIDUnique(t *testing.T) {
	db := setupTestDB(t)
	tab := &model.Tab{StableID: "tab_dup", WorkspaceID: model.Unassigned, URL: "u", Status: model.StatusActive}
	if err := InsertTab(context.Background(), db, tab); err != nil {
		t.Fatalf("first InsertTab failed: %v", err)
	}
	again := &model.Tab{StableID: "tab_dup", WorkspaceID: model.Unassigned, URL: "u", Status: model.StatusActive}
	if err := InsertTab(context.Background(), db, again); !errors.Is(err, errors.ErrConflict) {
		t.Errorf("duplicate stable id error = %v, want CONFLICT", err)
	}
}

func TestTabs_UpdateKeepsStableID(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	w := insertWorkspace(t, db, "w", 1)
	tab := insertTab(t, db, w.ID, 1, 0, model.StatusActive)

	browserID := int64(77)
	tab.Title = "renamed"
	tab.URL = "https://new.example"
	tab.Index = 5
	tab.Tags = []string{"go"}
	tab.BrowserTabID = &browserID
	tab.UpdatedAt = 2000
	if err := UpdateTab(ctx, db, tab); err != nil {
		t.Fatalf("UpdateTab failed: %v", err)
	}

	got, err := GetTabByBrowserID(ctx, db, browserID)
	if err != nil {
		t.Fatalf("GetTabByBrowserID failed: %v", err)
	}
	if got.StableID != tab.StableID || got.CreatedAt != 1000 {
		t.Errorf("stable fields changed: %+v", got)
	}
	if got.Title != "renamed" || got.Index != 5 || len(got.Tags) != 1 {
		t.Errorf("mutable fields not written: %+v", got)
	}

	if n, err := ClearTabBindings(ctx, db); err != nil || n != 1 {
		t.Fatalf("ClearTabBindings = %d, %v", n, err)
	}
	if _, err := GetTabByBrowserID(ctx, db, browserID); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("after clear error = %v, want NOT_FOUND", err)
	}
}

func TestTabs_StatusTransitions(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	a := insertWorkspace(t, db, "a", 1)
	b := insertWorkspace(t, db, "b", 1)

	insertTab(t, db, a.ID, 1, 0, model.StatusActive)
	insertTab(t, db, b.ID, 1, 1, model.StatusActive)
	insertTab(t, db, model.Unassigned, 1, 2, model.StatusActive)

	n, err := ArchiveActiveTabsOutside(ctx, db, a.ID, 2000)
	if err != nil {
		t.Fatalf("ArchiveActiveTabsOutside failed: %v", err)
	}
	if n != 1 {
		t.Errorf("archived = %d, want 1 (unassigned tab untouched)", n)
	}

	n, err = UnassignWorkspaceTabs(ctx, db, a.ID, 3000)
	if err != nil || n != 1 {
		t.Fatalf("UnassignWorkspaceTabs = %d, %v", n, err)
	}
	unassigned := model.Unassigned
	tabs, _ := ListTabs(ctx, db, TabFilter{WorkspaceID: &unassigned})
	if len(tabs) != 2 {
		t.Fatalf("unassigned tabs = %d, want 2", len(tabs))
	}

	counts, err := CountTabsByWorkspace(ctx, db, "")
	if err != nil {
		t.Fatalf("CountTabsByWorkspace failed: %v", err)
	}
	if counts[b.ID] != 1 || counts[model.Unassigned] != 2 {
		t.Errorf("counts = %v", counts)
	}
}

func TestTabs_ClosedStayArchived(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	a := insertWorkspace(t, db, "a", 1)

	open := insertTab(t, db, a.ID, 1, 0, model.StatusArchived)
	closed := insertTab(t, db, a.ID, 1, 1, model.StatusArchived)
	closedAt := int64(1500)
	closed.ClosedAt = &closedAt
	if err := UpdateTab(ctx, db, closed); err != nil {
		t.Fatalf("UpdateTab failed: %v", err)
	}

	n, err := SetWorkspaceTabStatus(ctx, db, a.ID, model.StatusArchived, model.StatusActive, 2000)
	if err != nil || n != 1 {
		t.Fatalf("SetWorkspaceTabStatus = %d, %v, want 1", n, err)
	}
	if _, err := MoveTabsToWorkspace(ctx, db, []int64{open.ID, closed.ID}, a.ID, model.StatusActive, 3000); err != nil {
		t.Fatalf("MoveTabsToWorkspace failed: %v", err)
	}

	got, _ := GetTab(ctx, db, closed.ID)
	if got.Status != model.StatusArchived || got.ClosedAt == nil || *got.ClosedAt != closedAt {
		t.Errorf("closed tab = %+v, want archived with closed_at %d", got, closedAt)
	}
	if got, _ := GetTab(ctx, db, open.ID); got.Status != model.StatusActive {
		t.Errorf("open tab status = %s, want active", got.Status)
	}

	tabs, _ := ListTabs(ctx, db, TabFilter{WorkspaceID: &a.ID, OpenOnly: true})
	if len(tabs) != 1 || tabs[0].ID != open.ID {
		t.Errorf("open tabs = %+v, want only tab %d", tabs, open.ID)
	}
}

func TestTabGroups_ArchiveEmpty(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	w := insertWorkspace(t, db, "w", 1)

	used := &model.TabGroup{StableID: "grp_used", WorkspaceID: w.ID, WindowID: 1, Title: "used", Color: "blue", Status: model.StatusActive}
	empty := &model.TabGroup{StableID: "grp_empty", WorkspaceID: w.ID, WindowID: 1, Title: "empty", Color: "red", Status: model.StatusActive}
	for _, g := range []*model.TabGroup{used, empty} {
		if err := InsertTabGroup(ctx, db, g); err != nil {
			t.Fatalf("InsertTabGroup failed: %v", err)
		}
	}

	tab := insertTab(t, db, w.ID, 1, 0, model.StatusActive)
	if _, err := SetTabsGroup(ctx, db, []int64{tab.ID}, &used.ID, 2000); err != nil {
		t.Fatalf("SetTabsGroup failed: %v", err)
	}

	n, err := ArchiveEmptyGroups(ctx, db, w.ID, 3000)
	if err != nil || n != 1 {
		t.Fatalf("ArchiveEmptyGroups = %d, %v; want 1", n, err)
	}

	got, _ := GetTabGroupByStableID(ctx, db, "grp_empty")
	if got.Status != model.StatusArchived {
		t.Errorf("empty group status = %s, want archived", got.Status)
	}
	got, _ = GetTabGroup(ctx, db, used.ID)
	if got.Status != model.StatusActive {
		t.Errorf("used group status = %s, want active", got.Status)
	}
}

func TestSetTabsGroup_UnknownGroup(t *testing.T) {
	db := setupTestDB(t)
	w := insertWorkspace(t, db, "w", 1)
	tab := insertTab(t, db, w.ID, 1, 0, model.StatusActive)
	missing := int64(404)
	if _, err := SetTabsGroup(context.Background(), db, []int64{tab.ID}, &missing, 1); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("SetTabsGroup error = %v, want NOT_FOUND", err)
	}
}

func TestSettings_Upsert(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	s, err := UpsertSetting(ctx, db, "theme", "dark", 100)
	if err != nil {
		t.Fatalf("UpsertSetting failed: %v", err)
	}
	s2, err := UpsertSetting(ctx, db, "theme", "light", 200)
	if err != nil {
		t.Fatalf("second UpsertSetting failed: %v", err)
	}
	if s2.ID != s.ID || s2.Value != "light" || s2.CreatedAt != 100 || s2.UpdatedAt != 200 {
		t.Errorf("upsert result = %+v", s2)
	}

	list, _ := ListSettings(ctx, db)
	if len(list) != 1 {
		t.Errorf("settings = %d, want 1", len(list))
	}

	if err := DeleteSetting(ctx, db, "theme"); err != nil {
		t.Fatalf("DeleteSetting failed: %v", err)
	}
	if _, err := GetSetting(ctx, db, "theme"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("GetSetting error = %v, want NOT_FOUND", err)
	}
}

func TestSnapshots_CascadeOnWorkspaceDelete(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	w := insertWorkspace(t, db, "w", 1)

	snap := &model.WorkspaceSnapshot{WorkspaceID: w.ID, TabCount: 1, WindowCount: 1, CreatedAt: 100}
	if err := InsertSnapshot(ctx, db, snap); err != nil {
		t.Fatalf("InsertSnapshot failed: %v", err)
	}
	st := &model.SnapshotTab{SnapshotID: snap.ID, StableID: "tab_a", WindowID: 1, URL: "u"}
	if err := InsertSnapshotTab(ctx, db, st); err != nil {
		t.Fatalf("InsertSnapshotTab failed: %v", err)
	}

	if err := DeleteWorkspaceRow(ctx, db, w.ID); err != nil {
		t.Fatalf("DeleteWorkspaceRow failed: %v", err)
	}
	if _, err := GetSnapshot(ctx, db, snap.ID); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("snapshot after workspace delete error = %v, want NOT_FOUND", err)
	}
	tabs, _ := ListSnapshotTabs(ctx, db, snap.ID)
	if len(tabs) != 0 {
		t.Errorf("snapshot tabs after cascade = %d, want 0", len(tabs))
	}
}

func TestSnapshots_DeleteBefore(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	w := insertWorkspace(t, db, "w", 1)

	for _, created := range []int64{100, 200, 300} {
		if err := InsertSnapshot(ctx, db, &model.WorkspaceSnapshot{WorkspaceID: w.ID, CreatedAt: created}); err != nil {
			t.Fatalf("InsertSnapshot failed: %v", err)
		}
	}
	n, err := DeleteSnapshotsBefore(ctx, db, 250)
	if err != nil || n != 2 {
		t.Fatalf("DeleteSnapshotsBefore = %d, %v; want 2", n, err)
	}
	left, _ := ListSnapshots(ctx, db, w.ID)
	if len(left) != 1 || left[0].CreatedAt != 300 {
		t.Errorf("remaining = %+v", left)
	}
}

func TestResourceGroups_OrderPreserved(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	g := &model.ResourceGroup{Name: "refs", ResourceIDs: []int64{5, 2, 9}, CreatedAt: 1, UpdatedAt: 1}
	if err := InsertResourceGroup(ctx, db, g); err != nil {
		t.Fatalf("InsertResourceGroup failed: %v", err)
	}
	got, err := GetResourceGroup(ctx, db, g.ID)
	if err != nil {
		t.Fatalf("GetResourceGroup failed: %v", err)
	}
	want := []int64{5, 2, 9}
	for i := range want {
		if got.ResourceIDs[i] != want[i] {
			t.Fatalf("ResourceIDs = %v, want %v", got.ResourceIDs, want)
		}
	}
}

func TestWorkspaceGroups_DeleteUngroupsWorkspaces(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	g := &model.WorkspaceGroup{Name: "Work"}
	if err := InsertWorkspaceGroup(ctx, db, g); err != nil {
		t.Fatalf("InsertWorkspaceGroup failed: %v", err)
	}
	w := &model.Workspace{Name: "w", GroupID: &g.ID, CreatedAt: 1, LastOpened: 1}
	if err := InsertWorkspace(ctx, db, w); err != nil {
		t.Fatalf("InsertWorkspace failed: %v", err)
	}

	if err := DeleteWorkspaceGroup(ctx, db, g.ID); err != nil {
		t.Fatalf("DeleteWorkspaceGroup failed: %v", err)
	}
	got, _ := GetWorkspace(ctx, db, w.ID)
	if got.GroupID != nil {
		t.Errorf("GroupID = %v, want nil", *got.GroupID)
	}
}
