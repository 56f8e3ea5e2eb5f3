package grouping

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"testing"

	"github.com/lmdevv/tabby-sub002/internal/db"
	"github.com/lmdevv/tabby-sub002/internal/errors"
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

func seedTab(t *testing.T, database *sql.DB, workspaceID, windowID int64, index int, url string, status model.Status, groupID *int64) *model.Tab {
	t.Helper()
	tab := &model.Tab{
		StableID:    "tab_" + url,
		WorkspaceID: workspaceID,
		WindowID:    windowID,
		Index:       index,
		URL:         url,
		Title:       url,
		GroupID:     groupID,
		Status:      status,
	}
	if err := db.InsertTab(context.Background(), database, tab); err != nil {
		t.Fatalf("InsertTab failed: %v", err)
	}
	return tab
}

func TestBuildContext(t *testing.T) {
	database := setupDB(t)
	ctx := context.Background()

	w := &model.Workspace{Name: "main"}
	if err := db.InsertWorkspace(ctx, database, w); err != nil {
		t.Fatalf("InsertWorkspace failed: %v", err)
	}
	g := &model.TabGroup{StableID: "grp_docs", WorkspaceID: w.ID, WindowID: 1, Title: "Docs", Color: "blue", Status: model.StatusActive}
	if err := db.InsertTabGroup(ctx, database, g); err != nil {
		t.Fatalf("InsertTabGroup failed: %v", err)
	}
	old := &model.TabGroup{StableID: "grp_old", WorkspaceID: w.ID, WindowID: 1, Title: "Old", Color: "red", Status: model.StatusArchived}
	if err := db.InsertTabGroup(ctx, database, old); err != nil {
		t.Fatalf("InsertTabGroup failed: %v", err)
	}

	a := seedTab(t, database, w.ID, 1, 0, "https://go.dev", model.StatusActive, &g.ID)
	b := seedTab(t, database, w.ID, 1, 1, "https://pkg.go.dev", model.StatusActive, &old.ID)
	seedTab(t, database, w.ID, 1, 2, "chrome-extension://abc/tabs.html#/", model.StatusActive, nil)
	seedTab(t, database, w.ID, 1, 3, "https://archived.example", model.StatusArchived, nil)

	filter, err := NewURLFilter([]string{"chrome-extension://*/tabs.html*"})
	if err != nil {
		t.Fatalf("NewURLFilter failed: %v", err)
	}

	c, err := BuildContext(ctx, database, w.ID, filter)
	if err != nil {
		t.Fatalf("BuildContext failed: %v", err)
	}

	if len(c.Groups) != 1 || c.Groups[0].ID != g.ID {
		t.Errorf("groups = %+v, want only the active group", c.Groups)
	}
	ids := c.TabIDs()
	if len(ids) != 2 || ids[0] != a.ID || ids[1] != b.ID {
		t.Fatalf("tab ids = %v, want [%d %d]", ids, a.ID, b.ID)
	}
	if c.Tabs[0].GroupID == nil || *c.Tabs[0].GroupID != g.ID {
		t.Errorf("tab %d groupId = %v", a.ID, c.Tabs[0].GroupID)
	}
	if c.Tabs[1].GroupID != nil {
		t.Errorf("tab in an archived group should be ungrouped, got %v", *c.Tabs[1].GroupID)
	}
	if c.Windows != nil {
		t.Errorf("single window context should not carry windows, got %v", c.Windows)
	}

	data, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if strings.Count(string(data), "groupId") != 1 {
		t.Errorf("serialized context = %s, want groupId only on grouped tabs", data)
	}
	if strings.Contains(string(data), "windows") {
		t.Errorf("serialized context = %s, want no windows", data)
	}
}

func TestBuildContext_DropsGroupsWithoutTabs(t *testing.T) {
	database := setupDB(t)
	ctx := context.Background()

	w := &model.Workspace{Name: "main"}
	if err := db.InsertWorkspace(ctx, database, w); err != nil {
		t.Fatalf("InsertWorkspace failed: %v", err)
	}
	mgmt := &model.TabGroup{StableID: "grp_mgmt", WorkspaceID: w.ID, WindowID: 1, Title: "Tabby", Color: "grey", Status: model.StatusActive}
	if err := db.InsertTabGroup(ctx, database, mgmt); err != nil {
		t.Fatalf("InsertTabGroup failed: %v", err)
	}
	empty := &model.TabGroup{StableID: "grp_empty", WorkspaceID: w.ID, WindowID: 1, Title: "Empty", Color: "blue", Status: model.StatusActive}
	if err := db.InsertTabGroup(ctx, database, empty); err != nil {
		t.Fatalf("InsertTabGroup failed: %v", err)
	}
	seedTab(t, database, w.ID, 1, 0, "chrome-extension://abc/tabs.html", model.StatusActive, &mgmt.ID)
	a := seedTab(t, database, w.ID, 1, 1, "https://go.dev", model.StatusActive, nil)

	filter, err := NewURLFilter([]string{"chrome-extension://*/tabs.html*"})
	if err != nil {
		t.Fatalf("NewURLFilter failed: %v", err)
	}
	c, err := BuildContext(ctx, database, w.ID, filter)
	if err != nil {
		t.Fatalf("BuildContext failed: %v", err)
	}
	if len(c.Groups) != 0 {
		t.Errorf("groups = %+v, want none", c.Groups)
	}
	if ids := c.TabIDs(); len(ids) != 1 || ids[0] != a.ID {
		t.Errorf("tab ids = %v, want [%d]", ids, a.ID)
	}
}

func TestBuildContext_MultipleWindows(t *testing.T) {
	database := setupDB(t)
	ctx := context.Background()

	w := &model.Workspace{Name: "main"}
	if err := db.InsertWorkspace(ctx, database, w); err != nil {
		t.Fatalf("InsertWorkspace failed: %v", err)
	}
	a := seedTab(t, database, w.ID, 10, 0, "https://a.example", model.StatusActive, nil)
	b := seedTab(t, database, w.ID, 20, 0, "https://b.example", model.StatusActive, nil)

	c, err := BuildContext(ctx, database, w.ID, nil)
	if err != nil {
		t.Fatalf("BuildContext failed: %v", err)
	}
	if len(c.Windows) != 2 {
		t.Fatalf("windows = %v, want 2", c.Windows)
	}
	if c.Windows[10][0] != a.ID || c.Windows[20][0] != b.ID {
		t.Errorf("windows = %v", c.Windows)
	}
}

func TestBuildContext_UnknownWorkspace(t *testing.T) {
	database := setupDB(t)
	_, err := BuildContext(context.Background(), database, 42, nil)
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("error = %v, want NOT_FOUND", err)
	}
}

func TestURLFilter(t *testing.T) {
	f, err := NewURLFilter([]string{"chrome-extension://*/tabs.html*", "", "about:*"})
	if err != nil {
		t.Fatalf("NewURLFilter failed: %v", err)
	}
	if len(f.Patterns()) != 2 {
		t.Errorf("Patterns = %v", f.Patterns())
	}

	tests := map[string]bool{
		"chrome-extension://abcdef/tabs.html":         true,
		"chrome-extension://abcdef/tabs.html#/ws/3":   true,
		"chrome-extension://abcdef/path/tabs.html?x=1": true,
		"about:blank":                                  true,
		"https://example.com/tabs.html":                false,
	}
	for url, want := range tests {
		if got := f.Excluded(url); got != want {
			t.Errorf("Excluded(%q) = %v, want %v", url, got, want)
		}
	}

	var none *URLFilter
	if none.Excluded("about:blank") {
		t.Error("nil filter must exclude nothing")
	}
}

func TestUserPrompt(t *testing.T) {
	c := &Context{Groups: []ContextGroup{}, Tabs: []ContextTab{{ID: 7, Title: "Go", URL: "https://go.dev"}}}

	p, err := UserPrompt(c, "  ")
	if err != nil {
		t.Fatalf("UserPrompt failed: %v", err)
	}
	if !strings.HasPrefix(p, DefaultInstruction) {
		t.Errorf("prompt should start with the default instruction: %q", p)
	}
	if !strings.Contains(p, `"id":7`) {
		t.Errorf("prompt should carry the tab: %q", p)
	}

	p, _ = UserPrompt(c, "group by project")
	if !strings.HasPrefix(p, "group by project\n\nTabs:\n") {
		t.Errorf("prompt = %q", p)
	}
	if !strings.Contains(SystemPrompt(), "ungroupedTabs") {
		t.Error("system prompt should describe the response shape")
	}
}
