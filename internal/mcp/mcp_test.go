package mcp

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/lmdevv/tabby-sub002/internal/config"
	"github.com/lmdevv/tabby-sub002/internal/db"
	"github.com/lmdevv/tabby-sub002/internal/errors"
	"github.com/lmdevv/tabby-sub002/internal/grouping"
)

// testSetup creates a temporary database, config and handlers for testing.
func testSetup(t *testing.T, grouper grouping.Grouper) (*Handlers, *sql.DB, *config.Config) {
	t.Helper()

	tmpDir := t.TempDir()
	database, err := db.Init(tmpDir)
	if err != nil {
		t.Fatalf("failed to init db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	cfg := config.DefaultConfig()
	h := NewHandlers(database, cfg, filepath.Join(tmpDir, "exports"), grouper, nil)
	return h, database, cfg
}

// makeRequest creates a CallToolRequest with the given arguments.
func makeRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

type stubGrouper struct {
	reply func(c *grouping.Context) string
}

func (s stubGrouper) Group(_ context.Context, c *grouping.Context, _ string) ([]byte, error) {
	return []byte(s.reply(c)), nil
}

// call invokes a handler and fails the test on a transport-level error.
func call(t *testing.T, fn ToolHandlerFunc, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	result, err := fn(context.Background(), makeRequest(args))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	return result
}

func idOf(t *testing.T, out map[string]any, path ...string) int64 {
	t.Helper()
	var cur any = out
	for _, p := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			t.Fatalf("path %v: %T is not an object", path, cur)
		}
		cur = m[p]
	}
	f, ok := cur.(float64)
	if !ok {
		t.Fatalf("path %v: %v is not a number", path, cur)
	}
	return int64(f)
}

func TestHandleWorkspaceCreate(t *testing.T) {
	h, _, _ := testSetup(t, nil)

	tests := []struct {
		name      string
		args      map[string]any
		wantError bool
		errorCode string
	}{
		{
			name:      "create",
			args:      map[string]any{"name": "Research"},
			wantError: false,
		},
		{
			name:      "create and activate",
			args:      map[string]any{"name": "Errands", "activate": true},
			wantError: false,
		},
		{
			name:      "blank name",
			args:      map[string]any{"name": "   "},
			wantError: true,
			errorCode: "INVALID_REQUEST",
		},
		{
			name:      "unknown group",
			args:      map[string]any{"name": "x", "group_id": 42},
			wantError: true,
			errorCode: "NOT_FOUND",
		},
		{
			name:      "unknown argument",
			args:      map[string]any{"name": "x", "nmae": "typo"},
			wantError: true,
			errorCode: "INVALID_REQUEST",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := call(t, h.HandleWorkspaceCreate, tt.args)

			if tt.wantError {
				if !result.IsError {
					t.Errorf("expected error result, got success")
				}
				if tt.errorCode != "" {
					assertErrorCode(t, result, tt.errorCode)
				}
			} else if result.IsError {
				t.Errorf("expected success, got error: %v", extractErrorMessage(result))
			}
		})
	}
}

func TestHandleWorkspaceLifecycle(t *testing.T) {
	h, _, _ := testSetup(t, nil)

	a := idOf(t, parseOutput(t, call(t, h.HandleWorkspaceCreate, map[string]any{"name": "A", "activate": true})), "workspace", "id")
	b := idOf(t, parseOutput(t, call(t, h.HandleWorkspaceCreate, map[string]any{"name": "B"})), "workspace", "id")

	call(t, h.HandleIdentityObserveTab, map[string]any{
		"browser_tab_id": 7, "window_id": 1, "index": 0, "url": "https://go.dev", "title": "Go",
	})

	out := parseOutput(t, call(t, h.HandleWorkspaceActivate, map[string]any{"workspace_id": b}))
	if idOf(t, out, "previous_id") != a || idOf(t, out, "tabs_archived") != 1 {
		t.Errorf("activate = %v", out)
	}

	list := parseOutput(t, call(t, h.HandleWorkspaceList, nil))
	if idOf(t, list, "active_id") != b {
		t.Errorf("active_id = %v, want %d", list["active_id"], b)
	}

	out = parseOutput(t, call(t, h.HandleWorkspaceDelete, map[string]any{"workspace_id": a}))
	if idOf(t, out, "tabs_unassigned") != 1 {
		t.Errorf("delete = %v", out)
	}

	result := call(t, h.HandleWorkspaceActivate, map[string]any{"workspace_id": a})
	assertErrorCode(t, result, "NOT_FOUND")

	result = call(t, h.HandleWorkspaceGet, map[string]any{})
	assertErrorCode(t, result, "INVALID_REQUEST")
}

func TestHandleTabs(t *testing.T) {
	h, _, _ := testSetup(t, nil)

	call(t, h.HandleWorkspaceCreate, map[string]any{"name": "A", "activate": true})
	b := idOf(t, parseOutput(t, call(t, h.HandleWorkspaceCreate, map[string]any{"name": "B"})), "workspace", "id")

	observed := parseOutput(t, call(t, h.HandleIdentityObserveTab, map[string]any{
		"browser_tab_id": 11, "window_id": 1, "index": 0, "url": "https://example.com",
	}))
	if observed["outcome"] != "created" {
		t.Errorf("outcome = %v", observed["outcome"])
	}
	tabID := idOf(t, observed, "tab", "id")

	out := parseOutput(t, call(t, h.HandleTabMove, map[string]any{"tab_ids": []int64{tabID}, "workspace_id": b}))
	if out["tab_status"] != "archived" {
		t.Errorf("move = %v, want archived", out)
	}

	out = parseOutput(t, call(t, h.HandleTabList, map[string]any{"workspace_id": b}))
	if idOf(t, out, "count") != 1 {
		t.Errorf("tab_list = %v", out)
	}

	out = parseOutput(t, call(t, h.HandleTabUpdateMeta, map[string]any{"tab_id": tabID, "tags": []string{"later"}}))
	if tags, _ := out["tags"].([]any); len(tags) != 1 {
		t.Errorf("tags = %v", out["tags"])
	}

	assertErrorCode(t, call(t, h.HandleTabList, map[string]any{"status": "closed"}), "INVALID_REQUEST")
	assertErrorCode(t, call(t, h.HandleTabMove, map[string]any{"tab_ids": []int64{}, "workspace_id": b}), "INVALID_REQUEST")
	assertErrorCode(t, call(t, h.HandleIdentityCloseTab, map[string]any{"browser_tab_id": 999}), "NOT_FOUND")
}

func TestHandleIdentitySession(t *testing.T) {
	h, _, _ := testSetup(t, nil)
	call(t, h.HandleWorkspaceCreate, map[string]any{"name": "A", "activate": true})

	first := parseOutput(t, call(t, h.HandleIdentityObserveTab, map[string]any{
		"browser_tab_id": 1, "window_id": 1, "index": 0, "url": "https://a.example",
	}))
	stableID := first["tab"].(map[string]any)["stable_id"].(string)

	out := parseOutput(t, call(t, h.HandleIdentityBeginSession, nil))
	if idOf(t, out, "tabs_unbound") != 1 {
		t.Errorf("begin_session = %v", out)
	}

	again := parseOutput(t, call(t, h.HandleIdentityObserveTab, map[string]any{
		"browser_tab_id": 50, "stable_id": stableID, "window_id": 1, "index": 0, "url": "https://a.example",
	}))
	if again["outcome"] != "rebound" || idOf(t, again, "tab", "id") != idOf(t, first, "tab", "id") {
		t.Errorf("observe after restart = %v", again)
	}

	out = parseOutput(t, call(t, h.HandleIdentityReconcile, map[string]any{"tabs": []any{}, "groups": []any{}}))
	if idOf(t, out, "tabs_archived") != 1 {
		t.Errorf("reconcile = %v", out)
	}
}

func TestHandleSnapshots(t *testing.T) {
	h, _, _ := testSetup(t, nil)

	ws := idOf(t, parseOutput(t, call(t, h.HandleWorkspaceCreate, map[string]any{"name": "Deep Work", "activate": true})), "workspace", "id")
	call(t, h.HandleIdentityObserveTab, map[string]any{"browser_tab_id": 1, "window_id": 3, "index": 0, "url": "https://a.example", "title": "A"})

	snap := parseOutput(t, call(t, h.HandleSnapshotCapture, map[string]any{"workspace_id": ws, "label": "before"}))
	snapID := idOf(t, snap, "id")
	if idOf(t, snap, "tab_count") != 1 {
		t.Errorf("capture = %v", snap)
	}

	topo := parseOutput(t, call(t, h.HandleSnapshotFetch, map[string]any{"snapshot_id": snapID}))
	if windows, _ := topo["windows"].([]any); len(windows) != 1 {
		t.Errorf("windows = %v", topo["windows"])
	}

	list := parseOutput(t, call(t, h.HandleSnapshotList, map[string]any{"workspace_id": ws}))
	if idOf(t, list, "count") != 1 {
		t.Errorf("list = %v", list)
	}

	exp := parseOutput(t, call(t, h.HandleSnapshotExport, map[string]any{"snapshot_id": snapID, "format": "markdown"}))
	if content, _ := exp["content"].(string); !strings.Contains(content, "# before") {
		t.Errorf("markdown export = %q", exp["content"])
	}

	written := parseOutput(t, call(t, h.HandleSnapshotExport, map[string]any{"snapshot_id": snapID, "format": "yaml", "path": "deep.yaml"}))
	if path, _ := written["path"].(string); filepath.Base(path) != "deep.yaml" {
		t.Errorf("path = %v", written["path"])
	}
	assertErrorCode(t, call(t, h.HandleSnapshotExport, map[string]any{"snapshot_id": snapID, "path": "../x.json"}), "INVALID_REQUEST")

	parseOutput(t, call(t, h.HandleSnapshotDelete, map[string]any{"snapshot_id": snapID}))
	assertErrorCode(t, call(t, h.HandleSnapshotFetch, map[string]any{"snapshot_id": snapID}), "NOT_FOUND")

	purge := parseOutput(t, call(t, h.HandleSnapshotPurge, map[string]any{"older_than_days": 1}))
	if idOf(t, purge, "purged") != 0 {
		t.Errorf("purge = %v", purge)
	}
}

func TestHandleGrouping(t *testing.T) {
	grouper := stubGrouper{reply: func(c *grouping.Context) string {
		ids := make([]string, len(c.Tabs))
		for i, tab := range c.Tabs {
			ids[i] = fmt.Sprint(tab.ID)
		}
		return fmt.Sprintf(`{"groups":[{"name":"All","tabIds":[%s]}],"ungroupedTabs":[]}`, strings.Join(ids, ","))
	}}
	h, _, _ := testSetup(t, grouper)

	ws := idOf(t, parseOutput(t, call(t, h.HandleWorkspaceCreate, map[string]any{"name": "A", "activate": true})), "workspace", "id")
	var tabIDs []int64
	for i := 0; i < 2; i++ {
		out := parseOutput(t, call(t, h.HandleIdentityObserveTab, map[string]any{
			"browser_tab_id": 100 + i, "window_id": 1, "index": i, "url": fmt.Sprintf("https://site%d.example", i),
		}))
		tabIDs = append(tabIDs, idOf(t, out, "tab", "id"))
	}

	ctxOut := parseOutput(t, call(t, h.HandleGroupingContext, nil))
	if tabs, _ := ctxOut["tabs"].([]any); len(tabs) != 2 {
		t.Errorf("context tabs = %v", ctxOut["tabs"])
	}

	// Missing tab: rejected with every violation listed
	result := call(t, h.HandleGroupingApply, map[string]any{
		"workspace_id": ws,
		"response":     map[string]any{"groups": []any{map[string]any{"name": "One", "tabIds": []int64{tabIDs[0], 999}}}, "ungroupedTabs": []any{}},
	})
	assertErrorCode(t, result, "VALIDATION_FAILED")
	var payload map[string]any
	json.Unmarshal([]byte(result.Content[0].(mcp.TextContent).Text), &payload)
	details := payload["error"].(map[string]any)["details"].(map[string]any)
	if v, _ := details["violations"].([]any); len(v) != 2 {
		t.Errorf("violations = %v, want unknown and missing", details["violations"])
	}

	assertErrorCode(t, call(t, h.HandleGroupingApply, map[string]any{
		"workspace_id": ws,
		"response":     map[string]any{"groups": []any{}},
	}), "VALIDATION_FAILED")

	out := parseOutput(t, call(t, h.HandleGroupingOrganize, map[string]any{}))
	applied := out["applied"].(map[string]any)
	if idOf(t, applied, "groups_created") != 1 {
		t.Errorf("organize = %v", out)
	}

	noModel, _, _ := testSetup(t, nil)
	call(t, noModel.HandleWorkspaceCreate, map[string]any{"name": "A", "activate": true})
	assertErrorCode(t, call(t, noModel.HandleGroupingOrganize, nil), "INVALID_REQUEST")
}

func TestHandleResourcesAndSettings(t *testing.T) {
	h, _, _ := testSetup(t, nil)

	r := idOf(t, parseOutput(t, call(t, h.HandleResourceCreate, map[string]any{"url": "https://go.dev"})), "id")
	g := idOf(t, parseOutput(t, call(t, h.HandleResourceGroupCreate, map[string]any{"name": "Docs"})), "id")

	parseOutput(t, call(t, h.HandleResourceGroupAdd, map[string]any{"group_id": g, "resource_id": r}))
	assertErrorCode(t, call(t, h.HandleResourceGroupAdd, map[string]any{"group_id": g, "resource_id": r}), "CONFLICT")

	ws := idOf(t, parseOutput(t, call(t, h.HandleWorkspaceCreate, map[string]any{"name": "A"})), "workspace", "id")
	parseOutput(t, call(t, h.HandleWorkspaceSetResourceGroups, map[string]any{"workspace_id": ws, "resource_group_ids": []int64{g}}))

	out := parseOutput(t, call(t, h.HandleResourceDelete, map[string]any{"resource_id": r}))
	if idOf(t, out, "groups_updated") != 1 {
		t.Errorf("delete = %v", out)
	}
	groups := parseOutput(t, call(t, h.HandleResourceGroupList, nil))
	if idOf(t, groups, "count") != 1 {
		t.Errorf("groups = %v", groups)
	}

	parseOutput(t, call(t, h.HandleSettingSet, map[string]any{"key": "theme", "value": "dark"}))
	got := parseOutput(t, call(t, h.HandleSettingGet, map[string]any{"key": "theme"}))
	if got["value"] != "dark" {
		t.Errorf("setting = %v", got)
	}
	parseOutput(t, call(t, h.HandleSettingDelete, map[string]any{"key": "theme"}))
	assertErrorCode(t, call(t, h.HandleSettingGet, map[string]any{"key": "theme"}), "NOT_FOUND")
}

func TestHandle_CancelledContextReturnsCancelled(t *testing.T) {
	h, _, _ := testSetup(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := h.HandleWorkspaceList(ctx, makeRequest(nil))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	assertErrorCode(t, result, "CANCELLED")
}

func TestServerRegistration(t *testing.T) {
	h, _, _ := testSetup(t, nil)

	s := NewServer(h, "test")
	tools := s.ListTools()
	if len(tools) != len(toolRegistry) {
		t.Errorf("registered tool count = %d, want %d", len(tools), len(toolRegistry))
	}
	for _, name := range []string{"workspace_activate", "identity_observe_tab", "snapshot_capture", "grouping_apply", "setting_set"} {
		if _, ok := tools[name]; !ok {
			t.Errorf("missing registered tool: %s", name)
		}
	}
}

func TestServerRegistration_WithDisabledTools(t *testing.T) {
	h, _, cfg := testSetup(t, nil)

	cfg.DisabledTools = []string{"workspace_delete", "snapshot_purge", "snapshot_purge"}
	tools := NewServer(h, "test").ListTools()

	if len(tools) != len(toolRegistry)-2 {
		t.Errorf("registered tool count = %d, want %d", len(tools), len(toolRegistry)-2)
	}
	for _, name := range cfg.DisabledTools {
		if _, ok := tools[name]; ok {
			t.Errorf("disabled tool %q should not be registered", name)
		}
	}
}

func TestServerRegistration_WithDisabledTypes(t *testing.T) {
	h, _, cfg := testSetup(t, nil)

	cfg.DisabledTypes = []string{"grouping", "setting"}
	tools := NewServer(h, "test").ListTools()

	for name := range tools {
		if typ := GetTypeForTool(name); typ == "grouping" || typ == "setting" {
			t.Errorf("tool %q of a disabled type is registered", name)
		}
	}
	if len(tools) != len(toolRegistry)-7 {
		t.Errorf("registered tool count = %d, want %d", len(tools), len(toolRegistry)-7)
	}

	cfg.DisabledTools = AllToolNames()
	if n := len(NewServer(h, "test").ListTools()); n != 0 {
		t.Errorf("registered tool count = %d, want 0", n)
	}
}

func TestValidateDisabled(t *testing.T) {
	if unknown := ValidateDisabledTools([]string{"tab_move", "note_store"}); len(unknown) != 1 || unknown[0] != "note_store" {
		t.Errorf("ValidateDisabledTools = %v", unknown)
	}
	if unknown := ValidateDisabledTypes([]string{"snapshot", "identity", "bogus"}); len(unknown) != 1 {
		t.Errorf("ValidateDisabledTypes = %v", unknown)
	}
	if unknown := ValidateDisabledTools(AllToolNames()); len(unknown) != 0 {
		t.Errorf("AllToolNames() returned invalid names: %v", unknown)
	}
	for _, name := range AllToolNames() {
		if unknown := ValidateDisabledTypes([]string{GetTypeForTool(name)}); len(unknown) != 0 {
			t.Errorf("tool %q has unknown type", name)
		}
	}
}

func TestErrorResult_InternalDoesNotExposeDetails(t *testing.T) {
	r := errorResult(errors.NewInternal(fmt.Errorf("sql error: open /tmp/secret.db: permission denied")))
	if !r.IsError {
		t.Fatal("expected IsError=true")
	}

	errObj := errorObject(t, r)
	if errObj["code"] != string(errors.ErrInternal) {
		t.Fatalf("code=%v, want %v", errObj["code"], errors.ErrInternal)
	}
	if _, ok := errObj["details"]; ok {
		t.Fatal("expected INTERNAL errors to omit details")
	}
}

func TestErrorResult_WrappedErrorPreservesContext(t *testing.T) {
	wrapped := fmt.Errorf("tabs[2]: %w", errors.NewNotFound("tab", 9))

	errObj := errorObject(t, errorResult(wrapped))
	if errObj["code"] != string(errors.ErrNotFound) {
		t.Errorf("code=%v, want %v", errObj["code"], errors.ErrNotFound)
	}
	if msg := errObj["message"].(string); !strings.HasPrefix(msg, "tabs[2]: ") {
		t.Errorf("message should keep wrapper context, got: %s", msg)
	}
}

func TestErrorResult_PlainError(t *testing.T) {
	errObj := errorObject(t, errorResult(fmt.Errorf("boom")))
	if errObj["code"] != string(errors.ErrInternal) || errObj["message"] == "boom" {
		t.Errorf("plain error leaked: %v", errObj)
	}
}

// Helper functions

func errorObject(t *testing.T, r *mcp.CallToolResult) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal([]byte(r.Content[0].(mcp.TextContent).Text), &payload); err != nil {
		t.Fatalf("failed to unmarshal error payload: %v", err)
	}
	return payload["error"].(map[string]any)
}

// parseOutput extracts and unmarshals the JSON output from an MCP result.
func parseOutput(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	if result.IsError {
		t.Fatalf("expected success, got error: %v", extractErrorMessage(result))
	}
	var output map[string]any
	if err := json.Unmarshal([]byte(result.Content[0].(mcp.TextContent).Text), &output); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	return output
}

func assertErrorCode(t *testing.T, result *mcp.CallToolResult, expectedCode string) {
	t.Helper()

	if !result.IsError {
		t.Errorf("expected error %s, got success: %s", expectedCode, extractErrorMessage(result))
		return
	}
	if len(result.Content) == 0 {
		t.Errorf("no content in error result")
		return
	}

	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Errorf("content is not TextContent")
		return
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(text.Text), &payload); err != nil {
		t.Errorf("failed to unmarshal error payload: %v", err)
		return
	}

	errorObj, ok := payload["error"].(map[string]any)
	if !ok {
		t.Errorf("no error object in payload")
		return
	}

	code, ok := errorObj["code"].(string)
	if !ok {
		t.Errorf("no code in error object")
		return
	}

	if code != expectedCode {
		t.Errorf("got error code %q, want %q (%s)", code, expectedCode, text.Text)
	}
}

func extractErrorMessage(result *mcp.CallToolResult) string {
	if len(result.Content) == 0 {
		return "<no content>"
	}

	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		return "<not text content>"
	}

	return text.Text
}
