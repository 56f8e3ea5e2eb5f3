package ops

import (
	"context"
	"database/sql"
	stderrors "errors"
	"testing"

	"github.com/lmdevv/tabby-sub002/internal/config"
	"github.com/lmdevv/tabby-sub002/internal/db"
	"github.com/lmdevv/tabby-sub002/internal/errors"
	"github.com/lmdevv/tabby-sub002/internal/grouping"
	"github.com/lmdevv/tabby-sub002/internal/model"
)

type fakeGrouper struct {
	reply []byte
	err   error
	seen  *grouping.Context
	// mutate runs between the model call and the apply, like a tab event would.
	mutate func()
}

func (f *fakeGrouper) Group(_ context.Context, c *grouping.Context, _ string) ([]byte, error) {
	f.seen = c
	if f.mutate != nil {
		f.mutate()
	}
	return f.reply, f.err
}

func groupedTabs(t *testing.T, database *sql.DB, groupID int64) []model.Tab {
	t.Helper()
	tabs, err := db.ListTabs(context.Background(), database, db.TabFilter{GroupID: &groupID})
	if err != nil {
		t.Fatalf("ListTabs failed: %v", err)
	}
	return tabs
}

func TestApplyGrouping(t *testing.T) {
	database := setupDB(t)
	ctx := context.Background()
	cfg := config.DefaultConfig()

	w := createWorkspace(t, database, "main", true)
	stale := addGroup(t, database, w.ID, 1, "Stale", model.StatusActive)
	docs := addGroup(t, database, w.ID, 1, "docs", model.StatusActive)
	a := addTab(t, database, w.ID, 1, 0, model.StatusActive, &stale.ID)
	b := addTab(t, database, w.ID, 1, 1, model.StatusActive, nil)
	c := addTab(t, database, w.ID, 1, 2, model.StatusActive, &docs.ID)

	resp := &grouping.Response{
		Groups: []grouping.ResponseGroup{
			{Name: "Docs", TabIDs: []int64{a.ID, c.ID}, Color: "green"},
			{Name: "Reading", TabIDs: []int64{b.ID}},
		},
		UngroupedTabs: []int64{},
	}
	out, err := ApplyGrouping(ctx, database, cfg, ApplyGroupingInput{WorkspaceID: w.ID, Response: resp})
	if err != nil {
		t.Fatalf("ApplyGrouping failed: %v", err)
	}
	if out.GroupsReused != 1 || out.GroupsCreated != 1 || out.GroupsArchived != 1 {
		t.Errorf("out = %+v", out)
	}

	if out.Groups[0].GroupID != docs.ID || out.Groups[0].Color != "green" || out.Groups[0].Created {
		t.Errorf("docs group = %+v, want reused with new color", out.Groups[0])
	}
	if got := groupedTabs(t, database, docs.ID); len(got) != 2 {
		t.Errorf("docs group has %d tabs, want 2", len(got))
	}

	reading := out.Groups[1]
	if !reading.Created || reading.Color != model.DefaultGroupColor || reading.StableID == "" {
		t.Errorf("reading group = %+v", reading)
	}
	if got := getTab(t, database, b.ID); got.GroupID == nil || *got.GroupID != reading.GroupID {
		t.Errorf("tab b group = %v, want %d", got.GroupID, reading.GroupID)
	}

	g, _ := db.GetTabGroup(ctx, database, stale.ID)
	if g.Status != model.StatusArchived {
		t.Errorf("emptied group status = %s, want archived", g.Status)
	}
}

func TestApplyGrouping_UngroupsAndDryRun(t *testing.T) {
	database := setupDB(t)
	ctx := context.Background()

	w := createWorkspace(t, database, "main", true)
	g := addGroup(t, database, w.ID, 1, "Old", model.StatusActive)
	a := addTab(t, database, w.ID, 1, 0, model.StatusActive, &g.ID)

	resp := &grouping.Response{Groups: []grouping.ResponseGroup{{Name: "New", TabIDs: []int64{a.ID}}}, UngroupedTabs: []int64{}}
	out, err := ApplyGrouping(ctx, database, nil, ApplyGroupingInput{WorkspaceID: w.ID, Response: resp, DryRun: true})
	if err != nil {
		t.Fatalf("dry run failed: %v", err)
	}
	if !out.DryRun || out.GroupsCreated != 1 || out.Groups[0].GroupID != 0 {
		t.Errorf("dry run out = %+v", out)
	}
	if got := getTab(t, database, a.ID); got.GroupID == nil || *got.GroupID != g.ID {
		t.Error("dry run must not write")
	}

	resp = &grouping.Response{Groups: []grouping.ResponseGroup{}, UngroupedTabs: []int64{a.ID}}
	if _, err := ApplyGrouping(ctx, database, nil, ApplyGroupingInput{WorkspaceID: w.ID, Response: resp}); err != nil {
		t.Fatalf("ApplyGrouping failed: %v", err)
	}
	if getTab(t, database, a.ID).GroupID != nil {
		t.Error("tab should be ungrouped")
	}
}

func TestApplyGrouping_RejectsWithoutWriting(t *testing.T) {
	database := setupDB(t)
	ctx := context.Background()

	w := createWorkspace(t, database, "main", true)
	a := addTab(t, database, w.ID, 10, 0, model.StatusActive, nil)
	b := addTab(t, database, w.ID, 20, 0, model.StatusActive, nil)
	c := addTab(t, database, w.ID, 10, 1, model.StatusActive, nil)

	resp := &grouping.Response{
		Groups:        []grouping.ResponseGroup{{Name: "Mixed", TabIDs: []int64{a.ID, b.ID}}},
		UngroupedTabs: []int64{c.ID, c.ID},
	}
	_, err := ApplyGrouping(ctx, database, nil, ApplyGroupingInput{WorkspaceID: w.ID, Response: resp})
	if !errors.Is(err, errors.ErrValidationFailed) {
		t.Fatalf("error = %v, want VALIDATION_FAILED", err)
	}
	tErr, _ := errors.As(err)
	vs, _ := tErr.Details["violations"].([]grouping.Violation)
	if len(vs) != 2 {
		t.Errorf("violations = %+v, want duplicate and window mismatch", vs)
	}

	groups, _ := db.ListTabGroups(ctx, database, db.TabGroupFilter{WorkspaceID: &w.ID})
	if len(groups) != 0 {
		t.Errorf("rejected response created %d groups", len(groups))
	}
}

func TestApplyGrouping_ManagementTabsAreUnknown(t *testing.T) {
	database := setupDB(t)
	ctx := context.Background()
	cfg := config.DefaultConfig()

	w := createWorkspace(t, database, "main", true)
	a := addTab(t, database, w.ID, 1, 0, model.StatusActive, nil)
	mgmt := addTab(t, database, w.ID, 1, 1, model.StatusActive, nil)
	mgmt.URL = "chrome-extension://abc/tabs.html"
	if err := db.UpdateTab(ctx, database, mgmt); err != nil {
		t.Fatalf("UpdateTab failed: %v", err)
	}

	resp := &grouping.Response{Groups: []grouping.ResponseGroup{{Name: "All", TabIDs: []int64{a.ID, mgmt.ID}}}, UngroupedTabs: []int64{}}
	if _, err := ApplyGrouping(ctx, database, cfg, ApplyGroupingInput{WorkspaceID: w.ID, Response: resp}); !errors.Is(err, errors.ErrValidationFailed) {
		t.Fatalf("error = %v, want VALIDATION_FAILED", err)
	}

	resp = &grouping.Response{Groups: []grouping.ResponseGroup{{Name: "All", TabIDs: []int64{a.ID}}}, UngroupedTabs: []int64{}}
	if _, err := ApplyGrouping(ctx, database, cfg, ApplyGroupingInput{WorkspaceID: w.ID, Response: resp}); err != nil {
		t.Fatalf("ApplyGrouping without the management tab failed: %v", err)
	}
	if getTab(t, database, mgmt.ID).GroupID != nil {
		t.Error("management tab must never be grouped")
	}
}

func TestOrganize(t *testing.T) {
	database := setupDB(t)
	ctx := context.Background()

	w := createWorkspace(t, database, "main", true)
	a := addTab(t, database, w.ID, 1, 0, model.StatusActive, nil)
	b := addTab(t, database, w.ID, 1, 1, model.StatusActive, nil)

	grouper := &fakeGrouper{reply: []byte(`{"groups":[{"name":"Both","tabIds":[` + itoa(a.ID) + `,` + itoa(b.ID) + `]}],"ungroupedTabs":[]}`)}
	out, err := Organize(ctx, database, config.DefaultConfig(), grouper, nil, OrganizeInput{})
	if err != nil {
		t.Fatalf("Organize failed: %v", err)
	}
	if grouper.seen == nil || len(grouper.seen.Tabs) != 2 {
		t.Errorf("grouper saw %+v", grouper.seen)
	}
	if len(out.Applied.Groups) != 1 || out.Applied.GroupsCreated != 1 {
		t.Errorf("applied = %+v", out.Applied)
	}
	if getTab(t, database, a.ID).GroupID == nil {
		t.Error("tab a should be grouped")
	}
}

func TestOrganize_Failures(t *testing.T) {
	database := setupDB(t)
	ctx := context.Background()

	if _, err := Organize(ctx, database, nil, &fakeGrouper{}, nil, OrganizeInput{}); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("no active workspace error = %v", err)
	}

	w := createWorkspace(t, database, "main", true)
	if _, err := Organize(ctx, database, nil, &fakeGrouper{}, nil, OrganizeInput{}); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("empty workspace error = %v", err)
	}

	a := addTab(t, database, w.ID, 1, 0, model.StatusActive, nil)

	_, err := Organize(ctx, database, nil, &fakeGrouper{err: stderrors.New("overloaded")}, nil, OrganizeInput{})
	if !errors.Is(err, errors.ErrUpstreamFailed) {
		t.Errorf("model failure error = %v, want UPSTREAM_FAILED", err)
	}

	_, err = Organize(ctx, database, nil, &fakeGrouper{reply: []byte("I grouped your tabs!")}, nil, OrganizeInput{})
	if !errors.Is(err, errors.ErrValidationFailed) {
		t.Errorf("malformed reply error = %v, want VALIDATION_FAILED", err)
	}

	// a tab opened while the model was thinking makes the answer stale
	stale := &fakeGrouper{
		reply:  []byte(`{"groups":[],"ungroupedTabs":[` + itoa(a.ID) + `]}`),
		mutate: func() { addTab(t, database, w.ID, 1, 1, model.StatusActive, nil) },
	}
	_, err = Organize(ctx, database, nil, stale, nil, OrganizeInput{})
	if !errors.Is(err, errors.ErrValidationFailed) {
		t.Errorf("stale reply error = %v, want VALIDATION_FAILED", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	defer cancel()
	_, err = Organize(cancelled, database, nil, &fakeGrouper{err: context.Canceled, mutate: cancel}, nil, OrganizeInput{})
	if !errors.Is(err, errors.ErrCancelled) {
		t.Errorf("cancelled error = %v, want CANCELLED", err)
	}

	if _, err := Organize(ctx, database, nil, nil, nil, OrganizeInput{}); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("nil grouper error = %v", err)
	}
}

func TestGroupingContext(t *testing.T) {
	database := setupDB(t)
	ctx := context.Background()
	cfg := config.DefaultConfig()

	if _, err := GroupingContext(ctx, database, cfg, GroupingContextInput{}); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("no active workspace error = %v, want INVALID_REQUEST", err)
	}

	w := createWorkspace(t, database, "main", true)
	addTab(t, database, w.ID, 1, 0, model.StatusActive, nil)
	mgmt := addTab(t, database, w.ID, 1, 1, model.StatusActive, nil)
	mgmt.URL = "moz-extension://uuid/tabs.html"
	if err := db.UpdateTab(ctx, database, mgmt); err != nil {
		t.Fatalf("UpdateTab failed: %v", err)
	}

	c, err := GroupingContext(ctx, database, cfg, GroupingContextInput{})
	if err != nil {
		t.Fatalf("GroupingContext failed: %v", err)
	}
	if len(c.Tabs) != 1 || c.Tabs[0].URL == mgmt.URL {
		t.Errorf("tabs = %+v, want management page excluded", c.Tabs)
	}

	// Nothing is cached between calls
	addTab(t, database, w.ID, 2, 0, model.StatusActive, nil)
	c, err = GroupingContext(ctx, database, cfg, GroupingContextInput{WorkspaceID: &w.ID})
	if err != nil {
		t.Fatalf("GroupingContext failed: %v", err)
	}
	if len(c.Tabs) != 2 || len(c.Windows) != 2 {
		t.Errorf("context = %+v, want 2 tabs over 2 windows", c)
	}
}

func TestApplyGrouping_RejectsRepeatedGroupName(t *testing.T) {
	database := setupDB(t)
	ctx := context.Background()

	w := createWorkspace(t, database, "main", true)
	a := addTab(t, database, w.ID, 1, 0, model.StatusActive, nil)
	b := addTab(t, database, w.ID, 1, 1, model.StatusActive, nil)

	resp := &grouping.Response{
		Groups: []grouping.ResponseGroup{
			{Name: "Docs", TabIDs: []int64{a.ID}, Color: "blue"},
			{Name: "DOCS", TabIDs: []int64{b.ID}, Color: "red"},
		},
		UngroupedTabs: []int64{},
	}
	_, err := ApplyGrouping(ctx, database, nil, ApplyGroupingInput{WorkspaceID: w.ID, Response: resp})
	if !errors.Is(err, errors.ErrValidationFailed) {
		t.Fatalf("error = %v, want VALIDATION_FAILED", err)
	}
	tErr, _ := errors.As(err)
	vs, _ := tErr.Details["violations"].([]grouping.Violation)
	if len(vs) != 1 || vs[0].Code != grouping.ViolationDuplicateGroup {
		t.Errorf("violations = %+v, want one duplicate_group", vs)
	}

	groups, _ := db.ListTabGroups(ctx, database, db.TabGroupFilter{WorkspaceID: &w.ID})
	if len(groups) != 0 {
		t.Errorf("rejected response created %d groups", len(groups))
	}
	if getTab(t, database, a.ID).GroupID != nil || getTab(t, database, b.ID).GroupID != nil {
		t.Error("rejected response must not group tabs")
	}
}
