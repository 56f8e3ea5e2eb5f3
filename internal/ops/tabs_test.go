package ops

import (
	"context"
	"reflect"
	"testing"

	"github.com/lmdevv/tabby-sub002/internal/errors"
	"github.com/lmdevv/tabby-sub002/internal/model"
)

func TestListTabs(t *testing.T) {
	database := setupDB(t)
	ctx := context.Background()

	w := createWorkspace(t, database, "A", true)
	addTab(t, database, w.ID, 2, 0, model.StatusActive, nil)
	addTab(t, database, w.ID, 1, 0, model.StatusActive, nil)
	addTab(t, database, w.ID, 1, 1, model.StatusArchived, nil)

	out, err := ListTabs(ctx, database, ListTabsInput{WorkspaceID: &w.ID, Status: "active"})
	if err != nil {
		t.Fatalf("ListTabs failed: %v", err)
	}
	if out.Count != 2 || out.Tabs[0].WindowID != 1 {
		t.Errorf("tabs = %+v", out.Tabs)
	}

	if _, err := ListTabs(ctx, database, ListTabsInput{Status: "closed"}); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("bad status error = %v", err)
	}
	missing := int64(99)
	if _, err := ListTabs(ctx, database, ListTabsInput{WorkspaceID: &missing}); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("unknown workspace error = %v", err)
	}
	unassigned := model.Unassigned
	if out, err := ListTabs(ctx, database, ListTabsInput{WorkspaceID: &unassigned}); err != nil || out.Count != 0 {
		t.Errorf("unassigned = %+v, %v", out, err)
	}
}

func TestMoveTabs(t *testing.T) {
	database := setupDB(t)
	ctx := context.Background()

	src := createWorkspace(t, database, "src", true)
	dst := createWorkspace(t, database, "dst", false)
	g := addGroup(t, database, src.ID, 1, "Docs", model.StatusActive)
	a := addTab(t, database, src.ID, 1, 0, model.StatusActive, &g.ID)
	b := addTab(t, database, src.ID, 1, 1, model.StatusActive, nil)

	out, err := MoveTabs(ctx, database, MoveTabsInput{TabIDs: []int64{a.ID}, WorkspaceID: dst.ID})
	if err != nil {
		t.Fatalf("MoveTabs failed: %v", err)
	}
	if out.Moved != 1 || out.Status != model.StatusArchived || out.GroupsArchived != 1 {
		t.Errorf("out = %+v", out)
	}
	moved := getTab(t, database, a.ID)
	if moved.WorkspaceID != dst.ID || moved.Status != model.StatusArchived || moved.GroupID != nil {
		t.Errorf("moved tab = %+v", moved)
	}
	if moved.StableID != a.StableID {
		t.Error("moving must keep the stable id")
	}
	assertLifecycleInvariants(t, database)

	// back into the active workspace: active again
	out, err = MoveTabs(ctx, database, MoveTabsInput{TabIDs: []int64{a.ID}, WorkspaceID: src.ID})
	if err != nil {
		t.Fatalf("MoveTabs failed: %v", err)
	}
	if out.Status != model.StatusActive || getTab(t, database, a.ID).Status != model.StatusActive {
		t.Errorf("out = %+v, want active", out)
	}

	if _, err := MoveTabs(ctx, database, MoveTabsInput{TabIDs: []int64{b.ID, 999}, WorkspaceID: dst.ID}); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("unknown tab error = %v", err)
	}
	if getTab(t, database, b.ID).WorkspaceID != src.ID {
		t.Error("failed move must not move any tab")
	}
	if _, err := MoveTabs(ctx, database, MoveTabsInput{WorkspaceID: dst.ID}); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("empty move error = %v", err)
	}
	if _, err := MoveTabs(ctx, database, MoveTabsInput{TabIDs: []int64{b.ID, b.ID}, WorkspaceID: dst.ID}); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("duplicate ids error = %v", err)
	}
}

func TestUpdateTabMeta(t *testing.T) {
	database := setupDB(t)
	ctx := context.Background()

	w := createWorkspace(t, database, "A", true)
	tab := addTab(t, database, w.ID, 1, 0, model.StatusActive, nil)

	got, err := UpdateTabMeta(ctx, database, UpdateTabMetaInput{TabID: tab.ID, Tags: []string{"read later"}, Description: strPtr("for friday")})
	if err != nil {
		t.Fatalf("UpdateTabMeta failed: %v", err)
	}
	if !reflect.DeepEqual(got.Tags, []string{"read later"}) || got.Description == nil || *got.Description != "for friday" {
		t.Errorf("tab = %+v", got)
	}
	stored := getTab(t, database, tab.ID)
	if stored.StableID != tab.StableID || stored.URL != tab.URL {
		t.Errorf("meta update touched observed fields: %+v", stored)
	}

	groups, err := ListTabGroups(ctx, database, ListTabGroupsInput{WorkspaceID: &w.ID})
	if err != nil || groups.Count != 0 {
		t.Errorf("ListTabGroups = %+v, %v", groups, err)
	}
	if _, err := UpdateTabMeta(ctx, database, UpdateTabMetaInput{TabID: 404}); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("unknown tab error = %v", err)
	}
}
