package ops

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lmdevv/tabby-sub002/internal/config"
	"github.com/lmdevv/tabby-sub002/internal/errors"
	"github.com/lmdevv/tabby-sub002/internal/identity"
	"github.com/lmdevv/tabby-sub002/internal/model"
)

// TestWorkflow_BrowsingSession walks one workspace through a browser session:
// tabs are observed, snapshotted, organized, switched away from, re-observed
// after a restart and finally deleted.
func TestWorkflow_BrowsingSession(t *testing.T) {
	database := setupDB(t)
	ctx := context.Background()
	cfg := config.DefaultConfig()

	research, err := CreateWorkspace(ctx, database, CreateWorkspaceInput{Name: "Research", Activate: true})
	require.NoError(t, err)
	errands, err := CreateWorkspace(ctx, database, CreateWorkspaceInput{Name: "Errands"})
	require.NoError(t, err)

	observe := func(browserID int64, index int, url, stableID string) *identity.ObserveTabOutput {
		out, err := identity.ObserveTab(ctx, database, identity.TabObservation{
			BrowserTabID: browserID,
			StableID:     stableID,
			WindowID:     1,
			Index:        index,
			URL:          url,
			Title:        url,
		})
		require.NoError(t, err)
		return out
	}

	ref := observe(101, 0, "https://go.dev/doc/effective_go", "")
	blog := observe(102, 1, "https://go.dev/blog", "")
	news := observe(103, 2, "https://news.ycombinator.com", "")
	mgmt := observe(104, 3, "chrome-extension://abc/tabs.html", "")
	require.Equal(t, identity.OutcomeCreated, ref.Outcome)
	require.Equal(t, research.Workspace.ID, ref.Tab.WorkspaceID)
	require.Equal(t, model.StatusActive, ref.Tab.Status)

	// Snapshot
	snap, err := CaptureSnapshot(ctx, database, CaptureSnapshotInput{WorkspaceID: research.Workspace.ID})
	require.NoError(t, err)
	require.Equal(t, 4, snap.TabCount)
	require.Equal(t, 1, snap.WindowCount)

	// Organize
	reply := fmt.Sprintf(`{"groups":[{"name":"Go","tabIds":[%d,%d],"color":"blue"}],"ungroupedTabs":[%d]}`,
		ref.Tab.ID, blog.Tab.ID, news.Tab.ID)
	grouper := &fakeGrouper{reply: []byte(reply)}
	organized, err := Organize(ctx, database, cfg, grouper, nil, OrganizeInput{})
	require.NoError(t, err)
	require.Len(t, grouper.seen.Tabs, 3, "management tab must not reach the model")
	require.Equal(t, 1, organized.Applied.GroupsCreated)

	goGroup := organized.Applied.Groups[0]
	require.Equal(t, "Go", goGroup.Title)
	require.ElementsMatch(t, []int64{ref.Tab.ID, blog.Tab.ID}, goGroup.TabIDs)
	require.Equal(t, goGroup.GroupID, *getTab(t, database, ref.Tab.ID).GroupID)
	require.Nil(t, getTab(t, database, mgmt.Tab.ID).GroupID)

	// The snapshot is history, not live state
	topo, err := FetchSnapshot(ctx, database, FetchSnapshotInput{SnapshotID: snap.ID})
	require.NoError(t, err)
	for _, tab := range topo.Windows[0].Tabs {
		require.Nil(t, tab.GroupStableID)
	}

	// Switch
	switched, err := Activate(ctx, database, ActivateInput{WorkspaceID: errands.Workspace.ID})
	require.NoError(t, err)
	require.Equal(t, int64(4), switched.TabsArchived)
	require.Equal(t, int64(1), switched.GroupsArchived)
	require.Equal(t, research.Workspace.ID, *switched.PreviousID)
	assertLifecycleInvariants(t, database)

	// Browser restart: ids are reissued, stable ids survive
	_, err = identity.BeginSession(ctx, database)
	require.NoError(t, err)
	again := observe(201, 0, "https://go.dev/doc/effective_go", ref.Tab.StableID)
	require.Equal(t, identity.OutcomeRebound, again.Outcome)
	require.Equal(t, ref.Tab.ID, again.Tab.ID)
	require.Equal(t, model.StatusArchived, again.Tab.Status, "tab of an inactive workspace stays archived")

	fresh := observe(202, 1, "https://example.com/todo", "")
	require.Equal(t, errands.Workspace.ID, fresh.Tab.WorkspaceID)
	assertLifecycleInvariants(t, database)

	// Delete
	deleted, err := DeleteWorkspace(ctx, database, DeleteWorkspaceInput{WorkspaceID: research.Workspace.ID})
	require.NoError(t, err)
	require.False(t, deleted.WasActive)
	require.Equal(t, int64(4), deleted.TabsUnassigned)
	require.Equal(t, model.Unassigned, getTab(t, database, ref.Tab.ID).WorkspaceID)
	require.Equal(t, ref.Tab.StableID, getTab(t, database, ref.Tab.ID).StableID)

	_, err = FetchSnapshot(ctx, database, FetchSnapshotInput{SnapshotID: snap.ID})
	require.True(t, errors.Is(err, errors.ErrNotFound))

	list, err := ListWorkspaces(ctx, database)
	require.NoError(t, err)
	require.Len(t, list.Workspaces, 1)
	require.Equal(t, errands.Workspace.ID, *list.ActiveID)
	require.Equal(t, 4, list.UnassignedTabs)
	assertLifecycleInvariants(t, database)
}
