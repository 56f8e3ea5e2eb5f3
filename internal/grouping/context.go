// Package grouping builds the model-facing view of a workspace and gates
// model-proposed tab groupings before they touch the store.
package grouping

import (
	"context"

	"github.com/lmdevv/tabby-sub002/internal/db"
	"github.com/lmdevv/tabby-sub002/internal/model"
)

// ContextGroup is an active tab group as the model sees it.
type ContextGroup struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	Color string `json:"color"`
}

// ContextTab is an active tab as the model sees it.
// GroupID is omitted for ungrouped tabs.
type ContextTab struct {
	ID      int64  `json:"id"`
	Title   string `json:"title"`
	URL     string `json:"url"`
	GroupID *int64 `json:"groupId,omitempty"`

	WindowID int64 `json:"-"`
}

// Context is the minimal projection of one workspace's live state.
// Windows is only set when the tabs span more than one browser window.
type Context struct {
	WorkspaceID int64             `json:"-"`
	Groups      []ContextGroup    `json:"groups"`
	Tabs        []ContextTab      `json:"tabs"`
	Windows     map[int64][]int64 `json:"windows,omitempty"`
}

// TabIDs returns the context's tab ids in order.
func (c *Context) TabIDs() []int64 {
	ids := make([]int64, len(c.Tabs))
	for i, t := range c.Tabs {
		ids[i] = t.ID
	}
	return ids
}

// BuildContext reads the active tabs and groups of a workspace. It never
// caches: every call reflects the latest committed state visible to q.
// Tabs matched by filter are left out, and so are groups left without a tab.
func BuildContext(ctx context.Context, q db.Querier, workspaceID int64, filter *URLFilter) (*Context, error) {
	if _, err := db.GetWorkspace(ctx, q, workspaceID); err != nil {
		return nil, err
	}

	groups, err := db.ListTabGroups(ctx, q, db.TabGroupFilter{WorkspaceID: &workspaceID, Status: model.StatusActive})
	if err != nil {
		return nil, err
	}
	tabs, err := db.ListTabs(ctx, q, db.TabFilter{WorkspaceID: &workspaceID, Status: model.StatusActive, OpenOnly: true})
	if err != nil {
		return nil, err
	}

	c := &Context{
		WorkspaceID: workspaceID,
		Groups:      make([]ContextGroup, 0, len(groups)),
		Tabs:        make([]ContextTab, 0, len(tabs)),
	}

	known := make(map[int64]bool, len(groups))
	for _, g := range groups {
		known[g.ID] = true
	}

	used := make(map[int64]bool, len(groups))
	windows := make(map[int64][]int64)
	for _, t := range tabs {
		if filter.Excluded(t.URL) {
			continue
		}
		ct := ContextTab{ID: t.ID, Title: t.Title, URL: t.URL, WindowID: t.WindowID}
		if t.GroupID != nil && known[*t.GroupID] {
			gid := *t.GroupID
			ct.GroupID = &gid
			used[gid] = true
		}
		c.Tabs = append(c.Tabs, ct)
		windows[t.WindowID] = append(windows[t.WindowID], t.ID)
	}

	// Groups holding only filtered tabs are the management UI's own
	for _, g := range groups {
		if used[g.ID] {
			c.Groups = append(c.Groups, ContextGroup{ID: g.ID, Title: g.Title, Color: g.Color})
		}
	}

	if len(windows) > 1 {
		c.Windows = windows
	}
	return c, nil
}
