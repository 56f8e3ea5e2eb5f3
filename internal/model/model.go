// Package model defines the durable entities of the workspace store.
package model

// Unassigned is the workspace id of tabs and tab groups that belong to no workspace.
const Unassigned int64 = -1

// Status is the lifecycle status shared by tabs and tab groups.
type Status string

const (
	StatusActive   Status = "active"
	StatusArchived Status = "archived"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusActive || s == StatusArchived
}

// WorkspaceGroup is a UI-only folder of workspaces.
type WorkspaceGroup struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	Icon      *string `json:"icon,omitempty"`
	Collapsed bool    `json:"collapsed"`
}

// Workspace is a named set of tabs and tab groups.
type Workspace struct {
	ID          int64   `json:"id"`
	GroupID     *int64  `json:"group_id,omitempty"`
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`

	// CreatedAt and LastOpened are Unix milliseconds
	CreatedAt  int64 `json:"created_at"`
	LastOpened int64 `json:"last_opened"`

	Active bool `json:"active"`

	// ResourceGroupIDs is in display order and references only existing resource groups
	ResourceGroupIDs []int64 `json:"resource_group_ids"`
}

// Tab is the durable record of a browser tab.
type Tab struct {
	ID int64 `json:"id"`

	// StableID survives browser restarts; it is assigned once and never reused
	StableID string `json:"stable_id"`

	// WorkspaceID is Unassigned when the tab belongs to no workspace
	WorkspaceID int64  `json:"workspace_id"`
	WindowID    int64  `json:"window_id"`
	Index       int    `json:"index"`
	URL         string `json:"url"`
	Title       string `json:"title"`
	GroupID     *int64 `json:"group_id,omitempty"`
	Status      Status `json:"tab_status"`

	Tags        []string `json:"tags,omitempty"`
	Description *string  `json:"description,omitempty"`

	// BrowserTabID is the ephemeral id for the current browser session (nil when unbound)
	BrowserTabID *int64 `json:"browser_tab_id,omitempty"`

	// ClosedAt is set when the browser closed the tab; such a tab is never reactivated by a switch
	ClosedAt *int64 `json:"closed_at,omitempty"`

	CreatedAt int64 `json:"created_at"`
	UpdatedAt int64 `json:"updated_at"`
}

// TabGroup is the durable record of a browser tab group.
type TabGroup struct {
	ID             int64  `json:"id"`
	StableID       string `json:"stable_id"`
	WorkspaceID    int64  `json:"workspace_id"`
	WindowID       int64  `json:"window_id"`
	Title          string `json:"title"`
	Color          string `json:"color"`
	Collapsed      bool   `json:"collapsed"`
	Status         Status `json:"group_status"`
	BrowserGroupID *int64 `json:"browser_group_id,omitempty"`
	CreatedAt      int64  `json:"created_at"`
	UpdatedAt      int64  `json:"updated_at"`
}

// Resource is a durable bookmark, independent of live tabs.
type Resource struct {
	ID          int64    `json:"id"`
	URL         string   `json:"url"`
	Title       string   `json:"title"`
	Tags        []string `json:"tags,omitempty"`
	Description *string  `json:"description,omitempty"`
	CreatedAt   int64    `json:"created_at"`
	UpdatedAt   int64    `json:"updated_at"`
}

// ResourceGroup is an ordered list of resources. It references them but does not own them.
type ResourceGroup struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	ResourceIDs []int64 `json:"resource_ids"`
	CreatedAt   int64   `json:"created_at"`
	UpdatedAt   int64   `json:"updated_at"`
}

// Setting is a process-wide key/value pair.
type Setting struct {
	ID        int64  `json:"id"`
	Key       string `json:"key"`
	Value     string `json:"value"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}
