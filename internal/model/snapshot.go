package model

// WorkspaceSnapshot is the write-once header of a captured workspace topology.
type WorkspaceSnapshot struct {
	ID          int64   `json:"id"`
	WorkspaceID int64   `json:"workspace_id"`
	Label       *string `json:"label,omitempty"`
	TabCount    int     `json:"tab_count"`
	GroupCount  int     `json:"group_count"`
	WindowCount int     `json:"window_count"`
	CreatedAt   int64   `json:"created_at"`
}

// SnapshotTab is one captured tab. GroupStableID references a SnapshotTabGroup
// of the same snapshot.
type SnapshotTab struct {
	ID            int64   `json:"id"`
	SnapshotID    int64   `json:"snapshot_id"`
	StableID      string  `json:"stable_id"`
	WindowID      int64   `json:"window_id"`
	Index         int     `json:"index"`
	URL           string  `json:"url"`
	Title         string  `json:"title"`
	GroupStableID *string `json:"group_stable_id,omitempty"`
}

// SnapshotTabGroup is one captured tab group.
type SnapshotTabGroup struct {
	ID         int64  `json:"id"`
	SnapshotID int64  `json:"snapshot_id"`
	StableID   string `json:"stable_id"`
	WindowID   int64  `json:"window_id"`
	Title      string `json:"title"`
	Color      string `json:"color"`
	Collapsed  bool   `json:"collapsed"`
}
