package db

import (
	"context"
	"database/sql"

	"github.com/lmdevv/tabby-sub002/internal/errors"
	"github.com/lmdevv/tabby-sub002/internal/model"
)

// InsertSnapshot writes a snapshot header and sets s.ID.
func InsertSnapshot(ctx context.Context, q Querier, s *model.WorkspaceSnapshot) error {
	res, err := q.ExecContext(ctx, `
		INSERT INTO workspace_snapshots (workspace_id, label, tab_count, group_count, window_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, s.WorkspaceID, toNullString(s.Label), s.TabCount, s.GroupCount, s.WindowCount, s.CreatedAt)
	if err != nil {
		if isForeignKeyError(err) {
			return errors.NewNotFound("workspace", s.WorkspaceID)
		}
		return errors.NewInternal(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return errors.NewInternal(err)
	}
	s.ID = id
	return nil
}

// InsertSnapshotTab writes one captured tab and sets t.ID.
func InsertSnapshotTab(ctx context.Context, q Querier, t *model.SnapshotTab) error {
	res, err := q.ExecContext(ctx, `
		INSERT INTO snapshot_tabs (snapshot_id, stable_id, window_id, tab_index, url, title, group_stable_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, t.SnapshotID, t.StableID, t.WindowID, t.Index, t.URL, t.Title, toNullString(t.GroupStableID))
	if err != nil {
		return errors.NewInternal(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return errors.NewInternal(err)
	}
	t.ID = id
	return nil
}

// InsertSnapshotTabGroup writes one captured tab group and sets g.ID.
func InsertSnapshotTabGroup(ctx context.Context, q Querier, g *model.SnapshotTabGroup) error {
	res, err := q.ExecContext(ctx, `
		INSERT INTO snapshot_tab_groups (snapshot_id, stable_id, window_id, title, color, collapsed)
		VALUES (?, ?, ?, ?, ?, ?)
	`, g.SnapshotID, g.StableID, g.WindowID, g.Title, g.Color, boolToInt(g.Collapsed))
	if err != nil {
		return errors.NewInternal(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return errors.NewInternal(err)
	}
	g.ID = id
	return nil
}

// GetSnapshot retrieves a snapshot header by id.
func GetSnapshot(ctx context.Context, q Querier, id int64) (*model.WorkspaceSnapshot, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, workspace_id, label, tab_count, group_count, window_count, created_at
		FROM workspace_snapshots WHERE id = ?
	`, id)
	s, err := scanSnapshot(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("snapshot", id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return s, nil
}

// ListSnapshots returns the snapshots of a workspace, newest first.
func ListSnapshots(ctx context.Context, q Querier, workspaceID int64) ([]model.WorkspaceSnapshot, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, workspace_id, label, tab_count, group_count, window_count, created_at
		FROM workspace_snapshots WHERE workspace_id = ?
		ORDER BY created_at DESC, id DESC
	`, workspaceID)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	snapshots := []model.WorkspaceSnapshot{}
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		snapshots = append(snapshots, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return snapshots, nil
}

// ListSnapshotTabs returns the captured tabs ordered by window then index.
func ListSnapshotTabs(ctx context.Context, q Querier, snapshotID int64) ([]model.SnapshotTab, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, snapshot_id, stable_id, window_id, tab_index, url, title, group_stable_id
		FROM snapshot_tabs WHERE snapshot_id = ?
		ORDER BY window_id, tab_index, id
	`, snapshotID)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	tabs := []model.SnapshotTab{}
	for rows.Next() {
		var (
			t        model.SnapshotTab
			groupSID sql.NullString
		)
		if err := rows.Scan(&t.ID, &t.SnapshotID, &t.StableID, &t.WindowID, &t.Index, &t.URL, &t.Title, &groupSID); err != nil {
			return nil, errors.NewInternal(err)
		}
		t.GroupStableID = fromNullString(groupSID)
		tabs = append(tabs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return tabs, nil
}

// ListSnapshotTabGroups returns the captured tab groups ordered by window then id.
func ListSnapshotTabGroups(ctx context.Context, q Querier, snapshotID int64) ([]model.SnapshotTabGroup, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, snapshot_id, stable_id, window_id, title, color, collapsed
		FROM snapshot_tab_groups WHERE snapshot_id = ?
		ORDER BY window_id, id
	`, snapshotID)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	groups := []model.SnapshotTabGroup{}
	for rows.Next() {
		var (
			g         model.SnapshotTabGroup
			collapsed int
		)
		if err := rows.Scan(&g.ID, &g.SnapshotID, &g.StableID, &g.WindowID, &g.Title, &g.Color, &collapsed); err != nil {
			return nil, errors.NewInternal(err)
		}
		g.Collapsed = collapsed == 1
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return groups, nil
}

// DeleteSnapshot removes a snapshot and, by cascade, its tabs and groups.
func DeleteSnapshot(ctx context.Context, q Querier, id int64) error {
	res, err := q.ExecContext(ctx, `DELETE FROM workspace_snapshots WHERE id = ?`, id)
	if err != nil {
		return errors.NewInternal(err)
	}
	return requireAffected(res, "snapshot", id)
}

// DeleteSnapshotsBefore removes every snapshot created before cutoff (Unix ms).
func DeleteSnapshotsBefore(ctx context.Context, q Querier, cutoff int64) (int64, error) {
	res, err := q.ExecContext(ctx, `DELETE FROM workspace_snapshots WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	return n, nil
}

func scanSnapshot(row rowScanner) (*model.WorkspaceSnapshot, error) {
	var (
		s     model.WorkspaceSnapshot
		label sql.NullString
	)
	if err := row.Scan(&s.ID, &s.WorkspaceID, &label, &s.TabCount, &s.GroupCount, &s.WindowCount, &s.CreatedAt); err != nil {
		return nil, err
	}
	s.Label = fromNullString(label)
	return &s, nil
}
