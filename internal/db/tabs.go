package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lmdevv/tabby-sub002/internal/errors"
	"github.com/lmdevv/tabby-sub002/internal/model"
)

const tabColumns = `id, stable_id, workspace_id, window_id, tab_index, url, title, group_id,
	tab_status, tags_json, description, browser_tab_id, closed_at, created_at, updated_at`

// TabFilter narrows ListTabs. Zero values mean "any".
type TabFilter struct {
	WorkspaceID *int64
	WindowID    *int64
	GroupID     *int64
	Status      model.Status

	// OpenOnly leaves out tabs the browser closed
	OpenOnly bool
}

// InsertTab stores a new tab and sets t.ID.
func InsertTab(ctx context.Context, q Querier, t *model.Tab) error {
	tagsJSON, err := tagsToJSON(t.Tags)
	if err != nil {
		return err
	}

	res, err := q.ExecContext(ctx, `
		INSERT INTO tabs (
			stable_id, workspace_id, window_id, tab_index, url, title, group_id,
			tab_status, tags_json, description, browser_tab_id, closed_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		t.StableID, t.WorkspaceID, t.WindowID, t.Index, t.URL, t.Title, toNullInt64(t.GroupID),
		string(t.Status), tagsJSON, toNullString(t.Description), toNullInt64(t.BrowserTabID),
		toNullInt64(t.ClosedAt), t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return errors.NewConflict(fmt.Sprintf("tab stable id or browser binding already in use: %s", t.StableID))
		}
		if isForeignKeyError(err) {
			return errors.NewNotFound("tab group", derefID(t.GroupID))
		}
		return errors.NewInternal(err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return errors.NewInternal(err)
	}
	t.ID = id
	return nil
}

// GetTab retrieves a tab by row id.
func GetTab(ctx context.Context, q Querier, id int64) (*model.Tab, error) {
	return getTabWhere(ctx, q, "id = ?", id, id)
}

// GetTabByStableID retrieves a tab by its restart-durable stable id.
func GetTabByStableID(ctx context.Context, q Querier, stableID string) (*model.Tab, error) {
	return getTabWhere(ctx, q, "stable_id = ?", stableID, stableID)
}

// GetTabByBrowserID retrieves the tab currently bound to an ephemeral browser tab id.
func GetTabByBrowserID(ctx context.Context, q Querier, browserTabID int64) (*model.Tab, error) {
	return getTabWhere(ctx, q, "browser_tab_id = ?", browserTabID, fmt.Sprintf("browser tab %d", browserTabID))
}

func getTabWhere(ctx context.Context, q Querier, where string, arg, identifier any) (*model.Tab, error) {
	row := q.QueryRowContext(ctx, `SELECT `+tabColumns+` FROM tabs WHERE `+where, arg)
	t, err := scanTab(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("tab", identifier)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return t, nil
}

// ListTabs returns tabs matching f, ordered by window then index.
func ListTabs(ctx context.Context, q Querier, f TabFilter) ([]model.Tab, error) {
	var (
		conds []string
		args  []any
	)
	if f.WorkspaceID != nil {
		conds = append(conds, "workspace_id = ?")
		args = append(args, *f.WorkspaceID)
	}
	if f.WindowID != nil {
		conds = append(conds, "window_id = ?")
		args = append(args, *f.WindowID)
	}
	if f.GroupID != nil {
		conds = append(conds, "group_id = ?")
		args = append(args, *f.GroupID)
	}
	if f.Status != "" {
		conds = append(conds, "tab_status = ?")
		args = append(args, string(f.Status))
	}
	if f.OpenOnly {
		conds = append(conds, "closed_at IS NULL")
	}

	query := `SELECT ` + tabColumns + ` FROM tabs`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY window_id, tab_index, id"

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	tabs := []model.Tab{}
	for rows.Next() {
		t, err := scanTab(rows)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		tabs = append(tabs, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return tabs, nil
}

// UpdateTab writes every mutable field of t.
// Does NOT change: stable_id, created_at.
func UpdateTab(ctx context.Context, q Querier, t *model.Tab) error {
	tagsJSON, err := tagsToJSON(t.Tags)
	if err != nil {
		return err
	}

	res, err := q.ExecContext(ctx, `
		UPDATE tabs
		SET workspace_id = ?, window_id = ?, tab_index = ?, url = ?, title = ?, group_id = ?,
			tab_status = ?, tags_json = ?, description = ?, browser_tab_id = ?, closed_at = ?, updated_at = ?
		WHERE id = ?
	`,
		t.WorkspaceID, t.WindowID, t.Index, t.URL, t.Title, toNullInt64(t.GroupID),
		string(t.Status), tagsJSON, toNullString(t.Description), toNullInt64(t.BrowserTabID),
		toNullInt64(t.ClosedAt), t.UpdatedAt,
		t.ID,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return errors.NewConflict(fmt.Sprintf("browser tab %d is bound to another tab", derefID(t.BrowserTabID)))
		}
		if isForeignKeyError(err) {
			return errors.NewNotFound("tab group", derefID(t.GroupID))
		}
		return errors.NewInternal(err)
	}
	return requireAffected(res, "tab", t.ID)
}

// ArchiveActiveTabsOutside archives every active tab owned by a workspace
// other than keepID. Unassigned tabs are left alone.
func ArchiveActiveTabsOutside(ctx context.Context, q Querier, keepID, now int64) (int64, error) {
	res, err := q.ExecContext(ctx, `
		UPDATE tabs SET tab_status = 'archived', updated_at = ?
		WHERE tab_status = 'active' AND workspace_id != ? AND workspace_id != ?
	`, now, keepID, model.Unassigned)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	return res.RowsAffected()
}

// SetWorkspaceTabStatus moves the tabs of one workspace from status `from` to `to`.
// Closed tabs are never made active.
func SetWorkspaceTabStatus(ctx context.Context, q Querier, workspaceID int64, from, to model.Status, now int64) (int64, error) {
	query := `UPDATE tabs SET tab_status = ?, updated_at = ?
		WHERE workspace_id = ? AND tab_status = ?`
	if to == model.StatusActive {
		query += ` AND closed_at IS NULL`
	}
	res, err := q.ExecContext(ctx, query, string(to), now, workspaceID, string(from))
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	return res.RowsAffected()
}

// UnassignWorkspaceTabs hands every tab of a workspace to the unassigned
// sentinel and archives it.
func UnassignWorkspaceTabs(ctx context.Context, q Querier, workspaceID, now int64) (int64, error) {
	res, err := q.ExecContext(ctx, `
		UPDATE tabs SET workspace_id = ?, tab_status = 'archived', updated_at = ?
		WHERE workspace_id = ?
	`, model.Unassigned, now, workspaceID)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	return res.RowsAffected()
}

// MoveTabsToWorkspace reassigns tabs and sets their status. Group membership
// is cleared because groups stay with their workspace. Closed tabs stay archived.
func MoveTabsToWorkspace(ctx context.Context, q Querier, ids []int64, workspaceID int64, status model.Status, now int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	args := append([]any{workspaceID, string(status), now}, int64Args(ids)...)
	res, err := q.ExecContext(ctx, `
		UPDATE tabs SET workspace_id = ?,
			tab_status = CASE WHEN closed_at IS NULL THEN ? ELSE 'archived' END,
			group_id = NULL, updated_at = ?
		WHERE id IN (`+placeholders(len(ids))+`)
	`, args...)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	return res.RowsAffected()
}

// SetTabsGroup points the given tabs at groupID (nil ungroups them).
func SetTabsGroup(ctx context.Context, q Querier, ids []int64, groupID *int64, now int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	args := append([]any{toNullInt64(groupID), now}, int64Args(ids)...)
	res, err := q.ExecContext(ctx, `
		UPDATE tabs SET group_id = ?, updated_at = ?
		WHERE id IN (`+placeholders(len(ids))+`)
	`, args...)
	if err != nil {
		if isForeignKeyError(err) {
			return 0, errors.NewNotFound("tab group", derefID(groupID))
		}
		return 0, errors.NewInternal(err)
	}
	return res.RowsAffected()
}

// UnbindBrowserTabID detaches a browser tab id from whatever row holds it.
func UnbindBrowserTabID(ctx context.Context, q Querier, browserTabID int64) error {
	if _, err := q.ExecContext(ctx, `UPDATE tabs SET browser_tab_id = NULL WHERE browser_tab_id = ?`, browserTabID); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// ClearTabBindings drops every ephemeral browser tab id. Used when a new browser session starts.
func ClearTabBindings(ctx context.Context, q Querier) (int64, error) {
	res, err := q.ExecContext(ctx, `UPDATE tabs SET browser_tab_id = NULL WHERE browser_tab_id IS NOT NULL`)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	return res.RowsAffected()
}

// CountTabsByWorkspace returns tab counts keyed by workspace id.
// An empty status counts every tab.
func CountTabsByWorkspace(ctx context.Context, q Querier, status model.Status) (map[int64]int, error) {
	query := `SELECT workspace_id, COUNT(*) FROM tabs`
	var args []any
	if status != "" {
		query += ` WHERE tab_status = ?`
		args = append(args, string(status))
	}
	query += ` GROUP BY workspace_id`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	counts := make(map[int64]int)
	for rows.Next() {
		var (
			id int64
			n  int
		)
		if err := rows.Scan(&id, &n); err != nil {
			return nil, errors.NewInternal(err)
		}
		counts[id] = n
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return counts, nil
}

func scanTab(row rowScanner) (*model.Tab, error) {
	var (
		t            model.Tab
		groupID      sql.NullInt64
		status       string
		tagsJSON     sql.NullString
		description  sql.NullString
		browserTabID sql.NullInt64
		closedAt     sql.NullInt64
	)
	if err := row.Scan(
		&t.ID, &t.StableID, &t.WorkspaceID, &t.WindowID, &t.Index, &t.URL, &t.Title, &groupID,
		&status, &tagsJSON, &description, &browserTabID, &closedAt, &t.CreatedAt, &t.UpdatedAt,
	); err != nil {
		return nil, err
	}
	t.GroupID = fromNullInt64(groupID)
	t.Status = model.Status(status)
	t.Description = fromNullString(description)
	t.BrowserTabID = fromNullInt64(browserTabID)
	t.ClosedAt = fromNullInt64(closedAt)

	tags, err := tagsFromJSON(tagsJSON)
	if err != nil {
		return nil, fmt.Errorf("tab %d tags: %w", t.ID, err)
	}
	t.Tags = tags
	return &t, nil
}

// ArchiveTabsNotBound closes every bound tab whose browser id is not in live:
// the row is archived, unbound and marked closed. An empty live set closes
// every bound tab.
func ArchiveTabsNotBound(ctx context.Context, q Querier, live []int64, now int64) (int64, error) {
	query := `UPDATE tabs SET tab_status = 'archived', browser_tab_id = NULL, closed_at = ?, updated_at = ?
		WHERE browser_tab_id IS NOT NULL`
	args := []any{now, now}
	if len(live) > 0 {
		query += ` AND browser_tab_id NOT IN (` + placeholders(len(live)) + `)`
		args = append(args, int64Args(live)...)
	}
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	return res.RowsAffected()
}
