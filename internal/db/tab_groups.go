package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lmdevv/tabby-sub002/internal/errors"
	"github.com/lmdevv/tabby-sub002/internal/model"
)

const tabGroupColumns = `id, stable_id, workspace_id, window_id, title, color, collapsed,
	group_status, browser_group_id, created_at, updated_at`

// TabGroupFilter narrows ListTabGroups. Zero values mean "any".
type TabGroupFilter struct {
	WorkspaceID *int64
	WindowID    *int64
	Status      model.Status
}

// InsertTabGroup stores a new tab group and sets g.ID.
func InsertTabGroup(ctx context.Context, q Querier, g *model.TabGroup) error {
	res, err := q.ExecContext(ctx, `
		INSERT INTO tab_groups (
			stable_id, workspace_id, window_id, title, color, collapsed,
			group_status, browser_group_id, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		g.StableID, g.WorkspaceID, g.WindowID, g.Title, g.Color, boolToInt(g.Collapsed),
		string(g.Status), toNullInt64(g.BrowserGroupID), g.CreatedAt, g.UpdatedAt,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return errors.NewConflict(fmt.Sprintf("tab group stable id or browser binding already in use: %s", g.StableID))
		}
		return errors.NewInternal(err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return errors.NewInternal(err)
	}
	g.ID = id
	return nil
}

// GetTabGroup retrieves a tab group by row id.
func GetTabGroup(ctx context.Context, q Querier, id int64) (*model.TabGroup, error) {
	return getTabGroupWhere(ctx, q, "id = ?", id, id)
}

// GetTabGroupByStableID retrieves a tab group by its restart-durable stable id.
func GetTabGroupByStableID(ctx context.Context, q Querier, stableID string) (*model.TabGroup, error) {
	return getTabGroupWhere(ctx, q, "stable_id = ?", stableID, stableID)
}

// GetTabGroupByBrowserID retrieves the tab group bound to an ephemeral browser group id.
func GetTabGroupByBrowserID(ctx context.Context, q Querier, browserGroupID int64) (*model.TabGroup, error) {
	return getTabGroupWhere(ctx, q, "browser_group_id = ?", browserGroupID, fmt.Sprintf("browser group %d", browserGroupID))
}

func getTabGroupWhere(ctx context.Context, q Querier, where string, arg, identifier any) (*model.TabGroup, error) {
	row := q.QueryRowContext(ctx, `SELECT `+tabGroupColumns+` FROM tab_groups WHERE `+where, arg)
	g, err := scanTabGroup(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("tab group", identifier)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return g, nil
}

// ListTabGroups returns tab groups matching f, ordered by window then id.
func ListTabGroups(ctx context.Context, q Querier, f TabGroupFilter) ([]model.TabGroup, error) {
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
	if f.Status != "" {
		conds = append(conds, "group_status = ?")
		args = append(args, string(f.Status))
	}

	query := `SELECT ` + tabGroupColumns + ` FROM tab_groups`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY window_id, id"

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	groups := []model.TabGroup{}
	for rows.Next() {
		g, err := scanTabGroup(rows)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		groups = append(groups, *g)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return groups, nil
}

// UpdateTabGroup writes every mutable field of g.
// Does NOT change: stable_id, created_at.
func UpdateTabGroup(ctx context.Context, q Querier, g *model.TabGroup) error {
	res, err := q.ExecContext(ctx, `
		UPDATE tab_groups
		SET workspace_id = ?, window_id = ?, title = ?, color = ?, collapsed = ?,
			group_status = ?, browser_group_id = ?, updated_at = ?
		WHERE id = ?
	`,
		g.WorkspaceID, g.WindowID, g.Title, g.Color, boolToInt(g.Collapsed),
		string(g.Status), toNullInt64(g.BrowserGroupID), g.UpdatedAt, g.ID,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return errors.NewConflict(fmt.Sprintf("browser group %d is bound to another tab group", derefID(g.BrowserGroupID)))
		}
		return errors.NewInternal(err)
	}
	return requireAffected(res, "tab group", g.ID)
}

// ArchiveActiveGroupsOutside archives every active group owned by a workspace
// other than keepID. Unassigned groups are left alone.
func ArchiveActiveGroupsOutside(ctx context.Context, q Querier, keepID, now int64) (int64, error) {
	res, err := q.ExecContext(ctx, `
		UPDATE tab_groups SET group_status = 'archived', updated_at = ?
		WHERE group_status = 'active' AND workspace_id != ? AND workspace_id != ?
	`, now, keepID, model.Unassigned)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	return res.RowsAffected()
}

// SetWorkspaceGroupStatus moves the groups of one workspace from status `from` to `to`.
func SetWorkspaceGroupStatus(ctx context.Context, q Querier, workspaceID int64, from, to model.Status, now int64) (int64, error) {
	res, err := q.ExecContext(ctx, `
		UPDATE tab_groups SET group_status = ?, updated_at = ?
		WHERE workspace_id = ? AND group_status = ?
	`, string(to), now, workspaceID, string(from))
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	return res.RowsAffected()
}

// UnassignWorkspaceGroups hands every group of a workspace to the unassigned
// sentinel and archives it.
func UnassignWorkspaceGroups(ctx context.Context, q Querier, workspaceID, now int64) (int64, error) {
	res, err := q.ExecContext(ctx, `
		UPDATE tab_groups SET workspace_id = ?, group_status = 'archived', updated_at = ?
		WHERE workspace_id = ?
	`, model.Unassigned, now, workspaceID)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	return res.RowsAffected()
}

// ArchiveEmptyGroups archives the active groups of a workspace that no active tab points at.
func ArchiveEmptyGroups(ctx context.Context, q Querier, workspaceID, now int64) (int64, error) {
	res, err := q.ExecContext(ctx, `
		UPDATE tab_groups SET group_status = 'archived', updated_at = ?
		WHERE workspace_id = ? AND group_status = 'active'
		  AND NOT EXISTS (
		    SELECT 1 FROM tabs
		    WHERE tabs.group_id = tab_groups.id AND tabs.tab_status = 'active'
		  )
	`, now, workspaceID)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	return res.RowsAffected()
}

// UnbindBrowserGroupID detaches a browser group id from whatever row holds it.
func UnbindBrowserGroupID(ctx context.Context, q Querier, browserGroupID int64) error {
	if _, err := q.ExecContext(ctx, `UPDATE tab_groups SET browser_group_id = NULL WHERE browser_group_id = ?`, browserGroupID); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// ClearGroupBindings drops every ephemeral browser group id.
func ClearGroupBindings(ctx context.Context, q Querier) (int64, error) {
	res, err := q.ExecContext(ctx, `UPDATE tab_groups SET browser_group_id = NULL WHERE browser_group_id IS NOT NULL`)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	return res.RowsAffected()
}

func scanTabGroup(row rowScanner) (*model.TabGroup, error) {
	var (
		g              model.TabGroup
		collapsed      int
		status         string
		browserGroupID sql.NullInt64
	)
	if err := row.Scan(
		&g.ID, &g.StableID, &g.WorkspaceID, &g.WindowID, &g.Title, &g.Color, &collapsed,
		&status, &browserGroupID, &g.CreatedAt, &g.UpdatedAt,
	); err != nil {
		return nil, err
	}
	g.Collapsed = collapsed == 1
	g.Status = model.Status(status)
	g.BrowserGroupID = fromNullInt64(browserGroupID)
	return &g, nil
}

// ArchiveGroupsNotBound archives and unbinds every bound group whose browser id
// is not in live. An empty live set archives every bound group.
func ArchiveGroupsNotBound(ctx context.Context, q Querier, live []int64, now int64) (int64, error) {
	query := `UPDATE tab_groups SET group_status = 'archived', browser_group_id = NULL, updated_at = ?
		WHERE browser_group_id IS NOT NULL`
	args := []any{now}
	if len(live) > 0 {
		query += ` AND browser_group_id NOT IN (` + placeholders(len(live)) + `)`
		args = append(args, int64Args(live)...)
	}
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	return res.RowsAffected()
}
