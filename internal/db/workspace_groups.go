package db

import (
	"context"
	"database/sql"

	"github.com/lmdevv/tabby-sub002/internal/errors"
	"github.com/lmdevv/tabby-sub002/internal/model"
)

// InsertWorkspaceGroup stores a new workspace group and sets g.ID.
func InsertWorkspaceGroup(ctx context.Context, q Querier, g *model.WorkspaceGroup) error {
	res, err := q.ExecContext(ctx,
		`INSERT INTO workspace_groups (name, icon, collapsed) VALUES (?, ?, ?)`,
		g.Name, toNullString(g.Icon), boolToInt(g.Collapsed))
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

// GetWorkspaceGroup retrieves a workspace group by id.
func GetWorkspaceGroup(ctx context.Context, q Querier, id int64) (*model.WorkspaceGroup, error) {
	row := q.QueryRowContext(ctx, `SELECT id, name, icon, collapsed FROM workspace_groups WHERE id = ?`, id)
	g, err := scanWorkspaceGroup(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("workspace group", id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return g, nil
}

// ListWorkspaceGroups returns all workspace groups ordered by name.
func ListWorkspaceGroups(ctx context.Context, q Querier) ([]model.WorkspaceGroup, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, name, icon, collapsed FROM workspace_groups ORDER BY name COLLATE NOCASE, id`)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	groups := []model.WorkspaceGroup{}
	for rows.Next() {
		g, err := scanWorkspaceGroup(rows)
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

// UpdateWorkspaceGroup writes name, icon and collapsed.
func UpdateWorkspaceGroup(ctx context.Context, q Querier, g *model.WorkspaceGroup) error {
	res, err := q.ExecContext(ctx,
		`UPDATE workspace_groups SET name = ?, icon = ?, collapsed = ? WHERE id = ?`,
		g.Name, toNullString(g.Icon), boolToInt(g.Collapsed), g.ID)
	if err != nil {
		return errors.NewInternal(err)
	}
	return requireAffected(res, "workspace group", g.ID)
}

// DeleteWorkspaceGroup removes a group. Member workspaces become ungrouped (ON DELETE SET NULL).
func DeleteWorkspaceGroup(ctx context.Context, q Querier, id int64) error {
	res, err := q.ExecContext(ctx, `DELETE FROM workspace_groups WHERE id = ?`, id)
	if err != nil {
		return errors.NewInternal(err)
	}
	return requireAffected(res, "workspace group", id)
}

func scanWorkspaceGroup(row rowScanner) (*model.WorkspaceGroup, error) {
	var (
		g         model.WorkspaceGroup
		icon      sql.NullString
		collapsed int
	)
	if err := row.Scan(&g.ID, &g.Name, &icon, &collapsed); err != nil {
		return nil, err
	}
	g.Icon = fromNullString(icon)
	g.Collapsed = collapsed == 1
	return &g, nil
}
