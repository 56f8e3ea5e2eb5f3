package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lmdevv/tabby-sub002/internal/errors"
	"github.com/lmdevv/tabby-sub002/internal/model"
)

const workspaceColumns = `id, group_id, name, description, created_at, last_opened, active, resource_group_ids_json`

// InsertWorkspace stores a new workspace and sets w.ID.
// New workspaces are always inserted inactive; activation goes through the lifecycle ops.
func InsertWorkspace(ctx context.Context, q Querier, w *model.Workspace) error {
	rgJSON, err := idsToJSON(w.ResourceGroupIDs)
	if err != nil {
		return err
	}

	res, err := q.ExecContext(ctx, `
		INSERT INTO workspaces (group_id, name, description, created_at, last_opened, active, resource_group_ids_json)
		VALUES (?, ?, ?, ?, ?, 0, ?)
	`, toNullInt64(w.GroupID), w.Name, toNullString(w.Description), w.CreatedAt, w.LastOpened, rgJSON)
	if err != nil {
		if isForeignKeyError(err) {
			return errors.NewNotFound("workspace group", derefID(w.GroupID))
		}
		return errors.NewInternal(err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return errors.NewInternal(err)
	}
	w.ID = id
	w.Active = false
	return nil
}

// GetWorkspace retrieves a workspace by id.
func GetWorkspace(ctx context.Context, q Querier, id int64) (*model.Workspace, error) {
	row := q.QueryRowContext(ctx, `SELECT `+workspaceColumns+` FROM workspaces WHERE id = ?`, id)
	w, err := scanWorkspace(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("workspace", id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return w, nil
}

// ListWorkspaces returns every workspace, most recently opened first.
func ListWorkspaces(ctx context.Context, q Querier) ([]model.Workspace, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+workspaceColumns+` FROM workspaces ORDER BY last_opened DESC, id DESC`)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	workspaces := []model.Workspace{}
	for rows.Next() {
		w, err := scanWorkspace(rows)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		workspaces = append(workspaces, *w)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return workspaces, nil
}

// GetActiveWorkspace returns the active workspace, or nil if none is active.
func GetActiveWorkspace(ctx context.Context, q Querier) (*model.Workspace, error) {
	row := q.QueryRowContext(ctx, `SELECT `+workspaceColumns+` FROM workspaces WHERE active = 1`)
	w, err := scanWorkspace(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return w, nil
}

// MostRecentWorkspace returns the workspace with the greatest last_opened
// (ties broken by the higher id), or nil if the store has no workspaces.
func MostRecentWorkspace(ctx context.Context, q Querier) (*model.Workspace, error) {
	row := q.QueryRowContext(ctx, `SELECT `+workspaceColumns+` FROM workspaces ORDER BY last_opened DESC, id DESC LIMIT 1`)
	w, err := scanWorkspace(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return w, nil
}

// CountActiveWorkspaces returns the number of workspaces flagged active.
func CountActiveWorkspaces(ctx context.Context, q Querier) (int, error) {
	var n int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM workspaces WHERE active = 1`).Scan(&n); err != nil {
		return 0, errors.NewInternal(err)
	}
	return n, nil
}

// UpdateWorkspace updates the descriptive fields of a workspace.
// Does NOT change: active, last_opened, created_at.
func UpdateWorkspace(ctx context.Context, q Querier, w *model.Workspace) error {
	rgJSON, err := idsToJSON(w.ResourceGroupIDs)
	if err != nil {
		return err
	}

	res, err := q.ExecContext(ctx, `
		UPDATE workspaces
		SET group_id = ?, name = ?, description = ?, resource_group_ids_json = ?
		WHERE id = ?
	`, toNullInt64(w.GroupID), w.Name, toNullString(w.Description), rgJSON, w.ID)
	if err != nil {
		if isForeignKeyError(err) {
			return errors.NewNotFound("workspace group", derefID(w.GroupID))
		}
		return errors.NewInternal(err)
	}
	return requireAffected(res, "workspace", w.ID)
}

// DeactivateAllWorkspaces clears the active flag everywhere.
func DeactivateAllWorkspaces(ctx context.Context, q Querier) error {
	if _, err := q.ExecContext(ctx, `UPDATE workspaces SET active = 0 WHERE active = 1`); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// SetWorkspaceActive flags one workspace active and stamps last_opened.
// Callers must deactivate the others first; the partial unique index rejects a second active row.
func SetWorkspaceActive(ctx context.Context, q Querier, id, lastOpened int64) error {
	res, err := q.ExecContext(ctx, `UPDATE workspaces SET active = 1, last_opened = ? WHERE id = ?`, lastOpened, id)
	if err != nil {
		if isUniqueConstraintError(err) {
			return errors.NewConflict("another workspace is already active")
		}
		return errors.NewInternal(err)
	}
	return requireAffected(res, "workspace", id)
}

// SetWorkspaceInactive clears the active flag of one workspace.
func SetWorkspaceInactive(ctx context.Context, q Querier, id int64) error {
	res, err := q.ExecContext(ctx, `UPDATE workspaces SET active = 0 WHERE id = ?`, id)
	if err != nil {
		return errors.NewInternal(err)
	}
	return requireAffected(res, "workspace", id)
}

// TouchWorkspace sets last_opened without changing the active flag.
func TouchWorkspace(ctx context.Context, q Querier, id, lastOpened int64) error {
	res, err := q.ExecContext(ctx, `UPDATE workspaces SET last_opened = ? WHERE id = ?`, lastOpened, id)
	if err != nil {
		return errors.NewInternal(err)
	}
	return requireAffected(res, "workspace", id)
}

// DeleteWorkspaceRow removes the workspace row. Snapshots cascade; tabs and
// tab groups must be reassigned by the caller in the same transaction.
func DeleteWorkspaceRow(ctx context.Context, q Querier, id int64) error {
	res, err := q.ExecContext(ctx, `DELETE FROM workspaces WHERE id = ?`, id)
	if err != nil {
		return errors.NewInternal(err)
	}
	return requireAffected(res, "workspace", id)
}

func scanWorkspace(row rowScanner) (*model.Workspace, error) {
	var (
		w           model.Workspace
		groupID     sql.NullInt64
		description sql.NullString
		active      int
		rgJSON      string
	)
	if err := row.Scan(&w.ID, &groupID, &w.Name, &description, &w.CreatedAt, &w.LastOpened, &active, &rgJSON); err != nil {
		return nil, err
	}
	w.GroupID = fromNullInt64(groupID)
	w.Description = fromNullString(description)
	w.Active = active == 1

	ids, err := idsFromJSON(rgJSON)
	if err != nil {
		return nil, fmt.Errorf("workspace %d resource_group_ids: %w", w.ID, err)
	}
	w.ResourceGroupIDs = ids
	return &w, nil
}

// requireAffected maps a zero-row UPDATE/DELETE to NOT_FOUND.
func requireAffected(res sql.Result, kind string, id any) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if n == 0 {
		return errors.NewNotFound(kind, id)
	}
	return nil
}

func derefID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}
