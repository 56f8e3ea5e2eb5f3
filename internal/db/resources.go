package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lmdevv/tabby-sub002/internal/errors"
	"github.com/lmdevv/tabby-sub002/internal/model"
)

// InsertResource stores a new resource and sets r.ID.
func InsertResource(ctx context.Context, q Querier, r *model.Resource) error {
	tagsJSON, err := tagsToJSON(r.Tags)
	if err != nil {
		return err
	}
	res, err := q.ExecContext(ctx, `
		INSERT INTO resources (url, title, tags_json, description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, r.URL, r.Title, tagsJSON, toNullString(r.Description), r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return errors.NewInternal(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return errors.NewInternal(err)
	}
	r.ID = id
	return nil
}

// GetResource retrieves a resource by id.
func GetResource(ctx context.Context, q Querier, id int64) (*model.Resource, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, url, title, tags_json, description, created_at, updated_at
		FROM resources WHERE id = ?
	`, id)
	r, err := scanResource(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("resource", id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return r, nil
}

// ListResources returns all resources, newest first.
func ListResources(ctx context.Context, q Querier) ([]model.Resource, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, url, title, tags_json, description, created_at, updated_at
		FROM resources ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	resources := []model.Resource{}
	for rows.Next() {
		r, err := scanResource(rows)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		resources = append(resources, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return resources, nil
}

// UpdateResource writes url, title, tags, description and updated_at.
func UpdateResource(ctx context.Context, q Querier, r *model.Resource) error {
	tagsJSON, err := tagsToJSON(r.Tags)
	if err != nil {
		return err
	}
	res, err := q.ExecContext(ctx, `
		UPDATE resources SET url = ?, title = ?, tags_json = ?, description = ?, updated_at = ?
		WHERE id = ?
	`, r.URL, r.Title, tagsJSON, toNullString(r.Description), r.UpdatedAt, r.ID)
	if err != nil {
		return errors.NewInternal(err)
	}
	return requireAffected(res, "resource", r.ID)
}

// DeleteResource removes the resource row. Callers strip it from resource groups.
func DeleteResource(ctx context.Context, q Querier, id int64) error {
	res, err := q.ExecContext(ctx, `DELETE FROM resources WHERE id = ?`, id)
	if err != nil {
		return errors.NewInternal(err)
	}
	return requireAffected(res, "resource", id)
}

func scanResource(row rowScanner) (*model.Resource, error) {
	var (
		r           model.Resource
		tagsJSON    sql.NullString
		description sql.NullString
	)
	if err := row.Scan(&r.ID, &r.URL, &r.Title, &tagsJSON, &description, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.Description = fromNullString(description)
	tags, err := tagsFromJSON(tagsJSON)
	if err != nil {
		return nil, fmt.Errorf("resource %d tags: %w", r.ID, err)
	}
	r.Tags = tags
	return &r, nil
}

// InsertResourceGroup stores a new resource group and sets g.ID.
func InsertResourceGroup(ctx context.Context, q Querier, g *model.ResourceGroup) error {
	idsJSON, err := idsToJSON(g.ResourceIDs)
	if err != nil {
		return err
	}
	res, err := q.ExecContext(ctx, `
		INSERT INTO resource_groups (name, resource_ids_json, created_at, updated_at)
		VALUES (?, ?, ?, ?)
	`, g.Name, idsJSON, g.CreatedAt, g.UpdatedAt)
	if err != nil {
		return errors.NewInternal(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return errors.NewInternal(err)
	}
	g.ID = id
	if g.ResourceIDs == nil {
		g.ResourceIDs = []int64{}
	}
	return nil
}

// GetResourceGroup retrieves a resource group by id.
func GetResourceGroup(ctx context.Context, q Querier, id int64) (*model.ResourceGroup, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, name, resource_ids_json, created_at, updated_at
		FROM resource_groups WHERE id = ?
	`, id)
	g, err := scanResourceGroup(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("resource group", id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return g, nil
}

// ListResourceGroups returns all resource groups ordered by name.
func ListResourceGroups(ctx context.Context, q Querier) ([]model.ResourceGroup, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, name, resource_ids_json, created_at, updated_at
		FROM resource_groups ORDER BY name COLLATE NOCASE, id
	`)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	groups := []model.ResourceGroup{}
	for rows.Next() {
		g, err := scanResourceGroup(rows)
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

// UpdateResourceGroup writes name, the ordered resource id list and updated_at.
func UpdateResourceGroup(ctx context.Context, q Querier, g *model.ResourceGroup) error {
	idsJSON, err := idsToJSON(g.ResourceIDs)
	if err != nil {
		return err
	}
	res, err := q.ExecContext(ctx, `
		UPDATE resource_groups SET name = ?, resource_ids_json = ?, updated_at = ?
		WHERE id = ?
	`, g.Name, idsJSON, g.UpdatedAt, g.ID)
	if err != nil {
		return errors.NewInternal(err)
	}
	return requireAffected(res, "resource group", g.ID)
}

// DeleteResourceGroup removes the group row. Callers strip it from workspaces.
func DeleteResourceGroup(ctx context.Context, q Querier, id int64) error {
	res, err := q.ExecContext(ctx, `DELETE FROM resource_groups WHERE id = ?`, id)
	if err != nil {
		return errors.NewInternal(err)
	}
	return requireAffected(res, "resource group", id)
}

func scanResourceGroup(row rowScanner) (*model.ResourceGroup, error) {
	var (
		g       model.ResourceGroup
		idsJSON string
	)
	if err := row.Scan(&g.ID, &g.Name, &idsJSON, &g.CreatedAt, &g.UpdatedAt); err != nil {
		return nil, err
	}
	ids, err := idsFromJSON(idsJSON)
	if err != nil {
		return nil, fmt.Errorf("resource group %d resource_ids: %w", g.ID, err)
	}
	g.ResourceIDs = ids
	return &g, nil
}
