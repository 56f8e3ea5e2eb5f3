package db

import (
	"context"
	"database/sql"

	"github.com/lmdevv/tabby-sub002/internal/errors"
	"github.com/lmdevv/tabby-sub002/internal/model"
)

// GetSetting retrieves a setting by key.
func GetSetting(ctx context.Context, q Querier, key string) (*model.Setting, error) {
	row := q.QueryRowContext(ctx, `SELECT id, key, value, created_at, updated_at FROM settings WHERE key = ?`, key)
	var s model.Setting
	err := row.Scan(&s.ID, &s.Key, &s.Value, &s.CreatedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("setting", key)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return &s, nil
}

// UpsertSetting inserts or replaces the value for key. created_at is kept on update.
func UpsertSetting(ctx context.Context, q Querier, key, value string, now int64) (*model.Setting, error) {
	_, err := q.ExecContext(ctx, `
		INSERT INTO settings (key, value, created_at, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, now, now)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return GetSetting(ctx, q, key)
}

// ListSettings returns every setting ordered by key.
func ListSettings(ctx context.Context, q Querier) ([]model.Setting, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, key, value, created_at, updated_at FROM settings ORDER BY key`)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	settings := []model.Setting{}
	for rows.Next() {
		var s model.Setting
		if err := rows.Scan(&s.ID, &s.Key, &s.Value, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, errors.NewInternal(err)
		}
		settings = append(settings, s)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return settings, nil
}

// DeleteSetting removes a setting by key.
func DeleteSetting(ctx context.Context, q Querier, key string) error {
	res, err := q.ExecContext(ctx, `DELETE FROM settings WHERE key = ?`, key)
	if err != nil {
		return errors.NewInternal(err)
	}
	return requireAffected(res, "setting", key)
}
