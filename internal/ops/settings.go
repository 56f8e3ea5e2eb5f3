package ops

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/lmdevv/tabby-sub002/internal/db"
	"github.com/lmdevv/tabby-sub002/internal/errors"
	"github.com/lmdevv/tabby-sub002/internal/model"
)

// SettingInput addresses a setting by key.
type SettingInput struct {
	Key string
}

// SetSettingInput contains parameters for the SetSetting operation.
type SetSettingInput struct {
	Key   string
	Value string
}

func settingKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.NewInvalidRequest("key is required")
	}
	if utf8.RuneCountInString(key) > MaxSettingKeyLength {
		return "", errors.NewInvalidRequest(fmt.Sprintf("key exceeds %d characters", MaxSettingKeyLength))
	}
	return key, nil
}

// GetSetting returns one setting.
func GetSetting(ctx context.Context, database *sql.DB, input SettingInput) (*model.Setting, error) {
	key, err := settingKey(input.Key)
	if err != nil {
		return nil, err
	}
	return db.GetSetting(ctx, database, key)
}

// SetSetting inserts or replaces a setting by key.
func SetSetting(ctx context.Context, database *sql.DB, input SetSettingInput) (*model.Setting, error) {
	key, err := settingKey(input.Key)
	if err != nil {
		return nil, err
	}
	return db.UpsertSetting(ctx, database, key, input.Value, nowMillis())
}

// ListSettings returns every setting ordered by key.
func ListSettings(ctx context.Context, database *sql.DB) ([]model.Setting, error) {
	return db.ListSettings(ctx, database)
}

// DeleteSettingOutput contains the result of the DeleteSetting operation.
type DeleteSettingOutput struct {
	Key     string `json:"key"`
	Deleted bool   `json:"deleted"`
}

// DeleteSetting removes a setting.
func DeleteSetting(ctx context.Context, database *sql.DB, input SettingInput) (*DeleteSettingOutput, error) {
	key, err := settingKey(input.Key)
	if err != nil {
		return nil, err
	}
	if err := db.DeleteSetting(ctx, database, key); err != nil {
		return nil, err
	}
	return &DeleteSettingOutput{Key: key, Deleted: true}, nil
}
