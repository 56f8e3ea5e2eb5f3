package ops

import (
	"context"
	"testing"

	"github.com/lmdevv/tabby-sub002/internal/errors"
)

func TestSettings(t *testing.T) {
	database := setupDB(t)
	ctx := context.Background()

	first, err := SetSetting(ctx, database, SetSettingInput{Key: " theme ", Value: "dark"})
	if err != nil {
		t.Fatalf("SetSetting failed: %v", err)
	}
	if first.Key != "theme" || first.Value != "dark" {
		t.Errorf("setting = %+v", first)
	}

	second, err := SetSetting(ctx, database, SetSettingInput{Key: "theme", Value: "light"})
	if err != nil {
		t.Fatalf("SetSetting failed: %v", err)
	}
	if second.ID != first.ID || second.Value != "light" || second.CreatedAt != first.CreatedAt {
		t.Errorf("upsert = %+v, want same row updated", second)
	}

	got, err := GetSetting(ctx, database, SettingInput{Key: "theme"})
	if err != nil || got.Value != "light" {
		t.Errorf("GetSetting = %+v, %v", got, err)
	}

	SetSetting(ctx, database, SetSettingInput{Key: "auto_organize", Value: "false"})
	all, _ := ListSettings(ctx, database)
	if len(all) != 2 || all[0].Key != "auto_organize" {
		t.Errorf("settings = %+v, want ordered by key", all)
	}

	if _, err := DeleteSetting(ctx, database, SettingInput{Key: "theme"}); err != nil {
		t.Fatalf("DeleteSetting failed: %v", err)
	}
	if _, err := GetSetting(ctx, database, SettingInput{Key: "theme"}); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("get after delete = %v", err)
	}
	if _, err := SetSetting(ctx, database, SetSettingInput{Key: ""}); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("empty key error = %v", err)
	}
}
