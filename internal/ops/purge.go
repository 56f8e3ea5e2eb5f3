package ops

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lmdevv/tabby-sub002/internal/config"
	"github.com/lmdevv/tabby-sub002/internal/db"
	"github.com/lmdevv/tabby-sub002/internal/errors"
)

// PurgeSnapshotsInput contains parameters for the PurgeSnapshots operation.
type PurgeSnapshotsInput struct {
	OlderThanDays *int // optional, default: cfg.SnapshotRetentionDays
}

// PurgeSnapshotsOutput contains the result of the PurgeSnapshots operation.
type PurgeSnapshotsOutput struct {
	Purged  int64  `json:"purged"`
	Message string `json:"message"`
}

// PurgeSnapshots permanently deletes snapshots past the retention window.
// A retention of 0 days disables purging.
func PurgeSnapshots(ctx context.Context, database *sql.DB, cfg *config.Config, input PurgeSnapshotsInput) (*PurgeSnapshotsOutput, error) {
	days := 0
	if cfg != nil {
		days = cfg.SnapshotRetentionDays
	}
	if input.OlderThanDays != nil {
		if *input.OlderThanDays < 0 {
			return nil, errors.NewInvalidRequest("older_than_days must not be negative")
		}
		days = *input.OlderThanDays
	}
	if days == 0 && input.OlderThanDays == nil {
		return &PurgeSnapshotsOutput{Message: "Snapshot retention is disabled"}, nil
	}

	cutoff := time.Now().Add(-time.Duration(days) * 24 * time.Hour).UnixMilli()
	count, err := db.DeleteSnapshotsBefore(ctx, database, cutoff)
	if err != nil {
		return nil, err
	}

	return &PurgeSnapshotsOutput{
		Purged:  count,
		Message: formatPurgeMessage(count, days),
	}, nil
}

// formatPurgeMessage creates a human-readable message for the purge result.
func formatPurgeMessage(count int64, days int) string {
	if count == 0 {
		return "No snapshots to purge"
	}
	return fmt.Sprintf("Permanently deleted %s (older than %d days)", pluralize(count, "snapshot"), days)
}
