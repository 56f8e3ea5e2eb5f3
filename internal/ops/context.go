package ops

import (
	"context"
	"database/sql"

	"github.com/lmdevv/tabby-sub002/internal/config"
	"github.com/lmdevv/tabby-sub002/internal/grouping"
)

// GroupingContextInput contains parameters for the GroupingContext operation.
type GroupingContextInput struct {
	WorkspaceID *int64 // optional, default: the active workspace
}

// GroupingContext returns the projection a grouping model would be shown for
// a workspace. It is rebuilt on every call and writes nothing.
func GroupingContext(ctx context.Context, database *sql.DB, cfg *config.Config, input GroupingContextInput) (*grouping.Context, error) {
	workspaceID, err := resolveWorkspaceID(ctx, database, input.WorkspaceID)
	if err != nil {
		return nil, err
	}
	filter, err := managementFilter(cfg)
	if err != nil {
		return nil, err
	}
	return grouping.BuildContext(ctx, database, workspaceID, filter)
}
