package ops

import (
	"context"

	"github.com/hpungsan/funnier/internal/db"
)

// HistoryInput contains parameters for the History operation.
type HistoryInput struct {
	Limit  int // default: 20, max: 100
	Offset int
}

// HistoryOutput contains the result of the History operation.
type HistoryOutput struct {
	Items      []db.SyncRun `json:"items"`
	Pagination Pagination   `json:"pagination"`
	Sort       string       `json:"sort"`
}

// History lists recorded sync attempts, newest first.
func History(ctx context.Context, env *Env, input HistoryInput) (*HistoryOutput, error) {
	limit, offset := clampPage(input.Limit, input.Offset, DefaultHistoryLimit, MaxHistoryLimit)

	runs, total, err := db.ListSyncRuns(ctx, env.DB, env.Cache.ID(), limit, offset)
	if err != nil {
		return nil, err
	}

	// Ensure we return an empty array rather than nil
	if runs == nil {
		runs = []db.SyncRun{}
	}

	return &HistoryOutput{
		Items:      runs,
		Pagination: newPagination(limit, offset, len(runs), total),
		Sort:       "started_at_desc",
	}, nil
}
