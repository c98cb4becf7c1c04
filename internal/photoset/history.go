package photoset

import (
	"context"
	"database/sql"

	"github.com/hpungsan/funnier/internal/db"
)

// History records sync attempts.
type History interface {
	Begin(ctx context.Context, run *db.SyncRun) error
	Finish(ctx context.Context, run *db.SyncRun) error
}

// SQLHistory writes sync attempts to the sync_runs table.
type SQLHistory struct {
	DB *sql.DB
}

func (h SQLHistory) Begin(ctx context.Context, run *db.SyncRun) error {
	return db.InsertSyncRun(ctx, h.DB, run)
}

func (h SQLHistory) Finish(ctx context.Context, run *db.SyncRun) error {
	return db.FinishSyncRun(ctx, h.DB, run)
}

type triggerKey struct{}

// Trigger names recorded in sync history.
const (
	TriggerManual       = "manual"
	TriggerConnectivity = "connectivity"
)

// WithTrigger tags ctx with the reason a sync was started.
func WithTrigger(ctx context.Context, trigger string) context.Context {
	return context.WithValue(ctx, triggerKey{}, trigger)
}

func triggerFrom(ctx context.Context) string {
	if t, ok := ctx.Value(triggerKey{}).(string); ok && t != "" {
		return t
	}
	return TriggerManual
}
