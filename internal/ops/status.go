package ops

import (
	"context"
	"time"

	"github.com/hpungsan/funnier/internal/blobcache"
	"github.com/hpungsan/funnier/internal/db"
	"github.com/hpungsan/funnier/internal/errors"
)

// StatusOutput describes the local mirror.
type StatusOutput struct {
	PhotosetID      string          `json:"photoset_id"`
	Title           string          `json:"title"`
	Description     string          `json:"description,omitempty"`
	Total           int             `json:"total"`
	Visible         int             `json:"visible"`
	Network         string          `json:"network"`
	Stale           bool            `json:"stale"`
	LastUpdated     *time.Time      `json:"last_updated,omitempty"`
	LastViewedIndex int             `json:"last_viewed_index"`
	LastRun         *db.SyncRun     `json:"last_run,omitempty"`
	Blobs           blobcache.Stats `json:"blobs"`
}

// Status summarizes the cached photoset, the blob cache and the last sync run.
func Status(ctx context.Context, env *Env) (*StatusOutput, error) {
	status := env.Status()

	out := &StatusOutput{
		PhotosetID:      env.Cache.ID(),
		Title:           env.Cache.Title(),
		Description:     env.Cache.Description(),
		Total:           env.Cache.Len(),
		Visible:         len(env.Cache.VisiblePhotos(status)),
		Network:         status.String(),
		Stale:           env.Cache.IsStale(),
		LastUpdated:     env.Cache.LastUpdated(),
		LastViewedIndex: env.Cache.LastViewedIndex(),
	}

	run, err := db.LatestSyncRun(ctx, env.DB, env.Cache.ID())
	switch {
	case err == nil:
		out.LastRun = run
	case !errors.Is(err, errors.ErrNotFound):
		return nil, err
	}

	stats, err := env.Blobs.Stats()
	if err != nil {
		return nil, err
	}
	out.Blobs = stats

	return out, nil
}
