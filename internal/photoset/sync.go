package photoset

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hpungsan/funnier/internal/connectivity"
	"github.com/hpungsan/funnier/internal/db"
	"github.com/hpungsan/funnier/internal/photo"
)

// Progress messages sent to listeners during a sync.
const (
	MsgUpdating = "Updating the cartoon list"
	msgArrived  = "%d new cartoon(s) arrived. Downloading images."
)

// SyncResult is the outcome of a successful Sync.
type SyncResult struct {
	Total      int  `json:"total"`
	New        int  `json:"new"`
	Downloaded int  `json:"downloaded"`
	UpToDate   bool `json:"up_to_date"`
}

// Sync fetches the remote photoset, merges it into the snapshot, persists
// the result and warms the image cache for status.
//
// If the remote update time and photo count match the snapshot, Sync returns
// with UpToDate set after a single metadata call and writes nothing. Remote
// errors abort the sync before any state changes and are returned as-is.
// The staleness clock is reset before the first remote call, so failed
// attempts count too. Once merged, a warm pass cut short by ctx still yields
// a result and a Changed event.
func (c *Cache) Sync(ctx context.Context, status connectivity.Status) (*SyncResult, error) {
	started := c.now()
	c.mu.Lock()
	c.lastAttempt = started
	c.mu.Unlock()

	run := &db.SyncRun{
		ID:         db.NewRunID(started),
		PhotosetID: c.id,
		Trigger:    triggerFrom(ctx),
		StartedAt:  started.UnixMilli(),
	}
	c.beginRun(ctx, run)

	res, err := c.sync(ctx, status)

	switch {
	case err != nil:
		c.metrics.Syncs.WithLabelValues(resultFailed).Inc()
		msg := err.Error()
		run.Status = db.SyncStatusFailed
		run.Error = &msg
		c.logger.Warn("sync failed", zap.String("trigger", run.Trigger), zap.Error(err))
	case res.UpToDate:
		c.metrics.Syncs.WithLabelValues(resultUpToDate).Inc()
		run.Status = db.SyncStatusUpToDate
		run.Total = res.Total
	default:
		c.metrics.Syncs.WithLabelValues(resultOK).Inc()
		run.Status = db.SyncStatusOK
		run.Total, run.NewCount, run.Downloaded = res.Total, res.New, res.Downloaded
		c.logger.Info("sync finished",
			zap.String("trigger", run.Trigger),
			zap.Int("total", res.Total),
			zap.Int("new", res.New),
			zap.Int("downloaded", res.Downloaded),
		)
	}
	c.finishRun(ctx, run)

	return res, err
}

func (c *Cache) sync(ctx context.Context, status connectivity.Status) (*SyncResult, error) {
	info, err := c.api.GetInfo(ctx, c.id)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	upToDate := c.snap.LastUpdated != nil &&
		c.snap.LastUpdated.Equal(info.LastUpdated) &&
		len(c.snap.Photos) == info.Count
	total := len(c.snap.Photos)
	c.mu.Unlock()

	if upToDate {
		c.logger.Debug("photoset up to date", zap.Int("total", total))
		return &SyncResult{Total: total, UpToDate: true}, nil
	}

	c.events.message(MsgUpdating)
	remote, err := c.api.GetPhotos(ctx, c.id)
	if err != nil {
		return nil, err
	}

	total, newCount := c.merge(ctx, info, remote)
	if newCount > 0 {
		c.events.message(fmt.Sprintf(msgArrived, newCount))
	}

	// The merge is committed; an interrupted warm pass still reports it.
	downloaded, err := c.WarmCache(ctx, status)
	if err != nil {
		c.logger.Warn("image warm interrupted", zap.Int("downloaded", downloaded), zap.Error(err))
	}

	res := &SyncResult{Total: total, New: newCount, Downloaded: downloaded}
	c.events.changed(Change{Total: total, New: newCount, Downloaded: downloaded})
	return res, nil
}

// merge replaces the snapshot with the remote listing and persists it.
// Remote order and membership win; records are rebuilt from the response so
// stale titles or URLs do not survive. Only ids unknown to the identity index
// count as new.
func (c *Cache) merge(ctx context.Context, info *photo.SetInfo, remote []photo.RemotePhoto) (total, newCount int) {
	photos := make([]photo.Record, 0, len(remote))
	index := make(map[string]struct{}, len(remote))
	for _, rp := range remote {
		if rp.ID == "" {
			continue
		}
		if _, dup := index[rp.ID]; dup {
			continue
		}
		index[rp.ID] = struct{}{}
		photos = append(photos, rp.ToRecord(c.bounds))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for id := range index {
		if _, known := c.index[id]; !known {
			newCount++
		}
	}

	lastUpdated := info.LastUpdated
	c.snap = &photo.Snapshot{
		LastUpdated: &lastUpdated,
		Title:       info.Title,
		Description: info.Description,
		Photos:      photos,
	}
	c.index = index
	c.metrics.SnapshotPhotos.WithLabelValues(c.id).Set(float64(len(photos)))

	// A failed save is a lost update: memory stays correct until the next sync.
	data, err := photo.EncodeSnapshot(c.snap)
	if err == nil {
		err = c.store.Save(ctx, snapshotKey(c.id), data)
	}
	if err != nil {
		c.logger.Warn("snapshot not persisted", zap.Error(err))
	}

	return len(photos), newCount
}

// WarmCache downloads missing images in snapshot order and returns how many
// were fetched.
//
// Offline it returns 0 without touching the blob cache. On a metered network
// the pass stops after the download that takes the running byte total over
// the budget. A failed download is skipped. The only error returned is the
// context's. Passes run one at a time, so an image is fetched and reported
// at most once.
func (c *Cache) WarmCache(ctx context.Context, status connectivity.Status) (int, error) {
	if status == connectivity.Offline {
		return 0, nil
	}

	c.warmMu.Lock()
	defer c.warmMu.Unlock()

	var downloaded int
	var bytes int64
	for _, p := range c.Photos() {
		if err := ctx.Err(); err != nil {
			return downloaded, err
		}
		if p.URL == "" || c.blobs.Has(p.URL) {
			continue
		}

		data, err := c.blobs.Load(ctx, p.URL, true)
		if err != nil {
			c.logger.Warn("image download failed", zap.String("id", p.ID), zap.Error(err))
			continue
		}
		if data == nil {
			continue
		}

		downloaded++
		bytes += int64(len(data))
		c.metrics.Downloads.Inc()
		c.metrics.DownloadBytes.Add(float64(len(data)))
		c.events.itemAdded(p)

		if status == connectivity.Metered && bytes > c.budget {
			c.logger.Debug("metered budget exhausted",
				zap.Int64("bytes", bytes),
				zap.Int64("budget", c.budget),
			)
			break
		}
	}
	return downloaded, nil
}

func (c *Cache) beginRun(ctx context.Context, run *db.SyncRun) {
	if c.history == nil {
		return
	}
	if err := c.history.Begin(ctx, run); err != nil {
		c.logger.Warn("sync history not recorded", zap.Error(err))
	}
}

func (c *Cache) finishRun(ctx context.Context, run *db.SyncRun) {
	if c.history == nil {
		return
	}
	finished := c.now().UnixMilli()
	run.FinishedAt = &finished
	if err := c.history.Finish(context.WithoutCancel(ctx), run); err != nil {
		c.logger.Warn("sync history not finished", zap.Error(err))
	}
}
