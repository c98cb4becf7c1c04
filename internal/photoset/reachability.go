package photoset

import (
	"go.uber.org/zap"

	"github.com/hpungsan/funnier/internal/connectivity"
)

// onConnectivity reacts to a connectivity change. On an unmetered network,
// or a metered one with images still missing, it starts a background pass:
// a full sync when the snapshot is empty, otherwise only a warm pass.
// Bursts of notifications for the same status share one in-flight pass; a
// different status gets its own, which queues behind the running one.
func (c *Cache) onConnectivity(status connectivity.Status) {
	if !c.wantsBackgroundPass(status) {
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		_, _, _ = c.group.Do("connectivity/"+status.String(), func() (any, error) {
			c.backgroundPass(status)
			return nil, nil
		})
	}()
}

func (c *Cache) wantsBackgroundPass(status connectivity.Status) bool {
	switch status {
	case connectivity.Unmetered:
		return true
	case connectivity.Metered:
		total := c.Len()
		return total == 0 || len(c.VisiblePhotos(status)) != total
	default:
		return false
	}
}

func (c *Cache) backgroundPass(status connectivity.Status) {
	ctx := WithTrigger(c.bgCtx, TriggerConnectivity)

	if c.Len() == 0 {
		if _, err := c.Sync(ctx, status); err != nil {
			c.logger.Warn("background sync failed", zap.Stringer("status", status), zap.Error(err))
		}
		return
	}

	n, err := c.WarmCache(ctx, status)
	if err != nil {
		c.logger.Warn("background warm stopped", zap.Stringer("status", status), zap.Error(err))
		return
	}
	c.logger.Debug("background warm finished", zap.Int("downloaded", n))
}
