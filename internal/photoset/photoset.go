// Package photoset keeps a local, offline-capable mirror of one remote photoset.
//
// A Cache owns the in-memory snapshot and its identity index, merges remote
// listings into it, persists it through a kv.Store and warms the image blob
// cache within the limits of the current connectivity class.
package photoset

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/hpungsan/funnier/internal/connectivity"
	"github.com/hpungsan/funnier/internal/errors"
	"github.com/hpungsan/funnier/internal/kv"
	"github.com/hpungsan/funnier/internal/logging"
	"github.com/hpungsan/funnier/internal/photo"
)

// Defaults applied when Options leaves a field zero.
const (
	DefaultMeteredBudget = 512 * 1024
	DefaultStaleAfter    = 6 * time.Hour
)

// API is the remote photoset service.
type API interface {
	GetInfo(ctx context.Context, photosetID string) (*photo.SetInfo, error)
	GetPhotos(ctx context.Context, photosetID string) ([]photo.RemotePhoto, error)
}

// BlobStore is the URL-keyed image cache.
type BlobStore interface {
	// Load returns cached bytes for url. On a miss it fetches only when
	// allowFetch is set, and otherwise returns (nil, nil).
	Load(ctx context.Context, url string, allowFetch bool) ([]byte, error)
	// Has reports whether url is cached locally. It never touches the network.
	Has(url string) bool
}

// Options configures a Cache.
type Options struct {
	PhotosetID string
	API        API
	Store      kv.Store
	Blobs      BlobStore

	// Monitor is optional. When set, connectivity changes trigger background
	// sync or warm passes.
	Monitor connectivity.Monitor

	Bounds        photo.Bounds
	MeteredBudget int64
	StaleAfter    time.Duration

	Logger  *zap.Logger
	History History
	Metrics *Metrics
	Now     func() time.Time
}

// Cache is the synchronized local mirror of a photoset.
type Cache struct {
	id         string
	api        API
	store      kv.Store
	blobs      BlobStore
	bounds     photo.Bounds
	budget     int64
	staleAfter time.Duration
	logger     *zap.Logger
	history    History
	metrics    *Metrics
	now        func() time.Time

	events registry

	// mu guards the snapshot and identity index as one unit, plus the
	// bookkeeping below.
	mu          sync.Mutex
	snap        *photo.Snapshot
	index       map[string]struct{}
	lastAttempt time.Time
	lastViewed  int
	viewed      map[string]struct{}
	closed      bool

	group       singleflight.Group
	warmMu      sync.Mutex
	wg          sync.WaitGroup
	bgCtx       context.Context
	bgCancel    context.CancelFunc
	unsubscribe func()
}

func snapshotKey(id string) string  { return "photoset/" + id }
func userStateKey(id string) string { return "last_viewed/" + id }

// userState is the small, frequently written per-user state.
type userState struct {
	LastViewedIndex int      `json:"last_viewed_index"`
	Viewed          []string `json:"viewed,omitempty"`
}

// New loads the persisted snapshot and user state for opts.PhotosetID and
// subscribes to opts.Monitor. A missing or corrupt snapshot yields an empty
// cache rather than an error.
func New(ctx context.Context, opts Options) (*Cache, error) {
	if opts.PhotosetID == "" {
		return nil, errors.NewNotConfigured("photoset_id")
	}
	if opts.API == nil || opts.Store == nil || opts.Blobs == nil {
		return nil, errors.NewInvalidRequest("photoset cache requires an API, a store and a blob cache")
	}

	c := &Cache{
		id:         opts.PhotosetID,
		api:        opts.API,
		store:      opts.Store,
		blobs:      opts.Blobs,
		bounds:     opts.Bounds,
		budget:     opts.MeteredBudget,
		staleAfter: opts.StaleAfter,
		logger:     logging.OrNop(opts.Logger).With(zap.String("photoset", opts.PhotosetID)),
		history:    opts.History,
		metrics:    opts.Metrics,
		now:        opts.Now,
		viewed:     make(map[string]struct{}),
	}
	if c.budget <= 0 {
		c.budget = DefaultMeteredBudget
	}
	if c.staleAfter <= 0 {
		c.staleAfter = DefaultStaleAfter
	}
	if c.metrics == nil {
		c.metrics = NewMetrics(nil)
	}
	if c.now == nil {
		c.now = time.Now
	}

	c.snap = c.loadSnapshot(ctx)
	c.index = c.snap.IDs()
	c.metrics.SnapshotPhotos.WithLabelValues(c.id).Set(float64(len(c.snap.Photos)))

	st, _, err := kv.LoadJSON[userState](ctx, c.store, userStateKey(c.id))
	if err != nil {
		c.logger.Warn("discarding unreadable user state", zap.Error(err))
	}
	if st.LastViewedIndex > 0 {
		c.lastViewed = st.LastViewedIndex
	}
	for _, id := range st.Viewed {
		c.viewed[id] = struct{}{}
	}

	c.bgCtx, c.bgCancel = context.WithCancel(context.Background())
	if opts.Monitor != nil {
		c.unsubscribe = opts.Monitor.Subscribe(c.onConnectivity)
	}
	return c, nil
}

func (c *Cache) loadSnapshot(ctx context.Context) *photo.Snapshot {
	empty := &photo.Snapshot{Photos: []photo.Record{}}

	data, err := c.store.Load(ctx, snapshotKey(c.id))
	if err != nil {
		c.logger.Warn("snapshot load failed, starting empty", zap.Error(err))
		return empty
	}
	if data == nil {
		return empty
	}
	snap, err := photo.DecodeSnapshot(data)
	if err != nil {
		c.logger.Warn("snapshot corrupt, starting empty", zap.Error(err))
		return empty
	}
	return snap
}

// Close stops reacting to connectivity changes and waits for background work.
// It does not close the store or blob cache.
func (c *Cache) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	if c.unsubscribe != nil {
		c.unsubscribe()
	}
	c.bgCancel()
	c.wg.Wait()
}

// Subscribe registers l for cache events.
func (c *Cache) Subscribe(l Listener) *Subscription {
	return c.events.add(l)
}

// ID returns the photoset identifier.
func (c *Cache) ID() string { return c.id }

// Title returns the photoset title from the last merge.
func (c *Cache) Title() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap.Title
}

// Description returns the photoset description from the last merge.
func (c *Cache) Description() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap.Description
}

// LastUpdated returns the remote update time seen at the last merge, or nil.
func (c *Cache) LastUpdated() *time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.snap.LastUpdated == nil {
		return nil
	}
	t := *c.snap.LastUpdated
	return &t
}

// Photos returns a copy of every photo in snapshot order.
func (c *Cache) Photos() []photo.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return photo.ClonePhotos(c.snap.Photos)
}

// Len returns the number of photos in the snapshot.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.snap.Photos)
}

// Photo returns the photo with id and its position in the snapshot.
func (c *Cache) Photo(id string) (photo.Record, int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.snap.IndexOf(id)
	if i < 0 {
		return photo.Record{}, -1, false
	}
	return photo.ClonePhotos(c.snap.Photos[i : i+1])[0], i, true
}

// URLs returns the set of image URLs referenced by the snapshot.
func (c *Cache) URLs() map[string]bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	urls := make(map[string]bool, len(c.snap.Photos))
	for _, p := range c.snap.Photos {
		if p.URL != "" {
			urls[p.URL] = true
		}
	}
	return urls
}

// VisiblePhotos returns the photos displayable under status, in snapshot
// order. On an unmetered network that is every photo; otherwise only photos
// whose image is already in the blob cache. It never mutates state or fetches.
func (c *Cache) VisiblePhotos(status connectivity.Status) []photo.Record {
	all := c.Photos()
	if status == connectivity.Unmetered {
		return all
	}
	visible := make([]photo.Record, 0, len(all))
	for _, p := range all {
		if p.URL != "" && c.blobs.Has(p.URL) {
			visible = append(visible, p)
		}
	}
	return visible
}

// Image returns the image bytes for the photo with id. With allowFetch unset
// a cache miss returns (nil, nil).
func (c *Cache) Image(ctx context.Context, id string, allowFetch bool) ([]byte, error) {
	p, _, ok := c.Photo(id)
	if !ok {
		return nil, errors.NewNotFound(id)
	}
	return c.blobs.Load(ctx, p.URL, allowFetch)
}

// IsStale reports whether a sync should be triggered: this process has not
// attempted one yet, or the last attempt is older than the stale threshold.
// A failed attempt counts, so a broken endpoint is retried once per threshold.
func (c *Cache) IsStale() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastAttempt.IsZero() {
		return true
	}
	return c.now().Sub(c.lastAttempt) > c.staleAfter
}

// LastAttempt returns when the last sync started, or the zero time.
func (c *Cache) LastAttempt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastAttempt
}

// LastViewedIndex returns the paging position of the last viewed photo.
func (c *Cache) LastViewedIndex() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastViewed
}

// SetLastViewedIndex updates the in-memory position. Negative values clamp to 0.
// Call PersistLastViewedIndex to make it durable.
func (c *Cache) SetLastViewedIndex(i int) {
	if i < 0 {
		i = 0
	}
	c.mu.Lock()
	c.lastViewed = i
	c.mu.Unlock()
}

// MarkViewed records that the photo with id has been shown.
func (c *Cache) MarkViewed(id string) {
	c.mu.Lock()
	c.viewed[id] = struct{}{}
	c.mu.Unlock()
}

// Viewed reports whether the photo with id has been shown.
func (c *Cache) Viewed(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.viewed[id]
	return ok
}

// PersistLastViewedIndex writes the last viewed index and viewed ids.
// It is independent of snapshot persistence.
func (c *Cache) PersistLastViewedIndex(ctx context.Context) error {
	c.mu.Lock()
	st := userState{LastViewedIndex: c.lastViewed}
	for id := range c.viewed {
		st.Viewed = append(st.Viewed, id)
	}
	c.mu.Unlock()
	sort.Strings(st.Viewed)

	return kv.SaveJSON(ctx, c.store, userStateKey(c.id), st)
}
