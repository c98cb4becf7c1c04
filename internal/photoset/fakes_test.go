package photoset

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hpungsan/funnier/internal/db"
	"github.com/hpungsan/funnier/internal/errors"
	"github.com/hpungsan/funnier/internal/photo"
)

var t1 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func remotePhotos(ids ...string) []photo.RemotePhoto {
	out := make([]photo.RemotePhoto, 0, len(ids))
	for _, id := range ids {
		out = append(out, photo.RemotePhoto{
			ID:    id,
			Title: "Cartoon " + id,
			Tags:  []string{"daily"},
			Sizes: []photo.Size{
				{Label: "Small", Width: 240, Height: 180, URL: imageURL(id)},
				{Label: "Large", Width: 1024, Height: 768, URL: "http://img.test/" + id + "_b.jpg"},
			},
		})
	}
	return out
}

func imageURL(id string) string { return "http://img.test/" + id + "_s.jpg" }

type fakeAPI struct {
	mu          sync.Mutex
	info        photo.SetInfo
	photos      []photo.RemotePhoto
	infoErr     error
	photosErr   error
	infoCalls   int
	photosCalls int
}

func newFakeAPI(updated time.Time, ids ...string) *fakeAPI {
	return &fakeAPI{
		info:   photo.SetInfo{Title: "Cartoons", LastUpdated: updated, Count: len(ids)},
		photos: remotePhotos(ids...),
	}
}

func (f *fakeAPI) set(updated time.Time, photos []photo.RemotePhoto) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.info.LastUpdated = updated
	f.info.Count = len(photos)
	f.photos = photos
}

func (f *fakeAPI) GetInfo(ctx context.Context, id string) (*photo.SetInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.infoCalls++
	if f.infoErr != nil {
		return nil, f.infoErr
	}
	info := f.info
	return &info, nil
}

func (f *fakeAPI) GetPhotos(ctx context.Context, id string) ([]photo.RemotePhoto, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.photosCalls++
	if f.photosErr != nil {
		return nil, f.photosErr
	}
	return append([]photo.RemotePhoto(nil), f.photos...), nil
}

func (f *fakeAPI) calls() (info, photos int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.infoCalls, f.photosCalls
}

// fakeBlobs serves every URL from remote with a fixed size unless it is in fail.
type fakeBlobs struct {
	mu      sync.Mutex
	size    int
	cached  map[string][]byte
	fail    map[string]bool
	loads   int
	fetches int
}

func newFakeBlobs(size int) *fakeBlobs {
	return &fakeBlobs{size: size, cached: map[string][]byte{}, fail: map[string]bool{}}
}

func (b *fakeBlobs) Load(ctx context.Context, url string, allowFetch bool) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.loads++
	if data, ok := b.cached[url]; ok {
		return data, nil
	}
	if !allowFetch {
		return nil, nil
	}
	b.fetches++
	if b.fail[url] {
		return nil, errors.NewStorage("write blob", fmt.Errorf("disk full"))
	}
	data := make([]byte, b.size)
	b.cached[url] = data
	return data, nil
}

func (b *fakeBlobs) Has(url string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.cached[url]
	return ok
}

func (b *fakeBlobs) put(url string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cached[url] = make([]byte, b.size)
}

func (b *fakeBlobs) counts() (loads, fetches int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.loads, b.fetches
}

type memStore struct {
	mu      sync.Mutex
	data    map[string][]byte
	saves   map[string]int
	loadErr error
	saveErr error
}

func newMemStore() *memStore {
	return &memStore{data: map[string][]byte{}, saves: map[string]int{}}
}

func (s *memStore) Load(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return s.data[key], nil
}

func (s *memStore) Save(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saves[key]++
	s.data[key] = append([]byte(nil), value...)
	return nil
}

func (s *memStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *memStore) Close() error { return nil }

func (s *memStore) saveCount(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves[key]
}

type fakeHistory struct {
	mu   sync.Mutex
	runs []db.SyncRun
}

func (h *fakeHistory) Begin(ctx context.Context, run *db.SyncRun) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.runs = append(h.runs, *run)
	return nil
}

func (h *fakeHistory) Finish(ctx context.Context, run *db.SyncRun) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := range h.runs {
		if h.runs[i].ID == run.ID {
			h.runs[i] = *run
			return nil
		}
	}
	return errors.NewNotFound(run.ID)
}

// recorder collects events.
type recorder struct {
	mu       sync.Mutex
	added    []string
	messages []string
	changes  []Change
}

func (r *recorder) ItemAdded(p photo.Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.added = append(r.added, p.ID)
}

func (r *recorder) Message(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, text)
}

func (r *recorder) Changed(c Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
}

// gatedBlobs holds every Load until release is closed. The first Load to
// arrive signals entered.
type gatedBlobs struct {
	*fakeBlobs
	entered chan struct{}
	release chan struct{}
}

func newGatedBlobs(size int) *gatedBlobs {
	return &gatedBlobs{
		fakeBlobs: newFakeBlobs(size),
		entered:   make(chan struct{}, 1),
		release:   make(chan struct{}),
	}
}

func (g *gatedBlobs) Load(ctx context.Context, url string, allowFetch bool) ([]byte, error) {
	select {
	case g.entered <- struct{}{}:
	default:
	}
	select {
	case <-g.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return g.fakeBlobs.Load(ctx, url, allowFetch)
}

// cancelingBlobs cancels the caller's context after the first Load.
type cancelingBlobs struct {
	*fakeBlobs
	cancel context.CancelFunc
}

func (b *cancelingBlobs) Load(ctx context.Context, url string, allowFetch bool) ([]byte, error) {
	data, err := b.fakeBlobs.Load(ctx, url, allowFetch)
	b.cancel()
	return data, err
}
