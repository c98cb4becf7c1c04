// Package blobcache is a URL-keyed file cache for image payloads.
//
// Each URL maps to a file under data/xx/<sha256(url)>; a bbolt index records
// which URLs are present along with their size and fetch time.
package blobcache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	pkgerrors "github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/hpungsan/funnier/internal/errors"
	"github.com/hpungsan/funnier/internal/logging"
)

const (
	indexFile   = "index.db"
	dataDir     = "data"
	blobsBucket = "blobs"

	// MaxBlobBytes caps a single download.
	MaxBlobBytes = 32 << 20
)

// Entry is the index record for one cached URL.
type Entry struct {
	File      string `json:"file"`
	Size      int64  `json:"size"`
	FetchedAt int64  `json:"fetched_at"`
}

// Stats summarizes the cache contents.
type Stats struct {
	Count int   `json:"count"`
	Bytes int64 `json:"bytes"`
}

// Options configures a Cache.
type Options struct {
	// Client performs downloads. Defaults to http.DefaultClient.
	Client *http.Client

	// Timeout bounds each download. Zero means no extra timeout.
	Timeout time.Duration

	Logger *zap.Logger
}

// Cache implements load-by-URL / store-by-URL on the local filesystem.
type Cache struct {
	dataPath string
	index    *bolt.DB
	client   *http.Client
	timeout  time.Duration
	logger   *zap.Logger
}

// Open opens (creating if needed) a cache rooted at dir.
func Open(dir string, opts Options) (*Cache, error) {
	dataPath := filepath.Join(dir, dataDir)
	if err := os.MkdirAll(dataPath, 0700); err != nil {
		return nil, errors.NewStorage("create blob directory", err)
	}

	index, err := bolt.Open(filepath.Join(dir, indexFile), 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, errors.NewStorage("open blob index", err)
	}

	err = index.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(blobsBucket))
		return err
	})
	if err != nil {
		index.Close()
		return nil, errors.NewStorage("create blob bucket", err)
	}

	client := opts.Client
	if client == nil {
		client = http.DefaultClient
	}

	return &Cache{
		dataPath: dataPath,
		index:    index,
		client:   client,
		timeout:  opts.Timeout,
		logger:   logging.OrNop(opts.Logger),
	}, nil
}

// Close releases the index.
func (c *Cache) Close() error {
	return c.index.Close()
}

// Load returns the bytes for url. On a miss it downloads and stores the blob
// when allowFetch is true, and returns (nil, nil) otherwise.
// A failed download is a TRANSPORT error; a failed local write is a STORAGE error.
func (c *Cache) Load(ctx context.Context, url string, allowFetch bool) ([]byte, error) {
	if url == "" {
		return nil, nil
	}

	if data, ok := c.read(url); ok {
		return data, nil
	}
	if !allowFetch {
		return nil, nil
	}

	data, err := c.fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	if err := c.store(url, data); err != nil {
		return nil, err
	}
	return data, nil
}

// Has reports whether url is cached locally. It never touches the network.
func (c *Cache) Has(url string) bool {
	entry, ok := c.lookup(url)
	if !ok {
		return false
	}
	info, err := os.Stat(filepath.Join(c.dataPath, entry.File))
	return err == nil && info.Mode().IsRegular()
}

// Prune removes every cached blob whose URL is not in keep.
// Returns the number of blobs removed.
func (c *Cache) Prune(keep map[string]bool) (int, error) {
	var doomed []string
	var files []string

	err := c.index.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(blobsBucket)).ForEach(func(k, v []byte) error {
			if keep[string(k)] {
				return nil
			}
			var entry Entry
			if err := json.Unmarshal(v, &entry); err == nil {
				files = append(files, entry.File)
			}
			doomed = append(doomed, string(k))
			return nil
		})
	})
	if err != nil {
		return 0, errors.NewStorage("scan blob index", err)
	}
	if len(doomed) == 0 {
		return 0, nil
	}

	err = c.index.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(blobsBucket))
		for _, k := range doomed {
			if err := bucket.Delete([]byte(k)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, errors.NewStorage("prune blob index", err)
	}

	for _, f := range files {
		if err := os.Remove(filepath.Join(c.dataPath, f)); err != nil && !os.IsNotExist(err) {
			c.logger.Warn("failed to remove pruned blob", zap.String("file", f), zap.Error(err))
		}
	}
	return len(doomed), nil
}

// Stats returns the number and total size of indexed blobs.
func (c *Cache) Stats() (Stats, error) {
	var s Stats
	err := c.index.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(blobsBucket)).ForEach(func(_, v []byte) error {
			var entry Entry
			if err := json.Unmarshal(v, &entry); err != nil {
				return nil
			}
			s.Count++
			s.Bytes += entry.Size
			return nil
		})
	})
	if err != nil {
		return Stats{}, errors.NewStorage("scan blob index", err)
	}
	return s, nil
}

// fileName returns the sharded relative path for url.
func fileName(url string) string {
	sum := fmt.Sprintf("%x", sha256.Sum256([]byte(url)))
	return filepath.Join(sum[:2], sum)
}

func (c *Cache) lookup(url string) (Entry, bool) {
	var entry Entry
	var found bool
	_ = c.index.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(blobsBucket)).Get([]byte(url))
		if v == nil {
			return nil
		}
		if err := json.Unmarshal(v, &entry); err != nil {
			return nil
		}
		found = true
		return nil
	})
	return entry, found
}

// read returns the cached bytes for url. An index entry whose file is gone
// or unreadable counts as a miss.
func (c *Cache) read(url string) ([]byte, bool) {
	entry, ok := c.lookup(url)
	if !ok {
		return nil, false
	}
	data, err := os.ReadFile(filepath.Join(c.dataPath, entry.File))
	if err != nil {
		c.logger.Warn("cached blob unreadable, treating as miss", zap.String("url", url), zap.Error(err))
		return nil, false
	}
	return data, true
}

func (c *Cache) fetch(ctx context.Context, url string) ([]byte, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("bad blob url %q: %v", url, err))
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.NewTransport("download "+url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.NewTransport("download "+url, fmt.Errorf("unexpected status %s", resp.Status))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxBlobBytes+1))
	if err != nil {
		return nil, errors.NewTransport("download "+url, pkgerrors.Wrap(err, "read body"))
	}
	if len(data) > MaxBlobBytes {
		return nil, errors.NewTransport("download "+url, fmt.Errorf("blob exceeds %d bytes", MaxBlobBytes))
	}

	c.logger.Debug("downloaded blob",
		zap.String("url", url),
		zap.Int("bytes", len(data)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return data, nil
}

// store writes the file first, then the index entry, so an indexed URL
// always has a complete file behind it.
func (c *Cache) store(url string, data []byte) error {
	name := fileName(url)
	path := filepath.Join(c.dataPath, name)

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return errors.NewStorage("store "+url, pkgerrors.Wrap(err, "create shard directory"))
	}
	if err := writeFileAtomic(path, data); err != nil {
		return errors.NewStorage("store "+url, err)
	}

	entry, err := json.Marshal(Entry{File: name, Size: int64(len(data)), FetchedAt: time.Now().Unix()})
	if err != nil {
		return errors.NewInternal(err)
	}
	err = c.index.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(blobsBucket)).Put([]byte(url), entry)
	})
	if err != nil {
		return errors.NewStorage("store "+url, pkgerrors.Wrap(err, "update index"))
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".blob-*")
	if err != nil {
		return pkgerrors.Wrap(err, "create temp file")
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return pkgerrors.Wrap(err, "write temp file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return pkgerrors.Wrap(err, "close temp file")
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return pkgerrors.Wrap(err, "rename temp file")
	}
	return nil
}
