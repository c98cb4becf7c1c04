// Package kv is the durable named-blob store the photoset cache persists into.
package kv

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/hpungsan/funnier/internal/errors"
)

// Store loads and saves named blobs. Save replaces the whole value atomically;
// readers never observe a partial write.
type Store interface {
	// Load returns the value for key, or (nil, nil) if the key is absent.
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Open returns the store for the configured backend.
// The sqlite backend shares database; pebble keeps its own directory under baseDir.
func Open(backend, baseDir string, database *sql.DB) (Store, error) {
	switch backend {
	case "", "sqlite":
		if database == nil {
			return nil, errors.NewInvalidRequest("sqlite backend requires an open database")
		}
		return NewSQLiteStore(database), nil
	case "pebble":
		return OpenPebble(filepath.Join(baseDir, "kv"))
	default:
		return nil, errors.NewInvalidRequest(fmt.Sprintf("unknown kv backend: %s", backend))
	}
}

// LoadJSON decodes the JSON value stored under key.
// found is false when the key is absent. A value that does not decode
// yields a DESERIALIZATION error so callers can fall back to a default.
func LoadJSON[T any](ctx context.Context, s Store, key string) (value T, found bool, err error) {
	data, err := s.Load(ctx, key)
	if err != nil {
		return value, false, err
	}
	if data == nil {
		return value, false, nil
	}
	if err := json.Unmarshal(data, &value); err != nil {
		var zero T
		return zero, false, errors.NewDeserialization(key, err)
	}
	return value, true, nil
}

// SaveJSON encodes v as JSON and saves it under key.
func SaveJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.NewInternal(err)
	}
	return s.Save(ctx, key, data)
}
