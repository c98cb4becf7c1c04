package kv

import (
	"context"
	"database/sql"

	"github.com/hpungsan/funnier/internal/db"
)

// SQLiteStore keeps blobs in the kv table of the funnier database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps an initialized database (see db.Init).
// The store does not own the database; Close leaves it open.
func NewSQLiteStore(database *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: database}
}

func (s *SQLiteStore) Load(ctx context.Context, key string) ([]byte, error) {
	return db.GetValue(ctx, s.db, key)
}

func (s *SQLiteStore) Save(ctx context.Context, key string, value []byte) error {
	return db.PutValue(ctx, s.db, key, value)
}

func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	return db.DeleteValue(ctx, s.db, key)
}

func (s *SQLiteStore) Close() error {
	return nil
}
