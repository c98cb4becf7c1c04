package kv

import (
	"context"
	stderrors "errors"

	"github.com/cockroachdb/pebble"
	pkgerrors "github.com/pkg/errors"

	"github.com/hpungsan/funnier/internal/errors"
)

// PebbleStore keeps blobs in a Pebble LSM directory.
type PebbleStore struct {
	db *pebble.DB
}

// OpenPebble opens (creating if needed) a Pebble store at dir.
func OpenPebble(dir string) (*PebbleStore, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, errors.NewStorage("open pebble store", pkgerrors.Wrapf(err, "open %s", dir))
	}
	return &PebbleStore{db: db}, nil
}

func (p *PebbleStore) Load(_ context.Context, key string) ([]byte, error) {
	data, closer, err := p.db.Get([]byte(key))
	if err != nil {
		if stderrors.Is(err, pebble.ErrNotFound) {
			return nil, nil
		}
		return nil, errors.NewStorage("read "+key, err)
	}
	defer closer.Close()

	// Copy the data since it's only valid until closer.Close()
	value := make([]byte, len(data))
	copy(value, data)
	return value, nil
}

func (p *PebbleStore) Save(_ context.Context, key string, value []byte) error {
	if err := p.db.Set([]byte(key), value, pebble.Sync); err != nil {
		return errors.NewStorage("write "+key, err)
	}
	return nil
}

func (p *PebbleStore) Delete(_ context.Context, key string) error {
	if err := p.db.Delete([]byte(key), pebble.Sync); err != nil {
		return errors.NewStorage("delete "+key, err)
	}
	return nil
}

func (p *PebbleStore) Close() error {
	return p.db.Close()
}
