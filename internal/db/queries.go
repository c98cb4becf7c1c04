package db

import (
	"context"
	"crypto/rand"
	"database/sql"
	stderrors "errors"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/funnier/internal/errors"
)

// Sync run statuses.
const (
	SyncStatusRunning  = "running"
	SyncStatusOK       = "ok"
	SyncStatusUpToDate = "up_to_date"
	SyncStatusFailed   = "failed"
)

// GetValue returns the blob stored under key, or nil if the key is absent.
func GetValue(ctx context.Context, db *sql.DB, key string) ([]byte, error) {
	var value []byte
	err := db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.NewStorage("read "+key, err)
	}
	return value, nil
}

// PutValue replaces the blob stored under key in a single statement.
func PutValue(ctx context.Context, db *sql.DB, key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, time.Now().Unix())
	if err != nil {
		return errors.NewStorage("write "+key, err)
	}
	return nil
}

// DeleteValue removes key. Deleting a missing key is not an error.
func DeleteValue(ctx context.Context, db *sql.DB, key string) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return errors.NewStorage("delete "+key, err)
	}
	return nil
}

// SyncRun is one recorded sync attempt.
type SyncRun struct {
	ID         string  `json:"id"`
	PhotosetID string  `json:"photoset_id"`
	Trigger    string  `json:"trigger"`
	StartedAt  int64   `json:"started_at"`
	FinishedAt *int64  `json:"finished_at,omitempty"`
	Status     string  `json:"status"`
	Total      int     `json:"total"`
	NewCount   int     `json:"new_count"`
	Downloaded int     `json:"downloaded"`
	Error      *string `json:"error,omitempty"`
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewRunID returns a ULID for a sync run started at t.
// IDs minted within the same millisecond sort in creation order.
func NewRunID(t time.Time) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// InsertSyncRun records the start of a sync attempt.
func InsertSyncRun(ctx context.Context, db *sql.DB, run *SyncRun) error {
	if run.Status == "" {
		run.Status = SyncStatusRunning
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO sync_runs (id, photoset_id, trigger_kind, started_at, status)
		VALUES (?, ?, ?, ?, ?)
	`, run.ID, run.PhotosetID, run.Trigger, run.StartedAt, run.Status)
	if err != nil {
		return errors.NewStorage("insert sync run", err)
	}
	return nil
}

// FinishSyncRun records the outcome of a sync attempt.
// Returns NotFound if no run has the given id.
func FinishSyncRun(ctx context.Context, db *sql.DB, run *SyncRun) error {
	var errMsg sql.NullString
	if run.Error != nil {
		errMsg = sql.NullString{String: *run.Error, Valid: true}
	}
	var finished sql.NullInt64
	if run.FinishedAt != nil {
		finished = sql.NullInt64{Int64: *run.FinishedAt, Valid: true}
	}

	result, err := db.ExecContext(ctx, `
		UPDATE sync_runs
		SET finished_at = ?, status = ?, total = ?, new_count = ?, downloaded = ?, error = ?
		WHERE id = ?
	`, finished, run.Status, run.Total, run.NewCount, run.Downloaded, errMsg, run.ID)
	if err != nil {
		return errors.NewStorage("finish sync run", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return errors.NewStorage("finish sync run", err)
	}
	if rows == 0 {
		return errors.NewNotFound(run.ID)
	}
	return nil
}

// ListSyncRuns returns runs for a photoset, newest first, plus the total count.
func ListSyncRuns(ctx context.Context, db *sql.DB, photosetID string, limit, offset int) ([]SyncRun, int, error) {
	var total int
	if err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sync_runs WHERE photoset_id = ?`, photosetID,
	).Scan(&total); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	rows, err := db.QueryContext(ctx, `
		SELECT id, photoset_id, trigger_kind, started_at, finished_at, status,
			total, new_count, downloaded, error
		FROM sync_runs
		WHERE photoset_id = ?
		ORDER BY started_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, photosetID, limit, offset)
	if err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	defer rows.Close()

	runs := make([]SyncRun, 0)
	for rows.Next() {
		run, err := scanSyncRun(rows)
		if err != nil {
			return nil, 0, err
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	return runs, total, nil
}

// LatestSyncRun returns the most recent run for a photoset.
// Returns NotFound if the photoset has never been synced.
func LatestSyncRun(ctx context.Context, db *sql.DB, photosetID string) (*SyncRun, error) {
	runs, _, err := ListSyncRuns(ctx, db, photosetID, 1, 0)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, errors.NewNotFound(photosetID)
	}
	return &runs[0], nil
}

// scanner abstracts *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanSyncRun(s scanner) (*SyncRun, error) {
	var (
		run      SyncRun
		finished sql.NullInt64
		errMsg   sql.NullString
	)
	if err := s.Scan(
		&run.ID, &run.PhotosetID, &run.Trigger, &run.StartedAt, &finished, &run.Status,
		&run.Total, &run.NewCount, &run.Downloaded, &errMsg,
	); err != nil {
		return nil, errors.NewInternal(err)
	}
	if finished.Valid {
		v := finished.Int64
		run.FinishedAt = &v
	}
	if errMsg.Valid {
		v := errMsg.String
		run.Error = &v
	}
	return &run, nil
}
