package ops

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/hpungsan/funnier/internal/errors"
	"github.com/hpungsan/funnier/internal/photo"
)

// ExportInput contains parameters for the Export operation.
type ExportInput struct {
	Path string // optional, default: <base>/exports/<photoset>-<timestamp>.jsonl
}

// ExportOutput contains the result of the Export operation.
type ExportOutput struct {
	Path       string `json:"path"`
	Count      int    `json:"count"`
	ExportedAt int64  `json:"exported_at"`
}

// ExportHeader is the first line of an export file.
type ExportHeader struct {
	FunnierExport bool       `json:"_funnier_export"`
	SchemaVersion int        `json:"schema_version"`
	PhotosetID    string     `json:"photoset_id"`
	Title         string     `json:"title"`
	LastUpdated   *time.Time `json:"last_updated,omitempty"`
	ExportedAt    int64      `json:"exported_at"`
}

// ExportRecord is one photo line of an export file.
type ExportRecord struct {
	photo.Record
	Index  int  `json:"index"`
	Viewed bool `json:"viewed"`
}

// Export writes the snapshot as JSONL: a header line, then one line per
// photo in snapshot order. The file is written to a temp file and renamed
// into place, so an existing export survives a failure.
func Export(ctx context.Context, env *Env, input ExportInput) (*ExportOutput, error) {
	now := time.Now()
	exportsDir := filepath.Join(env.BaseDir, ExportsDir)

	exportPath := input.Path
	if exportPath == "" {
		name := SanitizeForFilename(env.Cache.ID())
		exportPath = filepath.Join(exportsDir, fmt.Sprintf("%s-%s.jsonl", name, now.Format("2006-01-02T150405")))
	}
	if err := ValidateExportPath(exportPath, exportsDir); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(exportsDir, 0700); err != nil {
		return nil, errors.NewStorage("create exports directory", err)
	}

	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to generate temp file name: %w", err))
	}
	tempPath := exportPath + "." + hex.EncodeToString(randBytes) + ".tmp"
	file, err := openFileNoFollow(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, errors.NewStorage("create export file", err)
	}

	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	w := bufio.NewWriter(file)
	enc := json.NewEncoder(w)

	header := ExportHeader{
		FunnierExport: true,
		SchemaVersion: photo.SnapshotVersion,
		PhotosetID:    env.Cache.ID(),
		Title:         env.Cache.Title(),
		LastUpdated:   env.Cache.LastUpdated(),
		ExportedAt:    now.Unix(),
	}
	if err := enc.Encode(header); err != nil {
		return nil, errors.NewStorage("write export header", err)
	}

	photos := env.Cache.Photos()
	for i, p := range photos {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := enc.Encode(ExportRecord{Record: p, Index: i, Viewed: env.Cache.Viewed(p.ID)}); err != nil {
			return nil, errors.NewStorage("write export record", err)
		}
	}

	if err := w.Flush(); err != nil {
		return nil, errors.NewStorage("write export", err)
	}
	if err := file.Sync(); err != nil {
		return nil, errors.NewStorage("sync export", err)
	}
	// Close before rename (required on Windows; fine elsewhere).
	if err := file.Close(); err != nil {
		return nil, errors.NewStorage("close export", err)
	}
	file = nil

	if info, err := os.Lstat(exportPath); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return nil, errors.NewInvalidRequest("export path is a symlink")
	}

	// On Windows os.Rename fails if the destination exists; fail rather than
	// risk losing the existing file with a delete+rename.
	if err := os.Rename(tempPath, exportPath); err != nil {
		if runtime.GOOS == "windows" {
			if _, statErr := os.Stat(exportPath); statErr == nil {
				return nil, errors.NewInvalidRequest("export destination already exists")
			}
		}
		return nil, errors.NewStorage("finalize export", err)
	}

	success = true
	return &ExportOutput{
		Path:       exportPath,
		Count:      len(photos),
		ExportedAt: now.Unix(),
	}, nil
}
