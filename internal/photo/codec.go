package photo

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
)

// SnapshotVersion is written into every encoded snapshot.
// Decoding accepts any version; unknown fields are ignored.
const SnapshotVersion = 1

// gzipMagic prefixes every gzip stream.
var gzipMagic = []byte{0x1f, 0x8b}

// snapshotEnvelope is the persisted form of a Snapshot.
type snapshotEnvelope struct {
	Version int `json:"version"`
	Snapshot
}

// EncodeSnapshot serializes the whole snapshot as gzip-compressed JSON.
func EncodeSnapshot(s *Snapshot) ([]byte, error) {
	env := snapshotEnvelope{Version: SnapshotVersion, Snapshot: *s}
	if env.Photos == nil {
		env.Photos = []Record{}
	}

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if err := json.NewEncoder(zw).Encode(env); err != nil {
		zw.Close()
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compress snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeSnapshot parses a snapshot written by EncodeSnapshot.
// Plain (uncompressed) JSON is accepted too. Records without an ID are
// dropped and duplicate IDs keep their first occurrence.
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty snapshot payload")
	}

	raw := data
	if bytes.HasPrefix(data, gzipMagic) {
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("open snapshot gzip: %w", err)
		}
		defer zr.Close()
		raw, err = io.ReadAll(zr)
		if err != nil {
			return nil, fmt.Errorf("decompress snapshot: %w", err)
		}
	}

	var env snapshotEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}

	s := env.Snapshot
	photos := make([]Record, 0, len(s.Photos))
	for _, p := range s.Photos {
		if p.ID != "" {
			photos = append(photos, p)
		}
	}
	s.Photos = Dedupe(photos)
	return &s, nil
}
