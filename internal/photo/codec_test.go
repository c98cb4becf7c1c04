package photo

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotCodec_PreservesLastUpdated(t *testing.T) {
	ts := time.Date(2012, 11, 2, 15, 4, 5, 0, time.UTC)

	tests := []struct {
		name string
		snap *Snapshot
	}{
		{"absent", &Snapshot{Title: "Cartoons", Photos: []Record{{ID: "a"}}}},
		{"present", &Snapshot{LastUpdated: &ts, Title: "Cartoons", Photos: []Record{{ID: "a", Tags: []string{"x"}}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := EncodeSnapshot(tt.snap)
			require.NoError(t, err)
			assert.Equal(t, gzipMagic, data[:2])

			got, err := DecodeSnapshot(data)
			require.NoError(t, err)
			if tt.snap.LastUpdated == nil {
				assert.Nil(t, got.LastUpdated)
			} else {
				require.NotNil(t, got.LastUpdated)
				assert.True(t, tt.snap.LastUpdated.Equal(*got.LastUpdated))
			}
			if diff := cmp.Diff(tt.snap.Photos, got.Photos); diff != "" {
				t.Errorf("photos mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecodeSnapshot_ForwardTolerant(t *testing.T) {
	// Plain JSON from a newer schema: unknown fields, missing optional ones.
	data := []byte(`{
		"version": 7,
		"title": "Cartoons",
		"owner": {"nsid": "123@N01"},
		"photos": [
			{"id": "a", "title": "First", "url": "https://x/a.jpg", "rating": 5},
			{"id": "b"}
		]
	}`)

	got, err := DecodeSnapshot(data)
	require.NoError(t, err)
	assert.Nil(t, got.LastUpdated)
	assert.Equal(t, "Cartoons", got.Title)
	require.Len(t, got.Photos, 2)
	assert.Equal(t, "First", got.Photos[0].Title)
	assert.Nil(t, got.Photos[1].Tags)
}

func TestDecodeSnapshot_DropsBadRecords(t *testing.T) {
	data := []byte(`{"photos": [{"id": "a"}, {"title": "no id"}, {"id": "a", "title": "dup"}, {"id": "b"}]}`)

	got, err := DecodeSnapshot(data)
	require.NoError(t, err)
	require.Len(t, got.Photos, 2)
	assert.Equal(t, "a", got.Photos[0].ID)
	assert.Equal(t, "", got.Photos[0].Title)
	assert.Equal(t, "b", got.Photos[1].ID)
}

func TestDecodeSnapshot_Corrupt(t *testing.T) {
	tests := map[string][]byte{
		"empty":          nil,
		"garbage":        []byte("not a snapshot"),
		"truncated gzip": {0x1f, 0x8b, 0x08, 0x00},
		"wrong shape":    []byte(`{"photos": "a,b,c"}`),
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeSnapshot(data)
			assert.Error(t, err)
		})
	}
}
