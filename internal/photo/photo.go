package photo

import "time"

// Record is one cached cartoon.
// Identity is the remote ID alone; Title, URL and Tags may be rewritten by a
// later sync without the record counting as new.
type Record struct {
	// ID is the stable remote photo identifier
	ID string `json:"id"`

	// Title is the caption shown under the image
	Title string `json:"title"`

	// URL is the size variant chosen for the configured display bounds
	URL string `json:"url"`

	// Tags are the remote tags, in remote order
	Tags []string `json:"tags,omitempty"`
}

// Equal reports whether r and o are the same photo.
func (r Record) Equal(o Record) bool {
	return r.ID == o.ID
}

// Snapshot is the durable aggregate persisted for a photoset.
// Photos keeps remote order, which the last viewed index points into.
type Snapshot struct {
	// LastUpdated is the remote update timestamp seen at the last merge.
	// Nil until the first successful sync.
	LastUpdated *time.Time `json:"last_updated,omitempty"`

	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Photos      []Record `json:"photos"`
}

// IDs returns the identity index for the snapshot.
func (s *Snapshot) IDs() map[string]struct{} {
	ids := make(map[string]struct{}, len(s.Photos))
	for _, p := range s.Photos {
		ids[p.ID] = struct{}{}
	}
	return ids
}

// Clone returns a deep copy safe to hand to readers.
func (s *Snapshot) Clone() *Snapshot {
	out := &Snapshot{
		Title:       s.Title,
		Description: s.Description,
		Photos:      ClonePhotos(s.Photos),
	}
	if s.LastUpdated != nil {
		t := *s.LastUpdated
		out.LastUpdated = &t
	}
	return out
}

// IndexOf returns the position of id in the snapshot, or -1.
func (s *Snapshot) IndexOf(id string) int {
	for i, p := range s.Photos {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// ClonePhotos copies records including their tag slices.
func ClonePhotos(in []Record) []Record {
	if in == nil {
		return []Record{}
	}
	out := make([]Record, len(in))
	for i, p := range in {
		out[i] = p
		if p.Tags != nil {
			out[i].Tags = append([]string(nil), p.Tags...)
		}
	}
	return out
}

// Dedupe drops records whose ID already appeared earlier in the slice.
func Dedupe(in []Record) []Record {
	seen := make(map[string]struct{}, len(in))
	out := make([]Record, 0, len(in))
	for _, p := range in {
		if _, ok := seen[p.ID]; ok {
			continue
		}
		seen[p.ID] = struct{}{}
		out = append(out, p)
	}
	return out
}
