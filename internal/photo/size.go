package photo

import (
	"sort"
	"time"
)

// Bounds is the display area an image is chosen for.
type Bounds struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Size is one remote size variant of a photo.
type Size struct {
	Label  string `json:"label"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	URL    string `json:"url"`
}

// RemotePhoto is a photo as returned by the photo API, before URL resolution.
type RemotePhoto struct {
	ID    string
	Title string
	Tags  []string
	Sizes []Size
}

// ToRecord builds a fresh Record for the given display bounds.
func (p RemotePhoto) ToRecord(b Bounds) Record {
	var tags []string
	if len(p.Tags) > 0 {
		tags = append([]string(nil), p.Tags...)
	}
	return Record{
		ID:    p.ID,
		Title: p.Title,
		URL:   ResolveURL(p.Sizes, b),
		Tags:  tags,
	}
}

// ResolveURL picks the smallest size variant that exceeds the bounds in
// either dimension. If none does, the largest variant wins.
// Variants without a URL are ignored; an empty list yields "".
func ResolveURL(sizes []Size, b Bounds) string {
	usable := make([]Size, 0, len(sizes))
	for _, s := range sizes {
		if s.URL != "" {
			usable = append(usable, s)
		}
	}
	if len(usable) == 0 {
		return ""
	}

	sort.SliceStable(usable, func(i, j int) bool {
		return usable[i].Width*usable[i].Height < usable[j].Width*usable[j].Height
	})

	for _, s := range usable {
		if s.Width > b.Width || s.Height > b.Height {
			return s.URL
		}
	}
	return usable[len(usable)-1].URL
}

// SetInfo is the remote metadata of a photoset.
type SetInfo struct {
	Title       string
	Description string
	LastUpdated time.Time
	Count       int
}
