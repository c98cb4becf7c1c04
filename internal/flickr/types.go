package flickr

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/hpungsan/funnier/internal/photo"
)

// flexInt accepts JSON numbers and numeric strings; the API uses both.
type flexInt int64

func (f *flexInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			*f = 0
			return nil
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return err
		}
		*f = flexInt(n)
		return nil
	}
	var n int64
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexInt(n)
	return nil
}

type content struct {
	Content string `json:"_content"`
}

type status struct {
	Stat    string `json:"stat"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type infoResponse struct {
	Photoset struct {
		ID          string  `json:"id"`
		Photos      flexInt `json:"photos"`
		CountPhotos flexInt `json:"count_photos"`
		DateUpdate  flexInt `json:"date_update"`
		Title       content `json:"title"`
		Description content `json:"description"`
	} `json:"photoset"`
}

type photosResponse struct {
	Photoset struct {
		ID    string      `json:"id"`
		Photo []photoJSON `json:"photo"`
		Page  flexInt     `json:"page"`
		Pages flexInt     `json:"pages"`
		Total flexInt     `json:"total"`
	} `json:"photoset"`
}

// photoJSON is one photo with url_*/width_*/height_* extras inlined.
type photoJSON struct {
	ID    string
	Title string
	Tags  string
	extra map[string]json.RawMessage
}

func (p *photoJSON) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	p.extra = raw
	p.ID = rawString(raw["id"])
	p.Title = rawString(raw["title"])
	p.Tags = rawString(raw["tags"])
	return nil
}

func (p photoJSON) toRemote() photo.RemotePhoto {
	rp := photo.RemotePhoto{
		ID:    p.ID,
		Title: p.Title,
		Tags:  strings.Fields(p.Tags),
	}
	for _, e := range sizeExtras {
		u := rawString(p.extra["url_"+e.suffix])
		if u == "" {
			continue
		}
		var w, h flexInt
		_ = w.UnmarshalJSON(p.extra["width_"+e.suffix])
		_ = h.UnmarshalJSON(p.extra["height_"+e.suffix])
		rp.Sizes = append(rp.Sizes, photo.Size{
			Label:  e.label,
			Width:  int(w),
			Height: int(h),
			URL:    u,
		})
	}
	return rp
}

// rawString decodes a JSON string, or returns "" for anything else.
func rawString(b json.RawMessage) string {
	if len(b) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return ""
	}
	return s
}
