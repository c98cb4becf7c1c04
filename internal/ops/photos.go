package ops

import (
	"github.com/hpungsan/funnier/internal/photo"
)

// PhotosInput contains parameters for the Photos operation.
type PhotosInput struct {
	All     bool   // every photo, not just those displayable under Network
	Network string // optional, default: current status
	Tag     string // optional tag filter
	Limit   int    // default: 50, max: 500
	Offset  int
}

// PhotoItem is one photo with its position and local state.
type PhotoItem struct {
	photo.Record
	Index  int  `json:"index"`
	Cached bool `json:"cached"`
	Viewed bool `json:"viewed"`
}

// PhotosOutput contains the result of the Photos operation.
type PhotosOutput struct {
	Title      string      `json:"title"`
	Items      []PhotoItem `json:"items"`
	Pagination Pagination  `json:"pagination"`
	Network    string      `json:"network"`
}

// Photos lists the photos visible under the network status, in snapshot order.
// Index is the position in the full snapshot, suitable for last-viewed.
func Photos(env *Env, input PhotosInput) (*PhotosOutput, error) {
	status, err := env.resolveStatus(input.Network)
	if err != nil {
		return nil, err
	}
	limit, offset := clampPage(input.Limit, input.Offset, DefaultPhotosLimit, MaxPhotosLimit)

	all := env.Cache.Photos()
	visible := all
	if !input.All {
		visible = env.Cache.VisiblePhotos(status)
	}

	position := make(map[string]int, len(all))
	for i, p := range all {
		position[p.ID] = i
	}

	tag := photo.NormalizeTag(input.Tag)
	matched := make([]PhotoItem, 0, len(visible))
	for _, p := range visible {
		if tag != "" && !p.HasTag(tag) {
			continue
		}
		matched = append(matched, PhotoItem{
			Record: p,
			Index:  position[p.ID],
			Cached: p.URL != "" && env.Blobs.Has(p.URL),
			Viewed: env.Cache.Viewed(p.ID),
		})
	}

	total := len(matched)
	start := min(offset, total)
	end := min(start+limit, total)
	items := matched[start:end]

	return &PhotosOutput{
		Title:      env.Cache.Title(),
		Items:      items,
		Pagination: newPagination(limit, offset, len(items), total),
		Network:    status.String(),
	}, nil
}
