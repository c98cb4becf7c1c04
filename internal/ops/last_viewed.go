package ops

import (
	"context"
	"fmt"

	"github.com/hpungsan/funnier/internal/errors"
	"github.com/hpungsan/funnier/internal/photo"
)

// LastViewedInput contains parameters for the LastViewed operation.
type LastViewedInput struct {
	Index *int   // optional: set the index
	ID    string // optional: set the index to this photo's position
}

// LastViewedOutput contains the result of the LastViewed operation.
type LastViewedOutput struct {
	Index int           `json:"index"`
	Photo *photo.Record `json:"photo,omitempty"`
}

// LastViewed reads the last viewed position, or sets and persists it when
// Index or ID is given. Setting by ID also marks the photo viewed.
func LastViewed(ctx context.Context, env *Env, input LastViewedInput) (*LastViewedOutput, error) {
	if input.Index != nil && input.ID != "" {
		return nil, errors.NewInvalidRequest("specify either index or id, not both")
	}

	switch {
	case input.ID != "":
		_, i, ok := env.Cache.Photo(input.ID)
		if !ok {
			return nil, errors.NewNotFound(input.ID)
		}
		env.Cache.SetLastViewedIndex(i)
		env.Cache.MarkViewed(input.ID)
	case input.Index != nil:
		i := *input.Index
		if i < 0 || (i > 0 && i >= env.Cache.Len()) {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("index %d out of range (0..%d)", i, max(env.Cache.Len()-1, 0)))
		}
		env.Cache.SetLastViewedIndex(i)
	}

	if input.ID != "" || input.Index != nil {
		if err := env.Cache.PersistLastViewedIndex(ctx); err != nil {
			return nil, err
		}
	}

	out := &LastViewedOutput{Index: env.Cache.LastViewedIndex()}
	photos := env.Cache.Photos()
	if out.Index < len(photos) {
		p := photos[out.Index]
		out.Photo = &p
	}
	return out, nil
}
