package ops

import (
	"context"
)

// WarmInput contains parameters for the Warm operation.
type WarmInput struct {
	Network string // optional, default: current status
}

// WarmOutput contains the result of the Warm operation.
type WarmOutput struct {
	Downloaded int    `json:"downloaded"`
	Visible    int    `json:"visible"`
	Total      int    `json:"total"`
	Network    string `json:"network"`
}

// Warm downloads missing images without refreshing metadata.
func Warm(ctx context.Context, env *Env, input WarmInput) (*WarmOutput, error) {
	status, err := env.resolveStatus(input.Network)
	if err != nil {
		return nil, err
	}

	n, err := env.Cache.WarmCache(ctx, status)
	if err != nil {
		return nil, err
	}

	return &WarmOutput{
		Downloaded: n,
		Visible:    len(env.Cache.VisiblePhotos(status)),
		Total:      env.Cache.Len(),
		Network:    status.String(),
	}, nil
}
