package ops

import (
	"context"

	"go.uber.org/zap"

	"github.com/hpungsan/funnier/internal/photoset"
)

// SyncInput contains parameters for the Sync operation.
type SyncInput struct {
	Network string // optional: offline|metered|unmetered, default: current status
	Trigger string // recorded in sync history, default: manual
}

// SyncOutput contains the result of the Sync operation.
type SyncOutput struct {
	photoset.SyncResult
	Network string `json:"network"`

	// Stale is set when the sync failed but a cached snapshot is still served.
	Stale bool   `json:"stale,omitempty"`
	Error string `json:"error,omitempty"`
}

// Sync refreshes the photoset from the remote API.
//
// A failed sync is only an error when there is nothing cached to fall back
// on. Otherwise the cached snapshot stays in use and the output reports it
// as stale.
func Sync(ctx context.Context, env *Env, input SyncInput) (*SyncOutput, error) {
	status, err := env.resolveStatus(input.Network)
	if err != nil {
		return nil, err
	}
	if input.Trigger != "" {
		ctx = photoset.WithTrigger(ctx, input.Trigger)
	}

	res, err := env.Cache.Sync(ctx, status)
	if err != nil {
		total := env.Cache.Len()
		if total == 0 {
			return nil, err
		}
		env.Logger.Info("serving cached photoset after failed sync", zap.Error(err))
		return &SyncOutput{
			SyncResult: photoset.SyncResult{Total: total},
			Network:    status.String(),
			Stale:      true,
			Error:      err.Error(),
		}, nil
	}

	return &SyncOutput{
		SyncResult: *res,
		Network:    status.String(),
	}, nil
}
