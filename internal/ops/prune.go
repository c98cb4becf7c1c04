package ops

// PruneOutput contains the result of the Prune operation.
type PruneOutput struct {
	Removed int   `json:"removed"`
	Kept    int   `json:"kept"`
	Bytes   int64 `json:"bytes"`
}

// Prune deletes cached images no longer referenced by the snapshot.
func Prune(env *Env) (*PruneOutput, error) {
	removed, err := env.Blobs.Prune(env.Cache.URLs())
	if err != nil {
		return nil, err
	}
	stats, err := env.Blobs.Stats()
	if err != nil {
		return nil, err
	}
	return &PruneOutput{Removed: removed, Kept: stats.Count, Bytes: stats.Bytes}, nil
}
