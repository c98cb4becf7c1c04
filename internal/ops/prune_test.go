package ops

import (
	"context"
	"testing"
	"time"
)

func TestPrune(t *testing.T) {
	env, srv := setupEnv(t, "unmetered", "a", "b", "c")
	ctx := context.Background()
	if _, err := Sync(ctx, env, SyncInput{}); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}

	srv.SetPhotos(t1.Add(time.Hour), cartoons("a", "c")...)
	if _, err := Sync(ctx, env, SyncInput{}); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}

	out, err := Prune(env)
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if out.Removed != 1 || out.Kept != 2 {
		t.Errorf("Prune() = %+v, want 1 removed, 2 kept", out)
	}
	if env.Blobs.Has(srv.ImageURL("b")) {
		t.Error("b still cached after prune")
	}

	out, err = Prune(env)
	if err != nil {
		t.Fatalf("second Prune() error = %v", err)
	}
	if out.Removed != 0 {
		t.Errorf("second Prune() removed %d, want 0", out.Removed)
	}
}
