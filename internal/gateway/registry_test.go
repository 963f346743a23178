package gateway

import (
	"errors"
	"sync"
	"testing"

	"github.com/hfdforum/backend/internal/errs"
	"github.com/hfdforum/backend/internal/model"
	"github.com/hfdforum/backend/internal/snowflake"
)

func user(id int64, name string) model.User {
	return model.User{ID: snowflake.ID(id), Username: name}
}

func TestRegistry_RegisterDuplicate(t *testing.T) {
	t.Parallel()
	r := NewRegistry()

	if err := r.Register(user(1, "alice")); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := r.Register(user(1, "alice")); !errors.Is(err, errs.ErrAlreadyOnline) {
		t.Fatalf("want ErrAlreadyOnline, got %v", err)
	}

	r.Unregister(1)
	if err := r.Register(user(1, "alice")); err != nil {
		t.Fatalf("register after unregister: %v", err)
	}
}

func TestRegistry_UnregisterIdempotent(t *testing.T) {
	t.Parallel()
	r := NewRegistry()

	r.Unregister(42) // absent: no-op
	if err := r.Register(user(42, "bob")); err != nil {
		t.Fatalf("register: %v", err)
	}
	r.Unregister(42)
	r.Unregister(42)
	if r.Count() != 0 {
		t.Fatalf("count = %d, want 0", r.Count())
	}
}

func TestRegistry_SnapshotCompleteProfiles(t *testing.T) {
	t.Parallel()
	r := NewRegistry()

	alice := user(1, "alice")
	bob := user(2, "bob")
	if err := r.Register(alice); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(bob); err != nil {
		t.Fatal(err)
	}

	snap := r.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("snapshot size = %d, want 2", len(snap))
	}
	if snap[1].Username != "alice" || snap[2].Username != "bob" {
		t.Fatalf("snapshot holds incomplete profiles: %+v", snap)
	}

	// mutating the snapshot must not affect the registry
	delete(snap, 1)
	if r.Count() != 2 {
		t.Fatalf("snapshot is not a copy")
	}
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	t.Parallel()
	r := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(n int64) {
			defer wg.Done()
			_ = r.Register(user(n, "u"))
			_ = r.Snapshot()
			r.Unregister(snowflake.ID(n))
		}(int64(i))
	}
	wg.Wait()
	if r.Count() != 0 {
		t.Fatalf("count = %d after all unregistered", r.Count())
	}
}
