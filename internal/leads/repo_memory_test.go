package leads

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryRepo_StageIsExclusive(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepo()
	if err := r.Create(ctx, Lead{ID: "l1", OrderID: "o1", Phone: "+491701234567"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	now := time.Now()
	if err := r.Stage(ctx, "l1", "sess-a", now); err != nil {
		t.Fatalf("first stage: %v", err)
	}
	if err := r.Stage(ctx, "l1", "sess-b", now); !errors.Is(err, ErrAlreadyStaged) {
		t.Fatalf("second stage: got %v, want ErrAlreadyStaged", err)
	}
}

func TestMemoryRepo_ReleaseStale(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepo()
	for _, id := range []string{"a", "b"} {
		if err := r.Create(ctx, Lead{ID: id, OrderID: "o1", Phone: "+49170"}); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}
	old := time.Now().Add(-time.Minute)
	if err := r.Stage(ctx, "a", "dead", old); err != nil {
		t.Fatalf("stage a: %v", err)
	}
	if err := r.Stage(ctx, "b", "live", time.Now()); err != nil {
		t.Fatalf("stage b: %v", err)
	}

	freed, err := r.ReleaseStale(ctx, time.Now().Add(-30*time.Second))
	if err != nil {
		t.Fatalf("release stale: %v", err)
	}
	if freed != 1 {
		t.Fatalf("freed = %d, want 1", freed)
	}
	a, _ := r.Get(ctx, "a")
	if a.Staged() {
		t.Fatalf("stale lead still staged")
	}
	b, _ := r.Get(ctx, "b")
	if !b.Staged() {
		t.Fatalf("fresh lead was released")
	}
}

func TestMemoryRepo_ListForOrderSkipsTerminal(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepo()
	seed := []Lead{
		{ID: "a", OrderID: "o1", Phone: "+1", Status: StatusNoAnswer},
		{ID: "b", OrderID: "o1", Phone: "+2", Status: StatusCompleted},
		{ID: "c", OrderID: "o2", Phone: "+3", Status: StatusNoAnswer},
	}
	for _, l := range seed {
		if err := r.Create(ctx, l); err != nil {
			t.Fatalf("create %s: %v", l.ID, err)
		}
	}
	got, err := r.ListForOrder(ctx, "o1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].ID != "a" {
		t.Fatalf("expected only lead a, got %+v", got)
	}
}
