package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"drreport/internal/domain/models"
)

func TestReserveAtMostOnce(t *testing.T) {
	s := NewMemoryArtifactStore(time.Hour)
	ctx := context.Background()

	const n = 50
	var wg sync.WaitGroup
	wins := make(chan bool, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.Reserve(ctx, "DBS19", "2026-01-10")
			if err != nil {
				t.Errorf("reserve: %v", err)
				return
			}
			wins <- ok
		}()
	}
	wg.Wait()
	close(wins)

	got := 0
	for ok := range wins {
		if ok {
			got++
		}
	}
	if got != 1 {
		t.Fatalf("expected exactly 1 winning reserve, got %d", got)
	}
}

func TestTerminalStatusMonotonic(t *testing.T) {
	s := NewMemoryArtifactStore(time.Hour)
	ctx := context.Background()

	if ok, _ := s.Reserve(ctx, "DBS19", "2026-01-10"); !ok {
		t.Fatalf("first reserve should win")
	}
	if err := s.MarkComputed(ctx, "DBS19", "2026-01-10", "report body"); err != nil {
		t.Fatalf("mark computed: %v", err)
	}

	if err := s.MarkComputed(ctx, "DBS19", "2026-01-10", "again"); !errors.Is(err, models.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if err := s.MarkFailed(ctx, "DBS19", "2026-01-10", "late failure"); !errors.Is(err, models.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}

	a, err := s.Lookup(ctx, "DBS19", "2026-01-10")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if a == nil || a.Payload != "report body" {
		t.Fatalf("terminal payload must survive failed transitions, got %+v", a)
	}
}

func TestTransitionWithoutReserve(t *testing.T) {
	s := NewMemoryArtifactStore(time.Hour)
	ctx := context.Background()

	if err := s.MarkComputed(ctx, "DBS19", "2026-01-10", "x"); !errors.Is(err, models.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition for missing row, got %v", err)
	}
}

func TestLookupMissSemantics(t *testing.T) {
	s := NewMemoryArtifactStore(time.Hour)
	ctx := context.Background()

	// Absent row is a miss, not an error.
	if a, err := s.Lookup(ctx, "DBS19", "2026-01-10"); err != nil || a != nil {
		t.Fatalf("absent: want (nil, nil), got (%v, %v)", a, err)
	}

	// Pending row reads as a miss.
	if ok, _ := s.Reserve(ctx, "DBS19", "2026-01-10"); !ok {
		t.Fatalf("reserve should win")
	}
	if a, err := s.Lookup(ctx, "DBS19", "2026-01-10"); err != nil || a != nil {
		t.Fatalf("pending: want (nil, nil), got (%v, %v)", a, err)
	}

	// Failed row reads as a miss too; detail stays on the status path.
	if err := s.MarkFailed(ctx, "DBS19", "2026-01-10", "no data"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if a, err := s.Lookup(ctx, "DBS19", "2026-01-10"); err != nil || a != nil {
		t.Fatalf("failed: want (nil, nil), got (%v, %v)", a, err)
	}

	st, err := s.Status(ctx, "DBS19", "2026-01-10")
	if err != nil || st == nil {
		t.Fatalf("status: %v %v", st, err)
	}
	if st.Status != models.StatusFailed || st.Reason != "no data" {
		t.Fatalf("status row mismatch: %+v", st)
	}
}

func TestStalePendingReclaim(t *testing.T) {
	s := NewMemoryArtifactStore(time.Hour)
	ctx := context.Background()

	base := time.Date(2026, 1, 10, 20, 0, 0, 0, time.UTC)
	now := base
	s.SetClock(func() time.Time { return now })

	if ok, _ := s.Reserve(ctx, "DBS19", "2026-01-10"); !ok {
		t.Fatalf("first reserve should win")
	}

	// Within the TTL the reservation holds.
	now = base.Add(30 * time.Minute)
	if ok, _ := s.Reserve(ctx, "DBS19", "2026-01-10"); ok {
		t.Fatalf("reserve must fail while pending is fresh")
	}

	// Past the TTL the key is reclaimable.
	now = base.Add(2 * time.Hour)
	if ok, _ := s.Reserve(ctx, "DBS19", "2026-01-10"); !ok {
		t.Fatalf("stale pending should be reclaimable")
	}

	// A terminal row is never reclaimed, no matter how old.
	if err := s.MarkComputed(ctx, "DBS19", "2026-01-10", "body"); err != nil {
		t.Fatalf("mark computed: %v", err)
	}
	now = base.Add(100 * time.Hour)
	if ok, _ := s.Reserve(ctx, "DBS19", "2026-01-10"); ok {
		t.Fatalf("terminal row must not be re-reservable")
	}
}
