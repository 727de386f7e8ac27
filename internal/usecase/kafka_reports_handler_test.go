package usecase

import (
	"context"
	"testing"
	"time"

	"drreport/internal/repository"
)

func testHandler(store *repository.MemoryArtifactStore) *KafkaReportsHandler {
	prices := newFakePriceStore()
	_ = prices.Upsert(context.Background(), window("D05.SI", "2026-01-10"))
	w := testWorker(store, prices, &fakeGenerator{payload: "report"}, nil)
	return NewKafkaReportsHandler("drreport.jobs", w, nopMetrics{})
}

func TestHandleValidJob(t *testing.T) {
	store := repository.NewMemoryArtifactStore(time.Hour)
	h := testHandler(store)

	msg := []byte(`{"mode":"scheduled","ticker":"DBS19","business_date":"2026-01-10"}`)
	if err := h.Handle(context.Background(), msg); err != nil {
		t.Fatalf("handle: %v", err)
	}

	a, err := store.Lookup(context.Background(), "DBS19", "2026-01-10")
	if err != nil || a == nil {
		t.Fatalf("expected computed artifact: %v %v", a, err)
	}
}

func TestHandleRejectsMissingMode(t *testing.T) {
	store := repository.NewMemoryArtifactStore(time.Hour)
	h := testHandler(store)

	// Shape alone says nothing; the discriminant is required.
	msg := []byte(`{"ticker":"DBS19","business_date":"2026-01-10"}`)
	if err := h.Handle(context.Background(), msg); err == nil {
		t.Fatalf("job without mode must be rejected")
	}

	// Rejection happens before any reservation is taken.
	if st, _ := store.Status(context.Background(), "DBS19", "2026-01-10"); st != nil {
		t.Fatalf("rejected job must not touch the store: %+v", st)
	}
}

func TestHandleRejectsUnknownMode(t *testing.T) {
	h := testHandler(repository.NewMemoryArtifactStore(time.Hour))

	msg := []byte(`{"mode":"backfill","ticker":"DBS19","business_date":"2026-01-10"}`)
	if err := h.Handle(context.Background(), msg); err == nil {
		t.Fatalf("unknown mode must be rejected, not guessed at")
	}
}

func TestHandleRejectsBadDate(t *testing.T) {
	h := testHandler(repository.NewMemoryArtifactStore(time.Hour))

	msg := []byte(`{"mode":"on_demand","ticker":"DBS19","business_date":"Jan 10 2026"}`)
	if err := h.Handle(context.Background(), msg); err == nil {
		t.Fatalf("malformed business date must be rejected")
	}
}

func TestHandleWorkerOutcomesAreNotConsumerErrors(t *testing.T) {
	store := repository.NewMemoryArtifactStore(time.Hour)
	h := testHandler(store)

	// Hold the reservation so the worker skips; the message still commits.
	if ok, _ := store.Reserve(context.Background(), "DBS19", "2026-01-10"); !ok {
		t.Fatalf("setup reserve failed")
	}
	msg := []byte(`{"mode":"scheduled","ticker":"DBS19","business_date":"2026-01-10"}`)
	if err := h.Handle(context.Background(), msg); err != nil {
		t.Fatalf("skip outcome must not bounce the message: %v", err)
	}
}
