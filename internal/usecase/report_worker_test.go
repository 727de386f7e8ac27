package usecase

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"drreport/internal/domain/models"
	domrepo "drreport/internal/domain/repository"
	"drreport/internal/repository"
)

func testWorker(store *repository.MemoryArtifactStore, prices *fakePriceStore, gen *fakeGenerator, notifier *fakeNotifier) *ReportWorker {
	// A typed-nil *fakeNotifier must become an interface nil, or the
	// worker's nil check cannot see it.
	var n domrepo.Notifier
	if notifier != nil {
		n = notifier
	}
	return NewReportWorker(
		testRegistry(), store, prices, gen, nil, n,
		nopMetrics{}, testLogger(), 30, time.Second,
	)
}

func job(ticker string) *models.ReportJob {
	return &models.ReportJob{Mode: models.ModeScheduled, Ticker: ticker, BusinessDate: "2026-01-10"}
}

func TestWorkerSuccessPath(t *testing.T) {
	store := repository.NewMemoryArtifactStore(time.Hour)
	prices := newFakePriceStore()
	_ = prices.Upsert(context.Background(), window("D05.SI", "2026-01-09", "2026-01-10"))
	gen := &fakeGenerator{payload: "daily analysis"}
	notifier := &fakeNotifier{}

	w := testWorker(store, prices, gen, notifier)
	outcome, err := w.Process(context.Background(), job("DBS19"))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if outcome != OutcomeComputed {
		t.Fatalf("expected computed, got %s", outcome)
	}

	a, err := store.Lookup(context.Background(), "DBS19", "2026-01-10")
	if err != nil || a == nil {
		t.Fatalf("lookup after compute: %v %v", a, err)
	}
	if a.Payload != "daily analysis" {
		t.Fatalf("payload mismatch: %q", a.Payload)
	}
	if len(notifier.events) != 1 || notifier.events[0].Ticker != "DBS19" {
		t.Fatalf("expected one report ready event, got %+v", notifier.events)
	}
}

func TestWorkerSkipsLostReservation(t *testing.T) {
	store := repository.NewMemoryArtifactStore(time.Hour)
	prices := newFakePriceStore()
	_ = prices.Upsert(context.Background(), window("D05.SI", "2026-01-10"))
	gen := &fakeGenerator{payload: "x"}

	// Someone else holds the reservation.
	if ok, _ := store.Reserve(context.Background(), "DBS19", "2026-01-10"); !ok {
		t.Fatalf("setup reserve failed")
	}

	w := testWorker(store, prices, gen, nil)
	outcome, err := w.Process(context.Background(), job("DBS19"))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if outcome != OutcomeSkipped {
		t.Fatalf("expected skipped, got %s", outcome)
	}
	if gen.calls != 0 {
		t.Fatalf("skipped job must not generate")
	}
	// The foreign reservation is untouched.
	st, _ := store.Status(context.Background(), "DBS19", "2026-01-10")
	if st == nil || st.Status != models.StatusPending {
		t.Fatalf("reservation must survive a skip: %+v", st)
	}
}

func TestWorkerConcurrentDuplicates(t *testing.T) {
	store := repository.NewMemoryArtifactStore(time.Hour)
	prices := newFakePriceStore()
	_ = prices.Upsert(context.Background(), window("D05.SI", "2026-01-10"))
	gen := &fakeGenerator{payload: "x"}
	w := testWorker(store, prices, gen, nil)

	const n = 8
	var wg sync.WaitGroup
	outcomes := make(chan WorkerOutcome, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o, err := w.Process(context.Background(), job("DBS19"))
			if err != nil {
				t.Errorf("process: %v", err)
				return
			}
			outcomes <- o
		}()
	}
	wg.Wait()
	close(outcomes)

	computed := 0
	for o := range outcomes {
		if o == OutcomeComputed {
			computed++
		}
	}
	if computed != 1 {
		t.Fatalf("exactly one invocation must compute, got %d", computed)
	}
	if gen.calls != 1 {
		t.Fatalf("generator must run once, ran %d times", gen.calls)
	}
}

func TestWorkerUnresolvedSymbolFails(t *testing.T) {
	store := repository.NewMemoryArtifactStore(time.Hour)
	w := testWorker(store, newFakePriceStore(), &fakeGenerator{payload: "x"}, nil)

	outcome, err := w.Process(context.Background(), job("XYZ1"))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if outcome != OutcomeFailed {
		t.Fatalf("expected failed, got %s", outcome)
	}

	st, _ := store.Status(context.Background(), "XYZ1", "2026-01-10")
	if st == nil || st.Status != models.StatusFailed {
		t.Fatalf("row must be terminal failed: %+v", st)
	}
	if !strings.Contains(st.Reason, "unresolved symbol") {
		t.Fatalf("reason must carry the resolution failure: %q", st.Reason)
	}
}

func TestWorkerNoDataFails(t *testing.T) {
	store := repository.NewMemoryArtifactStore(time.Hour)
	w := testWorker(store, newFakePriceStore(), &fakeGenerator{payload: "x"}, nil)

	outcome, _ := w.Process(context.Background(), job("DBS19"))
	if outcome != OutcomeFailed {
		t.Fatalf("expected failed, got %s", outcome)
	}
	st, _ := store.Status(context.Background(), "DBS19", "2026-01-10")
	if st == nil || st.Status != models.StatusFailed || st.Reason != "no raw data" {
		t.Fatalf("expected failed(no raw data): %+v", st)
	}
	// Readers still see a plain miss.
	if a, err := store.Lookup(context.Background(), "DBS19", "2026-01-10"); err != nil || a != nil {
		t.Fatalf("failed row must read as miss: %v %v", a, err)
	}
}

func TestWorkerGeneratorErrorFails(t *testing.T) {
	store := repository.NewMemoryArtifactStore(time.Hour)
	prices := newFakePriceStore()
	_ = prices.Upsert(context.Background(), window("D05.SI", "2026-01-10"))
	gen := &fakeGenerator{err: context.DeadlineExceeded}

	w := testWorker(store, prices, gen, nil)
	outcome, _ := w.Process(context.Background(), job("DBS19"))
	if outcome != OutcomeFailed {
		t.Fatalf("expected failed, got %s", outcome)
	}
	st, _ := store.Status(context.Background(), "DBS19", "2026-01-10")
	if st == nil || st.Status != models.StatusFailed {
		t.Fatalf("generator error must terminate the row: %+v", st)
	}
}

func TestWorkerPanicTerminatesRow(t *testing.T) {
	store := repository.NewMemoryArtifactStore(time.Hour)
	prices := newFakePriceStore()
	_ = prices.Upsert(context.Background(), window("D05.SI", "2026-01-10"))
	gen := &fakeGenerator{panics: true}

	w := testWorker(store, prices, gen, nil)
	outcome, err := w.Process(context.Background(), job("DBS19"))
	if outcome != OutcomeFailed || err == nil {
		t.Fatalf("expected failed with error, got %s %v", outcome, err)
	}

	st, _ := store.Status(context.Background(), "DBS19", "2026-01-10")
	if st == nil || st.Status != models.StatusFailed {
		t.Fatalf("panic must not leave a pending row: %+v", st)
	}
	if !strings.Contains(st.Reason, "panic") {
		t.Fatalf("reason should mention the panic: %q", st.Reason)
	}
}
