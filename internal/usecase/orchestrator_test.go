package usecase

import (
	"context"
	"testing"
	"time"

	"drreport/internal/domain/models"
)

func TestRunComputesBusinessDateOnce(t *testing.T) {
	prov := newFakeProvider()
	prov.data["D05.SI"] = window("D05.SI", "2026-01-10")
	prov.data["O39.SI"] = window("O39.SI", "2026-01-10")
	store := newFakePriceStore()
	disp := &fakeDispatcher{}

	loc, err := time.LoadLocation("Asia/Singapore")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}

	f := NewFetcher(testRegistry(), prov, store, nopMetrics{}, testLogger(), 30, time.Second)
	o := NewOrchestrator(testRegistry(), f, disp, nopMetrics{}, testLogger(), loc)
	// 2026-01-10 17:30 UTC is already Jan 11 01:30 in Singapore; the run and
	// every dispatched job must carry the market-local date, not the UTC one.
	o.SetClock(func() time.Time {
		return time.Date(2026, 1, 10, 17, 30, 0, 0, time.UTC)
	})

	sum, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.BusinessDate != "2026-01-11" {
		t.Fatalf("expected market-local date 2026-01-11, got %s", sum.BusinessDate)
	}
	for _, j := range disp.jobs {
		if j.BusinessDate != sum.BusinessDate {
			t.Fatalf("job date %s diverged from run date %s", j.BusinessDate, sum.BusinessDate)
		}
		if j.Mode != models.ModeScheduled {
			t.Fatalf("scheduled run must dispatch scheduled jobs, got %s", j.Mode)
		}
	}
}

func TestRunSkipsFailedFetches(t *testing.T) {
	prov := newFakeProvider()
	prov.data["D05.SI"] = window("D05.SI", "2026-01-10")
	// OCBC39's provider call fails; XYZ1 has no provider alias.
	prov.errs["O39.SI"] = context.DeadlineExceeded
	store := newFakePriceStore()
	disp := &fakeDispatcher{}

	f := NewFetcher(testRegistry(), prov, store, nopMetrics{}, testLogger(), 30, time.Second)
	o := NewOrchestrator(testRegistry(), f, disp, nopMetrics{}, testLogger(), time.UTC)

	sum, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(sum.Dispatched) != 1 || sum.Dispatched[0] != "DBS19" {
		t.Fatalf("only the fetch-success ticker dispatches: %v", sum.Dispatched)
	}
	if len(disp.jobs) != 1 || disp.jobs[0].Ticker != "DBS19" {
		t.Fatalf("dispatcher saw wrong jobs: %+v", disp.jobs)
	}
	if sum.Fetched["OCBC39"].Status != models.FetchFailed {
		t.Fatalf("OCBC39 outcome: %+v", sum.Fetched["OCBC39"])
	}
}

func TestRunForSubset(t *testing.T) {
	prov := newFakeProvider()
	prov.data["O39.SI"] = window("O39.SI", "2026-01-10")
	store := newFakePriceStore()
	disp := &fakeDispatcher{}

	f := NewFetcher(testRegistry(), prov, store, nopMetrics{}, testLogger(), 30, time.Second)
	o := NewOrchestrator(testRegistry(), f, disp, nopMetrics{}, testLogger(), time.UTC)

	sum, err := o.RunFor(context.Background(), []string{"OCBC39"})
	if err != nil {
		t.Fatalf("run for: %v", err)
	}
	if len(sum.Fetched) != 1 {
		t.Fatalf("subset run must only touch requested tickers: %+v", sum.Fetched)
	}
	if len(disp.jobs) != 1 || disp.jobs[0].Ticker != "OCBC39" {
		t.Fatalf("dispatched: %+v", disp.jobs)
	}
}
