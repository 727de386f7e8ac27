package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"drreport/internal/domain/models"
	"drreport/internal/service/registry"
)

func testRegistry() *registry.Registry {
	return registry.NewStatic(
		[]models.Ticker{
			{CanonicalID: "DBS19", Active: true},
			{CanonicalID: "OCBC39", Active: true},
			{CanonicalID: "XYZ1", Active: true},
		},
		[]models.SymbolAlias{
			{CanonicalID: "DBS19", SymbolValue: "D05.SI", SymbolType: models.SymbolProvider},
			{CanonicalID: "OCBC39", SymbolValue: "O39.SI", SymbolType: models.SymbolProvider},
		},
	)
}

func window(symbol string, dates ...string) []models.RawPricePoint {
	out := make([]models.RawPricePoint, 0, len(dates))
	for i, d := range dates {
		out = append(out, models.RawPricePoint{
			ProviderSymbol: symbol,
			TradingDate:    d,
			Open:           10 + float64(i),
			High:           11 + float64(i),
			Low:            9 + float64(i),
			Close:          10.5 + float64(i),
			Volume:         1000,
		})
	}
	return out
}

func TestFetchAllPartialFailureIsolation(t *testing.T) {
	prov := newFakeProvider()
	prov.data["D05.SI"] = window("D05.SI", "2026-01-09", "2026-01-10")
	prov.errs["O39.SI"] = errors.New("rate limited")
	store := newFakePriceStore()

	f := NewFetcher(testRegistry(), prov, store, nopMetrics{}, testLogger(), 30, time.Second)
	got := f.FetchAll(context.Background(), []string{"DBS19", "OCBC39", "XYZ1"}, "2026-01-10")

	if got["DBS19"].Status != models.FetchSuccess {
		t.Fatalf("DBS19 should succeed: %+v", got["DBS19"])
	}
	if got["OCBC39"].Status != models.FetchFailed || !strings.Contains(got["OCBC39"].Reason, "rate limited") {
		t.Fatalf("OCBC39 should fail with provider reason: %+v", got["OCBC39"])
	}
	// No provider alias: fails before any provider call, with no rows written.
	if got["XYZ1"].Status != models.FetchFailed {
		t.Fatalf("XYZ1 should fail: %+v", got["XYZ1"])
	}
	for _, sym := range prov.calls {
		if sym == "XYZ1" {
			t.Fatalf("canonical ID must never reach the provider")
		}
	}
	if store.count() != 2 {
		t.Fatalf("expected 2 raw rows, got %d", store.count())
	}
}

// emptySuccessProvider answers some symbols with a zero-row success, the
// shape a provider response degrades to when every candle is discarded
// client-side.
type emptySuccessProvider struct {
	inner *fakeProvider
	empty map[string]bool
}

func (p *emptySuccessProvider) FetchDaily(ctx context.Context, providerSymbol string, days int) ([]models.RawPricePoint, error) {
	if p.empty[providerSymbol] {
		return []models.RawPricePoint{}, nil
	}
	return p.inner.FetchDaily(ctx, providerSymbol, days)
}

func TestFetchEmptySuccessFailsTickerOnly(t *testing.T) {
	inner := newFakeProvider()
	inner.data["O39.SI"] = window("O39.SI", "2026-01-09", "2026-01-10")
	prov := &emptySuccessProvider{inner: inner, empty: map[string]bool{"D05.SI": true}}
	store := newFakePriceStore()

	f := NewFetcher(testRegistry(), prov, store, nopMetrics{}, testLogger(), 30, time.Second)
	got := f.FetchAll(context.Background(), []string{"DBS19", "OCBC39"}, "2026-01-10")

	if got["DBS19"].Status != models.FetchFailed {
		t.Fatalf("zero-row fetch must fail the ticker: %+v", got["DBS19"])
	}
	if !strings.Contains(got["DBS19"].Reason, models.ErrNoData.Error()) {
		t.Fatalf("reason should carry the no-data cause: %q", got["DBS19"].Reason)
	}
	// The rest of the batch continues.
	if got["OCBC39"].Status != models.FetchSuccess {
		t.Fatalf("OCBC39 should succeed: %+v", got["OCBC39"])
	}
	if store.count() != 2 {
		t.Fatalf("only OCBC39 rows should be stored, got %d", store.count())
	}
}

func TestFetchIdempotent(t *testing.T) {
	prov := newFakeProvider()
	prov.data["D05.SI"] = window("D05.SI", "2026-01-09", "2026-01-10")
	store := newFakePriceStore()

	f := NewFetcher(testRegistry(), prov, store, nopMetrics{}, testLogger(), 30, time.Second)
	ids := []string{"DBS19"}

	f.FetchAll(context.Background(), ids, "2026-01-10")
	// Second run returns revised values for the same dates.
	prov.data["D05.SI"] = window("D05.SI", "2026-01-09", "2026-01-10")
	prov.data["D05.SI"][1].Close = 99
	f.FetchAll(context.Background(), ids, "2026-01-10")

	if store.count() != 2 {
		t.Fatalf("re-fetch must overwrite, not duplicate: %d rows", store.count())
	}
	pts, _ := store.Window(context.Background(), "D05.SI", "2026-01-10", 30)
	for _, p := range pts {
		if p.TradingDate == "2026-01-10" && p.Close != 99 {
			t.Fatalf("second fetch must win: %+v", p)
		}
	}
}
