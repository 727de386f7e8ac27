package usecase

import (
	"context"
	"sync"

	"drreport/internal/domain/models"
	applogger "drreport/pkg/logger"
)

func testLogger() *applogger.Logger {
	l, err := applogger.New(&applogger.Config{Level: "disabled", Format: "json", Output: "stderr"})
	if err != nil {
		panic(err)
	}
	return l
}

// fakeProvider serves canned windows per provider symbol.
type fakeProvider struct {
	mu    sync.Mutex
	data  map[string][]models.RawPricePoint
	errs  map[string]error
	calls []string
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		data: make(map[string][]models.RawPricePoint),
		errs: make(map[string]error),
	}
}

func (p *fakeProvider) FetchDaily(ctx context.Context, providerSymbol string, days int) ([]models.RawPricePoint, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, providerSymbol)
	if err, ok := p.errs[providerSymbol]; ok {
		return nil, err
	}
	pts, ok := p.data[providerSymbol]
	if !ok || len(pts) == 0 {
		return nil, models.ErrNoData
	}
	return pts, nil
}

// fakePriceStore keeps rows keyed (provider_symbol, trading_date), matching
// the upsert semantics of the real table.
type fakePriceStore struct {
	mu        sync.Mutex
	rows      map[string]models.RawPricePoint
	upsertErr error
}

func newFakePriceStore() *fakePriceStore {
	return &fakePriceStore{rows: make(map[string]models.RawPricePoint)}
}

func (s *fakePriceStore) Init(ctx context.Context) error { return nil }

func (s *fakePriceStore) Upsert(ctx context.Context, points []models.RawPricePoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.upsertErr != nil {
		return s.upsertErr
	}
	for _, p := range points {
		s.rows[p.ProviderSymbol+"/"+p.TradingDate] = p
	}
	return nil
}

func (s *fakePriceStore) Window(ctx context.Context, providerSymbol, endDate string, days int) ([]models.RawPricePoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.RawPricePoint, 0, days)
	for _, p := range s.rows {
		if p.ProviderSymbol == providerSymbol && p.TradingDate <= endDate {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *fakePriceStore) Health(ctx context.Context) error { return nil }
func (s *fakePriceStore) Close() error                     { return nil }

func (s *fakePriceStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

// fakeGenerator returns a fixed payload or error.
type fakeGenerator struct {
	payload string
	err     error
	calls   int
	panics  bool
}

func (g *fakeGenerator) Generate(ctx context.Context, canonicalID, businessDate string, points []models.RawPricePoint) (string, error) {
	g.calls++
	if g.panics {
		panic("generator exploded")
	}
	if g.err != nil {
		return "", g.err
	}
	return g.payload, nil
}

// fakeDispatcher records dispatched jobs.
type fakeDispatcher struct {
	mu   sync.Mutex
	jobs []models.ReportJob
	err  error
}

func (d *fakeDispatcher) Dispatch(ctx context.Context, job *models.ReportJob) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.jobs = append(d.jobs, *job)
	return nil
}

// fakeNotifier records report-ready events.
type fakeNotifier struct {
	mu     sync.Mutex
	events []ReportReadyEvent
}

func (n *fakeNotifier) ReportReady(ctx context.Context, canonicalID, businessDate string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ReportReadyEvent{Ticker: canonicalID, BusinessDate: businessDate})
	return nil
}

// nopMetrics satisfies the domain Metrics interface.
type nopMetrics struct{}

func (nopMetrics) RecordFetch(ticker, result string)            {}
func (nopMetrics) RecordReport(result string)                   {}
func (nopMetrics) RecordCacheLookup(outcome string)             {}
func (nopMetrics) RecordError(kind string)                      {}
func (nopMetrics) RecordLastClose(ticker string, price float64) {}
func (nopMetrics) RecordLatency(op string, seconds float64)     {}
