package usecase

import (
	"context"
	"fmt"
	"time"

	"drreport/internal/domain/models"
	domrepo "drreport/internal/domain/repository"
	applogger "drreport/pkg/logger"
)

// Fetcher pulls daily OHLCV history for a set of canonical tickers and lands
// it in the raw price store. It never computes reports; its output type has
// nowhere to even put one.
type Fetcher struct {
	registry    domrepo.SymbolRegistry
	provider    domrepo.PriceProvider
	prices      domrepo.RawPriceStore
	metrics     domrepo.Metrics
	l           *applogger.Logger
	historyDays int
	callTimeout time.Duration
}

// NewFetcher creates a fetcher. historyDays is the trailing window requested
// from the provider on every run.
func NewFetcher(
	registry domrepo.SymbolRegistry,
	provider domrepo.PriceProvider,
	prices domrepo.RawPriceStore,
	metrics domrepo.Metrics,
	l *applogger.Logger,
	historyDays int,
	callTimeout time.Duration,
) *Fetcher {
	if historyDays <= 0 {
		historyDays = 30
	}
	if callTimeout <= 0 {
		callTimeout = 20 * time.Second
	}
	return &Fetcher{
		registry:    registry,
		provider:    provider,
		prices:      prices,
		metrics:     metrics,
		l:           l,
		historyDays: historyDays,
		callTimeout: callTimeout,
	}
}

// FetchAll runs one fetch batch for the given canonical IDs and business
// date. Per-ticker failures are recorded and the batch continues; only the
// outcome map says what happened.
func (f *Fetcher) FetchAll(ctx context.Context, canonicalIDs []string, businessDate string) models.FetchReport {
	report := make(models.FetchReport, len(canonicalIDs))
	for _, id := range canonicalIDs {
		select {
		case <-ctx.Done():
			report[id] = models.FetchOutcome{Status: models.FetchFailed, Reason: ctx.Err().Error()}
			continue
		default:
		}
		report[id] = f.fetchOne(ctx, id, businessDate)
	}
	return report
}

func (f *Fetcher) fetchOne(ctx context.Context, canonicalID, businessDate string) models.FetchOutcome {
	providerSymbol, err := f.registry.Resolve(canonicalID, models.SymbolProvider)
	if err != nil {
		f.metrics.RecordFetch(canonicalID, "unresolved")
		f.l.Warn("fetch skipped, unresolved symbol",
			applogger.String("ticker", canonicalID),
			applogger.Error(err),
		)
		return models.FetchOutcome{Status: models.FetchFailed, Reason: err.Error()}
	}

	callCtx, cancel := context.WithTimeout(ctx, f.callTimeout)
	defer cancel()

	start := time.Now()
	points, err := f.provider.FetchDaily(callCtx, providerSymbol, f.historyDays)
	f.metrics.RecordLatency("provider_fetch", time.Since(start).Seconds())
	if err != nil {
		f.metrics.RecordFetch(canonicalID, "provider_error")
		f.l.Error("fetch failed",
			applogger.String("ticker", canonicalID),
			applogger.String("provider_symbol", providerSymbol),
			applogger.Error(err),
		)
		return models.FetchOutcome{Status: models.FetchFailed, Reason: fmt.Sprintf("provider: %v", err)}
	}

	if len(points) == 0 {
		f.metrics.RecordFetch(canonicalID, "no_data")
		f.l.Warn("fetch returned no rows",
			applogger.String("ticker", canonicalID),
			applogger.String("provider_symbol", providerSymbol),
		)
		return models.FetchOutcome{Status: models.FetchFailed, Reason: models.ErrNoData.Error()}
	}

	if err := f.prices.Upsert(ctx, points); err != nil {
		f.metrics.RecordFetch(canonicalID, "store_error")
		f.l.Error("fetch store failed",
			applogger.String("ticker", canonicalID),
			applogger.String("provider_symbol", providerSymbol),
			applogger.Error(err),
		)
		return models.FetchOutcome{Status: models.FetchFailed, Reason: fmt.Sprintf("store: %v", err)}
	}

	if last := points[len(points)-1]; last.TradingDate <= businessDate {
		f.metrics.RecordLastClose(canonicalID, last.Close)
	}
	f.metrics.RecordFetch(canonicalID, "success")
	f.l.Info("fetch ok",
		applogger.String("ticker", canonicalID),
		applogger.String("provider_symbol", providerSymbol),
		applogger.String("business_date", businessDate),
		applogger.Int("rows", len(points)),
	)
	return models.FetchOutcome{Status: models.FetchSuccess, Rows: len(points)}
}
