package repository

import (
	"context"

	"drreport/internal/domain/models"
)

// SymbolRegistry is the sole authority for symbol translation. Components
// never map canonical IDs to provider symbols on their own.
type SymbolRegistry interface {
	Resolve(canonicalID string, symbolType models.SymbolType) (string, error)
	ReverseResolve(symbolValue string, symbolType models.SymbolType) (string, error)
	ListActive() []string
	Reload(ctx context.Context) error
}

// RegistrySource loads ticker and alias rows for the registry.
type RegistrySource interface {
	LoadTickers(ctx context.Context) ([]models.Ticker, error)
	LoadAliases(ctx context.Context) ([]models.SymbolAlias, error)
}

// RawPriceStore persists daily OHLCV rows keyed by (provider_symbol, trading_date).
type RawPriceStore interface {
	Init(ctx context.Context) error // ensure tables, health checks
	Upsert(ctx context.Context, points []models.RawPricePoint) error
	Window(ctx context.Context, providerSymbol, endDate string, days int) ([]models.RawPricePoint, error)
	Health(ctx context.Context) error
	Close() error
}

// ArtifactStore is the authoritative record of report readiness per
// (canonical_id, business_date). Reserve is the pipeline's one mandatory
// atomicity contract: exactly one caller wins under concurrency.
type ArtifactStore interface {
	Reserve(ctx context.Context, canonicalID, businessDate string) (bool, error)
	MarkComputed(ctx context.Context, canonicalID, businessDate, payload string) error
	MarkFailed(ctx context.Context, canonicalID, businessDate, reason string) error

	// Lookup is the read-path contract: (nil, nil) for missing, pending and
	// failed rows alike; only computed rows are returned.
	Lookup(ctx context.Context, canonicalID, businessDate string) (*models.ReportArtifact, error)

	// Status returns the raw row including pending/failed detail, for
	// operator introspection. (nil, nil) when no row exists.
	Status(ctx context.Context, canonicalID, businessDate string) (*models.ReportArtifact, error)
}

// ArtifactArchive keeps terminal artifacts durably for audit and retention.
type ArtifactArchive interface {
	Archive(ctx context.Context, a *models.ReportArtifact) error
}

// PriceProvider fetches a trailing daily OHLCV window for a provider symbol.
type PriceProvider interface {
	FetchDaily(ctx context.Context, providerSymbol string, days int) ([]models.RawPricePoint, error)
}

// ReportGenerator produces an opaque report payload from raw market data.
// May be slow (LLM-backed); callers bound it with a context deadline.
type ReportGenerator interface {
	Generate(ctx context.Context, canonicalID, businessDate string, points []models.RawPricePoint) (string, error)
}

// Notifier announces that a report became ready.
type Notifier interface {
	ReportReady(ctx context.Context, canonicalID, businessDate string) error
}

// JobDispatcher hands report computation units to the worker tier.
type JobDispatcher interface {
	Dispatch(ctx context.Context, job *models.ReportJob) error
}

type Metrics interface {
	RecordFetch(ticker, result string)
	RecordReport(result string)
	RecordCacheLookup(outcome string)
	RecordError(kind string)
	RecordLastClose(ticker string, price float64)
	RecordLatency(op string, seconds float64)
}
