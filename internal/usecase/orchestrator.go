package usecase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"drreport/internal/domain/models"
	domrepo "drreport/internal/domain/repository"
	applogger "drreport/pkg/logger"
	"drreport/pkg/util"
)

// RunSummary records what one orchestrated run did.
type RunSummary struct {
	BusinessDate string
	Fetched      models.FetchReport
	Dispatched   []string
}

// Orchestrator sequences the two-phase pipeline: fetch everything, then fan
// out one report job per fetch-success ticker. It owns no data; the business
// date is computed exactly once here and passed explicitly everywhere, so no
// downstream component ever derives its own "today".
type Orchestrator struct {
	registry   domrepo.SymbolRegistry
	fetcher    *Fetcher
	dispatcher domrepo.JobDispatcher
	metrics    domrepo.Metrics
	l          *applogger.Logger
	loc        *time.Location
	now        func() time.Time
}

// NewOrchestrator creates an orchestrator. loc is the market's operating
// timezone, the one place calendar dates come from.
func NewOrchestrator(
	registry domrepo.SymbolRegistry,
	fetcher *Fetcher,
	dispatcher domrepo.JobDispatcher,
	metrics domrepo.Metrics,
	l *applogger.Logger,
	loc *time.Location,
) *Orchestrator {
	return &Orchestrator{
		registry:   registry,
		fetcher:    fetcher,
		dispatcher: dispatcher,
		metrics:    metrics,
		l:          l,
		loc:        loc,
		now:        time.Now,
	}
}

// SetClock overrides the time source. Test use only.
func (o *Orchestrator) SetClock(now func() time.Time) { o.now = now }

// Run executes one scheduled pipeline run over all active tickers.
func (o *Orchestrator) Run(ctx context.Context) (*RunSummary, error) {
	return o.RunFor(ctx, nil)
}

// RunFor executes one run over the given tickers, or all active tickers when
// the list is empty.
func (o *Orchestrator) RunFor(ctx context.Context, tickers []string) (*RunSummary, error) {
	businessDate := util.BusinessDate(o.now(), o.loc)

	if len(tickers) == 0 {
		tickers = o.registry.ListActive()
	} else {
		tickers = append([]string(nil), tickers...)
		sort.Strings(tickers)
	}
	if len(tickers) == 0 {
		return nil, fmt.Errorf("no active tickers to run")
	}

	o.l.Info("pipeline run started",
		applogger.String("business_date", businessDate),
		applogger.Int("tickers", len(tickers)),
	)

	start := time.Now()
	fetched := o.fetcher.FetchAll(ctx, tickers, businessDate)
	o.metrics.RecordLatency("fetch_batch", time.Since(start).Seconds())

	// Fetch is fully done before any dispatch; a ticker whose fetch failed
	// sits this run out.
	succeeded := fetched.Succeeded()
	sort.Strings(succeeded)

	dispatched := make([]string, 0, len(succeeded))
	for _, id := range succeeded {
		job := &models.ReportJob{
			Mode:         models.ModeScheduled,
			Ticker:       id,
			BusinessDate: businessDate,
		}
		if err := o.dispatcher.Dispatch(ctx, job); err != nil {
			o.metrics.RecordError("dispatch")
			o.l.Error("job dispatch failed",
				applogger.String("ticker", id),
				applogger.String("business_date", businessDate),
				applogger.Error(err),
			)
			continue
		}
		dispatched = append(dispatched, id)
	}

	o.l.Info("pipeline run finished",
		applogger.String("business_date", businessDate),
		applogger.Int("fetch_ok", len(succeeded)),
		applogger.Int("fetch_failed", len(tickers)-len(succeeded)),
		applogger.Int("dispatched", len(dispatched)),
	)

	return &RunSummary{
		BusinessDate: businessDate,
		Fetched:      fetched,
		Dispatched:   dispatched,
	}, nil
}
