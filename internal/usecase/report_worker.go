package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"drreport/internal/domain/models"
	domrepo "drreport/internal/domain/repository"
	applogger "drreport/pkg/logger"
)

// WorkerOutcome says how one report computation ended.
type WorkerOutcome string

const (
	OutcomeComputed WorkerOutcome = "computed"
	OutcomeSkipped  WorkerOutcome = "skipped"
	OutcomeFailed   WorkerOutcome = "failed"
)

// ReportWorker computes one report per (canonical_id, business_date). It takes
// only the canonical ID as input and resolves the provider symbol itself;
// accepting a pre-resolved symbol here would reopen the door to computing
// against the wrong raw data.
type ReportWorker struct {
	registry  domrepo.SymbolRegistry
	store     domrepo.ArtifactStore
	prices    domrepo.RawPriceStore
	generator domrepo.ReportGenerator
	archive   domrepo.ArtifactArchive
	notifier  domrepo.Notifier
	metrics   domrepo.Metrics
	l         *applogger.Logger

	historyDays int
	genTimeout  time.Duration
}

// NewReportWorker creates a report worker. archive and notifier may be nil.
func NewReportWorker(
	registry domrepo.SymbolRegistry,
	store domrepo.ArtifactStore,
	prices domrepo.RawPriceStore,
	generator domrepo.ReportGenerator,
	archive domrepo.ArtifactArchive,
	notifier domrepo.Notifier,
	metrics domrepo.Metrics,
	l *applogger.Logger,
	historyDays int,
	genTimeout time.Duration,
) *ReportWorker {
	if historyDays <= 0 {
		historyDays = 30
	}
	if genTimeout <= 0 {
		genTimeout = 90 * time.Second
	}
	return &ReportWorker{
		registry:    registry,
		store:       store,
		prices:      prices,
		generator:   generator,
		archive:     archive,
		notifier:    notifier,
		metrics:     metrics,
		l:           l,
		historyDays: historyDays,
		genTimeout:  genTimeout,
	}
}

// Process runs one unit of work. Every path after a won reservation ends in a
// terminal status; a panic in the generator is converted to a failed row
// rather than a leaked pending one.
func (w *ReportWorker) Process(ctx context.Context, job *models.ReportJob) (outcome WorkerOutcome, err error) {
	id, date := job.Ticker, job.BusinessDate

	won, err := w.store.Reserve(ctx, id, date)
	if err != nil {
		w.metrics.RecordError("reserve")
		return OutcomeFailed, fmt.Errorf("reserve %s/%s: %w", id, date, err)
	}
	if !won {
		w.metrics.RecordReport("skipped")
		w.l.Info("report skipped, already reserved",
			applogger.String("ticker", id),
			applogger.String("business_date", date),
			applogger.String("mode", string(job.Mode)),
		)
		return OutcomeSkipped, nil
	}

	defer func() {
		if r := recover(); r != nil {
			w.failRow(id, date, fmt.Sprintf("panic: %v", r))
			outcome, err = OutcomeFailed, fmt.Errorf("report %s/%s panicked: %v", id, date, r)
		}
	}()

	providerSymbol, err := w.registry.Resolve(id, models.SymbolProvider)
	if err != nil {
		w.failRow(id, date, err.Error())
		return OutcomeFailed, nil
	}

	points, err := w.prices.Window(ctx, providerSymbol, date, w.historyDays)
	if err != nil {
		w.failRow(id, date, fmt.Sprintf("read raw: %v", err))
		return OutcomeFailed, nil
	}
	if len(points) == 0 {
		w.failRow(id, date, models.ErrNoData.Error())
		return OutcomeFailed, nil
	}

	genCtx, cancel := context.WithTimeout(ctx, w.genTimeout)
	defer cancel()

	start := time.Now()
	payload, err := w.generator.Generate(genCtx, id, date, points)
	w.metrics.RecordLatency("report_generate", time.Since(start).Seconds())
	if err != nil {
		w.failRow(id, date, fmt.Sprintf("generate: %v", err))
		return OutcomeFailed, nil
	}

	if err := w.store.MarkComputed(ctx, id, date, payload); err != nil {
		// InvalidTransition here means the state machine was violated
		// elsewhere. Surface it loudly instead of retrying.
		w.metrics.RecordError("mark_computed")
		if errors.Is(err, models.ErrInvalidTransition) {
			w.l.Error("mark computed hit invalid transition",
				applogger.String("ticker", id),
				applogger.String("business_date", date),
				applogger.Error(err),
			)
		}
		return OutcomeFailed, fmt.Errorf("mark computed %s/%s: %w", id, date, err)
	}

	w.metrics.RecordReport("computed")
	w.l.Info("report computed",
		applogger.String("ticker", id),
		applogger.String("business_date", date),
		applogger.String("mode", string(job.Mode)),
		applogger.Int("candles", len(points)),
	)

	w.archiveRow(id, date)
	if w.notifier != nil {
		if nerr := w.notifier.ReportReady(ctx, id, date); nerr != nil {
			w.metrics.RecordError("notify")
			w.l.Warn("report ready notify failed",
				applogger.String("ticker", id),
				applogger.Error(nerr),
			)
		}
	}
	return OutcomeComputed, nil
}

// failRow terminates the pending row. Detached context so a cancelled job
// context cannot leave the row pending.
func (w *ReportWorker) failRow(id, date, reason string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	w.metrics.RecordReport("failed")
	if err := w.store.MarkFailed(ctx, id, date, reason); err != nil {
		w.metrics.RecordError("mark_failed")
		w.l.Error("mark failed errored",
			applogger.String("ticker", id),
			applogger.String("business_date", date),
			applogger.String("reason", reason),
			applogger.Error(err),
		)
		return
	}
	w.l.Warn("report failed",
		applogger.String("ticker", id),
		applogger.String("business_date", date),
		applogger.String("reason", reason),
	)
	w.archiveRow(id, date)
}

func (w *ReportWorker) archiveRow(id, date string) {
	if w.archive == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	row, err := w.store.Status(ctx, id, date)
	if err != nil || row == nil || !row.Status.Terminal() {
		return
	}
	if err := w.archive.Archive(ctx, row); err != nil {
		w.metrics.RecordError("archive")
		w.l.Warn("artifact archive failed",
			applogger.String("ticker", id),
			applogger.String("business_date", date),
			applogger.Error(err),
		)
	}
}
