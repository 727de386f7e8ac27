package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"drreport/internal/domain/models"
	domrepo "drreport/internal/domain/repository"
	pkgch "drreport/pkg/clickhouse"
	applogger "drreport/pkg/logger"
	"drreport/pkg/util"
)

const rawPricesTable = "drreport.raw_prices"

// CHPriceStore implements RawPriceStore backed by ClickHouse. The table is a
// ReplacingMergeTree keyed (provider_symbol, trading_date), so re-fetching the
// same window overwrites rather than duplicates.
type CHPriceStore struct {
	db *sql.DB
	l  *applogger.Logger
}

func NewCHPriceStore(ch *pkgch.Client) *CHPriceStore {
	return &CHPriceStore{db: ch.DB()}
}

var _ domrepo.RawPriceStore = (*CHPriceStore)(nil)

// SetLogger injects a structured logger.
func (s *CHPriceStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHPriceStore) Init(ctx context.Context) error {
	return nil // Schema init in pkg
}

func (s *CHPriceStore) Upsert(ctx context.Context, points []models.RawPricePoint) error {
	if len(points) == 0 {
		return nil
	}

	const chunkSize = 2000
	for start := 0; start < len(points); start += chunkSize {
		end := start + chunkSize
		if end > len(points) {
			end = len(points)
		}

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*8)
		for _, p := range points[start:end] {
			if p.ProviderSymbol == "" || p.TradingDate == "" {
				continue
			}
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args,
				p.ProviderSymbol,
				p.TradingDate,
				p.Open,
				p.High,
				p.Low,
				p.Close,
				p.Volume,
				time.Now(),
			)
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf("INSERT INTO %s (provider_symbol, trading_date, open, high, low, close, volume, fetched_at) VALUES %s", rawPricesTable, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("upsert raw prices: %w", err)
		}
	}
	return nil
}

// Window returns up to days rows ending at endDate, oldest first. FINAL
// collapses replaced versions so re-fetched days appear once.
func (s *CHPriceStore) Window(ctx context.Context, providerSymbol, endDate string, days int) ([]models.RawPricePoint, error) {
	start := time.Now()
	const qtpl = `
        SELECT provider_symbol, trading_date, open, high, low, close, volume
        FROM %s FINAL
        WHERE provider_symbol = ? AND trading_date <= ?
        ORDER BY trading_date DESC
        LIMIT ?
    `
	q := fmt.Sprintf(qtpl, rawPricesTable)
	rows, err := s.db.QueryContext(ctx, q, providerSymbol, endDate, days)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse price window query error",
				applogger.String("provider_symbol", providerSymbol),
				applogger.String("end_date", endDate),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("price window: %w", err)
	}
	defer rows.Close()

	tmp := make([]models.RawPricePoint, 0, days)
	for rows.Next() {
		var p models.RawPricePoint
		var td time.Time
		if err := rows.Scan(&p.ProviderSymbol, &td, &p.Open, &p.High, &p.Low, &p.Close, &p.Volume); err != nil {
			return nil, fmt.Errorf("scan price point: %w", err)
		}
		p.TradingDate = td.Format(util.BusinessDateLayout)
		tmp = append(tmp, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	// reverse to ASC
	for i, j := 0, len(tmp)-1; i < j; i, j = i+1, j-1 {
		tmp[i], tmp[j] = tmp[j], tmp[i]
	}
	if s.l != nil {
		s.l.Info("clickhouse price window ok",
			applogger.String("provider_symbol", providerSymbol),
			applogger.String("end_date", endDate),
			applogger.Int("rows", len(tmp)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return tmp, nil
}

func (s *CHPriceStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *CHPriceStore) Close() error {
	return nil // Managed by pkg
}
