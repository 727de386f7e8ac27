package repository

import (
	"context"
	"database/sql"
	"fmt"

	"drreport/internal/domain/models"
	domrepo "drreport/internal/domain/repository"
	pkgch "drreport/pkg/clickhouse"
)

const (
	tickersTable = "drreport.tickers"
	aliasesTable = "drreport.symbol_aliases"
)

// CHRegistrySource loads ticker and alias rows from ClickHouse. Rows are
// maintained by the onboarding process; this side only reads.
type CHRegistrySource struct {
	db *sql.DB
}

func NewCHRegistrySource(ch *pkgch.Client) domrepo.RegistrySource {
	return &CHRegistrySource{db: ch.DB()}
}

func (s *CHRegistrySource) LoadTickers(ctx context.Context) ([]models.Ticker, error) {
	const qtpl = `
        SELECT canonical_id, display_name, active
        FROM %s FINAL
        ORDER BY canonical_id ASC
    `
	q := fmt.Sprintf(qtpl, tickersTable)
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("load tickers: %w", err)
	}
	defer rows.Close()

	out := make([]models.Ticker, 0, 64)
	for rows.Next() {
		var t models.Ticker
		var active uint8
		if err := rows.Scan(&t.CanonicalID, &t.DisplayName, &active); err != nil {
			return nil, fmt.Errorf("scan ticker: %w", err)
		}
		t.Active = active == 1
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *CHRegistrySource) LoadAliases(ctx context.Context) ([]models.SymbolAlias, error) {
	const qtpl = `
        SELECT canonical_id, symbol_value, symbol_type
        FROM %s FINAL
    `
	q := fmt.Sprintf(qtpl, aliasesTable)
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("load aliases: %w", err)
	}
	defer rows.Close()

	out := make([]models.SymbolAlias, 0, 128)
	for rows.Next() {
		var a models.SymbolAlias
		var rawType string
		if err := rows.Scan(&a.CanonicalID, &a.SymbolValue, &rawType); err != nil {
			return nil, fmt.Errorf("scan alias: %w", err)
		}
		st, ok := models.ParseSymbolType(rawType)
		if !ok {
			// Unrecognized namespaces are skipped, not guessed at.
			continue
		}
		a.SymbolType = st
		out = append(out, a)
	}
	return out, rows.Err()
}
