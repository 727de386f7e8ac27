package repository

import (
	"context"
	"database/sql"
	"fmt"

	"drreport/internal/domain/models"
	domrepo "drreport/internal/domain/repository"
	pkgch "drreport/pkg/clickhouse"
)

const artifactsTable = "drreport.report_artifacts"

// CHArtifactArchive keeps a durable copy of terminal artifacts. The hot path
// (reserve/lookup) lives in redis; this table is for audit and retention.
type CHArtifactArchive struct {
	db *sql.DB
}

func NewCHArtifactArchive(ch *pkgch.Client) domrepo.ArtifactArchive {
	return &CHArtifactArchive{db: ch.DB()}
}

func (s *CHArtifactArchive) Archive(ctx context.Context, a *models.ReportArtifact) error {
	if a == nil || !a.Status.Terminal() {
		return fmt.Errorf("archive: artifact must be terminal")
	}
	q := fmt.Sprintf("INSERT INTO %s (canonical_id, business_date, status, payload, reason, reserved_at, computed_at) VALUES (?, ?, ?, ?, ?, ?, ?)", artifactsTable)
	_, err := s.db.ExecContext(ctx, q,
		a.CanonicalID,
		a.BusinessDate,
		string(a.Status),
		a.Payload,
		a.Reason,
		a.ReservedAt,
		a.ComputedAt,
	)
	if err != nil {
		return fmt.Errorf("archive artifact: %w", err)
	}
	return nil
}
