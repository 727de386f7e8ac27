package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"drreport/internal/domain/models"
	domrepo "drreport/internal/domain/repository"
)

// MemoryArtifactStore implements ArtifactStore with an in-process map. Same
// contract as the redis store; used for the memory backend and in tests.
type MemoryArtifactStore struct {
	mu         sync.Mutex
	rows       map[string]*models.ReportArtifact
	pendingTTL time.Duration
	now        func() time.Time
}

// NewMemoryArtifactStore creates an in-memory artifact store.
func NewMemoryArtifactStore(pendingTTL time.Duration) *MemoryArtifactStore {
	if pendingTTL <= 0 {
		pendingTTL = 2 * time.Hour
	}
	return &MemoryArtifactStore{
		rows:       make(map[string]*models.ReportArtifact),
		pendingTTL: pendingTTL,
		now:        time.Now,
	}
}

// SetClock overrides the time source. Test use only.
func (s *MemoryArtifactStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func key(canonicalID, businessDate string) string {
	return canonicalID + "/" + businessDate
}

func (s *MemoryArtifactStore) Reserve(ctx context.Context, canonicalID, businessDate string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(canonicalID, businessDate)
	if row, ok := s.rows[k]; ok {
		// A pending row past its TTL is reclaimable; the original holder is
		// presumed dead.
		stale := row.Status == models.StatusPending && s.now().Sub(row.ReservedAt) > s.pendingTTL
		if !stale {
			return false, nil
		}
	}

	s.rows[k] = &models.ReportArtifact{
		CanonicalID:  canonicalID,
		BusinessDate: businessDate,
		Status:       models.StatusPending,
		ReservedAt:   s.now(),
	}
	return true, nil
}

func (s *MemoryArtifactStore) MarkComputed(ctx context.Context, canonicalID, businessDate, payload string) error {
	return s.transition(canonicalID, businessDate, models.StatusComputed, payload, "")
}

func (s *MemoryArtifactStore) MarkFailed(ctx context.Context, canonicalID, businessDate, reason string) error {
	return s.transition(canonicalID, businessDate, models.StatusFailed, "", reason)
}

func (s *MemoryArtifactStore) transition(canonicalID, businessDate string, to models.ArtifactStatus, payload, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[key(canonicalID, businessDate)]
	if !ok {
		return fmt.Errorf("%s/%s is missing, not pending: %w", canonicalID, businessDate, models.ErrInvalidTransition)
	}
	if row.Status != models.StatusPending {
		return fmt.Errorf("%s/%s is %s, not pending: %w", canonicalID, businessDate, row.Status, models.ErrInvalidTransition)
	}

	row.Status = to
	row.Payload = payload
	row.Reason = reason
	row.ComputedAt = s.now()
	return nil
}

func (s *MemoryArtifactStore) Lookup(ctx context.Context, canonicalID, businessDate string) (*models.ReportArtifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[key(canonicalID, businessDate)]
	if !ok || row.Status != models.StatusComputed {
		return nil, nil
	}
	cp := *row
	return &cp, nil
}

func (s *MemoryArtifactStore) Status(ctx context.Context, canonicalID, businessDate string) (*models.ReportArtifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[key(canonicalID, businessDate)]
	if !ok {
		return nil, nil
	}
	cp := *row
	return &cp, nil
}

var _ domrepo.ArtifactStore = (*MemoryArtifactStore)(nil)
