package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"drreport/internal/domain/models"
	domrepo "drreport/internal/domain/repository"
)

// Reservation rows are redis hashes. EXISTS-then-HSET inside one script makes
// reserve atomic under concurrent callers; the transition script allows
// pending -> terminal exactly once. The pending TTL doubles as the stuck-row
// reaper: a worker that dies after reserve leaves a key that simply expires,
// after which a fresh reserve can claim the pair again.
var (
	reserveScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return 0
end
redis.call('HSET', KEYS[1], 'status', 'pending', 'reserved_at', ARGV[1])
redis.call('PEXPIRE', KEYS[1], ARGV[2])
return 1
`)

	transitionScript = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'status')
if not cur then
  return 'missing'
end
if cur ~= 'pending' then
  return cur
end
redis.call('HSET', KEYS[1], 'status', ARGV[1], 'payload', ARGV[2], 'reason', ARGV[3], 'computed_at', ARGV[4])
redis.call('PEXPIRE', KEYS[1], ARGV[5])
return 'ok'
`)
)

// RedisArtifactStore implements ArtifactStore on redis.
type RedisArtifactStore struct {
	client     *redis.Client
	keyPrefix  string
	pendingTTL time.Duration
	retainFor  time.Duration
}

// RedisArtifactStoreOption configures RedisArtifactStore.
type RedisArtifactStoreOption func(*RedisArtifactStore)

// WithArtifactKeyPrefix sets a custom key prefix.
func WithArtifactKeyPrefix(prefix string) RedisArtifactStoreOption {
	return func(s *RedisArtifactStore) {
		s.keyPrefix = prefix
	}
}

// WithPendingTTL sets how long a pending reservation blocks re-reservation.
func WithPendingTTL(ttl time.Duration) RedisArtifactStoreOption {
	return func(s *RedisArtifactStore) {
		if ttl > 0 {
			s.pendingTTL = ttl
		}
	}
}

// WithRetainFor sets how long terminal rows stay readable.
func WithRetainFor(d time.Duration) RedisArtifactStoreOption {
	return func(s *RedisArtifactStore) {
		if d > 0 {
			s.retainFor = d
		}
	}
}

// NewRedisArtifactStore creates a redis-backed artifact store.
func NewRedisArtifactStore(client *redis.Client, opts ...RedisArtifactStoreOption) *RedisArtifactStore {
	s := &RedisArtifactStore{
		client:     client,
		keyPrefix:  "drreport:report",
		pendingTTL: 2 * time.Hour,
		retainFor:  7 * 24 * time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisArtifactStore) key(canonicalID, businessDate string) string {
	return fmt.Sprintf("%s:%s:%s", s.keyPrefix, canonicalID, businessDate)
}

func (s *RedisArtifactStore) Reserve(ctx context.Context, canonicalID, businessDate string) (bool, error) {
	res, err := reserveScript.Run(ctx, s.client,
		[]string{s.key(canonicalID, businessDate)},
		time.Now().UTC().Format(time.RFC3339),
		s.pendingTTL.Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("reserve %s/%s: %w", canonicalID, businessDate, err)
	}
	return res == 1, nil
}

func (s *RedisArtifactStore) MarkComputed(ctx context.Context, canonicalID, businessDate, payload string) error {
	return s.transition(ctx, canonicalID, businessDate, models.StatusComputed, payload, "")
}

func (s *RedisArtifactStore) MarkFailed(ctx context.Context, canonicalID, businessDate, reason string) error {
	return s.transition(ctx, canonicalID, businessDate, models.StatusFailed, "", reason)
}

func (s *RedisArtifactStore) transition(ctx context.Context, canonicalID, businessDate string, to models.ArtifactStatus, payload, reason string) error {
	res, err := transitionScript.Run(ctx, s.client,
		[]string{s.key(canonicalID, businessDate)},
		string(to),
		payload,
		reason,
		time.Now().UTC().Format(time.RFC3339),
		s.retainFor.Milliseconds(),
	).Text()
	if err != nil {
		return fmt.Errorf("transition %s/%s: %w", canonicalID, businessDate, err)
	}
	if res != "ok" {
		return fmt.Errorf("%s/%s is %s, not pending: %w", canonicalID, businessDate, res, models.ErrInvalidTransition)
	}
	return nil
}

func (s *RedisArtifactStore) Lookup(ctx context.Context, canonicalID, businessDate string) (*models.ReportArtifact, error) {
	a, err := s.read(ctx, canonicalID, businessDate)
	if err != nil {
		return nil, err
	}
	if a == nil || a.Status != models.StatusComputed {
		return nil, nil
	}
	return a, nil
}

func (s *RedisArtifactStore) Status(ctx context.Context, canonicalID, businessDate string) (*models.ReportArtifact, error) {
	return s.read(ctx, canonicalID, businessDate)
}

func (s *RedisArtifactStore) read(ctx context.Context, canonicalID, businessDate string) (*models.ReportArtifact, error) {
	fields, err := s.client.HGetAll(ctx, s.key(canonicalID, businessDate)).Result()
	if err != nil {
		return nil, fmt.Errorf("read %s/%s: %w", canonicalID, businessDate, err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	a := &models.ReportArtifact{
		CanonicalID:  canonicalID,
		BusinessDate: businessDate,
		Status:       models.ArtifactStatus(fields["status"]),
		Payload:      fields["payload"],
		Reason:       fields["reason"],
	}
	if ts, err := time.Parse(time.RFC3339, fields["reserved_at"]); err == nil {
		a.ReservedAt = ts
	}
	if ts, err := time.Parse(time.RFC3339, fields["computed_at"]); err == nil {
		a.ComputedAt = ts
	}
	return a, nil
}

var _ domrepo.ArtifactStore = (*RedisArtifactStore)(nil)
