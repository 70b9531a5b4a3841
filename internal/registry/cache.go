package registry

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// CachedStore decorates a Store with a redis read-through cache keyed by
// account id. Only statuses are cached, with a short TTL, and never
// not-found results: a revoked account must stop clearing compliance within
// one TTL, and a freshly onboarded one must be visible immediately.
//
// Callers collect every status they need up front (the per-request snapshot),
// so a cache refresh mid-request cannot split one evaluation across two
// moments in time.
type CachedStore struct {
	next   Store
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewCachedStore(next Store, client *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedStore {
	return &CachedStore{next: next, client: client, ttl: ttl, logger: logger}
}

func (s *CachedStore) FindByAccountID(ctx context.Context, accountID string) (Account, error) {
	key := "regbridge:account-status:" + accountID

	status, err := s.client.Get(ctx, key).Result()
	if err == nil {
		return Account{AccountID: accountID, Status: Status(status)}, nil
	}
	if !errors.Is(err, redis.Nil) {
		// Cache trouble is not a lookup failure; fall through to the store.
		s.logger.WarnContext(ctx, "registry cache read failed", "error", err)
	}

	account, err := s.next.FindByAccountID(ctx, accountID)
	if err != nil {
		return Account{}, err
	}

	if err := s.client.Set(ctx, key, string(account.Status), s.ttl).Err(); err != nil {
		s.logger.WarnContext(ctx, "registry cache write failed", "error", err)
	}
	return account, nil
}

// Invalidate drops the cached status for an account, for operator tooling
// that changes statuses and wants the change visible before the TTL lapses.
func (s *CachedStore) Invalidate(ctx context.Context, accountID string) error {
	return s.client.Del(ctx, "regbridge:account-status:"+accountID).Err()
}

var _ Store = (*CachedStore)(nil)
var _ Store = (*MemoryStore)(nil)
var _ Store = (*PostgresStore)(nil)
