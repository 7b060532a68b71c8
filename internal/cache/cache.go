package cache

import (
	"context"
	"time"

	"warungpos/backend/internal/domain"
)

// SummaryCache holds computed financial summaries for a short TTL. The
// generation counter is bumped on every ledger commit; cache keys embed it,
// so stale entries simply stop being addressed.
type SummaryCache interface {
	Get(ctx context.Context, key string) (*domain.Summary, bool, error)
	Set(ctx context.Context, key string, value *domain.Summary, ttl time.Duration) error
	Generation(ctx context.Context) (int64, error)
	Bump(ctx context.Context) error
}

type NoopSummaryCache struct{}

func (NoopSummaryCache) Get(_ context.Context, _ string) (*domain.Summary, bool, error) {
	return nil, false, nil
}

func (NoopSummaryCache) Set(_ context.Context, _ string, _ *domain.Summary, _ time.Duration) error {
	return nil
}

func (NoopSummaryCache) Generation(_ context.Context) (int64, error) {
	return 0, nil
}

func (NoopSummaryCache) Bump(_ context.Context) error {
	return nil
}
