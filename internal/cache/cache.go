package cache

import (
	"context"
	"time"

	"puntoventa/backend/internal/domain"
)

type AnalyticsCache interface {
	Get(ctx context.Context, key string) (*domain.AnalyticsResponse, bool, error)
	Set(ctx context.Context, key string, value *domain.AnalyticsResponse, ttl time.Duration) error
}

type NoopAnalyticsCache struct{}

func (NoopAnalyticsCache) Get(_ context.Context, _ string) (*domain.AnalyticsResponse, bool, error) {
	return nil, false, nil
}

func (NoopAnalyticsCache) Set(_ context.Context, _ string, _ *domain.AnalyticsResponse, _ time.Duration) error {
	return nil
}
