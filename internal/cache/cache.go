package cache

import (
	"context"
	"time"

	"cantina/backend/internal/domain"
)

type ReportCache interface {
	Get(ctx context.Context, key string) (*domain.BalanceReport, bool, error)
	Set(ctx context.Context, key string, value *domain.BalanceReport, ttl time.Duration) error
	Invalidate(ctx context.Context) error
}

type NoopReportCache struct{}

func (NoopReportCache) Get(_ context.Context, _ string) (*domain.BalanceReport, bool, error) {
	return nil, false, nil
}

func (NoopReportCache) Set(_ context.Context, _ string, _ *domain.BalanceReport, _ time.Duration) error {
	return nil
}

func (NoopReportCache) Invalidate(_ context.Context) error {
	return nil
}
