package cache

import (
	"context"
	"time"

	"dukapos/backend/internal/domain"
)

type AdviceCache interface {
	Get(ctx context.Context, key string) ([]domain.RestockAdvice, bool, error)
	Set(ctx context.Context, key string, value []domain.RestockAdvice, ttl time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

type NoopAdviceCache struct{}

func (NoopAdviceCache) Get(_ context.Context, _ string) ([]domain.RestockAdvice, bool, error) {
	return nil, false, nil
}

func (NoopAdviceCache) Set(_ context.Context, _ string, _ []domain.RestockAdvice, _ time.Duration) error {
	return nil
}

func (NoopAdviceCache) Invalidate(_ context.Context, _ string) error {
	return nil
}
