package repository

import (
	"context"
	"time"

	"mediagrab/internal/domain"
)

// MediaCacheRepository persists analyze results keyed by source URL so that
// repeated analyze calls don't re-extract. It never stores task state.
type MediaCacheRepository interface {
	Init(ctx context.Context) error
	Get(ctx context.Context, url string, maxAge time.Duration) (*domain.MediaInfo, bool, error)
	Put(ctx context.Context, url string, info *domain.MediaInfo) error
	Prune(ctx context.Context, maxAge time.Duration) error
}
