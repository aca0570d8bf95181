package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"mediagrab/internal/domain"
	"mediagrab/internal/repository"
)

const createMediaCacheTable = `
CREATE TABLE IF NOT EXISTS media_cache (
	url TEXT PRIMARY KEY,
	payload BLOB NOT NULL,
	fetched_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_media_cache_fetched_at ON media_cache(fetched_at);
`

type MediaCacheRepository struct {
	db *sql.DB
}

func NewMediaCacheRepository(db *sql.DB) repository.MediaCacheRepository {
	return &MediaCacheRepository{db: db}
}

func (r *MediaCacheRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createMediaCacheTable); err != nil {
		return fmt.Errorf("create media_cache table: %w", err)
	}
	return nil
}

func (r *MediaCacheRepository) Get(ctx context.Context, url string, maxAge time.Duration) (*domain.MediaInfo, bool, error) {
	var (
		payload   []byte
		fetchedAt int64
	)
	err := r.db.QueryRowContext(ctx, `
SELECT payload, fetched_at
FROM media_cache
WHERE url=?`, url).Scan(&payload, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query media cache: %w", err)
	}

	if maxAge > 0 && time.Since(time.Unix(fetchedAt, 0)) > maxAge {
		return nil, false, nil
	}

	var info domain.MediaInfo
	if err := json.Unmarshal(payload, &info); err != nil {
		return nil, false, fmt.Errorf("decode cached media info: %w", err)
	}
	return &info, true, nil
}

func (r *MediaCacheRepository) Put(ctx context.Context, url string, info *domain.MediaInfo) error {
	payload, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("encode media info: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, `
INSERT INTO media_cache (url, payload, fetched_at)
VALUES (?, ?, ?)
ON CONFLICT(url) DO UPDATE SET payload=excluded.payload, fetched_at=excluded.fetched_at`,
		url, payload, time.Now().Unix(),
	); err != nil {
		return fmt.Errorf("upsert media cache: %w", err)
	}
	return nil
}

func (r *MediaCacheRepository) Prune(ctx context.Context, maxAge time.Duration) error {
	cutoff := time.Now().Add(-maxAge).Unix()
	if _, err := r.db.ExecContext(ctx, `DELETE FROM media_cache WHERE fetched_at < ?`, cutoff); err != nil {
		return fmt.Errorf("prune media cache: %w", err)
	}
	return nil
}
