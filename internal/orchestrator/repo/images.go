package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/JustinTDCT/orchestrator/internal/orchestrator/errs"
)

// Images persists fetched image bytes directly in Postgres, keyed by the
// provider-derived cache key. A production deployment would more likely
// point this at object storage, but the teacher's repositories are all
// Postgres-only and no pack example wires a blob store for images, so this
// follows the same convention rather than introducing an unexercised
// dependency.
type Images struct {
	db *sql.DB
}

func NewImages(db *sql.DB) *Images {
	return &Images{db: db}
}

func (r *Images) Has(ctx context.Context, cacheKey string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM cached_images WHERE cache_key = $1)`, cacheKey).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, errs.Transient("repo.images.has", err)
	}
	return exists, nil
}

func (r *Images) Put(ctx context.Context, cacheKey string, data []byte) error {
	const stmt = `
		INSERT INTO cached_images (cache_key, data, cached_at)
		VALUES ($1, $2, now())
		ON CONFLICT (cache_key) DO UPDATE SET data = EXCLUDED.data, cached_at = EXCLUDED.cached_at`
	if _, err := r.db.ExecContext(ctx, stmt, cacheKey, data); err != nil {
		return errs.Transient("repo.images.put", err)
	}
	return nil
}
