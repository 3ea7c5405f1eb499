package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/JustinTDCT/orchestrator/internal/orchestrator/domain"
	"github.com/JustinTDCT/orchestrator/internal/orchestrator/errs"
)

type ProcessingStatuses struct {
	db *sql.DB
}

func NewProcessingStatuses(db *sql.DB) *ProcessingStatuses {
	return &ProcessingStatuses{db: db}
}

func (r *ProcessingStatuses) Get(ctx context.Context, mediaFileID uuid.UUID) (domain.ProcessingStatus, error) {
	const query = `
		SELECT media_file_id, metadata_extracted, metadata_at, tmdb_matched, tmdb_matched_at,
		       images_cached, images_cached_at, file_analyzed, file_analyzed_at,
		       retry_count, next_retry_at, last_error
		FROM media_processing_status WHERE media_file_id = $1`

	var s domain.ProcessingStatus
	err := r.db.QueryRowContext(ctx, query, mediaFileID).Scan(
		&s.MediaFileID, &s.MetadataExtracted, &s.MetadataAt, &s.TMDBMatched, &s.TMDBMatchedAt,
		&s.ImagesCached, &s.ImagesCachedAt, &s.FileAnalyzed, &s.FileAnalyzedAt,
		&s.RetryCount, &s.NextRetryAt, &s.LastError)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ProcessingStatus{MediaFileID: mediaFileID}, nil
		}
		return domain.ProcessingStatus{}, errs.Transient("repo.processing_status.get", err)
	}
	return s, nil
}

func (r *ProcessingStatuses) Upsert(ctx context.Context, s domain.ProcessingStatus) error {
	const stmt = `
		INSERT INTO media_processing_status (media_file_id, metadata_extracted, metadata_at,
			tmdb_matched, tmdb_matched_at, images_cached, images_cached_at,
			file_analyzed, file_analyzed_at, retry_count, next_retry_at, last_error)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (media_file_id) DO UPDATE SET
			metadata_extracted = EXCLUDED.metadata_extracted,
			metadata_at = EXCLUDED.metadata_at,
			tmdb_matched = EXCLUDED.tmdb_matched,
			tmdb_matched_at = EXCLUDED.tmdb_matched_at,
			images_cached = EXCLUDED.images_cached,
			images_cached_at = EXCLUDED.images_cached_at,
			file_analyzed = EXCLUDED.file_analyzed,
			file_analyzed_at = EXCLUDED.file_analyzed_at,
			retry_count = EXCLUDED.retry_count,
			next_retry_at = EXCLUDED.next_retry_at,
			last_error = EXCLUDED.last_error`

	_, err := r.db.ExecContext(ctx, stmt, s.MediaFileID, s.MetadataExtracted, s.MetadataAt,
		s.TMDBMatched, s.TMDBMatchedAt, s.ImagesCached, s.ImagesCachedAt,
		s.FileAnalyzed, s.FileAnalyzedAt, s.RetryCount, s.NextRetryAt, s.LastError)
	if err != nil {
		return errs.Transient("repo.processing_status.upsert", err)
	}
	return nil
}
