package actors

import (
	"context"

	"github.com/google/uuid"

	"github.com/JustinTDCT/orchestrator/internal/orchestrator/domain"
)

// MediaFileStore is the read/write side actors use for MediaFile rows.
// Concrete implementation lives in internal/orchestrator/repo, grounded on
// the teacher's media_repository.go upsert-by-path pattern.
type MediaFileStore interface {
	Upsert(ctx context.Context, f domain.MediaFile) (domain.MediaFile, error)
	GetByPath(ctx context.Context, libraryID uuid.UUID, path string) (domain.MediaFile, bool, error)
	ListPathsUnder(ctx context.Context, libraryID uuid.UUID, root string) ([]string, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// ProcessingStatusStore tracks per-file pipeline progress (SPEC_FULL.md §3).
type ProcessingStatusStore interface {
	Get(ctx context.Context, mediaFileID uuid.UUID) (domain.ProcessingStatus, error)
	Upsert(ctx context.Context, s domain.ProcessingStatus) error
}

// ReferenceStore is the read/write side for Movie/Series/Season/Episode
// references, including the D1-guarded DetailsState transitions.
type ReferenceStore interface {
	UpsertMovie(ctx context.Context, m domain.MovieReference) (domain.MovieReference, error)
	UpsertSeries(ctx context.Context, s domain.SeriesReference) (domain.SeriesReference, error)
	UpsertSeason(ctx context.Context, s domain.SeasonReference) (domain.SeasonReference, error)
	UpsertEpisode(ctx context.Context, e domain.EpisodeReference) (domain.EpisodeReference, error)

	GetMovie(ctx context.Context, id uuid.UUID) (domain.MovieReference, error)
	GetMovieByMediaFile(ctx context.Context, mediaFileID uuid.UUID) (domain.MovieReference, bool, error)
	FindSeriesByTitle(ctx context.Context, libraryID uuid.UUID, title string) (domain.SeriesReference, bool, error)
	GetSeason(ctx context.Context, seriesID uuid.UUID, seasonNumber int) (domain.SeasonReference, bool, error)
	GetEpisodeByMediaFile(ctx context.Context, mediaFileID uuid.UUID) (domain.EpisodeReference, bool, error)
}

// ImageStore persists fetched image bytes under a provider-derived cache
// key, and reports whether a given key is already cached (so ImageFetch can
// skip redundant downloads).
type ImageStore interface {
	Has(ctx context.Context, cacheKey string) (bool, error)
	Put(ctx context.Context, cacheKey string, data []byte) error
}
