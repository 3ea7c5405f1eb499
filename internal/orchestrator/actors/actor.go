// Package actors implements the five Pipeline Stage Actors named in
// SPEC_FULL.md §4.5: FolderScan, MediaAnalyze, MetadataEnrich, IndexUpsert,
// and ImageFetch. Each is stateless and pure: inputs come from the job
// payload plus the read side of shared repositories; outputs are persisted
// records (via a dedicated repository) and follow-up EnqueueRequests plus
// DomainEvents, never anything else.
package actors

import (
	"context"

	"github.com/google/uuid"

	"github.com/JustinTDCT/orchestrator/internal/orchestrator/domain"
)

// Result is what every actor returns to the Dispatcher: domain events to
// publish and follow-up jobs to enqueue. The dispatcher stamps the parent's
// correlation id onto every follow-up before calling Queue.Enqueue.
type Result struct {
	DomainEvents []domain.DomainEvent
	Followups    []domain.EnqueueRequest
}

// Actor is implemented by each of the five pipeline stages.
type Actor interface {
	Execute(ctx context.Context, payload []byte, correlationID uuid.UUID) (Result, error)
}

// MetadataProvider is the external collaborator named in SPEC_FULL.md §6.4:
// the third-party metadata provider's wire protocol, out of scope here and
// consumed only through this interface.
type MetadataProvider interface {
	SearchMovies(ctx context.Context, query string, year *int) ([]Candidate, error)
	SearchSeries(ctx context.Context, query string, year *int, region string) ([]Candidate, error)
	GetMovie(ctx context.Context, providerID int) (domain.Details, error)
	GetSeries(ctx context.Context, providerID int) (domain.Details, error)
	GetSeason(ctx context.Context, seriesProviderID, seasonNumber int) (domain.Details, error)
	GetEpisode(ctx context.Context, seriesProviderID, seasonNumber, episodeNumber int) (domain.Details, error)
}

// Candidate is one search hit from MetadataProvider.
type Candidate struct {
	ProviderID     int
	Title          string
	Year           *int
	Popularity     float64
	RegionOfOrigin string
}

// FileProber is the external collaborator that extracts technical
// metadata from a media file (SPEC_FULL.md §6.4).
type FileProber interface {
	Probe(ctx context.Context, path string) (domain.TechnicalMetadata, error)
}

// ImageFetcher downloads a specific image variant from the provider's CDN.
// Kept distinct from MetadataProvider because the CDN is typically a
// separate host/rate-limit domain from the metadata API.
type ImageFetcher interface {
	Fetch(ctx context.Context, asset domain.ImageAsset) ([]byte, error)
}

// ErrRateLimited is returned by MetadataProvider/ImageFetcher implementations
// to signal a transient, retryable condition distinguishable from NotFound.
type ErrRateLimited struct{ RetryAfter string }

func (e ErrRateLimited) Error() string { return "rate limited: retry after " + e.RetryAfter }

// ErrProviderNotFound signals a definitive provider 404.
type ErrProviderNotFound struct{}

func (ErrProviderNotFound) Error() string { return "not found" }
