package actors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/JustinTDCT/orchestrator/internal/orchestrator/domain"
	"github.com/JustinTDCT/orchestrator/internal/orchestrator/errs"
)

// MetadataEnrichPayload is the JSON payload of a metadata_enrich job.
type MetadataEnrichPayload struct {
	LibraryID     uuid.UUID                `json:"library_id"`
	MediaFileID   uuid.UUID                `json:"media_file_id"`
	Title         string                   `json:"title"`
	Year          *int                     `json:"year,omitempty"`
	SeasonNumber  int                      `json:"season_number,omitempty"`
	EpisodeNumber int                      `json:"episode_number,omitempty"`
	IsEpisode     bool                     `json:"is_episode"`
	Parents       domain.ParentDescriptors `json:"parents"`
	Reason        domain.ScanReason        `json:"reason"`
}

// MetadataEnrich resolves a MediaFile against MetadataProvider and writes
// the resulting Movie/Series/Season/Episode reference, enforcing INVARIANT
// D1 (a Details-backed reference never regresses to an Endpoint
// placeholder) via DetailsState.IsUpgradeFrom.
type MetadataEnrich struct {
	References ReferenceStore
	Status     ProcessingStatusStore
	Provider   MetadataProvider
}

func NewMetadataEnrich(refs ReferenceStore, status ProcessingStatusStore, provider MetadataProvider) *MetadataEnrich {
	return &MetadataEnrich{References: refs, Status: status, Provider: provider}
}

func (a *MetadataEnrich) Execute(ctx context.Context, payload []byte, correlationID uuid.UUID) (Result, error) {
	var p MetadataEnrichPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return Result{}, errs.InvalidInput("MetadataEnrich.decode", err)
	}

	if p.IsEpisode {
		return a.enrichEpisode(ctx, p, correlationID)
	}
	return a.enrichMovie(ctx, p, correlationID)
}

func (a *MetadataEnrich) enrichMovie(ctx context.Context, p MetadataEnrichPayload, correlationID uuid.UUID) (Result, error) {
	prior, found, err := a.References.GetMovieByMediaFile(ctx, p.MediaFileID)
	if err != nil {
		return Result{}, errs.Transient("MetadataEnrich.movie.lookup", err)
	}

	candidates, err := a.Provider.SearchMovies(ctx, p.Title, p.Year)
	if err != nil {
		var rl ErrRateLimited
		if errors.As(err, &rl) {
			return Result{}, errs.Transient("MetadataEnrich.movie.search", err)
		}
		return a.fallbackMovie(ctx, p, prior, found, correlationID, err)
	}
	if len(candidates) == 0 {
		return a.fallbackMovie(ctx, p, prior, found, correlationID, ErrProviderNotFound{})
	}

	best := candidates[0]
	details, err := a.Provider.GetMovie(ctx, best.ProviderID)
	if err != nil {
		return a.fallbackMovie(ctx, p, prior, found, correlationID, err)
	}

	next := domain.MovieReference{
		ID:          uuid.New(),
		LibraryID:   p.LibraryID,
		MediaFileID: p.MediaFileID,
		Title:       p.Title,
		Year:        p.Year,
		Details:     domain.DetailsState{Details: &details},
	}
	if found {
		next.ID = prior.ID
	}
	if !next.Details.IsUpgradeFrom(prior.Details) {
		return Result{}, errs.Fatal("MetadataEnrich.movie.d1", fmt.Errorf("refusing to regress movie %s to endpoint placeholder", next.ID))
	}

	stored, err := a.References.UpsertMovie(ctx, next)
	if err != nil {
		return Result{}, errs.Transient("MetadataEnrich.movie.store", err)
	}

	res := Result{
		DomainEvents: []domain.DomainEvent{{
			Kind:          domain.EventMovieUpdated,
			LibraryID:     p.LibraryID,
			CorrelationID: correlationID,
			SubjectID:     stored.ID,
		}},
	}
	if !found {
		res.DomainEvents[0].Kind = domain.EventMovieAdded
	}
	res.Followups = append(res.Followups, imageFollowups(details.Images, p.LibraryID, correlationID)...)

	if err := a.markMetadataDone(ctx, p.MediaFileID); err != nil {
		return Result{}, err
	}
	res.Followups = append(res.Followups, domain.EnqueueRequest{
		Kind:          domain.JobIndexUpsert,
		LibraryID:     p.LibraryID,
		Priority:      domain.PriorityForScanReason(p.Reason),
		CorrelationID: correlationID,
		Payload:       IndexUpsertPayload{LibraryID: p.LibraryID, MovieID: &stored.ID},
	})
	return res, nil
}

// fallbackMovie persists a bare Endpoint placeholder when the provider has
// no usable answer, unless a prior Details-backed reference already exists
// (D1 forbids regressing it).
func (a *MetadataEnrich) fallbackMovie(ctx context.Context, p MetadataEnrichPayload, prior domain.MovieReference, found bool, correlationID uuid.UUID, cause error) (Result, error) {
	if found && prior.Details.Details != nil {
		// Already enriched; a transient provider failure on re-scan must not
		// erase existing metadata.
		return Result{}, nil
	}
	next := domain.MovieReference{
		ID:          uuid.New(),
		LibraryID:   p.LibraryID,
		MediaFileID: p.MediaFileID,
		Title:       p.Title,
		Year:        p.Year,
		Details:     domain.DetailsState{Endpoint: "unmatched:" + p.Title},
	}
	if found {
		next.ID = prior.ID
	}
	if _, err := a.References.UpsertMovie(ctx, next); err != nil {
		return Result{}, errs.Transient("MetadataEnrich.movie.fallback.store", err)
	}
	return Result{}, errs.NotFound("MetadataEnrich.movie.match", cause)
}

func (a *MetadataEnrich) enrichEpisode(ctx context.Context, p MetadataEnrichPayload, correlationID uuid.UUID) (Result, error) {
	seriesTitle := p.Title
	series, found, err := a.References.FindSeriesByTitle(ctx, p.LibraryID, seriesTitle)
	if err != nil {
		return Result{}, errs.Transient("MetadataEnrich.series.lookup", err)
	}
	if !found {
		candidates, err := a.Provider.SearchSeries(ctx, seriesTitle, p.Year, "")
		if err != nil || len(candidates) == 0 {
			series = domain.SeriesReference{
				ID:        uuid.New(),
				LibraryID: p.LibraryID,
				Title:     seriesTitle,
				Details:   domain.DetailsState{Endpoint: "unmatched:" + seriesTitle},
			}
		} else {
			details, err := a.Provider.GetSeries(ctx, candidates[0].ProviderID)
			if err != nil {
				series = domain.SeriesReference{ID: uuid.New(), LibraryID: p.LibraryID, Title: seriesTitle, Details: domain.DetailsState{Endpoint: "unmatched:" + seriesTitle}}
			} else {
				series = domain.SeriesReference{ID: uuid.New(), LibraryID: p.LibraryID, Title: seriesTitle, Details: domain.DetailsState{Details: &details}}
			}
		}
		series, err = a.References.UpsertSeries(ctx, series)
		if err != nil {
			return Result{}, errs.Transient("MetadataEnrich.series.store", err)
		}
	}

	season, seasonFound, err := a.References.GetSeason(ctx, series.ID, p.SeasonNumber)
	if err != nil {
		return Result{}, errs.Transient("MetadataEnrich.season.lookup", err)
	}
	if !seasonFound {
		season = domain.SeasonReference{
			ID:           uuid.New(),
			SeriesID:     series.ID,
			SeasonNumber: p.SeasonNumber,
			Details:      domain.DetailsState{Endpoint: fmt.Sprintf("season:%d", p.SeasonNumber)},
		}
		season, err = a.References.UpsertSeason(ctx, season)
		if err != nil {
			return Result{}, errs.Transient("MetadataEnrich.season.store", err)
		}
	}

	prior, episodeFound, err := a.References.GetEpisodeByMediaFile(ctx, p.MediaFileID)
	if err != nil {
		return Result{}, errs.Transient("MetadataEnrich.episode.lookup", err)
	}

	var details *domain.Details
	if series.Details.Details != nil {
		if d, err := a.Provider.GetEpisode(ctx, series.Details.Details.TMDBID, p.SeasonNumber, p.EpisodeNumber); err == nil {
			details = &d
		}
	}

	next := domain.EpisodeReference{
		ID:            uuid.New(),
		SeasonID:      season.ID,
		MediaFileID:   p.MediaFileID,
		EpisodeNumber: p.EpisodeNumber,
	}
	if details != nil {
		next.Details = domain.DetailsState{Details: details}
	} else {
		next.Details = domain.DetailsState{Endpoint: fmt.Sprintf("episode:%d", p.EpisodeNumber)}
	}
	if episodeFound {
		next.ID = prior.ID
		if !next.Details.IsUpgradeFrom(prior.Details) {
			return Result{}, errs.Fatal("MetadataEnrich.episode.d1", fmt.Errorf("refusing to regress episode %s", next.ID))
		}
	}

	stored, err := a.References.UpsertEpisode(ctx, next)
	if err != nil {
		return Result{}, errs.Transient("MetadataEnrich.episode.store", err)
	}

	if err := a.markMetadataDone(ctx, p.MediaFileID); err != nil {
		return Result{}, err
	}

	res := Result{
		DomainEvents: []domain.DomainEvent{{
			Kind:          domain.EventEpisodeUpdated,
			LibraryID:     p.LibraryID,
			CorrelationID: correlationID,
			SubjectID:     stored.ID,
		}},
		Followups: []domain.EnqueueRequest{{
			Kind:          domain.JobIndexUpsert,
			LibraryID:     p.LibraryID,
			Priority:      domain.PriorityForScanReason(p.Reason),
			CorrelationID: correlationID,
			Payload:       IndexUpsertPayload{LibraryID: p.LibraryID, SeriesID: &series.ID},
		}},
	}
	if details != nil {
		res.Followups = append(res.Followups, imageFollowups(details.Images, p.LibraryID, correlationID)...)
	}
	return res, nil
}

func (a *MetadataEnrich) markMetadataDone(ctx context.Context, mediaFileID uuid.UUID) error {
	status, err := a.Status.Get(ctx, mediaFileID)
	if err != nil {
		return errs.Transient("MetadataEnrich.status.get", err)
	}
	status.MediaFileID = mediaFileID
	status.MetadataExtracted = true
	status.TMDBMatched = true
	if err := a.Status.Upsert(ctx, status); err != nil {
		return errs.Transient("MetadataEnrich.status.upsert", err)
	}
	return nil
}

func imageFollowups(images []domain.ImageAsset, libraryID uuid.UUID, correlationID uuid.UUID) []domain.EnqueueRequest {
	reqs := make([]domain.EnqueueRequest, 0, len(images))
	for _, img := range images {
		reqs = append(reqs, domain.EnqueueRequest{
			Kind:          domain.JobImageFetch,
			LibraryID:     libraryID,
			Priority:      domain.PriorityLow,
			CorrelationID: correlationID,
			Payload:       ImageFetchPayload{LibraryID: libraryID, Asset: img},
		})
	}
	return reqs
}
