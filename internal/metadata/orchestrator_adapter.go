package metadata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/JustinTDCT/orchestrator/internal/models"
	"github.com/JustinTDCT/orchestrator/internal/orchestrator/actors"
	"github.com/JustinTDCT/orchestrator/internal/orchestrator/domain"
)

// ProviderAdapter implements actors.MetadataProvider over the existing
// TMDBScraper, the one concrete provider the teacher ships. The teacher's
// own CacheClient throttled with a hand-rolled time.Sleep backoff on 429s;
// this adapter uses a token-bucket rate.Limiter ahead of every call plus a
// circuit breaker around the underlying HTTP round trips, so a provider
// outage degrades the whole pipeline's throughput instead of piling up
// blocked goroutines.
type ProviderAdapter struct {
	movies  *TMDBScraper
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[any]
}

// NewProviderAdapter wraps scraper with rate limiting and breaker
// protection. tmdbRateLimit is requests/second; 4/s matches TMDB's
// documented free-tier ceiling.
func NewProviderAdapter(scraper *TMDBScraper, tmdbRateLimit rate.Limit) *ProviderAdapter {
	st := gobreaker.Settings{
		Name:        "metadata-provider",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
	return &ProviderAdapter{
		movies:  scraper,
		limiter: rate.NewLimiter(tmdbRateLimit, 1),
		breaker: gobreaker.NewCircuitBreaker[any](st),
	}
}

func (p *ProviderAdapter) call(ctx context.Context, fn func() (any, error)) (any, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return p.breaker.Execute(fn)
}

func (p *ProviderAdapter) SearchMovies(ctx context.Context, query string, year *int) ([]actors.Candidate, error) {
	res, err := p.call(ctx, func() (any, error) {
		return p.movies.Search(query, models.MediaTypeMovies, year)
	})
	if err != nil {
		return nil, classifyProviderError(err)
	}
	matches := res.([]*models.MetadataMatch)
	return candidatesFromMatches(matches), nil
}

func (p *ProviderAdapter) SearchSeries(ctx context.Context, query string, year *int, region string) ([]actors.Candidate, error) {
	res, err := p.call(ctx, func() (any, error) {
		return p.movies.Search(query, models.MediaTypeTVShows, year)
	})
	if err != nil {
		return nil, classifyProviderError(err)
	}
	matches := res.([]*models.MetadataMatch)
	out := candidatesFromMatches(matches)
	if region != "" {
		for i := range out {
			out[i].RegionOfOrigin = region
		}
	}
	return out, nil
}

func (p *ProviderAdapter) GetMovie(ctx context.Context, providerID int) (domain.Details, error) {
	res, err := p.call(ctx, func() (any, error) {
		return p.movies.GetDetails(strconv.Itoa(providerID))
	})
	if err != nil {
		return domain.Details{}, classifyProviderError(err)
	}
	return detailsFromMatch(res.(*models.MetadataMatch)), nil
}

func (p *ProviderAdapter) GetSeries(ctx context.Context, providerID int) (domain.Details, error) {
	res, err := p.call(ctx, func() (any, error) {
		return p.movies.GetTVDetails(strconv.Itoa(providerID))
	})
	if err != nil {
		return domain.Details{}, classifyProviderError(err)
	}
	return detailsFromMatch(res.(*models.MetadataMatch)), nil
}

func (p *ProviderAdapter) GetSeason(ctx context.Context, seriesProviderID, seasonNumber int) (domain.Details, error) {
	res, err := p.call(ctx, func() (any, error) {
		return p.movies.GetTVSeasonDetails(strconv.Itoa(seriesProviderID), seasonNumber)
	})
	if err != nil {
		return domain.Details{}, classifyProviderError(err)
	}
	season := res.(*TMDBSeasonResult)
	return domain.Details{
		Overview: season.Overview,
	}, nil
}

func (p *ProviderAdapter) GetEpisode(ctx context.Context, seriesProviderID, seasonNumber, episodeNumber int) (domain.Details, error) {
	res, err := p.call(ctx, func() (any, error) {
		return p.movies.GetTVSeasonDetails(strconv.Itoa(seriesProviderID), seasonNumber)
	})
	if err != nil {
		return domain.Details{}, classifyProviderError(err)
	}
	season := res.(*TMDBSeasonResult)
	for _, ep := range season.Episodes {
		if ep.EpisodeNumber != episodeNumber {
			continue
		}
		rating := ep.VoteAverage
		var releaseDate *time.Time
		if t, err := time.Parse("2006-01-02", ep.AirDate); err == nil {
			releaseDate = &t
		}
		return domain.Details{
			Overview:    ep.Overview,
			VoteAverage: rating,
			ReleaseDate: releaseDate,
		}, nil
	}
	return domain.Details{}, actors.ErrProviderNotFound{}
}

func candidatesFromMatches(matches []*models.MetadataMatch) []actors.Candidate {
	out := make([]actors.Candidate, 0, len(matches))
	for _, m := range matches {
		providerID, err := strconv.Atoi(m.ExternalID)
		if err != nil {
			continue
		}
		out = append(out, actors.Candidate{
			ProviderID: providerID,
			Title:      m.Title,
			Year:       m.Year,
			Popularity: ratingOrZero(m.Rating),
		})
	}
	return out
}

func detailsFromMatch(m *models.MetadataMatch) domain.Details {
	var releaseDate *time.Time
	if m.ReleaseDate != nil {
		if t, err := time.Parse("2006-01-02", *m.ReleaseDate); err == nil {
			releaseDate = &t
		}
	}
	var contentRating string
	if m.ContentRating != nil {
		contentRating = *m.ContentRating
	}
	var overview string
	if m.Description != nil {
		overview = *m.Description
	}
	var tagline string
	if m.Tagline != nil {
		tagline = *m.Tagline
	}
	return domain.Details{
		TMDBID:        mustAtoi(m.ExternalID),
		Overview:      overview,
		Tagline:       tagline,
		VoteAverage:   ratingOrZero(m.Rating),
		ReleaseDate:   releaseDate,
		Genres:        m.Genres,
		Keywords:      m.Keywords,
		ContentRating: contentRating,
	}
}

func ratingOrZero(r *float64) float64 {
	if r == nil {
		return 0
	}
	return *r
}

func mustAtoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// classifyProviderError maps circuit-breaker rejections (gobreaker open
// state or too many requests) to actors.ErrRateLimited; every other
// scraper-level error (plain fmt.Errorf in TMDBScraper) is returned wrapped
// with a "metadata provider" prefix, not mapped to an actors sentinel type.
func classifyProviderError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return actors.ErrRateLimited{RetryAfter: "30s"}
	}
	return fmt.Errorf("metadata provider: %w", err)
}

// CDNImageFetcher implements actors.ImageFetcher by downloading a specific
// image variant over plain HTTP, the same request shape the teacher's own
// poster-download code used, but returning bytes to the caller rather than
// writing to a local poster directory — ImageStore owns persistence here.
type CDNImageFetcher struct {
	client  *http.Client
	limiter *rate.Limiter
}

func NewCDNImageFetcher(rateLimit rate.Limit) *CDNImageFetcher {
	return &CDNImageFetcher{
		client:  &http.Client{Timeout: 15 * time.Second},
		limiter: rate.NewLimiter(rateLimit, 1),
	}
}

func (f *CDNImageFetcher) Fetch(ctx context.Context, asset domain.ImageAsset) ([]byte, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, asset.URL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, actors.ErrProviderNotFound{}
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, actors.ErrRateLimited{RetryAfter: resp.Header.Get("Retry-After")}
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("image fetch returned %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}
