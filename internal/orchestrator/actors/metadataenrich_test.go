package actors

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"

	"github.com/JustinTDCT/orchestrator/internal/orchestrator/domain"
	"github.com/JustinTDCT/orchestrator/internal/orchestrator/errs"
)

type fakeReferenceStore struct {
	movies       map[uuid.UUID]domain.MovieReference
	moviesByFile map[uuid.UUID]uuid.UUID
	series       map[string]domain.SeriesReference
	seasons      map[uuid.UUID]domain.SeasonReference
	episodes     map[uuid.UUID]domain.EpisodeReference
}

func newFakeReferenceStore() *fakeReferenceStore {
	return &fakeReferenceStore{
		movies:       make(map[uuid.UUID]domain.MovieReference),
		moviesByFile: make(map[uuid.UUID]uuid.UUID),
		series:       make(map[string]domain.SeriesReference),
		seasons:      make(map[uuid.UUID]domain.SeasonReference),
		episodes:     make(map[uuid.UUID]domain.EpisodeReference),
	}
}

func (f *fakeReferenceStore) UpsertMovie(_ context.Context, m domain.MovieReference) (domain.MovieReference, error) {
	f.movies[m.ID] = m
	f.moviesByFile[m.MediaFileID] = m.ID
	return m, nil
}

func (f *fakeReferenceStore) UpsertSeries(_ context.Context, s domain.SeriesReference) (domain.SeriesReference, error) {
	f.series[s.Title] = s
	return s, nil
}

func (f *fakeReferenceStore) UpsertSeason(_ context.Context, s domain.SeasonReference) (domain.SeasonReference, error) {
	f.seasons[s.ID] = s
	return s, nil
}

func (f *fakeReferenceStore) UpsertEpisode(_ context.Context, e domain.EpisodeReference) (domain.EpisodeReference, error) {
	f.episodes[e.ID] = e
	return e, nil
}

func (f *fakeReferenceStore) GetMovie(_ context.Context, id uuid.UUID) (domain.MovieReference, error) {
	return f.movies[id], nil
}

func (f *fakeReferenceStore) GetMovieByMediaFile(_ context.Context, mediaFileID uuid.UUID) (domain.MovieReference, bool, error) {
	id, ok := f.moviesByFile[mediaFileID]
	if !ok {
		return domain.MovieReference{}, false, nil
	}
	return f.movies[id], true, nil
}

func (f *fakeReferenceStore) FindSeriesByTitle(_ context.Context, _ uuid.UUID, title string) (domain.SeriesReference, bool, error) {
	s, ok := f.series[title]
	return s, ok, nil
}

func (f *fakeReferenceStore) GetSeason(_ context.Context, seriesID uuid.UUID, seasonNumber int) (domain.SeasonReference, bool, error) {
	for _, s := range f.seasons {
		if s.SeriesID == seriesID && s.SeasonNumber == seasonNumber {
			return s, true, nil
		}
	}
	return domain.SeasonReference{}, false, nil
}

func (f *fakeReferenceStore) GetEpisodeByMediaFile(_ context.Context, mediaFileID uuid.UUID) (domain.EpisodeReference, bool, error) {
	for _, e := range f.episodes {
		if e.MediaFileID == mediaFileID {
			return e, true, nil
		}
	}
	return domain.EpisodeReference{}, false, nil
}

type fakeStatusStore struct {
	byFile map[uuid.UUID]domain.ProcessingStatus
}

func newFakeStatusStore() *fakeStatusStore {
	return &fakeStatusStore{byFile: make(map[uuid.UUID]domain.ProcessingStatus)}
}

func (f *fakeStatusStore) Get(_ context.Context, mediaFileID uuid.UUID) (domain.ProcessingStatus, error) {
	return f.byFile[mediaFileID], nil
}

func (f *fakeStatusStore) Upsert(_ context.Context, s domain.ProcessingStatus) error {
	f.byFile[s.MediaFileID] = s
	return nil
}

type fakeMetadataProvider struct {
	movieCandidates []Candidate
	movieDetails    map[int]domain.Details
	searchErr       error
	getErr          error
}

func (f *fakeMetadataProvider) SearchMovies(_ context.Context, _ string, _ *int) ([]Candidate, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.movieCandidates, nil
}
func (f *fakeMetadataProvider) SearchSeries(_ context.Context, _ string, _ *int, _ string) ([]Candidate, error) {
	return nil, nil
}
func (f *fakeMetadataProvider) GetMovie(_ context.Context, providerID int) (domain.Details, error) {
	if f.getErr != nil {
		return domain.Details{}, f.getErr
	}
	return f.movieDetails[providerID], nil
}
func (f *fakeMetadataProvider) GetSeries(_ context.Context, _ int) (domain.Details, error) {
	return domain.Details{}, ErrProviderNotFound{}
}
func (f *fakeMetadataProvider) GetSeason(_ context.Context, _, _ int) (domain.Details, error) {
	return domain.Details{}, ErrProviderNotFound{}
}
func (f *fakeMetadataProvider) GetEpisode(_ context.Context, _, _, _ int) (domain.Details, error) {
	return domain.Details{}, ErrProviderNotFound{}
}

func enrichPayload(t *testing.T, p MetadataEnrichPayload) []byte {
	t.Helper()
	b, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

func TestMetadataEnrichMovieNewMatchAddsReference(t *testing.T) {
	refs := newFakeReferenceStore()
	status := newFakeStatusStore()
	provider := &fakeMetadataProvider{
		movieCandidates: []Candidate{{ProviderID: 7, Title: "Arrival"}},
		movieDetails:    map[int]domain.Details{7: {TMDBID: 7, VoteAverage: 8}},
	}
	a := NewMetadataEnrich(refs, status, provider)
	mediaFileID := uuid.New()

	res, err := a.Execute(context.Background(), enrichPayload(t, MetadataEnrichPayload{
		MediaFileID: mediaFileID, Title: "Arrival",
	}), uuid.New())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(res.DomainEvents) != 1 || res.DomainEvents[0].Kind != domain.EventMovieAdded {
		t.Fatalf("expected a single movie_added event, got %+v", res.DomainEvents)
	}
	stored, found, _ := refs.GetMovieByMediaFile(context.Background(), mediaFileID)
	if !found || stored.Details.Details == nil {
		t.Fatal("expected a Details-backed movie reference to be stored")
	}
	if !status.byFile[mediaFileID].MetadataExtracted {
		t.Fatal("expected processing status to be marked MetadataExtracted")
	}
}

// TestMetadataEnrichMovieNoCandidatesFallsBackToEndpoint grounds the
// no-match fallback path: an unmatched movie is stored as an Endpoint
// placeholder and the actor reports a NotFound error.
func TestMetadataEnrichMovieNoCandidatesFallsBackToEndpoint(t *testing.T) {
	refs := newFakeReferenceStore()
	status := newFakeStatusStore()
	provider := &fakeMetadataProvider{}
	a := NewMetadataEnrich(refs, status, provider)
	mediaFileID := uuid.New()

	_, err := a.Execute(context.Background(), enrichPayload(t, MetadataEnrichPayload{
		MediaFileID: mediaFileID, Title: "Some Obscure Title",
	}), uuid.New())
	if !errs.Is(err, errs.KindNotFound) {
		t.Fatalf("expected a NotFound error, got %v", err)
	}
	stored, found, _ := refs.GetMovieByMediaFile(context.Background(), mediaFileID)
	if !found || stored.Details.Endpoint == "" || stored.Details.Details != nil {
		t.Fatalf("expected an Endpoint-only placeholder, got %+v", stored)
	}
}

// TestMetadataEnrichMovieNeverRegressesDetailsToEndpoint grounds INVARIANT D1
// (P4): once a movie has Details, a later re-scan whose provider lookup
// finds no candidates must leave the existing Details-backed reference untouched rather than
// regressing it to an Endpoint placeholder.
func TestMetadataEnrichMovieNeverRegressesDetailsToEndpoint(t *testing.T) {
	refs := newFakeReferenceStore()
	status := newFakeStatusStore()
	mediaFileID := uuid.New()
	existingID := uuid.New()
	refs.movies[existingID] = domain.MovieReference{
		ID: existingID, MediaFileID: mediaFileID, Title: "Arrival",
		Details: domain.DetailsState{Details: &domain.Details{TMDBID: 7}},
	}
	refs.moviesByFile[mediaFileID] = existingID

	provider := &fakeMetadataProvider{} // no candidates this time around
	a := NewMetadataEnrich(refs, status, provider)

	res, err := a.Execute(context.Background(), enrichPayload(t, MetadataEnrichPayload{
		MediaFileID: mediaFileID, Title: "Arrival",
	}), uuid.New())
	if err != nil {
		t.Fatalf("expected no error on a benign re-scan miss, got %v", err)
	}
	if len(res.DomainEvents) != 0 || len(res.Followups) != 0 {
		t.Fatalf("expected a no-op result, got %+v", res)
	}
	stored := refs.movies[existingID]
	if stored.Details.Details == nil || stored.Details.Details.TMDBID != 7 {
		t.Fatalf("expected the existing Details-backed reference to survive untouched, got %+v", stored)
	}
}

func TestMetadataEnrichEpisodeCreatesSeriesSeasonAndEpisode(t *testing.T) {
	refs := newFakeReferenceStore()
	status := newFakeStatusStore()
	provider := &fakeMetadataProvider{}
	a := NewMetadataEnrich(refs, status, provider)
	mediaFileID := uuid.New()

	res, err := a.Execute(context.Background(), enrichPayload(t, MetadataEnrichPayload{
		MediaFileID: mediaFileID, Title: "Some Show", IsEpisode: true,
		SeasonNumber: 1, EpisodeNumber: 3,
	}), uuid.New())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(res.DomainEvents) != 1 || res.DomainEvents[0].Kind != domain.EventEpisodeUpdated {
		t.Fatalf("expected an episode_updated event, got %+v", res.DomainEvents)
	}
	series, found, _ := refs.FindSeriesByTitle(context.Background(), uuid.Nil, "Some Show")
	if !found {
		t.Fatal("expected a series reference to be created")
	}
	ep, found, _ := refs.GetEpisodeByMediaFile(context.Background(), mediaFileID)
	if !found || ep.EpisodeNumber != 3 {
		t.Fatalf("expected episode 3 to be stored, got %+v", ep)
	}
	if _, found, _ := refs.GetSeason(context.Background(), series.ID, 1); !found {
		t.Fatal("expected season 1 to be created")
	}
}
