package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/google/uuid"

	"github.com/JustinTDCT/orchestrator/internal/orchestrator/domain"
	"github.com/JustinTDCT/orchestrator/internal/orchestrator/errs"
)

// References implements actors.ReferenceStore across the movie/series/season/
// episode reference tables, storing DetailsState as a nullable endpoint
// string plus a nullable details JSON blob so a row's current D1 state
// (Endpoint vs Details) is visible without deserializing the JSON first.
type References struct {
	db *sql.DB
}

func NewReferences(db *sql.DB) *References {
	return &References{db: db}
}

func encodeDetails(d domain.DetailsState) (sql.NullString, sql.NullString, error) {
	var endpoint, detailsJSON sql.NullString
	if d.Endpoint != "" {
		endpoint = sql.NullString{String: d.Endpoint, Valid: true}
	}
	if d.Details != nil {
		b, err := json.Marshal(d.Details)
		if err != nil {
			return sql.NullString{}, sql.NullString{}, err
		}
		detailsJSON = sql.NullString{String: string(b), Valid: true}
	}
	return endpoint, detailsJSON, nil
}

func decodeDetails(endpoint, detailsJSON sql.NullString) (domain.DetailsState, error) {
	var d domain.DetailsState
	if endpoint.Valid {
		d.Endpoint = endpoint.String
	}
	if detailsJSON.Valid && detailsJSON.String != "" {
		var details domain.Details
		if err := json.Unmarshal([]byte(detailsJSON.String), &details); err != nil {
			return domain.DetailsState{}, err
		}
		d.Details = &details
	}
	return d, nil
}

func (r *References) UpsertMovie(ctx context.Context, m domain.MovieReference) (domain.MovieReference, error) {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	endpoint, detailsJSON, err := encodeDetails(m.Details)
	if err != nil {
		return domain.MovieReference{}, errs.InvalidInput("repo.references.upsert_movie", err)
	}

	const stmt = `
		INSERT INTO movie_references (id, library_id, media_file_id, title, year,
			details_endpoint, details_json, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,now(),now())
		ON CONFLICT (media_file_id) DO UPDATE SET
			title = EXCLUDED.title,
			year = EXCLUDED.year,
			details_endpoint = EXCLUDED.details_endpoint,
			details_json = EXCLUDED.details_json,
			updated_at = now()
		RETURNING id, created_at, updated_at`

	err = r.db.QueryRowContext(ctx, stmt, m.ID, m.LibraryID, m.MediaFileID, m.Title, m.Year,
		endpoint, detailsJSON).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return domain.MovieReference{}, errs.Transient("repo.references.upsert_movie", err)
	}
	return m, nil
}

func (r *References) UpsertSeries(ctx context.Context, s domain.SeriesReference) (domain.SeriesReference, error) {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	endpoint, detailsJSON, err := encodeDetails(s.Details)
	if err != nil {
		return domain.SeriesReference{}, errs.InvalidInput("repo.references.upsert_series", err)
	}

	const stmt = `
		INSERT INTO series_references (id, library_id, title, details_endpoint, details_json, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,now(),now())
		ON CONFLICT (library_id, title) DO UPDATE SET
			details_endpoint = EXCLUDED.details_endpoint,
			details_json = EXCLUDED.details_json,
			updated_at = now()
		RETURNING id, created_at, updated_at`

	err = r.db.QueryRowContext(ctx, stmt, s.ID, s.LibraryID, s.Title, endpoint, detailsJSON).
		Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return domain.SeriesReference{}, errs.Transient("repo.references.upsert_series", err)
	}
	return s, nil
}

func (r *References) UpsertSeason(ctx context.Context, s domain.SeasonReference) (domain.SeasonReference, error) {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	endpoint, detailsJSON, err := encodeDetails(s.Details)
	if err != nil {
		return domain.SeasonReference{}, errs.InvalidInput("repo.references.upsert_season", err)
	}

	const stmt = `
		INSERT INTO season_references (id, series_id, season_number, details_endpoint, details_json, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,now(),now())
		ON CONFLICT (series_id, season_number) DO UPDATE SET
			details_endpoint = EXCLUDED.details_endpoint,
			details_json = EXCLUDED.details_json,
			updated_at = now()
		RETURNING id, created_at, updated_at`

	err = r.db.QueryRowContext(ctx, stmt, s.ID, s.SeriesID, s.SeasonNumber, endpoint, detailsJSON).
		Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return domain.SeasonReference{}, errs.Transient("repo.references.upsert_season", err)
	}
	return s, nil
}

func (r *References) UpsertEpisode(ctx context.Context, e domain.EpisodeReference) (domain.EpisodeReference, error) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	endpoint, detailsJSON, err := encodeDetails(e.Details)
	if err != nil {
		return domain.EpisodeReference{}, errs.InvalidInput("repo.references.upsert_episode", err)
	}

	const stmt = `
		INSERT INTO episode_references (id, season_id, media_file_id, episode_number, title,
			details_endpoint, details_json, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,now(),now())
		ON CONFLICT (media_file_id) DO UPDATE SET
			episode_number = EXCLUDED.episode_number,
			title = EXCLUDED.title,
			details_endpoint = EXCLUDED.details_endpoint,
			details_json = EXCLUDED.details_json,
			updated_at = now()
		RETURNING id, created_at, updated_at`

	err = r.db.QueryRowContext(ctx, stmt, e.ID, e.SeasonID, e.MediaFileID, e.EpisodeNumber, e.Title,
		endpoint, detailsJSON).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return domain.EpisodeReference{}, errs.Transient("repo.references.upsert_episode", err)
	}
	return e, nil
}

func (r *References) GetMovie(ctx context.Context, id uuid.UUID) (domain.MovieReference, error) {
	const query = `
		SELECT id, library_id, media_file_id, title, year, details_endpoint, details_json, created_at, updated_at
		FROM movie_references WHERE id = $1`
	return r.scanMovie(r.db.QueryRowContext(ctx, query, id))
}

func (r *References) GetMovieByMediaFile(ctx context.Context, mediaFileID uuid.UUID) (domain.MovieReference, bool, error) {
	const query = `
		SELECT id, library_id, media_file_id, title, year, details_endpoint, details_json, created_at, updated_at
		FROM movie_references WHERE media_file_id = $1`
	m, err := r.scanMovie(r.db.QueryRowContext(ctx, query, mediaFileID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.MovieReference{}, false, nil
		}
		return domain.MovieReference{}, false, err
	}
	return m, true, nil
}

func (r *References) scanMovie(row *sql.Row) (domain.MovieReference, error) {
	var m domain.MovieReference
	var endpoint, detailsJSON sql.NullString
	err := row.Scan(&m.ID, &m.LibraryID, &m.MediaFileID, &m.Title, &m.Year,
		&endpoint, &detailsJSON, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.MovieReference{}, err
		}
		return domain.MovieReference{}, errs.Transient("repo.references.get_movie", err)
	}
	details, err := decodeDetails(endpoint, detailsJSON)
	if err != nil {
		return domain.MovieReference{}, errs.Fatal("repo.references.get_movie.decode", err)
	}
	m.Details = details
	return m, nil
}

func (r *References) FindSeriesByTitle(ctx context.Context, libraryID uuid.UUID, title string) (domain.SeriesReference, bool, error) {
	const query = `
		SELECT id, library_id, title, details_endpoint, details_json, created_at, updated_at
		FROM series_references WHERE library_id = $1 AND title = $2`

	var s domain.SeriesReference
	var endpoint, detailsJSON sql.NullString
	err := r.db.QueryRowContext(ctx, query, libraryID, title).Scan(
		&s.ID, &s.LibraryID, &s.Title, &endpoint, &detailsJSON, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.SeriesReference{}, false, nil
		}
		return domain.SeriesReference{}, false, errs.Transient("repo.references.find_series_by_title", err)
	}
	details, err := decodeDetails(endpoint, detailsJSON)
	if err != nil {
		return domain.SeriesReference{}, false, errs.Fatal("repo.references.find_series_by_title.decode", err)
	}
	s.Details = details
	return s, true, nil
}

func (r *References) GetSeason(ctx context.Context, seriesID uuid.UUID, seasonNumber int) (domain.SeasonReference, bool, error) {
	const query = `
		SELECT id, series_id, season_number, details_endpoint, details_json, created_at, updated_at
		FROM season_references WHERE series_id = $1 AND season_number = $2`

	var s domain.SeasonReference
	var endpoint, detailsJSON sql.NullString
	err := r.db.QueryRowContext(ctx, query, seriesID, seasonNumber).Scan(
		&s.ID, &s.SeriesID, &s.SeasonNumber, &endpoint, &detailsJSON, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.SeasonReference{}, false, nil
		}
		return domain.SeasonReference{}, false, errs.Transient("repo.references.get_season", err)
	}
	details, err := decodeDetails(endpoint, detailsJSON)
	if err != nil {
		return domain.SeasonReference{}, false, errs.Fatal("repo.references.get_season.decode", err)
	}
	s.Details = details
	return s, true, nil
}

func (r *References) GetEpisodeByMediaFile(ctx context.Context, mediaFileID uuid.UUID) (domain.EpisodeReference, bool, error) {
	const query = `
		SELECT id, season_id, media_file_id, episode_number, title, details_endpoint, details_json, created_at, updated_at
		FROM episode_references WHERE media_file_id = $1`

	var e domain.EpisodeReference
	var endpoint, detailsJSON sql.NullString
	err := r.db.QueryRowContext(ctx, query, mediaFileID).Scan(
		&e.ID, &e.SeasonID, &e.MediaFileID, &e.EpisodeNumber, &e.Title,
		&endpoint, &detailsJSON, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.EpisodeReference{}, false, nil
		}
		return domain.EpisodeReference{}, false, errs.Transient("repo.references.get_episode_by_media_file", err)
	}
	details, err := decodeDetails(endpoint, detailsJSON)
	if err != nil {
		return domain.EpisodeReference{}, false, errs.Fatal("repo.references.get_episode_by_media_file.decode", err)
	}
	e.Details = details
	return e, true, nil
}
