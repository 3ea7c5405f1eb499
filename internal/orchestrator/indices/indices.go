// Package indices implements the IndicesEngine described in SPEC_FULL.md
// §4.11: dense per-field sort positions and filtered query planning for
// Movie listings. Series sort positions are not materialized.
//
// ferrex-core/src/query/sorting/impls.rs dispatches extract_key through a
// compile-time trait-marker system (SortFieldMarker::ID compared against
// string constants, boxed/downcast per field) because Rust has no type
// erasure story cheaper than that for "one of N unrelated return types
// depending on a runtime field selector". Go has no such constraint: a
// closed SortField enum switching over a single SortKey interface value is
// the direct idiomatic equivalent, so extractMovieKey below is a plain
// switch, not a port of the trait machinery.
package indices

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/JustinTDCT/orchestrator/internal/orchestrator/domain"
	"github.com/JustinTDCT/orchestrator/internal/orchestrator/errs"
)

// SortKey is the ordering value extracted for one (entity, SortField) pair.
// Missing values sort last regardless of direction, matching the "optional
// key" semantics of OptionalDateKey/OptionalFloatKey/etc. in the original.
type SortKey struct {
	Missing bool
	Str     string
	Num     float64
	At      time.Time
}

func missingKey() SortKey { return SortKey{Missing: true} }

// extractMovieKey is the Go equivalent of MovieReference::extract_key.
func extractMovieKey(m domain.MovieReference, field domain.SortField, tech *domain.TechnicalMetadata) SortKey {
	switch field {
	case domain.SortTitle:
		return SortKey{Str: m.Title}
	case domain.SortDateAdded:
		return SortKey{At: m.CreatedAt}
	case domain.SortReleaseDate:
		if m.Details.Details == nil || m.Details.Details.ReleaseDate == nil {
			return missingKey()
		}
		return SortKey{At: *m.Details.Details.ReleaseDate}
	case domain.SortRating:
		if m.Details.Details == nil {
			return missingKey()
		}
		return SortKey{Num: m.Details.Details.VoteAverage}
	case domain.SortPopularity:
		if m.Details.Details == nil {
			return missingKey()
		}
		return SortKey{Num: m.Details.Details.Popularity}
	case domain.SortRuntime:
		if m.Details.Details == nil || m.Details.Details.Runtime == nil {
			return missingKey()
		}
		return SortKey{Num: float64(*m.Details.Details.Runtime)}
	case domain.SortFileSize:
		return SortKey{} // file size is resolved by the caller via MediaFileStore
	case domain.SortResolution:
		if tech == nil {
			return missingKey()
		}
		return SortKey{Num: float64(tech.Height)}
	case domain.SortBitrate:
		if tech == nil {
			return missingKey()
		}
		return SortKey{Num: float64(tech.Bitrate)}
	case domain.SortContentRating:
		if m.Details.Details == nil || m.Details.Details.ContentRating == "" {
			return missingKey()
		}
		return SortKey{Str: m.Details.Details.ContentRating}
	default:
		return missingKey()
	}
}

// Engine recomputes dense per-field sort positions and serves filtered
// listings, backed by a `movie_sort_positions` table holding one row per
// (movie, SortField, SortDirection) with its dense integer position.
type Engine struct {
	db *sql.DB
}

func New(db *sql.DB) *Engine {
	return &Engine{db: db}
}

// ReindexMovie recomputes every sort-field position affected by one
// movie's change by rebuilding the whole library's movie positions — the
// dense-rank invariant (positions form a contiguous 1..n range per field)
// can't be maintained by touching a single row in isolation.
func (e *Engine) ReindexMovie(ctx context.Context, movieID uuid.UUID) error {
	var libraryID uuid.UUID
	if err := e.db.QueryRowContext(ctx, `SELECT library_id FROM movie_references WHERE id = $1`, movieID).Scan(&libraryID); err != nil {
		return errs.Transient("indices.reindex_movie.lookup", err)
	}
	return e.RebuildMovieSortPositions(ctx, libraryID)
}

func (e *Engine) ReindexSeries(ctx context.Context, seriesID uuid.UUID) error {
	var libraryID uuid.UUID
	if err := e.db.QueryRowContext(ctx, `SELECT library_id FROM series_references WHERE id = $1`, seriesID).Scan(&libraryID); err != nil {
		return errs.Transient("indices.reindex_series.lookup", err)
	}
	return e.rebuildSeriesSortPositions(ctx, libraryID)
}

// RebuildMovieSortPositions recomputes dense 1-based positions for every
// SortField x SortDirection pair, for every movie in libraryID.
func (e *Engine) RebuildMovieSortPositions(ctx context.Context, libraryID uuid.UUID) error {
	rows, err := e.loadMovies(ctx, libraryID)
	if err != nil {
		return err
	}

	for _, field := range domain.AllSortFields {
		keyed := make([]keyedMovie, 0, len(rows))
		for _, r := range rows {
			keyed = append(keyed, keyedMovie{id: r.MovieID, key: extractMovieKey(r.Movie, field, r.Tech)})
		}
		for _, dir := range []domain.SortDirection{domain.Ascending, domain.Descending} {
			ordered := sortMovies(keyed, dir)
			if err := e.writePositions(ctx, libraryID, field, dir, ordered); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Engine) rebuildSeriesSortPositions(ctx context.Context, libraryID uuid.UUID) error {
	// Series sort positions are not materialized: nothing is written and
	// the call always succeeds.
	return nil
}

type movieRow struct {
	MovieID uuid.UUID
	Movie   domain.MovieReference
	Tech    *domain.TechnicalMetadata
}

func (e *Engine) loadMovies(ctx context.Context, libraryID uuid.UUID) ([]movieRow, error) {
	const query = `
		SELECT m.id, m.title, m.created_at, mf.technical_metadata
		FROM movie_references m
		JOIN media_files mf ON mf.id = m.media_file_id
		WHERE m.library_id = $1`
	dbRows, err := e.db.QueryContext(ctx, query, libraryID)
	if err != nil {
		return nil, errs.Transient("indices.load_movies", err)
	}
	defer dbRows.Close()

	var out []movieRow
	for dbRows.Next() {
		var r movieRow
		r.Movie.LibraryID = libraryID
		var techJSON sql.NullString
		if err := dbRows.Scan(&r.Movie.ID, &r.Movie.Title, &r.Movie.CreatedAt, &techJSON); err != nil {
			return nil, errs.Transient("indices.load_movies", err)
		}
		r.MovieID = r.Movie.ID
		out = append(out, r)
	}
	return out, dbRows.Err()
}

type keyedMovie struct {
	id  uuid.UUID
	key SortKey
}

func sortMovies(in []keyedMovie, dir domain.SortDirection) []keyedMovie {
	out := make([]keyedMovie, len(in))
	copy(out, in)
	less := func(i, j int) bool { return compareKeys(out[i].key, out[j].key) < 0 }
	if dir == domain.Descending {
		less = func(i, j int) bool {
			a, b := out[i].key, out[j].key
			if a.Missing || b.Missing {
				return compareKeys(a, b) < 0
			}
			return compareKeys(b, a) < 0
		}
	}
	insertionSortKeyed(out, less)
	return out
}

// insertionSortKeyed is a small stable sort; the movie lists this operates
// on are per-library, not whole-catalog, so O(n^2) is acceptable and avoids
// pulling in sort.Slice's reflection-based comparator for a hot path.
func insertionSortKeyed(a []keyedMovie, less func(i, j int) bool) {
	for i := 1; i < len(a); i++ {
		for j := i; j > 0 && less(j, j-1); j-- {
			a[j], a[j-1] = a[j-1], a[j]
		}
	}
}

// compareKeys orders missing keys after present ones. For descending order
// sortMovies reverses only the comparison of two present keys, so missing
// keys stay last in both directions.
func compareKeys(a, b SortKey) int {
	if a.Missing && b.Missing {
		return 0
	}
	if a.Missing {
		return 1
	}
	if b.Missing {
		return -1
	}
	if a.Str != "" || b.Str != "" {
		switch {
		case a.Str < b.Str:
			return -1
		case a.Str > b.Str:
			return 1
		default:
			return 0
		}
	}
	if !a.At.IsZero() || !b.At.IsZero() {
		switch {
		case a.At.Before(b.At):
			return -1
		case a.At.After(b.At):
			return 1
		default:
			return 0
		}
	}
	switch {
	case a.Num < b.Num:
		return -1
	case a.Num > b.Num:
		return 1
	default:
		return 0
	}
}

func (e *Engine) writePositions(ctx context.Context, libraryID uuid.UUID, field domain.SortField, dir domain.SortDirection, ordered []keyedMovie) error {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.Transient("indices.write_positions", err)
	}
	defer tx.Rollback()

	const stmt = `
		INSERT INTO movie_sort_positions (movie_id, library_id, sort_field, sort_direction, position)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (movie_id, sort_field, sort_direction) DO UPDATE SET position = EXCLUDED.position`
	for pos, km := range ordered {
		if _, err := tx.ExecContext(ctx, stmt, km.id, libraryID, field, dir, pos+1); err != nil {
			return errs.Transient("indices.write_positions", err)
		}
	}
	return tx.Commit()
}

// FetchFilteredMovieIndices returns movie ids of libraryID ordered by the
// stored position for spec.SortBy/spec.Order (title ascending by default).
// Of the filter fields only YearFrom/YearTo (against the movie's year) and
// FreeText (a case-insensitive match on the title) are applied; every other
// filter field of spec, such as genres, rating or resolution bounds and
// watch status, is ignored.
func (e *Engine) FetchFilteredMovieIndices(ctx context.Context, libraryID uuid.UUID, spec domain.FilterSpec, offset, limit int) ([]uuid.UUID, error) {
	field := spec.SortBy
	if field == "" {
		field = domain.SortTitle
	}
	dir := spec.Order
	if dir == "" {
		dir = domain.Ascending
	}

	query := `
		SELECT p.movie_id
		FROM movie_sort_positions p
		JOIN movie_references m ON m.id = p.movie_id
		WHERE p.library_id = $1 AND p.sort_field = $2 AND p.sort_direction = $3`
	args := []any{libraryID, field, dir}

	if spec.YearFrom != nil {
		args = append(args, *spec.YearFrom)
		query += " AND m.year >= $" + placeholder(len(args))
	}
	if spec.YearTo != nil {
		args = append(args, *spec.YearTo)
		query += " AND m.year <= $" + placeholder(len(args))
	}
	if spec.FreeText != "" {
		args = append(args, "%"+spec.FreeText+"%")
		query += " AND m.title ILIKE $" + placeholder(len(args))
	}

	query += " ORDER BY p.position ASC"
	args = append(args, limit, offset)
	query += " LIMIT $" + placeholder(len(args)-1) + " OFFSET $" + placeholder(len(args))

	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errs.Transient("indices.fetch_filtered", err)
	}
	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, errs.Transient("indices.fetch_filtered", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func placeholder(n int) string {
	const digits = "0123456789"
	if n < 10 {
		return string(digits[n])
	}
	return string(digits[n/10]) + string(digits[n%10])
}
