package indices

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/JustinTDCT/orchestrator/internal/orchestrator/domain"
)

func daysAgo(d int) time.Time {
	return time.Unix(1700000000, 0).Add(-time.Duration(d) * 24 * time.Hour)
}

// mustID derives a stable, distinct uuid.UUID per small integer so ordering
// assertions can name expected positions without depending on uuid.New's
// randomness.
func mustID(n int) uuid.UUID {
	var id uuid.UUID
	id[len(id)-1] = byte(n)
	return id
}

func TestExtractMovieKeyByField(t *testing.T) {
	runtime := 120
	release := daysAgo(10)
	m := domain.MovieReference{
		Title:     "Zzz",
		CreatedAt: daysAgo(1),
		Details: domain.DetailsState{Details: &domain.Details{
			VoteAverage:   8.5,
			Popularity:    42.0,
			Runtime:       &runtime,
			ReleaseDate:   &release,
			ContentRating: "PG-13",
		}},
	}
	tech := &domain.TechnicalMetadata{Height: 1080, Bitrate: 5_000_000}

	tests := []struct {
		field domain.SortField
		check func(t *testing.T, k SortKey)
	}{
		{domain.SortTitle, func(t *testing.T, k SortKey) {
			if k.Missing || k.Str != "Zzz" {
				t.Fatalf("got %+v", k)
			}
		}},
		{domain.SortDateAdded, func(t *testing.T, k SortKey) {
			if k.Missing || !k.At.Equal(m.CreatedAt) {
				t.Fatalf("got %+v", k)
			}
		}},
		{domain.SortReleaseDate, func(t *testing.T, k SortKey) {
			if k.Missing || !k.At.Equal(release) {
				t.Fatalf("got %+v", k)
			}
		}},
		{domain.SortRating, func(t *testing.T, k SortKey) {
			if k.Missing || k.Num != 8.5 {
				t.Fatalf("got %+v", k)
			}
		}},
		{domain.SortPopularity, func(t *testing.T, k SortKey) {
			if k.Missing || k.Num != 42.0 {
				t.Fatalf("got %+v", k)
			}
		}},
		{domain.SortRuntime, func(t *testing.T, k SortKey) {
			if k.Missing || k.Num != 120 {
				t.Fatalf("got %+v", k)
			}
		}},
		{domain.SortResolution, func(t *testing.T, k SortKey) {
			if k.Missing || k.Num != 1080 {
				t.Fatalf("got %+v", k)
			}
		}},
		{domain.SortBitrate, func(t *testing.T, k SortKey) {
			if k.Missing || k.Num != 5_000_000 {
				t.Fatalf("got %+v", k)
			}
		}},
		{domain.SortContentRating, func(t *testing.T, k SortKey) {
			if k.Missing || k.Str != "PG-13" {
				t.Fatalf("got %+v", k)
			}
		}},
	}
	for _, tt := range tests {
		t.Run(string(tt.field), func(t *testing.T) {
			tt.check(t, extractMovieKey(m, tt.field, tech))
		})
	}
}

// TestExtractMovieKeyMissingWhenDetailsAbsent grounds the "missing sorts
// last" rule (S1/P5): a reference that's still an Endpoint placeholder (no
// Details materialized yet) must report Missing for every details-derived
// field rather than zero-valuing it.
func TestExtractMovieKeyMissingWhenDetailsAbsent(t *testing.T) {
	m := domain.MovieReference{Title: "Placeholder", Details: domain.DetailsState{Endpoint: "tmdb:123"}}
	for _, field := range []domain.SortField{
		domain.SortReleaseDate, domain.SortRating, domain.SortPopularity,
		domain.SortRuntime, domain.SortContentRating,
	} {
		if k := extractMovieKey(m, field, nil); !k.Missing {
			t.Errorf("field %s: expected Missing key when Details is nil, got %+v", field, k)
		}
	}
	for _, field := range []domain.SortField{domain.SortResolution, domain.SortBitrate} {
		if k := extractMovieKey(m, field, nil); !k.Missing {
			t.Errorf("field %s: expected Missing key when tech metadata is nil, got %+v", field, k)
		}
	}
}

func TestCompareKeysMissingAlwaysLast(t *testing.T) {
	present := SortKey{Str: "a"}
	missing := missingKey()
	if compareKeys(present, missing) >= 0 {
		t.Fatal("present key should sort before missing")
	}
	if compareKeys(missing, present) <= 0 {
		t.Fatal("missing key should sort after present")
	}
	if compareKeys(missing, missing) != 0 {
		t.Fatal("two missing keys should compare equal")
	}
}

// TestSortMoviesDenseOrdering exercises ascending and descending ordering
// across every input permutation of a small keyed set, with a missing key
// mixed in, verifying the missing entry stays last under both directions
// (INVARIANT S1/P5: sort positions are dense and missing sorts last).
func TestSortMoviesDenseOrdering(t *testing.T) {
	a := keyedMovie{id: mustID(1), key: SortKey{Num: 3}}
	b := keyedMovie{id: mustID(2), key: SortKey{Num: 1}}
	c := keyedMovie{id: mustID(3), key: SortKey{Num: 2}}
	missing := keyedMovie{id: mustID(4), key: missingKey()}

	asc := sortMovies([]keyedMovie{a, b, c, missing}, domain.Ascending)
	wantAsc := []int{2, 3, 1, 4}
	for i, km := range asc {
		if km.id != mustID(wantAsc[i]) {
			t.Fatalf("ascending position %d: got id for %v, want seq %d", i, km.id, wantAsc[i])
		}
	}

	desc := sortMovies([]keyedMovie{a, b, c, missing}, domain.Descending)
	wantDesc := []int{1, 3, 2, 4}
	for i, km := range desc {
		if km.id != mustID(wantDesc[i]) {
			t.Fatalf("descending position %d: got id for %v, want seq %d", i, km.id, wantDesc[i])
		}
	}
}

func TestInsertionSortKeyedIsStable(t *testing.T) {
	in := []keyedMovie{
		{id: mustID(1), key: SortKey{Num: 1}},
		{id: mustID(2), key: SortKey{Num: 1}},
		{id: mustID(3), key: SortKey{Num: 0}},
	}
	insertionSortKeyed(in, func(i, j int) bool { return in[i].key.Num < in[j].key.Num })
	if in[0].id != mustID(3) {
		t.Fatalf("expected the 0-valued entry first, got %v", in[0].id)
	}
	if in[1].id != mustID(1) || in[2].id != mustID(2) {
		t.Fatal("expected equal-keyed entries to retain their original relative order")
	}
}
