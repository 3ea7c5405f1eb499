package control

import (
	"testing"

	"github.com/go-playground/validator/v10"

	"github.com/JustinTDCT/orchestrator/internal/orchestrator/domain"
)

func TestIsAbsolutePath(t *testing.T) {
	cases := map[string]bool{
		"/media/movies": true,
		"media/movies":  false,
		"":               false,
		"/":              true,
	}
	for path, want := range cases {
		if got := isAbsolutePath(path); got != want {
			t.Errorf("isAbsolutePath(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestIntervalString(t *testing.T) {
	if got := intervalString(0); got != "" {
		t.Errorf("intervalString(0) = %q, want empty string", got)
	}
	if got := intervalString(-5); got != "" {
		t.Errorf("intervalString(-5) = %q, want empty string", got)
	}
	if got := intervalString(60); got != "1h0m0s" {
		t.Errorf("intervalString(60) = %q, want 1h0m0s", got)
	}
}

// TestCreateLibraryRequestValidation exercises the InvalidInput boundary
// CreateLibrary enforces before touching the database (SPEC_FULL.md §7):
// a missing name, bad type, or empty path list must all be rejected by
// validator tags alone.
func TestCreateLibraryRequestValidation(t *testing.T) {
	v := validator.New()
	tests := []struct {
		name    string
		req     CreateLibraryRequest
		wantErr bool
	}{
		{"valid movies library", CreateLibraryRequest{Name: "Movies", Type: "movies", Paths: []string{"/media/movies"}}, false},
		{"valid tv_shows library", CreateLibraryRequest{Name: "Shows", Type: "tv_shows", Paths: []string{"/media/tv"}}, false},
		{"missing name", CreateLibraryRequest{Type: "movies", Paths: []string{"/media/movies"}}, true},
		{"invalid type", CreateLibraryRequest{Name: "Movies", Type: "music", Paths: []string{"/media/movies"}}, true},
		{"empty paths", CreateLibraryRequest{Name: "Movies", Type: "movies"}, true},
		{"negative scan interval", CreateLibraryRequest{Name: "Movies", Type: "movies", Paths: []string{"/media/movies"}, ScanIntervalMinutes: -1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Struct(tt.req)
			if (err != nil) != tt.wantErr {
				t.Fatalf("validate.Struct() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFilterSpecValidation(t *testing.T) {
	v := validator.New()
	badRating := 11.0
	tests := []struct {
		name    string
		spec    domain.FilterSpec
		wantErr bool
	}{
		{"empty spec", domain.FilterSpec{}, false},
		{"valid sort field and order", domain.FilterSpec{SortBy: domain.SortRating, Order: domain.Descending}, false},
		{"rating above range", domain.FilterSpec{RatingFrom: &badRating}, true},
		{"unknown sort field", domain.FilterSpec{SortBy: "nonsense"}, true},
		{"unknown sort direction", domain.FilterSpec{Order: "sideways"}, true},
		{"negative recently watched days", domain.FilterSpec{RecentlyWatchedDays: -1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Struct(tt.spec)
			if (err != nil) != tt.wantErr {
				t.Fatalf("validate.Struct() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
