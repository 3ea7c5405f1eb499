package models

import (
	"time"

	"github.com/google/uuid"
)

// MediaType is the kind of content a Library holds. The orchestrator only
// ever registers Movies or TVShows libraries; the remaining values round
// out the closed set the `media_type` column actually accepts.
type MediaType string

const (
	MediaTypeMovies      MediaType = "movies"
	MediaTypeAdultMovies MediaType = "adult_movies"
	MediaTypeTVShows     MediaType = "tv_shows"
	MediaTypeMusic       MediaType = "music"
	MediaTypeMusicVideos MediaType = "music_videos"
	MediaTypeHomeVideos  MediaType = "home_videos"
	MediaTypeOtherVideos MediaType = "other_videos"
	MediaTypeImages      MediaType = "images"
	MediaTypeAudiobooks  MediaType = "audiobooks"
)

type LibraryAccess string

const (
	LibraryAccessEveryone    LibraryAccess = "everyone"
	LibraryAccessSelectUsers LibraryAccess = "select_users"
	LibraryAccessAdminOnly   LibraryAccess = "admin_only"
)

// Library is a scan root as control.Service and bootstrap.Build see it: the
// teacher's flat row shape, with multi-root/per-user concerns (permissions,
// homepage/search visibility) stripped since that's the media-browser
// client's job, not the scan-and-ingest pipeline's.
type Library struct {
	ID                uuid.UUID     `json:"id" db:"id"`
	Name              string        `json:"name" db:"name"`
	MediaType         MediaType     `json:"media_type" db:"media_type"`
	Path              string        `json:"path" db:"path"`
	IsEnabled         bool          `json:"is_enabled" db:"is_enabled"`
	ScanOnStartup     bool          `json:"scan_on_startup" db:"scan_on_startup"`
	SeasonGrouping    bool          `json:"season_grouping" db:"season_grouping"`
	AccessLevel       LibraryAccess `json:"access_level" db:"access_level"`
	IncludeInHomepage bool          `json:"include_in_homepage" db:"include_in_homepage"`
	IncludeInSearch   bool          `json:"include_in_search" db:"include_in_search"`
	RetrieveMetadata  bool          `json:"retrieve_metadata" db:"retrieve_metadata"`
	AdultContentType  *string       `json:"adult_content_type,omitempty" db:"adult_content_type"`
	ScanInterval      string        `json:"scan_interval" db:"scan_interval"`
	LastScanAt        *time.Time    `json:"last_scan_at" db:"last_scan_at"`
	CreatedAt         time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at" db:"updated_at"`
}

// MetadataMatch is a scraper's candidate result, returned by
// metadata.TMDBScraper and consumed by ProviderAdapter to build
// domain.Details.
type MetadataMatch struct {
	Source           string   `json:"source"`
	ExternalID       string   `json:"external_id"`
	Title            string   `json:"title"`
	OriginalTitle    *string  `json:"original_title,omitempty"`
	Year             *int     `json:"year,omitempty"`
	ReleaseDate      *string  `json:"release_date,omitempty"`
	Description      *string  `json:"description,omitempty"`
	Tagline          *string  `json:"tagline,omitempty"`
	PosterURL        *string  `json:"poster_url,omitempty"`
	BackdropURL      *string  `json:"backdrop_url,omitempty"`
	Rating           *float64 `json:"rating,omitempty"`
	Genres           []string `json:"genres,omitempty"`
	IMDBId           string   `json:"imdb_id,omitempty"`
	ContentRating    *string  `json:"content_rating,omitempty"`
	OriginalLanguage *string  `json:"original_language,omitempty"`
	Country          *string  `json:"country,omitempty"`
	TrailerURL       *string  `json:"trailer_url,omitempty"`
	CollectionID     *int     `json:"collection_id,omitempty"`
	CollectionName   *string  `json:"collection_name,omitempty"`
	Keywords         []string `json:"keywords,omitempty"`
	Confidence       float64  `json:"confidence"`
}
