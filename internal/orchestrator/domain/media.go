package domain

import (
	"time"

	"github.com/google/uuid"
)

type LibraryKind string

const (
	LibraryMovies LibraryKind = "movies"
	LibrarySeries LibraryKind = "series"
)

type ScanReason string

const (
	ScanReasonUser     ScanReason = "user"
	ScanReasonPeriodic ScanReason = "periodic"
	ScanReasonWatcher  ScanReason = "watcher"
	ScanReasonForce    ScanReason = "force"
)

// PriorityForScanReason implements the rule in SPEC_FULL.md §4.7: user
// scans are High priority, everything else Low.
func PriorityForScanReason(reason ScanReason) Priority {
	if reason == ScanReasonUser {
		return PriorityHigh
	}
	return PriorityLow
}

type Library struct {
	ID            uuid.UUID
	Name          string
	Kind          LibraryKind
	Roots         []string
	Enabled       bool
	ScanInterval  time.Duration
	AllowSymlinks bool
}

// ParentDescriptors carries what a FolderScan's parent already knows about
// the subtree being scanned, per SPEC_FULL.md §4.5.1.
type ParentDescriptors struct {
	LibraryKind LibraryKind
	MovieID     *uuid.UUID
	SeriesID    *uuid.UUID
	SeasonID    *uuid.UUID
	EpisodeID   *uuid.UUID
	ExtraTag    *string
}

func (p ParentDescriptors) KnowsSubject() bool {
	return p.MovieID != nil || p.SeriesID != nil || p.SeasonID != nil || p.EpisodeID != nil || p.ExtraTag != nil
}

// MediaFingerprint detects re-scans of unchanged files: equal fingerprint
// means the file is unchanged (best-effort — when device/inode aren't
// available on both sides, e.g. network filesystems, the weak hash decides,
// and without a weak hash the file counts as changed and is re-analyzed).
type MediaFingerprint struct {
	DeviceID *uint64
	Inode    *uint64
	Size     int64
	ModTime  time.Time
	WeakHash string
}

// Equal implements the "unchanged file" predicate FolderScan uses to skip
// re-analysis (scenario 5 in SPEC_FULL.md §8).
func (f MediaFingerprint) Equal(o MediaFingerprint) bool {
	if f.Size != o.Size || !f.ModTime.Equal(o.ModTime) {
		return false
	}
	if f.DeviceID != nil && o.DeviceID != nil && f.Inode != nil && o.Inode != nil {
		return *f.DeviceID == *o.DeviceID && *f.Inode == *o.Inode
	}
	return f.WeakHash != "" && f.WeakHash == o.WeakHash
}

type TechnicalMetadata struct {
	Codec      string
	Width      int
	Height     int
	Bitrate    int64
	DurationMs int64
	HDRFormat  string
	BitDepth   int
	AudioCodec string
	AudioTracks int
	SubtitleTracks int
}

type MediaFile struct {
	ID                uuid.UUID
	LibraryID         uuid.UUID
	Path              string
	Filename          string
	Size              int64
	DiscoveredAt      time.Time
	Fingerprint       MediaFingerprint
	TechnicalMetadata *TechnicalMetadata
}

type ProcessingStatus struct {
	MediaFileID       uuid.UUID
	MetadataExtracted bool
	MetadataAt        *time.Time
	TMDBMatched       bool
	TMDBMatchedAt     *time.Time
	ImagesCached      bool
	ImagesCachedAt    *time.Time
	FileAnalyzed      bool
	FileAnalyzedAt    *time.Time
	RetryCount        int
	NextRetryAt       *time.Time
	LastError         string
}

// DetailsState is the "either-or" slot described by INVARIANT D1: a
// reference's details are either an opaque Endpoint placeholder or a fully
// materialized Details object, and Details -> Endpoint transitions are
// forbidden.
type DetailsState struct {
	Endpoint string // non-empty only when Details is nil
	Details  *Details
}

// IsUpgradeFrom reports whether the receiver is a legal next state after
// prior under D1: Endpoint -> Endpoint, Endpoint -> Details, and
// Details -> Details (re-enrichment) are allowed; Details -> Endpoint is not.
func (d DetailsState) IsUpgradeFrom(prior DetailsState) bool {
	if prior.Details != nil && d.Details == nil {
		return false
	}
	return true
}

type Details struct {
	TMDBID           int
	Overview         string
	Tagline          string
	VoteAverage      float64
	Popularity       float64
	ReleaseDate      *time.Time
	Runtime          *int
	Genres           []string
	Credits          []Credit
	ExternalIDs      map[string]string
	Images           []ImageAsset
	Keywords         []string
	Translations     map[string]string
	ContentRating    string
	RegionOfOrigin   string
}

type Credit struct {
	Name      string
	Role      string
	Character string
	Order     int
}

type ImageAssetKind string

const (
	ImagePoster   ImageAssetKind = "poster"
	ImageBackdrop ImageAssetKind = "backdrop"
	ImageLogo     ImageAssetKind = "logo"
	ImageStill    ImageAssetKind = "still"
)

type ImageAsset struct {
	Kind     ImageAssetKind
	Variant  string // e.g. provider size token such as "w500"
	URL      string
	CacheKey string // derived from (provider_id, asset_kind, variant, size)
}

type MovieReference struct {
	ID        uuid.UUID
	LibraryID uuid.UUID
	MediaFileID uuid.UUID
	Title     string
	Year      *int
	Details   DetailsState
	CreatedAt time.Time
	UpdatedAt time.Time
}

type SeriesReference struct {
	ID        uuid.UUID
	LibraryID uuid.UUID
	Title     string
	Details   DetailsState
	CreatedAt time.Time
	UpdatedAt time.Time
}

type SeasonReference struct {
	ID           uuid.UUID
	SeriesID     uuid.UUID
	SeasonNumber int
	Details      DetailsState
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type EpisodeReference struct {
	ID            uuid.UUID
	SeasonID      uuid.UUID
	MediaFileID   uuid.UUID
	EpisodeNumber int
	Title         string
	Details       DetailsState
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// SortField is the closed set of columns the IndicesEngine materializes
// dense positions for (SPEC_FULL.md §4.11).
type SortField string

const (
	SortTitle         SortField = "title"
	SortDateAdded     SortField = "date_added"
	SortReleaseDate   SortField = "release_date"
	SortRating        SortField = "rating"
	SortRuntime       SortField = "runtime"
	SortPopularity    SortField = "popularity"
	SortBitrate       SortField = "bitrate"
	SortFileSize      SortField = "file_size"
	SortResolution    SortField = "resolution"
	SortContentRating SortField = "content_rating"
	SortWatchProgress SortField = "watch_progress"
	SortLastWatched   SortField = "last_watched"
)

var AllSortFields = []SortField{
	SortTitle, SortDateAdded, SortReleaseDate, SortRating, SortRuntime,
	SortPopularity, SortBitrate, SortFileSize, SortResolution, SortContentRating,
}

type SortDirection string

const (
	Ascending  SortDirection = "asc"
	Descending SortDirection = "desc"
)

type WatchStatus string

const (
	WatchInProgress      WatchStatus = "in_progress"
	WatchCompleted       WatchStatus = "completed"
	WatchUnwatched       WatchStatus = "unwatched"
	WatchRecentlyWatched WatchStatus = "recently_watched"
)

// FilterSpec is the input to IndicesEngine.FetchFilteredMovieIndices,
// validated at the control package's InvalidInput boundary before it
// reaches any query.
type FilterSpec struct {
	Genres               []string
	YearFrom, YearTo     *int
	RatingFrom, RatingTo *float64 `validate:"omitempty,gte=0,lte=10"`
	HeightFrom, HeightTo *int     `validate:"omitempty,gte=0"`
	FreeText             string
	WatchStatus          *WatchStatus
	RecentlyWatchedDays  int          `validate:"gte=0"`
	SortBy               SortField    `validate:"omitempty,oneof=title date_added release_date rating popularity runtime file_size resolution bitrate content_rating"`
	Order                SortDirection `validate:"omitempty,oneof=asc desc"`
}
