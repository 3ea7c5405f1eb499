package domain

import (
	"time"

	"github.com/google/uuid"
)

type JobEventKind string

const (
	JobEnqueued     JobEventKind = "enqueued"
	JobMerged       JobEventKind = "merged"
	JobDequeued     JobEventKind = "dequeued"
	JobCompleted    JobEventKind = "completed"
	JobFailed       JobEventKind = "failed"
	JobDeadLettered JobEventKind = "dead_lettered"
	JobRetried      JobEventKind = "retried"
)

// JobEvent tracks the lifecycle of one specific job. The legal sequence per
// job is Enqueued -> [Merged]* -> Dequeued -> {Completed|Failed|Retried|DeadLettered}.
type JobEvent struct {
	Seq           uint64
	Kind          JobEventKind
	JobID         uuid.UUID
	JobKind       JobKind
	LibraryID     uuid.UUID
	CorrelationID uuid.UUID
	MergedInto    uuid.UUID `cbor:",omitempty"`
	Error         string    `cbor:",omitempty"`
	At            time.Time
}

type DomainEventKind string

const (
	EventMovieAdded     DomainEventKind = "movie_added"
	EventMovieUpdated   DomainEventKind = "movie_updated"
	EventSeriesAdded    DomainEventKind = "series_added"
	EventSeriesUpdated  DomainEventKind = "series_updated"
	EventSeasonAdded    DomainEventKind = "season_added"
	EventSeasonUpdated  DomainEventKind = "season_updated"
	EventEpisodeAdded   DomainEventKind = "episode_added"
	EventEpisodeUpdated DomainEventKind = "episode_updated"
	EventMediaDeleted   DomainEventKind = "media_deleted"
	EventScanStarted    DomainEventKind = "scan_started"
	EventScanProgress   DomainEventKind = "scan_progress"
	EventScanCompleted  DomainEventKind = "scan_completed"
	EventScanFailed     DomainEventKind = "scan_failed"
)

// ScanProgress mirrors the get_scan_progress response shape from
// SPEC_FULL.md §6.1.
type ScanProgress struct {
	Scanned        int      `cbor:"scanned"`
	Total          int      `cbor:"total"`
	Stored         int      `cbor:"stored"`
	MetadataFetched int     `cbor:"metadata_fetched"`
	CurrentFile    string   `cbor:"current_file"`
	Errors         []string `cbor:"errors,omitempty"`
}

// DomainEvent is an observable catalog state change, tagged with a
// correlation id so all events arising from one trigger can be joined.
type DomainEvent struct {
	Seq           uint64
	Kind          DomainEventKind
	LibraryID     uuid.UUID
	CorrelationID uuid.UUID
	SubjectID     uuid.UUID `cbor:",omitempty"`
	ScanID        uuid.UUID `cbor:",omitempty"`
	Progress      *ScanProgress `cbor:",omitempty"`
	Error         string    `cbor:",omitempty"`
	At            time.Time
}
