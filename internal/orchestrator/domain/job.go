// Package domain holds the shared types that flow through every
// orchestrator component: jobs, leases, cursors, file-change events, media
// references and their processing status, and sort positions.
package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// JobKind is the closed set of pipeline stage kinds. Dynamic dispatch across
// kinds is a switch inside the dispatcher, not an open interface hierarchy.
type JobKind string

const (
	JobFolderScan     JobKind = "folder_scan"
	JobMediaAnalyze   JobKind = "media_analyze"
	JobMetadataEnrich JobKind = "metadata_enrich"
	JobIndexUpsert    JobKind = "index_upsert"
	JobImageFetch     JobKind = "image_fetch"
)

// AllJobKinds is iterated by the queue's gauge-refresh sweep.
var AllJobKinds = []JobKind{
	JobFolderScan, JobMediaAnalyze, JobMetadataEnrich, JobIndexUpsert, JobImageFetch,
}

type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityCritical
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	default:
		return "normal"
	}
}

type JobStatus string

const (
	StatusReady        JobStatus = "ready"
	StatusLeased       JobStatus = "leased"
	StatusCompleted    JobStatus = "completed"
	StatusFailed       JobStatus = "failed"
	StatusDeadLettered JobStatus = "dead_lettered"
)

// Job is immutable queued work. The queue is the only component allowed to
// mutate these rows (see ownership rules in SPEC_FULL.md §3).
type Job struct {
	ID            uuid.UUID
	Kind          JobKind
	LibraryID     uuid.UUID
	Priority      Priority
	Payload       json.RawMessage
	DedupeKey     string
	CorrelationID uuid.UUID
	EnqueuedAt    time.Time
	AvailableAt   time.Time
	Attempts      int
	MaxAttempts   int
	Status        JobStatus
	LastError     string
}

// Lease is a time-bounded claim by a worker on a specific job.
type Lease struct {
	ID          uuid.UUID
	JobID       uuid.UUID
	WorkerID    string
	AcquiredAt  time.Time
	ExpiresAt   time.Time
	HeartbeatAt time.Time
	Job         Job
}

// EnqueueRequest is the input to Queue.Enqueue.
type EnqueueRequest struct {
	Kind          JobKind
	LibraryID     uuid.UUID
	Priority      Priority
	Payload       any
	CorrelationID uuid.UUID // zero value means "mint one"
	MaxAttempts   int       // zero means use the queue default
	AvailableAt   time.Time // zero means now
}

// JobHandle is the result of an Enqueue call.
type JobHandle struct {
	ID            uuid.UUID
	Accepted      bool // false when merged into a pre-existing non-terminal job
	MergedInto    uuid.UUID
	CorrelationID uuid.UUID
}

// ReadyCount is one row of Queue.ReadyCountsGrouped.
type ReadyCount struct {
	LibraryID uuid.UUID
	Priority  Priority
	Count     int
}

const (
	DefaultMaxAttempts = 5
	DefaultBackoffBase = 5 * time.Second
	DefaultBackoffCap  = 30 * time.Minute
	DefaultJitter      = 0.2
)
