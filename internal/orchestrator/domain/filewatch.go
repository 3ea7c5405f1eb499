package domain

import (
	"time"

	"github.com/google/uuid"
)

type FileChangeKind string

const (
	FileCreated  FileChangeKind = "created"
	FileModified FileChangeKind = "modified"
	FileDeleted  FileChangeKind = "deleted"
	FileMoved    FileChangeKind = "moved"
)

// FileChangeEvent is an append-only record in the FileChangeEventBus log.
type FileChangeEvent struct {
	ID          int64
	LibraryID   uuid.UUID
	Kind        FileChangeKind
	Path        string
	OldPath     string
	Size        int64
	DetectedAt  time.Time
	Processed   bool
	ProcessedAt *time.Time
	Attempts    int
	LastError   string
}

// Cursor is a per-(consumer_group, library) resumable offset into the
// FileChangeEvent log.
type Cursor struct {
	Group        string
	LibraryID    uuid.UUID
	LastEventID  int64
	LastDetected time.Time
	UpdatedAt    time.Time
}
