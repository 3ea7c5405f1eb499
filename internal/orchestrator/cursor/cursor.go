// Package cursor implements CursorRepository: per-(group, library)
// resumable offsets into the FileChangeEventBus log, with atomic upsert and
// commit-after-process semantics (SPEC_FULL.md §4.2).
package cursor

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/JustinTDCT/orchestrator/internal/orchestrator/domain"
	"github.com/JustinTDCT/orchestrator/internal/orchestrator/errs"
)

type Repository struct {
	db *sql.DB
}

func New(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Get returns the committed cursor for (group, library), or the zero
// cursor if the consumer has never committed.
func (r *Repository) Get(ctx context.Context, group string, libraryID uuid.UUID) (domain.Cursor, error) {
	const query = `
		SELECT group_name, library_id, last_event_id, last_detected_at, updated_at
		FROM file_watch_consumer_offsets
		WHERE group_name = $1 AND library_id = $2`
	var c domain.Cursor
	err := r.db.QueryRowContext(ctx, query, group, libraryID).
		Scan(&c.Group, &c.LibraryID, &c.LastEventID, &c.LastDetected, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Cursor{Group: group, LibraryID: libraryID}, nil
	}
	if err != nil {
		return domain.Cursor{}, errs.Transient("cursor.get", err)
	}
	return c, nil
}

// Upsert advances the cursor. Callers (FileChangeEventBus.Ack) are
// responsible for only ever calling this with a non-decreasing
// (last_detected_at, last_event_id) pair — see property P6.
func (r *Repository) Upsert(ctx context.Context, c domain.Cursor) error {
	const stmt = `
		INSERT INTO file_watch_consumer_offsets (group_name, library_id, last_event_id, last_detected_at, updated_at)
		VALUES ($1,$2,$3,$4,now())
		ON CONFLICT (group_name, library_id) DO UPDATE
		SET last_event_id = EXCLUDED.last_event_id,
		    last_detected_at = EXCLUDED.last_detected_at,
		    updated_at = now()`
	if _, err := r.db.ExecContext(ctx, stmt, c.Group, c.LibraryID, c.LastEventID, c.LastDetected); err != nil {
		return errs.Transient("cursor.upsert", err)
	}
	return nil
}

// Touch is a convenience for committing right after processing a single
// event, matching the commit-after-process pattern event handlers use.
func (r *Repository) Touch(ctx context.Context, group string, libraryID uuid.UUID, eventID int64, detectedAt time.Time) error {
	return r.Upsert(ctx, domain.Cursor{
		Group:        group,
		LibraryID:    libraryID,
		LastEventID:  eventID,
		LastDetected: detectedAt,
	})
}
