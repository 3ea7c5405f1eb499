// Package filewatchbus implements the Postgres-backed FileChangeEventBus
// named in SPEC_FULL.md's SUPPLEMENTED FEATURES, ported from
// ferrex-core/src/scan/fs_watch/event_bus/postgres.rs: an append-only
// `file_watch_events` log with keyset pagination (detected_at, id) and a
// per-(group, library) resumable cursor in `file_watch_consumer_offsets`.
// Subscription is a polling goroutine feeding a Go channel, replacing the
// original's tokio mpsc + ReceiverStream.
package filewatchbus

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/JustinTDCT/orchestrator/internal/orchestrator/cursor"
	"github.com/JustinTDCT/orchestrator/internal/orchestrator/domain"
	"github.com/JustinTDCT/orchestrator/internal/orchestrator/errs"
)

const (
	defaultFetchLimit   = 256
	defaultChannelCap   = 512
	defaultPollInterval = 500 * time.Millisecond
)

type Config struct {
	FetchLimit   int
	ChannelCap   int
	PollInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.FetchLimit <= 0 {
		c.FetchLimit = defaultFetchLimit
	}
	if c.ChannelCap <= 0 {
		c.ChannelCap = defaultChannelCap
	}
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	return c
}

type Bus struct {
	db      *sql.DB
	cursors *cursor.Repository
	cfg     Config
	log     zerolog.Logger
}

func New(db *sql.DB, log zerolog.Logger, cfg Config) *Bus {
	return &Bus{
		db:      db,
		cursors: cursor.New(db),
		cfg:     cfg.withDefaults(),
		log:     log.With().Str("component", "filewatchbus").Logger(),
	}
}

// Append persists one file-change event to the log.
func (b *Bus) Append(ctx context.Context, e domain.FileChangeEvent) error {
	const stmt = `
		INSERT INTO file_watch_events
			(library_id, event_type, file_path, old_path, file_size, detected_at, processed, processing_attempts)
		VALUES ($1,$2,$3,$4,$5,$6,false,0)`
	if e.DetectedAt.IsZero() {
		e.DetectedAt = time.Now().UTC()
	}
	_, err := b.db.ExecContext(ctx, stmt, e.LibraryID, e.Kind, e.Path, nullIfEmpty(e.OldPath), e.Size, e.DetectedAt)
	if err != nil {
		return errs.Transient("filewatchbus.append", err)
	}
	return nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Subscribe starts a polling goroutine that delivers events for library
// after the consumer group's last acknowledged position, and returns a
// receive-only channel plus a cancel func. The caller must call Ack (or
// CommitCursor) to advance the position; Subscribe itself never commits.
func (b *Bus) Subscribe(ctx context.Context, group string, libraryID uuid.UUID) (<-chan domain.FileChangeEvent, error) {
	cursor, err := b.GetCursor(ctx, group, libraryID)
	if err != nil {
		return nil, err
	}

	out := make(chan domain.FileChangeEvent, b.cfg.ChannelCap)
	go b.pollLoop(ctx, group, libraryID, cursor, out)
	return out, nil
}

func (b *Bus) pollLoop(ctx context.Context, group string, libraryID uuid.UUID, cursor domain.Cursor, out chan<- domain.FileChangeEvent) {
	defer close(out)
	last := cursor

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		batch, err := b.fetchEventsAfter(ctx, libraryID, last, b.cfg.FetchLimit)
		if err != nil {
			b.log.Warn().Err(err).Str("group", group).Msg("poll failed")
			if !sleepOrDone(ctx, b.cfg.PollInterval) {
				return
			}
			continue
		}
		if len(batch) == 0 {
			if !sleepOrDone(ctx, b.cfg.PollInterval) {
				return
			}
			continue
		}

		for _, e := range batch {
			select {
			case out <- e:
				last.LastEventID = e.ID
				last.LastDetected = e.DetectedAt
			case <-ctx.Done():
				return
			}
		}
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (b *Bus) fetchEventsAfter(ctx context.Context, libraryID uuid.UUID, after domain.Cursor, limit int) ([]domain.FileChangeEvent, error) {
	const query = `
		SELECT id, library_id, event_type, file_path, old_path, file_size,
		       detected_at, processed, processed_at, processing_attempts, last_error
		FROM file_watch_events
		WHERE library_id = $1
		  AND ($2::timestamptz IS NULL OR detected_at > $2 OR (detected_at = $2 AND id > $3))
		ORDER BY detected_at ASC, id ASC
		LIMIT $4`

	var detectedParam any
	if !after.LastDetected.IsZero() {
		detectedParam = after.LastDetected
	}

	rows, err := b.db.QueryContext(ctx, query, libraryID, detectedParam, after.LastEventID, limit)
	if err != nil {
		return nil, errs.Transient("filewatchbus.fetch", err)
	}
	defer rows.Close()

	var out []domain.FileChangeEvent
	for rows.Next() {
		var e domain.FileChangeEvent
		var oldPath sql.NullString
		var lastError sql.NullString
		var processedAt sql.NullTime
		if err := rows.Scan(&e.ID, &e.LibraryID, &e.Kind, &e.Path, &oldPath, &e.Size,
			&e.DetectedAt, &e.Processed, &processedAt, &e.Attempts, &lastError); err != nil {
			return nil, errs.Transient("filewatchbus.fetch", err)
		}
		e.OldPath = oldPath.String
		e.LastError = lastError.String
		if processedAt.Valid {
			e.ProcessedAt = &processedAt.Time
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Ack marks event as processed and advances the consumer group's cursor
// past it in one call — the common case for a consumer that processes
// events one at a time.
func (b *Bus) Ack(ctx context.Context, group string, eventID int64) error {
	var libraryID uuid.UUID
	var detectedAt time.Time
	err := b.db.QueryRowContext(ctx, `SELECT library_id, detected_at FROM file_watch_events WHERE id = $1`, eventID).
		Scan(&libraryID, &detectedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errs.NotFound("filewatchbus.ack", err)
		}
		return errs.Transient("filewatchbus.ack", err)
	}

	if err := b.CommitCursor(ctx, domain.Cursor{Group: group, LibraryID: libraryID, LastEventID: eventID, LastDetected: detectedAt}); err != nil {
		return err
	}
	return b.markProcessed(ctx, eventID)
}

func (b *Bus) markProcessed(ctx context.Context, eventID int64) error {
	const stmt = `UPDATE file_watch_events SET processed = true, processed_at = now() WHERE id = $1`
	if _, err := b.db.ExecContext(ctx, stmt, eventID); err != nil {
		return errs.Transient("filewatchbus.mark_processed", err)
	}
	return nil
}

// CommitCursor advances group's position past c, delegating to the shared
// cursor.Repository rather than touching file_watch_consumer_offsets
// directly — GetCursor/CommitCursor and cursor.Repository are two call
// sites over one table, not two mechanisms.
func (b *Bus) CommitCursor(ctx context.Context, c domain.Cursor) error {
	return b.cursors.Upsert(ctx, c)
}

func (b *Bus) GetCursor(ctx context.Context, group string, libraryID uuid.UUID) (domain.Cursor, error) {
	return b.cursors.Get(ctx, group, libraryID)
}

// UnprocessedEvents returns the oldest unprocessed events for a library,
// used by a consumer recovering after a crash without a committed cursor.
func (b *Bus) UnprocessedEvents(ctx context.Context, libraryID uuid.UUID, limit int) ([]domain.FileChangeEvent, error) {
	const query = `
		SELECT id, library_id, event_type, file_path, old_path, file_size,
		       detected_at, processed, processed_at, processing_attempts, last_error
		FROM file_watch_events
		WHERE library_id = $1 AND processed = false
		ORDER BY detected_at ASC
		LIMIT $2`
	rows, err := b.db.QueryContext(ctx, query, libraryID, limit)
	if err != nil {
		return nil, errs.Transient("filewatchbus.unprocessed", err)
	}
	defer rows.Close()

	var out []domain.FileChangeEvent
	for rows.Next() {
		var e domain.FileChangeEvent
		var oldPath, lastError sql.NullString
		var processedAt sql.NullTime
		if err := rows.Scan(&e.ID, &e.LibraryID, &e.Kind, &e.Path, &oldPath, &e.Size,
			&e.DetectedAt, &e.Processed, &processedAt, &e.Attempts, &lastError); err != nil {
			return nil, errs.Transient("filewatchbus.unprocessed", err)
		}
		e.OldPath = oldPath.String
		e.LastError = lastError.String
		if processedAt.Valid {
			e.ProcessedAt = &processedAt.Time
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// CleanupRetention deletes events older than daysToKeep, mirroring the
// original's cleanup_old_events retention sweep.
func (b *Bus) CleanupRetention(ctx context.Context, daysToKeep int) (int64, error) {
	const stmt = `DELETE FROM file_watch_events WHERE detected_at < now() - ($1 || ' days')::interval`
	res, err := b.db.ExecContext(ctx, stmt, daysToKeep)
	if err != nil {
		return 0, errs.Transient("filewatchbus.cleanup_retention", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errs.Transient("filewatchbus.cleanup_retention", err)
	}
	return n, nil
}
