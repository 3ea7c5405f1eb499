// Package queue implements the durable job queue described in
// SPEC_FULL.md §4.1: leases, dedupe, priority, retry/backoff, and
// dead-lettering, backed directly by Postgres via lib/pq.
//
// asynq+go-redis (the teacher's queue mechanism) is not used here: its task
// API cannot expose the exact invariants this queue must hold (merge
// returning the pre-existing id, monotonic lease expiry across renewals,
// an attempts-preserving reclaim sweep). See DESIGN.md for the full
// rationale.
package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/JustinTDCT/orchestrator/internal/orchestrator/domain"
	"github.com/JustinTDCT/orchestrator/internal/orchestrator/errs"
	"github.com/JustinTDCT/orchestrator/internal/orchestrator/metrics"
)

type Queue struct {
	db     *sql.DB
	log    zerolog.Logger
	base   time.Duration
	cap    time.Duration
	jitter float64
	met    *metrics.Collectors
}

type Option func(*Queue)

func WithBackoff(base, cap time.Duration, jitter float64) Option {
	return func(q *Queue) { q.base, q.cap, q.jitter = base, cap, jitter }
}

// WithMetrics attaches Collectors so Enqueue outcomes and reclaim counts are
// recorded. Optional — a queue without this never touches Prometheus.
func WithMetrics(m *metrics.Collectors) Option {
	return func(q *Queue) { q.met = m }
}

func New(db *sql.DB, log zerolog.Logger, opts ...Option) *Queue {
	q := &Queue{
		db:     db,
		log:    log.With().Str("component", "queue").Logger(),
		base:   domain.DefaultBackoffBase,
		cap:    domain.DefaultBackoffCap,
		jitter: domain.DefaultJitter,
	}
	for _, o := range opts {
		o(q)
	}
	return q
}

// Backoff computes the delay before attempt number `attempt` (1-indexed) is
// retried: min(base * 2^(attempts-1) * (1 +/- jitter), cap).
func (q *Queue) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	raw := float64(q.base) * math.Pow(2, float64(attempt-1))
	if q.jitter > 0 {
		delta := (rand.Float64()*2 - 1) * q.jitter
		raw *= 1 + delta
	}
	d := time.Duration(raw)
	if d > q.cap {
		d = q.cap
	}
	if d < 0 {
		d = q.base
	}
	return d
}

// Enqueue inserts a job unless a non-terminal job with the same
// (kind, dedupe_key) already exists, in which case the request is merged:
// the pre-existing job id and that job's correlation id are returned, and
// the caller's correlation id is not stored anywhere (the queue does not
// touch the correlation cache).
func (q *Queue) Enqueue(ctx context.Context, req domain.EnqueueRequest) (domain.JobHandle, error) {
	dedupeKey, err := stableHash(req.Kind, req.LibraryID, req.Payload)
	if err != nil {
		return domain.JobHandle{}, errs.InvalidInput("queue.enqueue", err)
	}

	payload, err := marshalPayload(req.Payload)
	if err != nil {
		return domain.JobHandle{}, errs.InvalidInput("queue.enqueue", err)
	}

	corrID := req.CorrelationID
	if corrID == uuid.Nil {
		corrID = uuid.New()
	}
	maxAttempts := req.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = domain.DefaultMaxAttempts
	}
	availableAt := req.AvailableAt
	if availableAt.IsZero() {
		availableAt = time.Now().UTC()
	}

	id := uuid.New()
	const insertStmt = `
		INSERT INTO jobs (id, kind, library_id, priority, payload, dedupe_key,
			correlation_id, status, attempts, max_attempts, enqueued_at, available_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,'ready',0,$8,now(),$9)
		ON CONFLICT (kind, dedupe_key) WHERE status IN ('ready','leased')
		DO NOTHING
		RETURNING id, correlation_id`

	var returnedID, returnedCorr uuid.UUID
	row := q.db.QueryRowContext(ctx, insertStmt, id, req.Kind, req.LibraryID, int(req.Priority),
		payload, dedupeKey, corrID, maxAttempts, availableAt)
	err = row.Scan(&returnedID, &returnedCorr)
	switch {
	case err == nil:
		q.countEnqueue(req.Kind, "accepted")
		return domain.JobHandle{ID: returnedID, Accepted: true, CorrelationID: returnedCorr}, nil
	case errors.Is(err, sql.ErrNoRows):
		// ON CONFLICT DO NOTHING produced no row: a non-terminal job with
		// this dedupe key already exists. Look it up and merge.
		existing, ferr := q.findActiveByDedupeKey(ctx, req.Kind, dedupeKey)
		if ferr != nil {
			return domain.JobHandle{}, errs.Transient("queue.enqueue", ferr)
		}
		q.countEnqueue(req.Kind, "merged")
		return domain.JobHandle{
			ID:            existing.ID,
			Accepted:      false,
			MergedInto:    existing.ID,
			CorrelationID: existing.CorrelationID,
		}, nil
	default:
		return domain.JobHandle{}, errs.Transient("queue.enqueue", err)
	}
}

func (q *Queue) countEnqueue(kind domain.JobKind, outcome string) {
	if q.met != nil {
		q.met.JobsEnqueuedTotal.WithLabelValues(string(kind), outcome).Inc()
	}
}

func (q *Queue) findActiveByDedupeKey(ctx context.Context, kind domain.JobKind, dedupeKey string) (domain.Job, error) {
	const query = `
		SELECT id, correlation_id FROM jobs
		WHERE kind = $1 AND dedupe_key = $2 AND status IN ('ready','leased')
		LIMIT 1`
	var j domain.Job
	err := q.db.QueryRowContext(ctx, query, kind, dedupeKey).Scan(&j.ID, &j.CorrelationID)
	if err != nil {
		return domain.Job{}, fmt.Errorf("find active job by dedupe key: %w", err)
	}
	return j, nil
}

type DequeueRequest struct {
	Kinds        []domain.JobKind
	LibraryID    *uuid.UUID
	WorkerID     string
	LeaseTTL     time.Duration
}

// Dequeue selects the highest-priority ready job among the requested kinds
// (tie-broken by available_at ascending), leases it atomically using
// SELECT ... FOR UPDATE SKIP LOCKED so concurrent workers never race on the
// same row.
func (q *Queue) Dequeue(ctx context.Context, req DequeueRequest) (*domain.Lease, error) {
	if len(req.Kinds) == 0 {
		return nil, errs.InvalidInput("queue.dequeue", fmt.Errorf("no kinds requested"))
	}
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errs.Transient("queue.dequeue", err)
	}
	defer tx.Rollback()

	const selectStmt = `
		SELECT id, kind, library_id, priority, payload, dedupe_key, correlation_id,
		       attempts, max_attempts, enqueued_at, available_at
		FROM jobs
		WHERE status = 'ready' AND available_at <= now() AND kind = ANY($1)
		  AND ($2::uuid IS NULL OR library_id = $2)
		ORDER BY priority DESC, available_at ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED`

	var libFilter *uuid.UUID
	if req.LibraryID != nil {
		libFilter = req.LibraryID
	}

	var j domain.Job
	var priority int
	row := tx.QueryRowContext(ctx, selectStmt, pqKindArray(req.Kinds), libFilter)
	if err := row.Scan(&j.ID, &j.Kind, &j.LibraryID, &priority, &j.Payload, &j.DedupeKey,
		&j.CorrelationID, &j.Attempts, &j.MaxAttempts, &j.EnqueuedAt, &j.AvailableAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errs.Transient("queue.dequeue", err)
	}
	j.Priority = domain.Priority(priority)
	j.Status = domain.StatusLeased

	leaseID := uuid.New()
	now := time.Now().UTC()
	expires := now.Add(req.LeaseTTL)

	if _, err := tx.ExecContext(ctx, `UPDATE jobs SET status = 'leased' WHERE id = $1`, j.ID); err != nil {
		return nil, errs.Transient("queue.dequeue", err)
	}
	const insertLease = `
		INSERT INTO leases (id, job_id, worker_id, acquired_at, expires_at, heartbeat_at)
		VALUES ($1,$2,$3,$4,$5,$4)`
	if _, err := tx.ExecContext(ctx, insertLease, leaseID, j.ID, req.WorkerID, now, expires); err != nil {
		return nil, errs.Transient("queue.dequeue", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, errs.Transient("queue.dequeue", err)
	}

	return &domain.Lease{
		ID:          leaseID,
		JobID:       j.ID,
		WorkerID:    req.WorkerID,
		AcquiredAt:  now,
		ExpiresAt:   expires,
		HeartbeatAt: now,
		Job:         j,
	}, nil
}

var ErrLeaseLost = errors.New("lease lost")

// Heartbeat extends expires_at for a still-current lease. INVARIANT Q2
// requires expires_at to be monotonic across renewals, so the new value is
// only ever an advance (now + ttl), never a rollback.
func (q *Queue) Heartbeat(ctx context.Context, leaseID uuid.UUID, ttl time.Duration) error {
	now := time.Now().UTC()
	const stmt = `
		UPDATE leases SET heartbeat_at = $2, expires_at = $3
		WHERE id = $1 AND expires_at > $2`
	res, err := q.db.ExecContext(ctx, stmt, leaseID, now, now.Add(ttl))
	if err != nil {
		return errs.Transient("queue.heartbeat", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errs.Transient("queue.heartbeat", err)
	}
	if n == 0 {
		return ErrLeaseLost
	}
	return nil
}

// Complete transitions the leased job to Completed and releases the lease.
func (q *Queue) Complete(ctx context.Context, leaseID uuid.UUID) error {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.Transient("queue.complete", err)
	}
	defer tx.Rollback()

	var jobID uuid.UUID
	if err := tx.QueryRowContext(ctx, `SELECT job_id FROM leases WHERE id = $1`, leaseID).Scan(&jobID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrLeaseLost
		}
		return errs.Transient("queue.complete", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE jobs SET status = 'completed' WHERE id = $1`, jobID); err != nil {
		return errs.Transient("queue.complete", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM leases WHERE id = $1`, leaseID); err != nil {
		return errs.Transient("queue.complete", err)
	}
	return tx.Commit()
}

// Fail applies the queue's retry/dead-letter decision: retryable jobs with
// attempts remaining go back to Ready with an exponential backoff delay;
// everything else is DeadLettered.
func (q *Queue) Fail(ctx context.Context, leaseID uuid.UUID, cause error, retryable bool) error {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.Transient("queue.fail", err)
	}
	defer tx.Rollback()

	var jobID uuid.UUID
	if err := tx.QueryRowContext(ctx, `SELECT job_id FROM leases WHERE id = $1`, leaseID).Scan(&jobID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrLeaseLost
		}
		return errs.Transient("queue.fail", err)
	}

	var attempts, maxAttempts int
	if err := tx.QueryRowContext(ctx, `SELECT attempts, max_attempts FROM jobs WHERE id = $1`, jobID).
		Scan(&attempts, &maxAttempts); err != nil {
		return errs.Transient("queue.fail", err)
	}

	attempts++
	errMsg := ""
	if cause != nil {
		errMsg = cause.Error()
	}

	if retryable && attempts < maxAttempts {
		delay := q.Backoff(attempts)
		const stmt = `
			UPDATE jobs SET status = 'ready', attempts = $2, available_at = now() + $3::interval, last_error = $4
			WHERE id = $1`
		if _, err := tx.ExecContext(ctx, stmt, jobID, attempts, fmt.Sprintf("%d seconds", int(delay.Seconds())), errMsg); err != nil {
			return errs.Transient("queue.fail", err)
		}
	} else {
		const stmt = `UPDATE jobs SET status = 'dead_lettered', attempts = $2, last_error = $3 WHERE id = $1`
		if _, err := tx.ExecContext(ctx, stmt, jobID, attempts, errMsg); err != nil {
			return errs.Transient("queue.fail", err)
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM leases WHERE id = $1`, leaseID); err != nil {
		return errs.Transient("queue.fail", err)
	}
	return tx.Commit()
}

func (q *Queue) QueueDepth(ctx context.Context, kind domain.JobKind) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx,
		`SELECT count(*) FROM jobs WHERE kind = $1 AND status = 'ready'`, kind).Scan(&n)
	if err != nil {
		return 0, errs.Transient("queue.queue_depth", err)
	}
	return n, nil
}

func (q *Queue) ReadyCountsGrouped(ctx context.Context) ([]domain.ReadyCount, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT library_id, priority, count(*) FROM jobs
		WHERE status = 'ready'
		GROUP BY library_id, priority`)
	if err != nil {
		return nil, errs.Transient("queue.ready_counts_grouped", err)
	}
	defer rows.Close()

	var out []domain.ReadyCount
	for rows.Next() {
		var rc domain.ReadyCount
		var priority int
		if err := rows.Scan(&rc.LibraryID, &priority, &rc.Count); err != nil {
			return nil, errs.Transient("queue.ready_counts_grouped", err)
		}
		rc.Priority = domain.Priority(priority)
		out = append(out, rc)
	}
	return out, rows.Err()
}

// ReclaimExpired moves jobs whose lease has expired back to Ready with
// attempts unchanged, per the reclamation rule in SPEC_FULL.md §4.1: the
// failure is not attributed to the worker that merely crashed.
func (q *Queue) ReclaimExpired(ctx context.Context) (int, error) {
	const stmt = `
		WITH expired AS (
			DELETE FROM leases WHERE expires_at < now() RETURNING job_id
		)
		UPDATE jobs SET status = 'ready'
		WHERE id IN (SELECT job_id FROM expired) AND status = 'leased'`
	res, err := q.db.ExecContext(ctx, stmt)
	if err != nil {
		return 0, errs.Transient("queue.reclaim", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errs.Transient("queue.reclaim", err)
	}
	if n > 0 {
		q.log.Info().Int64("count", n).Msg("reclaimed expired leases")
		if q.met != nil {
			q.met.LeasesReclaimed.Add(float64(n))
		}
	}
	return int(n), nil
}

// RunReclaimSweep runs ReclaimExpired on a ticker until ctx is cancelled.
func (q *Queue) RunReclaimSweep(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := q.ReclaimExpired(ctx); err != nil {
				q.log.Warn().Err(err).Msg("reclaim sweep failed")
			}
		}
	}
}

// RunMetricsSweep periodically refreshes the queue-depth and ready-count
// gauges. No-op if the queue was built without WithMetrics.
func (q *Queue) RunMetricsSweep(ctx context.Context, interval time.Duration) {
	if q.met == nil {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			q.refreshGauges(ctx)
		}
	}
}

func (q *Queue) refreshGauges(ctx context.Context) {
	for _, kind := range domain.AllJobKinds {
		depth, err := q.QueueDepth(ctx, kind)
		if err != nil {
			q.log.Warn().Err(err).Str("kind", string(kind)).Msg("queue depth refresh failed")
			continue
		}
		q.met.QueueDepth.WithLabelValues(string(kind)).Set(float64(depth))
	}
	counts, err := q.ReadyCountsGrouped(ctx)
	if err != nil {
		q.log.Warn().Err(err).Msg("ready counts refresh failed")
		return
	}
	for _, rc := range counts {
		q.met.ReadyCount.WithLabelValues(rc.LibraryID.String(), rc.Priority.String()).Set(float64(rc.Count))
	}
}
