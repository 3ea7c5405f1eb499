// Package dispatcher implements the central dispatch loop described in
// SPEC_FULL.md §4.6: a bounded worker pool that dequeues leased jobs,
// executes the matching Pipeline Stage Actor, heartbeats the lease while the
// actor runs, and completes/fails/retries based on the actor's result.
//
// The worker-pool shape (fixed goroutine count + WaitGroup, each goroutine
// dequeuing for itself) is the teacher's own concurrency idiom, generalized from
// internal/scanner/scanner.go's per-file worker pool to dequeue-and-execute
// instead of walk-and-process.
package dispatcher

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/JustinTDCT/orchestrator/internal/orchestrator/actors"
	"github.com/JustinTDCT/orchestrator/internal/orchestrator/correlation"
	"github.com/JustinTDCT/orchestrator/internal/orchestrator/domain"
	"github.com/JustinTDCT/orchestrator/internal/orchestrator/errs"
	"github.com/JustinTDCT/orchestrator/internal/orchestrator/events"
	"github.com/JustinTDCT/orchestrator/internal/orchestrator/metrics"
	"github.com/JustinTDCT/orchestrator/internal/orchestrator/queue"
)

// Queue is the subset of queue.Queue the dispatcher needs — narrowed so
// tests can supply an in-memory fake.
type Queue interface {
	Dequeue(ctx context.Context, req queue.DequeueRequest) (*domain.Lease, error)
	Heartbeat(ctx context.Context, leaseID uuid.UUID, ttl time.Duration) error
	Complete(ctx context.Context, leaseID uuid.UUID) error
	Fail(ctx context.Context, leaseID uuid.UUID, cause error, retryable bool) error
	Enqueue(ctx context.Context, req domain.EnqueueRequest) (domain.JobHandle, error)
}

// Config tunes polling and lease behavior.
type Config struct {
	WorkerID         string
	Workers          int
	LeaseTTL         time.Duration
	HeartbeatEvery   time.Duration
	PollInterval     time.Duration
	PollIdleBackoff  time.Duration
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 8
	}
	if c.LeaseTTL <= 0 {
		c.LeaseTTL = 2 * time.Minute
	}
	if c.HeartbeatEvery <= 0 {
		c.HeartbeatEvery = c.LeaseTTL / 3
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 250 * time.Millisecond
	}
	if c.PollIdleBackoff <= 0 {
		c.PollIdleBackoff = 2 * time.Second
	}
	return c
}

// Dispatcher runs the bounded worker pool against one Queue.
type Dispatcher struct {
	cfg    Config
	q      Queue
	actors map[domain.JobKind]actors.Actor
	kinds  []domain.JobKind
	bus    *events.Bus
	corr   *correlation.Cache
	log    zerolog.Logger
	met    *metrics.Collectors
}

func New(cfg Config, q Queue, actorSet map[domain.JobKind]actors.Actor, bus *events.Bus, corr *correlation.Cache, log zerolog.Logger) *Dispatcher {
	kinds := make([]domain.JobKind, 0, len(actorSet))
	for k := range actorSet {
		kinds = append(kinds, k)
	}
	return &Dispatcher{
		cfg:    cfg.withDefaults(),
		q:      q,
		actors: actorSet,
		kinds:  kinds,
		bus:    bus,
		corr:   corr,
		log:    log.With().Str("component", "dispatcher").Logger(),
	}
}

// WithMetrics attaches the process's Collectors so dispatch latency and
// dead-letter counts get recorded. Optional — a nil Collectors is a no-op.
func (d *Dispatcher) WithMetrics(m *metrics.Collectors) *Dispatcher {
	d.met = m
	return d
}

// Run starts the worker pool and blocks until ctx is canceled or shuts down.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < d.cfg.Workers; i++ {
		wg.Add(1)
		go func(workerNum int) {
			defer wg.Done()
			d.workerLoop(ctx, workerNum)
		}(i)
	}
	wg.Wait()
}

func (d *Dispatcher) workerLoop(ctx context.Context, workerNum int) {
	workerID := d.cfg.WorkerID
	if workerID == "" {
		workerID = "worker"
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		lease, err := d.q.Dequeue(ctx, queue.DequeueRequest{Kinds: d.kinds, WorkerID: workerID, LeaseTTL: d.cfg.LeaseTTL})
		if err != nil {
			d.log.Warn().Err(err).Msg("dequeue failed")
			sleepOrDone(ctx, d.cfg.PollIdleBackoff)
			continue
		}
		if lease == nil {
			sleepOrDone(ctx, d.cfg.PollInterval)
			continue
		}

		d.execute(ctx, lease)
	}
}

func (d *Dispatcher) execute(ctx context.Context, lease *domain.Lease) {
	start := time.Now()
	job := lease.Job
	defer d.met.ObserveDispatch(string(job.Kind), start)
	corrID := job.CorrelationID
	if corrID == uuid.Nil {
		corrID = d.corr.FetchOrGenerate(job.ID)
	} else {
		d.corr.Remember(job.ID, corrID)
	}

	d.bus.PublishJob(domain.JobEvent{
		Kind: domain.JobDequeued, JobID: job.ID, JobKind: job.Kind,
		LibraryID: job.LibraryID, CorrelationID: corrID,
	})

	heartbeatCtx, cancelHeartbeat := context.WithCancel(ctx)
	defer cancelHeartbeat()
	go d.heartbeatLoop(heartbeatCtx, lease.ID)

	actor, ok := d.actors[job.Kind]
	if !ok {
		d.fail(ctx, lease, corrID, errs.Fatal("dispatcher.unknown_kind", nil), false)
		return
	}

	result, err := actor.Execute(ctx, job.Payload, corrID)
	if err != nil {
		d.fail(ctx, lease, corrID, err, errs.Retryable(err))
		return
	}

	for _, fu := range result.Followups {
		if fu.CorrelationID == uuid.Nil {
			fu.CorrelationID = corrID
		}
		handle, enqErr := d.q.Enqueue(ctx, fu)
		if enqErr != nil {
			d.log.Error().Err(enqErr).Str("kind", string(fu.Kind)).Msg("follow-up enqueue failed")
			continue
		}
		kind := domain.JobEnqueued
		if !handle.Accepted {
			kind = domain.JobMerged
		}
		d.bus.PublishJob(domain.JobEvent{
			Kind: kind, JobID: handle.ID, JobKind: fu.Kind, LibraryID: fu.LibraryID,
			CorrelationID: handle.CorrelationID, MergedInto: handle.MergedInto,
		})
	}
	for _, de := range result.DomainEvents {
		if de.CorrelationID == uuid.Nil {
			de.CorrelationID = corrID
		}
		d.bus.PublishDomain(de)
	}

	if err := d.q.Complete(ctx, lease.ID); err != nil {
		d.log.Error().Err(err).Str("job_id", job.ID.String()).Msg("complete failed")
		return
	}
	d.bus.PublishJob(domain.JobEvent{
		Kind: domain.JobCompleted, JobID: job.ID, JobKind: job.Kind,
		LibraryID: job.LibraryID, CorrelationID: corrID,
	})
	if d.met != nil {
		d.met.JobsCompletedTotal.WithLabelValues(string(job.Kind)).Inc()
	}
}

func (d *Dispatcher) fail(ctx context.Context, lease *domain.Lease, corrID uuid.UUID, cause error, retryable bool) {
	job := lease.Job
	if err := d.q.Fail(ctx, lease.ID, cause, retryable); err != nil {
		d.log.Error().Err(err).Str("job_id", job.ID.String()).Msg("fail failed")
	}
	kind := domain.JobDeadLettered
	if retryable && job.Attempts+1 < job.MaxAttempts {
		kind = domain.JobRetried
	}
	d.bus.PublishJob(domain.JobEvent{
		Kind: kind, JobID: job.ID, JobKind: job.Kind, LibraryID: job.LibraryID,
		CorrelationID: corrID, Error: cause.Error(),
	})
	if d.met != nil && kind == domain.JobDeadLettered {
		d.met.DeadLetterTotal.WithLabelValues(string(job.Kind)).Inc()
	}
}

func (d *Dispatcher) heartbeatLoop(ctx context.Context, leaseID uuid.UUID) {
	ticker := time.NewTicker(d.cfg.HeartbeatEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.q.Heartbeat(ctx, leaseID, d.cfg.LeaseTTL); err != nil {
				d.log.Warn().Err(err).Str("lease_id", leaseID.String()).Msg("heartbeat failed, lease may be lost")
				return
			}
		}
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
