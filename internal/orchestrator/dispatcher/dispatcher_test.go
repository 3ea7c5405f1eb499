package dispatcher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/JustinTDCT/orchestrator/internal/orchestrator/actors"
	"github.com/JustinTDCT/orchestrator/internal/orchestrator/correlation"
	"github.com/JustinTDCT/orchestrator/internal/orchestrator/domain"
	"github.com/JustinTDCT/orchestrator/internal/orchestrator/errs"
	"github.com/JustinTDCT/orchestrator/internal/orchestrator/events"
	"github.com/JustinTDCT/orchestrator/internal/orchestrator/queue"
)

// fakeQueue is an in-memory stand-in for queue.Queue, narrow enough to drive
// the dispatcher through every branch without a live Postgres instance.
type fakeQueue struct {
	mu          sync.Mutex
	completed   []uuid.UUID
	failed      []failCall
	enqueued    []domain.EnqueueRequest
	enqueueFunc func(req domain.EnqueueRequest) (domain.JobHandle, error)
}

type failCall struct {
	leaseID   uuid.UUID
	cause     error
	retryable bool
}

func (f *fakeQueue) Dequeue(context.Context, queue.DequeueRequest) (*domain.Lease, error) {
	return nil, nil
}

func (f *fakeQueue) Heartbeat(context.Context, uuid.UUID, time.Duration) error { return nil }

func (f *fakeQueue) Complete(_ context.Context, leaseID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed = append(f.completed, leaseID)
	return nil
}

func (f *fakeQueue) Fail(_ context.Context, leaseID uuid.UUID, cause error, retryable bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed = append(f.failed, failCall{leaseID, cause, retryable})
	return nil
}

func (f *fakeQueue) Enqueue(_ context.Context, req domain.EnqueueRequest) (domain.JobHandle, error) {
	f.mu.Lock()
	f.enqueued = append(f.enqueued, req)
	fn := f.enqueueFunc
	f.mu.Unlock()
	if fn != nil {
		return fn(req)
	}
	return domain.JobHandle{ID: uuid.New(), Accepted: true, CorrelationID: req.CorrelationID}, nil
}

// fakeActor lets each test script an Execute outcome directly.
type fakeActor struct {
	result actors.Result
	err    error
}

func (a *fakeActor) Execute(context.Context, []byte, uuid.UUID) (actors.Result, error) {
	return a.result, a.err
}

func newTestDispatcher(q Queue, actor actors.Actor) (*Dispatcher, *events.Bus) {
	bus := events.New(zerolog.Nop())
	corr := correlation.New(100)
	d := New(Config{}, q, map[domain.JobKind]actors.Actor{domain.JobFolderScan: actor}, bus, corr, zerolog.Nop())
	return d, bus
}

func newLease(kind domain.JobKind, attempts, maxAttempts int) *domain.Lease {
	return &domain.Lease{
		ID: uuid.New(),
		Job: domain.Job{
			ID: uuid.New(), Kind: kind, LibraryID: uuid.New(),
			Attempts: attempts, MaxAttempts: maxAttempts,
		},
	}
}

func drainJobEvents(ch <-chan domain.JobEvent, n int) []domain.JobEvent {
	out := make([]domain.JobEvent, 0, n)
	for i := 0; i < n; i++ {
		select {
		case e := <-ch:
			out = append(out, e)
		case <-time.After(time.Second):
			return out
		}
	}
	return out
}

func TestExecuteCompletesJobAndPublishesOrderedEvents(t *testing.T) {
	q := &fakeQueue{}
	actor := &fakeActor{result: actors.Result{}}
	d, bus := newTestDispatcher(q, actor)
	ch, unsub := bus.SubscribeJobs()
	defer unsub()

	lease := newLease(domain.JobFolderScan, 0, 5)
	d.execute(context.Background(), lease)

	events := drainJobEvents(ch, 2)
	if len(events) != 2 || events[0].Kind != domain.JobDequeued || events[1].Kind != domain.JobCompleted {
		t.Fatalf("expected Dequeued then Completed, got %+v", events)
	}
	if len(q.completed) != 1 || q.completed[0] != lease.ID {
		t.Fatalf("expected Complete to be called with the lease id, got %+v", q.completed)
	}
}

// TestExecuteStampsCorrelationOntoFollowups grounds INVARIANT P7 (Correlation
// fan-out): a follow-up enqueued without its own correlation id inherits the
// parent job's.
func TestExecuteStampsCorrelationOntoFollowups(t *testing.T) {
	q := &fakeQueue{}
	followup := domain.EnqueueRequest{Kind: domain.JobMediaAnalyze}
	actor := &fakeActor{result: actors.Result{Followups: []domain.EnqueueRequest{followup}}}
	d, _ := newTestDispatcher(q, actor)

	lease := newLease(domain.JobFolderScan, 0, 5)
	parentCorr := uuid.New()
	lease.Job.CorrelationID = parentCorr
	d.execute(context.Background(), lease)

	if len(q.enqueued) != 1 {
		t.Fatalf("expected exactly one enqueue call, got %d", len(q.enqueued))
	}
	if q.enqueued[0].CorrelationID != parentCorr {
		t.Fatalf("expected the follow-up to inherit correlation id %v, got %v", parentCorr, q.enqueued[0].CorrelationID)
	}
}

func TestExecutePublishesMergedEventOnDedupe(t *testing.T) {
	existingID := uuid.New()
	existingCorr := uuid.New()
	q := &fakeQueue{enqueueFunc: func(req domain.EnqueueRequest) (domain.JobHandle, error) {
		return domain.JobHandle{ID: existingID, Accepted: false, MergedInto: existingID, CorrelationID: existingCorr}, nil
	}}
	actor := &fakeActor{result: actors.Result{Followups: []domain.EnqueueRequest{{Kind: domain.JobMediaAnalyze}}}}
	d, bus := newTestDispatcher(q, actor)
	ch, unsub := bus.SubscribeJobs()
	defer unsub()

	lease := newLease(domain.JobFolderScan, 0, 5)
	d.execute(context.Background(), lease)

	events := drainJobEvents(ch, 3)
	if len(events) != 3 {
		t.Fatalf("expected Dequeued, Merged, Completed; got %+v", events)
	}
	if events[1].Kind != domain.JobMerged || events[1].CorrelationID != existingCorr {
		t.Fatalf("expected a Merged event carrying the pre-existing correlation id, got %+v", events[1])
	}
}

func TestExecuteRetryableFailureSchedulesRetry(t *testing.T) {
	q := &fakeQueue{}
	actor := &fakeActor{err: errs.Transient("actor.boom", errors.New("temporary"))}
	d, bus := newTestDispatcher(q, actor)
	ch, unsub := bus.SubscribeJobs()
	defer unsub()

	lease := newLease(domain.JobFolderScan, 0, 5)
	d.execute(context.Background(), lease)

	events := drainJobEvents(ch, 2)
	if len(events) != 2 || events[1].Kind != domain.JobRetried {
		t.Fatalf("expected Dequeued then Retried, got %+v", events)
	}
	if len(q.failed) != 1 || !q.failed[0].retryable {
		t.Fatalf("expected Fail to be called with retryable=true, got %+v", q.failed)
	}
}

// TestExecuteExhaustedAttemptsDeadLetters grounds the crash-recovery /
// dead-letter scenario: once attempts+1 reaches max attempts, even a
// transient-looking failure is reported as dead-lettered for observers.
func TestExecuteExhaustedAttemptsDeadLetters(t *testing.T) {
	q := &fakeQueue{}
	actor := &fakeActor{err: errs.Fatal("actor.boom", errors.New("permanent"))}
	d, bus := newTestDispatcher(q, actor)
	ch, unsub := bus.SubscribeJobs()
	defer unsub()

	lease := newLease(domain.JobFolderScan, 4, 5)
	d.execute(context.Background(), lease)

	events := drainJobEvents(ch, 2)
	if len(events) != 2 || events[1].Kind != domain.JobDeadLettered {
		t.Fatalf("expected Dequeued then DeadLettered, got %+v", events)
	}
	if len(q.failed) != 1 || q.failed[0].retryable {
		t.Fatalf("expected Fail to be called with retryable=false, got %+v", q.failed)
	}
}

func TestExecuteUnknownJobKindFailsFatally(t *testing.T) {
	q := &fakeQueue{}
	actor := &fakeActor{}
	d, bus := newTestDispatcher(q, actor)
	ch, unsub := bus.SubscribeJobs()
	defer unsub()

	lease := newLease(domain.JobMediaAnalyze, 4, 5) // dispatcher only has a FolderScan actor registered, and this is the last attempt
	d.execute(context.Background(), lease)

	events := drainJobEvents(ch, 2)
	if len(events) != 2 || events[1].Kind != domain.JobDeadLettered {
		t.Fatalf("expected an unknown kind to be dead-lettered on its last attempt, got %+v", events)
	}
}
