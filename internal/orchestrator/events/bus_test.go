package events

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/JustinTDCT/orchestrator/internal/orchestrator/domain"
)

func TestPublishJobAssignsMonotonicSeq(t *testing.T) {
	b := New(zerolog.Nop())
	ch, unsub := b.SubscribeJobs()
	defer unsub()

	jobID := uuid.New()
	for i := 0; i < 5; i++ {
		b.PublishJob(domain.JobEvent{Kind: domain.JobDequeued, JobID: jobID})
	}

	var last uint64
	for i := 0; i < 5; i++ {
		e := <-ch
		if e.Seq <= last {
			t.Fatalf("expected strictly increasing Seq, got %d after %d", e.Seq, last)
		}
		last = e.Seq
	}
}

// TestPublishJobPerSubscriberOrdering grounds INVARIANT P8 (Ordering): each
// subscriber observes events for one job in publish order, regardless of how
// many other subscribers exist.
func TestPublishJobPerSubscriberOrdering(t *testing.T) {
	b := New(zerolog.Nop())
	chA, unsubA := b.SubscribeJobs()
	defer unsubA()
	chB, unsubB := b.SubscribeJobs()
	defer unsubB()

	jobID := uuid.New()
	sequence := []domain.JobEventKind{domain.JobEnqueued, domain.JobDequeued, domain.JobCompleted}
	for _, kind := range sequence {
		b.PublishJob(domain.JobEvent{Kind: kind, JobID: jobID})
	}

	for _, ch := range []<-chan domain.JobEvent{chA, chB} {
		for _, want := range sequence {
			e := <-ch
			if e.Kind != want {
				t.Fatalf("got event kind %q, want %q", e.Kind, want)
			}
		}
	}
}

func TestPublishJobStampsAtWhenZero(t *testing.T) {
	b := New(zerolog.Nop())
	ch, unsub := b.SubscribeJobs()
	defer unsub()

	before := time.Now().UTC()
	b.PublishJob(domain.JobEvent{Kind: domain.JobEnqueued})
	e := <-ch
	if e.At.Before(before) {
		t.Fatalf("expected stamped At to be no earlier than publish time, got %v before %v", e.At, before)
	}
}

// TestSlowSubscriberIsDroppedNotBlocking grounds the bus's explicit
// slow-subscriber-drop policy: a subscriber that never drains its channel
// must eventually stop receiving rather than stall the publisher.
func TestSlowSubscriberIsDroppedNotBlocking(t *testing.T) {
	b := New(zerolog.Nop())
	ch, unsub := b.SubscribeJobs()
	defer unsub()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer+10; i++ {
			b.PublishJob(domain.JobEvent{Kind: domain.JobEnqueued})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("publisher blocked on a slow, undrained subscriber")
	}

	b.mu.Lock()
	_, stillSubscribed := b.jobSubs[0]
	b.mu.Unlock()
	if stillSubscribed {
		t.Fatal("expected the overwhelmed subscriber to have been dropped")
	}
	// Drain the buffered events so the goroutine's sends never leaked past
	// the channel's capacity; the channel may already be closed by the drop.
	for range ch {
	}
}

func TestSubscribeDomainIndependentFromJobEvents(t *testing.T) {
	b := New(zerolog.Nop())
	jobCh, unsubJob := b.SubscribeJobs()
	defer unsubJob()
	domainCh, unsubDomain := b.SubscribeDomain()
	defer unsubDomain()

	b.PublishDomain(domain.DomainEvent{Kind: domain.EventScanStarted})

	select {
	case e := <-domainCh:
		if e.Kind != domain.EventScanStarted {
			t.Fatalf("unexpected domain event kind %q", e.Kind)
		}
	default:
		t.Fatal("expected a buffered domain event")
	}
	select {
	case e := <-jobCh:
		t.Fatalf("job subscriber should not receive domain events, got %+v", e)
	default:
	}
}
