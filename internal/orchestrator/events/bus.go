// Package events implements the EventBus described in SPEC_FULL.md §4.4:
// two broadcast channels (JobEvent lifecycle, DomainEvent state changes),
// monotonic per-subscriber sequence numbers, and slow-subscriber dropping
// rather than blocking producers.
package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/JustinTDCT/orchestrator/internal/orchestrator/domain"
)

// subscriberBuffer bounds how far a subscriber can lag before being dropped.
const subscriberBuffer = 256

type jobSub struct {
	id uint64
	ch chan domain.JobEvent
}

type domainSub struct {
	id uint64
	ch chan domain.DomainEvent
}

type Bus struct {
	log zerolog.Logger

	mu        sync.Mutex
	jobSubs   map[uint64]jobSub
	domainSubs map[uint64]domainSub
	nextSubID uint64

	jobSeq    uint64
	domainSeq uint64
}

func New(log zerolog.Logger) *Bus {
	return &Bus{
		log:        log.With().Str("component", "eventbus").Logger(),
		jobSubs:    make(map[uint64]jobSub),
		domainSubs: make(map[uint64]domainSub),
	}
}

// SubscribeJobs returns a channel of JobEvents published after this call,
// plus an unsubscribe func.
func (b *Bus) SubscribeJobs() (<-chan domain.JobEvent, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextSubID
	b.nextSubID++
	ch := make(chan domain.JobEvent, subscriberBuffer)
	b.jobSubs[id] = jobSub{id: id, ch: ch}
	return ch, func() { b.unsubscribeJobs(id) }
}

func (b *Bus) unsubscribeJobs(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok := b.jobSubs[id]; ok {
		close(s.ch)
		delete(b.jobSubs, id)
	}
}

func (b *Bus) SubscribeDomain() (<-chan domain.DomainEvent, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextSubID
	b.nextSubID++
	ch := make(chan domain.DomainEvent, subscriberBuffer)
	b.domainSubs[id] = domainSub{id: id, ch: ch}
	return ch, func() { b.unsubscribeDomain(id) }
}

func (b *Bus) unsubscribeDomain(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok := b.domainSubs[id]; ok {
		close(s.ch)
		delete(b.domainSubs, id)
	}
}

// PublishJob assigns a monotonic sequence number and fans out to every
// subscriber. A subscriber whose buffer is full is dropped with a warning
// rather than blocking the producer.
func (b *Bus) PublishJob(e domain.JobEvent) {
	e.Seq = atomic.AddUint64(&b.jobSeq, 1)
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	b.mu.Lock()
	subs := make([]jobSub, 0, len(b.jobSubs))
	for _, s := range b.jobSubs {
		subs = append(subs, s)
	}
	b.mu.Unlock()

	for _, s := range subs {
		select {
		case s.ch <- e:
		default:
			b.log.Warn().Uint64("subscriber", s.id).Msg("dropping slow job-event subscriber")
			b.unsubscribeJobs(s.id)
		}
	}
}

func (b *Bus) PublishDomain(e domain.DomainEvent) {
	e.Seq = atomic.AddUint64(&b.domainSeq, 1)
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	b.mu.Lock()
	subs := make([]domainSub, 0, len(b.domainSubs))
	for _, s := range b.domainSubs {
		subs = append(subs, s)
	}
	b.mu.Unlock()

	for _, s := range subs {
		select {
		case s.ch <- e:
		default:
			b.log.Warn().Uint64("subscriber", s.id).Msg("dropping slow domain-event subscriber")
			b.unsubscribeDomain(s.id)
		}
	}
}
