// Package scheduler implements the Scheduler described in SPEC_FULL.md
// §4.9: deficit round-robin fairness across libraries with ready work,
// rendezvous-hash assignment of libraries to dispatcher shards, and
// periodic-scan triggering via cron expressions. Config.GlobalConcurrency
// is stored but never read, so no global concurrency budget is enforced.
package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/dgryski/go-rendezvous"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/JustinTDCT/orchestrator/internal/orchestrator/domain"
)

// Queue is the narrow surface the Scheduler needs to read ready work and to
// raise periodic scans.
type Queue interface {
	ReadyCountsGrouped(ctx context.Context) ([]domain.ReadyCount, error)
	Enqueue(ctx context.Context, req domain.EnqueueRequest) (domain.JobHandle, error)
}

// Config tunes the fairness and sharding behavior.
type Config struct {
	GlobalConcurrency int
	Shards            []string // dispatcher shard identifiers for rendezvous hashing
}

// Scheduler tracks per-library deficit counters and assigns libraries to
// shards via rendezvous hashing, so a shard's set of owned libraries changes
// minimally when shards are added or removed.
type Scheduler struct {
	q    Queue
	cfg  Config
	log  zerolog.Logger
	hash *rendezvous.Rendezvous

	mu      sync.Mutex
	deficit map[uuid.UUID]int

	cronRunner *cron.Cron
}

// quantum is how much deficit a library earns per scheduling round,
// following the classic deficit round-robin algorithm: a library can only
// dequeue work while its deficit is positive.
const quantum = 4

func New(q Queue, cfg Config, log zerolog.Logger) *Scheduler {
	s := &Scheduler{
		q:       q,
		cfg:     cfg,
		log:     log.With().Str("component", "scheduler").Logger(),
		deficit: make(map[uuid.UUID]int),
	}
	if len(cfg.Shards) > 0 {
		s.hash = rendezvous.New(cfg.Shards, xxhashString)
	}
	s.cronRunner = cron.New()
	return s
}

func xxhashString(s string) uint64 {
	return xxhash.Sum64String(s)
}

// ShardFor returns which dispatcher shard owns libraryID.
func (s *Scheduler) ShardFor(libraryID uuid.UUID) string {
	if s.hash == nil {
		return ""
	}
	return s.hash.Lookup(libraryID.String())
}

// AddShard/RemoveShard adjust rendezvous membership as dispatcher shards
// join or leave.
func (s *Scheduler) AddShard(shard string) {
	if s.hash == nil {
		s.hash = rendezvous.New([]string{shard}, xxhashString)
		return
	}
	s.hash.Add(shard)
}

func (s *Scheduler) RemoveShard(shard string) {
	if s.hash != nil {
		s.hash.Remove(shard)
	}
}

// SelectLibrary applies deficit round-robin across libraries with ready
// work, returning the library ids allowed to dequeue this round, most
// under-served first.
func (s *Scheduler) SelectLibrary(ctx context.Context) ([]uuid.UUID, error) {
	counts, err := s.q.ReadyCountsGrouped(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	present := make(map[uuid.UUID]bool, len(counts))
	for _, c := range counts {
		present[c.LibraryID] = true
		if _, ok := s.deficit[c.LibraryID]; !ok {
			s.deficit[c.LibraryID] = 0
		}
		s.deficit[c.LibraryID] += quantum
	}
	for id := range s.deficit {
		if !present[id] {
			delete(s.deficit, id)
		}
	}

	type candidate struct {
		id      uuid.UUID
		deficit int
	}
	cands := make([]candidate, 0, len(s.deficit))
	for id, d := range s.deficit {
		if d > 0 {
			cands = append(cands, candidate{id, d})
		}
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].deficit > cands[j].deficit })

	out := make([]uuid.UUID, 0, len(cands))
	for _, c := range cands {
		out = append(out, c.id)
	}
	return out, nil
}

// ChargeDequeue debits a library's deficit by one unit of work dequeued.
func (s *Scheduler) ChargeDequeue(libraryID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deficit[libraryID]--
}

// SchedulePeriodicScan registers a cron-triggered FolderScan enqueue for a
// library, per its own ScanInterval translated to a cron spec by the
// caller (e.g. "@every 1h").
func (s *Scheduler) SchedulePeriodicScan(ctx context.Context, lib domain.Library, spec string, rootFolderScan func(domain.Library) domain.EnqueueRequest) error {
	_, err := s.cronRunner.AddFunc(spec, func() {
		req := rootFolderScan(lib)
		if _, err := s.q.Enqueue(ctx, req); err != nil {
			s.log.Warn().Err(err).Str("library_id", lib.ID.String()).Msg("periodic scan enqueue failed")
		}
	})
	return err
}

func (s *Scheduler) StartCron() { s.cronRunner.Start() }
func (s *Scheduler) StopCron()  { <-s.cronRunner.Stop().Done() }

// IntervalToCronSpec converts a Go duration into a robfig/cron "@every"
// spec, the simplest faithful translation of Library.ScanInterval.
func IntervalToCronSpec(d time.Duration) string {
	return "@every " + d.String()
}
