// Package runtime wires every orchestrator component into the
// OrchestratorRuntime lifecycle described in SPEC_FULL.md §4.12: New,
// RegisterLibrary, Start, Shutdown, CommandLibrary.
package runtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/JustinTDCT/orchestrator/internal/orchestrator/actors"
	"github.com/JustinTDCT/orchestrator/internal/orchestrator/correlation"
	"github.com/JustinTDCT/orchestrator/internal/orchestrator/dispatcher"
	"github.com/JustinTDCT/orchestrator/internal/orchestrator/domain"
	"github.com/JustinTDCT/orchestrator/internal/orchestrator/events"
	"github.com/JustinTDCT/orchestrator/internal/orchestrator/filewatchbus"
	"github.com/JustinTDCT/orchestrator/internal/orchestrator/library"
	"github.com/JustinTDCT/orchestrator/internal/orchestrator/metrics"
	"github.com/JustinTDCT/orchestrator/internal/orchestrator/queue"
	"github.com/JustinTDCT/orchestrator/internal/orchestrator/scheduler"
	"github.com/JustinTDCT/orchestrator/internal/orchestrator/watch"
)

// Runtime owns the lifecycle of every long-running orchestrator component
// for one process: the dispatcher worker pool, one LibraryActor per
// registered library, the filesystem watcher, the reclaim sweep, and the
// periodic-scan cron.
type Runtime struct {
	Queue      *queue.Queue
	Bus        *events.Bus
	Correlator *correlation.Cache
	Scheduler  *scheduler.Scheduler
	Watcher    *watch.WatcherService
	ChangeBus  *filewatchbus.Bus
	Dispatcher *dispatcher.Dispatcher
	Metrics    *metrics.Collectors

	log zerolog.Logger

	mu        sync.Mutex
	libraries map[uuid.UUID]*libraryHandle

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type libraryHandle struct {
	actor  *library.Actor
	cancel context.CancelFunc
}

// Deps bundles the components a caller has already constructed (each one
// against its own concrete store/collaborator implementations) so New can
// wire them together without re-deriving configuration.
type Deps struct {
	Queue      *queue.Queue
	Bus        *events.Bus
	Correlator *correlation.Cache
	Scheduler  *scheduler.Scheduler
	Watcher    *watch.WatcherService
	ChangeBus  *filewatchbus.Bus
	Actors     map[domain.JobKind]actors.Actor
	DispatchCfg dispatcher.Config
	Metrics    *metrics.Collectors
	Log        zerolog.Logger
}

func New(d Deps) *Runtime {
	disp := dispatcher.New(d.DispatchCfg, d.Queue, d.Actors, d.Bus, d.Correlator, d.Log).WithMetrics(d.Metrics)
	return &Runtime{
		Queue:      d.Queue,
		Bus:        d.Bus,
		Correlator: d.Correlator,
		Scheduler:  d.Scheduler,
		Watcher:    d.Watcher,
		ChangeBus:  d.ChangeBus,
		Dispatcher: disp,
		Metrics:    d.Metrics,
		log:        d.Log.With().Str("component", "runtime").Logger(),
		libraries:  make(map[uuid.UUID]*libraryHandle),
	}
}

// RegisterLibrary spins up a LibraryActor for lib and starts watching its
// roots, but does not itself trigger a scan — callers do that explicitly via
// CommandLibrary with CmdScan.
func (r *Runtime) RegisterLibrary(ctx context.Context, lib domain.Library) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.libraries[lib.ID]; exists {
		return fmt.Errorf("library %s already registered", lib.ID)
	}

	actorLog := r.log
	a := library.NewActor(lib, r.Queue, actorLog)
	actorCtx, cancel := context.WithCancel(ctx)

	r.libraries[lib.ID] = &libraryHandle{actor: a, cancel: cancel}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		a.Run(actorCtx)
	}()

	if r.Watcher != nil && lib.Enabled {
		for _, root := range lib.Roots {
			if err := r.Watcher.Watch(root, lib.ID); err != nil {
				r.log.Warn().Err(err).Str("root", root).Msg("watch registration failed")
			}
		}
	}

	return nil
}

// CommandLibrary submits cmd to the named library's mailbox and waits for it
// to be processed.
func (r *Runtime) CommandLibrary(ctx context.Context, libraryID uuid.UUID, cmd library.Command) error {
	r.mu.Lock()
	h, ok := r.libraries[libraryID]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("library %s not registered", libraryID)
	}
	return h.actor.SendSync(ctx, cmd)
}

// Start launches the dispatcher worker pool, the watcher's event loop, and
// the queue's reclaim sweep. It returns immediately; call Shutdown to stop
// everything.
func (r *Runtime) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.Dispatcher.Run(runCtx)
	}()

	if r.Watcher != nil {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			r.Watcher.Run(runCtx)
		}()
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.Queue.RunReclaimSweep(runCtx, defaultReclaimInterval)
	}()

	if r.Metrics != nil {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			r.Queue.RunMetricsSweep(runCtx, defaultMetricsInterval)
		}()
	}

	if r.Scheduler != nil {
		r.Scheduler.StartCron()
	}
}

const (
	defaultReclaimInterval = 30 * time.Second
	defaultMetricsInterval = 15 * time.Second
)

// Shutdown cancels the run context (dispatcher, watcher, sweeps), stops the
// cron, cancels each registered LibraryActor's mailbox loop, and then waits
// for all of those goroutines to exit.
func (r *Runtime) Shutdown(ctx context.Context) {
	if r.cancel != nil {
		r.cancel()
	}
	if r.Scheduler != nil {
		r.Scheduler.StopCron()
	}

	r.mu.Lock()
	handles := make([]*libraryHandle, 0, len(r.libraries))
	for _, h := range r.libraries {
		handles = append(handles, h)
	}
	r.mu.Unlock()

	for _, h := range handles {
		h.cancel()
	}

	r.wg.Wait()
}
