// Package library implements the per-library LibraryActor described in
// SPEC_FULL.md §4.7: a serialized mailbox that turns Scan/Rescan/RemovePath/
// WatcherEvent/Pause/Resume/Shutdown commands into queue operations, one
// goroutine per library so commands against the same library never race.
package library

import (
	"context"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/JustinTDCT/orchestrator/internal/orchestrator/actors"
	"github.com/JustinTDCT/orchestrator/internal/orchestrator/domain"
)

// Queue is the narrow enqueue surface a LibraryActor needs.
type Queue interface {
	Enqueue(ctx context.Context, req domain.EnqueueRequest) (domain.JobHandle, error)
}

// CommandKind is the closed set of mailbox messages a LibraryActor accepts.
type CommandKind int

const (
	CmdScan CommandKind = iota
	CmdRescan
	CmdRemovePath
	CmdWatcherEvent
	CmdPause
	CmdResume
	CmdShutdown
)

// Command is one mailbox message, with a Done channel the caller can wait
// on for synchronous command submission.
type Command struct {
	Kind   CommandKind
	Path   string
	Change domain.FileChangeEvent
	Reason domain.ScanReason
	Done   chan error
}

const mailboxBuffer = 64

// Actor owns one Library's serialized command stream.
type Actor struct {
	library domain.Library
	queue   Queue
	log     zerolog.Logger

	mailbox chan Command
	paused  bool
}

func NewActor(lib domain.Library, q Queue, log zerolog.Logger) *Actor {
	return &Actor{
		library: lib,
		queue:   q,
		log:     log.With().Str("component", "library_actor").Str("library_id", lib.ID.String()).Logger(),
		mailbox: make(chan Command, mailboxBuffer),
	}
}

// Send enqueues a command; it does not wait for processing. Use SendSync for
// that.
func (a *Actor) Send(cmd Command) {
	a.mailbox <- cmd
}

// SendSync enqueues a command and blocks until it's processed.
func (a *Actor) SendSync(ctx context.Context, cmd Command) error {
	done := make(chan error, 1)
	cmd.Done = done
	select {
	case a.mailbox <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run drains the mailbox until the context is canceled or a Shutdown command
// arrives. One Run goroutine per Actor is the whole concurrency contract:
// nothing else touches this library's state.
func (a *Actor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-a.mailbox:
			err := a.handle(ctx, cmd)
			if cmd.Done != nil {
				cmd.Done <- err
			}
			if cmd.Kind == CmdShutdown {
				return
			}
		}
	}
}

func (a *Actor) handle(ctx context.Context, cmd Command) error {
	switch cmd.Kind {
	case CmdPause:
		a.paused = true
		return nil
	case CmdResume:
		a.paused = false
		return nil
	case CmdShutdown:
		return nil
	}

	if a.paused {
		a.log.Debug().Str("kind", cmd.Path).Msg("library paused, dropping command")
		return nil
	}

	switch cmd.Kind {
	case CmdScan, CmdRescan:
		return a.enqueueScan(ctx, cmd)
	case CmdRemovePath:
		return a.enqueueRemoval(ctx, cmd)
	case CmdWatcherEvent:
		return a.enqueueWatcherEvent(ctx, cmd)
	}
	return nil
}

func (a *Actor) enqueueScan(ctx context.Context, cmd Command) error {
	reason := cmd.Reason
	if reason == "" {
		reason = domain.ScanReasonUser
	}
	for _, root := range a.roots(cmd.Path) {
		payload := actors.FolderScanPayload{
			LibraryID:     a.library.ID,
			Path:          root,
			AllowSymlinks: a.library.AllowSymlinks,
			Parents:       domain.ParentDescriptors{LibraryKind: a.library.Kind},
			Reason:        reason,
		}
		if _, err := a.queue.Enqueue(ctx, domain.EnqueueRequest{
			Kind:      domain.JobFolderScan,
			LibraryID: a.library.ID,
			Priority:  domain.PriorityForScanReason(reason),
			Payload:   payload,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (a *Actor) roots(path string) []string {
	if path != "" {
		return []string{path}
	}
	return a.library.Roots
}

func (a *Actor) enqueueRemoval(ctx context.Context, cmd Command) error {
	// Removal is modeled as a follow-up index refresh: the reference tables
	// are pruned synchronously by the caller (out of this actor's scope,
	// per SPEC_FULL.md's component boundary), this only reschedules the
	// affected subject's sort positions.
	_, err := a.queue.Enqueue(ctx, domain.EnqueueRequest{
		Kind:      domain.JobIndexUpsert,
		LibraryID: a.library.ID,
		Priority:  domain.PriorityNormal,
		Payload:   actors.IndexUpsertPayload{LibraryID: a.library.ID},
	})
	return err
}

func (a *Actor) enqueueWatcherEvent(ctx context.Context, cmd Command) error {
	reason := domain.ScanReasonWatcher
	switch cmd.Change.Kind {
	case domain.FileDeleted:
		return a.enqueueRemoval(ctx, cmd)
	default:
		dir := filepath.Dir(cmd.Change.Path)
		payload := actors.FolderScanPayload{
			LibraryID:     a.library.ID,
			Path:          dir,
			AllowSymlinks: a.library.AllowSymlinks,
			Parents:       domain.ParentDescriptors{LibraryKind: a.library.Kind},
			Reason:        reason,
		}
		_, err := a.queue.Enqueue(ctx, domain.EnqueueRequest{
			Kind:      domain.JobFolderScan,
			LibraryID: a.library.ID,
			Priority:  domain.PriorityForScanReason(reason),
			Payload:   payload,
		})
		return err
	}
}
