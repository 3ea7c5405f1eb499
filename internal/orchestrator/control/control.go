// Package control implements the Control API named in SPEC_FULL.md §6.1:
// create/update/delete/scan a library, read back media and filtered/sorted
// indices. It is invoked in-process by whatever transport a caller wires up
// — that transport is out of scope here, so Service exposes plain Go
// methods rather than HTTP handlers.
package control

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/JustinTDCT/orchestrator/internal/models"
	"github.com/JustinTDCT/orchestrator/internal/orchestrator/bootstrap"
	"github.com/JustinTDCT/orchestrator/internal/orchestrator/domain"
	"github.com/JustinTDCT/orchestrator/internal/orchestrator/errs"
	"github.com/JustinTDCT/orchestrator/internal/orchestrator/indices"
	"github.com/JustinTDCT/orchestrator/internal/orchestrator/library"
	"github.com/JustinTDCT/orchestrator/internal/orchestrator/repo"
	"github.com/JustinTDCT/orchestrator/internal/orchestrator/runtime"
	"github.com/JustinTDCT/orchestrator/internal/repository"
)

// CreateLibraryRequest is create_library's argument, validated with
// go-playground/validator at this InvalidInput boundary (SPEC_FULL.md §7)
// before anything touches the database or the runtime.
type CreateLibraryRequest struct {
	Name                string   `validate:"required"`
	Type                string   `validate:"required,oneof=movies tv_shows"`
	Paths               []string `validate:"required,min=1,dive,required"`
	ScanIntervalMinutes int      `validate:"gte=0"`
	Enabled             bool
}

// UpdateLibraryPatch carries only the fields update_library may change;
// nil pointers mean "leave unchanged".
type UpdateLibraryPatch struct {
	Name                *string
	Paths               []string
	ScanIntervalMinutes *int
	Enabled             *bool
}

// Service implements the Control API against one database and one running
// OrchestratorRuntime.
type Service struct {
	libraries  *repository.LibraryRepository
	mediaFiles *repo.MediaFiles
	refs       *repo.References
	idx        *indices.Engine
	rt         *runtime.Runtime
	validate   *validator.Validate
}

func NewService(libraries *repository.LibraryRepository, mediaFiles *repo.MediaFiles, refs *repo.References, idx *indices.Engine, rt *runtime.Runtime) *Service {
	return &Service{
		libraries:  libraries,
		mediaFiles: mediaFiles,
		refs:       refs,
		idx:        idx,
		rt:         rt,
		validate:   validator.New(),
	}
}

// CreateLibrary validates req, persists the library, and registers it with
// the running OrchestratorRuntime so its watcher and LibraryActor start
// immediately.
func (s *Service) CreateLibrary(ctx context.Context, req CreateLibraryRequest) (uuid.UUID, error) {
	if err := s.validate.Struct(req); err != nil {
		return uuid.Nil, errs.InvalidInput("control.create_library", err)
	}
	for _, p := range req.Paths {
		if !isAbsolutePath(p) {
			return uuid.Nil, errs.InvalidInput("control.create_library", fmt.Errorf("path %q must be absolute", p))
		}
	}

	mediaType := models.MediaTypeMovies
	if req.Type == "tv_shows" {
		mediaType = models.MediaTypeTVShows
	}

	lib := &models.Library{
		ID:            uuid.New(),
		Name:          req.Name,
		MediaType:     mediaType,
		Path:          req.Paths[0],
		IsEnabled:     req.Enabled,
		ScanOnStartup: true,
		AccessLevel:   models.LibraryAccessEveryone,
		ScanInterval:  intervalString(req.ScanIntervalMinutes),
	}
	if err := s.libraries.Create(lib); err != nil {
		return uuid.Nil, errs.Transient("control.create_library", err)
	}

	if req.Enabled {
		if err := s.rt.RegisterLibrary(ctx, bootstrap.ToDomainLibrary(lib)); err != nil {
			return lib.ID, errs.Transient("control.create_library.register", err)
		}
	}
	return lib.ID, nil
}

// UpdateLibrary applies patch to library id. Changing Paths triggers a
// rescan, matching the distilled spec's "Patch may change ... paths
// (triggers scan)".
func (s *Service) UpdateLibrary(ctx context.Context, id uuid.UUID, patch UpdateLibraryPatch) error {
	lib, err := s.libraries.GetByID(id)
	if err != nil {
		return errs.NotFound("control.update_library", err)
	}

	pathsChanged := false
	if patch.Name != nil {
		lib.Name = *patch.Name
	}
	if len(patch.Paths) > 0 && patch.Paths[0] != lib.Path {
		if !isAbsolutePath(patch.Paths[0]) {
			return errs.InvalidInput("control.update_library", fmt.Errorf("path %q must be absolute", patch.Paths[0]))
		}
		lib.Path = patch.Paths[0]
		pathsChanged = true
	}
	if patch.ScanIntervalMinutes != nil {
		lib.ScanInterval = intervalString(*patch.ScanIntervalMinutes)
	}
	wasEnabled := lib.IsEnabled
	if patch.Enabled != nil {
		lib.IsEnabled = *patch.Enabled
	}

	if err := s.libraries.Update(lib); err != nil {
		return errs.Transient("control.update_library", err)
	}

	if !wasEnabled && lib.IsEnabled {
		if err := s.rt.RegisterLibrary(ctx, bootstrap.ToDomainLibrary(lib)); err != nil {
			return errs.Transient("control.update_library.register", err)
		}
	}
	if pathsChanged {
		return s.rt.CommandLibrary(ctx, id, library.Command{Kind: library.CmdRescan, Reason: domain.ScanReasonUser})
	}
	return nil
}

// DeleteLibrary shuts down the library's LibraryActor and deletes its
// libraries row. The library's media files, references, file-change events
// and queued jobs are neither deleted nor cancelled here, and no migration
// declares a foreign key from those tables to libraries.
func (s *Service) DeleteLibrary(ctx context.Context, id uuid.UUID) error {
	_ = s.rt.CommandLibrary(ctx, id, library.Command{Kind: library.CmdShutdown})
	if err := s.libraries.Delete(id); err != nil {
		return errs.Transient("control.delete_library", err)
	}
	return nil
}

// ScanLibrary triggers a scan for the given reason and returns once the
// LibraryActor has accepted it (the scan itself runs asynchronously through
// the dispatcher).
func (s *Service) ScanLibrary(ctx context.Context, id uuid.UUID, reason domain.ScanReason) error {
	kind := library.CmdScan
	if reason == domain.ScanReasonForce {
		kind = library.CmdRescan
	}
	return s.rt.CommandLibrary(ctx, id, library.Command{Kind: kind, Reason: reason})
}

// GetMedia returns up to maxPageSize movie references of a library, in
// title order.
func (s *Service) GetMedia(ctx context.Context, libraryID uuid.UUID) ([]domain.MovieReference, error) {
	ids, err := s.idx.FetchFilteredMovieIndices(ctx, libraryID, domain.FilterSpec{}, 0, maxPageSize)
	if err != nil {
		return nil, err
	}
	return s.batchGetMovies(ctx, ids)
}

// GetMediaByID returns one movie reference.
func (s *Service) GetMediaByID(ctx context.Context, id uuid.UUID) (domain.MovieReference, error) {
	return s.refs.GetMovie(ctx, id)
}

// BatchGetMedia returns the movie references for ids, skipping any that no
// longer exist rather than failing the whole batch.
func (s *Service) BatchGetMedia(ctx context.Context, ids []uuid.UUID) ([]domain.MovieReference, error) {
	return s.batchGetMovies(ctx, ids)
}

func (s *Service) batchGetMovies(ctx context.Context, ids []uuid.UUID) ([]domain.MovieReference, error) {
	out := make([]domain.MovieReference, 0, len(ids))
	for _, id := range ids {
		m, err := s.refs.GetMovie(ctx, id)
		if err != nil {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

const maxPageSize = 10000

// FetchFilteredIndices implements fetch_filtered_indices: spec is validated
// the same way CreateLibraryRequest is, since it is as much an InvalidInput
// boundary as the library-creation path.
func (s *Service) FetchFilteredIndices(ctx context.Context, libraryID uuid.UUID, spec domain.FilterSpec, offset, limit int) ([]uuid.UUID, error) {
	if err := s.validate.Struct(spec); err != nil {
		return nil, errs.InvalidInput("control.fetch_filtered_indices", err)
	}
	if limit <= 0 {
		limit = maxPageSize
	}
	return s.idx.FetchFilteredMovieIndices(ctx, libraryID, spec, offset, limit)
}

// FetchSortedIndices is fetch_filtered_indices with an empty filter,
// matching the distilled spec's split between the two entry points.
func (s *Service) FetchSortedIndices(ctx context.Context, libraryID uuid.UUID, sortBy domain.SortField, order domain.SortDirection, offset, limit int) ([]uuid.UUID, error) {
	return s.FetchFilteredIndices(ctx, libraryID, domain.FilterSpec{SortBy: sortBy, Order: order}, offset, limit)
}

func isAbsolutePath(p string) bool {
	return len(p) > 0 && p[0] == '/'
}

func intervalString(minutes int) string {
	if minutes <= 0 {
		return ""
	}
	return time.Duration(minutes * int(time.Minute)).String()
}
