// Package bootstrap is the orchestrator's composition root: it builds the
// concrete Postgres-backed stores, the provider/prober adapters, and every
// Pipeline Stage Actor, then hands them to runtime.New the way
// cmd/cinevault/main.go wires the HTTP server's repositories and services.
package bootstrap

import (
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	basecfg "github.com/JustinTDCT/orchestrator/internal/config"
	"github.com/JustinTDCT/orchestrator/internal/ffmpeg"
	"github.com/JustinTDCT/orchestrator/internal/metadata"
	"github.com/JustinTDCT/orchestrator/internal/models"
	"github.com/JustinTDCT/orchestrator/internal/orchestrator/actors"
	orchcfg "github.com/JustinTDCT/orchestrator/internal/orchestrator/config"
	"github.com/JustinTDCT/orchestrator/internal/orchestrator/correlation"
	"github.com/JustinTDCT/orchestrator/internal/orchestrator/dispatcher"
	"github.com/JustinTDCT/orchestrator/internal/orchestrator/domain"
	"github.com/JustinTDCT/orchestrator/internal/orchestrator/events"
	"github.com/JustinTDCT/orchestrator/internal/orchestrator/filewatchbus"
	"github.com/JustinTDCT/orchestrator/internal/orchestrator/indices"
	"github.com/JustinTDCT/orchestrator/internal/orchestrator/metrics"
	"github.com/JustinTDCT/orchestrator/internal/orchestrator/queue"
	"github.com/JustinTDCT/orchestrator/internal/orchestrator/repo"
	"github.com/JustinTDCT/orchestrator/internal/orchestrator/runtime"
	"github.com/JustinTDCT/orchestrator/internal/orchestrator/scheduler"
	"github.com/JustinTDCT/orchestrator/internal/orchestrator/watch"
	"github.com/JustinTDCT/orchestrator/internal/repository"
)

// Build wires every orchestrator component against db and returns a ready
// Runtime plus the LibraryRepository, so the caller can look up libraries
// to register before calling Start.
func Build(db *sql.DB, base *basecfg.Config, orch *orchcfg.Config, log zerolog.Logger) (*runtime.Runtime, *repository.LibraryRepository, error) {
	mediaFiles := repo.NewMediaFiles(db)
	statuses := repo.NewProcessingStatuses(db)
	refs := repo.NewReferences(db)
	images := repo.NewImages(db)
	idx := indices.New(db)

	prober := ffmpeg.NewProber(base.FFprobePath)

	var provider *metadata.ProviderAdapter
	if base.TMDBAPIKey != "" {
		scraper := metadata.NewTMDBScraper(base.TMDBAPIKey)
		provider = metadata.NewProviderAdapter(scraper, rate.Limit(orch.Providers.MetadataRateLimitPerSecond))
	}
	imageFetcher := metadata.NewCDNImageFetcher(rate.Limit(orch.Providers.ImageRateLimitPerSecond))

	actorSet := map[domain.JobKind]actors.Actor{
		domain.JobFolderScan:   actors.NewFolderScan(mediaFiles),
		domain.JobMediaAnalyze: actors.NewMediaAnalyze(mediaFiles, statuses, prober),
		domain.JobIndexUpsert:  actors.NewIndexUpsert(idx),
		domain.JobImageFetch:   actors.NewImageFetch(images, imageFetcher),
	}
	if provider != nil {
		actorSet[domain.JobMetadataEnrich] = actors.NewMetadataEnrich(refs, statuses, provider)
	} else {
		log.Warn().Msg("TMDB_API_KEY not set: metadata_enrich jobs will stay queued, no MetadataProvider wired")
	}

	met := metrics.New()
	q := queue.New(db, log, queue.WithMetrics(met))
	bus := events.New(log)
	corr := correlation.New(defaultCorrelationCacheSize)

	changeBus := filewatchbus.New(db, log, filewatchbus.Config{})

	watcher, err := watch.New(changeBus, log)
	if err != nil {
		return nil, nil, fmt.Errorf("bootstrap: watcher: %w", err)
	}

	sched := scheduler.New(q, scheduler.Config{
		GlobalConcurrency: orch.Scheduler.GlobalConcurrency,
		Shards:            orch.Scheduler.Shards,
	}, log)

	rt := runtime.New(runtime.Deps{
		Queue:      q,
		Bus:        bus,
		Correlator: corr,
		Scheduler:  sched,
		Watcher:    watcher,
		ChangeBus:  changeBus,
		Actors:     actorSet,
		DispatchCfg: dispatcher.Config{
			WorkerID:        workerID(),
			Workers:         orch.Dispatcher.Workers,
			LeaseTTL:        orch.Dispatcher.LeaseTTL,
			HeartbeatEvery:  orch.Dispatcher.HeartbeatEvery,
			PollInterval:    orch.Dispatcher.PollInterval,
			PollIdleBackoff: orch.Dispatcher.PollIdleBackoff,
		},
		Metrics: met,
		Log:     log,
	})

	return rt, repository.NewLibraryRepository(db), nil
}

const defaultCorrelationCacheSize = 4096

func workerID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return uuid.NewString()
	}
	return host + "-" + uuid.NewString()[:8]
}

// ToDomainLibrary adapts the teacher's flat models.Library (single Path,
// string ScanInterval) to domain.Library (multiple Roots, a parsed
// time.Duration), so RegisterLibrary can be driven directly off
// LibraryRepository.List.
func ToDomainLibrary(l *models.Library) domain.Library {
	kind := domain.LibraryMovies
	if l.MediaType == models.MediaTypeTVShows {
		kind = domain.LibrarySeries
	}
	interval, err := time.ParseDuration(l.ScanInterval)
	if err != nil {
		interval = 0
	}
	return domain.Library{
		ID:      l.ID,
		Name:    l.Name,
		Kind:    kind,
		Roots:   []string{l.Path},
		Enabled: l.IsEnabled,
		ScanInterval:  interval,
	}
}
