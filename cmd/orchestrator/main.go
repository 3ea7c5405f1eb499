// cmd/orchestrator runs the scan-and-ingestion pipeline standalone, the way
// cmd/cinevault runs the HTTP media server standalone: load config, connect
// the database, wire every component, run until signaled to stop. It does
// not open any network listener — the transport layer is out of scope here.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	baseconfig "github.com/JustinTDCT/orchestrator/internal/config"
	"github.com/JustinTDCT/orchestrator/internal/db"
	"github.com/JustinTDCT/orchestrator/internal/orchestrator/bootstrap"
	orchconfig "github.com/JustinTDCT/orchestrator/internal/orchestrator/config"
)

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	base := baseconfig.Load()

	orch, err := orchconfig.Load()
	if err != nil {
		log.Fatalf("orchestrator config: %v", err)
	}

	database, err := db.Connect(base.DatabaseURL)
	if err != nil {
		log.Fatalf("database connect: %v", err)
	}
	defer database.Close()

	if err := db.Migrate(database, "internal/db/migrations"); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	rt, libraries, err := bootstrap.Build(database, base, orch, logger)
	if err != nil {
		log.Fatalf("bootstrap: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	all, err := libraries.List()
	if err != nil {
		log.Fatalf("list libraries: %v", err)
	}
	for _, l := range all {
		if !l.IsEnabled {
			continue
		}
		if err := rt.RegisterLibrary(ctx, bootstrap.ToDomainLibrary(l)); err != nil {
			logger.Error().Err(err).Str("library", l.Name).Msg("register library failed")
		}
	}

	rt.Start(ctx)
	logger.Info().Int("libraries", len(all)).Msg("orchestrator started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info().Msg("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	rt.Shutdown(shutdownCtx)
}
