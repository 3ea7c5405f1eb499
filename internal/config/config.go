package config

import (
	"os"
)

// Config holds the process-wide settings the orchestrator's entrypoint
// needs: where Postgres lives, where ffprobe is, and the TMDB credential
// the MetadataProvider adapter signs requests with.
type Config struct {
	DatabaseURL string
	FFprobePath string
	TMDBAPIKey  string
}

func Load() *Config {
	return &Config{
		DatabaseURL: env("DATABASE_URL", "postgres://cinevault:cinevault@db:5432/cinevault?sslmode=disable"),
		FFprobePath: env("FFPROBE_PATH", "ffprobe"),
		TMDBAPIKey:  env("TMDB_API_KEY", ""),
	}
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
