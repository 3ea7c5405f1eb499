package actors

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/JustinTDCT/orchestrator/internal/orchestrator/domain"
	"github.com/JustinTDCT/orchestrator/internal/orchestrator/errs"
)

// IndexUpsertPayload is the JSON payload of an index_upsert job. Exactly one
// of MovieID/SeriesID is set, matching the single reference this job was
// raised for.
type IndexUpsertPayload struct {
	LibraryID uuid.UUID  `json:"library_id"`
	MovieID   *uuid.UUID `json:"movie_id,omitempty"`
	SeriesID  *uuid.UUID `json:"series_id,omitempty"`
}

// Indexer is the narrow slice of IndicesEngine that IndexUpsert drives:
// recomputing dense sort positions after one subject changed.
// indices.Engine answers ReindexMovie by rebuilding the positions of every
// movie in that movie's library; its ReindexSeries writes nothing.
type Indexer interface {
	ReindexMovie(ctx context.Context, movieID uuid.UUID) error
	ReindexSeries(ctx context.Context, seriesID uuid.UUID) error
}

// IndexUpsert asks Indexer to recompute dense sort positions after the one
// subject touched by the triggering MetadataEnrich, and republishes a
// DomainEvent so the
// (out-of-scope) UI layer can invalidate cached listings.
type IndexUpsert struct {
	Indexer Indexer
}

func NewIndexUpsert(indexer Indexer) *IndexUpsert {
	return &IndexUpsert{Indexer: indexer}
}

func (a *IndexUpsert) Execute(ctx context.Context, payload []byte, correlationID uuid.UUID) (Result, error) {
	var p IndexUpsertPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return Result{}, errs.InvalidInput("IndexUpsert.decode", err)
	}

	var ev domain.DomainEvent
	switch {
	case p.MovieID != nil:
		if err := a.Indexer.ReindexMovie(ctx, *p.MovieID); err != nil {
			return Result{}, errs.Transient("IndexUpsert.movie", err)
		}
		ev = domain.DomainEvent{Kind: domain.EventMovieUpdated, LibraryID: p.LibraryID, CorrelationID: correlationID, SubjectID: *p.MovieID}
	case p.SeriesID != nil:
		if err := a.Indexer.ReindexSeries(ctx, *p.SeriesID); err != nil {
			return Result{}, errs.Transient("IndexUpsert.series", err)
		}
		ev = domain.DomainEvent{Kind: domain.EventSeriesUpdated, LibraryID: p.LibraryID, CorrelationID: correlationID, SubjectID: *p.SeriesID}
	default:
		return Result{}, errs.InvalidInput("IndexUpsert.subject", nil)
	}

	return Result{DomainEvents: []domain.DomainEvent{ev}}, nil
}
