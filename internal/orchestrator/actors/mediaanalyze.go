package actors

import (
	"context"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/JustinTDCT/orchestrator/internal/orchestrator/domain"
	"github.com/JustinTDCT/orchestrator/internal/orchestrator/errs"
)

// MediaAnalyzePayload is the JSON payload of a media_analyze job.
type MediaAnalyzePayload struct {
	LibraryID   uuid.UUID                `json:"library_id"`
	MediaFileID uuid.UUID                `json:"media_file_id"`
	Path        string                   `json:"path"`
	Parents     domain.ParentDescriptors `json:"parents"`
	Reason      domain.ScanReason        `json:"reason"`
}

// parsedTitle is the minimal filename-derived identity MediaAnalyze hands
// to MetadataEnrich, grounded in the teacher's movieFilenamePattern /
// tvShowFilenamePattern (internal/scanner/filename_parser.go), trimmed to
// the fields this pipeline actually needs downstream.
type parsedTitle struct {
	Title         string
	Year          *int
	SeasonNumber  int
	EpisodeNumber int
	IsEpisode     bool
}

var (
	movieNamePattern = regexp.MustCompile(`(?i)^(.+?)\s*\((\d{4})\)`)
	episodeNamePattern = regexp.MustCompile(`(?i)^(.+?)[.\s_-]+[Ss](\d{1,2})[Ee](\d{1,3})`)
)

func parseFilenameTitle(filename string) parsedTitle {
	base := strings.TrimSuffix(filename, pathExt(filename))

	if m := episodeNamePattern.FindStringSubmatch(base); m != nil {
		season, _ := strconv.Atoi(m[2])
		episode, _ := strconv.Atoi(m[3])
		return parsedTitle{
			Title:         cleanTitle(m[1]),
			SeasonNumber:  season,
			EpisodeNumber: episode,
			IsEpisode:     true,
		}
	}
	if m := movieNamePattern.FindStringSubmatch(base); m != nil {
		year, _ := strconv.Atoi(m[2])
		return parsedTitle{Title: cleanTitle(m[1]), Year: &year}
	}
	return parsedTitle{Title: cleanTitle(base)}
}

func cleanTitle(s string) string {
	s = strings.ReplaceAll(s, ".", " ")
	s = strings.ReplaceAll(s, "_", " ")
	return strings.TrimSpace(s)
}

func pathExt(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i:]
	}
	return ""
}

// MediaAnalyze probes a media file's technical characteristics and hands
// off to MetadataEnrich with the filename-derived identity it needs to
// search the provider.
type MediaAnalyze struct {
	Files  MediaFileStore
	Status ProcessingStatusStore
	Prober FileProber
}

func NewMediaAnalyze(files MediaFileStore, status ProcessingStatusStore, prober FileProber) *MediaAnalyze {
	return &MediaAnalyze{Files: files, Status: status, Prober: prober}
}

func (a *MediaAnalyze) Execute(ctx context.Context, payload []byte, correlationID uuid.UUID) (Result, error) {
	var p MediaAnalyzePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return Result{}, errs.InvalidInput("MediaAnalyze.decode", err)
	}

	tech, err := a.Prober.Probe(ctx, p.Path)
	if err != nil {
		return Result{}, errs.Transient("MediaAnalyze.probe", err)
	}

	existing, found, err := a.Files.GetByPath(ctx, p.LibraryID, p.Path)
	if err != nil {
		return Result{}, errs.Transient("MediaAnalyze.lookup", err)
	}
	mf := domain.MediaFile{ID: p.MediaFileID, LibraryID: p.LibraryID, Path: p.Path}
	if found {
		mf = existing
	}
	mf.TechnicalMetadata = &tech
	if _, err := a.Files.Upsert(ctx, mf); err != nil {
		return Result{}, errs.Transient("MediaAnalyze.store", err)
	}

	status, err := a.Status.Get(ctx, p.MediaFileID)
	if err != nil {
		return Result{}, errs.Transient("MediaAnalyze.status.get", err)
	}
	status.MediaFileID = p.MediaFileID
	status.FileAnalyzed = true
	if err := a.Status.Upsert(ctx, status); err != nil {
		return Result{}, errs.Transient("MediaAnalyze.status.upsert", err)
	}

	parsed := parseFilenameTitle(mf.Filename)
	enrich := MetadataEnrichPayload{
		LibraryID:     p.LibraryID,
		MediaFileID:   p.MediaFileID,
		Title:         parsed.Title,
		Year:          parsed.Year,
		SeasonNumber:  parsed.SeasonNumber,
		EpisodeNumber: parsed.EpisodeNumber,
		IsEpisode:     parsed.IsEpisode,
		Parents:       p.Parents,
		Reason:        p.Reason,
	}

	return Result{
		Followups: []domain.EnqueueRequest{{
			Kind:          domain.JobMetadataEnrich,
			LibraryID:     p.LibraryID,
			Priority:      domain.PriorityForScanReason(p.Reason),
			CorrelationID: correlationID,
			Payload:       enrich,
		}},
	}, nil
}
