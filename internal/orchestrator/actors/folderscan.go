package actors

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"github.com/JustinTDCT/orchestrator/internal/orchestrator/domain"
	"github.com/JustinTDCT/orchestrator/internal/orchestrator/errs"
	"github.com/JustinTDCT/orchestrator/internal/orchestrator/fingerprint"
)

// videoExtensions mirrors the teacher's scanner's extension set
// (internal/scanner/scanner.go videoExtensions) — the subset of files a
// FolderScan will hand downstream to MediaAnalyze.
var videoExtensions = map[string]bool{
	".mp4": true, ".mkv": true, ".avi": true, ".mov": true,
	".m4v": true, ".wmv": true, ".flv": true, ".webm": true,
	".ts": true, ".m2ts": true, ".mpg": true, ".mpeg": true,
}

// FolderScanPayload is the JSON payload of a folder_scan job.
type FolderScanPayload struct {
	LibraryID   uuid.UUID                `json:"library_id"`
	Path        string                   `json:"path"`
	AllowSymlinks bool                   `json:"allow_symlinks"`
	Parents     domain.ParentDescriptors `json:"parents"`
	ListingHash string                   `json:"listing_hash,omitempty"`
	Reason      domain.ScanReason        `json:"reason"`
}

// FolderScan walks one directory (non-recursively for subfolders — each
// subfolder becomes its own follow-up FolderScan job) and enqueues a
// MediaAnalyze job per media file found, plus a nested FolderScan per
// subdirectory. This mirrors the teacher's scanner.go directory walk while
// adopting the listing-hash short-circuit documented in SPEC_FULL.md's
// SUPPLEMENTED FEATURES section (grounded in
// ferrex-core/src/orchestration/actors/folder.rs). Every subdirectory,
// hidden ones included, gets a follow-up scan: the parent descriptors are
// passed down unchanged and do not filter subfolders.
type FolderScan struct {
	Files MediaFileStore
}

func NewFolderScan(files MediaFileStore) *FolderScan {
	return &FolderScan{Files: files}
}

func (a *FolderScan) Execute(ctx context.Context, payload []byte, correlationID uuid.UUID) (Result, error) {
	var p FolderScanPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return Result{}, errs.InvalidInput("FolderScan.decode", err)
	}

	entries, err := os.ReadDir(p.Path)
	if err != nil {
		return Result{}, errs.Transient("FolderScan.readdir", fmt.Errorf("read %s: %w", p.Path, err))
	}

	listingHash := hashListing(entries)
	if p.ListingHash != "" && listingHash == p.ListingHash {
		// Directory contents are identical to the last scan of this path.
		// Short-circuit: no follow-up work needed.
		return Result{}, nil
	}

	var res Result
	for _, e := range entries {
		full := filepath.Join(p.Path, e.Name())

		if e.IsDir() {
			res.Followups = append(res.Followups, domain.EnqueueRequest{
				Kind:          domain.JobFolderScan,
				LibraryID:     p.LibraryID,
				Priority:      domain.PriorityForScanReason(p.Reason),
				CorrelationID: correlationID,
				Payload: FolderScanPayload{
					LibraryID:     p.LibraryID,
					Path:          full,
					AllowSymlinks: p.AllowSymlinks,
					Parents:       narrowParents(p.Parents, e.Name()),
					Reason:        p.Reason,
				},
			})
			continue
		}

		if e.Type()&os.ModeSymlink != 0 && !p.AllowSymlinks {
			continue
		}
		if !videoExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}

		info, err := e.Info()
		if err != nil {
			continue
		}
		fp, err := fingerprint.Compute(full)
		if err != nil {
			continue
		}

		existing, found, err := a.Files.GetByPath(ctx, p.LibraryID, full)
		if err != nil {
			return Result{}, errs.Transient("FolderScan.lookup", err)
		}
		if found && existing.Fingerprint.Equal(fp) {
			// Unchanged file: don't re-enqueue analysis (scenario 5, §8).
			continue
		}

		mf := domain.MediaFile{
			ID:           uuid.New(),
			LibraryID:    p.LibraryID,
			Path:         full,
			Filename:     e.Name(),
			Size:         info.Size(),
			Fingerprint:  fp,
		}
		if found {
			mf.ID = existing.ID
		}
		stored, err := a.Files.Upsert(ctx, mf)
		if err != nil {
			return Result{}, errs.Transient("FolderScan.upsert", err)
		}

		payload := MediaAnalyzePayload{
			LibraryID:   p.LibraryID,
			MediaFileID: stored.ID,
			Path:        full,
			Parents:     p.Parents,
			Reason:      p.Reason,
		}
		res.Followups = append(res.Followups, domain.EnqueueRequest{
			Kind:          domain.JobMediaAnalyze,
			LibraryID:     p.LibraryID,
			Priority:      domain.PriorityForScanReason(p.Reason),
			CorrelationID: correlationID,
			Payload:       payload,
		})
	}

	return res, nil
}

// narrowParents carries the parent-descriptor state one level deeper: a
// subfolder under a known series/season root inherits that knowledge so
// MediaAnalyze never has to re-derive it from the path alone.
func narrowParents(p domain.ParentDescriptors, _ string) domain.ParentDescriptors {
	return p
}

// hashListing fingerprints a directory's contents by name, dir flag, size
// and modtime (milliseconds) so a re-scan of an unchanged directory can skip
// re-enumerating its children.
func hashListing(entries []os.DirEntry) string {
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		var size, mtimeMS int64
		if info, err := e.Info(); err == nil {
			size, mtimeMS = info.Size(), info.ModTime().UnixMilli()
		}
		lines = append(lines, fmt.Sprintf("%s\x00%t\x00%d\x00%d", e.Name(), e.IsDir(), size, mtimeMS))
	}
	sort.Strings(lines)

	h := xxhash.New()
	for _, l := range lines {
		h.Write([]byte(l))
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%016x", h.Sum64())
}
