package actors

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/JustinTDCT/orchestrator/internal/orchestrator/domain"
)

type fakeMediaFileStore struct {
	byPath map[string]domain.MediaFile
}

func newFakeMediaFileStore() *fakeMediaFileStore {
	return &fakeMediaFileStore{byPath: make(map[string]domain.MediaFile)}
}

func (f *fakeMediaFileStore) Upsert(_ context.Context, m domain.MediaFile) (domain.MediaFile, error) {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	f.byPath[m.Path] = m
	return m, nil
}

func (f *fakeMediaFileStore) GetByPath(_ context.Context, _ uuid.UUID, path string) (domain.MediaFile, bool, error) {
	m, ok := f.byPath[path]
	return m, ok, nil
}

func (f *fakeMediaFileStore) ListPathsUnder(_ context.Context, _ uuid.UUID, root string) ([]string, error) {
	var out []string
	for p := range f.byPath {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeMediaFileStore) Delete(_ context.Context, id uuid.UUID) error {
	for p, m := range f.byPath {
		if m.ID == id {
			delete(f.byPath, p)
		}
	}
	return nil
}

func scanPayload(t *testing.T, p FolderScanPayload) []byte {
	t.Helper()
	b, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return b
}

// TestFolderScanEmptyRootProducesNoFollowups grounds scenario 1 of the
// end-to-end scan walk: an empty library root yields no follow-up jobs.
func TestFolderScanEmptyRootProducesNoFollowups(t *testing.T) {
	dir := t.TempDir()
	store := newFakeMediaFileStore()
	a := NewFolderScan(store)
	lib := uuid.New()

	res, err := a.Execute(context.Background(), scanPayload(t, FolderScanPayload{
		LibraryID: lib, Path: dir, Reason: domain.ScanReasonUser,
	}), uuid.New())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(res.Followups) != 0 {
		t.Fatalf("expected no follow-ups for an empty root, got %d", len(res.Followups))
	}
}

// TestFolderScanSingleMovieEnqueuesMediaAnalyze grounds scenario 2: a new
// video file under the root produces exactly one MediaAnalyze follow-up.
func TestFolderScanSingleMovieEnqueuesMediaAnalyze(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "Movie (2020).mkv"), []byte("data"), 0o644); err != nil {
		t.Fatalf("write movie file: %v", err)
	}
	store := newFakeMediaFileStore()
	a := NewFolderScan(store)
	lib := uuid.New()

	res, err := a.Execute(context.Background(), scanPayload(t, FolderScanPayload{
		LibraryID: lib, Path: dir, Reason: domain.ScanReasonUser,
	}), uuid.New())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(res.Followups) != 1 {
		t.Fatalf("expected exactly one follow-up, got %d", len(res.Followups))
	}
	if res.Followups[0].Kind != domain.JobMediaAnalyze {
		t.Fatalf("expected a MediaAnalyze follow-up, got %s", res.Followups[0].Kind)
	}
	if res.Followups[0].Priority != domain.PriorityHigh {
		t.Fatalf("user-triggered scan should enqueue at PriorityHigh, got %v", res.Followups[0].Priority)
	}
}

func TestFolderScanSubdirectoryEnqueuesNestedFolderScan(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "Season 1"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	store := newFakeMediaFileStore()
	a := NewFolderScan(store)

	res, err := a.Execute(context.Background(), scanPayload(t, FolderScanPayload{
		LibraryID: uuid.New(), Path: dir, Reason: domain.ScanReasonPeriodic,
	}), uuid.New())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(res.Followups) != 1 || res.Followups[0].Kind != domain.JobFolderScan {
		t.Fatalf("expected a single nested FolderScan follow-up, got %+v", res.Followups)
	}
}

// TestFolderScanSkipsUnchangedFile grounds scenario 5 (watcher-modify-noop
// precursor): a file whose fingerprint matches the already-stored record is
// not re-enqueued for analysis.
func TestFolderScanSkipsUnchangedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Movie (2020).mkv")
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatalf("write movie file: %v", err)
	}
	store := newFakeMediaFileStore()
	a := NewFolderScan(store)
	lib := uuid.New()
	payload := scanPayload(t, FolderScanPayload{LibraryID: lib, Path: dir, Reason: domain.ScanReasonUser})

	first, err := a.Execute(context.Background(), payload, uuid.New())
	if err != nil {
		t.Fatalf("first Execute: %v", err)
	}
	if len(first.Followups) != 1 {
		t.Fatalf("expected the first scan to enqueue one follow-up, got %d", len(first.Followups))
	}

	second, err := a.Execute(context.Background(), payload, uuid.New())
	if err != nil {
		t.Fatalf("second Execute: %v", err)
	}
	if len(second.Followups) != 0 {
		t.Fatalf("expected the re-scan of an unchanged file to enqueue nothing, got %d", len(second.Followups))
	}
}

// TestFolderScanListingHashShortCircuits confirms an unchanged directory
// listing skips enumeration entirely, even when the caller doesn't already
// know about a contained file.
func TestFolderScanListingHashShortCircuits(t *testing.T) {
	dir := t.TempDir()
	store := newFakeMediaFileStore()
	a := NewFolderScan(store)
	lib := uuid.New()

	empty, err := a.Execute(context.Background(), scanPayload(t, FolderScanPayload{
		LibraryID: lib, Path: dir, Reason: domain.ScanReasonPeriodic,
	}), uuid.New())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	_ = empty

	if err := os.WriteFile(filepath.Join(dir, "Movie (2020).mkv"), []byte("data"), 0o644); err != nil {
		t.Fatalf("write movie file: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	listingHash := hashListing(entries)

	res, err := a.Execute(context.Background(), scanPayload(t, FolderScanPayload{
		LibraryID: lib, Path: dir, Reason: domain.ScanReasonPeriodic, ListingHash: listingHash,
	}), uuid.New())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(res.Followups) != 0 {
		t.Fatalf("expected the matching listing hash to short-circuit enumeration, got %d follow-ups", len(res.Followups))
	}
}
