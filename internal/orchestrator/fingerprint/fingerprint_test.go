package fingerprint

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	return path
}

func TestComputeIsDeterministicForUnchangedFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "movie.mkv", []byte("some media bytes"))

	a, err := Compute(path)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	b, err := Compute(path)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if !a.Equal(b) {
		t.Fatalf("expected two computations of an unchanged file to be equal fingerprints")
	}
	if a.WeakHash == "" {
		t.Fatal("expected a non-empty weak hash")
	}
}

func TestComputeDetectsSizeChange(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "movie.mkv", []byte("short"))
	a, err := Compute(path)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	writeFile(t, dir, "movie.mkv", []byte("a much longer replacement payload"))
	b, err := Compute(path)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if a.Equal(b) {
		t.Fatal("expected a size change to produce an unequal fingerprint")
	}
}

// TestComputeDetectsContentChangeUnderSameSizeAndMtime grounds the weak-hash
// fallback's purpose: same-size content swaps are still caught via the
// sampled hash even when size alone wouldn't distinguish them.
func TestComputeDetectsContentChangeUnderSameSizeAndMtime(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "movie.mkv", []byte("AAAAAAAAAA"))
	a, err := Compute(path)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	writeFile(t, dir, "movie.mkv", []byte("BBBBBBBBBB"))
	if err := os.Chtimes(path, a.ModTime, a.ModTime); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	b, err := Compute(path)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if a.Size != b.Size {
		t.Fatalf("test setup invalid: sizes differ (%d vs %d)", a.Size, b.Size)
	}
	if a.WeakHash == b.WeakHash {
		t.Fatal("expected weak hash to differ for different content of the same size")
	}
}

func TestComputeMissingFileErrors(t *testing.T) {
	if _, err := Compute(filepath.Join(t.TempDir(), "does-not-exist.mkv")); err == nil {
		t.Fatal("expected an error computing a fingerprint for a nonexistent path")
	}
}

// TestWeakHashHandlesFilesSmallerThanSampleWindow exercises the whole-file
// fallback path (file smaller than 2x the head/tail sample size).
func TestWeakHashHandlesFilesSmallerThanSampleWindow(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "tiny.mkv", []byte("x"))
	hash, err := weakHash(path, 1)
	if err != nil {
		t.Fatalf("weakHash: %v", err)
	}
	if hash == "" {
		t.Fatal("expected a non-empty hash for a tiny file")
	}
}
