package actors

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"

	"github.com/JustinTDCT/orchestrator/internal/orchestrator/domain"
	"github.com/JustinTDCT/orchestrator/internal/orchestrator/errs"
)

type fakeImageStore struct {
	cached map[string][]byte
}

func newFakeImageStore() *fakeImageStore {
	return &fakeImageStore{cached: make(map[string][]byte)}
}

func (f *fakeImageStore) Has(_ context.Context, cacheKey string) (bool, error) {
	_, ok := f.cached[cacheKey]
	return ok, nil
}

func (f *fakeImageStore) Put(_ context.Context, cacheKey string, data []byte) error {
	f.cached[cacheKey] = data
	return nil
}

type fakeImageFetcher struct {
	data []byte
	err  error
}

func (f *fakeImageFetcher) Fetch(_ context.Context, _ domain.ImageAsset) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.data, nil
}

func imageFetchPayload(t *testing.T, p ImageFetchPayload) []byte {
	t.Helper()
	b, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

func TestImageFetchSkipsAlreadyCachedKey(t *testing.T) {
	images := newFakeImageStore()
	images.cached["poster:w500:123"] = []byte("existing")
	fetcher := &fakeImageFetcher{data: []byte("would overwrite")}
	a := NewImageFetch(images, fetcher)

	_, err := a.Execute(context.Background(), imageFetchPayload(t, ImageFetchPayload{
		Asset: domain.ImageAsset{CacheKey: "poster:w500:123"},
	}), uuid.New())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if string(images.cached["poster:w500:123"]) != "existing" {
		t.Fatal("expected a cache hit to leave the stored bytes untouched")
	}
}

func TestImageFetchStoresNewAsset(t *testing.T) {
	images := newFakeImageStore()
	fetcher := &fakeImageFetcher{data: []byte("poster bytes")}
	a := NewImageFetch(images, fetcher)

	_, err := a.Execute(context.Background(), imageFetchPayload(t, ImageFetchPayload{
		Asset: domain.ImageAsset{CacheKey: "poster:w500:456"},
	}), uuid.New())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if string(images.cached["poster:w500:456"]) != "poster bytes" {
		t.Fatal("expected the fetched bytes to be stored under the cache key")
	}
}

func TestImageFetchMapsProviderNotFound(t *testing.T) {
	images := newFakeImageStore()
	fetcher := &fakeImageFetcher{err: ErrProviderNotFound{}}
	a := NewImageFetch(images, fetcher)

	_, err := a.Execute(context.Background(), imageFetchPayload(t, ImageFetchPayload{
		Asset: domain.ImageAsset{CacheKey: "poster:w500:789"},
	}), uuid.New())
	if !errs.Is(err, errs.KindNotFound) {
		t.Fatalf("expected a NotFound error, got %v", err)
	}
}

func TestImageFetchRejectsEmptyCacheKey(t *testing.T) {
	a := NewImageFetch(newFakeImageStore(), &fakeImageFetcher{})
	_, err := a.Execute(context.Background(), imageFetchPayload(t, ImageFetchPayload{}), uuid.New())
	if !errs.Is(err, errs.KindInvalidInput) {
		t.Fatalf("expected an InvalidInput error for a missing cache key, got %v", err)
	}
}
