package actors

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"

	"github.com/JustinTDCT/orchestrator/internal/orchestrator/domain"
	"github.com/JustinTDCT/orchestrator/internal/orchestrator/errs"
)

// ImageFetchPayload is the JSON payload of an image_fetch job.
type ImageFetchPayload struct {
	LibraryID uuid.UUID         `json:"library_id"`
	Asset     domain.ImageAsset `json:"asset"`
}

// ImageFetch downloads one image variant and stores it under its cache key,
// skipping the download entirely when that key is already cached — the
// common case on a re-scan, since poster/backdrop URLs rarely change
// between provider refreshes.
type ImageFetch struct {
	Images  ImageStore
	Fetcher ImageFetcher
}

func NewImageFetch(images ImageStore, fetcher ImageFetcher) *ImageFetch {
	return &ImageFetch{Images: images, Fetcher: fetcher}
}

func (a *ImageFetch) Execute(ctx context.Context, payload []byte, correlationID uuid.UUID) (Result, error) {
	var p ImageFetchPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return Result{}, errs.InvalidInput("ImageFetch.decode", err)
	}

	if p.Asset.CacheKey == "" {
		return Result{}, errs.InvalidInput("ImageFetch.cachekey", nil)
	}

	has, err := a.Images.Has(ctx, p.Asset.CacheKey)
	if err != nil {
		return Result{}, errs.Transient("ImageFetch.has", err)
	}
	if has {
		return Result{}, nil
	}

	data, err := a.Fetcher.Fetch(ctx, p.Asset)
	if err != nil {
		var notFound ErrProviderNotFound
		if errors.As(err, &notFound) {
			return Result{}, errs.NotFound("ImageFetch.fetch", err)
		}
		return Result{}, errs.Transient("ImageFetch.fetch", err)
	}

	if err := a.Images.Put(ctx, p.Asset.CacheKey, data); err != nil {
		return Result{}, errs.Transient("ImageFetch.store", err)
	}

	return Result{}, nil
}
