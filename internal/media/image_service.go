package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/questhold/questhold/internal/library/domain"
	pkgerrors "github.com/questhold/questhold/pkg/errors"
	"github.com/questhold/questhold/pkg/interfaces"
)

// Download outcomes reported to the observer.
const (
	ResultDownloaded = "downloaded"
	ResultReused     = "reused"
	ResultFailed     = "failed"
)

const (
	// downloadTimeout bounds a shared download once it no longer follows
	// the context of the caller that started it.
	downloadTimeout = 2 * time.Minute
	// acquireAttempts bounds retries when an image is deleted between being
	// found and being held.
	acquireAttempts = 3
)

// ImageStore persists image rows.
type ImageStore interface {
	GetImage(ctx context.Context, id uuid.UUID) (*domain.Image, error)
	FindImageByURL(ctx context.Context, url string) (*domain.Image, error)
	CreateImageIfAbsent(ctx context.Context, image *domain.Image) (*domain.Image, bool, error)
	CountImageReferences(ctx context.Context, id uuid.UUID) (int64, error)
	DeleteImage(ctx context.Context, id uuid.UUID) error
}

// ImageService downloads images once per URL and removes them when no game
// references them any more. Every image returned by DownloadIfNew is held
// until the caller releases it, and held images are never deleted, so an
// image acquired for a game that is not committed yet survives concurrent
// cleanups.
type ImageService struct {
	store    ImageStore
	storage  Storage
	fetcher  Fetcher
	group    singleflight.Group
	logger   interfaces.Logger
	observer func(result string)

	mu    sync.Mutex
	holds map[uuid.UUID]int
}

// NewImageService creates a new image service
func NewImageService(store ImageStore, storage Storage, fetcher Fetcher, logger interfaces.Logger) *ImageService {
	return &ImageService{
		store:   store,
		storage: storage,
		fetcher: fetcher,
		logger:  logger,
		holds:   make(map[uuid.UUID]int),
	}
}

// SetObserver installs a hook called with the outcome of every download.
func (s *ImageService) SetObserver(observer func(result string)) {
	s.observer = observer
}

func (s *ImageService) observe(result string) {
	if s.observer != nil {
		s.observer(result)
	}
}

// DownloadIfNew returns the persisted image for ref.OriginalURL, downloading
// and storing it first when no usable copy exists. Concurrent calls for one
// URL share a single download; a row inserted concurrently by another process
// wins and the local copy is discarded. The returned image is held until
// Release is called with its id.
func (s *ImageService) DownloadIfNew(ctx context.Context, ref *domain.Image) (*domain.Image, error) {
	if ref == nil || ref.OriginalURL == "" {
		return nil, pkgerrors.BadRequest("image reference without URL")
	}

	for attempt := 1; ; attempt++ {
		image, err := s.shared(ctx, ref)
		if err != nil {
			return nil, err
		}

		s.hold(image.ID)
		_, err = s.store.GetImage(ctx, image.ID)
		if err == nil {
			return image, nil
		}
		s.Release(image.ID)
		if !pkgerrors.IsNotFound(err) || attempt == acquireAttempts {
			return nil, fmt.Errorf("failed to hold image %s: %w", image.ID, err)
		}
		s.logger.Debug("Image deleted before it could be held, acquiring again",
			interfaces.String("image_id", image.ID.String()),
			interfaces.String("url", ref.OriginalURL))
	}
}

// shared runs one download per URL. The download outlives a cancelled
// caller so the other callers waiting on it are not failed with it.
func (s *ImageService) shared(ctx context.Context, ref *domain.Image) (*domain.Image, error) {
	ch := s.group.DoChan(ref.OriginalURL, func() (interface{}, error) {
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), downloadTimeout)
		defer cancel()
		return s.download(dctx, ref)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		image := *res.Val.(*domain.Image)
		return &image, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *ImageService) hold(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.holds[id]++
}

// Release drops one hold taken by DownloadIfNew. Once an image is no longer
// held only game references keep it from DeleteImageIfUnused.
func (s *ImageService) Release(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.holds[id] <= 1 {
		delete(s.holds, id)
		return
	}
	s.holds[id]--
}

func (s *ImageService) download(ctx context.Context, ref *domain.Image) (*domain.Image, error) {
	existing, err := s.store.FindImageByURL(ctx, ref.OriginalURL)
	switch {
	case err == nil:
		ok, err := s.storage.Exists(ctx, existing.ContentID)
		if err != nil {
			return nil, fmt.Errorf("failed to check stored image: %w", err)
		}
		if ok {
			s.observe(ResultReused)
			return existing, nil
		}
		return s.restore(ctx, existing)
	case !pkgerrors.IsNotFound(err):
		return nil, err
	}

	fetched, err := s.fetcher.Fetch(ctx, ref.OriginalURL)
	if err != nil {
		s.observe(ResultFailed)
		return nil, err
	}

	key := uuid.NewString()
	if err := s.storage.Store(ctx, key, bytes.NewReader(fetched.Data)); err != nil {
		s.observe(ResultFailed)
		return nil, fmt.Errorf("failed to store image: %w", err)
	}

	image := &domain.Image{
		OriginalURL: ref.OriginalURL,
		Type:        ref.Type,
		ContentID:   key,
		MimeType:    fetched.MimeType,
		FileSize:    int64(len(fetched.Data)),
	}
	stored, created, err := s.store.CreateImageIfAbsent(ctx, image)
	if err != nil || !created {
		s.discard(ctx, key)
	}
	if err != nil {
		s.observe(ResultFailed)
		return nil, err
	}
	if !created {
		s.observe(ResultReused)
		return stored, nil
	}

	s.observe(ResultDownloaded)
	s.logger.Debug("Stored new image",
		interfaces.String("image_id", stored.ID.String()),
		interfaces.String("url", stored.OriginalURL))
	return stored, nil
}

// restore re-downloads content for an image row whose stored copy vanished.
func (s *ImageService) restore(ctx context.Context, image *domain.Image) (*domain.Image, error) {
	s.logger.Warn("Stored image content missing, downloading again",
		interfaces.String("image_id", image.ID.String()),
		interfaces.String("url", image.OriginalURL))

	fetched, err := s.fetcher.Fetch(ctx, image.OriginalURL)
	if err != nil {
		s.observe(ResultFailed)
		return nil, err
	}
	if err := s.storage.Store(ctx, image.ContentID, bytes.NewReader(fetched.Data)); err != nil {
		s.observe(ResultFailed)
		return nil, fmt.Errorf("failed to store image: %w", err)
	}
	s.observe(ResultDownloaded)
	return image, nil
}

func (s *ImageService) discard(ctx context.Context, key string) {
	if err := s.storage.Delete(ctx, key); err != nil && !errors.Is(err, ErrContentNotFound) {
		s.logger.Warn("Failed to discard stored image",
			interfaces.String("content_id", key),
			interfaces.Error(err))
	}
}

// DeleteImageIfUnused deletes the image row and its content when no game
// references it and nobody holds it. It reports whether the image was
// deleted.
func (s *ImageService) DeleteImageIfUnused(ctx context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.holds[id] > 0 {
		return false, nil
	}

	refs, err := s.store.CountImageReferences(ctx, id)
	if err != nil {
		return false, err
	}
	if refs > 0 {
		return false, nil
	}

	image, err := s.store.GetImage(ctx, id)
	if err != nil {
		if pkgerrors.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}

	if err := s.store.DeleteImage(ctx, id); err != nil {
		if pkgerrors.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	s.discard(ctx, image.ContentID)

	s.logger.Debug("Deleted unused image",
		interfaces.String("image_id", id.String()),
		interfaces.String("url", image.OriginalURL))
	return true, nil
}

// Open returns the stored content of image.
func (s *ImageService) Open(ctx context.Context, image *domain.Image) (io.ReadCloser, error) {
	if image.ContentID == "" {
		return nil, ErrContentNotFound
	}
	return s.storage.Retrieve(ctx, image.ContentID)
}
