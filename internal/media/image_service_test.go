package media_test

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/suite"

	"github.com/questhold/questhold/internal/library/domain"
	"github.com/questhold/questhold/internal/library/repository"
	"github.com/questhold/questhold/internal/media"
	"github.com/questhold/questhold/pkg/logger"
	"github.com/questhold/questhold/test/testutil"
)

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 32)...)

type ImageServiceTestSuite struct {
	suite.Suite

	ctx       context.Context
	repo      *repository.GormRepository
	storage   *media.LocalStorage
	storeDir  string
	transport *httpmock.MockTransport
	fetcher   *media.HTTPFetcher
	service   *media.ImageService
	results   []string
	mu        sync.Mutex
}

func (suite *ImageServiceTestSuite) SetupTest() {
	suite.ctx = context.Background()
	suite.repo = repository.NewGormRepository(testutil.SetupSQLite(suite.T()))

	suite.storeDir = suite.T().TempDir()
	var err error
	suite.storage, err = media.NewLocalStorage(suite.storeDir, logger.NewNoopLogger())
	suite.Require().NoError(err)

	suite.transport = httpmock.NewMockTransport()
	suite.fetcher = media.NewHTTPFetcher(media.FetcherConfig{UserAgent: "questhold-test"}, logger.NewNoopLogger()).
		WithClient(&http.Client{Transport: suite.transport})

	suite.service = media.NewImageService(suite.repo, suite.storage, suite.fetcher, logger.NewNoopLogger())
	suite.results = nil
	suite.service.SetObserver(func(result string) {
		suite.mu.Lock()
		defer suite.mu.Unlock()
		suite.results = append(suite.results, result)
	})
}

func (suite *ImageServiceTestSuite) storedFiles() []string {
	entries, err := os.ReadDir(suite.storeDir)
	suite.Require().NoError(err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func (suite *ImageServiceTestSuite) TestDownloadIfNew_DownloadsOnce() {
	// Arrange
	url := "https://images.example/cover.png"
	suite.transport.RegisterResponder(http.MethodGet, url, httpmock.NewBytesResponder(http.StatusOK, pngBytes))
	ref := &domain.Image{OriginalURL: url, Type: domain.ImageTypeCover}

	// Act
	first, err1 := suite.service.DownloadIfNew(suite.ctx, ref)
	second, err2 := suite.service.DownloadIfNew(suite.ctx, ref)

	// Assert
	suite.Require().NoError(err1)
	suite.Require().NoError(err2)
	suite.Equal(first.ID, second.ID)
	suite.Equal("image/png", first.MimeType)
	suite.Equal(int64(len(pngBytes)), first.FileSize)
	suite.Equal(1, suite.transport.GetTotalCallCount())
	suite.Equal([]string{media.ResultDownloaded, media.ResultReused}, suite.results)
	suite.Equal([]string{first.ContentID}, suite.storedFiles())

	rc, err := suite.service.Open(suite.ctx, first)
	suite.Require().NoError(err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	suite.Require().NoError(err)
	suite.Equal(pngBytes, data)
}

func (suite *ImageServiceTestSuite) TestDownloadIfNew_ConcurrentCallersShareOneRow() {
	// Arrange
	url := "https://images.example/shared.png"
	suite.transport.RegisterResponder(http.MethodGet, url, httpmock.NewBytesResponder(http.StatusOK, pngBytes))

	// Act
	var wg sync.WaitGroup
	ids := make([]uuid.UUID, 8)
	errs := make([]error, 8)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			img, err := suite.service.DownloadIfNew(suite.ctx, &domain.Image{OriginalURL: url, Type: domain.ImageTypeScreenshot})
			errs[i] = err
			if img != nil {
				ids[i] = img.ID
			}
		}(i)
	}
	wg.Wait()

	// Assert
	for i := range ids {
		suite.Require().NoError(errs[i])
		suite.Equal(ids[0], ids[i])
	}
	suite.Len(suite.storedFiles(), 1)

	stored, err := suite.repo.FindImageByURL(suite.ctx, url)
	suite.Require().NoError(err)
	suite.Equal(ids[0], stored.ID)
}

func (suite *ImageServiceTestSuite) TestDownloadIfNew_RejectsNonImage() {
	// Arrange
	url := "https://images.example/page.html"
	suite.transport.RegisterResponder(http.MethodGet, url, httpmock.NewStringResponder(http.StatusOK, "<html><body>nope</body></html>"))

	// Act
	img, err := suite.service.DownloadIfNew(suite.ctx, &domain.Image{OriginalURL: url})

	// Assert
	suite.Error(err)
	suite.Nil(img)
	suite.Empty(suite.storedFiles())
	suite.Equal([]string{media.ResultFailed}, suite.results)
}

func (suite *ImageServiceTestSuite) TestDownloadIfNew_HTTPError() {
	url := "https://images.example/missing.png"
	suite.transport.RegisterResponder(http.MethodGet, url, httpmock.NewStringResponder(http.StatusNotFound, ""))

	_, err := suite.service.DownloadIfNew(suite.ctx, &domain.Image{OriginalURL: url})

	suite.Error(err)
	suite.Empty(suite.storedFiles())
}

func (suite *ImageServiceTestSuite) TestDownloadIfNew_RestoresMissingContent() {
	// Arrange
	url := "https://images.example/restored.png"
	suite.transport.RegisterResponder(http.MethodGet, url, httpmock.NewBytesResponder(http.StatusOK, pngBytes))
	first, err := suite.service.DownloadIfNew(suite.ctx, &domain.Image{OriginalURL: url})
	suite.Require().NoError(err)
	suite.Require().NoError(os.Remove(filepath.Join(suite.storeDir, first.ContentID)))

	// Act
	again, err := suite.service.DownloadIfNew(suite.ctx, &domain.Image{OriginalURL: url})

	// Assert
	suite.Require().NoError(err)
	suite.Equal(first.ID, again.ID)
	suite.Equal(2, suite.transport.GetTotalCallCount())
	suite.Equal([]string{first.ContentID}, suite.storedFiles())
}

func (suite *ImageServiceTestSuite) TestDownloadIfNew_RequiresURL() {
	_, err := suite.service.DownloadIfNew(suite.ctx, &domain.Image{})
	suite.Error(err)
}

func (suite *ImageServiceTestSuite) TestDeleteImageIfUnused() {
	// Arrange
	suite.transport.RegisterResponder(http.MethodGet, "https://images.example/a.png", httpmock.NewBytesResponder(http.StatusOK, pngBytes))
	suite.transport.RegisterResponder(http.MethodGet, "https://images.example/b.png", httpmock.NewBytesResponder(http.StatusOK, pngBytes))
	used, err := suite.service.DownloadIfNew(suite.ctx, &domain.Image{OriginalURL: "https://images.example/a.png"})
	suite.Require().NoError(err)
	unused, err := suite.service.DownloadIfNew(suite.ctx, &domain.Image{OriginalURL: "https://images.example/b.png"})
	suite.Require().NoError(err)
	suite.service.Release(used.ID)
	suite.service.Release(unused.ID)

	library := testutil.CreateTestLibrary("PC", "/games")
	suite.Require().NoError(suite.repo.CreateLibrary(suite.ctx, library))
	game := testutil.CreateTestGame(library.ID, "Doom", "/games/Doom")
	game.CoverImage = used
	suite.Require().NoError(suite.repo.CreateGame(suite.ctx, game))

	// Act
	deletedUsed, errUsed := suite.service.DeleteImageIfUnused(suite.ctx, used.ID)
	deletedUnused, errUnused := suite.service.DeleteImageIfUnused(suite.ctx, unused.ID)
	deletedAgain, errAgain := suite.service.DeleteImageIfUnused(suite.ctx, unused.ID)

	// Assert
	suite.NoError(errUsed)
	suite.NoError(errUnused)
	suite.NoError(errAgain)
	suite.False(deletedUsed)
	suite.True(deletedUnused)
	suite.False(deletedAgain)
	suite.Equal([]string{used.ContentID}, suite.storedFiles())
}

func (suite *ImageServiceTestSuite) TestDeleteImageIfUnused_KeepsHeldImage() {
	// Arrange
	url := "https://images.example/held.png"
	suite.transport.RegisterResponder(http.MethodGet, url, httpmock.NewBytesResponder(http.StatusOK, pngBytes))
	first, err := suite.service.DownloadIfNew(suite.ctx, &domain.Image{OriginalURL: url})
	suite.Require().NoError(err)
	second, err := suite.service.DownloadIfNew(suite.ctx, &domain.Image{OriginalURL: url})
	suite.Require().NoError(err)
	suite.Require().Equal(first.ID, second.ID)

	// Act
	whileHeldTwice, err1 := suite.service.DeleteImageIfUnused(suite.ctx, first.ID)
	suite.service.Release(first.ID)
	whileHeldOnce, err2 := suite.service.DeleteImageIfUnused(suite.ctx, first.ID)
	suite.service.Release(second.ID)
	afterRelease, err3 := suite.service.DeleteImageIfUnused(suite.ctx, first.ID)

	// Assert
	suite.NoError(err1)
	suite.NoError(err2)
	suite.NoError(err3)
	suite.False(whileHeldTwice)
	suite.False(whileHeldOnce)
	suite.True(afterRelease)
	suite.Empty(suite.storedFiles())
}

func (suite *ImageServiceTestSuite) TestDownloadIfNew_AcquiresAgainWhenDeletedBeforeHeld() {
	// Arrange
	url := "https://images.example/contested.png"
	suite.transport.RegisterResponder(http.MethodGet, url, httpmock.NewBytesResponder(http.StatusOK, pngBytes))
	store := &deletingStore{GormRepository: suite.repo, remaining: 1}
	service := media.NewImageService(store, suite.storage, suite.fetcher, logger.NewNoopLogger())

	// Act
	image, err := service.DownloadIfNew(suite.ctx, &domain.Image{OriginalURL: url})

	// Assert
	suite.Require().NoError(err)
	suite.Equal(2, suite.transport.GetTotalCallCount())
	stored, err := suite.repo.FindImageByURL(suite.ctx, url)
	suite.Require().NoError(err)
	suite.Equal(stored.ID, image.ID)

	deleted, err := service.DeleteImageIfUnused(suite.ctx, image.ID)
	suite.NoError(err)
	suite.False(deleted)
}

func (suite *ImageServiceTestSuite) TestDownloadIfNew_CancelledCallerLeavesDownloadRunning() {
	// Arrange
	url := "https://images.example/slow.png"
	started := make(chan struct{})
	unblock := make(chan struct{})
	suite.transport.RegisterResponder(http.MethodGet, url, func(req *http.Request) (*http.Response, error) {
		close(started)
		<-unblock
		return httpmock.NewBytesResponse(http.StatusOK, pngBytes), nil
	})

	ctx, cancel := context.WithCancel(suite.ctx)
	firstErr := make(chan error, 1)
	go func() {
		_, err := suite.service.DownloadIfNew(ctx, &domain.Image{OriginalURL: url})
		firstErr <- err
	}()
	<-started

	// Act
	cancel()
	cancelledErr := <-firstErr
	waiter := make(chan *domain.Image, 1)
	go func() {
		image, err := suite.service.DownloadIfNew(suite.ctx, &domain.Image{OriginalURL: url})
		suite.NoError(err)
		waiter <- image
	}()
	close(unblock)
	image := <-waiter

	// Assert
	suite.ErrorIs(cancelledErr, context.Canceled)
	suite.Require().NotNil(image)
	suite.Equal(1, suite.transport.GetTotalCallCount())
	stored, err := suite.repo.FindImageByURL(suite.ctx, url)
	suite.Require().NoError(err)
	suite.Equal(stored.ID, image.ID)
}

// deletingStore deletes an image row right before it is read back, as a
// concurrent cleanup would, for the given number of reads.
type deletingStore struct {
	*repository.GormRepository
	remaining int
}

func (s *deletingStore) GetImage(ctx context.Context, id uuid.UUID) (*domain.Image, error) {
	if s.remaining > 0 {
		s.remaining--
		if err := s.GormRepository.DeleteImage(ctx, id); err != nil {
			return nil, err
		}
	}
	return s.GormRepository.GetImage(ctx, id)
}

func TestImageServiceSuite(t *testing.T) {
	suite.Run(t, new(ImageServiceTestSuite))
}

func TestLocalStorage_RejectsEscapingKeys(t *testing.T) {
	storage, err := media.NewLocalStorage(t.TempDir(), logger.NewNoopLogger())
	if err != nil {
		t.Fatal(err)
	}

	for _, key := range []string{"../outside", "/etc/passwd", ""} {
		if _, err := storage.Exists(context.Background(), key); err == nil {
			t.Errorf("expected key %q to be rejected", key)
		}
	}
}
