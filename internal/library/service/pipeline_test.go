package service_test

import (
	"context"
	"net/http"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/questhold/questhold/internal/library/domain"
	"github.com/questhold/questhold/internal/library/repository"
	"github.com/questhold/questhold/internal/library/service"
	"github.com/questhold/questhold/internal/media"
	"github.com/questhold/questhold/pkg/events"
	"github.com/questhold/questhold/pkg/interfaces"
	"github.com/questhold/questhold/pkg/logger"
	"github.com/questhold/questhold/pkg/utils"
	"github.com/questhold/questhold/test/testutil"
)

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 32)...)

// fakeProvider answers from a title-keyed table. When gate is set, every
// call signals entered and then waits for gate to close.
type fakeProvider struct {
	name     string
	priority int

	mu         sync.Mutex
	candidates map[string]*domain.MetadataCandidate
	titles     []string

	entered chan struct{}
	gate    chan struct{}
}

func newFakeProvider(name string) *fakeProvider {
	return &fakeProvider{name: name, priority: 10, candidates: map[string]*domain.MetadataCandidate{}}
}

func (p *fakeProvider) Name() string  { return p.name }
func (p *fakeProvider) Priority() int { return p.priority }

func (p *fakeProvider) set(title string, candidate *domain.MetadataCandidate) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.candidates[title] = candidate
}

func (p *fakeProvider) lookedUp() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string{}, p.titles...)
}

func (p *fakeProvider) FetchMetadata(ctx context.Context, title string) (*domain.MetadataCandidate, error) {
	if p.gate != nil {
		select {
		case p.entered <- struct{}{}:
		default:
		}
		<-p.gate
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.titles = append(p.titles, title)
	if c, ok := p.candidates[title]; ok {
		copied := *c
		return &copied, nil
	}
	return nil, nil
}

func (p *fakeProvider) FetchByID(ctx context.Context, originalID string) (*domain.MetadataCandidate, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range p.candidates {
		if c.OriginalID == originalID {
			copied := *c
			return &copied, nil
		}
	}
	return nil, nil
}

func candidate(id, title string, screenshots ...string) *domain.MetadataCandidate {
	return &domain.MetadataCandidate{
		OriginalID:     id,
		Title:          title,
		Description:    "About " + title,
		CoverURLs:      []string{"https://img.test/" + id + "/cover.png"},
		ScreenshotURLs: screenshots,
		Genres:         []string{"Adventure"},
	}
}

// pipeline wires the real matcher, image service, processor and scan service
// over SQLite, local storage and a mocked HTTP transport.
type pipeline struct {
	ctx       context.Context
	db        *gorm.DB
	repo      *repository.GormRepository
	root      string
	storeDir  string
	transport *httpmock.MockTransport
	provider  *fakeProvider
	bus       *events.InMemoryEventBus
	images    *media.ImageService
	matcher   *domain.Matcher
	processor *service.GameProcessor
	scans     *service.ScanService
	library   *domain.Library

	mu     sync.Mutex
	events []interfaces.Event
}

func newPipeline(t *testing.T) *pipeline {
	t.Helper()
	p := &pipeline{
		ctx:       context.Background(),
		db:        testutil.SetupSQLite(t),
		root:      t.TempDir(),
		storeDir:  t.TempDir(),
		transport: httpmock.NewMockTransport(),
		provider:  newFakeProvider("fake"),
		bus:       events.NewInMemoryEventBus(logger.NewNoopLogger()),
	}
	p.repo = repository.NewGormRepository(p.db)

	p.transport.RegisterResponder(http.MethodGet, `=~^https://img\.test/`,
		httpmock.NewBytesResponder(http.StatusOK, pngBytes))

	storage, err := media.NewLocalStorage(p.storeDir, logger.NewNoopLogger())
	require.NoError(t, err)
	fetcher := media.NewHTTPFetcher(media.FetcherConfig{}, logger.NewNoopLogger()).
		WithClient(&http.Client{Transport: p.transport})
	p.images = media.NewImageService(p.repo, storage, fetcher, logger.NewNoopLogger())

	registry := domain.NewProviderRegistry(logger.NewNoopLogger())
	registry.Register(p.provider)
	p.matcher, err = domain.NewMatcher(registry, domain.MatcherConfig{ProviderTimeout: 5 * time.Second}, logger.NewNoopLogger())
	require.NoError(t, err)

	require.NoError(t, p.bus.Subscribe(events.AllEvents, &events.HandlerFunc{
		HandlerName: "recorder",
		Fn: func(_ context.Context, event interfaces.Event) error {
			p.mu.Lock()
			defer p.mu.Unlock()
			p.events = append(p.events, event)
			return nil
		},
	}))

	p.processor = service.NewGameProcessor(p.repo, p.matcher, p.images, p.bus, logger.NewNoopLogger())
	p.scans = service.NewScanService(
		p.repo,
		p.processor,
		p.matcher,
		p.images,
		service.StaticScanSettings{Extensions: domain.DefaultGameFileExtensions},
		p.bus,
		utils.NewCache(24*time.Hour, time.Hour),
		logger.NewNoopLogger(),
		service.ScanConfig{Concurrency: 2, ProgressInterval: time.Millisecond},
	)

	p.library = testutil.CreateTestLibrary("Games", p.root)
	require.NoError(t, p.repo.CreateLibrary(p.ctx, p.library))

	t.Cleanup(func() {
		p.scans.Close()
		_ = p.bus.Stop()
	})
	return p
}

func (p *pipeline) eventTypes() map[string]int {
	_ = p.bus.Stop()
	_ = p.bus.Start(p.ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	counts := map[string]int{}
	for _, e := range p.events {
		counts[e.EventType()]++
	}
	return counts
}

func (p *pipeline) count(t *testing.T, model interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, p.db.Model(model).Count(&n).Error)
	return n
}

func (p *pipeline) storedFiles(t *testing.T) int {
	t.Helper()
	entries, err := os.ReadDir(p.storeDir)
	require.NoError(t, err)
	return len(entries)
}

func (p *pipeline) gamePaths(t *testing.T) []string {
	t.Helper()
	paths, err := p.repo.ListGamePaths(p.ctx, p.library.ID)
	require.NoError(t, err)
	return paths
}
