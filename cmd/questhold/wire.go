//go:build wireinject
// +build wireinject

package main

import (
	"context"

	"github.com/google/wire"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/questhold/questhold/internal/config"
	persistence "github.com/questhold/questhold/internal/infrastructure/persistence/gorm"
	"github.com/questhold/questhold/internal/jobs"
	"github.com/questhold/questhold/internal/library/domain"
	"github.com/questhold/questhold/internal/library/repository"
	"github.com/questhold/questhold/internal/library/service"
	"github.com/questhold/questhold/internal/media"
	"github.com/questhold/questhold/internal/metrics"
	"github.com/questhold/questhold/internal/settings"
	"github.com/questhold/questhold/pkg/events"
	"github.com/questhold/questhold/pkg/interfaces"
	"github.com/questhold/questhold/pkg/utils"
)

var infrastructureSet = wire.NewSet(
	provideLogger,
	persistence.NewDB,
	provideEventBus,
	wire.Bind(new(interfaces.EventBus), new(*events.InMemoryEventBus)),
	provideCache,
	wire.Bind(new(interfaces.Cache), new(*utils.Cache)),
	metrics.NewRegistry,
	wire.Bind(new(prometheus.Registerer), new(*prometheus.Registry)),
	metrics.NewMetrics,
)

var settingsSet = wire.NewSet(
	settings.NewGormStore,
	wire.Bind(new(settings.Store), new(*settings.GormStore)),
	provideSettingsDefaults,
	settings.NewService,
	provideLibrarySettings,
	settings.NewMatcherUpdater,
)

var librarySet = wire.NewSet(
	repository.NewGormRepository,
	wire.Bind(new(repository.Repository), new(*repository.GormRepository)),
	wire.Bind(new(media.ImageStore), new(*repository.GormRepository)),
	provideStorage,
	provideFetcher,
	wire.Bind(new(media.Fetcher), new(*media.HTTPFetcher)),
	media.NewImageService,
	provideProviderRegistry,
	provideMatcher,
	wire.Bind(new(service.GameMatcher), new(*domain.Matcher)),
	wire.Bind(new(service.ImageAcquirer), new(*media.ImageService)),
	service.NewGameProcessor,
	provideScanService,
	service.NewLibraryService,
	provideWatcher,
)

var jobsSet = wire.NewSet(
	jobs.NewTaskScheduler,
	jobs.NewGormRepository,
	wire.Bind(new(jobs.Repository), new(*jobs.GormRepository)),
	jobs.NewLibraryScanJob,
	wire.Bind(new(jobs.LibraryScanner), new(*service.ScanService)),
	wire.Bind(new(jobs.Job), new(*jobs.LibraryScanJob)),
	jobs.NewJobService,
)

func InitializeApp(ctx context.Context, cfg *config.Config, zl *zap.Logger) (*App, func(), error) {
	wire.Build(
		infrastructureSet,
		settingsSet,
		librarySet,
		jobsSet,
		wire.Struct(new(App), "*"),
	)
	return nil, nil, nil
}
