package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/questhold/questhold/internal/config"
	"github.com/questhold/questhold/internal/library/domain"
	"github.com/questhold/questhold/internal/library/repository"
	"github.com/questhold/questhold/internal/library/service"
	"github.com/questhold/questhold/internal/library/watcher"
	"github.com/questhold/questhold/internal/media"
	"github.com/questhold/questhold/internal/settings"
	"github.com/questhold/questhold/pkg/events"
	"github.com/questhold/questhold/pkg/interfaces"
	"github.com/questhold/questhold/pkg/logger"
	"github.com/questhold/questhold/pkg/utils"
)

func provideLogger(zl *zap.Logger) interfaces.Logger {
	return logger.NewZapLogger(zl)
}

func provideEventBus(logger interfaces.Logger) *events.InMemoryEventBus {
	return events.NewInMemoryEventBus(logger)
}

func provideCache() *utils.Cache {
	return utils.NewCache(time.Hour, 10*time.Minute)
}

func provideStorage(ctx context.Context, cfg *config.Config, logger interfaces.Logger) (media.Storage, error) {
	return media.NewStorage(ctx, cfg.Storage, logger)
}

func provideFetcher(cfg *config.Config, logger interfaces.Logger) *media.HTTPFetcher {
	return media.NewHTTPFetcher(media.FetcherConfig{
		Timeout:   cfg.Metadata.ImageTimeout,
		MaxBytes:  cfg.Metadata.ImageMaxBytes,
		RateLimit: cfg.Metadata.ImageRateLimit,
		UserAgent: cfg.Metadata.UserAgent,
	}, logger)
}

// provideProviderRegistry returns the registry metadata providers are
// registered with. Providers are plugged in by the embedding application.
func provideProviderRegistry(logger interfaces.Logger) *domain.ProviderRegistry {
	return domain.NewProviderRegistry(logger)
}

func provideSettingsDefaults(cfg *config.Config) settings.Defaults {
	return settings.DefaultsFromConfig(cfg)
}

func provideLibrarySettings(cfg *config.Config, service *settings.Service, logger interfaces.Logger) *settings.LibrarySettings {
	return settings.NewLibrarySettings(service, cfg.Metadata.ProviderTimeout, logger)
}

func provideMatcher(ctx context.Context, registry *domain.ProviderRegistry, librarySettings *settings.LibrarySettings, logger interfaces.Logger) (*domain.Matcher, error) {
	return domain.NewMatcher(registry, librarySettings.MatcherConfig(ctx), logger)
}

func provideScanService(
	cfg *config.Config,
	repo repository.Repository,
	processor *service.GameProcessor,
	matcher *domain.Matcher,
	images *media.ImageService,
	librarySettings *settings.LibrarySettings,
	eventBus interfaces.EventBus,
	cache interfaces.Cache,
	logger interfaces.Logger,
) *service.ScanService {
	return service.NewScanService(repo, processor, matcher, images, librarySettings, eventBus, cache, logger, service.ScanConfig{
		Concurrency:      cfg.Library.ScanConcurrency,
		ProgressInterval: cfg.Library.ProgressInterval,
	})
}

func provideWatcher(
	cfg *config.Config,
	libraries *service.LibraryService,
	scans *service.ScanService,
	librarySettings *settings.LibrarySettings,
	logger interfaces.Logger,
) *watcher.LibraryWatcher {
	return watcher.NewLibraryWatcher(libraries, scans, librarySettings, cfg.Library.WatcherDebounce, logger)
}
