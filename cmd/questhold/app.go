package main

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/questhold/questhold/internal/config"
	"github.com/questhold/questhold/internal/jobs"
	"github.com/questhold/questhold/internal/library/domain"
	"github.com/questhold/questhold/internal/library/service"
	"github.com/questhold/questhold/internal/library/watcher"
	"github.com/questhold/questhold/internal/media"
	"github.com/questhold/questhold/internal/metrics"
	"github.com/questhold/questhold/internal/settings"
	"github.com/questhold/questhold/pkg/events"
	"github.com/questhold/questhold/pkg/interfaces"
)

// App holds the wired components of a questhold process.
type App struct {
	Config          *config.Config
	Logger          interfaces.Logger
	DB              *gorm.DB
	EventBus        *events.InMemoryEventBus
	Settings        *settings.Service
	LibrarySettings *settings.LibrarySettings
	Matcher         *domain.Matcher
	MatcherUpdater  *settings.MatcherUpdater
	Images          *media.ImageService
	Libraries       *service.LibraryService
	Scans           *service.ScanService
	Scheduler       *jobs.TaskScheduler
	Jobs            *jobs.JobService
	Watcher         *watcher.LibraryWatcher
	Registry        *prometheus.Registry
	Metrics         *metrics.Metrics

	stopOnce sync.Once `wire:"-"`
}

// startCore starts the event bus and hooks metrics and settings into the
// pipeline. It is all that one-shot commands need.
func (a *App) startCore(ctx context.Context) error {
	if err := a.EventBus.Start(ctx); err != nil {
		return err
	}

	a.Scans.SetMetrics(a.Metrics)
	a.Images.SetObserver(a.Metrics.ObserveImageDownload)
	a.Matcher.SetObserver(a.Metrics.ObserveProviderRequest)
	a.Jobs.SetObserver(a.Metrics.ObserveJobRun)

	if err := a.MatcherUpdater.Apply(ctx); err != nil {
		a.Logger.Warn("Keeping default title extraction", interfaces.Error(err))
	}
	return a.EventBus.Subscribe(settings.EventConfigUpdated, a.MatcherUpdater)
}

// startBackground starts the scheduler-driven job and the filesystem
// watcher.
func (a *App) startBackground(ctx context.Context) error {
	if err := a.Jobs.Start(ctx); err != nil {
		return err
	}

	if err := a.Watcher.Start(ctx); err != nil {
		return err
	}
	for _, eventType := range []string{
		domain.EventLibraryCreated,
		domain.EventLibraryUpdated,
		domain.EventLibraryDeleted,
		settings.EventConfigUpdated,
	} {
		if err := a.EventBus.Subscribe(eventType, a.Watcher); err != nil {
			return err
		}
	}
	return nil
}

// stop shuts components down in reverse dependency order. Only the first
// call has an effect.
func (a *App) stop() {
	a.stopOnce.Do(a.shutdown)
}

func (a *App) shutdown() {
	if err := a.Watcher.Stop(); err != nil {
		a.Logger.Warn("Failed to stop watcher", interfaces.Error(err))
	}
	a.Jobs.Stop()
	a.Scheduler.Stop()
	a.Scans.Close()
	if err := a.EventBus.Stop(); err != nil {
		a.Logger.Warn("Failed to stop event bus", interfaces.Error(err))
	}
}
