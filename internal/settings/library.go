package settings

import (
	"context"
	"time"

	"github.com/questhold/questhold/internal/library/domain"
	"github.com/questhold/questhold/pkg/interfaces"
)

// LibrarySettings exposes the scan settings in the shapes the walker and
// matcher consume.
type LibrarySettings struct {
	service         *Service
	providerTimeout time.Duration
	logger          interfaces.Logger
}

// NewLibrarySettings creates a new library settings adapter
func NewLibrarySettings(service *Service, providerTimeout time.Duration, logger interfaces.Logger) *LibrarySettings {
	return &LibrarySettings{service: service, providerTimeout: providerTimeout, logger: logger}
}

// WalkOptions returns the walker options for the next scan.
func (l *LibrarySettings) WalkOptions(ctx context.Context) domain.WalkOptions {
	extensions, err := Get(ctx, l.service, ScanGameFileExtensions)
	l.warn(ScanGameFileExtensions.Name, err)
	emptyDirs, err := Get(ctx, l.service, ScanEmptyDirectories)
	l.warn(ScanEmptyDirectories.Name, err)

	return domain.WalkOptions{Extensions: extensions, ScanEmptyDirectories: emptyDirs}
}

// MatcherConfig returns the current title extraction settings.
func (l *LibrarySettings) MatcherConfig(ctx context.Context) domain.MatcherConfig {
	extract, err := Get(ctx, l.service, ScanExtractTitleUsingRegex)
	l.warn(ScanExtractTitleUsingRegex.Name, err)
	regex, err := Get(ctx, l.service, ScanTitleExtractionRegex)
	l.warn(ScanTitleExtractionRegex.Name, err)

	return domain.MatcherConfig{
		ProviderTimeout:        l.providerTimeout,
		ExtractTitleUsingRegex: extract,
		TitleRegex:             regex,
	}
}

// WatcherEnabled reports whether filesystem watching is switched on.
func (l *LibrarySettings) WatcherEnabled(ctx context.Context) bool {
	enabled, err := Get(ctx, l.service, ScanEnableFilesystemWatcher)
	l.warn(ScanEnableFilesystemWatcher.Name, err)
	return enabled
}

func (l *LibrarySettings) warn(key string, err error) {
	if err != nil {
		l.logger.Warn("Using default for setting", interfaces.String("key", key), interfaces.Error(err))
	}
}

// MatcherUpdater reconfigures the matcher when a title extraction setting
// changes.
type MatcherUpdater struct {
	settings *LibrarySettings
	matcher  *domain.Matcher
	logger   interfaces.Logger
}

// NewMatcherUpdater creates a handler for config.updated events
func NewMatcherUpdater(settings *LibrarySettings, matcher *domain.Matcher, logger interfaces.Logger) *MatcherUpdater {
	return &MatcherUpdater{settings: settings, matcher: matcher, logger: logger}
}

// Apply pushes the current settings into the matcher.
func (u *MatcherUpdater) Apply(ctx context.Context) error {
	return u.matcher.Configure(u.settings.MatcherConfig(ctx))
}

// Handle implements interfaces.EventHandler
func (u *MatcherUpdater) Handle(ctx context.Context, event interfaces.Event) error {
	updated, ok := event.(*ConfigUpdatedEvent)
	if !ok || (updated.Key != ScanExtractTitleUsingRegex.Name && updated.Key != ScanTitleExtractionRegex.Name) {
		return nil
	}

	if err := u.Apply(ctx); err != nil {
		u.logger.Error("Failed to reconfigure matcher", interfaces.Error(err))
		return err
	}
	u.logger.Debug("Matcher reconfigured", interfaces.String("key", updated.Key))
	return nil
}

// Name implements interfaces.EventHandler
func (u *MatcherUpdater) Name() string {
	return "settings.matcher-updater"
}
