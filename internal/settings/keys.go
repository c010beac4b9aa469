package settings

import (
	"sort"
	"sync"

	"github.com/questhold/questhold/internal/config"
	"github.com/questhold/questhold/internal/library/domain"
)

// Key names a typed runtime setting. Default applies when neither the
// static configuration nor a stored override provides a value.
type Key[T any] struct {
	Name        string
	Default     T
	Description string
}

var (
	knownMu sync.RWMutex
	known   = map[string]string{}
)

// NewKey declares a setting and registers its name.
func NewKey[T any](name string, def T, description string) Key[T] {
	knownMu.Lock()
	known[name] = description
	knownMu.Unlock()
	return Key[T]{Name: name, Default: def, Description: description}
}

// IsKnown reports whether name was declared with NewKey.
func IsKnown(name string) bool {
	knownMu.RLock()
	defer knownMu.RUnlock()
	_, ok := known[name]
	return ok
}

// KnownKeys returns every declared setting name with its description,
// sorted by name.
func KnownKeys() [][2]string {
	knownMu.RLock()
	defer knownMu.RUnlock()
	keys := make([][2]string, 0, len(known))
	for name, description := range known {
		keys = append(keys, [2]string{name, description})
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i][0] < keys[j][0] })
	return keys
}

var (
	ScanEnableFilesystemWatcher = NewKey("library.scan.enable-filesystem-watcher", false,
		"Scan libraries automatically when their directories change")
	ScanEmptyDirectories = NewKey("library.scan.scan-empty-directories", false,
		"Treat directories without game files as games")
	ScanExtractTitleUsingRegex = NewKey("library.scan.extract-title-using-regex", false,
		"Derive the lookup title from the file name with the extraction regex")
	ScanTitleExtractionRegex = NewKey("library.scan.title-extraction-regex", domain.DefaultTitleRegex,
		"Regex whose first match is used as the lookup title")
	ScanGameFileExtensions = NewKey("library.scan.game-file-extensions", domain.DefaultGameFileExtensions,
		"File extensions recognized as games")
	MetadataUpdateEnabled = NewKey("library.metadata.update.enabled", true,
		"Run the scheduled library scan")
	MetadataUpdateSchedule = NewKey("library.metadata.update.schedule", "@daily",
		"Cron expression of the scheduled library scan")
)

// Defaults maps setting names to the values taken from static configuration.
type Defaults map[string]interface{}

// DefaultsFromConfig builds the setting defaults from cfg.
func DefaultsFromConfig(cfg *config.Config) Defaults {
	return Defaults{
		ScanEnableFilesystemWatcher.Name: cfg.Library.EnableFilesystemWatcher,
		ScanEmptyDirectories.Name:        cfg.Library.ScanEmptyDirectories,
		ScanExtractTitleUsingRegex.Name:  cfg.Library.ExtractTitleUsingRegex,
		ScanTitleExtractionRegex.Name:    cfg.Library.TitleExtractionRegex,
		ScanGameFileExtensions.Name:      cfg.Library.GameFileExtensions,
		MetadataUpdateEnabled.Name:       cfg.Metadata.UpdateEnabled,
		MetadataUpdateSchedule.Name:      cfg.Metadata.UpdateSchedule,
	}
}
