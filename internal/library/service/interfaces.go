package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/questhold/questhold/internal/library/domain"
)

// GameMatcher resolves paths and existing games against metadata providers.
type GameMatcher interface {
	Match(ctx context.Context, path string, library *domain.Library) (*domain.MatchResult, error)
	Rematch(ctx context.Context, game *domain.Game) (*domain.MatchResult, error)
}

// ImageAcquirer persists game images and releases them when unused. Images
// returned by DownloadIfNew stay held, and are not deleted, until Release.
type ImageAcquirer interface {
	DownloadIfNew(ctx context.Context, ref *domain.Image) (*domain.Image, error)
	Release(id uuid.UUID)
	DeleteImageIfUnused(ctx context.Context, id uuid.UUID) (bool, error)
}

// Processor creates and refreshes games from provider matches.
type Processor interface {
	ProcessNewGame(ctx context.Context, path string, library *domain.Library) (*domain.Game, error)
	CreateGame(ctx context.Context, game *domain.Game) (*domain.Game, error)
	ProcessExistingGame(ctx context.Context, game *domain.Game) (*domain.Game, error)
	RelocateGame(ctx context.Context, game *domain.Game, newPath string, match *domain.MatchResult) (*domain.Game, error)
}

// LibraryServiceInterface defines the interface for library administration.
type LibraryServiceInterface interface {
	// Library operations
	CreateLibrary(ctx context.Context, library *domain.Library) error
	GetLibrary(ctx context.Context, id uuid.UUID) (*domain.Library, error)
	ListLibraries(ctx context.Context) ([]*domain.Library, error)
	UpdateLibrary(ctx context.Context, id uuid.UUID, update LibraryUpdate) (*domain.Library, error)
	DeleteLibrary(ctx context.Context, id uuid.UUID) error

	// Ignored path operations
	IgnorePath(ctx context.Context, libraryID uuid.UUID, path, userID string) (*domain.IgnoredPath, error)
	UnignorePath(ctx context.Context, path string) error
	ListIgnoredPaths(ctx context.Context, libraryID uuid.UUID) ([]*domain.IgnoredPath, error)

	// Game operations
	GetGame(ctx context.Context, id uuid.UUID) (*domain.Game, error)
	ListGames(ctx context.Context, libraryID uuid.UUID, limit, offset int) ([]*domain.Game, error)
}

// ScanServiceInterface defines the interface for library scans.
type ScanServiceInterface interface {
	ScanLibrary(ctx context.Context, libraryID uuid.UUID, scanType domain.ScanType) (*domain.LibraryScanProgress, error)
	TriggerScan(ctx context.Context, scanType domain.ScanType, libraryIDs []uuid.UUID) error
	ScanAll(ctx context.Context, scanType domain.ScanType) error
	RecentScans(ctx context.Context) []*domain.LibraryScanProgress
	IsScanning(libraryID uuid.UUID) bool
}

// Ensure implementations satisfy interfaces
var (
	_ Processor               = (*GameProcessor)(nil)
	_ LibraryServiceInterface = (*LibraryService)(nil)
	_ ScanServiceInterface    = (*ScanService)(nil)
)
