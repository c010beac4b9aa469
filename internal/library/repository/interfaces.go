package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/questhold/questhold/internal/library/domain"
)

// LibraryRepository defines the interface for library data access.
type LibraryRepository interface {
	CreateLibrary(ctx context.Context, library *domain.Library) error
	GetLibrary(ctx context.Context, id uuid.UUID) (*domain.Library, error)
	GetLibraryByName(ctx context.Context, name string) (*domain.Library, error)
	UpdateLibrary(ctx context.Context, library *domain.Library) error
	DeleteLibrary(ctx context.Context, id uuid.UUID) error
	ListLibraries(ctx context.Context) ([]*domain.Library, error)
	FindMappingByInternalPath(ctx context.Context, path string) (*domain.DirectoryMapping, error)
}

// GameRepository defines the interface for game data access.
type GameRepository interface {
	CreateGame(ctx context.Context, game *domain.Game) error
	GetGame(ctx context.Context, id uuid.UUID) (*domain.Game, error)
	GetGameByPath(ctx context.Context, path string) (*domain.Game, error)
	UpdateGame(ctx context.Context, game *domain.Game) error
	DeleteGame(ctx context.Context, id uuid.UUID) error
	DeleteGamesByPath(ctx context.Context, paths []string) ([]*domain.Game, error)
	ListGamesByLibrary(ctx context.Context, libraryID uuid.UUID, limit, offset int) ([]*domain.Game, error)
	ListGamesByPath(ctx context.Context, paths []string) ([]*domain.Game, error)
	ListGamePaths(ctx context.Context, libraryID uuid.UUID) ([]string, error)
	CountGames(ctx context.Context, libraryID uuid.UUID) (int64, error)
}

// IgnoredPathRepository defines the interface for ignored path data access.
type IgnoredPathRepository interface {
	ListIgnoredPaths(ctx context.Context, libraryID uuid.UUID) ([]*domain.IgnoredPath, error)
	GetIgnoredPath(ctx context.Context, path string) (*domain.IgnoredPath, error)
	UpsertIgnoredPath(ctx context.Context, ignored *domain.IgnoredPath) error
	DeleteIgnoredPaths(ctx context.Context, paths []string) (int64, error)
}

// ImageRepository defines the interface for image data access.
type ImageRepository interface {
	GetImage(ctx context.Context, id uuid.UUID) (*domain.Image, error)
	FindImageByURL(ctx context.Context, url string) (*domain.Image, error)
	CreateImageIfAbsent(ctx context.Context, image *domain.Image) (*domain.Image, bool, error)
	CountImageReferences(ctx context.Context, id uuid.UUID) (int64, error)
	DeleteImage(ctx context.Context, id uuid.UUID) error
}

// ScanRepository defines the interface for scan progress data access.
type ScanRepository interface {
	SaveScanProgress(ctx context.Context, progress *domain.LibraryScanProgress) error
	GetLatestScan(ctx context.Context, libraryID uuid.UUID) (*domain.LibraryScanProgress, error)
	ListScans(ctx context.Context, libraryID uuid.UUID, limit int) ([]*domain.LibraryScanProgress, error)
}

// Repository aggregates all repository interfaces.
type Repository interface {
	LibraryRepository
	GameRepository
	IgnoredPathRepository
	ImageRepository
	ScanRepository

	// Transaction runs fn against a repository bound to one database
	// transaction, committing when fn returns nil.
	Transaction(ctx context.Context, fn func(tx Repository) error) error
}
