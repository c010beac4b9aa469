package service_test

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/questhold/questhold/internal/library/domain"
	"github.com/questhold/questhold/internal/library/repository"
)

// MockRepository is a mock for the library repository
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Transaction(ctx context.Context, fn func(tx repository.Repository) error) error {
	return fn(m)
}

func (m *MockRepository) CreateLibrary(ctx context.Context, library *domain.Library) error {
	args := m.Called(ctx, library)
	return args.Error(0)
}

func (m *MockRepository) GetLibrary(ctx context.Context, id uuid.UUID) (*domain.Library, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Library), args.Error(1)
}

func (m *MockRepository) GetLibraryByName(ctx context.Context, name string) (*domain.Library, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Library), args.Error(1)
}

func (m *MockRepository) UpdateLibrary(ctx context.Context, library *domain.Library) error {
	args := m.Called(ctx, library)
	return args.Error(0)
}

func (m *MockRepository) DeleteLibrary(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockRepository) ListLibraries(ctx context.Context) ([]*domain.Library, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Library), args.Error(1)
}

func (m *MockRepository) FindMappingByInternalPath(ctx context.Context, path string) (*domain.DirectoryMapping, error) {
	args := m.Called(ctx, path)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.DirectoryMapping), args.Error(1)
}

func (m *MockRepository) CreateGame(ctx context.Context, game *domain.Game) error {
	args := m.Called(ctx, game)
	return args.Error(0)
}

func (m *MockRepository) GetGame(ctx context.Context, id uuid.UUID) (*domain.Game, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Game), args.Error(1)
}

func (m *MockRepository) GetGameByPath(ctx context.Context, path string) (*domain.Game, error) {
	args := m.Called(ctx, path)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Game), args.Error(1)
}

func (m *MockRepository) UpdateGame(ctx context.Context, game *domain.Game) error {
	args := m.Called(ctx, game)
	return args.Error(0)
}

func (m *MockRepository) DeleteGame(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockRepository) DeleteGamesByPath(ctx context.Context, paths []string) ([]*domain.Game, error) {
	args := m.Called(ctx, paths)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Game), args.Error(1)
}

func (m *MockRepository) ListGamesByLibrary(ctx context.Context, libraryID uuid.UUID, limit, offset int) ([]*domain.Game, error) {
	args := m.Called(ctx, libraryID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Game), args.Error(1)
}

func (m *MockRepository) ListGamesByPath(ctx context.Context, paths []string) ([]*domain.Game, error) {
	args := m.Called(ctx, paths)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Game), args.Error(1)
}

func (m *MockRepository) ListGamePaths(ctx context.Context, libraryID uuid.UUID) ([]string, error) {
	args := m.Called(ctx, libraryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockRepository) CountGames(ctx context.Context, libraryID uuid.UUID) (int64, error) {
	args := m.Called(ctx, libraryID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRepository) ListIgnoredPaths(ctx context.Context, libraryID uuid.UUID) ([]*domain.IgnoredPath, error) {
	args := m.Called(ctx, libraryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.IgnoredPath), args.Error(1)
}

func (m *MockRepository) GetIgnoredPath(ctx context.Context, path string) (*domain.IgnoredPath, error) {
	args := m.Called(ctx, path)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.IgnoredPath), args.Error(1)
}

func (m *MockRepository) UpsertIgnoredPath(ctx context.Context, ignored *domain.IgnoredPath) error {
	args := m.Called(ctx, ignored)
	return args.Error(0)
}

func (m *MockRepository) DeleteIgnoredPaths(ctx context.Context, paths []string) (int64, error) {
	args := m.Called(ctx, paths)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRepository) GetImage(ctx context.Context, id uuid.UUID) (*domain.Image, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Image), args.Error(1)
}

func (m *MockRepository) FindImageByURL(ctx context.Context, url string) (*domain.Image, error) {
	args := m.Called(ctx, url)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Image), args.Error(1)
}

func (m *MockRepository) CreateImageIfAbsent(ctx context.Context, image *domain.Image) (*domain.Image, bool, error) {
	args := m.Called(ctx, image)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*domain.Image), args.Bool(1), args.Error(2)
}

func (m *MockRepository) CountImageReferences(ctx context.Context, id uuid.UUID) (int64, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRepository) DeleteImage(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockRepository) SaveScanProgress(ctx context.Context, progress *domain.LibraryScanProgress) error {
	args := m.Called(ctx, progress)
	return args.Error(0)
}

func (m *MockRepository) GetLatestScan(ctx context.Context, libraryID uuid.UUID) (*domain.LibraryScanProgress, error) {
	args := m.Called(ctx, libraryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LibraryScanProgress), args.Error(1)
}

func (m *MockRepository) ListScans(ctx context.Context, libraryID uuid.UUID, limit int) ([]*domain.LibraryScanProgress, error) {
	args := m.Called(ctx, libraryID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.LibraryScanProgress), args.Error(1)
}
