package service

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/questhold/questhold/internal/library/constants"
	"github.com/questhold/questhold/internal/library/domain"
	"github.com/questhold/questhold/internal/library/repository"
	"github.com/questhold/questhold/pkg/errors"
	"github.com/questhold/questhold/pkg/interfaces"
)

// LibraryUpdate carries the library fields to change; nil fields are kept.
type LibraryUpdate struct {
	Name        *string
	Description *string
	Platforms   []string
	Directories []domain.DirectoryMapping
}

// LibraryService handles library business logic
type LibraryService struct {
	repo     repository.Repository
	eventBus interfaces.EventBus
	cache    interfaces.Cache
	logger   interfaces.Logger
}

// NewLibraryService creates a new library service
func NewLibraryService(
	repo repository.Repository,
	eventBus interfaces.EventBus,
	cache interfaces.Cache,
	logger interfaces.Logger,
) *LibraryService {
	return &LibraryService{
		repo:     repo,
		eventBus: eventBus,
		cache:    cache,
		logger:   logger,
	}
}

func libraryCacheKey(id uuid.UUID) string {
	return constants.LibraryCachePrefix + id.String()
}

// CreateLibrary creates a new game library
func (s *LibraryService) CreateLibrary(ctx context.Context, library *domain.Library) error {
	library.Name = strings.TrimSpace(library.Name)
	if library.Name == "" {
		return errors.BadRequest("library name is required")
	}
	if library.ID == uuid.Nil {
		library.ID = uuid.New()
	}
	if err := s.validateDirectories(ctx, library.ID, library.Directories); err != nil {
		return err
	}

	if err := s.repo.CreateLibrary(ctx, library); err != nil {
		s.logger.Error("Failed to create library", interfaces.Error(err))
		return err
	}

	s.eventBus.PublishAsync(ctx, domain.NewLibraryCreatedEvent(library))

	s.logger.Info("Library created",
		interfaces.String("library_id", library.ID.String()),
		interfaces.String("name", library.Name),
		interfaces.Int("directories", len(library.Directories)))

	return nil
}

// validateDirectories normalizes mappings in place and rejects relative,
// repeated or already mapped internal paths.
func (s *LibraryService) validateDirectories(ctx context.Context, libraryID uuid.UUID, dirs []domain.DirectoryMapping) error {
	if len(dirs) == 0 {
		return errors.BadRequest("library needs at least one directory")
	}

	seen := make(map[string]struct{}, len(dirs))
	for i := range dirs {
		path := strings.TrimSpace(dirs[i].InternalPath)
		if path == "" || !filepath.IsAbs(path) {
			return errors.Wrap(errors.ErrorTypeBadRequest, "directory path must be absolute: "+path, domain.ErrInvalidPath)
		}
		path = filepath.Clean(path)
		if _, dup := seen[path]; dup {
			return errors.Wrap(errors.ErrorTypeConflict, "directory listed twice: "+path, domain.ErrDuplicatePath)
		}
		seen[path] = struct{}{}
		dirs[i].InternalPath = path
		dirs[i].LibraryID = libraryID
		dirs[i].Position = i
	}

	for _, dir := range dirs {
		existing, err := s.repo.FindMappingByInternalPath(ctx, dir.InternalPath)
		if err != nil && !errors.IsNotFound(err) {
			return err
		}
		if existing != nil && existing.LibraryID != libraryID {
			return errors.Wrap(errors.ErrorTypeConflict, "directory already mapped by another library: "+dir.InternalPath, domain.ErrDuplicatePath)
		}
	}
	return nil
}

// GetLibrary retrieves a library by ID
func (s *LibraryService) GetLibrary(ctx context.Context, id uuid.UUID) (*domain.Library, error) {
	if cached, ok := s.cache.Get(ctx, libraryCacheKey(id)); ok {
		if library, ok := cached.(*domain.Library); ok {
			return library, nil
		}
	}

	library, err := s.repo.GetLibrary(ctx, id)
	if err != nil {
		return nil, err
	}

	s.cache.Set(ctx, libraryCacheKey(id), library, constants.LibraryCacheTTL)
	return library, nil
}

// ListLibraries lists all libraries
func (s *LibraryService) ListLibraries(ctx context.Context) ([]*domain.Library, error) {
	return s.repo.ListLibraries(ctx)
}

// UpdateLibrary applies update to a library
func (s *LibraryService) UpdateLibrary(ctx context.Context, id uuid.UUID, update LibraryUpdate) (*domain.Library, error) {
	library, err := s.repo.GetLibrary(ctx, id)
	if err != nil {
		return nil, err
	}

	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if name == "" {
			return nil, errors.BadRequest("library name is required")
		}
		library.Name = name
	}
	if update.Description != nil {
		library.Description = *update.Description
	}
	if update.Platforms != nil {
		library.Platforms = update.Platforms
	}
	if update.Directories != nil {
		if err := s.validateDirectories(ctx, id, update.Directories); err != nil {
			return nil, err
		}
		library.Directories = update.Directories
	}

	if err := s.repo.UpdateLibrary(ctx, library); err != nil {
		return nil, err
	}

	s.cache.Delete(ctx, libraryCacheKey(id))
	s.eventBus.PublishAsync(ctx, domain.NewLibraryUpdatedEvent(library))

	s.logger.Info("Library updated",
		interfaces.String("library_id", id.String()),
		interfaces.String("name", library.Name))

	return library, nil
}

// DeleteLibrary deletes a library. Its games stay in the catalog without a
// library until the next scan of another library claims their paths.
func (s *LibraryService) DeleteLibrary(ctx context.Context, id uuid.UUID) error {
	library, err := s.repo.GetLibrary(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.DeleteLibrary(ctx, id); err != nil {
		return err
	}

	s.cache.Delete(ctx, libraryCacheKey(id))
	s.eventBus.PublishAsync(ctx, domain.NewLibraryDeletedEvent(id))

	s.logger.Info("Library deleted",
		interfaces.String("library_id", id.String()),
		interfaces.String("name", library.Name))

	return nil
}

// IgnorePath excludes path from matching on behalf of userID. An existing
// game at the path is left alone.
func (s *LibraryService) IgnorePath(ctx context.Context, libraryID uuid.UUID, path, userID string) (*domain.IgnoredPath, error) {
	if path == "" || !filepath.IsAbs(path) {
		return nil, errors.Wrap(errors.ErrorTypeBadRequest, "ignored path must be absolute", domain.ErrInvalidPath)
	}
	if _, err := s.GetLibrary(ctx, libraryID); err != nil {
		return nil, err
	}

	ignored := domain.NewUserIgnoredPath(libraryID, filepath.Clean(path), userID)
	if err := s.repo.UpsertIgnoredPath(ctx, ignored); err != nil {
		return nil, err
	}

	s.logger.Info("Path ignored",
		interfaces.String("library_id", libraryID.String()),
		interfaces.String("path", ignored.Path),
		interfaces.String("user_id", userID))

	return ignored, nil
}

// UnignorePath removes an ignored path so the next scan considers it again.
func (s *LibraryService) UnignorePath(ctx context.Context, path string) error {
	n, err := s.repo.DeleteIgnoredPaths(ctx, []string{filepath.Clean(path)})
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.NotFound("path %s is not ignored", path)
	}

	s.logger.Info("Path no longer ignored", interfaces.String("path", path))
	return nil
}

// ListIgnoredPaths lists the ignored paths of a library
func (s *LibraryService) ListIgnoredPaths(ctx context.Context, libraryID uuid.UUID) ([]*domain.IgnoredPath, error) {
	return s.repo.ListIgnoredPaths(ctx, libraryID)
}

// GetGame retrieves a game by ID
func (s *LibraryService) GetGame(ctx context.Context, id uuid.UUID) (*domain.Game, error) {
	return s.repo.GetGame(ctx, id)
}

// ListGames lists a page of games in a library
func (s *LibraryService) ListGames(ctx context.Context, libraryID uuid.UUID, limit, offset int) ([]*domain.Game, error) {
	if limit <= 0 {
		limit = constants.DefaultPageSize
	}
	if limit > constants.MaxPageSize {
		limit = constants.MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}

	return s.repo.ListGamesByLibrary(ctx, libraryID, limit, offset)
}

// GetLatestScan gets the most recent scan of a library
func (s *LibraryService) GetLatestScan(ctx context.Context, libraryID uuid.UUID) (*domain.LibraryScanProgress, error) {
	return s.repo.GetLatestScan(ctx, libraryID)
}
