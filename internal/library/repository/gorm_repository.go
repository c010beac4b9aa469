package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/questhold/questhold/internal/library/domain"
	pkgerrors "github.com/questhold/questhold/pkg/errors"
	"github.com/questhold/questhold/pkg/repository"
)

// GormRepository implements the repository interfaces using GORM.
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository creates a new GORM repository.
func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

// Transaction runs fn in a database transaction.
func (r *GormRepository) Transaction(ctx context.Context, fn func(tx Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormRepository{db: tx})
	})
}

func orderedDirectories(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

// CreateLibrary creates a library together with its directory mappings.
func (r *GormRepository) CreateLibrary(ctx context.Context, library *domain.Library) error {
	if err := repository.Create(ctx, r.db, library); err != nil {
		if pkgerrors.IsConflict(err) {
			return pkgerrors.Wrap(pkgerrors.ErrorTypeConflict, "library name or directory already in use", domain.ErrDuplicatePath)
		}
		return fmt.Errorf("failed to create library: %w", err)
	}
	return nil
}

// GetLibrary retrieves a library by ID with its directory mappings.
func (r *GormRepository) GetLibrary(ctx context.Context, id uuid.UUID) (*domain.Library, error) {
	var library domain.Library
	err := r.db.WithContext(ctx).
		Preload("Directories", orderedDirectories).
		First(&library, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.ErrorTypeNotFound, fmt.Sprintf("library %s not found", id), domain.ErrLibraryNotFound)
		}
		return nil, fmt.Errorf("failed to get library: %w", err)
	}
	return &library, nil
}

// GetLibraryByName retrieves a library by its unique name.
func (r *GormRepository) GetLibraryByName(ctx context.Context, name string) (*domain.Library, error) {
	var library domain.Library
	err := r.db.WithContext(ctx).
		Preload("Directories", orderedDirectories).
		First(&library, "name = ?", name).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.ErrorTypeNotFound, fmt.Sprintf("library %q not found", name), domain.ErrLibraryNotFound)
		}
		return nil, fmt.Errorf("failed to get library: %w", err)
	}
	return &library, nil
}

// UpdateLibrary saves the library fields and replaces its directory mappings.
func (r *GormRepository) UpdateLibrary(ctx context.Context, library *domain.Library) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(library).Omit(clause.Associations).Select("name", "description", "platforms", "updated_at").Updates(library)
		if result.Error != nil {
			if pkgerrors.IsDuplicateError(result.Error) {
				return pkgerrors.Wrap(pkgerrors.ErrorTypeConflict, "library name already in use", result.Error)
			}
			return fmt.Errorf("failed to update library: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return pkgerrors.Wrap(pkgerrors.ErrorTypeNotFound, fmt.Sprintf("library %s not found", library.ID), domain.ErrLibraryNotFound)
		}

		if err := tx.Where("library_id = ?", library.ID).Delete(&domain.DirectoryMapping{}).Error; err != nil {
			return fmt.Errorf("failed to clear directory mappings: %w", err)
		}
		for i := range library.Directories {
			library.Directories[i].LibraryID = library.ID
			library.Directories[i].Position = i
			if err := tx.Create(&library.Directories[i]).Error; err != nil {
				if pkgerrors.IsDuplicateError(err) {
					return pkgerrors.Wrap(pkgerrors.ErrorTypeConflict, "directory already mapped by a library", domain.ErrDuplicatePath)
				}
				return fmt.Errorf("failed to save directory mapping: %w", err)
			}
		}
		return nil
	})
}

// DeleteLibrary deletes a library, its mappings and ignored paths. Games are
// kept and detached from the library.
func (r *GormRepository) DeleteLibrary(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&domain.Game{}).Where("library_id = ?", id).Update("library_id", nil).Error; err != nil {
			return fmt.Errorf("failed to detach games: %w", err)
		}
		if err := tx.Where("library_id = ?", id).Delete(&domain.DirectoryMapping{}).Error; err != nil {
			return fmt.Errorf("failed to delete directory mappings: %w", err)
		}
		if err := tx.Where("library_id = ?", id).Delete(&domain.IgnoredPath{}).Error; err != nil {
			return fmt.Errorf("failed to delete ignored paths: %w", err)
		}
		if err := repository.Delete[domain.Library](ctx, tx, id); err != nil {
			if pkgerrors.IsNotFound(err) {
				return pkgerrors.Wrap(pkgerrors.ErrorTypeNotFound, fmt.Sprintf("library %s not found", id), domain.ErrLibraryNotFound)
			}
			return err
		}
		return nil
	})
}

// ListLibraries lists all libraries ordered by name.
func (r *GormRepository) ListLibraries(ctx context.Context) ([]*domain.Library, error) {
	var items []*domain.Library
	err := r.db.WithContext(ctx).
		Preload("Directories", orderedDirectories).
		Order("name").
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list libraries: %w", err)
	}
	return items, nil
}

// FindMappingByInternalPath returns the mapping that owns path exactly.
func (r *GormRepository) FindMappingByInternalPath(ctx context.Context, path string) (*domain.DirectoryMapping, error) {
	return repository.FindOneBy[domain.DirectoryMapping](ctx, r.db, "internal_path = ?", path)
}

func preloadGame(db *gorm.DB) *gorm.DB {
	return db.Preload("CoverImage").Preload("HeaderImage").Preload("Images")
}

// CreateGame inserts a game. Referenced images must already be persisted.
func (r *GormRepository) CreateGame(ctx context.Context, game *domain.Game) error {
	syncImageIDs(game)
	if err := r.db.WithContext(ctx).Omit("CoverImage", "HeaderImage", "Images.*").Create(game).Error; err != nil {
		if pkgerrors.IsDuplicateError(err) {
			return pkgerrors.Wrap(pkgerrors.ErrorTypeConflict, fmt.Sprintf("game at %s already exists", game.Path), err)
		}
		return fmt.Errorf("failed to create game: %w", err)
	}
	return nil
}

// GetGame retrieves a game by ID with its images.
func (r *GormRepository) GetGame(ctx context.Context, id uuid.UUID) (*domain.Game, error) {
	var game domain.Game
	if err := preloadGame(r.db.WithContext(ctx)).First(&game, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.ErrorTypeNotFound, fmt.Sprintf("game %s not found", id), domain.ErrGameNotFound)
		}
		return nil, fmt.Errorf("failed to get game: %w", err)
	}
	return &game, nil
}

// GetGameByPath retrieves a game by its unique path.
func (r *GormRepository) GetGameByPath(ctx context.Context, path string) (*domain.Game, error) {
	var game domain.Game
	if err := preloadGame(r.db.WithContext(ctx)).First(&game, "path = ?", path).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.ErrorTypeNotFound, fmt.Sprintf("no game at %s", path), domain.ErrGameNotFound)
		}
		return nil, fmt.Errorf("failed to get game: %w", err)
	}
	return &game, nil
}

// UpdateGame saves all game fields and replaces its gallery.
func (r *GormRepository) UpdateGame(ctx context.Context, game *domain.Game) error {
	syncImageIDs(game)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Save(game).Error; err != nil {
			if pkgerrors.IsDuplicateError(err) {
				return pkgerrors.Wrap(pkgerrors.ErrorTypeConflict, fmt.Sprintf("game at %s already exists", game.Path), err)
			}
			return fmt.Errorf("failed to update game: %w", err)
		}
		images := tx.Model(game).Association("Images")
		var err error
		if len(game.Images) == 0 {
			err = images.Clear()
		} else {
			err = images.Replace(game.Images)
		}
		if err != nil {
			return fmt.Errorf("failed to update game images: %w", err)
		}
		return nil
	})
}

// DeleteGame deletes a game and its gallery links.
func (r *GormRepository) DeleteGame(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		game := &domain.Game{ID: id}
		if err := tx.Model(game).Association("Images").Clear(); err != nil {
			return fmt.Errorf("failed to clear game images: %w", err)
		}
		if err := repository.Delete[domain.Game](ctx, tx, id); err != nil {
			if pkgerrors.IsNotFound(err) {
				return pkgerrors.Wrap(pkgerrors.ErrorTypeNotFound, fmt.Sprintf("game %s not found", id), domain.ErrGameNotFound)
			}
			return err
		}
		return nil
	})
}

// DeleteGamesByPath deletes every game at one of paths and returns the
// deleted games with their image references loaded.
func (r *GormRepository) DeleteGamesByPath(ctx context.Context, paths []string) ([]*domain.Game, error) {
	if len(paths) == 0 {
		return nil, nil
	}

	var deleted []*domain.Game
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := preloadGame(tx).Where("path IN ?", paths).Find(&deleted).Error; err != nil {
			return fmt.Errorf("failed to load games: %w", err)
		}
		for _, game := range deleted {
			if err := tx.Model(game).Association("Images").Clear(); err != nil {
				return fmt.Errorf("failed to clear game images: %w", err)
			}
		}
		if len(deleted) == 0 {
			return nil
		}
		if err := tx.Where("path IN ?", paths).Delete(&domain.Game{}).Error; err != nil {
			return fmt.Errorf("failed to delete games: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

// ListGamesByLibrary lists a page of games in a library ordered by title.
func (r *GormRepository) ListGamesByLibrary(ctx context.Context, libraryID uuid.UUID, limit, offset int) ([]*domain.Game, error) {
	q := preloadGame(r.db.WithContext(ctx)).Where("library_id = ?", libraryID).Order("title, path")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var items []*domain.Game
	if err := q.Offset(offset).Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to list games by library: %w", err)
	}
	return items, nil
}

// ListGamesByPath loads the games at paths.
func (r *GormRepository) ListGamesByPath(ctx context.Context, paths []string) ([]*domain.Game, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	var items []*domain.Game
	if err := preloadGame(r.db.WithContext(ctx)).Where("path IN ?", paths).Order("path").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to list games by path: %w", err)
	}
	return items, nil
}

// ListGamePaths returns the path of every game in a library.
func (r *GormRepository) ListGamePaths(ctx context.Context, libraryID uuid.UUID) ([]string, error) {
	var paths []string
	err := r.db.WithContext(ctx).Model(&domain.Game{}).
		Where("library_id = ?", libraryID).
		Order("path").
		Pluck("path", &paths).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list game paths: %w", err)
	}
	return paths, nil
}

// CountGames returns the number of games in a library.
func (r *GormRepository) CountGames(ctx context.Context, libraryID uuid.UUID) (int64, error) {
	return repository.Count[domain.Game](ctx, r.db, "library_id = ?", libraryID)
}

// ListIgnoredPaths lists the ignored paths of a library.
func (r *GormRepository) ListIgnoredPaths(ctx context.Context, libraryID uuid.UUID) ([]*domain.IgnoredPath, error) {
	items, err := repository.FindAllBy[domain.IgnoredPath](ctx, r.db, "path", "library_id = ?", libraryID)
	if err != nil {
		return nil, fmt.Errorf("failed to list ignored paths: %w", err)
	}
	return items, nil
}

// GetIgnoredPath retrieves an ignored path entry by path.
func (r *GormRepository) GetIgnoredPath(ctx context.Context, path string) (*domain.IgnoredPath, error) {
	return repository.FindOneBy[domain.IgnoredPath](ctx, r.db, "path = ?", path)
}

// UpsertIgnoredPath inserts ignored, or overwrites the row that already holds
// its path. ignored.ID is set to the persisted row's id.
func (r *GormRepository) UpsertIgnoredPath(ctx context.Context, ignored *domain.IgnoredPath) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "path"}},
		DoUpdates: clause.AssignmentColumns([]string{"library_id", "source", "plugin_ids", "user_id", "updated_at"}),
	}).Create(ignored).Error
	if err != nil {
		return fmt.Errorf("failed to save ignored path: %w", err)
	}

	stored, err := r.GetIgnoredPath(ctx, ignored.Path)
	if err != nil {
		return err
	}
	ignored.ID = stored.ID
	ignored.CreatedAt = stored.CreatedAt
	return nil
}

// DeleteIgnoredPaths deletes the ignored path entries for paths.
func (r *GormRepository) DeleteIgnoredPaths(ctx context.Context, paths []string) (int64, error) {
	if len(paths) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).Where("path IN ?", paths).Delete(&domain.IgnoredPath{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete ignored paths: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// GetImage retrieves an image by ID.
func (r *GormRepository) GetImage(ctx context.Context, id uuid.UUID) (*domain.Image, error) {
	return repository.FindByID[domain.Image](ctx, r.db, id)
}

// FindImageByURL retrieves an image by its source URL.
func (r *GormRepository) FindImageByURL(ctx context.Context, url string) (*domain.Image, error) {
	return repository.FindOneBy[domain.Image](ctx, r.db, "original_url = ?", url)
}

// CreateImageIfAbsent inserts image unless its URL is already stored. It
// returns the persisted row and whether this call inserted it.
func (r *GormRepository) CreateImageIfAbsent(ctx context.Context, image *domain.Image) (*domain.Image, bool, error) {
	created, err := repository.CreateIfAbsent(ctx, r.db, image, "original_url")
	if err != nil {
		return nil, false, fmt.Errorf("failed to create image: %w", err)
	}
	if created {
		return image, true, nil
	}

	existing, err := r.FindImageByURL(ctx, image.OriginalURL)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// CountImageReferences counts games using an image as cover, header or in
// their gallery.
func (r *GormRepository) CountImageReferences(ctx context.Context, id uuid.UUID) (int64, error) {
	direct, err := repository.Count[domain.Game](ctx, r.db, "cover_image_id = ? OR header_image_id = ?", id, id)
	if err != nil {
		return 0, fmt.Errorf("failed to count image references: %w", err)
	}

	var gallery int64
	if err := r.db.WithContext(ctx).Table("game_images").Where("image_id = ?", id).Count(&gallery).Error; err != nil {
		return 0, fmt.Errorf("failed to count gallery references: %w", err)
	}
	return direct + gallery, nil
}

// DeleteImage deletes an image row.
func (r *GormRepository) DeleteImage(ctx context.Context, id uuid.UUID) error {
	return repository.Delete[domain.Image](ctx, r.db, id)
}

// SaveScanProgress inserts or updates a scan progress record.
func (r *GormRepository) SaveScanProgress(ctx context.Context, progress *domain.LibraryScanProgress) error {
	if err := r.db.WithContext(ctx).Save(progress).Error; err != nil {
		return fmt.Errorf("failed to save scan progress: %w", err)
	}
	return nil
}

// GetLatestScan gets the latest scan for a library.
func (r *GormRepository) GetLatestScan(ctx context.Context, libraryID uuid.UUID) (*domain.LibraryScanProgress, error) {
	var progress domain.LibraryScanProgress
	err := r.db.WithContext(ctx).Where("library_id = ?", libraryID).Order("started_at DESC").First(&progress).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.NotFound("no scan recorded for library %s", libraryID)
		}
		return nil, fmt.Errorf("failed to get latest scan: %w", err)
	}
	return &progress, nil
}

// ListScans lists the most recent scans of a library, newest first.
func (r *GormRepository) ListScans(ctx context.Context, libraryID uuid.UUID, limit int) ([]*domain.LibraryScanProgress, error) {
	q := r.db.WithContext(ctx).Where("library_id = ?", libraryID).Order("started_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var items []*domain.LibraryScanProgress
	if err := q.Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to list scans: %w", err)
	}
	return items, nil
}

// syncImageIDs makes the cover and header foreign keys follow the loaded
// image references.
func syncImageIDs(game *domain.Game) {
	game.CoverImageID = nil
	if game.CoverImage != nil {
		id := game.CoverImage.ID
		game.CoverImageID = &id
	}
	game.HeaderImageID = nil
	if game.HeaderImage != nil {
		id := game.HeaderImage.ID
		game.HeaderImageID = &id
	}
}
