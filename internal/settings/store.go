package settings

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/questhold/questhold/pkg/repository"
)

// Store persists setting overrides.
type Store interface {
	GetEntry(ctx context.Context, key string) (*ConfigEntry, error)
	SaveEntry(ctx context.Context, entry *ConfigEntry) error
	DeleteEntry(ctx context.Context, key string) (bool, error)
	ListEntries(ctx context.Context) ([]*ConfigEntry, error)
}

// GormStore implements Store using GORM.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM settings store.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// GetEntry returns the override for key or a NotFound error.
func (s *GormStore) GetEntry(ctx context.Context, key string) (*ConfigEntry, error) {
	return repository.FindOneBy[ConfigEntry](ctx, s.db, "config_key = ?", key)
}

// SaveEntry inserts or replaces the override for entry.Key.
func (s *GormStore) SaveEntry(ctx context.Context, entry *ConfigEntry) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "config_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(entry).Error
	if err != nil {
		return fmt.Errorf("failed to save setting %s: %w", entry.Key, err)
	}
	return nil
}

// DeleteEntry removes the override for key and reports whether one existed.
func (s *GormStore) DeleteEntry(ctx context.Context, key string) (bool, error) {
	result := s.db.WithContext(ctx).Where("config_key = ?", key).Delete(&ConfigEntry{})
	if result.Error != nil {
		return false, fmt.Errorf("failed to delete setting %s: %w", key, result.Error)
	}
	return result.RowsAffected > 0, nil
}

// ListEntries returns every stored override ordered by key.
func (s *GormStore) ListEntries(ctx context.Context) ([]*ConfigEntry, error) {
	return repository.List[ConfigEntry](ctx, s.db, "config_key ASC", 0, 0)
}
