package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	pkgerrors "github.com/questhold/questhold/pkg/errors"
)

// Create inserts entity, mapping unique violations to a Conflict error.
func Create[T any](ctx context.Context, db *gorm.DB, entity *T) error {
	if err := db.WithContext(ctx).Create(entity).Error; err != nil {
		if pkgerrors.IsDuplicateError(err) {
			return pkgerrors.Wrap(pkgerrors.ErrorTypeConflict, "entity already exists", err)
		}
		return err
	}
	return nil
}

// CreateIfAbsent inserts entity unless a row with the same value in
// conflictColumn exists. It reports whether a row was inserted.
func CreateIfAbsent[T any](ctx context.Context, db *gorm.DB, entity *T, conflictColumn string) (bool, error) {
	result := db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: conflictColumn}}, DoNothing: true}).
		Create(entity)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// FindByID finds an entity by its ID, preloading the given associations.
func FindByID[T any](ctx context.Context, db *gorm.DB, id uuid.UUID, preloads ...string) (*T, error) {
	var entity T
	query := db.WithContext(ctx)
	for _, preload := range preloads {
		query = query.Preload(preload)
	}

	if err := query.First(&entity, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.NotFound("%T %s not found", entity, id)
		}
		return nil, err
	}
	return &entity, nil
}

// FindOneBy finds a single entity matching query.
func FindOneBy[T any](ctx context.Context, db *gorm.DB, query string, args ...interface{}) (*T, error) {
	var entity T
	if err := db.WithContext(ctx).Where(query, args...).First(&entity).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.NotFound("%T not found", entity)
		}
		return nil, err
	}
	return &entity, nil
}

// FindAllBy returns every entity matching query in the given order.
func FindAllBy[T any](ctx context.Context, db *gorm.DB, order string, query string, args ...interface{}) ([]*T, error) {
	var entities []*T
	q := db.WithContext(ctx).Where(query, args...)
	if order != "" {
		q = q.Order(order)
	}
	if err := q.Find(&entities).Error; err != nil {
		return nil, err
	}
	return entities, nil
}

// Update saves all fields of entity.
func Update[T any](ctx context.Context, db *gorm.DB, entity *T) error {
	if err := db.WithContext(ctx).Save(entity).Error; err != nil {
		if pkgerrors.IsDuplicateError(err) {
			return pkgerrors.Wrap(pkgerrors.ErrorTypeConflict, "entity already exists", err)
		}
		return err
	}
	return nil
}

// Delete removes an entity by its ID.
func Delete[T any](ctx context.Context, db *gorm.DB, id uuid.UUID) error {
	var entity T
	result := db.WithContext(ctx).Delete(&entity, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.NotFound("%T %s not found for deletion", entity, id)
	}
	return nil
}

// List retrieves a page of entities.
func List[T any](ctx context.Context, db *gorm.DB, order string, limit, offset int, preloads ...string) ([]*T, error) {
	var entities []*T
	query := db.WithContext(ctx)
	for _, preload := range preloads {
		query = query.Preload(preload)
	}
	if order != "" {
		query = query.Order(order)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := query.Offset(offset).Find(&entities).Error; err != nil {
		return nil, err
	}
	return entities, nil
}

// Count returns the number of entities matching query; an empty query counts
// the whole table.
func Count[T any](ctx context.Context, db *gorm.DB, query string, args ...interface{}) (int64, error) {
	var count int64
	var entity T
	q := db.WithContext(ctx).Model(&entity)
	if query != "" {
		q = q.Where(query, args...)
	}
	if err := q.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
