package jobs

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/questhold/questhold/pkg/repository"
)

// Repository stores job run history.
type Repository interface {
	SaveRun(ctx context.Context, run *JobRunResult) error

	// ListRuns returns the newest runs first; an empty jobName lists every job
	ListRuns(ctx context.Context, jobName string, limit int) ([]*JobRunResult, error)
}

// GormRepository implements Repository using GORM.
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository creates a new GORM job repository.
func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

// SaveRun appends a run to the history.
func (r *GormRepository) SaveRun(ctx context.Context, run *JobRunResult) error {
	if err := repository.Create(ctx, r.db, run); err != nil {
		return fmt.Errorf("failed to save job run: %w", err)
	}
	return nil
}

// ListRuns lists recent runs.
func (r *GormRepository) ListRuns(ctx context.Context, jobName string, limit int) ([]*JobRunResult, error) {
	query := r.db.WithContext(ctx).Order("started_at DESC")
	if jobName != "" {
		query = query.Where("job_name = ?", jobName)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var runs []*JobRunResult
	if err := query.Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("failed to list job runs: %w", err)
	}
	return runs, nil
}
