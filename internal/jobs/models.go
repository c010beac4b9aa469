package jobs

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RunStatus is the outcome of a job run.
type RunStatus string

const (
	RunStatusSuccess RunStatus = "SUCCESS"
	RunStatusFailed  RunStatus = "FAILED"
)

// JobRunResult records one execution of a job. Rows are never updated.
type JobRunResult struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	JobName    string    `gorm:"not null;index:idx_job_runs_name_started,priority:1" json:"job_name"`
	StartedAt  time.Time `gorm:"not null;index:idx_job_runs_name_started,priority:2" json:"started_at"`
	FinishedAt time.Time `gorm:"not null" json:"finished_at"`
	Status     RunStatus `gorm:"size:16;not null" json:"status"`
	Message    string    `gorm:"type:text" json:"message"`
}

// TableName specifies the table name for GORM
func (JobRunResult) TableName() string {
	return "job_run_results"
}

// BeforeCreate hook to set ID
func (r *JobRunResult) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// Duration returns how long the run took.
func (r *JobRunResult) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
