package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ScanType selects how thorough a library scan is.
type ScanType string

const (
	// ScanTypeQuick only looks for added and removed paths.
	ScanTypeQuick ScanType = "QUICK"
	// ScanTypeFull additionally re-verifies every known game.
	ScanTypeFull ScanType = "FULL"
	// ScanTypeScheduled is a full scan started by the job scheduler.
	ScanTypeScheduled ScanType = "SCHEDULED"
)

// Valid reports whether t is a known scan type.
func (t ScanType) Valid() bool {
	switch t {
	case ScanTypeQuick, ScanTypeFull, ScanTypeScheduled:
		return true
	}
	return false
}

// RefreshesExisting reports whether scans of this type update known games.
func (t ScanType) RefreshesExisting() bool {
	return t == ScanTypeFull || t == ScanTypeScheduled
}

// ScanStatus is the lifecycle state of a scan.
type ScanStatus string

const (
	ScanStatusInProgress ScanStatus = "IN_PROGRESS"
	ScanStatusCompleted  ScanStatus = "COMPLETED"
	ScanStatusFailed     ScanStatus = "FAILED"
)

// Terminal reports whether no further transitions are allowed.
func (s ScanStatus) Terminal() bool {
	return s == ScanStatusCompleted || s == ScanStatusFailed
}

// Scan step descriptions shown to users.
const (
	StepScanningFilesystem = "Scanning filesystem"
	StepUpdatingGames      = "Updating existing games"
	StepProcessingNewGames = "Processing new games"
	StepFinishing          = "Finishing up"
	StepFinished           = "Finished"
)

// ScanStep is the step a scan is currently in, with optional counters.
type ScanStep struct {
	Description string `json:"description"`
	Current     *int   `json:"current,omitempty"`
	Total       *int   `json:"total,omitempty"`
}

// ScanResultKind tells quick and full results apart.
type ScanResultKind string

const (
	ScanResultQuick ScanResultKind = "quick"
	ScanResultFull  ScanResultKind = "full"
)

// LibraryScanResult holds the aggregate counts of a finished scan. Updated is
// only meaningful for full results.
type LibraryScanResult struct {
	Kind      ScanResultKind `json:"kind"`
	New       int            `json:"new"`
	Removed   int            `json:"removed"`
	Unmatched int            `json:"unmatched"`
	Updated   int            `json:"updated,omitempty"`
	Failed    int            `json:"failed,omitempty"`
}

// NewQuickScanResult builds the result of a quick scan.
func NewQuickScanResult(added, removed, unmatched int) *LibraryScanResult {
	return &LibraryScanResult{Kind: ScanResultQuick, New: added, Removed: removed, Unmatched: unmatched}
}

// NewFullScanResult builds the result of a full or scheduled scan.
func NewFullScanResult(added, removed, unmatched, updated int) *LibraryScanResult {
	return &LibraryScanResult{Kind: ScanResultFull, New: added, Removed: removed, Unmatched: unmatched, Updated: updated}
}

// IsFull reports whether the result includes an updated count.
func (r *LibraryScanResult) IsFull() bool {
	return r.Kind == ScanResultFull
}

// LibraryScanProgress tracks one scan run. It is mutable while IN_PROGRESS
// and frozen once it reaches a terminal status.
type LibraryScanProgress struct {
	ID          uuid.UUID          `json:"id" gorm:"type:uuid;primaryKey"`
	LibraryID   uuid.UUID          `json:"library_id" gorm:"type:uuid;not null;index"`
	Type        ScanType           `json:"type" gorm:"type:varchar(16);not null"`
	Status      ScanStatus         `json:"status" gorm:"type:varchar(16);not null;index"`
	CurrentStep ScanStep           `json:"current_step" gorm:"embedded;embeddedPrefix:step_"`
	StartedAt   time.Time          `json:"started_at"`
	FinishedAt  *time.Time         `json:"finished_at,omitempty"`
	Result      *LibraryScanResult `json:"result,omitempty" gorm:"serializer:json"`
	Message     string             `json:"message,omitempty" gorm:"type:text"`
}

// TableName overrides the pluralized default.
func (LibraryScanProgress) TableName() string {
	return "library_scan_progress"
}

func (p *LibraryScanProgress) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// NewLibraryScanProgress starts tracking a scan of libraryID.
func NewLibraryScanProgress(libraryID uuid.UUID, scanType ScanType) *LibraryScanProgress {
	return &LibraryScanProgress{
		ID:          uuid.New(),
		LibraryID:   libraryID,
		Type:        scanType,
		Status:      ScanStatusInProgress,
		CurrentStep: ScanStep{Description: StepScanningFilesystem},
		StartedAt:   time.Now().UTC(),
	}
}

// Step moves the scan to a new step without counters.
func (p *LibraryScanProgress) Step(description string) error {
	return p.setStep(ScanStep{Description: description})
}

// Advance updates the step with current/total counters.
func (p *LibraryScanProgress) Advance(description string, current, total int) error {
	return p.setStep(ScanStep{Description: description, Current: &current, Total: &total})
}

func (p *LibraryScanProgress) setStep(step ScanStep) error {
	if p.Status.Terminal() {
		return ErrScanFinished
	}
	p.CurrentStep = step
	return nil
}

// Complete finishes the scan successfully with result.
func (p *LibraryScanProgress) Complete(result *LibraryScanResult) error {
	if p.Status.Terminal() {
		return ErrScanFinished
	}
	now := time.Now().UTC()
	p.Status = ScanStatusCompleted
	p.CurrentStep = ScanStep{Description: StepFinished}
	p.FinishedAt = &now
	p.Result = result
	return nil
}

// Fail finishes the scan with err's message.
func (p *LibraryScanProgress) Fail(err error) error {
	if p.Status.Terminal() {
		return ErrScanFinished
	}
	now := time.Now().UTC()
	p.Status = ScanStatusFailed
	p.FinishedAt = &now
	if err != nil {
		p.Message = err.Error()
	}
	return nil
}

// Snapshot returns a deep copy safe to hand to other goroutines.
func (p *LibraryScanProgress) Snapshot() *LibraryScanProgress {
	c := *p
	if p.CurrentStep.Current != nil {
		v := *p.CurrentStep.Current
		c.CurrentStep.Current = &v
	}
	if p.CurrentStep.Total != nil {
		v := *p.CurrentStep.Total
		c.CurrentStep.Total = &v
	}
	if p.FinishedAt != nil {
		v := *p.FinishedAt
		c.FinishedAt = &v
	}
	if p.Result != nil {
		v := *p.Result
		c.Result = &v
	}
	return &c
}

// FilesystemScanResult is the outcome of comparing disk with the catalog.
type FilesystemScanResult struct {
	NewPaths            []string `json:"new_paths"`
	RemovedGamePaths    []string `json:"removed_game_paths"`
	RemovedIgnoredPaths []string `json:"removed_ignored_paths"`
}
