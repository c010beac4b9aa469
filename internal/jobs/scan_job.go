package jobs

import (
	"context"

	"github.com/questhold/questhold/internal/library/domain"
)

// LibraryScanJobName names the scheduled scan in run history.
const LibraryScanJobName = "library-scan"

// LibraryScanner scans every library.
type LibraryScanner interface {
	ScanAll(ctx context.Context, scanType domain.ScanType) error
}

// LibraryScanJob runs a SCHEDULED scan over all libraries.
type LibraryScanJob struct {
	scanner LibraryScanner
}

// NewLibraryScanJob creates the scheduled scan job
func NewLibraryScanJob(scanner LibraryScanner) *LibraryScanJob {
	return &LibraryScanJob{scanner: scanner}
}

func (j *LibraryScanJob) Name() string {
	return LibraryScanJobName
}

func (j *LibraryScanJob) Run(ctx context.Context) (string, error) {
	if err := j.scanner.ScanAll(ctx, domain.ScanTypeScheduled); err != nil {
		return "", err
	}
	return "Scanned all libraries", nil
}
