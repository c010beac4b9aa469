package domain_test

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/questhold/questhold/internal/library/domain"
)

func TestLibraryScanProgress_Lifecycle(t *testing.T) {
	libraryID := uuid.New()
	progress := domain.NewLibraryScanProgress(libraryID, domain.ScanTypeQuick)

	assert.Equal(t, domain.ScanStatusInProgress, progress.Status)
	assert.Equal(t, domain.StepScanningFilesystem, progress.CurrentStep.Description)
	assert.Nil(t, progress.FinishedAt)

	require.NoError(t, progress.Advance(domain.StepProcessingNewGames, 3, 10))
	require.NotNil(t, progress.CurrentStep.Current)
	assert.Equal(t, 3, *progress.CurrentStep.Current)
	assert.Equal(t, 10, *progress.CurrentStep.Total)

	require.NoError(t, progress.Complete(domain.NewQuickScanResult(4, 1, 2)))
	assert.Equal(t, domain.ScanStatusCompleted, progress.Status)
	assert.Equal(t, domain.StepFinished, progress.CurrentStep.Description)
	assert.NotNil(t, progress.FinishedAt)
	assert.False(t, progress.Result.IsFull())
	assert.Equal(t, 4, progress.Result.New)

	assert.ErrorIs(t, progress.Step(domain.StepFinishing), domain.ErrScanFinished)
	assert.ErrorIs(t, progress.Fail(errors.New("late")), domain.ErrScanFinished)
	assert.Equal(t, domain.ScanStatusCompleted, progress.Status)
}

func TestLibraryScanProgress_Fail(t *testing.T) {
	progress := domain.NewLibraryScanProgress(uuid.New(), domain.ScanTypeFull)

	require.NoError(t, progress.Fail(errors.New("disk on fire")))

	assert.Equal(t, domain.ScanStatusFailed, progress.Status)
	assert.Equal(t, "disk on fire", progress.Message)
	assert.Nil(t, progress.Result)
	assert.ErrorIs(t, progress.Complete(domain.NewFullScanResult(0, 0, 0, 0)), domain.ErrScanFinished)
}

func TestLibraryScanProgress_SnapshotIsIndependent(t *testing.T) {
	progress := domain.NewLibraryScanProgress(uuid.New(), domain.ScanTypeFull)
	require.NoError(t, progress.Advance(domain.StepUpdatingGames, 1, 5))

	snapshot := progress.Snapshot()
	require.NoError(t, progress.Advance(domain.StepUpdatingGames, 2, 5))

	assert.Equal(t, 1, *snapshot.CurrentStep.Current)
	assert.Equal(t, 2, *progress.CurrentStep.Current)
}

func TestScanType(t *testing.T) {
	assert.True(t, domain.ScanTypeQuick.Valid())
	assert.False(t, domain.ScanType("PARTIAL").Valid())
	assert.False(t, domain.ScanTypeQuick.RefreshesExisting())
	assert.True(t, domain.ScanTypeFull.RefreshesExisting())
	assert.True(t, domain.ScanTypeScheduled.RefreshesExisting())
}

func TestLibraryScanResult(t *testing.T) {
	full := domain.NewFullScanResult(1, 2, 3, 4)

	assert.True(t, full.IsFull())
	assert.Equal(t, 4, full.Updated)
	assert.Equal(t, 3, full.Unmatched)
}
