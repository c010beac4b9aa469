package jobs_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/questhold/questhold/internal/jobs"
	"github.com/questhold/questhold/pkg/logger"
)

type everyTrigger time.Duration

func (e everyTrigger) Next(t time.Time) time.Time {
	return t.Add(time.Duration(e))
}

type onceTrigger struct {
	fired atomic.Bool
}

func (o *onceTrigger) Next(t time.Time) time.Time {
	if o.fired.Swap(true) {
		return time.Time{}
	}
	return t.Add(5 * time.Millisecond)
}

func waitClosed(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out")
	}
}

func TestParseSchedule(t *testing.T) {
	tests := []struct {
		name  string
		expr  string
		valid bool
	}{
		{"five fields", "0 3 * * *", true},
		{"with seconds", "*/10 * * * * *", true},
		{"descriptor", "@daily", true},
		{"interval", "@every 1h", true},
		{"padded", "  @hourly ", true},
		{"garbage", "not a cron", false},
		{"out of range", "61 * * * *", false},
		{"blank", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trigger, err := jobs.ParseSchedule(tt.expr)
			if tt.valid {
				require.NoError(t, err)
				assert.True(t, trigger.Next(time.Now()).After(time.Now()))
			} else {
				assert.ErrorIs(t, err, jobs.ErrInvalidCronExpression)
			}
		})
	}
}

func TestValidateSchedule_AllowsBlank(t *testing.T) {
	assert.NoError(t, jobs.ValidateSchedule("  "))
	assert.ErrorIs(t, jobs.ValidateSchedule("bogus"), jobs.ErrInvalidCronExpression)
}

func TestTaskScheduler_RunsRepeatedlyUntilCancelled(t *testing.T) {
	// Arrange
	scheduler := jobs.NewTaskScheduler(logger.NewNoopLogger())
	defer scheduler.Stop()
	var runs atomic.Int32

	// Act
	handle, err := scheduler.Schedule(everyTrigger(5*time.Millisecond), func(context.Context) {
		runs.Add(1)
	})
	require.NoError(t, err)

	// Assert
	assert.False(t, handle.Next().IsZero())
	assert.Eventually(t, func() bool { return runs.Load() >= 3 }, 2*time.Second, time.Millisecond)

	handle.Cancel()
	waitClosed(t, handle.Done())
	assert.True(t, handle.Next().IsZero())
}

func TestTaskScheduler_CancelDoesNotInterruptRun(t *testing.T) {
	// Arrange
	scheduler := jobs.NewTaskScheduler(logger.NewNoopLogger())
	defer scheduler.Stop()

	started := make(chan struct{})
	release := make(chan struct{})
	finished := make(chan error, 1)

	handle, err := scheduler.Schedule(&onceTrigger{}, func(ctx context.Context) {
		close(started)
		<-release
		finished <- ctx.Err()
	})
	require.NoError(t, err)
	waitClosed(t, started)
	assert.True(t, handle.Running())

	// Act
	handle.Cancel()
	close(release)

	// Assert
	select {
	case err := <-finished:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not complete")
	}
	waitClosed(t, handle.Done())
}

func TestTaskScheduler_StopWaitsForInFlightRun(t *testing.T) {
	// Arrange
	scheduler := jobs.NewTaskScheduler(logger.NewNoopLogger())
	started := make(chan struct{})
	release := make(chan struct{})
	var completed atomic.Bool

	_, err := scheduler.Schedule(&onceTrigger{}, func(context.Context) {
		close(started)
		<-release
		completed.Store(true)
	})
	require.NoError(t, err)
	waitClosed(t, started)

	// Act
	stopped := make(chan struct{})
	go func() {
		scheduler.Stop()
		close(stopped)
	}()

	// Assert
	select {
	case <-stopped:
		t.Fatal("Stop returned while a run was in flight")
	case <-time.After(50 * time.Millisecond):
	}
	close(release)
	waitClosed(t, stopped)
	assert.True(t, completed.Load())

	_, err = scheduler.Schedule(everyTrigger(time.Millisecond), func(context.Context) {})
	assert.ErrorIs(t, err, jobs.ErrSchedulerStopped)
}

func TestTaskScheduler_RecoversPanics(t *testing.T) {
	// Arrange
	scheduler := jobs.NewTaskScheduler(logger.NewNoopLogger())
	defer scheduler.Stop()
	var runs atomic.Int32

	// Act
	handle, err := scheduler.Schedule(everyTrigger(5*time.Millisecond), func(context.Context) {
		runs.Add(1)
		panic("boom")
	})
	require.NoError(t, err)

	// Assert
	assert.Eventually(t, func() bool { return runs.Load() >= 2 }, 2*time.Second, time.Millisecond)
	handle.Cancel()
}

func TestTaskScheduler_ExhaustedTriggerEndsHandle(t *testing.T) {
	// Arrange
	scheduler := jobs.NewTaskScheduler(logger.NewNoopLogger())
	defer scheduler.Stop()
	var runs atomic.Int32

	// Act
	handle, err := scheduler.Schedule(&onceTrigger{}, func(context.Context) { runs.Add(1) })
	require.NoError(t, err)

	// Assert
	waitClosed(t, handle.Done())
	assert.Equal(t, int32(1), runs.Load())
	assert.True(t, handle.Next().IsZero())
}
