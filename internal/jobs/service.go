package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/questhold/questhold/internal/settings"
	"github.com/questhold/questhold/pkg/errors"
	"github.com/questhold/questhold/pkg/interfaces"
)

// Job is work that the scheduler runs and records.
type Job interface {
	Name() string

	// Run returns a summary message on success
	Run(ctx context.Context) (string, error)
}

// RunObserver is notified after every recorded run.
type RunObserver func(job string, status RunStatus)

// JobService keeps the scheduled scan job in line with the schedule
// settings and records every run.
type JobService struct {
	scheduler *TaskScheduler
	repo      Repository
	job       Job
	settings  *settings.Service
	eventBus  interfaces.EventBus
	logger    interfaces.Logger

	mu       sync.Mutex
	handle   *Handle
	schedule string
	observer RunObserver
}

// NewJobService creates a new job service
func NewJobService(
	scheduler *TaskScheduler,
	repo Repository,
	job Job,
	settingsService *settings.Service,
	eventBus interfaces.EventBus,
	logger interfaces.Logger,
) *JobService {
	return &JobService{
		scheduler: scheduler,
		repo:      repo,
		job:       job,
		settings:  settingsService,
		eventBus:  eventBus,
		logger:    logger,
	}
}

// SetObserver installs a hook called after every run.
func (s *JobService) SetObserver(observer RunObserver) {
	s.mu.Lock()
	s.observer = observer
	s.mu.Unlock()
}

// Start registers the schedule validator, follows config.updated events and
// arms the job from the current settings.
func (s *JobService) Start(ctx context.Context) error {
	settings.RegisterValidator(s.settings, settings.MetadataUpdateSchedule, func(expr string) error {
		if err := ValidateSchedule(expr); err != nil {
			return errors.Wrap(errors.ErrorTypeBadRequest, "invalid cron expression", err)
		}
		return nil
	})

	if err := s.eventBus.Subscribe(settings.EventConfigUpdated, s); err != nil {
		return err
	}
	return s.Reload(ctx)
}

// Stop cancels the pending run without waiting for an in-flight one.
func (s *JobService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle != nil {
		s.handle.Cancel()
		s.handle = nil
	}
}

// Reload reads the schedule settings and reconfigures the job.
func (s *JobService) Reload(ctx context.Context) error {
	enabled, err := settings.Get(ctx, s.settings, settings.MetadataUpdateEnabled)
	if err != nil {
		return err
	}
	schedule, err := settings.Get(ctx, s.settings, settings.MetadataUpdateSchedule)
	if err != nil {
		return err
	}
	return s.Configure(ctx, enabled, schedule)
}

// Configure replaces the job schedule. An invalid expression is rejected
// and the current schedule stays armed. A blank expression or enabled=false
// leaves nothing scheduled.
func (s *JobService) Configure(ctx context.Context, enabled bool, expr string) error {
	log := s.logger.WithContext(ctx).WithFields(interfaces.String("job", s.job.Name()))

	var trigger Trigger
	if enabled && expr != "" {
		parsed, err := ParseSchedule(expr)
		if err != nil {
			log.Debug("Rejected job schedule",
				interfaces.String("schedule", expr),
				interfaces.Error(err))
			return errors.Wrap(errors.ErrorTypeBadRequest, "failed to schedule "+s.job.Name()+": invalid cron expression", err)
		}
		trigger = parsed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handle != nil {
		s.handle.Cancel()
		s.handle = nil
	}
	s.schedule = ""

	if trigger == nil {
		log.Debug("Job not scheduled", interfaces.Bool("enabled", enabled))
		return nil
	}

	handle, err := s.scheduler.Schedule(trigger, func(runCtx context.Context) {
		s.runAndPersist(runCtx)
	})
	if err != nil {
		return errors.Wrap(errors.ErrorTypeUnavailable, "failed to schedule "+s.job.Name(), err)
	}
	s.handle = handle
	s.schedule = expr

	log.Debug("Job scheduled",
		interfaces.String("schedule", expr),
		interfaces.Time("next_run", handle.Next()))
	return nil
}

// NextRun returns the pending fire time, zero when nothing is scheduled.
func (s *JobService) NextRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle == nil {
		return time.Time{}
	}
	return s.handle.Next()
}

// Schedule returns the expression currently armed.
func (s *JobService) Schedule() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.schedule
}

// RunNow executes the job immediately and records the run.
func (s *JobService) RunNow(ctx context.Context) *JobRunResult {
	return s.runAndPersist(ctx)
}

// History lists the most recent runs of the job.
func (s *JobService) History(ctx context.Context, limit int) ([]*JobRunResult, error) {
	return s.repo.ListRuns(ctx, s.job.Name(), limit)
}

func (s *JobService) runAndPersist(ctx context.Context) *JobRunResult {
	log := s.logger.WithContext(ctx).WithFields(interfaces.String("job", s.job.Name()))
	run := &JobRunResult{JobName: s.job.Name(), StartedAt: time.Now().UTC()}

	message, err := s.execute(ctx)
	run.FinishedAt = time.Now().UTC()
	if err != nil {
		run.Status = RunStatusFailed
		run.Message = err.Error()
		log.Error("Job failed", interfaces.Error(err), interfaces.Duration("duration", run.Duration()))
	} else {
		run.Status = RunStatusSuccess
		run.Message = message
		log.Info("Job completed", interfaces.String("message", message), interfaces.Duration("duration", run.Duration()))
	}

	if err := s.repo.SaveRun(context.WithoutCancel(ctx), run); err != nil {
		log.Error("Failed to record job run", interfaces.Error(err))
	}

	s.eventBus.PublishAsync(ctx, NewJobRunFinishedEvent(run))

	s.mu.Lock()
	observer := s.observer
	s.mu.Unlock()
	if observer != nil {
		observer(run.JobName, run.Status)
	}
	return run
}

func (s *JobService) execute(ctx context.Context) (message string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return s.job.Run(ctx)
}

// Handle implements interfaces.EventHandler
func (s *JobService) Handle(ctx context.Context, event interfaces.Event) error {
	updated, ok := event.(*settings.ConfigUpdatedEvent)
	if !ok {
		return nil
	}
	if updated.Key != settings.MetadataUpdateEnabled.Name && updated.Key != settings.MetadataUpdateSchedule.Name {
		return nil
	}

	if err := s.Reload(ctx); err != nil {
		s.logger.Error("Failed to re-arm job", interfaces.String("job", s.job.Name()), interfaces.Error(err))
		return err
	}
	return nil
}

// Name implements interfaces.EventHandler
func (s *JobService) Name() string {
	return "jobs." + s.job.Name()
}
