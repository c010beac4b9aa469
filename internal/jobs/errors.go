package jobs

import "errors"

var (
	ErrInvalidCronExpression = errors.New("invalid cron expression")
	ErrSchedulerStopped      = errors.New("scheduler stopped")
)
