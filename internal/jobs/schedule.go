package jobs

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Trigger computes fire times. cron.Schedule satisfies it.
type Trigger interface {
	// Next returns the first fire time after t, or the zero time when the
	// trigger will never fire again.
	Next(t time.Time) time.Time
}

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ParseSchedule parses a five or six field cron expression or a descriptor
// such as "@daily" or "@every 1h".
func ParseSchedule(expr string) (Trigger, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("%w: empty expression", ErrInvalidCronExpression)
	}
	schedule, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidCronExpression, expr, err)
	}
	return schedule, nil
}

// ValidateSchedule accepts blank expressions, which disable scheduling.
func ValidateSchedule(expr string) error {
	if strings.TrimSpace(expr) == "" {
		return nil
	}
	_, err := ParseSchedule(expr)
	return err
}
