package jobs

import "time"

// EventJobRunFinished is published after every job run has been recorded.
const EventJobRunFinished = "job.run.finished"

// JobRunFinishedEvent carries the recorded run.
type JobRunFinishedEvent struct {
	Run        *JobRunResult `json:"run"`
	occurredAt time.Time
}

func NewJobRunFinishedEvent(run *JobRunResult) *JobRunFinishedEvent {
	return &JobRunFinishedEvent{Run: run, occurredAt: time.Now()}
}

func (e *JobRunFinishedEvent) EventType() string     { return EventJobRunFinished }
func (e *JobRunFinishedEvent) OccurredAt() time.Time { return e.occurredAt }
func (e *JobRunFinishedEvent) AggregateID() string   { return e.Run.JobName }
