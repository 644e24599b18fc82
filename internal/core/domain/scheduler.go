package domain

import "time"

// TaskIDConversationCleanup reaps sessions and conversations idle longer
// than the configured session duration.
const TaskIDConversationCleanup = "conversation-cleanup"

// DefaultCleanupInterval is how often the cleanup task runs under `emma serve`.
const DefaultCleanupInterval = time.Hour

// ScheduledTask is the persisted schedule of one maintenance task.
type ScheduledTask struct {
	ID       string
	Name     string
	Interval time.Duration
	Enabled  bool

	LastRun     time.Time
	NextRun     time.Time
	LastSuccess time.Time

	// LastError is empty after a successful run.
	LastError string
}

// IsDue reports whether an enabled task should run at now. A task that
// has never been scheduled is always due.
func (t *ScheduledTask) IsDue(now time.Time) bool {
	if !t.Enabled {
		return false
	}
	return t.NextRun.IsZero() || !t.NextRun.After(now)
}

// TaskResult records one run of a task.
type TaskResult struct {
	TaskID    string
	StartedAt time.Time
	EndedAt   time.Time
	Success   bool
	Error     string

	// ItemsProcessed is what the run removed or touched, e.g. the number of
	// sessions plus conversations reaped.
	ItemsProcessed int
}

// Duration is how long the run took.
func (r TaskResult) Duration() time.Duration {
	return r.EndedAt.Sub(r.StartedAt)
}

// TaskConfig is the configured schedule for a single task.
type TaskConfig struct {
	Enabled  bool
	Interval time.Duration
}

// SchedulerConfig switches the scheduler and its tasks on and off.
type SchedulerConfig struct {
	Enabled     bool
	TaskConfigs map[string]TaskConfig
}

// GetTaskConfig returns the configuration for taskID, or the zero value
// (disabled) when none is set.
func (c *SchedulerConfig) GetTaskConfig(taskID string) TaskConfig {
	if c.TaskConfigs == nil {
		return TaskConfig{}
	}
	return c.TaskConfigs[taskID]
}

// DefaultSchedulerConfig enables hourly conversation cleanup.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Enabled: true,
		TaskConfigs: map[string]TaskConfig{
			TaskIDConversationCleanup: {Enabled: true, Interval: DefaultCleanupInterval},
		},
	}
}
