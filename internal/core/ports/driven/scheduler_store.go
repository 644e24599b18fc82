package driven

import (
	"context"

	"github.com/custodia-labs/emma/internal/core/domain"
)

// SchedulerStore persists background task state so that intervals survive
// restarts, and keeps a bounded run history for each task.
type SchedulerStore interface {
	// GetTask returns the stored task, or nil and no error if it was never saved.
	GetTask(ctx context.Context, taskID string) (*domain.ScheduledTask, error)

	// SaveTask creates or replaces the task keyed by its ID.
	SaveTask(ctx context.Context, task *domain.ScheduledTask) error

	// RecordResult appends one run outcome.
	RecordResult(ctx context.Context, result *domain.TaskResult) error

	// GetTaskHistory returns up to limit results, most recent first.
	GetTaskHistory(ctx context.Context, taskID string, limit int) ([]domain.TaskResult, error)

	// PruneHistory keeps only the newest keep results per task.
	PruneHistory(ctx context.Context, keep int) error
}
