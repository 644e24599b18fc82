package services

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/emma/internal/core/domain"
	"github.com/custodia-labs/emma/internal/core/ports/driven"
	"github.com/custodia-labs/emma/internal/core/ports/driving"
	"github.com/custodia-labs/emma/internal/logger"
)

// Ensure Scheduler implements the interface.
var _ driving.Scheduler = (*Scheduler)(nil)

// historyKeep is the number of results kept per task.
const historyKeep = 100

// taskFunc runs one task and reports how many items it handled.
type taskFunc func(ctx context.Context) (int, error)

type taskDef struct {
	name string
	run  taskFunc
}

// Scheduler runs recurring maintenance tasks on a fixed tick.
// Task state lives in the store so intervals survive restarts.
type Scheduler struct {
	config        domain.SchedulerConfig
	store         driven.SchedulerStore
	tasks         map[string]taskDef
	checkInterval time.Duration

	mu       sync.Mutex
	running  bool
	inFlight map[string]bool
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewScheduler creates a scheduler that reaps idle conversations.
func NewScheduler(
	config domain.SchedulerConfig,
	store driven.SchedulerStore,
	conversations driving.ConversationService,
) *Scheduler {
	s := &Scheduler{
		config:        config,
		store:         store,
		tasks:         make(map[string]taskDef),
		checkInterval: time.Minute,
		inFlight:      make(map[string]bool),
	}
	if conversations != nil {
		s.tasks[domain.TaskIDConversationCleanup] = taskDef{
			name: "Conversation Cleanup",
			run: func(context.Context) (int, error) {
				res := conversations.CleanupOldConversations()
				return res.SessionsRemoved + res.ConversationsRemoved, nil
			},
		}
	}
	return s
}

// SetCheckInterval changes how often due tasks are checked.
func (s *Scheduler) SetCheckInterval(d time.Duration) {
	if d > 0 {
		s.checkInterval = d
	}
}

// Start runs the scheduler loop until ctx is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	if !s.config.Enabled {
		logger.Debug("Scheduler disabled")
		return nil
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.stopCh = make(chan struct{})
	stopCh := s.stopCh
	s.mu.Unlock()

	if err := s.initialiseTasks(ctx); err != nil {
		logger.Warn("scheduler: failed to initialise tasks: %v", err)
	}

	err := s.run(ctx, stopCh)
	s.wg.Wait()

	s.mu.Lock()
	if s.running && s.stopCh == stopCh {
		s.running = false
	}
	s.mu.Unlock()
	return err
}

// Stop shuts the loop down and waits for running tasks.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

func (s *Scheduler) initialiseTasks(ctx context.Context) error {
	for id, def := range s.tasks {
		cfg := s.config.GetTaskConfig(id)
		if !cfg.Enabled {
			continue
		}
		if err := s.ensureTask(ctx, id, def.name, cfg); err != nil {
			return err
		}
	}
	return nil
}

// ensureTask creates the task or updates its schedule from config.
func (s *Scheduler) ensureTask(ctx context.Context, id, name string, cfg domain.TaskConfig) error {
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return err
	}

	if task == nil {
		task = &domain.ScheduledTask{
			ID:       id,
			Name:     name,
			Interval: cfg.Interval,
			Enabled:  cfg.Enabled,
			NextRun:  time.Now().Add(cfg.Interval),
		}
	} else {
		if task.Interval != cfg.Interval {
			task.Interval = cfg.Interval
			task.NextRun = time.Now().Add(cfg.Interval)
		}
		task.Enabled = cfg.Enabled
	}

	return s.store.SaveTask(ctx, task)
}

func (s *Scheduler) run(ctx context.Context, stopCh <-chan struct{}) error {
	s.checkAndRunDueTasks(ctx)

	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stopCh:
			return nil
		case <-ticker.C:
			s.checkAndRunDueTasks(ctx)
		}
	}
}

func (s *Scheduler) checkAndRunDueTasks(ctx context.Context) {
	now := time.Now()
	for id := range s.tasks {
		task, err := s.store.GetTask(ctx, id)
		if err != nil {
			logger.Warn("scheduler: failed to load task %s: %v", id, err)
			continue
		}
		if task != nil && task.IsDue(now) {
			s.runTask(ctx, task)
		}
	}
}

// runTask executes one task in the background. A task still running from a
// previous tick is skipped.
func (s *Scheduler) runTask(ctx context.Context, task *domain.ScheduledTask) {
	def, ok := s.tasks[task.ID]
	if !ok {
		logger.Warn("scheduler: unknown task ID: %s", task.ID)
		return
	}

	s.mu.Lock()
	if s.inFlight[task.ID] {
		s.mu.Unlock()
		return
	}
	s.inFlight[task.ID] = true
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.inFlight, task.ID)
			s.mu.Unlock()
		}()

		result := &domain.TaskResult{
			TaskID:    task.ID,
			StartedAt: time.Now(),
		}

		var err error
		result.ItemsProcessed, err = def.run(ctx)

		result.EndedAt = time.Now()
		if err != nil {
			result.Error = err.Error()
			task.LastError = err.Error()
		} else {
			result.Success = true
			task.LastError = ""
			task.LastSuccess = result.EndedAt
		}

		task.LastRun = result.StartedAt
		task.NextRun = result.EndedAt.Add(task.Interval)

		// Bookkeeping outlives a cancelled loop so the last run is recorded.
		store := context.WithoutCancel(ctx)
		if saveErr := s.store.SaveTask(store, task); saveErr != nil {
			logger.Warn("scheduler: failed to save task %s: %v", task.ID, saveErr)
		}
		if recordErr := s.store.RecordResult(store, result); recordErr != nil {
			logger.Warn("scheduler: failed to record result for %s: %v", task.ID, recordErr)
		}
		if pruneErr := s.store.PruneHistory(store, historyKeep); pruneErr != nil {
			logger.Warn("scheduler: failed to prune history: %v", pruneErr)
		}
		logger.Debug("scheduler: task %s processed %d items in %s", task.ID, result.ItemsProcessed, result.Duration())
	}()
}
