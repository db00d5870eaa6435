package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"

	"github.com/curatarr/curatarr/internal/metrics"
)

var (
	ErrTaskNotFound = errors.New("task not found")
	ErrTaskRunning  = errors.New("task is already running")
)

// TaskFunc is the function signature for scheduled tasks.
type TaskFunc func(ctx context.Context) error

// TaskState is the run state of a task.
type TaskState string

const (
	StateIdle    TaskState = "idle"
	StateRunning TaskState = "running"
)

// TaskConfig contains configuration for a scheduled task.
type TaskConfig struct {
	ID          string
	Name        string
	Description string
	Cron        string // Cron expression: "0 0 * * *" for midnight daily
	Func        TaskFunc
	RunOnStart  bool // Execute immediately on startup
}

// TaskInfo contains information about a scheduled task for API responses.
type TaskInfo struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Description  string     `json:"description"`
	Cron         string     `json:"cron"`
	State        TaskState  `json:"state"`
	LastRun      *time.Time `json:"lastRun,omitempty"`
	LastDuration string     `json:"lastDuration,omitempty"`
	LastError    string     `json:"lastError,omitempty"`
	NextRun      *time.Time `json:"nextRun,omitempty"`
}

// taskEntry holds internal task state.
type taskEntry struct {
	config       TaskConfig
	job          gocron.Job
	state        TaskState
	lastRun      *time.Time
	lastDuration time.Duration
	lastErr      error
}

// Scheduler manages background scheduled tasks. Each task runs at most
// once at a time: a trigger that arrives while it is running is dropped.
type Scheduler struct {
	gocron gocron.Scheduler
	logger zerolog.Logger
	tasks  map[string]*taskEntry
	mu     sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new scheduler.
func New(logger zerolog.Logger) (*Scheduler, error) {
	gs, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		gocron: gs,
		logger: logger.With().Str("component", "scheduler").Logger(),
		tasks:  make(map[string]*taskEntry),
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// RegisterTask registers a new scheduled task.
func (s *Scheduler) RegisterTask(config TaskConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[config.ID]; exists {
		return fmt.Errorf("task with ID %q already registered", config.ID)
	}

	job, err := s.gocron.NewJob(
		gocron.CronJob(config.Cron, false),
		gocron.NewTask(func() {
			s.trigger(config.ID, "schedule")
		}),
		gocron.WithName(config.Name),
		gocron.WithTags(config.ID),
	)
	if err != nil {
		return fmt.Errorf("failed to create job for task %q: %w", config.ID, err)
	}

	s.tasks[config.ID] = &taskEntry{
		config: config,
		job:    job,
		state:  StateIdle,
	}

	s.logger.Info().
		Str("id", config.ID).
		Str("name", config.Name).
		Str("cron", config.Cron).
		Bool("runOnStart", config.RunOnStart).
		Msg("Registered task")

	return nil
}

// UnregisterTask removes a task. A run in progress finishes.
func (s *Scheduler) UnregisterTask(taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.tasks[taskID]
	if !ok {
		return nil
	}
	if err := s.gocron.RemoveJob(entry.job.ID()); err != nil {
		return fmt.Errorf("failed to remove job for task %q: %w", taskID, err)
	}
	delete(s.tasks, taskID)
	return nil
}

// acquire moves a task from Idle to Running.
func (s *Scheduler) acquire(taskID string) (*taskEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.tasks[taskID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	if entry.state == StateRunning {
		return nil, fmt.Errorf("%w: %s", ErrTaskRunning, taskID)
	}
	entry.state = StateRunning
	return entry, nil
}

// trigger runs a task in the calling goroutine unless it is running.
func (s *Scheduler) trigger(taskID, source string) {
	entry, err := s.acquire(taskID)
	if err != nil {
		if errors.Is(err, ErrTaskRunning) {
			s.logger.Debug().Str("id", taskID).Str("source", source).Msg("Task already running, trigger skipped")
			metrics.RecordTaskRun(taskID, "skipped")
		}
		return
	}
	s.wg.Add(1)
	defer s.wg.Done()
	s.run(entry, source)
}

// run executes an acquired task and returns it to Idle.
func (s *Scheduler) run(entry *taskEntry, source string) {
	startTime := time.Now()
	s.logger.Info().
		Str("id", entry.config.ID).
		Str("name", entry.config.Name).
		Str("source", source).
		Msg("Starting task")

	err := entry.config.Func(s.ctx)
	duration := time.Since(startTime)

	s.mu.Lock()
	entry.state = StateIdle
	entry.lastRun = &startTime
	entry.lastDuration = duration
	entry.lastErr = err
	s.mu.Unlock()

	if err != nil {
		metrics.RecordTaskRun(entry.config.ID, "error")
		s.logger.Error().
			Err(err).
			Str("id", entry.config.ID).
			Str("name", entry.config.Name).
			Dur("duration", duration).
			Msg("Task failed")
		return
	}
	metrics.RecordTaskRun(entry.config.ID, "success")
	s.logger.Info().
		Str("id", entry.config.ID).
		Str("name", entry.config.Name).
		Dur("duration", duration).
		Msg("Task completed")
}

// Start starts the scheduler and runs any tasks configured with RunOnStart.
func (s *Scheduler) Start() error {
	s.logger.Info().Msg("Starting scheduler")

	s.gocron.Start()

	s.mu.Lock()
	tasksToRun := make([]string, 0)
	for id, entry := range s.tasks {
		if entry.config.RunOnStart {
			tasksToRun = append(tasksToRun, id)
		}
	}
	s.mu.Unlock()

	for _, taskID := range tasksToRun {
		go s.trigger(taskID, "startup")
	}

	return nil
}

// Stop cancels running tasks and waits for them to return.
func (s *Scheduler) Stop() error {
	s.logger.Info().Msg("Stopping scheduler")
	s.cancel()
	err := s.gocron.Shutdown()
	s.wg.Wait()
	return err
}

// RunNow starts a task in the background. It returns ErrTaskRunning, and
// does nothing else, when the task is already running.
func (s *Scheduler) RunNow(taskID string) error {
	entry, err := s.acquire(taskID)
	if err != nil {
		if errors.Is(err, ErrTaskRunning) {
			metrics.RecordTaskRun(taskID, "skipped")
		}
		return err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(entry, "manual")
	}()
	return nil
}

// ListTasks returns information about all registered tasks ordered by id.
func (s *Scheduler) ListTasks() []TaskInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks := make([]TaskInfo, 0, len(s.tasks))
	for _, entry := range s.tasks {
		tasks = append(tasks, entry.info())
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })
	return tasks
}

// GetTask returns information about a specific task.
func (s *Scheduler) GetTask(taskID string) (*TaskInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.tasks[taskID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	info := entry.info()
	return &info, nil
}

// State returns the state of a task.
func (s *Scheduler) State(taskID string) (TaskState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.tasks[taskID]
	if !exists {
		return "", fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	return entry.state, nil
}

func (e *taskEntry) info() TaskInfo {
	info := TaskInfo{
		ID:          e.config.ID,
		Name:        e.config.Name,
		Description: e.config.Description,
		Cron:        e.config.Cron,
		State:       e.state,
		LastRun:     e.lastRun,
	}
	if e.lastRun != nil {
		info.LastDuration = e.lastDuration.String()
	}
	if e.lastErr != nil {
		info.LastError = e.lastErr.Error()
	}
	if nextRun, err := e.job.NextRun(); err == nil {
		info.NextRun = &nextRun
	}
	return info
}
