package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
	"github.com/jwalitptl/booking-api/pkg/logger"
	"github.com/jwalitptl/booking-api/pkg/metrics"
)

// Handler executes a fired task.
type Handler interface {
	Handle(ctx context.Context, task *model.DeferredTask) error
}

type HandlerFunc func(ctx context.Context, task *model.DeferredTask) error

func (f HandlerFunc) Handle(ctx context.Context, task *model.DeferredTask) error {
	return f(ctx, task)
}

type RunnerConfig struct {
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
	RetryDelay   time.Duration
	Lease        time.Duration
}

func (c RunnerConfig) withDefaults() RunnerConfig {
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 20
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = time.Minute
	}
	if c.Lease <= 0 {
		c.Lease = 2 * time.Minute
	}
	return c
}

// Runner polls for due tasks and dispatches them by kind.
type Runner struct {
	repo     repository.TaskRepository
	handlers map[string]Handler
	config   RunnerConfig
	clock    Clock
	logger   *logger.Logger
	metrics  *metrics.Metrics
}

func NewRunner(repo repository.TaskRepository, config RunnerConfig, l *logger.Logger, m *metrics.Metrics, opts ...Option) *Runner {
	s := applyOptions(opts)
	return &Runner{
		repo:     repo,
		handlers: make(map[string]Handler),
		config:   config.withDefaults(),
		clock:    s.clock,
		logger:   l.With("task-runner"),
		metrics:  m,
	}
}

// Register binds h to kind. Not safe to call after Start.
func (r *Runner) Register(kind string, h Handler) {
	r.handlers[kind] = h
}

func (r *Runner) Start(ctx context.Context) {
	ticker := time.NewTicker(r.config.PollInterval)
	defer ticker.Stop()

	r.logger.Info("Starting task runner", "poll_interval", r.config.PollInterval.String())

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Shutting down task runner")
			return
		case <-ticker.C:
			if _, err := r.RunOnce(ctx); err != nil {
				r.logger.Error(err, "Failed to run due tasks")
			}
		}
	}
}

// RunOnce fires every task due at the current clock time, up to BatchSize,
// and returns how many ran successfully.
func (r *Runner) RunOnce(ctx context.Context) (int, error) {
	now := r.clock()

	tasks, err := r.repo.ClaimDue(ctx, now, r.config.BatchSize, r.config.Lease)
	if err != nil {
		r.metrics.DatabaseOperations.WithLabelValues("claim_due_tasks", "error").Inc()
		return 0, fmt.Errorf("claim due tasks: %w", err)
	}
	r.metrics.DatabaseOperations.WithLabelValues("claim_due_tasks", "success").Inc()

	fired := 0
	for _, task := range tasks {
		if err := r.run(ctx, task); err != nil {
			r.logger.Error(err, "task failed",
				"task_id", task.ID.String(),
				"kind", task.Kind,
				"attempts", task.Attempts)
			continue
		}
		fired++
	}
	return fired, nil
}

var errNoHandler = errors.New("no handler registered")

func (r *Runner) run(ctx context.Context, task *model.DeferredTask) error {
	h, ok := r.handlers[task.Kind]
	if !ok {
		msg := fmt.Sprintf("%s for kind %q", errNoHandler, task.Kind)
		if err := r.repo.MarkFired(ctx, task.ID, &msg); err != nil {
			return err
		}
		return errNoHandler
	}

	if err := h.Handle(ctx, task); err != nil {
		r.metrics.TasksFailed.WithLabelValues(task.Kind).Inc()
		return r.retryOrGiveUp(ctx, task, err)
	}

	r.metrics.TasksFired.WithLabelValues(task.Kind).Inc()
	if err := r.repo.MarkFired(ctx, task.ID, nil); err != nil {
		return fmt.Errorf("mark task fired: %w", err)
	}
	return nil
}

// retryOrGiveUp returns cause in both cases so the caller logs it. After
// MaxAttempts the task is closed as fired with the error recorded.
func (r *Runner) retryOrGiveUp(ctx context.Context, task *model.DeferredTask, cause error) error {
	msg := cause.Error()
	if task.Attempts >= r.config.MaxAttempts {
		if err := r.repo.MarkFired(ctx, task.ID, &msg); err != nil {
			return fmt.Errorf("%w (and closing task: %v)", cause, err)
		}
		return fmt.Errorf("giving up after %d attempts: %w", task.Attempts, cause)
	}

	if err := r.repo.Reschedule(ctx, task.ID, r.clock().Add(r.config.RetryDelay), msg); err != nil {
		return fmt.Errorf("%w (and rescheduling: %v)", cause, err)
	}
	return cause
}
