// Package worker provides the job execution engine — an Executor that
// invokes registered handlers through middleware, and a Pool that
// manages concurrent worker goroutines polling for jobs.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/transseas/conveyor"
	"github.com/transseas/conveyor/backoff"
	"github.com/transseas/conveyor/ext"
	"github.com/transseas/conveyor/failure"
	"github.com/transseas/conveyor/job"
	"github.com/transseas/conveyor/middleware"
)

// Executor runs a single job through middleware and the registered
// handler, then handles retry classification, archiving, state updates,
// and lifecycle events.
type Executor struct {
	registry   *job.Registry
	extensions *ext.Registry
	store      job.Store
	failures   *failure.Service
	backoff    backoff.Strategy
	queueBO    map[string]backoff.Strategy
	mw         middleware.Middleware
	logger     *slog.Logger
}

// NewExecutor creates an Executor with the given dependencies.
func NewExecutor(
	registry *job.Registry,
	extensions *ext.Registry,
	store job.Store,
	failures *failure.Service,
	bo backoff.Strategy,
	logger *slog.Logger,
	mws ...middleware.Middleware,
) *Executor {
	return &Executor{
		registry:   registry,
		extensions: extensions,
		store:      store,
		failures:   failures,
		backoff:    bo,
		queueBO:    make(map[string]backoff.Strategy),
		mw:         middleware.Chain(mws...),
		logger:     logger,
	}
}

// SetQueueBackoff overrides the retry strategy for a single queue.
// Jobs in other queues keep the executor's default strategy.
func (e *Executor) SetQueueBackoff(queue string, bo backoff.Strategy) {
	e.queueBO[queue] = bo
}

func (e *Executor) backoffFor(queue string) backoff.Strategy {
	if bo, ok := e.queueBO[queue]; ok {
		return bo
	}
	return e.backoff
}

// Execute runs a job through the middleware chain and handler.
// On success: marks completed (or deletes, if the job asked to be
// removed on completion) and emits JobCompleted.
// On a retryable failure with attempts remaining: marks retrying with a
// backoff delay and emits JobRetrying.
// On a terminal failure or exhausted attempts: marks failed, archives
// the job, and emits JobFailed.
func (e *Executor) Execute(ctx context.Context, j *job.Job) error {
	handler, ok := e.registry.Get(j.Kind)
	if !ok {
		// A job whose kind nobody registered can never succeed.
		err := conveyor.Terminal(fmt.Errorf("%w: %q", conveyor.ErrUnknownKind, j.Kind))
		j.Attempts++
		j.LastError = err.Error()
		return e.failTerminally(ctx, j, err)
	}

	start := time.Now()

	terminal := func(ctx context.Context) error {
		return handler(ctx, j.Payload)
	}

	err := e.mw(ctx, j, terminal)
	elapsed := time.Since(start)

	now := time.Now().UTC()
	j.UpdatedAt = now

	if err != nil {
		return e.handleFailure(ctx, j, err, now)
	}

	return e.handleSuccess(ctx, j, now, elapsed)
}

// handleSuccess marks the job as completed and emits the lifecycle
// event. Jobs flagged RemoveOnComplete are deleted instead of kept as a
// completed record.
func (e *Executor) handleSuccess(ctx context.Context, j *job.Job, now time.Time, elapsed time.Duration) error {
	j.State = job.StateCompleted
	j.CompletedAt = &now

	if j.RemoveOnComplete {
		if delErr := e.store.DeleteJob(ctx, j.ID); delErr != nil {
			e.logger.Error("failed to remove job after success",
				slog.String("job_id", j.ID.String()),
				slog.String("kind", j.Kind),
				slog.String("error", delErr.Error()),
			)
			return delErr
		}
	} else {
		if updateErr := e.store.UpdateJob(ctx, j); updateErr != nil {
			e.logger.Error("failed to update job after success",
				slog.String("job_id", j.ID.String()),
				slog.String("kind", j.Kind),
				slog.String("error", updateErr.Error()),
			)
			return updateErr
		}
	}

	e.extensions.EmitJobCompleted(ctx, j, elapsed)
	return nil
}

// handleFailure classifies the error and either schedules a retry or
// fails the job terminally. Terminal errors (malformed payloads,
// validation failures) skip the remaining attempt budget.
func (e *Executor) handleFailure(ctx context.Context, j *job.Job, handlerErr error, now time.Time) error {
	j.Attempts++
	j.LastError = handlerErr.Error()

	if conveyor.IsTerminal(handlerErr) || j.Attempts >= j.MaxAttempts {
		return e.failTerminally(ctx, j, handlerErr)
	}

	return e.scheduleRetry(ctx, j, now, handlerErr)
}

// scheduleRetry sets the job to StateRetrying with a backoff delay.
func (e *Executor) scheduleRetry(ctx context.Context, j *job.Job, now time.Time, handlerErr error) error {
	delay := e.backoffFor(j.Queue).Delay(j.Attempts)
	nextRunAt := now.Add(delay)
	j.RunAt = nextRunAt
	j.State = job.StateRetrying

	if updateErr := e.store.UpdateJob(ctx, j); updateErr != nil {
		e.logger.Error("failed to update job for retry",
			slog.String("job_id", j.ID.String()),
			slog.String("error", updateErr.Error()),
		)
		return updateErr
	}

	e.extensions.EmitJobRetrying(ctx, j, j.Attempts, nextRunAt)

	e.logger.Info("job scheduled for retry",
		slog.String("job_id", j.ID.String()),
		slog.String("kind", j.Kind),
		slog.Int("attempt", j.Attempts),
		slog.Int("max_attempts", j.MaxAttempts),
		slog.Duration("delay", delay),
	)

	return fmt.Errorf("job %s attempt %d/%d: %w", j.Kind, j.Attempts, j.MaxAttempts, handlerErr)
}

// failTerminally marks the job as failed, archives it for inspection
// and replay, and emits the structured failure event.
func (e *Executor) failTerminally(ctx context.Context, j *job.Job, handlerErr error) error {
	j.State = job.StateFailed

	if updateErr := e.store.UpdateJob(ctx, j); updateErr != nil {
		e.logger.Error("failed to update job as failed",
			slog.String("job_id", j.ID.String()),
			slog.String("error", updateErr.Error()),
		)
		return updateErr
	}

	if e.failures != nil {
		if archErr := e.failures.Push(ctx, j, handlerErr); archErr != nil {
			e.logger.Error("failed to archive failed job",
				slog.String("job_id", j.ID.String()),
				slog.String("error", archErr.Error()),
			)
		}
	}

	e.extensions.EmitJobFailed(ctx, j, ext.FailureEvent{
		Queue:        j.Queue,
		JobID:        j.ID,
		Kind:         j.Kind,
		Err:          handlerErr,
		AttemptsUsed: j.Attempts,
	})

	e.logger.Warn("job failed terminally",
		slog.String("job_id", j.ID.String()),
		slog.String("kind", j.Kind),
		slog.Int("attempts_used", j.Attempts),
		slog.String("error", handlerErr.Error()),
	)

	return handlerErr
}
