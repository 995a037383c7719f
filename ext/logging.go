package ext

import (
	"context"
	"log/slog"

	"github.com/transseas/conveyor/job"
)

// FailureLogger is the baseline observability extension: it logs every
// terminal failure event with its full structured context. Alerting
// systems subscribe through their own extensions; logging is the
// minimum bar.
type FailureLogger struct {
	logger *slog.Logger
}

// NewFailureLogger creates a FailureLogger writing to the given logger.
func NewFailureLogger(logger *slog.Logger) *FailureLogger {
	return &FailureLogger{logger: logger}
}

// Name implements Extension.
func (f *FailureLogger) Name() string { return "failure-logger" }

// OnJobFailed implements JobFailed.
func (f *FailureLogger) OnJobFailed(_ context.Context, _ *job.Job, ev FailureEvent) error {
	f.logger.Error("job failed terminally",
		slog.String("queue", ev.Queue),
		slog.String("job_id", ev.JobID.String()),
		slog.String("kind", ev.Kind),
		slog.String("error", ev.Err.Error()),
		slog.Int("attempts_used", ev.AttemptsUsed),
	)
	return nil
}
