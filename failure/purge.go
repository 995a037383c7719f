package failure

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/transseas/conveyor"
	"github.com/transseas/conveyor/job"
)

// KindPurgeFailures is the job kind that trims old archive entries.
const KindPurgeFailures = "purge-failures"

// PurgePayload is the payload of a purge-failures job.
type PurgePayload struct {
	// RetentionDays is how many days of archive history to keep.
	RetentionDays int `json:"retentionDays"`
}

// PurgeDefinition returns a job definition that removes archive entries
// older than the payload's retention window. Intended to be driven by a
// cron entry.
func (s *Service) PurgeDefinition(logger *slog.Logger) *job.Definition[PurgePayload] {
	return job.NewDefinition(KindPurgeFailures,
		func(ctx context.Context, p PurgePayload) error {
			if p.RetentionDays <= 0 {
				return conveyor.Terminal(fmt.Errorf("purge-failures: retentionDays must be positive, got %d", p.RetentionDays))
			}
			cutoff := time.Now().UTC().AddDate(0, 0, -p.RetentionDays)
			purged, err := s.store.PurgeFailures(ctx, cutoff)
			if err != nil {
				return fmt.Errorf("purge archive: %w", err)
			}
			logger.Info("failure archive purged",
				slog.Int64("purged", purged),
				slog.Int("retention_days", p.RetentionDays),
			)
			return nil
		},
	)
}
