// Package failure provides the terminal-failure archive for jobs that
// exhausted their attempt budget or failed with a non-retryable error.
// Terminal jobs are retained for operator inspection, never silently
// discarded.
//
// When the executor classifies a failure as terminal it calls
// [Service.Push], preserving the original payload, the final error
// message, and the consumed attempt budget.
//
// # Entry
//
// An [Entry] captures:
//   - JobID / Kind / Queue: original job identity
//   - Payload: the raw JSON payload at time of failure
//   - Error: the final error message
//   - AttemptsUsed / MaxAttempts: the exhausted budget
//   - FailedAt: when the terminal failure occurred
//   - ReplayedAt: set when the entry is replayed (nil if not yet replayed)
//
// # Replay
//
// Replaying an entry re-enqueues the original payload as a fresh
// pending job with a full attempt budget and sets ReplayedAt on the
// entry. Use it after fixing the underlying defect (for example a
// template bug that made every send-rfq job fail validation).
package failure
