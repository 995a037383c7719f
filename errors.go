package conveyor

import "errors"

var (
	// Store errors.
	ErrNoStore     = errors.New("conveyor: no store configured")
	ErrStoreClosed = errors.New("conveyor: store closed")

	// Not found errors.
	ErrJobNotFound     = errors.New("conveyor: job not found")
	ErrFailureNotFound = errors.New("conveyor: failure entry not found")

	// Conflict errors.
	ErrJobAlreadyExists = errors.New("conveyor: job already exists")
	ErrDuplicateCron    = errors.New("conveyor: duplicate cron entry")

	// State errors.
	ErrInvalidState = errors.New("conveyor: invalid state transition")
	ErrUnknownKind  = errors.New("conveyor: no handler registered for job kind")
)

// terminalError marks a handler error as non-retryable. Retrying a
// malformed payload or a misrouted job cannot succeed, so the executor
// archives the job immediately instead of consuming the attempt budget.
type terminalError struct {
	err error
}

func (t *terminalError) Error() string { return t.err.Error() }

func (t *terminalError) Unwrap() error { return t.err }

// Terminal wraps err so the executor treats it as a terminal failure.
// Wrapping nil returns nil.
func Terminal(err error) error {
	if err == nil {
		return nil
	}
	return &terminalError{err: err}
}

// IsTerminal reports whether any error in err's chain was marked with
// Terminal.
func IsTerminal(err error) bool {
	var t *terminalError
	return errors.As(err, &t)
}
