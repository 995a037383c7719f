package failure_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/transseas/conveyor"
	"github.com/transseas/conveyor/failure"
	"github.com/transseas/conveyor/id"
)

type fakeArchive struct {
	purgedBefore time.Time
	purged       int64
	purgeErr     error
}

func (f *fakeArchive) PushFailure(_ context.Context, _ *failure.Entry) error { return nil }

func (f *fakeArchive) ListFailures(_ context.Context, _ failure.ListOpts) ([]*failure.Entry, error) {
	return nil, nil
}

func (f *fakeArchive) GetFailure(_ context.Context, _ id.FailureID) (*failure.Entry, error) {
	return nil, conveyor.ErrFailureNotFound
}

func (f *fakeArchive) MarkReplayed(_ context.Context, _ id.FailureID) error { return nil }

func (f *fakeArchive) PurgeFailures(_ context.Context, before time.Time) (int64, error) {
	if f.purgeErr != nil {
		return 0, f.purgeErr
	}
	f.purgedBefore = before
	return f.purged, nil
}

func (f *fakeArchive) CountFailures(_ context.Context) (int64, error) { return 0, nil }

func newPurgeHandler(archive *fakeArchive) func(context.Context, failure.PurgePayload) error {
	svc := failure.NewService(archive, nil)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	def := svc.PurgeDefinition(logger)
	if def.Kind != failure.KindPurgeFailures {
		panic("unexpected purge kind " + def.Kind)
	}
	return def.Handler
}

func TestPurgeDefinition_PurgesBeforeRetentionCutoff(t *testing.T) {
	archive := &fakeArchive{purged: 4}
	handler := newPurgeHandler(archive)

	if err := handler(context.Background(), failure.PurgePayload{RetentionDays: 30}); err != nil {
		t.Fatalf("handler: %v", err)
	}

	wantCutoff := time.Now().UTC().AddDate(0, 0, -30)
	diff := archive.purgedBefore.Sub(wantCutoff)
	if diff < -time.Minute || diff > time.Minute {
		t.Fatalf("cutoff = %v, want about %v", archive.purgedBefore, wantCutoff)
	}
}

func TestPurgeDefinition_RejectsNonPositiveRetention(t *testing.T) {
	handler := newPurgeHandler(&fakeArchive{})

	err := handler(context.Background(), failure.PurgePayload{RetentionDays: 0})
	if err == nil || !conveyor.IsTerminal(err) {
		t.Fatalf("expected terminal error, got: %v", err)
	}
}

func TestPurgeDefinition_StoreErrorIsRetryable(t *testing.T) {
	storeErr := errors.New("connection reset")
	handler := newPurgeHandler(&fakeArchive{purgeErr: storeErr})

	err := handler(context.Background(), failure.PurgePayload{RetentionDays: 7})
	if !errors.Is(err, storeErr) {
		t.Fatalf("expected wrapped store error, got: %v", err)
	}
	if conveyor.IsTerminal(err) {
		t.Fatalf("store errors must be retryable, got terminal: %v", err)
	}
}
