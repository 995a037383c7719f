package cron_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/transseas/conveyor"
	"github.com/transseas/conveyor/cron"
	"github.com/transseas/conveyor/id"
	"github.com/transseas/conveyor/job"
)

// stubEmitter records EmitCronFired calls.
type stubEmitter struct {
	mu    sync.Mutex
	calls []cronFiredCall
}

type cronFiredCall struct {
	EntryName string
	JobID     id.JobID
}

func (e *stubEmitter) EmitCronFired(_ context.Context, entryName string, jobID id.JobID) {
	e.mu.Lock()
	e.calls = append(e.calls, cronFiredCall{EntryName: entryName, JobID: jobID})
	e.mu.Unlock()
}

func (e *stubEmitter) getCalls() []cronFiredCall {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]cronFiredCall, len(e.calls))
	copy(out, e.calls)
	return out
}

// enqueueSpy tracks enqueue calls with thread safety.
type enqueueSpy struct {
	mu    sync.Mutex
	calls []enqueueCall
}

type enqueueCall struct {
	Kind    string
	Payload []byte
	Queue   string
}

func (e *enqueueSpy) Fn() cron.EnqueueFunc {
	return func(_ context.Context, kind string, payload []byte, opts ...job.Option) (id.JobID, error) {
		o := job.DefaultOptions()
		for _, opt := range opts {
			opt(&o)
		}
		e.mu.Lock()
		e.calls = append(e.calls, enqueueCall{Kind: kind, Payload: payload, Queue: o.Queue})
		e.mu.Unlock()
		return id.NewJobID(), nil
	}
}

func (e *enqueueSpy) Count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.calls)
}

func (e *enqueueSpy) Calls() []enqueueCall {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]enqueueCall, len(e.calls))
	copy(out, e.calls)
	return out
}

func TestScheduler_RegisterValidatesSchedule(t *testing.T) {
	spy := &enqueueSpy{}
	s := cron.NewScheduler(spy.Fn(), nil, nil)

	err := s.Register(&cron.Entry{
		Name:     "bad",
		Schedule: "not a cron expression",
		Kind:     "noop",
	})
	if err == nil {
		t.Fatal("expected parse error for invalid schedule")
	}
}

func TestScheduler_RegisterRejectsDuplicateName(t *testing.T) {
	spy := &enqueueSpy{}
	s := cron.NewScheduler(spy.Fn(), nil, nil)

	entry := &cron.Entry{Name: "sweep", Schedule: "@every 1h", Kind: "noop", Enabled: true}
	if err := s.Register(entry); err != nil {
		t.Fatalf("first register: %v", err)
	}

	dup := &cron.Entry{Name: "sweep", Schedule: "@every 2h", Kind: "noop", Enabled: true}
	if err := s.Register(dup); !errors.Is(err, conveyor.ErrDuplicateCron) {
		t.Fatalf("expected ErrDuplicateCron, got %v", err)
	}
}

func TestScheduler_RegisterComputesNextRun(t *testing.T) {
	spy := &enqueueSpy{}
	s := cron.NewScheduler(spy.Fn(), nil, nil)

	entry := &cron.Entry{Name: "sweep", Schedule: "@every 1h", Kind: "noop", Enabled: true}
	if err := s.Register(entry); err != nil {
		t.Fatalf("register: %v", err)
	}

	entries := s.Entries()
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if entries[0].NextRunAt == nil {
		t.Fatal("expected NextRunAt to be computed at registration")
	}
	if entries[0].ID.IsNil() {
		t.Error("expected an ID to be assigned")
	}
}

func TestScheduler_FiresDueEntry(t *testing.T) {
	spy := &enqueueSpy{}
	emitter := &stubEmitter{}
	s := cron.NewScheduler(spy.Fn(), emitter, nil,
		cron.WithTickInterval(10*time.Millisecond),
	)

	entry := &cron.Entry{
		Name:     "persistence-sweep",
		Schedule: "@every 1s",
		Kind:     "persist-conversation",
		Queue:    "persistence",
		Payload:  []byte(`{"conversationId":"conv-1"}`),
		Enabled:  true,
	}
	if err := s.Register(entry); err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.Stop(ctx)
	}()

	deadline := time.After(5 * time.Second)
	for spy.Count() == 0 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for cron to fire")
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}

	calls := spy.Calls()
	if calls[0].Kind != "persist-conversation" {
		t.Errorf("fired kind = %q, want %q", calls[0].Kind, "persist-conversation")
	}
	if calls[0].Queue != "persistence" {
		t.Errorf("fired queue = %q, want %q", calls[0].Queue, "persistence")
	}

	fired := emitter.getCalls()
	if len(fired) == 0 {
		t.Fatal("expected EmitCronFired call")
	}
	if fired[0].EntryName != "persistence-sweep" {
		t.Errorf("event entry = %q, want %q", fired[0].EntryName, "persistence-sweep")
	}
}

func TestScheduler_DisabledEntryDoesNotFire(t *testing.T) {
	spy := &enqueueSpy{}
	s := cron.NewScheduler(spy.Fn(), nil, nil,
		cron.WithTickInterval(10*time.Millisecond),
	)

	entry := &cron.Entry{
		Name:     "disabled",
		Schedule: "@every 1s",
		Kind:     "noop",
		Enabled:  false,
	}
	if err := s.Register(entry); err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}

	if spy.Count() != 0 {
		t.Fatalf("disabled entry fired %d times, want 0", spy.Count())
	}
}

func TestScheduler_StartStopIdempotent(t *testing.T) {
	spy := &enqueueSpy{}
	s := cron.NewScheduler(spy.Fn(), nil, nil)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("double start: %v", err)
	}

	ctx := context.Background()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("double stop: %v", err)
	}
}
