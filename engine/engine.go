package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/transseas/conveyor"
	"github.com/transseas/conveyor/backoff"
	"github.com/transseas/conveyor/cron"
	"github.com/transseas/conveyor/ext"
	"github.com/transseas/conveyor/failure"
	"github.com/transseas/conveyor/id"
	"github.com/transseas/conveyor/job"
	mw "github.com/transseas/conveyor/middleware"
	"github.com/transseas/conveyor/queue"
	"github.com/transseas/conveyor/worker"
)

// Engine wraps a Dispatcher with typed subsystem access.
// Use Build() to create one from a Dispatcher.
type Engine struct {
	d          *conveyor.Dispatcher
	extensions *ext.Registry
	registry   *job.Registry
	jobStore   job.Store
	failures   *failure.Service
	bo         backoff.Strategy
	queueBO    map[string]backoff.Strategy
	pool       *worker.Pool
	scheduler  *cron.Scheduler
	mws        []mw.Middleware
	logger     *slog.Logger

	// Queue subsystem.
	queueConfigs []queue.Config
	queueManager *queue.Manager

	// OpenTelemetry providers (optional; nil means use global).
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// Option configures an Engine.
type Option func(*Engine)

// WithExtension registers an extension with the engine.
func WithExtension(e ext.Extension) Option {
	return func(eng *Engine) {
		eng.extensions.Register(e)
	}
}

// WithMiddleware adds middleware to the engine's chain.
func WithMiddleware(m mw.Middleware) Option {
	return func(eng *Engine) {
		eng.mws = append(eng.mws, m)
	}
}

// WithBackoff sets the default retry backoff strategy for the engine.
// If not set, backoff.DefaultStrategy() (exponential with jitter) is used.
func WithBackoff(b backoff.Strategy) Option {
	return func(eng *Engine) {
		eng.bo = b
	}
}

// WithQueueBackoff overrides the retry strategy for a single queue.
// The mail queue typically uses backoff.MailStrategy().
func WithQueueBackoff(queueName string, b backoff.Strategy) Option {
	return func(eng *Engine) {
		eng.queueBO[queueName] = b
	}
}

// WithQueueConfig registers queue-level rate limiting and concurrency
// configurations. Queues not listed have no limits.
func WithQueueConfig(configs ...queue.Config) Option {
	return func(eng *Engine) {
		eng.queueConfigs = append(eng.queueConfigs, configs...)
	}
}

// WithTracerProvider sets a custom OTel TracerProvider for the engine.
// When set, the tracing middleware uses this provider instead of the global one.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(eng *Engine) {
		eng.tracerProvider = tp
	}
}

// WithMeterProvider sets a custom OTel MeterProvider for the engine.
// When set, the metrics middleware uses this provider instead of the global one.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(eng *Engine) {
		eng.meterProvider = mp
	}
}

// Build creates an Engine from an existing Dispatcher.
// The Dispatcher's store must implement job.Store and failure.Store.
func Build(d *conveyor.Dispatcher, opts ...Option) (*Engine, error) {
	logger := d.Logger()
	store := d.Store()

	if store == nil {
		return nil, conveyor.ErrNoStore
	}

	js, ok := store.(job.Store)
	if !ok {
		return nil, fmt.Errorf("conveyor: store does not implement job.Store")
	}

	fs, ok := store.(failure.Store)
	if !ok {
		return nil, fmt.Errorf("conveyor: store does not implement failure.Store")
	}

	eng := &Engine{
		d:          d,
		extensions: ext.NewRegistry(logger),
		registry:   job.NewRegistry(),
		jobStore:   js,
		queueBO:    make(map[string]backoff.Strategy),
		logger:     logger,
	}

	for _, opt := range opts {
		opt(eng)
	}

	if eng.bo == nil {
		eng.bo = backoff.DefaultStrategy()
	}

	eng.failures = failure.NewService(fs, js)

	// Build tracing middleware (custom provider or global).
	var tracingMw mw.Middleware
	if eng.tracerProvider != nil {
		tracer := eng.tracerProvider.Tracer("github.com/transseas/conveyor")
		tracingMw = mw.TracingWithTracer(tracer)
	} else {
		tracingMw = mw.Tracing()
	}

	// Build metrics middleware (custom provider or global).
	var metricsMw mw.Middleware
	if eng.meterProvider != nil {
		meter := eng.meterProvider.Meter("github.com/transseas/conveyor")
		metricsMw = mw.MetricsWithMeter(meter)
	} else {
		metricsMw = mw.Metrics()
	}

	// Default middleware stack: recover → tracing → metrics → logging → timeout.
	defaultMws := []mw.Middleware{
		mw.Recover(logger),
		tracingMw,
		metricsMw,
		mw.Logging(logger),
		mw.Timeout(logger),
	}
	allMws := make([]mw.Middleware, 0, len(defaultMws)+len(eng.mws))
	allMws = append(allMws, defaultMws...)
	allMws = append(allMws, eng.mws...)

	config := d.Config()
	executor := worker.NewExecutor(eng.registry, eng.extensions, eng.jobStore, eng.failures, eng.bo, logger, allMws...)
	for queueName, bo := range eng.queueBO {
		executor.SetQueueBackoff(queueName, bo)
	}

	poolOpts := []worker.PoolOption{
		worker.WithPoolConcurrency(config.Concurrency),
		worker.WithPoolQueues(config.Queues),
		worker.WithPollInterval(config.PollInterval),
		worker.WithHeartbeatInterval(config.HeartbeatInterval),
		worker.WithStaleJobThreshold(config.StaleJobThreshold),
	}

	if len(eng.queueConfigs) > 0 {
		eng.queueManager = queue.NewManager(eng.queueConfigs...)
		poolOpts = append(poolOpts, worker.WithQueueManager(eng.queueManager))
	}

	eng.pool = worker.NewPool(
		eng.jobStore,
		executor,
		eng.extensions,
		logger,
		poolOpts...,
	)

	// Wire back into the Dispatcher.
	d.SetPool(eng.pool)
	d.SetExtensions(eng.extensions)

	enqueueFunc := func(ctx context.Context, kind string, payload []byte, jobOpts ...job.Option) (id.JobID, error) {
		j, err := eng.EnqueueRaw(ctx, kind, payload, jobOpts...)
		if err != nil {
			return id.JobID{}, err
		}
		return j.ID, nil
	}
	eng.scheduler = cron.NewScheduler(enqueueFunc, eng.extensions, logger)

	return eng, nil
}

// Register registers a typed job definition with the engine.
func Register[T any](eng *Engine, def *job.Definition[T]) {
	job.RegisterDefinition(eng.registry, def)
}

// Enqueue creates and enqueues a job.
func Enqueue[T any](ctx context.Context, eng *Engine, kind string, payload T, opts ...job.Option) (*job.Job, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload for job %q: %w", kind, err)
	}

	return eng.EnqueueRaw(ctx, kind, data, opts...)
}

// EnqueueRaw enqueues a job with a pre-serialized payload. The kind's
// registered definition supplies default options; per-call options
// override them. A dedupe key on the job makes the enqueue replace any
// waiting job with the same key.
func (eng *Engine) EnqueueRaw(ctx context.Context, kind string, payload []byte, opts ...job.Option) (*job.Job, error) {
	// Start from the definition's defaults when the kind is registered.
	jobOpts, ok := eng.registry.Defaults(kind)
	if !ok {
		jobOpts = job.DefaultOptions()
	}
	for _, opt := range opts {
		opt(&jobOpts)
	}

	now := time.Now().UTC()
	j := &job.Job{
		Entity:           conveyor.NewEntity(),
		ID:               id.NewJobID(),
		Kind:             kind,
		Payload:          payload,
		State:            job.StatePending,
		Queue:            jobOpts.Queue,
		Priority:         jobOpts.Priority,
		MaxAttempts:      jobOpts.MaxAttempts,
		Timeout:          jobOpts.Timeout,
		DedupeKey:        jobOpts.DedupeKey,
		RemoveOnComplete: jobOpts.RemoveOnComplete,
		RunAt:            now.Add(jobOpts.Delay),
	}

	if err := eng.jobStore.EnqueueJob(ctx, j); err != nil {
		return nil, err
	}

	eng.extensions.EmitJobEnqueued(ctx, j)
	return j, nil
}

// Cancel removes a still-waiting (including delayed) job by its dedupe
// key and returns it. Canceling a key whose job already started,
// completed, or never existed returns (nil, nil), not an error.
func (eng *Engine) Cancel(ctx context.Context, dedupeKey string) (*job.Job, error) {
	return eng.jobStore.CancelByDedupeKey(ctx, dedupeKey)
}

// Start begins job processing by starting the cron scheduler and the
// worker pool.
func (eng *Engine) Start(ctx context.Context) error {
	if err := eng.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start cron scheduler: %w", err)
	}

	return eng.d.Start(ctx)
}

// Stop gracefully shuts down the engine.
func (eng *Engine) Stop(ctx context.Context) error {
	if err := eng.scheduler.Stop(ctx); err != nil {
		eng.logger.Error("cron scheduler stop error", slog.String("error", err.Error()))
	}

	return eng.d.Stop(ctx)
}

// Extensions returns the extension registry.
func (eng *Engine) Extensions() *ext.Registry { return eng.extensions }

// Registry returns the job registry.
func (eng *Engine) Registry() *job.Registry { return eng.registry }

// Dispatcher returns the underlying Dispatcher.
func (eng *Engine) Dispatcher() *conveyor.Dispatcher { return eng.d }

// Failures returns the engine's failure archive service for replay and
// inspection.
func (eng *Engine) Failures() *failure.Service { return eng.failures }

// Scheduler returns the cron scheduler.
func (eng *Engine) Scheduler() *cron.Scheduler { return eng.scheduler }

// QueueManager returns the queue manager, or nil if no queue configs
// were provided.
func (eng *Engine) QueueManager() *queue.Manager { return eng.queueManager }

// RegisterCron registers a typed cron definition with the engine. It
// validates the schedule expression and computes the initial next run
// time. Re-registration of the same name is idempotent.
func RegisterCron[T any](eng *Engine, def *cron.Definition[T]) error {
	payload, err := json.Marshal(def.Payload)
	if err != nil {
		return fmt.Errorf("marshal cron payload: %w", err)
	}

	entry := &cron.Entry{
		Name:     def.Name,
		Schedule: def.Schedule,
		Kind:     def.Kind,
		Queue:    def.Queue,
		Payload:  payload,
		Enabled:  true,
	}

	if err := eng.scheduler.Register(entry); err != nil {
		// Idempotent: ignore duplicate cron entries.
		if errors.Is(err, conveyor.ErrDuplicateCron) {
			return nil
		}
		return fmt.Errorf("register cron %q: %w", def.Name, err)
	}

	eng.logger.Info("cron registered",
		slog.String("name", def.Name),
		slog.String("schedule", def.Schedule),
		slog.String("kind", def.Kind),
	)

	return nil
}
