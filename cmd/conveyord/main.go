// Command conveyord runs the job processing daemon: it connects the
// Redis queue store and the Postgres durable store, registers the mail
// and conversation-persistence handlers, and processes jobs until
// interrupted.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"html/template"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	_ "github.com/jackc/pgx/v5/stdlib"
	goredis "github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"github.com/transseas/conveyor"
	"github.com/transseas/conveyor/backoff"
	"github.com/transseas/conveyor/chat"
	"github.com/transseas/conveyor/cron"
	"github.com/transseas/conveyor/engine"
	"github.com/transseas/conveyor/ext"
	"github.com/transseas/conveyor/failure"
	"github.com/transseas/conveyor/mail"
	"github.com/transseas/conveyor/queue"
	bunstore "github.com/transseas/conveyor/store/bun"
	redisstore "github.com/transseas/conveyor/store/redis"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("conveyord exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg := loadConfig()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := goredis.NewClient(&goredis.Options{
		Addr: cfg.RedisAddr,
		DB:   cfg.RedisDB,
	})
	queueStore := redisstore.New(client, redisstore.WithLogger(logger))
	if err := queueStore.Ping(ctx); err != nil {
		return fmt.Errorf("connect redis at %s: %w", cfg.RedisAddr, err)
	}

	sqldb, err := sql.Open("pgx", cfg.PostgresDSN)
	if err != nil {
		return fmt.Errorf("open postgres: %w", err)
	}
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	durableStore := bunstore.New(db, bunstore.WithLogger(logger))
	if err := durableStore.Ping(ctx); err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	if err := durableStore.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate postgres: %w", err)
	}

	d, err := conveyor.New(
		conveyor.WithStore(queueStore),
		conveyor.WithLogger(logger),
		conveyor.WithConcurrency(cfg.Concurrency),
		conveyor.WithQueues([]string{"default", mail.Queue, chat.Queue}),
	)
	if err != nil {
		return fmt.Errorf("create dispatcher: %w", err)
	}

	eng, err := engine.Build(d,
		engine.WithQueueConfig(
			queue.Config{Name: mail.Queue, MaxConcurrency: cfg.MailConcurrency},
			queue.Config{Name: chat.Queue, MaxConcurrency: cfg.PersistenceConcurrency},
		),
		engine.WithQueueBackoff(mail.Queue, backoff.MailStrategy()),
		engine.WithExtension(ext.NewFailureLogger(logger)),
	)
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}

	transport, err := buildTransport(cfg, logger)
	if err != nil {
		return err
	}

	handlers := mail.NewHandlers(transport, durableStore,
		mail.NewPDFGenerator(cfg.AttachmentDir),
		mail.NewSpreadsheetGenerator(cfg.AttachmentDir),
		logger,
	)
	handlers.Register(eng.Registry())

	reconciler := chat.NewReconciler(queueStore, durableStore, logger)
	reconciler.Register(eng.Registry())

	sweeper := chat.NewSweeper(queueStore, eng, logger)
	sweeper.Register(eng.Registry())

	engine.Register(eng, eng.Failures().PurgeDefinition(logger))

	if err := engine.RegisterCron(eng, &cron.Definition[chat.SweepPayload]{
		Name:     "conversation-sweep",
		Schedule: cfg.SweepSchedule,
		Kind:     chat.KindSweepConversations,
	}); err != nil {
		return fmt.Errorf("register sweep cron: %w", err)
	}
	if err := engine.RegisterCron(eng, &cron.Definition[failure.PurgePayload]{
		Name:     "failure-purge",
		Schedule: cfg.PurgeSchedule,
		Kind:     failure.KindPurgeFailures,
		Payload:  failure.PurgePayload{RetentionDays: cfg.FailureRetentionDays},
	}); err != nil {
		return fmt.Errorf("register purge cron: %w", err)
	}

	if err := eng.Start(ctx); err != nil {
		return fmt.Errorf("start engine: %w", err)
	}
	logger.Info("conveyord running",
		slog.String("redis", cfg.RedisAddr),
		slog.Int("concurrency", cfg.Concurrency),
	)

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := eng.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("stop engine: %w", err)
	}
	logger.Info("conveyord stopped")
	return nil
}

// buildTransport returns the SMTP transport when a relay is configured,
// otherwise a transport that only logs what would have been sent.
func buildTransport(cfg config, logger *slog.Logger) (mail.Transport, error) {
	if cfg.SMTPHost == "" {
		logger.Warn("SMTP_HOST not set, outgoing mail will be logged only")
		return &logTransport{logger: logger}, nil
	}

	var templates *template.Template
	if cfg.MailTemplateDir != "" {
		var err error
		templates, err = template.ParseGlob(filepath.Join(cfg.MailTemplateDir, "*.html"))
		if err != nil {
			return nil, fmt.Errorf("parse mail templates: %w", err)
		}
	}

	transport, err := mail.NewSMTPTransport(mail.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	}, templates)
	if err != nil {
		return nil, fmt.Errorf("build smtp transport: %w", err)
	}
	return transport, nil
}

// logTransport is the development fallback transport.
type logTransport struct {
	logger *slog.Logger
}

func (t *logTransport) Send(_ context.Context, msg *mail.Message) error {
	t.logger.Info("mail (not sent)",
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
		slog.String("template", msg.TemplateName),
		slog.Int("attachments", len(msg.Attachments)),
	)
	return nil
}
