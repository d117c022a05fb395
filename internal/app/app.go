// Package app assembles the components shared by the api and worker binaries.
package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/jwalitptl/booking-api/internal/config"
	"github.com/jwalitptl/booking-api/internal/email"
	"github.com/jwalitptl/booking-api/internal/handler/health"
	"github.com/jwalitptl/booking-api/internal/repository/postgres"
	"github.com/jwalitptl/booking-api/internal/scheduler"
	"github.com/jwalitptl/booking-api/internal/service/booking"
	"github.com/jwalitptl/booking-api/internal/service/notification"
	outboxworker "github.com/jwalitptl/booking-api/internal/worker"
	"github.com/jwalitptl/booking-api/pkg/logger"
	"github.com/jwalitptl/booking-api/pkg/messaging"
	"github.com/jwalitptl/booking-api/pkg/messaging/redis"
	"github.com/jwalitptl/booking-api/pkg/metrics"
	"github.com/jwalitptl/booking-api/pkg/worker"
)

const metricsNamespace = "booking"

func NewLogger(cfg *config.Config) *logger.Logger {
	return logger.NewLogger(&logger.Config{
		Level: logger.ParseLevel(cfg.Logging.Level),
		JSON:  cfg.Logging.Format == "json" || cfg.IsProduction(),
	})
}

// NewMetrics returns the application metrics registered on a fresh registry
// together with the Go runtime and process collectors.
func NewMetrics() (*metrics.Metrics, *prometheus.Registry, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(collectors.NewGoCollector()); err != nil {
		return nil, nil, err
	}
	if err := reg.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, nil, err
	}

	m := metrics.New(metricsNamespace)
	if err := m.Register(reg); err != nil {
		return nil, nil, fmt.Errorf("register metrics: %w", err)
	}
	return m, reg, nil
}

// OpenDatabase connects and, when configured, applies pending migrations.
func OpenDatabase(ctx context.Context, cfg config.DatabaseConfig, l *logger.Logger) (*sqlx.DB, error) {
	db, err := postgres.NewDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if cfg.AutoMigrate {
		if err := postgres.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
		l.Info("database migrations applied")
	}
	return db, nil
}

// NewBroker connects to Redis when enabled. Otherwise domain events are
// dropped after leaving the outbox and the returned check is nil.
func NewBroker(ctx context.Context, cfg config.RedisConfig, l *logger.Logger) (messaging.Broker, health.Check, error) {
	if !cfg.Enabled {
		l.Info("redis disabled, domain events will not be published")
		return messaging.NopBroker{}, nil, nil
	}

	b, err := redis.NewRedisBroker(ctx, cfg.ToBrokerConfig(), l)
	if err != nil {
		return nil, nil, err
	}
	return b, b.Ping, nil
}

// NewMailer falls back to logging emails when no SMTP account is configured.
func NewMailer(cfg config.SMTPConfig, l *logger.Logger) email.Mailer {
	if cfg.Host == "" || cfg.Username == "" {
		l.Warn("SMTP account not configured, emails will only be logged")
		return email.NewLogMailer(l)
	}
	return email.NewSMTPMailer(email.SMTPConfig{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Username: cfg.Username,
		Password: cfg.Password,
		From:     cfg.From,
	}, l)
}

// Core is the booking lifecycle with its notification and scheduling
// dependencies.
type Core struct {
	Notifications *notification.Service
	Scheduler     *scheduler.Scheduler
	Bookings      *booking.Service
}

func NewCore(cfg *config.Config, repos *postgres.Repositories, l *logger.Logger, m *metrics.Metrics) *Core {
	notifications := notification.NewService(repos.Outbox, cfg.SMTP.From, l)
	sched := scheduler.New(repos.Tasks, l, m)
	bookings := booking.NewService(
		repos.Bookings,
		repos.Services,
		repos.Users,
		notifications,
		sched,
		booking.Config{
			CompletionDelay:   cfg.Booking.CompletionDelay,
			StrictTransitions: cfg.Booking.StrictTransitions,
		},
		l,
		m,
	)
	return &Core{Notifications: notifications, Scheduler: sched, Bookings: bookings}
}

// Background drains the outbox, fires deferred tasks and prunes delivered
// events.
type Background struct {
	processor *worker.OutboxProcessor
	runner    *scheduler.Runner
	cleanup   *outboxworker.OutboxCleanupWorker
}

func NewBackground(
	cfg *config.Config,
	repos *postgres.Repositories,
	core *Core,
	broker messaging.Broker,
	mailer email.Mailer,
	l *logger.Logger,
	m *metrics.Metrics,
) (*Background, error) {
	processor, err := worker.NewOutboxProcessor(repos.Outbox, broker, cfg.Outbox.ToWorkerConfig(), l, m)
	if err != nil {
		return nil, err
	}
	processor.Handle(notification.EventTypeEmail, notification.DeliveryHandler(mailer))

	runner := scheduler.NewRunner(repos.Tasks, scheduler.RunnerConfig{
		PollInterval: cfg.Scheduler.PollInterval,
		BatchSize:    cfg.Scheduler.BatchSize,
		MaxAttempts:  cfg.Scheduler.MaxAttempts,
		RetryDelay:   cfg.Scheduler.RetryDelay,
		Lease:        cfg.Scheduler.Lease,
	}, l, m)
	runner.Register(booking.CompletionTaskKind, core.Bookings.CompletionHandler())

	cleanup := outboxworker.NewOutboxCleanupWorker(repos.Outbox, cfg.Outbox.Retention, cfg.Outbox.CleanupEvery, l)

	return &Background{processor: processor, runner: runner, cleanup: cleanup}, nil
}

// Run blocks until ctx is cancelled and every loop has returned.
func (b *Background) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, start := range []func(context.Context){b.processor.Start, b.runner.Start, b.cleanup.Start} {
		wg.Add(1)
		go func(start func(context.Context)) {
			defer wg.Done()
			start(ctx)
		}(start)
	}
	wg.Wait()
}

// LogDomainEvents subscribes to the booking event channels and logs every
// message until ctx is cancelled.
func LogDomainEvents(ctx context.Context, broker messaging.Broker, l *logger.Logger) error {
	l = l.With("events")
	channels := []string{booking.EventBookingCreated, booking.EventBookingStatusChanged, booking.EventBookingCompleted}

	var wg sync.WaitGroup
	for _, ch := range channels {
		msgs, err := broker.Subscribe(ctx, ch)
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", ch, err)
		}
		wg.Add(1)
		go func(channel string, msgs <-chan []byte) {
			defer wg.Done()
			for msg := range msgs {
				l.Info("domain event received", "channel", channel, "payload", string(msg))
			}
		}(ch, msgs)
	}
	wg.Wait()
	return nil
}
