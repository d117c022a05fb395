package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
	"github.com/jwalitptl/booking-api/pkg/logger"
	"github.com/jwalitptl/booking-api/pkg/messaging"
	"github.com/jwalitptl/booking-api/pkg/metrics"
)

type OutboxProcessorConfig struct {
	BatchSize     int
	PollInterval  time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
	// Lease is how long a claimed event stays invisible to other processors.
	Lease time.Duration
}

func (c OutboxProcessorConfig) Validate() error {
	switch {
	case c.BatchSize <= 0:
		return errors.New("BatchSize must be greater than 0")
	case c.PollInterval <= 0:
		return errors.New("PollInterval must be greater than 0")
	case c.RetryAttempts <= 0:
		return errors.New("RetryAttempts must be greater than 0")
	case c.RetryDelay <= 0:
		return errors.New("RetryDelay must be greater than 0")
	case c.Lease <= 0:
		return errors.New("Lease must be greater than 0")
	}
	return nil
}

// EventHandler consumes outbox events of one type.
type EventHandler interface {
	Handle(ctx context.Context, event *model.OutboxEvent) error
}

type EventHandlerFunc func(ctx context.Context, event *model.OutboxEvent) error

func (f EventHandlerFunc) Handle(ctx context.Context, event *model.OutboxEvent) error {
	return f(ctx, event)
}

// OutboxProcessor drains the outbox. Events with a registered handler are
// handed to it; everything else is published to the broker on a channel
// named after the event type.
type OutboxProcessor struct {
	repo     repository.OutboxRepository
	broker   messaging.Broker
	handlers map[string]EventHandler
	config   OutboxProcessorConfig
	logger   *logger.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewOutboxProcessor(
	repo repository.OutboxRepository,
	broker messaging.Broker,
	config OutboxProcessorConfig,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) (*OutboxProcessor, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid outbox processor config: %w", err)
	}
	if broker == nil {
		broker = messaging.NopBroker{}
	}

	return &OutboxProcessor{
		repo:     repo,
		broker:   broker,
		handlers: make(map[string]EventHandler),
		config:   config,
		logger:   logger.With("outbox"),
		metrics:  metrics,
		now:      time.Now,
	}, nil
}

// Handle registers h for eventType. Not safe to call after Start.
func (p *OutboxProcessor) Handle(eventType string, h EventHandler) {
	p.handlers[eventType] = h
}

func (p *OutboxProcessor) Start(ctx context.Context) {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.logger.Info("Starting outbox processor")

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Shutting down outbox processor")
			return
		case <-ticker.C:
			if _, err := p.RunOnce(ctx); err != nil {
				p.logger.Error(err, "Failed to process events")
			}
		}
	}
}

// RunOnce processes a single batch and returns how many events were delivered.
func (p *OutboxProcessor) RunOnce(ctx context.Context) (int, error) {
	timer := prometheus.NewTimer(p.metrics.OutboxProcessingLatency)
	defer timer.ObserveDuration()

	events, err := p.repo.ClaimPending(ctx, p.config.BatchSize, p.config.Lease)
	if err != nil {
		p.metrics.DatabaseOperations.WithLabelValues("claim_outbox_events", "error").Inc()
		return 0, fmt.Errorf("failed to get pending events: %w", err)
	}
	p.metrics.DatabaseOperations.WithLabelValues("claim_outbox_events", "success").Inc()

	delivered := 0
	for _, event := range events {
		if err := p.processEvent(ctx, event); err != nil {
			p.logger.Error(err, "Failed to process event",
				"event_id", event.ID.String(),
				"event_type", event.EventType)
			continue
		}
		delivered++
	}

	return delivered, nil
}

func (p *OutboxProcessor) processEvent(ctx context.Context, event *model.OutboxEvent) error {
	if err := p.dispatch(ctx, event); err != nil {
		p.fail(ctx, event, err)
		return err
	}

	p.metrics.OutboxEventsProcessed.Inc()
	if err := p.repo.MarkProcessed(ctx, event.ID); err != nil {
		return fmt.Errorf("failed to update event status: %w", err)
	}
	return nil
}

func (p *OutboxProcessor) dispatch(ctx context.Context, event *model.OutboxEvent) error {
	if h, ok := p.handlers[event.EventType]; ok {
		return h.Handle(ctx, event)
	}

	msg := messaging.Message{
		Type:       event.EventType,
		Payload:    event.Payload,
		OccurredAt: event.CreatedAt,
	}
	if err := p.broker.Publish(ctx, event.EventType, msg); err != nil {
		p.metrics.BrokerPublishes.WithLabelValues(event.EventType, "error").Inc()
		return err
	}
	p.metrics.BrokerPublishes.WithLabelValues(event.EventType, "success").Inc()
	return nil
}

// fail schedules another attempt with a linearly growing delay, or gives up
// once RetryAttempts is reached.
func (p *OutboxProcessor) fail(ctx context.Context, event *model.OutboxEvent, cause error) {
	attempt := event.RetryCount + 1
	errMsg := cause.Error()

	if attempt >= p.config.RetryAttempts {
		p.metrics.OutboxEventsFailed.Inc()
		if err := p.repo.MarkFailed(ctx, event.ID, errMsg); err != nil {
			p.logger.Error(err, "Failed to update event status", "event_id", event.ID.String())
		}
		return
	}

	p.metrics.OutboxRetries.WithLabelValues(event.EventType).Inc()
	retryAt := p.now().Add(time.Duration(attempt) * p.config.RetryDelay)
	if err := p.repo.MarkRetry(ctx, event.ID, errMsg, retryAt); err != nil {
		p.logger.Error(err, "Failed to update event status", "event_id", event.ID.String())
	}
}
