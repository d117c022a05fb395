package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/pkg/logger"
	"github.com/jwalitptl/booking-api/pkg/messaging"
	"github.com/jwalitptl/booking-api/pkg/metrics"
)

type mockOutboxRepo struct {
	mock.Mock
}

func (m *mockOutboxRepo) Create(ctx context.Context, event *model.OutboxEvent) error {
	return m.Called(ctx, event).Error(0)
}

func (m *mockOutboxRepo) ClaimPending(ctx context.Context, limit int, lease time.Duration) ([]*model.OutboxEvent, error) {
	args := m.Called(ctx, limit, lease)
	events, _ := args.Get(0).([]*model.OutboxEvent)
	return events, args.Error(1)
}

func (m *mockOutboxRepo) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockOutboxRepo) MarkRetry(ctx context.Context, id uuid.UUID, errMsg string, retryAt time.Time) error {
	return m.Called(ctx, id, errMsg, retryAt).Error(0)
}

func (m *mockOutboxRepo) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	return m.Called(ctx, id, errMsg).Error(0)
}

func (m *mockOutboxRepo) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

type mockBroker struct {
	mock.Mock
}

func (m *mockBroker) Publish(ctx context.Context, channel string, message interface{}) error {
	return m.Called(ctx, channel, message).Error(0)
}

func (m *mockBroker) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	return nil, nil
}

func (m *mockBroker) Close() error { return nil }

func testConfig() OutboxProcessorConfig {
	return OutboxProcessorConfig{
		BatchSize:     10,
		PollInterval:  time.Second,
		RetryAttempts: 3,
		RetryDelay:    time.Minute,
		Lease:         time.Minute,
	}
}

func newTestProcessor(t *testing.T, repo *mockOutboxRepo, broker messaging.Broker) *OutboxProcessor {
	t.Helper()
	p, err := NewOutboxProcessor(repo, broker, testConfig(), logger.Nop(), metrics.New("test"))
	require.NoError(t, err)
	p.now = func() time.Time { return time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC) }
	return p
}

func TestOutboxProcessor_DispatchesToRegisteredHandler(t *testing.T) {
	repo := &mockOutboxRepo{}
	broker := &mockBroker{}
	p := newTestProcessor(t, repo, broker)

	event := &model.OutboxEvent{ID: uuid.New(), EventType: "notification.email", Payload: json.RawMessage(`{"to":"a@b.co"}`)}
	var handled *model.OutboxEvent
	p.Handle("notification.email", EventHandlerFunc(func(_ context.Context, e *model.OutboxEvent) error {
		handled = e
		return nil
	}))

	repo.On("ClaimPending", mock.Anything, 10, time.Minute).Return([]*model.OutboxEvent{event}, nil)
	repo.On("MarkProcessed", mock.Anything, event.ID).Return(nil)

	n, err := p.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Same(t, event, handled)
	broker.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
	repo.AssertExpectations(t)
}

func TestOutboxProcessor_PublishesUnhandledEvents(t *testing.T) {
	repo := &mockOutboxRepo{}
	broker := &mockBroker{}
	p := newTestProcessor(t, repo, broker)

	event := &model.OutboxEvent{ID: uuid.New(), EventType: "booking.created", Payload: json.RawMessage(`{"bookingId":"1"}`)}

	repo.On("ClaimPending", mock.Anything, 10, time.Minute).Return([]*model.OutboxEvent{event}, nil)
	repo.On("MarkProcessed", mock.Anything, event.ID).Return(nil)
	broker.On("Publish", mock.Anything, "booking.created", mock.MatchedBy(func(msg messaging.Message) bool {
		return msg.Type == "booking.created" && string(msg.Payload) == `{"bookingId":"1"}`
	})).Return(nil)

	n, err := p.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	broker.AssertExpectations(t)
	repo.AssertExpectations(t)
}

func TestOutboxProcessor_SchedulesRetry(t *testing.T) {
	repo := &mockOutboxRepo{}
	p := newTestProcessor(t, repo, nil)

	event := &model.OutboxEvent{ID: uuid.New(), EventType: "notification.email", RetryCount: 1}
	p.Handle("notification.email", EventHandlerFunc(func(context.Context, *model.OutboxEvent) error {
		return errors.New("smtp unavailable")
	}))

	repo.On("ClaimPending", mock.Anything, 10, time.Minute).Return([]*model.OutboxEvent{event}, nil)
	repo.On("MarkRetry", mock.Anything, event.ID, "smtp unavailable", p.now().Add(2*time.Minute)).Return(nil)

	n, err := p.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	repo.AssertExpectations(t)
}

func TestOutboxProcessor_MarksFailedAfterLastAttempt(t *testing.T) {
	repo := &mockOutboxRepo{}
	p := newTestProcessor(t, repo, nil)

	event := &model.OutboxEvent{ID: uuid.New(), EventType: "notification.email", RetryCount: 2}
	p.Handle("notification.email", EventHandlerFunc(func(context.Context, *model.OutboxEvent) error {
		return errors.New("mailbox unavailable")
	}))

	repo.On("ClaimPending", mock.Anything, 10, time.Minute).Return([]*model.OutboxEvent{event}, nil)
	repo.On("MarkFailed", mock.Anything, event.ID, "mailbox unavailable").Return(nil)

	_, err := p.RunOnce(context.Background())
	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestOutboxProcessor_ClaimError(t *testing.T) {
	repo := &mockOutboxRepo{}
	p := newTestProcessor(t, repo, nil)

	repo.On("ClaimPending", mock.Anything, 10, time.Minute).Return(nil, errors.New("db down"))

	_, err := p.RunOnce(context.Background())
	assert.Error(t, err)
}

func TestOutboxProcessorConfigValidate(t *testing.T) {
	cfg := testConfig()
	cfg.RetryAttempts = 0
	_, err := NewOutboxProcessor(&mockOutboxRepo{}, nil, cfg, logger.Nop(), metrics.New("test"))
	assert.Error(t, err)
}
