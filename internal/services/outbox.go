package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/newoon/backoffice-server/internal/models"
	"github.com/newoon/backoffice-server/internal/store"
)

// TypeNotificationDeliver is the asynq task type for notification delivery
const TypeNotificationDeliver = "notification:deliver"

// ErrOutboxFull is returned when the in-process buffer cannot take more events
var ErrOutboxFull = errors.New("notification outbox is full")

// NotificationEvent is one pending notification. Its ID becomes the
// notification row ID, so redelivery never duplicates a row.
type NotificationEvent struct {
	ID          uuid.UUID  `json:"id"`
	AccountID   uuid.UUID  `json:"accountId"`
	Message     string     `json:"message"`
	DocumentID  *uuid.UUID `json:"documentId,omitempty"`
	ComplaintID *uuid.UUID `json:"complaintId,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// Outbox accepts events after the triggering write has committed
type Outbox interface {
	Enqueue(ctx context.Context, ev NotificationEvent) error
}

// NotificationDeliverer turns events into notification rows
type NotificationDeliverer struct {
	store  store.NotificationStore
	logger *zap.SugaredLogger
}

func NewNotificationDeliverer(s store.NotificationStore, logger *zap.SugaredLogger) *NotificationDeliverer {
	return &NotificationDeliverer{store: s, logger: logger}
}

// Deliver writes the row; an already-delivered event is not an error
func (d *NotificationDeliverer) Deliver(ctx context.Context, ev NotificationEvent) error {
	n := &models.Notification{
		ID:          ev.ID,
		AccountID:   ev.AccountID,
		DocumentID:  ev.DocumentID,
		ComplaintID: ev.ComplaintID,
		Message:     ev.Message,
		CreatedAt:   ev.CreatedAt,
	}
	if err := d.store.Create(ctx, n); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil
		}
		return fmt.Errorf("deliver notification %s: %w", ev.ID, err)
	}
	return nil
}

// InlineOutbox delivers during Enqueue. Used by tests and single-binary tools.
type InlineOutbox struct {
	deliverer *NotificationDeliverer
}

func NewInlineOutbox(d *NotificationDeliverer) *InlineOutbox {
	return &InlineOutbox{deliverer: d}
}

func (o *InlineOutbox) Enqueue(ctx context.Context, ev NotificationEvent) error {
	return o.deliverer.Deliver(ctx, ev)
}

// ChannelOutbox buffers events in memory and delivers them from worker goroutines
type ChannelOutbox struct {
	events    chan NotificationEvent
	deliverer *NotificationDeliverer
	logger    *zap.SugaredLogger
	onFailure func()

	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

// NewChannelOutbox creates an outbox with the given buffer size.
// onFailure, if set, is called for each event that could not be delivered.
func NewChannelOutbox(buffer int, d *NotificationDeliverer, logger *zap.SugaredLogger, onFailure func()) *ChannelOutbox {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelOutbox{
		events:    make(chan NotificationEvent, buffer),
		deliverer: d,
		logger:    logger,
		onFailure: onFailure,
	}
}

// Enqueue never blocks; a full buffer fails fast with ErrOutboxFull
func (o *ChannelOutbox) Enqueue(_ context.Context, ev NotificationEvent) error {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.closed {
		return errors.New("notification outbox is closed")
	}
	select {
	case o.events <- ev:
		return nil
	default:
		return ErrOutboxFull
	}
}

// Start launches workers that drain the buffer until Close
func (o *ChannelOutbox) Start(workers int) {
	if workers <= 0 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		o.wg.Add(1)
		go o.run(i)
	}
	o.logger.Infow("Notification outbox started", "workers", workers, "buffer", cap(o.events))
}

func (o *ChannelOutbox) run(worker int) {
	defer o.wg.Done()
	for ev := range o.events {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := o.deliverer.Deliver(ctx, ev); err != nil {
			o.logger.Errorw("Notification delivery failed", "worker", worker, "event", ev.ID, "account", ev.AccountID, "error", err)
			if o.onFailure != nil {
				o.onFailure()
			}
		}
		cancel()
	}
}

// Close stops accepting events and waits until buffered ones are delivered
// or ctx expires.
func (o *ChannelOutbox) Close(ctx context.Context) error {
	o.mu.Lock()
	if !o.closed {
		o.closed = true
		close(o.events)
	}
	o.mu.Unlock()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		o.logger.Info("Notification outbox drained")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AsynqOutbox hands events to a Redis-backed asynq queue so they survive restarts
type AsynqOutbox struct {
	client *asynq.Client
	queue  string
}

func NewAsynqOutbox(client *asynq.Client, queue string) *AsynqOutbox {
	if queue == "" {
		queue = "notifications"
	}
	return &AsynqOutbox{client: client, queue: queue}
}

func (o *AsynqOutbox) Enqueue(ctx context.Context, ev NotificationEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal notification event: %w", err)
	}
	task := asynq.NewTask(TypeNotificationDeliver, payload)
	_, err = o.client.EnqueueContext(ctx, task,
		asynq.Queue(o.queue),
		asynq.MaxRetry(5),
		asynq.TaskID(ev.ID.String()),
	)
	if err != nil && !errors.Is(err, asynq.ErrTaskIDConflict) {
		return fmt.Errorf("enqueue notification: %w", err)
	}
	return nil
}

// NotificationTaskHandler processes notification tasks on the asynq server
func NotificationTaskHandler(d *NotificationDeliverer) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var ev NotificationEvent
		if err := json.Unmarshal(t.Payload(), &ev); err != nil {
			return fmt.Errorf("decode notification event: %v: %w", err, asynq.SkipRetry)
		}
		return d.Deliver(ctx, ev)
	}
}
