package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newoon/backoffice-server/internal/apperr"
	"github.com/newoon/backoffice-server/internal/metrics"
	"github.com/newoon/backoffice-server/internal/models"
)

func TestNotificationInbox(t *testing.T) {
	env := newTestEnv(t)
	svc := NewNotificationService(env.repos, env.logger)
	ada := env.client(t, "Ada", "ada@example.com")
	bob := env.client(t, "Bob", "bob@example.com")

	n, err := svc.Create(env.ctx, &models.NotificationRequest{UserID: ada.ID.String(), Message: "Welcome"})
	require.NoError(t, err)
	_, err = svc.Create(env.ctx, &models.NotificationRequest{UserID: uuid.NewString(), Message: "Welcome"})
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
	_, err = svc.Create(env.ctx, &models.NotificationRequest{UserID: "nope", Message: "Welcome"})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	_, err = svc.Create(env.ctx, &models.NotificationRequest{UserID: ada.ID.String(), DocumentID: "x", Message: "Hi"})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	assert.True(t, apperr.IsKind(svc.MarkRead(env.ctx, bob, n.ID), apperr.KindNotFound))
	require.NoError(t, svc.MarkRead(env.ctx, ada, n.ID))
	require.NoError(t, svc.MarkRead(env.ctx, ada, n.ID))

	items, err := svc.List(env.ctx, ada)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.True(t, items[0].IsRead)

	cleared, err := svc.Clear(env.ctx, ada)
	require.NoError(t, err)
	assert.Equal(t, int64(1), cleared)
	items, err = svc.List(env.ctx, ada)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestDeliverIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	d := NewNotificationDeliverer(env.repos.Notifications, env.logger)
	ada := env.client(t, "Ada", "ada@example.com")
	ev := NotificationEvent{ID: uuid.New(), AccountID: ada.ID, Message: "once", CreatedAt: time.Now()}

	require.NoError(t, d.Deliver(env.ctx, ev))
	require.NoError(t, d.Deliver(env.ctx, ev))
	assert.Len(t, env.notifications(t, ada.ID), 1)
}

func TestChannelOutboxDrainsOnClose(t *testing.T) {
	env := newTestEnv(t)
	ada := env.client(t, "Ada", "ada@example.com")
	outbox := NewChannelOutbox(16, NewNotificationDeliverer(env.repos.Notifications, env.logger), env.logger, nil)
	dispatcher := NewDispatcher(outbox, env.metrics, env.logger)

	for i := 0; i < 10; i++ {
		dispatcher.Notify(env.ctx, ada.ID, "queued", NotifyRef{})
	}
	outbox.Start(3)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, outbox.Close(ctx))

	assert.Len(t, env.notifications(t, ada.ID), 10)
	assert.Equal(t, float64(10), testutil.ToFloat64(env.metrics.NotificationsQueued))
	assert.Error(t, outbox.Enqueue(env.ctx, NotificationEvent{ID: uuid.New()}))
}

func TestFullOutboxNeverFailsCaller(t *testing.T) {
	env := newTestEnv(t)
	m := metrics.New()
	outbox := NewChannelOutbox(1, NewNotificationDeliverer(env.repos.Notifications, env.logger), env.logger, nil)
	dispatcher := NewDispatcher(outbox, m, env.logger)
	id := uuid.New()

	dispatcher.Notify(env.ctx, id, "first", NotifyRef{})
	assert.ErrorIs(t, outbox.Enqueue(env.ctx, NotificationEvent{ID: uuid.New()}), ErrOutboxFull)
	dispatcher.Notify(env.ctx, id, "second", NotifyRef{})

	assert.Equal(t, float64(1), testutil.ToFloat64(m.NotificationsQueued))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.NotificationsFailed.WithLabelValues("enqueue")))
}

func TestNotifySurvivesCancelledRequest(t *testing.T) {
	env := newTestEnv(t)
	ada := env.client(t, "Ada", "ada@example.com")
	ctx, cancel := context.WithCancel(env.ctx)
	cancel()

	env.notify.Notify(ctx, ada.ID, "after cancel", NotifyRef{})
	assert.Len(t, env.notifications(t, ada.ID), 1)
}
