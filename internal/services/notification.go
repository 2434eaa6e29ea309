package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/newoon/backoffice-server/internal/apperr"
	"github.com/newoon/backoffice-server/internal/metrics"
	"github.com/newoon/backoffice-server/internal/models"
	"github.com/newoon/backoffice-server/internal/store"
)

// NotifyRef optionally links a notification to the record it is about
type NotifyRef struct {
	DocumentID  *uuid.UUID
	ComplaintID *uuid.UUID
}

// Dispatcher emits notification side effects. Notify never fails the caller:
// problems are logged and counted.
type Dispatcher struct {
	outbox  Outbox
	metrics *metrics.Metrics
	logger  *zap.SugaredLogger
	now     func() time.Time
}

func NewDispatcher(outbox Outbox, m *metrics.Metrics, logger *zap.SugaredLogger) *Dispatcher {
	return &Dispatcher{outbox: outbox, metrics: m, logger: logger, now: time.Now}
}

// Notify enqueues one notification for accountID
func (d *Dispatcher) Notify(ctx context.Context, accountID uuid.UUID, message string, ref NotifyRef) {
	ev := NotificationEvent{
		ID:          uuid.New(),
		AccountID:   accountID,
		Message:     message,
		DocumentID:  ref.DocumentID,
		ComplaintID: ref.ComplaintID,
		CreatedAt:   d.now(),
	}
	// The triggering write has already committed; a cancelled request must not drop the event.
	if err := d.outbox.Enqueue(context.WithoutCancel(ctx), ev); err != nil {
		d.metrics.IncNotificationFailed("enqueue")
		d.logger.Warnw("Notification dropped", "account", accountID, "message", message, "error", err)
		return
	}
	d.metrics.IncNotificationQueued()
}

// NotificationService serves a principal's own notifications
type NotificationService struct {
	store    store.NotificationStore
	accounts store.AccountStore
	logger   *zap.SugaredLogger
}

func NewNotificationService(repos *store.Repos, logger *zap.SugaredLogger) *NotificationService {
	return &NotificationService{store: repos.Notifications, accounts: repos.Accounts, logger: logger}
}

// List returns the caller's notifications newest first
func (s *NotificationService) List(ctx context.Context, caller *models.Account) ([]models.Notification, error) {
	items, err := s.store.ListByAccount(ctx, caller.ID)
	if err != nil {
		return nil, apperr.Internal("list notifications", err)
	}
	return items, nil
}

// Create stores a notification directly for any existing account
func (s *NotificationService) Create(ctx context.Context, req *models.NotificationRequest) (*models.Notification, error) {
	if strings.TrimSpace(req.UserID) == "" || strings.TrimSpace(req.Message) == "" {
		return nil, apperr.Validation("User ID and message are required")
	}
	accountID, err := uuid.Parse(req.UserID)
	if err != nil {
		return nil, apperr.Validation("Invalid user ID")
	}
	if _, err := s.accounts.Get(ctx, accountID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("User not found")
		}
		return nil, apperr.Internal("load account", err)
	}

	n := &models.Notification{
		ID:        uuid.New(),
		AccountID: accountID,
		Message:   strings.TrimSpace(req.Message),
		CreatedAt: time.Now(),
	}
	if n.DocumentID, err = optionalID(req.DocumentID, "document ID"); err != nil {
		return nil, err
	}
	if n.ComplaintID, err = optionalID(req.ComplaintID, "complaint ID"); err != nil {
		return nil, err
	}

	if err := s.store.Create(ctx, n); err != nil {
		return nil, apperr.Internal("insert notification", err)
	}
	return n, nil
}

// MarkRead flips IsRead on one of the caller's notifications. Repeating it is harmless.
func (s *NotificationService) MarkRead(ctx context.Context, caller *models.Account, id uuid.UUID) error {
	if err := s.store.MarkRead(ctx, id, caller.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("Notification not found")
		}
		return apperr.Internal("mark notification read", err)
	}
	return nil
}

// Clear deletes every notification the caller owns
func (s *NotificationService) Clear(ctx context.Context, caller *models.Account) (int64, error) {
	n, err := s.store.DeleteByAccount(ctx, caller.ID)
	if err != nil {
		return 0, apperr.Internal("clear notifications", err)
	}
	s.logger.Infow("Notifications cleared", "account", caller.ID, "count", n)
	return n, nil
}

func optionalID(raw, field string) (*uuid.UUID, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, apperr.Validation("Invalid " + field)
	}
	return &id, nil
}
