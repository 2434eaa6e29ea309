package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/newoon/backoffice-server/internal/apperr"
	"github.com/newoon/backoffice-server/internal/models"
	"github.com/newoon/backoffice-server/internal/store"
)

// ClientService covers the administrator view of accounts
type ClientService struct {
	accounts store.AccountStore
	forms    store.FormStore
	notify   *Dispatcher
	logger   *zap.SugaredLogger
	now      func() time.Time
}

func NewClientService(repos *store.Repos, notify *Dispatcher, logger *zap.SugaredLogger) *ClientService {
	return &ClientService{
		accounts: repos.Accounts,
		forms:    repos.Forms,
		notify:   notify,
		logger:   logger,
		now:      time.Now,
	}
}

// AllClients lists client accounts oldest first
func (s *ClientService) AllClients(ctx context.Context) ([]models.Account, error) {
	clients, err := s.accounts.List(ctx, store.AccountFilter{Kind: models.KindClient})
	if err != nil {
		return nil, apperr.Internal("list clients", err)
	}
	return clients, nil
}

// Staff lists every account whose role is not "client"
func (s *ClientService) Staff(ctx context.Context) ([]models.Account, error) {
	staff, err := s.accounts.List(ctx, store.AccountFilter{ExcludeRole: models.RoleClient})
	if err != nil {
		return nil, apperr.Internal("list staff", err)
	}
	return staff, nil
}

// Details returns a single client
func (s *ClientService) Details(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	acct, err := s.load(ctx, id, "Client not found")
	if err != nil {
		return nil, err
	}
	if !acct.IsClient() {
		return nil, apperr.NotFound("Client not found")
	}
	return acct, nil
}

// Services returns the service forms linked to the caller
func (s *ClientService) Services(ctx context.Context, caller *models.Account) ([]models.Form, error) {
	acct, err := s.load(ctx, caller.ID, "Client not found.")
	if err != nil {
		return nil, err
	}
	return s.linkedForms(ctx, acct)
}

// Delete removes a client account and tells the acting admin
func (s *ClientService) Delete(ctx context.Context, caller *models.Account, id uuid.UUID) error {
	acct, err := s.load(ctx, id, "Client not found.")
	if err != nil {
		return err
	}
	if !acct.IsClient() {
		return apperr.Validation("You can only delete clients.")
	}
	if err := s.accounts.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("Client not found.")
		}
		return apperr.Internal("delete client", err)
	}
	s.logger.Infow("Client deleted", "client", id, "admin", caller.ID)
	s.notify.Notify(ctx, caller.ID, fmt.Sprintf("Client %s has been deleted successfully.", acct.DisplayName()), NotifyRef{})
	return nil
}

// UpdateStatus activates or suspends an account and informs the first admin
func (s *ClientService) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*models.Account, error) {
	status = strings.TrimSpace(status)
	if status == "" {
		return nil, apperr.Validation("Status is required.")
	}
	if status != models.StatusActive && status != models.StatusSuspended {
		return nil, apperr.Validation("Status must be Active or Suspended.")
	}
	acct, err := s.load(ctx, id, "User not found.")
	if err != nil {
		return nil, err
	}
	acct.Status = status
	acct.UpdatedAt = s.now()
	if err := s.accounts.Update(ctx, acct); err != nil {
		return nil, apperr.Internal("update status", err)
	}

	s.logger.Infow("Account status changed", "account", id, "status", status)
	if admin := firstAdmin(ctx, s.accounts, s.logger); admin != nil {
		s.notify.Notify(ctx, admin.ID,
			fmt.Sprintf("User %q (ID: %s) status updated to %q.", acct.DisplayName(), acct.ID, status), NotifyRef{})
	}
	return acct, nil
}

func (s *ClientService) load(ctx context.Context, id uuid.UUID, notFound string) (*models.Account, error) {
	acct, err := s.accounts.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound(notFound)
		}
		return nil, apperr.Internal("load account", err)
	}
	return acct, nil
}

func (s *ClientService) linkedForms(ctx context.Context, acct *models.Account) ([]models.Form, error) {
	if len(acct.Services) == 0 {
		return []models.Form{}, nil
	}
	forms, err := s.forms.GetMany(ctx, acct.Services)
	if err != nil {
		return nil, apperr.Internal("load linked services", err)
	}
	return forms, nil
}

// firstAdmin returns the oldest account with the admin role, or nil
func firstAdmin(ctx context.Context, accounts store.AccountStore, logger *zap.SugaredLogger) *models.Account {
	admins, err := accounts.List(ctx, store.AccountFilter{Role: models.RoleAdmin})
	if err != nil {
		logger.Warnw("Failed to look up admin for notification", "error", err)
		return nil
	}
	if len(admins) == 0 {
		return nil
	}
	return &admins[0]
}
