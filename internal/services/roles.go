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

// RoleService manages the named authorization roles
type RoleService struct {
	roles  store.RoleStore
	notify *Dispatcher
	logger *zap.SugaredLogger
	now    func() time.Time
}

func NewRoleService(repos *store.Repos, notify *Dispatcher, logger *zap.SugaredLogger) *RoleService {
	return &RoleService{roles: repos.Roles, notify: notify, logger: logger, now: time.Now}
}

func (s *RoleService) Create(ctx context.Context, caller *models.Account, name string) (*models.Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validation("Role name is required")
	}
	now := s.now()
	r := &models.Role{ID: uuid.New(), Name: name, CreatedAt: now, UpdatedAt: now}
	if err := s.roles.Create(ctx, r); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, apperr.Conflict("Role already exists")
		}
		return nil, apperr.Internal("insert role", err)
	}
	s.logger.Infow("Role created", "role", name)
	s.notify.Notify(ctx, caller.ID, fmt.Sprintf("A new role %q was created.", name), NotifyRef{})
	return r, nil
}

func (s *RoleService) List(ctx context.Context) ([]models.Role, error) {
	roles, err := s.roles.List(ctx)
	if err != nil {
		return nil, apperr.Internal("list roles", err)
	}
	return roles, nil
}

func (s *RoleService) Get(ctx context.Context, id uuid.UUID) (*models.Role, error) {
	r, err := s.roles.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("Role not found")
		}
		return nil, apperr.Internal("load role", err)
	}
	return r, nil
}

// Rename changes a role's name and notifies the acting admin
func (s *RoleService) Rename(ctx context.Context, caller *models.Account, id uuid.UUID, name string) (*models.Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validation("Role name is required")
	}
	r, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	old := r.Name
	r.Name = name
	r.UpdatedAt = s.now()
	if err := s.roles.Update(ctx, r); err != nil {
		switch {
		case errors.Is(err, store.ErrConflict):
			return nil, apperr.Conflict("Role already exists")
		case errors.Is(err, store.ErrNotFound):
			return nil, apperr.NotFound("Role not found")
		}
		return nil, apperr.Internal("update role", err)
	}
	s.notify.Notify(ctx, caller.ID, fmt.Sprintf("Role %q has been renamed to %q.", old, name), NotifyRef{})
	return r, nil
}

func (s *RoleService) Delete(ctx context.Context, caller *models.Account, id uuid.UUID) error {
	r, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.roles.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("Role not found")
		}
		return apperr.Internal("delete role", err)
	}
	s.logger.Infow("Role deleted", "role", r.Name)
	s.notify.Notify(ctx, caller.ID, fmt.Sprintf("The role %q was deleted.", r.Name), NotifyRef{})
	return nil
}
