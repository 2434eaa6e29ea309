package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/newoon/backoffice-server/internal/apperr"
	"github.com/newoon/backoffice-server/internal/models"
	"github.com/newoon/backoffice-server/internal/store"
)

// AssignmentService records role and task assignments and applies the role
// to the assignee's account.
type AssignmentService struct {
	assignments store.AssignmentStore
	accounts    store.AccountStore
	stages      store.StageMappingStore
	notify      *Dispatcher
	logger      *zap.SugaredLogger
	now         func() time.Time
}

func NewAssignmentService(repos *store.Repos, notify *Dispatcher, logger *zap.SugaredLogger) *AssignmentService {
	return &AssignmentService{
		assignments: repos.Assignments,
		accounts:    repos.Accounts,
		stages:      repos.StageMappings,
		notify:      notify,
		logger:      logger,
		now:         time.Now,
	}
}

// Create stores the assignment, then gives the assignee its role and the
// stage mapped to that role.
func (s *AssignmentService) Create(ctx context.Context, req *models.RoleAssignmentRequest) (*models.RoleAssignment, error) {
	a := &models.RoleAssignment{
		ID:              uuid.New(),
		Email:           normalizeEmail(req.Email),
		Role:            strings.TrimSpace(req.Role),
		TaskDescription: strings.TrimSpace(req.TaskDescription),
		Priority:        strings.TrimSpace(req.Priority),
	}
	if a.Email == "" || a.Role == "" || a.TaskDescription == "" || a.Priority == "" ||
		req.StartDate == nil || req.DueDate == nil {
		return nil, apperr.Validation("All fields are required.")
	}
	a.StartDate, a.DueDate = *req.StartDate, *req.DueDate
	if err := validateAssignment(a); err != nil {
		return nil, err
	}
	assignee, err := s.assignee(ctx, a.Email)
	if err != nil {
		return nil, err
	}

	a.CreatedAt = s.now()
	a.UpdatedAt = a.CreatedAt
	if err := s.assignments.Create(ctx, a); err != nil {
		return nil, apperr.Internal("insert role assignment", err)
	}
	if err := s.applyRole(ctx, assignee, a.Role); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *AssignmentService) List(ctx context.Context) ([]models.RoleAssignment, error) {
	items, err := s.assignments.List(ctx)
	if err != nil {
		return nil, apperr.Internal("list role assignments", err)
	}
	return items, nil
}

// Update overlays the supplied fields and reapplies the role
func (s *AssignmentService) Update(ctx context.Context, id uuid.UUID, req *models.RoleAssignmentRequest) (*models.RoleAssignment, error) {
	a, err := s.assignments.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("Role assignment not found.")
		}
		return nil, apperr.Internal("load role assignment", err)
	}
	if v := normalizeEmail(req.Email); v != "" {
		a.Email = v
	}
	if v := strings.TrimSpace(req.Role); v != "" {
		a.Role = v
	}
	if v := strings.TrimSpace(req.TaskDescription); v != "" {
		a.TaskDescription = v
	}
	if v := strings.TrimSpace(req.Priority); v != "" {
		a.Priority = v
	}
	if req.StartDate != nil {
		a.StartDate = *req.StartDate
	}
	if req.DueDate != nil {
		a.DueDate = *req.DueDate
	}
	if err := validateAssignment(a); err != nil {
		return nil, err
	}
	assignee, err := s.assignee(ctx, a.Email)
	if err != nil {
		return nil, err
	}

	a.UpdatedAt = s.now()
	if err := s.assignments.Update(ctx, a); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("Role assignment not found.")
		}
		return nil, apperr.Internal("update role assignment", err)
	}
	if err := s.applyRole(ctx, assignee, a.Role); err != nil {
		return nil, err
	}
	return a, nil
}

// Delete removes the assignment record. The assignee keeps its role.
func (s *AssignmentService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.assignments.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("Role assignment not found.")
		}
		return apperr.Internal("delete role assignment", err)
	}
	return nil
}

func (s *AssignmentService) assignee(ctx context.Context, email string) (*models.Account, error) {
	acct, err := s.accounts.FindClientByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("User with this email not found.")
		}
		return nil, apperr.Internal("find assignee", err)
	}
	return acct, nil
}

func (s *AssignmentService) applyRole(ctx context.Context, acct *models.Account, role string) error {
	stage, err := stageForRole(ctx, s.stages, role)
	if err != nil {
		return err
	}
	acct.Role = role
	acct.AssignedStage = stage
	acct.UpdatedAt = s.now()
	if err := s.accounts.Update(ctx, acct); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("User with this email not found.")
		}
		return apperr.Internal("apply assigned role", err)
	}
	s.logger.Infow("Role assigned", "account", acct.ID, "role", role, "stage", stage)
	s.notify.Notify(ctx, acct.ID, fmt.Sprintf("You have been assigned the role %q.", role), NotifyRef{})
	return nil
}

func validateAssignment(a *models.RoleAssignment) error {
	if _, err := mail.ParseAddress(a.Email); err != nil {
		return apperr.Validation("Invalid email address.")
	}
	if !models.TaskPriorities[a.Priority] {
		return apperr.Validation("Priority must be High, Medium or Low.")
	}
	if a.DueDate.Before(a.StartDate) {
		return apperr.Validation("Due date cannot be before the start date.")
	}
	return nil
}
