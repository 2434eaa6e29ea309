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
	"github.com/newoon/backoffice-server/internal/mailer"
	"github.com/newoon/backoffice-server/internal/metrics"
	"github.com/newoon/backoffice-server/internal/models"
	"github.com/newoon/backoffice-server/internal/store"
)

// FormService manages service templates and sends them to clients
type FormService struct {
	forms    store.FormStore
	accounts store.AccountStore
	intakes  store.IntakeStore
	notify   *Dispatcher
	mail     mailer.Mailer
	metrics  *metrics.Metrics
	logger   *zap.SugaredLogger
	now      func() time.Time
}

func NewFormService(repos *store.Repos, notify *Dispatcher, mail mailer.Mailer, m *metrics.Metrics, logger *zap.SugaredLogger) *FormService {
	return &FormService{
		forms:    repos.Forms,
		accounts: repos.Accounts,
		intakes:  repos.Intakes,
		notify:   notify,
		mail:     mail,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// Create adds a form and notifies the acting admin
func (s *FormService) Create(ctx context.Context, caller *models.Account, in *models.FormInput) (*models.Form, error) {
	name := strings.TrimSpace(in.ServiceName)
	if name == "" || len(in.Fields) == 0 {
		return nil, apperr.Validation("Form title and at least one field are required.")
	}
	now := s.now()
	form := &models.Form{
		ID:                 uuid.New(),
		ServiceName:        name,
		ServiceDescription: strings.TrimSpace(in.ServiceDescription),
		Fields:             in.Fields,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.forms.Create(ctx, form); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, apperr.Conflict("A service with the same name already exists.")
		}
		return nil, apperr.Internal("insert form", err)
	}
	s.logger.Infow("Form created", "form", form.ID, "service", name)
	s.notify.Notify(ctx, caller.ID, fmt.Sprintf("A new service %q has been added.", name), NotifyRef{})
	return form, nil
}

// List returns every form
func (s *FormService) List(ctx context.Context) ([]models.Form, error) {
	forms, err := s.forms.List(ctx)
	if err != nil {
		return nil, apperr.Internal("list forms", err)
	}
	return forms, nil
}

// Get returns one form
func (s *FormService) Get(ctx context.Context, id uuid.UUID) (*models.Form, error) {
	form, err := s.forms.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("Form not found.")
		}
		return nil, apperr.Internal("load form", err)
	}
	return form, nil
}

// Preview finds a form by its service name
func (s *FormService) Preview(ctx context.Context, serviceName string) (*models.Form, error) {
	serviceName = strings.TrimSpace(serviceName)
	if serviceName == "" {
		return nil, apperr.Validation("Service name is required.")
	}
	return s.byName(ctx, serviceName)
}

// ServiceNames lists the names of every form
func (s *FormService) ServiceNames(ctx context.Context) ([]string, error) {
	forms, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(forms))
	for _, f := range forms {
		names = append(names, f.ServiceName)
	}
	return names, nil
}

// Update overwrites the supplied fields and notifies the acting admin
func (s *FormService) Update(ctx context.Context, caller *models.Account, id uuid.UUID, in *models.FormInput) (*models.Form, error) {
	form, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if name := strings.TrimSpace(in.ServiceName); name != "" {
		form.ServiceName = name
	}
	if desc := strings.TrimSpace(in.ServiceDescription); desc != "" {
		form.ServiceDescription = desc
	}
	if len(in.Fields) > 0 {
		form.Fields = in.Fields
	}
	form.UpdatedAt = s.now()
	if err := s.forms.Update(ctx, form); err != nil {
		switch {
		case errors.Is(err, store.ErrConflict):
			return nil, apperr.Conflict("A service with the same name already exists.")
		case errors.Is(err, store.ErrNotFound):
			return nil, apperr.NotFound("Form not found.")
		}
		return nil, apperr.Internal("update form", err)
	}
	s.notify.Notify(ctx, caller.ID, fmt.Sprintf("The service %q has been updated.", form.ServiceName), NotifyRef{})
	return form, nil
}

// Delete removes a form and notifies the acting admin
func (s *FormService) Delete(ctx context.Context, caller *models.Account, id uuid.UUID) (*models.Form, error) {
	form, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.forms.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("Form not found.")
		}
		return nil, apperr.Internal("delete form", err)
	}
	s.logger.Infow("Form deleted", "form", id, "service", form.ServiceName)
	s.notify.Notify(ctx, caller.ID, fmt.Sprintf("The service %q has been deleted.", form.ServiceName), NotifyRef{})
	return form, nil
}

// ServicesByEmail returns the forms linked to the client with email
func (s *FormService) ServicesByEmail(ctx context.Context, email string) ([]models.Form, error) {
	client, err := s.clientByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if len(client.Services) == 0 {
		return []models.Form{}, nil
	}
	forms, err := s.forms.GetMany(ctx, client.Services)
	if err != nil {
		return nil, apperr.Internal("load linked services", err)
	}
	return forms, nil
}

// SendWithDetails links a service form to a client. In order it adds the
// form to the client's services, activates the matching intake request,
// notifies the client and emails the details. Steps that already ran are
// kept when a later one fails; the failure is returned.
func (s *FormService) SendWithDetails(ctx context.Context, req *models.SendFormRequest) error {
	email := normalizeEmail(req.Email)
	serviceName := strings.TrimSpace(req.ServiceName)
	if email == "" || serviceName == "" {
		return apperr.Validation("Email and service name are required.")
	}
	form, err := s.byName(ctx, serviceName)
	if err != nil {
		return err
	}
	client, err := s.clientByEmail(ctx, email)
	if err != nil {
		return err
	}

	added, err := s.accounts.AddService(ctx, client.ID, form.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("Client not found.")
		}
		return apperr.Internal("link service", err)
	}
	form.LastSentTo = email
	form.UpdatedAt = s.now()
	if err := s.forms.Update(ctx, form); err != nil {
		s.logger.Warnw("Failed to record form recipient", "form", form.ID, "error", err)
	}

	intake, err := s.intakes.FindByEmailAndService(ctx, email, serviceName)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("Client service entry not found.")
		}
		return apperr.Internal("find intake request", err)
	}
	if _, err := s.intakes.UpdateStatus(ctx, intake.ID, models.IntakeActive); err != nil {
		return apperr.Internal("activate intake request", err)
	}

	s.notify.Notify(ctx, client.ID,
		fmt.Sprintf("The service form for %q has been sent to your email and your profile.", serviceName), NotifyRef{})

	if err := sendMail(ctx, s.mail, s.metrics, mailer.ServiceDetails(email, form.ServiceName, form.ServiceDescription)); err != nil {
		s.logger.Errorw("Service details email failed after linking", "client", client.ID, "form", form.ID, "error", err)
		return apperr.Dependency("Service was linked but the email could not be sent", err)
	}
	s.logger.Infow("Service form sent", "client", client.ID, "form", form.ID, "newly_linked", added)
	return nil
}

func (s *FormService) byName(ctx context.Context, serviceName string) (*models.Form, error) {
	form, err := s.forms.GetByName(ctx, serviceName)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("Service form not found.")
		}
		return nil, apperr.Internal("load form", err)
	}
	return form, nil
}

func (s *FormService) clientByEmail(ctx context.Context, email string) (*models.Account, error) {
	email = normalizeEmail(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperr.Validation("Invalid email address.")
	}
	client, err := s.accounts.FindClientByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("Client not found.")
		}
		return nil, apperr.Internal("find client", err)
	}
	return client, nil
}
