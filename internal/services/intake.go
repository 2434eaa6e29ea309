package services

import (
	"context"
	"errors"
	"net/mail"
	"net/url"
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

// IntakeService records client-service requests from registered clients and walk-ins
type IntakeService struct {
	intakes     store.IntakeStore
	mail        mailer.Mailer
	metrics     *metrics.Metrics
	frontendURL string
	logger      *zap.SugaredLogger
	now         func() time.Time
}

func NewIntakeService(repos *store.Repos, mail mailer.Mailer, m *metrics.Metrics, frontendURL string, logger *zap.SugaredLogger) *IntakeService {
	return &IntakeService{
		intakes:     repos.Intakes,
		mail:        mail,
		metrics:     m,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		logger:      logger,
		now:         time.Now,
	}
}

// Create stores an intake request. registered tells whether it came from a
// signed-in client or the public form.
func (s *IntakeService) Create(ctx context.Context, in *models.IntakeInput, registered bool) (*models.IntakeRequest, error) {
	name := strings.TrimSpace(in.ClientName)
	email := normalizeEmail(in.ClientEmail)
	number := strings.TrimSpace(in.ClientNumber)
	service := strings.TrimSpace(in.ServiceName)
	if name == "" || email == "" || number == "" || service == "" {
		return nil, apperr.Validation("All required fields must be filled.")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperr.Validation("Invalid email address.")
	}
	status := strings.TrimSpace(in.Status)
	if status == "" {
		status = models.IntakePending
	}
	if !models.IntakeStatuses[status] {
		return nil, apperr.Validation("Invalid status value.")
	}

	now := s.now()
	r := &models.IntakeRequest{
		ID:                 uuid.New(),
		ClientName:         name,
		ClientEmail:        email,
		ClientNumber:       number,
		ServiceName:        service,
		ServiceDescription: strings.TrimSpace(in.ServiceDescription),
		Status:             status,
		IsRegistered:       registered,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.intakes.Create(ctx, r); err != nil {
		return nil, apperr.Internal("insert intake request", err)
	}
	s.logger.Infow("Intake request created", "intake", r.ID, "service", service, "registered", registered)
	return r, nil
}

// List returns every intake request newest first
func (s *IntakeService) List(ctx context.Context) ([]models.IntakeRequest, error) {
	items, err := s.intakes.List(ctx, nil)
	if err != nil {
		return nil, apperr.Internal("list intake requests", err)
	}
	return items, nil
}

// Unregistered returns walk-in requests whose client has not signed up yet
func (s *IntakeService) Unregistered(ctx context.Context) ([]models.IntakeRequest, error) {
	registered := false
	items, err := s.intakes.List(ctx, &registered)
	if err != nil {
		return nil, apperr.Internal("list unregistered intake requests", err)
	}
	if len(items) == 0 {
		return nil, apperr.NotFound("No services found for unregistered clients.")
	}
	return items, nil
}

// UpdateStatus sets any of the accepted statuses; there is no ordering
func (s *IntakeService) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*models.IntakeRequest, error) {
	status = strings.TrimSpace(status)
	if status == "" {
		return nil, apperr.Validation("Status is required.")
	}
	if !models.IntakeStatuses[status] {
		return nil, apperr.Validation("Invalid status value.")
	}
	r, err := s.intakes.UpdateStatus(ctx, id, status)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("Client service not found.")
		}
		return nil, apperr.Internal("update intake status", err)
	}
	return r, nil
}

func (s *IntakeService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.intakes.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("Client service not found.")
		}
		return apperr.Internal("delete intake request", err)
	}
	return nil
}

// SendFormInvitation emails a link to the service form
func (s *IntakeService) SendFormInvitation(ctx context.Context, req *models.SendFormRequest) error {
	email, serviceName, err := validateSendRequest(req)
	if err != nil {
		return err
	}
	link := s.frontendURL + "/form/" + url.PathEscape(serviceName)
	if err := sendMail(ctx, s.mail, s.metrics, mailer.ServiceFormInvitation(email, serviceName, link)); err != nil {
		return apperr.Dependency("Failed to send email.", err)
	}
	return nil
}

// SendWelcome emails a walk-in client that their request was registered
func (s *IntakeService) SendWelcome(ctx context.Context, req *models.SendFormRequest) error {
	email, serviceName, err := validateSendRequest(req)
	if err != nil {
		return err
	}
	if err := sendMail(ctx, s.mail, s.metrics, mailer.Welcome(email, serviceName, s.frontendURL+"/login")); err != nil {
		return apperr.Dependency("Failed to send email.", err)
	}
	return nil
}

func validateSendRequest(req *models.SendFormRequest) (string, string, error) {
	email := normalizeEmail(req.Email)
	serviceName := strings.TrimSpace(req.ServiceName)
	if email == "" || serviceName == "" {
		return "", "", apperr.Validation("Email and Service Name are required.")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", "", apperr.Validation("Invalid email address.")
	}
	return email, serviceName, nil
}
