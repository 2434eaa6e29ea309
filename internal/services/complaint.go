// Package services contains business logic layers.
// Services are called by handlers and interact with the stores.
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
	"github.com/newoon/backoffice-server/internal/storage"
	"github.com/newoon/backoffice-server/internal/store"
)

// roleSubjects lists the complaint subjects each management role may read
var roleSubjects = map[string][]models.ComplaintSubject{
	models.RoleAdmin:          models.ComplaintSubjects,
	"KYC_Management":          {models.SubjectKYC},
	"BRN_Tracking":            {models.SubjectBRN},
	"RegulatoryMonitoring":    {models.SubjectRegulatory},
	"ComplianceDocumentation": {models.SubjectCompliance},
}

// ComplaintService handles complaint business logic
type ComplaintService struct {
	complaints store.ComplaintStore
	files      storage.Store
	notify     *Dispatcher
	logger     *zap.SugaredLogger
	now        func() time.Time
}

// NewComplaintService creates a new complaint service
func NewComplaintService(repos *store.Repos, files storage.Store, notify *Dispatcher, logger *zap.SugaredLogger) *ComplaintService {
	return &ComplaintService{
		complaints: repos.Complaints,
		files:      files,
		notify:     notify,
		logger:     logger,
		now:        time.Now,
	}
}

// Create files a complaint for caller and confirms it with a notification
func (s *ComplaintService) Create(ctx context.Context, caller *models.Account, req *models.ComplaintSubmission, attach *Upload) (*models.Complaint, error) {
	c := &models.Complaint{
		ID:            uuid.New(),
		SubmitterID:   caller.ID,
		FirstName:     strings.TrimSpace(req.FirstName),
		LastName:      strings.TrimSpace(req.LastName),
		Email:         normalizeEmail(req.Email),
		ContactNumber: strings.TrimSpace(req.ContactNumber),
		Subject:       models.ComplaintSubject(strings.TrimSpace(req.Subject)),
		Details:       strings.TrimSpace(req.Details),
		Status:        models.ComplaintPending,
	}
	if c.FirstName == "" || c.LastName == "" || c.Email == "" || c.ContactNumber == "" || c.Subject == "" || c.Details == "" {
		return nil, apperr.Validation("All fields are required")
	}
	if _, err := mail.ParseAddress(c.Email); err != nil {
		return nil, apperr.Validation("Invalid email address.")
	}
	if !models.ValidComplaintSubject(string(c.Subject)) {
		return nil, apperr.Validation("Invalid complaint subject")
	}

	if attach != nil {
		info, err := saveUpload(ctx, s.files, "complaints", attach)
		if err != nil {
			return nil, err
		}
		c.FileAttachment = info.URL
	}

	c.CreatedAt = s.now()
	c.UpdatedAt = c.CreatedAt
	if err := s.complaints.Create(ctx, c); err != nil {
		return nil, apperr.Internal("insert complaint", err)
	}

	s.logger.Infow("Complaint filed", "complaint", c.ID, "subject", c.Subject)
	s.notify.Notify(ctx, caller.ID,
		fmt.Sprintf("Your compliance complaint regarding %q has been submitted successfully.", c.Subject),
		NotifyRef{ComplaintID: &c.ID})
	return c, nil
}

// List returns every complaint newest first
func (s *ComplaintService) List(ctx context.Context) ([]models.Complaint, error) {
	items, err := s.complaints.List(ctx, nil)
	if err != nil {
		return nil, apperr.Internal("list complaints", err)
	}
	return items, nil
}

// BySubject returns complaints of one subject if caller's role covers it
func (s *ComplaintService) BySubject(ctx context.Context, caller *models.Account, subject string) ([]models.Complaint, error) {
	if !subjectAllowed(caller.Role, subject) {
		return nil, apperr.Forbidden(fmt.Sprintf("You are not authorized to access complaints for %s", subject))
	}
	items, err := s.complaints.List(ctx, []models.ComplaintSubject{models.ComplaintSubject(subject)})
	if err != nil {
		return nil, apperr.Internal("list complaints by subject", err)
	}
	if len(items) == 0 {
		return nil, apperr.NotFound(fmt.Sprintf("No complaints found for %s", subject))
	}
	return items, nil
}

// UpdateStatus marks a complaint pending or verified and tells the submitter
func (s *ComplaintService) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*models.Complaint, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	if status != models.ComplaintPending && status != models.ComplaintVerified {
		return nil, apperr.Validation("Status must be pending or verified")
	}
	c, err := s.complaints.UpdateStatus(ctx, id, status)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("Complaint not found")
		}
		return nil, apperr.Internal("update complaint status", err)
	}
	s.notify.Notify(ctx, c.SubmitterID,
		fmt.Sprintf("Your complaint regarding %q is now %s.", c.Subject, status),
		NotifyRef{ComplaintID: &c.ID})
	return c, nil
}

// ComplaintRoles returns the roles allowed to read complaints by subject
func ComplaintRoles() []string {
	roles := make([]string, 0, len(roleSubjects))
	for r := range roleSubjects {
		roles = append(roles, r)
	}
	return roles
}

func subjectAllowed(role, subject string) bool {
	for _, s := range roleSubjects[role] {
		if string(s) == subject {
			return true
		}
	}
	return false
}
