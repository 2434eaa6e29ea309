// Package store persists domain records. Each repository has an in-memory
// implementation for tests and development and a PostgreSQL implementation
// for production.
//
// Error contract: every method returns ErrNotFound when the requested record
// does not exist and ErrConflict when a uniqueness or version check fails.
// Infrastructure failures are wrapped with context.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/newoon/backoffice-server/internal/models"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record conflict")
)

// AccountFilter narrows account listings. Zero fields match everything.
type AccountFilter struct {
	Kind        models.AccountKind
	Role        string
	ExcludeRole string
}

func (f AccountFilter) match(a *models.Account) bool {
	if f.Kind != "" && a.Kind != f.Kind {
		return false
	}
	if f.Role != "" && a.Role != f.Role {
		return false
	}
	if f.ExcludeRole != "" && a.Role == f.ExcludeRole {
		return false
	}
	return true
}

// AccountStore holds administrators and clients behind one interface
type AccountStore interface {
	// Create fails with ErrConflict when the username (administrators) or
	// email (clients) is taken.
	Create(ctx context.Context, a *models.Account) error
	Get(ctx context.Context, id uuid.UUID) (*models.Account, error)
	// FindByLoginIdentifier checks administrator usernames first, then
	// client names and emails.
	FindByLoginIdentifier(ctx context.Context, ident string) (*models.Account, error)
	FindClientByEmail(ctx context.Context, email string) (*models.Account, error)
	Update(ctx context.Context, a *models.Account) error
	Delete(ctx context.Context, id uuid.UUID) error
	// List returns matching accounts oldest first
	List(ctx context.Context, f AccountFilter) ([]models.Account, error)
	// AddService links formID to the account with set semantics and reports
	// whether it was newly added.
	AddService(ctx context.Context, accountID, formID uuid.UUID) (bool, error)
}

// DocumentFilter narrows document listings. Zero fields match everything.
type DocumentFilter struct {
	ClientID *uuid.UUID
	Stage    models.Stage
	Status   models.OutcomeStatus
}

func (f DocumentFilter) match(d *models.Document) bool {
	if f.ClientID != nil && d.ClientID != *f.ClientID {
		return false
	}
	if f.Stage != "" && d.TimelineStatus != f.Stage {
		return false
	}
	if f.Status != "" && d.Status != f.Status {
		return false
	}
	return true
}

// DocumentStore persists documents with optimistic concurrency
type DocumentStore interface {
	// Create assigns version 1
	Create(ctx context.Context, d *models.Document) error
	Get(ctx context.Context, id uuid.UUID) (*models.Document, error)
	// Update writes d only if the stored version equals expectedVersion and
	// bumps d.Version. A stale version fails with ErrConflict.
	Update(ctx context.Context, d *models.Document, expectedVersion int64) error
	Delete(ctx context.Context, id uuid.UUID) error
	// List returns matching documents newest first
	List(ctx context.Context, f DocumentFilter) ([]models.Document, error)
}

type NotificationStore interface {
	Create(ctx context.Context, n *models.Notification) error
	// ListByAccount returns the account's notifications newest first
	ListByAccount(ctx context.Context, accountID uuid.UUID) ([]models.Notification, error)
	// MarkRead sets IsRead on a notification owned by accountID
	MarkRead(ctx context.Context, id, accountID uuid.UUID) error
	DeleteByAccount(ctx context.Context, accountID uuid.UUID) (int64, error)
}

type FormStore interface {
	// Create fails with ErrConflict on a duplicate service name
	Create(ctx context.Context, f *models.Form) error
	Get(ctx context.Context, id uuid.UUID) (*models.Form, error)
	GetByName(ctx context.Context, serviceName string) (*models.Form, error)
	GetMany(ctx context.Context, ids []uuid.UUID) ([]models.Form, error)
	List(ctx context.Context) ([]models.Form, error)
	Update(ctx context.Context, f *models.Form) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type IntakeStore interface {
	Create(ctx context.Context, r *models.IntakeRequest) error
	Get(ctx context.Context, id uuid.UUID) (*models.IntakeRequest, error)
	// List returns requests newest first; a nil registered matches both kinds
	List(ctx context.Context, registered *bool) ([]models.IntakeRequest, error)
	FindByEmailAndService(ctx context.Context, email, serviceName string) (*models.IntakeRequest, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*models.IntakeRequest, error)
	// MarkRegistered flags every unregistered request from email as registered
	MarkRegistered(ctx context.Context, email string) (int64, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type ComplaintStore interface {
	Create(ctx context.Context, c *models.Complaint) error
	Get(ctx context.Context, id uuid.UUID) (*models.Complaint, error)
	// List returns complaints newest first; an empty subjects slice matches all
	List(ctx context.Context, subjects []models.ComplaintSubject) ([]models.Complaint, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*models.Complaint, error)
}

type MeetingStore interface {
	// Create fails with ErrConflict when the date and time slot is taken
	Create(ctx context.Context, m *models.Meeting) error
	// List returns meetings ordered by slot
	List(ctx context.Context) ([]models.Meeting, error)
}

type RoleStore interface {
	Create(ctx context.Context, r *models.Role) error
	Get(ctx context.Context, id uuid.UUID) (*models.Role, error)
	List(ctx context.Context) ([]models.Role, error)
	Update(ctx context.Context, r *models.Role) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type CatalogStore interface {
	// Create fails with ErrConflict on a duplicate service name
	Create(ctx context.Context, s *models.CatalogService) error
	List(ctx context.Context) ([]models.CatalogService, error)
}

type AssignmentStore interface {
	Create(ctx context.Context, a *models.RoleAssignment) error
	Get(ctx context.Context, id uuid.UUID) (*models.RoleAssignment, error)
	List(ctx context.Context) ([]models.RoleAssignment, error)
	Update(ctx context.Context, a *models.RoleAssignment) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// ResetTokenStore holds password-reset token hashes
type ResetTokenStore interface {
	// Put replaces any outstanding token for the account
	Put(ctx context.Context, t *models.ResetToken) error
	// Consume atomically removes the token with the given hash. Missing or
	// expired tokens fail with ErrNotFound.
	Consume(ctx context.Context, tokenHash string, now time.Time) (*models.ResetToken, error)
}

// StageMappingStore maps authorization roles to the pipeline stage they operate
type StageMappingStore interface {
	StageFor(ctx context.Context, role string) (models.Stage, error)
	Set(ctx context.Context, role string, stage models.Stage) error
	List(ctx context.Context) (map[string]models.Stage, error)
}

// Repos bundles every repository the services need
type Repos struct {
	Accounts      AccountStore
	Documents     DocumentStore
	Notifications NotificationStore
	Forms         FormStore
	Intakes       IntakeStore
	Complaints    ComplaintStore
	Meetings      MeetingStore
	Roles         RoleStore
	Catalog       CatalogStore
	Assignments   AssignmentStore
	ResetTokens   ResetTokenStore
	StageMappings StageMappingStore
}

// DefaultStageMappings seeds the role to stage table: each pipeline stage is
// operated by the role of the same name.
func DefaultStageMappings() map[string]models.Stage {
	m := make(map[string]models.Stage, len(models.Stages))
	for _, st := range models.Stages {
		m[string(st)] = st
	}
	return m
}
