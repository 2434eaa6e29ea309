package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/newoon/backoffice-server/internal/apperr"
	"github.com/newoon/backoffice-server/internal/metrics"
	"github.com/newoon/backoffice-server/internal/models"
	"github.com/newoon/backoffice-server/internal/storage"
	"github.com/newoon/backoffice-server/internal/store"
)

// DocumentService runs client submissions through the verification pipeline
type DocumentService struct {
	docs     store.DocumentStore
	accounts store.AccountStore
	forms    store.FormStore
	files    storage.Store
	notify   *Dispatcher
	metrics  *metrics.Metrics
	logger   *zap.SugaredLogger
	now      func() time.Time
}

func NewDocumentService(repos *store.Repos, files storage.Store, notify *Dispatcher, m *metrics.Metrics, logger *zap.SugaredLogger) *DocumentService {
	return &DocumentService{
		docs:     repos.Documents,
		accounts: repos.Accounts,
		forms:    repos.Forms,
		files:    files,
		notify:   notify,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// Create stores a new submission owned by caller. The secret field is
// hashed and the attachment, if any, is uploaded first.
func (s *DocumentService) Create(ctx context.Context, caller *models.Account, in *models.NewDocument, attach *Upload) (*models.Document, error) {
	if in.ServiceID != nil {
		if _, err := s.forms.Get(ctx, *in.ServiceID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, apperr.NotFound("Service not found")
			}
			return nil, apperr.Internal("load service form", err)
		}
	}

	fd := in.FormData
	if fd.Password != "" {
		hashed, err := hashSecret(fd.Password)
		if err != nil {
			return nil, err
		}
		fd.Password = hashed
	}
	if attach != nil {
		info, err := saveUpload(ctx, s.files, "documents", attach)
		if err != nil {
			return nil, err
		}
		fd.DocumentAttach = info.URL
	}

	now := s.now()
	doc := &models.Document{
		ID:             uuid.New(),
		ClientID:       caller.ID,
		ServiceID:      in.ServiceID,
		FormData:       fd,
		Status:         models.OutcomePending,
		TimelineStatus: models.StageCollecting,
		Corrections:    []string{},
		MissingFields:  fd.Missing(),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		if attach != nil {
			if rmErr := removeStored(ctx, s.files, fd.DocumentAttach); rmErr != nil {
				s.logger.Warnw("Orphaned document attachment", "url", fd.DocumentAttach, "error", rmErr)
			}
		}
		return nil, apperr.Internal("insert document", err)
	}

	s.logger.Infow("Document created", "document", doc.ID, "client", caller.ID, "missing", len(doc.MissingFields))
	return doc, nil
}

// ListForOperator returns the caller's work queue newest first. Admins see
// every document, stage operators see the documents sitting in their stage.
func (s *DocumentService) ListForOperator(ctx context.Context, caller *models.Account) ([]models.Document, error) {
	var f store.DocumentFilter
	switch {
	case caller.Role == models.RoleAdmin:
	case caller.AssignedStage != "":
		f.Stage = caller.AssignedStage
	default:
		return nil, apperr.Forbidden("Your role does not permit accessing documents.")
	}
	docs, err := s.docs.List(ctx, f)
	if err != nil {
		return nil, apperr.Internal("list documents", err)
	}
	return docs, nil
}

// Get returns one document to its owner or to staff
func (s *DocumentService) Get(ctx context.Context, caller *models.Account, id uuid.UUID) (*models.Document, error) {
	doc, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !caller.IsStaff() && doc.ClientID != caller.ID {
		return nil, apperr.Forbidden("You do not have access to this document")
	}
	return doc, nil
}

// Advance moves a document to the next stage when the caller operates the
// current one, then tells the owning client.
func (s *DocumentService) Advance(ctx context.Context, caller *models.Account, id uuid.UUID) (*models.Document, error) {
	doc, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	expected := doc.Version
	if err := AdvanceStage(doc, caller.AssignedStage); err != nil {
		return nil, err
	}
	doc.UpdatedAt = s.now()
	if err := s.save(ctx, doc, expected); err != nil {
		return nil, err
	}

	s.metrics.IncStageTransition(string(doc.TimelineStatus))
	s.logger.Infow("Document advanced", "document", doc.ID, "stage", doc.TimelineStatus, "operator", caller.ID)
	s.notify.Notify(ctx, doc.ClientID,
		fmt.Sprintf("Your document has moved to the %s stage.", doc.TimelineStatus),
		NotifyRef{DocumentID: &doc.ID})
	return doc, nil
}

// SetOutcome verifies or rejects a document and notifies its owner exactly once
func (s *DocumentService) SetOutcome(ctx context.Context, caller *models.Account, id uuid.UUID, req *models.VerifyRequest) (*models.Document, error) {
	if !caller.IsStaff() {
		return nil, apperr.Forbidden("Clients cannot verify documents")
	}
	doc, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	expected := doc.Version
	if err := ApplyOutcome(doc, req); err != nil {
		return nil, err
	}
	doc.UpdatedAt = s.now()
	if err := s.save(ctx, doc, expected); err != nil {
		return nil, err
	}

	s.metrics.IncOutcome(string(doc.Status))
	s.logger.Infow("Document outcome set", "document", doc.ID, "status", doc.Status, "operator", caller.ID)
	s.notify.Notify(ctx, doc.ClientID, OutcomeMessage(doc), NotifyRef{DocumentID: &doc.ID})
	return doc, nil
}

// SubmitCorrections lets the owning client fix a rejected document. The
// attachment can only be replaced by uploading a new file; a URL in patch
// is ignored.
func (s *DocumentService) SubmitCorrections(ctx context.Context, caller *models.Account, id uuid.UUID, patch models.FormData, attach *Upload) (*models.Document, error) {
	doc, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.ClientID != caller.ID {
		return nil, apperr.Forbidden("Only the document owner can submit corrections")
	}
	if patch.Password != "" {
		if patch.Password, err = hashSecret(patch.Password); err != nil {
			return nil, err
		}
	}
	if doc.Status != models.OutcomeRejected {
		return nil, apperr.Conflict("Only rejected documents accept corrections")
	}
	patch.DocumentAttach = ""
	if attach != nil {
		info, err := saveUpload(ctx, s.files, "documents", attach)
		if err != nil {
			return nil, err
		}
		patch.DocumentAttach = info.URL
	}
	previous := doc.FormData.DocumentAttach
	expected := doc.Version
	err = ApplyCorrections(doc, patch)
	if err == nil {
		doc.UpdatedAt = s.now()
		err = s.save(ctx, doc, expected)
	}
	if err != nil {
		if patch.DocumentAttach != "" {
			if rmErr := removeStored(ctx, s.files, patch.DocumentAttach); rmErr != nil {
				s.logger.Warnw("Orphaned document attachment", "url", patch.DocumentAttach, "error", rmErr)
			}
		}
		return nil, err
	}
	if attach != nil && previous != "" {
		if err := removeStored(ctx, s.files, previous); err != nil {
			s.logger.Warnw("Failed to remove replaced attachment", "document", doc.ID, "url", previous, "error", err)
		}
	}
	s.logger.Infow("Corrections submitted", "document", doc.ID, "client", caller.ID, "newAttachment", attach != nil)
	return doc, nil
}

// ClientDocuments lists one client's documents for that client or for staff
func (s *DocumentService) ClientDocuments(ctx context.Context, caller *models.Account, clientID uuid.UUID) ([]models.Document, error) {
	if !caller.IsStaff() && caller.ID != clientID {
		return nil, apperr.Forbidden("You can only view your own documents")
	}
	docs, err := s.docs.List(ctx, store.DocumentFilter{ClientID: &clientID})
	if err != nil {
		return nil, apperr.Internal("list client documents", err)
	}
	if len(docs) == 0 {
		return nil, apperr.NotFound("No documents found for this client.")
	}
	return docs, nil
}

// Timeline returns the caller's own documents newest first with service names
func (s *DocumentService) Timeline(ctx context.Context, caller *models.Account) ([]models.TimelineEntry, error) {
	docs, err := s.docs.List(ctx, store.DocumentFilter{ClientID: &caller.ID})
	if err != nil {
		return nil, apperr.Internal("list timeline", err)
	}
	if len(docs) == 0 {
		return nil, apperr.NotFound("No documents found for this user")
	}

	names, err := s.serviceNames(ctx, docs)
	if err != nil {
		return nil, err
	}
	out := make([]models.TimelineEntry, 0, len(docs))
	for _, d := range docs {
		name := "No Service Name"
		if d.ServiceID != nil {
			if n, ok := names[*d.ServiceID]; ok {
				name = n
			}
		}
		out = append(out, models.TimelineEntry{
			ID:             d.ID,
			ServiceName:    name,
			Status:         d.Status,
			TimelineStatus: d.TimelineStatus,
			CreatedAt:      d.CreatedAt,
			UpdatedAt:      d.UpdatedAt,
		})
	}
	return out, nil
}

// RenewalDue lists verified documents whose owners opted into renewal,
// earliest next renewal first.
func (s *DocumentService) RenewalDue(ctx context.Context) ([]models.RenewalEntry, error) {
	docs, err := s.docs.List(ctx, store.DocumentFilter{Status: models.OutcomeVerified})
	if err != nil {
		return nil, apperr.Internal("list verified documents", err)
	}

	now := s.now()
	clients := make(map[uuid.UUID]*models.Account)
	out := make([]models.RenewalEntry, 0, len(docs))
	for _, d := range docs {
		if !d.FormData.WantsRenewal() {
			continue
		}
		entry := models.RenewalEntry{Document: d, NextRenewalDate: d.NextRenewal(now)}
		acct, seen := clients[d.ClientID]
		if !seen {
			acct, err = s.accounts.Get(ctx, d.ClientID)
			if err != nil && !errors.Is(err, store.ErrNotFound) {
				return nil, apperr.Internal("load client", err)
			}
			clients[d.ClientID] = acct
		}
		if acct != nil {
			entry.ClientName = acct.Name
			entry.ClientEmail = acct.Email
		}
		out = append(out, entry)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].NextRenewalDate.Before(out[j].NextRenewalDate)
	})
	return out, nil
}

// Delete removes a document and its attachment, then notifies the acting admin
func (s *DocumentService) Delete(ctx context.Context, caller *models.Account, id uuid.UUID) error {
	doc, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := s.docs.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("Document not found")
		}
		return apperr.Internal("delete document", err)
	}
	if doc.FormData.DocumentAttach != "" {
		if err := removeStored(ctx, s.files, doc.FormData.DocumentAttach); err != nil {
			s.logger.Warnw("Failed to delete document attachment", "document", id, "url", doc.FormData.DocumentAttach, "error", err)
		}
	}

	s.logger.Infow("Document deleted", "document", id, "admin", caller.ID)
	s.notify.Notify(ctx, caller.ID,
		fmt.Sprintf("The document \"Document ID: %s\" has been deleted.", id), NotifyRef{})
	return nil
}

func (s *DocumentService) load(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	doc, err := s.docs.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("Document not found")
		}
		return nil, apperr.Internal("load document", err)
	}
	return doc, nil
}

func (s *DocumentService) save(ctx context.Context, doc *models.Document, expected int64) error {
	err := s.docs.Update(ctx, doc, expected)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrConflict):
		return apperr.Conflict("Document was changed by someone else, reload and try again")
	case errors.Is(err, store.ErrNotFound):
		return apperr.NotFound("Document not found")
	default:
		return apperr.Internal("update document", err)
	}
}

func (s *DocumentService) serviceNames(ctx context.Context, docs []models.Document) (map[uuid.UUID]string, error) {
	var ids []uuid.UUID
	for _, d := range docs {
		if d.ServiceID != nil {
			ids = append(ids, *d.ServiceID)
		}
	}
	names := make(map[uuid.UUID]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}
	forms, err := s.forms.GetMany(ctx, ids)
	if err != nil {
		return nil, apperr.Internal("load service names", err)
	}
	for _, f := range forms {
		names[f.ID] = strings.TrimSpace(f.ServiceName)
	}
	return names, nil
}
