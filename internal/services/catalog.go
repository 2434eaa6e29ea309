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
	"github.com/newoon/backoffice-server/internal/storage"
	"github.com/newoon/backoffice-server/internal/store"
)

// CatalogService manages the public list of service offerings
type CatalogService struct {
	catalog store.CatalogStore
	files   storage.Store
	notify  *Dispatcher
	logger  *zap.SugaredLogger
	now     func() time.Time
}

func NewCatalogService(repos *store.Repos, files storage.Store, notify *Dispatcher, logger *zap.SugaredLogger) *CatalogService {
	return &CatalogService{catalog: repos.Catalog, files: files, notify: notify, logger: logger, now: time.Now}
}

// Create adds an offering with an optional image
func (s *CatalogService) Create(ctx context.Context, caller *models.Account, name, description string, image *Upload) (*models.CatalogService, error) {
	name = strings.TrimSpace(name)
	description = strings.TrimSpace(description)
	if name == "" || description == "" {
		return nil, apperr.Validation("Service name and description are required.")
	}

	now := s.now()
	svc := &models.CatalogService{
		ID:          uuid.New(),
		ServiceName: name,
		Description: description,
		CreatedBy:   &caller.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if image != nil {
		info, err := saveUpload(ctx, s.files, "services", image)
		if err != nil {
			return nil, err
		}
		svc.Image = info.URL
	}

	if err := s.catalog.Create(ctx, svc); err != nil {
		if svc.Image != "" {
			if rmErr := removeStored(ctx, s.files, svc.Image); rmErr != nil {
				s.logger.Warnw("Orphaned service image", "url", svc.Image, "error", rmErr)
			}
		}
		if errors.Is(err, store.ErrConflict) {
			return nil, apperr.Conflict(fmt.Sprintf("Service with the name %q already exists.", name))
		}
		return nil, apperr.Internal("insert catalog service", err)
	}
	s.logger.Infow("Catalog service created", "service", name)
	s.notify.Notify(ctx, caller.ID, fmt.Sprintf("A new service %q has been added.", name), NotifyRef{})
	return svc, nil
}

// List returns every offering; an empty catalog is NotFound
func (s *CatalogService) List(ctx context.Context) ([]models.CatalogService, error) {
	items, err := s.catalog.List(ctx)
	if err != nil {
		return nil, apperr.Internal("list catalog services", err)
	}
	if len(items) == 0 {
		return nil, apperr.NotFound("No services found.")
	}
	return items, nil
}
