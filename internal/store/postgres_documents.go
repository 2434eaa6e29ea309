package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/newoon/backoffice-server/internal/models"
)

// PostgresDocuments stores documents with a version column for compare-and-swap
type PostgresDocuments struct {
	db *pgxpool.Pool
}

const documentColumns = `id, client_id, service_id, form_data, admin_remarks, status, timeline_status,
	corrections, missing_fields, is_verified, version, created_at, updated_at`

func scanDocument(row pgx.Row) (*models.Document, error) {
	var d models.Document
	err := row.Scan(&d.ID, &d.ClientID, &d.ServiceID, &d.FormData, &d.AdminRemarks, &d.Status,
		&d.TimelineStatus, &d.Corrections, &d.MissingFields, &d.IsVerified, &d.Version,
		&d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *PostgresDocuments) Create(ctx context.Context, d *models.Document) error {
	d.Version = 1
	query := `
		INSERT INTO documents (` + documentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := s.db.Exec(ctx, query,
		d.ID, d.ClientID, d.ServiceID, d.FormData, d.AdminRemarks, d.Status, d.TimelineStatus,
		nonNil(d.Corrections), nonNil(d.MissingFields), d.IsVerified, d.Version, d.CreatedAt, d.UpdatedAt,
	)
	return translate("insert document", err)
}

func (s *PostgresDocuments) Get(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	d, err := scanDocument(s.db.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id))
	if err != nil {
		return nil, translate("get document", err)
	}
	return d, nil
}

func (s *PostgresDocuments) Update(ctx context.Context, d *models.Document, expectedVersion int64) error {
	query := `
		UPDATE documents SET service_id = $2, form_data = $3, admin_remarks = $4, status = $5,
			timeline_status = $6, corrections = $7, missing_fields = $8, is_verified = $9,
			updated_at = $10, version = version + 1
		WHERE id = $1 AND version = $11
	`
	tag, err := s.db.Exec(ctx, query,
		d.ID, d.ServiceID, d.FormData, d.AdminRemarks, d.Status, d.TimelineStatus,
		nonNil(d.Corrections), nonNil(d.MissingFields), d.IsVerified, d.UpdatedAt, expectedVersion,
	)
	if err != nil {
		return translate("update document", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM documents WHERE id = $1)`, d.ID).Scan(&exists); err != nil {
			return translate("update document", err)
		}
		if !exists {
			return fmt.Errorf("update document %s: %w", d.ID, ErrNotFound)
		}
		return fmt.Errorf("update document %s: stale version %d: %w", d.ID, expectedVersion, ErrConflict)
	}
	d.Version = expectedVersion + 1
	return nil
}

func (s *PostgresDocuments) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	return affected("delete document", tag, err)
}

func (s *PostgresDocuments) List(ctx context.Context, f DocumentFilter) ([]models.Document, error) {
	var w where
	if f.ClientID != nil {
		w.add("client_id = $%d", *f.ClientID)
	}
	if f.Stage != "" {
		w.add("timeline_status = $%d", f.Stage)
	}
	if f.Status != "" {
		w.add("status = $%d", f.Status)
	}
	rows, err := s.db.Query(ctx, `SELECT `+documentColumns+` FROM documents`+w.String()+` ORDER BY created_at DESC`, w.args...)
	if err != nil {
		return nil, translate("list documents", err)
	}
	defer rows.Close()

	out := []models.Document{}
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}
