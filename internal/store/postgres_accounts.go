package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/newoon/backoffice-server/internal/models"
)

// PostgresAccounts stores administrators and clients in one table keyed by kind
type PostgresAccounts struct {
	db *pgxpool.Pool
}

const accountColumns = `id, kind, username, name, email, phone, address, photo, role,
	assigned_stage, services, status, password_hash, created_at, updated_at`

func scanAccount(row pgx.Row) (*models.Account, error) {
	var a models.Account
	err := row.Scan(&a.ID, &a.Kind, &a.Username, &a.Name, &a.Email, &a.Phone, &a.Address,
		&a.Photo, &a.Role, &a.AssignedStage, &a.Services, &a.Status, &a.PasswordHash,
		&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func services(a *models.Account) []uuid.UUID {
	if a.Services == nil {
		return []uuid.UUID{}
	}
	return a.Services
}

func (s *PostgresAccounts) Create(ctx context.Context, a *models.Account) error {
	query := `
		INSERT INTO accounts (` + accountColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err := s.db.Exec(ctx, query,
		a.ID, a.Kind, a.Username, a.Name, a.Email, a.Phone, a.Address, a.Photo, a.Role,
		a.AssignedStage, services(a), a.Status, a.PasswordHash, a.CreatedAt, a.UpdatedAt,
	)
	return translate("insert account", err)
}

func (s *PostgresAccounts) Get(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	row := s.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	a, err := scanAccount(row)
	if err != nil {
		return nil, translate("get account", err)
	}
	return a, nil
}

func (s *PostgresAccounts) FindByLoginIdentifier(ctx context.Context, ident string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts
		WHERE (kind = 'administrator' AND LOWER(username) = LOWER($1))
		   OR (kind = 'client' AND (name = $1 OR LOWER(email) = LOWER($1)))
		ORDER BY (kind = 'administrator') DESC, created_at ASC
		LIMIT 1`
	a, err := scanAccount(s.db.QueryRow(ctx, query, ident))
	if err != nil {
		return nil, translate("find account by identifier", err)
	}
	return a, nil
}

func (s *PostgresAccounts) FindClientByEmail(ctx context.Context, email string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE kind = 'client' AND LOWER(email) = LOWER($1)`
	a, err := scanAccount(s.db.QueryRow(ctx, query, email))
	if err != nil {
		return nil, translate("find client by email", err)
	}
	return a, nil
}

func (s *PostgresAccounts) Update(ctx context.Context, a *models.Account) error {
	query := `
		UPDATE accounts SET username = $2, name = $3, email = $4, phone = $5, address = $6,
			photo = $7, role = $8, assigned_stage = $9, services = $10, status = $11,
			password_hash = $12, updated_at = $13
		WHERE id = $1
	`
	tag, err := s.db.Exec(ctx, query,
		a.ID, a.Username, a.Name, a.Email, a.Phone, a.Address, a.Photo, a.Role,
		a.AssignedStage, services(a), a.Status, a.PasswordHash, a.UpdatedAt,
	)
	return affected("update account", tag, err)
}

func (s *PostgresAccounts) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	return affected("delete account", tag, err)
}

func (s *PostgresAccounts) List(ctx context.Context, f AccountFilter) ([]models.Account, error) {
	var w where
	if f.Kind != "" {
		w.add("kind = $%d", f.Kind)
	}
	if f.Role != "" {
		w.add("role = $%d", f.Role)
	}
	if f.ExcludeRole != "" {
		w.add("role <> $%d", f.ExcludeRole)
	}
	rows, err := s.db.Query(ctx, `SELECT `+accountColumns+` FROM accounts`+w.String()+` ORDER BY created_at ASC`, w.args...)
	if err != nil {
		return nil, translate("list accounts", err)
	}
	defer rows.Close()

	out := []models.Account{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (s *PostgresAccounts) AddService(ctx context.Context, accountID, formID uuid.UUID) (bool, error) {
	query := `
		UPDATE accounts SET services = services || to_jsonb($2::text), updated_at = $3
		WHERE id = $1 AND NOT services @> jsonb_build_array($2::text)
	`
	tag, err := s.db.Exec(ctx, query, accountID, formID.String(), time.Now())
	if err != nil {
		return false, translate("add account service", err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}
	// Either already linked or the account is gone.
	if _, err := s.Get(ctx, accountID); err != nil {
		return false, err
	}
	return false, nil
}
