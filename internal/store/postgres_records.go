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

// --- notifications ---

type PostgresNotifications struct {
	db *pgxpool.Pool
}

func (s *PostgresNotifications) Create(ctx context.Context, n *models.Notification) error {
	query := `
		INSERT INTO notifications (id, account_id, document_id, complaint_id, message, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.db.Exec(ctx, query, n.ID, n.AccountID, n.DocumentID, n.ComplaintID, n.Message, n.IsRead, n.CreatedAt)
	return translate("insert notification", err)
}

func (s *PostgresNotifications) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]models.Notification, error) {
	query := `SELECT id, account_id, document_id, complaint_id, message, is_read, created_at
		FROM notifications WHERE account_id = $1 ORDER BY created_at DESC`
	rows, err := s.db.Query(ctx, query, accountID)
	if err != nil {
		return nil, translate("list notifications", err)
	}
	defer rows.Close()

	out := []models.Notification{}
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.AccountID, &n.DocumentID, &n.ComplaintID, &n.Message, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *PostgresNotifications) MarkRead(ctx context.Context, id, accountID uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `UPDATE notifications SET is_read = TRUE WHERE id = $1 AND account_id = $2`, id, accountID)
	return affected("mark notification read", tag, err)
}

func (s *PostgresNotifications) DeleteByAccount(ctx context.Context, accountID uuid.UUID) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM notifications WHERE account_id = $1`, accountID)
	if err != nil {
		return 0, translate("clear notifications", err)
	}
	return tag.RowsAffected(), nil
}

// --- forms ---

type PostgresForms struct {
	db *pgxpool.Pool
}

const formColumns = `id, service_name, service_description, fields, last_sent_to, created_at, updated_at`

func scanForm(row pgx.Row) (*models.Form, error) {
	var f models.Form
	if err := row.Scan(&f.ID, &f.ServiceName, &f.ServiceDescription, &f.Fields, &f.LastSentTo, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return nil, err
	}
	return &f, nil
}

func fields(f *models.Form) []models.FormField {
	if f.Fields == nil {
		return []models.FormField{}
	}
	return f.Fields
}

func (s *PostgresForms) Create(ctx context.Context, f *models.Form) error {
	query := `INSERT INTO forms (` + formColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := s.db.Exec(ctx, query, f.ID, f.ServiceName, f.ServiceDescription, fields(f), f.LastSentTo, f.CreatedAt, f.UpdatedAt)
	return translate("insert form", err)
}

func (s *PostgresForms) Get(ctx context.Context, id uuid.UUID) (*models.Form, error) {
	f, err := scanForm(s.db.QueryRow(ctx, `SELECT `+formColumns+` FROM forms WHERE id = $1`, id))
	if err != nil {
		return nil, translate("get form", err)
	}
	return f, nil
}

func (s *PostgresForms) GetByName(ctx context.Context, serviceName string) (*models.Form, error) {
	f, err := scanForm(s.db.QueryRow(ctx, `SELECT `+formColumns+` FROM forms WHERE service_name = $1`, serviceName))
	if err != nil {
		return nil, translate("get form by name", err)
	}
	return f, nil
}

func (s *PostgresForms) query(ctx context.Context, op, sql string, args ...any) ([]models.Form, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, translate(op, err)
	}
	defer rows.Close()

	out := []models.Form{}
	for rows.Next() {
		f, err := scanForm(rows)
		if err != nil {
			return nil, fmt.Errorf("scan form: %w", err)
		}
		out = append(out, *f)
	}
	return out, rows.Err()
}

func (s *PostgresForms) GetMany(ctx context.Context, ids []uuid.UUID) ([]models.Form, error) {
	if len(ids) == 0 {
		return []models.Form{}, nil
	}
	strs := make([]string, len(ids))
	for i, id := range ids {
		strs[i] = id.String()
	}
	return s.query(ctx, "get forms", `SELECT `+formColumns+` FROM forms WHERE id = ANY($1::uuid[]) ORDER BY created_at`, strs)
}

func (s *PostgresForms) List(ctx context.Context) ([]models.Form, error) {
	return s.query(ctx, "list forms", `SELECT `+formColumns+` FROM forms ORDER BY created_at DESC`)
}

func (s *PostgresForms) Update(ctx context.Context, f *models.Form) error {
	query := `UPDATE forms SET service_name = $2, service_description = $3, fields = $4, last_sent_to = $5, updated_at = $6 WHERE id = $1`
	tag, err := s.db.Exec(ctx, query, f.ID, f.ServiceName, f.ServiceDescription, fields(f), f.LastSentTo, f.UpdatedAt)
	return affected("update form", tag, err)
}

func (s *PostgresForms) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM forms WHERE id = $1`, id)
	return affected("delete form", tag, err)
}

// --- intake requests ---

type PostgresIntakes struct {
	db *pgxpool.Pool
}

const intakeColumns = `id, client_name, client_email, client_number, service_name, service_description,
	status, is_registered, created_at, updated_at`

func scanIntake(row pgx.Row) (*models.IntakeRequest, error) {
	var r models.IntakeRequest
	err := row.Scan(&r.ID, &r.ClientName, &r.ClientEmail, &r.ClientNumber, &r.ServiceName,
		&r.ServiceDescription, &r.Status, &r.IsRegistered, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *PostgresIntakes) Create(ctx context.Context, r *models.IntakeRequest) error {
	query := `INSERT INTO intake_requests (` + intakeColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := s.db.Exec(ctx, query, r.ID, r.ClientName, r.ClientEmail, r.ClientNumber, r.ServiceName,
		r.ServiceDescription, r.Status, r.IsRegistered, r.CreatedAt, r.UpdatedAt)
	return translate("insert intake request", err)
}

func (s *PostgresIntakes) Get(ctx context.Context, id uuid.UUID) (*models.IntakeRequest, error) {
	r, err := scanIntake(s.db.QueryRow(ctx, `SELECT `+intakeColumns+` FROM intake_requests WHERE id = $1`, id))
	if err != nil {
		return nil, translate("get intake request", err)
	}
	return r, nil
}

func (s *PostgresIntakes) List(ctx context.Context, registered *bool) ([]models.IntakeRequest, error) {
	var w where
	if registered != nil {
		w.add("is_registered = $%d", *registered)
	}
	rows, err := s.db.Query(ctx, `SELECT `+intakeColumns+` FROM intake_requests`+w.String()+` ORDER BY created_at DESC`, w.args...)
	if err != nil {
		return nil, translate("list intake requests", err)
	}
	defer rows.Close()

	out := []models.IntakeRequest{}
	for rows.Next() {
		r, err := scanIntake(rows)
		if err != nil {
			return nil, fmt.Errorf("scan intake request: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func (s *PostgresIntakes) FindByEmailAndService(ctx context.Context, email, serviceName string) (*models.IntakeRequest, error) {
	query := `SELECT ` + intakeColumns + ` FROM intake_requests
		WHERE LOWER(client_email) = LOWER($1) AND service_name = $2
		ORDER BY created_at ASC LIMIT 1`
	r, err := scanIntake(s.db.QueryRow(ctx, query, email, serviceName))
	if err != nil {
		return nil, translate("find intake request", err)
	}
	return r, nil
}

func (s *PostgresIntakes) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*models.IntakeRequest, error) {
	query := `UPDATE intake_requests SET status = $2, updated_at = $3 WHERE id = $1 RETURNING ` + intakeColumns
	r, err := scanIntake(s.db.QueryRow(ctx, query, id, status, time.Now()))
	if err != nil {
		return nil, translate("update intake status", err)
	}
	return r, nil
}

func (s *PostgresIntakes) MarkRegistered(ctx context.Context, email string) (int64, error) {
	query := `UPDATE intake_requests SET is_registered = TRUE, updated_at = $2
		WHERE LOWER(client_email) = LOWER($1) AND NOT is_registered`
	tag, err := s.db.Exec(ctx, query, email, time.Now())
	if err != nil {
		return 0, translate("mark intake registered", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresIntakes) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM intake_requests WHERE id = $1`, id)
	return affected("delete intake request", tag, err)
}

// --- complaints ---

type PostgresComplaints struct {
	db *pgxpool.Pool
}

const complaintColumns = `id, submitter_id, first_name, last_name, email, contact_number, subject,
	details, file_attachment, status, created_at, updated_at`

func scanComplaint(row pgx.Row) (*models.Complaint, error) {
	var c models.Complaint
	err := row.Scan(&c.ID, &c.SubmitterID, &c.FirstName, &c.LastName, &c.Email, &c.ContactNumber,
		&c.Subject, &c.Details, &c.FileAttachment, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *PostgresComplaints) Create(ctx context.Context, c *models.Complaint) error {
	query := `INSERT INTO complaints (` + complaintColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := s.db.Exec(ctx, query, c.ID, c.SubmitterID, c.FirstName, c.LastName, c.Email, c.ContactNumber,
		c.Subject, c.Details, c.FileAttachment, c.Status, c.CreatedAt, c.UpdatedAt)
	return translate("insert complaint", err)
}

func (s *PostgresComplaints) Get(ctx context.Context, id uuid.UUID) (*models.Complaint, error) {
	c, err := scanComplaint(s.db.QueryRow(ctx, `SELECT `+complaintColumns+` FROM complaints WHERE id = $1`, id))
	if err != nil {
		return nil, translate("get complaint", err)
	}
	return c, nil
}

func (s *PostgresComplaints) List(ctx context.Context, subjects []models.ComplaintSubject) ([]models.Complaint, error) {
	var w where
	if len(subjects) > 0 {
		strs := make([]string, len(subjects))
		for i, subj := range subjects {
			strs[i] = string(subj)
		}
		w.add("subject = ANY($%d)", strs)
	}
	rows, err := s.db.Query(ctx, `SELECT `+complaintColumns+` FROM complaints`+w.String()+` ORDER BY created_at DESC`, w.args...)
	if err != nil {
		return nil, translate("list complaints", err)
	}
	defer rows.Close()

	out := []models.Complaint{}
	for rows.Next() {
		c, err := scanComplaint(rows)
		if err != nil {
			return nil, fmt.Errorf("scan complaint: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (s *PostgresComplaints) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*models.Complaint, error) {
	query := `UPDATE complaints SET status = $2, updated_at = $3 WHERE id = $1 RETURNING ` + complaintColumns
	c, err := scanComplaint(s.db.QueryRow(ctx, query, id, status, time.Now()))
	if err != nil {
		return nil, translate("update complaint status", err)
	}
	return c, nil
}

// --- meetings ---

type PostgresMeetings struct {
	db *pgxpool.Pool
}

func (s *PostgresMeetings) Create(ctx context.Context, m *models.Meeting) error {
	query := `
		INSERT INTO meetings (id, requester_id, first_name, last_name, email, contact_number,
			preferred_date, preferred_time, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.db.Exec(ctx, query, m.ID, m.RequesterID, m.FirstName, m.LastName, m.Email, m.ContactNumber,
		m.PreferredDate, m.PreferredTime, m.Description, m.CreatedAt)
	return translate("insert meeting", err)
}

func (s *PostgresMeetings) List(ctx context.Context) ([]models.Meeting, error) {
	query := `SELECT id, requester_id, first_name, last_name, email, contact_number,
			preferred_date, preferred_time, description, created_at
		FROM meetings ORDER BY preferred_date, preferred_time`
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, translate("list meetings", err)
	}
	defer rows.Close()

	out := []models.Meeting{}
	for rows.Next() {
		var m models.Meeting
		if err := rows.Scan(&m.ID, &m.RequesterID, &m.FirstName, &m.LastName, &m.Email, &m.ContactNumber,
			&m.PreferredDate, &m.PreferredTime, &m.Description, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan meeting: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// --- roles ---

type PostgresRoles struct {
	db *pgxpool.Pool
}

func (s *PostgresRoles) Create(ctx context.Context, r *models.Role) error {
	_, err := s.db.Exec(ctx, `INSERT INTO roles (id, name, created_at, updated_at) VALUES ($1, $2, $3, $4)`,
		r.ID, r.Name, r.CreatedAt, r.UpdatedAt)
	return translate("insert role", err)
}

func (s *PostgresRoles) Get(ctx context.Context, id uuid.UUID) (*models.Role, error) {
	var r models.Role
	err := s.db.QueryRow(ctx, `SELECT id, name, created_at, updated_at FROM roles WHERE id = $1`, id).
		Scan(&r.ID, &r.Name, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, translate("get role", err)
	}
	return &r, nil
}

func (s *PostgresRoles) List(ctx context.Context) ([]models.Role, error) {
	rows, err := s.db.Query(ctx, `SELECT id, name, created_at, updated_at FROM roles ORDER BY created_at`)
	if err != nil {
		return nil, translate("list roles", err)
	}
	defer rows.Close()

	out := []models.Role{}
	for rows.Next() {
		var r models.Role
		if err := rows.Scan(&r.ID, &r.Name, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresRoles) Update(ctx context.Context, r *models.Role) error {
	tag, err := s.db.Exec(ctx, `UPDATE roles SET name = $2, updated_at = $3 WHERE id = $1`, r.ID, r.Name, r.UpdatedAt)
	return affected("update role", tag, err)
}

func (s *PostgresRoles) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	return affected("delete role", tag, err)
}

// --- service catalog ---

type PostgresCatalog struct {
	db *pgxpool.Pool
}

func (s *PostgresCatalog) Create(ctx context.Context, svc *models.CatalogService) error {
	query := `
		INSERT INTO catalog_services (id, service_name, description, image, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.db.Exec(ctx, query, svc.ID, svc.ServiceName, svc.Description, svc.Image, svc.CreatedBy, svc.CreatedAt, svc.UpdatedAt)
	return translate("insert catalog service", err)
}

func (s *PostgresCatalog) List(ctx context.Context) ([]models.CatalogService, error) {
	query := `SELECT id, service_name, description, image, created_by, created_at, updated_at
		FROM catalog_services ORDER BY created_at DESC`
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, translate("list catalog services", err)
	}
	defer rows.Close()

	out := []models.CatalogService{}
	for rows.Next() {
		var svc models.CatalogService
		if err := rows.Scan(&svc.ID, &svc.ServiceName, &svc.Description, &svc.Image, &svc.CreatedBy, &svc.CreatedAt, &svc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan catalog service: %w", err)
		}
		out = append(out, svc)
	}
	return out, rows.Err()
}

// --- role assignments ---

type PostgresAssignments struct {
	db *pgxpool.Pool
}

const assignmentColumns = `id, email, role, task_description, start_date, due_date, priority, created_at, updated_at`

func scanAssignment(row pgx.Row) (*models.RoleAssignment, error) {
	var a models.RoleAssignment
	err := row.Scan(&a.ID, &a.Email, &a.Role, &a.TaskDescription, &a.StartDate, &a.DueDate, &a.Priority, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *PostgresAssignments) Create(ctx context.Context, a *models.RoleAssignment) error {
	query := `INSERT INTO role_assignments (` + assignmentColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := s.db.Exec(ctx, query, a.ID, a.Email, a.Role, a.TaskDescription, a.StartDate, a.DueDate, a.Priority, a.CreatedAt, a.UpdatedAt)
	return translate("insert role assignment", err)
}

func (s *PostgresAssignments) Get(ctx context.Context, id uuid.UUID) (*models.RoleAssignment, error) {
	a, err := scanAssignment(s.db.QueryRow(ctx, `SELECT `+assignmentColumns+` FROM role_assignments WHERE id = $1`, id))
	if err != nil {
		return nil, translate("get role assignment", err)
	}
	return a, nil
}

func (s *PostgresAssignments) List(ctx context.Context) ([]models.RoleAssignment, error) {
	rows, err := s.db.Query(ctx, `SELECT `+assignmentColumns+` FROM role_assignments ORDER BY created_at DESC`)
	if err != nil {
		return nil, translate("list role assignments", err)
	}
	defer rows.Close()

	out := []models.RoleAssignment{}
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan role assignment: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (s *PostgresAssignments) Update(ctx context.Context, a *models.RoleAssignment) error {
	query := `UPDATE role_assignments SET email = $2, role = $3, task_description = $4, start_date = $5,
		due_date = $6, priority = $7, updated_at = $8 WHERE id = $1`
	tag, err := s.db.Exec(ctx, query, a.ID, a.Email, a.Role, a.TaskDescription, a.StartDate, a.DueDate, a.Priority, a.UpdatedAt)
	return affected("update role assignment", tag, err)
}

func (s *PostgresAssignments) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM role_assignments WHERE id = $1`, id)
	return affected("delete role assignment", tag, err)
}

// --- reset tokens ---

type PostgresResetTokens struct {
	db *pgxpool.Pool
}

func (s *PostgresResetTokens) Put(ctx context.Context, t *models.ResetToken) error {
	query := `
		INSERT INTO reset_tokens (token_hash, account_id, created_at, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (account_id) DO UPDATE
			SET token_hash = EXCLUDED.token_hash, created_at = EXCLUDED.created_at, expires_at = EXCLUDED.expires_at
	`
	_, err := s.db.Exec(ctx, query, t.TokenHash, t.AccountID, t.CreatedAt, t.ExpiresAt)
	return translate("put reset token", err)
}

// Consume deletes the row in the same statement that reads it, so a token
// can only be redeemed once even under concurrent requests.
func (s *PostgresResetTokens) Consume(ctx context.Context, tokenHash string, now time.Time) (*models.ResetToken, error) {
	var t models.ResetToken
	err := s.db.QueryRow(ctx,
		`DELETE FROM reset_tokens WHERE token_hash = $1 RETURNING token_hash, account_id, created_at, expires_at`,
		tokenHash,
	).Scan(&t.TokenHash, &t.AccountID, &t.CreatedAt, &t.ExpiresAt)
	if err != nil {
		return nil, translate("consume reset token", err)
	}
	if !t.ExpiresAt.After(now) {
		return nil, fmt.Errorf("reset token expired: %w", ErrNotFound)
	}
	return &t, nil
}

// --- stage mappings ---

type PostgresStageMappings struct {
	db *pgxpool.Pool
}

func (s *PostgresStageMappings) StageFor(ctx context.Context, role string) (models.Stage, error) {
	var st models.Stage
	err := s.db.QueryRow(ctx, `SELECT stage FROM stage_assignments WHERE role = $1`, role).Scan(&st)
	if err != nil {
		return "", translate("stage for role", err)
	}
	return st, nil
}

func (s *PostgresStageMappings) Set(ctx context.Context, role string, stage models.Stage) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO stage_assignments (role, stage) VALUES ($1, $2) ON CONFLICT (role) DO UPDATE SET stage = EXCLUDED.stage`,
		role, stage)
	return translate("set stage mapping", err)
}

func (s *PostgresStageMappings) List(ctx context.Context) (map[string]models.Stage, error) {
	rows, err := s.db.Query(ctx, `SELECT role, stage FROM stage_assignments`)
	if err != nil {
		return nil, translate("list stage mappings", err)
	}
	defer rows.Close()

	out := map[string]models.Stage{}
	for rows.Next() {
		var role string
		var st models.Stage
		if err := rows.Scan(&role, &st); err != nil {
			return nil, fmt.Errorf("scan stage mapping: %w", err)
		}
		out[role] = st
	}
	return out, rows.Err()
}
