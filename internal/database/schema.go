package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is idempotent; EnsureSchema runs it on every boot.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
		id             UUID PRIMARY KEY,
		kind           TEXT NOT NULL CHECK (kind IN ('administrator', 'client')),
		username       TEXT NOT NULL DEFAULT '',
		name           TEXT NOT NULL DEFAULT '',
		email          TEXT NOT NULL DEFAULT '',
		phone          TEXT NOT NULL DEFAULT '',
		address        JSONB,
		photo          TEXT NOT NULL DEFAULT '',
		role           TEXT NOT NULL,
		assigned_stage TEXT NOT NULL DEFAULT '',
		services       JSONB NOT NULL DEFAULT '[]'::jsonb,
		status         TEXT NOT NULL DEFAULT '',
		password_hash  TEXT NOT NULL,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS accounts_admin_username_idx
		ON accounts (LOWER(username)) WHERE kind = 'administrator'`,
	`CREATE UNIQUE INDEX IF NOT EXISTS accounts_client_email_idx
		ON accounts (LOWER(email)) WHERE kind = 'client'`,

	`CREATE TABLE IF NOT EXISTS stage_assignments (
		role  TEXT PRIMARY KEY,
		stage TEXT NOT NULL CHECK (stage IN ('Collecting', 'Screening', 'Processing', 'Done'))
	)`,
	`INSERT INTO stage_assignments (role, stage) VALUES
		('Collecting', 'Collecting'), ('Screening', 'Screening'),
		('Processing', 'Processing'), ('Done', 'Done')
		ON CONFLICT (role) DO NOTHING`,

	`CREATE TABLE IF NOT EXISTS forms (
		id                  UUID PRIMARY KEY,
		service_name        TEXT NOT NULL UNIQUE,
		service_description TEXT NOT NULL DEFAULT '',
		fields              JSONB NOT NULL DEFAULT '[]'::jsonb,
		last_sent_to        TEXT NOT NULL DEFAULT '',
		created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS documents (
		id              UUID PRIMARY KEY,
		client_id       UUID NOT NULL,
		service_id      UUID,
		form_data       JSONB NOT NULL DEFAULT '{}'::jsonb,
		admin_remarks   JSONB NOT NULL DEFAULT '{}'::jsonb,
		status          TEXT NOT NULL CHECK (status IN ('Pending', 'Rejected', 'Corrected', 'Verified')),
		timeline_status TEXT NOT NULL CHECK (timeline_status IN ('Collecting', 'Screening', 'Processing', 'Done')),
		corrections     JSONB NOT NULL DEFAULT '[]'::jsonb,
		missing_fields  JSONB NOT NULL DEFAULT '[]'::jsonb,
		is_verified     BOOLEAN NOT NULL DEFAULT FALSE,
		version         BIGINT NOT NULL DEFAULT 1,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CHECK (is_verified = (status = 'Verified'))
	)`,
	// documents outlive a deleted client account
	`ALTER TABLE documents DROP CONSTRAINT IF EXISTS documents_client_id_fkey`,
	`CREATE INDEX IF NOT EXISTS documents_client_idx ON documents (client_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS documents_stage_idx ON documents (timeline_status, created_at DESC)`,

	`CREATE TABLE IF NOT EXISTS notifications (
		id           UUID PRIMARY KEY,
		account_id   UUID NOT NULL,
		document_id  UUID,
		complaint_id UUID,
		message      TEXT NOT NULL,
		is_read      BOOLEAN NOT NULL DEFAULT FALSE,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS notifications_account_idx ON notifications (account_id, created_at DESC)`,

	`CREATE TABLE IF NOT EXISTS intake_requests (
		id                  UUID PRIMARY KEY,
		client_name         TEXT NOT NULL,
		client_email        TEXT NOT NULL,
		client_number       TEXT NOT NULL,
		service_name        TEXT NOT NULL,
		service_description TEXT NOT NULL DEFAULT '',
		status              TEXT NOT NULL CHECK (status IN ('pending', 'active', 'inactive', 'completed')),
		is_registered       BOOLEAN NOT NULL DEFAULT FALSE,
		created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS intake_requests_email_idx ON intake_requests (LOWER(client_email))`,

	`CREATE TABLE IF NOT EXISTS complaints (
		id              UUID PRIMARY KEY,
		submitter_id    UUID NOT NULL,
		first_name      TEXT NOT NULL,
		last_name       TEXT NOT NULL,
		email           TEXT NOT NULL,
		contact_number  TEXT NOT NULL,
		subject         TEXT NOT NULL,
		details         TEXT NOT NULL,
		file_attachment TEXT NOT NULL DEFAULT '',
		status          TEXT NOT NULL CHECK (status IN ('pending', 'verified')),
		created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS meetings (
		id             UUID PRIMARY KEY,
		requester_id   UUID NOT NULL,
		first_name     TEXT NOT NULL,
		last_name      TEXT NOT NULL,
		email          TEXT NOT NULL,
		contact_number TEXT NOT NULL,
		preferred_date TEXT NOT NULL,
		preferred_time TEXT NOT NULL,
		description    TEXT NOT NULL DEFAULT '',
		created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (preferred_date, preferred_time)
	)`,

	`CREATE TABLE IF NOT EXISTS roles (
		id         UUID PRIMARY KEY,
		name       TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS roles_name_idx ON roles (LOWER(name))`,

	`CREATE TABLE IF NOT EXISTS catalog_services (
		id           UUID PRIMARY KEY,
		service_name TEXT NOT NULL,
		description  TEXT NOT NULL,
		image        TEXT NOT NULL DEFAULT '',
		created_by   UUID,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS catalog_services_name_idx ON catalog_services (LOWER(service_name))`,

	`CREATE TABLE IF NOT EXISTS role_assignments (
		id               UUID PRIMARY KEY,
		email            TEXT NOT NULL,
		role             TEXT NOT NULL,
		task_description TEXT NOT NULL,
		start_date       TIMESTAMPTZ NOT NULL,
		due_date         TIMESTAMPTZ NOT NULL,
		priority         TEXT NOT NULL CHECK (priority IN ('High', 'Medium', 'Low')),
		created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS reset_tokens (
		token_hash TEXT PRIMARY KEY,
		account_id UUID NOT NULL UNIQUE REFERENCES accounts(id) ON DELETE CASCADE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		expires_at TIMESTAMPTZ NOT NULL
	)`,
}

// Tables lists every table EnsureSchema creates, children first
var Tables = []string{
	"reset_tokens", "documents", "notifications", "intake_requests", "complaints",
	"meetings", "roles", "catalog_services", "role_assignments", "forms",
	"stage_assignments", "accounts",
}

// EnsureSchema creates any missing tables and indexes
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
