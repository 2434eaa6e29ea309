package store

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NewPostgres returns repositories backed by a pgx pool.
// The schema must already exist (see database.EnsureSchema).
func NewPostgres(db *pgxpool.Pool) *Repos {
	return &Repos{
		Accounts:      &PostgresAccounts{db: db},
		Documents:     &PostgresDocuments{db: db},
		Notifications: &PostgresNotifications{db: db},
		Forms:         &PostgresForms{db: db},
		Intakes:       &PostgresIntakes{db: db},
		Complaints:    &PostgresComplaints{db: db},
		Meetings:      &PostgresMeetings{db: db},
		Roles:         &PostgresRoles{db: db},
		Catalog:       &PostgresCatalog{db: db},
		Assignments:   &PostgresAssignments{db: db},
		ResetTokens:   &PostgresResetTokens{db: db},
		StageMappings: &PostgresStageMappings{db: db},
	}
}

const uniqueViolation = "23505"

// translate maps driver errors onto the store sentinels
func translate(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%s: %s: %w", op, pgErr.ConstraintName, ErrConflict)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// affected turns a zero-row write into ErrNotFound
func affected(op string, tag pgconn.CommandTag, err error) error {
	if err != nil {
		return translate(op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}

// where accumulates positional predicates for dynamic filters
type where struct {
	clauses []string
	args    []any
}

func (w *where) add(clause string, arg any) {
	w.args = append(w.args, arg)
	w.clauses = append(w.clauses, fmt.Sprintf(clause, len(w.args)))
}

func (w *where) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
