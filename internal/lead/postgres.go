package lead

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	appLog "temporada/internal/log"
)

// uniqueViolation is the Postgres SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// PostgresStore keeps leads in a Postgres "leads" table.
type PostgresStore struct {
	db *sql.DB
}

// OpenPostgres connects to connStr, pings the server and prepares the
// schema.
func OpenPostgres(ctx context.Context, connStr string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open DB: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping DB: %w", err)
	}

	s := NewPostgresStore(db)
	if err := s.CreateTable(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	appLog.Info("connected to PostgreSQL; leads table is ready")
	return s, nil
}

// NewPostgresStore wraps an open handle.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// CreateTable creates the leads table and its unique contact indexes.
func (s *PostgresStore) CreateTable(ctx context.Context) error {
	const query = `
	CREATE TABLE IF NOT EXISTS leads (
		id              UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		name            TEXT        NOT NULL,
		email           TEXT        NOT NULL DEFAULT '',
		phone           TEXT        NOT NULL DEFAULT '',
		email_norm      TEXT GENERATED ALWAYS AS (NULLIF(email, '')) STORED,
		phone_norm      TEXT GENERATED ALWAYS AS (NULLIF(phone, '')) STORED,
		city            TEXT        NOT NULL DEFAULT '',
		property_title  TEXT        NOT NULL DEFAULT '',
		source          TEXT        NOT NULL DEFAULT 'site',
		created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		last_contact_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_leads_email_norm ON leads (email_norm);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_leads_phone_norm ON leads (phone_norm);
	`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create leads table: %w", err)
	}
	return nil
}

const leadColumns = `id, name, email, phone, city, property_title, source, created_at, last_contact_at`

func scanLead(row interface{ Scan(...any) error }) (Lead, error) {
	var l Lead
	err := row.Scan(&l.ID, &l.Name, &l.Email, &l.Phone, &l.City, &l.PropertyTitle, &l.Source, &l.CreatedAt, &l.LastContactAt)
	return l, err
}

func (s *PostgresStore) FindByContact(ctx context.Context, email, phone string) (Lead, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+leadColumns+` FROM leads
		 WHERE ($1 <> '' AND email_norm = $1) OR ($2 <> '' AND phone_norm = $2)
		 ORDER BY created_at
		 LIMIT 1`,
		email, phone)
	l, err := scanLead(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Lead{}, false, nil
	}
	if err != nil {
		return Lead{}, false, fmt.Errorf("find lead: %w", err)
	}
	return l, true, nil
}

func (s *PostgresStore) Create(ctx context.Context, l Lead) (Lead, error) {
	row := s.db.QueryRowContext(ctx,
		`INSERT INTO leads (name, email, phone, city, property_title, source, created_at, last_contact_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING `+leadColumns,
		l.Name, l.Email, l.Phone, l.City, l.PropertyTitle, l.Source, l.CreatedAt, l.LastContactAt)
	created, err := scanLead(row)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return Lead{}, ErrDuplicate
		}
		return Lead{}, fmt.Errorf("insert lead: %w", err)
	}
	return created, nil
}

func (s *PostgresStore) Touch(ctx context.Context, id string, l Lead) (Lead, error) {
	row := s.db.QueryRowContext(ctx,
		`UPDATE leads
		 SET name = $2, email = $3, phone = $4, city = $5, property_title = $6, last_contact_at = $7
		 WHERE id = $1
		 RETURNING `+leadColumns,
		id, l.Name, l.Email, l.Phone, l.City, l.PropertyTitle, l.LastContactAt)
	updated, err := scanLead(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	if err != nil {
		return Lead{}, fmt.Errorf("update lead: %w", err)
	}
	return updated, nil
}

// Close closes the database connection.
func (s *PostgresStore) Close() {
	if s.db != nil {
		_ = s.db.Close()
	}
}
