package consent

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"authserver/internal/openbanking/models"
	"authserver/pkg/platform/sentinel"
	"authserver/pkg/platform/tx"
)

// Schema creates the consent table. It is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS openbanking_account_access_consents (
	id          TEXT PRIMARY KEY,
	status      TEXT NOT NULL,
	client_id   TEXT NOT NULL,
	subject     TEXT NOT NULL DEFAULT '',
	permissions TEXT[] NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL,
	expires_at  TIMESTAMPTZ
)`

// PostgresStore persists account access consents in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate applies Schema.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("migrate consent schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Save(ctx context.Context, c *models.AccountAccessConsent) error {
	query := `
		INSERT INTO openbanking_account_access_consents
			(id, status, client_id, subject, permissions, created_at, updated_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			subject = EXCLUDED.subject,
			permissions = EXCLUDED.permissions,
			updated_at = EXCLUDED.updated_at,
			expires_at = EXCLUDED.expires_at
	`
	_, err := tx.ExecutorFor(ctx, s.db).ExecContext(ctx, query,
		c.ID, string(c.Status), c.ClientID, c.Subject, pq.Array(permissionsOrEmpty(c.Permissions)),
		c.CreatedAt, c.UpdatedAt, c.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("save account access consent: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*models.AccountAccessConsent, error) {
	row := tx.ExecutorFor(ctx, s.db).QueryRowContext(ctx, `
		SELECT id, status, client_id, subject, permissions, created_at, updated_at, expires_at
		FROM openbanking_account_access_consents
		WHERE id = $1
	`, id)
	return scanConsent(row, id)
}

// UpdateStatus applies a state transition under a row lock. It joins a
// transaction already carried by ctx.
func (s *PostgresStore) UpdateStatus(ctx context.Context, id string, status models.ConsentStatus, now time.Time) (*models.AccountAccessConsent, error) {
	var updated *models.AccountAccessConsent
	err := tx.Run(ctx, s.db, func(ctx context.Context, t *sql.Tx) error {
		row := t.QueryRowContext(ctx, `
			SELECT id, status, client_id, subject, permissions, created_at, updated_at, expires_at
			FROM openbanking_account_access_consents
			WHERE id = $1
			FOR UPDATE
		`, id)
		c, err := scanConsent(row, id)
		if err != nil {
			return err
		}
		if err := c.Transition(status, now); err != nil {
			return fmt.Errorf("%s: %w", err.Error(), sentinel.ErrInvalidState)
		}
		if _, err := t.ExecContext(ctx, `
			UPDATE openbanking_account_access_consents SET status = $2, updated_at = $3 WHERE id = $1
		`, id, string(c.Status), c.UpdatedAt); err != nil {
			return fmt.Errorf("update consent status: %w", err)
		}
		updated = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func scanConsent(row *sql.Row, id string) (*models.AccountAccessConsent, error) {
	var (
		c         models.AccountAccessConsent
		status    string
		expiresAt sql.NullTime
	)
	err := row.Scan(&c.ID, &status, &c.ClientID, &c.Subject, pq.Array(&c.Permissions), &c.CreatedAt, &c.UpdatedAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("account access consent %q not found: %w", id, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load account access consent: %w", err)
	}
	c.Status = models.ConsentStatus(status)
	if expiresAt.Valid {
		t := expiresAt.Time
		c.ExpiresAt = &t
	}
	return &c, nil
}

func permissionsOrEmpty(p []string) []string {
	if p == nil {
		return []string{}
	}
	return p
}
