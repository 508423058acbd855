package audit

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"authserver/pkg/platform/tx"
)

// Schema creates the audit table used by PostgresStore.
const Schema = `
CREATE TABLE IF NOT EXISTS oauth_audit_events (
	id          TEXT PRIMARY KEY,
	occurred_at TIMESTAMPTZ NOT NULL,
	action      TEXT NOT NULL,
	category    TEXT NOT NULL,
	client_id   TEXT NOT NULL,
	subject     TEXT NOT NULL DEFAULT '',
	token_types TEXT[] NOT NULL DEFAULT '{}',
	scopes      TEXT[] NOT NULL DEFAULT '{}',
	request_id  TEXT NOT NULL DEFAULT '',
	reason      TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS oauth_audit_events_client_idx ON oauth_audit_events (client_id, occurred_at);
`

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("migrate audit schema: %w", err)
	}
	return nil
}

// Append inserts the event, inside the transaction carried by ctx if any.
// Re-delivery of the same event id is ignored.
func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	query := `
		INSERT INTO oauth_audit_events (
			id, occurred_at, action, category, client_id, subject, token_types, scopes, request_id, reason
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := tx.ExecutorFor(ctx, s.db).ExecContext(ctx, query,
		event.ID,
		event.Timestamp,
		string(event.Action),
		string(event.Action.Category()),
		event.ClientID,
		event.Subject,
		pq.Array(orEmpty(event.TokenTypes)),
		pq.Array(orEmpty(event.Scopes)),
		event.RequestID,
		event.Reason,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByClient(ctx context.Context, clientID string) ([]Event, error) {
	query := `
		SELECT id, occurred_at, action, client_id, subject, token_types, scopes, request_id, reason
		FROM oauth_audit_events
		WHERE client_id = $1
		ORDER BY occurred_at, id
	`
	rows, err := s.db.QueryContext(ctx, query, clientID)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var action string
		if err := rows.Scan(&e.ID, &e.Timestamp, &action, &e.ClientID, &e.Subject,
			pq.Array(&e.TokenTypes), pq.Array(&e.Scopes), &e.RequestID, &e.Reason); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.Action = Action(action)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return out, nil
}

// orEmpty keeps nil slices from being written as NULL arrays.
func orEmpty(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
