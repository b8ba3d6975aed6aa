package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	audit "inmates/pkg/platform/audit"
)

const schema = `
CREATE TABLE IF NOT EXISTS lookup_audit (
	id              UUID PRIMARY KEY,
	category        TEXT NOT NULL,
	timestamp       TIMESTAMPTZ NOT NULL,
	action          TEXT NOT NULL,
	query_kind      TEXT NOT NULL,
	subject_hash    TEXT NOT NULL,
	jurisdictions   TEXT[] NOT NULL,
	inmates         INTEGER NOT NULL,
	provider_errors INTEGER NOT NULL,
	cache_hit       BOOLEAN NOT NULL,
	reason          TEXT NOT NULL DEFAULT '',
	request_id      TEXT NOT NULL DEFAULT '',
	actor_id        TEXT NOT NULL DEFAULT '',
	client_ip       TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS lookup_audit_timestamp_idx ON lookup_audit (timestamp DESC);
`

// Store implements audit.Store on the lookup_audit table.
type Store struct {
	db *sql.DB
}

// New creates a PostgreSQL audit store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the audit table when it does not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create audit schema: %w", err)
	}
	return nil
}

// Append inserts an event. Duplicate IDs are ignored so redelivery is harmless.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	eventID := event.ID
	if eventID == "" {
		eventID = uuid.NewString()
	}
	category := event.Category
	if category == "" {
		category = audit.AuditEvent(event.Action).Category()
	}

	query := `
		INSERT INTO lookup_audit (
			id, category, timestamp, action, query_kind, subject_hash,
			jurisdictions, inmates, provider_errors, cache_hit,
			reason, request_id, actor_id, client_ip
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := s.db.ExecContext(ctx, query,
		eventID,
		string(category),
		event.Timestamp,
		event.Action,
		event.QueryKind,
		event.SubjectHash,
		pq.Array(nonNil(event.Jurisdictions)),
		event.Inmates,
		event.ProviderErrs,
		event.CacheHit,
		event.Reason,
		event.RequestID,
		event.ActorID,
		event.ClientIP,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// ListRecent returns the N most recent events. A limit <= 0 returns all.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]audit.Event, error) {
	var lim any = limit
	if limit <= 0 {
		lim = nil // LIMIT NULL
	}
	query := `
		SELECT id, category, timestamp, action, query_kind, subject_hash,
			   jurisdictions, inmates, provider_errors, cache_hit,
			   reason, request_id, actor_id, client_ip
		FROM lookup_audit
		ORDER BY timestamp DESC
		LIMIT $1
	`

	rows, err := s.db.QueryContext(ctx, query, lim)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	return s.scanEvents(rows)
}

// scanEvents scans multiple rows into audit.Event slice.
func (s *Store) scanEvents(rows *sql.Rows) ([]audit.Event, error) {
	events := []audit.Event{}

	for rows.Next() {
		var (
			category string
			event    audit.Event
		)
		err := rows.Scan(
			&event.ID,
			&category,
			&event.Timestamp,
			&event.Action,
			&event.QueryKind,
			&event.SubjectHash,
			pq.Array(&event.Jurisdictions),
			&event.Inmates,
			&event.ProviderErrs,
			&event.CacheHit,
			&event.Reason,
			&event.RequestID,
			&event.ActorID,
			&event.ClientIP,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		event.Category = audit.EventCategory(category)
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
