// Package duckstore persists dashboard lifecycle events in DuckDB, a
// columnar engine well suited for the analytical queries an activity feed
// grows into. The adapter works against any database/sql handle speaking
// DuckDB SQL; Open is a convenience that wires the driver.
package duckstore

import (
	"context"
	"database/sql"
	"strings"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/goccy/go-json"
	"github.com/goliatone/go-errors"

	studio "github.com/goliatone/go-auth-studio"
)

// DefaultTable is used when no table name is configured.
const DefaultTable = "auth_events"

// Store implements the event ingestion capability on DuckDB.
type Store struct {
	db    *sql.DB
	table string
	owned bool
}

var (
	_ studio.EventIngestionProvider = (*Store)(nil)
	_ studio.BatchIngester          = (*Store)(nil)
	_ studio.Queryer                = (*Store)(nil)
	_ studio.HealthChecker          = (*Store)(nil)
	_ studio.Shutdowner             = (*Store)(nil)
)

// Option customizes a Store.
type Option func(*Store)

// WithTable overrides the target table name.
func WithTable(table string) Option {
	return func(s *Store) {
		if table != "" {
			s.table = table
		}
	}
}

// New wraps an already-connected handle. The caller keeps ownership; Shutdown
// is a no-op for handles passed in here.
func New(db *sql.DB, opts ...Option) (*Store, error) {
	if db == nil {
		return nil, errors.New("duckstore requires a *sql.DB", errors.CategoryValidation)
	}
	s := &Store{db: db, table: DefaultTable}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Open opens (or creates) a DuckDB database at path, creates the events
// table, and returns a Store that owns the connection: Shutdown closes it.
// Use ":memory:" or "" for an in-memory database.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to open duckdb database")
	}

	s, err := New(db, opts...)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.owned = true

	if err := s.CreateTable(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// CreateTable creates the events table when it does not exist yet.
func (s *Store) CreateTable(ctx context.Context) error {
	query := `CREATE TABLE IF NOT EXISTS ` + s.table + ` (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		timestamp TIMESTAMPTZ NOT NULL,
		status TEXT NOT NULL,
		user_id TEXT,
		session_id TEXT,
		organization_id TEXT,
		metadata JSON,
		ip_address TEXT,
		user_agent TEXT,
		source TEXT,
		display_message TEXT,
		display_severity TEXT
	)`

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to create events table")
	}
	return nil
}

// Ingest inserts one event.
func (s *Store) Ingest(ctx context.Context, event *studio.AuthEvent) error {
	return s.IngestBatch(ctx, []*studio.AuthEvent{event})
}

// IngestBatch issues one multi-row INSERT for the whole flush batch.
func (s *Store) IngestBatch(ctx context.Context, events []*studio.AuthEvent) error {
	if len(events) == 0 {
		return nil
	}

	const cols = 13
	placeholders := make([]string, 0, len(events))
	args := make([]any, 0, len(events)*cols)

	for _, event := range events {
		row, err := rowValues(event)
		if err != nil {
			return err
		}
		placeholders = append(placeholders, "("+strings.TrimSuffix(strings.Repeat("?,", cols), ",")+")")
		args = append(args, row...)
	}

	query := "INSERT INTO " + s.table +
		" (id, type, timestamp, status, user_id, session_id, organization_id," +
		" metadata, ip_address, user_agent, source, display_message, display_severity) VALUES " +
		strings.Join(placeholders, ",")

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to insert event batch")
	}
	return nil
}

// Query reads events back, most recent first.
func (s *Store) Query(ctx context.Context, opts studio.QueryOptions) ([]*studio.AuthEvent, error) {
	var conditions []string
	var args []any

	if len(opts.Kinds) > 0 {
		marks := make([]string, len(opts.Kinds))
		for i, k := range opts.Kinds {
			marks[i] = "?"
			args = append(args, string(k))
		}
		conditions = append(conditions, "type IN ("+strings.Join(marks, ",")+")")
	}
	if opts.UserID != "" {
		conditions = append(conditions, "user_id = ?")
		args = append(args, opts.UserID)
	}
	if !opts.Since.IsZero() {
		conditions = append(conditions, "timestamp >= ?")
		args = append(args, opts.Since)
	}
	if !opts.Until.IsZero() {
		conditions = append(conditions, "timestamp <= ?")
		args = append(args, opts.Until)
	}

	query := "SELECT id, type, timestamp, status, user_id, session_id, organization_id," +
		" metadata, ip_address, user_agent, source, display_message, display_severity FROM " + s.table
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY timestamp DESC"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to query events")
	}
	defer rows.Close()

	var events []*studio.AuthEvent
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "error iterating events")
	}
	return events, nil
}

// HealthCheck pings the connection.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Shutdown closes the connection, but only when Open created it.
func (s *Store) Shutdown(ctx context.Context) error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}

func rowValues(event *studio.AuthEvent) ([]any, error) {
	if event == nil {
		return nil, errors.New("cannot ingest nil event", errors.CategoryValidation)
	}

	var metadata any
	if len(event.Metadata) > 0 {
		raw, err := json.Marshal(event.Metadata)
		if err != nil {
			return nil, errors.Wrap(err, errors.CategoryValidation, "failed to serialize event metadata")
		}
		metadata = string(raw)
	}

	message, severity := "", ""
	if event.Display != nil {
		message = event.Display.Message
		severity = string(event.Display.Severity)
	}

	return []any{
		event.ID,
		string(event.Kind),
		event.Timestamp,
		string(event.Status),
		event.UserID,
		event.SessionID,
		event.OrganizationID,
		metadata,
		event.IPAddress,
		event.UserAgent,
		string(event.Source),
		message,
		severity,
	}, nil
}

func scanEvent(rows *sql.Rows) (*studio.AuthEvent, error) {
	var (
		event     = &studio.AuthEvent{}
		kind      string
		timestamp time.Time
		status    string
		metadata  sql.NullString
		source    string
		message   sql.NullString
		severity  sql.NullString
	)

	err := rows.Scan(
		&event.ID, &kind, &timestamp, &status,
		&event.UserID, &event.SessionID, &event.OrganizationID,
		&metadata, &event.IPAddress, &event.UserAgent, &source,
		&message, &severity,
	)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to scan event row")
	}

	event.Kind = studio.EventKind(kind)
	event.Timestamp = timestamp
	event.Status = studio.EventStatus(status)
	event.Source = studio.EventSource(source)

	if metadata.Valid && metadata.String != "" {
		md := map[string]any{}
		if err := json.Unmarshal([]byte(metadata.String), &md); err == nil {
			event.Metadata = md
		}
	}
	if message.String != "" || severity.String != "" {
		event.Display = &studio.EventDisplay{
			Message:  message.String,
			Severity: studio.EventSeverity(severity.String),
		}
	}
	return event, nil
}
