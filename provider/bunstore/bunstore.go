// Package bunstore ships dashboard lifecycle events to a relational database
// through an uptrace/bun handle. The caller owns the connection; the adapter
// only writes to (and optionally reads from) a single events table.
package bunstore

import (
	"context"
	"time"

	"github.com/goccy/go-json"
	"github.com/goliatone/go-errors"
	"github.com/uptrace/bun"

	studio "github.com/goliatone/go-auth-studio"
)

// DefaultTable is used when no table name is configured.
const DefaultTable = "auth_events"

// EventRecord is the relational shape of a studio.AuthEvent. Metadata is
// flattened to a JSON column so the table works on engines without a native
// JSON type.
type EventRecord struct {
	bun.BaseModel `bun:"table:auth_events,alias:evt"`

	ID             string    `bun:"id,pk"`
	Kind           string    `bun:"column:type,notnull"`
	Timestamp      time.Time `bun:"timestamp,notnull"`
	Status         string    `bun:"status,notnull"`
	UserID         string    `bun:"user_id"`
	SessionID      string    `bun:"session_id"`
	OrganizationID string    `bun:"organization_id"`
	Metadata       string    `bun:"metadata"`
	IPAddress      string    `bun:"ip_address"`
	UserAgent      string    `bun:"user_agent"`
	Source         string    `bun:"source"`
	Message        string    `bun:"display_message"`
	Severity       string    `bun:"display_severity"`
}

// Store implements the event ingestion capability on top of bun, including
// batch inserts and querying.
type Store struct {
	db    *bun.DB
	table string
}

var (
	_ studio.EventIngestionProvider = (*Store)(nil)
	_ studio.BatchIngester          = (*Store)(nil)
	_ studio.Queryer                = (*Store)(nil)
	_ studio.HealthChecker          = (*Store)(nil)
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

// New wraps an already-connected bun handle.
func New(db *bun.DB, opts ...Option) (*Store, error) {
	if db == nil {
		return nil, errors.New("bunstore requires a *bun.DB", errors.CategoryValidation)
	}
	s := &Store{db: db, table: DefaultTable}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// CreateTable creates the events table when it does not exist yet.
func (s *Store) CreateTable(ctx context.Context) error {
	_, err := s.db.NewCreateTable().
		Model((*EventRecord)(nil)).
		ModelTableExpr(s.table).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to create events table")
	}
	return nil
}

// Ingest inserts one event.
func (s *Store) Ingest(ctx context.Context, event *studio.AuthEvent) error {
	record, err := toRecord(event)
	if err != nil {
		return err
	}

	_, err = s.db.NewInsert().
		Model(record).
		ModelTableExpr(s.table).
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to insert event")
	}
	return nil
}

// IngestBatch bulk-inserts a flush batch in one statement.
func (s *Store) IngestBatch(ctx context.Context, events []*studio.AuthEvent) error {
	if len(events) == 0 {
		return nil
	}

	records := make([]*EventRecord, 0, len(events))
	for _, event := range events {
		record, err := toRecord(event)
		if err != nil {
			return err
		}
		records = append(records, record)
	}

	_, err := s.db.NewInsert().
		Model(&records).
		ModelTableExpr(s.table).
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to insert event batch")
	}
	return nil
}

// Query reads events back, most recent first.
func (s *Store) Query(ctx context.Context, opts studio.QueryOptions) ([]*studio.AuthEvent, error) {
	records := []*EventRecord{}

	q := s.db.NewSelect().
		Model(&records).
		ModelTableExpr("? AS evt", bun.Ident(s.table)).
		Order("timestamp DESC")

	if len(opts.Kinds) > 0 {
		kinds := make([]string, len(opts.Kinds))
		for i, k := range opts.Kinds {
			kinds[i] = string(k)
		}
		q = q.Where("type IN (?)", bun.In(kinds))
	}
	if opts.UserID != "" {
		q = q.Where("user_id = ?", opts.UserID)
	}
	if !opts.Since.IsZero() {
		q = q.Where("timestamp >= ?", opts.Since)
	}
	if !opts.Until.IsZero() {
		q = q.Where("timestamp <= ?", opts.Until)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to query events")
	}

	events := make([]*studio.AuthEvent, 0, len(records))
	for _, record := range records {
		events = append(events, fromRecord(record))
	}
	return events, nil
}

// HealthCheck pings the underlying connection.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func toRecord(event *studio.AuthEvent) (*EventRecord, error) {
	if event == nil {
		return nil, errors.New("cannot ingest nil event", errors.CategoryValidation)
	}

	metadata := ""
	if len(event.Metadata) > 0 {
		raw, err := json.Marshal(event.Metadata)
		if err != nil {
			return nil, errors.Wrap(err, errors.CategoryValidation, "failed to serialize event metadata")
		}
		metadata = string(raw)
	}

	record := &EventRecord{
		ID:             event.ID,
		Kind:           string(event.Kind),
		Timestamp:      event.Timestamp,
		Status:         string(event.Status),
		UserID:         event.UserID,
		SessionID:      event.SessionID,
		OrganizationID: event.OrganizationID,
		Metadata:       metadata,
		IPAddress:      event.IPAddress,
		UserAgent:      event.UserAgent,
		Source:         string(event.Source),
	}
	if event.Display != nil {
		record.Message = event.Display.Message
		record.Severity = string(event.Display.Severity)
	}
	return record, nil
}

func fromRecord(record *EventRecord) *studio.AuthEvent {
	event := &studio.AuthEvent{
		ID:             record.ID,
		Kind:           studio.EventKind(record.Kind),
		Timestamp:      record.Timestamp,
		Status:         studio.EventStatus(record.Status),
		UserID:         record.UserID,
		SessionID:      record.SessionID,
		OrganizationID: record.OrganizationID,
		IPAddress:      record.IPAddress,
		UserAgent:      record.UserAgent,
		Source:         studio.EventSource(record.Source),
	}
	if record.Metadata != "" {
		metadata := map[string]any{}
		if err := json.Unmarshal([]byte(record.Metadata), &metadata); err == nil {
			event.Metadata = metadata
		}
	}
	if record.Message != "" || record.Severity != "" {
		event.Display = &studio.EventDisplay{
			Message:  record.Message,
			Severity: studio.EventSeverity(record.Severity),
		}
	}
	return event
}
