// Package badgerstore persists dashboard lifecycle events in an embedded
// BadgerDB instance. Good for single-binary deployments that want durable
// events without an external database.
package badgerstore

import (
	"context"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/goliatone/go-errors"

	studio "github.com/goliatone/go-auth-studio"
)

// DefaultPrefix namespaces event keys inside a shared database.
const DefaultPrefix = "event"

// Store implements the event ingestion capability on BadgerDB. Keys embed the
// event timestamp so a prefix scan returns chronological order.
type Store struct {
	db     *badger.DB
	prefix string
}

var (
	_ studio.EventIngestionProvider = (*Store)(nil)
	_ studio.BatchIngester          = (*Store)(nil)
	_ studio.Queryer                = (*Store)(nil)
	_ studio.HealthChecker          = (*Store)(nil)
)

// Option customizes a Store.
type Option func(*Store)

// WithPrefix overrides the key namespace.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// New wraps an already-open badger handle. The caller keeps ownership of the
// database; Shutdown does not close it.
func New(db *badger.DB, opts ...Option) (*Store, error) {
	if db == nil {
		return nil, errors.New("badgerstore requires a *badger.DB", errors.CategoryValidation)
	}
	s := &Store{db: db, prefix: DefaultPrefix}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Ingest writes one event in its own transaction.
func (s *Store) Ingest(ctx context.Context, event *studio.AuthEvent) error {
	key, value, err := s.encode(event)
	if err != nil {
		return err
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to write event")
	}
	return nil
}

// IngestBatch writes a flush batch through badger's WriteBatch, which splits
// oversized batches across transactions on its own.
func (s *Store) IngestBatch(ctx context.Context, events []*studio.AuthEvent) error {
	if len(events) == 0 {
		return nil
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for _, event := range events {
		key, value, err := s.encode(event)
		if err != nil {
			return err
		}
		if err := wb.Set(key, value); err != nil {
			return errors.Wrap(err, errors.CategoryInternal, "failed to stage event write")
		}
	}

	if err := wb.Flush(); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to flush event batch")
	}
	return nil
}

// Query scans the event prefix and filters in memory, returning most recent
// first. Badger has no secondary indexes, so every filter is a scan filter.
func (s *Store) Query(ctx context.Context, opts studio.QueryOptions) ([]*studio.AuthEvent, error) {
	var events []*studio.AuthEvent
	prefix := []byte(s.prefix + ":")

	err := s.db.View(func(txn *badger.Txn) error {
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.Prefix = prefix

		it := txn.NewIterator(iterOpts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				event := &studio.AuthEvent{}
				if err := json.Unmarshal(val, event); err != nil {
					return err
				}
				if opts.Matches(event) {
					events = append(events, event)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to scan events")
	}

	// Keys sort chronologically; flip for recent-first.
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}

	if opts.Limit > 0 && len(events) > opts.Limit {
		events = events[:opts.Limit]
	}
	return events, nil
}

// HealthCheck fails once the database has been closed.
func (s *Store) HealthCheck(ctx context.Context) error {
	if s.db.IsClosed() {
		return errors.New("badger database is closed", errors.CategoryInternal)
	}
	return nil
}

func (s *Store) encode(event *studio.AuthEvent) ([]byte, []byte, error) {
	if event == nil {
		return nil, nil, errors.New("cannot ingest nil event", errors.CategoryValidation)
	}

	value, err := json.Marshal(event)
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.CategoryValidation, "failed to serialize event")
	}

	key := fmt.Sprintf("%s:%020d:%s", s.prefix, event.Timestamp.UnixNano(), event.ID)
	return []byte(key), value, nil
}
