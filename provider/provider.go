// Package provider resolves raw backend client handles into event ingestion
// providers. It exists so the studio core package does not have to import
// every storage driver; composition roots pass Resolve (or their own
// resolver) through studio.EventsConfig.
package provider

import (
	"database/sql"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/goliatone/go-errors"
	"github.com/uptrace/bun"

	studio "github.com/goliatone/go-auth-studio"
	"github.com/goliatone/go-auth-studio/provider/badgerstore"
	"github.com/goliatone/go-auth-studio/provider/bunstore"
	"github.com/goliatone/go-auth-studio/provider/duckstore"
	"github.com/goliatone/go-auth-studio/provider/webhook"
)

// WebhookTarget is the client value expected for studio.ClientKindWebhook.
type WebhookTarget struct {
	Endpoint string
	Options  []webhook.Option
	// Batch advertises that the endpoint accepts JSON arrays.
	Batch bool
}

// Resolve maps a (kind, client) pair to the matching adapter. The kind set is
// closed; unknown kinds and client values of the wrong concrete type are
// rejected here, at configuration time, instead of on first ingest.
func Resolve(kind studio.ClientKind, client any) (studio.EventIngestionProvider, error) {
	switch kind {
	case studio.ClientKindBun:
		db, ok := client.(*bun.DB)
		if !ok {
			return nil, mismatch(kind, "*bun.DB", client)
		}
		return bunstore.New(db)

	case studio.ClientKindBadger:
		db, ok := client.(*badger.DB)
		if !ok {
			return nil, mismatch(kind, "*badger.DB", client)
		}
		return badgerstore.New(db)

	case studio.ClientKindDuckDB:
		db, ok := client.(*sql.DB)
		if !ok {
			return nil, mismatch(kind, "*sql.DB", client)
		}
		return duckstore.New(db)

	case studio.ClientKindWebhook:
		target, ok := client.(WebhookTarget)
		if !ok {
			return nil, mismatch(kind, "provider.WebhookTarget", client)
		}
		if target.Batch {
			return webhook.NewBatching(target.Endpoint, target.Options...)
		}
		return webhook.New(target.Endpoint, target.Options...)

	default:
		return nil, studio.ErrUnknownClientKind.Clone().WithMetadata(map[string]any{
			"client_kind": string(kind),
		})
	}
}

func mismatch(kind studio.ClientKind, want string, got any) error {
	return errors.New("events client has the wrong type for its kind", errors.CategoryValidation).
		WithMetadata(map[string]any{
			"client_kind": string(kind),
			"want":        want,
			"got":         typeName(got),
		})
}

func typeName(v any) string {
	if v == nil {
		return "nil"
	}
	return fmt.Sprintf("%T", v)
}
