package studio

import (
	"context"
	"io/fs"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// ClientKind tags the backend family a raw events client belongs to. The set
// is closed; EventsConfig.Validate rejects anything else before the pipeline
// ever touches the client.
type ClientKind string

const (
	// ClientKindBun is a relational database through an *bun.DB handle.
	ClientKindBun ClientKind = "bun"
	// ClientKindBadger is an embedded key-value store through a *badger.DB.
	ClientKindBadger ClientKind = "badger"
	// ClientKindDuckDB is a columnar database through a *sql.DB.
	ClientKindDuckDB ClientKind = "duckdb"
	// ClientKindWebhook posts events to a remote HTTP endpoint.
	ClientKindWebhook ClientKind = "webhook"
)

func (k ClientKind) valid() bool {
	switch k {
	case ClientKindBun, ClientKindBadger, ClientKindDuckDB, ClientKindWebhook:
		return true
	}
	return false
}

// ProviderResolver turns a (kind, client) pair into a provider. The provider
// umbrella package supplies the canonical implementation; it lives outside
// this package so the core does not depend on every storage driver.
type ProviderResolver func(kind ClientKind, client any) (EventIngestionProvider, error)

// EventsConfig controls the ingestion pipeline. Exactly one of Provider or
// the Client/ClientKind pair should be set; when both are present the
// explicit Provider wins.
type EventsConfig struct {
	Enabled bool

	Provider   EventIngestionProvider
	Client     any
	ClientKind ClientKind
	Resolver   ProviderResolver

	// Include is an allow-list of event kinds; when non-empty it takes
	// precedence over Exclude.
	Include []EventKind
	Exclude []EventKind

	// BatchSize of 0 or 1 means immediate single-event ingestion.
	BatchSize int
	// FlushInterval drives the periodic queue flush when batching. Defaults
	// to 5s.
	FlushInterval time.Duration
	RetryOnError  bool

	// MaxQueue caps retry/batch queue growth; oldest events are dropped once
	// it is hit. 0 keeps the queue unbounded.
	MaxQueue int

	// OnEventIngest runs before dispatch for every event that passed the
	// filters. Failures and panics are logged and never block the emit.
	OnEventIngest func(ctx context.Context, event *AuthEvent) error
}

// DefaultFlushInterval is used when EventsConfig.FlushInterval is zero.
const DefaultFlushInterval = 5 * time.Second

// Validate rejects configurations the pipeline could not act on. A config
// with neither provider nor client is valid: ingestion just stays disabled.
func (c EventsConfig) Validate() error {
	if c.Client != nil || c.ClientKind != "" {
		if !c.ClientKind.valid() {
			return ErrUnknownClientKind.Clone().WithMetadata(map[string]any{
				"client_kind": string(c.ClientKind),
			})
		}
	}
	return validation.ValidateStruct(&c,
		validation.Field(&c.BatchSize, validation.Min(0)),
		validation.Field(&c.MaxQueue, validation.Min(0)),
	)
}

func (c EventsConfig) flushInterval() time.Duration {
	if c.FlushInterval <= 0 {
		return DefaultFlushInterval
	}
	return c.FlushInterval
}

// HandlerConfig wires the route dispatcher.
type HandlerConfig struct {
	// BasePath puts the handler in self-hosted mode when set, e.g.
	// "/api/studio". Empty means standalone.
	BasePath string

	// Assets is the static asset root holding the built SPA bundle,
	// including index.html. Required.
	Assets fs.FS

	// API receives all API-classified traffic after the session gate.
	API APIHandler

	// Secret encrypts/decrypts the session cookie. Resolved through
	// ResolveSecret when empty.
	Secret string

	// Theme and Branding are injected into the index document for the client
	// bundle to pick up. Values are escaped, never trusted.
	Theme    string
	Branding map[string]string

	Logger Logger
}

// Validate checks the handler has everything it needs to serve.
func (c HandlerConfig) Validate() error {
	if c.Assets == nil {
		return ErrAssetsNotConfigured
	}
	return validation.ValidateStruct(&c,
		validation.Field(&c.BasePath, validation.By(validateBasePath)),
	)
}

func validateBasePath(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	if s[0] != '/' {
		return validation.NewError("studio_base_path", "base path must start with '/'")
	}
	if len(s) > 1 && s[len(s)-1] == '/' {
		return validation.NewError("studio_base_path", "base path must not end with '/'")
	}
	return nil
}
