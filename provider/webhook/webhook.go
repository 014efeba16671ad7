// Package webhook delivers dashboard lifecycle events to a remote HTTP
// endpoint, one POST per event or per batch when the remote accepts arrays.
// Payloads can be reshaped with a caller-supplied transformer and
// authenticated with a short-lived HS256 bearer token.
package webhook

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"

	studio "github.com/goliatone/go-auth-studio"
)

// Transformer reshapes an event into the payload the remote endpoint
// expects. Returning nil drops the event silently.
type Transformer func(event *studio.AuthEvent) any

// Provider posts events to a single endpoint.
type Provider struct {
	endpoint    string
	client      *http.Client
	transform   Transformer
	headers     map[string]string
	signingKey  []byte
	tokenIssuer string
}

var _ studio.EventIngestionProvider = (*Provider)(nil)
var _ studio.HealthChecker = (*Provider)(nil)

// Option customizes a Provider.
type Option func(*Provider)

// WithHTTPClient replaces the default client (10s timeout).
func WithHTTPClient(client *http.Client) Option {
	return func(p *Provider) {
		if client != nil {
			p.client = client
		}
	}
}

// WithTransformer reshapes outgoing payloads.
func WithTransformer(fn Transformer) Option {
	return func(p *Provider) {
		p.transform = fn
	}
}

// WithHeader adds a static header to every delivery.
func WithHeader(name, value string) Option {
	return func(p *Provider) {
		p.headers[name] = value
	}
}

// WithSigningKey enables an Authorization bearer: each delivery carries a
// fresh HS256 JWT so the receiver can verify origin and freshness.
func WithSigningKey(key []byte, issuer string) Option {
	return func(p *Provider) {
		p.signingKey = key
		p.tokenIssuer = issuer
	}
}

// New builds a webhook provider for the given endpoint.
func New(endpoint string, opts ...Option) (*Provider, error) {
	if endpoint == "" {
		return nil, errors.New("webhook provider requires an endpoint", errors.CategoryValidation)
	}

	p := &Provider{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
		headers:  map[string]string{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p, nil
}

// NewBatching builds a provider whose endpoint accepts JSON arrays; the
// returned value additionally implements studio.BatchIngester.
func NewBatching(endpoint string, opts ...Option) (*BatchProvider, error) {
	p, err := New(endpoint, opts...)
	if err != nil {
		return nil, err
	}
	return &BatchProvider{Provider: p}, nil
}

// Ingest delivers one event.
func (p *Provider) Ingest(ctx context.Context, event *studio.AuthEvent) error {
	payload := p.payloadFor(event)
	if payload == nil {
		return nil
	}
	return p.post(ctx, payload)
}

// HealthCheck issues a HEAD request against the endpoint.
func (p *Provider) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.endpoint, nil)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to build health request")
	}
	res, err := p.client.Do(req)
	if err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "webhook endpoint unreachable")
	}
	defer drain(res)

	if res.StatusCode >= 500 {
		return errors.New("webhook endpoint unhealthy", errors.CategoryOperation).
			WithMetadata(map[string]any{"status": res.StatusCode})
	}
	return nil
}

func (p *Provider) payloadFor(event *studio.AuthEvent) any {
	if p.transform != nil {
		return p.transform(event)
	}
	if event == nil {
		return nil
	}
	return event
}

func (p *Provider) post(ctx context.Context, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, errors.CategoryValidation, "failed to serialize webhook payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to build webhook request")
	}
	req.Header.Set("Content-Type", "application/json")
	for name, value := range p.headers {
		req.Header.Set(name, value)
	}

	if len(p.signingKey) > 0 {
		token, err := p.mintToken()
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := p.client.Do(req)
	if err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "webhook delivery failed")
	}
	defer drain(res)

	if res.StatusCode >= 400 {
		return errors.New("webhook endpoint rejected delivery", errors.CategoryOperation).
			WithMetadata(map[string]any{"status": res.StatusCode})
	}
	return nil
}

func (p *Provider) mintToken() (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    p.tokenIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(2 * time.Minute)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.signingKey)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign webhook token")
	}
	return signed, nil
}

// BatchProvider wraps Provider with array delivery.
type BatchProvider struct {
	*Provider
}

var _ studio.BatchIngester = (*BatchProvider)(nil)

// IngestBatch delivers the whole batch as one JSON array.
func (p *BatchProvider) IngestBatch(ctx context.Context, events []*studio.AuthEvent) error {
	if len(events) == 0 {
		return nil
	}

	payloads := make([]any, 0, len(events))
	for _, event := range events {
		if payload := p.payloadFor(event); payload != nil {
			payloads = append(payloads, payload)
		}
	}
	if len(payloads) == 0 {
		return nil
	}
	return p.post(ctx, payloads)
}

func drain(res *http.Response) {
	io.Copy(io.Discard, res.Body)
	res.Body.Close()
}
