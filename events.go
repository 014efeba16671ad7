package studio

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventKind enumerates the lifecycle events the dashboard records. The set is
// closed: emitting a kind outside AllEventKinds gets the generic fallback
// template, and templates_test.go guards that every kind listed here has a
// dedicated entry.
type EventKind string

const (
	EventUserCreated    EventKind = "user.created"
	EventUserUpdated    EventKind = "user.updated"
	EventUserDeleted    EventKind = "user.deleted"
	EventUserBanned     EventKind = "user.banned"
	EventUserUnbanned   EventKind = "user.unbanned"
	EventUserSignIn     EventKind = "user.sign-in"
	EventUserSignOut    EventKind = "user.sign-out"
	EventUserVerified   EventKind = "user.verified"
	EventSessionCreated EventKind = "session.created"
	EventSessionRevoked EventKind = "session.revoked"

	EventOrganizationCreated EventKind = "organization.created"
	EventOrganizationUpdated EventKind = "organization.updated"
	EventOrganizationDeleted EventKind = "organization.deleted"
	EventMemberAdded         EventKind = "member.added"
	EventMemberRemoved       EventKind = "member.removed"

	EventInvitationCreated  EventKind = "invitation.created"
	EventInvitationAccepted EventKind = "invitation.accepted"
	EventInvitationCanceled EventKind = "invitation.canceled"

	EventPasswordResetRequested EventKind = "password.reset-request"
	EventPasswordResetCompleted EventKind = "password.reset-completed"
	EventVerificationRequested  EventKind = "verification-request"
	EventVerificationCompleted  EventKind = "email.verified"

	EventAPIKeyCreated EventKind = "api-key.created"
	EventAPIKeyDeleted EventKind = "api-key.deleted"

	EventImpersonationStarted EventKind = "admin.impersonation"
)

// AllEventKinds lists every supported kind. Keep in sync with the constants
// above; the template table test iterates this slice.
var AllEventKinds = []EventKind{
	EventUserCreated, EventUserUpdated, EventUserDeleted,
	EventUserBanned, EventUserUnbanned,
	EventUserSignIn, EventUserSignOut, EventUserVerified,
	EventSessionCreated, EventSessionRevoked,
	EventOrganizationCreated, EventOrganizationUpdated, EventOrganizationDeleted,
	EventMemberAdded, EventMemberRemoved,
	EventInvitationCreated, EventInvitationAccepted, EventInvitationCanceled,
	EventPasswordResetRequested, EventPasswordResetCompleted,
	EventVerificationRequested, EventVerificationCompleted,
	EventAPIKeyCreated, EventAPIKeyDeleted,
	EventImpersonationStarted,
}

// EventStatus marks whether the underlying action succeeded.
type EventStatus string

const (
	EventStatusSuccess EventStatus = "success"
	EventStatusFailed  EventStatus = "failed"
)

// EventSeverity classifies an event for display purposes.
type EventSeverity string

const (
	SeverityInfo    EventSeverity = "info"
	SeveritySuccess EventSeverity = "success"
	SeverityWarning EventSeverity = "warning"
	SeverityFailed  EventSeverity = "failed"
)

// EventSource says which surface produced the event.
type EventSource string

const (
	EventSourceApp EventSource = "app"
	EventSourceAPI EventSource = "api"
)

// EventDisplay is the resolved human-readable presentation of an event.
type EventDisplay struct {
	Message  string        `json:"message"`
	Severity EventSeverity `json:"severity"`
}

// AuthEvent is one immutable lifecycle record. It is delivered to a provider
// at most once, either through single ingest or as part of a batch, never
// both.
type AuthEvent struct {
	ID             string         `json:"id"`
	Kind           EventKind      `json:"type"`
	Timestamp      time.Time      `json:"timestamp"`
	Status         EventStatus    `json:"status"`
	UserID         string         `json:"user_id,omitempty"`
	SessionID      string         `json:"session_id,omitempty"`
	OrganizationID string         `json:"organization_id,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	IPAddress      string         `json:"ip_address,omitempty"`
	UserAgent      string         `json:"user_agent,omitempty"`
	Source         EventSource    `json:"source,omitempty"`
	Display        *EventDisplay  `json:"display,omitempty"`
}

// EventData carries the caller-supplied portion of an event handed to
// Pipeline.Emit. Everything else (id, timestamp, display) is stamped by the
// pipeline.
type EventData struct {
	Status         EventStatus
	UserID         string
	SessionID      string
	OrganizationID string
	Metadata       map[string]any
	IPAddress      string
	UserAgent      string
	Source         EventSource
}

func newAuthEvent(kind EventKind, data EventData) *AuthEvent {
	status := data.Status
	if status == "" {
		status = EventStatusSuccess
	}
	source := data.Source
	if source == "" {
		source = EventSourceApp
	}
	return &AuthEvent{
		ID:             uuid.New().String(),
		Kind:           kind,
		Timestamp:      time.Now().UTC(),
		Status:         status,
		UserID:         data.UserID,
		SessionID:      data.SessionID,
		OrganizationID: data.OrganizationID,
		Metadata:       data.Metadata,
		IPAddress:      data.IPAddress,
		UserAgent:      data.UserAgent,
		Source:         source,
	}
}

// EventIngestionProvider is the capability every storage backend must
// implement. Optional capabilities (batching, querying, health, shutdown) are
// discovered with type assertions against the interfaces below.
type EventIngestionProvider interface {
	Ingest(ctx context.Context, event *AuthEvent) error
}

// BatchIngester is implemented by providers whose backend can bulk-insert.
// The pipeline only queues events when the bound provider supports batches.
type BatchIngester interface {
	IngestBatch(ctx context.Context, events []*AuthEvent) error
}

// Queryer is implemented by providers that can read events back.
type Queryer interface {
	Query(ctx context.Context, opts QueryOptions) ([]*AuthEvent, error)
}

// HealthChecker is implemented by providers that can probe their backend.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Shutdowner is implemented by providers that hold resources worth releasing
// on pipeline shutdown.
type Shutdowner interface {
	Shutdown(ctx context.Context) error
}

// QueryOptions filters provider reads. Zero values mean "no constraint".
type QueryOptions struct {
	Kinds  []EventKind
	UserID string
	Since  time.Time
	Until  time.Time
	Limit  int
}

// Matches reports whether the event passes every set filter. Adapters without
// native query support share this when scanning.
func (o QueryOptions) Matches(event *AuthEvent) bool {
	if event == nil {
		return false
	}
	if len(o.Kinds) > 0 {
		found := false
		for _, k := range o.Kinds {
			if event.Kind == k {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if o.UserID != "" && event.UserID != o.UserID {
		return false
	}
	if !o.Since.IsZero() && event.Timestamp.Before(o.Since) {
		return false
	}
	if !o.Until.IsZero() && event.Timestamp.After(o.Until) {
		return false
	}
	return true
}
