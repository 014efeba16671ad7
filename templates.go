package studio

import (
	"fmt"
	"strings"
)

// Fallback literals used when metadata is missing the fields a template wants.
const (
	fallbackUser         = "User"
	fallbackOrganization = "an organization"
	fallbackActor        = "An administrator"
	fallbackKey          = "an API key"
)

// ResolveDisplay maps an event kind plus status to the human-readable message
// and severity shown in the dashboard activity feed. The message table is
// total over AllEventKinds; unknown kinds get a generic fallback so a
// miswired caller still produces something readable.
func ResolveDisplay(kind EventKind, status EventStatus, metadata map[string]any) EventDisplay {
	return EventDisplay{
		Message:  resolveMessage(kind, metadata),
		Severity: ResolveSeverity(kind, status),
	}
}

// ResolveSeverity classifies an event kind. Precedence is fixed: a failed
// status always wins, then kind category membership decides. Reordering the
// checks changes the classification of verification-request kinds, so keep
// them as they are.
func ResolveSeverity(kind EventKind, status EventStatus) EventSeverity {
	if status == EventStatusFailed {
		return SeverityFailed
	}

	k := string(kind)
	switch {
	case containsAny(k, "created", "verified", "accepted", "sign-in"):
		return SeveritySuccess
	case strings.Contains(k, "ban") && !strings.Contains(k, "unban"):
		return SeverityFailed
	case containsAny(k, "deleted", "removed", "revoked") && !strings.Contains(k, "verification-request"):
		return SeverityFailed
	case containsAny(k, "reset", "verification-request"):
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

func resolveMessage(kind EventKind, md map[string]any) string {
	user := func() string { return metaString(md, fallbackUser, "name", "email", "user_name", "user_email") }
	org := func() string { return metaString(md, fallbackOrganization, "organization_name", "organization") }
	actor := func() string { return metaString(md, fallbackActor, "actor_name", "actor_email", "actor_id") }

	switch kind {
	case EventUserCreated:
		return fmt.Sprintf("%s joined", user())
	case EventUserUpdated:
		return fmt.Sprintf("%s updated their profile", user())
	case EventUserDeleted:
		return fmt.Sprintf("%s was deleted", user())
	case EventUserBanned:
		return fmt.Sprintf("%s was banned", user())
	case EventUserUnbanned:
		return fmt.Sprintf("%s was unbanned", user())
	case EventUserSignIn:
		return fmt.Sprintf("%s signed in", user())
	case EventUserSignOut:
		return fmt.Sprintf("%s signed out", user())
	case EventUserVerified:
		return fmt.Sprintf("%s verified their account", user())
	case EventSessionCreated:
		return fmt.Sprintf("%s started a session", user())
	case EventSessionRevoked:
		return fmt.Sprintf("A session for %s was revoked", user())
	case EventOrganizationCreated:
		return fmt.Sprintf("%s created %s", user(), org())
	case EventOrganizationUpdated:
		return fmt.Sprintf("%s was updated", orgTitle(md))
	case EventOrganizationDeleted:
		return fmt.Sprintf("%s was deleted", orgTitle(md))
	case EventMemberAdded:
		return fmt.Sprintf("%s was added to %s", user(), org())
	case EventMemberRemoved:
		return fmt.Sprintf("%s was removed from %s", user(), org())
	case EventInvitationCreated:
		return fmt.Sprintf("%s was invited to %s", invitee(md), org())
	case EventInvitationAccepted:
		return fmt.Sprintf("%s accepted an invitation to %s", invitee(md), org())
	case EventInvitationCanceled:
		return fmt.Sprintf("An invitation for %s was canceled", invitee(md))
	case EventPasswordResetRequested:
		return fmt.Sprintf("%s requested a password reset", user())
	case EventPasswordResetCompleted:
		return fmt.Sprintf("%s reset their password", user())
	case EventVerificationRequested:
		return fmt.Sprintf("A verification email was sent to %s", invitee(md))
	case EventVerificationCompleted:
		return fmt.Sprintf("%s verified their email", user())
	case EventAPIKeyCreated:
		return fmt.Sprintf("%s created %s", user(), keyName(md))
	case EventAPIKeyDeleted:
		return fmt.Sprintf("%s deleted %s", user(), keyName(md))
	case EventImpersonationStarted:
		return fmt.Sprintf("%s started impersonating %s", actor(), user())
	default:
		return fmt.Sprintf("%s event", kind)
	}
}

// orgTitle prefers the organization name but keeps the article-free form for
// subject position.
func orgTitle(md map[string]any) string {
	return metaString(md, "An organization", "organization_name", "organization")
}

func invitee(md map[string]any) string {
	return metaString(md, fallbackUser, "invitee_email", "email", "name")
}

func keyName(md map[string]any) string {
	name := metaString(md, "", "key_name", "name")
	if name == "" {
		return fallbackKey
	}
	return fmt.Sprintf("API key %q", name)
}

func metaString(md map[string]any, fallback string, keys ...string) string {
	for _, key := range keys {
		if raw, ok := md[key]; ok {
			if s, ok := raw.(string); ok && strings.TrimSpace(s) != "" {
				return s
			}
		}
	}
	return fallback
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
