package studio

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"os"
	"time"

	"golang.org/x/crypto/hkdf"
)

// SessionCookieName is the cookie the dashboard stores its session token in.
const SessionCookieName = "studio_session"

// SecretEnvVar is consulted when no session secret is configured explicitly.
const SecretEnvVar = "STUDIO_AUTH_SECRET"

// DefaultSessionDuration is the lifetime stamped on new sessions when the
// caller does not pick one.
const DefaultSessionDuration = 7 * 24 * time.Hour

// defaultSecret keeps local development working without configuration. It
// must never reach production; ResolveSecret logs when it is used.
const defaultSecret = "studio-insecure-dev-secret"

// sessionKeyLabel domain-separates the derived key from other uses of the
// shared backend secret.
const sessionKeyLabel = "studio-session-encryption"

// StudioSession identifies a logged-in dashboard user. Sessions are never
// mutated: logging in again issues a fresh session with new timestamps.
type StudioSession struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	Image     string `json:"image,omitempty"`
	IssuedAt  int64  `json:"issued_at"`
	ExpiresAt int64  `json:"expires_at"`
}

// SessionUser carries the user attributes stamped into a new session.
type SessionUser struct {
	ID    string
	Email string
	Name  string
	Role  string
	Image string
}

// NewStudioSession stamps IssuedAt/ExpiresAt (epoch milliseconds) for the
// given user. A non-positive duration falls back to DefaultSessionDuration.
func NewStudioSession(user SessionUser, duration time.Duration) *StudioSession {
	if duration <= 0 {
		duration = DefaultSessionDuration
	}
	now := time.Now()
	return &StudioSession{
		UserID:    user.ID,
		Email:     user.Email,
		Name:      user.Name,
		Role:      user.Role,
		Image:     user.Image,
		IssuedAt:  now.UnixMilli(),
		ExpiresAt: now.Add(duration).UnixMilli(),
	}
}

// IsSessionValid reports whether the session exists and has not expired.
func IsSessionValid(session *StudioSession) bool {
	if session == nil {
		return false
	}
	return session.ExpiresAt > time.Now().UnixMilli()
}

// EncryptSession seals the JSON-serialized session with AES-256-GCM under a
// key derived from secret. The random nonce makes every token unique even for
// identical sessions, so tokens cannot be correlated across logins.
func EncryptSession(session *StudioSession, secret string) (string, error) {
	aead, err := sessionAEAD(secret)
	if err != nil {
		return "", err
	}

	plaintext, err := json.Marshal(session)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	sealed := aead.Seal(nonce, nonce, plaintext, nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// DecryptSession reverses EncryptSession. It returns nil on ANY failure:
// malformed base64, truncated token, authentication mismatch, or bad JSON.
// Callers must not be able to tell a tampered cookie from a foreign-secret
// one, so no error detail ever escapes.
func DecryptSession(token, secret string) *StudioSession {
	aead, err := sessionAEAD(secret)
	if err != nil {
		return nil
	}

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil
	}

	if len(raw) < aead.NonceSize() {
		return nil
	}

	nonce, ciphertext := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil
	}

	session := &StudioSession{}
	if err := json.Unmarshal(plaintext, session); err != nil {
		return nil
	}
	return session
}

// ResolveSecret picks the session secret: explicit config value, then the
// environment, then the development default.
func ResolveSecret(configured string, logger Logger) string {
	if configured != "" {
		return configured
	}
	if secret := os.Getenv(SecretEnvVar); secret != "" {
		return secret
	}
	if logger != nil {
		logger.Warn("Using built-in development session secret; set %s in production", SecretEnvVar)
	}
	return defaultSecret
}

func sessionAEAD(secret string) (cipher.AEAD, error) {
	key := make([]byte, 32)
	reader := hkdf.New(sha256.New, []byte(secret), nil, []byte(sessionKeyLabel))
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
