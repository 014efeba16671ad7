// Package studio provides the server-side core for an admin dashboard that
// fronts an authentication backend: a framework-neutral request dispatcher,
// an encrypted session cookie codec, and an event ingestion pipeline with
// pluggable storage providers.
//
// Request handling:
//   - Every web framework talks to the dashboard through UniversalRequest and
//     UniversalResponse. Bindings for net/http, fiber, and go-router live in
//     the binding subpackages; writing a new one is a dozen lines.
//   - Handler classifies traffic into static assets, the SPA shell, or API
//     calls. In self-hosted mode (BasePath set) protected API paths require a
//     valid session cookie before the API layer is ever invoked.
//
// Sessions:
//   - StudioSession is serialized to JSON and sealed with AES-256-GCM under a
//     key derived from the configured secret. DecryptSession returns nil on
//     any failure so callers cannot distinguish a tampered cookie from an
//     expired one.
//
// Event ingestion:
//   - Pipeline accepts lifecycle events (logins, organization changes,
//     invitations, ...), resolves a display message and severity for each,
//     and ships them to a provider either one at a time or in batches with
//     retry. Providers run best-effort: emitters never see provider failures.
//   - Adapters for relational (bun), embedded (badger), columnar (duckdb) and
//     HTTP webhook backends live under provider/.
package studio
