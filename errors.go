package studio

import "github.com/goliatone/go-errors"

const (
	TextCodeUnauthenticated  = "studio_unauthenticated"
	TextCodeUnknownClient    = "studio_unknown_client_kind"
	TextCodeAssetsMissing    = "studio_assets_missing"
	TextCodeIndexMissing     = "studio_index_missing"
	TextCodeUnexpected       = "studio_unexpected_error"
	TextCodePipelineShutdown = "studio_pipeline_shutting_down"
)

// ErrUnauthenticated is returned for API requests without a usable session.
// The message is deliberately generic: expired, missing, and tampered cookies
// must be indistinguishable to the caller.
var ErrUnauthenticated = errors.New("authentication required", errors.CategoryAuth).
	WithTextCode(TextCodeUnauthenticated).
	WithCode(errors.CodeUnauthorized)

// ErrUnknownClientKind is returned when events configuration names a client
// kind outside the supported set.
var ErrUnknownClientKind = errors.New("unknown events client kind", errors.CategoryValidation).
	WithTextCode(TextCodeUnknownClient).
	WithCode(errors.CodeBadRequest)

// ErrAssetsNotConfigured is returned when the handler is built without a
// static asset root.
var ErrAssetsNotConfigured = errors.New("static asset root not configured", errors.CategoryValidation).
	WithTextCode(TextCodeAssetsMissing).
	WithCode(errors.CodeInternal)

// ErrIndexNotFound is returned when the SPA index document cannot be read
// from the asset root. Surfaces as a 500 with a remediation hint instead of
// crashing the process.
var ErrIndexNotFound = errors.New("dashboard index document not found; verify the asset root contains the built SPA bundle", errors.CategoryInternal).
	WithTextCode(TextCodeIndexMissing).
	WithCode(errors.CodeInternal)

// ErrPipelineShuttingDown is returned by Flush while a shutdown is in flight.
var ErrPipelineShuttingDown = errors.New("event pipeline is shutting down", errors.CategoryOperation).
	WithTextCode(TextCodePipelineShutdown).
	WithCode(errors.CodeConflict)
