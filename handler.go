package studio

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
)

// apiMarker prefixes every path that belongs to the API layer.
const apiMarker = "/api/"

// spaPaths are client-side routes that must always resolve to the SPA shell
// so the front end can take over navigation.
var spaPaths = map[string]bool{
	"/login":         true,
	"/access-denied": true,
	"/setup":         true,
	"/welcome":       true,
}

// publicAPIPaths may be called without a session in self-hosted mode. Sign-in
// and session lookup obviously cannot require the session they establish.
var publicAPIPaths = []string{
	"/api/health",
	"/api/auth/sign-in",
	"/api/auth/session",
	"/api/auth/sign-out",
	"/api/auth/verify-email",
	"/api/auth/callback",
	"/api/auth/oauth",
}

// Handler classifies inbound requests into static assets, the SPA shell, or
// API traffic, and gates protected API paths behind the session cookie. It is
// the single entry point every framework binding funnels into.
type Handler struct {
	cfg    HandlerConfig
	secret string
	assets *assetServer
	logger Logger
}

// NewHandler validates the configuration and prepares the static asset
// server. The index document is loaded and injected on first use; a missing
// SPA bundle surfaces as a diagnostic 500 rather than a startup failure.
func NewHandler(cfg HandlerConfig) (*Handler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = defLogger{}
	}

	assets, err := newAssetServer(cfg, logger)
	if err != nil {
		return nil, err
	}

	h := &Handler{
		cfg:    cfg,
		secret: ResolveSecret(cfg.Secret, logger),
		assets: assets,
		logger: logger,
	}

	logger.Debug("Studio handler configured %s", print.MaybePrettyJSON(map[string]any{
		"base_path":   cfg.BasePath,
		"self_hosted": cfg.BasePath != "",
	}))

	return h, nil
}

// Handle dispatches one request. It never panics outward; anything uncaught
// becomes a 500 with a JSON body.
func (h *Handler) Handle(ctx context.Context, req UniversalRequest) (res UniversalResponse) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("Unhandled dispatcher panic on %s: %v", req.URL, r)
			richErr := errors.New(fmt.Sprintf("unexpected error: %v", r), errors.CategoryInternal).
				WithTextCode(TextCodeUnexpected).
				WithCode(errors.CodeInternal)
			res = h.errorResponse(richErr)
		}
	}()

	path := requestPath(req.URL)
	selfHosted := h.cfg.BasePath != ""

	if selfHosted {
		path = stripBasePath(path, h.cfg.BasePath)
	}

	// Well-known assets and the root document are static in every mode.
	if path == "/" || h.assets.isAssetPath(path) {
		return h.assets.serve(path)
	}

	if spaPaths[path] {
		return h.assets.serveIndex()
	}

	if strings.HasPrefix(path, apiMarker) {
		return h.dispatchAPI(ctx, req, path, selfHosted)
	}

	if selfHosted {
		// Ambiguous path: an XHR from the dashboard wants JSON, a browser
		// navigation wants the shell. Accept decides; absent and */* count
		// as JSON.
		if wantsJSON(req.Header("Accept")) {
			return h.dispatchAPI(ctx, req, apiMarker+strings.TrimPrefix(path, "/"), selfHosted)
		}
		return h.assets.serveIndex()
	}

	// Standalone: unknown routes are the SPA's problem, not a 404.
	return h.assets.serve(path)
}

func (h *Handler) dispatchAPI(ctx context.Context, req UniversalRequest, path string, selfHosted bool) UniversalResponse {
	if selfHosted && !isPublicAPIPath(path) {
		if session := h.sessionFromRequest(req); !IsSessionValid(session) {
			return h.errorResponse(ErrUnauthenticated)
		}
	}

	if h.cfg.API == nil {
		return h.errorResponse(errors.New("no API handler configured", errors.CategoryInternal).
			WithCode(errors.CodeInternal))
	}

	apiReq := req
	apiReq.URL = path + requestQuery(req.URL)
	return h.cfg.API.HandleAPI(ctx, apiReq)
}

// sessionFromRequest pulls the session cookie and decrypts it. Missing
// cookie, tampered token, and expiry all land in the same invalid state.
func (h *Handler) sessionFromRequest(req UniversalRequest) *StudioSession {
	token := cookieValue(req.Header("Cookie"), SessionCookieName)
	if token == "" {
		return nil
	}
	return DecryptSession(token, h.secret)
}

func (h *Handler) errorResponse(richErr *errors.Error) UniversalResponse {
	status := richErr.Code
	if status < 400 || status > 599 {
		status = http.StatusInternalServerError
	}

	body, err := json.Marshal(map[string]any{
		"error": map[string]any{
			"message": richErr.Message,
			"code":    richErr.TextCode,
		},
	})
	if err != nil {
		body = []byte(`{"error":{"message":"internal error"}}`)
	}

	return UniversalResponse{
		Status:  status,
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    body,
	}
}

// requestPath strips the query string and normalizes the empty path to "/".
func requestPath(url string) string {
	path := url
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	return path
}

func requestQuery(url string) string {
	if i := strings.IndexByte(url, '?'); i >= 0 {
		return url[i:]
	}
	return ""
}

func stripBasePath(path, basePath string) string {
	if !strings.HasPrefix(path, basePath) {
		return path
	}
	rest := strings.TrimPrefix(path, basePath)
	// Only strip on a segment boundary: /api/studioX is not under /api/studio.
	if rest != "" && rest[0] != '/' {
		return path
	}
	if rest == "" {
		rest = "/"
	}
	return rest
}

func isPublicAPIPath(path string) bool {
	for _, public := range publicAPIPaths {
		if path == public || strings.HasPrefix(path, public+"/") {
			return true
		}
	}
	return false
}

// wantsJSON implements the Accept heuristic for ambiguous self-hosted paths:
// only an explicit HTML preference ahead of JSON turns the request into a
// shell navigation. Absent headers and */* count as JSON, which can
// misclassify browser prefetches; the dashboard client always sends an
// explicit Accept so this stays a corner case.
func wantsJSON(accept string) bool {
	if accept == "" {
		return true
	}
	accept = strings.ToLower(accept)
	htmlAt := strings.Index(accept, "text/html")
	jsonAt := strings.Index(accept, "application/json")

	if htmlAt < 0 {
		return true
	}
	if jsonAt < 0 {
		return false
	}
	return jsonAt < htmlAt
}

// cookieValue extracts one cookie from a raw Cookie header.
func cookieValue(header, name string) string {
	for _, part := range strings.Split(header, ";") {
		part = strings.TrimSpace(part)
		if eq := strings.IndexByte(part, '='); eq > 0 {
			if part[:eq] == name {
				return part[eq+1:]
			}
		}
	}
	return ""
}
