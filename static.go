package studio

import (
	"encoding/json"
	"io/fs"
	"path"
	"strings"
	"sync"
)

// indexDocument is the SPA shell served for every route the server does not
// recognize.
const indexDocument = "index.html"

// assetPrefixes and assetFiles are the well-known static locations served
// verbatim in every mode.
var assetPrefixes = []string{"/assets/", "/static/", "/fonts/"}

var assetFiles = map[string]bool{
	"/favicon.ico":   true,
	"/favicon.svg":   true,
	"/manifest.json": true,
	"/robots.txt":    true,
	"/logo.svg":      true,
}

// immutableExtensions get a long-lived cache policy; the build fingerprints
// these files so stale caches are impossible.
var immutableExtensions = map[string]bool{
	".js":    true,
	".css":   true,
	".woff":  true,
	".woff2": true,
	".ttf":   true,
	".svg":   true,
	".png":   true,
	".jpg":   true,
	".jpeg":  true,
	".webp":  true,
	".ico":   true,
}

var contentTypes = map[string]string{
	".html":  "text/html; charset=utf-8",
	".js":    "application/javascript",
	".css":   "text/css",
	".json":  "application/json",
	".svg":   "image/svg+xml",
	".png":   "image/png",
	".jpg":   "image/jpeg",
	".jpeg":  "image/jpeg",
	".webp":  "image/webp",
	".ico":   "image/x-icon",
	".txt":   "text/plain; charset=utf-8",
	".woff":  "font/woff",
	".woff2": "font/woff2",
	".ttf":   "font/ttf",
}

type assetServer struct {
	fs       fs.FS
	basePath string
	theme    string
	branding map[string]string
	logger   Logger

	indexOnce sync.Once
	index     []byte
	indexErr  error
}

func newAssetServer(cfg HandlerConfig, logger Logger) (*assetServer, error) {
	return &assetServer{
		fs:       cfg.Assets,
		basePath: cfg.BasePath,
		theme:    cfg.Theme,
		branding: cfg.Branding,
		logger:   logger,
	}, nil
}

// isAssetPath reports whether the path belongs to the fixed static set.
func (s *assetServer) isAssetPath(p string) bool {
	if assetFiles[p] {
		return true
	}
	for _, prefix := range assetPrefixes {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}

// serve returns the asset at p, falling back to the SPA index when the file
// is absent. The fallback keeps deep links working after a client-side
// route refresh.
func (s *assetServer) serve(p string) UniversalResponse {
	if p == "/" {
		return s.serveIndex()
	}

	name := strings.TrimPrefix(path.Clean(p), "/")
	data, err := fs.ReadFile(s.fs, name)
	if err != nil {
		return s.serveIndex()
	}

	ext := strings.ToLower(path.Ext(name))
	headers := map[string]string{
		"Content-Type":  contentTypeFor(ext),
		"Cache-Control": cachePolicyFor(ext),
	}
	return UniversalResponse{Status: 200, Headers: headers, Body: data}
}

// serveIndex returns the injected SPA shell. The document is read and
// prepared once; a missing bundle turns into a diagnostic 500 instead of a
// crash so a misconfigured deployment stays debuggable.
func (s *assetServer) serveIndex() UniversalResponse {
	s.indexOnce.Do(func() {
		raw, err := fs.ReadFile(s.fs, indexDocument)
		if err != nil {
			s.indexErr = err
			return
		}
		s.index = s.injectConfig(raw)
	})

	if s.indexErr != nil {
		s.logger.Error("SPA index document unavailable: %v", s.indexErr)
		body, _ := json.Marshal(map[string]any{
			"error": map[string]any{
				"message": ErrIndexNotFound.Message,
				"code":    ErrIndexNotFound.TextCode,
			},
		})
		return UniversalResponse{
			Status:  500,
			Headers: map[string]string{"Content-Type": "application/json"},
			Body:    body,
		}
	}

	return UniversalResponse{
		Status: 200,
		Headers: map[string]string{
			"Content-Type":  "text/html; charset=utf-8",
			"Cache-Control": "no-cache",
		},
		Body: s.index,
	}
}

// injectConfig plants the runtime configuration object before </head> and, in
// self-hosted mode, rewrites root-relative asset references to live under the
// base path. json.Marshal escapes angle brackets and ampersands, so
// configuration values cannot break out of the script element.
func (s *assetServer) injectConfig(index []byte) []byte {
	cfg := map[string]any{
		"basePath": s.basePath,
	}
	if s.theme != "" {
		cfg["theme"] = s.theme
	}
	if len(s.branding) > 0 {
		cfg["branding"] = s.branding
	}

	payload, err := json.Marshal(cfg)
	if err != nil {
		payload = []byte("{}")
	}

	doc := string(index)
	script := "<script>window.__STUDIO_CONFIG__ = " + string(payload) + ";</script></head>"
	if strings.Contains(doc, "</head>") {
		doc = strings.Replace(doc, "</head>", script, 1)
	} else {
		doc += script
	}

	if s.basePath != "" {
		for _, attr := range []string{`src="/assets/`, `href="/assets/`, `href="/favicon`, `href="/manifest`} {
			rewritten := strings.Replace(attr, `"/`, `"`+s.basePath+`/`, 1)
			doc = strings.ReplaceAll(doc, attr, rewritten)
		}
	}

	return []byte(doc)
}

func contentTypeFor(ext string) string {
	if ct, ok := contentTypes[ext]; ok {
		return ct
	}
	return "application/octet-stream"
}

func cachePolicyFor(ext string) string {
	if immutableExtensions[ext] {
		return "public, max-age=31536000, immutable"
	}
	return "no-cache"
}
