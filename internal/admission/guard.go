package admission

import (
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
)

// Sentinel errors returned by the admission checks. The HTTP layer maps them
// to 401 and 403 responses.
var (
	ErrMissingAPIKey = errors.New("admission: missing API key")
	ErrInvalidAPIKey = errors.New("admission: invalid API key")
	ErrMissingOrigin = errors.New("admission: missing origin")
	ErrOriginDenied  = errors.New("admission: origin not allowed")
)

// Config configures a Guard. Key and origin lists arrive as comma-separated
// strings from the environment.
type Config struct {
	// APIKeys is the comma-separated list of accepted keys. Empty means no
	// key check outside production.
	APIKeys string

	// AllowedOrigins is the comma-separated list of accepted origins. Each
	// entry is an exact origin or a "*.domain" wildcard.
	AllowedOrigins string

	// Production hardens the checks: an empty key list or a missing Origin
	// header becomes a rejection instead of a pass-through.
	Production bool
}

// Guard performs API key and origin checks for incoming requests.
// It is safe for concurrent use; configuration is fixed at construction.
type Guard struct {
	keys       map[string]struct{}
	origins    []string
	production bool
}

// NewGuard creates a Guard from cfg. Outside production an empty key list is
// allowed but logged, since it leaves the endpoint open.
func NewGuard(cfg Config) *Guard {
	keys := make(map[string]struct{})
	for _, k := range splitList(cfg.APIKeys) {
		keys[k] = struct{}{}
	}
	if len(keys) == 0 && !cfg.Production {
		slog.Warn("no API keys configured; requests will not be authenticated")
	}
	return &Guard{
		keys:       keys,
		origins:    splitList(cfg.AllowedOrigins),
		production: cfg.Production,
	}
}

// CheckAPIKey validates the key carried in either the X-API-Key header or an
// Authorization bearer token. With no keys configured, the check passes
// outside production and fails in production.
func (g *Guard) CheckAPIKey(r *http.Request) error {
	if len(g.keys) == 0 {
		if g.production {
			return ErrInvalidAPIKey
		}
		return nil
	}

	key := r.Header.Get("X-API-Key")
	if key == "" {
		auth := r.Header.Get("Authorization")
		if after, ok := strings.CutPrefix(auth, "Bearer "); ok {
			key = after
		}
	}
	if key == "" {
		return ErrMissingAPIKey
	}
	if _, ok := g.keys[key]; !ok {
		return ErrInvalidAPIKey
	}
	return nil
}

// CheckOrigin validates the Origin header against the allowed list. Outside
// production the check passes unconditionally; in production a missing
// header is a rejection.
func (g *Guard) CheckOrigin(r *http.Request) error {
	if !g.production {
		return nil
	}

	origin := r.Header.Get("Origin")
	if origin == "" {
		return ErrMissingOrigin
	}
	if g.originAllowed(origin) {
		return nil
	}
	return ErrOriginDenied
}

// originAllowed matches origin against the allowed list, exact or by
// "*.domain" wildcard.
func (g *Guard) originAllowed(origin string) bool {
	host := originHost(origin)
	for _, allowed := range g.origins {
		if origin == allowed {
			return true
		}
		if domain, ok := strings.CutPrefix(allowed, "*."); ok {
			if host == domain || strings.HasSuffix(host, "."+domain) {
				return true
			}
		}
	}
	return false
}

// originHost strips the scheme and port from an Origin header value.
func originHost(origin string) string {
	host := origin
	if i := strings.Index(host, "://"); i >= 0 {
		host = host[i+3:]
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}

// ClientIP derives the client address from proxy headers, falling back to the
// connection's remote address. X-Forwarded-For may carry a chain; the first
// entry is the originating client.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if real := r.Header.Get("X-Real-IP"); real != "" {
		return real
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// SetCORSHeaders writes the CORS response headers for the answer endpoint.
func SetCORSHeaders(w http.ResponseWriter, origin string) {
	if origin == "" {
		origin = "*"
	}
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", origin)
	h.Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type,X-API-Key,Authorization")
	h.Set("Access-Control-Max-Age", "86400")
}

// Preflight handles CORS OPTIONS requests.
func Preflight(w http.ResponseWriter, r *http.Request) {
	SetCORSHeaders(w, r.Header.Get("Origin"))
	w.WriteHeader(http.StatusOK)
}

// splitList splits a comma-separated list into trimmed, non-empty entries.
func splitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
