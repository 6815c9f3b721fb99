// Package health provides HTTP health and readiness check handlers.
//
// The package exposes three endpoints:
//
//   - /health  — service status for clients: timestamp, environment flags,
//     and vector database connectivity.
//   - /healthz — liveness probe; always returns 200 OK.
//   - /readyz  — readiness probe; returns 200 only when all registered
//     [Checker] functions pass.
//
// Probe responses are JSON objects with a top-level "status" field ("ok" or
// "fail") and a "checks" map containing the result of each named checker.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// checkTimeout is the maximum time a single readiness check may take before
// the context is cancelled.
const checkTimeout = 5 * time.Second

// Checker is a named health check function. The Check function should return
// nil when the dependency is healthy and a non-nil error describing the
// failure otherwise.
type Checker struct {
	// Name is a short, human-readable label for this check (e.g. "vectordb",
	// "providers"). It appears as a key in the JSON response.
	Name string

	// Check probes the dependency. It must respect context cancellation.
	Check func(ctx context.Context) error
}

// EnvFlags reports which optional capabilities the running instance carries.
// It is embedded in the /health response so clients can tell a text-only
// deployment from a full one.
type EnvFlags struct {
	Production        bool `json:"production"`
	LLMConfigured     bool `json:"llmConfigured"`
	TTSConfigured     bool `json:"ttsConfigured"`
	APIKeysConfigured bool `json:"apiKeysConfigured"`
}

// result is the JSON response body for the probe endpoints.
type result struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// statusResponse is the JSON response body for /health.
type statusResponse struct {
	Status      string   `json:"status"`
	Timestamp   string   `json:"timestamp"`
	Environment EnvFlags `json:"environment"`
	VectorDB    string   `json:"vectorDb"`
}

// Handler serves the /health, /healthz, and /readyz endpoints. It is safe for
// concurrent use; the checker list is fixed at construction time.
type Handler struct {
	flags      EnvFlags
	vectorPing func(ctx context.Context) error
	checkers   []Checker

	now func() time.Time
}

// New creates a [Handler]. vectorPing probes the vector database for the
// /health connectivity field and may be nil when no index is configured; the
// checkers are evaluated sequentially on each /readyz request, in the order
// provided.
func New(flags EnvFlags, vectorPing func(ctx context.Context) error, checkers ...Checker) *Handler {
	c := make([]Checker, len(checkers))
	copy(c, checkers)
	return &Handler{
		flags:      flags,
		vectorPing: vectorPing,
		checkers:   c,
		now:        time.Now,
	}
}

// Health reports service status, environment flags, and vector database
// connectivity. The endpoint itself always returns 200; a broken index is
// reported in the payload, not the status code.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	vectorDB := "connected"
	if h.vectorPing == nil {
		vectorDB = "error"
	} else {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		err := h.vectorPing(ctx)
		cancel()
		if err != nil {
			vectorDB = "error"
		}
	}

	writeJSON(w, http.StatusOK, statusResponse{
		Status:      "ok",
		Timestamp:   h.now().UTC().Format(time.RFC3339),
		Environment: h.flags,
		VectorDB:    vectorDB,
	})
}

// Healthz is a liveness probe that always returns 200 OK. A running process
// that can serve HTTP is considered alive.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, result{Status: "ok"})
}

// Readyz is a readiness probe that returns 200 only when every registered
// [Checker] passes. Each checker is given a context with a [checkTimeout]
// deadline derived from the request context.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string, len(h.checkers))
	allOK := true

	for _, c := range h.checkers {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		err := c.Check(ctx)
		cancel()

		if err != nil {
			checks[c.Name] = "fail: " + err.Error()
			allOK = false
		} else {
			checks[c.Name] = "ok"
		}
	}

	res := result{
		Status: "ok",
		Checks: checks,
	}
	status := http.StatusOK
	if !allOK {
		res.Status = "fail"
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, res)
}

// Register adds the /health, /healthz, and /readyz routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

// writeJSON encodes v as JSON and writes it with the given status code. On
// encoding failure it falls back to a plain-text 500 response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
