package answer

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"
	"unicode/utf8"

	"github.com/kotodama-ai/kotodama/internal/admission"
	"github.com/kotodama-ai/kotodama/internal/observe"
)

// HandlerOption is a functional option for Handler.
type HandlerOption func(*Handler)

// WithHandlerMetrics records rate-limit rejections to m.
func WithHandlerMetrics(m *observe.Metrics) HandlerOption {
	return func(h *Handler) { h.metrics = m }
}

// Handler serves the answer endpoint, applying admission checks before
// delegating to the Service.
type Handler struct {
	svc     *Service
	guard   atomic.Pointer[admission.Guard]
	limiter *admission.RateLimiter
	metrics *observe.Metrics
}

// NewHandler creates a Handler.
func NewHandler(svc *Service, guard *admission.Guard, limiter *admission.RateLimiter, opts ...HandlerOption) *Handler {
	h := &Handler{svc: svc, limiter: limiter}
	h.guard.Store(guard)
	for _, o := range opts {
		o(h)
	}
	return h
}

// SetGuard atomically replaces the admission guard. Used by config hot reload.
func (h *Handler) SetGuard(guard *admission.Guard) {
	h.guard.Store(guard)
}

// Register adds the answer routes to mux. The method-qualified patterns let
// the mux answer 405 for other verbs.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /chat", h.Chat)
	mux.HandleFunc("OPTIONS /chat", admission.Preflight)
}

// errorBody is the JSON error envelope.
type errorBody struct {
	Error string `json:"error"`
}

// Chat handles one answer request. Admission runs in order: rate limit,
// API key, origin. Each failure short-circuits with its own status.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	admission.SetCORSHeaders(w, r.Header.Get("Origin"))

	clientIP := admission.ClientIP(r)
	if d := h.limiter.Allow(clientIP); !d.Allowed {
		if h.metrics != nil {
			h.metrics.RecordRateLimitRejection(r.Context(), "/chat")
		}
		w.Header().Set("Retry-After", strconv.Itoa(d.RetryAfter))
		writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded"})
		return
	}

	guard := h.guard.Load()
	if err := guard.CheckAPIKey(r); err != nil {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "invalid or missing API key"})
		return
	}
	if err := guard.CheckOrigin(r); err != nil {
		writeJSON(w, http.StatusForbidden, errorBody{Error: "origin not allowed"})
		return
	}

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON body"})
		return
	}
	if req.Message == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "message is required"})
		return
	}
	if utf8.RuneCountInString(req.Message) > MaxMessageChars {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "message exceeds maximum length"})
		return
	}

	resp, err := h.svc.Answer(r.Context(), req)
	if err != nil {
		if r.Context().Err() != nil {
			// Client went away; nothing useful to write.
			return
		}
		slog.Error("answer request failed", "clientIP", clientIP, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "failed to generate answer"})
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}
