package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/yndnr/tokpool/internal/core/domain"
	"github.com/yndnr/tokpool/internal/telemetry/logger"
)

// DefaultMaxBodyBytes limits request bodies.
const DefaultMaxBodyBytes int64 = 1 << 20

// TokenStore is the store surface the handlers need.
type TokenStore interface {
	Insert(ctx context.Context, token domain.Token) (domain.InsertOutcome, error)
	Snapshot(ctx context.Context) (*domain.TokenStoreSnapshot, error)
	SweepExpired(ctx context.Context) (int, error)
}

// Handler routes requests to the token store.
type Handler struct {
	store        TokenStore
	logger       *slog.Logger
	maxBodyBytes int64
	ready        atomic.Bool
	mux          *http.ServeMux
}

// New creates a Handler. It reports ready until SetReady(false) is called.
func New(store TokenStore, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		store:        store,
		logger:       logger,
		maxBodyBytes: DefaultMaxBodyBytes,
		mux:          http.NewServeMux(),
	}
	h.ready.Store(true)

	h.registerRoutes()
	return h
}

// WithMaxBodyBytes overrides the request body limit and returns h.
func (h *Handler) WithMaxBodyBytes(n int64) *Handler {
	if n > 0 {
		h.maxBodyBytes = n
	}
	return h
}

// SetReady toggles the /ready probe, e.g. while draining on shutdown.
func (h *Handler) SetReady(ready bool) {
	h.ready.Store(ready)
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) registerRoutes() {
	h.mux.HandleFunc("GET /{$}", h.handleRoot)
	h.mux.HandleFunc("POST /save-token", h.handleSaveToken)
	h.mux.HandleFunc("GET /tokens", h.handleListTokens)

	h.mux.HandleFunc("GET /health", h.handleHealth)
	h.mux.HandleFunc("GET /ready", h.handleReady)

	h.mux.HandleFunc("GET /admin/v1/status/summary", h.handleAdminStatus)
	h.mux.HandleFunc("POST /admin/v1/gc/trigger", h.handleGCTrigger)
}

// log returns the request-scoped logger.
func (h *Handler) log(r *http.Request) *slog.Logger {
	if id := logger.RequestIDFromContext(r.Context()); id != "" {
		return h.logger.With("request_id", id)
	}
	return h.logger
}

// writePlain writes a bare JSON body.
func (h *Handler) writePlain(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

// writeJSON writes a JSON response with standard envelope format.
func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	requestID := getRequestID(r)
	response := NewResponse(requestID, data)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-ID", requestID)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

// writeError writes an error response with standard envelope format.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string, details any) {
	requestID := getRequestID(r)
	response := NewErrorResponse(requestID, code, message, details)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Error-Code", code)
	w.Header().Set("X-Request-ID", requestID)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(response)
}

// getRequestID extracts the request ID set by the RequestID middleware.
func getRequestID(r *http.Request) string {
	if id := logger.RequestIDFromContext(r.Context()); id != "" {
		return id
	}
	return r.Header.Get("X-Request-ID")
}

// handleServiceError converts service errors to enveloped HTTP responses.
func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if domain.IsDomainError(err, "") {
		code := domain.GetErrorCode(err)
		status := errorCodeToHTTPStatus(code)
		if status >= http.StatusInternalServerError {
			h.log(r).Error("request failed", "error", err)
		}
		h.writeError(w, r, status, code, err.Error(), nil)
		return
	}

	h.log(r).Error("internal error", "error", err)
	h.writeError(w, r, http.StatusInternalServerError, domain.ErrInternalServer.Code, "internal server error", nil)
}

// errorCodeToHTTPStatus maps error codes to HTTP status codes.
func errorCodeToHTTPStatus(code string) int {
	switch {
	case strings.HasSuffix(code, "-4290"):
		return http.StatusTooManyRequests
	case strings.HasSuffix(code, "-4130"):
		return http.StatusRequestEntityTooLarge
	case strings.HasSuffix(code, "-4010"), strings.HasSuffix(code, "-4011"):
		return http.StatusUnauthorized
	case strings.HasSuffix(code, "-4030"), strings.HasSuffix(code, "-4031"):
		return http.StatusForbidden
	case strings.HasPrefix(code, "TP-ARG-"), strings.HasSuffix(code, "-4000"):
		return http.StatusBadRequest
	case strings.HasSuffix(code, "-5030"), strings.HasSuffix(code, "-5031"):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
