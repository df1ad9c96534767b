/*
handlers.go - HTTP API handlers for the grade evaluation engine

PURPOSE:
  Exposes rider lookup, the admin dashboard and override editing over
  JSON. Handles request/response and delegates to the grade package.

ENDPOINTS:
  Public:
    POST   /api/lookup                          Evaluate one rider (name + login4)
    GET    /health                              Credential and center id presence
    GET    /metrics                             Prometheus exposition

  Admin (X-Admin-Key):
    GET    /api/dashboard?q=                    Evaluate every rider
    GET    /api/admin/overrides                 Both override maps
    POST   /api/admin/join-overrides            Set join date override
    POST   /api/admin/join-overrides/clear      Clear join date override
    POST   /api/admin/login-overrides           Set login suffix override
    POST   /api/admin/login-overrides/clear     Clear login suffix override
    GET    /api/admin/source-check              Uncached roster fetch

ERROR HANDLING:
  Errors are returned as JSON {error, code, details}:
  - 400: invalid input
  - 404: no rider matches
  - 409: several riders match
  - 429: lookup rate limit
  - 401: admin key missing or wrong
  - 502: delivery center failed (code=fetch_failed)
  - 503: delivery center credentials expired (code=auth_expired)
  - 500: anything else

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - generic/errors.go: error kinds
*/
package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/warp/grade-engine/deliverycenter"
	"github.com/warp/grade-engine/generic"
	"github.com/warp/grade-engine/grade"
)

// maxBodyBytes caps request bodies; every request type is a handful of fields.
const maxBodyBytes = 1 << 16

// =============================================================================
// DEPENDENCIES
// =============================================================================

// Evaluator answers lookups and dashboards.
type Evaluator interface {
	Lookup(ctx context.Context, name, loginSuffix string) (*grade.Evaluation, error)
	Dashboard(ctx context.Context, query string) ([]grade.Evaluation, error)
}

// OverrideAdmin edits the override maps.
type OverrideAdmin interface {
	Snapshot(ctx context.Context) grade.OverrideSnapshot
	SetJoinOverride(ctx context.Context, key, date string) error
	ClearJoinOverride(ctx context.Context, key string) error
	SetLoginOverride(ctx context.Context, name, realSuffix, loginSuffix string) error
	ClearLoginOverride(ctx context.Context, name, realSuffix string) error
}

// SourceProbe performs an uncached roster fetch.
type SourceProbe interface {
	Probe(ctx context.Context) (deliverycenter.ProbeResult, error)
}

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Evaluator Evaluator
	Overrides OverrideAdmin
	Probe     SourceProbe

	// CookieLoaded and CenterIDLoaded back /health.
	CookieLoaded   func(ctx context.Context) bool
	CenterIDLoaded func() bool

	Logger *slog.Logger
}

// NewHandler creates a handler. The health checks default to false.
func NewHandler(ev Evaluator, overrides OverrideAdmin, probe SourceProbe, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		Evaluator:      ev,
		Overrides:      overrides,
		Probe:          probe,
		CookieLoaded:   func(context.Context) bool { return false },
		CenterIDLoaded: func() bool { return false },
		Logger:         logger,
	}
}

// =============================================================================
// LOOKUP
// =============================================================================

// Lookup evaluates the rider identified by name and login suffix.
func (h *Handler) Lookup(w http.ResponseWriter, r *http.Request) {
	var req LookupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ev, err := h.Evaluator.Lookup(r.Context(), req.Name, req.Login4)
	if err != nil {
		h.writeDomainError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEvaluationDTO(*ev))
}

// =============================================================================
// DASHBOARD
// =============================================================================

// Dashboard evaluates every rider, optionally filtered by q.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	evs, err := h.Evaluator.Dashboard(r.Context(), q)
	if err != nil {
		h.writeDomainError(r.Context(), w, err)
		return
	}

	dtos := make([]EvaluationDTO, len(evs))
	for i, ev := range evs {
		dtos[i] = toEvaluationDTO(ev)
	}
	writeJSON(w, http.StatusOK, DashboardResponse{Query: q, Count: len(dtos), Riders: dtos})
}

// =============================================================================
// OVERRIDE HANDLERS
// =============================================================================

// ListOverrides returns both override maps.
func (h *Handler) ListOverrides(w http.ResponseWriter, r *http.Request) {
	snap := h.Overrides.Snapshot(r.Context())
	writeJSON(w, http.StatusOK, OverridesResponse{JoinOverrides: snap.Join, LoginOverrides: snap.Login})
}

func (h *Handler) SetJoinOverride(w http.ResponseWriter, r *http.Request) {
	var req SetJoinOverrideRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.Overrides.SetJoinOverride(r.Context(), req.Key, req.JoinDate); err != nil {
		h.writeDomainError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{Status: "saved"})
}

func (h *Handler) ClearJoinOverride(w http.ResponseWriter, r *http.Request) {
	var req ClearJoinOverrideRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.Overrides.ClearJoinOverride(r.Context(), req.Key); err != nil {
		h.writeDomainError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{Status: "cleared"})
}

func (h *Handler) SetLoginOverride(w http.ResponseWriter, r *http.Request) {
	var req SetLoginOverrideRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.Overrides.SetLoginOverride(r.Context(), req.NameNorm, req.Real4, req.Login4); err != nil {
		h.writeDomainError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{Status: "saved"})
}

func (h *Handler) ClearLoginOverride(w http.ResponseWriter, r *http.Request) {
	var req ClearLoginOverrideRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.Overrides.ClearLoginOverride(r.Context(), req.NameNorm, req.Real4); err != nil {
		h.writeDomainError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{Status: "cleared"})
}

// =============================================================================
// OPS
// =============================================================================

// Health reports whether credentials and a center id are configured. It
// never calls the delivery center.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:         "ok",
		CookieLoaded:   h.CookieLoaded(r.Context()),
		CenterIDLoaded: h.CenterIDLoaded(),
	}
	if !resp.CookieLoaded || !resp.CenterIDLoaded {
		resp.Status = "degraded"
	}
	writeJSON(w, http.StatusOK, resp)
}

// SourceCheck fetches the roster once, bypassing the cache. Failures are
// reported in the body so the operator sees the classification.
func (h *Handler) SourceCheck(w http.ResponseWriter, r *http.Request) {
	res, err := h.Probe.Probe(r.Context())
	if err != nil {
		status, code := classify(err)
		writeJSON(w, status, SourceCheckResponse{OK: false, Error: err.Error(), Code: code})
		return
	}
	writeJSON(w, http.StatusOK, SourceCheckResponse{
		OK:         true,
		Fetched:    res.Fetched,
		Kept:       res.Kept,
		DurationMS: res.Duration.Milliseconds(),
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func decodeJSON(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return err
	}
	return json.Unmarshal(body, dst)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

func writeCodedError(w http.ResponseWriter, status int, code, message string, err error) {
	resp := ErrorResponse{Error: message, Code: code}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// classify maps an error kind to its status and code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, generic.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, generic.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, generic.ErrAmbiguous):
		return http.StatusConflict, "ambiguous"
	case errors.Is(err, generic.ErrAuthExpired):
		return http.StatusServiceUnavailable, "auth_expired"
	case errors.Is(err, generic.ErrFetchFailure):
		return http.StatusBadGateway, "fetch_failed"
	}
	return http.StatusInternalServerError, "internal"
}

var messages = map[string]string{
	"invalid_input": "Invalid input",
	"not_found":     "No rider matches this name and login number",
	"ambiguous":     "Several riders match, contact an administrator",
	"auth_expired":  "Delivery center session expired, an administrator must refresh it",
	"fetch_failed":  "Delivery center request failed",
	"internal":      "Internal error",
}

func (h *Handler) writeDomainError(ctx context.Context, w http.ResponseWriter, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		h.Logger.ErrorContext(ctx, "request failed", "code", code, "err", err)
	}
	writeCodedError(w, status, code, messages[code], err)
}
