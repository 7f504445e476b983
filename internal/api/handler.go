// Package api provides the HTTP transport for the metric gateway.
package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"metricgate/internal/domain"
	"metricgate/internal/registry"
)

// MaxBodyBytes bounds an intent payload.
const MaxBodyBytes = 64 << 10

// Gateway answers intent payloads. Implemented by gateway.Service.
type Gateway interface {
	Query(ctx context.Context, payload []byte) (*domain.QueryResponse, error)
	Explain(ctx context.Context, payload []byte) (*domain.ExplainResponse, error)
}

// Catalog lists the loaded metric definitions. Implemented by
// registry.Registry.
type Catalog interface {
	All() []*domain.MetricDefinition
}

// AuditReader lists recent audit entries. Implemented by audit.Store.
type AuditReader interface {
	ListRecent(ctx context.Context, limit int) ([]domain.AuditEntry, error)
}

// Handler serves the gateway API.
type Handler struct {
	gateway Gateway
	catalog Catalog
	audit   AuditReader
	health  func(context.Context) error
	logger  *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(gw Gateway, catalog Catalog, logger *slog.Logger) *Handler {
	return &Handler{
		gateway: gw,
		catalog: catalog,
		logger:  logger.With("component", "api"),
	}
}

// SetAudit enables GET /v1/audit.
func (h *Handler) SetAudit(r AuditReader) { h.audit = r }

// SetHealthCheck sets the probe run by GET /healthz, typically a database
// ping.
func (h *Handler) SetHealthCheck(fn func(context.Context) error) { h.health = fn }

// Query handles POST /v1/query.
func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	payload, ok := h.readBody(w, r)
	if !ok {
		return
	}
	resp, err := h.gateway.Query(r.Context(), payload)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Explain handles POST /v1/explain.
func (h *Handler) Explain(w http.ResponseWriter, r *http.Request) {
	payload, ok := h.readBody(w, r)
	if !ok {
		return
	}
	resp, err := h.gateway.Explain(r.Context(), payload)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// metricSummary is one entry of GET /v1/metrics.
type metricSummary struct {
	Name               domain.MetricName    `json:"name"`
	Version            domain.MetricVersion `json:"version"`
	Default            bool                 `json:"default"`
	Description        string               `json:"description"`
	Grain              string               `json:"grain"`
	Aggregation        domain.Aggregation   `json:"aggregation"`
	SupportsDimensions bool                 `json:"supports_dimensions"`
	AllowedFilters     []string             `json:"allowed_filters"`
	ForbiddenFilters   []string             `json:"forbidden_filters"`
}

// ListMetrics handles GET /v1/metrics.
func (h *Handler) ListMetrics(w http.ResponseWriter, _ *http.Request) {
	defs := h.catalog.All()
	out := make([]metricSummary, 0, len(defs))
	for _, m := range defs {
		def, err := registry.DefaultVersion(m.Name)
		out = append(out, metricSummary{
			Name:               m.Name,
			Version:            m.Version,
			Default:            err == nil && def == m.Version,
			Description:        m.Description,
			Grain:              m.Grain,
			Aggregation:        m.Measure.Aggregation,
			SupportsDimensions: m.SupportsDimensions,
			AllowedFilters:     nonNil(m.AllowedFilters),
			ForbiddenFilters:   nonNil(m.ForbiddenFilters),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"metrics": out})
}

// auditRecord is one entry of GET /v1/audit.
type auditRecord struct {
	ID         int64  `json:"id"`
	RequestID  string `json:"request_id"`
	Principal  string `json:"principal,omitempty"`
	Metric     string `json:"metric,omitempty"`
	Version    string `json:"version,omitempty"`
	TimeRange  string `json:"time_range,omitempty"`
	Outcome    string `json:"outcome"`
	ErrorKind  string `json:"error_kind,omitempty"`
	SQL        string `json:"sql,omitempty"`
	DurationMs int64  `json:"duration_ms"`
	CreatedAt  string `json:"created_at"`
}

// ListAudit handles GET /v1/audit?limit=N.
func (h *Handler) ListAudit(w http.ResponseWriter, r *http.Request) {
	if h.audit == nil {
		writeError(w, http.StatusNotFound, "NotFound", "audit log is not enabled")
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 1000 {
			writeError(w, http.StatusBadRequest, "ValidationFailed", "limit must be an integer between 1 and 1000")
			return
		}
		limit = n
	}

	entries, err := h.audit.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.Error("list audit entries", "request_id", domain.RequestIDFromContext(r.Context()), "error", err)
		writeDomainError(w, err)
		return
	}
	out := make([]auditRecord, 0, len(entries))
	for _, e := range entries {
		out = append(out, auditRecord{
			ID:         e.ID,
			RequestID:  e.RequestID,
			Principal:  e.Principal,
			Metric:     e.Metric,
			Version:    e.Version,
			TimeRange:  e.TimeRange,
			Outcome:    e.Outcome,
			ErrorKind:  e.ErrorKind,
			SQL:        e.SQL,
			DurationMs: e.DurationMs,
			CreatedAt:  e.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": out})
}

// Healthz handles GET /healthz.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health(r.Context()); err != nil {
			h.logger.Warn("health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "ValidationFailed", "request body too large")
			return nil, false
		}
		writeError(w, http.StatusBadRequest, "ValidationFailed", "could not read request body")
		return nil, false
	}
	return body, true
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
