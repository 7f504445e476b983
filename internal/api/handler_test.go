package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metricgate/internal/domain"
	"metricgate/internal/registry"
	"metricgate/metadata"
)

type stubGateway struct {
	payload []byte
	resp    *domain.QueryResponse
	explain *domain.ExplainResponse
	err     error
}

func (s *stubGateway) Query(_ context.Context, payload []byte) (*domain.QueryResponse, error) {
	s.payload = payload
	return s.resp, s.err
}

func (s *stubGateway) Explain(_ context.Context, payload []byte) (*domain.ExplainResponse, error) {
	s.payload = payload
	return s.explain, s.err
}

type stubAudit struct {
	limit   int
	entries []domain.AuditEntry
}

func (s *stubAudit) ListRecent(_ context.Context, limit int) ([]domain.AuditEntry, error) {
	s.limit = limit
	return s.entries, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func loadCatalog(t *testing.T) *registry.Registry {
	t.Helper()
	reg, err := registry.Load(metadata.Catalog, metadata.CatalogDir)
	require.NoError(t, err)
	return reg
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHTTPStatusFromDomainError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"extraction", domain.ErrExtraction(domain.FreeTextNotAccepted, "no"), http.StatusBadRequest},
		{"violation", domain.ErrViolation(domain.PiiExposure, "no"), http.StatusBadRequest},
		{"not found", domain.ErrNotFound("missing"), http.StatusBadRequest},
		{"validation", domain.ErrValidation("bad"), http.StatusBadRequest},
		{"sql violation", domain.ErrSQLViolation(domain.DestructiveOperation, "DROP"), http.StatusUnprocessableEntity},
		{"generation", &domain.GenerationError{Kind: domain.SqlGenerationFailed}, http.StatusBadGateway},
		{"empty generation", &domain.GenerationError{Kind: domain.EmptyGeneration}, http.StatusBadGateway},
		{"database", &domain.ExecutionError{Kind: domain.DatabaseExecutionFailed}, http.StatusBadGateway},
		{"timeout", &domain.ExecutionError{Kind: domain.QueryTimeout}, http.StatusGatewayTimeout},
		{"wrapped timeout", errors.Join(errors.New("ctx"), &domain.ExecutionError{Kind: domain.QueryTimeout}), http.StatusGatewayTimeout},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, httpStatusFromDomainError(tt.err))
		})
	}
}

func TestQuery_Success(t *testing.T) {
	gw := &stubGateway{resp: &domain.QueryResponse{Source: domain.SourceComputed, SQL: "SELECT 1 LIMIT 1", Result: 150}}
	h := NewHandler(gw, loadCatalog(t), discardLogger())

	body := `{"metric":"revenue","time_range":"last_month"}`
	rec := httptest.NewRecorder()
	h.Query(rec, httptest.NewRequest(http.MethodPost, "/v1/query", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, body, string(gw.payload))

	var resp domain.QueryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, domain.SourceComputed, resp.Source)
	assert.InDelta(t, 150.0, resp.Result, 0)
}

func TestQuery_Errors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantKind string
		wantMsg  string
	}{
		{"rejection", domain.ErrViolation(domain.FilterForbidden, "filter internal_account is forbidden"), 400, "FilterForbidden", "filter internal_account is forbidden"},
		{"unsafe", domain.ErrSQLViolation(domain.LimitRequired, "missing LIMIT"), 422, "LimitRequired", "unsafe sql: LimitRequired: missing LIMIT"},
		{"timeout", &domain.ExecutionError{Kind: domain.QueryTimeout, Err: context.DeadlineExceeded}, 504, "QueryTimeout", ""},
		{"internal", errors.New("secret detail"), 500, "Internal", "internal error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(&stubGateway{err: tt.err}, loadCatalog(t), discardLogger())
			rec := httptest.NewRecorder()
			h.Query(rec, httptest.NewRequest(http.MethodPost, "/v1/query", strings.NewReader(`{}`)))

			require.Equal(t, tt.wantCode, rec.Code)
			body := decodeError(t, rec)
			assert.Equal(t, tt.wantCode, body.Code)
			assert.Equal(t, tt.wantKind, body.Kind)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, body.Message)
			}
		})
	}
}

func TestQuery_BodyTooLarge(t *testing.T) {
	gw := &stubGateway{}
	h := NewHandler(gw, loadCatalog(t), discardLogger())

	big := strings.Repeat("x", MaxBodyBytes+1)
	rec := httptest.NewRecorder()
	h.Query(rec, httptest.NewRequest(http.MethodPost, "/v1/query", strings.NewReader(big)))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Nil(t, gw.payload)
}

func TestExplain(t *testing.T) {
	gw := &stubGateway{explain: &domain.ExplainResponse{CacheKey: "revenue:v1|last_month|dims=|filters="}}
	h := NewHandler(gw, loadCatalog(t), discardLogger())

	rec := httptest.NewRecorder()
	h.Explain(rec, httptest.NewRequest(http.MethodPost, "/v1/explain", strings.NewReader(`{"metric":"revenue"}`)))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"cache_key":"revenue:v1|last_month|dims=|filters="`)
}

func TestListMetrics(t *testing.T) {
	h := NewHandler(&stubGateway{}, loadCatalog(t), discardLogger())

	rec := httptest.NewRecorder()
	h.ListMetrics(rec, httptest.NewRequest(http.MethodGet, "/v1/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Metrics []metricSummary `json:"metrics"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Metrics, 3)

	byKey := map[string]metricSummary{}
	for _, m := range body.Metrics {
		byKey[string(m.Name)+":"+string(m.Version)] = m
	}
	assert.True(t, byKey["revenue:v1"].Default)
	assert.False(t, byKey["revenue:v2"].Default)
	assert.True(t, byKey["orders_count:v1"].Default)
	assert.Contains(t, byKey["revenue:v1"].ForbiddenFilters, "internal_account")
	assert.False(t, byKey["orders_count:v1"].SupportsDimensions)
}

func TestListAudit(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		h := NewHandler(&stubGateway{}, loadCatalog(t), discardLogger())
		rec := httptest.NewRecorder()
		h.ListAudit(rec, httptest.NewRequest(http.MethodGet, "/v1/audit", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("bad limit", func(t *testing.T) {
		h := NewHandler(&stubGateway{}, loadCatalog(t), discardLogger())
		h.SetAudit(&stubAudit{})
		rec := httptest.NewRecorder()
		h.ListAudit(rec, httptest.NewRequest(http.MethodGet, "/v1/audit?limit=zero", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("entries", func(t *testing.T) {
		reader := &stubAudit{entries: []domain.AuditEntry{{
			ID: 7, RequestID: "r1", Metric: "revenue", Version: "v1", Outcome: domain.OutcomeComputed,
			CreatedAt: time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC),
		}}}
		h := NewHandler(&stubGateway{}, loadCatalog(t), discardLogger())
		h.SetAudit(reader)

		rec := httptest.NewRecorder()
		h.ListAudit(rec, httptest.NewRequest(http.MethodGet, "/v1/audit?limit=5", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 5, reader.limit)

		var body struct {
			Entries []auditRecord `json:"entries"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Len(t, body.Entries, 1)
		assert.Equal(t, "r1", body.Entries[0].RequestID)
		assert.Equal(t, "2024-06-15T12:00:00.000Z", body.Entries[0].CreatedAt)
	})
}

func TestHealthz(t *testing.T) {
	h := NewHandler(&stubGateway{}, loadCatalog(t), discardLogger())

	rec := httptest.NewRecorder()
	h.Healthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	h.SetHealthCheck(func(context.Context) error { return errors.New("db down") })
	rec = httptest.NewRecorder()
	h.Healthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
