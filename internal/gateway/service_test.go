package gateway

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metricgate/internal/cache"
	"metricgate/internal/domain"
	"metricgate/internal/metrics"
	"metricgate/internal/registry"
	"metricgate/internal/sqlgen"
	"metricgate/metadata"
)

var june15 = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

// === Fakes ===

type fakeQuerier struct {
	mu    sync.Mutex
	calls []string
	value float64
	err   error
}

func (f *fakeQuerier) Scalar(_ context.Context, sql string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, sql)
	return f.value, f.err
}

func (f *fakeQuerier) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type memoryAudit struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
	err     error
}

func (m *memoryAudit) Record(_ context.Context, e domain.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return m.err
}

func (m *memoryAudit) Last(t *testing.T) domain.AuditEntry {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.entries)
	return m.entries[len(m.entries)-1]
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func templateGen() domain.TextGenerator {
	return sqlgen.NewTemplateGenerator(clockwork.NewFakeClockAt(june15), 0)
}

func failingGen(t *testing.T) domain.TextGenerator {
	return sqlgen.GeneratorFunc(func(context.Context, domain.GenerationRequest) (string, error) {
		t.Error("generator must not be called")
		return "", errors.New("unexpected")
	})
}

func fixedGen(sql string) domain.TextGenerator {
	return sqlgen.GeneratorFunc(func(context.Context, domain.GenerationRequest) (string, error) {
		return sql, nil
	})
}

func newService(t *testing.T, gen domain.TextGenerator, exec domain.ScalarQuerier) (*Service, *memoryAudit) {
	t.Helper()
	reg, err := registry.Load(metadata.Catalog, metadata.CatalogDir)
	require.NoError(t, err)

	results := cache.New(time.Minute, 64)
	t.Cleanup(results.Stop)

	svc := NewService(reg, gen, exec, results, discardLogger())
	sink := &memoryAudit{}
	svc.SetAudit(sink)
	return svc, sink
}

const revenueLastMonth = `{"metric":"revenue","time_range":"last_month","dimensions":[],"requested_filters":[]}`

func TestQuery_ComputedThenCached(t *testing.T) {
	exec := &fakeQuerier{value: 1234.5}
	svc, sink := newService(t, templateGen(), exec)
	ctx := context.Background()

	first, err := svc.Query(ctx, []byte(revenueLastMonth))
	require.NoError(t, err)
	assert.Equal(t, domain.SourceComputed, first.Source)
	assert.Equal(t, 1234.5, first.Result)
	assert.Contains(t, first.SQL, "orders.status = 'COMPLETED'")
	assert.Contains(t, first.SQL, "LIMIT 100")
	assert.Equal(t, "revenue (v1)", first.Explanation.Metric)
	assert.Equal(t, "orders.status = 'COMPLETED'", first.Explanation.FiltersApplied)
	assert.Equal(t, domain.OutcomeComputed, sink.Last(t).Outcome)
	assert.Equal(t, first.SQL, sink.Last(t).SQL)

	second, err := svc.Query(ctx, []byte(revenueLastMonth))
	require.NoError(t, err)
	assert.Equal(t, domain.SourceCache, second.Source)
	assert.Equal(t, 1234.5, second.Result)
	assert.Empty(t, second.SQL)
	assert.Equal(t, first.Explanation, second.Explanation)
	assert.Equal(t, domain.OutcomeCache, sink.Last(t).Outcome)

	assert.Len(t, exec.Calls(), 1)

	explained, err := svc.Explain(ctx, []byte(revenueLastMonth))
	require.NoError(t, err)
	assert.Equal(t, "orders", explained.Plan.FactTable)
	assert.Equal(t, domain.AggregationSum, explained.Plan.Aggregation)
	assert.Contains(t, explained.Plan.Filters, domain.FilterPlan{
		Column: "orders.status", Operator: "=", Value: domain.StringLiteral("COMPLETED"),
	})
	assert.Equal(t, "revenue:v1|last_month|dims=|filters=", explained.CacheKey)
}

func TestQuery_ForbiddenFilterRejected(t *testing.T) {
	exec := &fakeQuerier{}
	svc, sink := newService(t, failingGen(t), exec)

	_, err := svc.Query(context.Background(), []byte(
		`{"metric":"revenue","version":"v1","time_range":"last_month","requested_filters":["internal_account"]}`))
	require.Error(t, err)

	var v *domain.IntentViolation
	require.True(t, errors.As(err, &v))
	assert.Equal(t, domain.FilterForbidden, v.Kind)
	assert.Equal(t, domain.FilterInternalAccount, v.Filter)
	assert.Empty(t, exec.Calls())

	entry := sink.Last(t)
	assert.Equal(t, domain.OutcomeRejected, entry.Outcome)
	assert.Equal(t, "FilterForbidden", entry.ErrorKind)
	assert.Equal(t, "revenue", entry.Metric)
	assert.Empty(t, entry.SQL)
}

func TestQuery_CustomTimeRangeUnsupported(t *testing.T) {
	payloads := []string{
		`{"metric":"revenue","time_range":"custom"}`,
		`{"metric":"revenue","version":"v2","time_range":"custom","dimensions":["region"],"requested_filters":["region"]}`,
		`{"metric":"orders_count","time_range":"custom","requested_filters":["product"]}`,
	}
	for _, p := range payloads {
		svc, _ := newService(t, failingGen(t), &fakeQuerier{})
		_, err := svc.Query(context.Background(), []byte(p))
		assert.Equal(t, "UnsupportedTimeRange", domain.ErrorKind(err), p)

		_, err = svc.Explain(context.Background(), []byte(p))
		assert.Equal(t, "UnsupportedTimeRange", domain.ErrorKind(err), p)
	}
}

// === Safety boundary ===

func TestQuery_AdversarialGeneratorNeverReachesDatabase(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		kind domain.SQLViolationKind
	}{
		{"drop", "DROP TABLE orders", domain.DestructiveOperation},
		{"piggyback", "SELECT 1 FROM orders LIMIT 1; DELETE FROM orders", domain.DestructiveOperation},
		{"cte_delete", "WITH gone AS (DELETE FROM orders RETURNING *) SELECT COUNT(*) FROM gone LIMIT 1", domain.DestructiveOperation},
		{"no_limit", "SELECT SUM(amount) FROM orders", domain.LimitRequired},
		{"cross_join", "SELECT 1 FROM orders CROSS JOIN users LIMIT 1", domain.CrossJoinNotAllowed},
		{"subquery", "SELECT (SELECT MAX(amount) FROM orders) AS value LIMIT 1", domain.SubqueryNotAllowed},
		{"pragma", "PRAGMA table_info('orders')", domain.NotSelectOnly},
		{"table_function", "SELECT COUNT(*) AS value FROM read_csv('/etc/passwd') LIMIT 1", domain.NotSelectOnly},
		{"table_outside_plan", "SELECT COUNT(*) AS value FROM audit_log LIMIT 1", domain.NotSelectOnly},
		{"limit_null", "SELECT SUM(amount) AS value FROM orders LIMIT NULL", domain.LimitRequired},
		{"prose", "Sure! Here is your query:", domain.SyntaxError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := &fakeQuerier{value: 1}
			svc, sink := newService(t, fixedGen(tt.sql), exec)
			before := testutil.ToFloat64(metrics.SQLViolations.WithLabelValues(string(tt.kind)))

			_, err := svc.Query(context.Background(), []byte(revenueLastMonth))
			require.Error(t, err)

			var v *domain.SQLViolation
			require.True(t, errors.As(err, &v), "got %v", err)
			assert.Equal(t, tt.kind, v.Kind)
			assert.Empty(t, exec.Calls())

			entry := sink.Last(t)
			assert.Equal(t, domain.OutcomeRejected, entry.Outcome)
			assert.Equal(t, tt.sql, entry.SQL)
			assert.Equal(t, before+1, testutil.ToFloat64(metrics.SQLViolations.WithLabelValues(string(tt.kind))))
		})
	}
}

func TestQuery_RejectionIsNotCached(t *testing.T) {
	var calls int
	gen := sqlgen.GeneratorFunc(func(context.Context, domain.GenerationRequest) (string, error) {
		calls++
		if calls == 1 {
			return "SELECT 1", nil
		}
		return "SELECT 1 AS value LIMIT 1", nil
	})
	exec := &fakeQuerier{value: 9}
	svc, _ := newService(t, gen, exec)

	_, err := svc.Query(context.Background(), []byte(revenueLastMonth))
	assert.Equal(t, "LimitRequired", domain.ErrorKind(err))

	resp, err := svc.Query(context.Background(), []byte(revenueLastMonth))
	require.NoError(t, err)
	assert.Equal(t, domain.SourceComputed, resp.Source)
	assert.Equal(t, []string{"SELECT 1 AS value LIMIT 1"}, exec.Calls())
}

func TestQuery_GenerationFailures(t *testing.T) {
	tests := []struct {
		name string
		gen  domain.TextGenerator
		kind string
	}{
		{"error", sqlgen.GeneratorFunc(func(context.Context, domain.GenerationRequest) (string, error) {
			return "", errors.New("model overloaded")
		}), "SqlGenerationFailed"},
		{"blank", fixedGen("  \n"), "EmptyGeneration"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := &fakeQuerier{}
			svc, sink := newService(t, tt.gen, exec)

			_, err := svc.Query(context.Background(), []byte(revenueLastMonth))
			assert.Equal(t, tt.kind, domain.ErrorKind(err))
			assert.Empty(t, exec.Calls())
			assert.Equal(t, domain.OutcomeError, sink.Last(t).Outcome)
		})
	}
}

func TestQuery_ExecutionFailureIsNotCached(t *testing.T) {
	exec := &fakeQuerier{err: &domain.ExecutionError{Kind: domain.QueryTimeout}}
	svc, sink := newService(t, templateGen(), exec)

	_, err := svc.Query(context.Background(), []byte(revenueLastMonth))
	assert.Equal(t, "QueryTimeout", domain.ErrorKind(err))
	assert.Equal(t, domain.OutcomeError, sink.Last(t).Outcome)
	assert.NotEmpty(t, sink.Last(t).SQL)

	exec.mu.Lock()
	exec.err, exec.value = nil, 5
	exec.mu.Unlock()

	resp, err := svc.Query(context.Background(), []byte(revenueLastMonth))
	require.NoError(t, err)
	assert.Equal(t, domain.SourceComputed, resp.Source)
	assert.Len(t, exec.Calls(), 2)
}

// === Cache semantics ===

func TestQuery_CacheKeyIgnoresOrder(t *testing.T) {
	exec := &fakeQuerier{value: 3}
	svc, _ := newService(t, templateGen(), exec)
	ctx := context.Background()

	_, err := svc.Query(ctx, []byte(`{"metric":"revenue","time_range":"last_week","dimensions":["region","product"],"requested_filters":["region","status"]}`))
	require.NoError(t, err)

	resp, err := svc.Query(ctx, []byte(`{"metric":"revenue","time_range":"last_week","dimensions":["product","region"],"requested_filters":["status","region"]}`))
	require.NoError(t, err)
	assert.Equal(t, domain.SourceCache, resp.Source)
	assert.Len(t, exec.Calls(), 1)
}

func TestQuery_VersionsDoNotShareCache(t *testing.T) {
	exec := &fakeQuerier{value: 1}
	svc, _ := newService(t, templateGen(), exec)
	ctx := context.Background()

	v1, err := svc.Query(ctx, []byte(`{"metric":"revenue","version":"v1","time_range":"last_month"}`))
	require.NoError(t, err)
	v2, err := svc.Query(ctx, []byte(`{"metric":"revenue","version":"v2","time_range":"last_month"}`))
	require.NoError(t, err)

	assert.Equal(t, domain.SourceComputed, v2.Source)
	assert.NotEqual(t, v1.SQL, v2.SQL)
	assert.Contains(t, v2.SQL, "orders.amount - orders.refund_amount")

	// The default version resolves to v1 and shares its entry.
	def, err := svc.Query(ctx, []byte(revenueLastMonth))
	require.NoError(t, err)
	assert.Equal(t, domain.SourceCache, def.Source)
	assert.Len(t, exec.Calls(), 2)
}

// === Extraction and audit ===

func TestQuery_ExtractionRejections(t *testing.T) {
	tests := []struct {
		payload string
		kind    string
	}{
		{`{"question":"what was revenue last month?"}`, "FreeTextNotAccepted"},
		{`{"status":"UNKNOWN"}`, "IntentExtractionFailed"},
		{`{"metric":"profit","time_range":"last_month"}`, "IntentExtractionFailed"},
		{`not json`, "IntentExtractionFailed"},
	}
	for _, tt := range tests {
		svc, sink := newService(t, failingGen(t), &fakeQuerier{})
		_, err := svc.Query(context.Background(), []byte(tt.payload))
		assert.Equal(t, tt.kind, domain.ErrorKind(err), tt.payload)
		assert.Equal(t, domain.OutcomeRejected, sink.Last(t).Outcome)
	}
}

func TestQuery_AuditCarriesCaller(t *testing.T) {
	svc, sink := newService(t, templateGen(), &fakeQuerier{value: 2})

	ctx := domain.WithRequestID(context.Background(), "req-42")
	ctx = domain.WithPrincipal(ctx, domain.ContextPrincipal{Name: "analyst", Type: "user"})
	_, err := svc.Query(ctx, []byte(revenueLastMonth))
	require.NoError(t, err)

	entry := sink.Last(t)
	assert.Equal(t, "req-42", entry.RequestID)
	assert.Equal(t, "analyst", entry.Principal)
	assert.Equal(t, "revenue", entry.Metric)
	assert.Equal(t, "v1", entry.Version)
	assert.Equal(t, "last_month", entry.TimeRange)
	assert.GreaterOrEqual(t, entry.DurationMs, int64(0))
}

func TestQuery_AuditFailureIsIgnored(t *testing.T) {
	svc, sink := newService(t, templateGen(), &fakeQuerier{value: 2})
	sink.err = errors.New("disk full")

	resp, err := svc.Query(context.Background(), []byte(revenueLastMonth))
	require.NoError(t, err)
	assert.Equal(t, 2.0, resp.Result)
}

func TestQuery_GeneratorSeesOnlyThePlan(t *testing.T) {
	var seen domain.GenerationRequest
	gen := sqlgen.GeneratorFunc(func(_ context.Context, req domain.GenerationRequest) (string, error) {
		seen = req
		return "SELECT 1 AS value LIMIT 1", nil
	})
	svc, _ := newService(t, gen, &fakeQuerier{})

	ctx := domain.WithPrincipal(context.Background(), domain.ContextPrincipal{Name: "secret-user"})
	_, err := svc.Query(ctx, []byte(`{"metric":"revenue","time_range":"last_quarter","dimensions":["user_city"],"requested_filters":["product"]}`))
	require.NoError(t, err)

	assert.Equal(t, domain.GenerationRequest{
		Aggregation:       "SUM",
		MeasureExpression: "orders.amount",
		FactTable:         "orders",
		Joins:             []domain.JoinDefinition{{Left: "orders.user_id", Right: "users.user_id", Type: domain.JoinLeft}},
		TimeColumn:        "orders.order_date",
		TimeRange:         domain.TimeRangeLastQuarter,
		Filters: []domain.FilterPlan{
			{Column: "orders.status", Operator: "=", Value: domain.StringLiteral("COMPLETED")},
			{Column: "product", Operator: "IS NOT", Value: domain.NullLiteral()},
		},
		GroupBy: []string{"user_city"},
	}, seen)
}

func TestIsRejection(t *testing.T) {
	assert.True(t, IsRejection(domain.ErrViolation(domain.PiiExposure, "x")))
	assert.True(t, IsRejection(domain.ErrSQLViolation(domain.LimitRequired, "x")))
	assert.True(t, IsRejection(domain.ErrNotFound("x")))
	assert.False(t, IsRejection(&domain.ExecutionError{Kind: domain.QueryTimeout}))
	assert.False(t, IsRejection(&domain.GenerationError{Kind: domain.EmptyGeneration}))
	assert.False(t, IsRejection(errors.New("boom")))
}
