// Package gateway runs the query pipeline: extract, validate, plan, look up
// the semantic cache, and on a miss generate, check and execute SQL.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"metricgate/internal/cache"
	"metricgate/internal/domain"
	"metricgate/internal/intent"
	"metricgate/internal/metrics"
	"metricgate/internal/planner"
	"metricgate/internal/sqlgen"
	"metricgate/internal/sqlguard"
)

// Service answers intents with governed scalar results.
type Service struct {
	validator *intent.Validator
	boundary  *sqlgen.Boundary
	executor  domain.ScalarQuerier
	results   domain.ResultCache
	audit     domain.AuditSink
	logger    *slog.Logger
}

// NewService creates a Service. Every statement gen produces passes sqlguard
// before exec sees it.
func NewService(metricSource intent.MetricSource, gen domain.TextGenerator, exec domain.ScalarQuerier, results domain.ResultCache, logger *slog.Logger) *Service {
	return &Service{
		validator: intent.NewValidator(metricSource),
		boundary:  sqlgen.NewBoundary(gen),
		executor:  exec,
		results:   results,
		logger:    logger.With("component", "gateway"),
	}
}

// SetAudit configures the audit sink.
// This is optional; without it no audit entries are written.
func (s *Service) SetAudit(sink domain.AuditSink) {
	s.audit = sink
}

// Query runs the full pipeline for a JSON intent payload.
func (s *Service) Query(ctx context.Context, payload []byte) (*domain.QueryResponse, error) {
	start := time.Now()
	entry := domain.AuditEntry{RequestID: domain.RequestIDFromContext(ctx)}
	if p, ok := domain.PrincipalFromContext(ctx); ok {
		entry.Principal = p.Name
	}

	resp, err := s.query(ctx, payload, &entry)

	entry.DurationMs = time.Since(start).Milliseconds()
	switch {
	case err == nil:
		entry.Outcome = resp.Source
	case IsRejection(err):
		entry.Outcome = domain.OutcomeRejected
		entry.ErrorKind = domain.ErrorKind(err)
	default:
		entry.Outcome = domain.OutcomeError
		entry.ErrorKind = domain.ErrorKind(err)
	}
	metrics.QueryOutcomes.WithLabelValues(entry.Outcome, entry.ErrorKind).Inc()
	s.record(ctx, entry)

	log := s.logger.With("request_id", entry.RequestID, "metric", entry.Metric,
		"version", entry.Version, "outcome", entry.Outcome, "duration_ms", entry.DurationMs)
	if err != nil {
		log.Info("query failed", "kind", entry.ErrorKind, "error", err)
		return nil, err
	}
	log.Info("query answered")
	return resp, nil
}

func (s *Service) query(ctx context.Context, payload []byte, entry *domain.AuditEntry) (*domain.QueryResponse, error) {
	in, metric, err := s.resolve(payload, entry)
	if err != nil {
		return nil, err
	}

	plan := planner.Build(in, metric)
	explanation := planner.Explain(metric, plan)

	key := cache.Key(in, metric.Version)
	if value, ok := s.results.Get(key); ok {
		metrics.CacheLookups.WithLabelValues(metrics.CacheHit).Inc()
		return &domain.QueryResponse{
			Source:      domain.SourceCache,
			Result:      value,
			Explanation: explanation,
		}, nil
	}
	metrics.CacheLookups.WithLabelValues(metrics.CacheMiss).Inc()

	var sql string
	err = observe(metrics.StageGenerate, func() error {
		sql, err = s.boundary.Generate(ctx, plan)
		return err
	})
	if err != nil {
		return nil, err
	}
	entry.SQL = sql

	err = observe(metrics.StageValidate, func() error {
		return sqlguard.Validate(sql, sqlguard.AllowTables(planTables(plan)...))
	})
	if err != nil {
		kind := domain.ErrorKind(err)
		metrics.SQLViolations.WithLabelValues(kind).Inc()
		s.logger.Warn("generated sql rejected", "request_id", entry.RequestID, "kind", kind, "sql", sql)
		return nil, err
	}

	var result float64
	err = observe(metrics.StageExecute, func() error {
		result, err = s.executor.Scalar(ctx, sql)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.results.Set(key, result)
	return &domain.QueryResponse{
		Source:      domain.SourceComputed,
		SQL:         sql,
		Result:      result,
		Explanation: explanation,
	}, nil
}

// Explain returns the plan, cache key and explanation for a payload without
// generating or executing SQL.
func (s *Service) Explain(ctx context.Context, payload []byte) (*domain.ExplainResponse, error) {
	var entry domain.AuditEntry
	in, metric, err := s.resolve(payload, &entry)
	if err != nil {
		s.logger.DebugContext(ctx, "explain rejected", "kind", domain.ErrorKind(err), "error", err)
		return nil, err
	}

	plan := planner.Build(in, metric)
	return &domain.ExplainResponse{
		Plan:        plan,
		CacheKey:    cache.Key(in, metric.Version),
		Explanation: planner.Explain(metric, plan),
	}, nil
}

// resolve extracts and validates the intent, filling entry as it learns more.
func (s *Service) resolve(payload []byte, entry *domain.AuditEntry) (*domain.Intent, *domain.MetricDefinition, error) {
	in, err := intent.Extract(payload)
	if err != nil {
		return nil, nil, err
	}
	entry.Metric = string(in.Metric)
	if in.Version != nil {
		entry.Version = string(*in.Version)
	}
	if in.TimeRange != nil {
		entry.TimeRange = string(*in.TimeRange)
	}

	metric, err := s.validator.Validate(in)
	if err != nil {
		return nil, nil, err
	}
	entry.Version = string(metric.Version)
	return in, metric, nil
}

// record writes entry to the audit sink. Failures are logged and dropped.
func (s *Service) record(ctx context.Context, entry domain.AuditEntry) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(context.WithoutCancel(ctx), entry); err != nil {
		s.logger.Warn("audit record failed", "request_id", entry.RequestID, "error", err)
	}
}

// planTables lists the tables the generated SQL may read for plan.
func planTables(plan domain.QueryPlan) []string {
	tables := []string{plan.FactTable}
	for _, j := range plan.Joins {
		tables = append(tables, j.RightTable())
	}
	return tables
}

func observe(stage string, fn func() error) error {
	start := time.Now()
	err := fn()
	metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	return err
}

// IsRejection reports whether err is a refusal of the caller's request rather
// than a failure of the gateway or its dependencies.
func IsRejection(err error) bool {
	var (
		extraction *domain.ExtractionError
		violation  *domain.IntentViolation
		unsafe     *domain.SQLViolation
		notFound   *domain.NotFoundError
		validation *domain.ValidationError
	)
	return errors.As(err, &extraction) ||
		errors.As(err, &violation) ||
		errors.As(err, &unsafe) ||
		errors.As(err, &notFound) ||
		errors.As(err, &validation)
}
