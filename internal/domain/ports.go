package domain

import (
	"context"
	"time"
)

// GenerationRequest is everything a SQL generator is allowed to see: a plain
// projection of a QueryPlan. It never carries credentials, caller identity, or
// free text.
type GenerationRequest struct {
	Aggregation       string           `json:"aggregation"` // upper-cased, e.g. SUM
	MeasureExpression string           `json:"measure_expression"`
	FactTable         string           `json:"fact_table"`
	Joins             []JoinDefinition `json:"joins"`
	TimeColumn        string           `json:"time_column"`
	TimeRange         TimeRange        `json:"time_range"`
	Filters           []FilterPlan     `json:"filters"`
	GroupBy           []string         `json:"group_by"`
}

// TextGenerator turns a generation request into SQL text. Its output is
// untrusted. Implemented by sqlgen.TemplateGenerator and
// sqlgen.AnthropicGenerator.
type TextGenerator interface {
	GenerateSQL(ctx context.Context, req GenerationRequest) (string, error)
}

// ScalarQuerier runs a validated read-only statement and returns its scalar
// result. Implemented by executor.Executor.
type ScalarQuerier interface {
	Scalar(ctx context.Context, sql string) (float64, error)
}

// ResultCache stores scalar results under a semantic key.
// Implemented by cache.Cache.
type ResultCache interface {
	Get(key string) (float64, bool)
	Set(key string, value float64)
}

// Audit outcomes.
const (
	OutcomeCache    = "cache"
	OutcomeComputed = "computed"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// AuditEntry records one gateway request.
type AuditEntry struct {
	ID         int64
	RequestID  string
	Principal  string
	Metric     string
	Version    string
	TimeRange  string
	Outcome    string
	ErrorKind  string
	SQL        string
	DurationMs int64
	CreatedAt  time.Time
}

// AuditSink persists audit entries. Implemented by audit.Store.
type AuditSink interface {
	Record(ctx context.Context, e AuditEntry) error
}
