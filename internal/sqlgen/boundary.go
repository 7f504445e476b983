// Package sqlgen turns query plans into SQL text.
//
// Generators only assemble syntax. They receive a plain projection of the
// plan, never the caller's identity or free text, and their output is
// treated as untrusted until sqlguard accepts it.
package sqlgen

import (
	"context"
	"strings"

	"metricgate/internal/domain"
)

// GeneratorFunc adapts a function to domain.TextGenerator.
type GeneratorFunc func(ctx context.Context, req domain.GenerationRequest) (string, error)

// GenerateSQL calls f.
func (f GeneratorFunc) GenerateSQL(ctx context.Context, req domain.GenerationRequest) (string, error) {
	return f(ctx, req)
}

// Project builds the generation request for a plan. Slices are copied so a
// generator cannot mutate the plan.
func Project(plan domain.QueryPlan) domain.GenerationRequest {
	return domain.GenerationRequest{
		Aggregation:       plan.Aggregation.SQL(),
		MeasureExpression: plan.MeasureExpression,
		FactTable:         plan.FactTable,
		Joins:             append([]domain.JoinDefinition{}, plan.Joins...),
		TimeColumn:        plan.TimeColumn,
		TimeRange:         plan.TimeRange,
		Filters:           append([]domain.FilterPlan{}, plan.Filters...),
		GroupBy:           append([]string{}, plan.GroupBy...),
	}
}

// Boundary wraps a generator with the error contract the gateway relies on.
type Boundary struct {
	gen domain.TextGenerator
}

// NewBoundary creates a Boundary around gen.
func NewBoundary(gen domain.TextGenerator) *Boundary {
	return &Boundary{gen: gen}
}

// Generate asks the generator for SQL. Generator errors become
// SqlGenerationFailed and blank output becomes EmptyGeneration. The text is
// trimmed and otherwise returned as-is.
func (b *Boundary) Generate(ctx context.Context, plan domain.QueryPlan) (string, error) {
	sql, err := b.gen.GenerateSQL(ctx, Project(plan))
	if err != nil {
		return "", &domain.GenerationError{Kind: domain.SqlGenerationFailed, Err: err}
	}
	sql = strings.TrimSpace(sql)
	if sql == "" {
		return "", &domain.GenerationError{Kind: domain.EmptyGeneration}
	}
	return sql, nil
}
