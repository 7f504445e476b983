// Package planner compiles validated intents into deterministic query plans
// and renders the explanation that accompanies every result.
package planner

import (
	"strings"

	"metricgate/internal/domain"
)

// OpIsNot is the operator used for caller-requested presence filters.
const OpIsNot = "IS NOT"

// Build compiles a validated intent and its resolved metric into a QueryPlan.
// It never fails: every rejection has already happened during validation.
// Identical inputs always produce identical plans.
func Build(in *domain.Intent, metric *domain.MetricDefinition) domain.QueryPlan {
	joins := make([]domain.JoinDefinition, len(metric.Joins))
	copy(joins, metric.Joins)

	filters := make([]domain.FilterPlan, 0, len(metric.RequiredFilters)+len(in.RequestedFilters))
	for _, rf := range metric.RequiredFilters {
		filters = append(filters, domain.FilterPlan{
			Column:   rf.Column,
			Operator: string(rf.Operator),
			Value:    rf.Value,
		})
	}
	for _, f := range in.RequestedFilters {
		filters = append(filters, domain.FilterPlan{
			Column:   string(f),
			Operator: OpIsNot,
			Value:    domain.NullLiteral(),
		})
	}

	groupBy := make([]string, 0, len(in.Dimensions))
	for _, d := range in.Dimensions {
		groupBy = append(groupBy, string(d))
	}

	var tr domain.TimeRange
	if in.TimeRange != nil {
		tr = *in.TimeRange
	}

	return domain.QueryPlan{
		MetricName:        metric.Name,
		MetricVersion:     metric.Version,
		FactTable:         metric.Tables.Fact,
		Joins:             joins,
		MeasureExpression: metric.Measure.Expression,
		Aggregation:       metric.Measure.Aggregation,
		Filters:           filters,
		GroupBy:           groupBy,
		TimeColumn:        metric.TimeColumn,
		TimeRange:         tr,
	}
}

// Explain renders the human-readable explanation for a plan. Only the
// metric's required filters are listed; caller-requested presence filters
// show up in the plan and the generated SQL.
func Explain(metric *domain.MetricDefinition, plan domain.QueryPlan) domain.Explanation {
	return domain.Explanation{
		Metric:         string(metric.Name) + " (" + string(metric.Version) + ")",
		Description:    metric.Description,
		TimeRange:      string(plan.TimeRange),
		Grain:          metric.Grain,
		Aggregation:    plan.Aggregation.SQL() + "(" + plan.MeasureExpression + ")",
		FiltersApplied: requiredFilters(metric.RequiredFilters),
		GroupedBy:      joinOrNone(plan.GroupBy, ", "),
		DataSources:    strings.Join(metric.DataSources(), ", "),
	}
}

func requiredFilters(filters []domain.FilterDefinition) string {
	parts := make([]string, 0, len(filters))
	for _, f := range filters {
		parts = append(parts, f.Column+" "+string(f.Operator)+" "+f.Value.SQL())
	}
	return joinOrNone(parts, "; ")
}

func joinOrNone(parts []string, sep string) string {
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, sep)
}
