package planner

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metricgate/internal/domain"
	"metricgate/internal/registry"
	"metricgate/metadata"
)

func metric(t *testing.T, name domain.MetricName, version domain.MetricVersion) *domain.MetricDefinition {
	t.Helper()
	reg, err := registry.Load(metadata.Catalog, metadata.CatalogDir)
	require.NoError(t, err)
	m, err := reg.Get(name, &version)
	require.NoError(t, err)
	return m
}

func lastMonth() *domain.TimeRange {
	tr := domain.TimeRangeLastMonth
	return &tr
}

func TestBuild_RevenueV1(t *testing.T) {
	m := metric(t, domain.MetricRevenue, domain.VersionV1)
	plan := Build(&domain.Intent{
		Metric:     domain.MetricRevenue,
		TimeRange:  lastMonth(),
		Dimensions: []domain.Dimension{domain.DimensionRegion},
	}, m)

	assert.Equal(t, "orders", plan.FactTable)
	assert.Equal(t, domain.AggregationSum, plan.Aggregation)
	assert.Equal(t, domain.VersionV1, plan.MetricVersion)
	assert.Equal(t, []string{"region"}, plan.GroupBy)
	require.NotEmpty(t, plan.Filters)
	assert.Equal(t, domain.FilterPlan{
		Column:   "orders.status",
		Operator: "=",
		Value:    domain.StringLiteral("COMPLETED"),
	}, plan.Filters[0])
	assert.Equal(t, m.Joins, plan.Joins)
	assert.Equal(t, "orders.order_date", plan.TimeColumn)
	assert.Equal(t, domain.TimeRangeLastMonth, plan.TimeRange)
}

func TestBuild_FilterOrder(t *testing.T) {
	m := metric(t, domain.MetricRevenue, domain.VersionV2)
	plan := Build(&domain.Intent{
		Metric:           domain.MetricRevenue,
		TimeRange:        lastMonth(),
		RequestedFilters: []domain.FilterIntent{domain.FilterProduct, domain.FilterRegion},
	}, m)

	cols := make([]string, len(plan.Filters))
	for i, f := range plan.Filters {
		cols[i] = f.Column
	}
	assert.Equal(t, []string{"orders.status", "orders.amount", "product", "region"}, cols)
	assert.Equal(t, OpIsNot, plan.Filters[2].Operator)
	assert.Equal(t, domain.NullLiteral(), plan.Filters[3].Value)
}

func TestBuild_UsesResolvedVersion(t *testing.T) {
	m := metric(t, domain.MetricRevenue, domain.VersionV1)
	plan := Build(&domain.Intent{Metric: domain.MetricRevenue, TimeRange: lastMonth()}, m)
	assert.Equal(t, domain.VersionV1, plan.MetricVersion)
}

func TestBuild_Deterministic(t *testing.T) {
	m := metric(t, domain.MetricRevenue, domain.VersionV1)
	in := &domain.Intent{
		Metric:           domain.MetricRevenue,
		TimeRange:        lastMonth(),
		Dimensions:       []domain.Dimension{domain.DimensionUserCity, domain.DimensionRegion},
		RequestedFilters: []domain.FilterIntent{domain.FilterRegion},
	}

	first, err := json.Marshal(Build(in, m))
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := json.Marshal(Build(in, m))
		require.NoError(t, err)
		assert.Equal(t, string(first), string(again))
	}
}

func TestBuild_DoesNotAliasDefinition(t *testing.T) {
	m := metric(t, domain.MetricRevenue, domain.VersionV1)
	plan := Build(&domain.Intent{Metric: domain.MetricRevenue, TimeRange: lastMonth()}, m)

	plan.Joins[0].Type = domain.JoinInner
	assert.Equal(t, domain.JoinLeft, m.Joins[0].Type)
}

func TestBuild_EmptyListsSerializeAsArrays(t *testing.T) {
	m := metric(t, domain.MetricOrdersCount, domain.VersionV1)
	b, err := json.Marshal(Build(&domain.Intent{Metric: domain.MetricOrdersCount, TimeRange: lastMonth()}, m))
	require.NoError(t, err)
	assert.Contains(t, string(b), `"joins":[]`)
	assert.Contains(t, string(b), `"filters":[]`)
	assert.Contains(t, string(b), `"group_by":[]`)
}

func TestExplain(t *testing.T) {
	m := metric(t, domain.MetricRevenue, domain.VersionV1)
	plan := Build(&domain.Intent{
		Metric:     domain.MetricRevenue,
		TimeRange:  lastMonth(),
		Dimensions: []domain.Dimension{domain.DimensionRegion, domain.DimensionProduct},
	}, m)

	assert.Equal(t, domain.Explanation{
		Metric:         "revenue (v1)",
		Description:    "Gross revenue from completed orders.",
		TimeRange:      "last_month",
		Grain:          "orders.order_id",
		Aggregation:    "SUM(orders.amount)",
		FiltersApplied: "orders.status = 'COMPLETED'",
		GroupedBy:      "region, product",
		DataSources:    "orders, users",
	}, Explain(m, plan))
}

func TestExplain_NoFiltersNoGrouping(t *testing.T) {
	m := metric(t, domain.MetricOrdersCount, domain.VersionV1)
	plan := Build(&domain.Intent{Metric: domain.MetricOrdersCount, TimeRange: lastMonth()}, m)
	e := Explain(m, plan)

	assert.Equal(t, "none", e.FiltersApplied)
	assert.Equal(t, "none", e.GroupedBy)
	assert.Equal(t, "COUNT(orders.order_id)", e.Aggregation)
	assert.Equal(t, "orders", e.DataSources)
}

func TestExplain_NumericFilterIsBare(t *testing.T) {
	m := metric(t, domain.MetricRevenue, domain.VersionV2)
	plan := Build(&domain.Intent{Metric: domain.MetricRevenue, TimeRange: lastMonth()}, m)
	assert.Equal(t, "orders.status = 'COMPLETED'; orders.amount > 0", Explain(m, plan).FiltersApplied)
}
