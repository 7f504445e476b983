// Package domain defines the core types, ports, and errors of the query gateway.
package domain

import "strings"

// MetricName identifies a business metric in the catalog.
type MetricName string

const (
	MetricRevenue     MetricName = "revenue"
	MetricOrdersCount MetricName = "orders_count"
)

// Valid reports whether m is a known metric name.
func (m MetricName) Valid() bool {
	switch m {
	case MetricRevenue, MetricOrdersCount:
		return true
	}
	return false
}

// MetricVersion identifies a revision of a metric definition.
type MetricVersion string

const (
	VersionV1 MetricVersion = "v1"
	VersionV2 MetricVersion = "v2"
)

// Valid reports whether v is a known metric version.
func (v MetricVersion) Valid() bool {
	switch v {
	case VersionV1, VersionV2:
		return true
	}
	return false
}

// TimeRange is a named reporting window.
type TimeRange string

const (
	TimeRangeLastWeek    TimeRange = "last_week"
	TimeRangeLastMonth   TimeRange = "last_month"
	TimeRangeLastQuarter TimeRange = "last_quarter"
	TimeRangeCustom      TimeRange = "custom"
)

// Valid reports whether t is a known time range label.
func (t TimeRange) Valid() bool {
	switch t {
	case TimeRangeLastWeek, TimeRangeLastMonth, TimeRangeLastQuarter, TimeRangeCustom:
		return true
	}
	return false
}

// Dimension is a grouping attribute a caller may break a metric down by.
type Dimension string

const (
	DimensionRegion   Dimension = "region"
	DimensionProduct  Dimension = "product"
	DimensionUserCity Dimension = "user_city"
)

// Valid reports whether d is a known dimension.
func (d Dimension) Valid() bool {
	switch d {
	case DimensionRegion, DimensionProduct, DimensionUserCity:
		return true
	}
	return false
}

// FilterIntent names a filter a caller asks to apply.
type FilterIntent string

const (
	FilterRegion          FilterIntent = "region"
	FilterProduct         FilterIntent = "product"
	FilterInternalAccount FilterIntent = "internal_account"
	FilterRefundStatus    FilterIntent = "refund_status"
)

// Valid reports whether f is a known filter name.
func (f FilterIntent) Valid() bool {
	switch f {
	case FilterRegion, FilterProduct, FilterInternalAccount, FilterRefundStatus:
		return true
	}
	return false
}

// Aggregation is the aggregate function applied to a measure expression.
type Aggregation string

const (
	AggregationSum   Aggregation = "sum"
	AggregationCount Aggregation = "count"
	AggregationAvg   Aggregation = "avg"
	AggregationMin   Aggregation = "min"
	AggregationMax   Aggregation = "max"
)

// Valid reports whether a is a supported aggregation.
func (a Aggregation) Valid() bool {
	switch a {
	case AggregationSum, AggregationCount, AggregationAvg, AggregationMin, AggregationMax:
		return true
	}
	return false
}

// SQL returns the upper-cased SQL function name.
func (a Aggregation) SQL() string { return strings.ToUpper(string(a)) }

// Operator is a comparison operator used by required filters.
type Operator string

const (
	OpEq  Operator = "="
	OpNeq Operator = "!="
	OpGt  Operator = ">"
	OpGte Operator = ">="
	OpLt  Operator = "<"
	OpLte Operator = "<="
)

// Valid reports whether o is a supported comparison operator.
func (o Operator) Valid() bool {
	switch o {
	case OpEq, OpNeq, OpGt, OpGte, OpLt, OpLte:
		return true
	}
	return false
}

// JoinType is the kind of join between the fact table and a dimension table.
type JoinType string

const (
	JoinInner JoinType = "inner"
	JoinLeft  JoinType = "left"
	JoinRight JoinType = "right"
)

// Valid reports whether j is a supported join type.
func (j JoinType) Valid() bool {
	switch j {
	case JoinInner, JoinLeft, JoinRight:
		return true
	}
	return false
}

// SQL returns the join keyword, e.g. "LEFT JOIN".
func (j JoinType) SQL() string {
	switch j {
	case JoinLeft:
		return "LEFT JOIN"
	case JoinRight:
		return "RIGHT JOIN"
	default:
		return "JOIN"
	}
}

type enum interface {
	~string
	Valid() bool
}

func parseEnum[T enum](kind, s string) (T, error) {
	v := T(s)
	if !v.Valid() {
		var zero T
		return zero, ErrValidation("unknown %s %q", kind, s)
	}
	return v, nil
}

// ParseMetricName validates s as a MetricName.
func ParseMetricName(s string) (MetricName, error) { return parseEnum[MetricName]("metric", s) }

// ParseMetricVersion validates s as a MetricVersion.
func ParseMetricVersion(s string) (MetricVersion, error) {
	return parseEnum[MetricVersion]("metric version", s)
}

// ParseTimeRange validates s as a TimeRange.
func ParseTimeRange(s string) (TimeRange, error) { return parseEnum[TimeRange]("time range", s) }

// ParseDimension validates s as a Dimension.
func ParseDimension(s string) (Dimension, error) { return parseEnum[Dimension]("dimension", s) }

// ParseFilterIntent validates s as a FilterIntent.
func ParseFilterIntent(s string) (FilterIntent, error) {
	return parseEnum[FilterIntent]("filter", s)
}

// ParseAggregation validates s as an Aggregation. Matching is case-insensitive.
func ParseAggregation(s string) (Aggregation, error) {
	return parseEnum[Aggregation]("aggregation", strings.ToLower(strings.TrimSpace(s)))
}

// ParseJoinType validates s as a JoinType. Matching is case-insensitive.
func ParseJoinType(s string) (JoinType, error) {
	return parseEnum[JoinType]("join type", strings.ToLower(strings.TrimSpace(s)))
}

// ParseOperator validates s as an Operator. The unicode forms ≠, ≥ and ≤ are
// accepted and normalized.
func ParseOperator(s string) (Operator, error) {
	s = strings.TrimSpace(s)
	switch s {
	case "≠", "<>":
		s = string(OpNeq)
	case "≥":
		s = string(OpGte)
	case "≤":
		s = string(OpLte)
	}
	return parseEnum[Operator]("operator", s)
}
