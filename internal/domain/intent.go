package domain

// Intent is a caller's closed, enum-constrained description of what to compute.
// It never carries free text.
type Intent struct {
	Metric           MetricName     `json:"metric"`
	Version          *MetricVersion `json:"version,omitempty"`
	TimeRange        *TimeRange     `json:"time_range"`
	Dimensions       []Dimension    `json:"dimensions"`
	RequestedFilters []FilterIntent `json:"requested_filters"`
}

// QueryPlan is the deterministic, structured description of a query derived
// from a validated intent and its resolved metric definition.
type QueryPlan struct {
	MetricName        MetricName       `json:"metric_name"`
	MetricVersion     MetricVersion    `json:"metric_version"`
	FactTable         string           `json:"fact_table"`
	Joins             []JoinDefinition `json:"joins"`
	MeasureExpression string           `json:"measure_expression"`
	Aggregation       Aggregation      `json:"aggregation"`
	Filters           []FilterPlan     `json:"filters"`
	GroupBy           []string         `json:"group_by"`
	TimeColumn        string           `json:"time_column"`
	TimeRange         TimeRange        `json:"time_range"`
}

// FilterPlan is a single predicate in a plan.
type FilterPlan struct {
	Column   string  `json:"column"`
	Operator string  `json:"operator"`
	Value    Literal `json:"value"`
}

// Explanation is the human-readable account of how a result was computed.
type Explanation struct {
	Metric         string `json:"metric"`
	Description    string `json:"description"`
	TimeRange      string `json:"time_range"`
	Grain          string `json:"grain"`
	Aggregation    string `json:"aggregation"`
	FiltersApplied string `json:"filters_applied"`
	GroupedBy      string `json:"grouped_by"`
	DataSources    string `json:"data_sources"`
}

// Result sources.
const (
	SourceCache    = "cache"
	SourceComputed = "computed"
)

// QueryResponse is returned for a successful query.
type QueryResponse struct {
	Source      string      `json:"source"`
	SQL         string      `json:"sql,omitempty"`
	Result      float64     `json:"result"`
	Explanation Explanation `json:"explanation"`
}

// ExplainResponse describes what a query would do without running it.
type ExplainResponse struct {
	Plan        QueryPlan   `json:"plan"`
	CacheKey    string      `json:"cache_key"`
	Explanation Explanation `json:"explanation"`
}
