package domain

import (
	"encoding/json"
	"slices"
	"strings"
)

// MetricDefinition is the governed definition of one (name, version) metric.
// Definitions are loaded once at startup and never mutated afterwards.
type MetricDefinition struct {
	Name               MetricName
	Version            MetricVersion
	Description        string
	Grain              string // fully qualified column, e.g. orders.order_date
	TimeColumn         string // fully qualified column
	Tables             MetricTables
	Joins              []JoinDefinition
	Measure            MeasureDefinition
	RequiredFilters    []FilterDefinition
	AllowedFilters     []string // filter keys a caller may request
	ForbiddenFilters   []string // filter keys a caller may never request
	SupportsDimensions bool
	PIIExposure        bool
}

// MetricTables lists the tables a metric reads from.
type MetricTables struct {
	Fact       string
	Dimensions []string
}

// JoinDefinition describes how the fact table joins a dimension table.
type JoinDefinition struct {
	Left  string   `json:"left"`
	Right string   `json:"right"`
	Type  JoinType `json:"type"`
}

// RightTable returns the table qualifier of the join's right-hand column.
func (j JoinDefinition) RightTable() string {
	table, _, _ := SplitQualified(j.Right)
	return table
}

// MeasureDefinition is the expression a metric aggregates.
type MeasureDefinition struct {
	Expression  string
	Aggregation Aggregation
}

// FilterDefinition is a filter the metric always applies.
type FilterDefinition struct {
	Column   string
	Operator Operator
	Value    Literal
}

// Key returns the unqualified column name, the part matched against the
// allowed filter list.
func (f FilterDefinition) Key() string {
	_, col, ok := SplitQualified(f.Column)
	if !ok {
		return f.Column
	}
	return col
}

// Key identifies a metric definition by name and version.
func (m *MetricDefinition) Key() string { return string(m.Name) + ":" + string(m.Version) }

// Allows reports whether f is in the allowed filter list.
func (m *MetricDefinition) Allows(f FilterIntent) bool {
	return slices.Contains(m.AllowedFilters, string(f))
}

// Forbids reports whether f is in the forbidden filter list.
func (m *MetricDefinition) Forbids(f FilterIntent) bool {
	return slices.Contains(m.ForbiddenFilters, string(f))
}

// DataSources returns the fact table followed by the dimension tables.
func (m *MetricDefinition) DataSources() []string {
	out := make([]string, 0, 1+len(m.Tables.Dimensions))
	out = append(out, m.Tables.Fact)
	return append(out, m.Tables.Dimensions...)
}

// SplitQualified splits "table.column" into its parts. ok is false unless both
// parts are non-empty and there is exactly one dot.
func SplitQualified(s string) (table, column string, ok bool) {
	table, column, found := strings.Cut(s, ".")
	if !found || table == "" || column == "" || strings.Contains(column, ".") {
		return "", "", false
	}
	return table, column, true
}

// LiteralKind distinguishes how a filter value renders in SQL.
type LiteralKind int

const (
	LiteralString LiteralKind = iota
	LiteralNumber
	LiteralNull
)

// Literal is a filter value with its rendering kind.
type Literal struct {
	Text string
	Kind LiteralKind
}

// StringLiteral returns a quoted string literal.
func StringLiteral(s string) Literal { return Literal{Text: s, Kind: LiteralString} }

// NumberLiteral returns a bare numeric literal.
func NumberLiteral(s string) Literal { return Literal{Text: s, Kind: LiteralNumber} }

// NullLiteral returns the SQL NULL literal.
func NullLiteral() Literal { return Literal{Text: "NULL", Kind: LiteralNull} }

// SQL renders the literal as SQL text.
func (l Literal) SQL() string {
	switch l.Kind {
	case LiteralNumber:
		return l.Text
	case LiteralNull:
		return "NULL"
	default:
		return "'" + strings.ReplaceAll(l.Text, "'", "''") + "'"
	}
}

// MarshalJSON encodes strings as JSON strings, numbers as JSON numbers, and
// NULL as null.
func (l Literal) MarshalJSON() ([]byte, error) {
	switch l.Kind {
	case LiteralNumber:
		return []byte(l.Text), nil
	case LiteralNull:
		return []byte("null"), nil
	default:
		return json.Marshal(l.Text)
	}
}
