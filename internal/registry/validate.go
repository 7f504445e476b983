package registry

import (
	"fmt"
	"regexp"
	"strings"

	"metricgate/internal/domain"
)

// aggregateCall matches an aggregate function call inside a measure expression.
var aggregateCall = regexp.MustCompile(`(?i)\b(sum|count|avg|min|max)\s*\(`)

// ValidateDefinition runs the semantic checks on a structurally valid
// definition and returns every problem found.
func ValidateDefinition(def *domain.MetricDefinition) []string {
	var problems []string
	bad := func(format string, args ...interface{}) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if def.Grain == "" {
		bad("grain is required")
	} else if _, _, ok := domain.SplitQualified(def.Grain); !ok {
		bad("grain %q must be a fully qualified column (e.g. orders.order_id)", def.Grain)
	}
	if def.TimeColumn == "" {
		bad("time_column is required")
	} else if _, _, ok := domain.SplitQualified(def.TimeColumn); !ok {
		bad("time_column %q must be fully qualified (e.g. orders.order_date)", def.TimeColumn)
	}
	if def.Tables.Fact == "" {
		bad("tables.fact is required")
	}
	for i, d := range def.Tables.Dimensions {
		if strings.TrimSpace(d) == "" {
			bad("tables.dimensions[%d] is empty", i)
		}
	}

	for i, j := range def.Joins {
		if _, _, ok := domain.SplitQualified(j.Left); !ok {
			bad("joins[%d].left %q must be fully qualified", i, j.Left)
		}
		if _, _, ok := domain.SplitQualified(j.Right); !ok {
			bad("joins[%d].right %q must be fully qualified", i, j.Right)
		}
	}

	if m := aggregateCall.FindString(def.Measure.Expression); m != "" {
		bad("measure.expression must reference raw columns, found aggregate %q", strings.TrimSpace(m))
	}

	forbidden := make(map[string]bool, len(def.ForbiddenFilters))
	for _, f := range def.ForbiddenFilters {
		forbidden[f] = true
	}
	allowed := make(map[string]bool, len(def.AllowedFilters))
	for _, f := range def.AllowedFilters {
		allowed[f] = true
		if forbidden[f] {
			bad("filter %q cannot be both allowed and forbidden", f)
		}
	}

	for i, f := range def.RequiredFilters {
		if f.Column == "" {
			bad("required_filters[%d].column is required", i)
			continue
		}
		if !allowed[f.Key()] {
			bad("required filter %q must be included in allowed_filters as %q", f.Column, f.Key())
		}
	}

	return problems
}
