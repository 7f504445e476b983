package registry

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"metricgate/internal/domain"
)

// record is the on-disk shape of one metric definition.
type record struct {
	MetricName         string         `yaml:"metric_name"`
	Version            string         `yaml:"version"`
	Description        string         `yaml:"description"`
	Grain              string         `yaml:"grain"`
	TimeColumn         string         `yaml:"time_column"`
	Tables             tablesRecord   `yaml:"tables"`
	Joins              []joinRecord   `yaml:"joins"`
	Measure            measureRecord  `yaml:"measure"`
	RequiredFilters    []filterRecord `yaml:"required_filters"`
	AllowedFilters     []string       `yaml:"allowed_filters"`
	ForbiddenFilters   []string       `yaml:"forbidden_filters"`
	SupportsDimensions bool           `yaml:"supports_dimensions"`
	PIIExposure        bool           `yaml:"pii_exposure"`
}

type tablesRecord struct {
	Fact       string   `yaml:"fact"`
	Dimensions []string `yaml:"dimensions"`
}

type joinRecord struct {
	Left  string `yaml:"left"`
	Right string `yaml:"right"`
	Type  string `yaml:"type"`
}

type measureRecord struct {
	Expression  string `yaml:"expression"`
	Aggregation string `yaml:"aggregation"`
}

type filterRecord struct {
	Column   string    `yaml:"column"`
	Operator string    `yaml:"operator"`
	Value    yaml.Node `yaml:"value"`
}

// ValidationError is a single problem found in a catalog file.
type ValidationError struct {
	Path    string // file name, optionally with a document index
	Message string
}

func (e ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// toDefinition performs the structural pass: required fields and closed value
// sets. It returns nil together with the problems when the record cannot be
// converted.
func (r *record) toDefinition() (*domain.MetricDefinition, []string) {
	var problems []string
	bad := func(format string, args ...interface{}) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	def := &domain.MetricDefinition{
		Description:        r.Description,
		Grain:              strings.TrimSpace(r.Grain),
		TimeColumn:         strings.TrimSpace(r.TimeColumn),
		SupportsDimensions: r.SupportsDimensions,
		PIIExposure:        r.PIIExposure,
		AllowedFilters:     append([]string(nil), r.AllowedFilters...),
		ForbiddenFilters:   append([]string(nil), r.ForbiddenFilters...),
		Tables: domain.MetricTables{
			Fact:       strings.TrimSpace(r.Tables.Fact),
			Dimensions: append([]string(nil), r.Tables.Dimensions...),
		},
	}

	if r.MetricName == "" {
		bad("metric_name is required")
	} else if name, err := domain.ParseMetricName(r.MetricName); err != nil {
		bad("metric_name: %v", err)
	} else {
		def.Name = name
	}
	if r.Version == "" {
		bad("version is required")
	} else if v, err := domain.ParseMetricVersion(r.Version); err != nil {
		bad("version: %v", err)
	} else {
		def.Version = v
	}
	if strings.TrimSpace(r.Description) == "" {
		bad("description is required")
	}

	if r.Measure.Expression == "" {
		bad("measure.expression is required")
	}
	def.Measure.Expression = strings.TrimSpace(r.Measure.Expression)
	if agg, err := domain.ParseAggregation(r.Measure.Aggregation); err != nil {
		bad("measure.aggregation: %v", err)
	} else {
		def.Measure.Aggregation = agg
	}

	for i, j := range r.Joins {
		jt, err := domain.ParseJoinType(j.Type)
		if err != nil {
			bad("joins[%d].type: %v", i, err)
		}
		def.Joins = append(def.Joins, domain.JoinDefinition{
			Left:  strings.TrimSpace(j.Left),
			Right: strings.TrimSpace(j.Right),
			Type:  jt,
		})
	}

	for i, f := range r.RequiredFilters {
		op, err := domain.ParseOperator(f.Operator)
		if err != nil {
			bad("required_filters[%d].operator: %v", i, err)
		}
		val, err := literalFromNode(&f.Value)
		if err != nil {
			bad("required_filters[%d].value: %v", i, err)
		}
		def.RequiredFilters = append(def.RequiredFilters, domain.FilterDefinition{
			Column:   strings.TrimSpace(f.Column),
			Operator: op,
			Value:    val,
		})
	}

	if len(problems) > 0 {
		return nil, problems
	}
	return def, nil
}

// literalFromNode converts a scalar YAML value into a filter literal. Integers
// and floats stay bare; everything else is a string.
func literalFromNode(n *yaml.Node) (domain.Literal, error) {
	if n.Kind == 0 {
		return domain.Literal{}, fmt.Errorf("value is required")
	}
	if n.Kind != yaml.ScalarNode {
		return domain.Literal{}, fmt.Errorf("value must be a scalar")
	}
	switch n.ShortTag() {
	case "!!int", "!!float":
		return domain.NumberLiteral(n.Value), nil
	case "!!null":
		return domain.Literal{}, fmt.Errorf("value must not be null")
	default:
		return domain.StringLiteral(n.Value), nil
	}
}
