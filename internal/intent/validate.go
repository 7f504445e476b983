package intent

import (
	"metricgate/internal/domain"
)

// MetricSource resolves a metric definition. Implemented by registry.Registry.
type MetricSource interface {
	Get(name domain.MetricName, version *domain.MetricVersion) (*domain.MetricDefinition, error)
}

// Validator checks intents against the business rules of their metric.
type Validator struct {
	metrics MetricSource
}

// NewValidator creates a Validator backed by the given metric source.
func NewValidator(metrics MetricSource) *Validator {
	return &Validator{metrics: metrics}
}

// Validate resolves the intent's metric version and checks the intent
// against that definition. The returned definition is the one every later
// stage must use.
func (v *Validator) Validate(in *domain.Intent) (*domain.MetricDefinition, error) {
	metric, err := v.metrics.Get(in.Metric, in.Version)
	if err != nil {
		return nil, err
	}

	if metric.PIIExposure {
		return nil, domain.ErrViolation(domain.PiiExposure,
			"metric %s is marked as PII-exposing and cannot be queried", metric.Key())
	}

	if len(in.Dimensions) > 0 && !metric.SupportsDimensions {
		return nil, domain.ErrViolation(domain.DimensionsUnsupported,
			"metric %s does not support dimensional breakdowns", metric.Key())
	}

	for _, f := range in.RequestedFilters {
		// Forbidden wins even if a definition also lists the filter as allowed.
		if metric.Forbids(f) {
			return nil, &domain.IntentViolation{
				Kind:    domain.FilterForbidden,
				Filter:  f,
				Message: "filter '" + string(f) + "' is forbidden for metric " + metric.Key(),
			}
		}
		if !metric.Allows(f) {
			return nil, &domain.IntentViolation{
				Kind:    domain.FilterUnsupported,
				Filter:  f,
				Message: "filter '" + string(f) + "' is not supported for metric " + metric.Key(),
			}
		}
	}

	if in.TimeRange == nil {
		return nil, domain.ErrViolation(domain.TimeRangeRequired, "time range is required for all queries")
	}
	switch *in.TimeRange {
	case domain.TimeRangeCustom:
		return nil, domain.ErrViolation(domain.UnsupportedTimeRange, "custom time ranges are not supported")
	case domain.TimeRangeLastWeek, domain.TimeRangeLastMonth, domain.TimeRangeLastQuarter:
	default:
		return nil, domain.ErrViolation(domain.UnsupportedTimeRange, "unknown time range %q", *in.TimeRange)
	}

	return metric, nil
}
