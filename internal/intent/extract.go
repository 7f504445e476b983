// Package intent turns request payloads into validated intents.
package intent

import (
	"bytes"
	"encoding/json"

	"metricgate/internal/domain"
)

// freeTextFields are payload keys that indicate a natural-language question
// rather than a structured intent.
var freeTextFields = []string{"question", "text", "prompt", "query"}

// unknownStatus is the sentinel an upstream adapter sets when it could not
// map a request onto the intent schema.
const unknownStatus = "UNKNOWN"

type payload struct {
	Metric           *string  `json:"metric"`
	Version          *string  `json:"version"`
	TimeRange        *string  `json:"time_range"`
	Dimensions       []string `json:"dimensions"`
	RequestedFilters []string `json:"requested_filters"`
}

// Extract decodes a structured intent payload. Free-text payloads are
// rejected with FreeTextNotAccepted. Unknown fields, values outside the
// closed enums, and the status UNKNOWN sentinel are rejected with
// IntentExtractionFailed; there is no partial acceptance.
func Extract(data []byte) (*domain.Intent, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		return nil, domain.ErrExtraction(domain.IntentExtractionFailed, "intent must be a JSON object")
	}

	for _, k := range freeTextFields {
		if _, ok := fields[k]; ok {
			return nil, domain.ErrExtraction(domain.FreeTextNotAccepted,
				"free-text questions are not accepted; submit structured intent JSON")
		}
	}

	if raw, ok := fields["status"]; ok {
		var status string
		if json.Unmarshal(raw, &status) == nil && status == unknownStatus {
			return nil, domain.ErrExtraction(domain.IntentExtractionFailed,
				"query contains concepts not supported by the intent schema")
		}
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var p payload
	if err := dec.Decode(&p); err != nil {
		return nil, domain.ErrExtraction(domain.IntentExtractionFailed, "invalid intent: %v", err)
	}

	return p.toIntent()
}

func (p *payload) toIntent() (*domain.Intent, error) {
	unsupported := func(err error) error {
		return domain.ErrExtraction(domain.IntentExtractionFailed,
			"intent contains unsupported values: %v; new metrics, filters, or dimensions are never inferred", err)
	}

	if p.Metric == nil {
		return nil, domain.ErrExtraction(domain.IntentExtractionFailed, "metric is required")
	}
	metric, err := domain.ParseMetricName(*p.Metric)
	if err != nil {
		return nil, unsupported(err)
	}
	in := &domain.Intent{Metric: metric}

	if p.Version != nil {
		v, err := domain.ParseMetricVersion(*p.Version)
		if err != nil {
			return nil, unsupported(err)
		}
		in.Version = &v
	}
	if p.TimeRange != nil {
		tr, err := domain.ParseTimeRange(*p.TimeRange)
		if err != nil {
			return nil, unsupported(err)
		}
		in.TimeRange = &tr
	}

	seenDim := make(map[domain.Dimension]bool, len(p.Dimensions))
	in.Dimensions = make([]domain.Dimension, 0, len(p.Dimensions))
	for _, s := range p.Dimensions {
		d, err := domain.ParseDimension(s)
		if err != nil {
			return nil, unsupported(err)
		}
		if !seenDim[d] {
			seenDim[d] = true
			in.Dimensions = append(in.Dimensions, d)
		}
	}

	seenFilter := make(map[domain.FilterIntent]bool, len(p.RequestedFilters))
	in.RequestedFilters = make([]domain.FilterIntent, 0, len(p.RequestedFilters))
	for _, s := range p.RequestedFilters {
		f, err := domain.ParseFilterIntent(s)
		if err != nil {
			return nil, unsupported(err)
		}
		if !seenFilter[f] {
			seenFilter[f] = true
			in.RequestedFilters = append(in.RequestedFilters, f)
		}
	}

	return in, nil
}
