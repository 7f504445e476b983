package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metricgate/internal/domain"
	"metricgate/internal/registry"
	"metricgate/metadata"
)

func TestExtract_Valid(t *testing.T) {
	in, err := Extract([]byte(`{
		"metric": "revenue",
		"time_range": "last_month",
		"dimensions": ["region", "product", "region"],
		"requested_filters": ["region"]
	}`))
	require.NoError(t, err)

	assert.Equal(t, domain.MetricRevenue, in.Metric)
	assert.Nil(t, in.Version)
	require.NotNil(t, in.TimeRange)
	assert.Equal(t, domain.TimeRangeLastMonth, *in.TimeRange)
	assert.Equal(t, []domain.Dimension{domain.DimensionRegion, domain.DimensionProduct}, in.Dimensions)
	assert.Equal(t, []domain.FilterIntent{domain.FilterRegion}, in.RequestedFilters)
}

func TestExtract_ExplicitVersionAndNullTimeRange(t *testing.T) {
	in, err := Extract([]byte(`{"metric":"revenue","version":"v2","time_range":null}`))
	require.NoError(t, err)
	require.NotNil(t, in.Version)
	assert.Equal(t, domain.VersionV2, *in.Version)
	assert.Nil(t, in.TimeRange)
	assert.Empty(t, in.Dimensions)
}

func TestExtract_Rejections(t *testing.T) {
	tests := []struct {
		name string
		body string
		kind domain.ExtractionKind
	}{
		{"question", `{"question":"what was revenue last month?"}`, domain.FreeTextNotAccepted},
		{"question with intent", `{"metric":"revenue","time_range":"last_month","question":"x"}`, domain.FreeTextNotAccepted},
		{"prompt", `{"prompt":"x"}`, domain.FreeTextNotAccepted},
		{"unknown status", `{"status":"UNKNOWN"}`, domain.IntentExtractionFailed},
		{"other status", `{"metric":"revenue","time_range":"last_month","status":"OK"}`, domain.IntentExtractionFailed},
		{"unknown field", `{"metric":"revenue","time_range":"last_month","limit":5}`, domain.IntentExtractionFailed},
		{"unknown metric", `{"metric":"profit","time_range":"last_month"}`, domain.IntentExtractionFailed},
		{"unknown dimension", `{"metric":"revenue","time_range":"last_month","dimensions":["country"]}`, domain.IntentExtractionFailed},
		{"unknown filter", `{"metric":"revenue","time_range":"last_month","requested_filters":["vip"]}`, domain.IntentExtractionFailed},
		{"unknown time range", `{"metric":"revenue","time_range":"yesterday"}`, domain.IntentExtractionFailed},
		{"unknown version", `{"metric":"revenue","version":"v9","time_range":"last_week"}`, domain.IntentExtractionFailed},
		{"missing metric", `{"time_range":"last_week"}`, domain.IntentExtractionFailed},
		{"wrong type", `{"metric":"revenue","time_range":"last_week","dimensions":"region"}`, domain.IntentExtractionFailed},
		{"not an object", `["revenue"]`, domain.IntentExtractionFailed},
		{"null", `null`, domain.IntentExtractionFailed},
		{"malformed", `{"metric":`, domain.IntentExtractionFailed},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			in, err := Extract([]byte(tc.body))
			require.Nil(t, in)
			var xerr *domain.ExtractionError
			require.ErrorAs(t, err, &xerr)
			assert.Equal(t, tc.kind, xerr.Kind)
		})
	}
}

func newValidator(t *testing.T) *Validator {
	t.Helper()
	reg, err := registry.Load(metadata.Catalog, metadata.CatalogDir)
	require.NoError(t, err)
	return NewValidator(reg)
}

func timeRange(tr domain.TimeRange) *domain.TimeRange { return &tr }

func TestValidate_ValidIntentResolvesDefault(t *testing.T) {
	v := newValidator(t)

	m, err := v.Validate(&domain.Intent{
		Metric:     domain.MetricRevenue,
		TimeRange:  timeRange(domain.TimeRangeLastMonth),
		Dimensions: []domain.Dimension{domain.DimensionRegion},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.VersionV1, m.Version)
}

func TestValidate_ExplicitVersionRules(t *testing.T) {
	v := newValidator(t)
	v2 := domain.VersionV2

	// refund_status is allowed on v1 but forbidden on v2.
	in := &domain.Intent{
		Metric:           domain.MetricRevenue,
		TimeRange:        timeRange(domain.TimeRangeLastWeek),
		RequestedFilters: []domain.FilterIntent{domain.FilterRefundStatus},
	}
	m, err := v.Validate(in)
	require.NoError(t, err)
	assert.Equal(t, domain.VersionV1, m.Version)

	in.Version = &v2
	_, err = v.Validate(in)
	var iv *domain.IntentViolation
	require.ErrorAs(t, err, &iv)
	assert.Equal(t, domain.FilterForbidden, iv.Kind)
	assert.Equal(t, domain.FilterRefundStatus, iv.Filter)
}

func TestValidate_Violations(t *testing.T) {
	v := newValidator(t)

	tests := []struct {
		name   string
		intent domain.Intent
		kind   domain.ViolationKind
	}{
		{
			name: "forbidden filter",
			intent: domain.Intent{
				Metric:           domain.MetricRevenue,
				TimeRange:        timeRange(domain.TimeRangeLastMonth),
				RequestedFilters: []domain.FilterIntent{domain.FilterInternalAccount},
			},
			kind: domain.FilterForbidden,
		},
		{
			name: "dimensions unsupported",
			intent: domain.Intent{
				Metric:     domain.MetricOrdersCount,
				TimeRange:  timeRange(domain.TimeRangeLastMonth),
				Dimensions: []domain.Dimension{domain.DimensionRegion},
			},
			kind: domain.DimensionsUnsupported,
		},
		{
			name:   "time range required",
			intent: domain.Intent{Metric: domain.MetricRevenue},
			kind:   domain.TimeRangeRequired,
		},
		{
			name:   "custom time range",
			intent: domain.Intent{Metric: domain.MetricRevenue, TimeRange: timeRange(domain.TimeRangeCustom)},
			kind:   domain.UnsupportedTimeRange,
		},
		{
			name:   "no default version",
			intent: domain.Intent{Metric: domain.MetricName("churn"), TimeRange: timeRange(domain.TimeRangeLastMonth)},
			kind:   domain.NoDefaultVersion,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m, err := v.Validate(&tc.intent)
			require.Nil(t, m)
			var iv *domain.IntentViolation
			require.ErrorAs(t, err, &iv)
			assert.Equal(t, tc.kind, iv.Kind)
		})
	}
}

func TestValidate_UnknownVersionNotFound(t *testing.T) {
	v := newValidator(t)
	v2 := domain.VersionV2
	_, err := v.Validate(&domain.Intent{
		Metric:    domain.MetricOrdersCount,
		Version:   &v2,
		TimeRange: timeRange(domain.TimeRangeLastMonth),
	})
	var nf *domain.NotFoundError
	require.ErrorAs(t, err, &nf)
}

type stubSource struct {
	def *domain.MetricDefinition
}

func (s stubSource) Get(domain.MetricName, *domain.MetricVersion) (*domain.MetricDefinition, error) {
	return s.def, nil
}

func TestValidate_PIIRejectedUnconditionally(t *testing.T) {
	v := NewValidator(stubSource{def: &domain.MetricDefinition{
		Name:               domain.MetricRevenue,
		Version:            domain.VersionV1,
		SupportsDimensions: true,
		PIIExposure:        true,
	}})
	_, err := v.Validate(&domain.Intent{Metric: domain.MetricRevenue, TimeRange: timeRange(domain.TimeRangeLastMonth)})
	var iv *domain.IntentViolation
	require.ErrorAs(t, err, &iv)
	assert.Equal(t, domain.PiiExposure, iv.Kind)
}

func TestValidate_ForbiddenBeatsAllowed(t *testing.T) {
	// A definition that bypassed load-time checks must still reject.
	v := NewValidator(stubSource{def: &domain.MetricDefinition{
		Name:             domain.MetricRevenue,
		Version:          domain.VersionV1,
		AllowedFilters:   []string{"region"},
		ForbiddenFilters: []string{"region"},
	}})
	_, err := v.Validate(&domain.Intent{
		Metric:           domain.MetricRevenue,
		TimeRange:        timeRange(domain.TimeRangeLastMonth),
		RequestedFilters: []domain.FilterIntent{domain.FilterRegion},
	})
	var iv *domain.IntentViolation
	require.ErrorAs(t, err, &iv)
	assert.Equal(t, domain.FilterForbidden, iv.Kind)
}

func TestValidate_UnsupportedFilter(t *testing.T) {
	v := NewValidator(stubSource{def: &domain.MetricDefinition{
		Name:             domain.MetricOrdersCount,
		Version:          domain.VersionV1,
		AllowedFilters:   []string{"region"},
		ForbiddenFilters: []string{"internal_account"},
	}})
	_, err := v.Validate(&domain.Intent{
		Metric:           domain.MetricOrdersCount,
		TimeRange:        timeRange(domain.TimeRangeLastMonth),
		RequestedFilters: []domain.FilterIntent{domain.FilterRegion, domain.FilterProduct},
	})
	var iv *domain.IntentViolation
	require.ErrorAs(t, err, &iv)
	assert.Equal(t, domain.FilterUnsupported, iv.Kind)
	assert.Equal(t, domain.FilterProduct, iv.Filter)
}

func TestValidate_FiltersCheckedInRequestOrder(t *testing.T) {
	v := newValidator(t)
	_, err := v.Validate(&domain.Intent{
		Metric:           domain.MetricOrdersCount,
		TimeRange:        timeRange(domain.TimeRangeLastMonth),
		RequestedFilters: []domain.FilterIntent{domain.FilterRegion, domain.FilterInternalAccount},
	})
	var iv *domain.IntentViolation
	require.ErrorAs(t, err, &iv)
	assert.Equal(t, domain.FilterForbidden, iv.Kind)
	assert.Equal(t, domain.FilterInternalAccount, iv.Filter)
}
