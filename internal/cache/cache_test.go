package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metricgate/internal/domain"
)

func intent(dims []domain.Dimension, filters []domain.FilterIntent) *domain.Intent {
	tr := domain.TimeRangeLastMonth
	return &domain.Intent{
		Metric:           domain.MetricRevenue,
		TimeRange:        &tr,
		Dimensions:       dims,
		RequestedFilters: filters,
	}
}

func newCache(t *testing.T, ttl time.Duration, max int) *Cache {
	t.Helper()
	c := New(ttl, max)
	t.Cleanup(c.Stop)
	return c
}

func TestKey_OrderIndependent(t *testing.T) {
	a := Key(intent(
		[]domain.Dimension{domain.DimensionRegion, domain.DimensionProduct},
		[]domain.FilterIntent{domain.FilterRefundStatus, domain.FilterRegion},
	), domain.VersionV1)
	b := Key(intent(
		[]domain.Dimension{domain.DimensionProduct, domain.DimensionRegion},
		[]domain.FilterIntent{domain.FilterRegion, domain.FilterRefundStatus},
	), domain.VersionV1)

	assert.Equal(t, a, b)
	assert.Equal(t, "revenue:v1|last_month|dims=product,region|filters=refund_status,region", a)
}

func TestKey_DistinguishesInputs(t *testing.T) {
	base := Key(intent(nil, nil), domain.VersionV1)

	assert.NotEqual(t, base, Key(intent(nil, nil), domain.VersionV2))
	assert.NotEqual(t, base, Key(intent([]domain.Dimension{domain.DimensionRegion}, nil), domain.VersionV1))
	assert.NotEqual(t, base, Key(intent(nil, []domain.FilterIntent{domain.FilterRegion}), domain.VersionV1))

	// A dimension and a filter with the same name land in different slots.
	assert.NotEqual(t,
		Key(intent([]domain.Dimension{domain.DimensionRegion}, nil), domain.VersionV1),
		Key(intent(nil, []domain.FilterIntent{domain.FilterRegion}), domain.VersionV1))

	week := domain.TimeRangeLastWeek
	other := intent(nil, nil)
	other.TimeRange = &week
	assert.NotEqual(t, base, Key(other, domain.VersionV1))
}

func TestKey_DoesNotReorderCaller(t *testing.T) {
	in := intent([]domain.Dimension{domain.DimensionRegion, domain.DimensionProduct}, nil)
	Key(in, domain.VersionV1)
	assert.Equal(t, []domain.Dimension{domain.DimensionRegion, domain.DimensionProduct}, in.Dimensions)
}

func TestCache_GetSet(t *testing.T) {
	c := newCache(t, time.Minute, 10)

	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Set("k", 123.5)
	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, 123.5, v)

	c.Set("k", 7)
	v, _ = c.Get("k")
	assert.Equal(t, 7.0, v)
	assert.Equal(t, 1, c.Len())
}

func TestCache_ZeroIsAValue(t *testing.T) {
	c := newCache(t, time.Minute, 10)
	c.Set("zero", 0)
	v, ok := c.Get("zero")
	assert.True(t, ok)
	assert.Zero(t, v)
}

func TestCache_Expiry(t *testing.T) {
	c := newCache(t, 10*time.Millisecond, 10)
	c.Set("k", 1)

	assert.Eventually(t, func() bool {
		_, ok := c.Get("k")
		return !ok
	}, 5*time.Second, 5*time.Millisecond)
}

func TestCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := newCache(t, time.Minute, 2)

	c.Set("a", 1)
	c.Set("b", 2)
	_, ok := c.Get("a")
	require.True(t, ok)
	c.Set("c", 3)

	_, ok = c.Get("b")
	assert.False(t, ok, "b was least recently used")
	_, ok = c.Get("a")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
	assert.Equal(t, 2, c.Len())
}

func TestCache_Defaults(t *testing.T) {
	c := newCache(t, 0, 0)
	for i := 0; i < DefaultMaxEntries+10; i++ {
		c.Set(fmt.Sprintf("k%d", i), float64(i))
	}
	assert.Equal(t, DefaultMaxEntries, c.Len())
}

func TestCache_Concurrent(t *testing.T) {
	c := newCache(t, time.Minute, 64)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("k%d", j%16)
				c.Set(key, float64(i))
				c.Get(key)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 16, c.Len())
}
