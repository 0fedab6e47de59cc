package anonymize

import (
	"fmt"
	"testing"
	"time"

	"github.com/bookwell/insights/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshot(tenant, segment, location string, revenue float64) domain.TenantMetricSnapshot {
	return domain.TenantMetricSnapshot{
		TenantID: tenant,
		Window: domain.Window{
			Start: time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		},
		Metrics: map[domain.Metric]float64{
			domain.MetricMonthlyRevenue: revenue,
		},
		Profile: domain.TenantProfile{
			BusinessSegment: segment,
			LocationType:    location,
			ServiceType:     "haircut",
		},
	}
}

func TestNewAggregatorRejectsLowK(t *testing.T) {
	_, err := NewAggregator(1)
	assert.ErrorIs(t, err, ErrInvalidThreshold)
	_, err = NewAggregator(0)
	assert.ErrorIs(t, err, ErrInvalidThreshold)
}

func TestAggregateSuppressesSmallGroups(t *testing.T) {
	// 3 groups of sizes 120/100/80 with k=100: exactly 220 records survive
	// in 2 groups, 80 are suppressed.
	var snaps []domain.TenantMetricSnapshot
	sizes := map[string]int{"salon": 120, "spa": 100, "barber": 80}
	for segment, n := range sizes {
		for i := 0; i < n; i++ {
			snaps = append(snaps, snapshot(fmt.Sprintf("%s-%d", segment, i), segment, "urban", float64(1000+i)))
		}
	}

	agg, err := NewAggregator(100)
	require.NoError(t, err)

	groups, err := agg.Aggregate(snaps, []domain.QuasiIdentifier{domain.QIBusinessSegment}, nil)
	require.NoError(t, err)

	require.Len(t, groups, 2)
	retained := 0
	for _, g := range groups {
		assert.GreaterOrEqual(t, g.MemberCount, 100, "no disclosed group may be below k")
		assert.NotEqual(t, []string{"barber"}, g.Values)
		retained += g.MemberCount
	}
	assert.Equal(t, 220, retained)
}

func TestAggregateAllSuppressedIsEmptyNotError(t *testing.T) {
	snaps := []domain.TenantMetricSnapshot{
		snapshot("a", "salon", "urban", 100),
		snapshot("b", "spa", "urban", 200),
	}
	agg, err := NewAggregator(5)
	require.NoError(t, err)

	groups, err := agg.Aggregate(snaps, []domain.QuasiIdentifier{domain.QIBusinessSegment}, nil)
	require.NoError(t, err)
	assert.Empty(t, groups, "below-k cohort must yield no groups, not an error")
}

func TestAggregatePartitionsOnFullTuple(t *testing.T) {
	// Same segment, different location: must land in separate partitions
	// when both identifiers are requested.
	var snaps []domain.TenantMetricSnapshot
	for i := 0; i < 3; i++ {
		snaps = append(snaps, snapshot(fmt.Sprintf("u%d", i), "salon", "urban", 1000))
		snaps = append(snaps, snapshot(fmt.Sprintf("r%d", i), "salon", "rural", 2000))
	}

	agg, err := NewAggregator(3)
	require.NoError(t, err)

	groups, err := agg.Aggregate(snaps,
		[]domain.QuasiIdentifier{domain.QIBusinessSegment, domain.QILocationType}, nil)
	require.NoError(t, err)

	require.Len(t, groups, 2)
	for _, g := range groups {
		assert.Equal(t, 3, g.MemberCount)
		assert.Len(t, g.Values, 2)
	}

	// Collapsing to one identifier merges them back into a single group of 6.
	merged, err := agg.Aggregate(snaps, []domain.QuasiIdentifier{domain.QIBusinessSegment}, nil)
	require.NoError(t, err)
	require.Len(t, merged, 1)
	assert.Equal(t, 6, merged[0].MemberCount)
}

func TestAggregateRejectsUnknownIdentifier(t *testing.T) {
	agg, err := NewAggregator(2)
	require.NoError(t, err)

	_, err = agg.Aggregate(nil, []domain.QuasiIdentifier{"favorite_color"}, nil)
	assert.Error(t, err)

	_, err = agg.Aggregate(nil, nil, nil)
	assert.ErrorIs(t, err, ErrNoQuasiIdentifier)
}

func TestAggregateZeroValuedTenantsCount(t *testing.T) {
	// A tenant with zero appointments still participates in group sizing.
	var snaps []domain.TenantMetricSnapshot
	for i := 0; i < 4; i++ {
		snaps = append(snaps, snapshot(fmt.Sprintf("t%d", i), "salon", "urban", 0))
	}
	agg, err := NewAggregator(4)
	require.NoError(t, err)

	groups, err := agg.Aggregate(snaps, []domain.QuasiIdentifier{domain.QIBusinessSegment}, nil)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, 4, groups[0].MemberCount)
	assert.Equal(t, 0.0, groups[0].Stats[domain.MetricMonthlyRevenue].Mean)
}

func TestPercentileLadderScenario(t *testing.T) {
	// 5 members with revenues 1000..6000 chosen so a five-member revenue
	// ladder [p10=$1000-ish ... p90=$6000-ish] interpolates sensibly.
	values := []float64{1000, 2000, 3000, 4500, 6000}
	l := ladder(values)

	assert.Equal(t, 3000.0, l.P50, "median of 5 values is the middle order statistic")
	assert.InDelta(t, 1400.0, l.P10, 1e-9) // rank 0.4 between 1000 and 2000
	assert.InDelta(t, 2000.0, l.P25, 1e-9) // rank 1.0 lands exactly
	assert.InDelta(t, 4500.0, l.P75, 1e-9)
	assert.InDelta(t, 5400.0, l.P90, 1e-9) // rank 3.6 between 4500 and 6000
}

func TestPercentileEdgeCases(t *testing.T) {
	assert.Equal(t, 0.0, percentile(nil, 50))
	assert.Equal(t, 7.0, percentile([]float64{7}, 90))

	// Ties resolve to the lower-indexed value (interpolation between equal
	// neighbors is the value itself).
	tied := []float64{5, 5, 5, 9}
	assert.Equal(t, 5.0, percentile(tied, 25))
	assert.Equal(t, 5.0, percentile(tied, 50))
}

func TestPercentileMonotonic(t *testing.T) {
	values := []float64{10, 20, 20, 35, 50, 80, 80, 90}
	prev := -1.0
	for p := 0.0; p <= 100; p += 5 {
		v := percentile(values, p)
		assert.GreaterOrEqual(t, v, prev, "percentile must be monotonic in p")
		prev = v
	}
}
