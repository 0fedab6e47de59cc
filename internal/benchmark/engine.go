package benchmark

import (
	"fmt"

	"github.com/bookwell/insights/internal/domain"
)

// Rank locates value against a percentile ladder using linear interpolation
// between rungs, the same rule the aggregator used to build the ladder.
// Outside the 10th-90th range it extrapolates with the nearest segment's
// slope rather than clamping to the edge rung; the result is then bounded to
// [0, 100] because a percentile outside that range has no meaning.
func Rank(ladder domain.PercentileLadder, value float64) float64 {
	ps, vs := ladder.Rungs()
	n := len(vs)

	rank := 0.0
	switch {
	case value <= vs[0]:
		rank = ps[0] + (value-vs[0])*segmentSlope(ps, vs, 0)
	case value >= vs[n-1]:
		rank = ps[n-1] + (value-vs[n-1])*segmentSlope(ps, vs, n-2)
	default:
		for i := 0; i < n-1; i++ {
			if value < vs[i+1] {
				if vs[i+1] == vs[i] {
					// Tie: resolve to the lower rung.
					rank = ps[i]
				} else {
					rank = ps[i] + (value-vs[i])/(vs[i+1]-vs[i])*(ps[i+1]-ps[i])
				}
				break
			}
		}
	}

	if rank < 0 {
		return 0
	}
	if rank > 100 {
		return 100
	}
	return rank
}

// segmentSlope is the percentile-per-unit slope of ladder segment i. A flat
// segment (all peers tied) has no usable slope, so extrapolation past it
// stays at the edge rung.
func segmentSlope(ps, vs []float64, i int) float64 {
	if vs[i+1] == vs[i] {
		return 0
	}
	return (ps[i+1] - ps[i]) / (vs[i+1] - vs[i])
}

// Compare builds the BenchmarkResult for a tenant snapshot against its
// anonymized peer group. The group must already carry stats for the metric;
// a nil group means the aggregator suppressed it.
func Compare(snapshot domain.TenantMetricSnapshot, group *domain.AnonymizedGroup, metric domain.Metric) (domain.BenchmarkResult, error) {
	if !metric.Valid() {
		return domain.BenchmarkResult{}, fmt.Errorf("%w: %q", ErrUnknownMetric, metric)
	}
	if group == nil {
		return domain.BenchmarkResult{}, ErrGroupUnavailable
	}
	stats, ok := group.Stats[metric]
	if !ok {
		return domain.BenchmarkResult{}, ErrGroupUnavailable
	}

	value := snapshot.MetricValue(metric)
	pct := Rank(stats.Percentiles, value)
	tier := domain.TierForVolume(int(snapshot.MetricValue(domain.MetricAppointmentCount)))

	return domain.BenchmarkResult{
		TenantID:   snapshot.TenantID,
		Metric:     metric,
		Value:      value,
		Percentile: pct,
		GroupSize:  group.MemberCount,
		Tier:       tier,
		Insight:    insightText(metric, pct, group.MemberCount),
	}, nil
}

// insightText renders the human-readable comparison line. It names only the
// tenant's own standing and the group size, never another tenant's figures.
func insightText(metric domain.Metric, pct float64, groupSize int) string {
	band := "below most"
	switch {
	case pct >= 90:
		band = "ahead of nearly all"
	case pct >= 75:
		band = "ahead of most"
	case pct >= 50:
		band = "ahead of half of"
	case pct >= 25:
		band = "behind most"
	}
	return fmt.Sprintf("Your %s places you %s of the %d comparable businesses in your segment (%.0fth percentile).",
		metricLabel(metric), band, groupSize, pct)
}

func metricLabel(m domain.Metric) string {
	switch m {
	case domain.MetricMonthlyRevenue:
		return "monthly revenue"
	case domain.MetricAppointmentCount:
		return "appointment volume"
	case domain.MetricAverageTicket:
		return "average ticket"
	case domain.MetricClientRetention:
		return "client retention"
	}
	return string(m)
}
