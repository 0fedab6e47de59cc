package benchmark

import (
	"context"
	"fmt"
	"sort"

	"github.com/bookwell/insights/internal/domain"
	"github.com/bookwell/insights/internal/pkg/logger"
)

// ConsentGate is the slice of the consent service the engine needs.
type ConsentGate interface {
	Check(ctx context.Context, tenantID string, category domain.ConsentCategory) error
}

// Snapshotter is the slice of the metric extractor the engine needs.
type Snapshotter interface {
	Snapshot(ctx context.Context, tenantID string, metrics []domain.Metric, w domain.Window) (domain.TenantMetricSnapshot, error)
	CohortSnapshots(ctx context.Context, tenantIDs []string, metrics []domain.Metric, w domain.Window) ([]domain.TenantMetricSnapshot, error)
	TenantIDs(ctx context.Context) ([]string, error)
}

// Aggregator is the k-anonymity layer.
type Aggregator interface {
	Aggregate(snapshots []domain.TenantMetricSnapshot, quasiIDs []domain.QuasiIdentifier, metrics []domain.Metric) ([]domain.AnonymizedGroup, error)
}

// Releaser is the differential-privacy injector.
type Releaser interface {
	Release(ctx context.Context, trueValue, sensitivity float64, tenantID string, category domain.ConsentCategory, statID string) (float64, error)
}

// ResultCache stores derived benchmark results. Nil disables caching.
type ResultCache interface {
	Get(ctx context.Context, tenantID string, category domain.ConsentCategory, metric domain.Metric, w domain.Window) (*domain.BenchmarkResult, error)
	Set(ctx context.Context, category domain.ConsentCategory, w domain.Window, res domain.BenchmarkResult) error
}

// Service orchestrates a benchmark request: consent gate, extraction,
// k-anonymity aggregation, noised release, percentile ranking, caching.
type Service struct {
	gate        ConsentGate
	snapshots   Snapshotter
	aggregator  Aggregator
	injector    Releaser
	cache       ResultCache
	quasiIDs    []domain.QuasiIdentifier
	sensitivity float64
}

// NewService wires the benchmarking engine. quasiIDs defines the grouping
// tuple used for peer comparison.
func NewService(gate ConsentGate, snapshots Snapshotter, aggregator Aggregator, injector Releaser, cache ResultCache, quasiIDs []domain.QuasiIdentifier, sensitivity float64) *Service {
	if len(quasiIDs) == 0 {
		quasiIDs = []domain.QuasiIdentifier{domain.QIBusinessSegment, domain.QILocationType}
	}
	return &Service{
		gate:        gate,
		snapshots:   snapshots,
		aggregator:  aggregator,
		injector:    injector,
		cache:       cache,
		quasiIDs:    quasiIDs,
		sensitivity: sensitivity,
	}
}

// Benchmark computes the tenant's percentile standing for one metric over
// the window. Failure modes are kept distinct: ErrConsentRequired from the
// gate, ErrGroupUnavailable for statistical absence, ErrBudgetExhausted from
// the injector.
func (s *Service) Benchmark(ctx context.Context, tenantID string, metric domain.Metric, w domain.Window) (domain.BenchmarkResult, error) {
	if !metric.Valid() {
		return domain.BenchmarkResult{}, fmt.Errorf("%w: %q", ErrUnknownMetric, metric)
	}
	if err := s.gate.Check(ctx, tenantID, domain.ConsentBenchmarking); err != nil {
		return domain.BenchmarkResult{}, err
	}

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, tenantID, domain.ConsentBenchmarking, metric, w)
		if err != nil {
			logger.Warn("benchmark cache read failed", "tenant_id", tenantID, "err", err.Error())
		} else if cached != nil {
			return *cached, nil
		}
	}

	// The tenant's own snapshot always includes appointment volume for tier
	// classification.
	snap, err := s.snapshots.Snapshot(ctx, tenantID, []domain.Metric{metric, domain.MetricAppointmentCount}, w)
	if err != nil {
		return domain.BenchmarkResult{}, err
	}

	group, err := s.peerGroup(ctx, snap, metric, w)
	if err != nil {
		return domain.BenchmarkResult{}, err
	}

	noised, err := s.noiseGroup(ctx, tenantID, group, metric, w)
	if err != nil {
		return domain.BenchmarkResult{}, err
	}

	result, err := Compare(snap, noised, metric)
	if err != nil {
		return domain.BenchmarkResult{}, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, domain.ConsentBenchmarking, w, result); err != nil {
			logger.Warn("benchmark cache write failed", "tenant_id", tenantID, "err", err.Error())
		}
	}
	return result, nil
}

// peerGroup aggregates the consented cohort and picks the group matching the
// tenant's own quasi-identifier tuple. Absence of that group — including an
// entirely suppressed cohort — is ErrGroupUnavailable.
func (s *Service) peerGroup(ctx context.Context, snap domain.TenantMetricSnapshot, metric domain.Metric, w domain.Window) (*domain.AnonymizedGroup, error) {
	ids, err := s.snapshots.TenantIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list cohort: %w", err)
	}

	// Only tenants who opted into aggregate analytics contribute to the
	// cross-tenant substrate. Their data is never extracted otherwise.
	consented := ids[:0:0]
	for _, id := range ids {
		if s.gate.Check(ctx, id, domain.ConsentAggregateAnalytics) == nil {
			consented = append(consented, id)
		}
	}

	cohort, err := s.snapshots.CohortSnapshots(ctx, consented, []domain.Metric{metric}, w)
	if err != nil {
		return nil, err
	}

	groups, err := s.aggregator.Aggregate(cohort, s.quasiIDs, []domain.Metric{metric})
	if err != nil {
		return nil, err
	}

	values := make([]string, len(s.quasiIDs))
	for i, q := range s.quasiIDs {
		values[i] = snap.Profile.QuasiValue(q)
	}
	want := domain.MakeGroupKey(values)
	for i := range groups {
		if groups[i].Key == want {
			return &groups[i], nil
		}
	}
	return nil, ErrGroupUnavailable
}

// noiseGroup releases the group's ladder and mean through the injector,
// charging the requesting tenant's benchmarking budget. The noised rungs are
// re-sorted: adding independent noise can locally invert an order statistic,
// and ranking requires a monotone ladder (sorting is post-processing, so the
// privacy guarantee is unaffected).
func (s *Service) noiseGroup(ctx context.Context, tenantID string, group *domain.AnonymizedGroup, metric domain.Metric, w domain.Window) (*domain.AnonymizedGroup, error) {
	stats, ok := group.Stats[metric]
	if !ok {
		return nil, ErrGroupUnavailable
	}

	// The window is part of the stat identity: the same ladder queried over a
	// different reporting period is a new release, not a replay.
	statPrefix := fmt.Sprintf("%s:%s:%d-%d", group.Key, metric, w.Start.Unix(), w.End.Unix())
	_, vals := stats.Percentiles.Rungs()
	names := []string{"p10", "p25", "p50", "p75", "p90"}
	noised := make([]float64, len(vals))
	for i, v := range vals {
		nv, err := s.injector.Release(ctx, v, s.sensitivity, tenantID, domain.ConsentBenchmarking, statPrefix+":"+names[i])
		if err != nil {
			return nil, err
		}
		noised[i] = nv
	}
	sort.Float64s(noised)

	mean, err := s.injector.Release(ctx, stats.Mean, s.sensitivity, tenantID, domain.ConsentBenchmarking, statPrefix+":mean")
	if err != nil {
		return nil, err
	}

	out := *group
	out.Stats = map[domain.Metric]domain.GroupStats{
		metric: {
			Mean: mean,
			Percentiles: domain.PercentileLadder{
				P10: noised[0], P25: noised[1], P50: noised[2], P75: noised[3], P90: noised[4],
			},
		},
	}
	return &out, nil
}
