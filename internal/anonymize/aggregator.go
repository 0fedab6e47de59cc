package anonymize

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/bookwell/insights/internal/domain"
)

// Sentinel errors for the aggregation layer. Note there is deliberately no
// "group too small" error: suppression is expressed by absence in the result,
// never signalled.
var (
	ErrInvalidThreshold  = errors.New("anonymity threshold must be at least 2")
	ErrNoQuasiIdentifier = errors.New("at least one quasi-identifier is required")
)

// Aggregator groups tenant snapshots by quasi-identifier tuple and releases
// only group-level statistics for groups of at least k members.
type Aggregator struct {
	k int
}

// NewAggregator creates an aggregator with minimum group size k.
func NewAggregator(k int) (*Aggregator, error) {
	if k < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidThreshold, k)
	}
	return &Aggregator{k: k}, nil
}

// K returns the configured minimum group size.
func (a *Aggregator) K() int { return a.k }

// Aggregate partitions snapshots on the full tuple of the given
// quasi-identifiers and returns one AnonymizedGroup per partition with at
// least k members. Partitions below k are dropped silently. An empty result
// means no disclosable benchmark exists, not zero.
//
// Partitions are independent and read-only, so statistics are computed in
// parallel across them.
func (a *Aggregator) Aggregate(snapshots []domain.TenantMetricSnapshot, quasiIDs []domain.QuasiIdentifier, metrics []domain.Metric) ([]domain.AnonymizedGroup, error) {
	if len(quasiIDs) == 0 {
		return nil, ErrNoQuasiIdentifier
	}
	for _, q := range quasiIDs {
		if !q.Valid() {
			return nil, fmt.Errorf("unknown quasi-identifier %q", q)
		}
	}
	if len(metrics) == 0 {
		metrics = domain.AllMetrics()
	}

	partitions := make(map[domain.GroupKey][]domain.TenantMetricSnapshot)
	tupleValues := make(map[domain.GroupKey][]string)
	for _, s := range snapshots {
		values := make([]string, len(quasiIDs))
		for i, q := range quasiIDs {
			values[i] = s.Profile.QuasiValue(q)
		}
		key := domain.MakeGroupKey(values)
		partitions[key] = append(partitions[key], s)
		if _, ok := tupleValues[key]; !ok {
			tupleValues[key] = values
		}
	}

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		groups []domain.AnonymizedGroup
	)
	for key, members := range partitions {
		if len(members) < a.k {
			continue // suppressed, not redistributed
		}
		wg.Add(1)
		go func(key domain.GroupKey, members []domain.TenantMetricSnapshot) {
			defer wg.Done()
			g := buildGroup(key, tupleValues[key], quasiIDs, members, metrics)
			mu.Lock()
			groups = append(groups, g)
			mu.Unlock()
		}(key, members)
	}
	wg.Wait()

	sort.Slice(groups, func(i, j int) bool { return groups[i].Key < groups[j].Key })
	return groups, nil
}

func buildGroup(key domain.GroupKey, values []string, quasiIDs []domain.QuasiIdentifier, members []domain.TenantMetricSnapshot, metrics []domain.Metric) domain.AnonymizedGroup {
	stats := make(map[domain.Metric]domain.GroupStats, len(metrics))
	for _, m := range metrics {
		vals := make([]float64, len(members))
		for i, s := range members {
			vals[i] = s.MetricValue(m)
		}
		stats[m] = domain.GroupStats{
			Mean:        mean(vals),
			Percentiles: ladder(vals),
		}
	}
	return domain.AnonymizedGroup{
		Key:         key,
		Identifiers: quasiIDs,
		Values:      values,
		MemberCount: len(members),
		Stats:       stats,
	}
}
