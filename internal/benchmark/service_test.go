package benchmark_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookwell/insights/internal/anonymize"
	"github.com/bookwell/insights/internal/benchmark"
	"github.com/bookwell/insights/internal/consent"
	"github.com/bookwell/insights/internal/domain"
	"github.com/bookwell/insights/internal/privacy"
)

// fakeGate is a map-backed consent gate.
type fakeGate struct {
	mu      sync.Mutex
	granted map[string]bool // tenant/category
}

func newFakeGate() *fakeGate { return &fakeGate{granted: make(map[string]bool)} }

func (g *fakeGate) grant(tenant string, cat domain.ConsentCategory) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.granted[tenant+"/"+string(cat)] = true
}

func (g *fakeGate) revoke(tenant string, cat domain.ConsentCategory) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.granted, tenant+"/"+string(cat))
}

func (g *fakeGate) Check(_ context.Context, tenant string, cat domain.ConsentCategory) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.granted[tenant+"/"+string(cat)] {
		return consent.ErrConsentRequired
	}
	return nil
}

// fakeSnapshots serves canned snapshots for a cohort of tenants.
type fakeSnapshots struct {
	snaps map[string]domain.TenantMetricSnapshot
}

func (f *fakeSnapshots) Snapshot(_ context.Context, tenantID string, _ []domain.Metric, w domain.Window) (domain.TenantMetricSnapshot, error) {
	s, ok := f.snaps[tenantID]
	if !ok {
		return domain.TenantMetricSnapshot{TenantID: tenantID, Window: w, Metrics: map[domain.Metric]float64{}}, nil
	}
	return s, nil
}

func (f *fakeSnapshots) CohortSnapshots(_ context.Context, tenantIDs []string, _ []domain.Metric, _ domain.Window) ([]domain.TenantMetricSnapshot, error) {
	var out []domain.TenantMetricSnapshot
	for _, id := range tenantIDs {
		if s, ok := f.snaps[id]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSnapshots) TenantIDs(_ context.Context) ([]string, error) {
	ids := make([]string, 0, len(f.snaps))
	for id := range f.snaps {
		ids = append(ids, id)
	}
	return ids, nil
}

// memCache is an in-memory ResultCache.
type memCache struct {
	mu      sync.Mutex
	entries map[string]domain.BenchmarkResult
}

func newMemCache() *memCache { return &memCache{entries: make(map[string]domain.BenchmarkResult)} }

func (c *memCache) key(tenant string, cat domain.ConsentCategory, m domain.Metric) string {
	return tenant + "/" + string(cat) + "/" + string(m)
}

func (c *memCache) Get(_ context.Context, tenant string, cat domain.ConsentCategory, m domain.Metric, _ domain.Window) (*domain.BenchmarkResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if res, ok := c.entries[c.key(tenant, cat, m)]; ok {
		cp := res
		return &cp, nil
	}
	return nil, nil
}

func (c *memCache) Set(_ context.Context, cat domain.ConsentCategory, _ domain.Window, res domain.BenchmarkResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[c.key(res.TenantID, cat, res.Metric)] = res
	return nil
}

func (c *memCache) Invalidate(_ context.Context, tenant string, cat domain.ConsentCategory) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if len(k) > len(tenant) && k[:len(tenant)] == tenant {
			delete(c.entries, k)
		}
	}
	return nil
}

func buildCohort(n int, segment string) map[string]domain.TenantMetricSnapshot {
	w := domain.Window{
		Start: time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
	}
	snaps := make(map[string]domain.TenantMetricSnapshot, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("%s-%d", segment, i)
		snaps[id] = domain.TenantMetricSnapshot{
			TenantID: id,
			Window:   w,
			Metrics: map[domain.Metric]float64{
				domain.MetricMonthlyRevenue:   float64(1000 + 100*i),
				domain.MetricAppointmentCount: float64(30 + i),
			},
			Profile: domain.TenantProfile{BusinessSegment: segment, LocationType: "urban", ServiceType: "haircut"},
		}
	}
	return snaps
}

type serviceFixture struct {
	gate    *fakeGate
	cache   *memCache
	service *benchmark.Service
	window  domain.Window
}

func newServiceFixture(t *testing.T, cohortSize, k int) *serviceFixture {
	t.Helper()
	gate := newFakeGate()
	snaps := &fakeSnapshots{snaps: buildCohort(cohortSize, "salon")}
	for id := range snaps.snaps {
		gate.grant(id, domain.ConsentAggregateAnalytics)
	}

	agg, err := anonymize.NewAggregator(k)
	require.NoError(t, err)

	ledger := privacy.NewMemoryLedger(100)
	injector, err := privacy.NewInjector(ledger, 0.5)
	require.NoError(t, err)

	cache := newMemCache()
	svc := benchmark.NewService(gate, snaps, agg, injector, cache,
		[]domain.QuasiIdentifier{domain.QIBusinessSegment, domain.QILocationType}, 1.0)

	return &serviceFixture{
		gate:    gate,
		cache:   cache,
		service: svc,
		window: domain.Window{
			Start: time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		},
	}
}

func TestBenchmarkRequiresConsent(t *testing.T) {
	fix := newServiceFixture(t, 20, 10)
	ctx := context.Background()

	// Idempotent rejection: same error twice, no state change in between.
	for i := 0; i < 2; i++ {
		_, err := fix.service.Benchmark(ctx, "salon-0", domain.MetricMonthlyRevenue, fix.window)
		assert.ErrorIs(t, err, consent.ErrConsentRequired)
	}
}

func TestBenchmarkHappyPath(t *testing.T) {
	fix := newServiceFixture(t, 20, 10)
	ctx := context.Background()
	fix.gate.grant("salon-10", domain.ConsentBenchmarking)

	res, err := fix.service.Benchmark(ctx, "salon-10", domain.MetricMonthlyRevenue, fix.window)
	require.NoError(t, err)

	assert.Equal(t, "salon-10", res.TenantID)
	assert.Equal(t, 20, res.GroupSize)
	assert.Equal(t, 2000.0, res.Value)
	// salon-10 sits mid-cohort; noise moves the rank but not out of a broad
	// middle band with epsilon=0.5 on a $1000-spread ladder.
	assert.Greater(t, res.Percentile, 0.0)
	assert.Less(t, res.Percentile, 100.0)
	assert.Equal(t, domain.TierSmall, res.Tier)
	assert.NotEmpty(t, res.Insight)
}

func TestBenchmarkGroupUnavailableWhenCohortTooSmall(t *testing.T) {
	fix := newServiceFixture(t, 5, 10) // cohort of 5 under k=10
	ctx := context.Background()
	fix.gate.grant("salon-0", domain.ConsentBenchmarking)

	_, err := fix.service.Benchmark(ctx, "salon-0", domain.MetricMonthlyRevenue, fix.window)
	assert.ErrorIs(t, err, benchmark.ErrGroupUnavailable)
}

func TestBenchmarkExcludesNonConsentedPeers(t *testing.T) {
	fix := newServiceFixture(t, 12, 10)
	ctx := context.Background()
	fix.gate.grant("salon-0", domain.ConsentBenchmarking)

	// Pulling three peers out of aggregate analytics drops the cohort to 9,
	// under k=10: the benchmark must disappear rather than include them.
	fix.gate.revoke("salon-1", domain.ConsentAggregateAnalytics)
	fix.gate.revoke("salon-2", domain.ConsentAggregateAnalytics)
	fix.gate.revoke("salon-3", domain.ConsentAggregateAnalytics)

	_, err := fix.service.Benchmark(ctx, "salon-0", domain.MetricMonthlyRevenue, fix.window)
	assert.ErrorIs(t, err, benchmark.ErrGroupUnavailable)
}

func TestBenchmarkCachesResult(t *testing.T) {
	fix := newServiceFixture(t, 20, 10)
	ctx := context.Background()
	fix.gate.grant("salon-3", domain.ConsentBenchmarking)

	first, err := fix.service.Benchmark(ctx, "salon-3", domain.MetricMonthlyRevenue, fix.window)
	require.NoError(t, err)
	second, err := fix.service.Benchmark(ctx, "salon-3", domain.MetricMonthlyRevenue, fix.window)
	require.NoError(t, err)
	assert.Equal(t, first, second, "second call must come from cache")
}

func TestBenchmarkConsentRoundTrip(t *testing.T) {
	fix := newServiceFixture(t, 20, 10)
	ctx := context.Background()
	fix.gate.grant("salon-3", domain.ConsentBenchmarking)

	_, err := fix.service.Benchmark(ctx, "salon-3", domain.MetricMonthlyRevenue, fix.window)
	require.NoError(t, err)

	// Revoking after a successful call fails subsequent identical calls,
	// regardless of the cached result.
	fix.gate.revoke("salon-3", domain.ConsentBenchmarking)
	require.NoError(t, fix.cache.Invalidate(ctx, "salon-3", domain.ConsentBenchmarking))

	_, err = fix.service.Benchmark(ctx, "salon-3", domain.MetricMonthlyRevenue, fix.window)
	assert.ErrorIs(t, err, consent.ErrConsentRequired)
}

func TestBenchmarkBudgetExhaustion(t *testing.T) {
	gate := newFakeGate()
	snaps := &fakeSnapshots{snaps: buildCohort(20, "salon")}
	for id := range snaps.snaps {
		gate.grant(id, domain.ConsentAggregateAnalytics)
	}
	gate.grant("salon-0", domain.ConsentBenchmarking)

	agg, err := anonymize.NewAggregator(10)
	require.NoError(t, err)

	// Cap of 1.0 with 0.5 per release: the six releases a benchmark needs
	// (five rungs + mean) cannot fit.
	ledger := privacy.NewMemoryLedger(1.0)
	injector, err := privacy.NewInjector(ledger, 0.5)
	require.NoError(t, err)

	svc := benchmark.NewService(gate, snaps, agg, injector, nil,
		[]domain.QuasiIdentifier{domain.QIBusinessSegment}, 1.0)

	w := domain.Window{
		Start: time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
	}
	_, err = svc.Benchmark(context.Background(), "salon-0", domain.MetricMonthlyRevenue, w)
	assert.ErrorIs(t, err, privacy.ErrBudgetExhausted)
}

// windowedSnapshots serves a different cohort per reporting window, keyed by
// the window's start month.
type windowedSnapshots struct {
	byMonth map[time.Month]map[string]domain.TenantMetricSnapshot
}

func (f *windowedSnapshots) Snapshot(_ context.Context, tenantID string, _ []domain.Metric, w domain.Window) (domain.TenantMetricSnapshot, error) {
	if s, ok := f.byMonth[w.Start.Month()][tenantID]; ok {
		return s, nil
	}
	return domain.TenantMetricSnapshot{TenantID: tenantID, Window: w, Metrics: map[domain.Metric]float64{}}, nil
}

func (f *windowedSnapshots) CohortSnapshots(_ context.Context, tenantIDs []string, _ []domain.Metric, w domain.Window) ([]domain.TenantMetricSnapshot, error) {
	var out []domain.TenantMetricSnapshot
	for _, id := range tenantIDs {
		if s, ok := f.byMonth[w.Start.Month()][id]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *windowedSnapshots) TenantIDs(_ context.Context) ([]string, error) {
	var ids []string
	for _, cohort := range f.byMonth {
		for id := range cohort {
			ids = append(ids, id)
		}
		break
	}
	return ids, nil
}

func cohortAt(n int, segment string, w domain.Window, base float64) map[string]domain.TenantMetricSnapshot {
	snaps := make(map[string]domain.TenantMetricSnapshot, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("%s-%d", segment, i)
		snaps[id] = domain.TenantMetricSnapshot{
			TenantID: id,
			Window:   w,
			Metrics: map[domain.Metric]float64{
				domain.MetricMonthlyRevenue:   base + float64(100*i),
				domain.MetricAppointmentCount: float64(30 + i),
			},
			Profile: domain.TenantProfile{BusinessSegment: segment, LocationType: "urban", ServiceType: "haircut"},
		}
	}
	return snaps
}

func TestBenchmarkRanksEachWindowAgainstItsOwnCohort(t *testing.T) {
	july := domain.Window{
		Start: time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
	}
	august := domain.Window{
		Start: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
	}
	// July revenues sit around $1k, August around $100k. The tenant is
	// mid-cohort in both months, so both ranks must land mid-band; ranking
	// August's value against a stale July ladder would pin it at the top.
	snaps := &windowedSnapshots{byMonth: map[time.Month]map[string]domain.TenantMetricSnapshot{
		time.July:   cohortAt(20, "salon", july, 1000),
		time.August: cohortAt(20, "salon", august, 100000),
	}}

	gate := newFakeGate()
	for i := 0; i < 20; i++ {
		gate.grant(fmt.Sprintf("salon-%d", i), domain.ConsentAggregateAnalytics)
	}
	gate.grant("salon-10", domain.ConsentBenchmarking)

	agg, err := anonymize.NewAggregator(10)
	require.NoError(t, err)
	injector, err := privacy.NewInjector(privacy.NewMemoryLedger(100), 0.5)
	require.NoError(t, err)
	svc := benchmark.NewService(gate, snaps, agg, injector, nil,
		[]domain.QuasiIdentifier{domain.QIBusinessSegment, domain.QILocationType}, 1e-6)

	ctx := context.Background()
	julyRes, err := svc.Benchmark(ctx, "salon-10", domain.MetricMonthlyRevenue, july)
	require.NoError(t, err)
	augustRes, err := svc.Benchmark(ctx, "salon-10", domain.MetricMonthlyRevenue, august)
	require.NoError(t, err)

	assert.Equal(t, 2000.0, julyRes.Value)
	assert.Equal(t, 101000.0, augustRes.Value)
	assert.Greater(t, julyRes.Percentile, 30.0)
	assert.Less(t, julyRes.Percentile, 70.0)
	assert.Greater(t, augustRes.Percentile, 30.0)
	assert.Less(t, augustRes.Percentile, 70.0)
}

func TestBenchmarkUnknownMetric(t *testing.T) {
	fix := newServiceFixture(t, 20, 10)
	_, err := fix.service.Benchmark(context.Background(), "salon-0", "vibes", fix.window)
	assert.ErrorIs(t, err, benchmark.ErrUnknownMetric)
}
