package metricsource

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bookwell/insights/internal/domain"
	"github.com/bookwell/insights/internal/pkg/logger"
)

// Extractor reduces raw records to TenantMetricSnapshots. Each read is
// bounded by a fail-fast timeout so one slow tenant cannot stall a cohort
// run.
type Extractor struct {
	source  RawSource
	timeout time.Duration
	workers int
}

// NewExtractor creates an extractor over the given raw source.
func NewExtractor(source RawSource, timeout time.Duration, cohortWorkers int) *Extractor {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if cohortWorkers <= 0 {
		cohortWorkers = 8
	}
	return &Extractor{source: source, timeout: timeout, workers: cohortWorkers}
}

// TenantIDs lists every tenant in the underlying store.
func (e *Extractor) TenantIDs(ctx context.Context) ([]string, error) {
	return e.source.TenantIDs(ctx)
}

// Snapshot computes the metric snapshot for one tenant and window. Missing
// underlying data produces zero-valued metrics, never an absent tenant.
func (e *Extractor) Snapshot(ctx context.Context, tenantID string, metrics []domain.Metric, w domain.Window) (domain.TenantMetricSnapshot, error) {
	if !w.Valid() {
		return domain.TenantMetricSnapshot{}, fmt.Errorf("%w: start %s, end %s", ErrInvalidWindow, w.Start, w.End)
	}
	if len(metrics) == 0 {
		metrics = domain.AllMetrics()
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	raw, err := e.source.TenantMetrics(ctx, tenantID, w)
	if err != nil {
		return domain.TenantMetricSnapshot{}, fmt.Errorf("read tenant metrics: %w", err)
	}
	visits, err := e.source.ClientVisits(ctx, tenantID, w)
	if err != nil {
		return domain.TenantMetricSnapshot{}, fmt.Errorf("read client visits: %w", err)
	}
	profile, err := e.source.TenantProfile(ctx, tenantID)
	if err != nil {
		return domain.TenantMetricSnapshot{}, fmt.Errorf("read tenant profile: %w", err)
	}

	values := make(map[domain.Metric]float64, len(metrics))
	for _, m := range metrics {
		values[m] = reduce(m, raw, visits)
	}

	return domain.TenantMetricSnapshot{
		TenantID:  tenantID,
		Window:    w,
		Metrics:   values,
		Profile:   profile,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// CohortSnapshots extracts snapshots for every tenant in tenantIDs (or all
// known tenants when nil) with bounded fan-out. A failed extraction for one
// tenant is logged and skipped; it never aborts the rest of the cohort.
func (e *Extractor) CohortSnapshots(ctx context.Context, tenantIDs []string, metrics []domain.Metric, w domain.Window) ([]domain.TenantMetricSnapshot, error) {
	if !w.Valid() {
		return nil, fmt.Errorf("%w: start %s, end %s", ErrInvalidWindow, w.Start, w.End)
	}
	if tenantIDs == nil {
		ids, err := e.source.TenantIDs(ctx)
		if err != nil {
			return nil, fmt.Errorf("list tenants: %w", err)
		}
		tenantIDs = ids
	}

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		out   []domain.TenantMetricSnapshot
		tasks = make(chan string)
	)
	for i := 0; i < e.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for tenantID := range tasks {
				snap, err := e.Snapshot(ctx, tenantID, metrics, w)
				if err != nil {
					logger.Warn("cohort extraction skipped tenant",
						"tenant_id", tenantID, "err", err.Error())
					continue
				}
				mu.Lock()
				out = append(out, snap)
				mu.Unlock()
			}
		}()
	}

	for _, id := range tenantIDs {
		if err := ctx.Err(); err != nil {
			close(tasks)
			wg.Wait()
			return nil, err
		}
		select {
		case tasks <- id:
		case <-ctx.Done():
			close(tasks)
			wg.Wait()
			return nil, ctx.Err()
		}
	}
	close(tasks)
	wg.Wait()
	return out, nil
}

// History computes per-month snapshots for the given number of trailing
// calendar months, oldest first, ending at the month containing end.
func (e *Extractor) History(ctx context.Context, tenantID string, metric domain.Metric, months int, end time.Time) ([]domain.HistoryPoint, error) {
	if months <= 0 {
		return nil, fmt.Errorf("%w: %d months", ErrInvalidWindow, months)
	}

	first := time.Date(end.Year(), end.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(months - 1), 0)
	out := make([]domain.HistoryPoint, 0, months)
	for i := 0; i < months; i++ {
		start := first.AddDate(0, i, 0)
		w := domain.Window{Start: start, End: start.AddDate(0, 1, 0)}
		snap, err := e.Snapshot(ctx, tenantID, []domain.Metric{metric}, w)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.HistoryPoint{Period: start, Value: snap.MetricValue(metric)})
	}
	return out, nil
}

// reduce turns raw reads into one scalar metric value.
func reduce(m domain.Metric, raw RawMetrics, visits []ClientVisit) float64 {
	switch m {
	case domain.MetricMonthlyRevenue:
		return raw.Revenue
	case domain.MetricAppointmentCount:
		return float64(raw.AppointmentCount)
	case domain.MetricAverageTicket:
		if raw.AppointmentCount == 0 {
			return 0
		}
		return raw.Revenue / float64(raw.AppointmentCount)
	case domain.MetricClientRetention:
		return retention(visits)
	}
	return 0
}

// retention is the fraction of distinct clients with more than one visit in
// the window.
func retention(visits []ClientVisit) float64 {
	counts := make(map[string]int)
	for _, v := range visits {
		counts[v.ClientID]++
	}
	if len(counts) == 0 {
		return 0
	}
	repeat := 0
	for _, n := range counts {
		if n > 1 {
			repeat++
		}
	}
	return float64(repeat) / float64(len(counts))
}
