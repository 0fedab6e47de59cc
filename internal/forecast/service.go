package forecast

import (
	"context"
	"fmt"
	"time"

	"github.com/bookwell/insights/internal/domain"
	"github.com/bookwell/insights/internal/metricsource"
	"github.com/bookwell/insights/internal/pkg/logger"
)

// historyMonths is how far back the trend fit looks. A year captures one
// full seasonal cycle.
const historyMonths = 12

// ConsentGate is the slice of the consent service the forecaster needs.
type ConsentGate interface {
	Check(ctx context.Context, tenantID string, category domain.ConsentCategory) error
}

// HistorySource provides per-month series, for the tenant's own trend and
// for the cross-tenant industry substrate.
type HistorySource interface {
	History(ctx context.Context, tenantID string, metric domain.Metric, months int, end time.Time) ([]domain.HistoryPoint, error)
	CohortSnapshots(ctx context.Context, tenantIDs []string, metrics []domain.Metric, w domain.Window) ([]domain.TenantMetricSnapshot, error)
}

// ClientSource provides the raw reads the forecaster takes straight from the
// store: the tenant's own visit log and profile, and the cohort roster.
type ClientSource interface {
	ClientVisits(ctx context.Context, tenantID string, w domain.Window) ([]metricsource.ClientVisit, error)
	TenantProfile(ctx context.Context, tenantID string) (domain.TenantProfile, error)
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

// Service orchestrates forecasting and churn scoring, both gated on the
// predictive-insights consent category.
type Service struct {
	gate        ConsentGate
	history     HistorySource
	clients     ClientSource
	aggregator  Aggregator
	injector    Releaser
	quasiIDs    []domain.QuasiIdentifier
	sensitivity float64

	minPeriods   int
	baseInterval float64
	weights      Weights
	threshold    float64
}

// NewService wires the forecasting engine. minPeriods is the least history
// the trend fit accepts; baseInterval sizes the confidence interval at a
// one-month horizon.
func NewService(gate ConsentGate, history HistorySource, clients ClientSource, aggregator Aggregator, injector Releaser, quasiIDs []domain.QuasiIdentifier, sensitivity float64, minPeriods int, baseInterval float64, weights Weights, threshold float64) *Service {
	if len(quasiIDs) == 0 {
		quasiIDs = []domain.QuasiIdentifier{domain.QIBusinessSegment, domain.QILocationType}
	}
	if minPeriods < 2 {
		minPeriods = 3
	}
	return &Service{
		gate:         gate,
		history:      history,
		clients:      clients,
		aggregator:   aggregator,
		injector:     injector,
		quasiIDs:     quasiIDs,
		sensitivity:  sensitivity,
		minPeriods:   minPeriods,
		baseInterval: baseInterval,
		weights:      weights,
		threshold:    threshold,
	}
}

// Forecast projects monthly revenue horizonMonths ahead. The tenant needs at
// least minPeriods months of own activity; industry factors come from the
// tenant's anonymized peer group and degrade to neutral when that group is
// statistically unavailable, so a thin cohort never blocks a forecast.
func (s *Service) Forecast(ctx context.Context, tenantID string, horizonMonths int) (domain.ForecastResult, error) {
	if horizonMonths <= 0 {
		return domain.ForecastResult{}, fmt.Errorf("%w: %d months", ErrInvalidHorizon, horizonMonths)
	}
	if err := s.gate.Check(ctx, tenantID, domain.ConsentPredictiveInsights); err != nil {
		return domain.ForecastResult{}, err
	}

	now := time.Now().UTC()
	full, err := s.history.History(ctx, tenantID, domain.MetricMonthlyRevenue, historyMonths, now)
	if err != nil {
		return domain.ForecastResult{}, err
	}
	hist := trimLeadingZeros(full)
	if len(hist) < s.minPeriods {
		return domain.ForecastResult{}, fmt.Errorf("%w: %d periods, need %d", ErrInsufficientHistory, len(hist), s.minPeriods)
	}

	factors, err := s.industryFactors(ctx, tenantID, now, horizonMonths)
	if err != nil {
		return domain.ForecastResult{}, err
	}

	return Compute(tenantID, domain.MetricMonthlyRevenue, hist, factors, horizonMonths, s.baseInterval, now), nil
}

// Churn scores every client the tenant saw in the trailing year.
func (s *Service) Churn(ctx context.Context, tenantID string) ([]domain.ChurnScore, error) {
	if err := s.gate.Check(ctx, tenantID, domain.ConsentPredictiveInsights); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	w := domain.Window{Start: now.AddDate(0, -historyMonths, 0), End: now}
	visits, err := s.clients.ClientVisits(ctx, tenantID, w)
	if err != nil {
		return nil, err
	}
	return ScoreClients(tenantID, visits, s.weights, s.threshold, now), nil
}

// industryFactors derives the seasonal factor for the target month and the
// industry growth rate from the tenant's anonymized peer group. Only the two
// derived scalars leave the group series, each through the injector, so a
// forecast charges two epsilons regardless of series length. Neutral factors
// (seasonal 1, growth 0) stand in when the peer group is unavailable.
func (s *Service) industryFactors(ctx context.Context, tenantID string, now time.Time, horizonMonths int) (domain.ForecastFactors, error) {
	neutral := domain.ForecastFactors{SeasonalFactor: 1}

	series, err := s.groupSeries(ctx, tenantID, now)
	if err != nil {
		logger.Warn("industry series unavailable, using neutral factors",
			"tenant_id", tenantID, "err", err.Error())
		return neutral, nil
	}

	var sum float64
	for _, p := range series {
		sum += p.Value
	}
	mean := sum / float64(len(series))
	if mean == 0 {
		return neutral, nil
	}

	target := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, horizonMonths, 0)
	seasonal := 1.0
	for _, p := range series {
		if p.Period.Month() == target.Month() {
			seasonal = p.Value / mean
			break
		}
	}

	slope, _ := olsFit(series)
	growth := slope / mean

	// The trailing window the factors come from is part of the stat identity:
	// once the basis month rolls forward the series is new data and must be
	// released fresh rather than served from the session cache.
	basis := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).Format("2006-01")
	noisedSeasonal, err := s.injector.Release(ctx, seasonal, s.sensitivity, tenantID, domain.ConsentPredictiveInsights, "industry:"+basis+":seasonal:"+target.Month().String())
	if err != nil {
		return domain.ForecastFactors{}, err
	}
	noisedGrowth, err := s.injector.Release(ctx, growth, s.sensitivity, tenantID, domain.ConsentPredictiveInsights, "industry:"+basis+":growth")
	if err != nil {
		return domain.ForecastFactors{}, err
	}

	if noisedSeasonal <= 0 {
		noisedSeasonal = 1
	}
	return domain.ForecastFactors{SeasonalFactor: noisedSeasonal, IndustryGrowth: noisedGrowth}, nil
}

// groupSeries builds the trailing monthly mean-revenue series for the
// tenant's peer group out of consented cohort snapshots.
func (s *Service) groupSeries(ctx context.Context, tenantID string, now time.Time) ([]domain.HistoryPoint, error) {
	profile, err := s.clients.TenantProfile(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("tenant profile: %w", err)
	}
	values := make([]string, len(s.quasiIDs))
	for i, q := range s.quasiIDs {
		values[i] = profile.QuasiValue(q)
	}
	want := domain.MakeGroupKey(values)

	ids, err := s.clients.TenantIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list cohort: %w", err)
	}
	consented := ids[:0:0]
	for _, id := range ids {
		if s.gate.Check(ctx, id, domain.ConsentAggregateAnalytics) == nil {
			consented = append(consented, id)
		}
	}

	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(historyMonths - 1), 0)
	series := make([]domain.HistoryPoint, 0, historyMonths)
	for i := 0; i < historyMonths; i++ {
		start := first.AddDate(0, i, 0)
		w := domain.Window{Start: start, End: start.AddDate(0, 1, 0)}

		cohort, err := s.history.CohortSnapshots(ctx, consented, []domain.Metric{domain.MetricMonthlyRevenue}, w)
		if err != nil {
			return nil, err
		}
		groups, err := s.aggregator.Aggregate(cohort, s.quasiIDs, []domain.Metric{domain.MetricMonthlyRevenue})
		if err != nil {
			return nil, err
		}

		found := false
		for _, g := range groups {
			if g.Key == want {
				series = append(series, domain.HistoryPoint{Period: start, Value: g.Stats[domain.MetricMonthlyRevenue].Mean})
				found = true
				break
			}
		}
		if !found {
			// A month where the group fell under the suppression floor
			// breaks the series; factors degrade to neutral upstream.
			return nil, fmt.Errorf("peer group suppressed for %s", start.Format("2006-01"))
		}
	}
	return series, nil
}
