package forecast

import (
	"math"
	"time"

	"github.com/bookwell/insights/internal/domain"
)

// olsFit fits value = intercept + slope*index over the series by ordinary
// least squares. Index is the position in the series, oldest point first.
func olsFit(history []domain.HistoryPoint) (slope, intercept float64) {
	n := float64(len(history))
	if n == 0 {
		return 0, 0
	}
	if n == 1 {
		return 0, history[0].Value
	}

	var sumX, sumY, sumXY, sumXX float64
	for i, p := range history {
		x := float64(i)
		sumX += x
		sumY += p.Value
		sumXY += x * p.Value
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0, sumY / n
	}
	slope = (n*sumXY - sumX*sumY) / denom
	intercept = (sumY - slope*sumX) / n
	return slope, intercept
}

// Compute assembles a forecast from the tenant's own history and the
// already-noised industry factors. The point estimate is the trend
// projection at the horizon, scaled by the seasonal factor for the target
// month and compounded by the industry growth rate. The interval widens with
// horizon and narrows with history length.
func Compute(tenantID string, metric domain.Metric, history []domain.HistoryPoint, factors domain.ForecastFactors, horizonMonths int, baseInterval float64, now time.Time) domain.ForecastResult {
	slope, intercept := olsFit(history)
	factors.TrendSlope = slope

	n := len(history)
	projection := intercept + slope*float64(n-1+horizonMonths)
	estimate := projection * factors.SeasonalFactor * math.Pow(1+factors.IndustryGrowth, float64(horizonMonths))
	if estimate < 0 {
		estimate = 0
	}

	width := math.Abs(estimate) * baseInterval * float64(horizonMonths) / math.Sqrt(float64(n))
	low := estimate - width
	if low < 0 {
		low = 0
	}

	confidence := float64(n) / float64(n+horizonMonths)

	return domain.ForecastResult{
		TenantID:      tenantID,
		Metric:        metric,
		HorizonMonths: horizonMonths,
		Estimate:      estimate,
		IntervalLow:   low,
		IntervalHigh:  estimate + width,
		Confidence:    confidence,
		Factors:       factors,
		GeneratedAt:   now,
	}
}

// trimLeadingZeros drops months before the tenant's first recorded activity
// so that a young tenant's history length reflects actual operating periods.
func trimLeadingZeros(history []domain.HistoryPoint) []domain.HistoryPoint {
	for i, p := range history {
		if p.Value != 0 {
			return history[i:]
		}
	}
	return nil
}
