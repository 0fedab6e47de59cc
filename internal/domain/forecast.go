package domain

import "time"

// HistoryPoint is one period of a tenant's own metric history, ordered oldest
// first when assembled into a series.
type HistoryPoint struct {
	Period time.Time `json:"period"`
	Value  float64   `json:"value"`
}

// ForecastFactors are the contributing inputs behind a forecast point
// estimate. Seasonal and industry factors are derived only from anonymized
// group aggregates, never from another tenant's raw figures.
type ForecastFactors struct {
	TrendSlope     float64 `json:"trend_slope"`
	SeasonalFactor float64 `json:"seasonal_factor"`
	IndustryGrowth float64 `json:"industry_growth"`
}

// ForecastResult is a revenue forecast for one tenant at one horizon.
type ForecastResult struct {
	TenantID      string          `json:"tenant_id"`
	Metric        Metric          `json:"metric"`
	HorizonMonths int             `json:"horizon_months"`
	Estimate      float64         `json:"estimate"`
	IntervalLow   float64         `json:"interval_low"`
	IntervalHigh  float64         `json:"interval_high"`
	Confidence    float64         `json:"confidence"`
	Factors       ForecastFactors `json:"factors"`
	GeneratedAt   time.Time       `json:"generated_at"`
}

// RecommendationCategory is the retention play suggested for an at-risk
// client, chosen from the dominant weak RFM dimension.
type RecommendationCategory string

const (
	RecommendReEngagement   RecommendationCategory = "re_engagement"
	RecommendBookingCadence RecommendationCategory = "booking_cadence"
	RecommendUpsell         RecommendationCategory = "upsell"
)

// RFMComponents are the normalized recency/frequency/monetary scores for one
// client, each in [0,1] where higher means healthier.
type RFMComponents struct {
	Recency   float64 `json:"recency"`
	Frequency float64 `json:"frequency"`
	Monetary  float64 `json:"monetary"`
}

// ChurnScore is the churn risk assessment for a single client of a tenant.
// Risk is in [0,1]; clients over the configured threshold carry a
// recommendation.
type ChurnScore struct {
	TenantID       string                 `json:"tenant_id"`
	ClientID       string                 `json:"client_id"`
	Risk           float64                `json:"risk"`
	Components     RFMComponents          `json:"components"`
	AtRisk         bool                   `json:"at_risk"`
	Recommendation RecommendationCategory `json:"recommendation,omitempty"`
	GeneratedAt    time.Time              `json:"generated_at"`
}
