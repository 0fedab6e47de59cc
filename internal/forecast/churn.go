package forecast

import (
	"math"
	"sort"
	"time"

	"github.com/bookwell/insights/internal/domain"
	"github.com/bookwell/insights/internal/metricsource"
)

// Weights blend the three RFM dimensions into one risk score. They need not
// sum to 1; ScoreClients normalizes by their total.
type Weights struct {
	Recency   float64
	Frequency float64
	Monetary  float64
}

type clientRollup struct {
	clientID  string
	lastVisit time.Time
	visits    int
	spend     float64
}

// ScoreClients computes RFM churn risk for every client in the visit set.
// Each dimension is normalized to [0,1] against the tenant's own client
// base, so scores are relative to this tenant's clientele and never compare
// across tenants. Higher component values mean healthier; risk is the
// weighted complement. Results are ordered riskiest first.
func ScoreClients(tenantID string, visits []metricsource.ClientVisit, wts Weights, threshold float64, asOf time.Time) []domain.ChurnScore {
	byClient := make(map[string]*clientRollup)
	for _, v := range visits {
		r, ok := byClient[v.ClientID]
		if !ok {
			r = &clientRollup{clientID: v.ClientID}
			byClient[v.ClientID] = r
		}
		r.visits++
		r.spend += v.Amount
		if v.VisitAt.After(r.lastVisit) {
			r.lastVisit = v.VisitAt
		}
	}
	if len(byClient) == 0 {
		return nil
	}

	rollups := make([]*clientRollup, 0, len(byClient))
	for _, r := range byClient {
		rollups = append(rollups, r)
	}

	minRec, maxRec := math.Inf(1), math.Inf(-1)
	minFreq, maxFreq := math.Inf(1), math.Inf(-1)
	minMon, maxMon := math.Inf(1), math.Inf(-1)
	for _, r := range rollups {
		rec := asOf.Sub(r.lastVisit).Hours() / 24
		minRec, maxRec = math.Min(minRec, rec), math.Max(maxRec, rec)
		minFreq, maxFreq = math.Min(minFreq, float64(r.visits)), math.Max(maxFreq, float64(r.visits))
		minMon, maxMon = math.Min(minMon, r.spend), math.Max(maxMon, r.spend)
	}

	total := wts.Recency + wts.Frequency + wts.Monetary
	if total == 0 {
		total = 1
	}

	now := asOf
	out := make([]domain.ChurnScore, 0, len(rollups))
	for _, r := range rollups {
		rec := now.Sub(r.lastVisit).Hours() / 24
		comp := domain.RFMComponents{
			// Recency is inverted: the longest-absent client scores 0.
			Recency:   1 - normalize(rec, minRec, maxRec),
			Frequency: normalize(float64(r.visits), minFreq, maxFreq),
			Monetary:  normalize(r.spend, minMon, maxMon),
		}
		risk := 1 - (wts.Recency*comp.Recency+wts.Frequency*comp.Frequency+wts.Monetary*comp.Monetary)/total

		score := domain.ChurnScore{
			TenantID:    tenantID,
			ClientID:    r.clientID,
			Risk:        risk,
			Components:  comp,
			AtRisk:      risk > threshold,
			GeneratedAt: now,
		}
		if score.AtRisk {
			score.Recommendation = recommend(comp)
		}
		out = append(out, score)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Risk != out[j].Risk {
			return out[i].Risk > out[j].Risk
		}
		return out[i].ClientID < out[j].ClientID
	})
	return out
}

// normalize maps v into [0,1] over the observed range. A degenerate range
// carries no relative signal, so every client scores healthy on it.
func normalize(v, min, max float64) float64 {
	if max == min {
		return 1
	}
	return (v - min) / (max - min)
}

// recommend picks the retention play from the dominant weak dimension. Ties
// fall to recency first, then frequency: a lapsed client needs re-engagement
// before anything else.
func recommend(c domain.RFMComponents) domain.RecommendationCategory {
	rec := domain.RecommendReEngagement
	low := c.Recency
	if c.Frequency < low {
		rec, low = domain.RecommendBookingCadence, c.Frequency
	}
	if c.Monetary < low {
		rec = domain.RecommendUpsell
	}
	return rec
}
