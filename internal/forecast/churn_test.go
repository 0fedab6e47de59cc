package forecast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookwell/insights/internal/domain"
	"github.com/bookwell/insights/internal/metricsource"
)

var churnAsOf = time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

func visit(clientID string, daysAgo int, amount float64) metricsource.ClientVisit {
	return metricsource.ClientVisit{
		ClientID: clientID,
		VisitAt:  churnAsOf.AddDate(0, 0, -daysAgo),
		Amount:   amount,
	}
}

func defaultWeights() Weights {
	return Weights{Recency: 0.4, Frequency: 0.3, Monetary: 0.3}
}

func scoreByClient(scores []domain.ChurnScore) map[string]domain.ChurnScore {
	out := make(map[string]domain.ChurnScore, len(scores))
	for _, s := range scores {
		out[s.ClientID] = s
	}
	return out
}

func TestScoreClientsEmptyVisits(t *testing.T) {
	assert.Nil(t, ScoreClients("salon-1", nil, defaultWeights(), 0.6, churnAsOf))
}

func TestScoreClientsSingleClientNotFlagged(t *testing.T) {
	visits := []metricsource.ClientVisit{visit("c1", 200, 40)}

	scores := ScoreClients("salon-1", visits, defaultWeights(), 0.6, churnAsOf)

	require.Len(t, scores, 1)
	// One client gives no relative signal on any dimension.
	assert.Equal(t, 0.0, scores[0].Risk)
	assert.False(t, scores[0].AtRisk)
}

func TestScoreClientsRelativeRisk(t *testing.T) {
	visits := []metricsource.ClientVisit{
		visit("alice", 5, 100), visit("alice", 10, 100), visit("alice", 20, 100),
		visit("bob", 100, 50),
		visit("carol", 15, 60), visit("carol", 30, 60),
	}

	scores := ScoreClients("salon-1", visits, defaultWeights(), 0.6, churnAsOf)
	require.Len(t, scores, 3)
	by := scoreByClient(scores)

	// The best client on every dimension carries zero risk, the worst full
	// risk. Lapsed-on-everything bob ties weak on all three dimensions and
	// the tie falls to recency.
	assert.Equal(t, 0.0, by["alice"].Risk)
	assert.False(t, by["alice"].AtRisk)

	assert.InDelta(t, 1.0, by["bob"].Risk, 1e-9)
	assert.True(t, by["bob"].AtRisk)
	assert.Equal(t, domain.RecommendReEngagement, by["bob"].Recommendation)

	assert.Greater(t, by["carol"].Risk, 0.0)
	assert.Less(t, by["carol"].Risk, 0.6)
	assert.False(t, by["carol"].AtRisk)
	assert.Empty(t, by["carol"].Recommendation)

	// Riskiest first.
	assert.Equal(t, "bob", scores[0].ClientID)
}

func TestScoreClientsFrequencyRecommendation(t *testing.T) {
	visits := []metricsource.ClientVisit{
		visit("regular", 5, 50),
	}
	for d := 10; d <= 100; d += 10 {
		visits = append(visits, visit("regular", d, 50))
	}
	visits = append(visits,
		visit("oneoff", 6, 600),
		visit("lapsed", 60, 50), visit("lapsed", 70, 50), visit("lapsed", 80, 50),
		visit("lapsed", 90, 50), visit("lapsed", 100, 50), visit("lapsed", 110, 50),
		visit("lapsed", 120, 50), visit("lapsed", 130, 50),
	)

	scores := ScoreClients("salon-1", visits, Weights{Recency: 1, Frequency: 1, Monetary: 1}, 0.3, churnAsOf)
	by := scoreByClient(scores)

	// oneoff is recent and the top spender but visits least: the dominant
	// weak dimension is frequency.
	one := by["oneoff"]
	require.True(t, one.AtRisk)
	assert.Equal(t, domain.RecommendBookingCadence, one.Recommendation)
	assert.Less(t, one.Components.Frequency, one.Components.Recency)
	assert.Less(t, one.Components.Frequency, one.Components.Monetary)
}

func TestScoreClientsMonetaryRecommendation(t *testing.T) {
	visits := []metricsource.ClientVisit{
		visit("whale", 5, 250), visit("whale", 12, 250),
		visit("saver", 7, 50), visit("saver", 14, 50),
		visit("ghost", 60, 240), visit("ghost", 70, 240),
	}

	scores := ScoreClients("salon-1", visits, Weights{Recency: 1, Frequency: 1, Monetary: 1}, 0.1, churnAsOf)
	by := scoreByClient(scores)

	// saver visits as often and as recently as the whale but spends least.
	s := by["saver"]
	require.True(t, s.AtRisk)
	assert.Equal(t, domain.RecommendUpsell, s.Recommendation)
}

func TestScoreClientsComponentsInUnitRange(t *testing.T) {
	visits := []metricsource.ClientVisit{
		visit("a", 1, 10), visit("b", 50, 500), visit("c", 400, 90),
		visit("c", 300, 10), visit("b", 30, 70),
	}

	for _, s := range ScoreClients("salon-1", visits, defaultWeights(), 0.6, churnAsOf) {
		assert.GreaterOrEqual(t, s.Risk, 0.0)
		assert.LessOrEqual(t, s.Risk, 1.0)
		for _, c := range []float64{s.Components.Recency, s.Components.Frequency, s.Components.Monetary} {
			assert.GreaterOrEqual(t, c, 0.0)
			assert.LessOrEqual(t, c, 1.0)
		}
	}
}
