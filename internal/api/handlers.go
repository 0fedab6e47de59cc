package api

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bookwell/insights/internal/benchmark"
	"github.com/bookwell/insights/internal/consent"
	"github.com/bookwell/insights/internal/domain"
	"github.com/bookwell/insights/internal/forecast"
	"github.com/bookwell/insights/internal/metricsource"
	"github.com/bookwell/insights/internal/pkg/httputil"
	"github.com/bookwell/insights/internal/privacy"
)

// ConsentService is the slice of the consent service the handlers need.
type ConsentService interface {
	Set(ctx context.Context, tenantID string, category domain.ConsentCategory, granted bool, actor string) error
	States(ctx context.Context, tenantID string) (map[domain.ConsentCategory]bool, error)
	RecordBudgetReset(ctx context.Context, tenantID string, category domain.ConsentCategory, actor, detail string) error
}

// BenchmarkService produces percentile standings.
type BenchmarkService interface {
	Benchmark(ctx context.Context, tenantID string, metric domain.Metric, w domain.Window) (domain.BenchmarkResult, error)
}

// ForecastService produces forecasts and churn scores.
type ForecastService interface {
	Forecast(ctx context.Context, tenantID string, horizonMonths int) (domain.ForecastResult, error)
	Churn(ctx context.Context, tenantID string) ([]domain.ChurnScore, error)
}

// BudgetService reads and resets privacy budget entries.
type BudgetService interface {
	Budget(ctx context.Context, tenantID string, category domain.ConsentCategory) (domain.BudgetEntry, error)
	ResetBudget(ctx context.Context, tenantID string, category domain.ConsentCategory) error
}

// Handlers holds all HTTP handlers and their dependencies.
type Handlers struct {
	consents   ConsentService
	benchmarks BenchmarkService
	forecasts  ForecastService
	budgets    BudgetService

	// Health check dependencies; either may be nil.
	db        *sql.DB
	redis     *redis.Client
	startTime time.Time
}

// NewHandlers creates the handler set.
func NewHandlers(consents ConsentService, benchmarks BenchmarkService, forecasts ForecastService, budgets BudgetService, db *sql.DB, redisClient *redis.Client) *Handlers {
	return &Handlers{
		consents:   consents,
		benchmarks: benchmarks,
		forecasts:  forecasts,
		budgets:    budgets,
		db:         db,
		redis:      redisClient,
		startTime:  time.Now(),
	}
}

// HealthCheck reports process health plus dependency reachability.
//
//	GET /health
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]string{}
	status := "healthy"
	if h.db != nil {
		checks["postgres"] = "up"
		if err := h.db.PingContext(ctx); err != nil {
			checks["postgres"] = "down"
			status = "degraded"
		}
	}
	if h.redis != nil {
		checks["redis"] = "up"
		if err := h.redis.Ping(ctx).Err(); err != nil {
			checks["redis"] = "down"
			status = "degraded"
		}
	}

	httputil.OK(w, map[string]any{
		"status": status,
		"uptime": time.Since(h.startTime).Round(time.Second).String(),
		"checks": checks,
	})
}

type consentRequest struct {
	Category domain.ConsentCategory `json:"category"`
	Granted  bool                   `json:"granted"`
}

// PostConsent records a consent grant or withdrawal for the calling tenant.
//
//	POST /api/consent
func (h *Handlers) PostConsent(w http.ResponseWriter, r *http.Request) {
	var req consentRequest
	if !httputil.Decode(w, r, &req) {
		return
	}

	tenantID := TenantID(r.Context())
	actor := r.Header.Get("X-Actor")
	if actor == "" {
		actor = tenantID
	}

	if err := h.consents.Set(r.Context(), tenantID, req.Category, req.Granted, actor); err != nil {
		writeDomainError(w, err)
		return
	}
	httputil.NoContent(w)
}

// GetConsentStates returns the current consent state per category.
//
//	GET /api/consent
func (h *Handlers) GetConsentStates(w http.ResponseWriter, r *http.Request) {
	states, err := h.consents.States(r.Context(), TenantID(r.Context()))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	httputil.OK(w, states)
}

// GetBenchmark returns the tenant's percentile standing for one metric.
// The window defaults to the previous full calendar month; pass
// month=YYYY-MM to pick another.
//
//	GET /api/benchmark?metric=monthly_revenue&month=2026-07
func (h *Handlers) GetBenchmark(w http.ResponseWriter, r *http.Request) {
	metric := domain.Metric(r.URL.Query().Get("metric"))
	if !metric.Valid() {
		httputil.ErrorCode(w, http.StatusBadRequest, "unknown_metric", "unknown or missing metric")
		return
	}

	window, err := monthWindow(r.URL.Query().Get("month"))
	if err != nil {
		httputil.ErrorCode(w, http.StatusBadRequest, "invalid_window", err.Error())
		return
	}

	res, err := h.benchmarks.Benchmark(r.Context(), TenantID(r.Context()), metric, window)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	httputil.OK(w, res)
}

// GetForecast returns a revenue forecast.
//
//	GET /api/forecast?horizon_months=3
func (h *Handlers) GetForecast(w http.ResponseWriter, r *http.Request) {
	horizon := 1
	if raw := r.URL.Query().Get("horizon_months"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			httputil.ErrorCode(w, http.StatusBadRequest, "invalid_horizon", "horizon_months must be an integer")
			return
		}
		horizon = n
	}

	res, err := h.forecasts.Forecast(r.Context(), TenantID(r.Context()), horizon)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	httputil.OK(w, res)
}

// GetChurn returns churn risk scores for the tenant's clients, riskiest
// first.
//
//	GET /api/churn
func (h *Handlers) GetChurn(w http.ResponseWriter, r *http.Request) {
	scores, err := h.forecasts.Churn(r.Context(), TenantID(r.Context()))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	httputil.OK(w, scores)
}

// GetPrivacyReport returns the transparency summary: consent states plus
// budget consumption per category.
//
//	GET /api/privacy-report
func (h *Handlers) GetPrivacyReport(w http.ResponseWriter, r *http.Request) {
	tenantID := TenantID(r.Context())

	states, err := h.consents.States(r.Context(), tenantID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	budgets := make([]domain.BudgetEntry, 0, len(domain.AllConsentCategories()))
	for _, cat := range domain.AllConsentCategories() {
		entry, err := h.budgets.Budget(r.Context(), tenantID, cat)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		budgets = append(budgets, entry)
	}

	httputil.OK(w, domain.PrivacyReport{
		TenantID:    tenantID,
		Consents:    states,
		Budgets:     budgets,
		GeneratedAt: time.Now().UTC(),
	})
}

type budgetResetRequest struct {
	Category domain.ConsentCategory `json:"category"`
	Reason   string                 `json:"reason"`
}

// PostBudgetReset zeroes the tenant's budget for one category and appends
// the audit record naming the acting admin.
//
//	POST /api/admin/budget-reset
func (h *Handlers) PostBudgetReset(w http.ResponseWriter, r *http.Request) {
	var req budgetResetRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if !req.Category.Valid() {
		httputil.ErrorCode(w, http.StatusBadRequest, "invalid_category", "unknown consent category")
		return
	}

	tenantID := TenantID(r.Context())
	actor := Actor(r.Context())

	if err := h.budgets.ResetBudget(r.Context(), tenantID, req.Category); err != nil {
		writeDomainError(w, err)
		return
	}
	if err := h.consents.RecordBudgetReset(r.Context(), tenantID, req.Category, actor, req.Reason); err != nil {
		writeDomainError(w, err)
		return
	}
	httputil.NoContent(w)
}

// monthWindow parses a YYYY-MM month into a calendar-month window, defaulting
// to the previous full month.
func monthWindow(raw string) (domain.Window, error) {
	if raw == "" {
		now := time.Now().UTC()
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)
		return domain.Window{Start: start, End: start.AddDate(0, 1, 0)}, nil
	}
	start, err := time.Parse("2006-01", raw)
	if err != nil {
		return domain.Window{}, errors.New("month must be formatted YYYY-MM")
	}
	return domain.Window{Start: start, End: start.AddDate(0, 1, 0)}, nil
}

// writeDomainError maps the domain error taxonomy onto HTTP statuses with
// stable machine-readable codes. Statistical absence (group_unavailable) and
// privacy hard stops (budget_exhausted) must stay distinguishable without
// parsing prose.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, consent.ErrConsentRequired):
		httputil.ErrorCode(w, http.StatusForbidden, "consent_required", "tenant has not granted consent for this feature")
	case errors.Is(err, benchmark.ErrGroupUnavailable):
		httputil.ErrorCode(w, http.StatusNotFound, "group_unavailable", "no peer group can be disclosed for this tenant yet")
	case errors.Is(err, privacy.ErrBudgetExhausted):
		httputil.ErrorCode(w, http.StatusTooManyRequests, "budget_exhausted", "privacy budget exhausted for this period")
	case errors.Is(err, forecast.ErrInsufficientHistory):
		httputil.ErrorCode(w, http.StatusConflict, "insufficient_history", "not enough history to produce a forecast")
	case errors.Is(err, consent.ErrInvalidCategory):
		httputil.ErrorCode(w, http.StatusBadRequest, "invalid_category", "unknown consent category")
	case errors.Is(err, benchmark.ErrUnknownMetric):
		httputil.ErrorCode(w, http.StatusBadRequest, "unknown_metric", "unknown metric")
	case errors.Is(err, forecast.ErrInvalidHorizon):
		httputil.ErrorCode(w, http.StatusBadRequest, "invalid_horizon", "horizon must be a positive number of months")
	case errors.Is(err, metricsource.ErrInvalidWindow):
		httputil.ErrorCode(w, http.StatusBadRequest, "invalid_window", "invalid time window")
	case errors.Is(err, privacy.ErrInvalidParameter):
		httputil.ErrorCode(w, http.StatusBadRequest, "invalid_privacy_parameter", "invalid privacy parameter")
	default:
		httputil.InternalError(w, err)
	}
}
