package metricsource

import (
	"context"
	"errors"
	"time"

	"github.com/bookwell/insights/internal/domain"
)

// ErrInvalidWindow means the requested window has start >= end. Caller
// programming error; fail fast.
var ErrInvalidWindow = errors.New("invalid reporting window")

// RawMetrics are the scalar fields read from the underlying store for one
// (tenant, window) pair.
type RawMetrics struct {
	Revenue          float64
	AppointmentCount int
}

// ClientVisit is one raw client visit with its paid amount. Visits feed
// both the retention metric and RFM churn scoring.
type ClientVisit struct {
	ClientID string
	VisitAt  time.Time
	Amount   float64
}

// RawSource is the read contract over the platform's raw data stores.
// Implementations must be deterministic for a fixed window and must report a
// missing tenant as zero metrics, not an error.
type RawSource interface {
	TenantMetrics(ctx context.Context, tenantID string, w domain.Window) (RawMetrics, error)
	ClientVisits(ctx context.Context, tenantID string, w domain.Window) ([]ClientVisit, error)
	TenantProfile(ctx context.Context, tenantID string) (domain.TenantProfile, error)

	// TenantIDs lists every tenant known to the store, for cohort-wide
	// extraction.
	TenantIDs(ctx context.Context) ([]string, error)
}
