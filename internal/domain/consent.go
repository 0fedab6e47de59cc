package domain

import "time"

// ConsentCategory enumerates the per-tenant opt-in surfaces. Consent is
// checked per category: granting benchmarking does not imply predictive
// insights.
type ConsentCategory string

const (
	ConsentAggregateAnalytics ConsentCategory = "aggregate_analytics"
	ConsentBenchmarking       ConsentCategory = "benchmarking"
	ConsentPredictiveInsights ConsentCategory = "predictive_insights"
	ConsentAICoaching         ConsentCategory = "ai_coaching"
)

// AllConsentCategories lists every category, in stable order.
func AllConsentCategories() []ConsentCategory {
	return []ConsentCategory{
		ConsentAggregateAnalytics,
		ConsentBenchmarking,
		ConsentPredictiveInsights,
		ConsentAICoaching,
	}
}

// Valid reports whether c is a known consent category.
func (c ConsentCategory) Valid() bool {
	switch c {
	case ConsentAggregateAnalytics, ConsentBenchmarking, ConsentPredictiveInsights, ConsentAICoaching:
		return true
	}
	return false
}

// ConsentRecord is one entry in the append-only consent log. The current
// state for a (tenant, category) pair is the most recent record; history is
// never rewritten.
type ConsentRecord struct {
	ID        string          `json:"id" db:"id"`
	TenantID  string          `json:"tenant_id" db:"tenant_id"`
	Category  ConsentCategory `json:"category" db:"category"`
	Granted   bool            `json:"granted" db:"granted"`
	Actor     string          `json:"actor" db:"actor"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

// AuditAction enumerates the actions recorded in the immutable audit trail.
type AuditAction string

const (
	AuditConsentGranted   AuditAction = "consent_granted"
	AuditConsentWithdrawn AuditAction = "consent_withdrawn"
	AuditBudgetReset      AuditAction = "budget_reset"
)

// AuditRecord is one entry in the append-only audit trail. Every consent
// transition and every administrative budget reset appends exactly one.
type AuditRecord struct {
	ID        string          `json:"id" db:"id"`
	TenantID  string          `json:"tenant_id" db:"tenant_id"`
	Category  ConsentCategory `json:"category" db:"category"`
	Action    AuditAction     `json:"action" db:"action"`
	Actor     string          `json:"actor" db:"actor"`
	Detail    string          `json:"detail,omitempty" db:"detail"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

// BudgetEntry is the ledger row for one (tenant, category) privacy budget:
// epsilon consumed to date against a configured cap. Consumption only grows
// under normal traffic; only an audited administrative reset returns it to
// zero.
type BudgetEntry struct {
	TenantID  string          `json:"tenant_id" db:"tenant_id"`
	Category  ConsentCategory `json:"category" db:"category"`
	Consumed  float64         `json:"consumed" db:"consumed"`
	Cap       float64         `json:"cap" db:"cap"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// Remaining returns the unconsumed epsilon, never negative.
func (b BudgetEntry) Remaining() float64 {
	if b.Consumed >= b.Cap {
		return 0
	}
	return b.Cap - b.Consumed
}

// PrivacyReport is the user-facing transparency summary for one tenant:
// current consent per category plus budget consumption. It contains nothing
// derived from any other tenant.
type PrivacyReport struct {
	TenantID    string                   `json:"tenant_id"`
	Consents    map[ConsentCategory]bool `json:"consents"`
	Budgets     []BudgetEntry            `json:"budgets"`
	GeneratedAt time.Time                `json:"generated_at"`
}
