package consent

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bookwell/insights/internal/domain"
	"github.com/bookwell/insights/internal/pkg/logger"
)

// Service is the consent gate. Safe for concurrent use when the underlying
// repositories are.
type Service struct {
	repo         Repository
	audit        AuditRepository
	invalidators []Invalidator
}

// NewService creates a consent service backed by the given repositories.
func NewService(repo Repository, audit AuditRepository) *Service {
	return &Service{repo: repo, audit: audit}
}

// RegisterInvalidator adds a cache invalidation hook called on every
// withdrawal. Must be called during wiring, before traffic.
func (s *Service) RegisterInvalidator(inv Invalidator) {
	s.invalidators = append(s.invalidators, inv)
}

// Check returns nil when the tenant has granted the category, and
// ErrConsentRequired otherwise. A rejected check mutates nothing.
func (s *Service) Check(ctx context.Context, tenantID string, category domain.ConsentCategory) error {
	if !category.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidCategory, category)
	}
	rec, err := s.repo.Latest(ctx, tenantID, category)
	if err != nil {
		return fmt.Errorf("consent lookup: %w", err)
	}
	if rec == nil || !rec.Granted {
		return ErrConsentRequired
	}
	return nil
}

// Set appends a new consent record plus its audit entry; history is never
// rewritten. Withdrawal fans out to the registered invalidators so cached
// derived results cannot be disclosed afterwards.
func (s *Service) Set(ctx context.Context, tenantID string, category domain.ConsentCategory, granted bool, actor string) error {
	if !category.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidCategory, category)
	}

	now := time.Now().UTC()
	rec := domain.ConsentRecord{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		Category:  category,
		Granted:   granted,
		Actor:     actor,
		CreatedAt: now,
	}
	action := domain.AuditConsentGranted
	if !granted {
		action = domain.AuditConsentWithdrawn
	}
	auditRec := domain.AuditRecord{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		Category:  category,
		Action:    action,
		Actor:     actor,
		CreatedAt: now,
	}
	// One atomic append: a consent transition without its audit entry (or
	// the reverse) must never be durable.
	if err := s.repo.Append(ctx, rec, auditRec); err != nil {
		return fmt.Errorf("append consent: %w", err)
	}

	if !granted {
		for _, inv := range s.invalidators {
			if err := inv.Invalidate(ctx, tenantID, category); err != nil {
				// The consent record is already durable; a failed cache purge
				// must not roll it back. Log and keep going.
				logger.Error("consent invalidation failed",
					"tenant_id", tenantID, "category", string(category), "err", err.Error())
			}
		}
	}

	logger.Info("consent updated",
		"tenant_id", tenantID, "category", string(category), "granted", granted)
	return nil
}

// States returns the current consent state for every category.
func (s *Service) States(ctx context.Context, tenantID string) (map[domain.ConsentCategory]bool, error) {
	out := make(map[domain.ConsentCategory]bool, len(domain.AllConsentCategories()))
	for _, cat := range domain.AllConsentCategories() {
		rec, err := s.repo.Latest(ctx, tenantID, cat)
		if err != nil {
			return nil, fmt.Errorf("consent lookup: %w", err)
		}
		out[cat] = rec != nil && rec.Granted
	}
	return out, nil
}

// History returns the full consent trail for a tenant, newest first.
func (s *Service) History(ctx context.Context, tenantID string) ([]domain.ConsentRecord, error) {
	return s.repo.History(ctx, tenantID)
}

// RecordBudgetReset appends the audit entry for an administrative privacy
// budget reset. The reset itself happens in the privacy layer; pairing the
// two is the caller's job.
func (s *Service) RecordBudgetReset(ctx context.Context, tenantID string, category domain.ConsentCategory, actor, detail string) error {
	return s.audit.Append(ctx, domain.AuditRecord{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		Category:  category,
		Action:    domain.AuditBudgetReset,
		Actor:     actor,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	})
}
