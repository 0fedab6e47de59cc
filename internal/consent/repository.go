package consent

import (
	"context"

	"github.com/bookwell/insights/internal/domain"
)

// Repository is the durable append-only consent log. Implementations live in
// repository/postgres and in-memory test fakes.
type Repository interface {
	// Append adds a consent record together with its audit entry in one
	// atomic write: neither lands without the other. Records are never
	// updated or deleted.
	Append(ctx context.Context, rec domain.ConsentRecord, audit domain.AuditRecord) error

	// Latest returns the most recent record for (tenant, category), or nil
	// when no record exists (consent defaults to not granted).
	Latest(ctx context.Context, tenantID string, category domain.ConsentCategory) (*domain.ConsentRecord, error)

	// History returns all records for a tenant, newest first.
	History(ctx context.Context, tenantID string) ([]domain.ConsentRecord, error)
}

// AuditRepository is the immutable audit trail shared by consent transitions
// and administrative budget resets.
type AuditRepository interface {
	Append(ctx context.Context, rec domain.AuditRecord) error
	ByTenant(ctx context.Context, tenantID string, limit int) ([]domain.AuditRecord, error)
}

// Invalidator drops cached derived results for a (tenant, category) pair.
// The benchmark cache and the noise injector's session cache register here
// so a withdrawal leaves nothing stale behind.
type Invalidator interface {
	Invalidate(ctx context.Context, tenantID string, category domain.ConsentCategory) error
}

// InvalidatorFunc adapts a function to the Invalidator interface.
type InvalidatorFunc func(ctx context.Context, tenantID string, category domain.ConsentCategory) error

func (f InvalidatorFunc) Invalidate(ctx context.Context, tenantID string, category domain.ConsentCategory) error {
	return f(ctx, tenantID, category)
}
