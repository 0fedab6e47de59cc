package privacy

import (
	"context"
	"sync"
	"time"

	"github.com/bookwell/insights/internal/domain"
)

// Ledger tracks cumulative epsilon consumption per (tenant, category) against
// a configured cap. Spend is the only mutation available to normal traffic;
// Reset exists for the audited administrative path.
type Ledger interface {
	// Spend atomically adds epsilon to the entry if the result stays within
	// the cap, returning the new consumption. Over-cap attempts return
	// ErrBudgetExhausted and leave the entry untouched.
	Spend(ctx context.Context, tenantID string, category domain.ConsentCategory, epsilon float64) (float64, error)

	// Entry returns the current ledger entry. An unspent pair reads as
	// zero consumption against the cap.
	Entry(ctx context.Context, tenantID string, category domain.ConsentCategory) (domain.BudgetEntry, error)

	// Reset zeroes consumption for the pair. Callers must append an audit
	// record alongside; the ledger itself does not.
	Reset(ctx context.Context, tenantID string, category domain.ConsentCategory) error
}

type ledgerKey struct {
	tenant   string
	category domain.ConsentCategory
}

// MemoryLedger is an in-process Ledger guarded by a mutex. It backs tests and
// single-node deployments; multi-node deployments use the Redis ledger.
type MemoryLedger struct {
	mu      sync.Mutex
	cap     float64
	entries map[ledgerKey]float64
}

// NewMemoryLedger creates an in-memory ledger with the given epsilon cap.
func NewMemoryLedger(cap float64) *MemoryLedger {
	return &MemoryLedger{cap: cap, entries: make(map[ledgerKey]float64)}
}

// Spend implements Ledger.
func (l *MemoryLedger) Spend(_ context.Context, tenantID string, category domain.ConsentCategory, epsilon float64) (float64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := ledgerKey{tenantID, category}
	consumed := l.entries[key]
	if consumed+epsilon > l.cap {
		return consumed, ErrBudgetExhausted
	}
	l.entries[key] = consumed + epsilon
	return l.entries[key], nil
}

// Entry implements Ledger.
func (l *MemoryLedger) Entry(_ context.Context, tenantID string, category domain.ConsentCategory) (domain.BudgetEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return domain.BudgetEntry{
		TenantID:  tenantID,
		Category:  category,
		Consumed:  l.entries[ledgerKey{tenantID, category}],
		Cap:       l.cap,
		UpdatedAt: time.Now().UTC(),
	}, nil
}

// Reset implements Ledger.
func (l *MemoryLedger) Reset(_ context.Context, tenantID string, category domain.ConsentCategory) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, ledgerKey{tenantID, category})
	return nil
}
