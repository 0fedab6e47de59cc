package privacy

import (
	"context"
	"fmt"
	"sync"

	"github.com/bookwell/insights/internal/domain"
)

type sessionKey struct {
	tenant   string
	category domain.ConsentCategory
	statID   string
}

// Injector releases scalar statistics under the Laplace mechanism, charging
// the budget ledger for each fresh release.
//
// Repeated identical releases (same tenant, category and statistic) within a
// session reuse the first noised value instead of re-consuming budget. That
// is the privacy-conservative reading of repeated querying: a cached value
// reveals nothing new, whereas fresh noise on every call would let a caller
// average the noise away while the ledger drains.
type Injector struct {
	ledger          Ledger
	epsilonPerQuery float64
	noise           *laplaceSource

	mu      sync.Mutex
	session map[sessionKey]float64
}

// NewInjector creates an injector spending epsilonPerQuery per fresh release.
func NewInjector(ledger Ledger, epsilonPerQuery float64) (*Injector, error) {
	if epsilonPerQuery <= 0 {
		return nil, fmt.Errorf("%w: epsilon per query %g", ErrInvalidParameter, epsilonPerQuery)
	}
	return &Injector{
		ledger:          ledger,
		epsilonPerQuery: epsilonPerQuery,
		noise:           newLaplaceSource(),
		session:         make(map[sessionKey]float64),
	}, nil
}

// newSeededInjector pins the noise source for deterministic tests.
func newSeededInjector(ledger Ledger, epsilonPerQuery float64, seed int64) (*Injector, error) {
	in, err := NewInjector(ledger, epsilonPerQuery)
	if err != nil {
		return nil, err
	}
	in.noise = newSeededLaplaceSource(seed)
	return in, nil
}

// Release returns trueValue + Laplace(0, sensitivity/epsilonPerQuery) noise,
// after charging the ledger. statID identifies the statistic for session
// caching; distinct statistics always spend separately.
//
// The ledger charge and the returned value are atomic together: the context
// is checked before spending, and once the spend lands the noised value is
// always produced and cached, so an aborted caller never leaves a charge
// without a releasable value behind it.
func (in *Injector) Release(ctx context.Context, trueValue, sensitivity float64, tenantID string, category domain.ConsentCategory, statID string) (float64, error) {
	if sensitivity <= 0 {
		return 0, fmt.Errorf("%w: sensitivity %g", ErrInvalidParameter, sensitivity)
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	key := sessionKey{tenantID, category, statID}
	in.mu.Lock()
	if cached, ok := in.session[key]; ok {
		in.mu.Unlock()
		return cached, nil
	}
	in.mu.Unlock()

	if _, err := in.ledger.Spend(ctx, tenantID, category, in.epsilonPerQuery); err != nil {
		return 0, err
	}

	scale := sensitivity / in.epsilonPerQuery
	noised := trueValue + in.noise.Draw(scale)

	in.mu.Lock()
	// Another release may have raced us here; keep the first value so every
	// caller in the session observes the same answer.
	if cached, ok := in.session[key]; ok {
		noised = cached
	} else {
		in.session[key] = noised
	}
	in.mu.Unlock()

	return noised, nil
}

// InvalidateSession drops cached noised values for a (tenant, category)
// pair. Called on consent withdrawal and administrative reset.
func (in *Injector) InvalidateSession(tenantID string, category domain.ConsentCategory) {
	in.mu.Lock()
	defer in.mu.Unlock()
	for key := range in.session {
		if key.tenant == tenantID && key.category == category {
			delete(in.session, key)
		}
	}
}

// Budget returns the current ledger entry for a (tenant, category) pair.
func (in *Injector) Budget(ctx context.Context, tenantID string, category domain.ConsentCategory) (domain.BudgetEntry, error) {
	return in.ledger.Entry(ctx, tenantID, category)
}

// ResetBudget zeroes the ledger for a pair and drops its session cache.
// The caller is responsible for appending the audit record.
func (in *Injector) ResetBudget(ctx context.Context, tenantID string, category domain.ConsentCategory) error {
	if err := in.ledger.Reset(ctx, tenantID, category); err != nil {
		return err
	}
	in.InvalidateSession(tenantID, category)
	return nil
}
