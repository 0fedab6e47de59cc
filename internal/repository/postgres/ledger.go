package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/bookwell/insights/internal/domain"
	"github.com/bookwell/insights/internal/privacy"
)

// LedgerRepo implements privacy.Ledger against PostgreSQL. The cap check and
// increment run inside one transaction with the row locked, so concurrent
// spends near the cap serialize instead of over-committing.
type LedgerRepo struct {
	db  *sql.DB
	cap float64
}

// NewLedgerRepo creates a Postgres-backed privacy budget ledger with the
// given epsilon cap.
func NewLedgerRepo(db *sql.DB, cap float64) *LedgerRepo {
	return &LedgerRepo{db: db, cap: cap}
}

func (r *LedgerRepo) Spend(ctx context.Context, tenantID string, category domain.ConsentCategory, epsilon float64) (float64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin spend: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO budget_entries (tenant_id, category, consumed, updated_at)
		VALUES ($1, $2, 0, NOW())
		ON CONFLICT (tenant_id, category) DO NOTHING
	`, tenantID, category)
	if err != nil {
		return 0, fmt.Errorf("ensure budget row: %w", err)
	}

	var consumed float64
	err = tx.QueryRowContext(ctx, `
		SELECT consumed FROM budget_entries
		WHERE tenant_id = $1 AND category = $2
		FOR UPDATE
	`, tenantID, category).Scan(&consumed)
	if err != nil {
		return 0, fmt.Errorf("lock budget row: %w", err)
	}

	if consumed+epsilon > r.cap {
		return consumed, privacy.ErrBudgetExhausted
	}

	consumed += epsilon
	_, err = tx.ExecContext(ctx, `
		UPDATE budget_entries SET consumed = $1, updated_at = NOW()
		WHERE tenant_id = $2 AND category = $3
	`, consumed, tenantID, category)
	if err != nil {
		return 0, fmt.Errorf("update budget: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit spend: %w", err)
	}
	return consumed, nil
}

func (r *LedgerRepo) Entry(ctx context.Context, tenantID string, category domain.ConsentCategory) (domain.BudgetEntry, error) {
	entry := domain.BudgetEntry{TenantID: tenantID, Category: category, Cap: r.cap}
	err := r.db.QueryRowContext(ctx, `
		SELECT consumed, updated_at FROM budget_entries
		WHERE tenant_id = $1 AND category = $2
	`, tenantID, category).Scan(&entry.Consumed, &entry.UpdatedAt)
	if err == sql.ErrNoRows {
		return entry, nil
	}
	if err != nil {
		return domain.BudgetEntry{}, fmt.Errorf("read budget: %w", err)
	}
	return entry, nil
}

func (r *LedgerRepo) Reset(ctx context.Context, tenantID string, category domain.ConsentCategory) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE budget_entries SET consumed = 0, updated_at = NOW()
		WHERE tenant_id = $1 AND category = $2
	`, tenantID, category)
	if err != nil {
		return fmt.Errorf("reset budget: %w", err)
	}
	return nil
}
