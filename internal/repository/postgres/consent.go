package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/bookwell/insights/internal/domain"
)

// ConsentRepo implements consent.Repository against PostgreSQL. The table is
// append-only: rows are inserted, never updated or deleted, so the full
// consent history is always reconstructible.
type ConsentRepo struct{ db *sql.DB }

// NewConsentRepo creates a Postgres-backed consent repository.
func NewConsentRepo(db *sql.DB) *ConsentRepo { return &ConsentRepo{db: db} }

// Append writes the consent record and its audit entry in one transaction,
// so a partial write leaves neither behind.
func (r *ConsentRepo) Append(ctx context.Context, rec domain.ConsentRecord, audit domain.AuditRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if audit.ID == "" {
		audit.ID = uuid.New().String()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin consent append: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO consent_records (id, tenant_id, category, granted, actor, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
	`, rec.ID, rec.TenantID, rec.Category, rec.Granted, rec.Actor); err != nil {
		return fmt.Errorf("append consent: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO audit_records (id, tenant_id, category, action, actor, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
	`, audit.ID, audit.TenantID, audit.Category, audit.Action, audit.Actor, audit.Detail); err != nil {
		return fmt.Errorf("append consent audit: %w", err)
	}

	return tx.Commit()
}

func (r *ConsentRepo) Latest(ctx context.Context, tenantID string, category domain.ConsentCategory) (*domain.ConsentRecord, error) {
	rec := &domain.ConsentRecord{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, category, granted, actor, created_at
		FROM consent_records
		WHERE tenant_id = $1 AND category = $2
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, tenantID, category).Scan(
		&rec.ID, &rec.TenantID, &rec.Category, &rec.Granted, &rec.Actor, &rec.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest consent: %w", err)
	}
	return rec, nil
}

func (r *ConsentRepo) History(ctx context.Context, tenantID string) ([]domain.ConsentRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, tenant_id, category, granted, actor, created_at
		FROM consent_records
		WHERE tenant_id = $1
		ORDER BY created_at DESC, id DESC
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("consent history: %w", err)
	}
	defer rows.Close()

	var out []domain.ConsentRecord
	for rows.Next() {
		var rec domain.ConsentRecord
		if err := rows.Scan(&rec.ID, &rec.TenantID, &rec.Category, &rec.Granted, &rec.Actor, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan consent: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// AuditRepo implements consent.AuditRepository against PostgreSQL.
type AuditRepo struct{ db *sql.DB }

// NewAuditRepo creates a Postgres-backed audit trail.
func NewAuditRepo(db *sql.DB) *AuditRepo { return &AuditRepo{db: db} }

func (r *AuditRepo) Append(ctx context.Context, rec domain.AuditRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_records (id, tenant_id, category, action, actor, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
	`, rec.ID, rec.TenantID, rec.Category, rec.Action, rec.Actor, rec.Detail)
	if err != nil {
		return fmt.Errorf("append audit: %w", err)
	}
	return nil
}

func (r *AuditRepo) ByTenant(ctx context.Context, tenantID string, limit int) ([]domain.AuditRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, tenant_id, category, action, actor, COALESCE(detail,''), created_at
		FROM audit_records
		WHERE tenant_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("audit by tenant: %w", err)
	}
	defer rows.Close()

	var out []domain.AuditRecord
	for rows.Next() {
		var rec domain.AuditRecord
		if err := rows.Scan(&rec.ID, &rec.TenantID, &rec.Category, &rec.Action, &rec.Actor, &rec.Detail, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
