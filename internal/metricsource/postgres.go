package metricsource

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq" // Postgres driver

	"github.com/bookwell/insights/internal/domain"
)

// PostgresSource reads raw appointment, payment and visit rows from the
// platform's operational Postgres database.
type PostgresSource struct{ db *sql.DB }

// NewPostgresSource creates a Postgres-backed raw source.
func NewPostgresSource(db *sql.DB) *PostgresSource { return &PostgresSource{db: db} }

// OpenPostgres opens the operational database with pool settings applied.
func OpenPostgres(url string, maxOpen, maxIdle int) (*sql.DB, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	return db, nil
}

func (s *PostgresSource) TenantMetrics(ctx context.Context, tenantID string, w domain.Window) (RawMetrics, error) {
	var m RawMetrics
	// COALESCE keeps a missing tenant indistinguishable from a quiet one:
	// both read as zeros.
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(p.amount), 0),
		       COUNT(a.id)
		FROM appointments a
		LEFT JOIN payments p ON p.appointment_id = a.id AND p.status = 'completed'
		WHERE a.tenant_id = $1
		  AND a.starts_at >= $2 AND a.starts_at < $3
	`, tenantID, w.Start, w.End).Scan(&m.Revenue, &m.AppointmentCount)
	if err != nil {
		return RawMetrics{}, fmt.Errorf("tenant metrics: %w", err)
	}
	return m, nil
}

func (s *PostgresSource) ClientVisits(ctx context.Context, tenantID string, w domain.Window) ([]ClientVisit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT v.client_id, v.visited_at, COALESCE(v.amount, 0)
		FROM client_visits v
		WHERE v.tenant_id = $1
		  AND v.visited_at >= $2 AND v.visited_at < $3
		ORDER BY v.visited_at
	`, tenantID, w.Start, w.End)
	if err != nil {
		return nil, fmt.Errorf("client visits: %w", err)
	}
	defer rows.Close()

	var out []ClientVisit
	for rows.Next() {
		var v ClientVisit
		if err := rows.Scan(&v.ClientID, &v.VisitAt, &v.Amount); err != nil {
			return nil, fmt.Errorf("scan visit: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *PostgresSource) TenantProfile(ctx context.Context, tenantID string) (domain.TenantProfile, error) {
	var p domain.TenantProfile
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(business_segment, ''),
		       COALESCE(location_type, ''),
		       COALESCE(service_type, '')
		FROM tenants
		WHERE id = $1
	`, tenantID).Scan(&p.BusinessSegment, &p.LocationType, &p.ServiceType)
	if err == sql.ErrNoRows {
		return domain.TenantProfile{}, nil
	}
	if err != nil {
		return domain.TenantProfile{}, fmt.Errorf("tenant profile: %w", err)
	}
	return p, nil
}

func (s *PostgresSource) TenantIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM tenants ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan tenant id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
