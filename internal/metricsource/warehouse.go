package metricsource

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/snowflakedb/gosnowflake" // Snowflake driver

	"github.com/bookwell/insights/internal/config"
	"github.com/bookwell/insights/internal/domain"
)

// WarehouseSource reads pre-landed tenant activity from the Snowflake data
// lake. It serves batch cohort extraction, where scanning months of history
// across every tenant would be too heavy for the operational database.
type WarehouseSource struct{ db *sql.DB }

// NewWarehouseSource opens a Snowflake connection from config.
func NewWarehouseSource(cfg config.WarehouseConfig) (*WarehouseSource, error) {
	// DSN format: user:password@account/database/schema?warehouse=xxx
	dsn := fmt.Sprintf("%s:%s@%s/%s/%s", cfg.User, cfg.Password, cfg.Account, cfg.Database, cfg.Schema)
	if cfg.Warehouse != "" {
		dsn += "?warehouse=" + cfg.Warehouse
	}

	db, err := sql.Open("snowflake", dsn)
	if err != nil {
		return nil, fmt.Errorf("open snowflake: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &WarehouseSource{db: db}, nil
}

// Close closes the warehouse connection.
func (s *WarehouseSource) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping tests the warehouse connection.
func (s *WarehouseSource) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *WarehouseSource) TenantMetrics(ctx context.Context, tenantID string, w domain.Window) (RawMetrics, error) {
	var m RawMetrics
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(PAYMENT_AMOUNT), 0), COUNT(APPOINTMENT_ID)
		FROM TENANT_APPOINTMENTS
		WHERE TENANT_ID = ? AND STARTS_AT >= ? AND STARTS_AT < ?
	`, tenantID, w.Start, w.End).Scan(&m.Revenue, &m.AppointmentCount)
	if err != nil {
		return RawMetrics{}, fmt.Errorf("warehouse tenant metrics: %w", err)
	}
	return m, nil
}

func (s *WarehouseSource) ClientVisits(ctx context.Context, tenantID string, w domain.Window) ([]ClientVisit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT CLIENT_ID, VISITED_AT, COALESCE(AMOUNT, 0)
		FROM CLIENT_VISITS
		WHERE TENANT_ID = ? AND VISITED_AT >= ? AND VISITED_AT < ?
		ORDER BY VISITED_AT
	`, tenantID, w.Start, w.End)
	if err != nil {
		return nil, fmt.Errorf("warehouse client visits: %w", err)
	}
	defer rows.Close()

	var out []ClientVisit
	for rows.Next() {
		var v ClientVisit
		if err := rows.Scan(&v.ClientID, &v.VisitAt, &v.Amount); err != nil {
			return nil, fmt.Errorf("scan warehouse visit: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *WarehouseSource) TenantProfile(ctx context.Context, tenantID string) (domain.TenantProfile, error) {
	var p domain.TenantProfile
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(BUSINESS_SEGMENT, ''), COALESCE(LOCATION_TYPE, ''), COALESCE(SERVICE_TYPE, '')
		FROM TENANT_PROFILES
		WHERE TENANT_ID = ?
	`, tenantID).Scan(&p.BusinessSegment, &p.LocationType, &p.ServiceType)
	if err == sql.ErrNoRows {
		return domain.TenantProfile{}, nil
	}
	if err != nil {
		return domain.TenantProfile{}, fmt.Errorf("warehouse tenant profile: %w", err)
	}
	return p, nil
}

func (s *WarehouseSource) TenantIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT TENANT_ID FROM TENANT_PROFILES ORDER BY TENANT_ID`)
	if err != nil {
		return nil, fmt.Errorf("warehouse list tenants: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan warehouse tenant id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
