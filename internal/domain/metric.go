package domain

import "time"

// Metric enumerates the tenant-level scalar metrics the engine understands.
// Metrics form a closed set so an unknown metric is rejected at the API
// boundary instead of silently producing an empty aggregate.
type Metric string

const (
	MetricMonthlyRevenue   Metric = "monthly_revenue"
	MetricAppointmentCount Metric = "appointment_count"
	MetricAverageTicket    Metric = "average_ticket"
	MetricClientRetention  Metric = "client_retention"
)

// AllMetrics lists every known metric, in stable order.
func AllMetrics() []Metric {
	return []Metric{
		MetricMonthlyRevenue,
		MetricAppointmentCount,
		MetricAverageTicket,
		MetricClientRetention,
	}
}

// Valid reports whether m is a known metric.
func (m Metric) Valid() bool {
	switch m {
	case MetricMonthlyRevenue, MetricAppointmentCount, MetricAverageTicket, MetricClientRetention:
		return true
	}
	return false
}

// Window is a half-open reporting interval [Start, End).
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Valid reports whether the window is well-formed (start strictly before end).
func (w Window) Valid() bool {
	return w.Start.Before(w.End)
}

// QuasiIdentifier enumerates the attributes that, combined, could narrow a
// cross-tenant group down to an identifiable tenant. Grouping always happens
// on the full tuple of requested identifiers.
type QuasiIdentifier string

const (
	QIBusinessSegment QuasiIdentifier = "business_segment"
	QILocationType    QuasiIdentifier = "location_type"
	QIServiceType     QuasiIdentifier = "service_type"
)

// Valid reports whether q is a known quasi-identifier.
func (q QuasiIdentifier) Valid() bool {
	switch q {
	case QIBusinessSegment, QILocationType, QIServiceType:
		return true
	}
	return false
}

// TenantProfile carries the quasi-identifier values for a tenant within a
// reporting window.
type TenantProfile struct {
	BusinessSegment string `json:"business_segment" db:"business_segment"`
	LocationType    string `json:"location_type" db:"location_type"`
	ServiceType     string `json:"service_type" db:"service_type"`
}

// QuasiValue returns the profile value for a single quasi-identifier.
func (p TenantProfile) QuasiValue(q QuasiIdentifier) string {
	switch q {
	case QIBusinessSegment:
		return p.BusinessSegment
	case QILocationType:
		return p.LocationType
	case QIServiceType:
		return p.ServiceType
	}
	return ""
}

// TenantMetricSnapshot is the immutable per-tenant, per-window reduction of
// raw records into scalar metrics. A new window produces a new snapshot;
// existing snapshots are never mutated.
type TenantMetricSnapshot struct {
	TenantID  string             `json:"tenant_id" db:"tenant_id"`
	Window    Window             `json:"window"`
	Metrics   map[Metric]float64 `json:"metrics"`
	Profile   TenantProfile      `json:"profile"`
	CreatedAt time.Time          `json:"created_at" db:"created_at"`
}

// MetricValue returns the snapshot value for a metric, zero when the metric
// was not extracted. Zero is a real value here: a tenant with no appointments
// still participates in group sizing.
func (s TenantMetricSnapshot) MetricValue(m Metric) float64 {
	return s.Metrics[m]
}
