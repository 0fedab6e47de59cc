package domain

// SegmentTier classifies a tenant's business size from monthly appointment
// volume.
type SegmentTier string

const (
	TierSolo   SegmentTier = "solo"
	TierSmall  SegmentTier = "small"
	TierMedium SegmentTier = "medium"
	TierLarge  SegmentTier = "large"
)

// TierForVolume maps monthly appointment volume to a segment tier. Boundaries
// are inclusive on the lower bound: <20 solo, 20-79 small, 80-199 medium,
// >=200 large.
func TierForVolume(monthlyAppointments int) SegmentTier {
	switch {
	case monthlyAppointments < 20:
		return TierSolo
	case monthlyAppointments < 80:
		return TierSmall
	case monthlyAppointments < 200:
		return TierMedium
	default:
		return TierLarge
	}
}

// BenchmarkResult compares a tenant's own metric value against its anonymized
// peer group. Derived data: computed on demand, cacheable, never the source
// of truth.
type BenchmarkResult struct {
	TenantID   string      `json:"tenant_id"`
	Metric     Metric      `json:"metric"`
	Value      float64     `json:"value"`
	Percentile float64     `json:"percentile"`
	GroupSize  int         `json:"group_size"`
	Tier       SegmentTier `json:"tier"`
	Insight    string      `json:"insight"`
}
