package skywatch

import "context"

// BasicGroupCriteria selects first-level error groups for one tenant.
type BasicGroupCriteria struct {
	Range TimeRange
	AppID string
	Limit int
}

// SmartGroupCriteria selects similarity-merged error groups for one tenant.
type SmartGroupCriteria struct {
	Range     TimeRange
	AppID     string
	Threshold float64
	Limit     int
}

// TrendCriteria selects a trend series. Fingerprint narrows the series to a
// single error group when non-empty.
type TrendCriteria struct {
	Range       TimeRange
	AppID       string
	Fingerprint string
	Window      Window
	Limit       int
}

// CompareCriteria selects a multi-series trend comparison.
type CompareCriteria struct {
	Range        TimeRange
	AppID        string
	Fingerprints []string
	Window       Window
	Limit        int
}

// SpikeCriteria configures a spike-detection run. Lookback is the number of
// most recent buckets fetched, the newest of which is tested against the rest.
type SpikeCriteria struct {
	AppID    string
	Window   Window
	Lookback int
}

// RecentSpikesCriteria selects the tail of a tenant's spike recency list.
type RecentSpikesCriteria struct {
	AppID string
	Limit int
}

// AggregationService is the error-aggregation engine: exact-fingerprint
// groups and their similarity-merged smart groups.
type AggregationService interface {
	// BasicGroups returns per-fingerprint error groups, most frequent first.
	BasicGroups(ctx context.Context, criteria BasicGroupCriteria) ([]BasicErrorGroup, error)
	// SmartGroups returns similarity-merged groups, serving from cache when
	// possible and recording a history snapshot in the background.
	SmartGroups(ctx context.Context, criteria SmartGroupCriteria) (*SmartGroupResult, error)
	// History reads persisted aggregation snapshots, newest first.
	History(ctx context.Context, criteria HistoryCriteria) ([]AggregationHistoryRecord, error)
}

// TrendService is the trend and spike engine.
type TrendService interface {
	// Trends returns a chronological trend series with summary statistics.
	Trends(ctx context.Context, criteria TrendCriteria) (*TrendResult, error)
	// CompareTrends returns a dense multi-series comparison on a unified
	// time axis for up to MaxCompareFingerprints fingerprints.
	CompareTrends(ctx context.Context, criteria CompareCriteria) (*ComparisonResult, error)
	// DetectSpikes tests the most recent bucket against a rolling baseline.
	DetectSpikes(ctx context.Context, criteria SpikeCriteria) (*SpikeResult, error)
	// RecentSpikes resolves the tenant's recency list of detected spikes.
	RecentSpikes(ctx context.Context, criteria RecentSpikesCriteria) (*RecentSpikes, error)
}

// MaxCompareFingerprints bounds the fan-out of CompareTrends; each
// fingerprint is an independent store query.
const MaxCompareFingerprints = 10
