package skywatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// AnalyticsStore encapsulates the analytical (OLAP) event storage.
// Query methods execute SQL produced by the query compiler; the column order
// of the compiled SELECT must match the scan order of the implementation.
type AnalyticsStore interface {
	// QueryErrorGroups executes a compiled per-fingerprint aggregation query.
	QueryErrorGroups(ctx context.Context, sql string) ([]BasicErrorGroup, error)
	// QueryTrendPoints executes a compiled time-bucketed aggregation query.
	QueryTrendPoints(ctx context.Context, sql string) ([]TrendPoint, error)
	// InsertAggregationHistory appends one aggregation snapshot to the
	// history table. The write is asynchronous on the store side.
	InsertAggregationHistory(ctx context.Context, rec *AggregationHistoryRecord) error
	// ListAggregationHistory reads aggregation snapshots, newest first.
	ListAggregationHistory(ctx context.Context, criteria HistoryCriteria) ([]AggregationHistoryRecord, error)
}

// BasicErrorGroup is the first-level aggregation: one row per distinct
// fingerprint, computed fresh per request and never stored.
type BasicErrorGroup struct {
	FirstSeen        time.Time `json:"first_seen"`
	LastSeen         time.Time `json:"last_seen"`
	Fingerprint      string    `json:"fingerprint"`
	Message          string    `json:"message"`
	Stack            string    `json:"stack"`
	Framework        string    `json:"framework"`
	Browser          string    `json:"browser"`
	OS               string    `json:"os"`
	TotalCount       uint64    `json:"total_count"`
	AffectedUsers    uint64    `json:"affected_users"`
	AffectedSessions uint64    `json:"affected_sessions"`
}

// SubGroup is a fingerprint-group absorbed into a smart group during the
// similarity merge.
type SubGroup struct {
	Fingerprint string `json:"fingerprint"`
	Message     string `json:"message"`
	TotalCount  uint64 `json:"total_count"`
}

// SmartErrorGroup is one or more basic groups merged by message similarity.
// The representative fingerprint and message belong to the most frequent
// member of the merge set.
type SmartErrorGroup struct {
	FirstSeen        time.Time  `json:"first_seen"`
	LastSeen         time.Time  `json:"last_seen"`
	Fingerprint      string     `json:"fingerprint"`
	Message          string     `json:"message"`
	Stack            string     `json:"stack"`
	Framework        string     `json:"framework"`
	Browser          string     `json:"browser"`
	OS               string     `json:"os"`
	SubGroups        []SubGroup `json:"sub_groups"`
	TotalCount       uint64     `json:"total_count"`
	AffectedUsers    uint64     `json:"affected_users"`
	AffectedSessions uint64     `json:"affected_sessions"`
	MergedCount      int        `json:"merged_count"`
	IsMerged         bool       `json:"is_merged"`
}

// SmartGroupResult is the outcome of one smart-aggregation run.
type SmartGroupResult struct {
	Data           []SmartErrorGroup `json:"data"`
	Total          int               `json:"total"`
	OriginalGroups int               `json:"original_groups"`
	MergedGroups   int               `json:"merged_groups"`
	ReductionRate  float64           `json:"reduction_rate"`
}

// AggregationHistoryRecord is a durable point-in-time snapshot of a smart
// aggregation run, capped to the top groups to bound storage.
type AggregationHistoryRecord struct {
	Timestamp      time.Time         `json:"timestamp"`
	AppID          string            `json:"app_id"`
	Groups         []SmartErrorGroup `json:"groups"`
	Threshold      float64           `json:"threshold"`
	OriginalGroups int               `json:"original_groups"`
	MergedGroups   int               `json:"merged_groups"`
	ReductionRate  float64           `json:"reduction_rate"`
}

// HistoryCriteria filters aggregation history reads. Zero Start/End leave
// the corresponding bound open.
type HistoryCriteria struct {
	Start time.Time
	End   time.Time
	AppID string
	Limit int
}

// TrendPoint is one time bucket of a trend series.
type TrendPoint struct {
	TimeBucket       time.Time `json:"time_bucket"`
	Count            uint64    `json:"count"`
	TotalOccurrences uint64    `json:"total_occurrences"`
	AffectedUsers    uint64    `json:"affected_users"`
	AffectedSessions uint64    `json:"affected_sessions"`
}

// TrendStats summarizes a trend series.
type TrendStats struct {
	PeakTime         time.Time `json:"peak_time"`
	TotalCount       uint64    `json:"total_count"`
	TotalOccurrences uint64    `json:"total_occurrences"`
	PeakCount        uint64    `json:"peak_count"`
}

// TrendResult is a chronological trend series with its summary statistics.
type TrendResult struct {
	Data            []TrendPoint `json:"data"`
	Window          Window       `json:"window"`
	Stats           TrendStats   `json:"stats"`
	TotalDataPoints int          `json:"total_data_points"`
}

// SeriesStats summarizes one fingerprint's series inside a comparison.
type SeriesStats struct {
	PeakTime         time.Time `json:"peak_time"`
	Fingerprint      string    `json:"fingerprint"`
	TotalCount       uint64    `json:"total_count"`
	TotalOccurrences uint64    `json:"total_occurrences"`
	PeakCount        uint64    `json:"peak_count"`
}

// SeriesValue is one fingerprint's contribution to a comparison bucket.
// Buckets where the fingerprint had no events carry zero values.
type SeriesValue struct {
	Count       uint64
	Occurrences uint64
}

// ComparisonPoint is one bucket of the dense comparison matrix: one value
// per requested fingerprint, in request order.
type ComparisonPoint struct {
	TimeBucket time.Time
	Values     []SeriesValue
}

// MarshalJSON flattens the bucket into per-series fields, indexed by the
// fingerprint's position in the request: error_0, error_0_occurrences and
// so on.
func (p ComparisonPoint) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, 1+2*len(p.Values))
	out["time_bucket"] = p.TimeBucket
	for i, v := range p.Values {
		out[fmt.Sprintf("error_%d", i)] = v.Count
		out[fmt.Sprintf("error_%d_occurrences", i)] = v.Occurrences
	}
	return json.Marshal(out)
}

// ComparisonResult is a multi-series trend comparison on a unified time axis.
type ComparisonResult struct {
	Data            []ComparisonPoint `json:"data"`
	Fingerprints    []string          `json:"fingerprints"`
	Window          Window            `json:"window"`
	IndividualStats []SeriesStats     `json:"individual_stats"`
}

// SpikeResult is the outcome of one spike-detection run. It is cache-only
// and transient; positive detections are kept in a bounded recency list.
type SpikeResult struct {
	DetectionTime   time.Time `json:"detection_time"`
	AppID           string    `json:"app_id"`
	TimeWindow      Window    `json:"time_window"`
	Message         string    `json:"message,omitempty"`
	CurrentCount    uint64    `json:"current_count"`
	BaselineAvg     float64   `json:"baseline_avg"`
	BaselineStd     float64   `json:"baseline_std"`
	Threshold       float64   `json:"threshold"`
	SpikeMultiplier float64   `json:"spike_multiplier"`
	IsSpike         bool      `json:"is_spike"`
}

// RecentSpikes is the resolved tail of a tenant's spike recency list.
// Message is set when the cache is unavailable and the result is degraded.
type RecentSpikes struct {
	Spikes  []SpikeResult `json:"spikes"`
	Total   int           `json:"total"`
	Message string        `json:"message,omitempty"`
}

// HistoryQueue accepts aggregation snapshots for background persistence.
// Enqueue never blocks; it reports false when the queue is full and the
// record was dropped.
type HistoryQueue interface {
	Enqueue(rec *AggregationHistoryRecord) bool
}
