// Package trend implements the trend and spike engine: time-bucketed error
// series, multi-series comparisons on a unified axis, and a rolling-statistics
// spike detector.
package trend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/skywatch/skywatch/internal/kv"
	"github.com/skywatch/skywatch/internal/query"
	"github.com/skywatch/skywatch/internal/skywatch"
	"golang.org/x/sync/errgroup"
)

const (
	// spikeTTL is the cache lifetime of one detected spike record.
	spikeTTL = time.Hour
	// recentSpikesCap bounds the per-tenant recency list; the oldest keys
	// fall off past this capacity.
	recentSpikesCap = 100

	// Spike condition: the current bucket must exceed the baseline by two
	// standard deviations AND by half again the average. The second factor
	// guards flat-but-nonzero baselines where the deviation is near zero.
	spikeStdFactor  = 2.0
	spikeAvgFactor  = 1.5
	minSpikeBuckets = 3

	defaultLimit        = 100
	defaultLookback     = 24
	defaultRecentSpikes = 10
)

// trendFields is the canonical SELECT list for time-bucketed queries.
// Its order must match ClickhouseStore.QueryTrendPoints.
func trendFields(w skywatch.Window) []string {
	return []string{
		fmt.Sprintf("%s(timestamp) AS time_bucket", w.TimeFunction()),
		"count(*) AS count",
		"sum(dedup_count) AS total_occurrences",
		"uniq(user_id) AS affected_users",
		"uniq(session_id) AS affected_sessions",
	}
}

// Service implements skywatch.TrendService.
type Service struct {
	store  skywatch.AnalyticsStore
	cache  skywatch.CacheStore
	now    func() time.Time
	logger *slog.Logger
}

// NewService is a constructor of the trend service.
func NewService(
	store skywatch.AnalyticsStore,
	cache skywatch.CacheStore,
	now func() time.Time,
	logger *slog.Logger,
) *Service {
	return &Service{store: store, cache: cache, now: now, logger: logger}
}

// Trends returns a chronological (oldest first) trend series. The store
// answers newest first; the series is reversed in-process so charts can
// consume it directly.
func (s *Service) Trends(ctx context.Context, c skywatch.TrendCriteria) (*skywatch.TrendResult, error) {
	if !c.Window.Valid() {
		return nil, skywatch.NewValidationError("unsupported trend window %q", c.Window)
	}
	limit := c.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	points, err := s.fetchBuckets(ctx, c.AppID, c.Fingerprint, c.Window, c.Range, limit)
	if err != nil {
		return nil, err
	}

	reverse(points)

	return &skywatch.TrendResult{
		Data:            points,
		Window:          c.Window,
		Stats:           seriesStats(points),
		TotalDataPoints: len(points),
	}, nil
}

// CompareTrends runs one bucketed query per fingerprint concurrently and
// merges the series on the union of all observed buckets. Buckets where a
// fingerprint had no events carry zeroes, so the result is a dense matrix.
// A single failing sub-query fails the whole comparison.
func (s *Service) CompareTrends(ctx context.Context, c skywatch.CompareCriteria) (*skywatch.ComparisonResult, error) {
	if len(c.Fingerprints) == 0 {
		return nil, skywatch.NewValidationError("compare trends: no fingerprints given")
	}
	if len(c.Fingerprints) > skywatch.MaxCompareFingerprints {
		return nil, skywatch.NewValidationError(
			"compare trends: at most %d fingerprints allowed, got %d",
			skywatch.MaxCompareFingerprints, len(c.Fingerprints))
	}
	if !c.Window.Valid() {
		return nil, skywatch.NewValidationError("unsupported trend window %q", c.Window)
	}
	limit := c.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	series := make([][]skywatch.TrendPoint, len(c.Fingerprints))

	g, gctx := errgroup.WithContext(ctx)
	for i, fp := range c.Fingerprints {
		g.Go(func() error {
			points, err := s.fetchBuckets(gctx, c.AppID, fp, c.Window, c.Range, limit)
			if err != nil {
				return err
			}
			series[i] = points
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	buckets := unionBuckets(series)

	byBucket := make([]map[int64]skywatch.TrendPoint, len(series))
	for i, points := range series {
		byBucket[i] = make(map[int64]skywatch.TrendPoint, len(points))
		for _, p := range points {
			byBucket[i][p.TimeBucket.Unix()] = p
		}
	}

	data := make([]skywatch.ComparisonPoint, 0, len(buckets))
	for _, bucket := range buckets {
		point := skywatch.ComparisonPoint{
			TimeBucket: bucket,
			Values:     make([]skywatch.SeriesValue, len(series)),
		}
		for i := range series {
			if p, ok := byBucket[i][bucket.Unix()]; ok {
				point.Values[i] = skywatch.SeriesValue{Count: p.Count, Occurrences: p.TotalOccurrences}
			}
		}
		data = append(data, point)
	}

	stats := make([]skywatch.SeriesStats, len(series))
	for i, points := range series {
		ss := seriesStats(points)
		stats[i] = skywatch.SeriesStats{
			Fingerprint:      c.Fingerprints[i],
			TotalCount:       ss.TotalCount,
			TotalOccurrences: ss.TotalOccurrences,
			PeakCount:        ss.PeakCount,
			PeakTime:         ss.PeakTime,
		}
	}

	return &skywatch.ComparisonResult{
		Data:            data,
		Fingerprints:    c.Fingerprints,
		Window:          c.Window,
		IndividualStats: stats,
	}, nil
}

// DetectSpikes tests the most recent bucket against the average and
// population standard deviation of the remaining lookback buckets. Positive
// detections are cached and appended to the tenant's recency list; cache
// failures never affect the returned result.
func (s *Service) DetectSpikes(ctx context.Context, c skywatch.SpikeCriteria) (*skywatch.SpikeResult, error) {
	window := c.Window
	if window == "" {
		window = skywatch.WindowHour
	}
	if window != skywatch.WindowHour && window != skywatch.WindowDay {
		return nil, skywatch.NewValidationError("unsupported spike window %q", window)
	}
	lookback := c.Lookback
	if lookback <= 0 {
		lookback = defaultLookback
	}

	now := s.now().UTC()
	timeRange := skywatch.TimeRange{Start: now.Add(-bucketSpan(window, lookback)), End: now}

	points, err := s.fetchBuckets(ctx, c.AppID, "", window, timeRange, lookback)
	if err != nil {
		return nil, err
	}

	detection := &skywatch.SpikeResult{
		AppID:         c.AppID,
		TimeWindow:    window,
		DetectionTime: now,
	}

	if len(points) < minSpikeBuckets {
		detection.Message = fmt.Sprintf(
			"Insufficient data: need at least %d time buckets, got %d", minSpikeBuckets, len(points))
		return detection, nil
	}

	current := points[0].Count
	historical := points[1:]

	var sum float64
	for _, p := range historical {
		sum += float64(p.Count)
	}
	avg := sum / float64(len(historical))

	var sqDiff float64
	for _, p := range historical {
		d := float64(p.Count) - avg
		sqDiff += d * d
	}
	std := math.Sqrt(sqDiff / float64(len(historical)))

	detection.CurrentCount = current
	detection.BaselineAvg = avg
	detection.BaselineStd = std
	detection.Threshold = avg + spikeStdFactor*std
	detection.IsSpike = float64(current) > avg+spikeStdFactor*std &&
		float64(current) > avg*spikeAvgFactor
	if avg > 0 {
		detection.SpikeMultiplier = float64(current) / avg
	}

	if detection.IsSpike {
		s.recordSpike(ctx, detection)
	}

	return detection, nil
}

// RecentSpikes resolves up to limit entries of the tenant's spike recency
// list, skipping keys whose records have already expired. An unreachable
// cache yields a degraded empty result, not an error.
func (s *Service) RecentSpikes(ctx context.Context, c skywatch.RecentSpikesCriteria) (*skywatch.RecentSpikes, error) {
	limit := c.Limit
	if limit <= 0 {
		limit = defaultRecentSpikes
	}

	if s.cache == nil {
		return &skywatch.RecentSpikes{
			Spikes:  []skywatch.SpikeResult{},
			Message: "cache not available",
		}, nil
	}

	keys, err := s.cache.ListRecent(ctx, recentSpikesKey(c.AppID), int64(limit))
	if err != nil {
		s.logger.Warn("recent spikes list unavailable", slog.Any("error", err))
		return &skywatch.RecentSpikes{
			Spikes:  []skywatch.SpikeResult{},
			Message: "cache not available",
		}, nil
	}

	spikes := make([]skywatch.SpikeResult, 0, len(keys))
	for _, key := range keys {
		b, err := s.cache.Get(ctx, key)
		if err != nil {
			if !errors.Is(err, skywatch.ErrCacheMiss) {
				s.logger.Warn("recent spike record unreadable", slog.String("key", key), slog.Any("error", err))
			}
			continue
		}
		var spike skywatch.SpikeResult
		if err := kv.Deserialize(b, &spike); err != nil {
			s.logger.Warn("recent spike record undecodable", slog.String("key", key), slog.Any("error", err))
			continue
		}
		spikes = append(spikes, spike)
	}

	return &skywatch.RecentSpikes{Spikes: spikes, Total: len(spikes)}, nil
}

// fetchBuckets compiles and runs one time-bucketed query, newest bucket
// first.
func (s *Service) fetchBuckets(
	ctx context.Context,
	appID, fingerprint string,
	window skywatch.Window,
	timeRange skywatch.TimeRange,
	limit int,
) ([]skywatch.TrendPoint, error) {
	conditions := []skywatch.QueryCondition{
		{Field: "event_type", Operator: "=", Value: "error"},
		{Field: "error_fingerprint", Operator: "!=", Value: ""},
	}
	if fingerprint != "" {
		conditions = append(conditions, skywatch.QueryCondition{
			Field: "error_fingerprint", Operator: "=", Value: fingerprint,
		})
	}

	var tenants []string
	if appID != "" {
		tenants = []string{appID}
	}

	sql, err := query.Compile(&skywatch.QueryConfig{
		ID:         "error_trend",
		Fields:     trendFields(window),
		Conditions: conditions,
		GroupBy:    []string{fmt.Sprintf("%s(timestamp)", window.TimeFunction())},
		OrderBy:    []skywatch.OrderBy{{Field: "time_bucket", Direction: "DESC"}},
		Limit:      limit,
	}, timeRange, tenants)
	if err != nil {
		return nil, err
	}

	points, err := s.store.QueryTrendPoints(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("trend service: fetch buckets: %w", err)
	}

	return points, nil
}

// recordSpike writes the detection to the cache under a timestamped key and
// prepends that key to the tenant's bounded recency list.
func (s *Service) recordSpike(ctx context.Context, spike *skywatch.SpikeResult) {
	if s.cache == nil {
		return
	}
	suffix, err := gonanoid.New(8)
	if err != nil {
		s.logger.Warn("spike key generation failed", slog.Any("error", err))
		return
	}
	key := fmt.Sprintf("spike:%s:%d:%s", spike.AppID, spike.DetectionTime.Unix(), suffix)

	b, err := kv.Serialize(spike)
	if err != nil {
		s.logger.Warn("spike record encode failed", slog.Any("error", err))
		return
	}

	if err := s.cache.Set(ctx, key, b, spikeTTL); err != nil {
		s.logger.Warn("spike record cache write failed", slog.Any("error", err))
		return
	}
	if err := s.cache.PushRecent(ctx, recentSpikesKey(spike.AppID), key, recentSpikesCap); err != nil {
		s.logger.Warn("spike recency list update failed", slog.Any("error", err))
	}
}

func recentSpikesKey(appID string) string {
	return "spikes:recent:" + appID
}

// bucketSpan is the wall-clock span covered by n buckets of the window.
func bucketSpan(w skywatch.Window, n int) time.Duration {
	switch w {
	case skywatch.WindowDay:
		return time.Duration(n) * 24 * time.Hour
	default:
		return time.Duration(n) * time.Hour
	}
}

func unionBuckets(series [][]skywatch.TrendPoint) []time.Time {
	seen := make(map[int64]time.Time)
	for _, points := range series {
		for _, p := range points {
			seen[p.TimeBucket.Unix()] = p.TimeBucket
		}
	}

	buckets := make([]time.Time, 0, len(seen))
	for _, t := range seen {
		buckets = append(buckets, t)
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].Before(buckets[j]) })

	return buckets
}

func seriesStats(points []skywatch.TrendPoint) skywatch.TrendStats {
	stats := skywatch.TrendStats{}
	for _, p := range points {
		stats.TotalCount += p.Count
		stats.TotalOccurrences += p.TotalOccurrences
		if p.Count > stats.PeakCount {
			stats.PeakCount = p.Count
			stats.PeakTime = p.TimeBucket
		}
	}
	return stats
}

func reverse(points []skywatch.TrendPoint) {
	for i, j := 0, len(points)-1; i < j; i, j = i+1, j-1 {
		points[i], points[j] = points[j], points[i]
	}
}
