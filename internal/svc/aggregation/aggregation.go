// Package aggregation implements the error-aggregation engine: exact
// per-fingerprint groups from the analytical store, merged into smart groups
// by message similarity.
package aggregation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/skywatch/skywatch/internal/kv"
	"github.com/skywatch/skywatch/internal/query"
	"github.com/skywatch/skywatch/internal/similarity"
	"github.com/skywatch/skywatch/internal/skywatch"
)

const (
	// DefaultFetchCap bounds how many basic groups are loaded for merging,
	// independent of the caller's limit.
	DefaultFetchCap = 500
	// DefaultCompareCap bounds how many groups participate in pairwise
	// comparison; groups beyond it stay singleton. Comparison cost is
	// O(cap squared), so this is the knob that keeps large tenants cheap.
	DefaultCompareCap = 300

	// smartGroupTTL is the cache lifetime of a smart-aggregation result.
	smartGroupTTL = 300 * time.Second
	// historyTopGroups caps how many groups a history snapshot stores.
	historyTopGroups = 50

	defaultLimit     = 100
	defaultThreshold = similarity.DefaultThreshold
)

// errorGroupFields is the canonical SELECT list for per-fingerprint group
// queries. Its order must match ClickhouseStore.QueryErrorGroups.
var errorGroupFields = []string{
	"error_fingerprint",
	"any(error_message) AS message",
	"any(error_stack) AS stack",
	"sum(dedup_count) AS total_count",
	"min(timestamp) AS first_seen",
	"max(timestamp) AS last_seen",
	"uniq(user_id) AS affected_users",
	"uniq(session_id) AS affected_sessions",
	"any(framework) AS framework",
	"any(browser) AS browser",
	"any(os) AS os",
}

// errorScope restricts a query to error events with a fingerprint.
var errorScope = []skywatch.QueryCondition{
	{Field: "event_type", Operator: "=", Value: "error"},
	{Field: "error_fingerprint", Operator: "!=", Value: ""},
}

// Service implements skywatch.AggregationService.
type Service struct {
	store      skywatch.AnalyticsStore
	cache      skywatch.CacheStore
	history    skywatch.HistoryQueue
	now        func() time.Time
	logger     *slog.Logger
	fetchCap   int
	compareCap int
}

// Option tunes the aggregation service.
type Option func(*Service)

// WithFetchCap overrides the basic-group fetch cap.
func WithFetchCap(n int) Option {
	return func(s *Service) { s.fetchCap = n }
}

// WithCompareCap overrides the pairwise-comparison cap.
func WithCompareCap(n int) Option {
	return func(s *Service) { s.compareCap = n }
}

// NewService is a constructor of the aggregation service.
func NewService(
	store skywatch.AnalyticsStore,
	cache skywatch.CacheStore,
	history skywatch.HistoryQueue,
	now func() time.Time,
	logger *slog.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		store:      store,
		cache:      cache,
		history:    history,
		now:        now,
		logger:     logger,
		fetchCap:   DefaultFetchCap,
		compareCap: DefaultCompareCap,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BasicGroups returns per-fingerprint error groups ordered by summed
// occurrence count descending.
func (s *Service) BasicGroups(ctx context.Context, c skywatch.BasicGroupCriteria) ([]skywatch.BasicErrorGroup, error) {
	limit := c.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	sql, err := query.Compile(&skywatch.QueryConfig{
		ID:         "basic_error_groups",
		Fields:     errorGroupFields,
		Conditions: errorScope,
		GroupBy:    []string{"error_fingerprint"},
		OrderBy:    []skywatch.OrderBy{{Field: "total_count", Direction: "DESC"}},
		Limit:      limit,
	}, c.Range, tenantScope(c.AppID))
	if err != nil {
		return nil, err
	}

	groups, err := s.store.QueryErrorGroups(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("aggregation service: basic groups: %w", err)
	}

	return groups, nil
}

// SmartGroups merges basic groups whose normalized messages are
// similarity-close. Results are cached with a short TTL and persisted as a
// history snapshot in the background; neither side channel can fail the call.
func (s *Service) SmartGroups(ctx context.Context, c skywatch.SmartGroupCriteria) (*skywatch.SmartGroupResult, error) {
	threshold := c.Threshold
	if threshold <= 0 || threshold > 1 {
		threshold = defaultThreshold
	}
	limit := c.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	cacheKey := fmt.Sprintf("errors:smart:%s:%.2f:%d", c.AppID, threshold, limit)

	if cached, ok := s.cachedResult(ctx, cacheKey); ok {
		return cached, nil
	}

	basic, err := s.BasicGroups(ctx, skywatch.BasicGroupCriteria{
		AppID: c.AppID,
		Range: c.Range,
		Limit: s.fetchCap,
	})
	if err != nil {
		return nil, err
	}

	if len(basic) == 0 {
		return &skywatch.SmartGroupResult{Data: []skywatch.SmartErrorGroup{}}, nil
	}

	merged := mergeGroups(basic, threshold, s.compareCap)

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].TotalCount > merged[j].TotalCount
	})

	original := len(basic)
	mergedCount := len(merged)

	data := merged
	if len(data) > limit {
		data = data[:limit]
	}

	result := &skywatch.SmartGroupResult{
		Data:           data,
		Total:          len(data),
		OriginalGroups: original,
		MergedGroups:   mergedCount,
		ReductionRate:  reductionRate(original, mergedCount),
	}

	s.writeCache(ctx, cacheKey, result)
	s.recordHistory(c.AppID, threshold, merged, result)

	return result, nil
}

// History reads persisted aggregation snapshots, newest first.
func (s *Service) History(ctx context.Context, c skywatch.HistoryCriteria) ([]skywatch.AggregationHistoryRecord, error) {
	if c.Limit <= 0 {
		c.Limit = defaultLimit
	}

	records, err := s.store.ListAggregationHistory(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("aggregation service: history: %w", err)
	}

	return records, nil
}

// mergeGroups folds basic groups into smart groups using union-find with
// path compression. Only the first compareCap groups (most frequent, since
// the input is pre-sorted) participate in pairwise comparison; the anchor of
// every merge set is its lowest-index member, so the representative is
// always the most frequent group of its cluster.
func mergeGroups(basic []skywatch.BasicErrorGroup, threshold float64, compareCap int) []skywatch.SmartErrorGroup {
	n := len(basic)

	// Normalize every message once; comparisons reuse the normalized forms.
	normalized := make([]string, n)
	for i := range basic {
		normalized[i] = similarity.Normalize(basic[i].Message)
	}

	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		if parent[i] != i {
			parent[i] = find(parent[i])
		}
		return parent[i]
	}

	compared := n
	if compared > compareCap {
		compared = compareCap
	}

	// A similarity score of at least threshold is impossible once the
	// length divergence alone exceeds the allowed edit budget, so such
	// pairs are skipped without computing the distance.
	maxLenRatio := 1 - threshold

	for i := 0; i < compared; i++ {
		if find(i) != i {
			continue
		}
		for j := i + 1; j < compared; j++ {
			if find(j) != j {
				continue
			}

			na, nb := normalized[i], normalized[j]
			if na == nb {
				parent[j] = i
				continue
			}

			maxLen, minLen := len(na), len(nb)
			if minLen > maxLen {
				maxLen, minLen = minLen, maxLen
			}
			if maxLen == 0 || float64(maxLen-minLen)/float64(maxLen) > maxLenRatio {
				continue
			}

			if similarity.ScoreNormalized(na, nb) >= threshold {
				parent[j] = i
			}
		}
	}

	order := make([]int, 0, n)
	clusters := make(map[int]*skywatch.SmartErrorGroup, n)

	for i := 0; i < n; i++ {
		root := find(i)
		cluster, ok := clusters[root]
		if !ok {
			g := basic[root]
			cluster = &skywatch.SmartErrorGroup{
				Fingerprint: g.Fingerprint,
				Message:     g.Message,
				Stack:       g.Stack,
				Framework:   g.Framework,
				Browser:     g.Browser,
				OS:          g.OS,
				FirstSeen:   g.FirstSeen,
				LastSeen:    g.LastSeen,
				SubGroups:   []skywatch.SubGroup{},
			}
			clusters[root] = cluster
			order = append(order, root)
		}

		g := basic[i]
		cluster.TotalCount += g.TotalCount
		cluster.AffectedUsers += g.AffectedUsers
		cluster.AffectedSessions += g.AffectedSessions
		if g.FirstSeen.Before(cluster.FirstSeen) {
			cluster.FirstSeen = g.FirstSeen
		}
		if g.LastSeen.After(cluster.LastSeen) {
			cluster.LastSeen = g.LastSeen
		}
		if i != root {
			cluster.SubGroups = append(cluster.SubGroups, skywatch.SubGroup{
				Fingerprint: g.Fingerprint,
				Message:     g.Message,
				TotalCount:  g.TotalCount,
			})
		}
	}

	merged := make([]skywatch.SmartErrorGroup, 0, len(order))
	for _, root := range order {
		cluster := clusters[root]
		cluster.MergedCount = len(cluster.SubGroups)
		cluster.IsMerged = cluster.MergedCount > 0
		merged = append(merged, *cluster)
	}

	return merged
}

// reductionRate reports how much the merge shrank the group set, in percent
// rounded to two decimals.
func reductionRate(original, merged int) float64 {
	if original == 0 {
		return 0
	}
	rate := (1 - float64(merged)/float64(original)) * 100
	return math.Round(rate*100) / 100
}

func (s *Service) cachedResult(ctx context.Context, key string) (*skywatch.SmartGroupResult, bool) {
	if s.cache == nil {
		return nil, false
	}
	b, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, skywatch.ErrCacheMiss) {
			s.logger.Warn("smart groups cache read failed, recomputing", slog.Any("error", err))
		}
		return nil, false
	}

	result := &skywatch.SmartGroupResult{}
	if err := kv.Deserialize(b, result); err != nil {
		s.logger.Warn("smart groups cache entry unreadable, recomputing", slog.Any("error", err))
		return nil, false
	}

	return result, true
}

func (s *Service) writeCache(ctx context.Context, key string, result *skywatch.SmartGroupResult) {
	if s.cache == nil {
		return
	}
	b, err := kv.Serialize(result)
	if err != nil {
		s.logger.Warn("smart groups cache encode failed", slog.Any("error", err))
		return
	}
	if err := s.cache.Set(ctx, key, b, smartGroupTTL); err != nil {
		s.logger.Warn("smart groups cache write failed", slog.Any("error", err))
	}
}

// recordHistory hands a capped snapshot to the background queue. The caller
// never waits on the durable write. The snapshot is cut from the full merged
// slice, not the response data, so a small request limit cannot shrink what
// gets persisted.
func (s *Service) recordHistory(appID string, threshold float64, merged []skywatch.SmartErrorGroup, result *skywatch.SmartGroupResult) {
	groups := merged
	if len(groups) > historyTopGroups {
		groups = groups[:historyTopGroups]
	}

	s.history.Enqueue(&skywatch.AggregationHistoryRecord{
		AppID:          appID,
		Timestamp:      s.now().UTC(),
		Threshold:      threshold,
		OriginalGroups: result.OriginalGroups,
		MergedGroups:   result.MergedGroups,
		ReductionRate:  result.ReductionRate,
		Groups:         groups,
	})
}

func tenantScope(appID string) []string {
	if appID == "" {
		return nil
	}
	return []string{appID}
}
