package mock

import (
	"context"

	"github.com/skywatch/skywatch/internal/skywatch"
)

// AnalyticsStore is a mock implementation of skywatch.AnalyticsStore.
type AnalyticsStore struct {
	QueryErrorGroupsFn         func(ctx context.Context, sql string) ([]skywatch.BasicErrorGroup, error)
	QueryTrendPointsFn         func(ctx context.Context, sql string) ([]skywatch.TrendPoint, error)
	InsertAggregationHistoryFn func(ctx context.Context, rec *skywatch.AggregationHistoryRecord) error
	ListAggregationHistoryFn   func(ctx context.Context, criteria skywatch.HistoryCriteria) ([]skywatch.AggregationHistoryRecord, error)
}

func (m *AnalyticsStore) QueryErrorGroups(ctx context.Context, sql string) ([]skywatch.BasicErrorGroup, error) {
	return m.QueryErrorGroupsFn(ctx, sql)
}

func (m *AnalyticsStore) QueryTrendPoints(ctx context.Context, sql string) ([]skywatch.TrendPoint, error) {
	return m.QueryTrendPointsFn(ctx, sql)
}

func (m *AnalyticsStore) InsertAggregationHistory(
	ctx context.Context,
	rec *skywatch.AggregationHistoryRecord,
) error {
	return m.InsertAggregationHistoryFn(ctx, rec)
}

func (m *AnalyticsStore) ListAggregationHistory(
	ctx context.Context,
	criteria skywatch.HistoryCriteria,
) ([]skywatch.AggregationHistoryRecord, error) {
	return m.ListAggregationHistoryFn(ctx, criteria)
}
