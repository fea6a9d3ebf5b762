package mock

import (
	"context"

	"github.com/skywatch/skywatch/internal/skywatch"
)

// AggregationService is a mock implementation of skywatch.AggregationService.
type AggregationService struct {
	BasicGroupsFn func(ctx context.Context, c skywatch.BasicGroupCriteria) ([]skywatch.BasicErrorGroup, error)
	SmartGroupsFn func(ctx context.Context, c skywatch.SmartGroupCriteria) (*skywatch.SmartGroupResult, error)
	HistoryFn     func(ctx context.Context, c skywatch.HistoryCriteria) ([]skywatch.AggregationHistoryRecord, error)
}

func (m *AggregationService) BasicGroups(
	ctx context.Context,
	c skywatch.BasicGroupCriteria,
) ([]skywatch.BasicErrorGroup, error) {
	return m.BasicGroupsFn(ctx, c)
}

func (m *AggregationService) SmartGroups(
	ctx context.Context,
	c skywatch.SmartGroupCriteria,
) (*skywatch.SmartGroupResult, error) {
	return m.SmartGroupsFn(ctx, c)
}

func (m *AggregationService) History(
	ctx context.Context,
	c skywatch.HistoryCriteria,
) ([]skywatch.AggregationHistoryRecord, error) {
	return m.HistoryFn(ctx, c)
}

// TrendService is a mock implementation of skywatch.TrendService.
type TrendService struct {
	TrendsFn        func(ctx context.Context, c skywatch.TrendCriteria) (*skywatch.TrendResult, error)
	CompareTrendsFn func(ctx context.Context, c skywatch.CompareCriteria) (*skywatch.ComparisonResult, error)
	DetectSpikesFn  func(ctx context.Context, c skywatch.SpikeCriteria) (*skywatch.SpikeResult, error)
	RecentSpikesFn  func(ctx context.Context, c skywatch.RecentSpikesCriteria) (*skywatch.RecentSpikes, error)
}

func (m *TrendService) Trends(ctx context.Context, c skywatch.TrendCriteria) (*skywatch.TrendResult, error) {
	return m.TrendsFn(ctx, c)
}

func (m *TrendService) CompareTrends(
	ctx context.Context,
	c skywatch.CompareCriteria,
) (*skywatch.ComparisonResult, error) {
	return m.CompareTrendsFn(ctx, c)
}

func (m *TrendService) DetectSpikes(ctx context.Context, c skywatch.SpikeCriteria) (*skywatch.SpikeResult, error) {
	return m.DetectSpikesFn(ctx, c)
}

func (m *TrendService) RecentSpikes(
	ctx context.Context,
	c skywatch.RecentSpikesCriteria,
) (*skywatch.RecentSpikes, error) {
	return m.RecentSpikesFn(ctx, c)
}
