package mock

import "github.com/skywatch/skywatch/internal/skywatch"

// HistoryQueue is a mock implementation of skywatch.HistoryQueue.
type HistoryQueue struct {
	EnqueueFn func(rec *skywatch.AggregationHistoryRecord) bool
}

func (m *HistoryQueue) Enqueue(rec *skywatch.AggregationHistoryRecord) bool {
	return m.EnqueueFn(rec)
}
