// Package worker provides background workers for best-effort persistence.
package worker

import (
	"context"
	"log/slog"
	"sync"

	"github.com/skywatch/skywatch/internal/skywatch"
)

// DefaultHistoryQueueSize bounds how many aggregation snapshots may wait for
// persistence. A persistent store outage drops records instead of leaking
// unbounded in-flight writes.
const DefaultHistoryQueueSize = 128

// HistoryWorker persists aggregation snapshots off the request hot path.
// Enqueue never blocks and never fails the caller; a full queue drops the
// record with a log line.
type HistoryWorker struct {
	store   skywatch.AnalyticsStore
	logger  *slog.Logger
	queue   chan *skywatch.AggregationHistoryRecord
	stopCh  chan struct{}
	mu      sync.Mutex
	running bool
}

// NewHistoryWorker creates a new history worker with the given queue size.
func NewHistoryWorker(store skywatch.AnalyticsStore, queueSize int, logger *slog.Logger) *HistoryWorker {
	if queueSize <= 0 {
		queueSize = DefaultHistoryQueueSize
	}
	return &HistoryWorker{
		store:  store,
		logger: logger,
		queue:  make(chan *skywatch.AggregationHistoryRecord, queueSize),
		stopCh: make(chan struct{}),
	}
}

// Enqueue hands a snapshot to the worker. It reports false when the queue
// is full and the record was dropped.
func (w *HistoryWorker) Enqueue(rec *skywatch.AggregationHistoryRecord) bool {
	select {
	case w.queue <- rec:
		return true
	default:
		w.logger.Warn("history queue full, dropping aggregation snapshot",
			slog.String("app_id", rec.AppID))
		return false
	}
}

// Start drains the queue until the context is canceled or Stop is called.
// It blocks; run it in its own goroutine.
func (w *HistoryWorker) Start(ctx context.Context) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.mu.Unlock()

	w.logger.Info("history worker started")

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("history worker stopped due to context cancellation")
			return
		case <-w.stopCh:
			w.logger.Info("history worker stopped")
			return
		case rec := <-w.queue:
			w.persist(ctx, rec)
		}
	}
}

// Stop stops the worker. Records still queued are dropped.
func (w *HistoryWorker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}

	close(w.stopCh)
	w.running = false
}

func (w *HistoryWorker) persist(ctx context.Context, rec *skywatch.AggregationHistoryRecord) {
	if err := w.store.InsertAggregationHistory(ctx, rec); err != nil {
		w.logger.Error("failed to persist aggregation history",
			slog.String("app_id", rec.AppID),
			slog.Any("error", err))
	}
}
