package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/skywatch/skywatch/internal/mock"
	"github.com/skywatch/skywatch/internal/server"
	"github.com/skywatch/skywatch/internal/skywatch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var nowTime = func() time.Time {
	return time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
}

func newTestHandler(t *testing.T, agg skywatch.AggregationService, trends skywatch.TrendService, cache skywatch.CacheStore) http.Handler {
	t.Helper()

	handler, err := server.NewHandler(&server.Backend{
		Now:                nowTime,
		AggregationService: agg,
		TrendService:       trends,
		Cache:              cache,
		Reg:                prometheus.NewRegistry(),
		Logger:             slog.New(slog.DiscardHandler),
	})
	require.NoError(t, err)

	return handler
}

func doGet(t *testing.T, handler http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, target, nil)
	handler.ServeHTTP(w, r)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestListGroups(t *testing.T) {
	t.Parallel()

	var gotCriteria skywatch.BasicGroupCriteria
	agg := &mock.AggregationService{
		BasicGroupsFn: func(ctx context.Context, c skywatch.BasicGroupCriteria) ([]skywatch.BasicErrorGroup, error) {
			gotCriteria = c
			return []skywatch.BasicErrorGroup{
				{Fingerprint: "fp1", Message: "boom", TotalCount: 10},
			}, nil
		},
	}

	handler := newTestHandler(t, agg, nil, nil)
	w := doGet(t, handler, "/api/errors/groups?app_id=app-1&limit=20")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	body := decodeBody(t, w)
	assert.InDelta(t, 1, body["total"], 0)

	assert.Equal(t, "app-1", gotCriteria.AppID)
	assert.Equal(t, 20, gotCriteria.Limit)
	// default trailing 24 hours
	assert.Equal(t, nowTime().Add(-24*time.Hour), gotCriteria.Range.Start)
	assert.Equal(t, nowTime(), gotCriteria.Range.End)
}

func TestListGroupsSanitizesMessages(t *testing.T) {
	t.Parallel()

	agg := &mock.AggregationService{
		BasicGroupsFn: func(ctx context.Context, c skywatch.BasicGroupCriteria) ([]skywatch.BasicErrorGroup, error) {
			return []skywatch.BasicErrorGroup{{
				Fingerprint: "fp1",
				Message:     `<script>alert(1)</script>boom`,
				Stack:       `at <img src=x onerror=alert(1)> main.js:1`,
			}}, nil
		},
	}

	handler := newTestHandler(t, agg, nil, nil)
	w := doGet(t, handler, "/api/errors/groups")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "<script>")
	assert.NotContains(t, w.Body.String(), "onerror")
	assert.Contains(t, w.Body.String(), "boom")
}

func TestListGroupsTimeRange(t *testing.T) {
	t.Parallel()

	t.Run("explicit range is passed through", func(t *testing.T) {
		t.Parallel()

		var gotRange skywatch.TimeRange
		agg := &mock.AggregationService{
			BasicGroupsFn: func(ctx context.Context, c skywatch.BasicGroupCriteria) ([]skywatch.BasicErrorGroup, error) {
				gotRange = c.Range
				return nil, nil
			},
		}

		handler := newTestHandler(t, agg, nil, nil)
		w := doGet(t, handler, "/api/errors/groups?from=2025-06-01T00:00:00Z&to=2025-06-02T00:00:00Z")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), gotRange.Start)
		assert.Equal(t, time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), gotRange.End)
	})

	t.Run("malformed from is rejected", func(t *testing.T) {
		t.Parallel()

		handler := newTestHandler(t, &mock.AggregationService{}, nil, nil)
		w := doGet(t, handler, "/api/errors/groups?from=yesterday")

		assert.Equal(t, http.StatusBadRequest, w.Code)
		body := decodeBody(t, w)
		assert.Contains(t, body["error"], "expected RFC3339")
	})

	t.Run("inverted range is rejected", func(t *testing.T) {
		t.Parallel()

		handler := newTestHandler(t, &mock.AggregationService{}, nil, nil)
		w := doGet(t, handler, "/api/errors/groups?from=2025-06-02T00:00:00Z&to=2025-06-01T00:00:00Z")

		assert.Equal(t, http.StatusBadRequest, w.Code)
		body := decodeBody(t, w)
		assert.Contains(t, body["error"], "from must precede to")
	})
}

func TestListGroupsBackendFailure(t *testing.T) {
	t.Parallel()

	agg := &mock.AggregationService{
		BasicGroupsFn: func(ctx context.Context, c skywatch.BasicGroupCriteria) ([]skywatch.BasicErrorGroup, error) {
			return nil, errors.New("clickhouse: basic groups: connection refused")
		},
	}

	handler := newTestHandler(t, agg, nil, nil)
	w := doGet(t, handler, "/api/errors/groups")

	assert.Equal(t, http.StatusBadGateway, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "analytics temporarily unavailable", body["error"])
	assert.NotContains(t, w.Body.String(), "connection refused")
}

func TestListSmartGroups(t *testing.T) {
	t.Parallel()

	var gotCriteria skywatch.SmartGroupCriteria
	agg := &mock.AggregationService{
		SmartGroupsFn: func(ctx context.Context, c skywatch.SmartGroupCriteria) (*skywatch.SmartGroupResult, error) {
			gotCriteria = c
			return &skywatch.SmartGroupResult{
				Data: []skywatch.SmartErrorGroup{{
					Fingerprint: "fp1",
					Message:     "<b>boom</b>",
					IsMerged:    true,
					SubGroups: []skywatch.SubGroup{
						{Fingerprint: "fp2", Message: "<i>boom 2</i>"},
					},
				}},
				Total:          1,
				OriginalGroups: 2,
				MergedGroups:   1,
				ReductionRate:  50,
			}, nil
		},
	}

	handler := newTestHandler(t, agg, nil, nil)
	w := doGet(t, handler, "/api/errors/smart?app_id=app-1&threshold=0.9&limit=5")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "app-1", gotCriteria.AppID)
	assert.InDelta(t, 0.9, gotCriteria.Threshold, 1e-9)
	assert.Equal(t, 5, gotCriteria.Limit)
	assert.Equal(t, nowTime().Add(-24*time.Hour), gotCriteria.Range.Start)
	assert.Equal(t, nowTime(), gotCriteria.Range.End)

	assert.NotContains(t, w.Body.String(), "<b>")
	assert.NotContains(t, w.Body.String(), "<i>")
	assert.Contains(t, w.Body.String(), "boom 2")
}

// Smart groups are cached per tenant, threshold and limit, so the endpoint
// pins the range to the trailing day regardless of what the client sends.
func TestListSmartGroupsIgnoresTimeParams(t *testing.T) {
	t.Parallel()

	var gotCriteria skywatch.SmartGroupCriteria
	agg := &mock.AggregationService{
		SmartGroupsFn: func(ctx context.Context, c skywatch.SmartGroupCriteria) (*skywatch.SmartGroupResult, error) {
			gotCriteria = c
			return &skywatch.SmartGroupResult{Data: []skywatch.SmartErrorGroup{}}, nil
		},
	}

	handler := newTestHandler(t, agg, nil, nil)
	w := doGet(t, handler, "/api/errors/smart?app_id=app-1&from=2024-01-01T00:00:00Z&to=2024-01-02T00:00:00Z")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, nowTime().Add(-24*time.Hour), gotCriteria.Range.Start)
	assert.Equal(t, nowTime(), gotCriteria.Range.End)
}

func TestListSmartGroupsInvalidThreshold(t *testing.T) {
	t.Parallel()

	handler := newTestHandler(t, &mock.AggregationService{}, nil, nil)
	w := doGet(t, handler, "/api/errors/smart?threshold=high")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decodeBody(t, w)
	assert.Contains(t, body["error"], "invalid threshold")
}

func TestListHistory(t *testing.T) {
	t.Parallel()

	var gotCriteria skywatch.HistoryCriteria
	agg := &mock.AggregationService{
		HistoryFn: func(ctx context.Context, c skywatch.HistoryCriteria) ([]skywatch.AggregationHistoryRecord, error) {
			gotCriteria = c
			return []skywatch.AggregationHistoryRecord{
				{AppID: c.AppID, OriginalGroups: 10, MergedGroups: 4},
			}, nil
		},
	}

	handler := newTestHandler(t, agg, nil, nil)
	w := doGet(t, handler, "/api/errors/history?app_id=app-1&start=2025-06-01T00:00:00Z&limit=3")

	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.InDelta(t, 1, body["total"], 0)

	assert.Equal(t, "app-1", gotCriteria.AppID)
	assert.Equal(t, 3, gotCriteria.Limit)
	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), gotCriteria.Start)
	assert.True(t, gotCriteria.End.IsZero())
}

func TestHealth(t *testing.T) {
	t.Parallel()

	t.Run("cache ok", func(t *testing.T) {
		t.Parallel()

		cache := &mock.CacheStore{
			PingFn: func(ctx context.Context) error { return nil },
		}

		handler := newTestHandler(t, nil, nil, cache)
		w := doGet(t, handler, "/health")

		assert.Equal(t, http.StatusOK, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, "ok", body["status"])
		assert.Equal(t, "ok", body["cache"])
	})

	t.Run("cache disabled", func(t *testing.T) {
		t.Parallel()

		handler := newTestHandler(t, nil, nil, nil)
		w := doGet(t, handler, "/health")

		assert.Equal(t, http.StatusOK, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, "disabled", body["cache"])
	})

	t.Run("cache unavailable still returns 200", func(t *testing.T) {
		t.Parallel()

		cache := &mock.CacheStore{
			PingFn: func(ctx context.Context) error { return errors.New("connection refused") },
		}

		handler := newTestHandler(t, nil, nil, cache)
		w := doGet(t, handler, "/health")

		assert.Equal(t, http.StatusOK, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, "unavailable", body["cache"])
	})
}
