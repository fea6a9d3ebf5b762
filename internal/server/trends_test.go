package server_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/skywatch/skywatch/internal/mock"
	"github.com/skywatch/skywatch/internal/skywatch"
	"github.com/stretchr/testify/assert"
)

func TestListTrends(t *testing.T) {
	t.Parallel()

	var gotCriteria skywatch.TrendCriteria
	trends := &mock.TrendService{
		TrendsFn: func(ctx context.Context, c skywatch.TrendCriteria) (*skywatch.TrendResult, error) {
			gotCriteria = c
			return &skywatch.TrendResult{
				Data:            []skywatch.TrendPoint{{TimeBucket: nowTime(), Count: 5}},
				Window:          c.Window,
				TotalDataPoints: 1,
			}, nil
		},
	}

	handler := newTestHandler(t, nil, trends, nil)
	w := doGet(t, handler, "/api/trends?app_id=app-1&fingerprint=fp1&window=day&limit=7")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "app-1", gotCriteria.AppID)
	assert.Equal(t, "fp1", gotCriteria.Fingerprint)
	assert.Equal(t, skywatch.WindowDay, gotCriteria.Window)
	assert.Equal(t, 7, gotCriteria.Limit)
}

func TestListTrendsDefaultsWindowToHour(t *testing.T) {
	t.Parallel()

	var gotWindow skywatch.Window
	trends := &mock.TrendService{
		TrendsFn: func(ctx context.Context, c skywatch.TrendCriteria) (*skywatch.TrendResult, error) {
			gotWindow = c.Window
			return &skywatch.TrendResult{Window: c.Window}, nil
		},
	}

	handler := newTestHandler(t, nil, trends, nil)
	w := doGet(t, handler, "/api/trends")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, skywatch.WindowHour, gotWindow)
}

func TestListTrendsInvalidWindow(t *testing.T) {
	t.Parallel()

	trends := &mock.TrendService{
		TrendsFn: func(ctx context.Context, c skywatch.TrendCriteria) (*skywatch.TrendResult, error) {
			if !c.Window.Valid() {
				return nil, skywatch.NewValidationError("unsupported trend window %q", c.Window)
			}
			return &skywatch.TrendResult{}, nil
		},
	}

	handler := newTestHandler(t, nil, trends, nil)
	w := doGet(t, handler, "/api/trends?window=decade")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decodeBody(t, w)
	assert.Contains(t, body["error"], "unsupported trend window")
}

func TestCompareTrendsHandler(t *testing.T) {
	t.Parallel()

	var gotCriteria skywatch.CompareCriteria
	trends := &mock.TrendService{
		CompareTrendsFn: func(ctx context.Context, c skywatch.CompareCriteria) (*skywatch.ComparisonResult, error) {
			gotCriteria = c
			return &skywatch.ComparisonResult{
				Data: []skywatch.ComparisonPoint{{
					TimeBucket: nowTime(),
					Values: []skywatch.SeriesValue{
						{Count: 3, Occurrences: 6},
						{Count: 0, Occurrences: 0},
					},
				}},
				Fingerprints: c.Fingerprints,
				Window:       c.Window,
			}, nil
		},
	}

	handler := newTestHandler(t, nil, trends, nil)
	w := doGet(t, handler, "/api/trends/compare?app_id=app-1&fingerprints=fp1,%20fp2,,&window=hour")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"fp1", "fp2"}, gotCriteria.Fingerprints)

	// flattened per-series keys
	assert.Contains(t, w.Body.String(), `"error_0"`)
	assert.Contains(t, w.Body.String(), `"error_0_occurrences"`)
	assert.Contains(t, w.Body.String(), `"error_1"`)
	assert.Contains(t, w.Body.String(), `"time_bucket"`)
}

func TestDetectSpikesHandler(t *testing.T) {
	t.Parallel()

	var gotCriteria skywatch.SpikeCriteria
	trends := &mock.TrendService{
		DetectSpikesFn: func(ctx context.Context, c skywatch.SpikeCriteria) (*skywatch.SpikeResult, error) {
			gotCriteria = c
			return &skywatch.SpikeResult{
				AppID:        c.AppID,
				TimeWindow:   c.Window,
				IsSpike:      true,
				CurrentCount: 150,
			}, nil
		},
	}

	handler := newTestHandler(t, nil, trends, nil)
	w := doGet(t, handler, "/api/spikes/detect?app_id=app-1&window=day&lookback=14")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "app-1", gotCriteria.AppID)
	assert.Equal(t, skywatch.WindowDay, gotCriteria.Window)
	assert.Equal(t, 14, gotCriteria.Lookback)

	body := decodeBody(t, w)
	assert.Equal(t, true, body["is_spike"])
}

func TestRecentSpikesHandler(t *testing.T) {
	t.Parallel()

	var gotCriteria skywatch.RecentSpikesCriteria
	trends := &mock.TrendService{
		RecentSpikesFn: func(ctx context.Context, c skywatch.RecentSpikesCriteria) (*skywatch.RecentSpikes, error) {
			gotCriteria = c
			return &skywatch.RecentSpikes{
				Spikes: []skywatch.SpikeResult{
					{AppID: c.AppID, IsSpike: true, DetectionTime: time.Date(2025, 6, 2, 11, 0, 0, 0, time.UTC)},
				},
				Total: 1,
			}, nil
		},
	}

	handler := newTestHandler(t, nil, trends, nil)
	w := doGet(t, handler, "/api/spikes/recent?app_id=app-1&limit=5")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "app-1", gotCriteria.AppID)
	assert.Equal(t, 5, gotCriteria.Limit)

	body := decodeBody(t, w)
	assert.InDelta(t, 1, body["total"], 0)
}
