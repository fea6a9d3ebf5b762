package server

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/skywatch/skywatch/internal/skywatch"
)

// trendHandler serves trend series, comparisons and spike detection.
type trendHandler struct {
	baseHandler

	svc skywatch.TrendService
	now func() time.Time
}

// newTrendHandler is a constructor of trendHandler.
func newTrendHandler(svc skywatch.TrendService, now func() time.Time, logger *slog.Logger) *trendHandler {
	return &trendHandler{baseHandler: baseHandler{logger: logger}, svc: svc, now: now}
}

// listTrends returns a chronological trend series for one tenant, optionally
// narrowed to a single fingerprint.
func (h *trendHandler) listTrends(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	timeRange, err := queryTimeRange(q, h.now)
	if err != nil {
		h.writeError(w, "list trends", err)
		return
	}

	result, err := h.svc.Trends(ctx, skywatch.TrendCriteria{
		AppID:       q.Get("app_id"),
		Fingerprint: q.Get("fingerprint"),
		Window:      windowParam(q.Get("window")),
		Range:       timeRange,
		Limit:       intParam(q, "limit", 0),
	})
	if err != nil {
		h.writeError(w, "list trends", err)
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// compareTrends returns a dense multi-series comparison.
func (h *trendHandler) compareTrends(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	timeRange, err := queryTimeRange(q, h.now)
	if err != nil {
		h.writeError(w, "compare trends", err)
		return
	}

	var fingerprints []string
	for _, fp := range strings.Split(q.Get("fingerprints"), ",") {
		if fp = strings.TrimSpace(fp); fp != "" {
			fingerprints = append(fingerprints, fp)
		}
	}

	result, err := h.svc.CompareTrends(ctx, skywatch.CompareCriteria{
		AppID:        q.Get("app_id"),
		Fingerprints: fingerprints,
		Window:       windowParam(q.Get("window")),
		Range:        timeRange,
		Limit:        intParam(q, "limit", 0),
	})
	if err != nil {
		h.writeError(w, "compare trends", err)
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// detectSpikes runs spike detection for one tenant.
func (h *trendHandler) detectSpikes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	result, err := h.svc.DetectSpikes(ctx, skywatch.SpikeCriteria{
		AppID:    q.Get("app_id"),
		Window:   windowParam(q.Get("window")),
		Lookback: intParam(q, "lookback", 0),
	})
	if err != nil {
		h.writeError(w, "detect spikes", err)
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// recentSpikes returns the tenant's recently detected spikes.
func (h *trendHandler) recentSpikes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	result, err := h.svc.RecentSpikes(ctx, skywatch.RecentSpikesCriteria{
		AppID: q.Get("app_id"),
		Limit: intParam(q, "limit", 0),
	})
	if err != nil {
		h.writeError(w, "recent spikes", err)
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

func windowParam(raw string) skywatch.Window {
	if raw == "" {
		return skywatch.WindowHour
	}
	return skywatch.Window(raw)
}
