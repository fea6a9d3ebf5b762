package server

import (
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/skywatch/skywatch/internal/skywatch"
)

const defaultRangeHours = 24

// errorHandler serves error-group aggregations.
type errorHandler struct {
	baseHandler

	svc skywatch.AggregationService
	now func() time.Time
}

// newErrorHandler is a constructor of errorHandler.
func newErrorHandler(svc skywatch.AggregationService, now func() time.Time, logger *slog.Logger) *errorHandler {
	return &errorHandler{baseHandler: baseHandler{logger: logger}, svc: svc, now: now}
}

// listGroups returns first-level error groups, most frequent first.
func (h *errorHandler) listGroups(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	timeRange, err := h.timeRange(q)
	if err != nil {
		h.writeError(w, "list error groups", err)
		return
	}

	groups, err := h.svc.BasicGroups(ctx, skywatch.BasicGroupCriteria{
		AppID: q.Get("app_id"),
		Range: timeRange,
		Limit: intParam(q, "limit", 0),
	})
	if err != nil {
		h.writeError(w, "list error groups", err)
		return
	}

	for i := range groups {
		groups[i].Message = sanitize(groups[i].Message)
		groups[i].Stack = sanitize(groups[i].Stack)
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"data":  groups,
		"total": len(groups),
	})
}

// listSmartGroups returns similarity-merged error groups. The endpoint
// always covers the trailing 24 hours: results are cached per tenant,
// threshold and limit, so an arbitrary from/to pair cannot be honored
// without serving one range's data under another's.
func (h *errorHandler) listSmartGroups(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	end := h.now().UTC()
	timeRange := skywatch.TimeRange{Start: end.Add(-defaultRangeHours * time.Hour), End: end}

	threshold := 0.0
	if raw := q.Get("threshold"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			h.writeError(w, "list smart groups",
				skywatch.NewValidationError("invalid threshold %q", raw))
			return
		}
		threshold = parsed
	}

	result, err := h.svc.SmartGroups(ctx, skywatch.SmartGroupCriteria{
		AppID:     q.Get("app_id"),
		Range:     timeRange,
		Threshold: threshold,
		Limit:     intParam(q, "limit", 0),
	})
	if err != nil {
		h.writeError(w, "list smart groups", err)
		return
	}

	for i := range result.Data {
		result.Data[i].Message = sanitize(result.Data[i].Message)
		result.Data[i].Stack = sanitize(result.Data[i].Stack)
		for j := range result.Data[i].SubGroups {
			result.Data[i].SubGroups[j].Message = sanitize(result.Data[i].SubGroups[j].Message)
		}
	}

	h.writeJSON(w, http.StatusOK, result)
}

// listHistory returns persisted aggregation snapshots, newest first.
func (h *errorHandler) listHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	criteria := skywatch.HistoryCriteria{
		AppID: q.Get("app_id"),
		Limit: intParam(q, "limit", 0),
	}

	var err error
	if criteria.Start, err = timeParam(q, "start"); err != nil {
		h.writeError(w, "list aggregation history", err)
		return
	}
	if criteria.End, err = timeParam(q, "end"); err != nil {
		h.writeError(w, "list aggregation history", err)
		return
	}

	records, err := h.svc.History(ctx, criteria)
	if err != nil {
		h.writeError(w, "list aggregation history", err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"data":  records,
		"total": len(records),
	})
}

// timeRange reads the from/to pair, defaulting to the trailing 24 hours.
func (h *errorHandler) timeRange(q url.Values) (skywatch.TimeRange, error) {
	return queryTimeRange(q, h.now)
}

func queryTimeRange(q url.Values, now func() time.Time) (skywatch.TimeRange, error) {
	from, err := timeParam(q, "from")
	if err != nil {
		return skywatch.TimeRange{}, err
	}
	to, err := timeParam(q, "to")
	if err != nil {
		return skywatch.TimeRange{}, err
	}

	if from.IsZero() && to.IsZero() {
		end := now().UTC()
		return skywatch.TimeRange{Start: end.Add(-defaultRangeHours * time.Hour), End: end}, nil
	}
	if to.IsZero() {
		to = now().UTC()
	}
	if from.IsZero() || !from.Before(to) {
		return skywatch.TimeRange{}, skywatch.NewValidationError("invalid time range: from must precede to")
	}

	return skywatch.TimeRange{Start: from, End: to}, nil
}

func timeParam(q url.Values, name string) (time.Time, error) {
	raw := q.Get(name)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, skywatch.NewValidationError("invalid %s %q: expected RFC3339", name, raw)
	}
	return t.UTC(), nil
}

func intParam(q url.Values, name string, def int) int {
	raw := q.Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
