package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/microcosm-cc/bluemonday"
	"github.com/skywatch/skywatch/internal/skywatch"
)

// sanitizer strips markup from attacker-controlled text before it reaches
// the dashboard. Error messages and stack traces come straight from
// monitored pages.
var sanitizer = bluemonday.StrictPolicy()

type baseHandler struct {
	logger *slog.Logger
}

func (h *baseHandler) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("write json response", slog.Any("error", err))
	}
}

// writeError maps service errors to status codes: validation failures are the
// caller's fault, everything else is reported as an unavailable backend
// without leaking internals.
func (h *baseHandler) writeError(w http.ResponseWriter, msg string, err error) {
	h.logger.Error(msg, slog.Any("error", err))

	var verr *skywatch.ValidationError
	if errors.As(err, &verr) {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": verr.Detail})
		return
	}

	h.writeJSON(w, http.StatusBadGateway, map[string]string{"error": "analytics temporarily unavailable"})
}

func sanitize(s string) string {
	return sanitizer.Sanitize(s)
}
