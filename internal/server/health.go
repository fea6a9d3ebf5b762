package server

import (
	"log/slog"
	"net/http"

	"github.com/skywatch/skywatch/internal/skywatch"
)

// healthHandler reports liveness and cache reachability.
type healthHandler struct {
	baseHandler

	cache skywatch.CacheStore
}

// newHealthHandler is a constructor of healthHandler.
func newHealthHandler(cache skywatch.CacheStore, logger *slog.Logger) *healthHandler {
	return &healthHandler{baseHandler: baseHandler{logger: logger}, cache: cache}
}

// health answers 200 as long as the process serves requests; the cache field
// degrades independently since every engine tolerates a cache outage.
func (h *healthHandler) health(w http.ResponseWriter, r *http.Request) {
	cacheStatus := "ok"
	if h.cache == nil {
		cacheStatus = "disabled"
	} else if err := h.cache.Ping(r.Context()); err != nil {
		h.logger.Warn("health: cache ping", slog.Any("error", err))
		cacheStatus = "unavailable"
	}

	h.writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"cache":  cacheStatus,
	})
}
