// Package server provides HTTP handlers and middlewares for the query API.
package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/skywatch/skywatch/internal/skywatch"
)

// Backend is all services and associated parameters required to construct a Handler.
type Backend struct {
	Now                func() time.Time
	AggregationService skywatch.AggregationService
	TrendService       skywatch.TrendService
	Cache              skywatch.CacheStore
	Reg                *prometheus.Registry
	Logger             *slog.Logger
}

// Handler is a collection of all the service handlers.
type Handler struct {
	*http.ServeMux
}

// NewHandler initialize dependencies and returns router with attached routes.
func NewHandler(b *Backend) (*Handler, error) {
	mux := http.NewServeMux()

	now := b.Now
	if now == nil {
		now = time.Now
	}

	recoverMw := newRecoverMw(b.Reg, b.Logger.With(
		slog.String("middleware", "recover"),
	))

	prometheusMw := newPrometheusMW(b.Reg, now)

	chain := func(handler http.HandlerFunc) http.HandlerFunc {
		handler = recoverMw.recover(handler)
		handler = prometheusMw.recordLatency(handler)
		return handler
	}

	errorHandler := newErrorHandler(b.AggregationService, now, b.Logger.With(
		slog.String("handler", "errors"),
	))
	mux.HandleFunc("GET /api/errors/groups", chain(errorHandler.listGroups))
	mux.HandleFunc("GET /api/errors/smart", chain(errorHandler.listSmartGroups))
	mux.HandleFunc("GET /api/errors/history", chain(errorHandler.listHistory))

	trendHandler := newTrendHandler(b.TrendService, now, b.Logger.With(
		slog.String("handler", "trends"),
	))
	mux.HandleFunc("GET /api/trends", chain(trendHandler.listTrends))
	mux.HandleFunc("GET /api/trends/compare", chain(trendHandler.compareTrends))
	mux.HandleFunc("GET /api/spikes/detect", chain(trendHandler.detectSpikes))
	mux.HandleFunc("GET /api/spikes/recent", chain(trendHandler.recentSpikes))

	healthHandler := newHealthHandler(b.Cache, b.Logger.With(
		slog.String("handler", "health"),
	))
	mux.HandleFunc("GET /health", chain(healthHandler.health))

	return &Handler{ServeMux: mux}, nil
}
