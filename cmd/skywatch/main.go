package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/skywatch/skywatch/internal/ch"
	"github.com/skywatch/skywatch/internal/chprometheus"
	"github.com/skywatch/skywatch/internal/kv"
	"github.com/skywatch/skywatch/internal/migrator"
	"github.com/skywatch/skywatch/internal/server"
	"github.com/skywatch/skywatch/internal/skywatch"
	"github.com/skywatch/skywatch/internal/stdlog"
	"github.com/skywatch/skywatch/internal/svc/aggregation"
	"github.com/skywatch/skywatch/internal/svc/trend"
	"github.com/skywatch/skywatch/internal/svcotel"
	"github.com/skywatch/skywatch/internal/worker"
	"go.uber.org/automaxprocs/maxprocs"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.9.0"
)

func main() {
	const failed = 1

	cfg := config{}
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		slog.Error("failed to create config", slog.Any("error", err))
		os.Exit(failed)
	}

	logger := stdlog.NewSlogLogger(stdlog.Output(cfg.Log.Output), cfg.Log.Text)
	slog.SetDefault(logger)

	if err := run(&cfg, logger); err != nil {
		logger.Error("skywatch server start / shutdown problem", slog.Any("error", err))
		os.Exit(failed)
	}
}

//nolint:gocyclo,cyclop // boring initialization.
func run(cfg *config, logger *slog.Logger) error {
	l := func(format string, a ...any) {
		logger.Info(fmt.Sprintf(strings.TrimPrefix(format, "maxprocs: "), a...))
	}
	opt := maxprocs.Logger(l)
	if _, err := maxprocs.Set(opt); err != nil {
		return fmt.Errorf("maxprocs set error: %w", err)
	}

	term := make(chan os.Signal, 1)
	signal.Notify(term, os.Interrupt)
	termCtx, cancel := context.WithCancel(context.Background())
	go func() {
		sig := <-term
		logger.Info("signal was received", slog.String("signal", sig.String()))
		cancel()
	}()

	var tracingProvider svcotel.TracerProvider
	if cfg.Tracing.ReporterURI != "" {
		p, err := startTracing(
			termCtx,
			cfg.Tracing.ServiceName,
			cfg.Tracing.ReporterURI,
			cfg.Tracing.Probability,
		)
		if err != nil {
			return fmt.Errorf("start tracing: %w", err)
		}
		tracingProvider = p
	} else {
		tracingProvider = svcotel.NewNoopProvider()
	}

	clickConn, clickClose, err := ch.ConnectLoop(termCtx, cfg.ClickHouse.DSN, ch.DefaultTimeout, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err = clickClose(); err != nil {
			logger.Error("close clickhouse connection pool on server shutdown", slog.Any("error", err))
		}
	}()

	olapm, err := migrator.NewAnalyticsMigrator(cfg.ClickHouse.DSN, logger)
	if err != nil {
		return err
	}
	if err = olapm.Up(cfg.ForceMigrate); err != nil {
		return fmt.Errorf("migrate up: %w", err)
	}
	if sourceErr, err := olapm.Close(); sourceErr != nil || err != nil {
		return fmt.Errorf("close olap migrator: %w, %w", sourceErr, err)
	}

	olap := ch.NewClickhouseStore(clickConn, tracingProvider)

	// The cache is best-effort: a missing Redis degrades smart-group caching
	// and spike recency, it never blocks startup.
	var cache skywatch.CacheStore
	redisCache, redisClose, err := kv.ConnectLoop(
		termCtx,
		cfg.Redis.Addr,
		cfg.Redis.Password,
		cfg.Redis.DB,
		cfg.Redis.ConnTimeout,
		logger,
	)
	if err != nil {
		logger.Warn("redis unavailable, running without cache", slog.Any("error", err))
	} else {
		cache = kv.NewRedisCache(redisCache)
		defer func() {
			if err = redisClose(); err != nil {
				logger.Error("close redis client on server shutdown", slog.Any("error", err))
			}
		}()
	}

	reg := prometheus.NewRegistry()
	regCollectors := []prometheus.Collector{
		collectors.NewGoCollector(),
		chprometheus.NewPoolCollector(clickConn, "analytics"),
	}
	for i := range regCollectors {
		if err = reg.Register(regCollectors[i]); err != nil {
			return fmt.Errorf("register prometheus collector: %w", err)
		}
	}

	now := time.Now

	historyWorker := worker.NewHistoryWorker(
		olap,
		worker.DefaultHistoryQueueSize,
		logger.With(slog.String("service", "history_worker")),
	)
	go historyWorker.Start(termCtx)
	defer historyWorker.Stop()

	aggregationService := aggregation.NewService(
		olap,
		cache,
		historyWorker,
		now,
		logger.With(slog.String("service", "aggregation")),
	)
	trendService := trend.NewService(
		olap,
		cache,
		now,
		logger.With(slog.String("service", "trend")),
	)

	var handler http.Handler
	handler, err = server.NewHandler(&server.Backend{
		Now:                now,
		AggregationService: aggregationService,
		TrendService:       trendService,
		Cache:              cache,
		Reg:                reg,
		Logger:             logger,
	})
	if err != nil {
		return err
	}

	handler = otelhttp.NewHandler(handler, "/", otelhttp.WithTracerProvider(tracingProvider))

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		Handler:           handler,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	go func() {
		err = srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("listen on specified port", slog.Any("error", err))
			cancel()
		}
	}()

	var metricsSrv *http.Server
	if cfg.Metrics.Enabled {
		router := http.NewServeMux()
		router.Handle(cfg.Metrics.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{
			ErrorLog: slog.NewLogLogger(logger.With(slog.String("service", "prometheus")).
				Handler(), slog.LevelError),
			Timeout: time.Second * 1,
		}))
		metricsSrv = &http.Server{
			Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Metrics.Port),
			Handler:           router,
			ReadTimeout:       5 * time.Second,
			WriteTimeout:      15 * time.Second,
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       120 * time.Second,
			ErrorLog: slog.NewLogLogger(
				logger.With(slog.String("service", "metrics_server")).
					Handler(), slog.LevelError),
		}
		go func() {
			err = metricsSrv.ListenAndServe()
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("listen on specified port for metrics", slog.Any("error", err))
				cancel()
			}
		}()
	}

	metricsPort := ""
	if metricsSrv != nil {
		metricsPort = cfg.Metrics.Port
	}

	logger.Info("server started",
		slog.String("host", cfg.Server.Host),
		slog.String("port", cfg.Server.Port),
		slog.String("metrics_port", metricsPort),
		slog.String("runtime", runtime.Version()),
		slog.String("os", runtime.GOOS))

	<-termCtx.Done()

	ctxShutDown, cancel := context.WithTimeout(context.Background(), cfg.Server.CloseTimeout)
	defer cancel()

	if err = srv.Shutdown(ctxShutDown); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	if metricsSrv != nil {
		if err = metricsSrv.Shutdown(ctxShutDown); err != nil {
			return fmt.Errorf("graceful shutdown for metrics failed: %w", err)
		}
	}

	logger.Info("server exited properly")

	return nil
}

// startTracing configure open telemetry to be used.
func startTracing(ctx context.Context, serviceName, reporterURI string, probability float64) (*trace.TracerProvider, error) {
	exporter, err := otlptrace.New(
		ctx,
		otlptracegrpc.NewClient(
			otlptracegrpc.WithInsecure(),
			otlptracegrpc.WithEndpoint(reporterURI),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("creating new exporter: %w", err)
	}

	traceProvider := trace.NewTracerProvider(
		trace.WithSampler(trace.TraceIDRatioBased(probability)),
		trace.WithBatcher(exporter,
			trace.WithMaxExportBatchSize(trace.DefaultMaxExportBatchSize),
			trace.WithBatchTimeout(trace.DefaultScheduleDelay*time.Millisecond),
		),
		trace.WithResource(
			resource.NewWithAttributes(
				semconv.SchemaURL,
				semconv.ServiceNameKey.String(serviceName),
			),
		),
	)

	// We must set this provider as the global provider for things to work,
	// but we pass this provider around the program where needed to collect
	// our traces.
	otel.SetTracerProvider(traceProvider)

	// Chooses the HTTP header formats we extract incoming trace contexts from,
	// and the headers we set in outgoing requests.
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return traceProvider, nil
}

//nolint:tagalign // later
type config struct {
	ClickHouse struct {
		DSN string `env:"CLICKHOUSE_DSN" env-required:"true"`
	}
	Redis struct {
		Addr        string        `env:"REDIS_ADDR"         env-default:"localhost:6379"`
		Password    string        `env:"REDIS_PASSWORD"     env-default:""`
		DB          int           `env:"REDIS_DB"           env-default:"0"`
		ConnTimeout time.Duration `env:"REDIS_CONN_TIMEOUT" env-default:"5s"`
	}
	Server struct {
		Host         string        `env:"SERVER_HOST"   env-default:"localhost"`
		Port         string        `env:"SERVER_PORT"   env-default:"8080"`
		CloseTimeout time.Duration `env:"CLOSE_TIMEOUT" env-default:"5s"`
	}
	Metrics struct {
		Port    string `env:"METRICS_PORT"    env-default:"8081"`
		Path    string `env:"METRICS_PATH"    env-default:"/metrics"`
		Enabled bool   `env:"METRICS_ENABLED" env-default:"false"`
	}
	Log struct {
		Output string `env:"LOG_OUTPUT" env-default:"stderr"`
		Text   bool   `env:"LOG_TEXT"   env-default:"false"`
	}
	Tracing struct {
		ReporterURI string  `env:"TRACING_REPORTER_URI" env-default:""`
		ServiceName string  `env:"TRACING_SERVICE_NAME" env-default:"skywatch"`
		Probability float64 `env:"TRACING_PROBABILITY"  env-default:"1.0"`
	}
	ForceMigrate bool `env:"FORCE_MIGRATE" env-default:"false"`
}
