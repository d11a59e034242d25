package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/weather-dashboard/internal/client"
	"github.com/kjstillabower/weather-dashboard/internal/config"
	"github.com/kjstillabower/weather-dashboard/internal/dashboard"
	httphandler "github.com/kjstillabower/weather-dashboard/internal/http"
	"github.com/kjstillabower/weather-dashboard/internal/lifecycle"
	"github.com/kjstillabower/weather-dashboard/internal/observability"
	"github.com/kjstillabower/weather-dashboard/internal/recent"
	"github.com/kjstillabower/weather-dashboard/internal/scheduler"
)

const breakerComponent = "weather_api"

func main() {
	lifecycle.MarkStarted(time.Now())

	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	opts := client.Options{
		Units:          cfg.WeatherAPIUnits,
		RateLimitRPS:   cfg.UpstreamRPS,
		RateLimitBurst: cfg.UpstreamBurst,
	}
	if cfg.BreakerEnabled {
		opts.Breaker = client.NewBreaker(client.BreakerConfig{
			Name:             breakerComponent,
			FailureThreshold: cfg.BreakerFailures,
			OpenTimeout:      cfg.BreakerOpenTimeout,
			OnStateChange: func(name string, from, to gobreaker.State) {
				observability.RecordCircuitBreakerTransition(name, from.String(), to.String())
				logger.Warn("circuit breaker state change",
					zap.String("component", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()))
			},
		})
		observability.CircuitBreakerState.WithLabelValues(breakerComponent).Set(0)
		logger.Info("circuit breaker enabled",
			zap.Int("failure_threshold", cfg.BreakerFailures),
			zap.Duration("open_timeout", cfg.BreakerOpenTimeout))
	}
	weatherClient, err := client.NewOpenWeatherClientWithOptions(cfg.WeatherAPIKey, cfg.WeatherAPIURL, cfg.WeatherAPITimeout, opts)
	if err != nil {
		logger.Fatal("weather client", zap.Error(err))
	}

	keyCtx, keyCancel := context.WithTimeout(context.Background(), cfg.WeatherAPITimeout)
	if err := weatherClient.ValidateAPIKey(keyCtx); err != nil {
		logger.Warn("weather API key check failed", zap.Error(err))
	}
	keyCancel()

	store, storeCloser, storePing, err := openRecentStore(cfg, logger)
	if err != nil {
		logger.Fatal("recent store", zap.Error(err))
	}

	inbox := dashboard.NewInbox(0)
	dash := dashboard.New(weatherClient, store, inbox, dashboard.Options{
		DefaultLocation: cfg.DefaultLocation,
		Location:        cfg.Location,
		Logger:          logger,
	})
	initCtx, initCancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
	if err := dash.Init(initCtx); err != nil {
		logger.Warn("recent searches not loaded", zap.Error(err))
	}
	initCancel()

	refresher := scheduler.New(dash, cfg.AutoRefreshInterval, cfg.RequestTimeout, logger)
	if err := refresher.Start(); err != nil {
		logger.Fatal("auto refresh", zap.Error(err))
	}

	healthConfig := &httphandler.HealthConfig{
		DegradedWindow:     cfg.DegradedWindow,
		DegradedErrorPct:   cfg.DegradedErrorPct,
		DegradedMinLookups: cfg.DegradedMinLookups,
		StorePing:          storePing,
	}
	if opts.Breaker != nil {
		healthConfig.BreakerState = func() string { return opts.Breaker.State().String() }
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	handler := httphandler.NewHandler(dash, inbox, healthConfig, logger, cfg.LocationMinLen, cfg.LocationMaxLen)
	router := httphandler.NewRouter(handler, logger, limiter, cfg.RequestTimeout)

	observability.RegisterTrafficGauges(cfg.DegradedWindow)
	if len(cfg.TrackedLocations) > 0 {
		observability.SetTrackedLocations(cfg.TrackedLocations)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
	}

	go func() {
		logger.Info("server starting",
			zap.String("addr", srv.Addr),
			zap.String("recent_backend", cfg.RecentBackend))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	lifecycle.SetShuttingDown(true)
	refresher.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	if err := httphandler.WaitForInFlight(shutdownCtx, 50*time.Millisecond); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}

	if storeCloser != nil {
		if err := storeCloser(); err != nil {
			logger.Error("recent store close", zap.Error(err))
		}
	}

	flushCtx, flushCancel := context.WithTimeout(context.Background(), cfg.FlushTimeout)
	defer flushCancel()
	logger.Info("shutdown complete")
	if err := observability.FlushTelemetry(flushCtx, logger); err != nil {
		fmt.Fprintf(os.Stderr, "telemetry flush: %v\n", err)
	}
}

// openRecentStore returns the configured store plus optional close and ping hooks.
func openRecentStore(cfg *config.Config, logger *zap.Logger) (recent.Store, func() error, func() error, error) {
	switch cfg.RecentBackend {
	case config.BackendMemcached:
		mc := recent.NewMemcachedStore(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
		if err := mc.Ping(); err != nil {
			logger.Warn("memcached not reachable at startup", zap.String("addrs", cfg.MemcachedAddrs), zap.Error(err))
		}
		logger.Info("recent backend: memcached", zap.String("addrs", cfg.MemcachedAddrs))
		return mc, mc.Close, mc.Ping, nil
	case config.BackendSQLite:
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s, err := recent.NewSQLiteStore(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, nil, err
		}
		logger.Info("recent backend: sqlite", zap.String("path", cfg.SQLitePath))
		return s, s.Close, nil, nil
	default:
		logger.Info("recent backend: in_memory")
		return recent.NewMemoryStore(), nil, nil, nil
	}
}
