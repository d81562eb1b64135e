package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/weather-ticker/internal/circuitbreaker"
	"github.com/kjstillabower/weather-ticker/internal/client"
	"github.com/kjstillabower/weather-ticker/internal/config"
	"github.com/kjstillabower/weather-ticker/internal/display"
	httphandler "github.com/kjstillabower/weather-ticker/internal/http"
	"github.com/kjstillabower/weather-ticker/internal/lifecycle"
	"github.com/kjstillabower/weather-ticker/internal/network"
	"github.com/kjstillabower/weather-ticker/internal/observability"
	"github.com/kjstillabower/weather-ticker/internal/render"
	"github.com/kjstillabower/weather-ticker/internal/scheduler"
	"github.com/kjstillabower/weather-ticker/internal/snapshot"
	"github.com/kjstillabower/weather-ticker/internal/traffic"
)

func main() {
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

	phase := lifecycle.NewTracker(func(from, to lifecycle.Phase) {
		observability.SchedulerPhase.Set(float64(to))
		logger.Info("scheduler phase transition",
			zap.String("from", from.String()),
			zap.String("to", to.String()))
	})
	store := snapshot.NewStore()
	observability.RegisterSnapshotAge(func() float64 {
		age, ok := store.Age(time.Now())
		if !ok {
			return -1
		}
		return age.Seconds()
	})
	fetchTraffic := traffic.NewTracker(cfg.ErrorWindow)

	weatherRec := display.NewRecorder(cfg.DisplayColumns)
	clockRec := display.NewRecorder(cfg.DisplayColumns)
	weatherSink := display.Tee{display.NewTerminal("weather", cfg.DisplayColumns, os.Stdout), weatherRec}
	clockSink := display.Tee{display.NewTerminal("clock", cfg.DisplayColumns, os.Stdout), clockRec}

	fetcher := client.NewFetcher(client.Config{
		AttemptTimeout: cfg.FetchAttemptTimeout,
		OverallTimeout: cfg.FetchOverallTimeout,
		Backoff:        cfg.FetchBackoff,
		UserAgent:      cfg.UserAgent,
	}, logger)
	if cfg.CircuitBreakerEnabled {
		cb := circuitbreaker.New(circuitbreaker.Config{
			FailureThreshold: cfg.CircuitBreakerFailureThreshold,
			SuccessThreshold: cfg.CircuitBreakerSuccessThreshold,
			Timeout:          cfg.CircuitBreakerTimeout,
			OnStateChange: func(from, to circuitbreaker.State) {
				observability.RecordCircuitBreakerTransition("weather_api", from.String(), to.String(), int(to))
			},
		})
		fetcher.SetCircuitBreaker(cb)
		observability.CircuitBreakerState.WithLabelValues("weather_api").Set(0)
		logger.Info("circuit breaker enabled",
			zap.Int("failure_threshold", cfg.CircuitBreakerFailureThreshold),
			zap.Duration("timeout", cfg.CircuitBreakerTimeout))
	}

	var clock network.Clock = network.SystemClock{}
	var syncer scheduler.TimeSyncer
	if cfg.NTPServer != "" {
		ntpClock := network.NewNTPClock(cfg.NTPServer, cfg.NTPTimeout)
		clock, syncer = ntpClock, ntpClock
	}

	parseOpts := snapshot.DefaultOptions()
	parseOpts.MinDays = cfg.MinForecastDays
	parseOpts.MiddayIndex = cfg.MiddayIndex

	sched, err := scheduler.New(scheduler.Config{
		URL:            cfg.WeatherURL,
		TZOffsetHours:  cfg.TZOffsetHours,
		Credentials:    network.Credentials{SSID: cfg.WiFiSSID, Password: cfg.WiFiPassword},
		ClockInterval:  cfg.ClockInterval,
		FetchInterval:  cfg.FetchInterval,
		PageInterval:   cfg.PageInterval,
		Quantum:        cfg.Quantum,
		JoinTimeout:    cfg.JoinTimeout,
		JoinPoll:       cfg.JoinPoll,
		ConnectedPause: cfg.ConnectedPause,
		SyncTimeout:    cfg.NTPTimeout,
		ParseOptions:   parseOpts,
		Pages:          render.DefaultPages,
	}, scheduler.Deps{
		WeatherSink: weatherSink,
		ClockSink:   clockSink,
		Link:        network.NewInterfaceLink(cfg.NetworkInterface, logger),
		Fetcher:     fetcher,
		Clock:       clock,
		Syncer:      syncer,
		Store:       store,
		Lifecycle:   phase,
		Traffic:     fetchTraffic,
		Logger:      logger,
	})
	if err != nil {
		logger.Fatal("scheduler", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var srv *http.Server
	if cfg.StatusAddr != "" {
		handler := httphandler.NewHandler(store, phase, fetchTraffic,
			map[string]httphandler.LineSource{"weather": weatherRec, "clock": clockRec},
			&httphandler.HealthConfig{
				ErrorWindow:      cfg.ErrorWindow,
				DegradedErrorPct: cfg.DegradedErrorPct,
				StaleAfter:       cfg.StaleAfter,
			}, logger)
		limiter := rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
		srv = &http.Server{
			Addr:         cfg.StatusAddr,
			Handler:      httphandler.NewRouter(handler, logger, limiter),
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info("status server starting", zap.String("addr", cfg.StatusAddr))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("status server", zap.Error(err))
			}
		}()
	}

	err = sched.Bootstrap(ctx)
	switch {
	case errors.Is(err, scheduler.ErrJoinFailed):
		// The diagnostic pages stay up until someone power-cycles (signals) the device.
		<-ctx.Done()
	case err != nil:
		logger.Info("bootstrap interrupted", zap.Error(err))
	default:
		if err := sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("scheduler stopped", zap.Error(err))
		}
	}
	stop()

	logger.Info("graceful shutdown triggered")
	phase.SetShuttingDown(true)
	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("status server shutdown", zap.Error(err))
		}
		if err := httphandler.WaitForInFlight(shutdownCtx, 50*time.Millisecond); err != nil {
			logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
		}
		cancel()
	}
	if err := observability.FlushTelemetry(logger); err != nil {
		fmt.Fprintf(os.Stderr, "telemetry flush: %v\n", err)
	}
}
