// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ManuGH/playerplatform/internal/api"
	"github.com/ManuGH/playerplatform/internal/config"
	"github.com/ManuGH/playerplatform/internal/log"
	"github.com/ManuGH/playerplatform/internal/player/dispatch"
	"github.com/ManuGH/playerplatform/internal/player/drm"
	"github.com/ManuGH/playerplatform/internal/player/event"
	"github.com/ManuGH/playerplatform/internal/player/session"
	"github.com/ManuGH/playerplatform/internal/resilience"
	"github.com/ManuGH/playerplatform/internal/sink"
	"github.com/ManuGH/playerplatform/internal/telemetry"
	"github.com/ManuGH/playerplatform/internal/validate"
	"github.com/ManuGH/playerplatform/internal/version"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		os.Exit(0)
	}

	// Safe defaults until config is loaded.
	log.Configure(log.Config{Level: "info", Service: "playerd", Version: version.Version})
	logger := log.WithComponent("daemon")

	cfg, err := config.NewLoader(*configPath, version.Version).Load()
	if err != nil {
		ev := logger.Fatal().
			Err(err).
			Str(log.FieldEvent, "config.load_failed").
			Str("config_path", *configPath)
		var verr validate.ValidationError
		if errors.As(err, &verr) {
			ev = ev.Strs("invalid_fields", verr.Fields())
		}
		ev.Msg("failed to load configuration")
	}
	log.Configure(log.Config{Level: cfg.LogLevel, Service: cfg.LogService, Version: cfg.Version})
	logger = log.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Str(log.FieldEvent, "daemon.failed").Msg("daemon exited with error")
	}
	logger.Info().Str(log.FieldEvent, "daemon.stopped").Msg("shutdown complete")
}

func run(ctx context.Context, cfg config.AppConfig, logger zerolog.Logger) error {
	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Tracing.Enabled,
		ServiceName:    cfg.LogService,
		ServiceVersion: cfg.Version,
		Environment:    cfg.Tracing.Environment,
		ExporterType:   cfg.Tracing.Exporter,
		Endpoint:       cfg.Tracing.Endpoint,
		SamplingRate:   cfg.Tracing.SamplingRate,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tp.Shutdown(sctx); err != nil {
			logger.Warn().Err(err).Msg("tracer shutdown")
		}
	}()

	dispatcher := dispatch.New()
	if _, err := dispatcher.Subscribe(event.KindAll, dispatch.NewLogObserver(log.WithComponent("events"))); err != nil {
		return fmt.Errorf("subscribe log observer: %w", err)
	}

	registry := session.NewRegistry(log.WithComponent("sessions"))
	defer registry.CloseAll()

	g, gctx := errgroup.WithContext(ctx)

	apiCfg := api.Config{
		Registry:          registry,
		Dispatcher:        dispatcher,
		DRMTimeout:        cfg.DRMTimeout,
		HeartbeatInterval: cfg.HeartbeatInterval,
		RateLimitRPM:      cfg.RateLimitRPM,
		Health:            map[string]api.HealthChecker{},
	}
	if cfg.Tracing.Enabled {
		apiCfg.TracingName = "playerplatform/api"
	}

	if cfg.License.URL != "" {
		breaker := resilience.NewCircuitBreaker("drm_license", cfg.License.BreakerThreshold, cfg.License.BreakerReset,
			resilience.WithIgnore(func(err error) bool { return errors.Is(err, drm.ErrLicenseRequest) }))
		apiCfg.License = drm.Guarded(drm.NewHTTPLicenseClient(cfg.License.URL, nil), breaker)
		logger.Info().
			Str(log.FieldEvent, "drm.license_configured").
			Str("url", cfg.License.URL).
			Int("breaker_threshold", cfg.License.BreakerThreshold).
			Msg("license server configured")
	}

	if cfg.Redis.Enabled {
		stream, err := sink.NewRedisStream(sink.RedisConfig{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			Stream:    cfg.Redis.Stream,
			MaxLen:    cfg.Redis.MaxLen,
			QueueSize: cfg.QueueSize,
		}, log.WithComponent("sink"))
		if err != nil {
			return fmt.Errorf("init redis sink: %w", err)
		}
		defer func() {
			if err := stream.Close(); err != nil {
				logger.Warn().Err(err).Msg("close redis sink")
			}
		}()
		if _, err := dispatcher.Subscribe(event.KindAll, stream.Observer()); err != nil {
			return fmt.Errorf("subscribe redis sink: %w", err)
		}
		apiCfg.Events = stream
		apiCfg.Health["redis"] = stream
		g.Go(func() error { return stream.Run(gctx) })
	}

	server, err := api.New(apiCfg)
	if err != nil {
		return err
	}
	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g.Go(func() error {
		logger.Info().
			Str(log.FieldEvent, "http.listen").
			Str("addr", cfg.ListenAddr).
			Msg("player API listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Str(log.FieldEvent, "daemon.shutdown").Msg("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(sctx)
	})

	return g.Wait()
}
