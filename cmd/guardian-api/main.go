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

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/guardian-ai/cmd/mainconfig"
	"github.com/wolfman30/guardian-ai/internal/api/router"
	"github.com/wolfman30/guardian-ai/internal/app"
	"github.com/wolfman30/guardian-ai/internal/app/bootstrap"
	"github.com/wolfman30/guardian-ai/internal/capture"
	appconfig "github.com/wolfman30/guardian-ai/internal/config"
	"github.com/wolfman30/guardian-ai/internal/http/handlers"
	"github.com/wolfman30/guardian-ai/internal/kv"
	"github.com/wolfman30/guardian-ai/internal/observability/metrics"
	"github.com/wolfman30/guardian-ai/pkg/logging"
)

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting guardian-ai API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var awsCfg *aws.Config
	if mainconfig.NeedsAWS(cfg) {
		loaded, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			logger.Error("failed to load AWS config", "error", err)
			os.Exit(1)
		}
		awsCfg = &loaded
	}

	metricsHandler, guardianMetrics := setupMetrics()

	store, redisClient := kv.Open(ctx, kv.RedisOptions{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		TLS:      cfg.RedisTLS,
	}, logger)
	if redisClient != nil {
		defer redisClient.Close()
		logger.Info("state persisted to redis", "addr", cfg.RedisAddr)
	} else {
		logger.Warn("redis not configured; state is kept in memory")
	}

	controller, closeDeps, err := buildController(ctx, cfg, awsCfg, store, guardianMetrics, logger)
	if err != nil {
		logger.Error("failed to build controller", "error", err)
		os.Exit(1)
	}
	defer closeDeps()
	controller.Load(ctx)

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		controller.Run(ctx)
	}()

	r := router.New(&router.Config{
		Logger:             logger,
		Handler:            handlers.New(controller, logger),
		MetricsHandler:     metricsHandler,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		VaultRateLimit:     cfg.VaultRateLimit,
		VaultRateBurst:     cfg.VaultRateBurst,
	})

	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		// No write timeout: the session stream is long lived.
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	select {
	case <-runDone:
	case <-shutdownCtx.Done():
		logger.Warn("controller did not stop in time")
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

// setupMetrics registers the guardian collectors on a fresh registry.
func setupMetrics() (http.Handler, *metrics.GuardianMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), metrics.NewGuardianMetrics(reg)
}

// buildController wires collaborators from config. The returned func
// releases network connections.
func buildController(ctx context.Context, cfg *appconfig.Config, awsCfg *aws.Config, store kv.Store, m *metrics.GuardianMetrics, logger *logging.Logger) (*app.Controller, func(), error) {
	analyzer, err := bootstrap.BuildAnalyzer(ctx, cfg, awsCfg, logger)
	if err != nil {
		return nil, nil, err
	}
	email := bootstrap.BuildEmailSender(cfg, awsCfg, logger)
	uploader, err := bootstrap.BuildUploader(cfg, awsCfg, email, logger)
	if err != nil {
		return nil, nil, err
	}
	broadcaster, closeBroadcaster := bootstrap.BuildBroadcaster(cfg, logger)

	controller := app.New(app.Config{
		KV:          store,
		Analyzer:    analyzer,
		Uploader:    uploader,
		Broadcaster: broadcaster,
		Timings: capture.Timings{
			CaptureInterval:     cfg.CaptureInterval,
			PowerButtonInterval: cfg.PowerButtonCaptureInterval,
			Countdown:           cfg.CountdownDuration,
			AuthWindow:          cfg.AuthWindow,
		},
		AnalysisTimeout:      cfg.AnalysisTimeout,
		MotionDebounce:       cfg.MotionDebounce,
		UploadMaxAttempts:    cfg.UploadMaxAttempts,
		UploadRetryBaseDelay: cfg.UploadRetryBaseDelay,
		VaultLockout:         cfg.VaultLockout,
		OwnerEmail:           cfg.OwnerEmail,
		Metrics:              m,
		Logger:               logger,
	})
	return controller, closeBroadcaster, nil
}
