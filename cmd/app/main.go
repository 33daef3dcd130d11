package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"learning-platform-core/internal/config"
	"learning-platform-core/internal/domain/ports/adapter"
	payAdapters "learning-platform-core/internal/infra/adapters/payment"
	"learning-platform-core/internal/infra/api"
	apiv1 "learning-platform-core/internal/infra/api/apiv1"
	pg "learning-platform-core/internal/infra/db/postgres"
	"learning-platform-core/internal/infra/logging"
	"learning-platform-core/internal/infra/metrics"
	red "learning-platform-core/internal/infra/redis"
	"learning-platform-core/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, noop gateway allowed)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, int32(cfg.Database.PoolSize))
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connect failed")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connect failed")
	}
	defer redisClient.Close()

	// ---- Repositories ----
	userRepo := pg.NewUserRepo(pool)
	courseRepo := pg.NewCourseRepoCacheDecorator(pg.NewCourseRepo(pool), redisClient)
	paymentRepo := pg.NewPaymentRepo(pool)
	enrollmentRepo := pg.NewEnrollmentRepo(pool)
	txManager := pg.NewTxManager(pool)

	// ---- Payment gateway ----
	var gateway adapter.PaymentGateway
	switch cfg.Gateway.Provider {
	case "razorpay":
		gateway, err = payAdapters.NewRazorpayGateway(cfg.Gateway.KeyID, cfg.Gateway.KeySecret, cfg.Gateway.BaseURL, cfg.Gateway.Timeout)
		if err != nil {
			logger.Fatal().Err(err).Msg("razorpay gateway init failed")
		}
	case "noop", "":
		if !cfg.Runtime.Dev {
			logger.Fatal().Str("provider", cfg.Gateway.Provider).Msg("noop gateway is dev-only")
		}
		gateway = payAdapters.NewNoopGateway(cfg.Gateway.KeySecret)
	default:
		logger.Fatal().Str("provider", cfg.Gateway.Provider).Msg("unknown payment gateway provider")
	}
	logger.Info().Str("provider", gateway.Name()).Msg("payment gateway ready")

	// ---- Use cases ----
	enrollUC := usecase.NewEnrollmentUseCase(enrollmentRepo, courseRepo, logger)
	payUC := usecase.NewPaymentUseCase(paymentRepo, userRepo, courseRepo, enrollmentRepo, enrollUC, gateway, txManager, cfg.Billing, logger)
	accessUC := usecase.NewAccessUseCase(courseRepo, enrollmentRepo, cfg.Billing, logger)

	// ---- HTTP API ----
	auth := api.NewAuthenticator(cfg.Server.JWTSecret, userRepo, logger)
	router := chi.NewRouter()
	srv := apiv1.NewServer(payUC, enrollUC, accessUC, courseRepo, logger)
	apiv1.RegisterAPIV1(router, srv, auth)

	handler := api.Chain(router,
		api.Recover(logger),
		api.TraceID(logger),
		api.RequestLog(logger),
		api.Timeout(30*time.Second),
	)
	apiServer := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Server.Port), Handler: handler}
	go func() {
		logger.Info().Str("addr", apiServer.Addr).Msg("api listening")
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("api server stopped")
		}
	}()

	// ---- Metrics server ----
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Server.MetricsPort), Handler: metricsMux}
	go func() {
		logger.Info().Str("addr", metricsServer.Addr).Msg("metrics listening")
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("metrics server stopped")
		}
	}()

	// ---- DB pool stats (30s) ----
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				st := pool.Stat()
				metrics.SetDBPoolStats(st.TotalConns(), st.IdleConns(), st.AcquiredConns())
			}
		}
	}()

	// ---- Stale intent reaper (hourly) ----
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := payUC.ReapStalePending(ctx, time.Now().Add(-24*time.Hour), 100); err != nil {
					logger.Error().Err(err).Msg("stale intent reap failed")
				}
			}
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = apiServer.Shutdown(shutdownCtx)
	_ = metricsServer.Shutdown(shutdownCtx)
}
