package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"moments/internal/api"
	"moments/internal/config"
	"moments/internal/push"
	"moments/internal/scanner"
	"moments/internal/store"
)

func main() {
	// Initialize logger
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("MOMENTS_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	if cfg.Firebase.ProjectID == "" {
		logger.Fatal().Msg("set firebase.project_id in config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.NewStore(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open store error")
	}
	defer db.Close()

	var rdb *redis.Client
	if cfg.Redis.Address != "" && cfg.Redis.CacheTTLSeconds > 0 {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		db.UseRedisCache(rdb, time.Duration(cfg.Redis.CacheTTLSeconds)*time.Second)
	}

	sender, err := push.NewSender(ctx, push.Config{
		CredentialsFile: cfg.Firebase.CredentialsFile,
		ProjectID:       cfg.Firebase.ProjectID,
		RatePerSecond:   cfg.Send.RatePerSecond,
		Burst:           cfg.Send.Burst,
	}, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("init push sender error")
	}

	var metrics *scanner.Metrics
	if cfg.Monitoring.PrometheusEnabled {
		metrics = scanner.NewMetrics("moments")
	}

	schedCfg := scanner.SchedulerConfig{
		Timezone:      cfg.Schedule.Timezone,
		ScanMinute:    cfg.Schedule.ScanMinute,
		SweepHour:     cfg.Schedule.SweepHour,
		CheckInterval: 30 * time.Second,
	}

	loc, err := time.LoadLocation(cfg.Schedule.Timezone)
	if err != nil {
		logger.Fatal().Err(err).Str("timezone", cfg.Schedule.Timezone).Msg("bad timezone")
	}

	svcCfg := scanner.DefaultConfig()
	svcCfg.MaxAttempts = cfg.Send.MaxAttempts
	svcCfg.RetryDelays = cfg.RetryDelays()
	svcCfg.Retention = cfg.Retention()

	service := scanner.NewService(svcCfg, db, db, db, db, sender, loc, metrics, &logger)

	scheduler, err := scanner.NewScheduler(schedCfg, service, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("create scheduler error")
	}

	limiter := api.NewRateLimiter(cfg.HTTP.RateLimit, time.Duration(cfg.HTTP.RateLimitWindowS)*time.Second)
	apiServer := api.NewServer(db, sender, limiter, &logger)
	go func() {
		logger.Info().Int("port", cfg.HTTP.Port).Msg("trigger API listening")
		if err := apiServer.Run(ctx, cfg.HTTP.Port); err != nil {
			logger.Error().Err(err).Msg("trigger API server error")
		}
	}()

	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, rdb, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		if cfg.Monitoring.PrometheusPort == 0 {
			cfg.Monitoring.PrometheusPort = 9090
		}
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	logger.Info().Msg("momentsd started")
	scheduler.Start(ctx)
}

func startHealthServer(ctx context.Context, port int, rdb *redis.Client, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if rdb != nil {
			if err := rdb.Ping(ctxPing).Err(); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("health server error")
	}
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
