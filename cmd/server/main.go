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

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"slotbook/internal/alternatives"
	"slotbook/internal/api"
	"slotbook/internal/booking"
	"slotbook/internal/config"
	"slotbook/internal/db"
	"slotbook/internal/export"
	"slotbook/internal/lock"
	"slotbook/internal/metrics"
	"slotbook/internal/notify"
	"slotbook/internal/slots"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
	}

	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	cfg, err := config.Load(config.Path())
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if level, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil && cfg.Logging.Level != "" {
		logger = logger.Level(level)
	}

	database, err := db.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer database.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initial load + hot reload of the catalog
	if err := config.WatchCatalog(ctx, cfg.Catalog.Path, cfg.CatalogReloadInterval(), &logger, func(updated *config.CatalogConfig) {
		if err := database.SyncCatalog(ctx, updated); err != nil {
			logger.Error().Err(err).Msg("failed to apply catalog")
			return
		}
		logger.Info().Time("applied_at", time.Now()).Msg("catalog applied")
	}); err != nil {
		logger.Error().Err(err).Str("path", cfg.Catalog.Path).Msg("failed to load catalog")
	}

	var rdb *redis.Client
	var locker lock.Locker = lock.NewMemoryLocker(cfg.LockTTL())
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		locker = lock.NewRedisLocker(rdb, cfg.Redis.LockPrefix, cfg.LockTTL())
		logger.Info().Str("addr", cfg.Redis.Address).Msg("using redis submission locks")
	}

	sender := newSender(cfg, &logger)
	dispatcher := notify.NewDispatcher(sender, notify.Config{
		MaxConcurrent: cfg.Notifications.MaxConcurrent,
		Rate:          cfg.Notifications.RatePerSecond,
		Burst:         cfg.Notifications.Burst,
	}, &logger)
	defer dispatcher.Close()

	svc := booking.NewService(database, database, database, dispatcher, locker, booking.Options{
		Slots: slots.Options{
			Granularity:  cfg.SlotGranularity(),
			MinUsableGap: cfg.MinUsableGap(),
		},
		MinAdvance:         cfg.BookingMinAdvance(),
		DefaultHorizonDays: cfg.DefaultHorizonDays(),
		Alternatives: alternatives.Options{
			LookaheadDays: cfg.AlternativeLookaheadDays(),
			MaxDates:      cfg.AlternativeMaxDates(),
		},
	}, &logger)

	if cfg.Monitoring.HealthCheckPort == 0 {
		cfg.Monitoring.HealthCheckPort = 8090
	}
	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, database, rdb, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		if cfg.Monitoring.PrometheusPort == 0 {
			cfg.Monitoring.PrometheusPort = 9090
		}
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	if cfg.Backup.Enabled {
		backups := db.NewBackupService(database, db.BackupConfig{
			Enabled:       true,
			Interval:      cfg.BackupInterval(),
			StoragePath:   cfg.Backup.Path,
			RetentionDays: cfg.Backup.RetentionDays,
		}, &logger)
		go backups.Start(ctx)
	}

	server := api.NewHTTPServer(cfg.API.Port, cfg.API.APIKey, svc, export.NewExporter(database, &logger), &logger)
	if cfg.API.APIKey == "" {
		logger.Warn().Msg("api.api_key is empty; API is unauthenticated")
	}

	logger.Info().Msg("slotbook started")
	if err := server.Start(ctx); err != nil {
		logger.Error().Err(err).Msg("API server error")
	}
	logger.Info().Msg("slotbook stopped")
}

func newSender(cfg *config.Config, logger *zerolog.Logger) notify.Sender {
	if cfg.Telegram.BotToken == "" || cfg.Telegram.ChatID == 0 {
		logger.Info().Msg("telegram not configured; notifications go to the log")
		return notify.NewLogSender(logger)
	}
	bot, err := notify.NewTelegramBot(cfg.Telegram.BotToken, cfg.Telegram.Debug)
	if err != nil {
		logger.Error().Err(err).Msg("telegram bot init failed; notifications go to the log")
		return notify.NewLogSender(logger)
	}
	return notify.NewTelegramSender(bot, cfg.Telegram.ChatID)
}

func startHealthServer(ctx context.Context, port int, database *db.DB, rdb *redis.Client, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := database.Ping(ctxPing); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		if rdb != nil {
			if err := rdb.Ping(ctxPing).Err(); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	serve(ctx, &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}, "health", logger)
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	serve(ctx, &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}, "metrics", logger)
}

func serve(ctx context.Context, srv *http.Server, name string, logger *zerolog.Logger) {
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Str("server", name).Msg("server error")
	}
}
