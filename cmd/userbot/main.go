package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benvon/away-reply/internal/activity"
	"github.com/benvon/away-reply/internal/config"
	"github.com/benvon/away-reply/internal/events"
	"github.com/benvon/away-reply/internal/handlers"
	"github.com/benvon/away-reply/internal/logger"
	"github.com/benvon/away-reply/internal/models"
	"github.com/benvon/away-reply/internal/ratelimit"
	"github.com/benvon/away-reply/internal/replies"
	"github.com/benvon/away-reply/internal/responder"
	"github.com/benvon/away-reply/internal/storage"
	"github.com/benvon/away-reply/internal/store"
	"github.com/benvon/away-reply/internal/telegram"
	"github.com/benvon/away-reply/internal/telemetry"
	"go.uber.org/zap"
)

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	if _, err := config.LoadDotEnv(); err != nil {
		log.Printf("Ignoring .env: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.ValidateTelegram(); err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	debugMode := cfg.DebugMode || *debugFlag
	zapLogger, err := logger.New(cfg.LogFormat, debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() {
		_ = logger.Sync(zapLogger) // Ignore sync errors on stderr
	}()

	if err := run(cfg, zapLogger); err != nil {
		zapLogger.Error("userbot_stopped_with_error", zap.Error(err))
		_ = logger.Sync(zapLogger)
		os.Exit(1)
	}
	zapLogger.Info("userbot_exited")
}

func run(cfg *config.Config, zapLogger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	zapLogger.Info("starting_userbot",
		zap.String("reply_policy", cfg.ReplyPolicy),
		zap.Duration("offline_threshold", cfg.OfflineThreshold),
		zap.Duration("reply_cooldown", cfg.ReplyCooldown),
		zap.Strings("activity_signals", cfg.ActivitySources),
		zap.String("reply_rate", cfg.ReplyRate),
		zap.String("storage_backend", cfg.StorageBackend),
		zap.Bool("otel_enabled", cfg.OTELEnabled),
	)

	tracing := false
	if cfg.OTELEnabled {
		tp, err := telemetry.InitTracer(ctx, telemetry.ServiceName, cfg.OTELEndpoint)
		if err != nil {
			zapLogger.Warn("failed_to_initialize_otel_tracer", zap.Error(err))
		} else {
			tracing = true
			zapLogger.Info("otel_tracer_initialized", zap.String("endpoint", cfg.OTELEndpoint))
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := telemetry.Shutdown(shutdownCtx, tp); err != nil {
					zapLogger.Error("failed_to_shutdown_otel_tracer", zap.Error(err))
				}
			}()
		}
	}

	backend, err := storage.Open(ctx, cfg.StorageOptions())
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() {
		if err := backend.Close(); err != nil {
			zapLogger.Warn("failed_to_close_storage", zap.Error(err))
		}
	}()
	zapLogger.Info("storage_opened", zap.String("backend", cfg.StorageBackend))

	blacklist, err := store.LoadBlacklist(ctx, backend, storage.KeyBlacklist, zapLogger)
	if err != nil {
		return fmt.Errorf("load blacklist: %w", err)
	}
	history, err := store.LoadHistory(ctx, cfg.ReplyPolicy, backend, storage.KeyReplied, cfg.ReplyCooldown, zapLogger)
	if err != nil {
		return fmt.Errorf("load reply history: %w", err)
	}
	pool, err := replies.Load(ctx, backend, storage.KeyReplies, zapLogger)
	if err != nil {
		return fmt.Errorf("load replies: %w", err)
	}
	zapLogger.Info("state_loaded",
		zap.Int("blacklist_size", blacklist.Len()),
		zap.Int("history_size", history.Len()),
		zap.Int("replies", pool.Len()),
	)

	tracker := activity.NewTracker(cfg.OfflineThreshold, activity.WithLogger(zapLogger))

	client := telegram.New(telegram.Options{
		APIID:       cfg.Telegram.APIID,
		APIHash:     cfg.Telegram.APIHash,
		SessionPath: cfg.Telegram.SessionPath,
		Phone:       cfg.Telegram.Phone,
		Password:    cfg.Telegram.Password,
		Sources: telegram.Sources{
			Outgoing: cfg.HasSource(models.SourceOutgoing),
			Read:     cfg.HasSource(models.SourceRead),
		},
	}, zapLogger)

	var engineOpts []responder.Option
	if cfg.ReplyRate != "" {
		limiter, err := newSendLimiter(cfg.ReplyRate, backend)
		if err != nil {
			return fmt.Errorf("reply rate: %w", err)
		}
		engineOpts = append(engineOpts, responder.WithLimiter(limiter))
	}
	engine := responder.NewEngine(blacklist, history, pool, tracker, client.Sender(), zapLogger, engineOpts...)

	dispatcher := events.NewDispatcher(zapLogger, events.WithTimeout(cfg.HandlerTimeout))
	dispatcher.Subscribe(engine)

	if cooldown, ok := history.(*store.CooldownHistory); ok && cfg.PruneInterval > 0 {
		prune := func(ctx context.Context) (n int, err error) {
			dispatcher.Do(func() { n, err = cooldown.Prune(ctx, time.Now()) })
			return n, err
		}
		gc := store.NewGarbageCollector(prune, cfg.PruneInterval, zapLogger)
		go func() {
			if err := gc.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				zapLogger.Error("reply_history_gc_stopped_with_error", zap.Error(err))
			}
		}()
		zapLogger.Info("started_reply_history_gc", zap.Duration("interval", cfg.PruneInterval))
	}

	if cfg.StatusAddr != "" {
		srv := newStatusServer(cfg.StatusAddr, engine, dispatcher, backend, zapLogger, tracing)
		go func() {
			zapLogger.Info("status_server_starting", zap.String("addr", cfg.StatusAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				zapLogger.Error("status_server_failed", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				zapLogger.Warn("status_server_forced_to_shutdown", zap.Error(err))
			}
		}()
	}

	err = client.Run(ctx, dispatcher)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("telegram: %w", err)
	}
	zapLogger.Info("userbot_shutting_down")
	return nil
}

// newSendLimiter shares the Redis connection when the state lives in Redis
func newSendLimiter(rate string, backend storage.Backend) (*ratelimit.SendLimiter, error) {
	if rb, ok := backend.(*storage.RedisBackend); ok {
		return ratelimit.New(rate, ratelimit.WithRedis(rb.Client(), rb.Prefix()))
	}
	return ratelimit.New(rate)
}

func newStatusServer(addr string, engine *responder.Engine, dispatcher *events.Dispatcher, backend storage.Backend, zapLogger *zap.Logger, tracing bool) *http.Server {
	source := func() (st responder.Status) {
		dispatcher.Do(func() { st = engine.Status() })
		return st
	}
	router := handlers.NewRouter(
		handlers.NewStatusHandler(source),
		handlers.NewHealthChecker(backend),
		zapLogger,
		handlers.RouterOptions{Tracing: tracing, ServiceName: telemetry.ServiceName},
	)
	return &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
}
