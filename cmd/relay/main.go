package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/paylog/asaas-relay/internal/discord"
	"github.com/paylog/asaas-relay/pkg/config"
	"github.com/paylog/asaas-relay/pkg/ledger"
	"github.com/paylog/asaas-relay/pkg/notify"
	"github.com/paylog/asaas-relay/pkg/schedule"
	"github.com/paylog/asaas-relay/pkg/server"
	"github.com/paylog/asaas-relay/pkg/storage"
	"github.com/paylog/asaas-relay/pkg/subscription"
)

func main() {
	if err := Run(context.Background()); err != nil && err != context.Canceled {
		slog.Error("application failed", "err", err)
		os.Exit(1)
	}
}

// Run is the testable entry point of the relay service
func Run(ctx context.Context) error {
	cfgFile := os.Getenv("CONFIG_FILE")
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	log := newLogger(cfg.Log)
	slog.SetDefault(log)

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Warn("invalid timezone, falling back to UTC", "tz", cfg.Timezone, "err", err)
		loc = time.UTC
	}

	store, err := initStore(cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	notifier := notify.NewMulti(log.With("component", "notify"), initSinks(cfg, log)...)
	defer notifier.Close()

	led := ledger.New(store)
	subs := subscription.NewLog(store)
	if err := led.EnsureExists(ctx); err != nil {
		return fmt.Errorf("seeding payment document: %w", err)
	}
	if err := subs.EnsureExists(ctx); err != nil {
		return fmt.Errorf("seeding subscription document: %w", err)
	}
	closing := ledger.NewClosing(led, notifier, loc, log.With("component", "fechamento"))

	sched := schedule.New(loc, log.With("component", "schedule"))
	if err := sched.Add(cfg.Closing.Spec, func() {
		log.Info("executando fechamento diário (cron)")
		closing.Run(context.Background())
	}); err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	srv := server.New(cfg, led, subs, closing, notifier, log.With("component", "http"))
	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: srv.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("webhook listening", "port", cfg.Server.Port, "tz", cfg.Timezone,
			"has_discord_webhook", cfg.Outputs.Discord.URL != "")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info("shutting down...")
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

// initStore picks the document backend: Postgres when configured, then
// Redis, then the JSON file directory.
func initStore(cfg *config.Config, log *slog.Logger) (storage.DocumentStore, error) {
	if cfg.Storage.PostgresURL != "" {
		log.Info("using postgres document store", "prefix", cfg.Storage.Prefix)
		return storage.NewPostgresStore(cfg.Storage.PostgresURL, cfg.Storage.Prefix)
	}
	if cfg.Storage.RedisAddr != "" {
		log.Info("using redis document store", "addr", cfg.Storage.RedisAddr, "prefix", cfg.Storage.Prefix)
		return storage.NewRedisStore(cfg.Storage.RedisAddr, cfg.Storage.RedisPassword, cfg.Storage.RedisDB, cfg.Storage.Prefix)
	}
	log.Info("using file document store", "dir", cfg.Storage.Dir)
	return storage.NewFileStore(cfg.Storage.Dir)
}

func initSinks(cfg *config.Config, log *slog.Logger) []notify.Notifier {
	var sinks []notify.Notifier

	// Discord
	d := cfg.Outputs.Discord
	if d.URL != "" {
		sinks = append(sinks, notify.NewDiscordNotifier(discord.Config{
			URL:            d.URL,
			MaxAttempts:    d.Retry.MaxAttempts,
			InitialBackoff: d.Retry.InitialBackoff,
			MaxBackoff:     d.Retry.MaxBackoff,
			RatePerMinute:  d.RatePerMinute,
		}))
	} else {
		log.Info("sem DISCORD_WEBHOOK_URL, Discord desabilitado")
	}

	// Console
	if cfg.Outputs.Console.Enabled {
		sinks = append(sinks, notify.NewConsoleNotifier())
	}

	// File
	if cfg.Outputs.File.Enabled {
		if fn, err := notify.NewFileNotifier(cfg.Outputs.File.Path); err == nil {
			sinks = append(sinks, fn)
		} else {
			log.Warn("file notifier disabled", "path", cfg.Outputs.File.Path, "err", err)
		}
	}

	// Redis
	if cfg.Outputs.Redis.Enabled {
		o := cfg.Outputs.Redis
		if rn, err := notify.NewRedisNotifier(o.Addr, o.Password, o.DB, o.Key, o.Mode); err == nil {
			sinks = append(sinks, rn)
		} else {
			log.Warn("redis notifier disabled", "addr", o.Addr, "err", err)
		}
	}

	// Kafka
	if cfg.Outputs.Kafka.Enabled {
		o := cfg.Outputs.Kafka
		if kn, err := notify.NewKafkaNotifier(o.Brokers, o.Topic, o.User, o.Password); err == nil {
			sinks = append(sinks, kn)
		} else {
			log.Warn("kafka notifier disabled", "brokers", o.Brokers, "err", err)
		}
	}

	// RabbitMQ
	if cfg.Outputs.RabbitMQ.Enabled {
		o := cfg.Outputs.RabbitMQ
		if rn, err := notify.NewRabbitMQNotifier(o.URL, o.Exchange, o.RoutingKey, o.QueueName, o.Durable); err == nil {
			sinks = append(sinks, rn)
		} else {
			log.Warn("rabbitmq notifier disabled", "err", err)
		}
	}

	return sinks
}
