package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"smartwindow-hub/internal/command"
	"smartwindow-hub/internal/config"
	"smartwindow-hub/internal/httpapi"
	"smartwindow-hub/internal/mqtt"
	"smartwindow-hub/internal/notify"
	"smartwindow-hub/internal/service"
	"smartwindow-hub/internal/store"
	winsync "smartwindow-hub/internal/sync"
)

func main() {
	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	for key, val := range map[string]string{
		"MQTT_BROKER_URL": cfg.MQTTBrokerURL,
		"JWT_SECRET":      cfg.JWTSecret,
		"POSTGRES_USER":   cfg.Postgres.User,
		"POSTGRES_DB":     cfg.Postgres.DBName,
		"POSTGRES_HOST":   cfg.Postgres.Host,
		"POSTGRES_PORT":   cfg.Postgres.Port,
	} {
		if strings.TrimSpace(val) == "" {
			slog.Error("missing required env", "key", key)
			os.Exit(1)
		}
	}

	db, err := store.OpenPostgres(cfg.Postgres.User, cfg.Postgres.Password, cfg.Postgres.DBName, cfg.Postgres.Host, cfg.Postgres.Port, cfg.Postgres.SSLMode)
	if err != nil {
		slog.Error("db connect failed", "error", err)
		os.Exit(1)
	}
	repo, err := store.New(db)
	if err != nil {
		slog.Error("db migrate failed", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	if err := rdb.Ping(ctx).Err(); err != nil {
		// Degraded but functional: status still persists to postgres.
		slog.Warn("redis unavailable, sensor cache disabled", "addr", cfg.RedisAddr, "error", err)
	}
	cache := store.NewStateCache(rdb)

	mq, err := mqtt.Connect(cfg.MQTTBrokerURL, cfg.MQTTClientID, cfg.MQTTUsername, cfg.MQTTPassword)
	if err != nil {
		slog.Error("mqtt connect failed", "error", err)
		os.Exit(1)
	}
	defer mq.Close()

	var sender notify.Sender = notify.LogSender{}
	if cfg.FirebaseCreds != "" {
		fcm, err := notify.NewFCMSender(ctx, cfg.FirebaseCreds)
		if err != nil {
			slog.Error("firebase init failed", "error", err)
			os.Exit(1)
		}
		sender = fcm
	} else {
		slog.Warn("FIREBASE_CREDENTIALS_FILE not set, notifications are log-only")
	}
	notifier := notify.NewNotifier(repo, sender, repo, cfg.NotifyQueueSize)
	go notifier.Run(ctx)

	pub := command.NewPublisher(mq)
	reconciler := winsync.NewReconciler(repo, cache, notifier)
	replicator := winsync.NewAlarmReplicator(repo, pub)
	sub := winsync.NewSubscriber(mq, reconciler, replicator)
	if err := sub.Start(); err != nil {
		slog.Error("mqtt subscribe failed", "error", err)
		os.Exit(1)
	}
	defer sub.Stop()

	api := httpapi.NewServer(
		service.NewDeviceService(repo, pub, cache),
		service.NewAlarmService(repo, pub),
		service.NewMobileService(repo),
	)
	httpSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.Router([]byte(cfg.JWTSecret)),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("smartwindow-hub listening", "addr", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("http server error", "error", err)
			cancel()
		}
	}()

	stop := make(chan os.Signal, 2)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-stop:
		slog.Info("shutdown requested")
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = httpSrv.Shutdown(shutdownCtx)
	cancel()
}

func setupLogging(level string) {
	lvl := slog.LevelInfo
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	h := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(h))
}
