package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"pairlink/internal/config"
	"pairlink/internal/history"
	"pairlink/internal/relay"
	"pairlink/internal/server"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	setupLogger(cfg.LogLevel)

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		slog.Error("invalid REDIS_URL", "error", err)
		os.Exit(1)
	}
	store := history.New(redis.NewClient(opts))
	if err := store.Ping(context.Background()); err != nil {
		slog.Error("could not connect to redis", "error", err)
		os.Exit(1)
	}
	slog.Info("connected to redis")

	reg := relay.NewRegistry(store)
	go reg.Run(context.Background())

	monitor := relay.NewMonitor(reg, cfg.SweepInterval)
	go monitor.Run(context.Background())

	srv := server.New(reg)

	slog.Info("server starting", "port", cfg.Port)
	if err := http.ListenAndServe(":"+cfg.Port, srv.Router()); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func setupLogger(level string) {
	lvl := slog.LevelInfo
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})))
}
