package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/the-onelazyDev/Ai-Chat-Bot/internal/api"
	"github.com/the-onelazyDev/Ai-Chat-Bot/internal/chat"
	"github.com/the-onelazyDev/Ai-Chat-Bot/internal/config"
	"github.com/the-onelazyDev/Ai-Chat-Bot/internal/events"
	"github.com/the-onelazyDev/Ai-Chat-Bot/internal/ollama"
	"github.com/the-onelazyDev/Ai-Chat-Bot/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	setupLogging(cfg.LogLevel)

	slog.Info("chatbot starting", "port", cfg.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("database ready")

	// Ollama client
	llm := ollama.NewClient(cfg.OllamaURL, cfg.Model, cfg.LLMTimeout, slog.Default())
	if llm.CheckHealth(ctx) {
		slog.Info("ollama reachable", "url", cfg.OllamaURL, "model", cfg.Model)
	} else {
		slog.Warn("ollama not reachable, replies will fail until it is running", "url", cfg.OllamaURL)
	}

	// NATS events (optional)
	var pub chat.Publisher
	if cfg.NatsURL != "" {
		eventsClient, err := events.NewClient(cfg.NatsURL, cfg.NatsToken, "chatbot", slog.Default())
		if err != nil {
			slog.Error("failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer eventsClient.Close()
		pub = eventsClient
		slog.Info("NATS connected", "url", cfg.NatsURL)
	} else {
		slog.Warn("NATS_URL not set, running without events")
	}

	svc := chat.New(db, llm, pub, cfg.HistoryLimit, slog.Default())

	// HTTP API
	srv := api.NewServer(api.Options{
		Port:             cfg.Port,
		MaxMessageLength: cfg.MaxMessageLength,
		RateLimitRPS:     cfg.RateLimitRPS,
		RateLimitBurst:   cfg.RateLimitBurst,
	}, svc, db, llm, slog.Default())
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("HTTP server error", "error", err)
			cancel()
		}
	}()

	slog.Info("chatbot ready", "port", cfg.Port)

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case <-ctx.Done():
	}
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP shutdown incomplete", "error", err)
	}
	cancel()
	slog.Info("chatbot stopped")
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
