package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/healingherb/shifa/internal/assistant"
	"github.com/healingherb/shifa/internal/auth"
	"github.com/healingherb/shifa/internal/config"
	"github.com/healingherb/shifa/internal/gemini"
	"github.com/healingherb/shifa/internal/httpapi"
	"github.com/healingherb/shifa/internal/observability"
	"github.com/healingherb/shifa/internal/ratelimit"
	"github.com/healingherb/shifa/internal/store"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("shifa: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.New(ctx, store.Options{
		DatabaseURL:   cfg.DatabaseURL,
		RedisAddr:     cfg.RedisAddr,
		RedisUsername: cfg.RedisUsername,
		RedisPassword: cfg.RedisPassword,
	})
	if err != nil {
		return err
	}
	defer st.Close()

	client, err := gemini.NewClient(gemini.Config{
		Mode:            cfg.AIClientMode,
		APIKey:          cfg.GeminiAPIKey,
		BaseURL:         cfg.GeminiBaseURL,
		MaxOutputTokens: cfg.AIMaxTokens,
		Timeout:         cfg.UpstreamTimeout,
	})
	if err != nil {
		return err
	}

	limiter := ratelimit.NewLimiter(cfg.RateLimit, cfg.RateWindow)
	svc := assistant.NewService(st, limiter, client, metrics, assistant.Options{
		DefaultModel: cfg.GeminiModel,
		HistoryPairs: cfg.AIHistoryPairs,
	})
	tokens := auth.NewManager(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)

	server := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: httpapi.New(cfg, st, svc, tokens, metrics).Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("listening on %s", cfg.BindAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Printf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
