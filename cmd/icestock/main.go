package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"IceStock/internal/api"
	"IceStock/internal/collector"
	"IceStock/internal/config"
	"IceStock/internal/explainer"
	"IceStock/internal/notifier"
	"IceStock/internal/planner"
	"IceStock/internal/scheduler"
	"IceStock/internal/storage"
	"IceStock/internal/transport"
	"IceStock/pkg/logger"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Fatal().Err(err).Msg("load .env")
	}
	cfg, err := config.Load(config.Path())
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("config validation")
	}

	lg := logger.New(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})
	logger.SetGlobalLogger(lg)
	lg.Info().Msg("IceStock starting...")

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo := openRepository(cfg.Database.SQLitePath, lg)
	defer repo.Close()

	// Forecast sources
	owm := collector.NewOpenWeatherSource(cfg.ForecastEndpoint, cfg.ForecastAPIKey,
		transport.New("openweathermap", transport.NewHTTPClient(cfg.Proxy, 10*time.Second)))
	scraper := collector.NewInfoclimaSource(cfg.Scraper.URL,
		transport.New("infoclima", transport.NewHTTPClient(cfg.Proxy, 10*time.Second)))
	fetchers := map[string]planner.Fetcher{
		planner.SourcePrimary:      collector.NewChain(lg, owm),
		planner.SourceExperimental: collector.NewChain(lg, scraper, owm),
	}
	if cfg.ForecastAPIKey == "" {
		lg.Warn().Msg("forecast_api_key not set, the primary forecast source will refuse requests")
	}

	// Explanation backend
	exp, err := explainer.New(ctx, explainer.Options{
		Endpoint:     cfg.ExplanationEndpoint,
		APIKey:       cfg.ExplanationAPIKey,
		GeminiAPIKey: cfg.Gemini.APIKey,
		GeminiModel:  cfg.Gemini.Model,
	}, transport.New("explanation", transport.NewHTTPClient(cfg.Proxy, planner.ExplanationTimeout)))
	if err != nil {
		lg.Warn().Err(err).Msg("init explanation backend failed, using placeholder")
		exp = explainer.PlaceholderExplainer{}
	}
	if c, ok := exp.(io.Closer); ok {
		defer c.Close()
	}
	lg.Info().Str("backend", exp.Name()).Msg("explanation backend ready")

	svc := planner.New(planner.Config{
		Repo:            repo,
		Fetchers:        fetchers,
		DefaultSource:   cfg.ForecastSource,
		DefaultStrategy: cfg.Schedule.Strategy,
		Explainer:       exp,
		Log:             lg,
	})

	// Notifier
	tn := notifier.New(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy, lg)

	// Scheduler
	sched := scheduler.NewScheduler(ctx, svc, tn, scheduler.Options{
		Strategy: cfg.Schedule.Strategy,
		Source:   cfg.ForecastSource,
	}, lg)
	if err := sched.Register(cfg.Schedule.WeeklyCron); err != nil {
		lg.Fatal().Err(err).Msg("register cron tasks")
	}
	sched.Start()
	defer sched.Stop()

	// Start Telegram polling
	if telegram, ok := tn.(*notifier.TelegramNotifier); ok {
		go telegram.StartPolling(ctx, sched.HandleCommand)
	}

	// HTTP API
	srv := api.New(api.Config{Addr: cfg.HTTP.Addr, Log: lg, Planner: svc, DevMode: cfg.Log.Pretty})
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Error().Err(err).Msg("HTTP server failed")
			cancel()
		}
	}()

	// Optional: run immediately on start
	if cfg.Schedule.RunOnStart {
		lg.Info().Msg("RUN_ON_START enabled, executing weekly task now")
		go sched.RunWeeklyNow()
	}

	lg.Info().Msg("IceStock is running. Press Ctrl+C to stop.")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
		lg.Info().Msg("shutdown signal received, stopping...")
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Error().Err(err).Msg("HTTP server shutdown")
	}
	cancel()
	lg.Info().Msg("IceStock stopped")
}

// openRepository opens the SQLite database, falling back to memory when it
// cannot be opened.
func openRepository(path string, lg zerolog.Logger) storage.Repository {
	if path == "" {
		lg.Warn().Msg("no sqlite path configured, suggestions are kept in memory")
		return storage.NewMemoryRepository()
	}
	repo, err := storage.NewSQLiteRepository(path, lg)
	if err != nil {
		lg.Warn().Err(err).Msg("init sqlite repository failed, using memory")
		return storage.NewMemoryRepository()
	}
	return repo
}
