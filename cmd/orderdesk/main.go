// Package main runs the orderdesk chat API server.
package main

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/orderdeskai/orderdesk/internal/backend"
	"github.com/orderdeskai/orderdesk/internal/capability"
	"github.com/orderdeskai/orderdesk/internal/config"
	"github.com/orderdeskai/orderdesk/internal/orchestrator"
	"github.com/orderdeskai/orderdesk/internal/provider/gemini"
	provider "github.com/orderdeskai/orderdesk/internal/provider/models"
	"github.com/orderdeskai/orderdesk/internal/server"
	"github.com/orderdeskai/orderdesk/internal/session"
	"github.com/rs/zerolog"
	"google.golang.org/genai"
)

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Warn().Err(err).Msg("failed to load config, using defaults")
		cfg = config.Default()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server exited")
	}
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	p := buildProvider(ctx, cfg, logger)

	store, err := backend.Open(cfg.Backend.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Migrate(); err != nil {
		return err
	}
	if cfg.Backend.Seed {
		if err := store.Seed(); err != nil {
			return err
		}
		logger.Info().Str("db_path", store.Path()).Msg("order store seeded")
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	orch := orchestrator.New(
		p,
		orchestrator.NewDecisionService(p, logger),
		capability.NewModelExtractor(p, logger),
		capability.NewBackendStatusQuerier(store, cfg.Agent.FaultProbability, rng, logger),
		capability.NewModelExceptionHandler(p, logger),
		session.NewStore(),
		cfg.Agent.HistoryWindow,
		logger,
	)

	modelName := ""
	if p != nil {
		modelName = p.GetModel()
	}
	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      server.New(orch, modelName, logger).Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Bool("degraded", orch.Degraded()).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// buildProvider returns nil when no usable API key is configured, which puts
// the whole agent into degraded mode instead of failing startup.
func buildProvider(ctx context.Context, cfg *config.Config, logger zerolog.Logger) provider.Provider {
	if !cfg.HasUsableAPIKey() {
		logger.Warn().Msg("GEMINI_API_KEY missing or placeholder, running degraded")
		return nil
	}

	genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: cfg.Model.APIKey})
	if err != nil {
		logger.Warn().Err(err).Msg("failed to create model client, running degraded")
		return nil
	}

	logger.Info().Str("model", cfg.Model.Name).Msg("model client ready")
	return gemini.New(gemini.NewRealGeminiClient(genaiClient), cfg.Model.Name)
}
