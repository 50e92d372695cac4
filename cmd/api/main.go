package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"ipstudio/internal/batch"
	"ipstudio/internal/character"
	"ipstudio/internal/http/handlers"
	"ipstudio/internal/http/httpapi"
	"ipstudio/internal/infra"
	"ipstudio/internal/retry"
	"ipstudio/internal/storage"
	"ipstudio/internal/task"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stores, err := openStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("store", cfg.TaskStore).Msg("failed to open task store")
	}
	defer stores.close()

	files, err := storage.NewFileStore(cfg.StoragePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to prepare storage")
	}
	images, models, err := newProducers(cfg, files, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure producers")
	}

	orch, err := task.New(stores.tasks, task.Options{
		Images:     images,
		Models:     models,
		JobTimeout: cfg.JobTimeout,
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build orchestrator")
	}
	coord := batch.NewCoordinator(orch, stores.characters, logger)
	orch.RegisterHook(coord)

	app := &handlers.App{
		Tasks:      orch,
		Batches:    coord,
		Retry:      retry.NewController(orch, logger),
		Characters: character.NewService(stores.characters, orch, logger),
		ImageHosts: cfg.ImageSourceAllowlist,
		StoreName:  cfg.TaskStore,
		Logger:     logger,
	}
	router := httpapi.NewRouter(app, httpapi.Options{
		JWTSecret:       cfg.JWTSecret,
		RateLimitPerMin: cfg.RateLimitPerMin,
		Static:          files.Handler(),
	}, logger)

	server := infra.NewHTTPServer(cfg, router)
	logger.Info().Str("addr", server.Addr()).Str("store", cfg.TaskStore).Msg("API listening")
	if err := server.Run(ctx, cfg.HTTPIdleTimeout); err != nil {
		logger.Error().Err(err).Msg("http server failed")
	}

	// Producer calls run detached from requests; give them the job timeout to
	// record their outcome before the store closes.
	drainCtx, cancel := context.WithTimeout(context.Background(), cfg.JobTimeout)
	defer cancel()
	if err := orch.Wait(drainCtx); err != nil {
		logger.Warn().Err(err).Msg("in-flight producer calls abandoned")
	}
	logger.Info().Msg("server stopped")
}
