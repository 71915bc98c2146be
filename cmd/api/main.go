package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/Hemang2904/jewelbench-flux-gen/internal/history"
	"github.com/Hemang2904/jewelbench-flux-gen/internal/http/handlers"
	"github.com/Hemang2904/jewelbench-flux-gen/internal/http/httpapi"
	"github.com/Hemang2904/jewelbench-flux-gen/internal/imagegen"
	"github.com/Hemang2904/jewelbench-flux-gen/internal/infra"
	"github.com/Hemang2904/jewelbench-flux-gen/internal/pipeline"
)

func main() {
	// .env is optional; real deployments use the environment directly.
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()

	// Run history is durable only when a database is configured.
	var store history.Store = history.NewMemoryStore(0)
	if cfg.DatabaseURL != "" {
		dbpool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect database")
		}
		defer dbpool.Close()
		store = history.NewPostgresStore(infra.NewSQLRunner(dbpool, logger))
		logger.Info().Msg("run history backed by postgres")
	}

	flux := imagegen.NewFluxClient(imagegen.FluxOptions{
		Endpoint:     imagegen.EndpointConfig{BaseURL: cfg.QueueBaseURL, Model: cfg.FluxModel},
		APIKey:       cfg.FalKey,
		Timeout:      cfg.RemoteTimeout,
		PollInterval: cfg.PollInterval,
	})
	vision := imagegen.NewVisionClient(imagegen.VisionOptions{
		Endpoint: imagegen.EndpointConfig{BaseURL: cfg.SyncBaseURL, Model: cfg.VisionModel},
		APIKey:   cfg.FalKey,
		Timeout:  cfg.RemoteTimeout,
	})
	segment := imagegen.NewSegmentClient(imagegen.SegmentOptions{
		Endpoint: imagegen.EndpointConfig{BaseURL: cfg.SyncBaseURL, Model: cfg.SegmentModel},
		APIKey:   cfg.FalKey,
		Timeout:  cfg.RemoteTimeout,
	})

	runner := pipeline.NewRunner(pipeline.Options{
		Flux:         flux,
		Vision:       vision,
		Segment:      segment,
		Concurrency:  cfg.Concurrency,
		Attempts:     cfg.JobAttempts,
		RetryBackoff: cfg.RetryBackoff,
		JobTimeout:   cfg.JobTimeout,
		Logger:       logger,
	})

	app := handlers.NewApp(cfg, logger, runner, store)
	router := httpapi.NewRouter(app)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
