package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"adstudio/internal/adapter/repo"
	"adstudio/internal/adgen"
	"adstudio/internal/infra"
	"adstudio/internal/infra/credentials"
	"adstudio/internal/queue"
	"adstudio/internal/storage"
	"adstudio/internal/worker"
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

	pool, err := infra.NewDBPool(ctx, cfg, "adstudio-worker")
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer pool.Close()

	runner := infra.NewSQLRunner(pool, logger)
	fileStore, err := storage.NewFileStore(cfg.StoragePath, cfg.StorageBaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure storage")
	}

	opts := worker.Options{
		Repo:         repo.NewStaticAdsRepository(runner),
		Generator:    newGenerator(ctx, cfg, runner, &logger),
		Store:        fileStore,
		Logger:       &logger,
		PollInterval: cfg.WorkerPollInterval,
		Concurrency:  cfg.WorkerConcurrency,
		PerMinute:    cfg.GeneratorPerMinute,
	}
	if cfg.RedisURL != "" {
		q, err := queue.Connect(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn().Err(err).Msg("worker: redis unavailable, polling only")
		} else {
			defer q.Close()
			opts.Waker = q
		}
	}

	w, err := worker.New(opts)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: invalid configuration")
	}
	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("worker: stopped with error")
	}
	logger.Info().Msg("worker: stopped")
}

// newGenerator prefers the remote endpoint when one is configured and falls
// back to offline synthetic rendering.
func newGenerator(ctx context.Context, cfg *infra.Config, runner *infra.SQLRunner, logger *infra.Logger) adgen.Generator {
	synthetic := adgen.NewSyntheticGenerator(adgen.SyntheticOptions{Size: cfg.ImageSize, Logger: logger})
	if cfg.GeneratorURL == "" {
		logger.Warn().Msg("worker: GENERATOR_URL not set, using synthetic image generation")
		return synthetic
	}
	apiKey := cfg.GeneratorAPIKey
	if apiKey == "" {
		stored, err := credentials.NewStore(runner).GeneratorAPIKey(ctx)
		if err != nil {
			logger.Warn().Err(err).Msg("worker: failed to load generator api key from store")
		}
		apiKey = stored
	}
	remote, err := adgen.NewRemoteGenerator(adgen.RemoteOptions{
		BaseURL: cfg.GeneratorURL,
		APIKey:  apiKey,
		Model:   cfg.GeneratorModel,
		Size:    cfg.ImageSize,
		Logger:  logger,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("worker: remote generator unavailable, using synthetic image generation")
		return synthetic
	}
	return remote
}
