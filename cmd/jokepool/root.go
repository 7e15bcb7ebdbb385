package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Sternrassler/jokepool/internal/config"
	"github.com/Sternrassler/jokepool/pkg/batch"
	"github.com/Sternrassler/jokepool/pkg/logging"
	"github.com/Sternrassler/jokepool/pkg/pool"
	"github.com/Sternrassler/jokepool/pkg/provider"
	"github.com/Sternrassler/jokepool/pkg/store"
)

// app holds the wired components shared by all subcommands.
type app struct {
	cfg    *config.Config
	store  store.Store
	pool   *pool.Service
	logger zerolog.Logger
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "jokepool",
		Short:         "Deduplicated joke pool topped up from an external provider",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: $JOKEPOOL_CONFIG or "+config.DefaultPath+")")

	load := func(cmd *cobra.Command) (*app, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		logging.Setup(cfg.LoggingConfig())
		return buildApp(cmd.Context(), cfg)
	}

	root.AddCommand(
		newServeCmd(load),
		newFetchCmd(load),
		newListCmd(load),
	)
	return root
}

// buildApp opens the store and wires provider, batch fetcher and pool.
func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	logger := logging.NewLogger(logging.ComponentCLI)

	client, err := provider.New(cfg.ProviderClientConfig())
	if err != nil {
		return nil, fmt.Errorf("create provider client: %w", err)
	}
	client.SetLogger(logging.NewLogger(logging.ComponentProvider))

	st, err := store.Open(ctx, cfg.StoreOptions())
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	fetcher := batch.New(client, cfg.BatchConfig(), logging.NewLogger(logging.ComponentBatch))
	svc := pool.New(st, fetcher, logging.NewLogger(logging.ComponentPool))
	svc.SetFetchBudget(cfg.Pool.FetchBudget)

	logger.Info().
		Str("api_url", cfg.APIURL).
		Int("batch_size", cfg.BatchSize).
		Str("store", cfg.Store.Driver).
		Msg("Components initialized")

	return &app{
		cfg:    cfg,
		store:  st,
		pool:   svc,
		logger: logger,
	}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}
