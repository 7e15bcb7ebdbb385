package main

import (
	"github.com/spf13/cobra"

	"github.com/Sternrassler/jokepool/internal/server"
	"github.com/Sternrassler/jokepool/pkg/logging"
)

func newServeCmd(load func(*cobra.Command) (*app, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve GET /jokes over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := load(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			h := a.cfg.HTTP
			srv := server.New(a.pool, server.Config{
				Addr:            h.Address,
				ReadTimeout:     h.ReadTimeout,
				WriteTimeout:    h.WriteTimeout,
				RequestTimeout:  h.RequestTimeout,
				ShutdownTimeout: h.ShutdownTimeout,
			}, logging.NewLogger(logging.ComponentHTTP))

			a.logger.Info().
				Str("addr", h.Address).
				Str("user_agent", a.cfg.Provider.UserAgent).
				Msg("Starting jokepool server")

			return srv.Run(cmd.Context())
		},
	}
}
