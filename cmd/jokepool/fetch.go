package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newFetchCmd(load func(*cobra.Command) (*app, error)) *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Return count jokes, topping up the pool first if needed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := load(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			items, err := a.pool.GetItems(cmd.Context(), count)
			if err != nil {
				return fmt.Errorf("fetch: %w", err)
			}

			return writeJSON(cmd.OutOrStdout(), items)
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 1, "Number of jokes (1-100)")
	return cmd
}
