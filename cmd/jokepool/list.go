package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sternrassler/jokepool/pkg/joke"
)

func newListCmd(load func(*cobra.Command) (*app, error)) *cobra.Command {
	var questionsOnly bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print the persisted pool in arrival order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := load(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			items, err := a.pool.Items(cmd.Context())
			if err != nil {
				return fmt.Errorf("list: %w", err)
			}

			out := cmd.OutOrStdout()
			if questionsOnly {
				for _, item := range items {
					fmt.Fprintln(out, item.Question)
				}
				return nil
			}

			if items == nil {
				items = []joke.Item{}
			}
			return writeJSON(out, items)
		},
	}
	cmd.Flags().BoolVarP(&questionsOnly, "questions-only", "q", false, "Only print questions")
	return cmd
}
