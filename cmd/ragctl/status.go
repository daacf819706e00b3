package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show vector index health and collection size",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Index.Health(ctx); err != nil {
			return fmt.Errorf("index unhealthy: %w", err)
		}
		fmt.Printf("Backend: %s (healthy)\n", a.Config.Store.Backend)

		n, err := a.Index.Count(ctx, a.Config.Store.Collection)
		if err != nil {
			return err
		}
		fmt.Printf("Collection: %s\n", a.Config.Store.Collection)
		fmt.Printf("Chunks: %d\n", n)
		return nil
	},
}
