package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/poker26/qdrant-search-tester/internal/backend"
)

func statusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Check backend health and collection info",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(configPath)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("configuration: %w", err)
			}

			searcher, err := backend.NewQdrantClient(backend.QdrantConfig{
				URL:        cfg.Qdrant.URL,
				Host:       cfg.Qdrant.Host,
				Port:       cfg.Qdrant.Port,
				APIKey:     cfg.Qdrant.APIKey,
				Collection: cfg.Qdrant.Collection,
				VectorName: cfg.Qdrant.VectorName,
			})
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()

			if err := searcher.Healthy(ctx); err != nil {
				return err
			}
			fmt.Println("backend: healthy")

			info, err := searcher.CollectionInfo(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("collection: %s\n", cfg.Qdrant.Collection)
			fmt.Printf("  vector size: %d\n", info.VectorSize)
			fmt.Printf("  distance:    %s\n", info.Distance)
			fmt.Printf("  points:      %d\n", info.PointCount)
			return nil
		},
	}
	cmd.SilenceUsage = true
	return cmd
}
