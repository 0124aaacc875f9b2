package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/poker26/qdrant-search-tester/internal/history"
	"github.com/poker26/qdrant-search-tester/internal/web"
)

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve run history as a JSON API for the dashboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(configPath)
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.ListenAddr
			}

			store, err := history.NewStore(cfg.HistoryDB)
			if err != nil {
				return fmt.Errorf("open history db: %w", err)
			}
			defer store.Close()

			fmt.Printf("serving run history on %s\n", addr)
			return web.NewServer(store).Run(addr)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "listen address (default from config)")
	cmd.SilenceUsage = true
	return cmd
}
