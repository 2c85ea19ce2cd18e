package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lancet-ai/lancet/internal/config"
	"github.com/lancet-ai/lancet/internal/server"
	"github.com/lancet-ai/lancet/internal/store"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP chat API",
	Long:  `Starts the HTTP surface: streaming chat over SSE, session management, and health checks.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			return fmt.Errorf("config not loaded")
		}

		orch, sandboxClient, err := buildOrchestrator(cfg)
		if err != nil {
			return err
		}

		lockTimeout, err := config.DurationOrDefault(cfg.Store.LockTimeout, config.DefaultStoreLockTimeout)
		if err != nil {
			return fmt.Errorf("parse store lock timeout: %w", err)
		}
		sessions, err := store.Open(cfg.Store.Path, lockTimeout)
		if err != nil {
			return fmt.Errorf("open session store: %w", err)
		}
		defer sessions.Close()

		srv, err := server.New(&cfg.Server, orch, sandboxClient, sessions)
		if err != nil {
			return err
		}

		handler := NewSignalHandler(cmd.Context())
		handler.Start()
		defer handler.Stop()

		srv.Start()
		<-handler.Context().Done()

		slog.Info("Shutting down")
		return srv.Stop(context.Background())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
