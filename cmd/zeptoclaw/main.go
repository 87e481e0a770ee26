// Package main is the entry point for the zeptoclaw runtime: the
// multi-channel AI assistant described by the C1-C10 component set in
// internal/core, internal/bus, internal/sessions, internal/provider,
// internal/cost, internal/containerproxy, and internal/stuck.
//
// Grounded on cmd/nexus/main.go's cobra root-command shape and
// cmd/nexus/handlers_serve.go's load-config/build-server/wait-for-
// signal structure, rebuilt against this repo's own components rather
// than the teacher's gateway.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/haasonsaas/nexus/internal/observability"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	logger := observability.NewLogger(observability.LogConfig{
		Level:  os.Getenv("ZEPTOCLAW_LOG_LEVEL"),
		Format: "json",
		Output: os.Stderr,
	})
	slog.SetDefault(logger)

	if err := buildRootCmd().Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "zeptoclaw",
		Short:        "zeptoclaw - multi-channel AI assistant runtime",
		Version:      fmt.Sprintf("%s (commit %s)", version, commit),
		SilenceUsage: true,
	}
	root.AddCommand(buildServeCmd())
	return root
}

func buildServeCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the runtime: channels, providers, and the agent loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "zeptoclaw.yaml", "path to the YAML configuration file")
	return cmd
}

func runServe(ctx context.Context, configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	rt, err := newRuntime(cfg, slog.Default())
	if err != nil {
		return fmt.Errorf("build runtime: %w", err)
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rt.Start(ctx)
	slog.Info("zeptoclaw runtime started", "agent_id", cfg.AgentID, "providers", len(cfg.Providers))

	<-ctx.Done()
	slog.Info("shutting down")
	rt.Stop(context.Background())
	return nil
}
