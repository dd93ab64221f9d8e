// Package main is the entry point for the Git Coder API
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nsvirk/gitcoderapi/internal/config"
	"github.com/nsvirk/gitcoderapi/internal/server"
	"github.com/nsvirk/gitcoderapi/pkg/utils/zaplogger"
	"github.com/spf13/cobra"
)

var (
	port     string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "gitcoderapi",
	Short: "Session-scoped GitHub API proxy for the Git Coder editor",
	Long: `gitcoderapi exchanges a GitHub access token for a server-side session and
proxies the editor's repository, file, branch, commit and pull request actions.

Configuration is read from GC_API_* environment variables and an optional .env file.`,
	SilenceUsage: true,
	RunE:         runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	RunE:  runServe,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the API name and version",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", cfg.APIName, cfg.APIVersion)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&port, "port", "", "Server port (overrides GC_API_SERVER_PORT)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides GC_API_SERVER_LOG_LEVEL)")
	rootCmd.AddCommand(serveCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Get()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if port != "" {
		cfg.ServerPort = port
	}
	if logLevel != "" {
		cfg.ServerLogLevel = logLevel
	}

	// Setup logger
	defer zaplogger.Sync()
	zaplogger.SetLogLevel(cfg.ServerLogLevel)

	// Print the configuration
	fmt.Println(cfg.String())

	backends, err := server.Connect(cfg)
	if err != nil {
		return err
	}

	srv, err := server.New(cfg, backends)
	if err != nil {
		return err
	}

	// startUpMessage
	zaplogger.Info(cfg.APIName + " - " + cfg.APIVersion + " initialized")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return srv.Run(ctx)
}
