package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/NicolasHaas/roulette/pkg/logging"
	"github.com/NicolasHaas/roulette/pkg/server"
	"github.com/NicolasHaas/roulette/pkg/store"
	"github.com/NicolasHaas/roulette/pkg/version"
)

var cfg = server.DefaultConfig()

var (
	flagLogLevel  string
	flagLogFormat string
)

var rootCmd = &cobra.Command{
	Use:           "roulette-server",
	Short:         "Roulette development backend (auth, chat and object storage over HTTP)",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := logging.Setup(logging.Options{
			Level:  flagLogLevel,
			Format: flagLogFormat,
			Output: os.Stdout,
		}); err != nil {
			return fmt.Errorf("invalid logging config: %w", err)
		}
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP backend",
	RunE:  runServe,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Print the current feed window as YAML and exit",
	RunE:  runExport,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("roulette-server", version.Full())
	},
}

func init() {
	pflags := rootCmd.PersistentFlags()
	pflags.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database file path")
	pflags.DurationVar(&cfg.OnlineWindow, "online-window", cfg.OnlineWindow, "how recently a user must be active to count as online")
	pflags.StringVar(&flagLogLevel, "log-level", "info", "Log level: "+logging.LevelNames())
	pflags.StringVar(&flagLogFormat, "log-format", "text", "Log format: text or json")

	flags := serveCmd.Flags()
	flags.StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP bind address")
	flags.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "directory for uploaded objects")
	flags.StringVar(&cfg.BaseURL, "base-url", "", "public origin used in upload URLs (derived from --addr if empty)")
	flags.DurationVar(&cfg.MetricsLog, "metrics-log", cfg.MetricsLog, "interval for the periodic metrics log line (0 to disable)")

	rootCmd.AddCommand(serveCmd, exportCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("server error", "err", err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	slog.Info("starting roulette-server", "version", version.Full(), "db", cfg.DBPath)
	srv := server.New(cfg, server.Dependencies{Store: st})
	return srv.Run(ctx)
}

func runExport(cmd *cobra.Command, args []string) error {
	st, err := store.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() { _ = st.Close() }()

	data, err := server.ExportMessagesYAML(st, cfg, time.Now)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}
