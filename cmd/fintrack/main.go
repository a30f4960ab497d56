package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tinoosan/fintrack/internal/config"
)

var (
	version = "dev"
	cfgFile string
	cfg     config.Config
	logger  *slog.Logger
)

func rootCmd() *cobra.Command {
	v := config.New()
	root := &cobra.Command{
		Use:           "fintrack",
		Short:         "Personal finance tracker with shared read access",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cfg, err = config.Load(v, cfgFile)
			if err != nil { return err }
			logger = buildLogger(cfg.Log)
			slog.SetDefault(logger)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./fintrack.yaml if present)")
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().String("log-format", "json", "log format (json, text)")
	root.PersistentFlags().String("db", "memory", "storage driver (memory, sqlite, postgres)")
	_ = v.BindPFlag("log.level", root.PersistentFlags().Lookup("log-level"))
	_ = v.BindPFlag("log.format", root.PersistentFlags().Lookup("log-format"))
	_ = v.BindPFlag("database.driver", root.PersistentFlags().Lookup("db"))

	root.AddCommand(serveCmd(), migrateCmd(), reconcileCmd(), versionCmd())
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// parseLogLevel maps config values to slog.Leveler
func parseLogLevel(s string) slog.Leveler {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error", "err":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func buildLogger(c config.Log) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(c.Level)}
	if c.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "fintrack", version)
		},
	}
}
