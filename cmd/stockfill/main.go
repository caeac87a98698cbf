package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vertextoedge/stockfill/internal/config"
	"github.com/vertextoedge/stockfill/internal/logger"
	"github.com/vertextoedge/stockfill/internal/ui/terminal"
)

const version = "0.3.0"

var (
	// Global flags
	configPath   string
	outputFormat string
	serverURL    string
	logLevel     string

	// current is the wired application of this invocation
	current *app
)

var rootCmd = &cobra.Command{
	Use:   "stockfill",
	Short: "Complete stock codes and names in spreadsheets",
	Long: `stockfill is the client of the stock code/name completion server.

Upload a CSV or Excel file, process it against a data source, and download
the completed result. The download tries a buffered fetch first, then a
browser link click, then a new browser window.

When metrics.textfile is set, each invocation replaces that file with the
counters of its own run; stockfill_last_run_timestamp_seconds marks the run.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if !terminal.ValidFormat(outputFormat) {
			return fmt.Errorf("invalid --output %q: expected table, json or yaml", outputFormat)
		}

		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if serverURL != "" {
			cfg.Server.URL = serverURL
		}
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("config validation failed: %w", err)
		}

		if err := logger.Init(cfg.Logging.Level, cfg.Logging.Format); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logger.GetZapLogger().Debug("starting stockfill",
			zap.String("version", version),
			zap.String("config", configPath),
			zap.String("server", cfg.Server.URL),
		)

		a, err := newApp(cfg, outputFormat, cmd.OutOrStdout(), cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		current = a

		a.maintenance.RunOnce()
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to configuration file (yaml)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", terminal.FormatTable, "output format: table, json or yaml")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "completion server URL (overrides server.url)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn or error")

	rootCmd.AddCommand(
		uploadCmd,
		processCmd,
		downloadCmd,
		runCmd,
		sessionCmd,
		historyCmd,
		statusCmd,
		stockDataCmd,
		keysCmd,
		sourcesCmd,
	)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := rootCmd.ExecuteContext(ctx)

	if current != nil {
		current.close()
	}
	stop()
	_ = logger.Sync()

	if err != nil {
		if !isReported(err) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
