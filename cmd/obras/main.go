// Command obras imports "Controle - Obras" schedule workbooks, keeps the
// reconciled schedule on disk and answers week, location and completed-works
// queries.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/obras/obras"
)

var (
	configPath string
	logLevel   string
	jsonOutput bool

	logger *slog.Logger
	cfg    *obras.Config
)

var rootCmd = &cobra.Command{
	Use:   "obras",
	Short: "Field-work schedule ingestion and reconciliation",
	Long: `obras reads the "Controle - Obras" workbook (xlsx, xls or csv), keeps the
entries of the tracked teams, reconciles them with the cache and history
stores and reports on weeks, locations and completed works.

Configuration is read from --config (YAML) and the environment:
DROPBOX_ACCESS_TOKEN, DROPBOX_REFRESH_TOKEN, DROPBOX_APP_KEY,
DROPBOX_APP_SECRET, DROPBOX_CONTROLE_PATH, PENDENTES_WEBHOOK_URL,
OBRAS_DATA_DIR.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := parseLevel(logLevel)
		if err != nil {
			return err
		}
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)

		cfg, err = obras.LoadConfig(configPath)
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print results as JSON")

	rootCmd.AddCommand(importCmd, syncCmd, clearCmd, runsCmd)
	rootCmd.AddCommand(queryCmd, teamsCmd, criticalCmd, locationsCmd)
	rootCmd.AddCommand(completedCmd, pendingCmd, notifyCmd)
	rootCmd.AddCommand(daemonCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("invalid --log-level %q", s)
	}
	return level, nil
}

// openService opens the service for one command; callers close it.
func openService() (*obras.Service, error) {
	return obras.New(cfg, logger)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
