package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/vthunder/techpm/internal/app"
	"github.com/vthunder/techpm/internal/config"
	"github.com/vthunder/techpm/internal/logging"
)

var (
	configPath string

	// pm is opened by the root command before any subcommand runs
	pm *app.App
)

var rootCmd = &cobra.Command{
	Use:   "techpm",
	Short: "techpm - personal project and task tracker",
	Long: `techpm tracks projects (with one level of sub-projects) and their tasks,
shows progress, runs a focus timer and sends due reminders.

Environment:
  TECHPM_CONFIG        Config file (default: "techpm.yaml")
  TECHPM_STATE_PATH    State directory (default: "state")
  TECHPM_DEBUG         Enable debug logging`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Load .env file (optional - won't error if missing)
		if err := godotenv.Load(); err == nil {
			logging.Debug("config", "loaded .env file")
		}
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		pm, err = app.Open(cmd.Context(), cfg)
		return err
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return closePM()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", envOr("TECHPM_CONFIG", "techpm.yaml"), "YAML config file")
	rootCmd.AddGroup(
		&cobra.Group{ID: "tracker", Title: "Projects and tasks:"},
		&cobra.Group{ID: "data", Title: "Import and export:"},
		&cobra.Group{ID: "focus", Title: "Focus:"},
	)
}

func main() {
	err := rootCmd.ExecuteContext(context.Background())
	// PostRun is skipped when a command fails; still flush what was committed
	if cerr := closePM(); err == nil {
		err = cerr
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func closePM() error {
	if pm == nil {
		return nil
	}
	return pm.Close()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
