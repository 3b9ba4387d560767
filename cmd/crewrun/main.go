package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/crewrun/internal/config"
	clog "github.com/sawpanic/crewrun/internal/log"
)

const (
	appName = "crewrun"
	version = "v1.4.0"
)

var (
	configPath string
	logJSON    bool
	dataDir    string
	seasonFlag string

	// cfg is loaded once by the root pre-run hook.
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:     appName,
	Short:   "Monthly influencer-to-brand assignment tool",
	Version: version,
	Long: `crewrun assigns contracted influencers to brands month by month,
tracks whether each assignment was executed, and reports progress.

Data lives in flat CSV tables under the data directory. The HTTP API
('crewrun serve') and every subcommand operate on the same files.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Config file (default crewrun.yaml when present)")
	pf.BoolVar(&logJSON, "log-json", false, "Log JSON lines instead of console output")
	pf.StringVar(&dataDir, "data-dir", "", "Data directory, overrides config")
	pf.StringVar(&seasonFlag, "season", "", "Default season, e.g. 25FW (overrides config)")
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	c, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if dataDir != "" {
		c.Data.Dir = dataDir
	}
	if seasonFlag != "" {
		c.Season = seasonFlag
	}
	if err := c.Validate(); err != nil {
		return err
	}
	cfg = c
	clog.Setup(os.Stderr, cfg.Log.Level, cfg.Log.JSON || logJSON)
	log.Debug().Str("data_dir", cfg.Data.Dir).Str("config", configPath).Msg("config loaded")
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("command failed")
		stop()
		os.Exit(1)
	}
}
