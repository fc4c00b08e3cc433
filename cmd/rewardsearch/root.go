package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hupe1980/rewardsearch"
	"github.com/hupe1980/rewardsearch/internal/config"
)

// app holds state shared by all commands.
type app struct {
	cfgFile string
	v       *viper.Viper
	cfg     *config.Config
	logger  *rewardsearch.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "rewardsearch",
		Short: "Reward-guided particle search for diffusion sampling",
		Long: `rewardsearch drives the group-hierarchical resampling engine used to steer a
population of diffusion samples toward high reward.

Use "schedule" to print the group sizes of a configuration, "simulate" to run
the search against a synthetic reward and "trace" to inspect recorded runs.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default is ./.rewardsearch.yaml or $HOME/.rewardsearch.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "log format (text, json)")
	rootCmd.PersistentFlags().String("storage", "", "storage driver (memory, local, s3, minio)")
	rootCmd.PersistentFlags().String("storage-path", "", "root directory of the local storage driver")

	rootCmd.AddCommand(
		newScheduleCmd(),
		newSimulateCmd(a),
		newTraceCmd(a),
		newConfigCmd(a),
	)
	return rootCmd
}

// init reads the configuration and binds the flags of the running command.
func (a *app) init(cmd *cobra.Command) error {
	a.v = config.New(a.cfgFile)
	if err := config.Read(a.v); err != nil {
		return err
	}

	bindings := map[string]string{
		"log.level":       "log-level",
		"log.format":      "log-format",
		"storage.driver":  "storage",
		"storage.path":    "storage-path",
		"search.method":   "method",
		"search.mode":     "mode",
		"search.seed":     "seed",
		"trace.enabled":   "trace",
		"ledger.enabled":  "ledger",
		"ranker.endpoint": "ranker-endpoint",
	}
	for key, name := range bindings {
		if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
			if err := a.v.BindPFlag(key, f); err != nil {
				return err
			}
		}
	}

	cfg, err := config.Load(a.v)
	if err != nil {
		return err
	}
	a.cfg = cfg

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	a.logger = logger

	if used := a.v.ConfigFileUsed(); used != "" {
		a.logger.Debug("using config file", "path", used)
	}
	return nil
}

func newLogger(cfg config.LogConfig) (*rewardsearch.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(cfg.Level))); err != nil {
		return nil, fmt.Errorf("invalid log.level %q: %w", cfg.Level, err)
	}
	if cfg.Format == "json" {
		return rewardsearch.NewJSONLogger(level), nil
	}
	return rewardsearch.NewTextLogger(level), nil
}
