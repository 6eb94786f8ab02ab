package main

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"ETFRotation/internal/config"
	"ETFRotation/internal/logger"
)

var (
	cfgPath   string
	logLevel  string
	logFormat string
	cfg       *config.Config
)

func defaultConfigPath() string {
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		return v
	}
	return "configs/config.yaml"
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "rotator",
		Short:         "ETF momentum rotation: backtest, live signal and scheduled reports",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			c, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("log-level") {
				c.Log.Level = logLevel
			}
			if cmd.Flags().Changed("log-format") {
				c.Log.Format = logFormat
			}
			if err := logger.Init(c.Log.Level, c.Log.Format); err != nil {
				return err
			}
			for _, w := range c.Warnings() {
				log.Warn().Msg(w)
			}
			cfg = c
			return nil
		},
	}

	root.PersistentFlags().StringVar(&cfgPath, "config", defaultConfigPath(), "path to YAML config file")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "console", "log format (console, json)")

	root.AddCommand(newRunCmd(), newSignalCmd(), newServeCmd(), newHistoryCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Error().Err(err).Msg("rotator failed")
		os.Exit(1)
	}
}
