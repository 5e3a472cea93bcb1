package main

import (
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/youruser/polaroidwall/internal/config"
	"github.com/youruser/polaroidwall/internal/logging"
)

// RootCmd is the base command when called without any subcommands.
var RootCmd = &cobra.Command{
	Use:   "polaroid",
	Short: "Render photos as instant-photo cards",
	Long: `polaroid turns photos into instant-photo style cards with a handwritten
caption and the capture date, the same cards the photo booth server exports.`,
	SilenceUsage: true,
}

func init() {
	RootCmd.PersistentFlags().String("config", "", "path to a TOML config file")
	RootCmd.PersistentFlags().BoolP("verbose", "v", false, "log progress to stderr")
	RootCmd.AddCommand(composeCmd, qrCmd)
}

// loadConfig reads the config named by --config and builds a stderr logger
// that stays quiet unless --verbose is set.
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	logCfg := cfg.Log
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		logCfg.Level = "debug"
	} else {
		logCfg.Level = "error"
	}
	return cfg, slog.New(logging.NewHandler(cmd.ErrOrStderr(), logCfg)), nil
}
