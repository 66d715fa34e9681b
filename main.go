package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hetzpvp/Mt2-Fishbot/config"
	"github.com/hetzpvp/Mt2-Fishbot/debug"
)

func main() {
	var (
		configPath string
		debugFlag  bool
	)
	cmd := &cobra.Command{
		Use:   "fishbot",
		Short: "Multi-window fishing automation for Metin2",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if debugFlag {
				cfg.Debug = true
			}
			logger := NewLogger(ParseLevel(cfg.LogLevel))
			if cfg.Debug {
				debug.StartSampler(0, logger)
				debug.StartWorkingSetLogger(0, logger)
			}
			return run(cfg, logger)
		},
		SilenceUsage: true,
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the configuration file")
	cmd.Flags().BoolVar(&debugFlag, "debug", false, "enable runtime debug logging")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
