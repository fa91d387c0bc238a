package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"circle-integration/config"
	"circle-integration/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "circle-integration",
		Short:         "Cross-chain stablecoin transfers with payload",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config/config.yaml", "path to the YAML config file")

	load := func() (*config.Config, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		if err := logger.InitLogger(cfg.Log.AppLogFile, cfg.Log.Level); err != nil {
			return nil, fmt.Errorf("failed to initialize logger: %w", err)
		}
		return cfg, nil
	}

	root.AddCommand(newServeCmd(load), newGovernanceCmd(load))
	return root
}
