package main

import (
	"github.com/spf13/cobra"

	"github.com/mantonx/rtsphls/internal/config"
)

// commandContext carries global flags and the lazily loaded configuration
type commandContext struct {
	configPath string
	addr       string
	cfg        *config.Config
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, err
	}
	c.cfg = cfg
	return cfg, nil
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "rtsphls",
		Short:         "RTSP to HLS live stream daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&ctx.configPath, "config", "c", "", "Configuration file path (yaml or json)")

	rootCmd.AddCommand(newServeCommand(ctx))
	for _, cmd := range newClientCommands(ctx) {
		rootCmd.AddCommand(cmd)
	}
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}
