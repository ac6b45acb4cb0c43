package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/mantonx/rtsphls/internal/logger"
	"github.com/mantonx/rtsphls/internal/server"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the stream daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			log, closer, err := logger.New(cfg.Logging)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			defer closer.Close()

			if !log.IsDebug() {
				gin.SetMode(gin.ReleaseMode)
			}

			runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log.Info("rtsphls starting",
				"config", ctx.configPath,
				"address", cfg.Server.Address(),
				"public_path", cfg.Stream.PublicPath)

			return server.New(cfg, log).Run(runCtx)
		},
	}
}
