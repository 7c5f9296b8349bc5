package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var joinCmd = &cobra.Command{
	Use:   "join <owner-key>",
	Short: "Join the room hosted at owner-key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		n, err := newNode(cfg, logger, nil)
		if err != nil {
			return err
		}
		defer func() {
			if err := n.Close(); err != nil {
				logger.Warn("close node", zap.Error(err))
			}
		}()
		n.start(ctx, args[0])

		return run(ctx, n, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}
