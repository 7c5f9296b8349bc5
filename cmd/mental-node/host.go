package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/0xphantomotr/mental/pkg/coordinator"
	"github.com/0xphantomotr/mental/pkg/transport"
)

var (
	hostMemory bool
	hostPeers  int
)

var hostCmd = &cobra.Command{
	Use:   "host",
	Short: "Create a room owned by this node",
	Long: `host creates a room and admits every node that joins it until the
room is locked. With --memory the room runs entirely in-process with
--peers simulated joiners, which is handy for trying the protocol out.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var (
			network *transport.Network
			t       transport.Transport
		)
		if hostMemory {
			network = transport.NewNetwork()
			t = network.Join("owner")
		}

		n, err := newNode(cfg, logger, t)
		if err != nil {
			return err
		}
		defer func() {
			if err := n.Close(); err != nil {
				logger.Warn("close node", zap.Error(err))
			}
		}()
		n.start(ctx, "")

		if network != nil {
			for i := 1; i <= hostPeers; i++ {
				key := fmt.Sprintf("peer-%d", i)
				pt := network.Join(key)
				s := coordinator.New(pt, coordinator.Options{
					Logger:       logger.Named(key),
					StreamBuffer: cfg.StreamBuffer,
				}).JoinRoom(ctx, "owner")
				defer pt.Close()
				defer s.Close()
			}
		}

		return run(ctx, n, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func init() {
	hostCmd.Flags().BoolVar(&hostMemory, "memory", false, "run the room in-process instead of over the network")
	hostCmd.Flags().IntVar(&hostPeers, "peers", 2, "simulated joiners when --memory is set")
}
