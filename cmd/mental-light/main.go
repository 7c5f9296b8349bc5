package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/0xphantomotr/mental/pkg/config"
	"github.com/0xphantomotr/mental/pkg/player"
	"github.com/0xphantomotr/mental/pkg/rpc"
)

type lightConfig struct {
	StatusAddr string        `env:"MENTAL_STATUS" envDefault:"127.0.0.1:8000"`
	Interval   time.Duration `env:"MENTAL_POLL_INTERVAL" envDefault:"1s"`
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		cfg     lightConfig
		once    bool
		history int
	)
	if err := config.ParseEnv(&cfg); err != nil {
		config.Exitf("mental-light: %v", err)
	}

	cmd := &cobra.Command{
		Use:          "mental-light",
		Short:        "Follow a node's room from its status server",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := zap.NewDevelopment()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			client := rpc.NewClient(cfg.StatusAddr, nil)
			out := cmd.OutOrStdout()
			if history > 0 {
				return printHistory(ctx, client, history, out)
			}
			if once {
				_, err := poll(ctx, client, "", out)
				return err
			}
			return follow(ctx, client, cfg.Interval, out, logger)
		},
	}
	cmd.Flags().StringVar(&cfg.StatusAddr, "status", cfg.StatusAddr, "node status server address")
	cmd.Flags().DurationVar(&cfg.Interval, "interval", cfg.Interval, "poll interval")
	cmd.Flags().BoolVar(&once, "once", false, "print the room once and exit")
	cmd.Flags().IntVar(&history, "history", 0, "print the last n recorded rooms and exit")
	return cmd
}

// follow prints the room each time it changes until ctx ends.
func follow(ctx context.Context, client *rpc.Client, interval time.Duration, out io.Writer, logger *zap.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := ""
	for {
		seen, err := poll(ctx, client, last, out)
		var statusErr *rpc.StatusError
		switch {
		case err == nil:
			last = seen
		case errors.As(err, &statusErr):
			logger.Debug("room not available", zap.Int("status", statusErr.Code), zap.String("error", statusErr.Message))
		case ctx.Err() == nil:
			logger.Warn("poll failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// poll prints the room when its summary differs from last and returns the
// summary it saw.
func poll(ctx context.Context, client *rpc.Client, last string, out io.Writer) (string, error) {
	r, err := client.Room(ctx)
	if err != nil {
		return last, err
	}
	summary := summarize(r)
	if summary != last {
		fmt.Fprintln(out, summary)
	}
	return summary, nil
}

func summarize(r rpc.RoomResponse) string {
	lock := "open"
	if r.Locked {
		lock = "locked"
	}
	return fmt.Sprintf("[%s] %s me=%s owner=%s players=%s",
		r.State, lock, r.Me.Key(), r.Owner.Key(), strings.Join(player.Keys(r.Players), ","))
}

func printHistory(ctx context.Context, client *rpc.Client, n int, out io.Writer) error {
	h, err := client.History(ctx, n)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%d rooms recorded\n", h.Total)
	for _, e := range h.Entries {
		fmt.Fprintf(out, "#%d %s players=%s locked=%t\n",
			e.Seq, e.RecordedAt.Format(time.RFC3339), strings.Join(e.Players, ","), e.Locked)
	}
	return nil
}
