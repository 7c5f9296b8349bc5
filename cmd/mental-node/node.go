package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/0xphantomotr/mental/pkg/config"
	"github.com/0xphantomotr/mental/pkg/coordinator"
	"github.com/0xphantomotr/mental/pkg/journal"
	"github.com/0xphantomotr/mental/pkg/p2p"
	"github.com/0xphantomotr/mental/pkg/player"
	"github.com/0xphantomotr/mental/pkg/room"
	"github.com/0xphantomotr/mental/pkg/rpc"
	"github.com/0xphantomotr/mental/pkg/transport"
)

// node owns everything one process runs: the transport, the journal, the
// room session and the optional status server.
type node struct {
	cfg       config.Config
	logger    *zap.Logger
	transport transport.Transport
	journal   *journal.Journal
	session   *coordinator.Session
	status    *rpc.Server
	closers   []func() error
}

func openJournal(dir string) (*journal.Journal, error) {
	store, err := journal.NewBadgerStore(dir)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	return journal.New(store), nil
}

// newNode opens the journal and, unless t is given, a WebSocket transport
// listening on cfg.ListenAddr.
func newNode(cfg config.Config, logger *zap.Logger, t transport.Transport) (*node, error) {
	n := &node{cfg: cfg, logger: logger}

	j, err := openJournal(cfg.JournalDir)
	if err != nil {
		return nil, err
	}
	n.journal = j
	n.closers = append(n.closers, j.Close)

	if t == nil {
		server := p2p.NewServer(p2p.Config{
			ListenAddr:       cfg.ListenAddr,
			AdvertiseAddr:    cfg.AdvertiseAddr,
			HandshakeTimeout: cfg.HandshakeTimeout,
			Logger:           logger,
		})
		if err := server.Start(); err != nil {
			_ = n.Close()
			return nil, fmt.Errorf("start p2p server: %w", err)
		}
		t = server
	}
	n.transport = t
	n.closers = append(n.closers, t.Close)
	return n, nil
}

// start runs the room session; an empty ownerKey hosts a new room.
func (n *node) start(ctx context.Context, ownerKey string) {
	coord := coordinator.New(n.transport, coordinator.Options{
		Logger:       n.logger,
		Journal:      n.journal,
		StreamBuffer: n.cfg.StreamBuffer,
	})
	if ownerKey == "" {
		n.session = coord.MakeRoom(ctx)
	} else {
		n.session = coord.JoinRoom(ctx, ownerKey)
	}

	if n.cfg.StatusAddr == "" {
		return
	}
	n.status = rpc.NewServer(n.session, n.journal, n.cfg.StatusAddr)
	go func() {
		if err := n.status.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			n.logger.Error("status server stopped", zap.Error(err))
		}
	}()
	n.logger.Info("status server listening", zap.String("addr", n.cfg.StatusAddr))
}

// announce logs every room the session publishes until it stops.
func (n *node) announce() {
	rooms, cancel := n.session.Rooms()
	defer cancel()
	for r := range rooms {
		n.logger.Info("room",
			zap.String("me", r.Me().Key()),
			zap.Strings("players", player.Keys(r.Players())),
			zap.Bool("locked", r.IsPlayerLocked()),
		)
	}
}

// Close stops the session and releases resources in reverse order.
func (n *node) Close() error {
	if n.status != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := n.status.Shutdown(ctx); err != nil {
			n.logger.Warn("status shutdown", zap.Error(err))
		}
	}
	if n.session != nil {
		n.session.Close()
	}
	var errs []error
	for i := len(n.closers) - 1; i >= 0; i-- {
		if err := n.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func describe(r room.Room) string {
	role := "member"
	if r.IsOwner() {
		role = "owner"
	}
	lock := "open"
	if r.IsPlayerLocked() {
		lock = "locked"
	}
	return fmt.Sprintf("%s as %s (%s), %d players", r.Me().Key(), role, lock, r.Len())
}
