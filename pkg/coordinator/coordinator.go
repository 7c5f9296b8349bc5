// Package coordinator turns transport events into an agreed sequence of room
// snapshots. Each session runs a single event loop that owns the current
// room; every roster change is derived from the snapshot that loop last
// published, so racing joins are applied strictly in arrival order.
package coordinator

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/0xphantomotr/mental/pkg/journal"
	"github.com/0xphantomotr/mental/pkg/stream"
	"github.com/0xphantomotr/mental/pkg/transport"
)

var (
	ErrInvalidOwnerHello = errors.New("coordinator: invalid owner hello")
	ErrNotOwner          = errors.New("coordinator: only the room owner may do this")
	ErrRoomNotReady      = errors.New("coordinator: room not established yet")
	ErrSessionClosed     = errors.New("coordinator: session closed")
)

type Options struct {
	// Logger defaults to a no-op logger.
	Logger *zap.Logger
	// Journal, when set, records every published room.
	Journal *journal.Journal
	// StreamBuffer is the per-subscriber buffer of both output streams.
	StreamBuffer int
}

// Coordinator starts room sessions over a transport. A transport delivers
// its identity and inbound connections once, so run at most one session
// per transport.
type Coordinator struct {
	transport transport.Transport
	logger    *zap.Logger
	journal   *journal.Journal
	buffer    int
}

func New(t transport.Transport, opts Options) *Coordinator {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	buffer := opts.StreamBuffer
	if buffer <= 0 {
		buffer = stream.DefaultBuffer
	}
	return &Coordinator{
		transport: t,
		logger:    logger,
		journal:   opts.Journal,
		buffer:    buffer,
	}
}

// MakeRoom creates a room owned by the local peer. The first snapshot is
// published as soon as the transport reports the local identity.
func (c *Coordinator) MakeRoom(ctx context.Context) *Session {
	return c.start(ctx, roleOwner, "")
}

// JoinRoom joins the room owned by ownerKey. The session fails with
// ErrInvalidOwnerHello if the owner's first message is not a usable roster.
func (c *Coordinator) JoinRoom(ctx context.Context, ownerKey string) *Session {
	return c.start(ctx, roleJoiner, ownerKey)
}

func (c *Coordinator) start(parent context.Context, role role, ownerKey string) *Session {
	ctx, cancel := context.WithCancel(parent)
	s := newSession(c.buffer, cancel)
	l := newLoop(ctx, c, s, role, ownerKey)
	go l.run()
	return s
}
