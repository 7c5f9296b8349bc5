package coordinator

import (
	"context"
	"sync/atomic"

	"github.com/0xphantomotr/mental/pkg/deck"
	"github.com/0xphantomotr/mental/pkg/message"
	"github.com/0xphantomotr/mental/pkg/metrics"
	"github.com/0xphantomotr/mental/pkg/room"
	"github.com/0xphantomotr/mental/pkg/stream"
)

// State is the protocol phase of a session.
type State int32

const (
	StateUnconnected State = iota
	StatePeerIdentityKnown
	StateOwnerRoomEstablished
	StateAwaitingOwnerHello
	StateRoomConverged
	StateLocked
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnconnected:
		return "unconnected"
	case StatePeerIdentityKnown:
		return "peer-identity-known"
	case StateOwnerRoomEstablished:
		return "owner-room-established"
	case StateAwaitingOwnerHello:
		return "awaiting-owner-hello"
	case StateRoomConverged:
		return "room-converged"
	case StateLocked:
		return "locked"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

type command struct {
	run   func(*loop) error
	reply chan error
}

// Session is one running room: the owner's from MakeRoom or a joiner's from
// JoinRoom. It exposes every inbound message and the current room snapshot.
type Session struct {
	messages *stream.Feed[message.Received]
	rooms    *stream.Cell[room.Room]
	state    atomic.Int32
	cmds     chan command
	cancel   context.CancelFunc
	done     chan struct{}
	err      error
}

func newSession(buffer int, cancel context.CancelFunc) *Session {
	s := &Session{
		messages: stream.NewFeed[message.Received](buffer),
		rooms:    stream.NewCell[room.Room](buffer),
		cmds:     make(chan command),
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	s.messages.OnDrop(metrics.IncStreamDrop)
	s.rooms.OnDrop(metrics.IncStreamDrop)
	return s
}

// Messages subscribes to every message received from now on, including
// malformed ones. Call cancel to unsubscribe.
func (s *Session) Messages() (<-chan message.Received, func()) {
	return s.messages.Subscribe()
}

// Rooms subscribes to room snapshots. The current snapshot, if any, is
// delivered first.
func (s *Session) Rooms() (<-chan room.Room, func()) {
	return s.rooms.Subscribe()
}

// Current returns the latest published room.
func (s *Session) Current() (room.Room, bool) {
	return s.rooms.Load()
}

func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
}

// WaitRoom blocks until a published room satisfies match.
func (s *Session) WaitRoom(ctx context.Context, match func(room.Room) bool) (room.Room, error) {
	rooms, cancel := s.Rooms()
	defer cancel()
	for {
		select {
		case r, ok := <-rooms:
			if !ok {
				if err := s.Err(); err != nil {
					return room.Room{}, err
				}
				return room.Room{}, ErrSessionClosed
			}
			if match(r) {
				return r, nil
			}
		case <-ctx.Done():
			return room.Room{}, ctx.Err()
		}
	}
}

// LockPlayers stops the room from accepting players and tells every
// connected peer to do the same. Only the owner may lock.
func (s *Session) LockPlayers(ctx context.Context) error {
	return s.submit(ctx, (*loop).lockPlayers)
}

// StartShuffle sends d to every connected peer to open the shuffle step. The
// step itself is not implemented; peers only acknowledge it.
func (s *Session) StartShuffle(ctx context.Context, d deck.Deck) error {
	return s.submit(ctx, func(l *loop) error { return l.startShuffle(d) })
}

func (s *Session) submit(ctx context.Context, run func(*loop) error) error {
	cmd := command{run: run, reply: make(chan error, 1)}
	select {
	case s.cmds <- cmd:
	case <-s.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-cmd.reply:
		return err
	case <-s.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed once the session has stopped and both streams are closed.
func (s *Session) Done() <-chan struct{} { return s.done }

// Err reports why the session stopped. It is nil while running and after a
// plain Close.
func (s *Session) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// Wait blocks until the session stops and returns Err.
func (s *Session) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		return s.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the session and releases every transport subscription.
func (s *Session) Close() {
	s.cancel()
	<-s.done
}
