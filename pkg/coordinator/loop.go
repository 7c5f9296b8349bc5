package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/0xphantomotr/mental/pkg/deck"
	"github.com/0xphantomotr/mental/pkg/message"
	"github.com/0xphantomotr/mental/pkg/metrics"
	"github.com/0xphantomotr/mental/pkg/player"
	"github.com/0xphantomotr/mental/pkg/room"
	"github.com/0xphantomotr/mental/pkg/transport"
)

type role int

const (
	roleOwner role = iota
	roleJoiner
)

func (r role) String() string {
	if r == roleOwner {
		return "owner"
	}
	return "joiner"
}

type eventKind int

const (
	eventOpened eventKind = iota
	eventReceived
	eventDropped
)

type event struct {
	kind eventKind
	conn transport.Conn
	data []byte
}

// loop is the single writer of a session's room. Only run and the methods it
// calls touch its fields.
type loop struct {
	ctx       context.Context
	transport transport.Transport
	session   *Session
	logger    *zap.Logger
	coord     *Coordinator
	role      role
	ownerKey  string

	events chan event
	pumps  sync.WaitGroup

	myKey     string
	current   room.Room
	hasRoom   bool
	ownerConn transport.Conn
	dialled   map[transport.Conn]string
	pending   []message.Received
	// admitted is the owner's roster carried by its lock; nil until locked.
	admitted []string
}

func newLoop(ctx context.Context, c *Coordinator, s *Session, role role, ownerKey string) *loop {
	return &loop{
		ctx:       ctx,
		transport: c.transport,
		session:   s,
		logger:    c.logger.With(zap.Stringer("role", role)),
		coord:     c,
		role:      role,
		ownerKey:  ownerKey,
		events:    make(chan event),
		dialled:   make(map[transport.Conn]string),
	}
}

func (l *loop) run() {
	err := l.serve()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	if err != nil {
		l.logger.Warn("session failed", zap.Error(err))
	}

	l.session.cancel()
	l.pumps.Wait()
	l.session.setState(StateClosed)
	l.session.err = err
	l.session.messages.Close()
	l.session.rooms.Close()
	close(l.session.done)
}

func (l *loop) serve() error {
	identity := l.transport.Identity()
	var incoming <-chan transport.Conn

	for {
		select {
		case <-l.ctx.Done():
			return l.ctx.Err()

		case key, ok := <-identity:
			identity = nil
			if !ok {
				return fmt.Errorf("%w: transport closed before identity", ErrSessionClosed)
			}
			if err := l.onIdentity(key); err != nil {
				return err
			}
			incoming = l.transport.Incoming()

		case conn, ok := <-incoming:
			if !ok {
				incoming = nil
				continue
			}
			l.logger.Debug("inbound connection", zap.String("conn", conn.ID()))
			l.watch(conn)

		case ev := <-l.events:
			if err := l.onEvent(ev); err != nil {
				return err
			}

		case cmd := <-l.session.cmds:
			cmd.reply <- cmd.run(l)
		}
	}
}

// watch pumps a connection's open and receive events into the loop.
func (l *loop) watch(conn transport.Conn) {
	l.pumps.Add(1)
	go func() {
		defer l.pumps.Done()

		select {
		case <-conn.Opened():
		case <-l.ctx.Done():
			return
		}
		if !l.emit(event{kind: eventOpened, conn: conn}) {
			return
		}

		for {
			select {
			case data, ok := <-conn.Receive():
				if !ok {
					l.emit(event{kind: eventDropped, conn: conn})
					return
				}
				if !l.emit(event{kind: eventReceived, conn: conn, data: data}) {
					return
				}
			case <-l.ctx.Done():
				return
			}
		}
	}()
}

func (l *loop) emit(ev event) bool {
	select {
	case l.events <- ev:
		return true
	case <-l.ctx.Done():
		return false
	}
}

func (l *loop) onIdentity(key string) error {
	l.myKey = key
	l.logger = l.logger.With(zap.String("me", key))
	l.session.setState(StatePeerIdentityKnown)
	l.logger.Info("peer identity known")

	if l.role == roleOwner {
		l.publish(room.CreateAsOwner(player.Local(0, key)))
		l.session.setState(StateOwnerRoomEstablished)
		return nil
	}

	conn, err := l.transport.Connect(l.ownerKey)
	if err != nil {
		return fmt.Errorf("connect to owner %s: %w", l.ownerKey, err)
	}
	l.ownerConn = conn
	l.session.setState(StateAwaitingOwnerHello)
	l.logger.Info("connecting to owner", zap.String("owner", l.ownerKey), zap.String("conn", conn.ID()))
	l.watch(conn)
	return nil
}

func (l *loop) onEvent(ev event) error {
	switch ev.kind {
	case eventOpened:
		l.onOpened(ev.conn)
	case eventReceived:
		return l.onReceived(ev.conn, ev.data)
	case eventDropped:
		l.logger.Debug("connection dropped", zap.String("conn", ev.conn.ID()))
	}
	return nil
}

func (l *loop) onOpened(conn transport.Conn) {
	switch {
	case conn == l.ownerConn:
		l.send(conn, message.NewFirstHello(l.myKey))
	case l.dialled[conn] != "":
		l.send(conn, message.NewOtherPlayerHello(l.myKey))
	}
}

func (l *loop) onReceived(conn transport.Conn, data []byte) error {
	rcv := message.NewReceived(data, conn)
	metrics.IncReceived(rcv.Malformed())
	err := l.apply(rcv)
	l.session.messages.Publish(rcv)
	return err
}

func (l *loop) awaitingOwnerHello() bool {
	return l.role == roleJoiner && !l.hasRoom
}

func (l *loop) apply(rcv message.Received) error {
	if l.awaitingOwnerHello() {
		if rcv.Conn == l.ownerConn {
			return l.converge(rcv)
		}
		l.pending = append(l.pending, rcv)
		return nil
	}
	l.dispatch(rcv)
	return nil
}

// converge builds the joiner's first room from the owner's roster and dials
// every other member so they learn who arrived.
func (l *loop) converge(rcv message.Received) error {
	if rcv.Malformed() {
		return fmt.Errorf("%w: %w", ErrInvalidOwnerHello, rcv.Err)
	}
	hello, ok := rcv.Message.Body.(message.OwnerHello)
	if !ok {
		return fmt.Errorf("%w: got %s first", ErrInvalidOwnerHello, rcv.Message.Type())
	}
	r, err := room.CreateAsCommon(hello.Players, l.ownerConn)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidOwnerHello, err)
	}
	if r.Me().Key() != l.myKey {
		return fmt.Errorf("%w: roster ends with %q, expected %q", ErrInvalidOwnerHello, r.Me().Key(), l.myKey)
	}
	if r.Owner().Key() != l.ownerKey {
		return fmt.Errorf("%w: roster starts with %q, expected %q", ErrInvalidOwnerHello, r.Owner().Key(), l.ownerKey)
	}

	for _, p := range r.Players()[1 : r.Len()-1] {
		conn, err := l.transport.Connect(p.Key())
		if err != nil {
			l.logger.Warn("cannot reach player", zap.String("key", p.Key()), zap.Error(err))
			continue
		}
		if r, err = room.AttachConnection(r, p.Key(), conn); err != nil {
			return err
		}
		l.dialled[conn] = p.Key()
		l.watch(conn)
	}

	l.publish(r)
	l.session.setState(StateRoomConverged)

	pending := l.pending
	l.pending = nil
	for _, early := range pending {
		l.dispatch(early)
	}
	return nil
}

func (l *loop) dispatch(rcv message.Received) {
	if rcv.Malformed() {
		l.logger.Warn("malformed message", zap.String("conn", rcv.Conn.ID()), zap.Error(rcv.Err))
		return
	}

	switch body := rcv.Message.Body.(type) {
	case message.FirstHello:
		if l.addPlayer(body.Key, rcv.Conn) && l.role == roleOwner {
			l.send(rcv.Conn, message.NewOwnerHello(l.myKey, l.current.Players()))
		}
	case message.OtherPlayerHello:
		if l.role == roleJoiner {
			l.addPlayer(body.Key, rcv.Conn)
		}
	case message.OwnerHello:
		l.logger.Warn("ignoring unsolicited owner hello", zap.String("conn", rcv.Conn.ID()))
	case message.LockPlayers:
		if l.role == roleJoiner && rcv.Conn == l.ownerConn {
			l.admitted = append([]string(nil), body.Players...)
			l.lock()
		}
	case message.StartShuffle:
		l.logger.Info("shuffle started", zap.String("from", rcv.Message.From), zap.Int("cards", body.Deck.Len()))
		l.send(rcv.Conn, message.NewOkShuffle(l.myKey))
	case message.OkShuffle:
		p, ok := room.IdentifyConn(l.current, rcv.Conn)
		if !ok {
			l.logger.Warn("shuffle acknowledged by unknown connection",
				zap.String("conn", rcv.Conn.ID()), zap.String("from", rcv.Message.From))
			return
		}
		l.logger.Debug("shuffle acknowledged", zap.Stringer("player", p))
	}
}

func (l *loop) addPlayer(key string, conn transport.Conn) bool {
	next, err := room.AdmitPlayer(l.current, player.New(room.NewID(l.current), key, conn), l.admitted)
	if err != nil {
		metrics.IncJoinRejected()
		l.logger.Info("join rejected", zap.String("key", key), zap.Error(err))
		return false
	}
	l.publish(next)
	if l.session.State() == StateOwnerRoomEstablished {
		l.session.setState(StateRoomConverged)
	}
	return true
}

func (l *loop) publish(r room.Room) {
	l.current = r
	l.hasRoom = true
	l.session.rooms.Store(r)

	connected := 0
	for _, p := range r.Peers() {
		if p.Connected() {
			connected++
		}
	}
	metrics.ObserveRoom(r.Len())
	metrics.SetPeerCount(connected)

	if j := l.coord.journal; j != nil {
		if _, err := j.Record(r); err != nil {
			l.logger.Warn("journal record failed", zap.Error(err))
		}
	}
	l.logger.Info("room published",
		zap.Strings("players", player.Keys(r.Players())),
		zap.Bool("locked", r.IsPlayerLocked()),
	)
}

func (l *loop) lock() {
	if l.current.IsPlayerLocked() {
		return
	}
	l.publish(room.Lock(l.current))
	l.session.setState(StateLocked)
}

func (l *loop) send(conn transport.Conn, m message.Message) {
	data, err := message.Encode(m)
	if err != nil {
		l.logger.Error("encode message", zap.String("type", string(m.Type())), zap.Error(err))
		return
	}
	err = conn.Send(data)
	metrics.IncSent(err)
	if err != nil {
		l.logger.Warn("send failed", zap.String("type", string(m.Type())), zap.String("conn", conn.ID()), zap.Error(err))
		return
	}
	l.logger.Debug("sent", zap.String("type", string(m.Type())), zap.String("conn", conn.ID()))
}

func (l *loop) broadcast(m message.Message) {
	for _, p := range l.current.Peers() {
		if p.Connected() {
			l.send(p.Conn(), m)
		}
	}
}

func (l *loop) lockPlayers() error {
	if !l.hasRoom {
		return ErrRoomNotReady
	}
	if !l.current.IsOwner() {
		return ErrNotOwner
	}
	if l.current.IsPlayerLocked() {
		return nil
	}
	l.lock()
	l.broadcast(message.NewLockPlayers(l.myKey, player.Keys(l.current.Players())))
	return nil
}

func (l *loop) startShuffle(d deck.Deck) error {
	if !l.hasRoom {
		return ErrRoomNotReady
	}
	l.broadcast(message.NewStartShuffle(l.myKey, d))
	return nil
}
