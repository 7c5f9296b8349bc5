package coordinator

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/0xphantomotr/mental/pkg/deck"
	"github.com/0xphantomotr/mental/pkg/journal"
	"github.com/0xphantomotr/mental/pkg/message"
	"github.com/0xphantomotr/mental/pkg/player"
	"github.com/0xphantomotr/mental/pkg/room"
	"github.com/0xphantomotr/mental/pkg/transport"
)

const testTimeout = 2 * time.Second

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	t.Cleanup(cancel)
	return ctx
}

func startOwner(t *testing.T, tr transport.Transport, opts Options) *Session {
	t.Helper()
	s := New(tr, opts).MakeRoom(context.Background())
	t.Cleanup(s.Close)
	return s
}

func startJoiner(t *testing.T, tr transport.Transport, ownerKey string) *Session {
	t.Helper()
	s := New(tr, Options{}).JoinRoom(context.Background(), ownerKey)
	t.Cleanup(s.Close)
	return s
}

func waitPlayers(t *testing.T, s *Session, keys ...string) room.Room {
	t.Helper()
	r, err := s.WaitRoom(testContext(t), func(r room.Room) bool {
		return reflect.DeepEqual(player.Keys(r.Players()), keys)
	})
	if err != nil {
		current, _ := s.Current()
		t.Fatalf("waiting for players %v: %v (current %v)", keys, err, player.Keys(current.Players()))
	}
	return r
}

func recv(t *testing.T, ch <-chan []byte) message.Message {
	t.Helper()
	select {
	case data, ok := <-ch:
		if !ok {
			t.Fatal("connection dropped")
		}
		m, err := message.Decode(data)
		if err != nil {
			t.Fatalf("decode %s: %v", data, err)
		}
		return m
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for payload")
	}
	return message.Message{}
}

func nextMessage(t *testing.T, ch <-chan message.Received) message.Received {
	t.Helper()
	select {
	case m, ok := <-ch:
		if !ok {
			t.Fatal("message stream closed")
		}
		return m
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for message")
	}
	return message.Received{}
}

func acceptOne(t *testing.T, tr *transport.MemoryTransport) transport.Conn {
	t.Helper()
	select {
	case conn := <-tr.Incoming():
		<-conn.Opened()
		return conn
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for inbound connection")
	}
	return nil
}

func TestOwnerAlone(t *testing.T) {
	net := transport.NewNetwork()
	s := startOwner(t, net.Join("ownerKey"), Options{})

	r := waitPlayers(t, s, "ownerKey")
	owner := player.Local(0, "ownerKey")
	if r.Me() != owner || r.Owner() != owner {
		t.Fatalf("unexpected me/owner %s/%s", r.Me(), r.Owner())
	}
	if r.IsPlayerLocked() {
		t.Fatal("new room must be unlocked")
	}
	if s.State() != StateOwnerRoomEstablished {
		t.Fatalf("unexpected state %s", s.State())
	}
}

func TestNoRoomBeforeIdentity(t *testing.T) {
	net := transport.NewNetwork()
	tr := net.JoinSilent("ownerKey")
	s := startOwner(t, tr, Options{})

	time.Sleep(20 * time.Millisecond)
	if _, ok := s.Current(); ok {
		t.Fatal("room published before identity")
	}
	if s.State() != StateUnconnected {
		t.Fatalf("unexpected state %s", s.State())
	}

	tr.AnnounceIdentity()
	waitPlayers(t, s, "ownerKey")
}

func TestOwnerAcceptsJoiner(t *testing.T) {
	net := transport.NewNetwork()
	ownerTr := net.Join("ownerKey")
	s := startOwner(t, ownerTr, Options{})
	waitPlayers(t, s, "ownerKey")

	msgs, cancel := s.Messages()
	defer cancel()

	conn, err := net.Join("p1").Connect("ownerKey")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := conn.Send(message.MustEncode(message.NewFirstHello("p1"))); err != nil {
		t.Fatalf("send: %v", err)
	}

	r := waitPlayers(t, s, "ownerKey", "p1")
	inbound := ownerTr.Conns()[0]
	p1, _ := room.Identify(r, "p1")
	if p1 != player.New(1, "p1", inbound) {
		t.Fatalf("unexpected joined player %s", p1)
	}

	got := nextMessage(t, msgs)
	if got.Conn != inbound || got.Message.Type() != message.TypeFirstHello {
		t.Fatalf("unexpected message %#v", got)
	}

	reply := recv(t, conn.Receive())
	hello, ok := reply.Body.(message.OwnerHello)
	if !ok {
		t.Fatalf("expected owner hello, got %s", reply.Type())
	}
	if keys := player.Keys(hello.Players); !reflect.DeepEqual(keys, []string{"ownerKey", "p1"}) {
		t.Fatalf("unexpected roster %v", keys)
	}
	if sent := inbound.Sent(); len(sent) != 1 {
		t.Fatalf("expected exactly one send on the joining connection, got %d", len(sent))
	}
	if s.State() != StateRoomConverged {
		t.Fatalf("unexpected state %s", s.State())
	}
}

func TestJoinerBuildsRoomFromOwnerHello(t *testing.T) {
	net := transport.NewNetwork()
	ownerTr := net.Join("ownerKey")
	joinerTr := net.Join("p1")
	s := startJoiner(t, joinerTr, "ownerKey")

	inbound := acceptOne(t, ownerTr)
	first := recv(t, inbound.Receive())
	if hello, ok := first.Body.(message.FirstHello); !ok || hello.Key != "p1" {
		t.Fatalf("expected first hello from p1, got %#v", first)
	}

	roster := []player.Player{player.Local(0, "ownerKey"), player.Local(1, "p1")}
	if err := inbound.Send(message.MustEncode(message.NewOwnerHello("ownerKey", roster))); err != nil {
		t.Fatalf("send owner hello: %v", err)
	}

	r := waitPlayers(t, s, "ownerKey", "p1")
	ownerConn := joinerTr.Conns()[0]
	if r.Me() != player.Local(1, "p1") {
		t.Fatalf("unexpected me %s", r.Me())
	}
	if r.Owner() != player.New(0, "ownerKey", ownerConn) {
		t.Fatalf("unexpected owner %s", r.Owner())
	}
	if s.State() != StateRoomConverged {
		t.Fatalf("unexpected state %s", s.State())
	}
}

func TestJoinerRejectsMalformedFirstFrame(t *testing.T) {
	net := transport.NewNetwork()
	ownerTr := net.Join("ownerKey")
	s := startJoiner(t, net.Join("p1"), "ownerKey")

	msgs, cancel := s.Messages()
	defer cancel()

	inbound := acceptOne(t, ownerTr)
	recv(t, inbound.Receive())
	_ = inbound.Send([]byte("this is not json"))

	err := s.Wait(testContext(t))
	if !errors.Is(err, ErrInvalidOwnerHello) {
		t.Fatalf("expected ErrInvalidOwnerHello, got %v", err)
	}
	if !errors.Is(err, message.ErrMalformedMessage) {
		t.Fatalf("expected the decode failure as cause, got %v", err)
	}
	if _, ok := s.Current(); ok {
		t.Fatal("no room may be published after an invalid owner hello")
	}
	if got := nextMessage(t, msgs); !got.Malformed() {
		t.Fatalf("expected malformed frame on the message stream, got %#v", got)
	}
}

func TestJoinerRejectsWrongFirstMessage(t *testing.T) {
	net := transport.NewNetwork()
	ownerTr := net.Join("ownerKey")
	s := startJoiner(t, net.Join("p1"), "ownerKey")

	inbound := acceptOne(t, ownerTr)
	recv(t, inbound.Receive())
	_ = inbound.Send(message.MustEncode(message.NewLockPlayers("ownerKey", nil)))

	if err := s.Wait(testContext(t)); !errors.Is(err, ErrInvalidOwnerHello) {
		t.Fatalf("expected ErrInvalidOwnerHello, got %v", err)
	}
}

func TestJoinerRejectsRosterWithoutSelf(t *testing.T) {
	net := transport.NewNetwork()
	ownerTr := net.Join("ownerKey")
	s := startJoiner(t, net.Join("p1"), "ownerKey")

	inbound := acceptOne(t, ownerTr)
	recv(t, inbound.Receive())
	roster := []player.Player{player.Local(0, "ownerKey"), player.Local(1, "someone-else")}
	_ = inbound.Send(message.MustEncode(message.NewOwnerHello("ownerKey", roster)))

	if err := s.Wait(testContext(t)); !errors.Is(err, ErrInvalidOwnerHello) {
		t.Fatalf("expected ErrInvalidOwnerHello, got %v", err)
	}
}

func TestLockedRoomRejectsLateJoiner(t *testing.T) {
	net := transport.NewNetwork()
	s := startOwner(t, net.Join("ownerKey"), Options{})
	waitPlayers(t, s, "ownerKey")

	if err := s.LockPlayers(testContext(t)); err != nil {
		t.Fatalf("lock: %v", err)
	}
	if s.State() != StateLocked {
		t.Fatalf("unexpected state %s", s.State())
	}

	rooms, cancelRooms := s.Rooms()
	defer cancelRooms()
	if r := <-rooms; !r.IsPlayerLocked() {
		t.Fatal("expected the locked snapshot to be current")
	}
	msgs, cancelMsgs := s.Messages()
	defer cancelMsgs()

	conn, _ := net.Join("late").Connect("ownerKey")
	_ = conn.Send(message.MustEncode(message.NewFirstHello("late")))

	got := nextMessage(t, msgs)
	if hello, ok := got.Message.Body.(message.FirstHello); !ok || hello.Key != "late" {
		t.Fatalf("expected the late first hello on the message stream, got %#v", got)
	}
	select {
	case r := <-rooms:
		t.Fatalf("unexpected snapshot %v", player.Keys(r.Players()))
	default:
	}
	select {
	case data := <-conn.Receive():
		t.Fatalf("locked owner must not reply, got %s", data)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestOwnerSurvivesMalformedMessage(t *testing.T) {
	net := transport.NewNetwork()
	s := startOwner(t, net.Join("ownerKey"), Options{})
	waitPlayers(t, s, "ownerKey")
	msgs, cancel := s.Messages()
	defer cancel()

	conn, _ := net.Join("p1").Connect("ownerKey")
	_ = conn.Send([]byte("{"))
	_ = conn.Send(message.MustEncode(message.NewFirstHello("p1")))

	if got := nextMessage(t, msgs); !errors.Is(got.Err, message.ErrMalformedMessage) {
		t.Fatalf("expected malformed message, got %#v", got)
	}
	waitPlayers(t, s, "ownerKey", "p1")
	if s.Err() != nil {
		t.Fatalf("session failed: %v", s.Err())
	}
}

func TestThreePeersConverge(t *testing.T) {
	net := transport.NewNetwork()
	owner := startOwner(t, net.Join("owner"), Options{})
	waitPlayers(t, owner, "owner")

	p1 := startJoiner(t, net.Join("p1"), "owner")
	waitPlayers(t, p1, "owner", "p1")

	p2 := startJoiner(t, net.Join("p2"), "owner")
	r2 := waitPlayers(t, p2, "owner", "p1", "p2")
	r1 := waitPlayers(t, p1, "owner", "p1", "p2")
	r0 := waitPlayers(t, owner, "owner", "p1", "p2")

	for name, r := range map[string]room.Room{"owner": r0, "p1": r1, "p2": r2} {
		for _, p := range r.Peers() {
			if !p.Connected() {
				t.Fatalf("%s has no channel to %s", name, p.Key())
			}
		}
	}
	if r1.Me().Key() != "p1" || r2.Me().Key() != "p2" {
		t.Fatalf("unexpected identities %s %s", r1.Me(), r2.Me())
	}
}

func TestRacingJoinsAreSerialized(t *testing.T) {
	net := transport.NewNetwork()
	s := startOwner(t, net.Join("owner"), Options{StreamBuffer: 128})
	waitPlayers(t, s, "owner")

	rooms, cancel := s.Rooms()
	defer cancel()
	<-rooms

	const joiners = 8
	replies := make([]message.Message, joiners)
	var wg sync.WaitGroup
	for i := 0; i < joiners; i++ {
		key := fmt.Sprintf("p%d", i)
		conn, _ := net.Join(key).Connect("owner")
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = conn.Send(message.MustEncode(message.NewFirstHello(key)))
			data := <-conn.Receive()
			replies[i], _ = message.Decode(data)
		}(i)
	}
	wg.Wait()

	var history []room.Room
	for len(history) < joiners {
		select {
		case r := <-rooms:
			history = append(history, r)
		case <-time.After(testTimeout):
			t.Fatalf("saw only %d snapshots", len(history))
		}
	}

	final := history[len(history)-1]
	if final.Len() != joiners+1 {
		t.Fatalf("lost update: final roster %v", player.Keys(final.Players()))
	}
	for i := 1; i < len(history); i++ {
		prev, cur := history[i-1].Players(), history[i].Players()
		if !reflect.DeepEqual(prev, cur[:len(prev)]) || len(cur) != len(prev)+1 {
			t.Fatalf("snapshot %d does not extend snapshot %d", i, i-1)
		}
	}
	for i, reply := range replies {
		hello, ok := reply.Body.(message.OwnerHello)
		if !ok {
			t.Fatalf("joiner %d got %s", i, reply.Type())
		}
		last := hello.Players[len(hello.Players)-1]
		if last.Key() != fmt.Sprintf("p%d", i) {
			t.Fatalf("joiner %d roster ends with %s", i, last.Key())
		}
	}
}

func TestLockPropagatesToJoiners(t *testing.T) {
	net := transport.NewNetwork()
	owner := startOwner(t, net.Join("owner"), Options{})
	waitPlayers(t, owner, "owner")
	p1 := startJoiner(t, net.Join("p1"), "owner")
	waitPlayers(t, p1, "owner", "p1")
	waitPlayers(t, owner, "owner", "p1")

	if err := p1.LockPlayers(testContext(t)); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
	if err := owner.LockPlayers(testContext(t)); err != nil {
		t.Fatalf("lock: %v", err)
	}
	if _, err := p1.WaitRoom(testContext(t), room.Room.IsPlayerLocked); err != nil {
		t.Fatalf("joiner never locked: %v", err)
	}
	if p1.State() != StateLocked {
		t.Fatalf("unexpected joiner state %s", p1.State())
	}
}

func TestLockedJoinerAdmitsPlayersFromOwnerRoster(t *testing.T) {
	net := transport.NewNetwork()
	owner := startOwner(t, net.Join("owner"), Options{})
	waitPlayers(t, owner, "owner")
	p1 := startJoiner(t, net.Join("p1"), "owner")
	waitPlayers(t, p1, "owner", "p1")
	waitPlayers(t, owner, "owner", "p1")

	// p2 joins the owner by hand and holds back its hello to p1.
	p2 := net.Join("p2")
	toOwner, err := p2.Connect("owner")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	_ = toOwner.Send(message.MustEncode(message.NewFirstHello("p2")))
	if reply := recv(t, toOwner.Receive()); reply.Type() != message.TypeOwnerHello {
		t.Fatalf("expected owner hello, got %s", reply.Type())
	}
	waitPlayers(t, owner, "owner", "p1", "p2")

	if err := owner.LockPlayers(testContext(t)); err != nil {
		t.Fatalf("lock: %v", err)
	}
	lockMsg := recv(t, toOwner.Receive())
	lock, ok := lockMsg.Body.(message.LockPlayers)
	if !ok || !reflect.DeepEqual(lock.Players, []string{"owner", "p1", "p2"}) {
		t.Fatalf("expected lock with the final roster, got %#v", lockMsg)
	}
	locked, err := p1.WaitRoom(testContext(t), room.Room.IsPlayerLocked)
	if err != nil {
		t.Fatalf("joiner never locked: %v", err)
	}
	if keys := player.Keys(locked.Players()); !reflect.DeepEqual(keys, []string{"owner", "p1"}) {
		t.Fatalf("unexpected roster at lock %v", keys)
	}

	msgs, cancel := p1.Messages()
	defer cancel()

	toP1, err := p2.Connect("p1")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	_ = toP1.Send(message.MustEncode(message.NewOtherPlayerHello("p2")))

	r := waitPlayers(t, p1, "owner", "p1", "p2")
	if !r.IsPlayerLocked() {
		t.Fatal("room must stay locked")
	}
	if joined, _ := room.Identify(r, "p2"); joined.ID() != 2 || !joined.Connected() {
		t.Fatalf("unexpected player %s", joined)
	}
	nextMessage(t, msgs)

	outsider, _ := net.Join("p3").Connect("p1")
	_ = outsider.Send(message.MustEncode(message.NewOtherPlayerHello("p3")))
	got := nextMessage(t, msgs)
	if hello, ok := got.Message.Body.(message.OtherPlayerHello); !ok || hello.Key != "p3" {
		t.Fatalf("expected the outsider hello on the message stream, got %#v", got)
	}
	if current, _ := p1.Current(); current.Len() != 3 {
		t.Fatalf("outsider admitted: %v", player.Keys(current.Players()))
	}
}

func TestJoinerIgnoresLateOwnerHello(t *testing.T) {
	net := transport.NewNetwork()
	ownerTr := net.Join("ownerKey")
	s := startJoiner(t, net.Join("p1"), "ownerKey")

	inbound := acceptOne(t, ownerTr)
	recv(t, inbound.Receive())
	roster := []player.Player{player.Local(0, "ownerKey"), player.Local(1, "p1")}
	_ = inbound.Send(message.MustEncode(message.NewOwnerHello("ownerKey", roster)))
	waitPlayers(t, s, "ownerKey", "p1")

	rooms, cancelRooms := s.Rooms()
	defer cancelRooms()
	<-rooms
	msgs, cancelMsgs := s.Messages()
	defer cancelMsgs()

	other := []player.Player{player.Local(0, "ownerKey"), player.Local(1, "p9"), player.Local(2, "p1")}
	_ = inbound.Send(message.MustEncode(message.NewOwnerHello("ownerKey", other)))

	if got := nextMessage(t, msgs); got.Message.Type() != message.TypeOwnerHello {
		t.Fatalf("expected the owner hello on the message stream, got %#v", got)
	}
	select {
	case r := <-rooms:
		t.Fatalf("unexpected snapshot %v", player.Keys(r.Players()))
	default:
	}
	if s.Err() != nil || s.State() != StateRoomConverged {
		t.Fatalf("session disturbed: state %s err %v", s.State(), s.Err())
	}
}

func TestJoinerReplaysHelloReceivedBeforeOwnerRoster(t *testing.T) {
	net := transport.NewNetwork()
	ownerTr := net.Join("ownerKey")
	joinerTr := net.Join("p1")
	s := startJoiner(t, joinerTr, "ownerKey")
	msgs, cancel := s.Messages()
	defer cancel()

	inbound := acceptOne(t, ownerTr)
	recv(t, inbound.Receive())

	early, err := net.Join("p2").Connect("p1")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	_ = early.Send(message.MustEncode(message.NewOtherPlayerHello("p2")))

	got := nextMessage(t, msgs)
	if hello, ok := got.Message.Body.(message.OtherPlayerHello); !ok || hello.Key != "p2" {
		t.Fatalf("expected the early hello on the message stream, got %#v", got)
	}
	if _, ok := s.Current(); ok {
		t.Fatal("room published before the owner hello")
	}
	if s.State() != StateAwaitingOwnerHello {
		t.Fatalf("unexpected state %s", s.State())
	}

	roster := []player.Player{player.Local(0, "ownerKey"), player.Local(1, "p1")}
	_ = inbound.Send(message.MustEncode(message.NewOwnerHello("ownerKey", roster)))

	r := waitPlayers(t, s, "ownerKey", "p1", "p2")
	p2, _ := room.Identify(r, "p2")
	if p2 != player.New(2, "p2", joinerTr.Conns()[1]) {
		t.Fatalf("unexpected replayed player %s", p2)
	}
}

func TestOwnerIgnoresDuplicateFirstHello(t *testing.T) {
	net := transport.NewNetwork()
	ownerTr := net.Join("ownerKey")
	s := startOwner(t, ownerTr, Options{})
	waitPlayers(t, s, "ownerKey")

	conn, _ := net.Join("p1").Connect("ownerKey")
	_ = conn.Send(message.MustEncode(message.NewFirstHello("p1")))
	waitPlayers(t, s, "ownerKey", "p1")
	recv(t, conn.Receive())

	rooms, cancelRooms := s.Rooms()
	defer cancelRooms()
	<-rooms
	msgs, cancelMsgs := s.Messages()
	defer cancelMsgs()

	dup, _ := net.Join("p1-again").Connect("ownerKey")
	_ = dup.Send(message.MustEncode(message.NewFirstHello("p1")))

	got := nextMessage(t, msgs)
	dupInbound := ownerTr.Conns()[1]
	if hello, ok := got.Message.Body.(message.FirstHello); !ok || hello.Key != "p1" || got.Conn != dupInbound {
		t.Fatalf("expected the duplicate first hello on the message stream, got %#v", got)
	}
	select {
	case r := <-rooms:
		t.Fatalf("unexpected snapshot %v", player.Keys(r.Players()))
	default:
	}
	if sent := dupInbound.Sent(); len(sent) != 0 {
		t.Fatalf("expected no reply to the duplicate, got %d sends", len(sent))
	}
}

func TestStartShuffleIsAcknowledged(t *testing.T) {
	net := transport.NewNetwork()
	owner := startOwner(t, net.Join("owner"), Options{})
	waitPlayers(t, owner, "owner")
	p1 := startJoiner(t, net.Join("p1"), "owner")
	waitPlayers(t, p1, "owner", "p1")
	waitPlayers(t, owner, "owner", "p1")

	msgs, cancel := owner.Messages()
	defer cancel()
	joinerMsgs, cancelJoiner := p1.Messages()
	defer cancelJoiner()

	if err := owner.StartShuffle(testContext(t), deck.DeckOf(10, 20, 30)); err != nil {
		t.Fatalf("start shuffle: %v", err)
	}

	start, ok := nextMessage(t, joinerMsgs).Message.Body.(message.StartShuffle)
	if !ok {
		t.Fatal("expected startShuffle at the joiner")
	}
	if start.Deck.Len() != 3 {
		t.Fatalf("expected 3 cards, got %d", start.Deck.Len())
	}
	if c, _ := start.Deck.Draw(2); !c.Equal(deck.CardOf(30)) {
		t.Fatalf("unexpected last card %s", c)
	}

	got := nextMessage(t, msgs)
	if got.Message.Type() != message.TypeOkShuffle || got.Message.From != "p1" {
		t.Fatalf("expected okShuffle from p1, got %#v", got.Message)
	}
}

func TestJournalRecordsPublishedRooms(t *testing.T) {
	net := transport.NewNetwork()
	j := journal.New(journal.NewMemoryStore())
	s := startOwner(t, net.Join("owner"), Options{Journal: j})
	waitPlayers(t, s, "owner")

	conn, _ := net.Join("p1").Connect("owner")
	_ = conn.Send(message.MustEncode(message.NewFirstHello("p1")))
	waitPlayers(t, s, "owner", "p1")

	entries, err := j.Entries()
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	if len(entries) != 2 || !reflect.DeepEqual(entries[1].Players, []string{"owner", "p1"}) {
		t.Fatalf("unexpected journal %+v", entries)
	}
}

func TestCloseStopsSession(t *testing.T) {
	net := transport.NewNetwork()
	s := New(net.Join("owner"), Options{}).MakeRoom(context.Background())
	waitPlayers(t, s, "owner")
	msgs, _ := s.Messages()

	s.Close()

	if s.Err() != nil {
		t.Fatalf("plain close should not report an error, got %v", s.Err())
	}
	if s.State() != StateClosed {
		t.Fatalf("unexpected state %s", s.State())
	}
	if _, ok := <-msgs; ok {
		t.Fatal("message stream should be closed")
	}
	if err := s.LockPlayers(testContext(t)); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed, got %v", err)
	}
}

func TestCommandsBeforeRoom(t *testing.T) {
	net := transport.NewNetwork()
	s := startOwner(t, net.JoinSilent("owner"), Options{})
	if err := s.LockPlayers(testContext(t)); !errors.Is(err, ErrRoomNotReady) {
		t.Fatalf("expected ErrRoomNotReady, got %v", err)
	}
}
