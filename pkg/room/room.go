// Package room models the membership of a room as immutable snapshots. Every
// function here is pure: it derives a new Room and never touches its input.
package room

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/0xphantomotr/mental/pkg/player"
	"github.com/0xphantomotr/mental/pkg/transport"
)

var (
	ErrRoomLocked      = errors.New("room: players are locked")
	ErrDuplicatePlayer = errors.New("room: player already present")
	ErrInvalidRoster   = errors.New("room: invalid roster")
	ErrUnknownPlayer   = errors.New("room: unknown player")
)

// Room is one snapshot of who is in the room. The owner is always the first
// player. Values are never mutated after construction.
type Room struct {
	me      player.Player
	owner   player.Player
	players []player.Player
	locked  bool
}

func (r Room) Me() player.Player { return r.me }

func (r Room) Owner() player.Player { return r.owner }

// Players returns a copy of the roster in join order.
func (r Room) Players() []player.Player {
	out := make([]player.Player, len(r.players))
	copy(out, r.players)
	return out
}

func (r Room) Len() int { return len(r.players) }

func (r Room) IsPlayerLocked() bool { return r.locked }

// IsOwner reports whether the local process created the room.
func (r Room) IsOwner() bool { return r.me.Key() == r.owner.Key() }

// Peers returns every roster entry other than the local process.
func (r Room) Peers() []player.Player {
	out := make([]player.Player, 0, len(r.players))
	for _, p := range r.players {
		if p.Key() != r.me.Key() {
			out = append(out, p)
		}
	}
	return out
}

// NewID is the id the next player will receive.
func NewID(r Room) int { return len(r.players) }

// CreateAsOwner starts a room created by the local process.
func CreateAsOwner(me player.Player) Room {
	return Room{
		me:      me,
		owner:   me,
		players: []player.Player{me},
	}
}

// CreateAsCommon rebuilds a room from the roster broadcast by its owner. The
// owner comes first and is reached over ownerConn; the last entry is the
// local process. Interior entries carry no connection until one is attached.
func CreateAsCommon(roster []player.Player, ownerConn transport.Conn) (Room, error) {
	if len(roster) < 2 {
		return Room{}, fmt.Errorf("%w: need owner and self, got %d players", ErrInvalidRoster, len(roster))
	}

	players := make([]player.Player, len(roster))
	seen := make(map[string]struct{}, len(roster))
	for i, p := range roster {
		if p.Key() == "" {
			return Room{}, fmt.Errorf("%w: empty key at position %d", ErrInvalidRoster, i)
		}
		if _, dup := seen[p.Key()]; dup {
			return Room{}, fmt.Errorf("%w: key %q listed twice", ErrInvalidRoster, p.Key())
		}
		seen[p.Key()] = struct{}{}
		players[i] = player.Local(i, p.Key())
	}
	players[0] = players[0].WithConn(ownerConn)

	return Room{
		me:      players[len(players)-1],
		owner:   players[0],
		players: players,
	}, nil
}

// AddPlayer appends p to a copy of the roster.
func AddPlayer(r Room, p player.Player) (Room, error) {
	if r.locked {
		return Room{}, ErrRoomLocked
	}
	if _, ok := Identify(r, p.Key()); ok {
		return Room{}, fmt.Errorf("%w: %s", ErrDuplicatePlayer, p.Key())
	}

	players := make([]player.Player, len(r.players), len(r.players)+1)
	copy(players, r.players)
	players = append(players, p)

	return Room{
		me:      r.me,
		owner:   r.owner,
		players: players,
		locked:  r.locked,
	}, nil
}

// AdmitPlayer adds p like AddPlayer, except that a locked room still takes
// p when its key is in admitted: the owner's roster at the moment it locked.
// Keys outside admitted fail with ErrRoomLocked.
func AdmitPlayer(r Room, p player.Player, admitted []string) (Room, error) {
	if !r.locked {
		return AddPlayer(r, p)
	}
	for _, key := range admitted {
		if key != p.Key() {
			continue
		}
		if _, ok := Identify(r, key); ok {
			return Room{}, fmt.Errorf("%w: %s", ErrDuplicatePlayer, key)
		}
		players := make([]player.Player, len(r.players), len(r.players)+1)
		copy(players, r.players)
		return Room{
			me:      r.me,
			owner:   r.owner,
			players: append(players, p),
			locked:  true,
		}, nil
	}
	return Room{}, ErrRoomLocked
}

// AddNewPlayer builds a player for key at the next position and adds it.
func AddNewPlayer(r Room, key string, conn transport.Conn) (Room, error) {
	return AddPlayer(r, player.New(NewID(r), key, conn))
}

// Lock returns a copy of r that accepts no further players.
func Lock(r Room) Room {
	return Room{
		me:      r.me,
		owner:   r.owner,
		players: r.Players(),
		locked:  true,
	}
}

// Identify finds the first player holding key.
func Identify(r Room, key string) (player.Player, bool) {
	for _, p := range r.players {
		if p.Key() == key {
			return p, true
		}
	}
	return player.Player{}, false
}

// IdentifyConn finds the player reached over conn.
func IdentifyConn(r Room, conn transport.Conn) (player.Player, bool) {
	if conn == nil {
		return player.Player{}, false
	}
	for _, p := range r.players {
		if p.Conn() == conn {
			return p, true
		}
	}
	return player.Player{}, false
}

// AttachConnection returns a copy of r in which the player holding key is
// reached over conn.
func AttachConnection(r Room, key string, conn transport.Conn) (Room, error) {
	idx := -1
	for i, p := range r.players {
		if p.Key() == key {
			idx = i
			break
		}
	}
	if idx < 0 {
		return Room{}, fmt.Errorf("%w: %s", ErrUnknownPlayer, key)
	}

	players := r.Players()
	players[idx] = players[idx].WithConn(conn)

	next := Room{
		me:      r.me,
		owner:   r.owner,
		players: players,
		locked:  r.locked,
	}
	if r.owner.Key() == key {
		next.owner = players[idx]
	}
	if r.me.Key() == key {
		next.me = players[idx]
	}
	return next, nil
}

type wireRoom struct {
	Me             player.Player   `json:"me"`
	Owner          player.Player   `json:"owner"`
	Players        []player.Player `json:"players"`
	IsPlayerLocked bool            `json:"isPlayerLocked"`
}

func (r Room) MarshalJSON() ([]byte, error) {
	players := r.players
	if players == nil {
		players = []player.Player{}
	}
	return json.Marshal(wireRoom{
		Me:             r.me,
		Owner:          r.owner,
		Players:        players,
		IsPlayerLocked: r.locked,
	})
}
