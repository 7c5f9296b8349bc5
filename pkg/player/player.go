// Package player holds the immutable identity record of a room member.
package player

import (
	"encoding/json"
	"fmt"

	"github.com/0xphantomotr/mental/pkg/transport"
)

// Player is a room member. The zero value is not a valid player.
type Player struct {
	id   int
	key  string
	conn transport.Conn
}

// New builds a player reachable over conn. id is the join position.
func New(id int, key string, conn transport.Conn) Player {
	return Player{id: id, key: key, conn: conn}
}

// Local builds the record for the local process. It never has a connection.
func Local(id int, key string) Player {
	return Player{id: id, key: key}
}

func (p Player) ID() int { return p.id }

func (p Player) Key() string { return p.key }

// Conn returns the channel to this player, nil for the local process and for
// roster entries not yet connected to.
func (p Player) Conn() transport.Conn { return p.conn }

// Connected reports whether a channel to this player exists.
func (p Player) Connected() bool { return p.conn != nil }

// WithConn returns a copy of p reachable over conn.
func (p Player) WithConn(conn transport.Conn) Player {
	p.conn = conn
	return p
}

// Same reports whether both records name the same peer.
func (p Player) Same(other Player) bool {
	return p.key == other.key
}

func (p Player) String() string {
	return fmt.Sprintf("%d:%s", p.id, p.key)
}

type wirePlayer struct {
	ID  int    `json:"id"`
	Key string `json:"key"`
}

// MarshalJSON reduces a player to its id and key. The connection never
// crosses the wire.
func (p Player) MarshalJSON() ([]byte, error) {
	return json.Marshal(wirePlayer{ID: p.id, Key: p.key})
}

// UnmarshalJSON accepts {"id":N,"key":"k"}, {"key":"k"} or a bare "k".
func (p *Player) UnmarshalJSON(data []byte) error {
	var key string
	if err := json.Unmarshal(data, &key); err == nil {
		*p = Player{key: key}
		return nil
	}
	var w wirePlayer
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("decode player: %w", err)
	}
	*p = Player{id: w.ID, key: w.Key}
	return nil
}

// Keys lists the keys of players in order.
func Keys(players []Player) []string {
	keys := make([]string, len(players))
	for i, p := range players {
		keys[i] = p.key
	}
	return keys
}
