// Package message is the wire codec for room protocol envelopes.
//
// Every payload on a data channel is a JSON envelope
//
//	{"type": "...", "from": "...", "body": {...}}
//
// where from is optional. Bodies form a closed set; Decode maps the type tag
// onto exactly one Go type so callers switch on the concrete body instead of
// comparing strings.
package message

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/0xphantomotr/mental/pkg/deck"
	"github.com/0xphantomotr/mental/pkg/player"
	"github.com/0xphantomotr/mental/pkg/transport"
)

var ErrMalformedMessage = errors.New("message: malformed")

type Type string

const (
	TypeFirstHello       Type = "firstHello"
	TypeOwnerHello       Type = "ownerHello"
	TypeOtherPlayerHello Type = "otherPlayerHello"
	TypeLockPlayers      Type = "lockPlayers"
	TypeStartShuffle     Type = "startShuffle"
	TypeOkShuffle        Type = "okShuffle"
)

// Body is implemented only by the types in this package.
type Body interface {
	Type() Type
	sealed()
}

// FirstHello is sent by a joiner to announce its key.
type FirstHello struct {
	Key string `json:"key"`
}

// OwnerHello carries the full roster, owner first, to a new joiner.
type OwnerHello struct {
	Players []player.Player `json:"players"`
}

// OtherPlayerHello introduces a non-owner peer over a fresh direct channel.
type OtherPlayerHello struct {
	Key string `json:"key"`
}

// LockPlayers closes the room. Players lists the owner's final roster so a
// member still waiting for introductions from admitted players keeps
// accepting them.
type LockPlayers struct {
	Players []string `json:"players,omitempty"`
}

// StartShuffle and OkShuffle are reserved for the shuffle step. StartShuffle
// carries the deck to be shuffled.
type StartShuffle struct {
	Deck deck.Deck `json:"deck"`
}

type OkShuffle struct{}

func (FirstHello) Type() Type       { return TypeFirstHello }
func (OwnerHello) Type() Type       { return TypeOwnerHello }
func (OtherPlayerHello) Type() Type { return TypeOtherPlayerHello }
func (LockPlayers) Type() Type      { return TypeLockPlayers }
func (StartShuffle) Type() Type     { return TypeStartShuffle }
func (OkShuffle) Type() Type        { return TypeOkShuffle }

func (FirstHello) sealed()       {}
func (OwnerHello) sealed()       {}
func (OtherPlayerHello) sealed() {}
func (LockPlayers) sealed()      {}
func (StartShuffle) sealed()     {}
func (OkShuffle) sealed()        {}

// Message is a typed envelope. From is the sender's key when known.
type Message struct {
	From string
	Body Body
}

func (m Message) Type() Type {
	if m.Body == nil {
		return ""
	}
	return m.Body.Type()
}

func NewFirstHello(from string) Message {
	return Message{From: from, Body: FirstHello{Key: from}}
}

func NewOwnerHello(from string, players []player.Player) Message {
	roster := make([]player.Player, len(players))
	copy(roster, players)
	return Message{From: from, Body: OwnerHello{Players: roster}}
}

func NewOtherPlayerHello(from string) Message {
	return Message{From: from, Body: OtherPlayerHello{Key: from}}
}

func NewLockPlayers(from string, roster []string) Message {
	keys := make([]string, len(roster))
	copy(keys, roster)
	return Message{From: from, Body: LockPlayers{Players: keys}}
}

func NewStartShuffle(from string, d deck.Deck) Message {
	return Message{From: from, Body: StartShuffle{Deck: d}}
}

func NewOkShuffle(from string) Message {
	return Message{From: from, Body: OkShuffle{}}
}

type envelope struct {
	Type Type            `json:"type"`
	From string          `json:"from,omitempty"`
	Body json.RawMessage `json:"body"`
}

// Encode serializes m. Players inside the body are reduced to id and key.
func Encode(m Message) ([]byte, error) {
	if m.Body == nil {
		return nil, fmt.Errorf("encode message: nil body")
	}
	body, err := json.Marshal(m.Body)
	if err != nil {
		return nil, fmt.Errorf("encode %s body: %w", m.Type(), err)
	}
	data, err := json.Marshal(envelope{Type: m.Type(), From: m.From, Body: body})
	if err != nil {
		return nil, fmt.Errorf("encode %s envelope: %w", m.Type(), err)
	}
	return data, nil
}

// MustEncode is Encode for messages built by the constructors above.
func MustEncode(m Message) []byte {
	data, err := Encode(m)
	if err != nil {
		panic(err)
	}
	return data
}

// Decode parses an envelope. Anything that is not a well-formed envelope of
// a known type fails with ErrMalformedMessage.
func Decode(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	body, err := decodeBody(env.Type, env.Body)
	if err != nil {
		return Message{}, err
	}
	return Message{From: env.From, Body: body}, nil
}

func decodeBody(t Type, raw json.RawMessage) (Body, error) {
	switch t {
	case TypeFirstHello:
		var b FirstHello
		if err := unmarshalBody(t, raw, &b); err != nil {
			return nil, err
		}
		if b.Key == "" {
			return nil, fmt.Errorf("%w: %s without key", ErrMalformedMessage, t)
		}
		return b, nil
	case TypeOwnerHello:
		var b OwnerHello
		if err := unmarshalBody(t, raw, &b); err != nil {
			return nil, err
		}
		return b, nil
	case TypeOtherPlayerHello:
		var b OtherPlayerHello
		if err := unmarshalBody(t, raw, &b); err != nil {
			return nil, err
		}
		if b.Key == "" {
			return nil, fmt.Errorf("%w: %s without key", ErrMalformedMessage, t)
		}
		return b, nil
	case TypeLockPlayers:
		var b LockPlayers
		if err := unmarshalBody(t, raw, &b); err != nil {
			return nil, err
		}
		return b, nil
	case TypeStartShuffle:
		var b StartShuffle
		if err := unmarshalBody(t, raw, &b); err != nil {
			return nil, err
		}
		return b, nil
	case TypeOkShuffle:
		return OkShuffle{}, unmarshalBody(t, raw, &OkShuffle{})
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrMalformedMessage)
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrMalformedMessage, t)
	}
}

func unmarshalBody(t Type, raw json.RawMessage, v any) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %s body: %v", ErrMalformedMessage, t, err)
	}
	return nil
}

// Received pairs an inbound payload with the connection it arrived on. Err
// is set, and Message is empty, when the payload did not decode.
type Received struct {
	Message Message
	Conn    transport.Conn
	Raw     []byte
	Err     error
}

// NewReceived decodes data and records its provenance.
func NewReceived(data []byte, conn transport.Conn) Received {
	msg, err := Decode(data)
	return Received{Message: msg, Conn: conn, Raw: data, Err: err}
}

func (r Received) Malformed() bool { return r.Err != nil }
