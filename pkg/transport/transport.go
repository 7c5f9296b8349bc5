// Package transport defines the boundary between the room coordinator and
// whatever moves bytes between peers. Implementations deliver every event on
// channels so the coordinator can multiplex them from a single goroutine.
package transport

import "errors"

var (
	ErrClosed     = errors.New("transport: closed")
	ErrNotOpen    = errors.New("transport: connection not open")
	ErrBufferFull = errors.New("transport: send buffer full")
)

// Conn is a handle to one bidirectional, ordered data channel to a remote
// peer. Handles compare by identity.
type Conn interface {
	// ID is a process-unique handle id, useful for logging only.
	ID() string
	// Opened is closed once the channel becomes writable. It never closes
	// for a connection that fails to open.
	Opened() <-chan struct{}
	// Receive yields one item per inbound payload and is closed when the
	// channel drops.
	Receive() <-chan []byte
	// Send is best effort. No delivery guarantee is surfaced.
	Send(data []byte) error
}

// Transport produces peer identity and connection events.
type Transport interface {
	// Identity fires once with the local peer key.
	Identity() <-chan string
	// Incoming yields every connection opened by a remote peer.
	Incoming() <-chan Conn
	// Connect starts an outbound connection and returns immediately.
	// Completion is observed through the returned handle's Opened channel.
	Connect(remoteKey string) (Conn, error)
	Close() error
}
