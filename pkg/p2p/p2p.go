// Package p2p carries room traffic between processes over WebSocket. Each
// node listens on /peer and is known to others by its advertised host:port.
package p2p

import (
	"time"

	"go.uber.org/zap"
)

const (
	PeerPath = "/peer"

	defaultHandshakeTimeout = 5 * time.Second
	defaultWriteBuffer      = 32
	defaultReadBuffer       = 64
)

type Config struct {
	ListenAddr string
	// AdvertiseAddr is the key other peers dial. It defaults to the bound
	// listener address.
	AdvertiseAddr    string
	HandshakeTimeout time.Duration
	ReadBufferSize   int
	WriteBufferSize  int
	Logger           *zap.Logger
}

func (c Config) withDefaults() Config {
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = defaultHandshakeTimeout
	}
	if c.ReadBufferSize <= 0 {
		c.ReadBufferSize = defaultReadBuffer
	}
	if c.WriteBufferSize <= 0 {
		c.WriteBufferSize = defaultWriteBuffer
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}
