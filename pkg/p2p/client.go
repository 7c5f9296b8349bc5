package p2p

import (
	"net"

	"golang.org/x/net/websocket"
)

type Dialer struct {
	cfg    Config
	origin string
}

// Dial opens a WebSocket to the peer whose key is addr.
func (d *Dialer) Dial(addr string) (*websocket.Conn, error) {
	wsCfg, err := websocket.NewConfig("ws://"+addr+PeerPath, d.origin)
	if err != nil {
		return nil, err
	}
	wsCfg.Dialer = &net.Dialer{Timeout: d.cfg.HandshakeTimeout}
	return websocket.DialConfig(wsCfg)
}
