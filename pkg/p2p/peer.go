package p2p

import (
	"sync"

	"github.com/google/uuid"
	"golang.org/x/net/websocket"

	"github.com/0xphantomotr/mental/pkg/transport"
)

// Peer is one WebSocket data channel. It implements transport.Conn.
type Peer struct {
	id       string
	remote   string
	inbound  bool
	opened   chan struct{}
	recv     chan []byte
	outgoing chan []byte
	quit     chan struct{}

	mu       sync.Mutex
	ws       *websocket.Conn
	isOpen   bool
	closed   bool
	openOnce sync.Once
	quitOnce sync.Once
}

func newPeer(cfg Config, remote string, inbound bool) *Peer {
	return &Peer{
		id:       uuid.NewString(),
		remote:   remote,
		inbound:  inbound,
		opened:   make(chan struct{}),
		recv:     make(chan []byte, cfg.ReadBufferSize),
		outgoing: make(chan []byte, cfg.WriteBufferSize),
		quit:     make(chan struct{}),
	}
}

func (p *Peer) ID() string { return p.id }

// Remote is the dialled key, or the remote socket address for inbound peers.
func (p *Peer) Remote() string { return p.remote }

// Inbound reports whether the remote side dialled us.
func (p *Peer) Inbound() bool { return p.inbound }

func (p *Peer) Opened() <-chan struct{} { return p.opened }

func (p *Peer) Receive() <-chan []byte { return p.recv }

func (p *Peer) Send(data []byte) error {
	p.mu.Lock()
	open, closed := p.isOpen, p.closed
	p.mu.Unlock()
	if closed {
		return transport.ErrClosed
	}
	if !open {
		return transport.ErrNotOpen
	}
	select {
	case p.outgoing <- append([]byte(nil), data...):
		return nil
	case <-p.quit:
		return transport.ErrClosed
	default:
		return transport.ErrBufferFull
	}
}

// attach binds an established socket. It reports false if the peer was
// closed while dialling.
func (p *Peer) attach(ws *websocket.Conn) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	p.ws = ws
	return true
}

func (p *Peer) open() {
	p.openOnce.Do(func() {
		p.mu.Lock()
		p.isOpen = true
		p.mu.Unlock()
		close(p.opened)
	})
}

func (p *Peer) close() {
	p.quitOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		ws := p.ws
		p.mu.Unlock()
		close(p.quit)
		if ws != nil {
			_ = ws.Close()
		}
	})
}
