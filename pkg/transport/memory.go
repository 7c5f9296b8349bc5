package transport

import (
	"sync"

	"github.com/google/uuid"
)

const memoryBuffer = 256

// Network is an in-process switchboard connecting MemoryTransports by key.
// Connecting to an unknown key yields a handle that never opens, which is
// how an unreachable peer looks to the coordinator.
type Network struct {
	mu    sync.Mutex
	peers map[string]*MemoryTransport
}

func NewNetwork() *Network {
	return &Network{peers: make(map[string]*MemoryTransport)}
}

// Join registers a transport under key. Its identity fires immediately.
func (n *Network) Join(key string) *MemoryTransport {
	t := n.join(key)
	t.AnnounceIdentity()
	return t
}

// JoinSilent registers a transport whose identity is only announced once
// AnnounceIdentity is called.
func (n *Network) JoinSilent(key string) *MemoryTransport {
	return n.join(key)
}

func (n *Network) join(key string) *MemoryTransport {
	t := &MemoryTransport{
		key:      key,
		network:  n,
		identity: make(chan string, 1),
		incoming: make(chan Conn, memoryBuffer),
		quit:     make(chan struct{}),
	}
	n.mu.Lock()
	n.peers[key] = t
	n.mu.Unlock()
	return t
}

func (n *Network) lookup(key string) (*MemoryTransport, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	t, ok := n.peers[key]
	return t, ok
}

func (n *Network) leave(key string) {
	n.mu.Lock()
	delete(n.peers, key)
	n.mu.Unlock()
}

// MemoryTransport implements Transport over a Network.
type MemoryTransport struct {
	key      string
	network  *Network
	identity chan string
	incoming chan Conn
	once     sync.Once
	announce sync.Once
	quit     chan struct{}

	mu    sync.Mutex
	conns []*MemoryConn
}

func (t *MemoryTransport) Key() string { return t.key }

// AnnounceIdentity fires the identity event. Later calls are no-ops.
func (t *MemoryTransport) AnnounceIdentity() {
	t.announce.Do(func() {
		t.identity <- t.key
	})
}

func (t *MemoryTransport) Identity() <-chan string { return t.identity }

func (t *MemoryTransport) Incoming() <-chan Conn { return t.incoming }

func (t *MemoryTransport) Connect(remoteKey string) (Conn, error) {
	select {
	case <-t.quit:
		return nil, ErrClosed
	default:
	}

	local := newMemoryConn()
	t.track(local)

	remote, ok := t.network.lookup(remoteKey)
	if !ok {
		return local, nil
	}
	peer := newMemoryConn()
	local.peer, peer.peer = peer, local

	select {
	case <-remote.quit:
		return local, nil
	case remote.incoming <- peer:
	default:
		return local, nil
	}
	remote.track(peer)
	peer.open()
	local.open()
	return local, nil
}

// Conns returns every handle this transport has created or accepted.
func (t *MemoryTransport) Conns() []*MemoryConn {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*MemoryConn, len(t.conns))
	copy(out, t.conns)
	return out
}

func (t *MemoryTransport) track(c *MemoryConn) {
	t.mu.Lock()
	t.conns = append(t.conns, c)
	t.mu.Unlock()
}

func (t *MemoryTransport) Close() error {
	t.once.Do(func() {
		close(t.quit)
		t.network.leave(t.key)
		for _, c := range t.Conns() {
			c.drop()
			if c.peer != nil {
				c.peer.drop()
			}
		}
	})
	return nil
}

// MemoryConn is one end of an in-memory data channel.
type MemoryConn struct {
	id     string
	opened chan struct{}
	recv   chan []byte
	peer   *MemoryConn

	mu      sync.Mutex
	isOpen  bool
	dropped bool
	sent    [][]byte
}

func newMemoryConn() *MemoryConn {
	return &MemoryConn{
		id:     uuid.NewString(),
		opened: make(chan struct{}),
		recv:   make(chan []byte, memoryBuffer),
	}
}

func (c *MemoryConn) ID() string { return c.id }

func (c *MemoryConn) Opened() <-chan struct{} { return c.opened }

func (c *MemoryConn) Receive() <-chan []byte { return c.recv }

func (c *MemoryConn) Send(data []byte) error {
	c.mu.Lock()
	open, dropped := c.isOpen, c.dropped
	if open && !dropped {
		c.sent = append(c.sent, append([]byte(nil), data...))
	}
	c.mu.Unlock()
	if dropped {
		return ErrClosed
	}
	if !open || c.peer == nil {
		return ErrNotOpen
	}
	return c.peer.deliver(data)
}

// Sent returns copies of every payload written on this end.
func (c *MemoryConn) Sent() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.sent))
	copy(out, c.sent)
	return out
}

func (c *MemoryConn) deliver(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dropped {
		return ErrClosed
	}
	select {
	case c.recv <- append([]byte(nil), data...):
		return nil
	default:
		return ErrBufferFull
	}
}

func (c *MemoryConn) open() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.isOpen {
		return
	}
	c.isOpen = true
	close(c.opened)
}

func (c *MemoryConn) drop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dropped {
		return
	}
	c.dropped = true
	close(c.recv)
}
