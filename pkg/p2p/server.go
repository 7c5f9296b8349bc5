package p2p

import (
	"errors"
	"net"
	"net/http"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/net/websocket"

	"github.com/0xphantomotr/mental/pkg/transport"
)

// Server is a transport.Transport that accepts peers on PeerPath and dials
// them at ws://<key>/peer.
type Server struct {
	cfg      Config
	logger   *zap.Logger
	dialer   *Dialer
	listener net.Listener
	http     *http.Server
	key      string

	identity chan string
	incoming chan transport.Conn
	quit     chan struct{}
	once     sync.Once

	mu    sync.RWMutex
	peers map[string]*Peer
}

var _ transport.Transport = (*Server)(nil)

func NewServer(cfg Config) *Server {
	cfg = cfg.withDefaults()
	return &Server{
		cfg:      cfg,
		logger:   cfg.Logger.Named("p2p"),
		identity: make(chan string, 1),
		incoming: make(chan transport.Conn, cfg.ReadBufferSize),
		quit:     make(chan struct{}),
		peers:    make(map[string]*Peer),
	}
}

// Start binds the listener, begins accepting peers and announces the
// server's key on Identity.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return err
	}
	s.listener = ln
	s.key = s.cfg.AdvertiseAddr
	if s.key == "" {
		s.key = ln.Addr().String()
	}
	s.dialer = &Dialer{cfg: s.cfg, origin: "http://" + s.key}
	s.http = &http.Server{Handler: s.Handler(), ReadHeaderTimeout: s.cfg.HandshakeTimeout}

	go func() {
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("peer listener stopped", zap.Error(err))
		}
	}()
	s.logger.Info("listening for peers", zap.String("addr", ln.Addr().String()), zap.String("key", s.key))
	s.identity <- s.key
	return nil
}

// Key is the address other peers dial to reach this server. It is empty
// until Start returns.
func (s *Server) Key() string { return s.key }

// Handler serves the peer endpoint. Start mounts it on its own listener;
// tests may mount it on an httptest server instead.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	wsHandler := websocket.Handler(s.acceptPeer)
	mux.HandleFunc(PeerPath, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		wsHandler.ServeHTTP(w, r)
	})
	return mux
}

func (s *Server) Identity() <-chan string { return s.identity }

func (s *Server) Incoming() <-chan transport.Conn { return s.incoming }

// acceptPeer runs for the lifetime of an inbound socket.
func (s *Server) acceptPeer(ws *websocket.Conn) {
	remote := ""
	if req := ws.Request(); req != nil {
		remote = req.RemoteAddr
	}
	p := newPeer(s.cfg, remote, true)
	p.attach(ws)
	if !s.addPeer(p) {
		_ = ws.Close()
		return
	}
	p.open()

	select {
	case s.incoming <- p:
	case <-s.quit:
		s.removePeer(p)
		return
	}
	s.logger.Debug("peer accepted", zap.String("conn", p.id), zap.String("remote", remote))

	go s.writeLoop(p, ws)
	s.readLoop(p, ws)
}

// Connect returns immediately. The handle opens once the socket is
// established; if the dial fails it never opens.
func (s *Server) Connect(remoteKey string) (transport.Conn, error) {
	select {
	case <-s.quit:
		return nil, transport.ErrClosed
	default:
	}
	if s.dialer == nil {
		return nil, transport.ErrNotOpen
	}

	p := newPeer(s.cfg, remoteKey, false)
	if !s.addPeer(p) {
		return nil, transport.ErrClosed
	}
	go s.dial(p)
	return p, nil
}

func (s *Server) dial(p *Peer) {
	ws, err := s.dialer.Dial(p.remote)
	if err != nil {
		s.logger.Warn("dial peer failed", zap.String("key", p.remote), zap.Error(err))
		s.removePeer(p)
		close(p.recv)
		return
	}
	if !p.attach(ws) {
		_ = ws.Close()
		close(p.recv)
		return
	}
	p.open()
	s.logger.Debug("peer dialled", zap.String("conn", p.id), zap.String("key", p.remote))

	go s.writeLoop(p, ws)
	s.readLoop(p, ws)
}

func (s *Server) readLoop(p *Peer, ws *websocket.Conn) {
	defer close(p.recv)
	defer s.removePeer(p)
	for {
		var data []byte
		if err := websocket.Message.Receive(ws, &data); err != nil {
			return
		}
		select {
		case p.recv <- data:
		case <-p.quit:
			return
		}
	}
}

func (s *Server) writeLoop(p *Peer, ws *websocket.Conn) {
	for {
		select {
		case data := <-p.outgoing:
			if err := websocket.Message.Send(ws, string(data)); err != nil {
				s.logger.Debug("peer write failed", zap.String("conn", p.id), zap.Error(err))
				s.removePeer(p)
				return
			}
		case <-p.quit:
			return
		}
	}
}

func (s *Server) addPeer(p *Peer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.quit:
		return false
	default:
	}
	s.peers[p.id] = p
	return true
}

func (s *Server) removePeer(p *Peer) {
	s.mu.Lock()
	delete(s.peers, p.id)
	s.mu.Unlock()
	p.close()
}

// PeerCount reports the number of live or dialling peers.
func (s *Server) PeerCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.peers)
}

func (s *Server) Close() error {
	var err error
	s.once.Do(func() {
		s.mu.Lock()
		close(s.quit)
		peers := s.peers
		s.peers = map[string]*Peer{}
		s.mu.Unlock()

		for _, p := range peers {
			p.close()
		}
		if s.http != nil {
			err = s.http.Close()
		}
	})
	return err
}
