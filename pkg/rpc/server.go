package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"expvar"
	"net/http"
	"strconv"

	"github.com/0xphantomotr/mental/pkg/coordinator"
	"github.com/0xphantomotr/mental/pkg/journal"
	"github.com/0xphantomotr/mental/pkg/player"
	"github.com/0xphantomotr/mental/pkg/room"
)

// Session is the part of a running room the status server reads.
type Session interface {
	Current() (room.Room, bool)
	State() coordinator.State
}

type HealthResponse struct {
	Status string `json:"status"`
	State  string `json:"state"`
}

type RoomResponse struct {
	State   string          `json:"state"`
	Me      player.Player   `json:"me"`
	Owner   player.Player   `json:"owner"`
	Players []player.Player `json:"players"`
	Locked  bool            `json:"locked"`
}

type HistoryResponse struct {
	Total   int             `json:"total"`
	Entries []journal.Entry `json:"entries"`
}

type Server struct {
	session    Session
	journal    *journal.Journal
	httpServer *http.Server
}

// NewServer exposes session and, when non-nil, its journal over HTTP.
func NewServer(session Session, j *journal.Journal, listenAddr string) *Server {
	mux := http.NewServeMux()
	srv := &Server{session: session, journal: j}
	mux.HandleFunc("/healthz", srv.handleHealth)
	mux.HandleFunc("/room", srv.handleRoom)
	mux.HandleFunc("/history", srv.handleHistory)
	mux.HandleFunc("/history/latest", srv.handleLatest)
	mux.Handle("/debug/vars", expvar.Handler())
	srv.httpServer = &http.Server{Addr: listenAddr, Handler: mux}
	return srv
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", State: s.session.State().String()})
}

func (s *Server) handleRoom(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	current, ok := s.session.Current()
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse(coordinator.ErrRoomNotReady))
		return
	}
	writeJSON(w, http.StatusOK, RoomResponse{
		State:   s.session.State().String(),
		Me:      current.Me(),
		Owner:   current.Owner(),
		Players: current.Players(),
		Locked:  current.IsPlayerLocked(),
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, errorPayload{Error: "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	var entries []journal.Entry
	if s.journal != nil {
		var err error
		if entries, err = s.journal.Entries(); err != nil {
			writeJSON(w, http.StatusInternalServerError, errorResponse(err))
			return
		}
	}
	total := len(entries)
	if limit > 0 && limit < total {
		entries = entries[total-limit:]
	}
	if entries == nil {
		entries = []journal.Entry{}
	}
	writeJSON(w, http.StatusOK, HistoryResponse{Total: total, Entries: entries})
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.journal == nil {
		writeJSON(w, http.StatusNotFound, errorResponse(journal.ErrNotFound))
		return
	}
	entry, err := s.journal.Latest()
	switch {
	case errors.Is(err, journal.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse(err))
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, errorResponse(err))
	default:
		writeJSON(w, http.StatusOK, entry)
	}
}

// Helpers

type errorPayload struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func errorResponse(err error) errorPayload {
	return errorPayload{Error: err.Error()}
}
