// Package server exposes the relay over HTTP: the websocket upgrade gateway,
// the health check, and a stats endpoint.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"pairlink/internal/relay"
	"pairlink/internal/ws"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type Server struct {
	reg *relay.Registry
}

func New(reg *relay.Registry) *Server {
	return &Server{reg: reg}
}

// Router builds the HTTP surface. Any path below the root is a room code,
// taken verbatim; the root answers the health check.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleRoot)
	r.Get("/stats", s.handleStats)
	r.Get("/*", s.handleUpgrade)
	notFound := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}
	r.NotFound(notFound)
	r.MethodNotAllowed(notFound)
	return r
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	// An upgrade to the root carries an empty room code: abort the socket
	// without completing the handshake.
	if websocket.IsWebSocketUpgrade(r) {
		abort(w)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte("Relay server is healthy and running."))
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	if !websocket.IsWebSocketUpgrade(r) {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	code := chi.URLParam(r, "*")
	if code == "" {
		abort(w)
		return
	}

	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("upgrade failed", "room", code, "error", err)
		return
	}

	conn := ws.NewConn(uuid.New().String(), code, wsConn, s.reg)
	conn.Start()
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	rooms, clients := s.reg.Stats()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int{"rooms": rooms, "clients": clients})
}

// abort drops the underlying TCP connection with no HTTP response.
func abort(w http.ResponseWriter) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	conn, _, err := hj.Hijack()
	if err != nil {
		return
	}
	conn.Close()
}
