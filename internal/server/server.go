// Package server exposes chart sessions over websocket.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/amirphl/chart-exerciser/internal/config"
	"github.com/amirphl/chart-exerciser/internal/session"
	"github.com/amirphl/chart-exerciser/internal/utils"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const writeWait = 10 * time.Second

// Server accepts websocket connections and runs one session per connection.
type Server struct {
	cfg      config.ServerConfig
	protocol *session.Protocol
	upgrader websocket.Upgrader
	logger   zerolog.Logger

	active atomic.Int64

	mu      sync.Mutex
	conns   map[*websocket.Conn]struct{}
	httpSrv *http.Server
}

func New(cfg config.ServerConfig, protocol *session.Protocol) *Server {
	s := &Server{
		cfg:      cfg,
		protocol: protocol,
		logger:   utils.GetLogger("server"),
		conns:    make(map[*websocket.Conn]struct{}),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// checkOrigin allows any origin unless allowed_origins is set. Requests
// without an Origin header are not from browsers and are let through.
func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.cfg.AllowedOrigins {
		if allowed == origin {
			return true
		}
	}
	return false
}

// Handler routes the session socket, the ticker list, the health check and
// the optional static client.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(s.cfg.SocketPath, s.serveWS)
	mux.HandleFunc("/api/tickers", s.serveTickers)
	mux.HandleFunc("/health", s.serveHealth)
	if s.cfg.StaticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(s.cfg.StaticDir)))
	}
	return mux
}

// ActiveSessions returns the number of connected sessions.
func (s *Server) ActiveSessions() int {
	return int(s.active.Load())
}

// ListenAndServe blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	s.mu.Lock()
	s.httpSrv = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	srv := s.httpSrv
	s.mu.Unlock()

	s.logger.Info().Str("addr", s.cfg.Addr).Str("socket", s.cfg.SocketPath).Msg("Listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and closes the open sessions.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpSrv
	for conn := range s.conns {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		conn.Close()
	}
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func (s *Server) track(conn *websocket.Conn) {
	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()
	s.active.Add(1)
}

func (s *Server) untrack(conn *websocket.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
	s.active.Add(-1)
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	s.track(conn)
	defer s.untrack(conn)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := newWSChannel(conn, s.cfg.ReadTimeout)
	go ch.keepalive(ctx, s.cfg.PingInterval)

	sess := s.protocol.NewSession()
	s.logger.Info().Str("session_id", sess.ID()).Str("remote", r.RemoteAddr).Msg("Client connected")

	err = sess.Serve(ctx, ch)
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
		s.logger.Info().Str("session_id", sess.ID()).Msg("Client disconnected")
		return
	}
	s.logger.Warn().Err(err).Str("session_id", sess.ID()).Msg("Client connection lost")
}

func (s *Server) serveTickers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"tickers": s.protocol.Catalog().Symbols(),
	})
}

func (s *Server) serveHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"tickers":  len(s.protocol.Catalog().Symbols()),
		"sessions": s.ActiveSessions(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
