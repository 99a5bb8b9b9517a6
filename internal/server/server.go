// Package server exposes running tables over WebSocket.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/lox/cardroom/internal/auth"
	"github.com/lox/cardroom/internal/controller"
	"github.com/lox/cardroom/internal/frame"
)

// Tables finds running controllers.
type Tables interface {
	Lookup(name string) (*controller.Controller, bool)
	Names() []string
}

// Server represents the WebSocket server
type Server struct {
	addr        string
	upgrader    websocket.Upgrader
	tables      Tables
	validator   auth.Validator
	logger      *log.Logger
	httpServer  *http.Server
	mu          sync.RWMutex
	connections map[*Connection]bool
}

// NewServer creates a new WebSocket server
func NewServer(addr string, tables Tables, validator auth.Validator, logger *log.Logger) *Server {
	s := &Server{
		addr: addr,
		upgrader: websocket.Upgrader{
			// Browsers connect from the felt page on any origin.
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		tables:      tables,
		validator:   validator,
		logger:      logger.WithPrefix("server"),
		connections: make(map[*Connection]bool),
	}
	s.httpServer = &http.Server{Addr: addr, Handler: s.Handler()}
	return s
}

// Handler returns the HTTP routes of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /tables", s.handleTables)
	mux.HandleFunc("GET /tables/{name}/ws", s.handleWebSocket)
	return mux
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("Starting WebSocket server", "addr", s.addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and closes the open ones.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)

	s.mu.Lock()
	for conn := range s.connections {
		_ = conn.Close()
	}
	s.mu.Unlock()
	return err
}

// ConnectionCount returns the number of open table connections.
func (s *Server) ConnectionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.connections)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "OK")
}

func (s *Server) handleTables(w http.ResponseWriter, r *http.Request) {
	infos := []TableInfo{}
	for _, name := range s.tables.Names() {
		c, ok := s.tables.Lookup(name)
		if !ok {
			continue
		}
		f := c.Frames().For(frame.Anonymous)
		info := TableInfo{Name: name, SeatCount: len(f.Seats), Users: []string{}, Game: f.Game}
		for _, seat := range f.Seats {
			if seat.User != "" {
				info.Users = append(info.Users, seat.User)
			}
		}
		infos = append(infos, info)
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(infos); err != nil {
		s.logger.Error("Failed to encode tables", "error", err)
	}
}

// credential extracts the token from the Authorization header, the token
// query parameter or, for development, the user query parameter.
func credential(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	q := r.URL.Query()
	if token := q.Get("token"); token != "" {
		return token
	}
	return q.Get("user")
}

func (s *Server) identify(r *http.Request) (string, int, error) {
	token := credential(r)
	if token == "" {
		return frame.Anonymous, http.StatusOK, nil
	}
	identity, err := s.validator.Validate(r.Context(), token)
	switch {
	case errors.Is(err, auth.ErrInvalidToken):
		return "", http.StatusUnauthorized, err
	case err != nil:
		return "", http.StatusServiceUnavailable, err
	}
	return identity.User, http.StatusOK, nil
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	c, ok := s.tables.Lookup(name)
	if !ok {
		http.Error(w, "table not found", http.StatusNotFound)
		return
	}

	user, status, err := s.identify(r)
	if err != nil {
		s.logger.Warn("Rejected connection", "table", name, "error", err)
		http.Error(w, http.StatusText(status), status)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection", "error", err)
		return
	}

	conn := NewConnection(ws, user, c, s.logger)
	s.mu.Lock()
	s.connections[conn] = true
	total := len(s.connections)
	s.mu.Unlock()
	s.logger.Info("Client connected", "table", name, "user", user, "total", total)

	conn.Start()
	go func() {
		<-conn.Done()
		s.mu.Lock()
		delete(s.connections, conn)
		s.mu.Unlock()
		s.logger.Info("Client disconnected", "table", name, "user", user)
	}()
}
