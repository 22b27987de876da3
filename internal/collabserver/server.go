// Package collabserver runs the collaboration session server: a websocket
// endpoint where clients announce themselves, receive the roster of
// everyone connected and exchange opaque edit payloads.
package collabserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/codefionn/codebridge/internal/logger"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultSendQueue is the per-connection send queue length.
const DefaultSendQueue = 256

// Options configures a Server.
type Options struct {
	// Addr is the listen address, e.g. "localhost:3001" or ":0".
	Addr string
	// SendQueue bounds the messages buffered per connection. A connection
	// whose queue is full is dropped.
	SendQueue int
}

// Server exposes a Hub over HTTP.
type Server struct {
	opts     Options
	hub      *Hub
	metrics  *metrics
	router   *httprouter.Router
	upgrader websocket.Upgrader
	log      *logger.Logger

	mu         sync.Mutex
	httpServer *http.Server
	listener   net.Listener
	cancel     context.CancelFunc
	stopped    bool
}

// NewServer creates a server. Nothing listens until Start.
func NewServer(opts Options) *Server {
	if opts.SendQueue <= 0 {
		opts.SendQueue = DefaultSendQueue
	}

	m := newMetrics()
	s := &Server{
		opts:    opts,
		hub:     newHub(m),
		metrics: m,
		router:  httprouter.New(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins
			},
		},
		log: logger.Global().WithPrefix("collab"),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.GET("/ws", s.handleWebSocket)
	s.router.GET("/healthz", s.handleHealth)
	s.router.GET("/roster", s.handleRoster)
	s.router.Handler(http.MethodGet, "/metrics", promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{}))
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Hub returns the hub serving this server's connections.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start binds the listen address and serves in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return errors.New("server stopped")
	}
	if s.httpServer != nil {
		return errors.New("server already started")
	}

	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.opts.Addr, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.listener = ln
	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          logger.StdLogger(s.log, slog.LevelWarn),
	}

	go s.hub.Run(ctx)

	srv := s.httpServer
	go func() {
		s.log.Info("collaboration server listening on %s", ln.Addr())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("HTTP server error: %v", err)
		}
	}()
	return nil
}

// Stop closes every connection and shuts the HTTP server down.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.httpServer == nil {
		return nil
	}

	s.log.Info("stopping collaboration server")
	s.cancel()
	<-s.hub.done

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := s.httpServer.Shutdown(ctx)
	s.httpServer = nil
	s.stopped = true
	if err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.opts.Addr
}

// URL returns the websocket URL of the server.
func (s *Server) URL() string {
	return "ws://" + s.Addr() + "/ws"
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed: %v", err)
		return
	}

	c := newConn(uuid.NewString(), s.hub, ws, s.opts.SendQueue)
	if !s.hub.join(c) {
		_ = ws.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server stopping"))
		ws.Close()
		return
	}

	s.log.Debug("connection %s from %s", c.id, r.RemoteAddr)
	go c.writePump()
	go c.readPump()
}

// handleHealth returns health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (s *Server) handleRoster(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	snap, err := s.hub.Snapshot(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(snap)
}
