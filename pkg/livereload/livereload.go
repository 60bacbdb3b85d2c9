// Package livereload serves the development reload websocket.
//
// Browsers connect to ws://<host>:<port>/socket. When the server process
// restarts the socket closes; the client reconnects and reloads the page once
// the new process accepts the connection. Reload pushes an explicit reload to
// every connected browser, e.g. after a bundle rebuild.
package livereload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultPort is the port of the reload socket.
const DefaultPort = 8282

// Path is the websocket endpoint.
const Path = "/socket"

// Server tracks connected browsers.
type Server struct {
	clients  map[*websocket.Conn]struct{}
	logger   *slog.Logger
	upgrader websocket.Upgrader
	mu       sync.Mutex
}

// New creates a reload server.
func New(logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{
		clients: make(map[*websocket.Conn]struct{}),
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Development only; the page and the socket live on different ports.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the request and keeps the connection until the browser
// goes away.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !websocket.IsWebSocketUpgrade(r) {
		http.Error(w, "request isn't trying to upgrade to websocket", http.StatusBadRequest)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("livereload upgrade failed", slog.Any("error", err))
		return
	}

	s.mu.Lock()
	s.clients[conn] = struct{}{}
	s.mu.Unlock()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	s.drop(conn)
}

// Reload tells every connected browser to reload.
func (s *Server) Reload() {
	s.mu.Lock()
	clients := make([]*websocket.Conn, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		_ = c.SetWriteDeadline(time.Now().Add(time.Second))
		if err := c.WriteMessage(websocket.TextMessage, []byte(`{"type":"reload"}`)); err != nil {
			s.drop(c)
		}
	}
}

// Clients returns the number of connected browsers.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Close disconnects every browser.
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		_ = c.Close()
		delete(s.clients, c)
	}
}

func (s *Server) drop(c *websocket.Conn) {
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
	_ = c.Close()
}

// Start listens on port in the background until ctx is done.
// It is shaped as an App startup hook.
func (s *Server) Start(port int) func(context.Context) error {
	return func(ctx context.Context) error {
		mux := http.NewServeMux()
		mux.Handle(Path, s)

		ln, err := net.Listen("tcp", ":"+strconv.Itoa(port))
		if err != nil {
			return fmt.Errorf("livereload: listen: %w", err)
		}
		srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		go func() {
			<-ctx.Done()
			s.Close()
			_ = srv.Close()
		}()
		go func() {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.logger.Error("livereload server stopped", slog.Any("error", err))
			}
		}()

		s.logger.Info("livereload listening", slog.Int("port", port))
		return nil
	}
}

// Script returns the client snippet appended to documents in development.
func Script(port int) string {
	return fmt.Sprintf(`<script>function liveReloadConnect(config){`+
		`var protocol=location.protocol==="https:"?"wss:":"ws:";`+
		`var ws=new WebSocket(protocol+"//"+location.hostname+":%d%s");`+
		`ws.onopen=function(){if(config&&typeof config.onOpen==="function"){config.onOpen();}};`+
		`ws.onmessage=function(e){try{if(JSON.parse(e.data).type==="reload"){location.reload();}}catch(_){}};`+
		`ws.onclose=function(){console.log("Livereload socket closed. Reconnecting...");`+
		`setTimeout(function(){liveReloadConnect({onOpen:function(){location.reload();}});},500);};`+
		`ws.onerror=function(err){console.error(err);};}`+
		`liveReloadConnect();</script>`, port, Path)
}
