package daemon

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/albertocavalcante/modmake/internal/log"
)

// Server serves one project's compiler on a Unix socket.
type Server struct {
	paths     *Paths
	context   string
	version   string
	handler   *Handler
	listener  net.Listener
	startTime time.Time
	baseCtx   context.Context

	clientsMu sync.Mutex
	clients   map[*clientConn]struct{}

	ready        chan struct{}
	shutdown     chan struct{}
	shutdownOnce sync.Once
	closeOnce    sync.Once
	wg           sync.WaitGroup
	shutdownErr  error
}

// clientConn is one connected client. Responses are written in request
// order from the client's goroutine.
type clientConn struct {
	conn    net.Conn
	encoder *json.Encoder
	decoder *json.Decoder
	once    sync.Once
}

func (c *clientConn) close() {
	c.once.Do(func() { _ = c.conn.Close() })
}

// ServerConfig configures the daemon server.
type ServerConfig struct {
	Paths   *Paths
	Context string
	Version string
	Builder Builder
}

// NewServer creates a server. It does not listen until Start.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Builder == nil {
		return nil, errors.New("daemon: nil builder")
	}
	if cfg.Paths == nil {
		cfg.Paths = ProjectPaths(cfg.Context)
	}
	s := &Server{
		paths:     cfg.Paths,
		context:   cfg.Context,
		version:   cfg.Version,
		clients:   make(map[*clientConn]struct{}),
		ready:     make(chan struct{}),
		shutdown:  make(chan struct{}),
		startTime: time.Now(),
	}
	s.handler = NewHandler(s, cfg.Builder)
	return s, nil
}

// Ready is closed once the server accepts connections.
func (s *Server) Ready() <-chan struct{} { return s.ready }

// Start listens on the project socket and serves until ctx is cancelled or a
// client requests shutdown.
func (s *Server) Start(ctx context.Context) error {
	logger := log.Component("daemon")

	if status := GetStatus(s.paths); status.Running && status.PID != os.Getpid() {
		return fmt.Errorf("daemon already running with pid %d", status.PID)
	}
	if _, err := CleanupStale(s.paths); err != nil {
		logger.Warn("failed to clean up stale files", "error", err)
	}
	if err := s.paths.EnsureDir(); err != nil {
		return fmt.Errorf("failed to create daemon directory: %w", err)
	}

	listener, err := net.Listen("unix", s.paths.Socket)
	if err != nil {
		return fmt.Errorf("failed to create socket: %w", err)
	}
	s.listener = listener

	if err := os.Chmod(s.paths.Socket, 0o600); err != nil {
		_ = listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}
	if err := s.paths.WritePID(); err != nil {
		_ = listener.Close()
		return fmt.Errorf("failed to write PID file: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.baseCtx = ctx

	logger.Info("daemon started", "pid", os.Getpid(), "socket", s.paths.Socket, "context", s.context)

	s.wg.Add(1)
	go s.acceptLoop()
	close(s.ready)

	select {
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	case <-s.shutdown:
		logger.Info("shutdown requested via RPC")
	}
	cancel()
	return s.Shutdown()
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	logger := log.Component("daemon")

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			logger.Warn("accept error", "error", err)
			continue
		}

		client := &clientConn{
			conn:    conn,
			encoder: json.NewEncoder(conn),
			decoder: json.NewDecoder(bufio.NewReader(conn)),
		}
		s.clientsMu.Lock()
		s.clients[client] = struct{}{}
		n := len(s.clients)
		s.clientsMu.Unlock()
		logger.Debug("client connected", "client_count", n)

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleClient(client)
		}()
	}
}

// handleClient processes requests from a single client until it
// disconnects or sends something that is not JSON.
func (s *Server) handleClient(client *clientConn) {
	logger := log.Component("daemon")
	defer func() {
		client.close()
		s.clientsMu.Lock()
		delete(s.clients, client)
		s.clientsMu.Unlock()
	}()

	for {
		var req Request
		if err := client.decoder.Decode(&req); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				return
			}
			logger.Debug("failed to decode request", "error", err)
			_ = client.encoder.Encode(NewErrorResponse(nil, ErrCodeParseError, "Parse error"))
			return
		}

		var resp *Response
		if req.JSONRPC != JSONRPCVersion {
			resp = NewErrorResponse(req.ID, ErrCodeInvalidRequest, "Invalid Request: unsupported JSON-RPC version")
		} else {
			resp = s.handler.HandleRequest(s.baseCtx, &req)
		}
		if err := client.encoder.Encode(resp); err != nil {
			logger.Debug("failed to send response", "error", err)
			return
		}
		if req.Method == MethodShutdown && resp.Error == nil {
			s.RequestShutdown()
		}
	}
}

// RequestShutdown asks Start to return.
func (s *Server) RequestShutdown() {
	s.shutdownOnce.Do(func() { close(s.shutdown) })
}

// Shutdown closes the listener and every client, then removes the daemon
// files. It is safe to call more than once.
func (s *Server) Shutdown() error {
	s.closeOnce.Do(func() {
		logger := log.Component("daemon")

		if s.listener != nil {
			if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
				logger.Warn("failed to close listener", "error", err)
			}
		}

		s.clientsMu.Lock()
		for client := range s.clients {
			client.close()
		}
		s.clientsMu.Unlock()

		done := make(chan struct{})
		go func() {
			s.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			logger.Warn("shutdown timed out waiting for clients")
		}

		if err := s.paths.Cleanup(); err != nil {
			logger.Warn("failed to clean up daemon files", "error", err)
			s.shutdownErr = err
		}
		logger.Info("daemon stopped")
	})
	return s.shutdownErr
}

// Uptime returns how long the server has been running.
func (s *Server) Uptime() time.Duration {
	return time.Since(s.startTime)
}
