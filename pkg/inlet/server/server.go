// Package server is a TCP transport for the http11 engine: it accepts
// connections, reads them in chunks and pushes every chunk into the
// connection's http11.Exchange.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/watt-toolkit/inlet/pkg/inlet/http11"
)

// shutdownPollInterval is how often Shutdown looks for idle connections.
const shutdownPollInterval = 50 * time.Millisecond

// Stats represents server statistics
type Stats struct {
	// Total number of connections accepted
	TotalConnections atomic.Uint64

	// Current number of active connections
	ActiveConnections atomic.Int64

	// Total number of responses sent
	TotalRequests atomic.Uint64

	// Total number of bytes read
	BytesRead atomic.Uint64

	// Total number of bytes written
	BytesWritten atomic.Uint64

	// Number of accept and transport errors
	ConnectionErrors atomic.Uint64

	// Number of requests answered with an error
	RequestErrors atomic.Uint64

	// Server start time
	StartTime time.Time
}

// Duration returns the time since the server started
func (s *Stats) Duration() time.Duration {
	return time.Since(s.StartTime)
}

// RequestsPerSecond returns the average requests per second
func (s *Stats) RequestsPerSecond() float64 {
	duration := s.Duration().Seconds()
	if duration == 0 {
		return 0
	}
	return float64(s.TotalRequests.Load()) / duration
}

// trackedConn is the shutdown view of one connection.
type trackedConn struct {
	conn net.Conn
	idle atomic.Bool // waiting for the first byte of a request
}

// Server serves HTTP/1.1 over TCP.
type Server struct {
	config  Config
	handler http11.Handler
	logger  *slog.Logger
	stats   Stats

	// Shutdown coordination
	mu       sync.Mutex
	listener net.Listener
	shutdown atomic.Bool
	done     chan struct{}
	wg       sync.WaitGroup

	// baseCtx is passed to every exchange and cancelled on forced close.
	baseCtx context.Context
	cancel  context.CancelFunc

	// Connection tracking
	conns   map[net.Conn]*trackedConn
	connsMu sync.Mutex

	// Connection semaphore (for limiting concurrent connections)
	connSem chan struct{}
}

// New creates a server that answers requests with handler.
func New(config Config, handler http11.Handler) *Server {
	if handler == nil {
		panic("server: handler is required")
	}
	config = config.withDefaults()

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		config:  config,
		handler: handler,
		logger:  config.Logger.With("component", "server"),
		done:    make(chan struct{}),
		baseCtx: ctx,
		cancel:  cancel,
		conns:   make(map[net.Conn]*trackedConn),
	}
	s.stats.StartTime = time.Now()

	if config.MaxConnections > 0 {
		s.connSem = make(chan struct{}, config.MaxConnections)
	}
	return s
}

// Stats returns server statistics
func (s *Server) Stats() *Stats {
	return &s.stats
}

// Addr returns the listener address, or nil before Serve.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// ListenAndServe listens on the configured address and serves requests
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr, err)
	}
	return s.Serve(ln)
}

// Serve accepts incoming connections on l until Shutdown or Close.
// It returns nil after a shutdown.
func (s *Server) Serve(l net.Listener) error {
	s.mu.Lock()
	if s.shutdown.Load() {
		s.mu.Unlock()
		l.Close()
		return nil
	}
	s.listener = l
	s.mu.Unlock()
	defer l.Close()

	s.logger.Info("listening", "addr", l.Addr().String())

	for {
		// Acquire connection slot if limit is set
		if s.connSem != nil {
			select {
			case s.connSem <- struct{}{}:
			case <-s.done:
				return nil
			}
		}

		conn, err := l.Accept()
		if err != nil {
			if s.connSem != nil {
				<-s.connSem
			}
			if s.shutdown.Load() {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			s.stats.ConnectionErrors.Add(1)
			s.logger.Warn("accept failed", "error", err)
			continue
		}

		s.stats.TotalConnections.Add(1)
		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

// handleConnection reads conn in chunks and pushes them into one exchange
// until either side closes.
func (s *Server) handleConnection(nc net.Conn) {
	defer s.wg.Done()
	if s.connSem != nil {
		defer func() { <-s.connSem }()
	}

	tc := s.trackConnection(nc)
	defer s.untrackConnection(nc)

	remote := nc.RemoteAddr().String()
	logger := s.config.Logger.With("conn_id", uuid.NewString(), "remote", remote)
	conn := newNetConnection(nc, s.config.WriteTimeout, s.written)
	defer conn.Close(context.Background())

	if s.config.OnConnect != nil {
		if err := s.config.OnConnect(nc); err != nil {
			logger.Info("connection rejected", "error", err)
			return
		}
	}
	logger.Debug("connection opened")

	ex := http11.NewExchange(conn, s.handler, s.config.exchangeConfig(logger, observer{s}))
	ex.Request().RemoteAddr = remote
	defer ex.Close()

	buf := make([]byte, s.config.ReadChunkSize)
	for {
		tc.idle.Store(ex.Request().Accumulator().Len() == 0)
		if s.shutdown.Load() && tc.idle.Load() {
			return
		}
		if s.config.IdleTimeout > 0 {
			nc.SetReadDeadline(time.Now().Add(s.config.IdleTimeout))
		}

		n, err := nc.Read(buf)
		tc.idle.Store(false)
		if n > 0 {
			s.read(n)
			if perr := ex.Push(s.baseCtx, buf[:n]); perr != nil {
				s.stats.ConnectionErrors.Add(1)
				logger.Warn("connection failed", "error", perr)
				return
			}
			if ex.Response().Closed() {
				logger.Debug("connection closed by server")
				return
			}
		}
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				logger.Debug("connection closed by peer")
			case errors.Is(err, os.ErrDeadlineExceeded):
				logger.Debug("connection idle timeout")
			case errors.Is(err, net.ErrClosed), s.shutdown.Load():
			default:
				s.stats.ConnectionErrors.Add(1)
				logger.Warn("read failed", "error", err)
			}
			return
		}
	}
}

// trackConnection adds a connection to tracking
func (s *Server) trackConnection(conn net.Conn) *trackedConn {
	tc := &trackedConn{conn: conn}
	s.connsMu.Lock()
	s.conns[conn] = tc
	s.connsMu.Unlock()

	s.stats.ActiveConnections.Add(1)
	if s.config.Metrics != nil {
		s.config.Metrics.connOpened()
	}
	return tc
}

// untrackConnection removes a connection from tracking
func (s *Server) untrackConnection(conn net.Conn) {
	s.connsMu.Lock()
	delete(s.conns, conn)
	s.connsMu.Unlock()

	s.stats.ActiveConnections.Add(-1)
	if s.config.Metrics != nil {
		s.config.Metrics.connClosed()
	}
}

// closeConnections closes tracked connections; with idleOnly set, only
// those waiting for a new request.
func (s *Server) closeConnections(idleOnly bool) {
	s.connsMu.Lock()
	conns := make([]net.Conn, 0, len(s.conns))
	for conn, tc := range s.conns {
		if !idleOnly || tc.idle.Load() {
			conns = append(conns, conn)
		}
	}
	s.connsMu.Unlock()

	for _, conn := range conns {
		conn.Close()
	}
}

// stopAccepting marks the server as shut down and closes the listener.
// It reports false when the server was already stopped.
func (s *Server) stopAccepting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.shutdown.CompareAndSwap(false, true) {
		return false
	}
	if s.listener != nil {
		s.listener.Close()
	}
	close(s.done)
	return true
}

// Shutdown gracefully shuts down the server: it stops accepting, closes
// idle connections and waits for in-flight requests. When ctx expires the
// remaining connections are closed and ctx.Err() is returned.
func (s *Server) Shutdown(ctx context.Context) error {
	if !s.stopAccepting() {
		return nil
	}
	s.logger.Info("shutting down", "active_connections", s.stats.ActiveConnections.Load())

	shutdownComplete := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(shutdownComplete)
	}()

	ticker := time.NewTicker(shutdownPollInterval)
	defer ticker.Stop()
	for {
		s.closeConnections(true)
		select {
		case <-shutdownComplete:
			s.cancel()
			return nil
		case <-ctx.Done():
			s.cancel()
			s.closeConnections(false)
			<-shutdownComplete
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Close immediately closes the server and all active connections
func (s *Server) Close() error {
	if !s.stopAccepting() {
		return nil
	}
	s.cancel()
	s.closeConnections(false)
	s.wg.Wait()
	return nil
}

func (s *Server) read(n int) {
	s.stats.BytesRead.Add(uint64(n))
	if s.config.Metrics != nil {
		s.config.Metrics.read(n)
	}
}

func (s *Server) written(n int) {
	s.stats.BytesWritten.Add(uint64(n))
	if s.config.Metrics != nil {
		s.config.Metrics.written(n)
	}
}

// observer feeds exchange outcomes into Stats and Metrics.
type observer struct {
	s *Server
}

func (o observer) RequestDone(method string, status int, elapsed time.Duration) {
	if o.s.config.Metrics != nil {
		o.s.config.Metrics.RequestDone(method, status, elapsed)
	}
	o.s.stats.TotalRequests.Add(1)
}

func (o observer) RequestFailed(err error) {
	if o.s.config.Metrics != nil {
		o.s.config.Metrics.RequestFailed(err)
	}
	o.s.stats.RequestErrors.Add(1)
}

func (o observer) BufferGrown(from, to int) {
	if o.s.config.Metrics != nil {
		o.s.config.Metrics.BufferGrown(from, to)
	}
}
