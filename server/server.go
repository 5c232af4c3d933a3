// Package server owns the TCP listener: accepting connections, running each
// one's read loop, and handing lines to the chat package's dispatcher.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/avbezrukov/linechat/chat"
	"github.com/avbezrukov/linechat/config"
	"github.com/avbezrukov/linechat/state"
)

// shutdownDrain is how long ListenAndServe waits for in-flight connections to
// close on their own once the listener stops accepting, before giving up and
// returning anyway. Grounded on the teacher's waitForShutdown, which used the
// same fixed five-second allowance.
const shutdownDrain = 5 * time.Second

// Server accepts TCP connections and drives one connection loop per client.
type Server struct {
	cfg     config.Config
	chat    *chat.Service
	logger  *slog.Logger
	limiter *IPRateLimiter

	mu       sync.Mutex
	listener net.Listener
	wg       sync.WaitGroup
}

// New builds a Server. chatSvc has already been wired to the roster that
// backs this process's chat room.
func New(cfg config.Config, chatSvc *chat.Service, logger *slog.Logger) *Server {
	return &Server{
		cfg:     cfg,
		chat:    chatSvc,
		logger:  logger,
		limiter: NewIPRateLimiter(cfg.ConnRatePerMinute, cfg.ConnBurst, time.Minute),
	}
}

// ListenAndServe binds the configured host:port and serves connections until
// ctx is cancelled or Shutdown is called. It returns once every accepted
// connection's goroutine has exited, or shutdownDrain has elapsed, whichever
// comes first.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	s.logger.Info("chat server listening", "addr", addr)

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				break
			}
			s.logger.Error("accept failed", "err", err)
			continue
		}

		ip, _, err := net.SplitHostPort(conn.RemoteAddr().String())
		if err != nil {
			ip = conn.RemoteAddr().String()
		}
		if !s.limiter.Allow(ip) {
			s.logger.Warn("connection rejected by rate limiter", "remote", ip)
			conn.Close()
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(conn)
		}()
	}

	if !waitForDrain(&s.wg, shutdownDrain) {
		s.logger.Error("shutdown finished, but some connections did not close cleanly")
	} else {
		s.logger.Info("shutdown finished")
	}
	return nil
}

// Shutdown closes the listener, which causes ListenAndServe's accept loop to
// return. It's a no-op if the server was never started.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln == nil {
		return nil
	}
	return ln.Close()
}

// handleConnection runs one client's full lifecycle: join, read loop,
// cleanup. Each read is treated as exactly one command line, per this
// protocol's documented "one recv = one command" framing — there is no
// newline-based reframing of partial or combined reads.
func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	peer := conn.RemoteAddr().String()
	sess := state.NewSession(peer, conn, s.cfg.HistorySize)
	s.chat.Join(sess)
	connectedAt := time.Now()
	s.logger.Info("connection accepted", "peer", peer, "name", sess.Name())

	defer func() {
		s.chat.Leave(sess)
		s.logger.Info("connection closed", "peer", peer, "name", sess.Name(),
			"connected", humanize.Time(connectedAt))
	}()

	buf := make([]byte, 1024)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			s.chat.Dispatch(sess, string(buf[:n]))
		}
		if err != nil {
			return
		}
	}
}

// waitForDrain returns true if wg completes within timeout, false if it
// doesn't. This is the same escape hatch the teacher used: a clean shutdown
// waits for every connection goroutine to exit, but a hung client must not
// block the process forever.
func waitForDrain(wg *sync.WaitGroup, timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}
