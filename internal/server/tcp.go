package server

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/gokatarajesh/trivia-arena/internal/session"
)

// ConnHandler serves one accepted client until it disconnects.
type ConnHandler interface {
	Serve(ctx context.Context, transport session.Transport)
}

// TCPServer accepts line-protocol clients and hands each to a ConnHandler.
type TCPServer struct {
	addr    string
	handler ConnHandler
	logger  zerolog.Logger

	mu       sync.Mutex
	ln       net.Listener
	conns    map[net.Conn]struct{}
	closing  bool
	wg       sync.WaitGroup
	listened chan struct{}
}

// NewTCPServer creates a server for addr (host:port).
func NewTCPServer(addr string, handler ConnHandler, logger zerolog.Logger) *TCPServer {
	return &TCPServer{
		addr:     addr,
		handler:  handler,
		logger:   logger.With().Str("component", "tcp_server").Logger(),
		conns:    make(map[net.Conn]struct{}),
		listened: make(chan struct{}),
	}
}

// ListenAndServe binds the configured address and serves until ctx ends or
// Shutdown is called.
func (s *TCPServer) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln. It returns nil after a shutdown.
func (s *TCPServer) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		_ = ln.Close()
		return nil
	}
	s.ln = ln
	close(s.listened)
	s.mu.Unlock()

	s.logger.Info().Str("addr", ln.Addr().String()).Msg("tcp server listening")

	stop := context.AfterFunc(ctx, func() { _ = s.Shutdown(context.Background()) })
	defer stop()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.isClosing() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Warn().Err(err).Msg("accept failed")
			time.Sleep(50 * time.Millisecond)
			continue
		}
		if !s.track(conn) {
			_ = conn.Close()
			return nil
		}
		go func() {
			defer s.wg.Done()
			defer s.untrack(conn)
			s.logger.Debug().Str("remote", conn.RemoteAddr().String()).Msg("client connected")
			s.handler.Serve(ctx, session.NewLineTransport(conn))
		}()
	}
}

// Addr returns the bound address once the server is listening.
func (s *TCPServer) Addr() net.Addr {
	<-s.listened
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ln.Addr()
}

// Shutdown stops accepting, closes live connections and waits for their
// handlers to return or ctx to end.
func (s *TCPServer) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.closing {
		s.closing = true
		if s.ln != nil {
			_ = s.ln.Close()
		}
		for conn := range s.conns {
			_ = conn.Close()
		}
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *TCPServer) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.conns[conn] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *TCPServer) untrack(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, conn)
	_ = conn.Close()
}

func (s *TCPServer) isClosing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closing
}
