package gdb

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/ethereum/go-ethereum/log"
	"golang.org/x/sync/errgroup"

	"github.com/rvemu/rvemu/rvgo/fast"
)

// Server accepts debugger connections, one client at a time.
type Server struct {
	core  *fast.Core
	log   log.Logger
	trace bool

	ln net.Listener

	mu     sync.Mutex
	active net.Conn
}

// Listen binds the TCP address, e.g. ":1234".
func Listen(addr string, core *fast.Core, logger log.Logger, trace bool) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return &Server{core: core, log: logger, trace: trace, ln: ln}, nil
}

func (s *Server) Addr() net.Addr {
	return s.ln.Addr()
}

// Serve handles clients until ctx is cancelled or accepting fails. Cancelling
// ctx closes the listener and the active connection.
func (s *Server) Serve(ctx context.Context) error {
	s.log.Info("Waiting for debugger", "addr", s.ln.Addr())
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		_ = s.ln.Close()
		s.mu.Lock()
		if s.active != nil {
			_ = s.active.Close()
		}
		s.mu.Unlock()
		return nil
	})
	g.Go(func() error {
		for {
			conn, err := s.ln.Accept()
			if err != nil {
				if gctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("accept: %w", err)
			}
			s.serveConn(gctx, conn)
			if gctx.Err() != nil {
				return nil
			}
		}
	})
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	s.mu.Lock()
	s.active = conn
	s.mu.Unlock()
	if ctx.Err() != nil {
		// cancelled between Accept and registering the connection
		_ = conn.Close()
	}
	defer func() {
		s.mu.Lock()
		s.active = nil
		s.mu.Unlock()
		_ = conn.Close()
	}()

	l := s.log.New("remote", conn.RemoteAddr())
	sess := NewSession(conn, s.core, l)
	sess.Trace = s.trace
	if err := sess.Serve(); err != nil && !errors.Is(err, net.ErrClosed) {
		l.Error("Debug session failed", "err", err)
	}
}

// Close stops accepting new clients.
func (s *Server) Close() error {
	return s.ln.Close()
}
