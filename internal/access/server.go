package access

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/iotgw/device-gateway/internal/kvs"
)

// Server accepts device TCP connections and spawns one Session per
// connection, mirroring the goroutine-per-connection shape of a
// connection manager: each accepted socket gets its own
// context-scoped goroutine, and canceling the context passed to Serve
// stops the accept loop and every session, with Serve waiting for them
// to drain.
type Server struct {
	kv              *kvs.Client
	heartbeatPeriod time.Duration
	log             *slog.Logger

	mu       sync.Mutex
	listener net.Listener
	wg       sync.WaitGroup
	active   atomic.Int64
}

// NewServer builds a Server. heartbeatPeriod is the liveness window
// applied to every session it accepts (spec §4.2, §6).
func NewServer(kv *kvs.Client, heartbeatPeriod time.Duration) *Server {
	return &Server{
		kv:              kv,
		heartbeatPeriod: heartbeatPeriod,
		log:             slog.With("component", "access"),
	}
}

// ActiveSessions reports the number of sessions currently in their
// ACTIVE (or still-handshaking) loop. No HTTP endpoint exposes it.
func (s *Server) ActiveSessions() int64 {
	return s.active.Load()
}

// Serve binds addr and accepts connections until ctx is canceled or a
// fatal listener error occurs. It blocks until every spawned session
// goroutine has returned.
func (s *Server) Serve(ctx context.Context, addr string) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("access: listen %s: %w", addr, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	s.log.Info("access service listening", "addr", addr)

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	var acceptErr error
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			s.log.Warn("accept failed", "error", err)
			acceptErr = fmt.Errorf("access: accept: %w", err)
			break
		}
		s.wg.Add(1)
		s.active.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.active.Add(-1)
			sess := newSession(conn, s.kv, s.heartbeatPeriod)
			sess.run(ctx)
		}()
	}

	s.wg.Wait()
	return acceptErr
}

// Addr returns the bound listener address, or nil before Serve binds
// it. Mainly useful in tests that bind to port 0.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}
