// Package access implements the Access Service: the TCP frontend that
// terminates device connections and runs the per-connection state
// machine described in spec §4.2 (NEW → HANDSHAKEN → ACTIVE →
// DEACTIVATING → CLOSED).
package access

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/iotgw/device-gateway/internal/device"
	"github.com/iotgw/device-gateway/internal/gwerr"
	"github.com/iotgw/device-gateway/internal/kvs"
)

const (
	handshakeAttempts      = 4
	handshakeRetrySpacing  = 100 * time.Millisecond
	handshakeTimeout       = 40 * time.Second
	downlinkPollInterval   = 100 * time.Millisecond
)

// Session owns one accepted TCP connection end to end: handshake,
// activation, the ACTIVE dispatch loop, and deactivation. One goroutine
// per Session; it never shares state with any other session.
type Session struct {
	conn            net.Conn
	scanner         scanner
	writer          *bufio.Writer
	kv              *kvs.Client
	heartbeatPeriod time.Duration

	sn            string
	lastHeartbeat time.Time
	log           *slog.Logger
}

// scanner is the narrow subset of *bufio.Scanner the session uses, kept
// as an interface so tests can swap in a fake reader.
type scanner interface {
	Scan() bool
	Text() string
	Err() error
}

// newSession constructs a Session over an accepted connection.
func newSession(conn net.Conn, kv *kvs.Client, heartbeatPeriod time.Duration) *Session {
	return &Session{
		conn:            conn,
		scanner:         device.NewScanner(conn),
		writer:          bufio.NewWriter(conn),
		kv:              kv,
		heartbeatPeriod: heartbeatPeriod,
		log:             slog.With("remote_addr", conn.RemoteAddr().String()),
	}
}

// run drives the full session lifecycle. It returns once the connection
// is closed, by any path: failed handshake, fatal I/O, or heartbeat
// lapse.
func (s *Session) run(ctx context.Context) {
	defer s.conn.Close()

	sn, err := s.handshake()
	if err != nil {
		s.log.Debug("handshake did not complete", "error", err)
		return
	}
	s.sn = sn
	s.lastHeartbeat = time.Now()
	s.log = s.log.With("sn", sn)

	if err := s.kv.Activate(ctx, sn); err != nil {
		s.log.Warn("activation failed, deactivating", "error", err)
		_ = s.kv.Deactivate(ctx, sn)
		return
	}
	s.log.Info("device activated")

	s.activeLoop(ctx)

	if err := s.kv.Deactivate(ctx, sn); err != nil {
		s.log.Warn("deactivation failed", "error", err)
	} else {
		s.log.Info("device deactivated")
	}
}

// handshake implements spec §4.2's NEW → HANDSHAKEN transition: up to
// handshakeAttempts readline reads spaced handshakeRetrySpacing apart,
// wrapped in a handshakeTimeout outer deadline. The first line that
// classifies as a HEARTBEAT yields the SN; any other line consumes an
// attempt without extending the deadline. On success it replies once
// with the canonical pong. Any other outcome returns an error and the
// caller closes without touching the KVS.
func (s *Session) handshake() (string, error) {
	deadline := time.Now().Add(handshakeTimeout)
	if err := s.conn.SetReadDeadline(deadline); err != nil {
		return "", fmt.Errorf("handshake: %w", err)
	}
	defer s.conn.SetReadDeadline(time.Time{})

	for attempt := 0; attempt < handshakeAttempts; attempt++ {
		if attempt > 0 {
			if time.Now().Add(handshakeRetrySpacing).After(deadline) {
				return "", fmt.Errorf("handshake: %w", gwerr.ErrTimeout)
			}
			time.Sleep(handshakeRetrySpacing)
		}

		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				return "", fmt.Errorf("handshake: %w", err)
			}
			return "", fmt.Errorf("handshake: %w", gwerr.ErrTimeout)
		}

		msg := device.Classify(s.scanner.Text())
		if msg.Kind == device.Heartbeat {
			if err := device.WriteLine(s.writer, device.Pong); err != nil {
				return "", fmt.Errorf("handshake: %w", err)
			}
			return msg.SN, nil
		}
	}
	return "", fmt.Errorf("handshake: %w", gwerr.ErrTimeout)
}

// activeLoop implements the ACTIVE state's dual-select over the next
// device line and a polled downlink field (spec §4.2, §5, §9). Inbound
// lines take priority over a same-tick downlink when both are
// observable, matching spec's stated tie-break.
func (s *Session) activeLoop(ctx context.Context) {
	lineCh := make(chan string)
	errCh := make(chan error, 1)
	readerCtx, cancelReader := context.WithCancel(ctx)
	defer cancelReader()

	go func() {
		defer close(lineCh)
		for s.scanner.Scan() {
			select {
			case lineCh <- s.scanner.Text():
			case <-readerCtx.Done():
				return
			}
		}
		if err := s.scanner.Err(); err != nil {
			select {
			case errCh <- err:
			default:
			}
		}
	}()

	ticker := time.NewTicker(downlinkPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case line, ok := <-lineCh:
			if !ok {
				s.log.Debug("device stream closed", "error", firstErr(errCh))
				return
			}
			if !s.handleLine(ctx, line) {
				return
			}

		case <-ticker.C:
			// Give an already-arrived line priority over this tick's
			// downlink poll (spec §4.2 tie-break).
			select {
			case line, ok := <-lineCh:
				if !ok {
					s.log.Debug("device stream closed", "error", firstErr(errCh))
					return
				}
				if !s.handleLine(ctx, line) {
					return
				}
			default:
				if !s.pollDownlink(ctx) {
					return
				}
			}
		}

		if s.heartbeatLapsed() {
			s.log.Info("heartbeat lapsed, deactivating")
			return
		}
	}
}

// handleLine classifies and reacts to one inbound frame. It returns
// false if a fatal I/O error means the session must close.
func (s *Session) handleLine(ctx context.Context, line string) bool {
	msg := device.Classify(line)
	switch msg.Kind {
	case device.Heartbeat:
		s.lastHeartbeat = time.Now()
		if err := device.WriteLine(s.writer, device.Pong); err != nil {
			s.log.Warn("pong write failed", "error", err)
			return false
		}
	case device.Event:
		if err := s.kv.AppendEvent(ctx, msg.Raw); err != nil {
			s.log.Warn("failed to append event", "error", err)
		}
	case device.Ack:
		if err := s.kv.SetUplink(ctx, s.sn, msg.Raw); err != nil {
			s.log.Warn("failed to write uplink", "error", err)
		}
	case device.Invalid:
		s.log.Debug("dropping unclassifiable line", "line", line)
	}
	return true
}

// pollDownlink checks for a pending downlink request and, if present,
// consumes it exactly once and forwards it to the device (spec §4.2,
// invariant I4). It returns false if a fatal I/O error means the
// session must close.
func (s *Session) pollDownlink(ctx context.Context) bool {
	payload, ok, err := s.kv.TakeDownlink(ctx, s.sn)
	if err != nil {
		s.log.Warn("downlink poll failed", "error", err)
		return true
	}
	if !ok {
		return true
	}
	if err := device.WriteLine(s.writer, payload); err != nil {
		s.log.Warn("downlink write failed", "error", err)
		return false
	}
	return true
}

func (s *Session) heartbeatLapsed() bool {
	return time.Since(s.lastHeartbeat) >= s.heartbeatPeriod
}

func firstErr(errCh <-chan error) error {
	select {
	case err := <-errCh:
		return err
	default:
		return nil
	}
}
