package access

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iotgw/device-gateway/internal/device"
	"github.com/iotgw/device-gateway/internal/kvs"
	"github.com/iotgw/device-gateway/internal/kvs/kvstest"
)

func newTestSession(conn net.Conn, heartbeat time.Duration) (*Session, *kvs.Client) {
	kv := kvs.New(kvstest.New())
	return newSession(conn, kv, heartbeat), kv
}

func TestHandshakeSucceedsOnFirstHeartbeat(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()
	sess, _ := newTestSession(serverConn, time.Second)

	// net.Pipe is unbuffered: the pong write inside handshake blocks
	// until this side reads it, so the read happens concurrently.
	pongCh := make(chan string, 1)
	readErrCh := make(chan error, 1)
	go func() {
		w := bufio.NewWriter(clientConn)
		_ = device.WriteLine(w, `{"type":"ping","sn":"D7"}`)
		pong, err := bufio.NewReader(clientConn).ReadString('\n')
		pongCh <- pong
		readErrCh <- err
	}()

	sn, err := sess.handshake()
	require.NoError(t, err)
	assert.Equal(t, "D7", sn)

	require.NoError(t, <-readErrCh)
	assert.Equal(t, device.Pong+"\n", <-pongCh)
}

func TestHandshakeSkipsNonHeartbeatLines(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()
	sess, _ := newTestSession(serverConn, time.Second)

	go func() {
		w := bufio.NewWriter(clientConn)
		_ = device.WriteLine(w, `{"type":"evt","sn":"D7"}`)
		_ = device.WriteLine(w, `not json`)
		_ = device.WriteLine(w, `{"type":"ping","sn":"D7"}`)
		// Drain the pong so handshake's write on the unbuffered pipe returns.
		_, _ = bufio.NewReader(clientConn).ReadString('\n')
	}()

	sn, err := sess.handshake()
	require.NoError(t, err)
	assert.Equal(t, "D7", sn)
}

func TestHandshakeFailsAfterMaxAttempts(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()
	sess, _ := newTestSession(serverConn, time.Second)

	go func() {
		w := bufio.NewWriter(clientConn)
		for i := 0; i < handshakeAttempts; i++ {
			_ = device.WriteLine(w, `{"type":"evt","sn":"D7"}`)
		}
	}()

	_, err := sess.handshake()
	assert.Error(t, err)
}

func TestSessionActivatesAndDeactivatesOnClose(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	sess, kv := newTestSession(serverConn, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		sess.run(ctx)
		close(done)
	}()

	w := bufio.NewWriter(clientConn)
	require.NoError(t, device.WriteLine(w, `{"type":"ping","sn":"D1"}`))
	reader := bufio.NewReader(clientConn)
	_, err := reader.ReadString('\n')
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		alive, err := kv.IsAlive(context.Background(), "D1")
		return err == nil && alive
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, clientConn.Close())
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("session did not exit after close")
	}

	alive, err := kv.IsAlive(context.Background(), "D1")
	require.NoError(t, err)
	assert.False(t, alive)
}

func TestSessionDeactivatesOnHeartbeatLapse(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	sess, kv := newTestSession(serverConn, 50*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		sess.run(ctx)
		close(done)
	}()

	w := bufio.NewWriter(clientConn)
	require.NoError(t, device.WriteLine(w, `{"type":"ping","sn":"D2"}`))
	reader := bufio.NewReader(clientConn)
	_, err := reader.ReadString('\n')
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("session did not deactivate after heartbeat lapse")
	}

	alive, err := kv.IsAlive(context.Background(), "D2")
	require.NoError(t, err)
	assert.False(t, alive)
}

func TestSessionForwardsDownlinkAndCapturesAck(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	sess, kv := newTestSession(serverConn, 5*time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		sess.run(ctx)
		close(done)
	}()

	w := bufio.NewWriter(clientConn)
	require.NoError(t, device.WriteLine(w, `{"type":"ping","sn":"D9"}`))
	reader := bufio.NewReader(clientConn)
	_, err := reader.ReadString('\n') // pong
	require.NoError(t, err)

	require.NoError(t, kv.SetDownlink(context.Background(), "D9", `{"type":"get","sn":"D9"}`))

	require.NoError(t, clientConn.SetReadDeadline(time.Now().Add(2*time.Second)))
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, `{"type":"get","sn":"D9"}`+"\n", line)

	require.NoError(t, device.WriteLine(w, `{"type":"getack","sn":"D9"}`))

	require.Eventually(t, func() bool {
		v, ok, err := kv.TakeUplink(context.Background(), "D9")
		return err == nil && ok && v == `{"type":"getack","sn":"D9"}`
	}, 2*time.Second, 20*time.Millisecond)

	require.NoError(t, clientConn.Close())
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("session did not exit")
	}
}
