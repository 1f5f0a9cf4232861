// Package relay implements a live, operator-facing WebSocket tail of
// the device event stream. It is an ambient supplement (SPEC_FULL
// §3.5), not part of the spec'd downlink/ack path: it mirrors events
// published to kvs.EventsChannel without ever consuming (rpop'ing)
// csod/mq/p5 itself, so it cannot affect any other consumer of that
// list. Adapted from pkg/events/manager.go's ConnectionManager, but
// collapsed to a single implicit channel — every connected operator
// sees the same tail, so there is no per-channel subscribe/unsubscribe
// bookkeeping to carry over.
package relay

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/iotgw/device-gateway/internal/kvs"
)

// Hub fans Redis pub/sub events out to connected WebSocket clients.
type Hub struct {
	rdb          *redis.Client
	writeTimeout time.Duration

	mu    sync.RWMutex
	conns map[string]*connection
}

type connection struct {
	id     string
	conn   *websocket.Conn
	cancel context.CancelFunc
}

// NewHub builds a Hub over rdb, the raw go-redis client obtained from
// kvs.RedisPrimitives.Raw(). writeTimeout bounds how long a single
// client send may block before the hub gives up on it.
func NewHub(rdb *redis.Client, writeTimeout time.Duration) *Hub {
	return &Hub{
		rdb:          rdb,
		writeTimeout: writeTimeout,
		conns:        make(map[string]*connection),
	}
}

// Run subscribes to kvs.EventsChannel and broadcasts every message
// received until ctx is canceled or the subscription errors out.
func (h *Hub) Run(ctx context.Context) error {
	sub := h.rdb.Subscribe(ctx, kvs.EventsChannel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			h.broadcast(msg.Payload)
		}
	}
}

// HandleConnection registers conn, blocks until it closes (this is a
// read-only tail: any inbound client frame is simply discarded), then
// unregisters it.
func (h *Hub) HandleConnection(parentCtx context.Context, conn *websocket.Conn) {
	id := uuid.New().String()
	ctx, cancel := context.WithCancel(parentCtx)
	c := &connection{id: id, conn: conn, cancel: cancel}

	h.register(c)
	defer h.unregister(c)
	defer cancel()

	for {
		if _, _, err := conn.Read(ctx); err != nil {
			return
		}
	}
}

// ActiveConnections reports how many operators are currently tailing
// events.
func (h *Hub) ActiveConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

func (h *Hub) register(c *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[c.id] = c
}

func (h *Hub) unregister(c *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, c.id)
}

func (h *Hub) broadcast(payload string) {
	h.mu.RLock()
	conns := make([]*connection, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		writeCtx, cancel := context.WithTimeout(context.Background(), h.writeTimeout)
		err := c.conn.Write(writeCtx, websocket.MessageText, []byte(payload))
		cancel()
		if err != nil {
			slog.Warn("relay: send failed, dropping connection", "connection_id", c.id, "error", err)
			c.cancel()
		}
	}
}
