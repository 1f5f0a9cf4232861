package kvs

import "context"

// IsBorn reports whether sn has ever been observed (spec §3 Born set).
func (c *Client) IsBorn(ctx context.Context, sn string) (bool, error) {
	_, ok, err := c.ZRank(ctx, BornKey, sn)
	return ok, err
}

// IsAlive reports whether sn currently holds an active session
// (spec §3 Alive set; invariant I2).
func (c *Client) IsAlive(ctx context.Context, sn string) (bool, error) {
	_, ok, err := c.ZRank(ctx, AliveKey, sn)
	return ok, err
}

// BornCount is the cardinality backing GET /query/devices_num.
func (c *Client) BornCount(ctx context.Context) (int64, error) {
	return c.ZCard(ctx, BornKey)
}

// AliveCount is the cardinality backing GET /query/devices_alive_num.
func (c *Client) AliveCount(ctx context.Context) (int64, error) {
	return c.ZCard(ctx, AliveKey)
}

// Activate performs the composite mutation spec §4.2 calls activation:
// add sn to Alive, mark status online with a fresh toggletime, clear
// any stale uplink/downlink left over from a previous session, and on
// first observation insert sn into Born with borntime. Any failing
// step aborts the sequence; the caller (the session) treats this as
// fatal and deactivates/closes per spec §4.2.
func (c *Client) Activate(ctx context.Context, sn string) error {
	if err := c.ZAddWithNow(ctx, AliveKey, sn); err != nil {
		return err
	}
	if err := c.HSetOnlineWithToggletime(ctx, sn, true); err != nil {
		return err
	}
	if err := c.HDel(ctx, StatusKey(sn), FieldUplink, FieldDownlink); err != nil {
		return err
	}

	born, err := c.IsBorn(ctx, sn)
	if err != nil {
		return err
	}
	if !born {
		if err := c.ZAddWithNow(ctx, BornKey, sn); err != nil {
			return err
		}
		if err := c.HSet(ctx, StatusKey(sn), map[string]string{FieldBorntime: NowField()}); err != nil {
			return err
		}
	}
	return nil
}

// Deactivate performs the composite mutation spec §4.2 calls
// deactivation: remove sn from Alive and mark status offline. Born is
// never touched.
func (c *Client) Deactivate(ctx context.Context, sn string) error {
	if err := c.ZRem(ctx, AliveKey, sn); err != nil {
		return err
	}
	return c.HSetOnlineWithToggletime(ctx, sn, false)
}

// SetUplink publishes a device ack into the status hash's uplink
// field. Owned exclusively by the TCP session (spec §3 Ownership).
func (c *Client) SetUplink(ctx context.Context, sn, payload string) error {
	return c.HSet(ctx, StatusKey(sn), map[string]string{FieldUplink: payload})
}

// TakeUplink reads and clears the uplink field in one read-then-delete
// sequence, the exactly-once consumption invariant I5. Owned
// exclusively by the HTTP push broker.
func (c *Client) TakeUplink(ctx context.Context, sn string) (string, bool, error) {
	v, ok, err := c.HGet(ctx, StatusKey(sn), FieldUplink)
	if err != nil || !ok {
		return "", ok, err
	}
	if err := c.HDel(ctx, StatusKey(sn), FieldUplink); err != nil {
		return "", false, err
	}
	return v, true, nil
}

// ClearUplink deletes any stale uplink value without reading it — the
// push broker's preflight clear (spec §4.3 step 4) so a leftover ack
// from a previous exchange can't be mistaken for the new one.
func (c *Client) ClearUplink(ctx context.Context, sn string) error {
	return c.HDel(ctx, StatusKey(sn), FieldUplink)
}

// SetDownlink publishes an HTTP push request into the status hash's
// downlink field. Owned exclusively by the HTTP push broker. Per spec
// §4.2/§9, a second write before the session consumes the first is
// last-writer-wins — the overwritten request is simply lost.
func (c *Client) SetDownlink(ctx context.Context, sn, payload string) error {
	return c.HSet(ctx, StatusKey(sn), map[string]string{FieldDownlink: payload})
}

// TakeDownlink reads and clears the downlink field in one
// read-then-delete sequence, the exactly-once consumption invariant
// I4. Owned exclusively by the TCP session.
func (c *Client) TakeDownlink(ctx context.Context, sn string) (string, bool, error) {
	v, ok, err := c.HGet(ctx, StatusKey(sn), FieldDownlink)
	if err != nil || !ok {
		return "", ok, err
	}
	if err := c.HDel(ctx, StatusKey(sn), FieldDownlink); err != nil {
		return "", false, err
	}
	return v, true, nil
}

// Status returns the full device status hash, used by the
// device_status debug endpoint (SPEC_FULL §3.3 supplement).
func (c *Client) Status(ctx context.Context, sn string) (map[string]string, error) {
	return c.HGetAll(ctx, StatusKey(sn))
}

// AppendEvent appends a raw event payload to the event stream
// (spec §3 Event stream, §4.2 EVENT reaction). If the backing store
// also implements Publisher, the payload is additionally mirrored to
// EventsChannel, best-effort, for internal/relay's live WebSocket tail
// — a side channel, never consumed by rpop, so it cannot affect
// downstream readers of the list itself.
func (c *Client) AppendEvent(ctx context.Context, payload string) error {
	if err := c.LPush(ctx, EventsKey, payload); err != nil {
		return err
	}
	if pub, ok := c.Primitives.(Publisher); ok {
		_ = pub.Publish(ctx, EventsChannel, payload)
	}
	return nil
}
