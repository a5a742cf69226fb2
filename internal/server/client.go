package server

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/driftline/driftline/internal/protocol"
)

const (
	sendBuffer = 64
	writeWait  = 5 * time.Second
	maxReason  = 120 // close frame reasons are capped at 123 bytes
)

// Client is one upgraded connection. Send and Close never block, so rooms
// can call them from their loop.
type Client struct {
	ID     string
	conn   *websocket.Conn
	logger *slog.Logger
	onDrop func()

	send      chan []byte
	closed    chan struct{}
	closeOnce sync.Once
	reason    string
}

func newClient(id string, conn *websocket.Conn, logger *slog.Logger, onDrop func()) *Client {
	return &Client{
		ID:     id,
		conn:   conn,
		logger: logger,
		onDrop: onDrop,
		send:   make(chan []byte, sendBuffer),
		closed: make(chan struct{}),
	}
}

// Send queues a frame. A full queue drops the frame: a slow reader loses
// state updates rather than stalling its room.
func (c *Client) Send(frame []byte) bool {
	select {
	case <-c.closed:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		if c.onDrop != nil {
			c.onDrop()
		}
		return false
	}
}

// Close flushes queued frames and closes the connection with reason.
func (c *Client) Close(reason string) {
	c.closeOnce.Do(func() {
		c.reason = reason
		close(c.closed)
	})
}

func (c *Client) Done() <-chan struct{} { return c.closed }

func (c *Client) readLoop(ctx context.Context, handle func([]byte)) {
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == -1 {
				c.logger.Debug("read ended", "err", err)
			} else {
				c.logger.Debug("peer closed", "status", status)
			}
			return
		}
		handle(data)
	}
}

func (c *Client) writePump(ctx context.Context, pingEvery time.Duration) {
	var ping <-chan time.Time
	if pingEvery > 0 {
		t := time.NewTicker(pingEvery)
		defer t.Stop()
		ping = t.C
	}

	for {
		select {
		case frame := <-c.send:
			if err := c.write(ctx, frame); err != nil {
				c.logger.Debug("write failed", "err", err)
				c.Close("write failed")
				c.conn.CloseNow()
				return
			}
		case <-ping:
			pctx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Ping(pctx)
			cancel()
			if err != nil {
				c.logger.Debug("ping failed", "err", err)
				c.Close("ping timeout")
				c.conn.CloseNow()
				return
			}
		case <-c.closed:
			c.flush(ctx)
			c.conn.Close(closeStatus(c.reason), truncate(c.reason, maxReason))
			return
		case <-ctx.Done():
			c.conn.CloseNow()
			return
		}
	}
}

func (c *Client) write(ctx context.Context, frame []byte) error {
	wctx, cancel := context.WithTimeout(ctx, writeWait)
	defer cancel()
	return c.conn.Write(wctx, websocket.MessageBinary, frame)
}

// flush writes whatever was queued before Close, such as a final error
// frame.
func (c *Client) flush(ctx context.Context) {
	for {
		select {
		case frame := <-c.send:
			if err := c.write(ctx, frame); err != nil {
				return
			}
		default:
			return
		}
	}
}

func closeStatus(reason string) websocket.StatusCode {
	switch reason {
	case protocol.CodeServerShutdown:
		return websocket.StatusGoingAway
	case protocol.CodeInternal:
		return websocket.StatusInternalError
	case protocol.CodeRoomFull, protocol.CodeRoundStale:
		return websocket.StatusPolicyViolation
	default:
		return websocket.StatusNormalClosure
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
