package server

import (
	"context"
	"time"

	"github.com/amirphl/chart-exerciser/internal/session"
	"github.com/gorilla/websocket"
)

// wsChannel adapts a websocket connection to session.Channel. Only the
// session goroutine reads and writes data frames; pings go through
// WriteControl, which gorilla allows concurrently.
type wsChannel struct {
	conn        *websocket.Conn
	readTimeout time.Duration
}

func newWSChannel(conn *websocket.Conn, readTimeout time.Duration) *wsChannel {
	c := &wsChannel{conn: conn, readTimeout: readTimeout}
	c.extendDeadline()
	conn.SetPongHandler(func(string) error {
		c.extendDeadline()
		return nil
	})
	return c
}

func (c *wsChannel) extendDeadline() {
	_ = c.conn.SetReadDeadline(time.Now().Add(c.readTimeout))
}

func (c *wsChannel) Receive(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	mt, data, err := c.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	c.extendDeadline()
	if mt != websocket.TextMessage {
		return nil, session.ErrNonText
	}
	return data, nil
}

func (c *wsChannel) SendText(payload []byte) error {
	return c.write(websocket.TextMessage, payload)
}

func (c *wsChannel) SendBinary(payload []byte) error {
	return c.write(websocket.BinaryMessage, payload)
}

func (c *wsChannel) write(messageType int, payload []byte) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(messageType, payload)
}

// keepalive pings the peer until ctx is done. A peer that stops answering
// runs into the read deadline.
func (c *wsChannel) keepalive(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
