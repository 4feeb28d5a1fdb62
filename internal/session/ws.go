package session

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/paircast/relay/internal/config"
	"github.com/paircast/relay/internal/protocol"
)

type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) Send(msg protocol.UpdateMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(config.WSWriteWait))
	return c.conn.WriteJSON(msg)
}

func (c *wsConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(config.WSWriteWait),
	)
	return c.conn.Close()
}

// WebsocketDialer returns a DialFunc that opens a duplex channel to 'url'
// and pumps incoming text frames to the session. OnOpen fires once the
// handshake completes, before any message is delivered.
func WebsocketDialer(url string) DialFunc {
	return func(ctx context.Context, events ConnEvents) (DuplexConn, error) {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
		if err != nil {
			return nil, err
		}

		c := &wsConn{conn: conn}

		go func() {
			defer conn.Close()

			for {
				_, data, err := conn.ReadMessage()
				if err != nil {
					if websocket.IsCloseError(err,
						websocket.CloseNormalClosure,
						websocket.CloseGoingAway,
					) || err == io.EOF {
						events.OnClose()
					} else {
						events.OnError(err)
					}
					return
				}
				events.OnMessage(string(data))
			}
		}()

		events.OnOpen()
		return c, nil
	}
}
