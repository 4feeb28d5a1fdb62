package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/paircast/relay/internal/config"
	"github.com/paircast/relay/internal/protocol"
)

// UpdateRelayer validates and fans out one controller update, returning
// the reply owed to the controller. *service.RelayService implements it.
type UpdateRelayer interface {
	HandleUpdate(ctx context.Context, msg protocol.UpdateMessage) protocol.ReplyKind
}

// WSHandler serves the controller-facing duplex endpoint.
type WSHandler struct {
	relay    UpdateRelayer
	upgrader websocket.Upgrader
}

func NewWSHandler(relay UpdateRelayer, checkOrigin func(r *http.Request) bool) *WSHandler {
	return &WSHandler{
		relay: relay,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.WSReadLimit,
			WriteBufferSize: config.WSReadLimit,
			CheckOrigin:     checkOrigin,
		},
	}
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	log.Info().Str("remote", r.RemoteAddr).Msg("controller connected")

	ctx := r.Context()

	// Writes come from the read loop and the ping ticker; serialize them.
	var writeMu sync.Mutex

	writeText := func(payload string) {
		writeMu.Lock()
		defer writeMu.Unlock()

		conn.SetWriteDeadline(time.Now().Add(config.WSWriteWait))
		if err := conn.WriteMessage(websocket.TextMessage, []byte(payload)); err != nil {
			log.Warn().Err(err).Str("payload", payload).Msg("failed to write controller reply")
		}
	}

	conn.SetReadLimit(config.WSReadLimit)
	conn.SetReadDeadline(time.Now().Add(config.WSPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(config.WSPongWait))
		return nil
	})

	// Transport-level pings keep load balancers from timing the
	// connection out between user submissions.
	pingDone := make(chan struct{})
	defer close(pingDone)

	go func() {
		ticker := time.NewTicker(config.WSPingPeriod)
		defer ticker.Stop()

		for {
			select {
			case <-pingDone:
				return
			case <-ticker.C:
				writeMu.Lock()
				conn.SetWriteDeadline(time.Now().Add(config.WSWriteWait))
				err := conn.WriteMessage(websocket.PingMessage, nil)
				writeMu.Unlock()

				if err != nil {
					log.Debug().Err(err).Msg("controller ping failed")
					return
				}
			}
		}
	}()

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
			) {
				log.Info().Str("remote", r.RemoteAddr).Msg("controller disconnected")
			} else {
				log.Warn().Err(err).Msg("controller read error")
			}
			return
		}

		if mt != websocket.TextMessage {
			continue
		}

		var msg protocol.UpdateMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Warn().Err(err).Msg("failed to decode controller message")
			continue
		}

		switch msg.Type {
		case protocol.TypePing:
			// Application-level keepalive for clients that cannot send
			// transport pings.
			writeText(protocol.ReplyPong.String())

		case protocol.TypeUpdate:
			reply := h.relay.HandleUpdate(ctx, msg)
			if reply == protocol.ReplyUnrecognized {
				continue
			}
			writeText(reply.String())

		default:
			log.Debug().Str("type", msg.Type).Msg("ignoring controller message type")
		}
	}
}
