// internal/handlers/ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/jason-s-yu/codearena/internal/broadcast"
	"github.com/jason-s-yu/codearena/internal/middleware"
	"github.com/jason-s-yu/codearena/internal/session"
	"github.com/sirupsen/logrus"
)

// Subprotocol is the websocket subprotocol clients must request.
const Subprotocol = "duel"

const (
	outboundBuffer = 64
	readLimit      = 256 << 10
	pingInterval   = 30 * time.Second
	writeTimeout   = 5 * time.Second
)

// DuelWSHandler upgrades a request to a duel session. Each socket gets a fresh
// connection id; the player identifies itself with a register message.
// Cancelling base closes every socket with ServerShutdownClose.
func DuelWSHandler(base context.Context, logger *logrus.Logger, coord *session.Coordinator, originPatterns []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{Subprotocol},
			OriginPatterns: originPatterns,
		})
		if err != nil {
			logger.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		if c.Subprotocol() != Subprotocol {
			c.Close(BadSubprotocolError, "client must speak the duel subprotocol")
			return
		}
		c.SetReadLimit(readLimit)

		connID := uuid.New()
		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		conn := broadcast.NewConn(connID, outboundBuffer, cancel, logger)

		middleware.LogWebSocketConnect(logger, r.RemoteAddr, r.URL.Path)
		coord.Connect(conn)

		go func() {
			select {
			case <-base.Done():
				c.Close(ServerShutdownClose, "server shutting down")
				cancel()
			case <-ctx.Done():
			}
		}()
		go writePump(ctx, c, conn, logger)
		readErr := readPump(ctx, c, coord, connID, logger)

		coord.Disconnect(connID)
		middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, r.URL.Path, readErr)
		c.Close(websocket.StatusNormalClosure, "")
	}
}

// readPump feeds every text frame to the coordinator until the socket closes.
// It returns nil on a normal close.
func readPump(ctx context.Context, c *websocket.Conn, coord *session.Coordinator, connID uuid.UUID, logger *logrus.Logger) error {
	for {
		typ, msg, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if typ != websocket.MessageText {
			logger.WithField("conn", connID).Warnf("Ignoring non-text message type %d", typ)
			continue
		}
		coord.HandleRaw(ctx, connID, msg)
	}
}

// writePump drains the connection's OutChan onto the socket and pings periodically.
func writePump(ctx context.Context, c *websocket.Conn, conn *broadcast.Conn, logger *logrus.Logger) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	log := logger.WithField("conn", conn.ID())

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-conn.OutChan:
			data, err := json.Marshal(ev)
			if err != nil {
				log.Warnf("Failed to marshal outgoing %q: %v", ev.Type, err)
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err = c.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				log.Warnf("Failed to write to websocket: %v", err)
				conn.Cancel()
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				log.Warnf("Failed to send ping: %v. Assuming disconnect.", err)
				conn.Cancel()
				return
			}
		}
	}
}
