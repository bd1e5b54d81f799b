package mapview

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/urbanroute/routeview/pkg/streaming"
)

const (
	sendChSize   = 256
	writeWait    = 10 * time.Second
	maxReadBytes = 64 << 10
)

// client is one connected map page. Writes go through a single write
// goroutine fed by sendCh.
type client struct {
	conn   *ws.Conn
	sendCh chan []byte
	done   chan struct{}
	once   sync.Once
	logger *slog.Logger
}

func newClient(conn *ws.Conn, logger *slog.Logger) *client {
	return &client{
		conn:   conn,
		sendCh: make(chan []byte, sendChSize),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// writeLoop drains sendCh and writes messages to the WebSocket.
// It returns on write error or shutdown.
func (c *client) writeLoop() {
	for {
		select {
		case <-c.done:
			return
		case data := <-c.sendCh:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Warn("WebSocket SetWriteDeadline error", "error", err)
				c.close()
				return
			}
			if err := c.conn.WriteMessage(ws.TextMessage, data); err != nil {
				c.logger.Warn("WebSocket write error", "error", err)
				c.close()
				return
			}
		}
	}
}

// readLoop decodes envelopes from the page and hands them to handle until
// the connection fails.
func (c *client) readLoop(handle func(streaming.Envelope) error) {
	c.conn.SetReadLimit(maxReadBytes)
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				if ws.IsUnexpectedCloseError(err, ws.CloseNormalClosure, ws.CloseGoingAway) {
					c.logger.Warn("WebSocket read error", "error", err)
				}
			}
			return
		}

		var env streaming.Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			c.logger.Debug("Non-envelope message received", "raw", string(message))
			c.reject("", err)
			continue
		}
		if err := handle(env); err != nil {
			c.logger.Info("Rejected map message", "type", env.Type, "error", err)
			c.reject(env.Type, err)
		}
	}
}

func (c *client) reject(msgType string, cause error) {
	data, err := streaming.Marshal(streaming.TypeError, streaming.ErrorMessage{For: msgType, Message: cause.Error()})
	if err != nil {
		return
	}
	c.send(data)
}

// send pushes data to the write loop. Non-blocking; drops if channel full.
func (c *client) send(data []byte) {
	select {
	case c.sendCh <- data:
	default:
		c.logger.Warn("WebSocket send channel full, dropping message")
	}
}

// close sends a close frame and shuts down the write loop.
func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.WriteControl(
			ws.CloseMessage,
			ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
			time.Now().Add(writeWait),
		)
		_ = c.conn.Close()
	})
}
