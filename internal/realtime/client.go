package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/noah-isme/exam-adp-api/internal/models"
)

// Client is one live websocket connection bound to a session. Frames are
// applied in arrival order on the read loop, so later writes for a question
// overwrite earlier ones exactly as the client sent them.
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	claims    *models.JWTClaims
	sessionID string
	examID    string
	outbox    chan OutboundMessage
	logger    *zap.Logger

	closeOnce sync.Once
	closed    chan struct{}
}

// NewClient wraps an upgraded connection.
func NewClient(hub *Hub, conn *websocket.Conn, claims *models.JWTClaims, session *models.Session, examID string) *Client {
	size := hub.cfg.SendBufferSize
	if size <= 0 {
		size = 32
	}
	return &Client{
		hub:       hub,
		conn:      conn,
		claims:    claims,
		sessionID: session.ID,
		examID:    examID,
		outbox:    make(chan OutboundMessage, size),
		logger:    hub.logger,
		closed:    make(chan struct{}),
	}
}

// Serve runs the read and write pumps until the connection drops.
func (c *Client) Serve(ctx context.Context) {
	go c.writePump()
	c.readPump(ctx)
}

func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.hub.Unregister(c, c.examID)
		c.closeWith("")
	}()

	if c.hub.cfg.MaxMessageSize > 0 {
		c.conn.SetReadLimit(c.hub.cfg.MaxMessageSize)
	}
	_ = c.conn.SetReadDeadline(time.Now().Add(c.hub.cfg.PongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.hub.cfg.PongTimeout))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("ws_read_failed", zap.String("session_id", c.sessionID), zap.Error(err))
			}
			return
		}

		var msg InboundMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.send(OutboundMessage{Type: TypeError, Message: "malformed frame"})
			continue
		}
		if msg.Type != TypeAnswer {
			c.send(OutboundMessage{Type: TypeError, Seq: msg.Seq, Message: "unsupported message type"})
			continue
		}

		if err := c.hub.ingest(ctx, c, msg); err != nil {
			c.send(OutboundMessage{Type: TypeError, Seq: msg.Seq, QuestionID: msg.QuestionID, Message: err.Error()})
			continue
		}
		c.send(OutboundMessage{Type: TypeAnswerAck, Seq: msg.Seq, QuestionID: msg.QuestionID})
	}
}

func (c *Client) writePump() {
	pingPeriod := c.hub.cfg.PingPeriod
	if pingPeriod <= 0 {
		pingPeriod = 50 * time.Second
	}
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.outbox:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.hub.cfg.WriteTimeout))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.hub.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.closed:
			return
		}
	}
}

// send enqueues a frame, dropping it if the client cannot keep up. Acks ride
// the same channel, so a dropped ack surfaces to the client as a missing seq
// to retry.
func (c *Client) send(msg OutboundMessage) {
	select {
	case c.outbox <- msg:
	case <-c.closed:
	default:
		c.logger.Warn("ws_outbox_full", zap.String("session_id", c.sessionID))
	}
}

// closeWith tears the connection down once. A non-empty reason is sent as a
// close frame first.
func (c *Client) closeWith(reason string) {
	c.closeOnce.Do(func() {
		if c.conn != nil && reason != "" {
			deadline := time.Now().Add(c.hub.cfg.WriteTimeout)
			_ = c.conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason),
				deadline,
			)
		}
		close(c.closed)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}
