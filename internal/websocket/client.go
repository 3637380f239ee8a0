// internal/websocket/client.go
package websocket

import (
	"context"
	"sync"
	"time"

	"delivery-service/internal/domain/session"
	pkgsession "delivery-service/internal/pkg/session"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024 // 512KB
	sendBufferSize = 256
)

// ClientAuth holds the session a socket was authenticated with
type ClientAuth struct {
	UserID       string
	SessionToken string
	Session      *session.Descriptor
}

// Client is one live socket on this node. It satisfies delivery.Handle.
type Client struct {
	id          string
	conn        *websocket.Conn
	send        chan []byte
	router      *Router
	logger      *zap.Logger
	userID      string
	token       string
	sessionHash string
	deviceType  string
	connectedAt time.Time

	onClose   func(*Client)
	closeOnce sync.Once

	// Context for graceful shutdown
	ctx    context.Context
	cancel context.CancelFunc
}

func NewClient(conn *websocket.Conn, auth *ClientAuth, router *Router, logger *zap.Logger) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{
		id:          ulid.Make().String(),
		conn:        conn,
		send:        make(chan []byte, sendBufferSize),
		router:      router,
		userID:      auth.UserID,
		token:       auth.SessionToken,
		sessionHash: pkgsession.HashToken(auth.SessionToken),
		connectedAt: time.Now(),
		ctx:         ctx,
		cancel:      cancel,
	}
	if auth.Session != nil {
		c.deviceType = auth.Session.DeviceType
	}
	c.logger = logger.With(
		zap.String("conn_id", c.id),
		zap.String("user_id", c.userID),
		zap.String("session_hash", pkgsession.ShortHash(c.sessionHash)),
	)
	return c
}

// OnClose sets a callback run exactly once when the client closes.
func (c *Client) OnClose(fn func(*Client)) {
	c.onClose = fn
}

func (c *Client) ID() string             { return c.id }
func (c *Client) UserID() string         { return c.userID }
func (c *Client) SessionToken() string   { return c.token }
func (c *Client) SessionHash() string    { return c.sessionHash }
func (c *Client) DeviceType() string     { return c.deviceType }
func (c *Client) ConnectedAt() time.Time { return c.connectedAt }

// Send queues data for the write pump. It never blocks on a slow client: a
// full buffer closes the socket and reports failure so the caller can drop it.
func (c *Client) Send(ctx context.Context, data []byte) error {
	if c.ctx.Err() != nil {
		return ErrConnectionClosed
	}

	select {
	case c.send <- data:
		return nil
	case <-c.ctx.Done():
		return ErrConnectionClosed
	case <-ctx.Done():
		return ctx.Err()
	default:
		c.logger.Warn("send buffer full, closing socket")
		c.Close()
		return ErrSendBufferFull
	}
}

// ReadPump handles incoming requests from the client
func (c *Client) ReadPump() {
	defer c.Close()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Info("websocket read error", zap.Error(err))
			}
			return
		}

		reply := c.router.Process(c.ctx, c, message)
		if reply == nil {
			continue
		}
		if err := c.Send(c.ctx, reply); err != nil {
			return
		}
	}
}

// WritePump handles outgoing messages to the client
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.ctx.Done():
			return

		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Info("websocket write failed", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Close stops both pumps and runs the close callback once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.cancel()
		if c.conn != nil {
			c.conn.Close()
		}
		if c.onClose != nil {
			c.onClose(c)
		}
	})
}
