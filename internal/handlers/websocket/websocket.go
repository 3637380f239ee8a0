// internal/handlers/websocket/websocket.go
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"delivery-service/internal/domain/session"
	xerrors "delivery-service/internal/pkg/errors"
	"delivery-service/internal/pkg/response"
	pkgsession "delivery-service/internal/pkg/session"
	"delivery-service/internal/service/delivery"
	ws "delivery-service/internal/websocket"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const detachTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Clients are native apps authenticating with a session token.
		return true
	},
}

// SessionStore authenticates sockets and records which node holds them.
type SessionStore interface {
	GetSession(ctx context.Context, token string) (*session.Descriptor, error)
	AttachQueue(ctx context.Context, token, queueName string) error
	DetachQueue(ctx context.Context, token, queueName string) error
}

// Connections is the node's registry of live sockets.
type Connections interface {
	Register(userID, token string, h delivery.Handle)
	Release(userID, token string, h delivery.Handle) bool
	ConnectionCount() int
	NodeID() string
}

type WebSocketHandler struct {
	sessions    SessionStore
	connections Connections
	router      *ws.Router
	logger      *zap.Logger
	now         func() time.Time
}

func NewWebSocketHandler(sessions SessionStore, connections Connections, router *ws.Router, logger *zap.Logger) *WebSocketHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebSocketHandler{
		sessions:    sessions,
		connections: connections,
		router:      router,
		logger:      logger,
		now:         time.Now,
	}
}

// HandleConnection authenticates the session token, upgrades the request
// and makes the socket reachable for deliveries.
func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	token := h.extractToken(c)
	if token == "" {
		response.Unauthorized(c, "missing authentication token")
		return
	}

	ctx := c.Request.Context()
	desc, err := h.sessions.GetSession(ctx, token)
	if err != nil {
		if errors.Is(err, xerrors.ErrNotFound) {
			response.Error(c, http.StatusUnauthorized, "authentication failed", xerrors.ErrUnauthorized)
			return
		}
		h.logger.Error("session lookup failed",
			zap.Error(err),
			zap.String("ip", c.ClientIP()),
		)
		response.Error(c, http.StatusServiceUnavailable, "failed to verify session", xerrors.ErrUnavailable)
		return
	}
	if !desc.IsActive(h.now()) {
		response.Error(c, http.StatusUnauthorized, "authentication failed", ws.ErrSessionInactive)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed",
			zap.Error(err),
			zap.String("ip", c.ClientIP()),
		)
		return
	}

	client := ws.NewClient(conn, &ws.ClientAuth{
		UserID:       desc.UserID,
		SessionToken: token,
		Session:      desc,
	}, h.router, h.logger)
	client.OnClose(h.release)

	h.connections.Register(desc.UserID, token, client)

	nodeID := h.connections.NodeID()
	if err := h.sessions.AttachQueue(ctx, token, nodeID); err != nil {
		// Local deliveries still work; other nodes just cannot relay here.
		h.logger.Warn("failed to attach queue to session",
			zap.String("user_id", desc.UserID),
			zap.String("queue", nodeID),
			zap.Error(err),
		)
	}

	h.logger.Info("WebSocket client connected",
		zap.String("conn_id", client.ID()),
		zap.String("user_id", desc.UserID),
		zap.String("session_hash", pkgsession.ShortHash(client.SessionHash())),
		zap.String("device_type", desc.DeviceType),
	)

	go client.WritePump()
	go client.ReadPump()
}

// release runs once per closed socket.
func (h *WebSocketHandler) release(client *ws.Client) {
	logger := h.logger.With(
		zap.String("conn_id", client.ID()),
		zap.String("user_id", client.UserID()),
	)

	// A newer socket for the same session may already have replaced this
	// one; then the registry entry and the queue belong to it.
	if !h.connections.Release(client.UserID(), client.SessionToken(), client) {
		logger.Info("WebSocket client disconnected after being replaced")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), detachTimeout)
	defer cancel()
	if err := h.sessions.DetachQueue(ctx, client.SessionToken(), h.connections.NodeID()); err != nil {
		logger.Warn("failed to detach queue from session", zap.Error(err))
	}

	logger.Info("WebSocket client disconnected")
}

// extractToken extracts token from query param or Authorization header
func (h *WebSocketHandler) extractToken(c *gin.Context) string {
	// Try query parameter first (common for WebSocket)
	token := c.Query("token")
	if token != "" {
		return token
	}

	// Fallback to Authorization header
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1]
		}
	}

	return ""
}

// GetStats returns WebSocket connection statistics of this node
func (h *WebSocketHandler) GetStats(c *gin.Context) {
	stats := map[string]interface{}{
		"node_id":           h.connections.NodeID(),
		"total_connections": h.connections.ConnectionCount(),
		"timestamp":         h.now(),
	}

	response.Success(c, http.StatusOK, "WebSocket stats", stats)
}
