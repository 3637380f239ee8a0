// internal/app/router.go
package app

import (
	wsHandler "delivery-service/internal/handlers/websocket"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handlers struct {
	Health    gin.HandlerFunc
	WSHandler *wsHandler.WebSocketHandler
	WSLimit   gin.HandlerFunc
}

func SetupRouter(r *gin.Engine, logger *zap.Logger, h *Handlers) {
	api := r.Group("/api/v1")

	// ==================== Health Check ====================
	api.GET("/health", h.Health)

	// ==================== WebSocket ====================
	r.GET("/ws", h.WSLimit, h.WSHandler.HandleConnection)
	api.GET("/ws/stats", h.WSHandler.GetStats)

	logger.Info("routes registered", zap.Int("count", len(r.Routes())))
}
