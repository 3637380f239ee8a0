// internal/websocket/handler/presence.go
package handler

import (
	"context"
	"fmt"
	"time"

	wstypes "delivery-service/internal/domain/websocket"
	ws "delivery-service/internal/websocket"
)

// PresenceHandler answers liveness and session introspection requests.
type PresenceHandler struct {
	nodeID string
	now    func() time.Time
}

func NewPresenceHandler(nodeID string) *PresenceHandler {
	return &PresenceHandler{nodeID: nodeID, now: time.Now}
}

// SupportedMethods returns methods this handler supports
func (h *PresenceHandler) SupportedMethods() []string {
	return []string{
		wstypes.MethodPing,
		wstypes.MethodSessionInfo,
	}
}

// HandleMessage processes presence requests
func (h *PresenceHandler) HandleMessage(ctx context.Context, client *ws.Client, req *wstypes.Request) (interface{}, error) {
	switch req.Method {
	case wstypes.MethodPing:
		return map[string]interface{}{
			"pong": true,
			"time": h.now().UnixMilli(),
		}, nil

	case wstypes.MethodSessionInfo:
		return map[string]interface{}{
			"user_id":            client.UserID(),
			"connection_id":      client.ID(),
			"node_id":            h.nodeID,
			"device_type":        client.DeviceType(),
			"session_token_hash": client.SessionHash(),
			"connected_at":       client.ConnectedAt().UnixMilli(),
		}, nil

	default:
		return nil, fmt.Errorf("unsupported method: %s", req.Method)
	}
}
