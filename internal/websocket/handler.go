// internal/websocket/handler.go
package websocket

import (
	"context"
	"fmt"

	wstypes "delivery-service/internal/domain/websocket"
	xerrors "delivery-service/internal/pkg/errors"
	"delivery-service/internal/pkg/response"

	"go.uber.org/zap"
)

// MessageHandler interface that each module must implement
type MessageHandler interface {
	// HandleMessage processes a request and returns the response data.
	// Errors carrying a code (xerrors.WithCode) are reported with that code.
	HandleMessage(ctx context.Context, client *Client, req *wstypes.Request) (interface{}, error)

	// SupportedMethods returns the methods this handler serves
	SupportedMethods() []string
}

// Router dispatches socket requests by method and wraps every outcome in
// the protocol response envelope. One method maps to one handler.
type Router struct {
	handlers map[string]MessageHandler
	builder  *response.Builder
	logger   *zap.Logger
}

func NewRouter(builder *response.Builder, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		handlers: make(map[string]MessageHandler),
		builder:  builder,
		logger:   logger.Named("ws-router"),
	}
}

// Register registers a handler for its supported methods. Registering a
// method twice panics; it is a wiring mistake.
func (r *Router) Register(handler MessageHandler) {
	for _, method := range handler.SupportedMethods() {
		if _, exists := r.handlers[method]; exists {
			panic(fmt.Sprintf("websocket: method %q registered twice", method))
		}
		r.handlers[method] = handler
	}
}

// Process handles one raw client frame and returns the serialized reply.
func (r *Router) Process(ctx context.Context, client *Client, raw []byte) []byte {
	req, err := wstypes.ParseRequest(raw)
	if err != nil {
		return r.pack(r.builder.BuildError(wstypes.CodeInvalidRequest, "", "", ""))
	}

	handler, ok := r.handlers[req.Method]
	if !ok {
		return r.pack(r.builder.BuildError(wstypes.CodeUnknownMethod, "", req.RequestID, req.Method))
	}

	data, err := handler.HandleMessage(ctx, client, req)
	if err != nil {
		code, msg := xerrors.CodeOf(err, wstypes.CodeInternal)
		if code == wstypes.CodeInternal {
			r.logger.Error("handler failed", zap.String("method", req.Method), zap.Error(err))
		}
		return r.pack(r.builder.BuildError(code, msg, req.RequestID, req.Method))
	}

	return r.pack(r.builder.BuildSuccess(data, req.RequestID, req.Method))
}

func (r *Router) pack(resp *wstypes.Response) []byte {
	out, err := r.builder.Pack(resp)
	if err != nil {
		r.logger.Error("failed to encode response", zap.String("method", resp.Method), zap.Error(err))
		out, _ = r.builder.CreateError(wstypes.CodeInternal, "", resp.RequestID, resp.Method)
	}
	return out
}
