// internal/websocket/errors.go
package websocket

import "errors"

var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrSendBufferFull   = errors.New("send buffer full")
	ErrSessionInactive  = errors.New("session is not active")
)
