// internal/domain/websocket/types.go
package websocket

import "encoding/json"

// Request is what a client sends over its socket.
type Request struct {
	Method    string                 `json:"method"`
	RequestID string                 `json:"request_id"`
	Data      json.RawMessage        `json:"data,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Response is the envelope every request is answered with.
type Response struct {
	Result    bool        `json:"result"`
	Method    string      `json:"method"`
	RequestID string      `json:"request_id"`
	Data      interface{} `json:"data"`
	Error     *ErrorBody  `json:"error"`
	Versions  *Versions   `json:"versions,omitempty"`
}

// ErrorBody describes a failed request.
type ErrorBody struct {
	Msg  string `json:"msg"`
	Code int    `json:"code"`
}

// Versions advertises the current mobile app releases to clients.
type Versions struct {
	IOS     string `json:"ios"`
	Android string `json:"android"`
}

// Protocol error codes
const (
	CodeInvalidRequest = 1
	CodeUnknownMethod  = 2
	CodeUnauthorized   = 3
	CodeNotFound       = 4
	CodeInternal       = 500
)

// DefaultErrorMessages maps protocol codes to client-facing messages.
var DefaultErrorMessages = map[int]string{
	CodeInvalidRequest: "Invalid request",
	CodeUnknownMethod:  "Unknown method",
	CodeUnauthorized:   "Unauthorized",
	CodeNotFound:       "Not found",
	CodeInternal:       "Internal server error",
}

// ParseRequest decodes a client frame.
func ParseRequest(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

// Built-in methods
const (
	MethodPing        = "ping"
	MethodSessionInfo = "session:info"
)
