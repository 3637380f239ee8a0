// internal/pkg/response/builder.go
package response

import (
	"encoding/json"

	wstypes "delivery-service/internal/domain/websocket"
)

const undefinedError = "Undefined error"

// Builder produces the socket protocol response envelope.
type Builder struct {
	versions *wstypes.Versions
	messages map[int]string
}

// NewBuilder creates a builder. versions may be nil, in which case responses
// carry no versions field; messages maps error codes to default texts.
func NewBuilder(versions *wstypes.Versions, messages map[int]string) *Builder {
	if messages == nil {
		messages = wstypes.DefaultErrorMessages
	}
	return &Builder{versions: versions, messages: messages}
}

// BuildSuccess creates a successful response object.
func (b *Builder) BuildSuccess(data interface{}, requestID, method string) *wstypes.Response {
	if data == nil {
		data = map[string]interface{}{}
	}
	return &wstypes.Response{
		Result:    true,
		Method:    method,
		RequestID: requestID,
		Data:      data,
		Versions:  b.versions,
	}
}

// BuildError creates an error response object. An empty msg is looked up by code.
func (b *Builder) BuildError(code int, msg, requestID, method string) *wstypes.Response {
	if msg == "" {
		msg = b.ErrorMessage(code)
	}
	return &wstypes.Response{
		Result:    false,
		Method:    method,
		RequestID: requestID,
		Data:      map[string]interface{}{},
		Error:     &wstypes.ErrorBody{Msg: msg, Code: code},
		Versions:  b.versions,
	}
}

// CreateSuccess builds and serializes a successful response.
func (b *Builder) CreateSuccess(data interface{}, requestID, method string) ([]byte, error) {
	return b.Pack(b.BuildSuccess(data, requestID, method))
}

// CreateError builds and serializes an error response.
func (b *Builder) CreateError(code int, msg, requestID, method string) ([]byte, error) {
	return b.Pack(b.BuildError(code, msg, requestID, method))
}

// Pack serializes an already built response.
func (b *Builder) Pack(resp *wstypes.Response) ([]byte, error) {
	return json.Marshal(resp)
}

// ErrorMessage returns the configured text for code.
func (b *Builder) ErrorMessage(code int) string {
	if msg, ok := b.messages[code]; ok {
		return msg
	}
	return undefinedError
}
