package response

import (
	"testing"

	wstypes "delivery-service/internal/domain/websocket"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder_Success(t *testing.T) {
	b := NewBuilder(&wstypes.Versions{IOS: "1.2.0", Android: "1.3.0"}, nil)

	raw, err := b.CreateSuccess(map[string]interface{}{"pong": true}, "r-1", "ping")
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"result": true,
		"method": "ping",
		"request_id": "r-1",
		"data": {"pong": true},
		"error": null,
		"versions": {"ios": "1.2.0", "android": "1.3.0"}
	}`, string(raw))
}

func TestBuilder_SuccessDefaultsToEmptyData(t *testing.T) {
	raw, err := NewBuilder(nil, nil).CreateSuccess(nil, "r-2", "chat:send")
	require.NoError(t, err)

	assert.JSONEq(t, `{"result":true,"method":"chat:send","request_id":"r-2","data":{},"error":null}`, string(raw))
}

func TestBuilder_Error(t *testing.T) {
	b := NewBuilder(nil, map[int]string{7: "Chat is closed"})

	resp := b.BuildError(7, "", "r-3", "chat:send")
	assert.False(t, resp.Result)
	assert.Equal(t, &wstypes.ErrorBody{Msg: "Chat is closed", Code: 7}, resp.Error)
	assert.Equal(t, map[string]interface{}{}, resp.Data)

	resp = b.BuildError(7, "custom", "r-3", "chat:send")
	assert.Equal(t, "custom", resp.Error.Msg)

	resp = b.BuildError(99, "", "r-4", "x")
	assert.Equal(t, "Undefined error", resp.Error.Msg)
}

func TestBuilder_ErrorSerialized(t *testing.T) {
	raw, err := NewBuilder(nil, nil).CreateError(wstypes.CodeUnknownMethod, "", "r-5", "nope")
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"result": false,
		"method": "nope",
		"request_id": "r-5",
		"data": {},
		"error": {"msg": "Unknown method", "code": 2}
	}`, string(raw))
}
