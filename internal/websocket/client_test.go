package websocket

import (
	"context"
	"testing"

	pkgsession "delivery-service/internal/pkg/session"

	"github.com/stretchr/testify/assert"
)

func newDetachedClient() *Client {
	return NewClient(nil, &ClientAuth{UserID: "u1", SessionToken: "tok"}, nil, nil)
}

func TestClient_SendQueuesUntilFull(t *testing.T) {
	c := newDetachedClient()
	closed := 0
	c.OnClose(func(*Client) { closed++ })

	for i := 0; i < sendBufferSize; i++ {
		assert.NoError(t, c.Send(context.Background(), []byte("x")))
	}

	assert.ErrorIs(t, c.Send(context.Background(), []byte("overflow")), ErrSendBufferFull)
	assert.Equal(t, 1, closed, "a client that cannot keep up is closed")
	assert.ErrorIs(t, c.Send(context.Background(), []byte("late")), ErrConnectionClosed)
}

func TestClient_CloseIsIdempotent(t *testing.T) {
	c := newDetachedClient()
	closed := 0
	c.OnClose(func(*Client) { closed++ })

	c.Close()
	c.Close()

	assert.Equal(t, 1, closed)
	assert.ErrorIs(t, c.Send(context.Background(), []byte("x")), ErrConnectionClosed)
}

func TestClient_Identity(t *testing.T) {
	c := newDetachedClient()

	assert.Equal(t, "u1", c.UserID())
	assert.Equal(t, "tok", c.SessionToken())
	assert.Equal(t, pkgsession.HashToken("tok"), c.SessionHash())
	assert.NotEmpty(t, c.ID())
}
