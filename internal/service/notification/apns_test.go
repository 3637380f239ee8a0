package notification

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	domain "delivery-service/internal/domain/delivery"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTokens struct {
	invalidated int
}

func (f *fakeTokens) Token() (string, error) { return "provider-jwt", nil }
func (f *fakeTokens) Invalidate()            { f.invalidated++ }

type apnsRequest struct {
	path    string
	headers http.Header
	body    map[string]interface{}
}

func newAPNsServer(t *testing.T, status int, reason string) (*httptest.Server, *[]apnsRequest) {
	t.Helper()
	var (
		mu   sync.Mutex
		reqs []apnsRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var body map[string]interface{}
		_ = json.Unmarshal(raw, &body)
		mu.Lock()
		reqs = append(reqs, apnsRequest{path: r.URL.Path, headers: r.Header.Clone(), body: body})
		mu.Unlock()

		w.WriteHeader(status)
		if reason != "" {
			_, _ = w.Write([]byte(`{"reason":"` + reason + `"}`))
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &reqs
}

func testAPNsConfig(url string) APNsConfig {
	return APNsConfig{BaseURL: url, Topic: "com.example.chat", VoipTopic: "com.example.chat.voip"}
}

func TestAPNsSender_AlertPush(t *testing.T) {
	srv, reqs := newAPNsServer(t, http.StatusOK, "")
	s := NewAPNsSender(testAPNsConfig(srv.URL), &fakeTokens{}, srv.Client())

	job := &domain.NotificationJob{UserID: "u1", NotificationToken: "device-1", DeviceType: "ios"}
	p := Payload{Type: TypeMessage, Data: map[string]interface{}{"chat_name": "Team", "text": "hello"}}

	require.NoError(t, s.Send(context.Background(), job, p))
	require.Len(t, *reqs, 1)

	req := (*reqs)[0]
	assert.Equal(t, "/3/device/device-1", req.path)
	assert.Equal(t, "bearer provider-jwt", req.headers.Get("Authorization"))
	assert.Equal(t, "com.example.chat", req.headers.Get("apns-topic"))
	assert.Equal(t, "alert", req.headers.Get("apns-push-type"))

	aps := req.body["aps"].(map[string]interface{})
	assert.Equal(t, map[string]interface{}{"title": "Team", "body": "hello"}, aps["alert"])
	assert.Equal(t, "default", aps["sound"])
	assert.Equal(t, `{"chat_name":"Team","text":"hello"}`, req.body["data"])
	assert.Equal(t, "u1", req.body["userId"])
}

func TestAPNsSender_DefaultBody(t *testing.T) {
	s := NewAPNsSender(APNsConfig{}, &fakeTokens{}, nil)
	job := &domain.NotificationJob{UserID: "u1"}

	for name, data := range map[string]map[string]interface{}{
		"secret chat": {"chat_type": "secret", "text": "do not show"},
		"empty text":  {"chat_type": "private"},
	} {
		t.Run(name, func(t *testing.T) {
			body, err := s.buildPayload(job, Payload{Type: TypeMessage, Data: data})
			require.NoError(t, err)

			var got apnsPayload
			require.NoError(t, json.Unmarshal(body, &got))
			assert.Equal(t, defaultAlertBody, got.Aps.Alert.Body)
		})
	}
}

func TestAPNsSender_VoipPush(t *testing.T) {
	srv, reqs := newAPNsServer(t, http.StatusOK, "")
	s := NewAPNsSender(testAPNsConfig(srv.URL), &fakeTokens{}, srv.Client())

	job := &domain.NotificationJob{UserID: "u1", NotificationToken: "device-1", VoipToken: "voip-1", DeviceType: "ios"}
	p := Payload{Type: TypeReceiveCall, Data: map[string]interface{}{"call": "c1"}}

	require.NoError(t, s.Send(context.Background(), job, p))
	require.Len(t, *reqs, 1)

	req := (*reqs)[0]
	assert.Equal(t, "/3/device/voip-1", req.path)
	assert.Equal(t, "com.example.chat.voip", req.headers.Get("apns-topic"))
	assert.Equal(t, "voip", req.headers.Get("apns-push-type"))
	assert.Equal(t, map[string]interface{}{"call": "c1"}, req.body["data"])
}

func TestAPNsSender_CallWithoutVoipToken(t *testing.T) {
	srv, reqs := newAPNsServer(t, http.StatusOK, "")
	s := NewAPNsSender(testAPNsConfig(srv.URL), &fakeTokens{}, srv.Client())

	job := &domain.NotificationJob{UserID: "u1", NotificationToken: "device-1", DeviceType: "ios"}
	err := s.Send(context.Background(), job, Payload{Type: TypeReceiveCall, Data: map[string]interface{}{}})

	assert.ErrorIs(t, err, ErrMissingVoipToken)
	assert.Empty(t, *reqs)
}

func TestAPNsSender_ExpiredTokenInvalidates(t *testing.T) {
	srv, _ := newAPNsServer(t, http.StatusForbidden, "ExpiredProviderToken")
	tokens := &fakeTokens{}
	s := NewAPNsSender(testAPNsConfig(srv.URL), tokens, srv.Client())

	job := &domain.NotificationJob{UserID: "u1", NotificationToken: "device-1", DeviceType: "ios"}
	err := s.Send(context.Background(), job, ParsePayload("hi"))

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, "ExpiredProviderToken", statusErr.Reason)
	assert.Equal(t, 1, tokens.invalidated)
}
