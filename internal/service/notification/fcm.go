// internal/service/notification/fcm.go
package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	domain "delivery-service/internal/domain/delivery"
)

// FCMSender talks to the legacy FCM HTTP endpoint.
type FCMSender struct {
	url       string
	serverKey string
	client    *http.Client
}

func NewFCMSender(url, serverKey string, client *http.Client) *FCMSender {
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &FCMSender{url: url, serverKey: serverKey, client: client}
}

type fcmMessage struct {
	To       string            `json:"to"`
	Data     map[string]string `json:"data"`
	Webpush  fcmWebpush        `json:"webpush"`
	Android  fcmAndroid        `json:"android"`
	Priority int               `json:"priority"`
}

type fcmWebpush struct {
	Headers map[string]string `json:"headers"`
}

type fcmAndroid struct {
	Priority string `json:"priority"`
	TTL      string `json:"ttl,omitempty"`
}

func (s *FCMSender) buildMessage(job *domain.NotificationJob, p Payload) ([]byte, error) {
	data, err := json.Marshal(p.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode push data: %w", err)
	}

	msg := fcmMessage{
		To: job.NotificationToken,
		Data: map[string]string{
			"data":    string(data),
			"type":    p.Type,
			"user_id": job.UserID,
		},
		Webpush:  fcmWebpush{Headers: map[string]string{"Urgency": "high"}},
		Android:  fcmAndroid{Priority: "high"},
		Priority: 10,
	}
	// A ringing call is worthless once the caller has hung up.
	if p.IsCall() {
		msg.Android.TTL = "10s"
	}

	return json.Marshal(msg)
}

func (s *FCMSender) Send(ctx context.Context, job *domain.NotificationJob, p Payload) error {
	body, err := s.buildMessage(job, p)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build FCM request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "key="+s.serverKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send FCM request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return &StatusError{Provider: "fcm", StatusCode: resp.StatusCode, Reason: string(bytes.TrimSpace(readBody(resp)))}
	}
	return nil
}
