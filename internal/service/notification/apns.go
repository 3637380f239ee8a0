// internal/service/notification/apns.go
package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	domain "delivery-service/internal/domain/delivery"
)

const (
	APNsProductionURL  = "https://api.push.apple.com"
	APNsDevelopmentURL = "https://api.sandbox.push.apple.com"

	defaultAlertBody = "You have a new message"
)

var ErrMissingVoipToken = errors.New("voip token not set")

// TokenSource supplies the provider bearer token.
type TokenSource interface {
	Token() (string, error)
	Invalidate()
}

type APNsConfig struct {
	BaseURL   string
	Topic     string
	VoipTopic string
}

// APNsSender uses token-based APNs. The default transport negotiates
// HTTP/2, which APNs requires.
type APNsSender struct {
	cfg    APNsConfig
	tokens TokenSource
	client *http.Client
}

func NewAPNsSender(cfg APNsConfig, tokens TokenSource, client *http.Client) *APNsSender {
	if cfg.BaseURL == "" {
		cfg.BaseURL = APNsDevelopmentURL
	}
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &APNsSender{cfg: cfg, tokens: tokens, client: client}
}

type apnsAlert struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type apnsAps struct {
	Alert apnsAlert `json:"alert"`
	Sound string    `json:"sound"`
}

type apnsPayload struct {
	Aps    apnsAps     `json:"aps"`
	Data   interface{} `json:"data"`
	Type   string      `json:"type"`
	UserID string      `json:"userId"`
}

func (s *APNsSender) buildPayload(job *domain.NotificationJob, p Payload) ([]byte, error) {
	body := p.str("text")
	if p.str("chat_type") == "secret" || body == "" {
		body = defaultAlertBody
	}

	// VoIP pushes hand the object to PushKit; alerts carry it as a string.
	var data interface{} = p.Data
	if !p.IsCall() {
		encoded, err := json.Marshal(p.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to encode push data: %w", err)
		}
		data = string(encoded)
	}

	return json.Marshal(apnsPayload{
		Aps: apnsAps{
			Alert: apnsAlert{Title: p.str("chat_name"), Body: body},
			Sound: "default",
		},
		Data:   data,
		Type:   p.Type,
		UserID: job.UserID,
	})
}

func (s *APNsSender) Send(ctx context.Context, job *domain.NotificationJob, p Payload) error {
	device, topic, pushType := job.NotificationToken, s.cfg.Topic, "alert"
	if p.IsCall() {
		if job.VoipToken == "" {
			return ErrMissingVoipToken
		}
		device, topic, pushType = job.VoipToken, s.cfg.VoipTopic, "voip"
	}
	if device == "" {
		return fmt.Errorf("apns: no device token for %s push", pushType)
	}

	body, err := s.buildPayload(job, p)
	if err != nil {
		return err
	}

	bearer, err := s.tokens.Token()
	if err != nil {
		return fmt.Errorf("failed to get APNs provider token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.BaseURL+"/3/device/"+device, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build APNs request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "bearer "+bearer)
	req.Header.Set("apns-topic", topic)
	req.Header.Set("apns-push-type", pushType)
	req.Header.Set("apns-priority", "10")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send APNs request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		return nil
	}

	var reason struct {
		Reason string `json:"reason"`
	}
	_ = json.Unmarshal(readBody(resp), &reason)
	if reason.Reason == "ExpiredProviderToken" {
		s.tokens.Invalidate()
	}
	return &StatusError{Provider: "apns", StatusCode: resp.StatusCode, Reason: reason.Reason}
}
