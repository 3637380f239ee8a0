// internal/domain/delivery/envelope.go
package delivery

import (
	"encoding/json"
	"fmt"

	xerrors "delivery-service/internal/pkg/errors"
)

// Envelope is what one node relays to another over the per-node channel.
// Message is already serialized by the relaying node.
type Envelope struct {
	Message             string `json:"message"`
	NotificationMessage string `json:"notification_message,omitempty"`
	SessionTokenHash    string `json:"session_token_hash"`
	ChatID              string `json:"chat_id,omitempty"`
}

// Marshal encodes the envelope for the relay channel.
func (e *Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// ParseEnvelope decodes an envelope received from the relay channel.
func ParseEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to parse envelope: %w", err)
	}
	if env.SessionTokenHash == "" {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "envelope without session_token_hash")
	}
	return &env, nil
}

// NotificationJob is what the router enqueues on the shared notification
// queue for the push worker pool.
type NotificationJob struct {
	UserID              string `json:"user_id"`
	NotificationMessage string `json:"notification_message"`
	NotificationToken   string `json:"notification_token"`
	DeviceType          string `json:"device_type"`
	VoipToken           string `json:"voip_token,omitempty"`
}

// Marshal encodes the job for the notification queue.
func (j *NotificationJob) Marshal() ([]byte, error) {
	return json.Marshal(j)
}

// ParseNotificationJob decodes a job taken off the notification queue.
func ParseNotificationJob(data []byte) (*NotificationJob, error) {
	var job NotificationJob
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to parse notification job: %w", err)
	}
	return &job, nil
}

// Validate rejects jobs the push senders cannot act on.
func (j *NotificationJob) Validate() error {
	switch {
	case j.UserID == "":
		return xerrors.Wrap(xerrors.ErrInvalidInput, "notification job without user_id")
	case j.NotificationMessage == "":
		return xerrors.Wrap(xerrors.ErrInvalidInput, "notification job without notification_message")
	case j.NotificationToken == "" && j.VoipToken == "":
		return xerrors.Wrap(xerrors.ErrInvalidInput, "notification job without push token")
	}
	return nil
}

// PublishOptions controls how the broker treats a published body.
// Persistent bodies survive a broker restart; relay traffic is not persistent.
type PublishOptions struct {
	Persistent bool
}
