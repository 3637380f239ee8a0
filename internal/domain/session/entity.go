// internal/domain/session/entity.go
package session

import "time"

// Status mirrors the smallint stored in the sessions table.
type Status int16

const (
	StatusInactive Status = 0
	StatusActive   Status = 1
)

// DefaultExpiry is how long a freshly issued session stays valid.
const DefaultExpiry = 7 * 24 * time.Hour

// Descriptor is the authoritative record of a login session. It is created
// and mutated by the auth flows; delivery code only reads it.
type Descriptor struct {
	ID                int64  `json:"id" db:"id"`
	UserID            string `json:"user_id" db:"user_id"`
	SessionToken      string `json:"-" db:"session_token"`
	RefreshToken      string `json:"-" db:"refresh_token"`
	Status            Status `json:"status" db:"status"`
	ExpiresAt         int64  `json:"expires_at" db:"expires_at"` // epoch ms
	QueueName         string `json:"queue_name,omitempty" db:"queue_name"`
	NotificationToken string `json:"notification_token,omitempty" db:"notification_token"`
	DeviceType        string `json:"device_type,omitempty" db:"device_type"`
	VoipToken         string `json:"voip_token,omitempty" db:"voip_token"`
	SessionTokenHash  string `json:"session_token_hash" db:"session_token_hash"`
}

// Device types understood by the push senders.
const (
	DeviceAndroid = "android"
	DeviceIOS     = "ios"
)

// HasPushCredentials reports whether a push notification can be addressed
// to this session.
func (d *Descriptor) HasPushCredentials() bool {
	return d.NotificationToken != "" && d.DeviceType != ""
}

// HasQueue reports whether some node is known to hold a live socket.
func (d *Descriptor) HasQueue() bool {
	return d.QueueName != ""
}

// IsActive reports whether the session is active and not expired at now.
func (d *Descriptor) IsActive(now time.Time) bool {
	if d.Status != StatusActive {
		return false
	}
	return d.ExpiresAt == 0 || d.ExpiresAt > now.UnixMilli()
}
