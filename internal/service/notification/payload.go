// internal/service/notification/payload.go
package notification

import (
	"encoding/json"
	"strings"
)

// Push types understood by the mobile clients.
const (
	TypeMessage     = "message"
	TypeNewChat     = "new_chat"
	TypeReceiveCall = "receive_call"
)

// Payload is the {data, type} object carried in a job's
// notification_message.
type Payload struct {
	Type string                 `json:"type"`
	Data map[string]interface{} `json:"data"`
}

// ParsePayload reads a notification_message. Anything that is not a typed
// JSON object is treated as the text of a plain message push.
func ParsePayload(raw string) Payload {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "{") {
		var p Payload
		if err := json.Unmarshal([]byte(trimmed), &p); err == nil && p.Type != "" {
			if p.Data == nil {
				p.Data = map[string]interface{}{}
			}
			return p
		}
	}
	return Payload{Type: TypeMessage, Data: map[string]interface{}{"text": raw}}
}

func (p Payload) IsCall() bool {
	return p.Type == TypeReceiveCall
}

func (p Payload) str(key string) string {
	s, _ := p.Data[key].(string)
	return s
}
