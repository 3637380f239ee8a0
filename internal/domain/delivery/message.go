// internal/domain/delivery/message.go
package delivery

import (
	"encoding/json"
	"fmt"
)

// Message is what gets pushed to a client socket: either plain text or a
// structured JSON object. The zero value is an empty message.
type Message struct {
	text    string
	payload map[string]interface{}
}

// Text wraps a plain string message. It is sent verbatim.
func Text(s string) Message {
	return Message{text: s}
}

// Payload wraps a structured message. It is serialized to JSON once per hop.
func Payload(p map[string]interface{}) Message {
	return Message{payload: p}
}

// IsZero reports whether the message carries nothing at all.
func (m Message) IsZero() bool {
	return m.text == "" && m.payload == nil
}

// IsStructured reports whether the message is a JSON object payload.
func (m Message) IsStructured() bool {
	return m.payload != nil
}

// Data returns the object stored under "data", if any.
func (m Message) Data() (map[string]interface{}, bool) {
	if m.payload == nil {
		return nil, false
	}
	data, ok := m.payload["data"].(map[string]interface{})
	return data, ok
}

// WithMuted returns a copy with data.muted set. Messages without an object
// "data" field are returned unchanged. The receiver is never modified, so a
// single Message can be fanned out to several sessions concurrently.
func (m Message) WithMuted(muted bool) Message {
	data, ok := m.Data()
	if !ok {
		return m
	}

	stamped := make(map[string]interface{}, len(data)+1)
	for k, v := range data {
		stamped[k] = v
	}
	stamped["muted"] = muted

	payload := make(map[string]interface{}, len(m.payload))
	for k, v := range m.payload {
		payload[k] = v
	}
	payload["data"] = stamped

	return Message{payload: payload}
}

// Encode serializes the message to its wire text.
func (m Message) Encode() (string, error) {
	if m.payload == nil {
		return m.text, nil
	}
	b, err := json.Marshal(m.payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode message: %w", err)
	}
	return string(b), nil
}

// ParseMessage is the inverse of Encode: JSON objects become structured
// payloads, anything else is kept as text.
func ParseMessage(raw string) Message {
	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &payload); err == nil && payload != nil {
		return Payload(payload)
	}
	return Text(raw)
}
