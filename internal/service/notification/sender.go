// internal/service/notification/sender.go
package notification

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	domain "delivery-service/internal/domain/delivery"
)

// Sender delivers one push to one device.
type Sender interface {
	Send(ctx context.Context, job *domain.NotificationJob, p Payload) error
}

const defaultHTTPTimeout = 10 * time.Second

// StatusError is returned when a push provider answers with HTTP >= 400.
type StatusError struct {
	Provider   string
	StatusCode int
	Reason     string
}

func (e *StatusError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s: received %d status: %s", e.Provider, e.StatusCode, e.Reason)
	}
	return fmt.Sprintf("%s: received %d status", e.Provider, e.StatusCode)
}

func readBody(resp *http.Response) []byte {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	return b
}
