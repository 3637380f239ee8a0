package delivery

import (
	"context"
	"errors"
	"sync"

	domain "delivery-service/internal/domain/delivery"
	"delivery-service/internal/domain/session"
	xerrors "delivery-service/internal/pkg/errors"
)

type fakeDirectory struct {
	mu        sync.Mutex
	sessions  []*session.Descriptor
	listErr   error
	getErr    error
	listCalls int
	getCalls  int
}

func newFakeDirectory(sessions ...*session.Descriptor) *fakeDirectory {
	return &fakeDirectory{sessions: sessions}
}

func (d *fakeDirectory) GetSessions(_ context.Context, userID string) ([]*session.Descriptor, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listCalls++
	if d.listErr != nil {
		return nil, d.listErr
	}
	var out []*session.Descriptor
	for _, s := range d.sessions {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (d *fakeDirectory) GetSession(_ context.Context, token string) (*session.Descriptor, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.getCalls++
	if d.getErr != nil {
		return nil, d.getErr
	}
	for _, s := range d.sessions {
		if s.SessionToken == token {
			return s, nil
		}
	}
	return nil, xerrors.ErrNotFound
}

func (d *fakeDirectory) calls() (int, int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.listCalls, d.getCalls
}

type fakeMutes struct {
	mu    sync.Mutex
	muted map[string]bool
	err   error
	calls int
}

func (m *fakeMutes) ShouldMute(_ context.Context, chatID, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return false, m.err
	}
	return m.muted[chatID+"/"+userID], nil
}

type published struct {
	channel    string
	body       []byte
	persistent bool
}

type fakeTransport struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (t *fakeTransport) Publish(_ context.Context, channel string, body []byte, opts domain.PublishOptions) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil {
		return t.err
	}
	t.msgs = append(t.msgs, published{channel: channel, body: body, persistent: opts.Persistent})
	return nil
}

func (t *fakeTransport) on(channel string) []published {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []published
	for _, m := range t.msgs {
		if m.channel == channel {
			out = append(out, m)
		}
	}
	return out
}

func (t *fakeTransport) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.msgs)
}

var errSocketClosed = errors.New("socket closed")

type fakeHandle struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (h *fakeHandle) Send(_ context.Context, data []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err != nil {
		return h.err
	}
	h.sent = append(h.sent, string(data))
	return nil
}

func (h *fakeHandle) messages() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.sent...)
}
