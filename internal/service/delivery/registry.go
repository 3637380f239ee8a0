// internal/service/delivery/registry.go
package delivery

import (
	"context"
	"sync"

	pkgsession "delivery-service/internal/pkg/session"
)

// Handle is a live socket owned by this node.
type Handle interface {
	Send(ctx context.Context, data []byte) error
}

type connKey struct {
	userID string
	token  string
}

// Registry is the per-node table of live sockets keyed by (user, session
// token). It is only a hint: the session directory's queue_name may briefly
// disagree with it and nothing reconciles the two.
type Registry struct {
	mu     sync.RWMutex
	users  map[string]map[string]Handle
	byHash map[string]connKey
}

func NewRegistry() *Registry {
	return &Registry{
		users:  make(map[string]map[string]Handle),
		byHash: make(map[string]connKey),
	}
}

// Register stores h under (userID, token), replacing any previous handle.
func (r *Registry) Register(userID, token string, h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.users[userID] == nil {
		r.users[userID] = make(map[string]Handle)
	}
	r.users[userID][token] = h
	r.byHash[pkgsession.HashToken(token)] = connKey{userID: userID, token: token}
}

// Unregister removes (userID, token). Removing an absent key is a no-op.
func (r *Registry) Unregister(userID, token string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.remove(userID, token, nil)
}

// Release removes (userID, token) only while it still maps to h, so a socket
// closing late cannot evict the handle of a newer connection on the same key.
func (r *Registry) Release(userID, token string, h Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.remove(userID, token, h)
}

// Lookup returns the handle registered under (userID, token), if any.
func (r *Registry) Lookup(userID, token string) (Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.users[userID][token]
	return h, ok
}

// LookupByHash resolves a relayed session_token_hash to a local handle.
func (r *Registry) LookupByHash(hash string) (userID, token string, h Handle, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	key, found := r.byHash[hash]
	if !found {
		return "", "", nil, false
	}
	h, ok = r.users[key.userID][key.token]
	return key.userID, key.token, h, ok
}

// Count returns the number of live handles.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := 0
	for _, sessions := range r.users {
		total += len(sessions)
	}
	return total
}

// UserCount returns the number of users with at least one live handle.
func (r *Registry) UserCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}

func (r *Registry) remove(userID, token string, want Handle) bool {
	sessions, ok := r.users[userID]
	if !ok {
		return false
	}
	current, ok := sessions[token]
	if !ok || (want != nil && current != want) {
		return false
	}

	delete(sessions, token)
	if len(sessions) == 0 {
		delete(r.users, userID)
	}
	delete(r.byHash, pkgsession.HashToken(token))
	return true
}
