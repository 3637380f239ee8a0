package delivery

import (
	"sync"
	"testing"

	pkgsession "delivery-service/internal/pkg/session"

	"github.com/stretchr/testify/assert"
)

func TestRegistry_RegisterLookup(t *testing.T) {
	r := NewRegistry()
	h := &fakeHandle{}

	r.Register("u1", "A", h)
	r.Register("u1", "A", h)

	got, ok := r.Lookup("u1", "A")
	assert.True(t, ok)
	assert.Same(t, h, got)
	assert.Equal(t, 1, r.Count())

	_, ok = r.Lookup("u1", "B")
	assert.False(t, ok)
	_, ok = r.Lookup("u2", "A")
	assert.False(t, ok)
}

func TestRegistry_RegisterReplaces(t *testing.T) {
	r := NewRegistry()
	first, second := &fakeHandle{}, &fakeHandle{}

	r.Register("u1", "A", first)
	r.Register("u1", "A", second)

	got, _ := r.Lookup("u1", "A")
	assert.Same(t, second, got)
	assert.Equal(t, 1, r.Count())
}

func TestRegistry_UnregisterIsIdempotentAndCollapsesBucket(t *testing.T) {
	r := NewRegistry()
	r.Register("u1", "A", &fakeHandle{})

	assert.True(t, r.Unregister("u1", "A"))
	assert.False(t, r.Unregister("u1", "A"))
	assert.False(t, r.Unregister("ghost", "Z"))

	assert.Zero(t, r.UserCount(), "empty user bucket must be removed")
	_, _, _, ok := r.LookupByHash(pkgsession.HashToken("A"))
	assert.False(t, ok)
}

func TestRegistry_ReleaseOnlyRemovesMatchingHandle(t *testing.T) {
	r := NewRegistry()
	old, fresh := &fakeHandle{}, &fakeHandle{}
	r.Register("u1", "A", old)
	r.Register("u1", "A", fresh)

	assert.False(t, r.Release("u1", "A", old))
	got, ok := r.Lookup("u1", "A")
	assert.True(t, ok)
	assert.Same(t, fresh, got)

	assert.True(t, r.Release("u1", "A", fresh))
	assert.Zero(t, r.Count())
}

func TestRegistry_LookupByHash(t *testing.T) {
	r := NewRegistry()
	h := &fakeHandle{}
	r.Register("u1", "A", h)

	userID, token, got, ok := r.LookupByHash(pkgsession.HashToken("A"))
	assert.True(t, ok)
	assert.Equal(t, "u1", userID)
	assert.Equal(t, "A", token)
	assert.Same(t, h, got)
}

func TestRegistry_ConcurrentUnregister(t *testing.T) {
	r := NewRegistry()
	r.Register("u1", "A", &fakeHandle{})

	var wg sync.WaitGroup
	removed := make([]bool, 8)
	for i := range removed {
		wg.Add(1)
		go func() {
			defer wg.Done()
			removed[i] = r.Unregister("u1", "A")
		}()
	}
	wg.Wait()

	count := 0
	for _, ok := range removed {
		if ok {
			count++
		}
	}
	assert.Equal(t, 1, count)
	assert.Zero(t, r.UserCount())
}
