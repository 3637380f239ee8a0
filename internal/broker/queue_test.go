package broker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQueue struct {
	mu        sync.Mutex
	items     chan string
	acked     []string
	leftovers int
	takeErr   error
}

func newFakeQueue(items ...string) *fakeQueue {
	q := &fakeQueue{items: make(chan string, len(items))}
	for _, it := range items {
		q.items <- it
	}
	return q
}

func (q *fakeQueue) take(ctx context.Context, timeout time.Duration) (string, error) {
	q.mu.Lock()
	err := q.takeErr
	q.takeErr = nil
	q.mu.Unlock()
	if err != nil {
		return "", err
	}

	select {
	case it := <-q.items:
		return it, nil
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(10 * time.Millisecond):
		return "", errQueueEmpty
	}
}

func (q *fakeQueue) ack(_ context.Context, raw string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.acked = append(q.acked, raw)
	return nil
}

func (q *fakeQueue) requeue(context.Context) (int, error) {
	return q.leftovers, nil
}

func (q *fakeQueue) ackedCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.acked)
}

func runConsumer(t *testing.T, c *QueueConsumer, handle HandlerFunc) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx, handle) }()
	return cancel, done
}

func TestQueueConsumer_AcksRegardlessOfOutcome(t *testing.T) {
	q := newFakeQueue("ok", "fail", "panic")
	c := newQueueConsumer(q, "jobs", 2, nil)

	cancel, done := runConsumer(t, c, func(_ context.Context, body []byte) error {
		switch string(body) {
		case "fail":
			return errors.New("push rejected")
		case "panic":
			panic("boom")
		}
		return nil
	})

	require.Eventually(t, func() bool { return q.ackedCount() == 3 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.ElementsMatch(t, []string{"ok", "fail", "panic"}, q.acked)
}

func TestQueueConsumer_BoundsConcurrency(t *testing.T) {
	items := make([]string, 20)
	for i := range items {
		items[i] = "job"
	}
	q := newFakeQueue(items...)
	c := newQueueConsumer(q, "jobs", 3, nil)

	var inFlight, peak int32
	cancel, done := runConsumer(t, c, func(context.Context, []byte) error {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return nil
	})

	require.Eventually(t, func() bool { return q.ackedCount() == 20 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(3))
}

func TestQueueConsumer_SurvivesTakeErrors(t *testing.T) {
	q := newFakeQueue("job")
	q.takeErr = errors.New("connection reset")
	c := newQueueConsumer(q, "jobs", 1, nil)

	cancel, done := runConsumer(t, c, func(context.Context, []byte) error { return nil })

	require.Eventually(t, func() bool { return q.ackedCount() == 1 }, 3*time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}

func TestNewQueueConsumer_MinimumOneTask(t *testing.T) {
	c := newQueueConsumer(newFakeQueue(), "jobs", 0, nil)
	assert.Equal(t, 1, c.maxTasks)
}
