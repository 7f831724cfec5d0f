package notify

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSubscriber is an in-memory subscriber with a configurable buffer.
type fakeSubscriber struct {
	send   chan []byte
	closed bool
}

func newFakeSubscriber(buffer int) *fakeSubscriber {
	return &fakeSubscriber{send: make(chan []byte, buffer)}
}

func (f *fakeSubscriber) sendChannel() chan []byte { return f.send }
func (f *fakeSubscriber) close()                   { f.closed = true }

func receive(t *testing.T, sub *fakeSubscriber) Update {
	t.Helper()
	select {
	case data, ok := <-sub.send:
		require.True(t, ok, "send channel closed unexpectedly")
		var update Update
		require.NoError(t, json.Unmarshal(data, &update))
		return update
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for update")
		return Update{}
	}
}

func TestBroadcasterFanOut(t *testing.T) {
	b := NewBroadcaster()
	go b.Run()
	defer b.Stop()

	first := newFakeSubscriber(4)
	second := newFakeSubscriber(4)
	b.register <- first
	b.register <- second

	b.Publish(Update{Kind: "session", Owner: "ada", Date: "2026-03-14",
		Payload: map[string]any{"event": "turn-recorded"}})

	for _, sub := range []*fakeSubscriber{first, second} {
		update := receive(t, sub)
		assert.Equal(t, "session", update.Kind)
		assert.Equal(t, "ada", update.Owner)
		assert.False(t, update.Timestamp.IsZero(), "publish stamps a missing timestamp")
	}
}

func TestBroadcasterDropsSlowSubscriber(t *testing.T) {
	b := NewBroadcaster()
	go b.Run()
	defer b.Stop()

	slow := newFakeSubscriber(1)
	healthy := newFakeSubscriber(8)
	b.register <- slow
	b.register <- healthy

	// The second update overflows the slow subscriber's buffer.
	b.Publish(Update{Kind: "session", Owner: "ada", Date: "2026-03-14"})
	b.Publish(Update{Kind: "session", Owner: "ada", Date: "2026-03-14"})

	receive(t, healthy)
	receive(t, healthy)

	require.Eventually(t, func() bool {
		b.mu.Lock()
		defer b.mu.Unlock()
		return !b.clients[slow]
	}, 2*time.Second, 10*time.Millisecond, "slow subscriber must be evicted")

	// Its channel is closed so a pump ranging over it terminates.
	<-slow.send
	_, ok := <-slow.send
	assert.False(t, ok)
}

func TestBroadcasterUnregister(t *testing.T) {
	b := NewBroadcaster()
	go b.Run()
	defer b.Stop()

	sub := newFakeSubscriber(1)
	b.register <- sub
	b.unregister <- sub

	require.Eventually(t, func() bool {
		b.mu.Lock()
		defer b.mu.Unlock()
		return len(b.clients) == 0
	}, 2*time.Second, 10*time.Millisecond)
}
