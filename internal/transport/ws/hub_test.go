package ws

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	h := NewHub(zap.NewNop())
	t.Cleanup(h.Close)
	return h
}

func subscribe(t *testing.T, h *Hub, sessionID string, queue int) *Subscriber {
	t.Helper()
	sub := &Subscriber{SessionID: sessionID, Send: make(chan []byte, queue)}
	h.Register(sub)

	// First event is always the connected handshake.
	ev := recvEvent(t, sub)
	require.Equal(t, EventConnected, ev.Type)
	return sub
}

func recvEvent(t *testing.T, sub *Subscriber) Event {
	t.Helper()
	select {
	case payload, ok := <-sub.Send:
		require.True(t, ok, "send channel closed unexpectedly")
		var ev Event
		require.NoError(t, json.Unmarshal(payload, &ev))
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func seqOf(t *testing.T, ev Event) int {
	t.Helper()
	var body struct {
		Seq int `json:"seq"`
	}
	require.NoError(t, json.Unmarshal(ev.Data, &body))
	return body.Seq
}

func TestHub_PublishMetricsReachesSubscriber(t *testing.T) {
	h := newTestHub(t)
	sub := subscribe(t, h, "sess-1", 16)

	h.PublishMetrics("sess-1", map[string]int{"seq": 1})

	ev := recvEvent(t, sub)
	assert.Equal(t, EventMetrics, ev.Type)
	assert.Equal(t, 1, seqOf(t, ev))
}

func TestHub_MultipleSubscribersPerSession(t *testing.T) {
	h := newTestHub(t)
	a := subscribe(t, h, "sess-1", 16)
	b := subscribe(t, h, "sess-1", 16)

	h.PublishMetrics("sess-1", map[string]int{"seq": 7})

	assert.Equal(t, 7, seqOf(t, recvEvent(t, a)))
	assert.Equal(t, 7, seqOf(t, recvEvent(t, b)))
}

func TestHub_SessionsAreIsolated(t *testing.T) {
	h := newTestHub(t)
	sub := subscribe(t, h, "sess-1", 16)
	other := subscribe(t, h, "sess-2", 16)

	h.PublishMetrics("sess-2", map[string]int{"seq": 1})

	assert.Equal(t, 1, seqOf(t, recvEvent(t, other)))
	select {
	case payload := <-sub.Send:
		t.Fatalf("subscriber of another session received %s", payload)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_SlowSubscriberDropsOldest(t *testing.T) {
	h := newTestHub(t)

	// The witness has room for everything; its delivery of the final event
	// proves the hub has finished fanning out every broadcast.
	slow := subscribe(t, h, "sess-1", 2)
	witness := subscribe(t, h, "sess-1", 64)

	const total = 10
	for i := 1; i <= total; i++ {
		h.PublishMetrics("sess-1", map[string]int{"seq": i})
	}

	for {
		if seqOf(t, recvEvent(t, witness)) == total {
			break
		}
	}
	// The last fan-out iteration may still be enqueueing to the slow
	// subscriber; enqueues never block, so a short settle suffices.
	time.Sleep(100 * time.Millisecond)

	first := seqOf(t, recvEvent(t, slow))
	second := seqOf(t, recvEvent(t, slow))
	assert.Equal(t, total-1, first, "oldest events are discarded, not newest")
	assert.Equal(t, total, second)
	assert.Empty(t, slow.Send)
}

func TestHub_PublishSessionEnded(t *testing.T) {
	h := newTestHub(t)
	sub := subscribe(t, h, "sess-1", 16)

	h.PublishSessionEnded("sess-1")

	ev := recvEvent(t, sub)
	assert.Equal(t, EventSessionEnded, ev.Type)

	var body map[string]string
	require.NoError(t, json.Unmarshal(ev.Data, &body))
	assert.Equal(t, "sess-1", body["sessionId"])
}

func TestHub_CallsAfterCloseReturn(t *testing.T) {
	h := newTestHub(t)
	sub := subscribe(t, h, "sess-1", 16)
	h.Close()

	late := &Subscriber{SessionID: "sess-1", Send: make(chan []byte, 16)}
	done := make(chan struct{})
	go func() {
		h.Register(late)
		h.Unregister(sub)
		h.PublishMetrics("sess-1", map[string]int{"seq": 1})
		h.PublishSessionEnded("sess-1")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("hub calls blocked after Close")
	}

	_, ok := <-late.Send
	assert.False(t, ok, "late subscriber channel should be closed")
}

func TestHub_CloseIsIdempotent(t *testing.T) {
	h := NewHub(zap.NewNop())
	h.Close()
	assert.NotPanics(t, h.Close)
}

func TestHub_UnregisterClosesSend(t *testing.T) {
	h := newTestHub(t)
	sub := subscribe(t, h, "sess-1", 16)

	h.Unregister(sub)

	select {
	case _, ok := <-sub.Send:
		assert.False(t, ok, "send channel should be closed")
	case <-time.After(2 * time.Second):
		t.Fatal("send channel never closed")
	}
}
