package ws

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// EventType labels a message on the metrics stream.
type EventType string

const (
	EventConnected    EventType = "connected"
	EventMetrics      EventType = "metrics"
	EventSessionEnded EventType = "session_ended"
)

// Event is the wire envelope for the metrics stream.
type Event struct {
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Hub fans live metrics out to the subscribers of each session. Multiple
// independent readers may watch one session; a slow reader never blocks the
// publisher — when a subscriber's queue is full the oldest queued event is
// dropped to make room, so consumers see at-least-once delivery per tick
// with monotonically non-decreasing timestamps.
type Hub struct {
	log *zap.Logger

	mu   sync.RWMutex
	subs map[string]map[*Subscriber]struct{} // sessionID -> subscriber set

	register   chan *Subscriber
	unregister chan *Subscriber
	broadcast  chan *sessionEvent

	done      chan struct{}
	closeOnce sync.Once
}

// Subscriber is one connected consumer of a session's metrics stream.
type Subscriber struct {
	SessionID string
	Send      chan []byte

	closeOnce sync.Once
}

func (s *Subscriber) close() {
	s.closeOnce.Do(func() { close(s.Send) })
}

type sessionEvent struct {
	sessionID string
	payload   []byte
}

// subscriberQueue is the per-subscriber buffer size. Roughly four minutes of
// one-second ticks before drop-oldest kicks in.
const subscriberQueue = 256

// NewHub creates and starts a hub.
func NewHub(log *zap.Logger) *Hub {
	h := &Hub{
		log:        log,
		subs:       make(map[string]map[*Subscriber]struct{}),
		register:   make(chan *Subscriber),
		unregister: make(chan *Subscriber),
		broadcast:  make(chan *sessionEvent, 256),
		done:       make(chan struct{}),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case <-h.done:
			return

		case sub := <-h.register:
			h.mu.Lock()
			if h.subs[sub.SessionID] == nil {
				h.subs[sub.SessionID] = make(map[*Subscriber]struct{})
			}
			h.subs[sub.SessionID][sub] = struct{}{}
			h.mu.Unlock()
			h.log.Debug("subscriber joined", zap.String("sessionId", sub.SessionID))

			h.send(sub, mustEvent(EventConnected, map[string]string{"sessionId": sub.SessionID}))

		case sub := <-h.unregister:
			h.mu.Lock()
			if set, ok := h.subs[sub.SessionID]; ok {
				if _, ok := set[sub]; ok {
					delete(set, sub)
					sub.close()
					if len(set) == 0 {
						delete(h.subs, sub.SessionID)
					}
					h.log.Debug("subscriber left", zap.String("sessionId", sub.SessionID))
				}
			}
			h.mu.Unlock()

		case ev := <-h.broadcast:
			h.mu.RLock()
			for sub := range h.subs[ev.sessionID] {
				h.send(sub, ev.payload)
			}
			h.mu.RUnlock()
		}
	}
}

// send enqueues without ever blocking: on a full queue it discards the
// oldest pending event, keeping the stream fresh for slow readers.
func (h *Hub) send(sub *Subscriber, payload []byte) {
	for {
		select {
		case sub.Send <- payload:
			return
		default:
			select {
			case <-sub.Send:
			default:
			}
		}
	}
}

// Register adds a subscriber to its session's stream. After Close it only
// closes the subscriber's send channel, so late joiners unwind instead of
// blocking on a dead run loop.
func (h *Hub) Register(sub *Subscriber) {
	select {
	case h.register <- sub:
	case <-h.done:
		sub.close()
	}
}

// Unregister removes a subscriber and closes its send channel. Safe to call
// after Close.
func (h *Hub) Unregister(sub *Subscriber) {
	select {
	case h.unregister <- sub:
	case <-h.done:
		sub.close()
	}
}

// PublishMetrics pushes a metrics event to every subscriber of the session.
// Implements session.MetricsBroadcaster.
func (h *Hub) PublishMetrics(sessionID string, payload interface{}) {
	select {
	case h.broadcast <- &sessionEvent{sessionID: sessionID, payload: mustEvent(EventMetrics, payload)}:
	case <-h.done:
	}
}

// PublishSessionEnded notifies subscribers that the session is over.
// Implements session.MetricsBroadcaster.
func (h *Hub) PublishSessionEnded(sessionID string) {
	select {
	case h.broadcast <- &sessionEvent{sessionID: sessionID, payload: mustEvent(EventSessionEnded, map[string]string{"sessionId": sessionID})}:
	case <-h.done:
	}
}

// Close stops the hub loop and closes every subscriber. Idempotent.
func (h *Hub) Close() {
	h.closeOnce.Do(func() {
		close(h.done)
		h.mu.Lock()
		defer h.mu.Unlock()
		for _, set := range h.subs {
			for sub := range set {
				sub.close()
			}
		}
		h.subs = make(map[string]map[*Subscriber]struct{})
	})
}

func mustEvent(t EventType, payload interface{}) []byte {
	data, err := json.Marshal(payload)
	if err != nil {
		data = []byte("{}")
	}
	out, _ := json.Marshal(&Event{Type: t, Data: data})
	return out
}
