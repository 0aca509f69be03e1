// Package bus implements the SessionBus: a per-session event hub that
// delivers typed events to subscribed clients in publication order (§4.8).
package bus

import (
	"sync"
)

// Handle is a live subscription returned by Subscribe. Events() yields
// published events in publication order; Close releases the subscription.
type Handle struct {
	ch     chan Event
	bus    *Bus
	id     string
	closed bool
	mu     sync.Mutex
}

// Events returns the channel events are delivered on. It is closed when the
// subscription is closed.
func (h *Handle) Events() <-chan Event {
	return h.ch
}

// Close releases the subscription. Idempotent.
func (h *Handle) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	h.bus.unsubscribe(h)
	close(h.ch)
}

// Bus is the SessionBus: publish(session_id, event) / subscribe(session_id)
// fan-out over a mutex-guarded per-session subscriber set (history is not
// retained here — ClientTransport only needs live delivery, not replay; §3
// assigns SessionBus ownership of only the subscriber set, not past
// events).
type Bus struct {
	mu          sync.Mutex
	subscribers map[string]map[*Handle]struct{}
}

// New creates an empty SessionBus.
func New() *Bus {
	return &Bus{subscribers: make(map[string]map[*Handle]struct{})}
}

// Subscribe registers a new subscription for sessionID. The returned
// Handle's channel is buffered so a publish never blocks on a slow or
// disconnected reader; full channels drop the oldest queued event rather
// than the inbound socket reader stalling (mirrors the AudioIntake
// high-water-mark policy in §4.1, applied here to outbound delivery).
func (b *Bus) Subscribe(sessionID string) *Handle {
	h := &Handle{ch: make(chan Event, 64), bus: b, id: sessionID}

	b.mu.Lock()
	defer b.mu.Unlock()
	subs, ok := b.subscribers[sessionID]
	if !ok {
		subs = make(map[*Handle]struct{})
		b.subscribers[sessionID] = subs
	}
	subs[h] = struct{}{}
	return h
}

func (b *Bus) unsubscribe(h *Handle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs, ok := b.subscribers[h.id]
	if !ok {
		return
	}
	delete(subs, h)
	if len(subs) == 0 {
		delete(b.subscribers, h.id)
	}
}

// Publish delivers event to every current subscriber of sessionID, in
// publication order per subscriber. If a subscriber's channel is full, the
// oldest queued event is dropped to make room — publishers never block.
func (b *Bus) Publish(sessionID string, event Event) {
	event.SessionID = sessionID

	b.mu.Lock()
	subs := make([]*Handle, 0, len(b.subscribers[sessionID]))
	for h := range b.subscribers[sessionID] {
		subs = append(subs, h)
	}
	b.mu.Unlock()

	for _, h := range subs {
		select {
		case h.ch <- event:
		default:
			select {
			case <-h.ch:
			default:
			}
			select {
			case h.ch <- event:
			default:
			}
		}
	}
}

// SubscriberCount returns the number of live subscriptions for sessionID.
func (b *Bus) SubscriberCount(sessionID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers[sessionID])
}
