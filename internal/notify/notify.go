// Package notify delivers out-of-band events to counselors. Delivery is
// best effort: the durable source of truth is always the database row that
// triggered the event, and callers never roll back on a failed push.
package notify

import (
	"context"
	"sync"
	"time"
)

// Event types.
const (
	EventNewRequest        = "new_consultation_request"
	EventRequestExpired    = "request_expired"
	EventRequestCancelled  = "request_cancelled"
	EventConsultationEnded = "consultation_ended"
)

// Event is a single push to one counselor.
type Event struct {
	Type             string    `json:"type"`
	CounselorID      uint      `json:"counselor_id"`
	RequestID        uint      `json:"request_id,omitempty"`
	ConsultationID   uint      `json:"consultation_id,omitempty"`
	ConsultationCode string    `json:"consultation_code,omitempty"`
	UserNickname     string    `json:"user_nickname,omitempty"`
	CharacterName    string    `json:"character_name,omitempty"`
	Message          string    `json:"message,omitempty"`
	At               time.Time `json:"at"`
}

// Notifier pushes events. Implementations must not block on slow receivers.
type Notifier interface {
	Notify(ctx context.Context, e Event) error
}

// Subscription is one live listener for a counselor's events. C is closed
// when the subscription is removed from its Hub.
type Subscription struct {
	CounselorID uint
	C           <-chan Event

	ch chan Event
}

// Hub is an in-process registry of counselor subscriptions. It is safe for
// concurrent use; a Hub value must be created with NewHub.
type Hub struct {
	mu     sync.RWMutex
	subs   map[uint]map[*Subscription]struct{}
	buffer int

	// OnDrop, when set, is called for every event discarded because a
	// subscriber's buffer was full.
	OnDrop func(Event)
}

// NewHub returns an empty Hub whose subscriptions buffer up to buffer events.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	return &Hub{subs: make(map[uint]map[*Subscription]struct{}), buffer: buffer}
}

// Subscribe registers a listener for counselorID.
func (h *Hub) Subscribe(counselorID uint) *Subscription {
	ch := make(chan Event, h.buffer)
	s := &Subscription{CounselorID: counselorID, C: ch, ch: ch}

	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[counselorID]
	if !ok {
		set = make(map[*Subscription]struct{})
		h.subs[counselorID] = set
	}
	set[s] = struct{}{}
	return s
}

// Unsubscribe removes s and closes its channel. Calling it twice is a no-op.
func (h *Hub) Unsubscribe(s *Subscription) {
	if s == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[s.CounselorID]
	if !ok {
		return
	}
	if _, ok := set[s]; !ok {
		return
	}
	delete(set, s)
	close(s.ch)
	if len(set) == 0 {
		delete(h.subs, s.CounselorID)
	}
}

// Close ends every live subscription. Streams reading from them see their
// channel closed and return, which lets an HTTP server drain on shutdown.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, set := range h.subs {
		for s := range set {
			close(s.ch)
		}
		delete(h.subs, id)
	}
}

// Subscribers returns the number of live listeners for counselorID.
func (h *Hub) Subscribers(counselorID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[counselorID])
}

// Deliver fans e out to every listener of e.CounselorID without blocking and
// returns how many received it.
func (h *Hub) Deliver(e Event) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for s := range h.subs[e.CounselorID] {
		select {
		case s.ch <- e:
			n++
		default:
			if h.OnDrop != nil {
				h.OnDrop(e)
			}
		}
	}
	return n
}

// Notify implements Notifier for single-process deployments. A counselor
// with no open stream is not an error; they will see the request in their
// pending list.
func (h *Hub) Notify(ctx context.Context, e Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	h.Deliver(e)
	return nil
}

// Discard is a Notifier that drops every event.
type Discard struct{}

// Notify implements Notifier.
func (Discard) Notify(context.Context, Event) error { return nil }
