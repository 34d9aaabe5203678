package realtime

import (
	"sync"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
)

const DefaultSubscriberBuffer = 16

// Event is one live feed entry pushed to a connected actor. Persisted
// notifications are the durable record; the push is best effort.
type Event struct {
	Type           string `json:"type"`
	NotificationID string `json:"notification_id,omitempty"`
	Title          string `json:"title,omitempty"`
	Message        string `json:"message,omitempty"`
	CreatedAt      string `json:"created_at,omitempty"`
}

// Hub maps an actor id to its single live subscription. A fresh
// subscription from the same actor replaces the previous one.
//
// Subscriber channels are only closed, and only sent on, while the hub
// mutex is held, so a publish can never race a close.
type Hub struct {
	mu               sync.Mutex
	conns            map[snowflake.ID]*Subscription
	subscriberBuffer int
}

type Subscription struct {
	hub     *Hub
	actorID snowflake.ID
	ch      chan Event
	closed  bool // guarded by hub.mu
}

func NewHub() *Hub {
	return &Hub{
		conns:            make(map[snowflake.ID]*Subscription),
		subscriberBuffer: DefaultSubscriberBuffer,
	}
}

// Subscribe registers a live connection for the actor. Last wins: any
// previous subscription for the same actor is displaced and its
// channel closed so the stale reader unblocks.
func (h *Hub) Subscribe(actorID snowflake.ID) *Subscription {
	sub := &Subscription{
		hub:     h,
		actorID: actorID,
		ch:      make(chan Event, h.subscriberBuffer),
	}

	h.mu.Lock()
	prev := h.conns[actorID]
	h.conns[actorID] = sub
	if prev != nil && !prev.closed {
		prev.closed = true
		close(prev.ch)
	}
	h.mu.Unlock()

	return sub
}

// Publish delivers an event to the actor's live connection if one
// exists. The send never blocks; an absent, closed or saturated
// subscriber drops the event silently.
func (h *Hub) Publish(actorID snowflake.ID, event Event) {
	if h == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	sub := h.conns[actorID]
	if sub == nil || sub.closed {
		return
	}

	select {
	case sub.ch <- event:
	default:
	}
}

// Connected reports whether the actor currently holds a live
// subscription.
func (h *Hub) Connected(actorID snowflake.ID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.conns[actorID] != nil
}

func (s *Subscription) Events() <-chan Event {
	if s == nil {
		return nil
	}
	return s.ch
}

func (s *Subscription) Close() {
	if s == nil || s.hub == nil {
		return
	}

	h := s.hub
	h.mu.Lock()
	// Only remove the entry if it still holds this subscription. A
	// disconnect racing a fresh connect from the same actor must not
	// evict the newer connection.
	if h.conns[s.actorID] == s {
		delete(h.conns, s.actorID)
	}
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
	h.mu.Unlock()
}

var Module = fx.Module("realtime",
	fx.Provide(NewHub),
)
