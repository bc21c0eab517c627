package events

import (
	"log"
	"sync"
	"time"

	chatservice "github.com/havenchat/companion/internal/service/chat"
)

// Event types pushed to presentation subscribers.
const (
	TypeState    = "state"
	TypeTheme    = "theme"
	TypeNavigate = "navigate"
	TypeSpeaking = "speaking"
	TypeVoice    = "voice"
)

// Event is one message on the presentation stream.
type Event struct {
	Type      string    `json:"type"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// Hub fans events out to subscribers. The latest event of each type is kept
// and replayed to new subscribers so a view can render immediately.
type Hub struct {
	buffer int

	mu     sync.RWMutex
	nextID int
	subs   map[int]chan Event
	latest map[string]Event
	order  []string
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 32
	}
	return &Hub{
		buffer: buffer,
		subs:   make(map[int]chan Event),
		latest: make(map[string]Event),
	}
}

// Subscribe returns a channel of events and a function that ends the
// subscription and closes the channel.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	ch := make(chan Event, h.buffer+len(h.order))
	for _, typ := range h.order {
		ch <- h.latest[typ]
	}
	h.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Broadcast sends data to every subscriber. A subscriber whose buffer is full
// misses the event rather than blocking the publisher.
func (h *Hub) Broadcast(typ string, data any) {
	ev := Event{Type: typ, Data: data, Timestamp: time.Now()}

	h.mu.Lock()
	if _, seen := h.latest[typ]; !seen {
		h.order = append(h.order, typ)
	}
	h.latest[typ] = ev
	h.mu.Unlock()

	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			log.Printf("[events] subscriber %d is slow, dropped %s event", id, typ)
		}
	}
}

// Publish implements the chat state sink.
func (h *Hub) Publish(state chatservice.State) {
	h.Broadcast(TypeState, state)
}

// Subscribers returns the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
