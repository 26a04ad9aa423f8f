// Package events is an in-process pub/sub hub feeding SSE clients.
package events

import (
	"encoding/json"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/dsaderholm/Vosk-Captions-Docker-API-Server/internal/metrics"
)

// Event is a published job event.
type Event struct {
	ID   string
	Type string
	Data []byte // JSON payload
}

// Hub fans events out to subscribers. Publishing never blocks: subscribers
// that fall behind have events dropped.
type Hub struct {
	mu     sync.Mutex
	subs   map[int]chan Event
	nextID int
	seq    uint64
	log    zerolog.Logger
}

// NewHub creates an event hub.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		subs: make(map[int]chan Event),
		log:  log,
	}
}

// Publish marshals the payload and delivers it to all subscribers.
func (h *Hub) Publish(eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.log.Error().Err(err).Str("type", eventType).Msg("event payload marshal failed")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.seq++
	metrics.SSEEventsPublishedTotal.Inc()
	ev := Event{
		ID:   strconv.FormatUint(h.seq, 10),
		Type: eventType,
		Data: data,
	}

	for id, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			h.log.Debug().Int("subscriber", id).Msg("slow SSE subscriber, event dropped")
		}
	}
}

// Subscribe registers a subscriber. The returned cancel func must be called
// to release the channel.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	ch := make(chan Event, 16)
	h.subs[id] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(ch)
		}
	}
	return ch, cancel
}

// Subscribers returns the current subscriber count.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
