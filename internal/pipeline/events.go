package pipeline

import (
	"sync"
	"time"
)

// Event is a terminal turn outcome published to subscribers (the websocket
// feed). Content is the stored assistant reply, never a raw provider error.
type Event struct {
	SessionID string    `json:"session_id"`
	State     State     `json:"state"`
	Model     string    `json:"model,omitempty"`
	Content   string    `json:"content"`
	At        time.Time `json:"at"`
}

// hub fans out events to subscribers. Slow subscribers drop events rather
// than block the pipeline.
type hub struct {
	mu   sync.Mutex
	subs map[chan Event]struct{}
}

func newHub() *hub {
	return &hub{subs: make(map[chan Event]struct{})}
}

// subscribe returns a buffered event channel and a cancel function that
// removes the subscription and closes the channel.
func (h *hub) subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 16)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.subs[ch]; ok {
			delete(h.subs, ch)
			close(ch)
		}
	}
	return ch, cancel
}

func (h *hub) publish(e Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- e:
		default:
		}
	}
}
