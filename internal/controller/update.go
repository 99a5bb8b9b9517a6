package controller

import (
	"sync"

	"github.com/charmbracelet/log"

	"github.com/lox/cardroom/internal/frame"
)

const subscriberBuffer = 64

// Notice is a message for specific users, typically a rejected action.
type Notice struct {
	Users   []string `json:"users"`
	Message string   `json:"message"`
}

// Update is one batch of output from a controller. Frames holds every
// intermediate snapshot produced since the previous update, oldest first.
type Update struct {
	Frames      []frame.Set
	Notice      *Notice
	Unavailable bool
}

// hub fans updates out to subscribers without ever blocking the loop.
type hub struct {
	mu     sync.Mutex
	subs   map[int]chan Update
	next   int
	closed bool
	logger *log.Logger
}

func newHub(logger *log.Logger) *hub {
	return &hub{subs: make(map[int]chan Update), logger: logger}
}

func (h *hub) subscribe() (<-chan Update, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan Update, subscriberBuffer)
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	id := h.next
	h.next++
	h.subs[id] = ch
	return ch, func() { h.remove(id) }
}

func (h *hub) remove(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(ch)
	}
}

// publish delivers u to every subscriber. A subscriber whose buffer is full
// is dropped.
func (h *hub) publish(u Update) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subs {
		select {
		case ch <- u:
		default:
			h.logger.Warn("Dropping slow subscriber", "subscriber", id)
			delete(h.subs, id)
			close(ch)
		}
	}
}

func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}
