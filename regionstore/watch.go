package regionstore

import (
	"sync"
	"time"
)

// Op is the kind of change an event describes.
type Op string

const (
	OpSaved   Op = "saved"
	OpDeleted Op = "deleted"
)

// Event describes a change to a stored region.
type Event struct {
	Op        Op        `json:"op"`
	Name      string    `json:"name"`
	CellCount int       `json:"cell_count,omitempty"`
	Time      time.Time `json:"time"`
}

const subscriberBuffer = 16

type subscriber struct {
	names map[string]struct{}
	ch    chan Event
}

// hub fans store events out to subscribers. Delivery is best effort: a
// subscriber that stops draining its channel misses events rather than
// blocking writers.
type hub struct {
	mutex       sync.Mutex
	ids         sequentialIDGenerator
	subscribers map[uint32]subscriber
	closed      bool
}

func newHub() *hub {
	return &hub{
		subscribers: make(map[uint32]subscriber),
	}
}

func (h *hub) subscribe(names []string) (uint32, <-chan Event) {
	sub := subscriber{
		ch: make(chan Event, subscriberBuffer),
	}
	if len(names) > 0 {
		sub.names = make(map[string]struct{}, len(names))
		for _, name := range names {
			sub.names[name] = struct{}{}
		}
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	id := h.ids.New()
	if h.closed {
		close(sub.ch)
		return id, sub.ch
	}
	h.subscribers[id] = sub
	return id, sub.ch
}

func (h *hub) unsubscribe(id uint32) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	sub, ok := h.subscribers[id]
	if !ok {
		return
	}
	delete(h.subscribers, id)
	h.ids.Reuse(id)
	close(sub.ch)
}

func (h *hub) notify(e Event) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for _, sub := range h.subscribers {
		if sub.names != nil {
			if _, ok := sub.names[e.Name]; !ok {
				continue
			}
		}
		select {
		case sub.ch <- e:
			instrumentEventDelivered(e.Op)
		default:
			instrumentEventDropped(e.Op)
		}
	}
}

func (h *hub) close() {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for id, sub := range h.subscribers {
		delete(h.subscribers, id)
		close(sub.ch)
	}
}

// A sequential id generator.
type sequentialIDGenerator struct {
	currentID   uint32
	reusableIDs map[uint32]struct{}
}

// New returns a sequential id, reusing released ids first.
func (g *sequentialIDGenerator) New() uint32 {
	for id := range g.reusableIDs {
		delete(g.reusableIDs, id)
		return id
	}

	g.currentID++
	return g.currentID
}

// Reuse marks the given id as reusable. Reusable ids are returned in
// priority when using New.
func (g *sequentialIDGenerator) Reuse(id uint32) {
	if g.reusableIDs == nil {
		g.reusableIDs = make(map[uint32]struct{})
	}

	g.reusableIDs[id] = struct{}{}
}
