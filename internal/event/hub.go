package event

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/rentloop/rentloop-backend/internal/pkg/metrics"
)

const (
	hubQueueSize        = 256
	subscriberQueueSize = 16
)

// Subscription receives events for one product/location room. A subscription
// with empty product and location IDs receives every event.
type Subscription struct {
	C    chan Event
	room string
}

// Hub fans events out to room-scoped subscribers. It is constructed in the
// application container and driven by Run; it holds no global state.
type Hub struct {
	logger  *logrus.Logger
	metrics *metrics.Metrics

	register   chan *Subscription
	unregister chan *Subscription
	events     chan Event
	done       chan struct{}

	rooms map[string]map[*Subscription]struct{}
}

func NewHub(logger *logrus.Logger, m *metrics.Metrics) *Hub {
	return &Hub{
		logger:     logger,
		metrics:    m,
		register:   make(chan *Subscription),
		unregister: make(chan *Subscription),
		events:     make(chan Event, hubQueueSize),
		done:       make(chan struct{}),
		rooms:      make(map[string]map[*Subscription]struct{}),
	}
}

// Run owns the room registry until ctx is cancelled. All subscriber channels
// are closed on shutdown.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for _, subs := range h.rooms {
				for sub := range subs {
					close(sub.C)
				}
			}
			h.rooms = make(map[string]map[*Subscription]struct{})
			close(h.done)
			return

		case sub := <-h.register:
			if h.rooms[sub.room] == nil {
				h.rooms[sub.room] = make(map[*Subscription]struct{})
			}
			h.rooms[sub.room][sub] = struct{}{}

		case sub := <-h.unregister:
			if subs, ok := h.rooms[sub.room]; ok {
				if _, ok := subs[sub]; ok {
					delete(subs, sub)
					close(sub.C)
					if len(subs) == 0 {
						delete(h.rooms, sub.room)
					}
				}
			}

		case evt := <-h.events:
			h.deliver(h.rooms[roomKey(evt.ProductID, evt.LocationID)], evt)
			h.deliver(h.rooms[""], evt)
		}
	}
}

func (h *Hub) deliver(subs map[*Subscription]struct{}, evt Event) {
	for sub := range subs {
		select {
		case sub.C <- evt:
		default:
			// Slow subscriber: drop rather than stall the hub. Clients
			// refetch availability, so a missed hint is harmless.
			if h.metrics != nil {
				h.metrics.EventsDropped.Inc()
			}
		}
	}
}

// Subscribe registers interest in events for one product/location pair.
// Pass empty IDs to receive all events.
func (h *Hub) Subscribe(productID, locationID string) *Subscription {
	sub := &Subscription{
		C:    make(chan Event, subscriberQueueSize),
		room: roomKey(productID, locationID),
	}
	select {
	case h.register <- sub:
	case <-h.done:
		close(sub.C)
	}
	return sub
}

// Unsubscribe removes the subscription and closes its channel.
func (h *Hub) Unsubscribe(sub *Subscription) {
	select {
	case h.unregister <- sub:
	case <-h.done:
	}
}

// Publish enqueues an event for fan-out. It never blocks: when the hub queue
// is full the event is dropped and counted.
func (h *Hub) Publish(evt Event) {
	select {
	case h.events <- evt:
		if h.metrics != nil {
			h.metrics.EventsPublished.WithLabelValues(string(evt.Kind)).Inc()
		}
	default:
		if h.metrics != nil {
			h.metrics.EventsDropped.Inc()
		}
		h.logger.WithFields(logrus.Fields{
			"kind":        evt.Kind,
			"product_id":  evt.ProductID,
			"location_id": evt.LocationID,
		}).Warn("event queue full, dropping event")
	}
}

func roomKey(productID, locationID string) string {
	if productID == "" && locationID == "" {
		return ""
	}
	return productID + ":" + locationID
}
