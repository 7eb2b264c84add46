package event

import "time"

// Kind identifies a state-change event fanned out to real-time subscribers.
type Kind string

const (
	KindHoldCreated          Kind = "hold.created"
	KindHoldReleased         Kind = "hold.released"
	KindBookingStatusChanged Kind = "booking.statusChanged"
	KindInventoryChanged     Kind = "inventory.changed"
)

// Event carries enough data for subscribers to reconcile displayed
// availability. Delivery is at-most-once best-effort: subscribers must treat
// the availability endpoint as the source of truth and events as hints to
// refetch.
type Event struct {
	Kind       Kind      `json:"kind"`
	ProductID  string    `json:"product_id"`
	LocationID string    `json:"location_id"`
	Quantity   int       `json:"quantity"`
	StartDate  time.Time `json:"start_date,omitzero"`
	EndDate    time.Time `json:"end_date,omitzero"`
	Timestamp  time.Time `json:"timestamp"`

	// Hold events
	UserID string `json:"user_id,omitempty"`
	HoldID string `json:"hold_id,omitempty"`
	Reason string `json:"reason,omitempty"` // "expired" or "cancelled" on hold.released

	// Booking events
	BookingID      string `json:"booking_id,omitempty"`
	NewStatus      string `json:"new_status,omitempty"`
	PreviousStatus string `json:"previous_status,omitempty"`
}

// Publisher fans out state-change events. Implementations must never block
// the caller; publishing happens outside transactional boundaries.
type Publisher interface {
	Publish(evt Event)
}

// NopPublisher discards all events. Used in tests and tooling.
type NopPublisher struct{}

func (NopPublisher) Publish(Event) {}
