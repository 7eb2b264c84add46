package booking

import "fmt"

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusApproved  Status = "approved"
	StatusPickedUp  Status = "picked_up"
	StatusInUse     Status = "in_use"
	StatusReturned  Status = "returned"
	StatusOverdue   Status = "overdue"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusRejected  Status = "rejected"
)

// AllStatuses lists every valid booking status.
var AllStatuses = []Status{
	StatusPending, StatusConfirmed, StatusApproved, StatusPickedUp,
	StatusInUse, StatusReturned, StatusOverdue, StatusCompleted,
	StatusCancelled, StatusRejected,
}

// transitions is the fixed table of allowed status changes. Statuses absent
// from the map (completed, cancelled, rejected) are terminal.
var transitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled, StatusRejected},
	StatusConfirmed: {StatusApproved, StatusCancelled, StatusPickedUp},
	StatusApproved:  {StatusPickedUp, StatusCancelled},
	StatusPickedUp:  {StatusInUse, StatusReturned},
	StatusInUse:     {StatusReturned, StatusOverdue},
	StatusReturned:  {StatusCompleted},
	StatusOverdue:   {StatusReturned, StatusCompleted},
}

// Valid reports whether s is a known booking status.
func (s Status) Valid() bool {
	for _, st := range AllStatuses {
		if s == st {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are allowed from s.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// OccupiesCapacity reports whether a booking in this status counts against
// available stock. Pending bookings are unpaid drafts and do not occupy
// capacity. Overdue bookings do not count either; late stock is reconciled
// when the item is actually returned.
func (s Status) OccupiesCapacity() bool {
	switch s {
	case StatusConfirmed, StatusApproved, StatusPickedUp, StatusInUse:
		return true
	}
	return false
}

// CanTransition reports whether the from→to change is in the allowed table.
func CanTransition(from, to Status) bool {
	for _, allowed := range transitions[from] {
		if to == allowed {
			return true
		}
	}
	return false
}

// TransitionError reports a status change not present in the allowed table.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot transition booking from %s to %s", e.From, e.To)
}
