package order

import "errors"

// ErrInvalidTransition is returned when an order status change is not allowed.
var ErrInvalidTransition = errors.New("order status transition not allowed")

// Status is the lifecycle state of an order.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusShipping  Status = "shipping"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

// Known reports whether the status is one of the defined lifecycle states.
func (s Status) Known() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusShipping, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transitions may leave this state.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

func rank(s Status) int {
	switch s {
	case StatusPending:
		return 0
	case StatusConfirmed:
		return 1
	case StatusShipping:
		return 2
	case StatusDelivered:
		return 3
	default:
		return -1
	}
}

// CanTransition reports whether an order may move from one status to another.
// The happy path is strictly forward; cancellation is only reachable from
// pending or confirmed, and nothing ever transitions back into pending.
func CanTransition(from, to Status) bool {
	if !from.Known() || !to.Known() || from == to {
		return false
	}
	if from.Terminal() {
		return false
	}
	if to == StatusCancelled {
		return from == StatusPending || from == StatusConfirmed
	}
	if to == StatusPending {
		return false
	}
	return rank(to) > rank(from)
}
