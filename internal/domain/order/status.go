package order

import (
	"errors"
	"fmt"
)

// Status is the lifecycle state of an order
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// Statuses lists every status in lifecycle order
var Statuses = []Status{StatusPending, StatusProcessing, StatusShipped, StatusCompleted, StatusCancelled}

// ErrInvalidTransition is matched by every *TransitionError
var ErrInvalidTransition = errors.New("invalid status transition")

var transitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipped, StatusCompleted, StatusCancelled},
	StatusShipped:    {StatusCompleted},
}

// TransitionError rejects a status change the lifecycle does not allow
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	if !e.To.Valid() {
		return fmt.Sprintf("unknown order status %q", e.To)
	}
	return fmt.Sprintf("cannot move an order from %s to %s", e.From, e.To)
}

// Is makes errors.Is(err, ErrInvalidTransition) match
func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// Valid reports whether s is a known status
func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether no transition leaves s
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// Next returns the statuses reachable from s
func (s Status) Next() []Status {
	return append([]Status(nil), transitions[s]...)
}

// ValidateTransition returns a *TransitionError unless from may move to to
func ValidateTransition(from, to Status) error {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return nil
		}
	}
	return &TransitionError{From: from, To: to}
}
