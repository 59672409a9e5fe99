package store

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	// ErrOffline is wrapped by every mutation attempted without a configured backend.
	ErrOffline = errors.New("backend is not configured")
	// ErrNotFound is wrapped when a single-row lookup matches nothing.
	ErrNotFound = errors.New("no rows returned")
	// ErrNotAuthenticated is wrapped when an operation needs a session and there is none.
	ErrNotAuthenticated = errors.New("not authenticated")
)

// Error is the failure of a data-access operation. Message is meant for people;
// callers only branch on whether an error happened.
type Error struct {
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Errorf builds an *Error with a formatted human-readable message.
func Errorf(op, format string, args ...any) *Error {
	return &Error{Op: op, Message: fmt.Sprintf(format, args...)}
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}

	var se *Error
	if errors.As(err, &se) {
		return err
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &Error{Op: op, Message: ErrNotFound.Error(), Err: ErrNotFound}
	}

	return &Error{Op: op, Message: err.Error(), Err: err}
}

func offline(op string) error {
	return &Error{Op: op, Message: "The store is offline. Please try again later.", Err: ErrOffline}
}
