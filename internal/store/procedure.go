package store

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Caller is the authenticated identity a procedure runs on behalf of.
type Caller struct {
	UserID uuid.UUID
	Email  string
}

// Tx is the transaction handed to a procedure.
type Tx struct {
	DB          *gorm.DB
	afterCommit []func(context.Context)
}

// AfterCommit queues fn to run once the transaction has committed.
// It never runs when the procedure fails.
func (t *Tx) AfterCommit(fn func(context.Context)) {
	t.afterCommit = append(t.afterCommit, fn)
}

// Procedure is a named server-side function. It runs inside a single
// transaction; caller is nil for anonymous handles. The returned value is
// sent back to the invoker as JSON.
type Procedure func(ctx context.Context, tx *Tx, caller *Caller, payload json.RawMessage) (any, error)

// Decode unmarshals a procedure payload.
func Decode(op string, payload json.RawMessage, dest any) error {
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}
	if err := json.Unmarshal(payload, dest); err != nil {
		return Errorf(op, "Invalid request payload")
	}
	return nil
}

// RequireCaller fails when the procedure was invoked anonymously.
func RequireCaller(op string, caller *Caller) error {
	if caller == nil {
		return &Error{Op: op, Message: "You must be signed in", Err: ErrNotAuthenticated}
	}
	return nil
}
