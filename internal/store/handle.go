package store

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Handle is one client's view of the backend: table access plus the
// session that procedure calls run under. Safe for concurrent use.
type Handle struct {
	client *Client

	mu        sync.RWMutex
	session   *Session
	listeners []listener
	nextID    uint64
}

// Query reads rows of table into dest, a pointer to a slice.
// Offline it leaves dest untouched and succeeds.
func (h *Handle) Query(ctx context.Context, table string, dest any, q Query) error {
	const op = "query"
	if !identifier.MatchString(table) {
		return Errorf(op, "invalid table %q", table)
	}
	if h.client.db == nil {
		return nil
	}

	db, err := q.apply(h.client.db.WithContext(ctx).Table(table))
	if err != nil {
		return wrap(op, err)
	}
	return wrap(op, db.Find(dest).Error)
}

// First reads a single row into dest, a pointer to a struct.
// It fails with ErrNotFound when nothing matches, offline included.
func (h *Handle) First(ctx context.Context, table string, dest any, q Query) error {
	const op = "first"
	if !identifier.MatchString(table) {
		return Errorf(op, "invalid table %q", table)
	}
	if h.client.db == nil {
		return wrap(op, gorm.ErrRecordNotFound)
	}

	q.Limit = 1
	db, err := q.apply(h.client.db.WithContext(ctx).Table(table))
	if err != nil {
		return wrap(op, err)
	}
	res := db.Find(dest)
	if res.Error != nil {
		return wrap(op, res.Error)
	}
	if res.RowsAffected == 0 {
		return wrap(op, gorm.ErrRecordNotFound)
	}
	return nil
}

// Upsert inserts rows (a pointer to a model or a slice of models) and
// resolves collisions as described by conflict.
func (h *Handle) Upsert(ctx context.Context, table string, rows any, conflict Conflict) error {
	const op = "upsert"
	if !identifier.MatchString(table) {
		return Errorf(op, "invalid table %q", table)
	}
	if h.client.db == nil {
		return offline(op)
	}

	db := h.client.db.WithContext(ctx).Table(table)
	if len(conflict.Columns) > 0 {
		oc, err := conflict.clause(table)
		if err != nil {
			return wrap(op, err)
		}
		db = db.Clauses(oc)
	}
	return wrap(op, db.Create(rows).Error)
}

// Update sets values on every row matching filters. At least one filter is
// required, and matching nothing is reported as ErrNotFound.
func (h *Handle) Update(ctx context.Context, table string, values map[string]any, filters ...Filter) error {
	const op = "update"
	if !identifier.MatchString(table) {
		return Errorf(op, "invalid table %q", table)
	}
	if len(filters) == 0 {
		return Errorf(op, "refusing to update %s without filters", table)
	}
	if h.client.db == nil {
		return offline(op)
	}

	exprs, err := expressions(filters)
	if err != nil {
		return wrap(op, err)
	}
	res := h.client.db.WithContext(ctx).Table(table).Clauses(clause.Where{Exprs: exprs}).Updates(values)
	if res.Error != nil {
		return wrap(op, res.Error)
	}
	if res.RowsAffected == 0 {
		return wrap(op, gorm.ErrRecordNotFound)
	}
	return nil
}

// Delete removes the rows of table matching filters. model is a pointer to
// the table's model type. At least one filter is required.
func (h *Handle) Delete(ctx context.Context, table string, model any, filters ...Filter) error {
	const op = "delete"
	if !identifier.MatchString(table) {
		return Errorf(op, "invalid table %q", table)
	}
	if len(filters) == 0 {
		return Errorf(op, "refusing to delete from %s without filters", table)
	}
	if h.client.db == nil {
		return offline(op)
	}

	exprs, err := expressions(filters)
	if err != nil {
		return wrap(op, err)
	}
	return wrap(op, h.client.db.WithContext(ctx).Table(table).Clauses(clause.Where{Exprs: exprs}).Delete(model).Error)
}

// Invoke runs the named procedure in one transaction on behalf of the
// handle's current session and decodes its result into result (may be nil).
func (h *Handle) Invoke(ctx context.Context, name string, payload any, result any) error {
	caller, err := h.caller(ctx)
	if err != nil {
		return wrap("invoke "+name, err)
	}
	return h.client.InvokeAs(ctx, caller, name, payload, result)
}

// InvokeAs runs the procedure name on behalf of caller, which may be nil for
// an anonymous call. Session checks are the caller's business.
func (c *Client) InvokeAs(ctx context.Context, caller *Caller, name string, payload any, result any) error {
	op := "invoke " + name
	proc, ok := c.procedure(name)
	if !ok {
		return Errorf(op, "Function %s not found", name)
	}
	if c.db == nil {
		return offline(op)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return Errorf(op, "Invalid request payload")
	}

	tx := &Tx{}
	var out any
	err = c.db.WithContext(ctx).Transaction(func(gtx *gorm.DB) error {
		tx.DB = gtx
		var perr error
		out, perr = proc(ctx, tx, caller, raw)
		return perr
	})
	if err != nil {
		c.log.WithError(err).WithField("function", name).Warn("procedure failed")
		return wrap(op, err)
	}

	for _, fn := range tx.afterCommit {
		fn(ctx)
	}

	if result == nil || out == nil {
		return nil
	}
	encoded, err := json.Marshal(out)
	if err != nil {
		return wrap(op, err)
	}
	if err := json.Unmarshal(encoded, result); err != nil {
		return wrap(op, err)
	}
	return nil
}

func (h *Handle) caller(ctx context.Context) (*Caller, error) {
	s, err := h.CurrentSession(ctx)
	if err != nil && !errors.Is(err, ErrNotAuthenticated) {
		return nil, err
	}
	if s == nil {
		return nil, nil
	}
	return &Caller{UserID: s.User.ID, Email: s.User.Email}, nil
}
