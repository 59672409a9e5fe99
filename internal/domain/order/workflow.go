package order

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/kg-components/storefront/internal/domain/cart"
	"github.com/kg-components/storefront/internal/pkg/notify"
	"github.com/sirupsen/logrus"
)

var (
	// ErrEmptyCart is returned when checking out an empty cart
	ErrEmptyCart = errors.New("your cart is empty")
	// ErrForbidden is returned when the identity may not touch an order
	ErrForbidden = errors.New("forbidden")
	// ErrCartNotCleared accompanies a placed order whose cart could not be emptied
	ErrCartNotCleared = errors.New("order placed but the cart could not be cleared")
)

// Identity tells the workflow who is acting
type Identity interface {
	UserID() (uuid.UUID, bool)
	IsAdmin() bool
}

// Cart is the part of the cart cache checkout needs
type Cart interface {
	Lines() []cart.CartItem
	Clear(ctx context.Context) error
}

// CheckoutRequest carries what the shopper enters at checkout. A retried
// checkout with the same IdempotencyKey returns the first order. Without a
// key one is derived from the cart lines.
type CheckoutRequest struct {
	ShippingAddress string `json:"shipping_address" validate:"max=1000"`
	IdempotencyKey  string `json:"idempotency_key" validate:"max=255"`
}

// State is a snapshot of the workflow
type State struct {
	Orders    []Order `json:"orders"`
	Current   *Order  `json:"current,omitempty"`
	Error     string  `json:"error,omitempty"`
	IsLoading bool    `json:"is_loading"`
}

// Workflow holds the identity's orders and drives order mutations
type Workflow struct {
	repo     Repository
	cart     Cart
	identity Identity
	notifier notify.Notifier
	log      logrus.FieldLogger

	mu      sync.RWMutex
	orders  []Order
	current *Order
	err     string
	loading int
}

// NewWorkflow creates an empty workflow
func NewWorkflow(repo Repository, c Cart, identity Identity, notifier notify.Notifier, log logrus.FieldLogger) *Workflow {
	return &Workflow{
		repo:     repo,
		cart:     c,
		identity: identity,
		notifier: notifier,
		log:      log.WithField("component", "orders"),
	}
}

// State returns a copy of the workflow state
func (w *Workflow) State() State {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return State{
		Orders:    append([]Order(nil), w.orders...),
		Current:   w.current,
		Error:     w.err,
		IsLoading: w.loading > 0,
	}
}

// Orders returns the held orders
func (w *Workflow) Orders() []Order {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]Order(nil), w.orders...)
}

// CreateOrder places an order for the cart's lines and then clears the
// cart. The cart is only cleared once the order has been committed.
func (w *Workflow) CreateOrder(ctx context.Context, req CheckoutRequest) (*Order, error) {
	userID, ok := w.identity.UserID()
	if !ok {
		w.notifier.Notify(notify.Failure("Please sign in", "You need to be signed in to place an order"))
		return nil, cart.ErrNotSignedIn
	}

	lines := w.cart.Lines()
	if len(lines) == 0 {
		w.notifier.Notify(notify.Failure("Empty cart", "Your cart is empty"))
		return nil, ErrEmptyCart
	}

	placed := PlaceOrderRequest{
		IdempotencyKey:  checkoutKey(userID, req.IdempotencyKey, lines),
		ShippingAddress: req.ShippingAddress,
	}
	for _, l := range lines {
		placed.Lines = append(placed.Lines, LineRequest{ProductID: l.ProductID, Quantity: l.Quantity})
	}

	w.begin()
	o, err := w.repo.Place(ctx, placed)
	if err != nil {
		w.finish(err)
		w.log.WithError(err).Error("error creating order")
		w.notifier.Notify(notify.Failure("Order failed", err.Error()))
		return nil, err
	}
	w.mu.Lock()
	w.current = o
	w.mu.Unlock()
	w.finish(nil)

	var clearErr error
	if err := w.cart.Clear(ctx); err != nil {
		w.log.WithError(err).WithField("order_id", o.ID).Error("order placed but cart was not cleared")
		clearErr = fmt.Errorf("%w: %v", ErrCartNotCleared, err)
	}

	w.notifier.Notify(notify.Success("Order placed successfully", fmt.Sprintf("Your order #%s has been placed", o.ShortID())))

	if err := w.FetchForUser(ctx); err != nil {
		w.log.WithError(err).Warn("failed to refresh orders after checkout")
	}
	if clearErr != nil {
		w.setErr(clearErr)
	}
	return o, clearErr
}

// checkoutKey scopes the shopper's key to the identity. Without one the key
// is derived from the cart lines, which only change once the cart has been
// cleared or edited.
func checkoutKey(userID uuid.UUID, key string, lines []cart.CartItem) string {
	key = strings.TrimSpace(key)
	if key == "" {
		parts := make([]string, len(lines))
		for i, l := range lines {
			parts[i] = fmt.Sprintf("%s:%s:%d", l.ID, l.ProductID, l.Quantity)
		}
		sort.Strings(parts)
		key = "cart|" + strings.Join(parts, "|")
	}
	return uuid.NewSHA1(userID, []byte(key)).String()
}

// FetchForUser loads the identity's orders, newest first. Without an
// identity the held orders are dropped.
func (w *Workflow) FetchForUser(ctx context.Context) error {
	userID, ok := w.identity.UserID()
	if !ok {
		w.Reset()
		return nil
	}

	w.begin()
	orders, err := w.repo.ListForUser(ctx, userID)
	if err != nil {
		w.finish(err)
		w.log.WithError(err).Error("error fetching orders")
		return err
	}
	w.mu.Lock()
	w.orders = orders
	w.mu.Unlock()
	w.finish(nil)
	return nil
}

// FetchAll loads every order. Admin only.
func (w *Workflow) FetchAll(ctx context.Context) error {
	if !w.identity.IsAdmin() {
		w.setErr(ErrForbidden)
		return ErrForbidden
	}

	w.begin()
	orders, err := w.repo.ListAll(ctx)
	if err != nil {
		w.finish(err)
		w.log.WithError(err).Error("error fetching all orders")
		return err
	}
	w.mu.Lock()
	w.orders = orders
	w.mu.Unlock()
	w.finish(nil)
	return nil
}

// Customers lists every profile with its order count, newest first. Admin only.
func (w *Workflow) Customers(ctx context.Context, search string) ([]CustomerSummary, error) {
	if !w.identity.IsAdmin() {
		return nil, ErrForbidden
	}
	customers, err := w.repo.Customers(ctx, search)
	if err != nil {
		w.log.WithError(err).Error("error fetching customers")
		return nil, err
	}
	return customers, nil
}

// FetchOne loads a single order. Only its owner or an admin may see it.
func (w *Workflow) FetchOne(ctx context.Context, id uuid.UUID) (*Order, error) {
	userID, ok := w.identity.UserID()
	if !ok {
		return nil, cart.ErrNotSignedIn
	}

	w.begin()
	o, err := w.repo.Get(ctx, id)
	if err != nil {
		w.finish(err)
		return nil, err
	}
	if o.UserID != userID && !w.identity.IsAdmin() {
		w.finish(ErrForbidden)
		return nil, ErrForbidden
	}
	w.mu.Lock()
	w.current = o
	w.mu.Unlock()
	w.finish(nil)
	return o, nil
}

// AdvanceStatus moves an order to status. The transition is checked against
// the held copy first; the backend checks it again under a row lock.
func (w *Workflow) AdvanceStatus(ctx context.Context, orderID uuid.UUID, status Status) error {
	if _, ok := w.identity.UserID(); !ok {
		return cart.ErrNotSignedIn
	}

	if held, ok := w.held(orderID); ok {
		if err := ValidateTransition(held.Status, status); err != nil {
			w.setErr(err)
			w.notifier.Notify(notify.Failure("Update failed", err.Error()))
			return err
		}
	}

	w.begin()
	updated, err := w.repo.SetStatus(ctx, StatusRequest{OrderID: orderID, Status: status})
	if err != nil {
		w.finish(err)
		w.log.WithError(err).WithField("order_id", orderID).Error("error updating order status")
		w.notifier.Notify(notify.Failure("Update failed", err.Error()))
		return err
	}
	w.mu.Lock()
	if w.current != nil && w.current.ID == orderID {
		w.current = updated
	}
	w.mu.Unlock()
	w.finish(nil)

	w.notifier.Notify(notify.Success("Order updated", fmt.Sprintf("Order status changed to %s", status)))
	w.refresh(ctx)
	return nil
}

// Cancel cancels one of the identity's orders
func (w *Workflow) Cancel(ctx context.Context, orderID uuid.UUID) error {
	return w.AdvanceStatus(ctx, orderID, StatusCancelled)
}

// MarkInvoiceSent emails the invoice and flags the order as invoiced. The
// flag is written even when delivery fails; the delivery error is returned.
func (w *Workflow) MarkInvoiceSent(ctx context.Context, orderID uuid.UUID) error {
	if !w.identity.IsAdmin() {
		return ErrForbidden
	}

	w.begin()
	_, sendErr := w.repo.SendInvoice(ctx, orderID)
	if sendErr != nil {
		w.log.WithError(sendErr).WithField("order_id", orderID).Error("error sending invoice")
		w.notifier.Notify(notify.Failure("Failed to send invoice", sendErr.Error()))
	}

	sent := true
	if err := w.repo.SetFlags(ctx, FlagsRequest{OrderID: orderID, InvoiceSent: &sent}); err != nil {
		w.finish(err)
		w.log.WithError(err).WithField("order_id", orderID).Error("error flagging invoice")
		w.notifier.Notify(notify.Failure("Update failed", err.Error()))
		return err
	}
	w.update(orderID, func(o *Order) { o.InvoiceSent = true })
	w.finish(sendErr)

	if sendErr == nil {
		w.notifier.Notify(notify.Success("Invoice sent", "The invoice has been emailed to the customer"))
	}
	return sendErr
}

// MarkPaymentConfirmed flags the order as paid
func (w *Workflow) MarkPaymentConfirmed(ctx context.Context, orderID uuid.UUID) error {
	if !w.identity.IsAdmin() {
		return ErrForbidden
	}

	confirmed := true
	w.begin()
	if err := w.repo.SetFlags(ctx, FlagsRequest{OrderID: orderID, PaymentConfirmed: &confirmed}); err != nil {
		w.finish(err)
		w.log.WithError(err).WithField("order_id", orderID).Error("error confirming payment")
		w.notifier.Notify(notify.Failure("Update failed", err.Error()))
		return err
	}
	w.update(orderID, func(o *Order) { o.PaymentConfirmed = true })
	w.finish(nil)

	w.notifier.Notify(notify.Success("Payment confirmed", "The order has been marked as paid"))
	return nil
}

// Reset drops every held order
func (w *Workflow) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.orders = nil
	w.current = nil
	w.err = ""
}

func (w *Workflow) refresh(ctx context.Context) {
	var err error
	if w.identity.IsAdmin() {
		err = w.FetchAll(ctx)
	} else {
		err = w.FetchForUser(ctx)
	}
	if err != nil {
		w.log.WithError(err).Warn("failed to refresh orders")
	}
}

func (w *Workflow) held(id uuid.UUID) (Order, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.current != nil && w.current.ID == id {
		return *w.current, true
	}
	for _, o := range w.orders {
		if o.ID == id {
			return o, true
		}
	}
	return Order{}, false
}

func (w *Workflow) update(id uuid.UUID, fn func(*Order)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i := range w.orders {
		if w.orders[i].ID == id {
			fn(&w.orders[i])
		}
	}
	if w.current != nil && w.current.ID == id {
		c := *w.current
		fn(&c)
		w.current = &c
	}
}

func (w *Workflow) setErr(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.err = err.Error()
}

func (w *Workflow) begin() {
	w.mu.Lock()
	w.loading++
	w.err = ""
	w.mu.Unlock()
}

func (w *Workflow) finish(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.loading--
	if err != nil {
		w.err = err.Error()
	}
}
