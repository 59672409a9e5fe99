// internal/domain/cart/cache.go
package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/kg-components/storefront/internal/pkg/metrics"
	"github.com/kg-components/storefront/internal/pkg/notify"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var (
	// ErrNotSignedIn is returned by mutations attempted without an identity
	ErrNotSignedIn = errors.New("not signed in")
	// ErrInsufficientStock is returned when a quantity exceeds the product's stock
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrInvalidQuantity is returned for an add of fewer than one unit
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	// ErrLineNotFound is returned for a line id the cart does not hold
	ErrLineNotFound = errors.New("cart item not found")
)

// IdentitySource tells the cart who it belongs to
type IdentitySource interface {
	UserID() (uuid.UUID, bool)
}

// State is a snapshot of the cart
type State struct {
	Lines     []CartItem      `json:"items"`
	Total     decimal.Decimal `json:"total"`
	Count     int             `json:"count"`
	Error     string          `json:"error,omitempty"`
	IsLoading bool            `json:"is_loading"`
}

// Cache holds the cart of the current identity. The total is recomputed
// from the held lines after every change.
type Cache struct {
	repo     Repository
	identity IdentitySource
	notifier notify.Notifier
	log      logrus.FieldLogger

	// one mutation at a time, so local merges never interleave
	opMu sync.Mutex

	mu      sync.RWMutex
	lines   []CartItem
	total   decimal.Decimal
	err     string
	loading int
}

// NewCache creates an empty cart
func NewCache(repo Repository, identity IdentitySource, notifier notify.Notifier, log logrus.FieldLogger) *Cache {
	return &Cache{
		repo:     repo,
		identity: identity,
		notifier: notifier,
		log:      log.WithField("component", "cart"),
		total:    decimal.Zero,
	}
}

// State returns a copy of the cart state
func (c *Cache) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return State{
		Lines:     append([]CartItem(nil), c.lines...),
		Total:     c.total,
		Count:     count(c.lines),
		Error:     c.err,
		IsLoading: c.loading > 0,
	}
}

// Lines returns a copy of the held lines
func (c *Cache) Lines() []CartItem {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]CartItem(nil), c.lines...)
}

// Total returns the cart total
func (c *Cache) Total() decimal.Decimal {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.total
}

// Count returns the number of units in the cart
func (c *Cache) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return count(c.lines)
}

// Load replaces the lines with the identity's stored cart. Without an
// identity the cart is emptied.
func (c *Cache) Load(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	userID, ok := c.identity.UserID()
	if !ok {
		c.Reset()
		return nil
	}

	c.begin()
	lines, err := c.repo.ListLines(ctx, userID)
	if err != nil {
		c.finish(err)
		c.log.WithError(err).Error("error fetching cart")
		return err
	}

	c.mu.Lock()
	c.lines = lines
	c.recompute()
	c.mu.Unlock()
	c.finish(nil)
	return nil
}

// Add puts quantity units of a product in the cart. The store adds them to
// the stored line, so units added elsewhere are kept.
func (c *Cache) Add(ctx context.Context, productID uuid.UUID, quantity int) (err error) {
	defer func() { metrics.CartMutations.WithLabelValues("add", metrics.Outcome(err)).Inc() }()

	userID, ok := c.identity.UserID()
	if !ok {
		c.notifier.Notify(notify.Failure("Please sign in", "You need to be signed in to add items to your cart"))
		return ErrNotSignedIn
	}
	if quantity < 1 {
		return c.reject("Failed to add item", ErrInvalidQuantity)
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.begin()
	line, err := c.repo.AddLine(ctx, userID, productID, quantity)
	if err != nil {
		c.finish(err)
		c.log.WithError(err).WithField("product_id", productID).Error("error adding to cart")
		c.notifier.Notify(notify.Failure("Failed to add item", err.Error()))
		return err
	}

	c.mu.Lock()
	c.put(*line)
	c.recompute()
	c.mu.Unlock()
	c.finish(nil)

	c.notifier.Notify(notify.Success("Item added to cart", "The item has been added to your cart"))
	return nil
}

// SetQuantity changes a line's quantity. Anything below one removes the line.
func (c *Cache) SetQuantity(ctx context.Context, lineID uuid.UUID, quantity int) (err error) {
	if quantity < 1 {
		return c.Remove(ctx, lineID)
	}
	defer func() { metrics.CartMutations.WithLabelValues("set_quantity", metrics.Outcome(err)).Inc() }()

	userID, ok := c.identity.UserID()
	if !ok {
		return ErrNotSignedIn
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()

	existing, found := c.lineByID(lineID)
	if !found {
		return c.reject("Failed to update cart", ErrLineNotFound)
	}

	c.begin()
	if err := c.checkStock(ctx, existing.ProductID, quantity); err != nil {
		c.finish(err)
		c.notifier.Notify(notify.Failure("Failed to update cart", err.Error()))
		return err
	}

	line, err := c.repo.UpdateQuantity(ctx, userID, lineID, quantity)
	if err != nil {
		c.finish(err)
		c.log.WithError(err).WithField("line_id", lineID).Error("error updating cart")
		c.notifier.Notify(notify.Failure("Failed to update cart", err.Error()))
		return err
	}

	c.mu.Lock()
	c.put(*line)
	c.recompute()
	c.mu.Unlock()
	c.finish(nil)
	return nil
}

// Remove deletes a line
func (c *Cache) Remove(ctx context.Context, lineID uuid.UUID) (err error) {
	defer func() { metrics.CartMutations.WithLabelValues("remove", metrics.Outcome(err)).Inc() }()

	userID, ok := c.identity.UserID()
	if !ok {
		return ErrNotSignedIn
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.begin()
	if err := c.repo.DeleteLine(ctx, userID, lineID); err != nil {
		c.finish(err)
		c.log.WithError(err).WithField("line_id", lineID).Error("error removing from cart")
		c.notifier.Notify(notify.Failure("Failed to remove item", err.Error()))
		return err
	}

	c.mu.Lock()
	kept := c.lines[:0:0]
	for _, l := range c.lines {
		if l.ID != lineID {
			kept = append(kept, l)
		}
	}
	c.lines = kept
	c.recompute()
	c.mu.Unlock()
	c.finish(nil)

	c.notifier.Notify(notify.Success("Item removed", "The item has been removed from your cart"))
	return nil
}

// Clear deletes every line of the identity's cart
func (c *Cache) Clear(ctx context.Context) (err error) {
	defer func() { metrics.CartMutations.WithLabelValues("clear", metrics.Outcome(err)).Inc() }()

	userID, ok := c.identity.UserID()
	if !ok {
		return ErrNotSignedIn
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.begin()
	if err := c.repo.DeleteAll(ctx, userID); err != nil {
		c.finish(err)
		c.log.WithError(err).Error("error clearing cart")
		c.notifier.Notify(notify.Failure("Failed to clear cart", err.Error()))
		return err
	}

	c.Reset()
	c.finish(nil)
	c.notifier.Notify(notify.Success("Cart cleared", "Your cart has been cleared"))
	return nil
}

// Reset empties the local cart without touching the store
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = nil
	c.total = decimal.Zero
	c.err = ""
}

func (c *Cache) checkStock(ctx context.Context, productID uuid.UUID, want int) error {
	stock, err := c.repo.ProductStock(ctx, productID)
	if err != nil {
		return err
	}
	if want > stock {
		return fmt.Errorf("%w: only %d left in stock", ErrInsufficientStock, stock)
	}
	return nil
}

func (c *Cache) lineByID(id uuid.UUID) (CartItem, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, l := range c.lines {
		if l.ID == id {
			return l, true
		}
	}
	return CartItem{}, false
}

// put replaces the line with the same id or appends it. Caller holds mu.
func (c *Cache) put(line CartItem) {
	for i := range c.lines {
		if c.lines[i].ID == line.ID {
			c.lines[i] = line
			return
		}
	}
	c.lines = append(c.lines, line)
}

// recompute refreshes the total. Caller holds mu.
func (c *Cache) recompute() {
	c.total = Total(c.lines)
}

func (c *Cache) reject(title string, err error) error {
	c.mu.Lock()
	c.err = err.Error()
	c.mu.Unlock()
	c.notifier.Notify(notify.Failure(title, err.Error()))
	return err
}

func (c *Cache) begin() {
	c.mu.Lock()
	c.loading++
	c.err = ""
	c.mu.Unlock()
}

func (c *Cache) finish(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loading--
	if err != nil {
		c.err = err.Error()
	}
}

func count(lines []CartItem) int {
	n := 0
	for _, l := range lines {
		n += l.Quantity
	}
	return n
}
