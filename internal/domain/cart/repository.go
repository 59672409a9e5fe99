// internal/domain/cart/repository.go
package cart

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/kg-components/storefront/internal/domain/product"
	"github.com/kg-components/storefront/internal/store"
)

var linePreload = []string{"Product", "Product.Category"}

// Repository is the cart's view of the backend
type Repository interface {
	ListLines(ctx context.Context, userID uuid.UUID) ([]CartItem, error)
	ProductStock(ctx context.Context, productID uuid.UUID) (int, error)
	// AddLine increments the stored line, failing with ErrInsufficientStock
	// when the stored quantity plus quantity exceeds stock
	AddLine(ctx context.Context, userID, productID uuid.UUID, quantity int) (*CartItem, error)
	UpdateQuantity(ctx context.Context, userID, lineID uuid.UUID, quantity int) (*CartItem, error)
	DeleteLine(ctx context.Context, userID, lineID uuid.UUID) error
	DeleteAll(ctx context.Context, userID uuid.UUID) error
}

// StoreRepository implements Repository on a store handle
type StoreRepository struct {
	handle *store.Handle
}

// NewRepository creates a store-backed cart repository
func NewRepository(h *store.Handle) *StoreRepository {
	return &StoreRepository{handle: h}
}

// ListLines returns the user's lines joined with product and category, oldest first
func (r *StoreRepository) ListLines(ctx context.Context, userID uuid.UUID) ([]CartItem, error) {
	var lines []CartItem
	if err := r.handle.Query(ctx, ItemsTable, &lines, store.Query{
		Filters: []store.Filter{store.Eq("user_id", userID)},
		Order:   store.OrderBy("created_at", false),
		Preload: linePreload,
	}); err != nil {
		return nil, err
	}
	return lines, nil
}

// ProductStock reads the current stock of a product
func (r *StoreRepository) ProductStock(ctx context.Context, productID uuid.UUID) (int, error) {
	var p product.Product
	if err := r.handle.First(ctx, product.ProductsTable, &p, store.Query{
		Filters: []store.Filter{store.Eq("id", productID)},
	}); err != nil {
		return 0, err
	}
	return p.Stock, nil
}

// AddLine adds quantity to the signed-in user's line for the product. The
// stored quantity plus quantity may not exceed the product's stock. userID
// is implied by the handle's session.
func (r *StoreRepository) AddLine(ctx context.Context, userID, productID uuid.UUID, quantity int) (*CartItem, error) {
	var line CartItem
	if err := r.handle.Invoke(ctx, ProcAddToCart, AddRequest{ProductID: productID, Quantity: quantity}, &line); err != nil {
		return nil, err
	}
	return &line, nil
}

// UpdateQuantity sets the quantity of one of the user's lines
func (r *StoreRepository) UpdateQuantity(ctx context.Context, userID, lineID uuid.UUID, quantity int) (*CartItem, error) {
	err := r.handle.Update(ctx, ItemsTable,
		map[string]any{"quantity": quantity, "updated_at": time.Now().UTC()},
		store.Eq("id", lineID), store.Eq("user_id", userID))
	if err != nil {
		return nil, err
	}
	return r.line(ctx, store.Eq("id", lineID))
}

// DeleteLine removes one of the user's lines
func (r *StoreRepository) DeleteLine(ctx context.Context, userID, lineID uuid.UUID) error {
	return r.handle.Delete(ctx, ItemsTable, &CartItem{}, store.Eq("id", lineID), store.Eq("user_id", userID))
}

// DeleteAll empties the user's cart
func (r *StoreRepository) DeleteAll(ctx context.Context, userID uuid.UUID) error {
	return r.handle.Delete(ctx, ItemsTable, &CartItem{}, store.Eq("user_id", userID))
}

func (r *StoreRepository) line(ctx context.Context, filters ...store.Filter) (*CartItem, error) {
	var item CartItem
	if err := r.handle.First(ctx, ItemsTable, &item, store.Query{
		Filters: filters,
		Preload: linePreload,
	}); err != nil {
		return nil, err
	}
	return &item, nil
}
