package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kg-components/storefront/internal/domain/product"
	"github.com/kg-components/storefront/internal/store"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProcAddToCart adds units to the caller's line for a product, creating
// the line when needed. The stock check and the write share one transaction.
const ProcAddToCart = "add-to-cart"

// AddRequest is the payload of ProcAddToCart
type AddRequest struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
}

// RegisterProcedures adds the cart procedures to the client
func RegisterProcedures(c *store.Client) {
	c.Register(ProcAddToCart, addToCart)
}

func addToCart(ctx context.Context, tx *store.Tx, caller *store.Caller, payload json.RawMessage) (any, error) {
	const op = ProcAddToCart
	if err := store.RequireCaller(op, caller); err != nil {
		return nil, err
	}

	var req AddRequest
	if err := store.Decode(op, payload, &req); err != nil {
		return nil, err
	}
	if req.Quantity < 1 {
		return nil, &store.Error{Op: op, Message: ErrInvalidQuantity.Error(), Err: ErrInvalidQuantity}
	}

	// concurrent adds of the same product queue up behind this lock
	var p product.Product
	res := tx.DB.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", req.ProductID).Limit(1).Find(&p)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to lock product: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, &store.Error{Op: op, Message: "Product not found", Err: store.ErrNotFound}
	}

	var held CartItem
	res = tx.DB.Where("user_id = ? AND product_id = ?", caller.UserID, req.ProductID).Limit(1).Find(&held)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to read cart line: %w", res.Error)
	}
	if held.Quantity+req.Quantity > p.Stock {
		return nil, &store.Error{
			Op:      op,
			Message: fmt.Sprintf("Only %d of %s left in stock", p.Stock, p.Name),
			Err:     ErrInsufficientStock,
		}
	}

	row := &CartItem{UserID: caller.UserID, ProductID: req.ProductID, Quantity: req.Quantity}
	if err := tx.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "product_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"quantity":   gorm.Expr(ItemsTable+".quantity + ?", req.Quantity),
			"updated_at": time.Now().UTC(),
		}),
	}).Create(row).Error; err != nil {
		return nil, fmt.Errorf("failed to add cart line: %w", err)
	}

	var line CartItem
	if err := tx.DB.Preload("Product").Preload("Product.Category").
		Where("user_id = ? AND product_id = ?", caller.UserID, req.ProductID).
		First(&line).Error; err != nil {
		return nil, fmt.Errorf("failed to reload cart line: %w", err)
	}
	return &line, nil
}
