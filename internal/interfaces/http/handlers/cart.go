// internal/interfaces/http/handlers/cart.go
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CartHandler handles cart endpoints. Every route is behind the session gate.
type CartHandler struct{}

// NewCartHandler creates a new cart handler
func NewCartHandler() *CartHandler {
	return &CartHandler{}
}

// AddToCartRequest is the body of POST /cart/items
type AddToCartRequest struct {
	ProductID uuid.UUID `json:"product_id" binding:"required"`
	Quantity  int       `json:"quantity"`
}

// UpdateCartItemRequest is the body of PUT /cart/items/:id. A quantity
// below one removes the line.
type UpdateCartItemRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

// GetCart handles GET /cart
func (h *CartHandler) GetCart(c *gin.Context) {
	sf := storefront(c)
	if err := sf.Cart.Load(c.Request.Context()); err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, "Cart retrieved successfully", sf.Cart.State())
}

// AddToCart handles POST /cart/items. Quantity defaults to 1.
func (h *CartHandler) AddToCart(c *gin.Context) {
	var req AddToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request data")
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	sf := storefront(c)
	if err := sf.Cart.Add(c.Request.Context(), req.ProductID, req.Quantity); err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, "Item added to cart successfully", sf.Cart.State())
}

// UpdateCartItem handles PUT /cart/items/:id
func (h *CartHandler) UpdateCartItem(c *gin.Context) {
	lineID, ok := paramID(c, "cart item")
	if !ok {
		return
	}

	var req UpdateCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request data")
		return
	}

	sf := storefront(c)
	if err := sf.Cart.SetQuantity(c.Request.Context(), lineID, *req.Quantity); err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, "Cart item updated successfully", sf.Cart.State())
}

// RemoveFromCart handles DELETE /cart/items/:id
func (h *CartHandler) RemoveFromCart(c *gin.Context) {
	lineID, ok := paramID(c, "cart item")
	if !ok {
		return
	}

	sf := storefront(c)
	if err := sf.Cart.Remove(c.Request.Context(), lineID); err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, "Item removed from cart successfully", sf.Cart.State())
}

// ClearCart handles DELETE /cart
func (h *CartHandler) ClearCart(c *gin.Context) {
	sf := storefront(c)
	if err := sf.Cart.Clear(c.Request.Context()); err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, "Cart cleared successfully", sf.Cart.State())
}
