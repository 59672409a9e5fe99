// internal/interfaces/http/handlers/order.go
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kg-components/storefront/internal/domain/order"
	"github.com/sirupsen/logrus"
)

// OrderHandler handles checkout, the order history and order administration
type OrderHandler struct {
	log logrus.FieldLogger
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(log logrus.FieldLogger) *OrderHandler {
	return &OrderHandler{log: log}
}

// StatusUpdateRequest is the body of PUT /admin/orders/:id/status
type StatusUpdateRequest struct {
	Status order.Status `json:"status" binding:"required"`
}

// Checkout handles POST /cart/checkout
func (h *OrderHandler) Checkout(c *gin.Context) {
	var req order.CheckoutRequest
	// an empty body is a checkout without a shipping address
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Invalid request data")
			return
		}
	}
	if key := c.GetHeader("Idempotency-Key"); key != "" {
		req.IdempotencyKey = key
	}

	created, err := storefront(c).Orders.CreateOrder(c.Request.Context(), req)
	switch {
	case err == nil:
		respond(c, http.StatusCreated, "Order placed successfully", created)
	case created != nil && errors.Is(err, order.ErrCartNotCleared):
		h.log.WithError(err).WithField("order_id", created.ID).Warn("order placed with stale cart")
		respond(c, http.StatusCreated, "Order placed, but your cart could not be cleared", created)
	default:
		fail(c, err)
	}
}

// GetOrders handles GET /orders (the caller's own orders, newest first)
func (h *OrderHandler) GetOrders(c *gin.Context) {
	sf := storefront(c)
	if err := sf.Orders.FetchForUser(c.Request.Context()); err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, "Orders retrieved successfully", sf.Orders.Orders())
}

// GetOrder handles GET /orders/:id
func (h *OrderHandler) GetOrder(c *gin.Context) {
	orderID, ok := paramID(c, "order")
	if !ok {
		return
	}

	o, err := storefront(c).Orders.FetchOne(c.Request.Context(), orderID)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, "Order retrieved successfully", o)
}

// CancelOrder handles POST /orders/:id/cancel. Only pending orders can be
// cancelled by their owner.
func (h *OrderHandler) CancelOrder(c *gin.Context) {
	orderID, ok := paramID(c, "order")
	if !ok {
		return
	}

	sf := storefront(c)
	if err := sf.Orders.Cancel(c.Request.Context(), orderID); err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, "Order cancelled successfully", sf.Orders.State().Orders)
}

// --- ADMIN ENDPOINTS ---

// AdminGetOrders handles GET /admin/orders?status=
func (h *OrderHandler) AdminGetOrders(c *gin.Context) {
	var status order.Status
	if raw := c.Query("status"); raw != "" {
		status = order.Status(raw)
		if !status.Valid() {
			badRequest(c, "Invalid status")
			return
		}
	}

	sf := storefront(c)
	if err := sf.Orders.FetchAll(c.Request.Context()); err != nil {
		fail(c, err)
		return
	}

	orders := sf.Orders.Orders()
	if status != "" {
		filtered := orders[:0:0]
		for _, o := range orders {
			if o.Status == status {
				filtered = append(filtered, o)
			}
		}
		orders = filtered
	}
	respond(c, http.StatusOK, "Orders retrieved successfully", orders)
}

// AdminGetUsers handles GET /admin/users?search=
func (h *OrderHandler) AdminGetUsers(c *gin.Context) {
	users, err := storefront(c).Orders.Customers(c.Request.Context(), c.Query("search"))
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, "Users retrieved successfully", users)
}

// AdminUpdateStatus handles PUT /admin/orders/:id/status
func (h *OrderHandler) AdminUpdateStatus(c *gin.Context) {
	orderID, ok := paramID(c, "order")
	if !ok {
		return
	}

	var req StatusUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request data")
		return
	}

	sf := storefront(c)
	if err := sf.Orders.AdvanceStatus(c.Request.Context(), orderID, req.Status); err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, "Order status updated successfully", sf.Orders.State().Orders)
}
