// internal/interfaces/http/handlers/invoice.go
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// AdminSendInvoice handles POST /admin/orders/:id/invoice. The order is
// flagged as invoiced even when the mail could not be sent; the response
// then carries the send error.
func (h *OrderHandler) AdminSendInvoice(c *gin.Context) {
	orderID, ok := paramID(c, "order")
	if !ok {
		return
	}

	sf := storefront(c)
	if err := sf.Orders.MarkInvoiceSent(c.Request.Context(), orderID); err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, "Invoice sent successfully", sf.Orders.State().Orders)
}

// AdminConfirmPayment handles POST /admin/orders/:id/payment
func (h *OrderHandler) AdminConfirmPayment(c *gin.Context) {
	orderID, ok := paramID(c, "order")
	if !ok {
		return
	}

	sf := storefront(c)
	if err := sf.Orders.MarkPaymentConfirmed(c.Request.Context(), orderID); err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, "Payment confirmed successfully", sf.Orders.State().Orders)
}
