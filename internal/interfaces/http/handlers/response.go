package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kg-components/storefront/internal/app"
	"github.com/kg-components/storefront/internal/domain/cart"
	"github.com/kg-components/storefront/internal/domain/contact"
	"github.com/kg-components/storefront/internal/domain/order"
	"github.com/kg-components/storefront/internal/domain/user"
	"github.com/kg-components/storefront/internal/interfaces/http/middleware"
	"github.com/kg-components/storefront/internal/pkg/notify"
	"github.com/kg-components/storefront/internal/store"
)

// respond writes the success envelope. Pending notices of the storefront
// ride along and are cleared.
func respond(c *gin.Context, status int, message string, data any) {
	notices := []notify.Notice{}
	if sf := middleware.CurrentStorefront(c); sf != nil {
		if pending := sf.Notices.Drain(); len(pending) > 0 {
			notices = pending
		}
	}
	c.JSON(status, gin.H{
		"message": message,
		"data":    data,
		"notices": notices,
	})
}

// fail writes the error envelope with a status derived from err
func fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": message})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotAuthenticated), errors.Is(err, cart.ErrNotSignedIn):
		return http.StatusUnauthorized
	case errors.Is(err, order.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, store.ErrNotFound), errors.Is(err, cart.ErrLineNotFound):
		return http.StatusNotFound
	case errors.Is(err, cart.ErrInsufficientStock), errors.Is(err, order.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, order.ErrEmptyCart),
		errors.Is(err, user.ErrValidation),
		errors.Is(err, contact.ErrInvalid):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrOffline):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}

	// messages built by the store for rejected input carry no cause
	var se *store.Error
	if errors.As(err, &se) && se.Err == nil {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// storefront returns the caller's storefront. Routes using it are always
// mounted behind middleware.Storefront.
func storefront(c *gin.Context) *app.Storefront {
	return middleware.CurrentStorefront(c)
}

// paramID parses the :id route parameter, answering 400 when malformed
func paramID(c *gin.Context, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "Invalid "+what+" ID")
		return uuid.Nil, false
	}
	return id, true
}
