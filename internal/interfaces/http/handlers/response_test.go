package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/kg-components/storefront/internal/domain/cart"
	"github.com/kg-components/storefront/internal/domain/order"
	"github.com/kg-components/storefront/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not authenticated", store.ErrNotAuthenticated, http.StatusUnauthorized},
		{"not signed in", cart.ErrNotSignedIn, http.StatusUnauthorized},
		{"foreign order", order.ErrForbidden, http.StatusForbidden},
		{"missing row", fmt.Errorf("load: %w", store.ErrNotFound), http.StatusNotFound},
		{"stock", cart.ErrInsufficientStock, http.StatusConflict},
		{"transition", order.ErrInvalidTransition, http.StatusConflict},
		{"empty cart", order.ErrEmptyCart, http.StatusBadRequest},
		{"offline", store.ErrOffline, http.StatusServiceUnavailable},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"rejected input", store.Errorf("sign_up", "email already registered"), http.StatusBadRequest},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
		{"mail delivery", &store.Error{Op: "send-invoice", Message: "Failed to send invoice: smtp down", Err: errors.New("smtp down")}, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

func TestRespondWithoutStorefront(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	respond(c, http.StatusOK, "ok", gin.H{"n": 1})

	var body struct {
		Message string          `json:"message"`
		Notices json.RawMessage `json:"notices"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Message)
	assert.JSONEq(t, "[]", string(body.Notices))
}

func TestParamID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/orders/:id", func(c *gin.Context) {
		id, ok := paramID(c, "order")
		if !ok {
			return
		}
		c.String(http.StatusOK, id.String())
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/orders/nope", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid order ID")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/orders/4c1d3b5e-8a1f-4c39-9d0e-2b6f7a9c1e11", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "4c1d3b5e-8a1f-4c39-9d0e-2b6f7a9c1e11", w.Body.String())
}
