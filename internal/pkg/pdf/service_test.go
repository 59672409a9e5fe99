package pdf

import (
	"testing"

	"github.com/kg-components/storefront/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderInvoice(t *testing.T) {
	s := NewService(&config.Config{Company: config.CompanyConfig{
		Name:  "KG Components",
		Email: "support@kg.test",
		Phone: "+1 555 0100",
	}})

	html, err := s.RenderInvoice(InvoiceData{
		InvoiceNumber: "INV-0B7C6A1E",
		OrderID:       "0b7c6a1e",
		Status:        "pending",
		Customer:      CustomerInfo{Name: "Ada <Lovelace>", Email: "ada@kg.test"},
		Items: []InvoiceLine{
			{Name: "Resistor", Quantity: 2, UnitPrice: "10.00", Total: "20.00"},
			{Name: "Capacitor", Quantity: 2, UnitPrice: "20.00", Total: "40.00"},
		},
		Subtotal: "60.00",
		Shipping: "0.00",
		Total:    "60.00",
	})
	require.NoError(t, err)

	assert.Contains(t, html, "KG Components")
	assert.Contains(t, html, "INV-0B7C6A1E")
	assert.Contains(t, html, "$60.00")
	assert.Contains(t, html, "Capacitor")
	assert.Contains(t, html, "payment pending")
	// customer input is escaped
	assert.Contains(t, html, "Ada &lt;Lovelace&gt;")
}
