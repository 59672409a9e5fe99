package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kg-components/storefront/internal/config"
	"github.com/kg-components/storefront/internal/domain/contact"
)

// ContactSink stores contact form messages
type ContactSink interface {
	SubmitContact(ctx context.Context, m contact.Message) (*contact.Message, error)
}

// PageHandler serves the about and contact pages
type PageHandler struct {
	config  *config.Config
	contact ContactSink
}

// NewPageHandler creates a new page handler
func NewPageHandler(cfg *config.Config, sink ContactSink) *PageHandler {
	return &PageHandler{config: cfg, contact: sink}
}

// About handles GET /about
func (h *PageHandler) About(c *gin.Context) {
	respond(c, http.StatusOK, "About "+h.config.Company.Name, gin.H{
		"company": h.config.Company,
		"about": h.config.Company.Name + " supplies electronic components, tools, " +
			"test and measurement equipment, power products and instruments.",
	})
}

// Contact handles GET /contact
func (h *PageHandler) Contact(c *gin.Context) {
	respond(c, http.StatusOK, "Contact "+h.config.Company.Name, gin.H{
		"company": h.config.Company,
	})
}

// SubmitContact handles POST /contact. Nothing is stored unless name, email
// and message are present.
func (h *PageHandler) SubmitContact(c *gin.Context) {
	var req contact.Message
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request data")
		return
	}

	m, err := h.contact.SubmitContact(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusCreated, "Thank you for your message. We will get back to you soon.", m)
}
