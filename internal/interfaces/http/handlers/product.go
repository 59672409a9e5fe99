// internal/interfaces/http/handlers/product.go
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kg-components/storefront/internal/config"
	"github.com/kg-components/storefront/internal/domain/product"
	"github.com/kg-components/storefront/internal/store"
)

// CatalogHandler serves the home page, the shop and product pages
type CatalogHandler struct {
	config *config.Config
}

// NewCatalogHandler creates a new catalog handler
func NewCatalogHandler(cfg *config.Config) *CatalogHandler {
	return &CatalogHandler{config: cfg}
}

// Home handles GET /
func (h *CatalogHandler) Home(c *gin.Context) {
	sf := storefront(c)

	featured, err := sf.Catalog.LoadFeatured(c.Request.Context(), h.config.Storefront.FeaturedLimit)
	if err != nil {
		fail(c, err)
		return
	}

	respond(c, http.StatusOK, "Welcome to "+h.config.Company.Name, gin.H{
		"featured":   featured,
		"categories": sf.Catalog.State().Categories,
	})
}

// Shop handles GET /shop. The query string carries the whole filter state;
// ?clear=1 drops every filter first.
func (h *CatalogHandler) Shop(c *gin.Context) {
	sf := storefront(c)

	if c.Query("clear") == "1" {
		sf.Catalog.ClearFilters()
	}
	// categories are loaded once per storefront; retry when that failed
	if len(sf.Catalog.State().Categories) == 0 {
		_ = sf.Catalog.LoadCategories(c.Request.Context())
	}

	if err := sf.Catalog.LoadProducts(c.Request.Context(), product.ParseFilters(c.Request.URL.Query())...); err != nil {
		fail(c, err)
		return
	}

	state := sf.Catalog.State()
	respond(c, http.StatusOK, "Products retrieved successfully", gin.H{
		"products":   state.Products,
		"categories": state.Categories,
		"filters":    state.Filters,
		"count":      len(state.Products),
	})
}

// GetProduct handles GET /product/:id
func (h *CatalogHandler) GetProduct(c *gin.Context) {
	id, ok := paramID(c, "product")
	if !ok {
		return
	}

	p, err := storefront(c).Catalog.LoadProduct(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
			return
		}
		fail(c, err)
		return
	}

	respond(c, http.StatusOK, "Product retrieved successfully", gin.H{
		"product":  p,
		"in_stock": p.InStock(),
	})
}
