// internal/domain/product/catalog.go
package product

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/kg-components/storefront/internal/pkg/notify"
	"github.com/sirupsen/logrus"
)

// CatalogState is a snapshot of the catalog
type CatalogState struct {
	Products   []Product  `json:"products"`
	Categories []Category `json:"categories"`
	Filters    Filters    `json:"filters"`
	Error      string     `json:"error,omitempty"`
	IsLoading  bool       `json:"is_loading"`
}

// Catalog holds the current product listing, the categories and the
// active filters of one storefront.
type Catalog struct {
	repo     Repository
	notifier notify.Notifier
	log      logrus.FieldLogger

	// serialises listing loads so results land in filter order
	loadMu sync.Mutex

	mu         sync.RWMutex
	products   []Product
	categories []Category
	filters    Filters
	err        string
	loading    int
}

// NewCatalog creates an empty catalog
func NewCatalog(repo Repository, notifier notify.Notifier, log logrus.FieldLogger) *Catalog {
	return &Catalog{
		repo:     repo,
		notifier: notifier,
		log:      log.WithField("component", "catalog"),
		filters:  Filters{Sort: SortNewest},
	}
}

// Init loads the categories
func (c *Catalog) Init(ctx context.Context) error {
	return c.LoadCategories(ctx)
}

// Dispose releases nothing; the catalog owns no subscriptions.
func (c *Catalog) Dispose() {}

// State returns a copy of the catalog state
func (c *Catalog) State() CatalogState {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return CatalogState{
		Products:   append([]Product(nil), c.products...),
		Categories: append([]Category(nil), c.categories...),
		Filters:    c.filters,
		Error:      c.err,
		IsLoading:  c.loading > 0,
	}
}

// Filters returns the active filters
func (c *Catalog) Filters() Filters {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.filters
}

// LoadCategories fetches every category ordered by name. Safe to repeat.
// A failed load leaves the categories empty.
func (c *Catalog) LoadCategories(ctx context.Context) error {
	c.begin()
	categories, err := c.repo.ListCategories(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.loading--
	if err != nil {
		c.categories = nil
		c.err = err.Error()
		c.log.WithError(err).Error("error fetching categories")
		return err
	}
	c.categories = categories
	return nil
}

// LoadProducts merges opts into the filters and replaces the listing with
// the result of one query. A failed load leaves the listing empty.
func (c *Catalog) LoadProducts(ctx context.Context, opts ...FilterOption) error {
	c.loadMu.Lock()
	defer c.loadMu.Unlock()

	c.mu.Lock()
	c.filters = c.filters.Merge(opts...)
	filters := c.filters
	c.loading++
	c.err = ""
	c.mu.Unlock()

	products, err := c.repo.ListProducts(ctx, filters)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.loading--
	if err != nil {
		c.products = nil
		c.err = err.Error()
		c.log.WithError(err).Error("error fetching products")
		c.notifier.Notify(notify.Failure("Error loading products", err.Error()))
		return err
	}
	c.products = products
	return nil
}

// ClearFilters resets every filter. The listing is not reloaded.
func (c *Catalog) ClearFilters() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filters = Filters{Sort: SortNewest}
}

// ProductByID looks id up in the loaded listing only
func (c *Catalog) ProductByID(id uuid.UUID) (Product, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, p := range c.products {
		if p.ID == id {
			return p, true
		}
	}
	return Product{}, false
}

// LoadProduct fetches a single product without touching the listing
func (c *Catalog) LoadProduct(ctx context.Context, id uuid.UUID) (*Product, error) {
	p, err := c.repo.GetProduct(ctx, id)
	if err != nil {
		c.log.WithError(err).WithField("product_id", id).Warn("error fetching product")
		return nil, err
	}
	return p, nil
}

// LoadFeatured fetches up to limit featured products, newest first
func (c *Catalog) LoadFeatured(ctx context.Context, limit int) ([]Product, error) {
	products, err := c.repo.ListFeatured(ctx, limit)
	if err != nil {
		c.log.WithError(err).Error("error fetching featured products")
		return nil, err
	}
	return products, nil
}

func (c *Catalog) begin() {
	c.mu.Lock()
	c.loading++
	c.err = ""
	c.mu.Unlock()
}
