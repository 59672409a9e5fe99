// internal/domain/product/repository.go
package product

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	redisx "github.com/kg-components/storefront/internal/infrastructure/database/redis"
	"github.com/kg-components/storefront/internal/store"
	"github.com/sirupsen/logrus"
)

// CategoriesCacheKey holds the cached category list
const CategoriesCacheKey = "catalog:categories"

// Repository is the catalog's view of the backend
type Repository interface {
	ListCategories(ctx context.Context) ([]Category, error)
	ListProducts(ctx context.Context, f Filters) ([]Product, error)
	ListFeatured(ctx context.Context, limit int) ([]Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*Product, error)
}

// StoreRepository reads the catalog through a store handle. Categories are
// cached in redis when a cache is available.
type StoreRepository struct {
	handle   *store.Handle
	cache    *redisx.Client
	cacheTTL time.Duration
	log      logrus.FieldLogger
}

// NewRepository creates a store-backed repository. cache may be nil.
func NewRepository(h *store.Handle, cache *redisx.Client, cacheTTL time.Duration, log logrus.FieldLogger) *StoreRepository {
	return &StoreRepository{handle: h, cache: cache, cacheTTL: cacheTTL, log: log}
}

// ListCategories returns every category ordered by name
func (r *StoreRepository) ListCategories(ctx context.Context) ([]Category, error) {
	var categories []Category
	if r.cache != nil {
		err := r.cache.GetJSON(ctx, CategoriesCacheKey, &categories)
		if err == nil {
			return categories, nil
		}
		if !errors.Is(err, redisx.ErrMiss) {
			r.log.WithError(err).Warn("category cache read failed")
		}
	}

	categories = nil
	if err := r.handle.Query(ctx, CategoriesTable, &categories, store.Query{
		Order: store.OrderBy("name", false),
	}); err != nil {
		return nil, err
	}

	if r.cache != nil && len(categories) > 0 {
		if err := r.cache.SetJSON(ctx, CategoriesCacheKey, categories, r.cacheTTL); err != nil {
			r.log.WithError(err).Warn("category cache write failed")
		}
	}
	return categories, nil
}

// ListProducts runs the filter query
func (r *StoreRepository) ListProducts(ctx context.Context, f Filters) ([]Product, error) {
	var products []Product
	if err := r.handle.Query(ctx, ProductsTable, &products, f.Query()); err != nil {
		return nil, err
	}
	return products, nil
}

// ListFeatured returns featured products, newest first
func (r *StoreRepository) ListFeatured(ctx context.Context, limit int) ([]Product, error) {
	var products []Product
	if err := r.handle.Query(ctx, ProductsTable, &products, store.Query{
		Filters: []store.Filter{store.Eq("is_featured", true)},
		Order:   store.OrderBy("created_at", true),
		Preload: []string{"Category"},
		Limit:   limit,
	}); err != nil {
		return nil, err
	}
	return products, nil
}

// GetProduct fetches one product with its category
func (r *StoreRepository) GetProduct(ctx context.Context, id uuid.UUID) (*Product, error) {
	var p Product
	if err := r.handle.First(ctx, ProductsTable, &p, store.Query{
		Filters: []store.Filter{store.Eq("id", id)},
		Preload: []string{"Category"},
	}); err != nil {
		return nil, err
	}
	return &p, nil
}
