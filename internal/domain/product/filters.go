package product

import (
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/kg-components/storefront/internal/store"
	"github.com/shopspring/decimal"
)

// SortKey selects one of the catalog orderings
type SortKey string

const (
	SortNameAsc   SortKey = "name_asc"
	SortNameDesc  SortKey = "name_desc"
	SortPriceAsc  SortKey = "price_asc"
	SortPriceDesc SortKey = "price_desc"
	SortNewest    SortKey = "newest"
	SortOldest    SortKey = "oldest"
)

// ParseSortKey maps a query value onto a SortKey. Unknown values sort newest first.
func ParseSortKey(s string) SortKey {
	switch k := SortKey(strings.ToLower(strings.TrimSpace(s))); k {
	case SortNameAsc, SortNameDesc, SortPriceAsc, SortPriceDesc, SortNewest, SortOldest:
		return k
	}
	return SortNewest
}

// Ordering returns the single-key ordering for k
func (k SortKey) Ordering() *store.Ordering {
	switch k {
	case SortNameAsc:
		return store.OrderBy("name", false)
	case SortNameDesc:
		return store.OrderBy("name", true)
	case SortPriceAsc:
		return store.OrderBy("price", false)
	case SortPriceDesc:
		return store.OrderBy("price", true)
	case SortOldest:
		return store.OrderBy("created_at", false)
	default:
		return store.OrderBy("created_at", true)
	}
}

// Filters is the active catalog filter state. It is not tied to an identity.
type Filters struct {
	CategoryID *uuid.UUID       `json:"category_id,omitempty"`
	PriceMin   *decimal.Decimal `json:"price_min,omitempty"`
	PriceMax   *decimal.Decimal `json:"price_max,omitempty"`
	Search     string           `json:"search,omitempty"`
	Sort       SortKey          `json:"sort,omitempty"`
}

// FilterOption changes one part of the filter state. Passing nil clears it.
type FilterOption func(*Filters)

// WithCategory sets or clears the category filter
func WithCategory(id *uuid.UUID) FilterOption {
	return func(f *Filters) { f.CategoryID = id }
}

// WithPriceRange sets or clears the price bounds (inclusive)
func WithPriceRange(lo, hi *decimal.Decimal) FilterOption {
	return func(f *Filters) {
		f.PriceMin = lo
		f.PriceMax = hi
	}
}

// WithSearch sets the free-text search; "" clears it
func WithSearch(term string) FilterOption {
	return func(f *Filters) { f.Search = strings.TrimSpace(term) }
}

// WithSort sets the ordering
func WithSort(k SortKey) FilterOption {
	return func(f *Filters) { f.Sort = k }
}

// Merge returns f with opts applied
func (f Filters) Merge(opts ...FilterOption) Filters {
	for _, opt := range opts {
		opt(&f)
	}
	return f
}

// Query renders the filters as a single store query with the category joined
func (f Filters) Query() store.Query {
	q := store.Query{
		Order:   ParseSortKey(string(f.Sort)).Ordering(),
		Preload: []string{"Category"},
	}
	if f.CategoryID != nil {
		q.Filters = append(q.Filters, store.Eq("category_id", *f.CategoryID))
	}
	if f.PriceMin != nil {
		q.Filters = append(q.Filters, store.Gte("price", *f.PriceMin))
	}
	if f.PriceMax != nil {
		q.Filters = append(q.Filters, store.Lte("price", *f.PriceMax))
	}
	if f.Search != "" {
		q.Filters = append(q.Filters, store.ILike(f.Search, "name", "description"))
	}
	return q
}

// ParseFilters reads the shop query parameters. The URL carries the whole
// filter state, so absent parameters clear their filter. Malformed values
// are ignored.
func ParseFilters(v url.Values) []FilterOption {
	var category *uuid.UUID
	if id, err := uuid.Parse(v.Get("category")); err == nil {
		category = &id
	}

	return []FilterOption{
		WithCategory(category),
		WithPriceRange(parseDecimal(v.Get("min_price")), parseDecimal(v.Get("max_price"))),
		WithSearch(v.Get("search")),
		WithSort(ParseSortKey(v.Get("sort"))),
	}
}

func parseDecimal(s string) *decimal.Decimal {
	if s == "" {
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return nil
	}
	return &d
}
