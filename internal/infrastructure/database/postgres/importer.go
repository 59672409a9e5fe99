package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/kg-components/storefront/internal/domain/product"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const defaultImportBatch = 100

// CatalogCategory is one category of a scraped supplier catalog
type CatalogCategory struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// CatalogProduct is one product of a scraped supplier catalog. Prices are
// free text such as "R 1,249.95".
type CatalogProduct struct {
	Code         string `json:"code"`
	PartNumber   string `json:"part_number"`
	Description  string `json:"description"`
	Price        string `json:"price"`
	Category     string `json:"category"`
	Manufacturer string `json:"manufacturer"`
	Stock        *int   `json:"stock,omitempty"`
	Featured     bool   `json:"featured,omitempty"`
}

// ImportResult counts what an import wrote
type ImportResult struct {
	CategoriesCreated int
	ProductsCreated   int
	ProductsUpdated   int
	ProductsSkipped   int
}

// DecodeCatalog reads a JSON array into dest
func DecodeCatalog[T any](r io.Reader) ([]T, error) {
	var out []T
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}
	return out, nil
}

// ParsePrice reads a supplier price, ignoring currency symbols, spaces and
// thousands separators. Unreadable prices are zero.
func ParsePrice(s string) decimal.Decimal {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			b.WriteRune(r)
		}
	}
	d, err := decimal.NewFromString(b.String())
	if err != nil || d.IsNegative() {
		return decimal.Zero
	}
	return d.Round(2)
}

// toProduct maps an imported row onto the products table. The SKU is the
// supplier code; the part number names the product when present.
func (p CatalogProduct) toProduct(categories map[string]uuid.UUID) product.Product {
	name := strings.TrimSpace(p.PartNumber)
	if name == "" {
		name = strings.TrimSpace(p.Code)
	}

	out := product.Product{
		Name:         name,
		Description:  strings.TrimSpace(p.Description),
		Price:        ParsePrice(p.Price),
		SKU:          strings.TrimSpace(p.Code),
		Manufacturer: strings.TrimSpace(p.Manufacturer),
		IsFeatured:   p.Featured,
	}
	if p.Stock != nil && *p.Stock > 0 {
		out.Stock = *p.Stock
	}
	if id, ok := categories[strings.ToLower(strings.TrimSpace(p.Category))]; ok {
		out.CategoryID = &id
	}
	return out
}

// ImportCatalog upserts categories by name and products by SKU. Products are
// written in batches, one transaction per batch. Rows without a code are
// skipped. Stock is only overwritten when the row carries one.
func (m *Migration) ImportCatalog(ctx context.Context, categories []CatalogCategory, products []CatalogProduct, batch int) (ImportResult, error) {
	var res ImportResult
	if batch <= 0 {
		batch = defaultImportBatch
	}
	db := m.db.WithContext(ctx)

	ids := make(map[string]uuid.UUID, len(categories))
	for _, c := range categories {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			continue
		}
		category := product.Category{Name: name, Description: name + " from Mantech"}
		tx := db.Where("name = ?", name).FirstOrCreate(&category)
		if tx.Error != nil {
			return res, fmt.Errorf("failed to import category %q: %w", name, tx.Error)
		}
		if tx.RowsAffected > 0 {
			res.CategoriesCreated++
		}
		ids[strings.ToLower(name)] = category.ID
	}

	// products may name categories that were created earlier
	var existing []product.Category
	if err := db.Find(&existing).Error; err != nil {
		return res, fmt.Errorf("failed to load categories: %w", err)
	}
	for _, c := range existing {
		ids[strings.ToLower(c.Name)] = c.ID
	}

	for start := 0; start < len(products); start += batch {
		end := min(start+batch, len(products))
		err := db.Transaction(func(tx *gorm.DB) error {
			for _, row := range products[start:end] {
				p := row.toProduct(ids)
				if p.SKU == "" {
					res.ProductsSkipped++
					continue
				}
				created, err := upsertProduct(tx, p, row.Stock != nil)
				if err != nil {
					return fmt.Errorf("sku %s: %w", p.SKU, err)
				}
				if created {
					res.ProductsCreated++
				} else {
					res.ProductsUpdated++
				}
			}
			return nil
		})
		if err != nil {
			return res, fmt.Errorf("failed to import products %d-%d: %w", start+1, end, err)
		}
		m.log.WithFields(logrus.Fields{"from": start + 1, "to": end, "total": len(products)}).Info("imported product batch")
	}
	return res, nil
}

func upsertProduct(tx *gorm.DB, p product.Product, withStock bool) (bool, error) {
	var current product.Product
	err := tx.Where("sku = ?", p.SKU).First(&current).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return true, tx.Create(&p).Error
	}
	if err != nil {
		return false, err
	}

	values := map[string]any{
		"name":         p.Name,
		"description":  p.Description,
		"price":        p.Price,
		"manufacturer": p.Manufacturer,
		"category_id":  p.CategoryID,
	}
	if withStock {
		values["stock"] = p.Stock
	}
	return false, tx.Model(&current).Updates(values).Error
}
