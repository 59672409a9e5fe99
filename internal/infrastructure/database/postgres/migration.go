// internal/infrastructure/database/postgres/migration.go
package postgres

import (
	"fmt"

	"github.com/kg-components/storefront/internal/domain/cart"
	"github.com/kg-components/storefront/internal/domain/contact"
	"github.com/kg-components/storefront/internal/domain/order"
	"github.com/kg-components/storefront/internal/domain/product"
	"github.com/kg-components/storefront/internal/domain/user"
	"github.com/kg-components/storefront/internal/store"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Migration handles database migrations
type Migration struct {
	db  *gorm.DB
	log logrus.FieldLogger
}

// NewMigration creates a new migration instance
func NewMigration(db *gorm.DB, log logrus.FieldLogger) *Migration {
	return &Migration{
		db:  db,
		log: log.WithField("component", "migration"),
	}
}

// Models returns every model of the schema in dependency order
func Models() []any {
	return []any{
		&product.Category{},
		&product.Product{},
		&store.AuthUser{},
		&user.Profile{},
		&cart.CartItem{},
		&order.Order{},
		&order.OrderItem{},
		&order.StatusHistory{},
		&contact.Message{},
	}
}

// RunAutoMigrations runs GORM auto-migrations for all models
func (m *Migration) RunAutoMigrations() error {
	m.log.Info("running database auto-migrations")

	for _, model := range Models() {
		m.log.Debugf("migrating model %T", model)
		if err := m.db.AutoMigrate(model); err != nil {
			return fmt.Errorf("failed to migrate model %T: %w", model, err)
		}
	}

	m.log.Info("database auto-migrations completed")
	return nil
}

// CreateIndexes creates the indexes the listing queries rely on
func (m *Migration) CreateIndexes() error {
	indexes := []string{
		// products: shop listing sorts and featured strip
		"CREATE INDEX IF NOT EXISTS idx_products_created_at ON products(created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_products_price ON products(price)",
		"CREATE INDEX IF NOT EXISTS idx_products_featured_created ON products(is_featured, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_products_category_created ON products(category_id, created_at DESC)",

		// orders
		"CREATE INDEX IF NOT EXISTS idx_orders_user_created ON orders(user_id, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_orders_status_created ON orders(status, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_order_items_order ON order_items(order_id)",
		"CREATE INDEX IF NOT EXISTS idx_order_status_history_order ON order_status_history(order_id, created_at DESC)",

		// cart
		"CREATE INDEX IF NOT EXISTS idx_cart_items_user_created ON cart_items(user_id, created_at)",

		"CREATE INDEX IF NOT EXISTS idx_contact_messages_created_at ON contact_messages(created_at DESC)",
	}

	failed := 0
	for _, indexSQL := range indexes {
		if err := m.db.Exec(indexSQL).Error; err != nil {
			m.log.WithError(err).Warn("failed to create index")
			failed++
		}
	}

	m.log.WithFields(logrus.Fields{
		"created": len(indexes) - failed,
		"failed":  failed,
	}).Info("database indexes ensured")
	return nil
}

// DropAllTables drops every table of the schema. Development only.
func (m *Migration) DropAllTables() error {
	models := Models()
	for i := len(models) - 1; i >= 0; i-- {
		if err := m.db.Migrator().DropTable(models[i]); err != nil {
			return fmt.Errorf("failed to drop %T: %w", models[i], err)
		}
	}
	m.log.Warn("all tables dropped")
	return nil
}
