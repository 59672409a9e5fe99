// cmd/import/main.go imports a scraped supplier catalog into the products
// and categories tables.
//
//	go run ./cmd/import -categories data/categories.json -products data/all_products.json
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/kg-components/storefront/internal/config"
	"github.com/kg-components/storefront/internal/domain/product"
	"github.com/kg-components/storefront/internal/infrastructure/database/postgres"
	redisx "github.com/kg-components/storefront/internal/infrastructure/database/redis"
	"github.com/kg-components/storefront/internal/pkg/logger"
	"github.com/sirupsen/logrus"
)

func main() {
	categoriesPath := flag.String("categories", "data/categories.json", "categories JSON file")
	productsPath := flag.String("products", "data/all_products.json", "products JSON file")
	batch := flag.Int("batch", 100, "products per transaction")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	log := logger.New(cfg)

	if !cfg.HasDatabase() {
		log.Fatal("DB_HOST is required to import a catalog")
	}

	categories, err := readCatalog[postgres.CatalogCategory](*categoriesPath)
	if err != nil {
		log.WithError(err).Fatal("failed to read categories")
	}
	products, err := readCatalog[postgres.CatalogProduct](*productsPath)
	if err != nil {
		log.WithError(err).Fatal("failed to read products")
	}

	conn, err := postgres.NewConnection(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	defer conn.Close()

	migration := postgres.NewMigration(conn.GetDB(), log)
	if err := migration.RunAutoMigrations(); err != nil {
		log.WithError(err).Fatal("database migration failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := migration.ImportCatalog(ctx, categories, products, *batch)
	if err != nil {
		log.WithError(err).Error("import stopped")
	}
	log.WithFields(logrus.Fields{
		"categories_created": res.CategoriesCreated,
		"products_created":   res.ProductsCreated,
		"products_updated":   res.ProductsUpdated,
		"products_skipped":   res.ProductsSkipped,
	}).Info("catalog import finished")

	// storefronts would otherwise serve the old category list until expiry
	if cfg.HasRedis() {
		if cache, err := redisx.NewConnection(cfg, log); err == nil {
			if err := cache.Del(ctx, product.CategoriesCacheKey); err != nil {
				log.WithError(err).Warn("failed to drop category cache")
			}
			cache.Close()
		}
	}

	if err != nil {
		os.Exit(1)
	}
}

func readCatalog[T any](path string) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return postgres.DecodeCatalog[T](f)
}
