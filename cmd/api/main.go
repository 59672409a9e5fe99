// cmd/api/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kg-components/storefront/internal/app"
	"github.com/kg-components/storefront/internal/config"
	"github.com/kg-components/storefront/internal/infrastructure/database/postgres"
	redisx "github.com/kg-components/storefront/internal/infrastructure/database/redis"
	"github.com/kg-components/storefront/internal/infrastructure/messaging/kafka"
	"github.com/kg-components/storefront/internal/interfaces/http"
	"github.com/kg-components/storefront/internal/pkg/events"
	"github.com/kg-components/storefront/internal/pkg/logger"
	"github.com/kg-components/storefront/internal/store"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	log := logger.New(cfg)
	log.WithFields(logrus.Fields{
		"version":     cfg.App.Version,
		"environment": cfg.App.Environment,
	}).Infof("starting %s", cfg.App.Name)

	// Database. Without DB_HOST the store runs offline: reads come back
	// empty and writes fail.
	var db *gorm.DB
	if cfg.HasDatabase() {
		conn, err := postgres.NewConnection(cfg, log)
		if err != nil {
			log.WithError(err).Fatal("failed to connect to database")
		}
		defer conn.Close()
		db = conn.GetDB()

		if cfg.Database.AutoMigrate {
			migration := postgres.NewMigration(db, log)
			if err := migration.RunAutoMigrations(); err != nil {
				log.WithError(err).Fatal("database migration failed")
			}
			if err := migration.CreateIndexes(); err != nil {
				log.WithError(err).Warn("index creation failed")
			}
			if cfg.Database.Seed {
				if err := migration.SeedInitialData(cfg); err != nil {
					log.WithError(err).Warn("data seeding failed")
				}
			}
		}
	} else {
		log.Warn("DB_HOST not set, running with the store offline")
	}

	// Redis is optional: sessions fall back to token validation only and
	// the rate limiter and category cache are skipped.
	var cache *redisx.Client
	if cfg.HasRedis() {
		cache, err = redisx.NewConnection(cfg, log)
		if err != nil {
			log.WithError(err).Fatal("failed to connect to Redis")
		}
		defer cache.Close()
	}

	var publisher events.Publisher = events.NewLogPublisher(log)
	if len(cfg.Kafka.Brokers) > 0 {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.OrderTopic, cfg.Kafka.BufferSize, log)
		producer.Start()
		defer producer.Close()
		publisher = producer
	}

	client := store.NewClient(cfg, db, cache, log)
	application := app.New(cfg, log, client, publisher)
	application.Start()
	defer application.Close()

	server := http.NewServer(cfg, log, application)
	go func() {
		if err := server.Start(); err != nil {
			log.WithError(err).Fatal("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("shutting down gracefully")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Stop(ctx); err != nil {
		log.WithError(err).Error("failed to shutdown HTTP server gracefully")
	}
	log.Info("server shutdown completed")
}
