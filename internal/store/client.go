// Package store is the data-access layer: relational tables through gorm,
// sessions backed by JWT and redis, and named server-side procedures that
// run in a single transaction.
package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/kg-components/storefront/internal/config"
	redisx "github.com/kg-components/storefront/internal/infrastructure/database/redis"
	"github.com/kg-components/storefront/internal/pkg/auth"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Client is the shared backend every Handle talks to. A nil database puts it
// offline: reads come back empty and writes fail with ErrOffline. A nil cache
// means sessions are trusted on their signature alone.
type Client struct {
	db        *gorm.DB
	cache     *redisx.Client
	tokens    *auth.JWTManager
	passwords *auth.PasswordManager
	log       logrus.FieldLogger

	mu    sync.RWMutex
	procs map[string]Procedure
}

// NewClient creates a backend client. db and cache may be nil.
func NewClient(cfg *config.Config, db *gorm.DB, cache *redisx.Client, log logrus.FieldLogger) *Client {
	if db == nil {
		log.Warn("no database configured, store is running offline")
	}
	return &Client{
		db:        db,
		cache:     cache,
		tokens:    auth.NewJWTManager(cfg),
		passwords: auth.NewPasswordManager(cfg),
		log:       log,
		procs:     make(map[string]Procedure),
	}
}

// Online reports whether a database is attached.
func (c *Client) Online() bool {
	return c.db != nil
}

// DB exposes the gorm handle to migrations and health checks. Nil when offline.
func (c *Client) DB() *gorm.DB {
	return c.db
}

// Cache returns the redis wrapper, or nil when redis is not configured.
func (c *Client) Cache() *redisx.Client {
	return c.cache
}

// Register makes a procedure invokable by name. Registering a name twice panics.
func (c *Client) Register(name string, p Procedure) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, dup := c.procs[name]; dup {
		panic(fmt.Sprintf("store: procedure %q registered twice", name))
	}
	c.procs[name] = p
}

func (c *Client) procedure(name string) (Procedure, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.procs[name]
	return p, ok
}

// Connect returns a new handle. A non-empty credential is an access token
// from an earlier session; it is restored when still valid and ignored otherwise.
func (c *Client) Connect(ctx context.Context, credential string) *Handle {
	h := &Handle{client: c}
	if credential != "" {
		if s, err := c.restore(ctx, credential); err == nil {
			h.session = s
		} else {
			c.log.WithError(err).Debug("discarding stale credential")
		}
	}
	return h
}

// Ping checks the database and, when configured, redis.
func (c *Client) Ping(ctx context.Context) error {
	if c.db == nil {
		return ErrOffline
	}
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	if c.cache != nil {
		if err := c.cache.Health(ctx); err != nil {
			return fmt.Errorf("redis ping failed: %w", err)
		}
	}
	return nil
}
