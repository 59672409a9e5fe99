// Package app assembles the per-visitor state containers and owns the
// shared backend they talk to.
package app

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kg-components/storefront/internal/domain/cart"
	"github.com/kg-components/storefront/internal/domain/order"
	"github.com/kg-components/storefront/internal/domain/product"
	"github.com/kg-components/storefront/internal/domain/user"
	"github.com/kg-components/storefront/internal/pkg/notify"
	"github.com/sirupsen/logrus"
)

// Dependencies are the backends one storefront is built from
type Dependencies struct {
	Auth     user.Auth
	Profiles user.ProfileRepository
	Products product.Repository
	Cart     cart.Repository
	Orders   order.Repository
	Notices  *notify.Recorder
	Log      logrus.FieldLogger
}

// Storefront is one visitor's set of state containers
type Storefront struct {
	ID       string
	Session  *user.Session
	Catalog  *product.Catalog
	Cart     *cart.Cache
	Orders   *order.Workflow
	Notices  *notify.Recorder
	Profiles user.ProfileRepository

	auth user.Auth
	log  logrus.FieldLogger

	// serialises Init and Dispose; identity callbacks never take it
	mu       sync.Mutex
	ready    atomic.Bool
	disposed bool
	lastSeen atomic.Int64
}

// NewStorefront wires the containers together. Nothing is loaded until Init.
func NewStorefront(id string, deps Dependencies) *Storefront {
	notices := deps.Notices
	if notices == nil {
		notices = notify.NewRecorder()
	}
	log := deps.Log.WithField("storefront", id)

	session := user.NewSession(deps.Auth, deps.Profiles, notices, log)
	cartCache := cart.NewCache(deps.Cart, session, notices, log)

	s := &Storefront{
		ID:       id,
		Session:  session,
		Catalog:  product.NewCatalog(deps.Products, notices, log),
		Cart:     cartCache,
		Orders:   order.NewWorkflow(deps.Orders, cartCache, session, notices, log),
		Notices:  notices,
		Profiles: deps.Profiles,
		auth:     deps.Auth,
		log:      log,
	}
	s.Touch()
	session.OnIdentityChange(s.onIdentityChange)
	return s
}

// Init restores the session, then loads categories, then the cart when
// someone is signed in. Calling it again is a no-op.
func (s *Storefront) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready.Load() || s.disposed {
		return nil
	}

	if err := s.Session.Initialize(ctx); err != nil {
		return err
	}
	if err := s.Catalog.Init(ctx); err != nil {
		s.log.WithError(err).Warn("failed to load categories")
	}
	if _, ok := s.Session.UserID(); ok {
		if err := s.Cart.Load(ctx); err != nil {
			s.log.WithError(err).Warn("failed to load cart")
		}
	}
	s.ready.Store(true)
	return nil
}

// Dispose drops every subscription. A disposed storefront is never reused.
func (s *Storefront) Dispose() {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.disposed = true
	s.mu.Unlock()

	s.Session.Dispose()
	s.Catalog.Dispose()
}

// Touch records activity
func (s *Storefront) Touch() {
	s.lastSeen.Store(time.Now().UnixNano())
}

// LastSeen returns the time of the last recorded activity
func (s *Storefront) LastSeen() time.Time {
	return time.Unix(0, s.lastSeen.Load())
}

// AccessToken returns the token of the live session, or "" when signed out
func (s *Storefront) AccessToken(ctx context.Context) string {
	sess, err := s.auth.CurrentSession(ctx)
	if err != nil || sess == nil {
		return ""
	}
	return sess.AccessToken
}

// SignedIn reports whether the session holds an identity
func (s *Storefront) SignedIn() bool {
	_, ok := s.Session.UserID()
	return ok
}

// IsAdmin re-reads the admin flag of the signed-in user
func (s *Storefront) IsAdmin(ctx context.Context) (bool, error) {
	id, ok := s.Session.UserID()
	if !ok {
		return false, nil
	}
	return s.Profiles.IsAdmin(ctx, id)
}

// onIdentityChange keeps the cart and orders in step with the identity.
// Changes during Init are covered by Init itself.
func (s *Storefront) onIdentityChange(ctx context.Context, identity *user.Identity) {
	if !s.ready.Load() {
		return
	}

	if identity == nil {
		s.Cart.Reset()
		s.Orders.Reset()
		return
	}

	s.Orders.Reset()
	if err := s.Cart.Load(ctx); err != nil {
		s.log.WithError(err).Warn("failed to load cart after sign-in")
	}
}
