package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kg-components/storefront/internal/domain/cart"
	"github.com/kg-components/storefront/internal/domain/order"
	"github.com/kg-components/storefront/internal/domain/product"
	"github.com/kg-components/storefront/internal/domain/user"
	"github.com/kg-components/storefront/internal/pkg/logger"
	"github.com/kg-components/storefront/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAuth mimics the session side of a store handle
type fakeAuth struct {
	mu        sync.Mutex
	session   *store.Session
	listeners map[int]store.SessionListener
	next      int
}

func newFakeAuth(signedIn *store.User) *fakeAuth {
	a := &fakeAuth{listeners: map[int]store.SessionListener{}}
	if signedIn != nil {
		a.session = &store.Session{AccessToken: "token-" + signedIn.ID.String(), User: *signedIn}
	}
	return a
}

func (a *fakeAuth) fire(ctx context.Context, ev store.AuthEvent, s *store.Session) {
	a.mu.Lock()
	ls := make([]store.SessionListener, 0, len(a.listeners))
	for _, l := range a.listeners {
		ls = append(ls, l)
	}
	a.mu.Unlock()
	for _, l := range ls {
		l(ctx, ev, s)
	}
}

func (a *fakeAuth) SignIn(ctx context.Context, email, password string) (*store.Session, error) {
	s := &store.Session{AccessToken: "token", User: store.User{ID: uuid.New(), Email: email}}
	a.mu.Lock()
	a.session = s
	a.mu.Unlock()
	a.fire(ctx, store.EventSignedIn, s)
	return s, nil
}

func (a *fakeAuth) SignUp(ctx context.Context, email, password string, metadata map[string]any) (*store.Session, error) {
	return a.SignIn(ctx, email, password)
}

func (a *fakeAuth) SignOut(ctx context.Context) error {
	a.mu.Lock()
	a.session = nil
	a.mu.Unlock()
	a.fire(ctx, store.EventSignedOut, nil)
	return nil
}

func (a *fakeAuth) CurrentSession(ctx context.Context) (*store.Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session, nil
}

func (a *fakeAuth) OnSessionChange(ctx context.Context, fn store.SessionListener) func() {
	a.mu.Lock()
	a.next++
	id := a.next
	a.listeners[id] = fn
	s := a.session
	a.mu.Unlock()

	fn(ctx, store.EventInitialSession, s)
	return func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		delete(a.listeners, id)
	}
}

func (a *fakeAuth) listenerCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.listeners)
}

type fakeProfiles struct {
	admins map[uuid.UUID]bool
}

func (p *fakeProfiles) Get(ctx context.Context, id uuid.UUID) (*user.Profile, error) {
	return &user.Profile{ID: id, IsAdmin: p.admins[id]}, nil
}
func (p *fakeProfiles) Create(ctx context.Context, pr *user.Profile) error { return nil }
func (p *fakeProfiles) Update(ctx context.Context, id uuid.UUID, values map[string]any) error {
	return nil
}
func (p *fakeProfiles) IsAdmin(ctx context.Context, id uuid.UUID) (bool, error) {
	return p.admins[id], nil
}

type fakeProducts struct {
	calls []string
}

func (p *fakeProducts) ListCategories(ctx context.Context) ([]product.Category, error) {
	p.calls = append(p.calls, "categories")
	return []product.Category{{ID: uuid.New(), Name: "Tools"}}, nil
}
func (p *fakeProducts) ListProducts(ctx context.Context, f product.Filters) ([]product.Product, error) {
	return nil, nil
}
func (p *fakeProducts) ListFeatured(ctx context.Context, limit int) ([]product.Product, error) {
	return nil, nil
}
func (p *fakeProducts) GetProduct(ctx context.Context, id uuid.UUID) (*product.Product, error) {
	return nil, store.ErrNotFound
}

// fakeCart returns one line for whoever asks
type fakeCart struct {
	mu    sync.Mutex
	loads []uuid.UUID
}

func (c *fakeCart) ListLines(ctx context.Context, userID uuid.UUID) ([]cart.CartItem, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loads = append(c.loads, userID)
	return []cart.CartItem{{
		ID: uuid.New(), UserID: userID, ProductID: uuid.New(), Quantity: 2,
		Product: &product.Product{Price: decimal.NewFromInt(3)},
	}}, nil
}
func (c *fakeCart) ProductStock(ctx context.Context, productID uuid.UUID) (int, error) {
	return 100, nil
}
func (c *fakeCart) AddLine(ctx context.Context, userID, productID uuid.UUID, quantity int) (*cart.CartItem, error) {
	return &cart.CartItem{ID: uuid.New(), UserID: userID, ProductID: productID, Quantity: quantity}, nil
}
func (c *fakeCart) UpdateQuantity(ctx context.Context, userID, lineID uuid.UUID, quantity int) (*cart.CartItem, error) {
	return &cart.CartItem{ID: lineID, UserID: userID, Quantity: quantity}, nil
}
func (c *fakeCart) DeleteLine(ctx context.Context, userID, lineID uuid.UUID) error { return nil }
func (c *fakeCart) DeleteAll(ctx context.Context, userID uuid.UUID) error          { return nil }

func (c *fakeCart) loadCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.loads)
}

type fakeOrders struct{}

func (fakeOrders) ListForUser(ctx context.Context, userID uuid.UUID) ([]order.Order, error) {
	return []order.Order{{ID: uuid.New(), UserID: userID}}, nil
}
func (fakeOrders) ListAll(ctx context.Context) ([]order.Order, error) { return nil, nil }
func (fakeOrders) Get(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	return nil, store.ErrNotFound
}
func (fakeOrders) Place(ctx context.Context, req order.PlaceOrderRequest) (*order.Order, error) {
	return nil, store.ErrOffline
}
func (fakeOrders) SetStatus(ctx context.Context, req order.StatusRequest) (*order.Order, error) {
	return nil, store.ErrOffline
}
func (fakeOrders) SetFlags(ctx context.Context, req order.FlagsRequest) error { return nil }
func (fakeOrders) SendInvoice(ctx context.Context, orderID uuid.UUID) (*order.InvoiceResult, error) {
	return nil, store.ErrOffline
}
func (fakeOrders) Customers(ctx context.Context, search string) ([]order.CustomerSummary, error) {
	return nil, nil
}

type harness struct {
	auth     *fakeAuth
	products *fakeProducts
	cart     *fakeCart
	profiles *fakeProfiles
}

func newHarness(signedIn *store.User) *harness {
	return &harness{
		auth:     newFakeAuth(signedIn),
		products: &fakeProducts{},
		cart:     &fakeCart{},
		profiles: &fakeProfiles{admins: map[uuid.UUID]bool{}},
	}
}

func (h *harness) storefront(id string) *Storefront {
	return NewStorefront(id, Dependencies{
		Auth:     h.auth,
		Profiles: h.profiles,
		Products: h.products,
		Cart:     h.cart,
		Orders:   fakeOrders{},
		Log:      logger.Discard(),
	})
}

func TestStorefrontInitRestoresSessionAndCart(t *testing.T) {
	u := &store.User{ID: uuid.New(), Email: "ada@kg.test"}
	h := newHarness(u)
	sf := h.storefront("visitor-1")

	require.NoError(t, sf.Init(context.Background()))

	uid, ok := sf.Session.UserID()
	require.True(t, ok)
	assert.Equal(t, u.ID, uid)
	assert.Equal(t, []string{"categories"}, h.products.calls)
	assert.Len(t, sf.Catalog.State().Categories, 1)
	assert.Equal(t, 1, h.cart.loadCount())
	assert.Equal(t, "6", sf.Cart.Total().String())
	assert.Equal(t, "token-"+u.ID.String(), sf.AccessToken(context.Background()))

	// a second Init does nothing
	require.NoError(t, sf.Init(context.Background()))
	assert.Equal(t, 1, h.cart.loadCount())
}

func TestStorefrontAnonymousInitSkipsCart(t *testing.T) {
	h := newHarness(nil)
	sf := h.storefront("visitor-1")

	require.NoError(t, sf.Init(context.Background()))
	assert.Zero(t, h.cart.loadCount())
	assert.Empty(t, sf.AccessToken(context.Background()))
}

func TestStorefrontFollowsIdentity(t *testing.T) {
	ctx := context.Background()
	h := newHarness(nil)
	sf := h.storefront("visitor-1")
	require.NoError(t, sf.Init(ctx))
	sf.Catalog.ClearFilters()
	require.NoError(t, sf.Catalog.LoadProducts(ctx, product.WithSearch("relay")))

	require.NoError(t, sf.Session.SignIn(ctx, "ada@kg.test", "secret123"))
	assert.Equal(t, 1, h.cart.loadCount())
	assert.Equal(t, 2, sf.Cart.Count())
	require.NoError(t, sf.Orders.FetchForUser(ctx))
	assert.Len(t, sf.Orders.Orders(), 1)

	require.NoError(t, sf.Session.SignOut(ctx))
	assert.Zero(t, sf.Cart.Count())
	assert.Empty(t, sf.Orders.Orders())
	assert.Equal(t, "relay", sf.Catalog.Filters().Search)
}

func TestStorefrontIsAdminReadsFresh(t *testing.T) {
	ctx := context.Background()
	u := &store.User{ID: uuid.New(), Email: "root@kg.test"}
	h := newHarness(u)
	sf := h.storefront("visitor-1")
	require.NoError(t, sf.Init(ctx))

	assert.False(t, sf.Session.IsAdmin())
	h.profiles.admins[u.ID] = true

	admin, err := sf.IsAdmin(ctx)
	require.NoError(t, err)
	assert.True(t, admin)
}

func TestStorefrontsAreIndependent(t *testing.T) {
	ctx := context.Background()
	a := newHarness(nil).storefront("a")
	b := newHarness(nil).storefront("b")
	require.NoError(t, a.Init(ctx))
	require.NoError(t, b.Init(ctx))

	require.NoError(t, a.Session.SignIn(ctx, "ada@kg.test", "secret123"))
	_, aIn := a.Session.UserID()
	_, bIn := b.Session.UserID()
	assert.True(t, aIn)
	assert.False(t, bIn)
	assert.NotEmpty(t, a.Notices.Drain())
	assert.Empty(t, b.Notices.Drain())
}

func TestStorefrontDisposeUnsubscribes(t *testing.T) {
	h := newHarness(nil)
	sf := h.storefront("visitor-1")
	require.NoError(t, sf.Init(context.Background()))
	assert.Equal(t, 1, h.auth.listenerCount())

	sf.Dispose()
	sf.Dispose()
	assert.Zero(t, h.auth.listenerCount())
}

func TestRegistryGetOrCreate(t *testing.T) {
	h := newHarness(nil)
	var built []string
	r := NewRegistry(func(ctx context.Context, id, credential string) (*Storefront, error) {
		built = append(built, id+"|"+credential)
		return h.storefront(id), nil
	}, time.Minute, logger.Discard())
	defer r.Close()

	a1, err := r.Get(context.Background(), "a", "tok")
	require.NoError(t, err)
	a2, err := r.Get(context.Background(), "a", "other")
	require.NoError(t, err)
	_, err = r.Get(context.Background(), "b", "")
	require.NoError(t, err)

	assert.Same(t, a1, a2)
	assert.Equal(t, []string{"a|tok", "b|"}, built)
	assert.Equal(t, 2, r.Len())
}

func TestRegistrySweepEvictsIdle(t *testing.T) {
	h := newHarness(nil)
	r := NewRegistry(func(ctx context.Context, id, credential string) (*Storefront, error) {
		return h.storefront(id), nil
	}, time.Minute, logger.Discard())

	_, err := r.Get(context.Background(), "a", "")
	require.NoError(t, err)
	require.Equal(t, 1, h.auth.listenerCount())

	assert.Zero(t, r.Sweep(time.Now()))
	assert.Equal(t, 1, r.Sweep(time.Now().Add(2*time.Minute)))
	assert.Zero(t, r.Len())
	assert.Zero(t, h.auth.listenerCount())
}

func TestRegistryCloseDisposesAll(t *testing.T) {
	h := newHarness(nil)
	r := NewRegistry(func(ctx context.Context, id, credential string) (*Storefront, error) {
		return h.storefront(id), nil
	}, time.Minute, logger.Discard())
	r.Start(time.Hour)

	for _, id := range []string{"a", "b", "c"} {
		_, err := r.Get(context.Background(), id, "")
		require.NoError(t, err)
	}
	require.Equal(t, 3, h.auth.listenerCount())

	r.Close()
	assert.Zero(t, r.Len())
	assert.Zero(t, h.auth.listenerCount())
}
