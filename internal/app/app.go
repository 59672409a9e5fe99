package app

import (
	"context"
	"time"

	"github.com/kg-components/storefront/internal/config"
	"github.com/kg-components/storefront/internal/domain/cart"
	"github.com/kg-components/storefront/internal/domain/contact"
	"github.com/kg-components/storefront/internal/domain/order"
	"github.com/kg-components/storefront/internal/domain/product"
	"github.com/kg-components/storefront/internal/domain/user"
	"github.com/kg-components/storefront/internal/pkg/email"
	"github.com/kg-components/storefront/internal/pkg/events"
	"github.com/kg-components/storefront/internal/pkg/notify"
	"github.com/kg-components/storefront/internal/pkg/pdf"
	"github.com/kg-components/storefront/internal/store"
	"github.com/sirupsen/logrus"
)

const janitorInterval = time.Minute

// App owns the shared backend and the storefront registry
type App struct {
	cfg      *config.Config
	log      logrus.FieldLogger
	client   *store.Client
	registry *Registry
}

// New registers the order procedures on client and prepares the registry
func New(cfg *config.Config, log logrus.FieldLogger, client *store.Client, publisher events.Publisher) *App {
	procs := order.NewProcedures(cfg, client.Cache(), publisher, pdf.NewService(cfg), email.NewEmailService(cfg, log), log)
	procs.Register(client)
	cart.RegisterProcedures(client)

	a := &App{cfg: cfg, log: log, client: client}
	a.registry = NewRegistry(a.open, cfg.Storefront.SessionIdleTTL, log)
	return a
}

// Start runs background work
func (a *App) Start() {
	a.registry.Start(janitorInterval)
}

// Close disposes every storefront
func (a *App) Close() {
	a.registry.Close()
}

// Client returns the shared backend
func (a *App) Client() *store.Client {
	return a.client
}

// Registry returns the storefront registry
func (a *App) Registry() *Registry {
	return a.registry
}

// Storefront returns the visitor's storefront
func (a *App) Storefront(ctx context.Context, id, credential string) (*Storefront, error) {
	return a.registry.Get(ctx, id, credential)
}

// SubmitContact stores a contact form message through an anonymous handle
func (a *App) SubmitContact(ctx context.Context, m contact.Message) (*contact.Message, error) {
	return contact.Submit(ctx, a.client.Connect(ctx, ""), m)
}

func (a *App) open(ctx context.Context, id, credential string) (*Storefront, error) {
	h := a.client.Connect(ctx, credential)
	return NewStorefront(id, Dependencies{
		Auth:     h,
		Profiles: user.NewProfileRepository(h),
		Products: product.NewRepository(h, a.client.Cache(), a.cfg.Storefront.CategoryCacheTTL, a.log),
		Cart:     cart.NewRepository(h),
		Orders:   order.NewRepository(h),
		Notices:  notify.NewRecorder(),
		Log:      a.log,
	}), nil
}
