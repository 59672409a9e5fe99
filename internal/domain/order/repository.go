package order

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/kg-components/storefront/internal/store"
	"github.com/shopspring/decimal"
)

// Names of the order procedures registered on the store
const (
	ProcPlaceOrder       = "place-order"
	ProcSetOrderStatus   = "set-order-status"
	ProcUpdateOrderFlags = "update-order-flags"
	ProcSendInvoice      = "send-invoice"
	ProcListCustomers    = "list-customers"
)

var orderPreload = []string{"Items", "Items.Product"}

// LineRequest is one cart line sent to place-order
type LineRequest struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
}

// PlaceOrderRequest is the place-order payload. Prices are never sent:
// the procedure reads them itself.
type PlaceOrderRequest struct {
	Lines           []LineRequest `json:"lines"`
	IdempotencyKey  string        `json:"idempotency_key"`
	ShippingAddress string        `json:"shipping_address,omitempty"`
}

// StatusRequest is the set-order-status payload
type StatusRequest struct {
	OrderID uuid.UUID `json:"orderId"`
	Status  Status    `json:"status"`
	Note    string    `json:"note,omitempty"`
}

// FlagsRequest is the update-order-flags payload. Nil flags are left alone.
type FlagsRequest struct {
	OrderID          uuid.UUID `json:"orderId"`
	InvoiceSent      *bool     `json:"invoiceSent,omitempty"`
	PaymentConfirmed *bool     `json:"paymentConfirmed,omitempty"`
}

// InvoiceRequest is the send-invoice payload
type InvoiceRequest struct {
	OrderID string `json:"orderId"`
}

// InvoiceResult is what send-invoice reports back
type InvoiceResult struct {
	Success         bool            `json:"success"`
	Message         string          `json:"message"`
	OrderDetails    InvoiceOrder    `json:"orderDetails"`
	CustomerDetails InvoiceCustomer `json:"customerDetails"`
}

// InvoiceOrder summarises the invoiced order
type InvoiceOrder struct {
	ID          uuid.UUID       `json:"id"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	Status      Status          `json:"status"`
	CreatedAt   time.Time       `json:"createdAt"`
	ItemsCount  int             `json:"itemsCount"`
}

// InvoiceCustomer is the billed customer
type InvoiceCustomer struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
}

// Repository is the order workflow's view of the backend
type Repository interface {
	ListForUser(ctx context.Context, userID uuid.UUID) ([]Order, error)
	ListAll(ctx context.Context) ([]Order, error)
	Get(ctx context.Context, id uuid.UUID) (*Order, error)
	Place(ctx context.Context, req PlaceOrderRequest) (*Order, error)
	SetStatus(ctx context.Context, req StatusRequest) (*Order, error)
	SetFlags(ctx context.Context, req FlagsRequest) error
	SendInvoice(ctx context.Context, orderID uuid.UUID) (*InvoiceResult, error)
	Customers(ctx context.Context, search string) ([]CustomerSummary, error)
}

// StoreRepository implements Repository on a store handle. Writes go
// through the order procedures.
type StoreRepository struct {
	handle *store.Handle
}

// NewRepository creates a store-backed order repository
func NewRepository(h *store.Handle) *StoreRepository {
	return &StoreRepository{handle: h}
}

// ListForUser returns the user's orders, newest first
func (r *StoreRepository) ListForUser(ctx context.Context, userID uuid.UUID) ([]Order, error) {
	var orders []Order
	if err := r.handle.Query(ctx, OrdersTable, &orders, store.Query{
		Filters: []store.Filter{store.Eq("user_id", userID)},
		Order:   store.OrderBy("created_at", true),
		Preload: orderPreload,
	}); err != nil {
		return nil, err
	}
	return orders, nil
}

// ListAll returns every order, newest first
func (r *StoreRepository) ListAll(ctx context.Context) ([]Order, error) {
	var orders []Order
	if err := r.handle.Query(ctx, OrdersTable, &orders, store.Query{
		Order:   store.OrderBy("created_at", true),
		Preload: orderPreload,
	}); err != nil {
		return nil, err
	}
	return orders, nil
}

// Get returns one order with its items
func (r *StoreRepository) Get(ctx context.Context, id uuid.UUID) (*Order, error) {
	var o Order
	if err := r.handle.First(ctx, OrdersTable, &o, store.Query{
		Filters: []store.Filter{store.Eq("id", id)},
		Preload: orderPreload,
	}); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *StoreRepository) Place(ctx context.Context, req PlaceOrderRequest) (*Order, error) {
	var o Order
	if err := r.handle.Invoke(ctx, ProcPlaceOrder, req, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *StoreRepository) SetStatus(ctx context.Context, req StatusRequest) (*Order, error) {
	var o Order
	if err := r.handle.Invoke(ctx, ProcSetOrderStatus, req, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *StoreRepository) SetFlags(ctx context.Context, req FlagsRequest) error {
	return r.handle.Invoke(ctx, ProcUpdateOrderFlags, req, nil)
}

func (r *StoreRepository) SendInvoice(ctx context.Context, orderID uuid.UUID) (*InvoiceResult, error) {
	var res InvoiceResult
	if err := r.handle.Invoke(ctx, ProcSendInvoice, InvoiceRequest{OrderID: orderID.String()}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Customers lists profiles with their order counts, newest first. Admin only.
func (r *StoreRepository) Customers(ctx context.Context, search string) ([]CustomerSummary, error) {
	var customers []CustomerSummary
	if err := r.handle.Invoke(ctx, ProcListCustomers, CustomersRequest{Search: search}, &customers); err != nil {
		return nil, err
	}
	return customers, nil
}
