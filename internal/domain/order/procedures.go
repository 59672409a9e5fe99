package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kg-components/storefront/internal/config"
	"github.com/kg-components/storefront/internal/domain/cart"
	"github.com/kg-components/storefront/internal/domain/product"
	"github.com/kg-components/storefront/internal/domain/user"
	redisx "github.com/kg-components/storefront/internal/infrastructure/database/redis"
	"github.com/kg-components/storefront/internal/pkg/events"
	"github.com/kg-components/storefront/internal/pkg/metrics"
	"github.com/kg-components/storefront/internal/store"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const placingLockTTL = 30 * time.Second

// ShippingRule charges a flat rate unless the subtotal exceeds the free
// threshold. A zero threshold never waives the rate.
type ShippingRule struct {
	FlatRate      decimal.Decimal
	FreeThreshold decimal.Decimal
}

// For returns the shipping charge for subtotal
func (r ShippingRule) For(subtotal decimal.Decimal) decimal.Decimal {
	if !r.FlatRate.IsPositive() {
		return decimal.Zero
	}
	if r.FreeThreshold.IsPositive() && subtotal.GreaterThan(r.FreeThreshold) {
		return decimal.Zero
	}
	return r.FlatRate
}

// Procedures holds the server-side order functions
type Procedures struct {
	shipping  ShippingRule
	locks     *redisx.Client
	publisher events.Publisher
	invoices  InvoiceRenderer
	mailer    InvoiceMailer
	log       logrus.FieldLogger
}

// NewProcedures creates the order procedures. locks may be nil, in which
// case duplicate placement is only prevented by the idempotency key index.
func NewProcedures(cfg *config.Config, locks *redisx.Client, publisher events.Publisher, invoices InvoiceRenderer, mailer InvoiceMailer, log logrus.FieldLogger) *Procedures {
	return &Procedures{
		shipping: ShippingRule{
			FlatRate:      cfg.Storefront.ShippingFlatRate,
			FreeThreshold: cfg.Storefront.ShippingFreeThreshold,
		},
		locks:     locks,
		publisher: publisher,
		invoices:  invoices,
		mailer:    mailer,
		log:       log.WithField("component", "order-procedures"),
	}
}

// Register adds the order procedures to the client
func (p *Procedures) Register(c *store.Client) {
	c.Register(ProcPlaceOrder, p.placeOrder)
	c.Register(ProcSetOrderStatus, p.setStatus)
	c.Register(ProcUpdateOrderFlags, p.updateFlags)
	c.Register(ProcSendInvoice, p.sendInvoice)
	c.Register(ProcListCustomers, p.listCustomers)
}

// orderEvent is the payload of every order event
type orderEvent struct {
	OrderID     uuid.UUID       `json:"order_id"`
	UserID      uuid.UUID       `json:"user_id"`
	Status      Status          `json:"status"`
	FromStatus  Status          `json:"from_status,omitempty"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	ItemsCount  int             `json:"items_count"`
}

func (p *Procedures) publish(ctx context.Context, eventType string, o *Order, from Status) {
	ev, err := events.New(eventType, o.ID.String(), orderEvent{
		OrderID:     o.ID,
		UserID:      o.UserID,
		Status:      o.Status,
		FromStatus:  from,
		TotalAmount: o.TotalAmount,
		ItemsCount:  o.ItemCount(),
	})
	if err != nil {
		p.log.WithError(err).WithField("event_type", eventType).Error("failed to build order event")
		return
	}
	p.publisher.Publish(ctx, ev)
}

func (p *Procedures) placeOrder(ctx context.Context, tx *store.Tx, caller *store.Caller, payload json.RawMessage) (_ any, err error) {
	const op = ProcPlaceOrder
	if err := store.RequireCaller(op, caller); err != nil {
		return nil, err
	}

	var req PlaceOrderRequest
	if err := store.Decode(op, payload, &req); err != nil {
		return nil, err
	}
	lines, err := mergeLines(req.Lines)
	if err != nil {
		return nil, &store.Error{Op: op, Message: err.Error(), Err: err}
	}

	key := strings.TrimSpace(req.IdempotencyKey)
	if key != "" {
		existing, err := findByKey(tx.DB, caller.UserID, key)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}

		if p.locks != nil {
			lockKey := "order:placing:" + key
			ok, lerr := p.locks.TryLock(ctx, lockKey, placingLockTTL)
			switch {
			case lerr != nil:
				p.log.WithError(lerr).Warn("placement lock unavailable, relying on idempotency index")
			case !ok:
				return nil, store.Errorf(op, "This order is already being placed")
			default:
				defer func() {
					if err != nil {
						if derr := p.locks.Del(context.Background(), lockKey); derr != nil {
							p.log.WithError(derr).Warn("failed to release placement lock")
						}
					}
				}()
			}
		}
	}

	ids := make([]uuid.UUID, len(lines))
	for i, l := range lines {
		ids[i] = l.ProductID
	}
	var products []product.Product
	if err := tx.DB.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).
		Order("id").
		Find(&products).Error; err != nil {
		return nil, fmt.Errorf("failed to lock products: %w", err)
	}
	byID := make(map[uuid.UUID]product.Product, len(products))
	for _, pr := range products {
		byID[pr.ID] = pr
	}

	o := &Order{
		UserID: caller.UserID,
		Status: StatusPending,
	}
	for _, l := range lines {
		pr, ok := byID[l.ProductID]
		if !ok {
			return nil, store.Errorf(op, "Product %s is no longer available", l.ProductID)
		}
		if pr.Stock < l.Quantity {
			return nil, &store.Error{
				Op:      op,
				Message: fmt.Sprintf("Only %d of %s left in stock", pr.Stock, pr.Name),
				Err:     cart.ErrInsufficientStock,
			}
		}
		o.Items = append(o.Items, OrderItem{
			ProductID:    pr.ID,
			ProductName:  pr.Name,
			Quantity:     l.Quantity,
			PricePerUnit: pr.Price,
		})
	}

	subtotal := o.Subtotal()
	shipping := p.shipping.For(subtotal)
	o.ShippingCost = &shipping
	o.TotalAmount = subtotal.Add(shipping)
	if addr := strings.TrimSpace(req.ShippingAddress); addr != "" {
		o.ShippingAddress = &addr
	}
	if key != "" {
		o.IdempotencyKey = &key
	}

	if err := tx.DB.Create(o).Error; err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	for _, it := range o.Items {
		if err := tx.DB.Model(&product.Product{}).
			Where("id = ?", it.ProductID).
			UpdateColumn("stock", gorm.Expr("stock - ?", it.Quantity)).Error; err != nil {
			return nil, fmt.Errorf("failed to update product stock: %w", err)
		}
	}

	if err := tx.DB.Create(&StatusHistory{
		OrderID:   o.ID,
		ToStatus:  StatusPending,
		ChangedBy: caller.UserID,
		Note:      "Order placed",
	}).Error; err != nil {
		return nil, fmt.Errorf("failed to create status history: %w", err)
	}

	tx.AfterCommit(func(ctx context.Context) {
		metrics.OrdersPlaced.Inc()
		p.log.WithFields(logrus.Fields{
			"order_id": o.ID,
			"user_id":  o.UserID,
			"total":    o.TotalAmount.StringFixed(2),
		}).Info("order placed")
		p.publish(ctx, events.OrderCreated, o, "")
	})
	return o, nil
}

func (p *Procedures) setStatus(ctx context.Context, tx *store.Tx, caller *store.Caller, payload json.RawMessage) (any, error) {
	const op = ProcSetOrderStatus
	if err := store.RequireCaller(op, caller); err != nil {
		return nil, err
	}

	var req StatusRequest
	if err := store.Decode(op, payload, &req); err != nil {
		return nil, err
	}
	if req.OrderID == uuid.Nil {
		return nil, store.Errorf(op, "Order ID is required")
	}

	o, err := lockOrder(tx.DB, op, req.OrderID)
	if err != nil {
		return nil, err
	}

	admin, err := user.IsAdminTx(tx.DB, caller.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to check admin flag: %w", err)
	}
	ownCancel := o.UserID == caller.UserID && o.Status == StatusPending && req.Status == StatusCancelled
	if !admin && !ownCancel {
		return nil, &store.Error{Op: op, Message: "Only administrators can update orders", Err: ErrForbidden}
	}

	if err := ValidateTransition(o.Status, req.Status); err != nil {
		return nil, &store.Error{Op: op, Message: err.Error(), Err: err}
	}

	from := o.Status
	if err := tx.DB.Model(o).Updates(map[string]interface{}{
		"status":     req.Status,
		"updated_at": time.Now().UTC(),
	}).Error; err != nil {
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}
	o.Status = req.Status

	if req.Status == StatusCancelled {
		if err := restoreStock(tx.DB, o.ID); err != nil {
			return nil, err
		}
	}

	if err := tx.DB.Create(&StatusHistory{
		OrderID:    o.ID,
		FromStatus: from,
		ToStatus:   req.Status,
		ChangedBy:  caller.UserID,
		Note:       req.Note,
	}).Error; err != nil {
		return nil, fmt.Errorf("failed to create status history: %w", err)
	}

	if err := tx.DB.Preload("Items").Preload("Items.Product").First(o, "id = ?", o.ID).Error; err != nil {
		return nil, fmt.Errorf("failed to reload order: %w", err)
	}

	tx.AfterCommit(func(ctx context.Context) {
		metrics.OrderStatusChanges.WithLabelValues(string(o.Status)).Inc()
		p.publish(ctx, events.OrderStatusChanged, o, from)
	})
	return o, nil
}

func (p *Procedures) updateFlags(ctx context.Context, tx *store.Tx, caller *store.Caller, payload json.RawMessage) (any, error) {
	const op = ProcUpdateOrderFlags
	if err := requireAdmin(tx.DB, op, caller); err != nil {
		return nil, err
	}

	var req FlagsRequest
	if err := store.Decode(op, payload, &req); err != nil {
		return nil, err
	}
	if req.OrderID == uuid.Nil {
		return nil, store.Errorf(op, "Order ID is required")
	}

	values := map[string]interface{}{}
	if req.InvoiceSent != nil {
		values["invoice_sent"] = *req.InvoiceSent
	}
	if req.PaymentConfirmed != nil {
		values["payment_confirmed"] = *req.PaymentConfirmed
	}
	if len(values) == 0 {
		return nil, nil
	}

	o, err := lockOrder(tx.DB, op, req.OrderID)
	if err != nil {
		return nil, err
	}
	confirming := req.PaymentConfirmed != nil && *req.PaymentConfirmed && !o.PaymentConfirmed

	values["updated_at"] = time.Now().UTC()
	if err := tx.DB.Model(o).Updates(values).Error; err != nil {
		return nil, fmt.Errorf("failed to update order flags: %w", err)
	}

	if confirming {
		o.PaymentConfirmed = true
		tx.AfterCommit(func(ctx context.Context) {
			p.publish(ctx, events.OrderPaymentConfirmed, o, "")
		})
	}
	return nil, nil
}

func requireAdmin(db *gorm.DB, op string, caller *store.Caller) error {
	if err := store.RequireCaller(op, caller); err != nil {
		return err
	}
	admin, err := user.IsAdminTx(db, caller.UserID)
	if err != nil {
		return fmt.Errorf("failed to check admin flag: %w", err)
	}
	if !admin {
		return &store.Error{Op: op, Message: "Only administrators can update orders", Err: ErrForbidden}
	}
	return nil
}

func lockOrder(db *gorm.DB, op string, id uuid.UUID) (*Order, error) {
	var o Order
	res := db.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).Limit(1).Find(&o)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to load order: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, &store.Error{Op: op, Message: "Order not found", Err: store.ErrNotFound}
	}
	return &o, nil
}

func findByKey(db *gorm.DB, userID uuid.UUID, key string) (*Order, error) {
	var o Order
	res := db.Preload("Items").Where("user_id = ? AND idempotency_key = ?", userID, key).Limit(1).Find(&o)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to look up order: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &o, nil
}

func restoreStock(db *gorm.DB, orderID uuid.UUID) error {
	var items []OrderItem
	if err := db.Where("order_id = ?", orderID).Find(&items).Error; err != nil {
		return fmt.Errorf("failed to get order items: %w", err)
	}

	for _, it := range items {
		if err := db.Model(&product.Product{}).
			Where("id = ?", it.ProductID).
			UpdateColumn("stock", gorm.Expr("stock + ?", it.Quantity)).Error; err != nil {
			return fmt.Errorf("failed to restore product stock: %w", err)
		}
	}
	return nil
}

// mergeLines folds repeated products together and orders the lines by
// product id so row locks are always taken in the same order.
func mergeLines(in []LineRequest) ([]LineRequest, error) {
	if len(in) == 0 {
		return nil, ErrEmptyCart
	}

	qty := make(map[uuid.UUID]int, len(in))
	for _, l := range in {
		if l.ProductID == uuid.Nil {
			return nil, errors.New("product id is required")
		}
		if l.Quantity < 1 {
			return nil, cart.ErrInvalidQuantity
		}
		qty[l.ProductID] += l.Quantity
	}

	out := make([]LineRequest, 0, len(qty))
	for id, n := range qty {
		out = append(out, LineRequest{ProductID: id, Quantity: n})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ProductID.String() < out[j].ProductID.String()
	})
	return out, nil
}
