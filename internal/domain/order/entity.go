// internal/domain/order/entity.go
package order

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kg-components/storefront/internal/domain/product"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	OrdersTable  = "orders"
	ItemsTable   = "order_items"
	HistoryTable = "order_status_history"
)

// Order represents a placed order
type Order struct {
	ID               uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	UserID           uuid.UUID        `gorm:"type:uuid;not null;index" json:"user_id"`
	Status           Status           `gorm:"size:20;not null;default:'pending';index" json:"status"`
	TotalAmount      decimal.Decimal  `gorm:"type:numeric(10,2);not null" json:"total_amount"`
	ShippingCost     *decimal.Decimal `gorm:"type:numeric(10,2)" json:"shipping_cost,omitempty"`
	ShippingAddress  *string          `gorm:"type:text" json:"shipping_address,omitempty"`
	InvoiceSent      bool             `gorm:"not null;default:false" json:"invoice_sent"`
	PaymentConfirmed bool             `gorm:"not null;default:false" json:"payment_confirmed"`
	IdempotencyKey   *string          `gorm:"size:64;uniqueIndex" json:"-"`
	CreatedAt        time.Time        `gorm:"index" json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`

	// Relationships
	Items []OrderItem `gorm:"foreignKey:OrderID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"items"`
}

// OrderItem is one line of an order. Name and unit price are captured
// when the order is placed.
type OrderItem struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	OrderID      uuid.UUID       `gorm:"type:uuid;not null;index" json:"order_id"`
	ProductID    uuid.UUID       `gorm:"type:uuid;not null;index" json:"product_id"`
	ProductName  string          `gorm:"size:255;not null" json:"product_name"`
	Quantity     int             `gorm:"not null;check:quantity >= 1" json:"quantity"`
	PricePerUnit decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"price_per_unit"`
	CreatedAt    time.Time       `json:"created_at"`

	Product *product.Product `gorm:"foreignKey:ProductID" json:"product,omitempty"`
}

// StatusHistory tracks order status changes
type StatusHistory struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	OrderID    uuid.UUID `gorm:"type:uuid;not null;index" json:"order_id"`
	FromStatus Status    `gorm:"size:20" json:"from_status,omitempty"`
	ToStatus   Status    `gorm:"size:20;not null" json:"to_status"`
	ChangedBy  uuid.UUID `gorm:"type:uuid;index" json:"changed_by"`
	Note       string    `gorm:"type:text" json:"note,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName overrides
func (Order) TableName() string         { return OrdersTable }
func (OrderItem) TableName() string     { return ItemsTable }
func (StatusHistory) TableName() string { return HistoryTable }

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

func (i *OrderItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

func (h *StatusHistory) BeforeCreate(tx *gorm.DB) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	return nil
}

// LineTotal is quantity times the captured unit price
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.PricePerUnit.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Subtotal sums the line totals
func (o *Order) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range o.Items {
		sum = sum.Add(it.LineTotal())
	}
	return sum
}

// Shipping returns the shipping charge, zero when none was recorded
func (o *Order) Shipping() decimal.Decimal {
	if o.ShippingCost == nil {
		return decimal.Zero
	}
	return *o.ShippingCost
}

// ItemCount returns the number of units ordered
func (o *Order) ItemCount() int {
	n := 0
	for _, it := range o.Items {
		n += it.Quantity
	}
	return n
}

// ShortID is the first block of the id, used as a human-facing order number
func (o *Order) ShortID() string {
	s := o.ID.String()
	if i := strings.IndexByte(s, '-'); i > 0 {
		return s[:i]
	}
	return s
}

// CanBeCancelled checks if order can be cancelled
func (o *Order) CanBeCancelled() bool {
	return ValidateTransition(o.Status, StatusCancelled) == nil
}
