package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kg-components/storefront/internal/domain/user"
	"github.com/kg-components/storefront/internal/pkg/email"
	"github.com/kg-components/storefront/internal/pkg/events"
	"github.com/kg-components/storefront/internal/pkg/pdf"
	"github.com/kg-components/storefront/internal/store"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// InvoiceRenderer turns invoice data into a PDF
type InvoiceRenderer interface {
	GenerateInvoice(data pdf.InvoiceData) ([]byte, error)
}

// InvoiceMailer delivers the invoice email. pdf may be nil.
type InvoiceMailer interface {
	SendInvoiceEmail(ctx context.Context, data email.InvoiceEmailData, pdf []byte) error
}

const dateLayout = "January 2, 2006"

func (p *Procedures) sendInvoice(ctx context.Context, tx *store.Tx, caller *store.Caller, payload json.RawMessage) (any, error) {
	const op = ProcSendInvoice
	if err := requireAdmin(tx.DB, op, caller); err != nil {
		return nil, err
	}

	var req InvoiceRequest
	if err := store.Decode(op, payload, &req); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.OrderID) == "" {
		return nil, store.Errorf(op, "Order ID is required")
	}
	id, err := uuid.Parse(req.OrderID)
	if err != nil {
		return nil, &store.Error{Op: op, Message: "Order not found", Err: store.ErrNotFound}
	}

	var o Order
	res := tx.DB.Preload("Items").Preload("Items.Product").Where("id = ?", id).Limit(1).Find(&o)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to load order: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, &store.Error{Op: op, Message: "Order not found", Err: store.ErrNotFound}
	}

	var profile user.Profile
	if err := tx.DB.Where("id = ?", o.UserID).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &store.Error{Op: op, Message: "User profile not found", Err: store.ErrNotFound}
		}
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	recipient := profile.Email
	if recipient == "" {
		var au store.AuthUser
		if err := tx.DB.Select("email").Where("id = ?", o.UserID).First(&au).Error; err != nil {
			return nil, fmt.Errorf("failed to load customer email: %w", err)
		}
		recipient = au.Email
	}

	doc, err := p.invoices.GenerateInvoice(invoiceData(&o, &profile, recipient))
	if err != nil {
		p.log.WithError(err).WithField("order_id", o.ID).Warn("invoice PDF failed, sending email without attachment")
		doc = nil
	}

	if err := p.mailer.SendInvoiceEmail(ctx, email.InvoiceEmailData{
		EmailTemplateData: email.EmailTemplateData{UserName: profile.DisplayName(), UserEmail: recipient},
		OrderID:           o.ID.String(),
		OrderDate:         o.CreatedAt.Format(dateLayout),
		OrderTotal:        o.TotalAmount.StringFixed(2),
		ItemsCount:        len(o.Items),
	}, doc); err != nil {
		return nil, &store.Error{Op: op, Message: "Failed to send invoice: " + err.Error(), Err: err}
	}

	if err := tx.DB.Model(&o).Updates(map[string]interface{}{
		"invoice_sent": true,
		"updated_at":   time.Now().UTC(),
	}).Error; err != nil {
		return nil, fmt.Errorf("failed to update order: %w", err)
	}
	o.InvoiceSent = true

	tx.AfterCommit(func(ctx context.Context) {
		p.log.WithFields(logrus.Fields{"order_id": o.ID, "to": recipient}).Info("invoice sent")
		p.publish(ctx, events.OrderInvoiceSent, &o, "")
	})

	return &InvoiceResult{
		Success: true,
		Message: "Invoice sent successfully",
		OrderDetails: InvoiceOrder{
			ID:          o.ID,
			TotalAmount: o.TotalAmount,
			Status:      o.Status,
			CreatedAt:   o.CreatedAt,
			ItemsCount:  len(o.Items),
		},
		CustomerDetails: InvoiceCustomer{
			Name:    profile.FullName,
			Address: profile.Address,
			Phone:   profile.Phone,
		},
	}, nil
}

func invoiceData(o *Order, profile *user.Profile, recipient string) pdf.InvoiceData {
	data := pdf.InvoiceData{
		InvoiceNumber:    "INV-" + strings.ToUpper(o.ShortID()),
		InvoiceDate:      time.Now().Format(dateLayout),
		OrderID:          o.ID.String(),
		OrderDate:        o.CreatedAt.Format(dateLayout),
		Status:           string(o.Status),
		PaymentConfirmed: o.PaymentConfirmed,
		Customer: pdf.CustomerInfo{
			Name:    profile.DisplayName(),
			Email:   recipient,
			Address: profile.Address,
			Phone:   profile.Phone,
		},
		Subtotal: o.Subtotal().StringFixed(2),
		Shipping: o.Shipping().StringFixed(2),
		Total:    o.TotalAmount.StringFixed(2),
	}
	if o.ShippingAddress != nil {
		data.ShippingAddress = *o.ShippingAddress
	}
	for _, it := range o.Items {
		line := pdf.InvoiceLine{
			Name:      it.ProductName,
			Quantity:  it.Quantity,
			UnitPrice: it.PricePerUnit.StringFixed(2),
			Total:     it.LineTotal().StringFixed(2),
		}
		if it.Product != nil {
			line.SKU = it.Product.SKU
			if line.Name == "" {
				line.Name = it.Product.Name
			}
		}
		data.Items = append(data.Items, line)
	}
	return data
}
