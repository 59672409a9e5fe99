// internal/pkg/email/service.go
package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/kg-components/storefront/internal/config"
	"github.com/sirupsen/logrus"
)

// Sender delivers emails
type Sender interface {
	SendEmail(ctx context.Context, email *Email) error
}

// EmailService handles all email operations
type EmailService struct {
	config    config.EmailConfig
	company   config.CompanyConfig
	templates map[string]*template.Template
	client    *http.Client
	log       logrus.FieldLogger
}

// NewEmailService creates a new email service
func NewEmailService(cfg *config.Config, log logrus.FieldLogger) *EmailService {
	return &EmailService{
		config:  cfg.Email,
		company: cfg.Company,
		templates: map[string]*template.Template{
			"invoice": template.Must(template.New("invoice").Parse(invoiceTemplate)),
		},
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: log.WithField("component", "email"),
	}
}

// SendEmail sends an email using the configured provider
func (s *EmailService) SendEmail(ctx context.Context, email *Email) error {
	switch s.config.Provider {
	case "smtp":
		return s.sendSMTPEmail(email)
	case "resend":
		return s.sendResendEmail(ctx, email)
	case "log", "":
		s.log.WithFields(logrus.Fields{
			"to":          email.To,
			"subject":     email.Subject,
			"type":        email.Type,
			"attachments": len(email.Attachments),
		}).Info("email not delivered, log provider configured")
		return nil
	default:
		return fmt.Errorf("unsupported email provider: %s", s.config.Provider)
	}
}

// SendInvoiceEmail sends the invoice for an order. pdf may be nil, in which
// case the email goes out without an attachment.
func (s *EmailService) SendInvoiceEmail(ctx context.Context, data InvoiceEmailData, pdf []byte) error {
	data.EmailTemplateData = GetBaseTemplateData(
		s.company.Name,
		s.company.Website,
		data.UserName,
		data.UserEmail,
	)

	htmlContent, err := s.renderTemplate("invoice", data)
	if err != nil {
		return fmt.Errorf("failed to render invoice template: %w", err)
	}

	email := &Email{
		To:          []string{data.UserEmail},
		ReplyTo:     s.company.Email,
		Subject:     fmt.Sprintf("Invoice for order %s - %s", shortID(data.OrderID), s.company.Name),
		HTMLContent: htmlContent,
		Type:        EmailTypeInvoice,
		Data: map[string]interface{}{
			"order_id":    data.OrderID,
			"order_total": data.OrderTotal,
		},
	}
	if len(pdf) > 0 {
		email.Attachments = append(email.Attachments, Attachment{
			Filename:    fmt.Sprintf("invoice-%s.pdf", shortID(data.OrderID)),
			ContentType: "application/pdf",
			Content:     pdf,
		})
	}

	return s.SendEmail(ctx, email)
}

// renderTemplate renders an email template with data
func (s *EmailService) renderTemplate(templateName string, data interface{}) (string, error) {
	tmpl, exists := s.templates[templateName]
	if !exists {
		return "", fmt.Errorf("template %s not found", templateName)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template %s: %w", templateName, err)
	}

	return buf.String(), nil
}

func (s *EmailService) from() string {
	if s.config.FromName != "" {
		return fmt.Sprintf("%s <%s>", s.config.FromName, s.config.FromEmail)
	}
	return s.config.FromEmail
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

const invoiceTemplate = `
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>{{.SiteName}}</title>
</head>
<body style="font-family: Arial, sans-serif; margin: 0; padding: 20px; background-color: #f4f4f4;">
    <div style="max-width: 600px; margin: 0 auto; background-color: white; padding: 20px; border-radius: 8px;">
        <h1 style="color: #333;">{{.SiteName}}</h1>
        <p>Hello {{.UserName}},</p>
        <p>Thank you for your order placed on {{.OrderDate}}.</p>
        <p>Order <strong>{{.OrderID}}</strong>: {{.ItemsCount}} item(s), total <strong>${{.OrderTotal}}</strong>.</p>
        <p>Your invoice is attached to this email.</p>
        <p>Best regards,<br>{{.SiteName}} Team</p>
        <hr>
        <p style="font-size: 12px; color: #666;">
            &copy; {{.Year}} {{.SiteName}}. All rights reserved.
        </p>
    </div>
</body>
</html>`
