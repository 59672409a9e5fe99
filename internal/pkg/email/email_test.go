package email

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/kg-components/storefront/internal/config"
	"github.com/kg-components/storefront/internal/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testService(provider string) *EmailService {
	cfg := &config.Config{
		Email: config.EmailConfig{
			Provider:  provider,
			FromEmail: "orders@kg.test",
			FromName:  "KG Components",
		},
		Company: config.CompanyConfig{
			Name:    "KG Components",
			Email:   "support@kg.test",
			Website: "https://kg.test",
		},
	}
	return NewEmailService(cfg, logger.Discard())
}

func TestLogProviderAcceptsInvoice(t *testing.T) {
	s := testService("log")
	err := s.SendInvoiceEmail(context.Background(), InvoiceEmailData{
		EmailTemplateData: EmailTemplateData{UserName: "Ada", UserEmail: "ada@kg.test"},
		OrderID:           "0b7c6a1e-0000-4000-8000-000000000000",
		OrderTotal:        "60.00",
		ItemsCount:        2,
	}, []byte("%PDF-1.4"))
	assert.NoError(t, err)
}

func TestUnsupportedProvider(t *testing.T) {
	s := testService("pigeon")
	err := s.SendEmail(context.Background(), &Email{To: []string{"a@kg.test"}})
	assert.EqualError(t, err, "unsupported email provider: pigeon")
}

func TestResendRequiresKey(t *testing.T) {
	s := testService("resend")
	err := s.SendEmail(context.Background(), &Email{To: []string{"a@kg.test"}})
	assert.Error(t, err)
}

func TestBuildMessageCarriesAttachment(t *testing.T) {
	s := testService("smtp")
	msg, err := s.buildMessage(&Email{
		To:          []string{"ada@kg.test"},
		ReplyTo:     "support@kg.test",
		Subject:     "Invoice",
		HTMLContent: "<p>hi</p>",
		Attachments: []Attachment{{Filename: "invoice.pdf", ContentType: "application/pdf", Content: []byte("pdf-bytes")}},
	})
	require.NoError(t, err)

	text := string(msg)
	assert.Contains(t, text, "From: KG Components <orders@kg.test>")
	assert.Contains(t, text, "Reply-To: support@kg.test")
	assert.Contains(t, text, "<p>hi</p>")
	assert.Contains(t, text, `filename="invoice.pdf"`)
	assert.Contains(t, text, base64.StdEncoding.EncodeToString([]byte("pdf-bytes")))
}

func TestRenderInvoiceTemplate(t *testing.T) {
	s := testService("log")
	html, err := s.renderTemplate("invoice", InvoiceEmailData{
		EmailTemplateData: GetBaseTemplateData("KG Components", "", "Ada", "ada@kg.test"),
		OrderID:           "abc",
		OrderTotal:        "12.50",
		ItemsCount:        3,
	})
	require.NoError(t, err)
	assert.True(t, strings.Contains(html, "$12.50"))
	assert.Contains(t, html, "Hello Ada")
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "abc", shortID("abc"))
	assert.Equal(t, "0b7c6a1e", shortID("0b7c6a1e-0000"))
}
